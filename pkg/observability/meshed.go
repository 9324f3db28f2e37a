package observability

import "github.com/voltgrid/pgm-core/pkg/pgmerr"

// maxBacktrackDepth bounds how many nodal-measurement reassignments
// checkMeshedStructure will try before giving up on a branch of the
// search. A meshed grid sized for this core rarely needs more than a
// handful of reassignments to find a working spanning tree.
const maxBacktrackDepth = 2

// checkMeshedStructure implements spec.md §4.6's meshed sufficient-structure
// check: try to build a spanning tree over the bus graph where every tree
// edge is "discovered" by some sensor, consuming at most one nodal
// measurement per edge, in priority order native branch measurement ->
// downwind injection -> any connected-side measurement. Bounded
// backtracking lets an edge give up a nodal measurement it tentatively
// claimed and let a different edge use it instead.
func checkMeshedStructure(in *Input) error {
	adj := buildAdjacency(in.Topo.BranchBusIdx, in.Topo.NBus)
	s := &meshSearch{
		in:           in,
		adj:          adj,
		visited:      make([]bool, in.Topo.NBus),
		nodalClaimed: make([]bool, in.Topo.NBus),
	}
	s.visited[in.Topo.SlackBus] = true
	if s.grow(1, maxBacktrackDepth) {
		return nil
	}
	return &pgmerr.NotObservable{Reason: "meshed grid: no spanning tree found whose edges are all discoverable by the available sensors"}
}

type edge struct {
	branch int
	from   int // the already-visited bus this edge was discovered from
	other  int // bus at the far end from the already-visited side
}

type meshSearch struct {
	in           *Input
	adj          [][]edge
	visited      []bool
	nodalClaimed []bool
}

// grow tries to extend the spanning tree from the current visited set to
// cover all buses, trying each frontier edge in priority order and
// allowing up to backtrackBudget reassignments of a nodal measurement.
func (s *meshSearch) grow(visitedCount int, backtrackBudget int) bool {
	if visitedCount == len(s.visited) {
		return true
	}

	frontier := s.frontierEdges()
	if len(frontier) == 0 {
		return false
	}

	// Priority 1: native branch measurement, free of any nodal budget.
	for _, e := range frontier {
		if s.in.BranchMeasured[e.branch] {
			if s.tryEdge(e, visitedCount, backtrackBudget, false) {
				return true
			}
		}
	}
	// Priority 2: downwind injection/phasor at the newly discovered bus.
	for _, e := range frontier {
		if s.nodalAvailable(e.other) {
			if s.tryEdge(e, visitedCount, backtrackBudget, true) {
				return true
			}
		}
	}
	// Priority 3: a nodal measurement at the already-visited endpoint (the
	// far endpoint's was tried under priority 2).
	for _, e := range frontier {
		if s.nodalAvailable(e.from) {
			if s.tryEdgeClaiming(e, e.from, visitedCount, backtrackBudget) {
				return true
			}
		}
	}
	return false
}

func (s *meshSearch) tryEdge(e edge, visitedCount, backtrackBudget int, claim bool) bool {
	if claim {
		s.nodalClaimed[e.other] = true
	}
	s.visited[e.other] = true
	if s.grow(visitedCount+1, backtrackBudget) {
		return true
	}
	s.visited[e.other] = false
	if claim {
		s.nodalClaimed[e.other] = false
	}
	return false
}

func (s *meshSearch) tryEdgeClaiming(e edge, claimBus, visitedCount, backtrackBudget int) bool {
	if backtrackBudget <= 0 {
		return false
	}
	s.nodalClaimed[claimBus] = true
	s.visited[e.other] = true
	if s.grow(visitedCount+1, backtrackBudget-1) {
		return true
	}
	s.visited[e.other] = false
	s.nodalClaimed[claimBus] = false
	return false
}

func (s *meshSearch) nodalAvailable(bus int) bool {
	if s.nodalClaimed[bus] {
		return false
	}
	return s.in.BusInjectionMeasured[bus] || s.in.BusPhasorMeasured[bus]
}

func (s *meshSearch) frontierEdges() []edge {
	var out []edge
	for bus, visited := range s.visited {
		if !visited {
			continue
		}
		for _, e := range s.adj[bus] {
			if !s.visited[e.other] {
				out = append(out, e)
			}
		}
	}
	return out
}

func buildAdjacency(branchBusIdx [][2]int, nBus int) [][]edge {
	adj := make([][]edge, nBus)
	for b, ends := range branchBusIdx {
		from, to := ends[0], ends[1]
		if from < 0 || to < 0 {
			continue
		}
		adj[from] = append(adj[from], edge{branch: b, from: from, other: to})
		adj[to] = append(adj[to], edge{branch: b, from: to, other: from})
	}
	return adj
}
