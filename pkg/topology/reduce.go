package topology

import (
	"sort"

	"github.com/voltgrid/pgm-core/pkg/graphtopo"
	"github.com/voltgrid/pgm-core/pkg/idxvec"
)

// edgeOrigin records which original component an expanded edge came from,
// so the coupling pass can map effective branches back to it.
type edgeOrigin struct {
	isBranch3 bool
	branch    BranchIdx
	branch3   Branch3Idx
	arm       int
}

// edge is one expanded two-terminal element: an original branch as-is, or
// one arm of an expanded branch3 (A is the user winding node, B is the
// virtual node).
type edge struct {
	a, b             NodeIdx
	statusA, statusB bool
	phaseShift       float64 // signed, a -> b
	origin           edgeOrigin
}

// expand builds the flat edge list (original branches + branch3 arms) and
// reports the total node count including the virtual nodes appended after
// the user nodes, implementing spec step 1 (ExpandBranch3).
func expand(topo *ComponentTopology, conn *ComponentConnection) (edges []edge, totalNodes int) {
	edges = make([]edge, 0, len(topo.BranchNode)+3*len(topo.Branch3Node))

	for b, nodes := range topo.BranchNode {
		st := conn.BranchStatus[b]
		edges = append(edges, edge{
			a: nodes[0], b: nodes[1],
			statusA: st[0], statusB: st[1],
			phaseShift: conn.BranchPhaseShift[b],
			origin:     edgeOrigin{branch: BranchIdx(b)},
		})
	}

	virtualBase := topo.NumNode
	for b3, nodes := range topo.Branch3Node {
		virtual := NodeIdx(virtualBase + b3)
		st := conn.Branch3Status[b3]
		ps := conn.Branch3PhaseShift[b3]
		for arm := 0; arm < 3; arm++ {
			edges = append(edges, edge{
				a: nodes[arm], b: virtual,
				statusA: st[arm], statusB: true,
				phaseShift: ps[arm],
				origin:     edgeOrigin{isBranch3: true, branch3: Branch3Idx(b3), arm: arm},
			})
		}
	}

	totalNodes = topo.NumNode + len(topo.Branch3Node)
	return edges, totalNodes
}

// sourceNodes returns, for every appliance of kind ApplianceSource with
// SourceActive true, the node it energizes from, in appliance-source-order
// (parallel to ComponentConnection.SourceActive).
func sourceNodes(topo *ComponentTopology, conn *ComponentConnection) []NodeIdx {
	var nodes []NodeIdx
	srcIdx := 0
	for i, kind := range topo.ApplianceKind {
		if kind != ApplianceSource {
			continue
		}
		if conn.SourceActive[srcIdx] {
			nodes = append(nodes, topo.ApplianceNode[i])
		}
		srcIdx++
	}
	return nodes
}

// Reduce runs spec.md §4.2 steps 1-7: expand branch3, build connectivity,
// discard unenergized components, partition into math models, minimize
// fill-in with the slack pinned last, accumulate phase shift, and emit one
// MathTopology per energized group plus the TopoCoupling back to it.
func Reduce(topo *ComponentTopology, conn *ComponentConnection) ([]*MathTopology, *TopoCoupling) {
	edges, totalNodes := expand(topo, conn)

	adj := make([][]int, totalNodes)
	addEdge := func(u, v int) {
		adj[u] = append(adj[u], v)
		adj[v] = append(adj[v], u)
	}
	for _, e := range edges {
		if e.statusA && e.statusB {
			addEdge(int(e.a), int(e.b))
		}
	}

	sources := sourceNodes(topo, conn)
	seeds := make([]int, 0, len(sources))
	for _, n := range sources {
		seeds = append(seeds, int(n))
	}
	reached := graphtopo.BFS(adj, seeds)

	compOf, _ := graphtopo.ConnectedComponents(adj)

	// Renumber only the components containing a reached (seeded) node as
	// groups, in ascending component-id order for determinism.
	groupOfComp := make(map[int]int)
	for n := 0; n < totalNodes; n++ {
		if reached[n] {
			if _, ok := groupOfComp[compOf[n]]; !ok {
				groupOfComp[compOf[n]] = len(groupOfComp)
			}
		}
	}
	numGroups := len(groupOfComp)

	nodeGroup := make([]int, totalNodes)
	for n := 0; n < totalNodes; n++ {
		if reached[n] {
			nodeGroup[n] = groupOfComp[compOf[n]]
		} else {
			nodeGroup[n] = Unenergized
		}
	}

	models := make([]*MathTopology, numGroups)
	nodeLocalBus := make([]int, totalNodes) // -1 if node unenergized
	for i := range nodeLocalBus {
		nodeLocalBus[i] = Unenergized
	}

	groupNodes := make([][]int, numGroups)
	for n := 0; n < totalNodes; n++ {
		if g := nodeGroup[n]; g != Unenergized {
			groupNodes[g] = append(groupNodes[g], n)
		}
	}

	for g := 0; g < numGroups; g++ {
		models[g] = buildModel(g, groupNodes[g], edges, nodeGroup, sources, nodeLocalBus)
	}

	coupling := buildCoupling(topo, edges, nodeGroup, nodeLocalBus, models)
	bucketAppliancesAndSensors(topo, models, coupling)

	return models, coupling
}

// buildModel numbers group g's nodes (slack last, via minimum-degree
// elimination), fills nodeLocalBus for those nodes, and computes fill-in /
// radial / phase-shift for the resulting MathTopology.
func buildModel(g int, nodes []int, edges []edge, nodeGroup []int, sources []NodeIdx, nodeLocalBus []int) *MathTopology {
	sort.Ints(nodes)
	localOf := make(map[int]int, len(nodes))
	for i, n := range nodes {
		localOf[n] = i
	}

	adj := make([][]int, len(nodes))
	type localEdge struct {
		u, v       int
		shift      float64 // u -> v
	}
	var localEdges []localEdge
	for _, e := range edges {
		if !(e.statusA && e.statusB) {
			continue
		}
		if nodeGroup[e.a] != g || nodeGroup[e.b] != g {
			continue
		}
		u, v := localOf[int(e.a)], localOf[int(e.b)]
		adj[u] = append(adj[u], v)
		adj[v] = append(adj[v], u)
		localEdges = append(localEdges, localEdge{u: u, v: v, shift: e.phaseShift})
	}

	slackLocal := 0
	for _, s := range sources {
		if nodeGroup[int(s)] == g {
			slackLocal = localOf[int(s)]
			break
		}
	}

	order, fillIns := graphtopo.MinDegreeOrderPinLast(adj, slackLocal)

	// finalBusOf[localIdx] = position in elimination order => bus number.
	finalBusOf := make([]int, len(nodes))
	for pos, localIdx := range order {
		finalBusOf[localIdx] = pos
	}
	for i, n := range nodes {
		nodeLocalBus[n] = finalBusOf[i]
	}

	nBus := len(nodes)
	model := &MathTopology{
		NBus:     nBus,
		SlackBus: finalBusOf[slackLocal],
		IsRadial: len(fillIns) == 0,
	}
	model.FillIn = make([][2]int, len(fillIns))
	for i, f := range fillIns {
		model.FillIn[i] = [2]int{finalBusOf[f.A], finalBusOf[f.B]}
	}

	// Phase shift: BFS tree from the slack bus over the model's own edges,
	// in bus-numbered space.
	busAdjShift := make(map[[2]int]float64)
	busAdj := make([][]int, nBus)
	for _, le := range localEdges {
		bu, bv := finalBusOf[le.u], finalBusOf[le.v]
		busAdj[bu] = append(busAdj[bu], bv)
		busAdj[bv] = append(busAdj[bv], bu)
		busAdjShift[[2]int{bu, bv}] = le.shift
		busAdjShift[[2]int{bv, bu}] = -le.shift
	}
	shift := make([]float64, nBus)
	visited := make([]bool, nBus)
	queue := []int{model.SlackBus}
	visited[model.SlackBus] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range busAdj[u] {
			if visited[v] {
				continue
			}
			visited[v] = true
			shift[v] = shift[u] + busAdjShift[[2]int{u, v}]
			queue = append(queue, v)
		}
	}
	model.PhaseShift = shift

	return model
}

// buildCoupling resolves every original component's (group, local-position)
// entry, for the node/branch/branch3 families. Appliance and sensor
// coupling positions are filled in later by bucketAppliancesAndSensors
// once the per-kind bucket order is known.
func buildCoupling(topo *ComponentTopology, edges []edge, nodeGroup []int, nodeLocalBus []int, models []*MathTopology) *TopoCoupling {
	totalNodes := topo.NumNode + len(topo.Branch3Node)
	c := &TopoCoupling{
		Node:       make([]Coupling, totalNodes),
		Branch:     make([]Coupling, len(topo.BranchNode)),
		Branch3:    make([]Coupling, len(topo.Branch3Node)),
		Branch3Arm: make([][3]Coupling, len(topo.Branch3Node)),
	}
	for n := 0; n < totalNodes; n++ {
		g := nodeGroup[n]
		if g == Unenergized {
			c.Node[n] = Coupling{Group: Unenergized, Pos: Unenergized}
			continue
		}
		c.Node[n] = Coupling{Group: g, Pos: nodeLocalBus[n]}
	}

	for _, e := range edges {
		gA, gB := nodeGroup[e.a], nodeGroup[e.b]
		g := Unenergized
		switch {
		case gA != Unenergized:
			g = gA
		case gB != Unenergized:
			g = gB
		}

		var busA, busB int = Unenergized, Unenergized
		if gA != Unenergized && e.statusA {
			busA = nodeLocalBus[e.a]
		}
		if gB != Unenergized && e.statusB {
			busB = nodeLocalBus[e.b]
		}

		if e.origin.isBranch3 {
			if g != Unenergized {
				m := models[g]
				pos := len(m.BranchBusIdx)
				m.BranchBusIdx = append(m.BranchBusIdx, [2]int{busA, busB})
				c.Branch3Arm[e.origin.branch3][e.origin.arm] = Coupling{Group: g, Pos: pos}
				if e.origin.arm == 0 {
					c.Branch3[e.origin.branch3] = Coupling{Group: g, Pos: busB}
				}
			} else {
				c.Branch3Arm[e.origin.branch3][e.origin.arm] = Coupling{Group: Unenergized, Pos: Unenergized}
				if e.origin.arm == 0 {
					c.Branch3[e.origin.branch3] = Coupling{Group: Unenergized, Pos: Unenergized}
				}
			}
			continue
		}

		if g != Unenergized {
			pos := len(models[g].BranchBusIdx)
			models[g].BranchBusIdx = append(models[g].BranchBusIdx, [2]int{busA, busB})
			c.Branch[e.origin.branch] = Coupling{Group: g, Pos: pos}
		} else {
			c.Branch[e.origin.branch] = Coupling{Group: Unenergized, Pos: Unenergized}
		}
	}

	return c
}

// bucketElements performs a stable counting sort of a pre-filtered element
// list by its bus assignment, returning the permutation (indices into the
// filtered list, in bus order) and the resulting Offsets container — this
// is the "per-kind GroupedIndex containers built in a single pass" of spec
// step 7, applied within one math model's bus numbering.
func bucketElements(bus []int, nBus int) (order []int, offsets *idxvec.Offsets) {
	counts := make([]int, nBus+1)
	for _, b := range bus {
		counts[b+1]++
	}
	for b := 0; b < nBus; b++ {
		counts[b+1] += counts[b]
	}
	off := make([]int, nBus+1)
	copy(off, counts)
	cursor := make([]int, nBus)
	copy(cursor, counts[:nBus])

	order = make([]int, len(bus))
	for i, b := range bus {
		order[cursor[b]] = i
		cursor[b]++
	}
	return order, idxvec.NewOffsets(off)
}
