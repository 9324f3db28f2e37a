package observability

import "github.com/voltgrid/pgm-core/pkg/pgmerr"

// checkRadialStructure implements spec.md §4.6's radial sufficient-structure
// check: redistribute injection/phasor sensors onto unmeasured upstream
// branches and verify every branch ends up measured.
//
// Bus numbering places the slack at NBus-1 and, by construction of the
// elimination order (pkg/topology's Reduce), every non-slack bus's parent
// branch runs toward a higher-numbered bus. Processing buses leaf-first
// (increasing index) lets each bus's injection measurement "discover" its
// parent branch's flow once every other branch at that bus is already
// known, by Kirchhoff's current law.
func checkRadialStructure(in *Input) error {
	measured := append([]bool(nil), in.BranchMeasured...)
	parent, children := buildEliminationTree(in.Topo.BranchBusIdx, in.Topo.NBus)

	for bus := 0; bus < in.Topo.NBus-1; bus++ {
		pBranch := parent[bus]
		if pBranch < 0 || measured[pBranch] {
			continue
		}
		if !(in.BusInjectionMeasured[bus] || in.BusPhasorMeasured[bus]) {
			continue
		}
		if allMeasured(children[bus], measured) {
			measured[pBranch] = true
		}
	}

	for b, ok := range measured {
		if !ok {
			return &pgmerr.NotObservable{Reason: "radial grid: branch remains unmeasured after sensor redistribution"}
		}
		_ = b
	}
	return nil
}

// buildEliminationTree derives, for each non-slack bus, the branch running
// toward its parent (the incident branch whose other endpoint has a higher
// bus index) and the list of branches running to its children.
func buildEliminationTree(branchBusIdx [][2]int, nBus int) (parent []int, children [][]int) {
	parent = make([]int, nBus)
	for i := range parent {
		parent[i] = -1
	}
	children = make([][]int, nBus)
	for b, ends := range branchBusIdx {
		from, to := ends[0], ends[1]
		if from < 0 || to < 0 {
			continue
		}
		lo, hi := from, to
		if lo > hi {
			lo, hi = hi, lo
		}
		if parent[lo] == -1 {
			parent[lo] = b
		}
		children[hi] = append(children[hi], b)
	}
	return parent, children
}

func allMeasured(branches []int, measured []bool) bool {
	for _, b := range branches {
		if !measured[b] {
			return false
		}
	}
	return true
}
