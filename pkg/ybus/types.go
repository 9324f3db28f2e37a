// Package ybus implements the Y-bus assembler of spec.md §4.3: structure
// construction from a MathTopology's branch/shunt layout (including the
// symbolic fill-in an LU factorization will need), value assembly from a
// MathParam, incremental recomputation on parameter change with a
// subscriber callback for cache invalidation, and the injection/branch-flow/
// shunt-flow post-processing steps.
package ybus

import (
	"github.com/voltgrid/pgm-core/pkg/idxvec"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
)

// SourceParam is a source's Thevenin-equivalent admittance and reference
// voltage, folded into the diagonal by solvers rather than stored in Y
// itself (spec.md §4.3's "source admittances are injected by the solvers").
type SourceParam struct {
	Y    pgmtypes.PhaseMatrix
	URef pgmtypes.PhaseVector
}

// MathParam holds every numeric parameter a YBus needs to assemble values,
// in the same local per-model bucketed order topology.MathTopology's
// grouped-index fields describe: Branch is indexed by effective-branch
// position (MathTopology.BranchBusIdx), Shunt by ShuntsPerBus's flat
// element order, Source by SourcesPerBus's.
type MathParam struct {
	Sym    pgmtypes.Symmetry
	Branch []pgmtypes.AdmittanceBlock
	Shunt  []pgmtypes.PhaseMatrix
	Source []SourceParam
}

type contribKind int

const (
	contribBranchFF contribKind = iota
	contribBranchFT
	contribBranchTF
	contribBranchTT
	contribShunt
)

// contribution is one admittance term landing on a single Y CSR entry.
type contribution struct {
	kind contribKind
	idx  int
}

// BusOfOffsets inverts a bus-keyed Offsets container (e.g.
// MathTopology.ShuntsPerBus) into a flat "local element position -> bus"
// array, the shape CalculateShuntFlow needs to know which bus each shunt
// parameter is attached to.
func BusOfOffsets(off *idxvec.Offsets) []int {
	bus := make([]int, off.ElementSize())
	for b := 0; b < off.Size(); b++ {
		r := off.Range(b)
		for e := r.Begin; e < r.End; e++ {
			bus[e] = b
		}
	}
	return bus
}
