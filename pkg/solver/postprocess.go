package solver

import (
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// postProcess implements the "post-process branch/shunt flows and bus
// injections via the Y-bus" step every solver in spec.md §4.7 ends with.
func postProcess(yb *ybus.YBus, branchBusIdx [][2]int, shuntBus []int, u []pgmtypes.PhaseVector) ([]pgmtypes.PhaseVector, []ybus.BranchFlow, []ybus.ShuntFlow) {
	injection := yb.CalculateInjection(u)
	branchFlow := yb.CalculateBranchFlow(u, branchBusIdx, yb.Param.Branch)
	shuntFlow := yb.CalculateShuntFlow(u, shuntBus, yb.Param.Shunt)
	return injection, branchFlow, shuntFlow
}

// sourceOutputs computes each source's terminal current/power from the
// solved bus voltage, the Thevenin convention spec.md §4.7.1 describes:
// I = Y_src . (U_ref - U), S = U (x) conj(I).
func sourceOutputs(sym pgmtypes.Symmetry, u []pgmtypes.PhaseVector, sourceBus []int, source []ybus.SourceParam) []pgmtypes.PhaseVector {
	dim := sym.NDim()
	out := make([]pgmtypes.PhaseVector, len(source))
	for k, sp := range source {
		bus := sourceBus[k]
		diff := make(pgmtypes.PhaseVector, dim)
		for p := 0; p < dim; p++ {
			diff[p] = sp.URef[p] - u[bus][p]
		}
		i := sp.Y.MulVec(diff)
		s := make(pgmtypes.PhaseVector, dim)
		for p := 0; p < dim; p++ {
			s[p] = u[bus][p] * cmplx.Conj(i[p])
		}
		out[k] = s
	}
	return out
}

func maxAbsDeviation(a, b []pgmtypes.PhaseVector) float64 {
	var maxDev float64
	for i := range a {
		if d := a[i].MaxAbsDiff(b[i]); d > maxDev {
			maxDev = d
		}
	}
	return maxDev
}

func cloneVectors(v []pgmtypes.PhaseVector) []pgmtypes.PhaseVector {
	out := make([]pgmtypes.PhaseVector, len(v))
	for i, x := range v {
		out[i] = append(pgmtypes.PhaseVector(nil), x...)
	}
	return out
}
