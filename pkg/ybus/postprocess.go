package ybus

import (
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
)

// BranchFlow is the post-processed current/power at both ends of one
// effective branch (spec.md §4.3's calculate_branch_flow).
type BranchFlow struct {
	IF, IT pgmtypes.PhaseVector
	SF, ST pgmtypes.PhaseVector
}

// ShuntFlow is the post-processed current/power of one shunt, in injection
// direction (spec.md §4.3's calculate_shunt_flow).
type ShuntFlow struct {
	I pgmtypes.PhaseVector
	S pgmtypes.PhaseVector
}

// CalculateInjection computes, for every bus i, s_i = u_i (x) conj(Sum_j
// Y[i,j] u_j), the per-phase elementwise product of bus voltage with the
// conjugate nodal current.
func (yb *YBus) CalculateInjection(u []pgmtypes.PhaseVector) []pgmtypes.PhaseVector {
	dim := yb.Param.Sym.NDim()
	s := make([]pgmtypes.PhaseVector, yb.Structure.NBus)
	for i := 0; i < yb.Structure.NBus; i++ {
		current := make(pgmtypes.PhaseVector, dim)
		r := yb.Structure.Range(i)
		for e := r.Begin; e < r.End; e++ {
			j := yb.Structure.ColIdx[e]
			contrib := yb.Values[e].MulVec(u[j])
			for p := 0; p < dim; p++ {
				current[p] += contrib[p]
			}
		}
		si := make(pgmtypes.PhaseVector, dim)
		for p := 0; p < dim; p++ {
			si[p] = u[i][p] * cmplx.Conj(current[p])
		}
		s[i] = si
	}
	return s
}

// CalculateBranchFlow computes from-end and to-end current/power for every
// effective branch. Disconnected endpoints use u = 0, per spec.md §4.3.
func (yb *YBus) CalculateBranchFlow(u []pgmtypes.PhaseVector, branchBusIdx [][2]int, branchParam []pgmtypes.AdmittanceBlock) []BranchFlow {
	dim := yb.Param.Sym.NDim()
	zero := make(pgmtypes.PhaseVector, dim)

	out := make([]BranchFlow, len(branchBusIdx))
	for b, rc := range branchBusIdx {
		uf, ut := zero, zero
		if rc[0] >= 0 {
			uf = u[rc[0]]
		}
		if rc[1] >= 0 {
			ut = u[rc[1]]
		}
		p := branchParam[b]
		iF := p.YFF.MulVec(uf).Add(p.YFT.MulVec(ut))
		iT := p.YTF.MulVec(uf).Add(p.YTT.MulVec(ut))

		sF := make(pgmtypes.PhaseVector, dim)
		sT := make(pgmtypes.PhaseVector, dim)
		for ph := 0; ph < dim; ph++ {
			sF[ph] = uf[ph] * cmplx.Conj(iF[ph])
			sT[ph] = ut[ph] * cmplx.Conj(iT[ph])
		}
		out[b] = BranchFlow{IF: iF, IT: iT, SF: sF, ST: sT}
	}
	return out
}

// CalculateShuntFlow computes shunt current/power in injection direction:
// i_k = -Y_shunt . u_bus(k), s_k = u_bus(k) (x) conj(i_k). shuntBus[k] gives
// the bus each local shunt parameter k is attached to (see BusOfOffsets).
func (yb *YBus) CalculateShuntFlow(u []pgmtypes.PhaseVector, shuntBus []int, shuntParam []pgmtypes.PhaseMatrix) []ShuntFlow {
	dim := yb.Param.Sym.NDim()
	out := make([]ShuntFlow, len(shuntParam))
	for k, bus := range shuntBus {
		ik := shuntParam[k].MulVec(u[bus]).Scale(-1)
		sk := make(pgmtypes.PhaseVector, dim)
		for p := 0; p < dim; p++ {
			sk[p] = u[bus][p] * cmplx.Conj(ik[p])
		}
		out[k] = ShuntFlow{I: ik, S: sk}
	}
	return out
}
