package solver

import (
	"github.com/voltgrid/pgm-core/pkg/pgmlog"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// loadAdmittance implements spec.md §4.7.1's "model every load/generator as
// a constant admittance Y_load = -conj(S_rated)", replicated identically
// across every phase's diagonal in asymmetric mode (LoadGenParam carries
// one scalar rating, not a per-phase breakdown).
func loadAdmittance(sym pgmtypes.Symmetry, s complex128) pgmtypes.PhaseMatrix {
	n := sym.NDim()
	m := sym.NewMatrix()
	for p := 0; p < n; p++ {
		m.Set(n, p, p, -cconj(s))
	}
	return m
}

func cconj(c complex128) complex128 { return complex(real(c), -imag(c)) }

// RunLinearPF implements spec.md §4.7.1: fold constant-admittance loads and
// source Thevenin admittances onto the Y-bus diagonal, add Y_src . U_ref to
// the right-hand side, solve once, and post-process.
func RunLinearPF(in *PowerFlowInput, log *pgmlog.Logger) (*SolverOutput, error) {
	sym := in.YBus.Param.Sym
	dim := sym.NDim()
	n := in.Topo.NBus
	bs := dim

	loadGenBus := ybus.BusOfOffsets(in.Topo.LoadGensPerBus)
	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)
	shuntBus := ybus.BusOfOffsets(in.Topo.ShuntsPerBus)

	data := in.YBus.NewLUData(bs)
	rhs := make([]complex128, n*bs)

	log.Log(pgmlog.PrepareMatrix)

	diagLU := in.YBus.Structure.LU.DiagLU
	for k, lg := range in.LoadGen {
		bus := loadGenBus[k]
		ybus.AddToBlock(data, diagLU[bus], dim, loadAdmittance(sym, lg.RatedPower))
	}
	for k, sp := range in.YBus.Param.Source {
		bus := sourceBus[k]
		ybus.AddToBlock(data, diagLU[bus], dim, sp.Y)
		contrib := sp.Y.MulVec(sp.URef)
		for p := 0; p < dim; p++ {
			rhs[bus*bs+p] += contrib[p]
		}
	}

	mat := &sparselu.Matrix{Pattern: in.YBus.Structure.LU, BlockSize: bs, Data: data}
	if err := mat.Prefactorize(true); err != nil {
		return nil, err
	}
	log.Log(pgmlog.SolveSparseLinearEquation)

	x := make([]complex128, n*bs)
	if err := mat.SolveWithPrefactorized(rhs, x); err != nil {
		return nil, err
	}

	u := make([]pgmtypes.PhaseVector, n)
	for bus := 0; bus < n; bus++ {
		u[bus] = append(pgmtypes.PhaseVector(nil), x[bus*bs:(bus+1)*bs]...)
	}

	injection, branchFlow, shuntFlow := postProcess(in.YBus, in.Topo.BranchBusIdx, shuntBus, u)
	sourceOut := sourceOutputs(sym, u, sourceBus, in.YBus.Param.Source)
	loadGenOut := linearLoadGenOutputs(sym, u, loadGenBus, in.LoadGen)

	return &SolverOutput{
		Voltage:       u,
		Injection:     injection,
		BranchFlow:    branchFlow,
		ShuntFlow:     shuntFlow,
		SourceOutput:  sourceOut,
		LoadGenOutput: loadGenOut,
		Iterations:    1,
	}, nil
}

func linearLoadGenOutputs(sym pgmtypes.Symmetry, u []pgmtypes.PhaseVector, bus []int, lg []LoadGenParam) []pgmtypes.PhaseVector {
	dim := sym.NDim()
	out := make([]pgmtypes.PhaseVector, len(lg))
	for k, l := range lg {
		y := loadAdmittance(sym, l.RatedPower)
		ub := u[bus[k]]
		i := y.MulVec(ub)
		s := make(pgmtypes.PhaseVector, dim)
		for p := 0; p < dim; p++ {
			s[p] = ub[p] * cconj(i[p])
		}
		out[k] = s
	}
	return out
}
