package solver

import (
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/component"
	"github.com/voltgrid/pgm-core/pkg/pgmerr"
	"github.com/voltgrid/pgm-core/pkg/pgmlog"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/topology"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// IterativeCurrentPF wraps the block LU and cached prefactorization spec.md
// §4.7.2 calls for: "source admittances are folded into the diagonal once
// on first iteration and the factorization is cached", invalidated by the
// Y-bus "parameters changed" callback.
type IterativeCurrentPF struct {
	mat         *sparselu.Matrix
	unsubscribe func()
	stale       bool
}

// NewIterativeCurrentPF builds the solver and subscribes to in.YBus's
// parameters-changed notification.
func NewIterativeCurrentPF(in *PowerFlowInput) *IterativeCurrentPF {
	s := &IterativeCurrentPF{stale: true}
	s.unsubscribe = in.YBus.Subscribe(func() { s.stale = true })
	return s
}

// Close unsubscribes from the Y-bus; callers that discard a solver instance
// without this leak the subscription slot.
func (s *IterativeCurrentPF) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Run implements spec.md §4.7.2: per-iteration current injection from each
// load/gen's type-specific law, solve via the (cached) prefactorized Y,
// iterate until max |ΔU| <= tolerance or fail with IterationDiverge.
func (s *IterativeCurrentPF) Run(in *PowerFlowInput, opt CalculationOptions, log *pgmlog.Logger) (*SolverOutput, error) {
	sym := in.YBus.Param.Sym
	dim := sym.NDim()
	n := in.Topo.NBus
	bs := dim

	loadGenBus := ybus.BusOfOffsets(in.Topo.LoadGensPerBus)
	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)
	shuntBus := ybus.BusOfOffsets(in.Topo.ShuntsPerBus)
	diagLU := in.YBus.Structure.LU.DiagLU

	if s.stale || s.mat == nil {
		data := in.YBus.NewLUData(bs)
		for k, sp := range in.YBus.Param.Source {
			ybus.AddToBlock(data, diagLU[sourceBus[k]], dim, sp.Y)
		}
		s.mat = &sparselu.Matrix{Pattern: in.YBus.Structure.LU, BlockSize: bs, Data: data}
		if err := s.mat.Prefactorize(true); err != nil {
			return nil, err
		}
		s.stale = false
		log.Log(pgmlog.PrepareMatrixIncludingPrefactorization)
	}

	u := initialVoltage(in.Topo, in.YBus.Param.Source, sourceBus, sym)

	var maxDev float64
	iter := 0
	for ; iter < opt.MaxIter; iter++ {
		rhs := make([]complex128, n*bs)
		for k, lg := range in.LoadGen {
			bus := loadGenBus[k]
			inj := injectionCurrent(lg, u[bus])
			for p := 0; p < dim; p++ {
				rhs[bus*bs+p] += inj[p]
			}
		}
		for k, sp := range in.YBus.Param.Source {
			bus := sourceBus[k]
			contrib := sp.Y.MulVec(sp.URef)
			for p := 0; p < dim; p++ {
				rhs[bus*bs+p] += contrib[p]
			}
		}

		x := make([]complex128, n*bs)
		if err := s.mat.SolveWithPrefactorized(rhs, x); err != nil {
			return nil, err
		}
		log.Log(pgmlog.SolveSparseLinearEquationPrefactorized)

		uNew := make([]pgmtypes.PhaseVector, n)
		for bus := 0; bus < n; bus++ {
			uNew[bus] = append(pgmtypes.PhaseVector(nil), x[bus*bs:(bus+1)*bs]...)
		}
		maxDev = maxAbsDeviation(uNew, u)
		u = uNew
		log.LogValue(pgmlog.IterateUnknown, maxDev)

		if maxDev <= opt.Tolerance {
			break
		}
	}
	if iter >= opt.MaxIter {
		log.LogCount(pgmlog.IterativePFSolverMaxNumIter, iter)
		return nil, &pgmerr.IterationDiverge{Iterations: iter, MaxDev: maxDev, Tolerance: opt.Tolerance}
	}

	injection, branchFlow, shuntFlow := postProcess(in.YBus, in.Topo.BranchBusIdx, shuntBus, u)
	sourceOut := sourceOutputs(sym, u, sourceBus, in.YBus.Param.Source)
	loadGenOut := make([]pgmtypes.PhaseVector, len(in.LoadGen))
	for k, lg := range in.LoadGen {
		bus := loadGenBus[k]
		i := injectionCurrent(lg, u[bus])
		s := make(pgmtypes.PhaseVector, dim)
		for p := 0; p < dim; p++ {
			s[p] = u[bus][p] * cmplx.Conj(i[p])
		}
		loadGenOut[k] = s
	}

	return &SolverOutput{
		Voltage: u, Injection: injection, BranchFlow: branchFlow, ShuntFlow: shuntFlow,
		SourceOutput: sourceOut, LoadGenOutput: loadGenOut, Iterations: iter + 1, MaxDeviation: maxDev,
	}, nil
}

// injectionCurrent implements spec.md §4.7.2 step 1's three load/gen laws.
func injectionCurrent(lg LoadGenParam, u pgmtypes.PhaseVector) pgmtypes.PhaseVector {
	dim := len(u)
	out := make(pgmtypes.PhaseVector, dim)
	for p := 0; p < dim; p++ {
		if u[p] == 0 {
			continue
		}
		switch lg.Type {
		case component.ConstY:
			out[p] = cmplx.Conj(lg.RatedPower) * u[p]
		case component.ConstI:
			out[p] = cmplx.Conj(lg.RatedPower * cmplx.Abs(u[p]) / u[p])
		default: // ConstPQ
			out[p] = cmplx.Conj(lg.RatedPower / u[p])
		}
	}
	return out
}

// initialVoltage seeds U from sources' reference voltages (falling back to
// 1+0j for buses with no source), rotated by each bus's accumulated phase
// shift (spec.md §4.7.2's "initialized from sources' reference voltages and
// per-bus phase shifts").
func initialVoltage(topo *topology.MathTopology, source []ybus.SourceParam, sourceBus []int, sym pgmtypes.Symmetry) []pgmtypes.PhaseVector {
	dim := sym.NDim()
	u := make([]pgmtypes.PhaseVector, topo.NBus)
	for bus := range u {
		v := sym.NewVector()
		for p := 0; p < dim; p++ {
			v[p] = 1
		}
		u[bus] = v
	}
	for k, sp := range source {
		u[sourceBus[k]] = append(pgmtypes.PhaseVector(nil), sp.URef...)
	}
	for bus := 0; bus < topo.NBus && bus < len(topo.PhaseShift); bus++ {
		shift := cmplx.Rect(1, topo.PhaseShift[bus])
		for p := 0; p < dim; p++ {
			u[bus][p] *= shift
		}
	}
	return u
}
