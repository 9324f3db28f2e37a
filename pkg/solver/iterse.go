package solver

import (
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/measurement"
	"github.com/voltgrid/pgm-core/pkg/pgmerr"
	"github.com/voltgrid/pgm-core/pkg/pgmlog"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// IterativeLinearSE implements spec.md §4.7.4's full WLS gain matrix: each
// bus/phase carries a 2-wide (u, φ) Lagrange-multiplier sub-block — G (the
// voltage measurement's inverse-variance weight) on the diagonal's u row, Q
// (the Y-bus admittance entry itself) coupling every neighbor's u into this
// bus's injection row, and R (the injection measurement's negative combined
// variance, or -1 for the implicit hard zero-injection constraint every
// unmeasured bus gets) on the diagonal's φ row. QH mirrors Q's Hermitian
// transpose from the opposite LU entry, filled in a second pass once every
// Q entry exists — the same two-pass construction the PowerGridModel
// reference solver's fill_qt() uses. G/Q/R/QH depend only on the
// measurement configuration and topology, so (like IterativeCurrentPF) the
// matrix is prefactorized once and cached across Run calls; only the
// (u,φ)-row RHS, which depends on the current voltage estimate through the
// linearized magnitude-only targets and the conjugate current-injection
// projection, is rebuilt every iteration. Scoped out (see DESIGN.md): the
// branch/shunt power-measurement contributions to the G block, since
// pkg/ybus does not expose the per-branch y_bus_entry walk those need.
type IterativeLinearSE struct {
	mat         *sparselu.Matrix
	unsubscribe func()
	stale       bool
}

// NewIterativeLinearSE builds the solver and subscribes to in.YBus's
// parameters-changed notification.
func NewIterativeLinearSE(in *StateEstimationInput) *IterativeLinearSE {
	s := &IterativeLinearSE{stale: true}
	s.unsubscribe = in.YBus.Subscribe(func() { s.stale = true })
	return s
}

// Close unsubscribes from the Y-bus.
func (s *IterativeLinearSE) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Run implements the iteration described above.
func (s *IterativeLinearSE) Run(in *StateEstimationInput, opt CalculationOptions, log *pgmlog.Logger) (*SolverOutput, error) {
	sym := in.YBus.Param.Sym
	dim := sym.NDim()
	n := in.Topo.NBus
	bs := sym.BlockSize(2)

	shuntBus := ybus.BusOfOffsets(in.Topo.ShuntsPerBus)
	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)

	if s.stale || s.mat == nil {
		data := make([]sparselu.Block, in.YBus.Structure.LU.NNZ())
		for i := range data {
			data[i] = sparselu.NewBlock(bs)
		}
		fillGainMatrixSE(in.YBus, in.Measured, dim, data)

		s.mat = &sparselu.Matrix{Pattern: in.YBus.Structure.LU, BlockSize: bs, Data: data}
		if err := s.mat.Prefactorize(true); err != nil {
			return nil, err
		}
		s.stale = false
		log.Log(pgmlog.PrepareMatrixIncludingPrefactorization)
	}

	meanAngle := meanVoltageAngleShift(in.Measured.Bus)
	hasAngle := false
	for _, bm := range in.Measured.Bus {
		if hasAngleMeasurement(bm) {
			hasAngle = true
			break
		}
	}

	u := make([]pgmtypes.PhaseVector, n)
	for bus := 0; bus < n; bus++ {
		u[bus] = broadcastVoltage(sym, cmplx.Rect(1, meanAngle+in.Topo.PhaseShift[bus]))
	}

	var maxDev float64
	iter := 0
	for ; iter < opt.MaxIter; iter++ {
		target := linearizeVoltagePhased(sym, in.Measured.Bus, u)

		rhs := make([]complex128, n*bs)
		for bus, bm := range in.Measured.Bus {
			for p := 0; p < dim; p++ {
				base := 2 * p
				if !isUnmeasuredVoltage(bm) {
					weight := seVoltageWeight(bm)
					rhs[bus*bs+base] += weight * target[bus][p]
				}
				if hasInjectionMeasurement(bm) && !bm.InjectionIsHard {
					injPhase := broadcastPower(sym, bm.Injection)[p]
					if u[bus][p] != 0 {
						rhs[bus*bs+base+1] += cmplx.Conj(injPhase / u[bus][p])
					}
				}
			}
		}

		x := make([]complex128, n*bs)
		if err := s.mat.SolveWithPrefactorized(rhs, x); err != nil {
			return nil, err
		}
		log.Log(pgmlog.SolveSparseLinearEquationPrefactorized)

		uNew := make([]pgmtypes.PhaseVector, n)
		for bus := 0; bus < n; bus++ {
			uNew[bus] = make(pgmtypes.PhaseVector, dim)
			for p := 0; p < dim; p++ {
				uNew[bus][p] = x[bus*bs+2*p]
			}
		}
		if !hasAngle {
			gauge := cmplx.Phase(uNew[in.Topo.SlackBus][0])
			for bus := range uNew {
				for p := 0; p < dim; p++ {
					uNew[bus][p] = cmplx.Rect(cmplx.Abs(uNew[bus][p]), cmplx.Phase(uNew[bus][p])-gauge)
				}
			}
		}

		maxDev = maxAbsDeviation(uNew, u)
		u = uNew
		log.LogValue(pgmlog.IterateUnknown, maxDev)
		if maxDev <= opt.Tolerance {
			break
		}
	}
	if iter >= opt.MaxIter {
		log.LogCount(pgmlog.MaxNumIter, iter)
		return nil, &pgmerr.IterationDiverge{Iterations: iter, MaxDev: maxDev, Tolerance: opt.Tolerance}
	}

	injection, branchFlow, shuntFlow := postProcess(in.YBus, in.Topo.BranchBusIdx, shuntBus, u)
	sourceOut := sourceOutputs(sym, u, sourceBus, in.YBus.Param.Source)
	loadGenOut := seLoadGenOutputs(sym, in.Topo, injection, in.Measured)

	return &SolverOutput{
		Voltage: u, Injection: injection, BranchFlow: branchFlow, ShuntFlow: shuntFlow,
		SourceOutput: sourceOut, LoadGenOutput: loadGenOut, Iterations: iter + 1, MaxDeviation: maxDev,
	}, nil
}

// seVoltageWeight is the G-block diagonal weight for a voltage-measured
// bus: the reference implementation tracks a single scalar variance per
// voltage sensor (not separate real/imaginary axes), so VarVoltageRe is
// used uniformly even for a fused phasor sensor whose axes were fused
// independently.
func seVoltageWeight(bm measurement.BusMeasurement) complex128 {
	if bm.VarVoltageRe <= 0 {
		return complex(1, 0)
	}
	return complex(1/bm.VarVoltageRe, 0)
}

// fillGainMatrixSE assembles the topology/measurement-dependent half of the
// gain matrix (G, Q, R, then QH in a second pass) described above. Each
// phase's (u, φ) pair lives at sub-block offset base=2*phase within the
// bus's bs-wide block: (base,base)=G, (base+1,base)=Q, (base+1,base+1)=R,
// (base,base+1)=QH.
func fillGainMatrixSE(yb *ybus.YBus, measured *measurement.MeasuredValues, dim int, data []sparselu.Block) {
	n := yb.Structure.NBus
	lu := yb.Structure.LU
	diagLU := lu.DiagLU

	for bus := 0; bus < n; bus++ {
		bm := measured.Bus[bus]
		r := yb.Structure.Range(bus)
		luRow, luEnd := lu.RowPtr[bus], lu.RowPtr[bus+1]

		for p := 0; p < dim; p++ {
			base := 2 * p
			if !isUnmeasuredVoltage(bm) {
				data[diagLU[bus]].Add1(base, base, seVoltageWeight(bm))
			}

			var rVal complex128
			if hasInjectionMeasurement(bm) && !bm.InjectionIsHard {
				rVal = complex(-(bm.VarInjectionRe + bm.VarInjectionIm), 0)
			} else {
				rVal = complex(-1, 0)
			}
			data[diagLU[bus]].Add1(base+1, base+1, rVal)

			for e := r.Begin; e < r.End; e++ {
				j := yb.Structure.ColIdx[e]
				luIdx := -1
				for k := luRow; k < luEnd; k++ {
					if lu.ColIdx[k] == j {
						luIdx = k
						break
					}
				}
				if luIdx == -1 {
					continue
				}
				y := yb.Values[e].At(dim, p, p)
				data[luIdx].Add1(base+1, base, y)
			}
		}
	}

	for bus := 0; bus < n; bus++ {
		luRow, luEnd := lu.RowPtr[bus], lu.RowPtr[bus+1]
		for e := luRow; e < luEnd; e++ {
			j := lu.ColIdx[e]
			t := transposeEntry(lu, bus, j)
			if t == -1 {
				continue
			}
			for p := 0; p < dim; p++ {
				base := 2 * p
				q := data[t].At(base+1, base)
				data[e].Set(base, base+1, cmplx.Conj(q))
			}
		}
	}
}
