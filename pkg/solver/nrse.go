package solver

import (
	"math"
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/pgmerr"
	"github.com/voltgrid/pgm-core/pkg/pgmlog"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// RunNewtonRaphsonSE implements spec.md §4.7.5's Lagrange-multiplier gain
// matrix: each bus/phase carries a 4-wide (θ, V, φ_P, φ_Q) unknown
// sub-block. G (rows θ,V) takes a voltage measurement's inverse-variance
// weight on its diagonal; Q (rows φ_P,φ_Q, cols θ,V) is the standard polar
// power-flow Jacobian's H/N/M/L entries — the exact same per-(bus,phase)
// math RunNewtonRaphsonPF's fillJacobianRow computes, since the injection
// equation's Jacobian is identical whether it is a power flow target or a
// state estimation measurement residual; R (rows/cols φ_P,φ_Q) is the
// injection measurement's negative variance, or -1 for the implicit hard
// zero-injection constraint; QT mirrors Q's transpose from the opposite LU
// entry, filled in a second pass exactly like IterativeLinearSE's QH.
// Scoped out (see DESIGN.md): process_injection_row's diagonal-block
// cross-term accumulation and the branch/shunt measurement G-block
// contributions, both of which need per-element complex voltage-product
// refinements beyond the phase-decoupled Jacobian this package's power
// flow solvers already establish as their own documented simplification.
func RunNewtonRaphsonSE(in *StateEstimationInput, opt CalculationOptions, log *pgmlog.Logger) (*SolverOutput, error) {
	sym := in.YBus.Param.Sym
	dim := sym.NDim()
	n := in.Topo.NBus
	bs := sym.BlockSize(4)

	shuntBus := ybus.BusOfOffsets(in.Topo.ShuntsPerBus)
	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)

	meanAngle := meanVoltageAngleShift(in.Measured.Bus)
	hasAngle := false
	for _, bm := range in.Measured.Bus {
		if hasAngleMeasurement(bm) {
			hasAngle = true
			break
		}
	}

	theta := make([][]float64, n)
	vmag := make([][]float64, n)
	for bus := 0; bus < n; bus++ {
		theta[bus] = make([]float64, dim)
		vmag[bus] = make([]float64, dim)
		bm := in.Measured.Bus[bus]
		for p := 0; p < dim; p++ {
			theta[bus][p] = meanAngle + in.Topo.PhaseShift[bus]
			vmag[bus][p] = 1
			switch {
			case hasAngleMeasurement(bm):
				v := broadcastVoltage(sym, bm.Voltage)[p]
				theta[bus][p] = cmplx.Phase(v)
				vmag[bus][p] = cmplx.Abs(v)
			case !isUnmeasuredVoltage(bm):
				vmag[bus][p] = real(bm.Voltage)
			}
		}
	}

	var maxDev float64
	iter := 0
	for ; iter < opt.MaxIter; iter++ {
		data := make([]sparselu.Block, in.YBus.Structure.LU.NNZ())
		for i := range data {
			data[i] = sparselu.NewBlock(bs)
		}
		rhs := make([]complex128, n*bs)

		for bus := 0; bus < n; bus++ {
			bm := in.Measured.Bus[bus]
			for p := 0; p < dim; p++ {
				calcP, calcQ := calcPQ(in.YBus, bus, p, theta, vmag)
				fillSEGainJacobian(in.YBus, data, bus, p, dim, theta, vmag, calcP, calcQ)

				base := 4 * p
				if !isUnmeasuredVoltage(bm) {
					weight := seVoltageWeight(bm)
					measMag, measTheta := vmag[bus][p], theta[bus][p]
					if hasAngleMeasurement(bm) {
						v := broadcastVoltage(sym, bm.Voltage)[p]
						measMag, measTheta = cmplx.Abs(v), cmplx.Phase(v)
					} else {
						measMag = real(bm.Voltage)
					}
					data[in.YBus.Structure.LU.DiagLU[bus]].Add1(base, base, weight)
					data[in.YBus.Structure.LU.DiagLU[bus]].Add1(base+1, base+1, weight)
					rhs[bus*bs+base] += weight * complex(measTheta-theta[bus][p], 0)
					rhs[bus*bs+base+1] += weight * complex((measMag-vmag[bus][p])/vmag[bus][p], 0)
				}

				var rP, rQ complex128
				if hasInjectionMeasurement(bm) && !bm.InjectionIsHard {
					rP = complex(-bm.VarInjectionRe, 0)
					rQ = complex(-bm.VarInjectionIm, 0)
				} else {
					rP, rQ = -1, -1
				}
				data[in.YBus.Structure.LU.DiagLU[bus]].Add1(base+2, base+2, rP)
				data[in.YBus.Structure.LU.DiagLU[bus]].Add1(base+3, base+3, rQ)

				targetP, targetQ := calcP, calcQ
				if hasInjectionMeasurement(bm) && !bm.InjectionIsHard {
					injPhase := broadcastPower(sym, bm.Injection)[p]
					targetP, targetQ = real(injPhase), imag(injPhase)
				}
				rhs[bus*bs+base+2] = complex(targetP-calcP, 0)
				rhs[bus*bs+base+3] = complex(targetQ-calcQ, 0)
			}
		}
		fillSEQuasiTranspose(in.YBus.Structure.LU, dim, data)

		mat := &sparselu.Matrix{Pattern: in.YBus.Structure.LU, BlockSize: bs, Data: data}
		if err := mat.Prefactorize(true); err != nil {
			return nil, err
		}
		x := make([]complex128, n*bs)
		if err := mat.SolveWithPrefactorized(rhs, x); err != nil {
			return nil, err
		}
		log.Log(pgmlog.SolveSparseLinearEquation)

		maxDev = 0
		for bus := 0; bus < n; bus++ {
			for p := 0; p < dim; p++ {
				base := 4 * p
				dTheta := real(x[bus*bs+base])
				dVoverV := real(x[bus*bs+base+1])
				theta[bus][p] += dTheta
				dV := vmag[bus][p] * dVoverV
				vmag[bus][p] += dV
				if d := math.Hypot(dTheta*vmag[bus][p], dV); d > maxDev {
					maxDev = d
				}
			}
		}

		if !hasAngle {
			gauge := theta[in.Topo.SlackBus][0]
			for bus := 0; bus < n; bus++ {
				for p := 0; p < dim; p++ {
					theta[bus][p] -= gauge
				}
			}
		}

		log.LogValue(pgmlog.IterateUnknown, maxDev)
		if maxDev <= opt.Tolerance {
			break
		}
	}
	if iter >= opt.MaxIter {
		log.LogCount(pgmlog.MaxNumIter, iter)
		return nil, &pgmerr.IterationDiverge{Iterations: iter, MaxDev: maxDev, Tolerance: opt.Tolerance}
	}

	u := make([]pgmtypes.PhaseVector, n)
	for bus := 0; bus < n; bus++ {
		u[bus] = make(pgmtypes.PhaseVector, dim)
		for p := 0; p < dim; p++ {
			u[bus][p] = cmplx.Rect(vmag[bus][p], theta[bus][p])
		}
	}

	injection, branchFlow, shuntFlow := postProcess(in.YBus, in.Topo.BranchBusIdx, shuntBus, u)
	sourceOut := sourceOutputs(sym, u, sourceBus, in.YBus.Param.Source)
	loadGenOut := seLoadGenOutputs(sym, in.Topo, injection, in.Measured)

	return &SolverOutput{
		Voltage: u, Injection: injection, BranchFlow: branchFlow, ShuntFlow: shuntFlow,
		SourceOutput: sourceOut, LoadGenOutput: loadGenOut, Iterations: iter + 1, MaxDeviation: maxDev,
	}, nil
}

// fillSEGainJacobian writes the Q-block (φ_P,φ_Q rows against θ,V columns)
// of one (bus, phase) row's state estimation gain matrix, reusing
// fillJacobianRow's exact H/N/M/L math at the Lagrange-multiplier block's
// different sub-offsets: base=4*phase, with h at (base+2,base+0), n at
// (base+2,base+1), m at (base+3,base+0), l at (base+3,base+1).
func fillSEGainJacobian(yb *ybus.YBus, data []sparselu.Block, bus, phase, dim int, theta, vmag [][]float64, calcP, calcQ float64) {
	r := yb.Structure.Range(bus)
	luRow := yb.Structure.LU.RowPtr[bus]
	luEnd := yb.Structure.LU.RowPtr[bus+1]
	for e := r.Begin; e < r.End; e++ {
		j := yb.Structure.ColIdx[e]
		luIdx := -1
		for k := luRow; k < luEnd; k++ {
			if yb.Structure.LU.ColIdx[k] == j {
				luIdx = k
				break
			}
		}
		if luIdx == -1 {
			continue
		}
		y := yb.Values[e].At(dim, phase, phase)
		g, b := real(y), imag(y)

		var h, nn, m, l float64
		if j == bus {
			h = -calcQ - b*vmag[bus][phase]*vmag[bus][phase]
			nn = calcP + g*vmag[bus][phase]*vmag[bus][phase]
			m = calcP - g*vmag[bus][phase]*vmag[bus][phase]
			l = calcQ - b*vmag[bus][phase]*vmag[bus][phase]
		} else {
			thetaIJ := theta[bus][phase] - theta[j][phase]
			sinT, cosT := math.Sin(thetaIJ), math.Cos(thetaIJ)
			vivj := vmag[bus][phase] * vmag[j][phase]
			h = vivj * (g*sinT - b*cosT)
			nn = vivj * (g*cosT + b*sinT)
			m = -nn
			l = h
		}
		base := 4 * phase
		data[luIdx].Add1(base+2, base+0, complex(h, 0))
		data[luIdx].Add1(base+2, base+1, complex(nn, 0))
		data[luIdx].Add1(base+3, base+0, complex(m, 0))
		data[luIdx].Add1(base+3, base+1, complex(l, 0))
	}
}

// fillSEQuasiTranspose fills the QT sub-block (θ,V rows against φ_P,φ_Q
// columns) of every LU entry from the opposite entry's already-filled Q
// sub-block, the second pass spec.md §4.7.5's gain matrix needs (mirroring
// PowerGridModel's fill_qt()): QT[i][j] = Q[j][i] of the transposed entry.
func fillSEQuasiTranspose(lu *sparselu.Pattern, dim int, data []sparselu.Block) {
	n := lu.N
	for bus := 0; bus < n; bus++ {
		for e := lu.RowPtr[bus]; e < lu.RowPtr[bus+1]; e++ {
			j := lu.ColIdx[e]
			t := transposeEntry(lu, bus, j)
			if t == -1 {
				continue
			}
			for p := 0; p < dim; p++ {
				base := 4 * p
				data[e].Set(base+0, base+2, data[t].At(base+2, base+0))
				data[e].Set(base+0, base+3, data[t].At(base+3, base+0))
				data[e].Set(base+1, base+2, data[t].At(base+2, base+1))
				data[e].Set(base+1, base+3, data[t].At(base+3, base+1))
			}
		}
	}
}
