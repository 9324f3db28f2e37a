package solver

import (
	"math"
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/component"
	"github.com/voltgrid/pgm-core/pkg/pgmerr"
	"github.com/voltgrid/pgm-core/pkg/pgmlog"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// RunNewtonRaphsonPF implements spec.md §4.7.3. Unknowns are polar (θ_i,
// V_i) per bus, per phase (block size 2 in symmetric mode, 6 in asymmetric
// — one (θ,V) pair per phase, phases decoupled in the Jacobian since the
// per-phase Y entries this core tracks carry no explicit inter-phase
// mutual term). Constant-Y loads and source Thevenin admittances are
// folded into the diagonal once, exactly as in linear PF, since they are
// already linear in U and need no Newton correction; constant-PQ and
// constant-I loads contribute a target power re-evaluated at the start of
// each iteration from the current voltage estimate (their own Jacobian
// sensitivity is not tracked separately — a deliberate simplification
// recorded in DESIGN.md, trading a little convergence speed for a single
// shared Jacobian shape with the other solvers).
func RunNewtonRaphsonPF(in *PowerFlowInput, opt CalculationOptions, log *pgmlog.Logger) (*SolverOutput, error) {
	sym := in.YBus.Param.Sym
	dim := sym.NDim()
	n := in.Topo.NBus
	bs := 2 * dim

	loadGenBus := ybus.BusOfOffsets(in.Topo.LoadGensPerBus)
	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)
	shuntBus := ybus.BusOfOffsets(in.Topo.ShuntsPerBus)

	yPrime := foldLinearLoadsAndSources(in, sym)

	theta := make([][]float64, n)
	vmag := make([][]float64, n)
	u := initialVoltage(in.Topo, in.YBus.Param.Source, sourceBus, sym)
	for bus := 0; bus < n; bus++ {
		theta[bus] = make([]float64, dim)
		vmag[bus] = make([]float64, dim)
		for p := 0; p < dim; p++ {
			theta[bus][p] = cmplx.Phase(u[bus][p])
			vmag[bus][p] = cmplx.Abs(u[bus][p])
		}
	}

	var maxDev float64
	iter := 0
	for ; iter < opt.MaxIter; iter++ {
		for bus := 0; bus < n; bus++ {
			for p := 0; p < dim; p++ {
				u[bus][p] = cmplx.Rect(vmag[bus][p], theta[bus][p])
			}
		}
		targetP, targetQ := nonlinearLoadTargets(in, sym, loadGenBus, u)

		data := make([]sparselu.Block, yPrime.Structure.LU.NNZ())
		for i := range data {
			data[i] = sparselu.NewBlock(bs)
		}
		rhs := make([]complex128, n*bs)

		for bus := 0; bus < n; bus++ {
			for p := 0; p < dim; p++ {
				calcP, calcQ := calcPQ(yPrime, bus, p, theta, vmag)
				rhs[bus*bs+2*p] = complex(targetP[bus][p]-calcP, 0)
				rhs[bus*bs+2*p+1] = complex(targetQ[bus][p]-calcQ, 0)
				fillJacobianRow(yPrime, data, bus, p, dim, theta, vmag, calcP, calcQ)
			}
		}

		mat := &sparselu.Matrix{Pattern: yPrime.Structure.LU, BlockSize: bs, Data: data}
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
				dTheta := real(x[bus*bs+2*p])
				dVoverV := real(x[bus*bs+2*p+1])
				theta[bus][p] += dTheta
				dV := vmag[bus][p] * dVoverV
				vmag[bus][p] += dV
				if d := math.Hypot(dTheta*vmag[bus][p], dV); d > maxDev {
					maxDev = d
				}
			}
		}
		log.LogValue(pgmlog.IterateUnknown, maxDev)
		if maxDev <= opt.Tolerance {
			break
		}
	}
	if iter >= opt.MaxIter {
		log.LogCount(pgmlog.IterativePFSolverMaxNumIter, iter)
		return nil, &pgmerr.IterationDiverge{Iterations: iter, MaxDev: maxDev, Tolerance: opt.Tolerance}
	}

	for bus := 0; bus < n; bus++ {
		for p := 0; p < dim; p++ {
			u[bus][p] = cmplx.Rect(vmag[bus][p], theta[bus][p])
		}
	}

	injection, branchFlow, shuntFlow := postProcess(in.YBus, in.Topo.BranchBusIdx, shuntBus, u)
	sourceOut := sourceOutputs(sym, u, sourceBus, in.YBus.Param.Source)
	loadGenOut := linearLoadGenOutputs(sym, u, loadGenBus, in.LoadGen)

	return &SolverOutput{
		Voltage: u, Injection: injection, BranchFlow: branchFlow, ShuntFlow: shuntFlow,
		SourceOutput: sourceOut, LoadGenOutput: loadGenOut, Iterations: iter + 1, MaxDeviation: maxDev,
	}, nil
}

// foldLinearLoadsAndSources builds the permanent network Y (branch+shunt
// entries as already assembled, plus constant-Y loads and source Thevenin
// admittances added to the diagonal) that the NR iteration's Jacobian and
// power-mismatch calculation treat as fixed across iterations.
func foldLinearLoadsAndSources(in *PowerFlowInput, sym pgmtypes.Symmetry) *ybus.YBus {
	yPrime := &ybus.YBus{Structure: in.YBus.Structure, Param: in.YBus.Param, Values: append([]pgmtypes.PhaseMatrix(nil), in.YBus.Values...)}
	loadGenBus := ybus.BusOfOffsets(in.Topo.LoadGensPerBus)
	for k, lg := range in.LoadGen {
		if lg.Type != component.ConstY {
			continue
		}
		bus := loadGenBus[k]
		r := yPrime.Structure.Range(bus)
		for e := r.Begin; e < r.End; e++ {
			if yPrime.Structure.ColIdx[e] == bus {
				yPrime.Values[e] = yPrime.Values[e].Add(loadAdmittance(sym, lg.RatedPower))
				break
			}
		}
	}
	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)
	for k, sp := range in.YBus.Param.Source {
		bus := sourceBus[k]
		r := yPrime.Structure.Range(bus)
		for e := r.Begin; e < r.End; e++ {
			if yPrime.Structure.ColIdx[e] == bus {
				yPrime.Values[e] = yPrime.Values[e].Add(sp.Y)
				break
			}
		}
	}
	return yPrime
}

// nonlinearLoadTargets evaluates every non-constant-Y load's contribution
// to the target power injection at the current voltage estimate (constant
// within the coming iteration's Jacobian), plus the constant source
// reference-voltage contribution folded in once.
func nonlinearLoadTargets(in *PowerFlowInput, sym pgmtypes.Symmetry, loadGenBus []int, u []pgmtypes.PhaseVector) (targetP, targetQ [][]float64) {
	dim := sym.NDim()
	n := in.Topo.NBus
	targetP = make([][]float64, n)
	targetQ = make([][]float64, n)
	for i := range targetP {
		targetP[i] = make([]float64, dim)
		targetQ[i] = make([]float64, dim)
	}
	for k, lg := range in.LoadGen {
		if lg.Type == component.ConstY {
			continue
		}
		bus := loadGenBus[k]
		i := injectionCurrent(lg, u[bus])
		for p := 0; p < dim; p++ {
			s := u[bus][p] * cmplx.Conj(i[p])
			targetP[bus][p] += real(s)
			targetQ[bus][p] += imag(s)
		}
	}
	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)
	for k, sp := range in.YBus.Param.Source {
		bus := sourceBus[k]
		contrib := sp.Y.MulVec(sp.URef)
		for p := 0; p < dim; p++ {
			s := u[bus][p] * cmplx.Conj(contrib[p])
			targetP[bus][p] += real(s)
			targetQ[bus][p] += imag(s)
		}
	}
	return targetP, targetQ
}

// calcPQ computes the network-calculated real/reactive injection at
// (bus, phase) from the folded Y, spec.md §4.7.3's standard polar
// power-flow sum.
func calcPQ(yb *ybus.YBus, bus, phase int, theta, vmag [][]float64) (p, q float64) {
	dim := yb.Param.Sym.NDim()
	r := yb.Structure.Range(bus)
	for e := r.Begin; e < r.End; e++ {
		j := yb.Structure.ColIdx[e]
		y := yb.Values[e].At(dim, phase, phase)
		g, b := real(y), imag(y)
		thetaIJ := theta[bus][phase] - theta[j][phase]
		sinT, cosT := math.Sin(thetaIJ), math.Cos(thetaIJ)
		vivj := vmag[bus][phase] * vmag[j][phase]
		p += vivj * (g*cosT + b*sinT)
		q += vivj * (g*sinT - b*cosT)
	}
	return p, q
}

// fillJacobianRow writes the H/N/M/L blocks of spec.md §4.7.3 for one
// (bus, phase) row into data, addressing the phase's own 2x2 sub-block
// within the bus's 2*dim-sized block (phases are Jacobian-decoupled).
func fillJacobianRow(yb *ybus.YBus, data []sparselu.Block, bus, phase, dim int, theta, vmag [][]float64, calcP, calcQ float64) {
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
		row := 2 * phase
		data[luIdx].Add1(row, row, complex(h, 0))
		data[luIdx].Add1(row, row+1, complex(nn, 0))
		data[luIdx].Add1(row+1, row, complex(m, 0))
		data[luIdx].Add1(row+1, row+1, complex(l, 0))
	}
}
