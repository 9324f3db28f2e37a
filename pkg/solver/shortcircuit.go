package solver

import (
	"math/cmplx"

	"github.com/voltgrid/pgm-core/internal/consts"
	"github.com/voltgrid/pgm-core/pkg/component"
	"github.com/voltgrid/pgm-core/pkg/pgmerr"
	"github.com/voltgrid/pgm-core/pkg/pgmlog"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// RunShortCircuit implements spec.md §4.7.6's IEC-60909 solver: fold active
// source admittances onto the Y-bus diagonal (and their reference voltages
// onto the RHS), then for each fault either add a finite admittance to the
// selected phase pattern's diagonal or force that phase's voltage to zero
// (bolted fault) by zeroing its row and pinning the diagonal to -1; solve
// once via block LU and post-process fault/source/branch/shunt results.
func RunShortCircuit(in *ShortCircuitInput, log *pgmlog.Logger) (*ShortCircuitSolverOutput, error) {
	sym := in.YBus.Param.Sym
	dim := sym.NDim()
	n := in.Topo.NBus
	bs := dim

	if err := checkUniformFaultShape(in.Faults); err != nil {
		return nil, err
	}

	sourceBus := ybus.BusOfOffsets(in.Topo.SourcesPerBus)
	shuntBus := ybus.BusOfOffsets(in.Topo.ShuntsPerBus)

	data := in.YBus.NewLUData(bs)
	rhs := make([]complex128, n*bs)

	log.Log(pgmlog.PrepareMatrix)

	diagLU := in.YBus.Structure.LU.DiagLU
	for k, sp := range in.YBus.Param.Source {
		bus := sourceBus[k]
		ybus.AddToBlock(data, diagLU[bus], dim, sp.Y)
		contrib := sp.Y.MulVec(sp.URef)
		for p := 0; p < dim; p++ {
			rhs[bus*bs+p] += contrib[p]
		}
	}

	luRowRange := func(bus int) (lo, hi int) {
		return in.YBus.Structure.LU.RowPtr[bus], in.YBus.Structure.LU.RowPtr[bus+1]
	}

	for _, f := range in.Faults {
		phases := affectedPhases(dim, f.Type, f.Phase)
		bus := f.Bus
		if f.Bolted {
			lo, hi := luRowRange(bus)
			for e := lo; e < hi; e++ {
				col := in.YBus.Structure.LU.ColIdx[e]
				for _, p := range phases {
					for c := 0; c < dim; c++ {
						if col == bus && c == p {
							data[e].Set(p, c, -1)
						} else {
							data[e].Set(p, c, 0)
						}
					}
				}
			}
			for _, p := range phases {
				rhs[bus*bs+p] = 0
			}
		} else {
			for _, p := range phases {
				data[diagLU[bus]].Add1(p, p, f.Admittance)
			}
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

	faultCurrent := make([]pgmtypes.PhaseVector, len(in.Faults))
	for k, f := range in.Faults {
		phases := affectedPhases(dim, f.Type, f.Phase)
		ic := make(pgmtypes.PhaseVector, dim)
		if f.Bolted {
			// Bolted-fault current compensates the node's net source
			// injection: sum of what would otherwise have flowed in.
			for p := range ic {
				ic[p] = 0
			}
			for _, p := range phases {
				if cmplx.Abs(u[f.Bus][p]) < consts.PerUnitEpsilon {
					continue
				}
				ic[p] = -injection[f.Bus][p] / u[f.Bus][p]
			}
		} else {
			for _, p := range phases {
				ic[p] = f.Admittance * u[f.Bus][p]
			}
		}
		faultCurrent[k] = ic
	}

	return &ShortCircuitSolverOutput{
		SolverOutput: SolverOutput{
			Voltage: u, Injection: injection, BranchFlow: branchFlow, ShuntFlow: shuntFlow,
			SourceOutput: sourceOut, Iterations: 1,
		},
		FaultCurrent: faultCurrent,
	}, nil
}

func checkUniformFaultShape(faults []FaultInput) error {
	if len(faults) == 0 {
		return nil
	}
	ft, fp := faults[0].Type, faults[0].Phase
	for _, f := range faults[1:] {
		if f.Type != ft || f.Phase != fp {
			return &pgmerr.InvalidShortCircuitPhaseOrType{}
		}
	}
	return nil
}

// affectedPhases maps a fault's type/phase selector to the set of
// diagonal-phase indices it touches. Symmetric mode has only the one
// (positive-sequence) phase, so every fault touches it regardless of type.
func affectedPhases(dim int, ft component.FaultType, fp component.FaultPhase) []int {
	if dim == 1 {
		return []int{0}
	}
	switch ft {
	case component.FaultThreePhase:
		return []int{0, 1, 2}
	case component.FaultSinglePhaseToGround:
		return []int{phaseIndex(fp)}
	default: // two-phase, two-phase-to-ground: the two phases NOT selected
		idx := phaseIndex(fp)
		out := make([]int, 0, 2)
		for p := 0; p < 3; p++ {
			if p != idx {
				out = append(out, p)
			}
		}
		return out
	}
}

func phaseIndex(fp component.FaultPhase) int {
	switch fp {
	case component.FaultPhaseB:
		return 1
	case component.FaultPhaseC:
		return 2
	default:
		return 0
	}
}
