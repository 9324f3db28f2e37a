package ybus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pgm-core/pkg/idxvec"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/topology"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// twoBusTopology builds a radial 2-bus model: bus 0 -- branch 0 -- bus 1,
// with one shunt on bus 1, no fill-in.
func twoBusTopology() *topology.MathTopology {
	return &topology.MathTopology{
		NBus:         2,
		SlackBus:     1,
		BranchBusIdx: [][2]int{{0, 1}},
		PhaseShift:   []float64{0, 0},
		IsRadial:     true,
		ShuntsPerBus: idxvec.NewOffsets([]int{0, 0, 1}),
	}
}

func TestBuildStructurePhysicalPatternHasNoFillIn(t *testing.T) {
	topo := twoBusTopology()
	s := ybus.BuildStructure(topo)

	// Physical pattern: (0,0) ff, (0,1) ft, (1,0) tf, (1,1) tt+shunt.
	assert.Equal(t, 4, len(s.ColIdx))
	assert.Equal(t, 4, s.LU.NNZ())
}

func TestValueAssemblySumsBranchAndShunt(t *testing.T) {
	topo := twoBusTopology()
	s := ybus.BuildStructure(topo)

	param := &ybus.MathParam{
		Sym: pgmtypes.Symmetric,
		Branch: []pgmtypes.AdmittanceBlock{{
			YFF: pgmtypes.ScalarMatrix(complex(2, 0)),
			YFT: pgmtypes.ScalarMatrix(complex(-2, 0)),
			YTF: pgmtypes.ScalarMatrix(complex(-2, 0)),
			YTT: pgmtypes.ScalarMatrix(complex(2, 0)),
		}},
		Shunt: []pgmtypes.PhaseMatrix{pgmtypes.ScalarMatrix(complex(0, 1))},
	}
	yb := ybus.New(s, param)

	r := s.Range(1)
	var diag pgmtypes.PhaseMatrix
	for e := r.Begin; e < r.End; e++ {
		if s.ColIdx[e] == 1 {
			diag = yb.Values[e]
		}
	}
	require.NotNil(t, diag)
	assert.InDelta(t, 2.0, real(diag[0]), 1e-9)
	assert.InDelta(t, 1.0, imag(diag[0]), 1e-9)
}

func TestUpdateBranchesRecomputesAndNotifies(t *testing.T) {
	topo := twoBusTopology()
	s := ybus.BuildStructure(topo)
	param := &ybus.MathParam{
		Sym: pgmtypes.Symmetric,
		Branch: []pgmtypes.AdmittanceBlock{{
			YFF: pgmtypes.ScalarMatrix(complex(2, 0)),
			YFT: pgmtypes.ScalarMatrix(complex(-2, 0)),
			YTF: pgmtypes.ScalarMatrix(complex(-2, 0)),
			YTT: pgmtypes.ScalarMatrix(complex(2, 0)),
		}},
		Shunt: []pgmtypes.PhaseMatrix{pgmtypes.ScalarMatrix(0)},
	}
	yb := ybus.New(s, param)

	fired := false
	yb.Subscribe(func() { fired = true })

	param.Branch[0].YFF = pgmtypes.ScalarMatrix(complex(5, 0))
	yb.UpdateBranches([]int{0})

	assert.True(t, fired)
	r := s.Range(0)
	for e := r.Begin; e < r.End; e++ {
		if s.ColIdx[e] == 0 {
			assert.InDelta(t, 5.0, real(yb.Values[e][0]), 1e-9)
		}
	}
}

func TestCalculateInjectionMatchesHandComputation(t *testing.T) {
	topo := twoBusTopology()
	s := ybus.BuildStructure(topo)
	param := &ybus.MathParam{
		Sym: pgmtypes.Symmetric,
		Branch: []pgmtypes.AdmittanceBlock{{
			YFF: pgmtypes.ScalarMatrix(complex(2, 0)),
			YFT: pgmtypes.ScalarMatrix(complex(-2, 0)),
			YTF: pgmtypes.ScalarMatrix(complex(-2, 0)),
			YTT: pgmtypes.ScalarMatrix(complex(2, 0)),
		}},
		Shunt: []pgmtypes.PhaseMatrix{pgmtypes.ScalarMatrix(0)},
	}
	yb := ybus.New(s, param)

	u := []pgmtypes.PhaseVector{
		pgmtypes.ScalarVector(complex(1, 0)),
		pgmtypes.ScalarVector(complex(0.9, 0)),
	}
	s_bus := yb.CalculateInjection(u)

	// I_0 = 2*1 - 2*0.9 = 0.2; S_0 = 1 * conj(0.2) = 0.2
	assert.InDelta(t, 0.2, real(s_bus[0][0]), 1e-9)
}
