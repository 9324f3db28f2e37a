package measurement_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pgm-core/pkg/idxvec"
	"github.com/voltgrid/pgm-core/pkg/measurement"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

func oneBusOneLoadTopo() *topology.MathTopology {
	return &topology.MathTopology{
		NBus:                 1,
		SlackBus:             0,
		VoltageSensorsPerBus: idxvec.NewOffsets([]int{0, 1}),
		LoadGensPerBus:       idxvec.NewOffsets([]int{0, 1}),
		SourcesPerBus:        idxvec.NewOffsets([]int{0, 0}),
		ShuntsPerBus:         idxvec.NewOffsets([]int{0, 0}),
	}
}

func TestAggregateFusesSinglePhasorVoltage(t *testing.T) {
	topo := oneBusOneLoadTopo()
	in := &measurement.Input{
		Topo:           topo,
		Voltage:        []measurement.VoltageSensorInput{{Value: complex(1.0, 0.01), VarRe: 1e-4, VarIm: 1e-4}},
		LoadGenSensors: [][]measurement.ApplianceSensorInput{{{Value: complex(0.5, 0.1), VarRe: 1e-4, VarIm: 1e-4}}},
	}
	mv, err := measurement.Aggregate(in)
	require.NoError(t, err)
	assert.True(t, mv.Bus[0].HasPhasor)
	assert.InDelta(t, 1.0, real(mv.Bus[0].Voltage), 1e-9)
	assert.True(t, mv.LoadGen[0].Measured)
}

func TestAggregateMagnitudeOnlyVoltageSentinel(t *testing.T) {
	topo := oneBusOneLoadTopo()
	in := &measurement.Input{
		Topo:           topo,
		Voltage:        []measurement.VoltageSensorInput{{Value: complex(1.0, math.NaN()), VarRe: 1e-4}},
		LoadGenSensors: [][]measurement.ApplianceSensorInput{{}},
	}
	mv, err := measurement.Aggregate(in)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(imag(mv.Bus[0].Voltage)))
	assert.InDelta(t, 1.0, real(mv.Bus[0].Voltage), 1e-9)
}

func TestAggregateUnmeasuredApplianceLeavesAllAppliancesFalse(t *testing.T) {
	topo := oneBusOneLoadTopo()
	in := &measurement.Input{
		Topo:           topo,
		Voltage:        []measurement.VoltageSensorInput{{Value: complex(1, 0), VarRe: 1e-4, VarIm: 1e-4}},
		LoadGenSensors: [][]measurement.ApplianceSensorInput{{}},
	}
	mv, err := measurement.Aggregate(in)
	require.NoError(t, err)
	assert.False(t, mv.LoadGen[0].Measured)
	assert.Equal(t, 1, mv.Bus[0].UnmeasuredAppliances)
	assert.True(t, math.IsInf(mv.Bus[0].VarInjectionRe, 1))
}

func TestFuseBranchCurrentRejectsMixedAngleTypes(t *testing.T) {
	topo := &topology.MathTopology{
		NBus:         2,
		BranchBusIdx: [][2]int{{0, 1}},
	}
	in := &measurement.Input{
		Topo: topo,
		BranchCurrent: [][2][]measurement.CurrentSensorInput{
			{
				{
					{AxisSample: measurement.AxisSample{Value: complex(1, 0), VarRe: 1e-4, VarIm: 1e-4}, LocalAngle: true},
					{AxisSample: measurement.AxisSample{Value: complex(1, 0), VarRe: 1e-4, VarIm: 1e-4}, LocalAngle: false},
				},
				{},
			},
		},
	}
	_, err := measurement.Aggregate(in)
	require.Error(t, err)
}

func TestLinearizeVoltageKeepsIterationWhenUnmeasured(t *testing.T) {
	bus := []measurement.BusMeasurement{{VarVoltageRe: math.Inf(1), VarVoltageIm: math.Inf(1)}}
	uk := []complex128{complex(0.95, 0.02)}
	out := measurement.LinearizeVoltage(bus, uk)
	assert.Equal(t, uk[0], out[0])
}

func TestDisaggregateSplitsResidualAmongUnmeasured(t *testing.T) {
	topo := &topology.MathTopology{
		NBus:           1,
		LoadGensPerBus: idxvec.NewOffsets([]int{0, 2}),
	}
	loadGen := []measurement.ApplianceMeasurement{
		{Value: complex(1, 0), Measured: true},
		{Measured: false},
	}
	solved := []complex128{complex(3, 0)}
	_, out := measurement.Disaggregate(topo, solved, nil, loadGen)
	assert.InDelta(t, 1.0, real(out[0]), 1e-9)
	assert.InDelta(t, 2.0, real(out[1]), 1e-9)
}
