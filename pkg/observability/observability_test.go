package observability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pgm-core/pkg/observability"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

func TestCheckFailsWithNoVoltageSensor(t *testing.T) {
	in := &observability.Input{
		Topo: &topology.MathTopology{NBus: 2, IsRadial: true, BranchBusIdx: [][2]int{{0, 1}}},
	}
	err := observability.Check(in)
	require.Error(t, err)
}

func TestCheckFailsOnInsufficientCount(t *testing.T) {
	in := &observability.Input{
		Topo:               &topology.MathTopology{NBus: 5, IsRadial: true, BranchBusIdx: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}}},
		VoltagePhasorCount: 1,
	}
	err := observability.Check(in)
	require.Error(t, err)
}

func TestCheckPassesOnRadialTwoBusWithBranchSensor(t *testing.T) {
	topo := &topology.MathTopology{
		NBus:         2,
		SlackBus:     1,
		IsRadial:     true,
		BranchBusIdx: [][2]int{{0, 1}},
	}
	in := &observability.Input{
		Topo:               topo,
		VoltagePhasorCount: 1,
		FlowSensorCount:    1,
		BranchMeasured:     []bool{true},
		BusPhasorMeasured:  []bool{true, false},
	}
	err := observability.Check(in)
	assert.NoError(t, err)
}

func TestCheckRadialRedistributesInjectionOntoUnmeasuredBranch(t *testing.T) {
	topo := &topology.MathTopology{
		NBus:         2,
		SlackBus:     1,
		IsRadial:     true,
		BranchBusIdx: [][2]int{{0, 1}},
	}
	in := &observability.Input{
		Topo:                 topo,
		VoltagePhasorCount:   1,
		InjectionSensorCount: 1,
		BranchMeasured:       []bool{false},
		BusPhasorMeasured:    []bool{true, false},
		BusInjectionMeasured: []bool{true, false},
	}
	err := observability.Check(in)
	assert.NoError(t, err)
}

func TestCheckRadialFailsWhenBranchNeverDiscovered(t *testing.T) {
	topo := &topology.MathTopology{
		NBus:         2,
		SlackBus:     1,
		IsRadial:     true,
		BranchBusIdx: [][2]int{{0, 1}},
	}
	in := &observability.Input{
		Topo:                 topo,
		VoltagePhasorCount:   1,
		InjectionSensorCount: 1,
		FlowSensorCount:      1,
		BranchMeasured:       []bool{false},
		BusPhasorMeasured:    []bool{false, true},
		BusInjectionMeasured: []bool{false, false},
	}
	err := observability.Check(in)
	require.Error(t, err)
}

func TestCheckMeshedFindsSpanningTreeViaNativeMeasurements(t *testing.T) {
	topo := &topology.MathTopology{
		NBus:         3,
		SlackBus:     0,
		IsRadial:     false,
		BranchBusIdx: [][2]int{{0, 1}, {1, 2}, {0, 2}},
	}
	in := &observability.Input{
		Topo:                 topo,
		VoltagePhasorCount:   1,
		FlowSensorCount:      2,
		InjectionSensorCount: 0,
		BranchMeasured:       []bool{true, true, false},
		BusPhasorMeasured:    []bool{true, false, false},
		BusInjectionMeasured: []bool{false, false, false},
	}
	err := observability.Check(in)
	assert.NoError(t, err)
}
