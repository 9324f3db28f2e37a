package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pgm-core/pkg/topology"
)

// radialThreeBus builds: node0 --branch0-- node1 --branch1-- node2, with a
// source at node0 and a shunt at node2.
func radialThreeBus() (*topology.ComponentTopology, *topology.ComponentConnection) {
	topo := &topology.ComponentTopology{
		NumNode: 3,
		BranchNode: [][2]topology.NodeIdx{
			{0, 1},
			{1, 2},
		},
		ApplianceNode: []topology.NodeIdx{0, 2},
		ApplianceKind: []topology.ApplianceKind{topology.ApplianceSource, topology.ApplianceShunt},
	}
	conn := &topology.ComponentConnection{
		BranchStatus:     [][2]bool{{true, true}, {true, true}},
		BranchPhaseShift: []float64{0, 0},
		SourceActive:     []bool{true},
	}
	return topo, conn
}

func TestReduceRadialThreeBusSingleModel(t *testing.T) {
	topo, conn := radialThreeBus()
	models, coupling := topology.Reduce(topo, conn)

	require.Len(t, models, 1)
	m := models[0]
	assert.Equal(t, 3, m.NBus)
	assert.True(t, m.IsRadial)
	assert.Empty(t, m.FillIn)
	assert.Equal(t, m.NBus-1, m.SlackBus)

	// node 0 hosts the active source, so its coupling group must match the
	// single emitted model.
	assert.Equal(t, 0, coupling.Node[0].Group)
	assert.Equal(t, m.SlackBus, coupling.Node[0].Pos)

	require.Len(t, m.BranchBusIdx, 2)
	assert.Equal(t, 1, m.ShuntsPerBus.ElementSize())
}

func TestReduceDropsUnenergizedComponent(t *testing.T) {
	topo, conn := radialThreeBus()
	// Add a fourth, isolated node with no source.
	topo.NumNode = 4
	conn.SourceActive = []bool{true}

	models, coupling := topology.Reduce(topo, conn)
	require.Len(t, models, 1)
	assert.Equal(t, topology.Unenergized, coupling.Node[3].Group)
	assert.Equal(t, topology.Unenergized, coupling.Node[3].Pos)
}

func TestReduceMeshedGroupGetsFillIn(t *testing.T) {
	// A 4-cycle with a source on node 0.
	topo := &topology.ComponentTopology{
		NumNode: 4,
		BranchNode: [][2]topology.NodeIdx{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
		},
		ApplianceNode: []topology.NodeIdx{0},
		ApplianceKind: []topology.ApplianceKind{topology.ApplianceSource},
	}
	conn := &topology.ComponentConnection{
		BranchStatus:     [][2]bool{{true, true}, {true, true}, {true, true}, {true, true}},
		BranchPhaseShift: []float64{0, 0, 0, 0},
		SourceActive:     []bool{true},
	}

	models, _ := topology.Reduce(topo, conn)
	require.Len(t, models, 1)
	assert.False(t, models[0].IsRadial)
	assert.NotEmpty(t, models[0].FillIn)
}

func TestExpandBranch3CreatesVirtualNode(t *testing.T) {
	topo := &topology.ComponentTopology{
		NumNode: 3,
		Branch3Node: [][3]topology.NodeIdx{
			{0, 1, 2},
		},
		ApplianceNode: []topology.NodeIdx{0},
		ApplianceKind: []topology.ApplianceKind{topology.ApplianceSource},
	}
	conn := &topology.ComponentConnection{
		Branch3Status:     [][3]bool{{true, true, true}},
		Branch3PhaseShift: [][3]float64{{0, -0.5235987755982988, 0.5235987755982988}},
		SourceActive:      []bool{true},
	}

	models, coupling := topology.Reduce(topo, conn)
	require.Len(t, models, 1)
	// 3 user nodes + 1 virtual node = 4 buses.
	assert.Equal(t, 4, models[0].NBus)
	require.Len(t, models[0].BranchBusIdx, 3)
	assert.Equal(t, 0, coupling.Branch3Arm[0][0].Group)
}
