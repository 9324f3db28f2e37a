package graphtopo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pgm-core/pkg/graphtopo"
)

func TestUnionFindBasic(t *testing.T) {
	uf := graphtopo.NewUnionFind(5)
	uf.Union(0, 1)
	uf.Union(1, 2)

	assert.True(t, uf.Connected(0, 2))
	assert.False(t, uf.Connected(0, 3))

	uf.Union(3, 4)
	assert.True(t, uf.Connected(3, 4))
	assert.False(t, uf.Connected(2, 4))
}

func TestBFSReachability(t *testing.T) {
	// 0-1-2   3-4   5 (isolated)
	adj := [][]int{
		{1}, {0, 2}, {1}, {4}, {3}, {},
	}
	reached := graphtopo.BFS(adj, []int{0})
	assert.True(t, reached[0])
	assert.True(t, reached[1])
	assert.True(t, reached[2])
	assert.False(t, reached[3])
	assert.False(t, reached[5])
}

func TestConnectedComponents(t *testing.T) {
	adj := [][]int{
		{1}, {0, 2}, {1}, {4}, {3}, {},
	}
	comp, n := graphtopo.ConnectedComponents(adj)
	require.Equal(t, 3, n)
	assert.Equal(t, comp[0], comp[1])
	assert.Equal(t, comp[1], comp[2])
	assert.Equal(t, comp[3], comp[4])
	assert.NotEqual(t, comp[0], comp[3])
	assert.NotEqual(t, comp[0], comp[5])
}

func TestMinDegreeOrderNoFillInOnTree(t *testing.T) {
	// A path graph 0-1-2-3 is a tree: eliminating leaves first never
	// introduces fill-in.
	adj := [][]int{
		{1}, {0, 2}, {1, 3}, {2},
	}
	order, fillIns := graphtopo.MinDegreeOrder(adj)
	assert.Len(t, order, 4)
	assert.Empty(t, fillIns)
}

func TestMinDegreeOrderProducesFillInOnCycle(t *testing.T) {
	// A 4-cycle requires at least one fill-in edge when eliminated down to
	// a single edge.
	adj := [][]int{
		{1, 3}, {0, 2}, {1, 3}, {0, 2},
	}
	order, fillIns := graphtopo.MinDegreeOrder(adj)
	assert.Len(t, order, 4)
	assert.NotEmpty(t, fillIns)
}

func TestMinDegreeOrderPinLastKeepsPinnedAtEnd(t *testing.T) {
	// Vertex 1 has the lowest degree (2, tied with 3 and first by index), so
	// unpinned minimum-degree ordering would eliminate it first; pinning it
	// must still push it to the end.
	adj := [][]int{
		{1, 2, 3}, {0, 2}, {0, 1, 3}, {0, 2},
	}
	order, _ := graphtopo.MinDegreeOrderPinLast(adj, 1)
	require.Len(t, order, 4)
	assert.Equal(t, 1, order[len(order)-1])
}
