package pgmtypes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
)

func TestSymmetricVectorOps(t *testing.T) {
	a := pgmtypes.ScalarVector(complex(1, 2))
	b := pgmtypes.ScalarVector(complex(3, -1))

	sum := a.Add(b)
	assert.Equal(t, complex(4, 1), sum[0])

	diff := a.Sub(b)
	assert.Equal(t, complex(-2, 3), diff[0])
}

func TestAsymmetricMatVec(t *testing.T) {
	m := pgmtypes.Symmetry(pgmtypes.Asymmetric).Identity()
	v := pgmtypes.AsymmetricVector3(1, 2, 3)
	out := m.MulVec(v)
	assert.Equal(t, v, out)
}

func TestNDimBySymmetry(t *testing.T) {
	assert.Equal(t, 1, pgmtypes.Symmetric.NDim())
	assert.Equal(t, 3, pgmtypes.Asymmetric.NDim())
}

func TestBlockSizeFactor(t *testing.T) {
	assert.Equal(t, 1, pgmtypes.Symmetric.BlockSize(1))
	assert.Equal(t, 2, pgmtypes.Symmetric.BlockSize(2))
	assert.Equal(t, 4, pgmtypes.Symmetric.BlockSize(4))
	assert.Equal(t, 3, pgmtypes.Asymmetric.BlockSize(1))
	assert.Equal(t, 6, pgmtypes.Asymmetric.BlockSize(2))
	assert.Equal(t, 12, pgmtypes.Asymmetric.BlockSize(4))
}

func TestMaxAbsDiff(t *testing.T) {
	a := pgmtypes.AsymmetricVector3(0, 0, 0)
	b := pgmtypes.AsymmetricVector3(3, 4, 0)
	assert.InDelta(t, 5.0, a.MaxAbsDiff(b), 1e-12)
}
