package sparselu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pgm-core/pkg/sparselu"
)

// tridiagPattern builds the symbolic pattern of an n x n tridiagonal matrix
// (no fill-in), with DiagLU pointing at each row's middle entry.
func tridiagPattern(n int) *sparselu.Pattern {
	rowPtr := make([]int, n+1)
	var colIdx []int
	diagLU := make([]int, n)
	for i := 0; i < n; i++ {
		rowPtr[i] = len(colIdx)
		if i > 0 {
			colIdx = append(colIdx, i-1)
		}
		diagLU[i] = len(colIdx)
		colIdx = append(colIdx, i)
		if i < n-1 {
			colIdx = append(colIdx, i+1)
		}
	}
	rowPtr[n] = len(colIdx)
	return &sparselu.Pattern{N: n, RowPtr: rowPtr, ColIdx: colIdx, DiagLU: diagLU}
}

func TestScalarSolveTridiagonal(t *testing.T) {
	pattern := tridiagPattern(3)
	m := sparselu.NewMatrix(pattern, 1)

	set := func(row, col int, v complex128) {
		for idx := pattern.RowPtr[row]; idx < pattern.RowPtr[row+1]; idx++ {
			if pattern.ColIdx[idx] == col {
				m.Data[idx].Set(0, 0, v)
				return
			}
		}
		t.Fatalf("no entry (%d,%d) in pattern", row, col)
	}
	// A = [[2,-1,0],[-1,2,-1],[0,-1,2]], x = [1,1,1] => rhs = [1,0,1]
	set(0, 0, 2)
	set(0, 1, -1)
	set(1, 0, -1)
	set(1, 1, 2)
	set(1, 2, -1)
	set(2, 1, -1)
	set(2, 2, 2)

	require.NoError(t, m.Prefactorize(false))
	rhs := []complex128{1, 0, 1}
	x := make([]complex128, 3)
	require.NoError(t, m.SolveWithPrefactorized(rhs, x))

	for i, want := range []complex128{1, 1, 1} {
		assert.InDelta(t, real(want), real(x[i]), 1e-9)
		assert.InDelta(t, imag(want), imag(x[i]), 1e-9)
	}
}

// blockPattern builds a 2x2 block-row pattern, both rows fully dense (no
// fill-in needed for a 2-bus system).
func blockPattern() *sparselu.Pattern {
	return &sparselu.Pattern{
		N:      2,
		RowPtr: []int{0, 2, 4},
		ColIdx: []int{0, 1, 0, 1},
		DiagLU: []int{0, 3},
	}
}

func TestBlockSolveTwoBusDiagonalOnly(t *testing.T) {
	pattern := blockPattern()
	m := sparselu.NewMatrix(pattern, 2)

	// Two decoupled 2x2 identity-like blocks on the diagonal, zero
	// off-diagonal coupling, so the expected solution is easy to check by
	// hand: A = diag(2,2,2,2), rhs = [2,4,6,8] => x = [1,2,3,4].
	setDiag := func(blockIdx int, v0, v1 complex128) {
		m.Data[blockIdx].Set(0, 0, v0)
		m.Data[blockIdx].Set(1, 1, v1)
	}
	setDiag(0, 2, 2)
	setDiag(3, 2, 2)

	require.NoError(t, m.Prefactorize(false))
	rhs := []complex128{2, 4, 6, 8}
	x := make([]complex128, 4)
	require.NoError(t, m.SolveWithPrefactorized(rhs, x))

	for i, want := range []float64{1, 2, 3, 4} {
		assert.InDelta(t, want, real(x[i]), 1e-9)
		assert.InDelta(t, 0, imag(x[i]), 1e-9)
	}
}

func TestPrefactorizeRejectsSingularBlockWithoutPerturbation(t *testing.T) {
	pattern := &sparselu.Pattern{N: 1, RowPtr: []int{0, 1}, ColIdx: []int{0}, DiagLU: []int{0}}
	m := sparselu.NewMatrix(pattern, 2)
	// Rank-1 2x2 block (row 1 = 0.5 * row 0): singular, so after
	// elimination the second pivot collapses to exactly 0.
	m.Data[0].Set(0, 0, 2)
	m.Data[0].Set(0, 1, 1)
	m.Data[0].Set(1, 0, 1)
	m.Data[0].Set(1, 1, 0.5)

	err := m.Prefactorize(false)
	require.Error(t, err)
}
