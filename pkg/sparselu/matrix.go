package sparselu

import (
	"github.com/edp1096/sparse"

	"github.com/voltgrid/pgm-core/internal/consts"
	"github.com/voltgrid/pgm-core/pkg/pgmerr"
)

// DefaultPivotThreshold is the relative pivot-acceptance threshold spec.md
// §4.4 calls for ("a tiny threshold (1e-100) to accommodate ill-conditioned
// SE gain matrices").
const DefaultPivotThreshold = consts.PivotThreshold

// Pattern is the symbolic sparsity of the LU factors, shared across many
// factorizations of the same topology (only the numeric Data changes
// between calls). It is provided externally — typically by
// pkg/ybus.YBusStructure's LU CSR, which already carries the symbolic
// fill-ins the factorization will need.
type Pattern struct {
	N        int   // number of block rows/cols
	RowPtr   []int // length N+1
	ColIdx   []int // length nnz, block-column index per entry
	DiagLU   []int // length N, data index of the diagonal entry per row
}

// NNZ returns the number of block entries the pattern describes.
func (p *Pattern) NNZ() int { return p.RowPtr[p.N] }

// findEntry returns the data index of column col within row, searching the
// row's column-sorted slice, or -1 if absent.
func (p *Pattern) findEntry(row, col int) int {
	lo, hi := p.RowPtr[row], p.RowPtr[row+1]
	for lo < hi {
		mid := (lo + hi) / 2
		c := p.ColIdx[mid]
		switch {
		case c == col:
			return mid
		case c < col:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// Matrix is a block CSR matrix over Pattern, ready for in-place
// prefactorization and permuted forward/backward substitution.
type Matrix struct {
	Pattern   *Pattern
	BlockSize int
	Data      []Block

	perms []BlockPerm

	// scalar backs BlockSize==1 matrices with the teacher's own complex
	// sparse solver instead of the hand-rolled block path, reusing its
	// factor/solve directly.
	scalar       *sparse.Matrix
	scalarConfig *sparse.Configuration
}

// NewMatrix allocates a Matrix over pattern with the given uniform block
// size (1, 2, 3, 4, 6 or 12), with all entries zeroed.
func NewMatrix(pattern *Pattern, blockSize int) *Matrix {
	data := make([]Block, pattern.NNZ())
	for i := range data {
		data[i] = NewBlock(blockSize)
	}
	return &Matrix{Pattern: pattern, BlockSize: blockSize, Data: data}
}

// Prefactorize runs spec.md §4.4's prefactorize in place over m.Data. When
// BlockSize==1 it delegates entirely to github.com/edp1096/sparse's own
// complex sparse factorization instead of the block path below.
func (m *Matrix) Prefactorize(allowPerturbation bool) error {
	if m.BlockSize == 1 {
		return m.prefactorizeScalar()
	}
	return m.prefactorizeBlock(allowPerturbation)
}

func (m *Matrix) prefactorizeScalar() error {
	n := m.Pattern.N
	config := &sparse.Configuration{
		Real:           false,
		Complex:        true,
		Expandable:     false,
		ModifiedNodal:  false,
		TiesMultiplier: 5,
	}
	mat, err := sparse.Create(int64(n), config)
	if err != nil {
		return &pgmerr.SparseMatrix{Row: -1, Note: "failed to allocate scalar sparse matrix: " + err.Error()}
	}
	for row := 0; row < n; row++ {
		for idx := m.Pattern.RowPtr[row]; idx < m.Pattern.RowPtr[row+1]; idx++ {
			col := m.Pattern.ColIdx[idx]
			v := m.Data[idx].At(0, 0)
			el := mat.GetElement(int64(row+1), int64(col+1))
			el.Real = real(v)
			el.Imag = imag(v)
		}
	}
	if err := mat.Factor(); err != nil {
		return &pgmerr.SparseMatrix{Row: -1, Note: "scalar factorization failed: " + err.Error()}
	}
	m.scalar = mat
	m.scalarConfig = config
	return nil
}

// prefactorizeBlock is a direct port of the PowerGridModel SparseLUSolver
// prefactorize algorithm to block-CSR data: factor each diagonal block with
// full pivoting, propagate its permutation to the already-visited L/U
// entries in its row/column, then eliminate everything below/right of it.
func (m *Matrix) prefactorizeBlock(allowPerturbation bool) error {
	n := m.Pattern.N
	rowPtr, colIdx, diagLU := m.Pattern.RowPtr, m.Pattern.ColIdx, m.Pattern.DiagLU
	bs := m.BlockSize

	m.perms = make([]BlockPerm, n)
	colPos := make([]int, n)
	copy(colPos, rowPtr[:n])

	for pivotRC := 0; pivotRC < n; pivotRC++ {
		pivotIdx := diagLU[pivotRC]
		perm, ok := factorizeBlockInPlace(&m.Data[pivotIdx], DefaultPivotThreshold, allowPerturbation)
		if !ok {
			return &pgmerr.SparseMatrix{Row: pivotRC, Note: "pivot below threshold with perturbation disallowed"}
		}
		m.perms[pivotRC] = perm
		pivot := m.Data[pivotIdx]

		// Propagate the pivot's permutation to already-computed L/U blocks
		// that touch this row/column, exploiting pattern symmetry: row
		// pivotRC's entries left of the diagonal (columns < pivotRC) pair
		// with column pivotRC's entries in those same rows.
		for lIdx := rowPtr[pivotRC]; lIdx < pivotIdx; lIdx++ {
			perm.applyRowPermBlock(&m.Data[lIdx], bs)
			uRow := colIdx[lIdx]
			uIdx := colPos[uRow]
			perm.applyColPermBlock(&m.Data[uIdx], bs)
			colPos[uRow]++
		}

		// U blocks to the right of the pivot: permute rows, then forward
		// substitute with the pivot's unit-lower part.
		for uIdx := pivotIdx + 1; uIdx < rowPtr[pivotRC+1]; uIdx++ {
			u := m.Data[uIdx]
			perm.applyRowPermBlock(&u, bs)
			for br := 0; br < bs; br++ {
				for bc := 0; bc < br; bc++ {
					factor := pivot.At(br, bc)
					for c := 0; c < bs; c++ {
						u.V[br][c] -= factor * u.V[bc][c]
					}
				}
			}
			m.Data[uIdx] = u
		}

		// L blocks below the pivot, and the Schur update of everything to
		// their right.
		for lRefIdx := pivotIdx + 1; lRefIdx < rowPtr[pivotRC+1]; lRefIdx++ {
			lRow := colIdx[lRefIdx]
			lIdx := colPos[lRow]
			l := m.Data[lIdx]
			perm.applyColPermBlock(&l, bs)
			for bc := 0; bc < bs; bc++ {
				for br := 0; br < bc; br++ {
					factor := pivot.At(br, bc)
					for r := 0; r < bs; r++ {
						l.V[r][bc] -= factor * l.V[r][br]
					}
				}
				piv := pivot.At(bc, bc)
				for r := 0; r < bs; r++ {
					l.V[r][bc] /= piv
				}
			}
			m.Data[lIdx] = l

			aIdx := lIdx
			for uIdx := pivotIdx + 1; uIdx < rowPtr[pivotRC+1]; uIdx++ {
				uCol := colIdx[uIdx]
				found := -1
				for k := aIdx; k < rowPtr[lRow+1]; k++ {
					if colIdx[k] == uCol {
						found = k
						break
					}
				}
				if found == -1 {
					return &pgmerr.SparseMatrix{Row: lRow, Note: "LU pattern missing expected fill-in entry"}
				}
				aIdx = found
				m.Data[aIdx] = m.Data[aIdx].Sub(matMul(l, bs, bs, m.Data[uIdx], bs))
			}
			colPos[lRow]++
		}
		colPos[pivotRC]++
	}
	return nil
}

// SolveWithPrefactorized solves A x = rhs using the factors left in m.Data
// (and m.perms / m.scalar) by Prefactorize, writing the result into x (x
// must already be sized n*blockSize, grouped as n contiguous blockSize
// vectors, one per bus).
func (m *Matrix) SolveWithPrefactorized(rhs []complex128, x []complex128) error {
	if m.BlockSize == 1 {
		return m.solveScalar(rhs, x)
	}
	return m.solveBlock(rhs, x)
}

func (m *Matrix) solveScalar(rhs []complex128, x []complex128) error {
	if m.scalar == nil {
		return &pgmerr.SparseMatrix{Row: -1, Note: "solve called before prefactorize"}
	}
	n := m.Pattern.N
	re := make([]float64, n+1)
	im := make([]float64, n+1)
	for i := 0; i < n; i++ {
		re[i+1] = real(rhs[i])
		im[i+1] = imag(rhs[i])
	}
	solRe, solIm, err := m.scalar.SolveComplex(re, im)
	if err != nil {
		return &pgmerr.SparseMatrix{Row: -1, Note: "scalar solve failed: " + err.Error()}
	}
	for i := 0; i < n; i++ {
		x[i] = complex(solRe[i+1], solIm[i+1])
	}
	return nil
}

func (m *Matrix) solveBlock(rhs []complex128, x []complex128) error {
	n := m.Pattern.N
	bs := m.BlockSize
	rowPtr, colIdx, diagLU := m.Pattern.RowPtr, m.Pattern.ColIdx, m.Pattern.DiagLU

	xb := make([][]complex128, n)
	for row := 0; row < n; row++ {
		vec := make([]complex128, bs)
		copy(vec, rhs[row*bs:(row+1)*bs])
		m.perms[row].applyRowPerm(vec)
		for lIdx := rowPtr[row]; lIdx < diagLU[row]; lIdx++ {
			col := colIdx[lIdx]
			contrib := matVec(m.Data[lIdx], bs, bs, xb[col])
			for i := range vec {
				vec[i] -= contrib[i]
			}
		}
		pivot := m.Data[diagLU[row]]
		for br := 0; br < bs; br++ {
			for bc := 0; bc < br; bc++ {
				vec[br] -= pivot.At(br, bc) * vec[bc]
			}
		}
		xb[row] = vec
	}

	for row := n - 1; row >= 0; row-- {
		vec := xb[row]
		for uIdx := rowPtr[row+1] - 1; uIdx > diagLU[row]; uIdx-- {
			col := colIdx[uIdx]
			contrib := matVec(m.Data[uIdx], bs, bs, xb[col])
			for i := range vec {
				vec[i] -= contrib[i]
			}
		}
		pivot := m.Data[diagLU[row]]
		for br := bs - 1; br >= 0; br-- {
			for bc := bs - 1; bc > br; bc-- {
				vec[br] -= pivot.At(br, bc) * vec[bc]
			}
			vec[br] /= pivot.At(br, br)
		}
	}

	for row := 0; row < n; row++ {
		m.perms[row].applyColPermInverse(xb[row])
		copy(x[row*bs:(row+1)*bs], xb[row])
	}
	return nil
}

// PrefactorizeAndSolve is the convenience composition spec.md §4.4 lists.
func (m *Matrix) PrefactorizeAndSolve(allowPerturbation bool, rhs []complex128, x []complex128) error {
	if err := m.Prefactorize(allowPerturbation); err != nil {
		return err
	}
	return m.SolveWithPrefactorized(rhs, x)
}
