package pgmtypes

import "math/cmplx"

// PhaseVector is a per-phase complex quantity: length 1 in Symmetric mode,
// length 3 (A, B, C) in Asymmetric mode. Using a slice rather than a
// generic-over-size array lets every solver body be written once and
// parameterized by Symmetry, per the "avoid duplicating solver bodies"
// design note.
type PhaseVector []complex128

// PhaseMatrix is a per-phase complex admittance/impedance tensor, stored
// row-major: length 1 (a 1x1 "matrix") in Symmetric mode, length 9 (a 3x3
// matrix) in Asymmetric mode.
type PhaseMatrix []complex128

// NDim returns 1 for Symmetric, 3 for Asymmetric.
func (s Symmetry) NDim() int {
	if s == Asymmetric {
		return 3
	}
	return 1
}

// NewVector returns a zero PhaseVector sized for sym.
func (s Symmetry) NewVector() PhaseVector {
	return make(PhaseVector, s.NDim())
}

// NewMatrix returns a zero PhaseMatrix sized for sym.
func (s Symmetry) NewMatrix() PhaseMatrix {
	n := s.NDim()
	return make(PhaseMatrix, n*n)
}

// ScalarVector returns a Symmetric-style single-entry vector.
func ScalarVector(v complex128) PhaseVector { return PhaseVector{v} }

// ScalarMatrix returns a Symmetric-style single-entry matrix.
func ScalarMatrix(v complex128) PhaseMatrix { return PhaseMatrix{v} }

// AsymmetricVector3 wraps three explicit per-phase values.
func AsymmetricVector3(a, b, c complex128) PhaseVector { return PhaseVector{a, b, c} }

// At returns the (i,j) entry of an n x n PhaseMatrix.
func (m PhaseMatrix) At(n, i, j int) complex128 { return m[i*n+j] }

// Set assigns the (i,j) entry of an n x n PhaseMatrix.
func (m PhaseMatrix) Set(n, i, j int, v complex128) { m[i*n+j] = v }

// Dim infers n from len(m) (1 -> 1, 9 -> 3).
func (m PhaseMatrix) Dim() int {
	if len(m) == 9 {
		return 3
	}
	return 1
}

// Add returns a + b element-wise.
func (v PhaseVector) Add(o PhaseVector) PhaseVector {
	out := make(PhaseVector, len(v))
	for i := range v {
		out[i] = v[i] + o[i]
	}
	return out
}

// Sub returns a - b element-wise.
func (v PhaseVector) Sub(o PhaseVector) PhaseVector {
	out := make(PhaseVector, len(v))
	for i := range v {
		out[i] = v[i] - o[i]
	}
	return out
}

// Scale multiplies every entry by a complex scalar.
func (v PhaseVector) Scale(s complex128) PhaseVector {
	out := make(PhaseVector, len(v))
	for i := range v {
		out[i] = v[i] * s
	}
	return out
}

// Conj returns the complex conjugate of every entry.
func (v PhaseVector) Conj() PhaseVector {
	out := make(PhaseVector, len(v))
	for i := range v {
		out[i] = cmplx.Conj(v[i])
	}
	return out
}

// Dot returns sum_i v[i] * o[i] (no conjugation).
func (v PhaseVector) Dot(o PhaseVector) complex128 {
	var sum complex128
	for i := range v {
		sum += v[i] * o[i]
	}
	return sum
}

// MaxAbsDiff returns max_i |v[i] - o[i]|.
func (v PhaseVector) MaxAbsDiff(o PhaseVector) float64 {
	max := 0.0
	for i := range v {
		if d := cmplx.Abs(v[i] - o[i]); d > max {
			max = d
		}
	}
	return max
}

// MulVec computes m * v for an n x n matrix and length-n vector.
func (m PhaseMatrix) MulVec(v PhaseVector) PhaseVector {
	n := m.Dim()
	out := make(PhaseVector, n)
	for i := 0; i < n; i++ {
		var sum complex128
		for j := 0; j < n; j++ {
			sum += m.At(n, i, j) * v[j]
		}
		out[i] = sum
	}
	return out
}

// Add returns a + b element-wise.
func (m PhaseMatrix) Add(o PhaseMatrix) PhaseMatrix {
	out := make(PhaseMatrix, len(m))
	for i := range m {
		out[i] = m[i] + o[i]
	}
	return out
}

// Scale multiplies every entry by a complex scalar.
func (m PhaseMatrix) Scale(s complex128) PhaseMatrix {
	out := make(PhaseMatrix, len(m))
	for i := range m {
		out[i] = m[i] * s
	}
	return out
}

// Identity returns the n x n identity matrix for the given symmetry.
func (s Symmetry) Identity() PhaseMatrix {
	n := s.NDim()
	m := make(PhaseMatrix, n*n)
	for i := 0; i < n; i++ {
		m.Set(n, i, i, 1)
	}
	return m
}

// AdmittanceBlock is the four-way admittance tuple of a branch, per spec's
// glossary entry: "a 2x2 matrix [y_ff y_ft; y_tf y_tt]" generalized to
// per-phase tensors in Asymmetric mode.
type AdmittanceBlock struct {
	YFF, YFT, YTF, YTT PhaseMatrix
}
