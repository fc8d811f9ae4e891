package blockmatrix

import (
	"github.com/denMaier/solids4foam-sub001/utils"
)

// Multiply computes y = A·x. Boundary internal coefficients are already in
// the diagonal, so the product is one pass over the elements and one pass
// over the bonds, each bond visited once. y and x must not alias.
func (m *Matrix[K]) Multiply(y, x []float64) (err error) {
	if err = m.checkVec("Multiply x", x); err != nil {
		return
	}
	if err = m.checkVec("Multiply y", y); err != nil {
		return
	}
	var (
		k            = m.kern
		r, bs        = m.r, m.bs
		lower, upper = m.addr.LowerAddr(), m.addr.UpperAddr()
		lowerCoeffs  = m.lower
	)
	if m.symmetric {
		lowerCoeffs = m.upper
	}
	for e := 0; e < m.addr.NRows(); e++ {
		k.MulVec(y[e*r:e*r+r], m.diag[e*bs:e*bs+bs], x[e*r:e*r+r])
	}
	for b, o := range lower {
		n := upper[b]
		k.MulVecAdd(y[o*r:o*r+r], m.upper[b*bs:b*bs+bs], x[n*r:n*r+r])
		k.MulVecAdd(y[n*r:n*r+r], lowerCoeffs[b*bs:b*bs+bs], x[o*r:o*r+r])
	}
	return
}

// TransposeMultiply computes y = Aᵀ·x: every block is transposed and the
// roles of lower and upper are swapped.
func (m *Matrix[K]) TransposeMultiply(y, x []float64) (err error) {
	if err = m.checkVec("TransposeMultiply x", x); err != nil {
		return
	}
	if err = m.checkVec("TransposeMultiply y", y); err != nil {
		return
	}
	var (
		k            = m.kern
		r, bs        = m.r, m.bs
		lower, upper = m.addr.LowerAddr(), m.addr.UpperAddr()
		lowerCoeffs  = m.lower
	)
	if m.symmetric {
		lowerCoeffs = m.upper
	}
	for e := 0; e < m.addr.NRows(); e++ {
		k.TransMulVec(y[e*r:e*r+r], m.diag[e*bs:e*bs+bs], x[e*r:e*r+r])
	}
	for b, o := range lower {
		n := upper[b]
		k.TransMulVecAdd(y[o*r:o*r+r], lowerCoeffs[b*bs:b*bs+bs], x[n*r:n*r+r])
		k.TransMulVecAdd(y[n*r:n*r+r], m.upper[b*bs:b*bs+bs], x[o*r:o*r+r])
	}
	return
}

// Residual computes res = b - A·x.
func (m *Matrix[K]) Residual(res, x, b []float64) (err error) {
	if err = m.checkVec("Residual b", b); err != nil {
		return
	}
	if err = m.Multiply(res, x); err != nil {
		return
	}
	for i, v := range b {
		res[i] = v - res[i]
	}
	return
}

// ToCSR expands the block matrix to a scalar CSR matrix, for diagnostics and
// for checking a solution independently of the block kernels.
func (m *Matrix[K]) ToCSR() utils.CSR {
	var (
		r            = m.r
		n            = m.Len()
		dok          = utils.NewDOK(n, n)
		lower, upper = m.addr.LowerAddr(), m.addr.UpperAddr()
	)
	scatter := func(row, col int, blk []float64) {
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				dok.Add(row*r+i, col*r+j, blk[i*r+j])
			}
		}
	}
	for e := 0; e < m.addr.NRows(); e++ {
		scatter(e, e, m.Diagonal(e))
	}
	for b, o := range lower {
		scatter(o, upper[b], m.Upper(b))
		scatter(upper[b], o, m.Lower(b))
	}
	dok.SetReadOnly("block matrix")
	return dok.ToCSR()
}
