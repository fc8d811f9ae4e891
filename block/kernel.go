// Package block holds the dense r×r kernels that every sparse component is
// instantiated over. A block is a row-major []float64 of length r*r and a
// block vector entry is a []float64 of length r.
//
// The sparse containers are generic over Kernel so that the rank is fixed at
// instantiation and the hot loops in Multiply and the preconditioner sweeps
// call the rank specific kernel directly, without an interface value in the
// loop. R1 and R3 are hand unrolled, R9 is loop based.
package block

// Kernel is implemented by the zero size rank types R1, R3 and R9.
type Kernel interface {
	Rank() int
	// MulVec sets y = a·x
	MulVec(y, a, x []float64)
	// MulVecAdd sets y += a·x
	MulVecAdd(y, a, x []float64)
	// MulVecSub sets y -= a·x
	MulVecSub(y, a, x []float64)
	// TransMulVec sets y = aᵀ·x
	TransMulVec(y, a, x []float64)
	// TransMulVecAdd sets y += aᵀ·x
	TransMulVecAdd(y, a, x []float64)
	// TransMulVecSub sets y -= aᵀ·x
	TransMulVecSub(y, a, x []float64)
	// MulSub sets c -= a·b for blocks
	MulSub(c, a, b []float64)
	// Invert writes a⁻¹ into dst. dst and a may alias.
	Invert(dst, a []float64) error
}

// Size returns the number of scalars in one block of kernel K.
func Size[K Kernel]() int {
	var k K
	return k.Rank() * k.Rank()
}

// RankOf returns the block rank of kernel K.
func RankOf[K Kernel]() int {
	var k K
	return k.Rank()
}
