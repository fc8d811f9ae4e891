package block

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// R9 is the full second order tensor kernel (9 components coupled).
type R9 struct{}

func (R9) Rank() int { return 9 }

func (R9) MulVec(y, a, x []float64)         { mulVec(9, y, a, x) }
func (R9) MulVecAdd(y, a, x []float64)      { mulVecAcc(9, y, a, x, 1) }
func (R9) MulVecSub(y, a, x []float64)      { mulVecAcc(9, y, a, x, -1) }
func (R9) TransMulVec(y, a, x []float64)    { transMulVec(9, y, a, x) }
func (R9) TransMulVecAdd(y, a, x []float64) { transMulVecAcc(9, y, a, x, 1) }
func (R9) TransMulVecSub(y, a, x []float64) { transMulVecAcc(9, y, a, x, -1) }
func (R9) MulSub(c, a, b []float64)         { mulSub(9, c, a, b) }

// Invert goes through gonum's LU based inverse, which reports a
// mat.Condition error for singular and ill conditioned blocks.
func (R9) Invert(dst, a []float64) error {
	var (
		src = mat.NewDense(9, 9, append([]float64(nil), a[:81]...))
		inv mat.Dense
	)
	if err := inv.Inverse(src); err != nil {
		measure := math.Inf(1)
		if cond, ok := err.(mat.Condition); ok {
			measure = float64(cond)
		}
		return &SingularBlockError{Element: -1, Rank: 9, Measure: measure}
	}
	out := inv.RawMatrix()
	for i := 0; i < 9; i++ {
		copy(dst[i*9:i*9+9], out.Data[i*out.Stride:i*out.Stride+9])
	}
	if !finite(dst[:81]) {
		return &SingularBlockError{Element: -1, Rank: 9, Measure: math.Inf(1)}
	}
	return nil
}
