package block

import "math"

// R1 is the scalar kernel, used for segregated solves.
type R1 struct{}

func (R1) Rank() int { return 1 }

func (R1) MulVec(y, a, x []float64)         { y[0] = a[0] * x[0] }
func (R1) MulVecAdd(y, a, x []float64)      { y[0] += a[0] * x[0] }
func (R1) MulVecSub(y, a, x []float64)      { y[0] -= a[0] * x[0] }
func (R1) TransMulVec(y, a, x []float64)    { y[0] = a[0] * x[0] }
func (R1) TransMulVecAdd(y, a, x []float64) { y[0] += a[0] * x[0] }
func (R1) TransMulVecSub(y, a, x []float64) { y[0] -= a[0] * x[0] }
func (R1) MulSub(c, a, b []float64)         { c[0] -= a[0] * b[0] }

func (R1) Invert(dst, a []float64) error {
	inv := 1. / a[0]
	if a[0] == 0 || math.IsInf(inv, 0) || math.IsNaN(inv) {
		return &SingularBlockError{Element: -1, Rank: 1, Measure: math.Abs(a[0])}
	}
	dst[0] = inv
	return nil
}
