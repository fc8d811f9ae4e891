package block

import "math"

// R3 couples the three components of a vector unknown, e.g. displacement.
type R3 struct{}

func (R3) Rank() int { return 3 }

func (R3) MulVec(y, a, x []float64) {
	_, _, _ = a[8], x[2], y[2]
	x0, x1, x2 := x[0], x[1], x[2]
	y[0] = a[0]*x0 + a[1]*x1 + a[2]*x2
	y[1] = a[3]*x0 + a[4]*x1 + a[5]*x2
	y[2] = a[6]*x0 + a[7]*x1 + a[8]*x2
}

func (R3) MulVecAdd(y, a, x []float64) {
	_, _, _ = a[8], x[2], y[2]
	x0, x1, x2 := x[0], x[1], x[2]
	y[0] += a[0]*x0 + a[1]*x1 + a[2]*x2
	y[1] += a[3]*x0 + a[4]*x1 + a[5]*x2
	y[2] += a[6]*x0 + a[7]*x1 + a[8]*x2
}

func (R3) MulVecSub(y, a, x []float64) {
	_, _, _ = a[8], x[2], y[2]
	x0, x1, x2 := x[0], x[1], x[2]
	y[0] -= a[0]*x0 + a[1]*x1 + a[2]*x2
	y[1] -= a[3]*x0 + a[4]*x1 + a[5]*x2
	y[2] -= a[6]*x0 + a[7]*x1 + a[8]*x2
}

func (R3) TransMulVec(y, a, x []float64) {
	_, _, _ = a[8], x[2], y[2]
	x0, x1, x2 := x[0], x[1], x[2]
	y[0] = a[0]*x0 + a[3]*x1 + a[6]*x2
	y[1] = a[1]*x0 + a[4]*x1 + a[7]*x2
	y[2] = a[2]*x0 + a[5]*x1 + a[8]*x2
}

func (R3) TransMulVecAdd(y, a, x []float64) {
	_, _, _ = a[8], x[2], y[2]
	x0, x1, x2 := x[0], x[1], x[2]
	y[0] += a[0]*x0 + a[3]*x1 + a[6]*x2
	y[1] += a[1]*x0 + a[4]*x1 + a[7]*x2
	y[2] += a[2]*x0 + a[5]*x1 + a[8]*x2
}

func (R3) TransMulVecSub(y, a, x []float64) {
	_, _, _ = a[8], x[2], y[2]
	x0, x1, x2 := x[0], x[1], x[2]
	y[0] -= a[0]*x0 + a[3]*x1 + a[6]*x2
	y[1] -= a[1]*x0 + a[4]*x1 + a[7]*x2
	y[2] -= a[2]*x0 + a[5]*x1 + a[8]*x2
}

func (R3) MulSub(c, a, b []float64) {
	mulSub(3, c, a, b)
}

// Invert uses the adjugate. The block is rejected when the condition
// estimate ‖A‖_F·‖A⁻¹‖_F reaches MaxCondition, so uniformly scaled or
// strongly graded diagonal blocks still invert.
func (R3) Invert(dst, a []float64) error {
	var (
		c00 = a[4]*a[8] - a[5]*a[7]
		c01 = a[5]*a[6] - a[3]*a[8]
		c02 = a[3]*a[7] - a[4]*a[6]
		det = a[0]*c00 + a[1]*c01 + a[2]*c02
	)
	if det == 0 || math.IsNaN(det) {
		return &SingularBlockError{Element: -1, Rank: 3, Measure: math.Inf(1)}
	}
	id := 1. / det
	inv := [9]float64{
		c00 * id, (a[2]*a[7] - a[1]*a[8]) * id, (a[1]*a[5] - a[2]*a[4]) * id,
		c01 * id, (a[0]*a[8] - a[2]*a[6]) * id, (a[2]*a[3] - a[0]*a[5]) * id,
		c02 * id, (a[1]*a[6] - a[0]*a[7]) * id, (a[0]*a[4] - a[1]*a[3]) * id,
	}
	if !finite(inv[:]) {
		return &SingularBlockError{Element: -1, Rank: 3, Measure: math.Inf(1)}
	}
	if cond := frobenius(a[:9]) * frobenius(inv[:]); !(cond < MaxCondition) {
		return &SingularBlockError{Element: -1, Rank: 3, Measure: cond}
	}
	copy(dst, inv[:])
	return nil
}
