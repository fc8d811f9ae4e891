package block

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxCondition is the condition number at which a block is treated as
// singular. R9 inherits it from gonum's inverse.
const MaxCondition = mat.ConditionTolerance

func mulVec(n int, y, a, x []float64) {
	for i := 0; i < n; i++ {
		var (
			row = a[i*n : i*n+n]
			sum float64
		)
		for j, v := range row {
			sum += v * x[j]
		}
		y[i] = sum
	}
}

func mulVecAcc(n int, y, a, x []float64, sign float64) {
	for i := 0; i < n; i++ {
		var (
			row = a[i*n : i*n+n]
			sum float64
		)
		for j, v := range row {
			sum += v * x[j]
		}
		y[i] += sign * sum
	}
}

func transMulVec(n int, y, a, x []float64) {
	for j := 0; j < n; j++ {
		y[j] = 0
	}
	transMulVecAcc(n, y, a, x, 1)
}

func transMulVecAcc(n int, y, a, x []float64, sign float64) {
	for i := 0; i < n; i++ {
		xi := sign * x[i]
		row := a[i*n : i*n+n]
		for j, v := range row {
			y[j] += v * xi
		}
	}
}

func mulSub(n int, c, a, b []float64) {
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a[i*n+k]
			if aik == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				c[i*n+j] -= aik * b[k*n+j]
			}
		}
	}
}

func frobenius(a []float64) (norm float64) {
	for _, v := range a {
		norm += v * v
	}
	return math.Sqrt(norm)
}

func finite(a []float64) bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Identity returns the r×r identity block.
func Identity(r int) (b []float64) {
	b = make([]float64, r*r)
	for i := 0; i < r; i++ {
		b[i*r+i] = 1
	}
	return
}

// Scaled returns s times the r×r identity block.
func Scaled(r int, s float64) (b []float64) {
	b = Identity(r)
	for i := 0; i < r; i++ {
		b[i*r+i] = s
	}
	return
}

// Diagonal returns a block with vals on the diagonal.
func Diagonal(vals ...float64) (b []float64) {
	r := len(vals)
	b = make([]float64, r*r)
	for i, v := range vals {
		b[i*r+i] = v
	}
	return
}

// Transpose returns aᵀ for an r×r block.
func Transpose(r int, a []float64) (t []float64) {
	t = make([]float64, r*r)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			t[j*r+i] = a[i*r+j]
		}
	}
	return
}

// ToDense copies a block into a gonum matrix.
func ToDense(r int, a []float64) *mat.Dense {
	return mat.NewDense(r, r, append([]float64(nil), a[:r*r]...))
}

// FromDense copies a square gonum matrix into a row-major block.
func FromDense(m mat.Matrix) (b []float64) {
	r, c := m.Dims()
	if r != c {
		panic(fmt.Errorf("block must be square, have %dx%d", r, c))
	}
	b = make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			b[i*c+j] = m.At(i, j)
		}
	}
	return
}
