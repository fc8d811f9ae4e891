package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

// Add accumulates val into entry (i,j), the way assembly scatters blocks.
func (m DOK) Add(i, j int, val float64) DOK {
	m.checkWritable()
	if val != 0 {
		m.M.Set(i, j, m.M.At(i, j)+val)
	}
	return m
}

func (m *DOK) SetReadOnly(name ...string) DOK {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) ToCSR() CSR {
	return CSR{
		M:        m.M.ToCSR(),
		readOnly: true,
		name:     m.name,
	}
}

type CSR struct {
	M        *sparse.CSR
	readOnly bool
	name     string
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)              { return m.M.Dims() }
func (m CSR) At(i, j int) float64           { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix                 { return m.M.T() }
func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }
func (m CSR) NNZ() int                      { return m.M.NNZ() }

// MulVec sets y = M·x, or y = Mᵀ·x when trans is set.
func (m CSR) MulVec(y, x []float64, trans bool) {
	var (
		nr, nc = m.Dims()
	)
	if trans {
		nr, nc = nc, nr
	}
	if len(x) != nc || len(y) != nr {
		panic(fmt.Errorf("dimension mismatch: matrix %dx%d, len(x) = %d, len(y) = %d",
			nr, nc, len(x), len(y)))
	}
	for i := range y {
		y[i] = 0
	}
	m.M.MulVecTo(y, trans, x)
}
