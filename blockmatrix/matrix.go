// Package blockmatrix stores a sparse matrix whose entries are dense r×r
// blocks, laid out on an addressing.Addressing: one diagonal block per
// element, one upper and (unless symmetric) one lower block per bond, and
// one internal/source pair per boundary face.
package blockmatrix

import (
	"fmt"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/block"
)

// DimensionMismatchError is returned when a vector length disagrees with
// NRows()*Rank().
type DimensionMismatchError struct {
	Op        string
	Want, Got int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("blockmatrix: %s: vector length %d, want %d", e.Op, e.Got, e.Want)
}

// Matrix is the block LDU matrix. Upper[b] couples owner row to neighbour
// column, Lower[b] couples neighbour row to owner column.
type Matrix[K block.Kernel] struct {
	addr      *addressing.Addressing
	symmetric bool
	kern      K
	r, bs     int // rank and block size r*r

	diag  []float64
	upper []float64
	lower []float64 // nil when symmetric

	bndInternal [][]float64 // per region, per face: r*r
	bndSource   [][]float64 // per region, per face: r

	version uint64
}

// New allocates a zero matrix over addr. Symmetry is decided here, once,
// and is never inferred from the coefficients.
func New[K block.Kernel](addr *addressing.Addressing, symmetric bool) (m *Matrix[K]) {
	if addr == nil {
		panic("blockmatrix: nil addressing")
	}
	var k K
	r := k.Rank()
	m = &Matrix[K]{
		addr:      addr,
		symmetric: symmetric,
		r:         r,
		bs:        r * r,
		diag:      make([]float64, addr.NRows()*r*r),
		upper:     make([]float64, addr.NBonds()*r*r),
	}
	if !symmetric {
		m.lower = make([]float64, addr.NBonds()*r*r)
	}
	m.bndInternal = make([][]float64, addr.NRegions())
	m.bndSource = make([][]float64, addr.NRegions())
	for i := range m.bndInternal {
		nf := len(addr.Region(i).Elements)
		m.bndInternal[i] = make([]float64, nf*r*r)
		m.bndSource[i] = make([]float64, nf*r)
	}
	return
}

func (m *Matrix[K]) Addressing() *addressing.Addressing { return m.addr }
func (m *Matrix[K]) Symmetric() bool                    { return m.symmetric }
func (m *Matrix[K]) Rank() int                          { return m.r }
func (m *Matrix[K]) NRows() int                         { return m.addr.NRows() }

// Len is the length of a block vector conforming to the matrix.
func (m *Matrix[K]) Len() int { return m.addr.NRows() * m.r }

// Version changes on every coefficient mutation. Factorizations record it to
// detect that they have gone stale.
func (m *Matrix[K]) Version() uint64 { return m.version }

func (m *Matrix[K]) checkBlock(op string, blk []float64) {
	if len(blk) != m.bs {
		panic(fmt.Errorf("blockmatrix: %s: block length %d, want %d", op, len(blk), m.bs))
	}
}

func (m *Matrix[K]) checkVec(op string, v []float64) error {
	if len(v) != m.Len() {
		return &DimensionMismatchError{Op: op, Want: m.Len(), Got: len(v)}
	}
	return nil
}

// Diagonal returns the stored diagonal block of element e, boundary internal
// contributions included. The returned slice aliases the matrix.
func (m *Matrix[K]) Diagonal(e int) []float64 { return m.diag[e*m.bs : (e+1)*m.bs] }

// Upper returns the owner->neighbour block of bond b.
func (m *Matrix[K]) Upper(b int) []float64 { return m.upper[b*m.bs : (b+1)*m.bs] }

// Lower returns the neighbour->owner block of bond b; for a symmetric matrix
// this is the upper block.
func (m *Matrix[K]) Lower(b int) []float64 {
	if m.symmetric {
		return m.Upper(b)
	}
	return m.lower[b*m.bs : (b+1)*m.bs]
}

func (m *Matrix[K]) SetDiagonal(e int, blk []float64) {
	m.checkBlock("SetDiagonal", blk)
	copy(m.Diagonal(e), blk)
	m.version++
}

func (m *Matrix[K]) AddToDiagonal(e int, blk []float64) {
	m.checkBlock("AddToDiagonal", blk)
	d := m.Diagonal(e)
	for i, v := range blk {
		d[i] += v
	}
	m.version++
}

// SetBond stores the coefficients of bond b. For a symmetric matrix only
// upper is kept and lower may be nil.
func (m *Matrix[K]) SetBond(b int, lower, upper []float64) {
	m.checkBlock("SetBond", upper)
	copy(m.Upper(b), upper)
	if !m.symmetric {
		m.checkBlock("SetBond", lower)
		copy(m.lower[b*m.bs:(b+1)*m.bs], lower)
	}
	m.version++
}

// SetBoundaryCoefficient records the coefficients of face `face` of a
// boundary region. The internal block replaces the one previously recorded
// for the face on the owning element's diagonal; the source vector is kept
// aside for AddBoundarySource.
func (m *Matrix[K]) SetBoundaryCoefficient(region, face int, internal, source []float64) {
	m.checkBlock("SetBoundaryCoefficient", internal)
	if len(source) != m.r {
		panic(fmt.Errorf("blockmatrix: SetBoundaryCoefficient: source length %d, want %d", len(source), m.r))
	}
	var (
		e    = m.addr.Region(region).Elements[face]
		d    = m.Diagonal(e)
		prev = m.bndInternal[region][face*m.bs : (face+1)*m.bs]
	)
	for i, v := range internal {
		d[i] += v - prev[i]
		prev[i] = v
	}
	copy(m.bndSource[region][face*m.r:(face+1)*m.r], source)
	m.version++
}

// BoundaryInternal returns the internal block recorded for a boundary face.
func (m *Matrix[K]) BoundaryInternal(region, face int) []float64 {
	return m.bndInternal[region][face*m.bs : (face+1)*m.bs]
}

// BoundarySource returns the source vector recorded for a boundary face.
func (m *Matrix[K]) BoundarySource(region, face int) []float64 {
	return m.bndSource[region][face*m.r : (face+1)*m.r]
}

// AddBoundarySource folds every recorded boundary source into rhs.
func (m *Matrix[K]) AddBoundarySource(rhs []float64) (err error) {
	if err = m.checkVec("AddBoundarySource", rhs); err != nil {
		return
	}
	r := m.r
	for reg, src := range m.bndSource {
		for f, e := range m.addr.Region(reg).Elements {
			for i := 0; i < r; i++ {
				rhs[e*r+i] += src[f*r+i]
			}
		}
	}
	return
}

// Zero clears every coefficient, keeping the addressing.
func (m *Matrix[K]) Zero() {
	clear(m.diag)
	clear(m.upper)
	clear(m.lower)
	for i := range m.bndInternal {
		clear(m.bndInternal[i])
		clear(m.bndSource[i])
	}
	m.version++
}
