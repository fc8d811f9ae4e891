// Package precon holds the block incomplete factorization preconditioners
// applied inside the Krylov solver.
//
// The factorization keeps only a corrected diagonal: M = (D+L)D⁻¹(D+U), with
// L and U the off-diagonal blocks of the matrix and D the per element block
// produced by the factorization sweep. The forward and backward sweeps run in
// element order and are sequential; no colouring or level scheduling is done,
// so the quality of the preconditioner depends on the element numbering (see
// addressing.ReverseCuthillMcKee).
package precon

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/blockmatrix"
)

type Kind uint8

const (
	// Cholesky is the incomplete block Cholesky (DILU for asymmetric
	// matrices) with the diagonal corrected by the bonds already swept.
	Cholesky Kind = iota
	// GaussSeidel runs the same sweeps with the uncorrected diagonal.
	GaussSeidel
	// Diagonal is block Jacobi, y = D⁻¹x.
	Diagonal
)

var kindNames = map[Kind]string{
	Cholesky:    "cholesky",
	GaussSeidel: "gaussseidel",
	Diagonal:    "diagonal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind accepts the names printed by Kind.String, case insensitive.
func ParseKind(name string) (k Kind, err error) {
	label := strings.ToLower(strings.TrimSpace(name))
	for kk, n := range kindNames {
		if n == label {
			return kk, nil
		}
	}
	err = fmt.Errorf("unknown preconditioner %q, want one of cholesky, gaussseidel, diagonal", name)
	return
}

// StaleError is returned when the matrix coefficients changed after the
// last Recompute.
type StaleError struct {
	Computed, Current uint64
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("precon: factorization computed at matrix version %d, matrix is at version %d",
		e.Computed, e.Current)
}

// Preconditioner is safe for concurrent Precondition calls; Recompute takes
// exclusive access.
type Preconditioner[K block.Kernel] struct {
	mu      sync.RWMutex
	m       *blockmatrix.Matrix[K]
	kind    Kind
	kern    K
	dInv    []float64 // inverse of the factorized diagonal, one block per element
	version uint64
	valid   bool
}

// New builds the preconditioner and runs the first factorization.
func New[K block.Kernel](m *blockmatrix.Matrix[K], kind Kind) (p *Preconditioner[K], err error) {
	if _, ok := kindNames[kind]; !ok {
		err = fmt.Errorf("precon: unknown kind %v", kind)
		return
	}
	p = &Preconditioner[K]{
		m:    m,
		kind: kind,
		dInv: make([]float64, m.NRows()*m.Rank()*m.Rank()),
	}
	if err = p.Recompute(); err != nil {
		p = nil
	}
	return
}

func (p *Preconditioner[K]) Kind() Kind { return p.kind }

// Inverse returns the stored inverse block of element e.
func (p *Preconditioner[K]) Inverse(e int) []float64 {
	bs := p.m.Rank() * p.m.Rank()
	return p.dInv[e*bs : (e+1)*bs]
}

// Recompute refactorizes from the current matrix coefficients. On failure the
// preconditioner is left invalid and every apply fails until a successful
// Recompute.
func (p *Preconditioner[K]) Recompute() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var (
		m     = p.m
		k     = p.kern
		bs    = m.Rank() * m.Rank()
		lower = m.Addressing().LowerAddr()
		tmp   = make([]float64, bs)
	)
	p.valid = false
	for e := 0; e < m.NRows(); e++ {
		d := p.dInv[e*bs : (e+1)*bs]
		copy(d, m.Diagonal(e))
		if p.kind == Cholesky {
			// d -= L[b]·D⁻¹[own]·U[b]; own < e so D⁻¹[own] is final
			for _, b := range m.Addressing().NeighbourBonds(e) {
				clear(tmp)
				k.MulSub(tmp, p.Inverse(lower[b]), m.Upper(b))
				for i := range tmp {
					tmp[i] = -tmp[i]
				}
				k.MulSub(d, m.Lower(b), tmp)
			}
		}
		if err = k.Invert(d, d); err != nil {
			var sErr *block.SingularBlockError
			if errors.As(err, &sErr) {
				sErr.Element = e
				return sErr
			}
			return fmt.Errorf("precon: element %d: %w", e, err)
		}
	}
	p.version = m.Version()
	p.valid = true
	return
}

func (p *Preconditioner[K]) check(y, x []float64) error {
	if !p.valid || p.version != p.m.Version() {
		return &StaleError{Computed: p.version, Current: p.m.Version()}
	}
	n := p.m.Len()
	if len(x) != n {
		return &blockmatrix.DimensionMismatchError{Op: "Precondition x", Want: n, Got: len(x)}
	}
	if len(y) != n {
		return &blockmatrix.DimensionMismatchError{Op: "Precondition y", Want: n, Got: len(y)}
	}
	return nil
}

// Precondition computes y = M⁻¹x. y may alias x.
func (p *Preconditioner[K]) Precondition(y, x []float64) (err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err = p.check(y, x); err != nil {
		return
	}
	if p.kind == Diagonal {
		p.scale(y, x, false)
		return
	}
	p.forward(y, x, false)
	p.backward(y, false)
	return
}

// PreconditionTranspose computes y = M⁻ᵀx by sweeping with transposed blocks
// and the lower and upper roles swapped.
func (p *Preconditioner[K]) PreconditionTranspose(y, x []float64) (err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err = p.check(y, x); err != nil {
		return
	}
	if p.kind == Diagonal {
		p.scale(y, x, true)
		return
	}
	p.forward(y, x, true)
	p.backward(y, true)
	return
}
