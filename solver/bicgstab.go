package solver

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/blockmatrix"
)

// BiCGStab holds the collaborators of a solve. Concurrent Solve calls on one
// BiCGStab are safe when the collaborators are; each call draws its own work
// vectors.
type BiCGStab struct {
	op       Operator
	pc       Preconditioner
	red      Reducer
	settings Settings
	pool     sync.Pool
}

type workspace struct {
	r, rHat, p, v, pHat, sHat, t []float64
}

func newWorkspace(n int) *workspace {
	buf := make([]float64, 7*n)
	return &workspace{
		r:    buf[0*n : 1*n],
		rHat: buf[1*n : 2*n],
		p:    buf[2*n : 3*n],
		v:    buf[3*n : 4*n],
		pHat: buf[4*n : 5*n],
		sHat: buf[5*n : 6*n],
		t:    buf[6*n : 7*n],
	}
}

// NewBiCGStab panics on invalid settings. A nil pc is the identity and a nil
// red keeps every reduction local.
func NewBiCGStab(op Operator, pc Preconditioner, red Reducer, settings Settings) *BiCGStab {
	if err := settings.Validate(); err != nil {
		panic(err)
	}
	return &BiCGStab{op: op, pc: pc, red: red, settings: settings}
}

func (s *BiCGStab) Settings() Settings { return s.settings }

func (s *BiCGStab) workspace(n int) *workspace {
	if w, ok := s.pool.Get().(*workspace); ok && len(w.r) == n {
		return w
	}
	return newWorkspace(n)
}

// reduce sums local partial values across partitions in place.
func (s *BiCGStab) reduce(vals ...float64) (out []float64, err error) {
	if s.red != nil {
		if err = s.red.SumAll(vals); err != nil {
			return nil, fmt.Errorf("solver: reduction: %w", err)
		}
	}
	return vals, nil
}

func (s *BiCGStab) precondition(y, x []float64) error {
	if s.pc == nil {
		copy(y, x)
		return nil
	}
	return s.pc.Precondition(y, x)
}

// brokeDown reports a denominator d = a·b that is zero to within the
// breakdown tolerance relative to ‖a‖‖b‖.
func (s *BiCGStab) brokeDown(d, normA, normB float64) bool {
	return d == 0 || math.IsNaN(d) || math.Abs(d) <= s.settings.BreakdownTolerance*normA*normB
}

// Solve iterates from the initial guess in x and overwrites x with the last
// finite iterate. Breakdown and the iteration limit are reported in the
// Result; err is set only when a collaborator fails.
func (s *BiCGStab) Solve(x, b []float64) (res Result, err error) {
	var (
		start = time.Now()
		n     = len(b)
		set   = s.settings
	)
	if len(x) != n {
		err = &blockmatrix.DimensionMismatchError{Op: "Solve x", Want: n, Got: len(x)}
		return
	}
	w := s.workspace(n)
	defer s.pool.Put(w)
	defer func() { res.Runtime = time.Since(start) }()

	var (
		r, rHat, p, v = w.r, w.rHat, w.p, w.v
		pHat, sHat, t = w.pHat, w.sHat, w.t
		sums          []float64
	)
	if err = s.op.Multiply(r, x); err != nil {
		return
	}
	res.MatVecs++
	floats.SubTo(r, b, r)
	if sums, err = s.reduce(floats.Dot(b, b), floats.Dot(r, r)); err != nil {
		return
	}
	var (
		bNorm = math.Sqrt(sums[0])
		rNorm = math.Sqrt(sums[1])
	)
	if bNorm == 0 {
		bNorm = 1
	}
	res.InitialResidual = rNorm / bNorm
	res.FinalResidual = res.InitialResidual
	converged := func(norm float64) bool {
		nr := norm / bNorm
		return nr <= set.AbsoluteTolerance ||
			(set.RelativeTolerance > 0 && nr <= set.RelativeTolerance*res.InitialResidual)
	}
	if converged(rNorm) {
		res.Status = Converged
		return
	}

	copy(rHat, r)
	clear(p)
	clear(v)
	var (
		rHatNorm            = rNorm
		rhoPrev, alpha, omg = 1., 1., 1.
	)
	for k := 1; k <= set.MaxIterations; k++ {
		res.Iterations = k
		if sums, err = s.reduce(floats.Dot(rHat, r)); err != nil {
			return
		}
		rho := sums[0]
		if s.brokeDown(rho, rHatNorm, rNorm) {
			res.Status, res.Breakdown = Failed, Rho
			return
		}
		// p = r + β(p - ωv)
		beta := (rho / rhoPrev) * (alpha / omg)
		floats.AddScaled(p, -omg, v)
		floats.AddScaledTo(p, r, beta, p)

		if err = s.precondition(pHat, p); err != nil {
			return
		}
		res.PSolves++
		if err = s.op.Multiply(v, pHat); err != nil {
			return
		}
		res.MatVecs++
		if sums, err = s.reduce(floats.Dot(rHat, v), floats.Dot(v, v)); err != nil {
			return
		}
		if s.brokeDown(sums[0], rHatNorm, math.Sqrt(sums[1])) {
			res.Status, res.Breakdown = Failed, Alpha
			return
		}
		alpha = rho / sums[0]

		// s = r - αv, held in r
		floats.AddScaled(r, -alpha, v)
		if sums, err = s.reduce(floats.Dot(r, r)); err != nil {
			return
		}
		sNorm := math.Sqrt(sums[0])
		if converged(sNorm) {
			floats.AddScaled(x, alpha, pHat)
			res.FinalResidual = sNorm / bNorm
			res.Status = Converged
			return
		}

		if err = s.precondition(sHat, r); err != nil {
			return
		}
		res.PSolves++
		if err = s.op.Multiply(t, sHat); err != nil {
			return
		}
		res.MatVecs++
		if sums, err = s.reduce(floats.Dot(t, r), floats.Dot(t, t)); err != nil {
			return
		}
		ts, tt := sums[0], sums[1]
		if tt == 0 || s.brokeDown(ts, math.Sqrt(tt), sNorm) {
			floats.AddScaled(x, alpha, pHat)
			res.FinalResidual = sNorm / bNorm
			res.Status, res.Breakdown = Failed, Omega
			return
		}
		omg = ts / tt

		floats.AddScaled(x, alpha, pHat)
		floats.AddScaled(x, omg, sHat)
		floats.AddScaled(r, -omg, t)
		if sums, err = s.reduce(floats.Dot(r, r)); err != nil {
			return
		}
		rNorm = math.Sqrt(sums[0])
		res.FinalResidual = rNorm / bNorm
		if converged(rNorm) {
			res.Status = Converged
			return
		}
		rhoPrev = rho
	}
	res.Status = MaxIterationsReached
	return
}

// Solve runs a BiCGStab on m from x0, which is not modified. A nil x0 starts
// from zero. Pass a nil interface, not a typed nil pointer, for no
// preconditioning.
func Solve[K block.Kernel](m *blockmatrix.Matrix[K], pc Preconditioner, b, x0 []float64,
	settings Settings) (x []float64, res Result, err error) {
	if err = settings.Validate(); err != nil {
		return
	}
	if len(b) != m.Len() {
		err = &blockmatrix.DimensionMismatchError{Op: "Solve b", Want: m.Len(), Got: len(b)}
		return
	}
	x = make([]float64, m.Len())
	if x0 != nil {
		if len(x0) != m.Len() {
			err = &blockmatrix.DimensionMismatchError{Op: "Solve x0", Want: m.Len(), Got: len(x0)}
			return
		}
		copy(x, x0)
	}
	res, err = NewBiCGStab(m, pc, nil, settings).Solve(x, b)
	return
}
