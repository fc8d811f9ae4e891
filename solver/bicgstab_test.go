package solver

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/blockmatrix"
	"github.com/denMaier/solids4foam-sub001/precon"
)

// chainMatrix is the symmetric 1-D chain with unit diagonal and coupling -0.5.
func chainMatrix(t *testing.T, n int) *blockmatrix.Matrix[block.R1] {
	a, err := addressing.Build(addressing.NewChain(n))
	require.NoError(t, err)
	m := blockmatrix.New[block.R1](a, true)
	for e := 0; e < n; e++ {
		m.SetDiagonal(e, []float64{1})
	}
	for b := 0; b < a.NBonds(); b++ {
		m.SetBond(b, nil, []float64{-0.5})
	}
	return m
}

func ones(n int) (v []float64) {
	v = make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return
}

func gridMatrixR3(t *testing.T, rng *rand.Rand, nx, ny int) *blockmatrix.Matrix[block.R3] {
	g := &addressing.Connectivity{N: nx * ny}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			e := i + j*nx
			if i+1 < nx {
				g.Links = append(g.Links, [2]int{e, e + 1})
			}
			if j+1 < ny {
				g.Links = append(g.Links, [2]int{e, e + nx})
			}
		}
	}
	a, err := addressing.Build(g)
	require.NoError(t, err)
	m := blockmatrix.New[block.R3](a, false)
	rnd := func(shift float64) (b []float64) {
		b = make([]float64, 9)
		for i := range b {
			b[i] = 0.2 * (rng.Float64() - 0.5)
		}
		for i := 0; i < 3; i++ {
			b[i*3+i] += shift
		}
		return
	}
	for e := 0; e < m.NRows(); e++ {
		m.SetDiagonal(e, rnd(6))
	}
	for b := 0; b < a.NBonds(); b++ {
		m.SetBond(b, rnd(-1), rnd(-1))
	}
	return m
}

func TestChainRecoversOnes(t *testing.T) {
	var (
		m = chainMatrix(t, 5)
		b = make([]float64, 5)
	)
	require.NoError(t, m.Multiply(b, ones(5)))
	assert.Equal(t, []float64{0.5, 0, 0, 0, 0.5}, b)

	{ // Unpreconditioned
		x, res, err := Solve(m, nil, b, nil, DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.Equal(t, None, res.Breakdown)
		assert.LessOrEqual(t, res.Iterations, 10)
		assert.LessOrEqual(t, res.FinalResidual, 1.e-6)
		assert.InDeltaSlice(t, ones(5), x, 1.e-4)
		assert.Equal(t, 1., res.InitialResidual)
	}
	{ // The incomplete factorization is exact on a chain: one iteration
		pc, err := precon.New(m, precon.Cholesky)
		require.NoError(t, err)
		x, res, err := Solve(m, pc, b, nil, DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.Equal(t, 1, res.Iterations)
		assert.Equal(t, 2, res.MatVecs)
		assert.Equal(t, 1, res.PSolves)
		assert.InDeltaSlice(t, ones(5), x, 1.e-12)
	}
	{ // An exact initial guess takes no iterations
		x0 := ones(5)
		x, res, err := Solve(m, nil, b, x0, DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.Equal(t, 0, res.Iterations)
		assert.Equal(t, 1, res.MatVecs)
		assert.Equal(t, x0, x)
	}
}

func TestBreakdown(t *testing.T) {
	// A = [[0, 1], [-1, 0]], b = [1, 0]: r̂0·A·r0 = 0 in the first iteration
	a, err := addressing.Build(addressing.NewChain(2))
	require.NoError(t, err)
	m := blockmatrix.New[block.R1](a, false)
	m.SetBond(0, []float64{-1}, []float64{1})
	x, res, err := Solve(m, nil, []float64{1, 0}, nil, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, Alpha, res.Breakdown)
	assert.Equal(t, 1, res.Iterations)
	for _, v := range x {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.Contains(t, res.String(), "alpha breakdown")
}

func TestOmegaBreakdown(t *testing.T) {
	// A = diag(1, -9), b = [1, 3]: α = -1/8 and s = [9/8, -3/8] gives A·s ⊥ s
	a, err := addressing.Build(&addressing.Connectivity{N: 2})
	require.NoError(t, err)
	m := blockmatrix.New[block.R1](a, false)
	m.SetDiagonal(0, []float64{1})
	m.SetDiagonal(1, []float64{-9})
	x, res, err := Solve(m, nil, []float64{1, 3}, nil, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, Omega, res.Breakdown)
	assert.Equal(t, 1, res.Iterations)
	// The α step is kept
	assert.InDeltaSlice(t, []float64{-0.125, -0.375}, x, 1.e-15)
	assert.InDelta(t, 0.375, res.FinalResidual, 1.e-15)
	assert.Contains(t, res.String(), "omega breakdown")
}

func TestRhoBreakdown(t *testing.T) {
	// A = [[1, 0, 0], [0, 2, 2], [2, -1, 2]], b = [1, 0, 0]: the first
	// iteration gives r1 = [0, 1, -1], orthogonal to r̂0 = b
	a, err := addressing.Build(&addressing.Connectivity{N: 3, Links: [][2]int{{0, 2}, {1, 2}}})
	require.NoError(t, err)
	m := blockmatrix.New[block.R1](a, false)
	m.SetDiagonal(0, []float64{1})
	m.SetDiagonal(1, []float64{2})
	m.SetDiagonal(2, []float64{2})
	m.SetBond(0, []float64{2}, []float64{0})
	m.SetBond(1, []float64{-1}, []float64{2})
	x, res, err := Solve(m, nil, []float64{1, 0, 0}, nil, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, Rho, res.Breakdown)
	assert.Equal(t, 2, res.Iterations)
	assert.InDeltaSlice(t, []float64{1, 0, -0.5}, x, 1.e-15)
	assert.InDelta(t, math.Sqrt2, res.FinalResidual, 1.e-15)
	assert.Contains(t, res.String(), "rho breakdown")
}

func TestMaxIterations(t *testing.T) {
	var (
		rng = rand.New(rand.NewSource(1))
		m   = gridMatrixR3(t, rng, 6, 6)
		b   = make([]float64, m.Len())
		set = DefaultSettings()
	)
	for i := range b {
		b[i] = rng.Float64()
	}
	set.MaxIterations = 2
	set.AbsoluteTolerance = 1.e-14
	x, res, err := Solve(m, nil, b, nil, set)
	require.NoError(t, err)
	assert.Equal(t, MaxIterationsReached, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Greater(t, res.FinalResidual, set.AbsoluteTolerance)
	assert.Greater(t, floats.Norm(x, 2), 0.)

	set.MaxIterations = 0
	_, res, err = Solve(m, nil, b, nil, set)
	require.NoError(t, err)
	assert.Equal(t, MaxIterationsReached, res.Status)
	assert.Equal(t, 0, res.Iterations)
}

func TestZeroRightHandSide(t *testing.T) {
	m := chainMatrix(t, 4)
	{ // Zero guess is the exact answer
		x, res, err := Solve(m, nil, make([]float64, 4), nil, DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.Equal(t, 0, res.Iterations)
		assert.Equal(t, make([]float64, 4), x)
	}
	{ // The residual is normalised by 1
		x, res, err := Solve(m, nil, make([]float64, 4), ones(4), DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.InDelta(t, 0.5*math.Sqrt2, res.InitialResidual, 1.e-15)
		assert.InDeltaSlice(t, make([]float64, 4), x, 1.e-5)
	}
}

func TestBlockSystem(t *testing.T) {
	var (
		rng   = rand.New(rand.NewSource(2))
		m     = gridMatrixR3(t, rng, 8, 7)
		xStar = make([]float64, m.Len())
		b     = make([]float64, m.Len())
		set   = DefaultSettings()
	)
	for i := range xStar {
		xStar[i] = rng.Float64() - 0.5
	}
	require.NoError(t, m.Multiply(b, xStar))
	set.AbsoluteTolerance = 1.e-10
	for _, kind := range []precon.Kind{precon.Cholesky, precon.GaussSeidel, precon.Diagonal} {
		pc, err := precon.New(m, kind)
		require.NoError(t, err)
		x, res, err := Solve(m, pc, b, nil, set)
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status, kind.String())
		assert.InDeltaSlice(t, xStar, x, 1.e-7, kind.String())

		r := make([]float64, m.Len())
		require.NoError(t, m.Residual(r, x, b))
		assert.InDelta(t, res.FinalResidual, floats.Norm(r, 2)/floats.Norm(b, 2), 1.e-12)
	}
	{ // Relative tolerance only
		set := Settings{RelativeTolerance: 1.e-3, MaxIterations: 100}
		_, res, err := Solve(m, nil, b, nil, set)
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.LessOrEqual(t, res.FinalResidual, 1.e-3*res.InitialResidual)
	}
}

type countingReducer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingReducer) SumAll(vals []float64) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil
}

type failingReducer struct{}

func (failingReducer) SumAll([]float64) error { return errors.New("link down") }

func TestCollaborators(t *testing.T) {
	var (
		m = chainMatrix(t, 5)
		b = make([]float64, 5)
	)
	require.NoError(t, m.Multiply(b, ones(5)))
	{ // All reductions go through the reducer
		red := &countingReducer{}
		x := make([]float64, 5)
		res, err := NewBiCGStab(m, nil, red, DefaultSettings()).Solve(x, b)
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.Greater(t, red.calls, res.Iterations)
	}
	{ // A reducer failure is an error
		_, err := NewBiCGStab(m, nil, failingReducer{}, DefaultSettings()).Solve(make([]float64, 5), b)
		assert.ErrorContains(t, err, "link down")
	}
	{ // A stale preconditioner is an error
		pc, err := precon.New(m, precon.Cholesky)
		require.NoError(t, err)
		m.AddToDiagonal(0, []float64{1})
		_, _, err = Solve(m, pc, b, nil, DefaultSettings())
		var stale *precon.StaleError
		assert.True(t, errors.As(err, &stale))
	}
	{ // Dimensions
		var dErr *blockmatrix.DimensionMismatchError
		_, _, err := Solve(m, nil, make([]float64, 4), nil, DefaultSettings())
		assert.True(t, errors.As(err, &dErr))
		_, _, err = Solve(m, nil, b, make([]float64, 6), DefaultSettings())
		assert.True(t, errors.As(err, &dErr))
		_, err = NewBiCGStab(m, nil, nil, DefaultSettings()).Solve(make([]float64, 3), b)
		assert.True(t, errors.As(err, &dErr))
	}
	{ // Settings
		_, _, err := Solve(m, nil, b, nil, Settings{AbsoluteTolerance: -1})
		assert.Error(t, err)
		assert.Panics(t, func() { NewBiCGStab(m, nil, nil, Settings{MaxIterations: -1}) })
	}
}

func TestConcurrentSolves(t *testing.T) {
	var (
		rng = rand.New(rand.NewSource(3))
		m   = gridMatrixR3(t, rng, 5, 5)
		wg  sync.WaitGroup
	)
	pc, err := precon.New(m, precon.Cholesky)
	require.NoError(t, err)
	s := NewBiCGStab(m, pc, nil, DefaultSettings())
	b := make([]float64, m.Len())
	for i := range b {
		b[i] = 1
	}
	want := make([]float64, m.Len())
	_, err = s.Solve(want, b)
	require.NoError(t, err)
	got := make([][]float64, 6)
	for i := range got {
		got[i] = make([]float64, m.Len())
		wg.Add(1)
		go func(x []float64) {
			defer wg.Done()
			_, _ = s.Solve(x, b)
		}(got[i])
	}
	wg.Wait()
	for _, x := range got {
		assert.Equal(t, want, x)
	}
}
