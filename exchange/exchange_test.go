package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/blockmatrix"
	"github.com/denMaier/solids4foam-sub001/solver"
)

func allPairs(n int) (pairs []Pair) {
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			pairs = append(pairs, Pair{b, a}) // reversed on purpose
		}
	}
	return
}

func TestSchedule(t *testing.T) {
	{ // All to all over four partitions needs three rounds
		s, err := NewSchedule(4, allPairs(4))
		require.NoError(t, err)
		assert.Equal(t, [][]Pair{
			{{0, 1}, {2, 3}},
			{{0, 2}, {1, 3}},
			{{0, 3}, {1, 2}},
		}, s.Rounds())
		assert.Equal(t, []Step{{0, 1, true}, {1, 2, true}, {2, 3, true}}, s.Steps(0))
		assert.Equal(t, []Step{{0, 2, false}, {1, 1, false}, {2, 0, false}}, s.Steps(3))
		assert.Equal(t, []int{0, 3, 2}, s.Peers(1))
	}
	{ // Every round is a matching and every pair is exchanged once
		var pairs []Pair
		for p := 0; p < 9; p++ {
			pairs = append(pairs, Pair{p, p + 1}, Pair{p, (p + 3) % 10}, Pair{p + 1, p})
		}
		s, err := NewSchedule(10, pairs)
		require.NoError(t, err)
		count := map[Pair]int{}
		for _, round := range s.Rounds() {
			inRound := map[int]bool{}
			for _, p := range round {
				assert.False(t, inRound[p.A] || inRound[p.B])
				inRound[p.A], inRound[p.B] = true, true
				count[p]++
				assert.Less(t, p.A, p.B)
			}
		}
		for _, c := range count {
			assert.Equal(t, 1, c)
		}
		// The same input gives the same schedule
		s2, err := NewSchedule(10, pairs)
		require.NoError(t, err)
		assert.Equal(t, s.Rounds(), s2.Rounds())
	}
	{ // Invalid input
		_, err := NewSchedule(0, nil)
		assert.Error(t, err)
		_, err = NewSchedule(2, []Pair{{1, 1}})
		assert.Error(t, err)
		_, err = NewSchedule(2, []Pair{{0, 2}})
		assert.Error(t, err)
	}
	{ // One partition
		s, err := NewSchedule(1, nil)
		require.NoError(t, err)
		assert.Empty(t, s.Rounds())
		assert.Empty(t, s.Steps(0))
	}
}

func TestExchangeAllToAll(t *testing.T) {
	const nParts = 4
	sched, err := NewSchedule(nParts, allPairs(nParts))
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		halos = make([][][]float64, nParts)
		sums  = make([][]float64, nParts)
	)
	err = Run(context.Background(), nParts, func(part int, tr Transport) (err error) {
		var (
			ifaces []Interface
			v      = make([]float64, nParts)
		)
		for c := range v {
			v[c] = float64(10*part + c)
		}
		for _, q := range sched.Peers(part) {
			ifaces = append(ifaces, Interface{Neighbour: q, Cells: []int{q, part}})
		}
		x, err := NewExchanger[block.R1](part, sched, tr, ifaces)
		if err != nil {
			return
		}
		halo := x.NewHalo()
		if err = x.Exchange(v, halo); err != nil {
			return
		}
		vals := []float64{float64(part), 1, 0.1}
		if err = x.SumAll(vals); err != nil {
			return
		}
		mu.Lock()
		halos[part], sums[part] = halo, vals
		mu.Unlock()
		return
	})
	require.NoError(t, err)
	for p := 0; p < nParts; p++ {
		for i, q := range sched.Peers(p) {
			// q's interface to p lists q's cells p and q
			assert.Equal(t, []float64{float64(10*q + p), float64(10*q + q)}, halos[p][i])
		}
		assert.Equal(t, sums[0], sums[p])
	}
	assert.InDeltaSlice(t, []float64{6, 4, 0.4}, sums[0], 1.e-15)
}

func TestRunFailure(t *testing.T) {
	var (
		boom  = errors.New("boom")
		sched *Schedule
		err   error
	)
	sched, err = NewSchedule(3, []Pair{{0, 1}, {1, 2}})
	require.NoError(t, err)
	aborted := make([]error, 3)
	err = Run(context.Background(), 3, func(part int, tr Transport) error {
		if part == 1 {
			return boom
		}
		x, err := NewExchanger[block.R1](part, sched, tr, []Interface{{Neighbour: 1, Cells: []int{0}}})
		if err != nil {
			return err
		}
		aborted[part] = x.Exchange([]float64{1}, x.NewHalo())
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "partition 1")
	for _, part := range []int{0, 2} {
		assert.True(t, errors.Is(aborted[part], ErrAborted), "partition %d: %v", part, aborted[part])
	}
}

func TestNewExchangerValidation(t *testing.T) {
	sched, err := NewSchedule(3, []Pair{{0, 1}})
	require.NoError(t, err)
	tr := NewMemoryTransport(context.Background(), 3)
	_, err = NewExchanger[block.R1](0, sched, tr.Endpoint(0), nil)
	assert.Error(t, err)
	_, err = NewExchanger[block.R1](0, sched, tr.Endpoint(0), []Interface{{Neighbour: 2}})
	assert.Error(t, err)
	_, err = NewExchanger[block.R1](3, sched, tr.Endpoint(0), nil)
	assert.Error(t, err)
	_, err = NewExchanger[block.R1](0, sched, nil, []Interface{{Neighbour: 1}})
	assert.Error(t, err)
	x, err := NewExchanger[block.R1](2, sched, tr.Endpoint(2), nil)
	require.NoError(t, err)
	a, err := addressing.Build(addressing.NewChain(2))
	require.NoError(t, err)
	_, err = NewCoupledMatrix(blockmatrix.New[block.R1](a, true), x, [][]float64{{1}})
	assert.Error(t, err)
}

// chainMatrix is the global n element chain with diagonal d and coupling c.
func chainMatrix(t *testing.T, n int, d, c float64) *blockmatrix.Matrix[block.R1] {
	a, err := addressing.Build(addressing.NewChain(n))
	require.NoError(t, err)
	m := blockmatrix.New[block.R1](a, true)
	for e := 0; e < n; e++ {
		m.SetDiagonal(e, []float64{d})
	}
	for b := 0; b < a.NBonds(); b++ {
		m.SetBond(b, nil, []float64{c})
	}
	return m
}

func TestSinglePartitionIsBitIdentical(t *testing.T) {
	var (
		m = chainMatrix(t, 7, 2.1, -1.05)
		x = []float64{0.1, 0.7, -0.3, 1.9, 2.2, -4.1, 0.01}
		b = make([]float64, 7)
	)
	sched, err := NewSchedule(1, nil)
	require.NoError(t, err)
	ex, err := NewExchanger[block.R1](0, sched, nil, nil)
	require.NoError(t, err)
	cm, err := NewCoupledMatrix(m, ex, nil)
	require.NoError(t, err)

	y1, y2 := make([]float64, 7), make([]float64, 7)
	require.NoError(t, m.Multiply(y1, x))
	require.NoError(t, cm.Multiply(y2, x))
	assert.Equal(t, y1, y2)

	vals := []float64{0.1, 0.2}
	require.NoError(t, ex.SumAll(vals))
	assert.Equal(t, []float64{0.1, 0.2}, vals)

	copy(b, y1)
	xs, serial, err := solver.Solve(m, nil, b, nil, solver.DefaultSettings())
	require.NoError(t, err)
	xd := make([]float64, 7)
	dist, err := solver.NewBiCGStab(cm, nil, ex, solver.DefaultSettings()).Solve(xd, b)
	require.NoError(t, err)
	assert.Equal(t, xs, xd)
	assert.Equal(t, serial.Iterations, dist.Iterations)
	assert.Equal(t, serial.FinalResidual, dist.FinalResidual)
}

func TestTwoPartitionSolve(t *testing.T) {
	const n = 8
	var (
		global = chainMatrix(t, n, 2.5, -1)
		xStar  = []float64{1, -1, 2, 0.5, 3, -2, 1, 0}
		b      = make([]float64, n)
		set    = solver.DefaultSettings()
	)
	set.AbsoluteTolerance = 1.e-12
	require.NoError(t, global.Multiply(b, xStar))
	xs, serial, err := solver.Solve(global, nil, b, nil, set)
	require.NoError(t, err)
	require.Equal(t, solver.Converged, serial.Status)

	// Elements 0-3 on partition 0, 4-7 on partition 1, coupled by bond 3-4
	sched, err := NewSchedule(2, []Pair{{0, 1}})
	require.NoError(t, err)
	var (
		local  = chainMatrix(t, n/2, 2.5, -1)
		xParts = make([][]float64, 2)
		yParts = make([][]float64, 2)
	)
	err = Run(context.Background(), 2, func(part int, tr Transport) (err error) {
		iface := Interface{Neighbour: 1 - part, Cells: []int{n/2 - 1}}
		if part == 1 {
			iface.Cells = []int{0}
		}
		x, err := NewExchanger[block.R1](part, sched, tr, []Interface{iface})
		if err != nil {
			return
		}
		cm, err := NewCoupledMatrix(local, x, [][]float64{{-1}})
		if err != nil {
			return
		}
		lo := part * n / 2
		y := make([]float64, n/2)
		if err = cm.Multiply(y, xStar[lo:lo+n/2]); err != nil {
			return
		}
		xl := make([]float64, n/2)
		res, err := solver.NewBiCGStab(cm, nil, x, set).Solve(xl, b[lo:lo+n/2])
		if err != nil {
			return
		}
		if res.Status != solver.Converged {
			return errors.New(res.String())
		}
		xParts[part], yParts[part] = xl, y
		return
	})
	require.NoError(t, err)
	assert.InDeltaSlice(t, b, append(yParts[0], yParts[1]...), 1.e-14)
	assert.InDeltaSlice(t, xs, append(xParts[0], xParts[1]...), 1.e-10)
	assert.InDeltaSlice(t, xStar, append(xParts[0], xParts[1]...), 1.e-10)
}
