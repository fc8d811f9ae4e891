package addressing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	{ // Bonds are canonicalised and keep their input order
		g := &Connectivity{
			N:     4,
			Links: [][2]int{{1, 0}, {1, 2}, {3, 2}, {0, 3}},
			Regions: []Region{
				{Name: "wall", Elements: []int{3, 0, 0}},
			},
		}
		a, err := Build(g)
		require.NoError(t, err)
		assert.Equal(t, 4, a.NRows())
		assert.Equal(t, 4, a.NBonds())
		assert.Equal(t, []int{0, 1, 2, 0}, a.LowerAddr())
		assert.Equal(t, []int{1, 2, 3, 3}, a.UpperAddr())
		for i := 0; i < a.NBonds(); i++ {
			assert.Less(t, a.LowerAddr()[i], a.UpperAddr()[i])
		}
		assert.Equal(t, 1, a.NRegions())
		assert.Equal(t, []int{3, 0, 0}, a.Region(0).Elements)
		assert.Equal(t, 0, a.RegionIndex("wall"))
		assert.Equal(t, -1, a.RegionIndex("inlet"))
		// Element 0 owns bonds 0 (0-1) and 3 (0-3)
		assert.Equal(t, []int{0, 3}, a.OwnedBonds(0))
		assert.Empty(t, a.NeighbourBonds(0))
		// Element 3 is the neighbour of bonds 3 (0-3) and 2 (2-3)
		assert.Equal(t, []int{3, 2}, a.NeighbourBonds(3))
		assert.Empty(t, a.OwnedBonds(3))
		assert.Equal(t, 3, a.Bandwidth())
	}
	{ // Region element arrays are copies
		elems := []int{0, 1}
		a, err := Build(&Connectivity{N: 2, Links: [][2]int{{0, 1}},
			Regions: []Region{{Name: "r", Elements: elems}}})
		require.NoError(t, err)
		elems[0] = 1
		assert.Equal(t, 0, a.Region(0).Elements[0])
	}
	{ // An empty graph is valid
		a, err := Build(&Connectivity{})
		require.NoError(t, err)
		assert.Equal(t, 0, a.NBonds())
	}
}

func TestBuildInvalid(t *testing.T) {
	cases := map[string]*Connectivity{
		"self-loop":        {N: 3, Links: [][2]int{{0, 1}, {2, 2}}},
		"out of range":     {N: 3, Links: [][2]int{{0, 3}}},
		"negative element": {N: 3, Links: [][2]int{{-1, 1}}},
		"duplicate bond":   {N: 3, Links: [][2]int{{0, 1}, {1, 0}}},
		"region out of range": {N: 2, Links: [][2]int{{0, 1}},
			Regions: []Region{{Name: "bad", Elements: []int{0, 2}}}},
		"negative count": {N: -1},
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			a, err := Build(g)
			assert.Nil(t, a)
			var topo *InvalidTopologyError
			require.True(t, errors.As(err, &topo), "got %v", err)
			assert.NotEmpty(t, topo.Error())
		})
	}
	_, err := Build(&Connectivity{N: 3, Links: [][2]int{{0, 1}, {2, 2}}})
	var topo *InvalidTopologyError
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, 1, topo.Bond)

	{ // A repeated pair is reported against the later bond
		_, err := Build(&Connectivity{N: 4, Links: [][2]int{{0, 1}, {2, 3}, {3, 2}}})
		require.True(t, errors.As(err, &topo))
		assert.Equal(t, 2, topo.Bond)
		assert.Contains(t, topo.Error(), "already coupled by bond 1")
	}
}

func TestReverseCuthillMcKee(t *testing.T) {
	// A chain numbered badly: 0-5-1-4-2-3
	g := &Connectivity{N: 6, Links: [][2]int{{0, 5}, {5, 1}, {1, 4}, {4, 2}, {2, 3}},
		Regions: []Region{{Name: "end", Elements: []int{3}}}}
	a, err := Build(g)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Bandwidth())

	perm := ReverseCuthillMcKee(g)
	// Walk starts at the lowest numbered degree one end
	assert.Equal(t, []int{3, 2, 4, 1, 5, 0}, perm)
	assert.Equal(t, perm, ReverseCuthillMcKee(g))
	r, oldToNew := Renumber(g, perm)
	b, err := Build(r)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Bandwidth())
	for nw, old := range perm {
		assert.Equal(t, nw, oldToNew[old])
	}
	assert.Equal(t, []int{oldToNew[3]}, b.Region(0).Elements)

	{ // Disconnected components are all visited
		g := &Connectivity{N: 5, Links: [][2]int{{0, 1}, {3, 4}}}
		perm := ReverseCuthillMcKee(g)
		seen := map[int]bool{}
		for _, e := range perm {
			seen[e] = true
		}
		assert.Len(t, seen, 5)
		// The isolated element seeds the first walk
		assert.Equal(t, []int{4, 3, 1, 0, 2}, perm)
	}
	{ // Invalid bonds are ignored
		g := &Connectivity{N: 3, Links: [][2]int{{0, 1}, {1, 1}, {1, 7}, {1, 2}}}
		assert.Equal(t, []int{2, 1, 0}, ReverseCuthillMcKee(g))
	}
}

func TestNewChain(t *testing.T) {
	c := NewChain(3)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, c.Bonds())
	assert.Equal(t, "right", c.BoundaryRegions()[1].Name)
	assert.Equal(t, []int{2}, c.BoundaryRegions()[1].Elements)
}
