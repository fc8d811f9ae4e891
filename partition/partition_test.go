package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/exchange"
)

func grid(nx, ny int) *addressing.Connectivity {
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
	g.Regions = []addressing.Region{{Name: "south", Elements: make([]int, nx)}}
	for i := 0; i < nx; i++ {
		g.Regions[0].Elements[i] = i
	}
	return g
}

func TestSimpleOwnership(t *testing.T) {
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 2, 2, 2}, SimpleOwnership(10, 3))
	assert.Equal(t, []int{0, 0, 0}, SimpleOwnership(3, 1))
	assert.Equal(t, []int{0, 1}, SimpleOwnership(2, 4))
}

func TestDecomposeChain(t *testing.T) {
	g := addressing.NewChain(10)
	domains, err := Decompose(g, SimpleOwnership(10, 3), 3)
	require.NoError(t, err)
	require.Len(t, domains, 3)

	d0, d1, d2 := domains[0], domains[1], domains[2]
	assert.Equal(t, []int{0, 1, 2, 3}, d0.Global)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}}, d0.Graph.Links)
	assert.Equal(t, []int{0, 1, 2}, d0.BondMap)
	assert.Equal(t, []Interface{{Neighbour: 1, Cells: []int{3}, Bonds: []int{3}, Owner: []bool{true}}},
		d0.Interfaces)
	assert.Equal(t, []Interface{
		{Neighbour: 0, Cells: []int{0}, Bonds: []int{3}, Owner: []bool{false}},
		{Neighbour: 2, Cells: []int{2}, Bonds: []int{6}, Owner: []bool{true}},
	}, d1.Interfaces)
	assert.Equal(t, []int{4, 5}, d1.BondMap)

	// Regions keep their index everywhere
	assert.Equal(t, "left", d1.Graph.Regions[0].Name)
	assert.Equal(t, []int{0}, d0.Graph.Regions[0].Elements)
	assert.Empty(t, d1.Graph.Regions[0].Elements)
	assert.Equal(t, []int{2}, d2.Graph.Regions[1].Elements)
	assert.Equal(t, []int{0}, d2.RegionFaces[1])

	assert.Equal(t, []exchange.Pair{{A: 0, B: 1}, {A: 1, B: 2}}, Pairs(domains))
	assert.Equal(t, []exchange.Interface{{Neighbour: 0, Cells: []int{0}}, {Neighbour: 2, Cells: []int{2}}},
		d1.ExchangeInterfaces())

	s := Analyze(domains)
	assert.Equal(t, 2, s.CutBonds)
	assert.Equal(t, []int{4, 3, 3}, s.Elements)
	assert.InDelta(t, 0.2, s.Imbalance, 1.e-12)
	s.Log()

	for _, d := range domains {
		_, err := addressing.Build(d.Graph)
		assert.NoError(t, err)
	}
}

func TestDecomposeInterleaved(t *testing.T) {
	var (
		g     = grid(5, 4)
		owner = make([]int, g.N)
	)
	for e := range owner {
		owner[e] = (e / 2) % 3
	}
	domains, err := Decompose(g, owner, 3)
	require.NoError(t, err)

	// Every bond is either local to one domain or on both sides of an interface
	seen := make([]int, len(g.Links))
	for _, d := range domains {
		for l, b := range d.BondMap {
			seen[b] += 2
			link := d.Graph.Links[l]
			assert.Less(t, link[0], link[1])
			assert.ElementsMatch(t, g.Links[b][:], []int{d.Global[link[0]], d.Global[link[1]]})
		}
		for _, it := range d.Interfaces {
			assert.NotEqual(t, d.Part, it.Neighbour)
			for k, b := range it.Bonds {
				seen[b]++
				if k > 0 {
					assert.Less(t, it.Bonds[k-1], b)
				}
			}
		}
	}
	for b, c := range seen {
		assert.Equal(t, 2, c, "bond %d", b)
	}
	// Both sides of an interface list the same bonds
	for _, d := range domains {
		for _, it := range d.Interfaces {
			var peer *Interface
			for i := range domains[it.Neighbour].Interfaces {
				if domains[it.Neighbour].Interfaces[i].Neighbour == d.Part {
					peer = &domains[it.Neighbour].Interfaces[i]
				}
			}
			require.NotNil(t, peer)
			assert.Equal(t, it.Bonds, peer.Bonds)
		}
	}

	global := make([]float64, 2*g.N)
	for i := range global {
		global[i] = float64(i)
	}
	assert.Equal(t, global, Gather(domains, Scatter(domains, global, 2), 2))
}

func TestDecomposeInvalid(t *testing.T) {
	g := addressing.NewChain(3)
	_, err := Decompose(g, []int{0, 1}, 2)
	assert.Error(t, err)
	_, err = Decompose(g, []int{0, 1, 2}, 2)
	assert.Error(t, err)
	_, err = Decompose(g, []int{0, 0, 0}, 0)
	assert.Error(t, err)
	_, err = Decompose(&addressing.Connectivity{N: 2, Links: [][2]int{{0, 0}}}, []int{0, 0}, 1)
	assert.Error(t, err)
}

func TestMetisOwnership(t *testing.T) {
	g := grid(8, 8)
	{ // One part needs no METIS call
		owner, err := MetisOwnership(g, DefaultConfig(1))
		require.NoError(t, err)
		assert.Equal(t, make([]int, 64), owner)
	}
	{
		owner, err := MetisOwnership(g, DefaultConfig(4))
		require.NoError(t, err)
		count := map[int]int{}
		for _, p := range owner {
			count[p]++
		}
		assert.Len(t, count, 4)
		domains, err := Decompose(g, owner, 4)
		require.NoError(t, err)
		assert.LessOrEqual(t, Analyze(domains).Imbalance, 0.1)
	}
	{
		cfg := DefaultConfig(2)
		cfg.VertexWeights = []int32{1}
		_, err := MetisOwnership(g, cfg)
		assert.Error(t, err)
	}
}
