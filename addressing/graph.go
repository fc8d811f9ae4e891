package addressing

// Region is a named group of elements each owning one boundary face. The
// element order is the native face order of the region.
type Region struct {
	Name     string
	Elements []int
}

// Graph is the mesh connectivity consumed by Build. Bonds are unordered pairs
// of element indices, one per internal face.
type Graph interface {
	NumElements() int
	Bonds() [][2]int
	BoundaryRegions() []Region
}

// Connectivity is a plain Graph, used when the topology comes from somewhere
// other than a mesh object (tests, decomposed sub domains).
type Connectivity struct {
	N       int
	Links   [][2]int
	Regions []Region
}

func (c *Connectivity) NumElements() int          { return c.N }
func (c *Connectivity) Bonds() [][2]int           { return c.Links }
func (c *Connectivity) BoundaryRegions() []Region { return c.Regions }

// NewChain returns n elements coupled in a line, 0-1-2-...-(n-1), with the
// two ends exposed as regions "left" and "right".
func NewChain(n int) (c *Connectivity) {
	c = &Connectivity{N: n}
	for i := 0; i+1 < n; i++ {
		c.Links = append(c.Links, [2]int{i, i + 1})
	}
	if n > 0 {
		c.Regions = []Region{
			{Name: "left", Elements: []int{0}},
			{Name: "right", Elements: []int{n - 1}},
		}
	}
	return
}
