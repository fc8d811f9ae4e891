// Package addressing derives the sparse connectivity of a block matrix from
// mesh topology: owner/neighbour element pairs per bond and the owning
// elements of every boundary region.
package addressing

import (
	"fmt"
	"sort"
)

// InvalidTopologyError reports malformed connectivity. Bond is -1 when the
// problem is not tied to a bond.
type InvalidTopologyError struct {
	Bond   int
	Region string
	Reason string
}

func (e *InvalidTopologyError) Error() string {
	switch {
	case e.Bond >= 0:
		return fmt.Sprintf("addressing: invalid topology at bond %d: %s", e.Bond, e.Reason)
	case e.Region != "":
		return fmt.Sprintf("addressing: invalid topology in region %q: %s", e.Region, e.Reason)
	default:
		return "addressing: invalid topology: " + e.Reason
	}
}

// Addressing is built once per topology and shared read-only by the matrix,
// the preconditioner and the solver. Slices returned by the accessors must
// not be modified.
type Addressing struct {
	nRows int
	lower []int // owner, the smaller element index
	upper []int // neighbour
	// Bonds grouped by owner: ownerSort[ownerStart[e]:ownerStart[e+1]]
	ownerSort, ownerStart []int
	// Bonds grouped by neighbour: losort[losortStart[e]:losortStart[e+1]]
	losort, losortStart []int
	regions             []Region
}

// Build canonicalises every bond to owner < neighbour, keeping the bond order
// of the graph so bond indices used during assembly stay valid. It returns an
// *InvalidTopologyError for a negative element count, a bond with an element
// index out of range, a self-loop, a duplicate bond coupling the same pair of
// elements twice (in either orientation), or a region face outside the
// element range.
func Build(g Graph) (a *Addressing, err error) {
	var (
		n     = g.NumElements()
		bonds = g.Bonds()
		nb    = len(bonds)
	)
	if n < 0 {
		err = &InvalidTopologyError{Bond: -1, Reason: fmt.Sprintf("negative element count %d", n)}
		return
	}
	a = &Addressing{
		nRows: n,
		lower: make([]int, nb),
		upper: make([]int, nb),
	}
	seen := make(map[[2]int]int, nb)
	for i, b := range bonds {
		o, nbr := b[0], b[1]
		if o < 0 || o >= n || nbr < 0 || nbr >= n {
			return nil, &InvalidTopologyError{Bond: i,
				Reason: fmt.Sprintf("element index out of range [0,%d): (%d,%d)", n, o, nbr)}
		}
		if o == nbr {
			return nil, &InvalidTopologyError{Bond: i,
				Reason: fmt.Sprintf("self-loop on element %d", o)}
		}
		if o > nbr {
			o, nbr = nbr, o
		}
		key := [2]int{o, nbr}
		if prev, dup := seen[key]; dup {
			return nil, &InvalidTopologyError{Bond: i,
				Reason: fmt.Sprintf("elements (%d,%d) already coupled by bond %d", o, nbr, prev)}
		}
		seen[key] = i
		a.lower[i], a.upper[i] = o, nbr
	}
	for _, reg := range g.BoundaryRegions() {
		elems := make([]int, len(reg.Elements))
		for j, e := range reg.Elements {
			if e < 0 || e >= n {
				return nil, &InvalidTopologyError{Bond: -1, Region: reg.Name,
					Reason: fmt.Sprintf("face %d references element %d outside [0,%d)", j, e, n)}
			}
			elems[j] = e
		}
		a.regions = append(a.regions, Region{Name: reg.Name, Elements: elems})
	}
	a.ownerSort, a.ownerStart = groupBy(n, a.lower, a.upper)
	a.losort, a.losortStart = groupBy(n, a.upper, a.lower)
	return
}

// groupBy returns the bond indices ordered by key (ties by other) and the
// start offsets per key, in the CSR manner.
func groupBy(n int, key, other []int) (order, start []int) {
	order = make([]int, len(key))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		bi, bj := order[i], order[j]
		if key[bi] != key[bj] {
			return key[bi] < key[bj]
		}
		return other[bi] < other[bj]
	})
	start = make([]int, n+1)
	for _, k := range key {
		start[k+1]++
	}
	for e := 0; e < n; e++ {
		start[e+1] += start[e]
	}
	return
}

func (a *Addressing) NRows() int  { return a.nRows }
func (a *Addressing) NBonds() int { return len(a.lower) }

// LowerAddr returns the owner element of every bond.
func (a *Addressing) LowerAddr() []int { return a.lower }

// UpperAddr returns the neighbour element of every bond.
func (a *Addressing) UpperAddr() []int { return a.upper }

// OwnedBonds returns the bonds whose owner is element e, by ascending neighbour.
func (a *Addressing) OwnedBonds(e int) []int {
	return a.ownerSort[a.ownerStart[e]:a.ownerStart[e+1]]
}

// NeighbourBonds returns the bonds whose neighbour is element e, by ascending owner.
func (a *Addressing) NeighbourBonds(e int) []int {
	return a.losort[a.losortStart[e]:a.losortStart[e+1]]
}

func (a *Addressing) NRegions() int { return len(a.regions) }

// Region returns the i-th boundary region.
func (a *Addressing) Region(i int) Region { return a.regions[i] }

// RegionIndex finds a region by name, -1 when absent.
func (a *Addressing) RegionIndex(name string) int {
	for i, r := range a.regions {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// Bandwidth is the largest |neighbour-owner| over all bonds, a cheap measure
// of how well the element ordering suits the preconditioner sweeps.
func (a *Addressing) Bandwidth() (bw int) {
	for i, o := range a.lower {
		if d := a.upper[i] - o; d > bw {
			bw = d
		}
	}
	return
}
