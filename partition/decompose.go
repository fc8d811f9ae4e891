package partition

import (
	"fmt"
	"log"
	"sort"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/exchange"
)

// Interface is the part of a sub domain coupled to one neighbouring
// partition: for every shared global bond, in ascending bond order, the local
// cell on this side.
type Interface struct {
	Neighbour int
	Cells     []int
	Bonds     []int
	// Owner is true where this side holds the owner (lower) end of the bond.
	Owner []bool
}

// Domain is one partition's share of the global graph. Local elements are
// numbered in ascending global order, so local bonds keep owner < neighbour.
type Domain struct {
	Part  int
	Graph *addressing.Connectivity
	// Global maps local element -> global element.
	Global []int
	// BondMap maps local bond -> global bond.
	BondMap []int
	// RegionFaces maps, per boundary region, local face -> global face.
	RegionFaces [][]int
	Interfaces  []Interface
}

// Decompose builds one Domain per partition from an element ownership array.
// Every global region appears in every domain, possibly empty, so region
// indices agree across partitions.
func Decompose(g addressing.Graph, owner []int, nParts int) (domains []*Domain, err error) {
	var (
		a     *addressing.Addressing
		local []int
	)
	if a, err = addressing.Build(g); err != nil {
		return
	}
	if nParts < 1 {
		return nil, fmt.Errorf("partition count %d must be positive", nParts)
	}
	if len(owner) != a.NRows() {
		return nil, fmt.Errorf("ownership of %d elements for a graph of %d", len(owner), a.NRows())
	}
	domains = make([]*Domain, nParts)
	for p := range domains {
		domains[p] = &Domain{
			Part:        p,
			Graph:       &addressing.Connectivity{},
			RegionFaces: make([][]int, a.NRegions()),
		}
		domains[p].Graph.Regions = make([]addressing.Region, a.NRegions())
		for i := range domains[p].Graph.Regions {
			domains[p].Graph.Regions[i].Name = a.Region(i).Name
		}
	}
	local = make([]int, a.NRows())
	for e, p := range owner {
		if p < 0 || p >= nParts {
			return nil, fmt.Errorf("element %d owned by partition %d outside [0,%d)", e, p, nParts)
		}
		d := domains[p]
		local[e] = len(d.Global)
		d.Global = append(d.Global, e)
	}
	iface := make([]map[int]*Interface, nParts)
	for p := range iface {
		iface[p] = map[int]*Interface{}
	}
	addShared := func(p, q, cell, bond int, isOwner bool) {
		it, ok := iface[p][q]
		if !ok {
			it = &Interface{Neighbour: q}
			iface[p][q] = it
		}
		it.Cells = append(it.Cells, cell)
		it.Bonds = append(it.Bonds, bond)
		it.Owner = append(it.Owner, isOwner)
	}
	lower, upper := a.LowerAddr(), a.UpperAddr()
	for b := range lower {
		o, n := lower[b], upper[b]
		po, pn := owner[o], owner[n]
		if po == pn {
			d := domains[po]
			d.Graph.Links = append(d.Graph.Links, [2]int{local[o], local[n]})
			d.BondMap = append(d.BondMap, b)
			continue
		}
		addShared(po, pn, local[o], b, true)
		addShared(pn, po, local[n], b, false)
	}
	for i := 0; i < a.NRegions(); i++ {
		for f, e := range a.Region(i).Elements {
			d := domains[owner[e]]
			d.Graph.Regions[i].Elements = append(d.Graph.Regions[i].Elements, local[e])
			d.RegionFaces[i] = append(d.RegionFaces[i], f)
		}
	}
	for p, d := range domains {
		d.Graph.N = len(d.Global)
		for _, it := range iface[p] {
			d.Interfaces = append(d.Interfaces, *it)
		}
		sort.Slice(d.Interfaces, func(i, j int) bool {
			return d.Interfaces[i].Neighbour < d.Interfaces[j].Neighbour
		})
	}
	return
}

// Pairs lists the neighbouring partition pairs, the input of
// exchange.NewSchedule.
func Pairs(domains []*Domain) (pairs []exchange.Pair) {
	for _, d := range domains {
		for _, it := range d.Interfaces {
			if d.Part < it.Neighbour {
				pairs = append(pairs, exchange.Pair{A: d.Part, B: it.Neighbour})
			}
		}
	}
	return
}

// ExchangeInterfaces returns the interfaces in the form the exchanger uses.
func (d *Domain) ExchangeInterfaces() (ifaces []exchange.Interface) {
	ifaces = make([]exchange.Interface, len(d.Interfaces))
	for i, it := range d.Interfaces {
		ifaces[i] = exchange.Interface{Neighbour: it.Neighbour, Cells: it.Cells}
	}
	return
}

// Scatter splits a global block vector of rank r into per domain vectors.
func Scatter(domains []*Domain, global []float64, r int) (parts [][]float64) {
	parts = make([][]float64, len(domains))
	for p, d := range domains {
		parts[p] = make([]float64, len(d.Global)*r)
		for l, e := range d.Global {
			copy(parts[p][l*r:l*r+r], global[e*r:e*r+r])
		}
	}
	return
}

// Gather reassembles a global block vector of rank r from per domain vectors.
func Gather(domains []*Domain, parts [][]float64, r int) (global []float64) {
	n := 0
	for _, d := range domains {
		n += len(d.Global)
	}
	global = make([]float64, n*r)
	for p, d := range domains {
		for l, e := range d.Global {
			copy(global[e*r:e*r+r], parts[p][l*r:l*r+r])
		}
	}
	return
}

// Stats summarises a decomposition.
type Stats struct {
	NumPartitions int
	Elements      []int
	CutBonds      int
	Neighbours    []int
	Imbalance     float64 // max/avg - 1
}

func Analyze(domains []*Domain) (s Stats) {
	var (
		total, maxN int
	)
	s.NumPartitions = len(domains)
	s.Elements = make([]int, len(domains))
	s.Neighbours = make([]int, len(domains))
	for p, d := range domains {
		s.Elements[p] = len(d.Global)
		s.Neighbours[p] = len(d.Interfaces)
		total += len(d.Global)
		if len(d.Global) > maxN {
			maxN = len(d.Global)
		}
		for _, it := range d.Interfaces {
			s.CutBonds += len(it.Bonds)
		}
	}
	s.CutBonds /= 2
	if total > 0 {
		s.Imbalance = float64(maxN)/(float64(total)/float64(len(domains))) - 1
	}
	return
}

func (s Stats) Log() {
	log.Printf("Partition Analysis:")
	log.Printf("  Cut bonds: %d", s.CutBonds)
	log.Printf("  Load imbalance: %.2f%%", s.Imbalance*100)
	for p := 0; p < s.NumPartitions; p++ {
		log.Printf("  Partition %d: %d elements, %d neighbours", p, s.Elements[p], s.Neighbours[p])
	}
}
