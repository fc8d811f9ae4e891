package addressing

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// degreeOrdered presents the neighbours of a node in ascending degree, ties
// broken by ID, so that the breadth first walk is deterministic.
type degreeOrdered struct {
	*simple.UndirectedGraph
}

func (g degreeOrdered) degree(id int64) int { return g.UndirectedGraph.From(id).Len() }

func (g degreeOrdered) sorted(nodes []graph.Node) []graph.Node {
	sort.Slice(nodes, func(i, j int) bool {
		di, dj := g.degree(nodes[i].ID()), g.degree(nodes[j].ID())
		if di != dj {
			return di < dj
		}
		return nodes[i].ID() < nodes[j].ID()
	})
	return nodes
}

func (g degreeOrdered) From(id int64) graph.Nodes {
	return iterator.NewOrderedNodes(g.sorted(graph.NodesOf(g.UndirectedGraph.From(id))))
}

// ReverseCuthillMcKee returns a bandwidth reducing ordering of the elements
// of g: perm[newIndex] = oldIndex. Each connected component is started from
// its minimum degree element. Invalid bonds are skipped; Build reports them.
func ReverseCuthillMcKee(g Graph) (perm []int) {
	var (
		n  = g.NumElements()
		ug = simple.NewUndirectedGraph()
	)
	for e := 0; e < n; e++ {
		ug.AddNode(simple.Node(e))
	}
	for _, b := range g.Bonds() {
		if b[0] < 0 || b[0] >= n || b[1] < 0 || b[1] >= n || b[0] == b[1] {
			continue
		}
		ug.SetEdge(ug.NewEdge(simple.Node(b[0]), simple.Node(b[1])))
	}
	var (
		dg    = degreeOrdered{ug}
		seeds = dg.sorted(graph.NodesOf(ug.Nodes()))
		bfs   = traverse.BreadthFirst{
			Visit: func(nd graph.Node) { perm = append(perm, int(nd.ID())) },
		}
	)
	perm = make([]int, 0, n)
	for _, s := range seeds {
		if bfs.Visited(s) {
			continue
		}
		bfs.Walk(dg, s, nil)
	}
	for i, j := 0, len(perm)-1; i < j; i, j = i+1, j-1 {
		perm[i], perm[j] = perm[j], perm[i]
	}
	return
}

// Renumber returns g with elements relabelled by perm (perm[new] = old).
// Bond and region face order are kept. The second return maps old to new.
// g must be a valid topology; validate it with Build first.
func Renumber(g Graph, perm []int) (r *Connectivity, oldToNew []int) {
	n := g.NumElements()
	oldToNew = make([]int, n)
	for nw, old := range perm {
		oldToNew[old] = nw
	}
	r = &Connectivity{N: n}
	for _, b := range g.Bonds() {
		r.Links = append(r.Links, [2]int{oldToNew[b[0]], oldToNew[b[1]]})
	}
	for _, reg := range g.BoundaryRegions() {
		elems := make([]int, len(reg.Elements))
		for i, e := range reg.Elements {
			elems[i] = oldToNew[e]
		}
		r.Regions = append(r.Regions, Region{Name: reg.Name, Elements: elems})
	}
	return
}
