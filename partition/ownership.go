// Package partition splits a connectivity graph into sub domains, one per
// partition, and records what each sub domain shares with its neighbours.
package partition

import (
	"fmt"
	"log"

	metis "github.com/notargets/go-metis"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/utils"
)

// Config holds the METIS settings.
type Config struct {
	NumPartitions   int32
	ImbalanceFactor float32 // e.g. 1.05 for 5% imbalance
	Objective       string  // "cut" or "vol"
	// VertexWeights is the cost of each element, nil for uniform cost.
	VertexWeights []int32
}

func DefaultConfig(nparts int32) *Config {
	return &Config{
		NumPartitions:   nparts,
		ImbalanceFactor: 1.05,
		Objective:       "vol", // minimize communication volume
	}
}

// SimpleOwnership splits the element numbering into nParts contiguous ranges
// differing in size by at most one.
func SimpleOwnership(n, nParts int) (owner []int) {
	pm := utils.NewPartitionMap(nParts, n)
	owner = make([]int, n)
	for p := 0; p < nParts; p++ {
		kMin, kMax := pm.GetBucketRange(p)
		for k := kMin; k < kMax; k++ {
			owner[k] = p
		}
	}
	return
}

// MetisOwnership partitions g with METIS k-way, weighting every bond by one.
func MetisOwnership(g addressing.Graph, cfg *Config) (owner []int, err error) {
	var (
		a  *addressing.Addressing
		ne = g.NumElements()
	)
	if a, err = addressing.Build(g); err != nil {
		return
	}
	if cfg.NumPartitions < 1 {
		err = fmt.Errorf("partition count %d must be positive", cfg.NumPartitions)
		return
	}
	if cfg.VertexWeights != nil && len(cfg.VertexWeights) != ne {
		err = fmt.Errorf("%d vertex weights for %d elements", len(cfg.VertexWeights), ne)
		return
	}
	owner = make([]int, ne)
	if cfg.NumPartitions == 1 || ne == 0 {
		return
	}
	log.Printf("Partitioning graph with %d elements into %d parts", ne, cfg.NumPartitions)

	xadj, adjncy := metisGraph(a)
	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if cfg.Objective == "vol" {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	}
	ubvec := []float32{cfg.ImbalanceFactor}

	part, objval, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, cfg.VertexWeights, nil,
		cfg.NumPartitions, nil, ubvec, opts,
	)
	if err != nil {
		return nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	for i := range owner {
		owner[i] = int(part[i])
	}
	log.Printf("  METIS objective value: %d", objval)
	return
}

// metisGraph converts the addressing to the symmetric CSR adjacency METIS
// expects.
func metisGraph(a *addressing.Addressing) (xadj, adjncy []int32) {
	var (
		ne           = a.NRows()
		lower, upper = a.LowerAddr(), a.UpperAddr()
	)
	xadj = make([]int32, ne+1)
	adjncy = make([]int32, 0, 2*a.NBonds())
	for e := 0; e < ne; e++ {
		for _, b := range a.NeighbourBonds(e) {
			adjncy = append(adjncy, int32(lower[b]))
		}
		for _, b := range a.OwnedBonds(e) {
			adjncy = append(adjncy, int32(upper[b]))
		}
		xadj[e+1] = int32(len(adjncy))
	}
	return
}
