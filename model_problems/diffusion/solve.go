package diffusion

import (
	"context"
	"fmt"
	"log"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/exchange"
	"github.com/denMaier/solids4foam-sub001/partition"
	"github.com/denMaier/solids4foam-sub001/precon"
	"github.com/denMaier/solids4foam-sub001/solver"
)

// Options control how a problem is solved.
type Options struct {
	Settings solver.Settings
	// Preconditioner is used unless NoPreconditioner is set.
	Preconditioner   precon.Kind
	NoPreconditioner bool
	// Renumber reorders elements with reverse Cuthill-McKee before assembly,
	// carrying the ownership along for a decomposed solve. The solution is
	// returned in the original numbering. Convection follows the bond
	// direction of the renumbered graph.
	Renumber bool
	Verbose  bool
}

func DefaultOptions() Options {
	return Options{Settings: solver.DefaultSettings(), Preconditioner: precon.Cholesky}
}

// renumber validates g and relabels it in reverse Cuthill-McKee order.
func renumber(g addressing.Graph) (r addressing.Graph, oldToNew []int, err error) {
	if _, err = addressing.Build(g); err != nil {
		return
	}
	r, oldToNew = addressing.Renumber(g, addressing.ReverseCuthillMcKee(g))
	return
}

// originalOrder maps a block vector in renumbered order back to the
// original element order.
func originalOrder(x []float64, oldToNew []int, r int) (orig []float64) {
	orig = make([]float64, len(x))
	for old, nw := range oldToNew {
		copy(orig[old*r:(old+1)*r], x[nw*r:(nw+1)*r])
	}
	return
}

// SolveSerial assembles and solves the problem on the whole graph.
func SolveSerial[K block.Kernel](g addressing.Graph, cfg *Config, opt Options) (x []float64,
	res solver.Result, err error) {
	var (
		a        *addressing.Addressing
		oldToNew []int
	)
	if opt.Renumber {
		if g, oldToNew, err = renumber(g); err != nil {
			return
		}
	}
	if a, err = addressing.Build(g); err != nil {
		return
	}
	if opt.Verbose {
		log.Printf("%d elements, %d bonds, bandwidth %d\n", a.NRows(), a.NBonds(), a.Bandwidth())
	}
	m, rhs, err := Assemble[K](a, cfg)
	if err != nil {
		return
	}
	var pc solver.Preconditioner
	if !opt.NoPreconditioner {
		var p *precon.Preconditioner[K]
		if p, err = precon.New(m, opt.Preconditioner); err != nil {
			return
		}
		pc = p
	}
	if x, res, err = solver.Solve(m, pc, rhs, nil, opt.Settings); err != nil {
		return
	}
	if oldToNew != nil {
		x = originalOrder(x, oldToNew, block.RankOf[K]())
	}
	return
}

// SolveDecomposed splits g by owner (indexed by the original element
// numbering) into nParts domains and solves them
// concurrently, one goroutine per partition coupled through an in memory
// transport. Each partition preconditions its own block. The returned
// solution is in global numbering; results holds each partition's report,
// which agree on everything but Runtime.
func SolveDecomposed[K block.Kernel](ctx context.Context, g addressing.Graph, owner []int, nParts int,
	cfg *Config, opt Options) (x []float64, results []solver.Result, err error) {
	var (
		domains  []*partition.Domain
		sched    *exchange.Schedule
		oldToNew []int
		r        = block.RankOf[K]()
	)
	if err = opt.Settings.Validate(); err != nil {
		return
	}
	if opt.Renumber {
		if g, oldToNew, err = renumber(g); err != nil {
			return
		}
		// A short owner is left for Decompose to reject
		if len(owner) == len(oldToNew) {
			moved := make([]int, len(owner))
			for old, nw := range oldToNew {
				moved[nw] = owner[old]
			}
			owner = moved
		}
	}
	if domains, err = partition.Decompose(g, owner, nParts); err != nil {
		return
	}
	if opt.Verbose {
		partition.Analyze(domains).Log()
	}
	if sched, err = exchange.NewSchedule(nParts, partition.Pairs(domains)); err != nil {
		return
	}
	parts := make([][]float64, nParts)
	results = make([]solver.Result, nParts)
	err = exchange.Run(ctx, nParts, func(part int, tr exchange.Transport) (err error) {
		dom := domains[part]
		m, rhs, coeffs, err := AssembleDomain[K](dom, cfg)
		if err != nil {
			return
		}
		ex, err := exchange.NewExchanger[K](part, sched, tr, dom.ExchangeInterfaces())
		if err != nil {
			return
		}
		cm, err := exchange.NewCoupledMatrix(m, ex, coeffs)
		if err != nil {
			return
		}
		var pc solver.Preconditioner
		if !opt.NoPreconditioner {
			var p *precon.Preconditioner[K]
			if p, err = precon.New(m, opt.Preconditioner); err != nil {
				return
			}
			pc = p
		}
		xl := make([]float64, m.Len())
		if results[part], err = solver.NewBiCGStab(cm, pc, ex, opt.Settings).Solve(xl, rhs); err != nil {
			return
		}
		parts[part] = xl
		return
	})
	if err != nil {
		return nil, nil, fmt.Errorf("decomposed solve: %w", err)
	}
	x = partition.Gather(domains, parts, r)
	if oldToNew != nil {
		x = originalOrder(x, oldToNew, r)
	}
	return
}
