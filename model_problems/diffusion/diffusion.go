// Package diffusion assembles block-coupled diffusion-reaction systems on an
// element graph: every bond couples its two elements through a diffusivity
// block, Dirichlet regions add a boundary coefficient, and an optional
// upwind convection term along the bond direction makes the system
// asymmetric.
package diffusion

import (
	"fmt"
	"sort"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/blockmatrix"
	"github.com/denMaier/solids4foam-sub001/partition"
)

// Config holds the physical coefficients. Block valued fields are r×r row
// major, vector valued fields have length r. Nil blocks default to the
// identity for Diffusivity and to zero otherwise.
type Config struct {
	Diffusivity []float64
	Reaction    []float64
	// Convection is an upwind velocity from the owner to the neighbour of
	// every bond. Zero keeps symmetric storage.
	Convection float64
	Source     []float64
	// Dirichlet maps a boundary region name to its fixed value.
	Dirichlet map[string][]float64
}

type coefficients struct {
	gamma, reaction, source, conv []float64
	upper, lower                  []float64
	ownerDiag, neighbourDiag      []float64
	dirichlet                     map[int][]float64
}

func (cfg *Config) coefficients(r int, a *addressing.Addressing) (c *coefficients, err error) {
	bs := r * r
	c = &coefficients{dirichlet: make(map[int][]float64)}
	if c.gamma = cfg.Diffusivity; c.gamma == nil {
		c.gamma = block.Identity(r)
	}
	if len(c.gamma) != bs {
		return nil, fmt.Errorf("diffusivity has %d entries, want %d", len(c.gamma), bs)
	}
	if cfg.Reaction != nil && len(cfg.Reaction) != bs {
		return nil, fmt.Errorf("reaction has %d entries, want %d", len(cfg.Reaction), bs)
	}
	c.reaction = cfg.Reaction
	if c.source = cfg.Source; c.source == nil {
		c.source = make([]float64, r)
	}
	if len(c.source) != r {
		return nil, fmt.Errorf("source has %d entries, want %d", len(c.source), r)
	}
	if cfg.Convection < 0 {
		return nil, fmt.Errorf("convection %g must not be negative", cfg.Convection)
	}
	c.conv = block.Scaled(r, cfg.Convection)

	c.upper = make([]float64, bs)
	c.lower = make([]float64, bs)
	c.ownerDiag = append([]float64(nil), c.gamma...)
	c.neighbourDiag = make([]float64, bs)
	for i := range c.upper {
		c.upper[i] = -c.gamma[i]
		c.lower[i] = -c.gamma[i] - c.conv[i]
		c.neighbourDiag[i] = c.gamma[i] + c.conv[i]
	}

	names := make([]string, 0, len(cfg.Dirichlet))
	for name := range cfg.Dirichlet {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := cfg.Dirichlet[name]
		region := a.RegionIndex(name)
		if region < 0 {
			return nil, fmt.Errorf("dirichlet value for unknown region %q", name)
		}
		if len(value) != r {
			return nil, fmt.Errorf("dirichlet value for %q has %d entries, want %d", name, len(value), r)
		}
		source := make([]float64, r)
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				source[i] += c.gamma[i*r+j] * value[j]
			}
		}
		c.dirichlet[region] = source
	}
	return
}

// Symmetric reports whether the assembled matrix uses symmetric storage.
func (cfg *Config) Symmetric() bool { return cfg.Convection == 0 }

// Assemble builds the matrix and right hand side on the whole graph.
func Assemble[K block.Kernel](a *addressing.Addressing, cfg *Config) (m *blockmatrix.Matrix[K],
	rhs []float64, err error) {
	m, rhs, _, err = assemble[K](a, cfg, nil)
	return
}

// AssembleDomain builds one partition's local matrix and right hand side,
// plus the coefficients coupling each interface cell to the neighbour's
// cell, laid out for exchange.NewCoupledMatrix.
func AssembleDomain[K block.Kernel](dom *partition.Domain, cfg *Config) (m *blockmatrix.Matrix[K],
	rhs []float64, coeffs [][]float64, err error) {
	var a *addressing.Addressing
	if a, err = addressing.Build(dom.Graph); err != nil {
		return nil, nil, nil, fmt.Errorf("partition %d: %w", dom.Part, err)
	}
	return assemble[K](a, cfg, dom.Interfaces)
}

func assemble[K block.Kernel](a *addressing.Addressing, cfg *Config,
	ifaces []partition.Interface) (m *blockmatrix.Matrix[K], rhs []float64, coeffs [][]float64, err error) {
	var (
		r = block.RankOf[K]()
		c *coefficients
	)
	if c, err = cfg.coefficients(r, a); err != nil {
		return
	}
	m = blockmatrix.New[K](a, cfg.Symmetric())
	rhs = make([]float64, m.Len())
	for e := 0; e < a.NRows(); e++ {
		if c.reaction != nil {
			m.AddToDiagonal(e, c.reaction)
		}
		copy(rhs[e*r:(e+1)*r], c.source)
	}
	for b := 0; b < a.NBonds(); b++ {
		if cfg.Symmetric() {
			m.SetBond(b, nil, c.upper)
		} else {
			m.SetBond(b, c.lower, c.upper)
		}
		m.AddToDiagonal(a.LowerAddr()[b], c.ownerDiag)
		m.AddToDiagonal(a.UpperAddr()[b], c.neighbourDiag)
	}
	for region := 0; region < a.NRegions(); region++ {
		source, ok := c.dirichlet[region]
		if !ok {
			continue
		}
		for f := range a.Region(region).Elements {
			m.SetBoundaryCoefficient(region, f, c.gamma, source)
		}
	}
	if err = m.AddBoundarySource(rhs); err != nil {
		return
	}

	coeffs = make([][]float64, len(ifaces))
	for i, it := range ifaces {
		coeffs[i] = make([]float64, 0, len(it.Cells)*r*r)
		for k, cell := range it.Cells {
			if it.Owner[k] {
				m.AddToDiagonal(cell, c.ownerDiag)
				coeffs[i] = append(coeffs[i], c.upper...)
			} else {
				m.AddToDiagonal(cell, c.neighbourDiag)
				coeffs[i] = append(coeffs[i], c.lower...)
			}
		}
	}
	return
}
