package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/denMaier/solids4foam-sub001/model_problems/diffusion"
	"github.com/denMaier/solids4foam-sub001/precon"
	"github.com/denMaier/solids4foam-sub001/solver"
)

// Grid describes a generated Cartesian grid, used when no mesh file is given.
// NZ = 0 gives a 2-D grid of quads.
type Grid struct {
	NX      int        `json:"NX"`
	NY      int        `json:"NY"`
	NZ      int        `json:"NZ"`
	Lengths [3]float64 `json:"Lengths"`
}

// Parameters obtained from the YAML input file
type SolverParameters struct {
	Title             string  `json:"Title"`
	BlockRank         int     `json:"BlockRank"`
	Preconditioner    string  `json:"Preconditioner"` // cholesky, gaussseidel, diagonal or none
	RelativeTolerance float64 `json:"RelativeTolerance"`
	AbsoluteTolerance float64 `json:"AbsoluteTolerance"`
	MaxIterations     int     `json:"MaxIterations"`
	// BreakdownTolerance is the cosine below which a BiCGStab denominator
	// counts as zero
	BreakdownTolerance float64 `json:"BreakdownTolerance"`
	Partitions         int     `json:"Partitions"`
	Decomposition      string  `json:"Decomposition"` // simple or metis
	ImbalanceFactor    float32 `json:"ImbalanceFactor"`
	Renumber           bool    `json:"Renumber"`

	Grid        *Grid                `json:"Grid"`
	Diffusivity []float64            `json:"Diffusivity"`
	Reaction    []float64            `json:"Reaction"`
	Convection  float64              `json:"Convection"`
	Source      []float64            `json:"Source"`
	BCs         map[string][]float64 `json:"BCs"` // Dirichlet value per boundary region
}

// NewSolverParameters returns the parameters used for keys absent from the
// input file.
func NewSolverParameters() (ip *SolverParameters) {
	def := solver.DefaultSettings()
	return &SolverParameters{
		BlockRank:          1,
		Preconditioner:     precon.Cholesky.String(),
		RelativeTolerance:  def.RelativeTolerance,
		AbsoluteTolerance:  def.AbsoluteTolerance,
		MaxIterations:      def.MaxIterations,
		BreakdownTolerance: def.BreakdownTolerance,
		Partitions:         1,
		Decomposition:      "simple",
		ImbalanceFactor:    1.05,
	}
}

func (ip *SolverParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	return ip.Validate()
}

func (ip *SolverParameters) Validate() (err error) {
	switch ip.BlockRank {
	case 1, 3, 9:
	default:
		return fmt.Errorf("block rank %d must be 1, 3 or 9", ip.BlockRank)
	}
	if ip.Preconditioner != "none" {
		if _, err = precon.ParseKind(ip.Preconditioner); err != nil {
			return
		}
	}
	if err = ip.Settings().Validate(); err != nil {
		return
	}
	if ip.Partitions < 1 {
		return fmt.Errorf("partition count %d must be positive", ip.Partitions)
	}
	switch ip.Decomposition {
	case "simple", "metis":
	default:
		return fmt.Errorf("unknown decomposition %q, want simple or metis", ip.Decomposition)
	}
	return
}

func (ip *SolverParameters) Settings() (s solver.Settings) {
	s = solver.DefaultSettings()
	s.RelativeTolerance = ip.RelativeTolerance
	s.AbsoluteTolerance = ip.AbsoluteTolerance
	s.MaxIterations = ip.MaxIterations
	s.BreakdownTolerance = ip.BreakdownTolerance
	return
}

func (ip *SolverParameters) Options() (opt diffusion.Options) {
	opt = diffusion.DefaultOptions()
	opt.Settings = ip.Settings()
	opt.Renumber = ip.Renumber
	if ip.Preconditioner == "none" {
		opt.NoPreconditioner = true
	} else {
		opt.Preconditioner, _ = precon.ParseKind(ip.Preconditioner)
	}
	return
}

func (ip *SolverParameters) Diffusion() *diffusion.Config {
	return &diffusion.Config{
		Diffusivity: ip.Diffusivity,
		Reaction:    ip.Reaction,
		Convection:  ip.Convection,
		Source:      ip.Source,
		Dirichlet:   ip.BCs,
	}
}

func (ip *SolverParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t\t= Block Rank\n", ip.BlockRank)
	fmt.Printf("[%s]\t\t\t= Preconditioner\n", ip.Preconditioner)
	fmt.Printf("%8.2e\t\t= Relative Tolerance\n", ip.RelativeTolerance)
	fmt.Printf("%8.2e\t\t= Absolute Tolerance\n", ip.AbsoluteTolerance)
	fmt.Printf("[%d]\t\t\t\t= Max Iterations\n", ip.MaxIterations)
	fmt.Printf("%8.2e\t\t= Breakdown Tolerance\n", ip.BreakdownTolerance)
	fmt.Printf("[%d]\t\t\t\t= Partitions (%s)\n", ip.Partitions, ip.Decomposition)
	if ip.Grid != nil {
		fmt.Printf("[%dx%dx%d]\t\t\t= Grid\n", ip.Grid.NX, ip.Grid.NY, ip.Grid.NZ)
	}
	keys := make([]string, len(ip.BCs))
	i := 0
	for k := range ip.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}
