/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"

	"github.com/denMaier/solids4foam-sub001/InputParameters"
	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/mesh"
	"github.com/denMaier/solids4foam-sub001/model_problems/diffusion"
	"github.com/denMaier/solids4foam-sub001/partition"
	"github.com/denMaier/solids4foam-sub001/solver"
	"github.com/denMaier/solids4foam-sub001/utils"
)

type Solve struct {
	MeshFile  string
	InputFile string
	Verify    bool
	Profile   string
	Verbose   bool
}

const exampleFile = `
########################################
Title: "Test Case"
BlockRank: 3
Preconditioner: cholesky # or gaussseidel, diagonal, none
AbsoluteTolerance: 1.e-8
Partitions: 4
Decomposition: metis # or simple
Grid: # used when no mesh file is given
  NX: 20
  NY: 20
  Lengths: [1, 1, 0]
BCs:
  xmin: [0, 0, 0]
  xmax: [1, 1, 1]
########################################
`

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Assemble and solve a block diffusion problem",
	Long: `
Assembles a block coupled diffusion-reaction system on a mesh file or a
generated grid and solves it with BiCGStab, optionally decomposed into
partitions solved concurrently.

blocksolve solve -I input.yaml [-F mesh.su2] [-p 4] [--verify]`,
	Run: func(cmd *cobra.Command, args []string) {
		s := &Solve{}
		s.MeshFile, _ = cmd.Flags().GetString("meshFile")
		s.InputFile, _ = cmd.Flags().GetString("inputFile")
		s.Verify, _ = cmd.Flags().GetBool("verify")
		s.Profile, _ = cmd.Flags().GetString("profile")
		s.Verbose, _ = cmd.Flags().GetBool("verbose")
		bindInputFlags(cmd)
		ip, err := processInput(s.InputFile)
		exitOnError(err)
		if s.Verbose {
			ip.Print()
		}
		_, err = RunSolve(s, ip)
		exitOnError(err)
	},
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	addInputFlags(SolveCmd)
	SolveCmd.Flags().Bool("verify", false, "recompute the residual from a scalar CSR copy of the matrix")
	SolveCmd.Flags().String("profile", "", "write a cpu or mem profile to the current directory")
	SolveCmd.Flags().BoolP("verbose", "v", false, "print the input, mesh and partition statistics")
}

// addInputFlags registers the flags shared by commands reading a problem.
// Partitions and tolerances can also come from the config file or from
// BLOCKSOLVE_* environment variables.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("meshFile", "F", "", "Mesh file to read in SU2 (.su2) format")
	cmd.Flags().StringP("inputFile", "I", "", "YAML file for input parameters like:\n\t- BlockRank\n\t- Preconditioner\n\t- BCs")
	cmd.Flags().IntP("partitions", "p", 0, "number of partitions, overrides the input file")
	cmd.Flags().Float64("absoluteTolerance", 0, "absolute residual tolerance, overrides the input file")
	cmd.Flags().Float64("relativeTolerance", 0, "relative residual tolerance, overrides the input file")
}

// bindInputFlags points viper at the flags of the command being run.
func bindInputFlags(cmd *cobra.Command) {
	for _, name := range []string{"partitions", "absoluteTolerance", "relativeTolerance"} {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
}

func processInput(inputFile string) (ip *InputParameters.SolverParameters, err error) {
	var data []byte
	if len(inputFile) == 0 {
		fmt.Printf("Example File:%s\n", exampleFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputFile)")
	}
	if data, err = os.ReadFile(inputFile); err != nil {
		return
	}
	ip = InputParameters.NewSolverParameters()
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", inputFile, err)
	}
	if p := viper.GetInt("partitions"); p > 0 {
		ip.Partitions = p
	}
	if tol := viper.GetFloat64("absoluteTolerance"); tol > 0 {
		ip.AbsoluteTolerance = tol
	}
	if tol := viper.GetFloat64("relativeTolerance"); tol > 0 {
		ip.RelativeTolerance = tol
	}
	err = ip.Validate()
	return
}

func loadMesh(meshFile string, ip *InputParameters.SolverParameters) (m *mesh.Mesh, err error) {
	switch {
	case len(meshFile) != 0:
		return mesh.ReadMeshFile(meshFile)
	case ip.Grid != nil:
		return mesh.NewCartesian(ip.Grid.NX, ip.Grid.NY, ip.Grid.NZ, ip.Grid.Lengths)
	}
	return nil, fmt.Errorf("must supply a mesh file (-F, --meshFile) or a Grid in the input file")
}

func ownership(m *mesh.Mesh, ip *InputParameters.SolverParameters) (owner []int, err error) {
	if ip.Decomposition == "metis" {
		cfg := partition.DefaultConfig(int32(ip.Partitions))
		cfg.ImbalanceFactor = ip.ImbalanceFactor
		return partition.MetisOwnership(m, cfg)
	}
	return partition.SimpleOwnership(m.NumElements(), ip.Partitions), nil
}

// RunSolve solves the problem described by ip and returns the solution in
// mesh element order.
func RunSolve(s *Solve, ip *InputParameters.SolverParameters) (x []float64, err error) {
	if len(s.Profile) != 0 {
		var p interface{ Stop() }
		if p, err = startProfile(s.Profile); err != nil {
			return
		}
		defer p.Stop()
	}
	switch ip.BlockRank {
	case 1:
		return runSolve[block.R1](s, ip)
	case 3:
		return runSolve[block.R3](s, ip)
	case 9:
		return runSolve[block.R9](s, ip)
	}
	return nil, fmt.Errorf("block rank %d must be 1, 3 or 9", ip.BlockRank)
}

func startProfile(kind string) (p interface{ Stop() }, err error) {
	switch kind {
	case "cpu":
		p = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		p = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	default:
		err = fmt.Errorf("unknown profile %q, want cpu or mem", kind)
	}
	return
}

func runSolve[K block.Kernel](s *Solve, ip *InputParameters.SolverParameters) (x []float64, err error) {
	var (
		m   *mesh.Mesh
		cfg = ip.Diffusion()
		opt = ip.Options()
		res solver.Result
	)
	if m, err = loadMesh(s.MeshFile, ip); err != nil {
		return
	}
	if s.Verbose {
		m.PrintStatistics()
	}
	opt.Verbose = s.Verbose
	if ip.Partitions == 1 {
		if x, res, err = diffusion.SolveSerial[K](m, cfg, opt); err != nil {
			return
		}
	} else {
		var (
			owner   []int
			results []solver.Result
		)
		if owner, err = ownership(m, ip); err != nil {
			return
		}
		if x, results, err = diffusion.SolveDecomposed[K](context.Background(), m, owner, ip.Partitions,
			cfg, opt); err != nil {
			return
		}
		res = results[0]
	}
	log.Printf("%d partitions: %s\n", ip.Partitions, res)
	if utils.IsNan(x) {
		return nil, fmt.Errorf("solution contains NaN")
	}
	if s.Verify {
		var resid float64
		if resid, err = verify[K](m, cfg, x); err != nil {
			return
		}
		log.Printf("verified residual |b - A·x|/|b| = %.3e\n", resid)
	}
	if s.Verbose {
		log.Println(utils.GetMemUsage())
	}
	if res.Status != solver.Converged {
		err = fmt.Errorf("solve did not converge: %s", res)
	}
	return
}

// verify assembles the serial system again and evaluates its residual with
// the scalar CSR matrix, independently of the block kernels.
func verify[K block.Kernel](m *mesh.Mesh, cfg *diffusion.Config, x []float64) (resid float64, err error) {
	a, err := addressing.Build(m)
	if err != nil {
		return
	}
	mat, rhs, err := diffusion.Assemble[K](a, cfg)
	if err != nil {
		return
	}
	y := make([]float64, len(rhs))
	mat.ToCSR().MulVec(y, x, false)
	floats.Sub(y, rhs)
	bNorm := floats.Norm(rhs, 2)
	if bNorm == 0 {
		bNorm = 1
	}
	resid = floats.Norm(y, 2) / bNorm
	return
}
