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
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/mesh"
	"github.com/denMaier/solids4foam-sub001/model_problems/diffusion"
	"github.com/denMaier/solids4foam-sub001/precon"
	"github.com/denMaier/solids4foam-sub001/solver"
	"github.com/denMaier/solids4foam-sub001/utils"
)

// Measurement is the cost of one benchmarked kernel, averaged over the
// repetitions. Cycles and Instructions are zero where hardware counters are
// unavailable.
type Measurement struct {
	Name         string
	Elapsed      time.Duration
	Cycles       uint64
	Instructions uint64
}

func (m Measurement) String() string {
	s := fmt.Sprintf("%-14s %12v", m.Name, m.Elapsed)
	if m.Cycles != 0 {
		s += fmt.Sprintf(" %14d cycles %14d instructions IPC %.2f",
			m.Cycles, m.Instructions, float64(m.Instructions)/float64(m.Cycles))
	}
	return s
}

// BenchCmd represents the bench command
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time the block kernels on a generated hex grid",
	Long: `
Times the matrix multiply, preconditioner factorization and application and a
full solve on an n×n×n hex grid, with hardware cycle and instruction counts
on linux where perf events are permitted.

blocksolve bench -n 32 -r 3`,
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("n")
		rank, _ := cmd.Flags().GetInt("rank")
		reps, _ := cmd.Flags().GetInt("repetitions")
		results, err := RunBench(n, rank, reps)
		exitOnError(err)
		log.Printf("BLAS: %s, %s\n", utils.BLAS, utils.GetMemUsage())
		for _, r := range results {
			fmt.Println(r)
		}
	},
}

func init() {
	rootCmd.AddCommand(BenchCmd)
	BenchCmd.Flags().IntP("n", "n", 16, "grid cells per direction")
	BenchCmd.Flags().IntP("rank", "b", 3, "block rank: 1, 3 or 9")
	BenchCmd.Flags().IntP("repetitions", "r", 10, "repetitions of each kernel")
}

func RunBench(n, rank, reps int) (results []Measurement, err error) {
	if reps < 1 {
		return nil, fmt.Errorf("repetitions %d must be positive", reps)
	}
	switch rank {
	case 1:
		return runBench[block.R1](n, reps)
	case 3:
		return runBench[block.R3](n, reps)
	case 9:
		return runBench[block.R9](n, reps)
	}
	return nil, fmt.Errorf("block rank %d must be 1, 3 or 9", rank)
}

func runBench[K block.Kernel](n, reps int) (results []Measurement, err error) {
	var (
		g *mesh.Mesh
		a *addressing.Addressing
		r = block.RankOf[K]()
	)
	if g, err = mesh.NewCartesian(n, n, n, [3]float64{1, 1, 1}); err != nil {
		return
	}
	if a, err = addressing.Build(g); err != nil {
		return
	}
	src := make([]float64, r)
	for i := range src {
		src[i] = 1
	}
	m, rhs, err := diffusion.Assemble[K](a, &diffusion.Config{
		Reaction: block.Scaled(r, 0.1),
		Source:   src,
	})
	if err != nil {
		return
	}
	pc, err := precon.New(m, precon.Cholesky)
	if err != nil {
		return
	}
	var (
		x = make([]float64, m.Len())
		y = make([]float64, m.Len())
	)
	kernels := []struct {
		name string
		fn   func() error
	}{
		{"multiply", func() error { return m.Multiply(y, rhs) }},
		{"factorize", pc.Recompute},
		{"precondition", func() error { return pc.Precondition(y, rhs) }},
		{"solve", func() (err error) {
			clear(x)
			res, err := solver.NewBiCGStab(m, pc, nil, solver.DefaultSettings()).Solve(x, rhs)
			if err == nil && res.Status != solver.Converged {
				err = fmt.Errorf("bench solve: %s", res)
			}
			return
		}},
	}
	for _, k := range kernels {
		var meas Measurement
		if meas, err = measure(k.name, reps, k.fn); err != nil {
			return
		}
		results = append(results, meas)
	}
	return
}

// timed runs fn reps times and returns the mean wall time.
func timed(reps int, fn func() error) (elapsed time.Duration, err error) {
	start := time.Now()
	for i := 0; i < reps; i++ {
		if err = fn(); err != nil {
			return
		}
	}
	elapsed = time.Since(start) / time.Duration(reps)
	return
}
