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

	"github.com/spf13/cobra"

	"github.com/denMaier/solids4foam-sub001/InputParameters"
	"github.com/denMaier/solids4foam-sub001/addressing"
	"github.com/denMaier/solids4foam-sub001/partition"
)

// PartitionCmd represents the partition command
var PartitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Decompose a mesh and report the partition statistics",
	Long: `
Decomposes the mesh with the configured method and reports the cut bonds,
load imbalance and neighbour counts per partition, plus the matrix bandwidth
before and after reverse Cuthill-McKee renumbering.

blocksolve partition -I input.yaml [-F mesh.su2] -p 8`,
	Run: func(cmd *cobra.Command, args []string) {
		meshFile, _ := cmd.Flags().GetString("meshFile")
		inputFile, _ := cmd.Flags().GetString("inputFile")
		bindInputFlags(cmd)
		ip, err := processInput(inputFile)
		exitOnError(err)
		_, err = RunPartition(meshFile, ip)
		exitOnError(err)
	},
}

func init() {
	rootCmd.AddCommand(PartitionCmd)
	addInputFlags(PartitionCmd)
}

func RunPartition(meshFile string, ip *InputParameters.SolverParameters) (s partition.Stats, err error) {
	m, err := loadMesh(meshFile, ip)
	if err != nil {
		return
	}
	a, err := addressing.Build(m)
	if err != nil {
		return
	}
	renumbered, _ := addressing.Renumber(m, addressing.ReverseCuthillMcKee(m))
	ar, err := addressing.Build(renumbered)
	if err != nil {
		return
	}
	log.Printf("%d elements, %d bonds, bandwidth %d, %d after renumbering\n",
		a.NRows(), a.NBonds(), a.Bandwidth(), ar.Bandwidth())

	owner, err := ownership(m, ip)
	if err != nil {
		return
	}
	domains, err := partition.Decompose(m, owner, ip.Partitions)
	if err != nil {
		return
	}
	s = partition.Analyze(domains)
	s.Log()
	fmt.Printf("%d partitions (%s), %d cut bonds\n", s.NumPartitions, ip.Decomposition, s.CutBonds)
	return
}
