//go:build linux

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
	"log"
	"sync"

	perf "github.com/hodgesds/perf-utils"
)

var perfWarning sync.Once

// measure adds hardware cycle and instruction counts to the wall time.
// Counters are skipped, with one warning, when perf events are not permitted.
func measure(name string, reps int, fn func() error) (m Measurement, err error) {
	m.Name = name
	if m.Elapsed, err = timed(reps, fn); err != nil {
		return
	}
	var runErr error
	loop := func() error {
		for i := 0; i < reps; i++ {
			if runErr = fn(); runErr != nil {
				return runErr
			}
		}
		return nil
	}
	cycles, perr := perf.CPUCycles(loop)
	if runErr != nil {
		return m, runErr
	}
	if perr != nil {
		perfWarning.Do(func() { log.Printf("hardware counters unavailable: %v\n", perr) })
		return
	}
	instructions, perr := perf.CPUInstructions(loop)
	if runErr != nil {
		return m, runErr
	}
	if perr != nil {
		return
	}
	m.Cycles = cycles.Value / uint64(reps)
	m.Instructions = instructions.Value / uint64(reps)
	return
}
