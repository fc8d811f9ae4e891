// Package solver is the preconditioned BiCGStab iteration over block
// vectors. It sees the matrix, the preconditioner and the cross partition
// reductions only through small interfaces, so the same iteration runs on a
// single matrix or on one partition of a decomposed system.
package solver

import (
	"fmt"
	"time"
)

// Operator computes y = A·x.
type Operator interface {
	Multiply(y, x []float64) error
}

// Preconditioner computes y = M⁻¹x.
type Preconditioner interface {
	Precondition(y, x []float64) error
}

// Reducer replaces every value with its sum over all partitions. Every
// partition must receive bit identical sums.
type Reducer interface {
	SumAll(vals []float64) error
}

type Settings struct {
	// RelativeTolerance is the fraction of the initial normalised residual to
	// reach. Zero disables the test.
	RelativeTolerance float64 `json:"RelativeTolerance"`
	// AbsoluteTolerance is the normalised residual at which the solve is
	// converged regardless of progress.
	AbsoluteTolerance float64 `json:"AbsoluteTolerance"`
	MaxIterations     int     `json:"MaxIterations"`
	// BreakdownTolerance bounds |a·b|/(‖a‖‖b‖) for the rho, alpha and omega
	// denominators. The default of 1e-30 flags only exact zero or NaN
	// denominators in practice; raise it to stop earlier on near breakdown.
	BreakdownTolerance float64 `json:"BreakdownTolerance"`
}

func DefaultSettings() Settings {
	return Settings{
		RelativeTolerance:  0,
		AbsoluteTolerance:  1.e-6,
		MaxIterations:      1000,
		BreakdownTolerance: 1.e-30,
	}
}

func (s Settings) Validate() error {
	switch {
	case s.RelativeTolerance < 0 || s.RelativeTolerance >= 1:
		return fmt.Errorf("relative tolerance %g outside [0,1)", s.RelativeTolerance)
	case s.AbsoluteTolerance < 0:
		return fmt.Errorf("negative absolute tolerance %g", s.AbsoluteTolerance)
	case s.MaxIterations < 0:
		return fmt.Errorf("negative iteration limit %d", s.MaxIterations)
	case s.BreakdownTolerance < 0:
		return fmt.Errorf("negative breakdown tolerance %g", s.BreakdownTolerance)
	}
	return nil
}

type Status uint8

const (
	Converged Status = iota
	MaxIterationsReached
	Failed
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "Converged"
	case MaxIterationsReached:
		return "MaxIterationsReached"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Breakdown names the BiCGStab scalar whose denominator collapsed.
type Breakdown uint8

const (
	None Breakdown = iota
	Rho
	Alpha
	Omega
)

func (b Breakdown) String() string {
	switch b {
	case None:
		return "none"
	case Rho:
		return "rho"
	case Alpha:
		return "alpha"
	case Omega:
		return "omega"
	}
	return fmt.Sprintf("Breakdown(%d)", uint8(b))
}

// Result is the outcome of one solve. Residuals are normalised by ‖b‖.
type Result struct {
	Status          Status
	Breakdown       Breakdown
	Iterations      int
	InitialResidual float64
	FinalResidual   float64
	MatVecs         int
	PSolves         int
	Runtime         time.Duration
}

func (r Result) String() string {
	s := fmt.Sprintf("%s after %d iterations, residual %8.5e -> %8.5e (%d matvecs, %d psolves, %v)",
		r.Status, r.Iterations, r.InitialResidual, r.FinalResidual, r.MatVecs, r.PSolves, r.Runtime)
	if r.Status == Failed {
		s += fmt.Sprintf(", %s breakdown", r.Breakdown)
	}
	return s
}
