// Package solver implements spec.md §4.7's math solvers: linear power flow,
// iterative-current power flow, Newton-Raphson power flow, iterative-linear
// state estimation, Newton-Raphson state estimation, the IEC-60909
// short-circuit solver, and the dispatcher that lazily owns one instance of
// each per math model. Structured one file per solver, the same way the
// teacher keeps one file per analysis (op.go, dc.go, ac.go, tran.go) under
// pkg/analysis.
package solver

import (
	"github.com/voltgrid/pgm-core/pkg/component"
	"github.com/voltgrid/pgm-core/pkg/measurement"
	"github.com/voltgrid/pgm-core/pkg/pgmlog"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/topology"
	"github.com/voltgrid/pgm-core/pkg/ybus"
)

// CalculationOptions carries the tolerances and iteration caps the teacher
// hard-codes into NewBaseAnalysis (abstol/reltol/maxIter) as explicit,
// caller-supplied values instead, since a core library can't hard-code a
// network-dependent tolerance the way a single-purpose CLI can.
type CalculationOptions struct {
	Tolerance float64
	MaxIter   int
}

// DefaultOptions returns a voltage-deviation tolerance of 1e-8 and the
// teacher's hard-coded iteration cap, maxIter=100.
func DefaultOptions() CalculationOptions {
	return CalculationOptions{Tolerance: 1e-8, MaxIter: 100}
}

// LoadGenParam is one load/gen's calculation parameters, in
// MathTopology.LoadGensPerBus's local bucket order.
type LoadGenParam struct {
	Type       component.LoadGenType
	RatedPower complex128 // S_rated, sign convention: positive = injected into the bus
}

// PowerFlowInput is everything a power flow solver needs beyond the Y-bus
// itself.
type PowerFlowInput struct {
	Topo    *topology.MathTopology
	YBus    *ybus.YBus
	LoadGen []LoadGenParam // MathTopology.LoadGensPerBus order
}

// StateEstimationInput is everything a state estimation solver needs beyond
// the Y-bus itself.
type StateEstimationInput struct {
	Topo     *topology.MathTopology
	YBus     *ybus.YBus
	Measured *measurement.MeasuredValues
}

// FaultInput is one short-circuit fault.
type FaultInput struct {
	Bus        int
	Type       component.FaultType
	Phase      component.FaultPhase
	Admittance complex128
	Bolted     bool
}

// ShortCircuitInput is everything the IEC-60909 solver needs.
type ShortCircuitInput struct {
	Topo   *topology.MathTopology
	YBus   *ybus.YBus
	Faults []FaultInput
}

// SolverOutput is the common post-processed result of a power flow or
// state estimation solve.
type SolverOutput struct {
	Voltage       []pgmtypes.PhaseVector
	Injection     []pgmtypes.PhaseVector
	BranchFlow    []ybus.BranchFlow
	ShuntFlow     []ybus.ShuntFlow
	SourceOutput  []pgmtypes.PhaseVector
	LoadGenOutput []pgmtypes.PhaseVector
	Iterations    int
	MaxDeviation  float64
}

// ShortCircuitSolverOutput extends SolverOutput with the fault-level
// results spec.md §4.7.6 step 4 calls for.
type ShortCircuitSolverOutput struct {
	SolverOutput
	FaultCurrent []pgmtypes.PhaseVector // per fault, in FaultInput order
}

// runContext bundles a topology with a logger. No solver in this package
// takes it; each solver function receives those two as separate arguments.
type runContext struct {
	topo *topology.MathTopology
	log  *pgmlog.Logger
}
