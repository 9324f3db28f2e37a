// Package pgmerr defines the closed error taxonomy the core raises to
// callers (spec.md §6, §7). Every kind carries the payload its message
// needs (iteration counts, tolerances, scenario indices) rather than being a
// bare string, following the "errors are sum types with variant-specific
// payloads" design note. The teacher (toy-spice) wraps lower errors with
// fmt.Errorf("...: %v", err); these types keep that wrapping habit via
// Unwrap while adding the structured fields the spec requires.
package pgmerr

import "fmt"

// ConflictID is raised when two components share the same identifier.
type ConflictID struct{ ID int64 }

func (e *ConflictID) Error() string { return fmt.Sprintf("conflicting component id %d", e.ID) }

// ConflictVoltage is raised when two sources on the same energized subgraph
// disagree on rated voltage.
type ConflictVoltage struct {
	NodeA, NodeB int
	UA, UB       float64
}

func (e *ConflictVoltage) Error() string {
	return fmt.Sprintf("conflicting voltage between node %d (%.6g) and node %d (%.6g)",
		e.NodeA, e.UA, e.NodeB, e.UB)
}

// InvalidBranch is raised when a branch's endpoints are structurally invalid
// (e.g. both ends the same node).
type InvalidBranch struct{ ID int64 }

func (e *InvalidBranch) Error() string { return fmt.Sprintf("invalid branch %d", e.ID) }

// InvalidBranch3 is raised when a three-winding transformer's endpoints are
// structurally invalid.
type InvalidBranch3 struct{ ID int64 }

func (e *InvalidBranch3) Error() string { return fmt.Sprintf("invalid branch3 %d", e.ID) }

// InvalidTransformerClock is raised for an out-of-range transformer vector
// group / clock number.
type InvalidTransformerClock struct {
	ID    int64
	Clock int
}

func (e *InvalidTransformerClock) Error() string {
	return fmt.Sprintf("invalid transformer clock %d on branch %d", e.Clock, e.ID)
}

// IDNotFound is raised when an update references a nonexistent component.
type IDNotFound struct{ ID int64 }

func (e *IDNotFound) Error() string { return fmt.Sprintf("id %d not found", e.ID) }

// IDWrongType is raised when an update targets a component of the wrong
// kind.
type IDWrongType struct {
	ID       int64
	Expected string
	Actual   string
}

func (e *IDWrongType) Error() string {
	return fmt.Sprintf("id %d has type %s, expected %s", e.ID, e.Actual, e.Expected)
}

// UnknownAttributeName is raised when an update references a field that
// does not exist for the targeted component kind.
type UnknownAttributeName struct {
	ComponentKind string
	Attribute     string
}

func (e *UnknownAttributeName) Error() string {
	return fmt.Sprintf("unknown attribute %q for component kind %s", e.Attribute, e.ComponentKind)
}

// SparseMatrix is raised by the block LU solver when a pivot is effectively
// singular and perturbation is disallowed.
type SparseMatrix struct {
	Row  int
	Note string
}

func (e *SparseMatrix) Error() string {
	msg := fmt.Sprintf("sparse matrix error at row %d: possibly singular", e.Row)
	if e.Note != "" {
		msg += "; " + e.Note
	}
	msg += "; in state estimation this often means insufficient observability"
	return msg
}

// IterationDiverge is raised when an iterative solver fails to converge
// within its iteration budget.
type IterationDiverge struct {
	Iterations int
	MaxDev     float64
	Tolerance  float64
}

func (e *IterationDiverge) Error() string {
	return fmt.Sprintf("iteration diverged after %d iterations: max deviation %.6g exceeds tolerance %.6g",
		e.Iterations, e.MaxDev, e.Tolerance)
}

// InvalidCalculationMethod is raised when a solver is asked to run a method
// that does not apply to its inputs.
type InvalidCalculationMethod struct{ Method string }

func (e *InvalidCalculationMethod) Error() string {
	return fmt.Sprintf("invalid calculation method %q", e.Method)
}

// InvalidMeasuredObject is raised when a sensor references an object it
// cannot measure (wrong terminal type, disconnected object, ...).
type InvalidMeasuredObject struct {
	SensorID int64
	Reason   string
}

func (e *InvalidMeasuredObject) Error() string {
	return fmt.Sprintf("sensor %d: invalid measured object: %s", e.SensorID, e.Reason)
}

// NotObservable is raised by the observability checker.
type NotObservable struct{ Reason string }

func (e *NotObservable) Error() string { return fmt.Sprintf("not observable: %s", e.Reason) }

// ConflictingAngleMeasurementType is raised when a terminal mixes
// local-angle and global-angle current sensors.
type ConflictingAngleMeasurementType struct {
	Node   int
	Branch int
}

func (e *ConflictingAngleMeasurementType) Error() string {
	return fmt.Sprintf("conflicting angle measurement type on branch %d at node %d", e.Branch, e.Node)
}

// InvalidShortCircuitType is raised for an unrecognized fault type.
type InvalidShortCircuitType struct{ Type string }

func (e *InvalidShortCircuitType) Error() string {
	return fmt.Sprintf("invalid short circuit type %q", e.Type)
}

// InvalidShortCircuitPhases is raised for an unrecognized fault phase
// selector.
type InvalidShortCircuitPhases struct{ Phase string }

func (e *InvalidShortCircuitPhases) Error() string {
	return fmt.Sprintf("invalid short circuit phases %q", e.Phase)
}

// InvalidShortCircuitPhaseOrType is raised when faults within one call
// disagree on FaultType or FaultPhase.
type InvalidShortCircuitPhaseOrType struct{}

func (e *InvalidShortCircuitPhaseOrType) Error() string {
	return "all faults in one short circuit calculation must share fault type and fault phase"
}

// ScenarioError wraps any of the above with the index of the batch scenario
// it occurred in, matching spec.md §6's BatchCalculationError shape. The
// batch driver itself is out of scope; this is only the hand-off type.
type ScenarioError struct {
	Scenario int
	Err      error
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario %d: %v", e.Scenario, e.Err)
}

func (e *ScenarioError) Unwrap() error { return e.Err }

// BatchError aggregates per-scenario errors from a batch run.
type BatchError struct {
	Errors []*ScenarioError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d scenario(s) failed", len(e.Errors))
}
