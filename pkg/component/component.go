// Package component defines the external surfaces the core depends on
// (spec.md §6): the component-model trait the topology reducer and Y-bus
// assembler read through, and the dataset buffer-collection interface the
// core reads once at construction. The core never depends on a concrete
// component type directly — only on these interfaces — matching the
// teacher's Device interface boundary in pkg/device.
package component

import (
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

// Component is the minimal shape every component kind shares.
type Component interface {
	ID() int64
	Status() bool
}

// TwoTerminal is a component with independently-switchable from/to ends
// (branches, branch arms).
type TwoTerminal interface {
	Component
	StatusFrom() bool
	StatusTo() bool
	NodeFrom() topology.NodeIdx
	NodeTo() topology.NodeIdx
}

// Branch is a two-terminal series element (Line, Transformer, GenericBranch,
// Link).
type Branch interface {
	TwoTerminal
	CalcParam(sym pgmtypes.Symmetry) pgmtypes.AdmittanceBlock
	PhaseShift() float64
	GetBranchOutput(uFrom, uTo pgmtypes.PhaseVector, iFrom, iTo pgmtypes.PhaseVector) BranchOutput
}

// Branch3 is a three-winding component; the topology reducer expands it
// into a virtual node and three Branch-like arms via its own
// CalcParam/PhaseShift per arm.
type Branch3 interface {
	Component
	ArmStatus(arm int) bool
	Node(arm int) topology.NodeIdx
	CalcParam(sym pgmtypes.Symmetry, arm int) pgmtypes.AdmittanceBlock
	PhaseShift(arm int) float64
}

// Shunt is a single-node fixed admittance to ground.
type Shunt interface {
	Component
	Node() topology.NodeIdx
	CalcParam(sym pgmtypes.Symmetry) pgmtypes.PhaseMatrix
	GetApplianceOutput(u pgmtypes.PhaseVector) ApplianceOutput
}

// Source is a Thevenin-equivalent voltage source behind an internal
// admittance.
type Source interface {
	Component
	Node() topology.NodeIdx
	CalcParam(sym pgmtypes.Symmetry) (y pgmtypes.PhaseMatrix, uRef pgmtypes.PhaseVector)
	GetApplianceOutput(u pgmtypes.PhaseVector) ApplianceOutput
}

// LoadGenType selects which of the three injection laws a LoadGen follows.
type LoadGenType int

const (
	ConstPQ LoadGenType = iota
	ConstY
	ConstI
)

// ConstZ is the spec's alternate name for ConstY (constant impedance is the
// same injection law as constant admittance).
const ConstZ = ConstY

// LoadGen is a single-node power injection (load if positive, generator if
// negative, by the network's sign convention).
type LoadGen interface {
	Component
	Node() topology.NodeIdx
	Type() LoadGenType
	RatedPower() complex128
	GetApplianceOutput(u pgmtypes.PhaseVector) ApplianceOutput
}

// VoltageSensor measures the voltage phasor (or, when LocalAngle/angle is
// unknown, just the magnitude) at a node.
type VoltageSensor interface {
	Component
	Node() topology.NodeIdx
	CalcParam() (value complex128, varRe, varIm float64)
}

// PowerSensor measures real/reactive power flow through one terminal of a
// branch, branch3 arm, or appliance.
type PowerSensor interface {
	Component
	MeasuredObject() topology.SensorRef
	CalcParam() (value complex128, varRe, varIm float64)
}

// CurrentSensor measures current through one terminal, with either a local
// (relative to its bus's voltage angle) or global angle reference.
type CurrentSensor interface {
	Component
	MeasuredObject() topology.SensorRef
	LocalAngle() bool
	CalcParam() (value complex128, varRe, varIm float64)
}

// FaultType enumerates the IEC-60909 fault shapes.
type FaultType int

const (
	FaultThreePhase FaultType = iota
	FaultSinglePhaseToGround
	FaultTwoPhase
	FaultTwoPhaseToGround
)

// FaultPhase selects which of the three phases a fault involves.
type FaultPhase int

const (
	FaultPhaseABC FaultPhase = iota
	FaultPhaseA
	FaultPhaseB
	FaultPhaseC
)

// Fault is one short-circuit fault applied at a node.
type Fault interface {
	Component
	Node() topology.NodeIdx
	Type() FaultType
	Phase() FaultPhase
	// Admittance returns the fault admittance; Bolted is true for an
	// infinite (zero-impedance) fault, in which case Admittance's value is
	// meaningless.
	Admittance() (y complex128, bolted bool)
}

// BranchOutput is the per-terminal power/current result handed back to
// callers after a solve.
type BranchOutput struct {
	IFrom, ITo pgmtypes.PhaseVector
	SFrom, STo pgmtypes.PhaseVector
}

// ApplianceOutput is the single-terminal power/current result for a shunt,
// source, or load/gen.
type ApplianceOutput struct {
	I pgmtypes.PhaseVector
	S pgmtypes.PhaseVector
}
