// Package topology implements the reducer from spec.md §4.2: it turns a
// flat component list (ComponentTopology + ComponentConnection) into one
// MathTopology per energized connected subnetwork, plus a TopoCoupling that
// maps every original component back to its (group, position) in the math
// model it ended up in.
package topology

// NodeIdx indexes a user-facing node, including virtual nodes synthesized
// by ExpandBranch3.
type NodeIdx int

// BranchIdx indexes an original two-terminal branch (as opposed to the
// per-arm virtual branches ExpandBranch3 produces).
type BranchIdx int

// Branch3Idx indexes a three-winding connection.
type Branch3Idx int

// ApplianceKind distinguishes the three single-node appliance families that
// attach to a bus without being branches.
type ApplianceKind int

const (
	ApplianceSource ApplianceKind = iota
	ApplianceLoadGen
	ApplianceShunt
)

// ObjectKind identifies what kind of object a sensor measures, since power
// and current sensors can target a branch, a branch3 arm, a shunt, a
// source, or a load/gen.
type ObjectKind int

const (
	ObjectBranch ObjectKind = iota
	ObjectBranch3
	ObjectSource
	ObjectLoadGen
	ObjectShunt
	ObjectBus // voltage sensors only
)

// Terminal selects which end of a two-terminal object a power/current
// sensor reads, meaningless for bus/shunt/source/loadgen targets.
type Terminal int

const (
	TerminalFrom Terminal = iota
	TerminalTo
)

// SensorRef is what a power or current sensor measures: an object of some
// kind, optionally at one of its terminals, optionally one arm of a
// branch3. Index always addresses the object's position in the global
// ComponentTopology slice for its kind: BranchNode for ObjectBranch,
// Branch3Node for ObjectBranch3, ApplianceNode/ApplianceKind for
// ObjectSource/ObjectLoadGen/ObjectShunt.
type SensorRef struct {
	Kind     ObjectKind
	Index    int
	Terminal Terminal
	Arm      int // 0,1,2 for ObjectBranch3; ignored otherwise
}
