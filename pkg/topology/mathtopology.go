package topology

import "github.com/voltgrid/pgm-core/pkg/idxvec"

// Coupling is an entry of TopoCoupling: which math model (Group) an
// original component ended up in, and its position within that model's
// per-kind arrays. Group == -1 means "not energized" (spec.md §4.2 step 3).
type Coupling struct {
	Group int
	Pos   int
}

const Unenergized = -1

// MathTopology is one energized, connected, sourced subnetwork, numbered so
// the slack bus is bus NBus-1 (so fill-in minimization and slack placement
// share one elimination order — see reduce.go).
type MathTopology struct {
	NBus     int
	SlackBus int

	// BranchBusIdx[k] = {from, to} local bus indices for the k-th effective
	// branch in this model (an original branch or a branch3 arm fully or
	// partially inside the model); -1 on a disconnected terminal.
	BranchBusIdx [][2]int

	// PhaseShift[bus] is the signed accumulated phase shift from the slack
	// to bus along a breadth-first spanning tree rooted at the slack bus
	// (spec step 6).
	PhaseShift []float64

	FillIn    [][2]int
	IsRadial  bool

	ShuntsPerBus    *idxvec.Offsets
	SourcesPerBus   *idxvec.Offsets
	LoadGensPerBus  *idxvec.Offsets
	VoltageSensorsPerBus *idxvec.Offsets

	// PowerSensorsPerBranch/CurrentSensorsPerBranch bucket sensor local
	// indices by the effective branch (BranchBusIdx index) they measure.
	PowerSensorsPerBranch   *idxvec.Offsets
	CurrentSensorsPerBranch *idxvec.Offsets
	// PowerSensorsPerBus buckets sensors that measure an appliance (source,
	// load/gen, shunt) by the bus that appliance is attached to.
	PowerSensorsPerBus *idxvec.Offsets

	// LocalPowerSensor/LocalCurrentSensor are the resolved SensorRef values
	// in the bucketed order described above (i.e. index i here corresponds
	// to logical position i in the grouped index, not to the original
	// sensor id in ComponentTopology).
	LocalPowerSensor   []SensorRef
	LocalCurrentSensor []SensorRef
}

// TopoCoupling maps every original component to the (group, position) it
// was placed in by Reduce. Node covers both user nodes and the
// virtual nodes ExpandBranch3 creates (indexed 0..NumNode+NumBranch3-1).
type TopoCoupling struct {
	Node      []Coupling
	Branch    []Coupling
	Branch3   []Coupling    // position is the virtual node's local bus index
	Branch3Arm [][3]Coupling // position is the arm's effective-branch index in BranchBusIdx
	Appliance []Coupling

	VoltageSensor []Coupling
	PowerSensor   []Coupling
	CurrentSensor []Coupling
}
