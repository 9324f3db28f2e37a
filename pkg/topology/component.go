package topology

// ComponentTopology is the structural (never-changing-under-update) shape
// of the grid: which nodes every branch/branch3/appliance/sensor is wired
// to. It never carries admittance values or connection status — those live
// in ybus.MathParam and in ComponentConnection respectively.
type ComponentTopology struct {
	NumNode int

	// BranchNode[b] = {from, to} user node indices for branch b.
	BranchNode [][2]NodeIdx

	// Branch3Node[b3] = {node1, node2, node3} user node indices, one per
	// winding, for branch3 b3.
	Branch3Node [][3]NodeIdx

	ApplianceNode []NodeIdx     // host node, indexed together with ApplianceKind
	ApplianceKind []ApplianceKind

	VoltageSensorNode []NodeIdx
	PowerSensor       []SensorRef
	CurrentSensor     []SensorRef
}

// NumAppliance reports how many source/load-gen/shunt appliances are
// registered (they share one parallel pair of slices, indexed together).
func (t *ComponentTopology) NumAppliance() int { return len(t.ApplianceNode) }

// ComponentConnection is the part of the model that update_component can
// change cheaply: per-terminal connection status, branch3 per-arm status,
// source activity, and the signed phase shift each branch/arm contributes.
type ComponentConnection struct {
	BranchStatus  [][2]bool // {from_connected, to_connected} per branch
	Branch3Status [][3]bool // per-arm connected flag per branch3

	SourceActive []bool // indexed in the same order as the ApplianceSource-kind entries of ComponentTopology.ApplianceNode

	BranchPhaseShift  []float64    // signed shift contributed by this branch, from->to
	Branch3PhaseShift [][3]float64 // signed shift per arm, user-node->virtual-node
}
