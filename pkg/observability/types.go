// Package observability implements the pre-state-estimation checks of
// spec.md §4.6: at least one voltage sensor, the necessary sensor count,
// and a sufficient-structure search (radial redistribution or meshed
// spanning-tree search with bounded backtracking).
package observability

import "github.com/voltgrid/pgm-core/pkg/topology"

// Input is the sensor census Check needs, already resolved down from
// whatever sensor fusion (pkg/measurement) produced. Indices into the
// per-branch/per-bus slices match topology.MathTopology's own
// BranchBusIdx/bus numbering.
type Input struct {
	Topo *topology.MathTopology

	// VoltagePhasorCount/VoltageMagnitudeOnlyCount are the total number of
	// voltage sensors of each kind across the whole model.
	VoltagePhasorCount        int
	VoltageMagnitudeOnlyCount int

	// FlowSensorCount is the number of independent power+current flow
	// measurements (one terminal counts once even if both power and
	// current are measured there, per spec's "independent flow sensor").
	FlowSensorCount int

	// InjectionSensorCount is the number of bus-injection constraints,
	// direct or derived from a fully-measured appliance set (spec.md
	// §4.5 step 3).
	InjectionSensorCount int

	// HasGlobalAngleCurrentSensor is true if any current sensor in the
	// model reports a global (not local) angle reference.
	HasGlobalAngleCurrentSensor bool

	// BranchMeasured[b] is true when effective branch b carries a native
	// power or current sensor at either terminal.
	BranchMeasured []bool

	// BusInjectionMeasured[bus] is true when that bus's net injection is
	// constrained, directly or via a fully-measured appliance set.
	BusInjectionMeasured []bool

	// BusPhasorMeasured[bus] is true when that bus carries a voltage
	// phasor (not magnitude-only) sensor.
	BusPhasorMeasured []bool
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
