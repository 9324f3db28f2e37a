// Package measurement implements the measured-value aggregator of spec.md
// §4.5: per-bus voltage/appliance/injection fusion, per-branch power/current
// fusion, global variance normalization, the voltage linearization state
// estimation iterations need, and post-solve appliance disaggregation.
package measurement

import "math"

// AxisSample is one sensor's contribution to an axis-separated (real/imag)
// fusion: a complex value plus the variance of each axis. A variance of
// exactly 0 marks a hard constraint, per spec.md §4.5's zero-injection case.
type AxisSample struct {
	Value      complex128
	VarRe, VarIm float64
}

// VoltageSensorInput is one voltage sensor's sample. A magnitude-only
// sensor (no phase angle known) carries its reading in Value's real part
// with Value's imaginary part set to math.NaN(); VarIm is unused in that
// case.
type VoltageSensorInput = AxisSample

// ApplianceSensorInput is one appliance (shunt/load-gen/source) power
// sensor's sample.
type ApplianceSensorInput = AxisSample

// BusInjectionSensorInput is a direct bus-injection power sensor's sample.
type BusInjectionSensorInput = AxisSample

// PowerSensorInput is one branch-terminal power sensor's sample.
type PowerSensorInput = AxisSample

// CurrentSensorInput is one branch-terminal current sensor's sample.
// LocalAngle selects whether the measurement is expressed in the rotating
// frame of its own bus (true) or against the global reference (false).
type CurrentSensorInput struct {
	AxisSample
	LocalAngle bool
}

// BusMeasurement is the fused result for one bus.
type BusMeasurement struct {
	Voltage      complex128
	HasPhasor    bool
	VarVoltageRe float64
	VarVoltageIm float64

	Injection       complex128
	VarInjectionRe  float64
	VarInjectionIm  float64
	InjectionIsHard bool

	// UnmeasuredAppliances counts the shunts, sources and load/gens attached
	// to this bus that carry no sensor.
	UnmeasuredAppliances int
}

// ApplianceMeasurement is the fused measurement for one appliance.
type ApplianceMeasurement struct {
	Value    complex128
	VarRe    float64
	VarIm    float64
	Measured bool
}

// BranchPowerMeasurement is the fused power measurement at one terminal of
// one effective branch.
type BranchPowerMeasurement struct {
	Value complex128
	VarRe float64
	VarIm float64
	Has   bool
}

// BranchCurrentMeasurement is the fused current measurement at one terminal
// of one effective branch.
type BranchCurrentMeasurement struct {
	Value      complex128
	VarRe      float64
	VarIm      float64
	Has        bool
	LocalAngle bool
}

// MeasuredValues is the full per-model aggregation result, variance
// normalized, ready for a state estimation solver to consume.
type MeasuredValues struct {
	Bus []BusMeasurement

	// Shunt/Source/LoadGen are indexed by the appliance's local per-kind
	// bucket position (i.e. the same order as MathTopology.ShuntsPerBus
	// etc.).
	Shunt   []ApplianceMeasurement
	Source  []ApplianceMeasurement
	LoadGen []ApplianceMeasurement

	// BranchPower/BranchCurrent are indexed [effective branch][0=from,1=to].
	BranchPower   [][2]BranchPowerMeasurement
	BranchCurrent [][2]BranchCurrentMeasurement
}

func isMagnitudeOnly(v complex128) bool { return math.IsNaN(imag(v)) }
