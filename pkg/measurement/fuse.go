package measurement

import (
	"math"
	"math/cmplx"
)

// fuseAxis performs the Kalman-style inverse-variance weighted combination
// of one real axis. A variance of exactly 0 is a hard constraint: its
// sample wins outright with the combined variance forced to 0. With no
// samples at all it returns (0, +Inf) so a caller can tell "nothing here"
// apart from a genuine measurement.
func fuseAxis(vals, vars []float64) (mean, variance float64) {
	for i, v := range vars {
		if v == 0 {
			return vals[i], 0
		}
	}
	if len(vals) == 0 {
		return 0, math.Inf(1)
	}
	var sumInvVar, sumWeighted float64
	for i, v := range vars {
		w := 1 / v
		sumInvVar += w
		sumWeighted += w * vals[i]
	}
	return sumWeighted / sumInvVar, 1 / sumInvVar
}

// fuseComplex axis-separates a set of complex samples into independent
// real/imag fusions.
func fuseComplex(samples []AxisSample) (value complex128, varRe, varIm float64, ok bool) {
	if len(samples) == 0 {
		return 0, math.Inf(1), math.Inf(1), false
	}
	re := make([]float64, len(samples))
	im := make([]float64, len(samples))
	vre := make([]float64, len(samples))
	vim := make([]float64, len(samples))
	for i, s := range samples {
		re[i], im[i] = real(s.Value), imag(s.Value)
		vre[i], vim[i] = s.VarRe, s.VarIm
	}
	r, vr := fuseAxis(re, vre)
	m, vm := fuseAxis(im, vim)
	return complex(r, m), vr, vm, true
}

// fuseVoltage implements spec.md §4.5 step 1. Sensors with a known phase
// angle fuse as ordinary complex samples; any magnitude-only sensor present
// forces the fused result to magnitude-only too (their combined magnitude
// folds in the magnitude of every sensor, phasor or not).
func fuseVoltage(samples []VoltageSensorInput) BusMeasurement {
	var phasor []AxisSample
	var magVals, magVars []float64
	for _, s := range samples {
		if isMagnitudeOnly(s.Value) {
			magVals = append(magVals, real(s.Value))
			magVars = append(magVars, s.VarRe)
		} else {
			phasor = append(phasor, s)
		}
	}

	if len(magVals) == 0 {
		value, vre, vim, ok := fuseComplex(phasor)
		return BusMeasurement{Voltage: value, HasPhasor: ok, VarVoltageRe: vre, VarVoltageIm: vim}
	}

	for _, s := range phasor {
		magVals = append(magVals, cmplx.Abs(s.Value))
		magVars = append(magVars, s.VarRe)
	}
	mag, vmag := fuseAxis(magVals, magVars)
	return BusMeasurement{
		Voltage:      complex(mag, math.NaN()),
		HasPhasor:    len(phasor) > 0,
		VarVoltageRe: vmag,
		VarVoltageIm: math.NaN(),
	}
}

// fuseAppliance implements spec.md §4.5 step 2 for one appliance.
func fuseAppliance(samples []ApplianceSensorInput) ApplianceMeasurement {
	if len(samples) == 0 {
		return ApplianceMeasurement{Measured: false}
	}
	value, vre, vim, _ := fuseComplex(samples)
	return ApplianceMeasurement{Value: value, VarRe: vre, VarIm: vim, Measured: true}
}

// fuseBusInjection implements spec.md §4.5 step 3's three-case combination
// of a direct bus-injection sensor with the appliance-injection aggregate.
func fuseBusInjection(direct []BusInjectionSensorInput, applianceAgg complex128, applianceVarRe, applianceVarIm float64, allApplianceMeasured bool, anyAppliancesConnected bool) (complex128, float64, float64, bool) {
	if !anyAppliancesConnected {
		return 0, 0, 0, true
	}
	hasDirect := len(direct) > 0
	switch {
	case allApplianceMeasured && !hasDirect:
		return applianceAgg, applianceVarRe, applianceVarIm, false
	case hasDirect && !allApplianceMeasured:
		value, vre, vim, _ := fuseComplex(direct)
		return value, vre, vim, false
	case hasDirect && allApplianceMeasured:
		directVal, dvre, dvim, _ := fuseComplex(direct)
		re, vre := fuseAxis([]float64{real(directVal), real(applianceAgg)}, []float64{dvre, applianceVarRe})
		im, vim := fuseAxis([]float64{imag(directVal), imag(applianceAgg)}, []float64{dvim, applianceVarIm})
		return complex(re, im), vre, vim, false
	default:
		// No direct sensor and at least one attached appliance
		// unmeasured: no constraint at all on this bus's injection.
		return 0, math.Inf(1), math.Inf(1), false
	}
}

// fuseBranchPower implements the power half of spec.md §4.5 step 4.
func fuseBranchPower(samples []PowerSensorInput) BranchPowerMeasurement {
	if len(samples) == 0 {
		return BranchPowerMeasurement{}
	}
	value, vre, vim, _ := fuseComplex(samples)
	return BranchPowerMeasurement{Value: value, VarRe: vre, VarIm: vim, Has: true}
}

// fuseBranchCurrent implements the current half of spec.md §4.5 step 4,
// rejecting a terminal that mixes local-angle and global-angle sensors.
func fuseBranchCurrent(samples []CurrentSensorInput) (BranchCurrentMeasurement, bool) {
	if len(samples) == 0 {
		return BranchCurrentMeasurement{}, true
	}
	localAngle := samples[0].LocalAngle
	axisSamples := make([]AxisSample, len(samples))
	for i, s := range samples {
		if s.LocalAngle != localAngle {
			return BranchCurrentMeasurement{}, false
		}
		axisSamples[i] = s.AxisSample
	}
	value, vre, vim, _ := fuseComplex(axisSamples)
	return BranchCurrentMeasurement{Value: value, VarRe: vre, VarIm: vim, Has: true, LocalAngle: localAngle}, true
}
