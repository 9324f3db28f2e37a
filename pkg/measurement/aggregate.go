package measurement

import (
	"math"

	"github.com/voltgrid/pgm-core/pkg/idxvec"
	"github.com/voltgrid/pgm-core/pkg/pgmerr"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

// Input is everything Aggregate needs: the model's per-model bucketing
// (Topo) plus every sensor's sample, already grouped the way the bucket it
// belongs to expects.
type Input struct {
	Topo *topology.MathTopology

	// Voltage is in VoltageSensorsPerBus's flat local-element order.
	Voltage []VoltageSensorInput

	// ShuntSensors/SourceSensors/LoadGenSensors[k] holds every sensor
	// sample targeting the k-th appliance of that kind, in the same local
	// bucket order as ShuntsPerBus/SourcesPerBus/LoadGensPerBus.
	ShuntSensors   [][]ApplianceSensorInput
	SourceSensors  [][]ApplianceSensorInput
	LoadGenSensors [][]ApplianceSensorInput

	// BusInjection[bus] holds every direct bus-injection sensor sample at
	// that bus.
	BusInjection [][]BusInjectionSensorInput

	// BranchPower/BranchCurrent[branch][0|1] holds every terminal sensor
	// sample at the from(0)/to(1) end of that effective branch.
	BranchPower   [][2][]PowerSensorInput
	BranchCurrent [][2][]CurrentSensorInput
}

// Aggregate runs the full spec.md §4.5 pipeline: per-object appliance
// fusion, per-bus voltage/injection fusion, per-branch terminal fusion, and
// a final variance-normalization pass.
func Aggregate(in *Input) (*MeasuredValues, error) {
	mv := &MeasuredValues{
		Bus:     make([]BusMeasurement, in.Topo.NBus),
		Shunt:   fuseApplianceObjects(in.ShuntSensors),
		Source:  fuseApplianceObjects(in.SourceSensors),
		LoadGen: fuseApplianceObjects(in.LoadGenSensors),
	}

	for bus := 0; bus < in.Topo.NBus; bus++ {
		var vSamples []VoltageSensorInput
		if in.Topo.VoltageSensorsPerBus != nil {
			r := in.Topo.VoltageSensorsPerBus.Range(bus)
			vSamples = in.Voltage[r.Begin:r.End]
		}
		mv.Bus[bus] = fuseVoltage(vSamples)

		agg, vre, vim, allMeasured, unmeasured, anyConnected := accumulateApplianceInjection(
			bus, in.Topo.ShuntsPerBus, mv.Shunt,
			in.Topo.SourcesPerBus, mv.Source,
			in.Topo.LoadGensPerBus, mv.LoadGen,
		)

		var direct []BusInjectionSensorInput
		if bus < len(in.BusInjection) {
			direct = in.BusInjection[bus]
		}
		value, ivre, ivim, hard := fuseBusInjection(direct, agg, vre, vim, allMeasured, anyConnected)
		mv.Bus[bus].Injection = value
		mv.Bus[bus].VarInjectionRe = ivre
		mv.Bus[bus].VarInjectionIm = ivim
		mv.Bus[bus].InjectionIsHard = hard
		mv.Bus[bus].UnmeasuredAppliances = unmeasured
	}

	nBranch := len(in.Topo.BranchBusIdx)
	mv.BranchPower = make([][2]BranchPowerMeasurement, nBranch)
	mv.BranchCurrent = make([][2]BranchCurrentMeasurement, nBranch)
	for b := 0; b < nBranch; b++ {
		for t := 0; t < 2; t++ {
			if b < len(in.BranchPower) {
				mv.BranchPower[b][t] = fuseBranchPower(in.BranchPower[b][t])
			}
			if b < len(in.BranchCurrent) {
				cur, ok := fuseBranchCurrent(in.BranchCurrent[b][t])
				if !ok {
					bus := in.Topo.BranchBusIdx[b][t]
					return nil, &pgmerr.ConflictingAngleMeasurementType{Node: bus, Branch: b}
				}
				mv.BranchCurrent[b][t] = cur
			}
		}
	}

	normalizeVariances(mv)
	return mv, nil
}

func fuseApplianceObjects(samples [][]ApplianceSensorInput) []ApplianceMeasurement {
	out := make([]ApplianceMeasurement, len(samples))
	for i, s := range samples {
		out[i] = fuseAppliance(s)
	}
	return out
}

// accumulateApplianceInjection implements spec.md §4.5 step 2's bus-level
// "appliance injection" aggregate: the sum of every measured appliance at
// the bus (variance of a sum of independent measurements is the sum of
// their variances), plus whether every attached appliance was measured.
func accumulateApplianceInjection(
	bus int,
	shuntOff *idxvec.Offsets, shunt []ApplianceMeasurement,
	sourceOff *idxvec.Offsets, source []ApplianceMeasurement,
	loadGenOff *idxvec.Offsets, loadGen []ApplianceMeasurement,
) (agg complex128, varRe, varIm float64, allMeasured bool, unmeasured int, anyConnected bool) {
	allMeasured = true
	walk := func(off *idxvec.Offsets, items []ApplianceMeasurement) {
		if off == nil {
			return
		}
		r := off.Range(bus)
		for i := r.Begin; i < r.End; i++ {
			anyConnected = true
			m := items[i]
			if !m.Measured {
				allMeasured = false
				unmeasured++
				continue
			}
			agg += m.Value
			varRe += m.VarRe
			varIm += m.VarIm
		}
	}
	walk(shuntOff, shunt)
	walk(sourceOff, source)
	walk(loadGenOff, loadGen)
	return agg, varRe, varIm, allMeasured, unmeasured, anyConnected
}

// normalizeVariances implements spec.md §4.5's variance normalization: find
// the smallest strictly positive variance across every fused quantity and
// divide every variance by it, preserving zero (hard constraint) and
// infinite (unmeasured) variances as-is.
func normalizeVariances(mv *MeasuredValues) {
	minPositive := math.Inf(1)
	consider := func(v float64) {
		if v > 0 && !math.IsInf(v, 1) && v < minPositive {
			minPositive = v
		}
	}
	for _, b := range mv.Bus {
		consider(b.VarVoltageRe)
		consider(b.VarVoltageIm)
		consider(b.VarInjectionRe)
		consider(b.VarInjectionIm)
	}
	for _, a := range append(append(append([]ApplianceMeasurement{}, mv.Shunt...), mv.Source...), mv.LoadGen...) {
		consider(a.VarRe)
		consider(a.VarIm)
	}
	for _, bp := range mv.BranchPower {
		for _, t := range bp {
			consider(t.VarRe)
			consider(t.VarIm)
		}
	}
	for _, bc := range mv.BranchCurrent {
		for _, t := range bc {
			consider(t.VarRe)
			consider(t.VarIm)
		}
	}

	if math.IsInf(minPositive, 1) {
		return
	}
	scale := func(v float64) float64 {
		if v == 0 || math.IsInf(v, 1) {
			return v
		}
		return v / minPositive
	}
	for i := range mv.Bus {
		mv.Bus[i].VarVoltageRe = scale(mv.Bus[i].VarVoltageRe)
		mv.Bus[i].VarVoltageIm = scale(mv.Bus[i].VarVoltageIm)
		mv.Bus[i].VarInjectionRe = scale(mv.Bus[i].VarInjectionRe)
		mv.Bus[i].VarInjectionIm = scale(mv.Bus[i].VarInjectionIm)
	}
	for _, group := range [][]ApplianceMeasurement{mv.Shunt, mv.Source, mv.LoadGen} {
		for i := range group {
			group[i].VarRe = scale(group[i].VarRe)
			group[i].VarIm = scale(group[i].VarIm)
		}
	}
	for i := range mv.BranchPower {
		for t := range mv.BranchPower[i] {
			mv.BranchPower[i][t].VarRe = scale(mv.BranchPower[i][t].VarRe)
			mv.BranchPower[i][t].VarIm = scale(mv.BranchPower[i][t].VarIm)
		}
	}
	for i := range mv.BranchCurrent {
		for t := range mv.BranchCurrent[i] {
			mv.BranchCurrent[i][t].VarRe = scale(mv.BranchCurrent[i][t].VarRe)
			mv.BranchCurrent[i][t].VarIm = scale(mv.BranchCurrent[i][t].VarIm)
		}
	}
}
