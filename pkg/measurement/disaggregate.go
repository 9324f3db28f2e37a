package measurement

import (
	"github.com/voltgrid/pgm-core/pkg/idxvec"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

// applianceRef names one source or load/gen by its local per-kind bucket
// position, for the per-bus bookkeeping below.
type applianceRef struct {
	isSource bool
	idx      int
}

// Disaggregate implements spec.md §4.5's post-solve appliance
// disaggregation: given the solved bus injections, redistribute each bus's
// injection among its sources and load/gens. If any are unmeasured, the
// residual (solved minus the sum of measured values) is split equally among
// them; if all are measured (an over-determined bus), every value gets a
// variance-weighted least-squares correction pulling the measured sum back
// onto the solved injection.
func Disaggregate(topo *topology.MathTopology, solvedInjection []complex128, source, loadGen []ApplianceMeasurement) (sourceOut, loadGenOut []complex128) {
	sourceOut = make([]complex128, len(source))
	loadGenOut = make([]complex128, len(loadGen))
	for i, m := range source {
		sourceOut[i] = m.Value
	}
	for i, m := range loadGen {
		loadGenOut[i] = m.Value
	}

	for bus := 0; bus < topo.NBus; bus++ {
		refs, measuredSum, measuredVarRe, measuredVarIm, unmeasured := collectBusAppliances(
			bus, topo.SourcesPerBus, source, topo.LoadGensPerBus, loadGen)
		if len(refs) == 0 {
			continue
		}

		var target complex128
		if bus < len(solvedInjection) {
			target = solvedInjection[bus]
		}

		if len(unmeasured) > 0 {
			residual := target - measuredSum
			share := residual / complex(float64(len(unmeasured)), 0)
			for _, u := range unmeasured {
				setApplianceOut(u, share, sourceOut, loadGenOut)
			}
			continue
		}

		residual := measuredSum - target
		muRe, muIm := 0.0, 0.0
		if measuredVarRe > 0 {
			muRe = real(residual) / measuredVarRe
		}
		if measuredVarIm > 0 {
			muIm = imag(residual) / measuredVarIm
		}
		for _, rf := range refs {
			m := applianceMeasurementOf(rf, source, loadGen)
			corrected := complex(real(m.Value)-m.VarRe*muRe, imag(m.Value)-m.VarIm*muIm)
			setApplianceOut(rf, corrected, sourceOut, loadGenOut)
		}
	}
	return sourceOut, loadGenOut
}

func collectBusAppliances(
	bus int,
	sourceOff *idxvec.Offsets, source []ApplianceMeasurement,
	loadGenOff *idxvec.Offsets, loadGen []ApplianceMeasurement,
) (refs []applianceRef, measuredSum complex128, measuredVarRe, measuredVarIm float64, unmeasured []applianceRef) {
	walk := func(off *idxvec.Offsets, isSource bool, items []ApplianceMeasurement) {
		if off == nil {
			return
		}
		r := off.Range(bus)
		for i := r.Begin; i < r.End; i++ {
			rf := applianceRef{isSource: isSource, idx: i}
			refs = append(refs, rf)
			if items[i].Measured {
				measuredSum += items[i].Value
				measuredVarRe += items[i].VarRe
				measuredVarIm += items[i].VarIm
			} else {
				unmeasured = append(unmeasured, rf)
			}
		}
	}
	walk(sourceOff, true, source)
	walk(loadGenOff, false, loadGen)
	return refs, measuredSum, measuredVarRe, measuredVarIm, unmeasured
}

func applianceMeasurementOf(rf applianceRef, source, loadGen []ApplianceMeasurement) ApplianceMeasurement {
	if rf.isSource {
		return source[rf.idx]
	}
	return loadGen[rf.idx]
}

func setApplianceOut(rf applianceRef, v complex128, sourceOut, loadGenOut []complex128) {
	if rf.isSource {
		sourceOut[rf.idx] = v
	} else {
		loadGenOut[rf.idx] = v
	}
}
