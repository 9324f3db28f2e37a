package solver

import (
	"math"
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/measurement"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

// transposeEntry returns the data index of pat's (col, row) entry — the
// mirror of the (row, col) entry a caller is currently filling — or -1 if
// absent. Both iterative-linear and Newton-Raphson SE's gain matrices fill
// their QT sub-block in a second pass by looking up the already-filled Q
// sub-block of this mirrored entry, exactly as the PowerGridModel reference
// solvers' fill_qt()/calculate_qh() pass does.
func transposeEntry(pat *sparselu.Pattern, row, col int) int {
	lo, hi := pat.RowPtr[col], pat.RowPtr[col+1]
	for e := lo; e < hi; e++ {
		if pat.ColIdx[e] == row {
			return e
		}
	}
	return -1
}

// phaseRotation is the positive-sequence ±120° rotation spec.md's scenario
// E2 describes for asymmetric state estimation: a bus carries only one
// scalar (positive-sequence) voltage sensor, broadcast to phase A
// unrotated, phase B at -120°, phase C at +120°.
var phaseRotation = [3]complex128{
	cmplx.Rect(1, 0),
	cmplx.Rect(1, -2*math.Pi/3),
	cmplx.Rect(1, 2*math.Pi/3),
}

// broadcastVoltage expands the aggregator's scalar positive-sequence voltage
// phasor into a per-phase PhaseVector.
func broadcastVoltage(sym pgmtypes.Symmetry, v complex128) pgmtypes.PhaseVector {
	if sym.NDim() == 1 {
		return pgmtypes.ScalarVector(v)
	}
	out := make(pgmtypes.PhaseVector, 3)
	for p := 0; p < 3; p++ {
		out[p] = v * phaseRotation[p]
	}
	return out
}

// broadcastPower expands a scalar three-phase power/injection quantity into
// a per-phase PhaseVector, splitting it evenly with no rotation: balanced
// three-phase power is phase-invariant under the rotation that a voltage
// phasor needs, unlike voltage/current.
func broadcastPower(sym pgmtypes.Symmetry, s complex128) pgmtypes.PhaseVector {
	if sym.NDim() == 1 {
		return pgmtypes.ScalarVector(s)
	}
	third := s / 3
	return pgmtypes.PhaseVector{third, third, third}
}

// collapsePower sums a per-phase power/injection PhaseVector back to the
// scalar three-phase total the measurement aggregator and
// measurement.Disaggregate work in — the inverse of broadcastPower.
func collapsePower(v pgmtypes.PhaseVector) complex128 {
	var sum complex128
	for _, p := range v {
		sum += p
	}
	return sum
}

// isMagnitudeOnlyValue mirrors the aggregator's own "no angle known" sensor
// convention (Value's imaginary part set to NaN).
func isMagnitudeOnlyValue(v complex128) bool { return math.IsNaN(imag(v)) }

// isUnmeasuredVoltage mirrors the aggregator's own unmeasured-voltage test.
func isUnmeasuredVoltage(m measurement.BusMeasurement) bool {
	return math.IsInf(m.VarVoltageRe, 1)
}

// hasInjectionMeasurement reports whether bm carries any bus-injection
// constraint (hard zero-injection or a fused sensor value), per the
// aggregator's "unmeasured means +Inf variance" convention.
func hasInjectionMeasurement(bm measurement.BusMeasurement) bool {
	return !math.IsInf(bm.VarInjectionRe, 1)
}

// hasAngleMeasurement reports whether bm's voltage fusion carries a usable
// phase angle, i.e. it is measured and not a magnitude-only fusion.
func hasAngleMeasurement(bm measurement.BusMeasurement) bool {
	return !isUnmeasuredVoltage(bm) && !isMagnitudeOnlyValue(bm.Voltage)
}

// meanVoltageAngleShift averages the angle of every bus carrying a phasor
// voltage sensor, spec.md §4.7.4/§4.7.5's initial-angle reference; 0 (the
// topology's own phase shift only) when no bus has one.
func meanVoltageAngleShift(bus []measurement.BusMeasurement) float64 {
	var sum float64
	var count int
	for _, m := range bus {
		if !hasAngleMeasurement(m) {
			continue
		}
		sum += cmplx.Phase(m.Voltage)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// linearizeVoltagePhased is the per-phase generalization of
// measurement.LinearizeVoltage: a bus with no voltage sensor keeps every
// phase's current iteration estimate; a magnitude-only sensor keeps every
// phase's current angle but rescales its magnitude; a phasor sensor
// broadcasts its ±120°-rotated target to every phase.
func linearizeVoltagePhased(sym pgmtypes.Symmetry, bus []measurement.BusMeasurement, u []pgmtypes.PhaseVector) []pgmtypes.PhaseVector {
	dim := sym.NDim()
	out := make([]pgmtypes.PhaseVector, len(bus))
	for i, m := range bus {
		out[i] = make(pgmtypes.PhaseVector, dim)
		switch {
		case isUnmeasuredVoltage(m):
			copy(out[i], u[i])
		case isMagnitudeOnlyValue(m.Voltage):
			mag := real(m.Voltage)
			for p := 0; p < dim; p++ {
				out[i][p] = cmplx.Rect(mag, cmplx.Phase(u[i][p]))
			}
		default:
			copy(out[i], broadcastVoltage(sym, m.Voltage))
		}
	}
	return out
}

// seLoadGenOutputs wires measurement.Disaggregate into a state estimation
// solver's output: redistribute each bus's solved three-phase injection
// among its sources and load/gens, then broadcast each load/gen's
// redistributed scalar share back across phases the way a bus-injection
// measurement broadcasts. SourceOutput keeps its own Thevenin-based
// calculation (sourceOutputs); only LoadGenOutput, which power flow's
// solvers fill from explicit LoadGenParam but state estimation has no
// equivalent input for, comes from disaggregation.
func seLoadGenOutputs(sym pgmtypes.Symmetry, topo *topology.MathTopology, injection []pgmtypes.PhaseVector, measured *measurement.MeasuredValues) []pgmtypes.PhaseVector {
	solvedInjection := make([]complex128, len(injection))
	for bus, v := range injection {
		solvedInjection[bus] = collapsePower(v)
	}
	_, lgScalar := measurement.Disaggregate(topo, solvedInjection, measured.Source, measured.LoadGen)

	loadGenOut := make([]pgmtypes.PhaseVector, len(lgScalar))
	for i, s := range lgScalar {
		loadGenOut[i] = broadcastPower(sym, s)
	}
	return loadGenOut
}
