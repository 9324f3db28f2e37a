package measurement

import (
	"math"
	"math/cmplx"
)

// LinearizeVoltage implements spec.md §4.5's per-iteration voltage
// linearization: buses with no sensor keep the iteration's own estimate,
// buses with a phasor sensor snap to the measured value, and buses with
// only a magnitude-only sensor keep the iteration's angle but scale the
// magnitude to match the measurement.
func LinearizeVoltage(bus []BusMeasurement, uk []complex128) []complex128 {
	out := make([]complex128, len(uk))
	for i, m := range bus {
		switch {
		case isUnmeasured(m):
			out[i] = uk[i]
		case isMagnitudeOnly(m.Voltage):
			mag := real(m.Voltage)
			angle := cmplx.Phase(uk[i])
			out[i] = cmplx.Rect(mag, angle)
		default:
			out[i] = m.Voltage
		}
	}
	return out
}

func isUnmeasured(m BusMeasurement) bool {
	return math.IsInf(m.VarVoltageRe, 1)
}
