// Package consts holds the small set of physical/numerical constants the
// core's packages share, the way the teacher's internal/consts holds
// device-physics constants (elementary charge, Boltzmann, Kelvin offset)
// for pkg/device's diode/BJT/MOSFET models. A steady-state three-phase grid
// core has no use for those — they are replaced with grid-domain and
// numerical-solver constants instead.
package consts

const (
	// BaseFrequencyHz is the nominal grid frequency this core assumes when a
	// caller does not supply one explicitly (used by nothing yet beyond
	// documentation purposes, since no component in this core currently
	// needs frequency-dependent admittance — kept for the inductive/
	// capacitive branch parameters a future device layer would compute from
	// it).
	BaseFrequencyHz = 50.0

	// PerUnitEpsilon is the voltage magnitude below which this core treats a
	// bus as de-energized for ratio/division guards (e.g. short-circuit
	// fault-current back-calculation), rather than dividing by a
	// near-singular value.
	PerUnitEpsilon = 1e-9

	// PivotThreshold is the relative pivot-acceptance threshold spec.md
	// §4.4 calls for ("a tiny threshold (1e-100) to accommodate
	// ill-conditioned SE gain matrices").
	PivotThreshold = 1e-100
)
