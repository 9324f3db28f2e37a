package observability

import (
	"fmt"

	"github.com/voltgrid/pgm-core/pkg/pgmerr"
)

// Check runs all four spec.md §4.6 gates in order, returning the first one
// that fails as a *pgmerr.NotObservable naming which condition it was.
func Check(in *Input) error {
	if err := checkVoltageSensorExists(in); err != nil {
		return err
	}
	if err := checkNecessaryCount(in); err != nil {
		return err
	}
	if in.Topo.IsRadial {
		return checkRadialStructure(in)
	}
	return checkMeshedStructure(in)
}

func checkVoltageSensorExists(in *Input) error {
	if in.VoltagePhasorCount+in.VoltageMagnitudeOnlyCount == 0 {
		return &pgmerr.NotObservable{Reason: "no voltage sensor present in the model"}
	}
	return nil
}

func checkNecessaryCount(in *Input) error {
	nBus := in.Topo.NBus
	required := in.FlowSensorCount + in.InjectionSensorCount + maxInt(in.VoltagePhasorCount, 1) - 1
	if required < nBus-1 {
		return &pgmerr.NotObservable{Reason: fmt.Sprintf(
			"insufficient sensor count: flow(%d) + injection(%d) + max(phasor,1)(%d) - 1 = %d, need >= %d",
			in.FlowSensorCount, in.InjectionSensorCount, maxInt(in.VoltagePhasorCount, 1), required, nBus-1)}
	}
	if in.HasGlobalAngleCurrentSensor && in.VoltagePhasorCount == 0 {
		return &pgmerr.NotObservable{Reason: "a global-angle current sensor requires at least one voltage phasor sensor"}
	}
	return nil
}
