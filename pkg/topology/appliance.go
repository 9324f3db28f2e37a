package topology

import "github.com/voltgrid/pgm-core/pkg/idxvec"

// bucketAppliancesAndSensors fills in the per-model grouped-index fields
// (ShuntsPerBus, SourcesPerBus, ..., PowerSensorsPerBus, ...) and the
// remaining TopoCoupling entries (Appliance, VoltageSensor, PowerSensor,
// CurrentSensor) once every model's bus numbering is fixed.
func bucketAppliancesAndSensors(topo *ComponentTopology, models []*MathTopology, c *TopoCoupling) {
	c.Appliance = make([]Coupling, topo.NumAppliance())
	c.VoltageSensor = make([]Coupling, len(topo.VoltageSensorNode))
	c.PowerSensor = make([]Coupling, len(topo.PowerSensor))
	c.CurrentSensor = make([]Coupling, len(topo.CurrentSensor))

	for _, kind := range []ApplianceKind{ApplianceShunt, ApplianceSource, ApplianceLoadGen} {
		bucketApplianceKind(topo, models, c, kind)
	}

	bucketVoltageSensors(topo, models, c)
	bucketBranchLikeSensors(topo, models, c, topo.PowerSensor, c.PowerSensor, true)
	bucketBranchLikeSensors(topo, models, c, topo.CurrentSensor, c.CurrentSensor, false)
	fillEmptySensorOffsets(models)
}

// bucketApplianceKind buckets every appliance of kind by the bus its host
// node landed on, per model, recording the local (model, kind) position in
// c.Appliance and a per-model *idxvec.Offsets bucket.
func bucketApplianceKind(topo *ComponentTopology, models []*MathTopology, c *TopoCoupling, kind ApplianceKind) {
	type entry struct {
		applianceIdx int
		bus          int
	}
	perGroup := make(map[int][]entry)

	for i, k := range topo.ApplianceKind {
		if k != kind {
			continue
		}
		node := topo.ApplianceNode[i]
		coup := c.Node[node]
		if coup.Group == Unenergized {
			c.Appliance[i] = Coupling{Group: Unenergized, Pos: Unenergized}
			continue
		}
		perGroup[coup.Group] = append(perGroup[coup.Group], entry{applianceIdx: i, bus: coup.Pos})
	}

	assign := func(m *MathTopology, offsets *idxvec.Offsets) {
		switch kind {
		case ApplianceShunt:
			m.ShuntsPerBus = offsets
		case ApplianceSource:
			m.SourcesPerBus = offsets
		case ApplianceLoadGen:
			m.LoadGensPerBus = offsets
		}
	}

	for g, entries := range perGroup {
		bus := make([]int, len(entries))
		for i, e := range entries {
			bus[i] = e.bus
		}
		order, offsets := bucketElements(bus, models[g].NBus)
		for localPos, filteredIdx := range order {
			origIdx := entries[filteredIdx].applianceIdx
			c.Appliance[origIdx] = Coupling{Group: g, Pos: localPos}
		}
		assign(models[g], offsets)
	}
	for g, m := range models {
		if _, ok := perGroup[g]; !ok {
			_, offsets := bucketElements(nil, m.NBus)
			assign(m, offsets)
		}
	}
}

func bucketVoltageSensors(topo *ComponentTopology, models []*MathTopology, c *TopoCoupling) {
	type entry struct {
		sensorIdx int
		bus       int
	}
	perGroup := make(map[int][]entry)

	for i, node := range topo.VoltageSensorNode {
		coup := c.Node[node]
		if coup.Group == Unenergized {
			c.VoltageSensor[i] = Coupling{Group: Unenergized, Pos: Unenergized}
			continue
		}
		perGroup[coup.Group] = append(perGroup[coup.Group], entry{sensorIdx: i, bus: coup.Pos})
	}

	for g, entries := range perGroup {
		bus := make([]int, len(entries))
		for i, e := range entries {
			bus[i] = e.bus
		}
		order, offsets := bucketElements(bus, models[g].NBus)
		for localPos, filteredIdx := range order {
			c.VoltageSensor[entries[filteredIdx].sensorIdx] = Coupling{Group: g, Pos: localPos}
		}
		models[g].VoltageSensorsPerBus = offsets
	}
	for g, m := range models {
		if _, ok := perGroup[g]; !ok {
			_, offsets := bucketElements(nil, m.NBus)
			m.VoltageSensorsPerBus = offsets
		}
	}
}

// objectBus resolves the bus a sensor's measured object sits at, for the
// appliance-kind objects (used to bucket "bus injection" power sensors by
// bus rather than by effective branch).
func objectBus(topo *ComponentTopology, c *TopoCoupling, ref SensorRef) int {
	switch ref.Kind {
	case ObjectSource, ObjectLoadGen, ObjectShunt:
		node := topo.ApplianceNode[ref.Index]
		return c.Node[node].Pos
	default:
		return Unenergized
	}
}

// resolveObjectGroup resolves a SensorRef to the math model it landed in
// and either an effective-branch position (isBranchLike) or a local
// appliance-kind-bucket position.
func resolveObjectGroup(c *TopoCoupling, ref SensorRef) (group int, isBranchLike bool, pos int) {
	switch ref.Kind {
	case ObjectBranch:
		coup := c.Branch[ref.Index]
		return coup.Group, true, coup.Pos
	case ObjectBranch3:
		coup := c.Branch3Arm[ref.Index][ref.Arm]
		return coup.Group, true, coup.Pos
	case ObjectSource, ObjectLoadGen, ObjectShunt:
		coup := c.Appliance[ref.Index]
		return coup.Group, false, coup.Pos
	default:
		return Unenergized, false, Unenergized
	}
}

// bucketBranchLikeSensors buckets a power/current sensor list into, per
// model, a PerBranch offsets container (for branch/branch3-arm targets) and
// — for power sensors only — a PerBus offsets container (for
// appliance-injection targets).
func bucketBranchLikeSensors(topo *ComponentTopology, models []*MathTopology, c *TopoCoupling, refs []SensorRef, coupOut []Coupling, isPower bool) {
	type branchEntry struct {
		sensorIdx int
		branchPos int
		ref       SensorRef
	}
	type busEntry struct {
		sensorIdx int
		bus       int
		ref       SensorRef
	}

	branchPerGroup := make(map[int][]branchEntry)
	busPerGroup := make(map[int][]busEntry)

	for i, ref := range refs {
		group, isBranchLike, pos := resolveObjectGroup(c, ref)
		if group == Unenergized {
			coupOut[i] = Coupling{Group: Unenergized, Pos: Unenergized}
			continue
		}
		if isBranchLike {
			branchPerGroup[group] = append(branchPerGroup[group], branchEntry{sensorIdx: i, branchPos: pos, ref: ref})
		} else if isPower {
			bus := objectBus(topo, c, ref)
			busPerGroup[group] = append(busPerGroup[group], busEntry{sensorIdx: i, bus: bus, ref: ref})
		} else {
			// A current sensor on an appliance has no branch-flow position
			// to bucket by; leave it coupled to the model with Pos = the
			// appliance-kind-bucket position resolveObjectGroup returned.
			coupOut[i] = Coupling{Group: group, Pos: pos}
		}
	}

	for g, entries := range branchPerGroup {
		nBranch := len(models[g].BranchBusIdx)
		bus := make([]int, len(entries))
		for i, e := range entries {
			bus[i] = e.branchPos
		}
		order, offsets := bucketElements(bus, nBranch)
		local := make([]SensorRef, len(order))
		for localPos, filteredIdx := range order {
			e := entries[filteredIdx]
			coupOut[e.sensorIdx] = Coupling{Group: g, Pos: localPos}
			local[localPos] = e.ref
		}
		if isPower {
			models[g].PowerSensorsPerBranch = offsets
			models[g].LocalPowerSensor = append(models[g].LocalPowerSensor, local...)
		} else {
			models[g].CurrentSensorsPerBranch = offsets
			models[g].LocalCurrentSensor = append(models[g].LocalCurrentSensor, local...)
		}
	}

	if isPower {
		for g, entries := range busPerGroup {
			bus := make([]int, len(entries))
			for i, e := range entries {
				bus[i] = e.bus
			}
			order, offsets := bucketElements(bus, models[g].NBus)
			for localPos, filteredIdx := range order {
				e := entries[filteredIdx]
				coupOut[e.sensorIdx] = Coupling{Group: g, Pos: localPos}
			}
			models[g].PowerSensorsPerBus = offsets
		}
	}
}

// fillEmptySensorOffsets gives every model an (empty, non-nil) Offsets
// container for sensor buckets no sensor ever populated.
func fillEmptySensorOffsets(models []*MathTopology) {
	for _, m := range models {
		if m.PowerSensorsPerBranch == nil {
			_, offsets := bucketElements(nil, len(m.BranchBusIdx))
			m.PowerSensorsPerBranch = offsets
		}
		if m.CurrentSensorsPerBranch == nil {
			_, offsets := bucketElements(nil, len(m.BranchBusIdx))
			m.CurrentSensorsPerBranch = offsets
		}
		if m.PowerSensorsPerBus == nil {
			_, offsets := bucketElements(nil, m.NBus)
			m.PowerSensorsPerBus = offsets
		}
	}
}
