package fixture

import "github.com/voltgrid/pgm-core/pkg/component"

// Buffer is a minimal in-memory component.BufferCollection for tests:
// plain slices, populated directly by the test.
type Buffer struct {
	NNode      int
	BranchList []component.Branch
	Branch3List []component.Branch3
	ShuntList  []component.Shunt
	SourceList []component.Source
	LoadGenList []component.LoadGen
	VoltageSensorList []component.VoltageSensor
	PowerSensorList   []component.PowerSensor
	CurrentSensorList []component.CurrentSensor
	FaultList  []component.Fault
}

func (b *Buffer) NumNode() int                           { return b.NNode }
func (b *Buffer) Branches() []component.Branch             { return b.BranchList }
func (b *Buffer) Branch3s() []component.Branch3            { return b.Branch3List }
func (b *Buffer) Shunts() []component.Shunt                { return b.ShuntList }
func (b *Buffer) Sources() []component.Source              { return b.SourceList }
func (b *Buffer) LoadGens() []component.LoadGen            { return b.LoadGenList }
func (b *Buffer) VoltageSensors() []component.VoltageSensor { return b.VoltageSensorList }
func (b *Buffer) PowerSensors() []component.PowerSensor     { return b.PowerSensorList }
func (b *Buffer) CurrentSensors() []component.CurrentSensor { return b.CurrentSensorList }
func (b *Buffer) Faults() []component.Fault                 { return b.FaultList }
