// Package fixture provides minimal concrete implementations of
// pkg/component's interfaces for use by tests only, analogous to the
// teacher's concrete pkg/device types but reduced to the opaque surface
// the core is allowed to depend on.
package fixture

import (
	"math/cmplx"

	"github.com/voltgrid/pgm-core/pkg/component"
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

// Branch is a fixed-admittance two-terminal test component.
type Branch struct {
	IDVal         int64
	From, To      topology.NodeIdx
	FromOn, ToOn  bool
	Y             pgmtypes.AdmittanceBlock
	Shift         float64
}

func (b *Branch) ID() int64                  { return b.IDVal }
func (b *Branch) Status() bool                { return b.FromOn || b.ToOn }
func (b *Branch) StatusFrom() bool            { return b.FromOn }
func (b *Branch) StatusTo() bool              { return b.ToOn }
func (b *Branch) NodeFrom() topology.NodeIdx  { return b.From }
func (b *Branch) NodeTo() topology.NodeIdx    { return b.To }
func (b *Branch) PhaseShift() float64         { return b.Shift }

func (b *Branch) CalcParam(pgmtypes.Symmetry) pgmtypes.AdmittanceBlock { return b.Y }

func (b *Branch) GetBranchOutput(uFrom, uTo, iFrom, iTo pgmtypes.PhaseVector) component.BranchOutput {
	sFrom := make(pgmtypes.PhaseVector, len(uFrom))
	sTo := make(pgmtypes.PhaseVector, len(uTo))
	for i := range uFrom {
		sFrom[i] = uFrom[i] * cmplx.Conj(iFrom[i])
	}
	for i := range uTo {
		sTo[i] = uTo[i] * cmplx.Conj(iTo[i])
	}
	return component.BranchOutput{IFrom: iFrom, ITo: iTo, SFrom: sFrom, STo: sTo}
}

// Shunt is a fixed-admittance single-node test component.
type Shunt struct {
	IDVal int64
	N     topology.NodeIdx
	On    bool
	Y     pgmtypes.PhaseMatrix
}

func (s *Shunt) ID() int64                 { return s.IDVal }
func (s *Shunt) Status() bool               { return s.On }
func (s *Shunt) Node() topology.NodeIdx     { return s.N }
func (s *Shunt) CalcParam(pgmtypes.Symmetry) pgmtypes.PhaseMatrix { return s.Y }

func (s *Shunt) GetApplianceOutput(u pgmtypes.PhaseVector) component.ApplianceOutput {
	i := s.Y.MulVec(u).Scale(-1)
	out := make(pgmtypes.PhaseVector, len(u))
	for k := range u {
		out[k] = u[k] * cmplx.Conj(i[k])
	}
	return component.ApplianceOutput{I: i, S: out}
}

// Source is a Thevenin-equivalent test voltage source.
type Source struct {
	IDVal int64
	N     topology.NodeIdx
	On    bool
	Y     pgmtypes.PhaseMatrix
	URef  pgmtypes.PhaseVector
}

func (s *Source) ID() int64             { return s.IDVal }
func (s *Source) Status() bool           { return s.On }
func (s *Source) Node() topology.NodeIdx { return s.N }

func (s *Source) CalcParam(pgmtypes.Symmetry) (pgmtypes.PhaseMatrix, pgmtypes.PhaseVector) {
	return s.Y, s.URef
}

func (s *Source) GetApplianceOutput(u pgmtypes.PhaseVector) component.ApplianceOutput {
	diff := make(pgmtypes.PhaseVector, len(u))
	for k := range u {
		diff[k] = s.URef[k] - u[k]
	}
	i := s.Y.MulVec(diff)
	out := make(pgmtypes.PhaseVector, len(u))
	for k := range u {
		out[k] = u[k] * cmplx.Conj(i[k])
	}
	return component.ApplianceOutput{I: i, S: out}
}

// LoadGen is a fixed-power-law test appliance.
type LoadGen struct {
	IDVal int64
	N     topology.NodeIdx
	On    bool
	Kind  component.LoadGenType
	S     complex128
}

func (l *LoadGen) ID() int64                   { return l.IDVal }
func (l *LoadGen) Status() bool                  { return l.On }
func (l *LoadGen) Node() topology.NodeIdx        { return l.N }
func (l *LoadGen) Type() component.LoadGenType   { return l.Kind }
func (l *LoadGen) RatedPower() complex128        { return l.S }

func (l *LoadGen) GetApplianceOutput(u pgmtypes.PhaseVector) component.ApplianceOutput {
	s := make(pgmtypes.PhaseVector, len(u))
	i := make(pgmtypes.PhaseVector, len(u))
	for k := range u {
		s[k] = l.S
		if u[k] != 0 {
			i[k] = cmplx.Conj(l.S / u[k])
		}
	}
	return component.ApplianceOutput{I: i, S: s}
}

// VoltageSensor is a fixed-value test voltage sensor.
type VoltageSensor struct {
	IDVal       int64
	N           topology.NodeIdx
	Value       complex128
	VarRe, VarIm float64
}

func (v *VoltageSensor) ID() int64             { return v.IDVal }
func (v *VoltageSensor) Status() bool           { return true }
func (v *VoltageSensor) Node() topology.NodeIdx { return v.N }

func (v *VoltageSensor) CalcParam() (complex128, float64, float64) {
	return v.Value, v.VarRe, v.VarIm
}

// PowerSensor is a fixed-value test power sensor.
type PowerSensor struct {
	IDVal        int64
	Ref          topology.SensorRef
	Value        complex128
	VarRe, VarIm float64
}

func (p *PowerSensor) ID() int64                          { return p.IDVal }
func (p *PowerSensor) Status() bool                         { return true }
func (p *PowerSensor) MeasuredObject() topology.SensorRef    { return p.Ref }
func (p *PowerSensor) CalcParam() (complex128, float64, float64) { return p.Value, p.VarRe, p.VarIm }

// CurrentSensor is a fixed-value test current sensor.
type CurrentSensor struct {
	IDVal        int64
	Ref          topology.SensorRef
	Local        bool
	Value        complex128
	VarRe, VarIm float64
}

func (c *CurrentSensor) ID() int64                          { return c.IDVal }
func (c *CurrentSensor) Status() bool                         { return true }
func (c *CurrentSensor) MeasuredObject() topology.SensorRef    { return c.Ref }
func (c *CurrentSensor) LocalAngle() bool                      { return c.Local }
func (c *CurrentSensor) CalcParam() (complex128, float64, float64) { return c.Value, c.VarRe, c.VarIm }

// Fault is a fixed-admittance (or bolted) test fault.
type Fault struct {
	IDVal  int64
	N      topology.NodeIdx
	Kind   component.FaultType
	Ph     component.FaultPhase
	Y      complex128
	IsBolted bool
}

func (f *Fault) ID() int64                      { return f.IDVal }
func (f *Fault) Status() bool                    { return true }
func (f *Fault) Node() topology.NodeIdx          { return f.N }
func (f *Fault) Type() component.FaultType       { return f.Kind }
func (f *Fault) Phase() component.FaultPhase     { return f.Ph }
func (f *Fault) Admittance() (complex128, bool)  { return f.Y, f.IsBolted }
