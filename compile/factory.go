package compile

import (
	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
)

// ChannelFactory is the per-channel-family set of opcode constructors a
// row lowers through, grounded on channel_nss_factory: one instance per
// of the 14 channels, built once by NewFactories.
type ChannelFactory struct {
	Name string

	ctxOp       func() opcode.Record
	instrOp     func(byte) opcode.Record
	volOp       func(byte) opcode.Record
	maxVol      byte
	panOp       func(byte) opcode.Record
	pitchOp     func(byte) opcode.Record
	noteOnOp    func(byte) opcode.Record
	noteOffOp   func() opcode.Record
	retriggerOp func(byte) opcode.Record
	cutOp       func(byte) opcode.Record
	delayOp     func(byte) opcode.Record
}

func (f ChannelFactory) Ctx() opcode.Record       { return f.ctxOp() }
func (f ChannelFactory) Instr(i byte) opcode.Record { return f.instrOp(i) }
func (f ChannelFactory) NoteOn(n byte) opcode.Record { return f.noteOnOp(n) }
func (f ChannelFactory) NoteOff() opcode.Record    { return f.noteOffOp() }
func (f ChannelFactory) Cut(r byte) opcode.Record  { return f.cutOp(r) }
func (f ChannelFactory) Delay(r byte) opcode.Record { return f.delayOp(r) }

// Vol clamps v to the channel's maximum, warning when the source value
// exceeded it.
func (f ChannelFactory) Vol(v byte, diag *nsserr.Diagnostics) opcode.Record {
	clamped := v
	if clamped > f.maxVol {
		clamped = f.maxVol
	}
	if clamped != v {
		diag.Addf("%w: %s volume %02X exceeded channel maximum, clamped to %02X", nsserr.ErrVolumeClamp, f.Name, v, clamped)
	}
	return f.volOp(clamped)
}

// Pan applies the channel's panning opcode, or warns and returns false
// if panning is not applicable to this channel family.
func (f ChannelFactory) Pan(mask byte, diag *nsserr.Diagnostics) (opcode.Record, bool) {
	if f.panOp == nil {
		diag.Addf("panning FX not applicable for channel %s", f.Name)
		return opcode.Record{}, false
	}
	return f.panOp(mask), true
}

// Pitch applies the channel's pitch-offset opcode, or warns and returns
// false if pitch offset is not applicable to this channel family.
func (f ChannelFactory) Pitch(p byte, diag *nsserr.Diagnostics) (opcode.Record, bool) {
	if f.pitchOp == nil {
		diag.Addf("pitch FX not applicable for channel %s", f.Name)
		return opcode.Record{}, false
	}
	return f.pitchOp(p), true
}

// Retrigger applies the channel's retrigger opcode, or warns and returns
// false if retrigger is not implemented for this channel family.
func (f ChannelFactory) Retrigger(r byte, diag *nsserr.Diagnostics) (opcode.Record, bool) {
	if f.retriggerOp == nil {
		diag.Addf("retrigger FX not implemented for channel %s", f.Name)
		return opcode.Record{}, false
	}
	return f.retriggerOp(r), true
}

func notApplicable() func(byte) opcode.Record { return nil }

func fmFactory(sub int) ChannelFactory {
	ctxFns := []func() opcode.Record{
		func() opcode.Record { return opcode.FmCtx(0) },
		func() opcode.Record { return opcode.FmCtx(1) },
		func() opcode.Record { return opcode.FmCtx(2) },
		func() opcode.Record { return opcode.FmCtx(3) },
	}
	return ChannelFactory{
		Name:      []string{"F1", "F2", "F3", "F4"}[sub],
		ctxOp:     ctxFns[sub],
		instrOp:   opcode.FmInstr,
		volOp:     opcode.FmVolOp,
		maxVol:    0x7F,
		panOp:     opcode.FmPanOp,
		pitchOp:   opcode.FmPitchOp,
		noteOnOp:  opcode.FmNote,
		noteOffOp: opcode.FmStopOp,
		retriggerOp: notApplicable(),
		cutOp:     opcode.FmCutOp,
		delayOp:   opcode.FmDelayOp,
	}
}

func ssgFactory(sub int) ChannelFactory {
	ctxFns := []func() opcode.Record{
		func() opcode.Record { return opcode.SsgCtx(0) },
		func() opcode.Record { return opcode.SsgCtx(1) },
		func() opcode.Record { return opcode.SsgCtx(2) },
	}
	return ChannelFactory{
		Name:        []string{"S1", "S2", "S3"}[sub],
		ctxOp:       ctxFns[sub],
		instrOp:     opcode.SMacroOp,
		volOp:       opcode.SVolOp,
		maxVol:      0x0F,
		panOp:       nil,
		pitchOp:     opcode.SPitchOp,
		noteOnOp:    opcode.SNote,
		noteOffOp:   opcode.SStopOp,
		retriggerOp: notApplicable(),
		cutOp:       opcode.SCutOp,
		delayOp:     opcode.SDelayOp,
	}
}

func adpcmAFactory(sub int) ChannelFactory {
	ctxFns := []func() opcode.Record{
		func() opcode.Record { return opcode.AdpcmACtx(0) },
		func() opcode.Record { return opcode.AdpcmACtx(1) },
		func() opcode.Record { return opcode.AdpcmACtx(2) },
		func() opcode.Record { return opcode.AdpcmACtx(3) },
		func() opcode.Record { return opcode.AdpcmACtx(4) },
		func() opcode.Record { return opcode.AdpcmACtx(5) },
	}
	return ChannelFactory{
		Name:      []string{"A1", "A2", "A3", "A4", "A5", "A6"}[sub],
		ctxOp:     ctxFns[sub],
		instrOp:   opcode.AInstr,
		volOp:     opcode.AVolOp,
		maxVol:    0x1F,
		panOp:     opcode.APanOp,
		pitchOp:   nil,
		noteOnOp:  func(byte) opcode.Record { return opcode.AStartOp() },
		noteOffOp: opcode.AStopOp,
		retriggerOp: opcode.ARetriggerOp,
		cutOp:     opcode.ACutOp,
		delayOp:   opcode.ADelayOp,
	}
}

func adpcmBFactory() ChannelFactory {
	return ChannelFactory{
		Name:      "B",
		ctxOp:     opcode.BCtxOp,
		instrOp:   opcode.BInstrOp,
		volOp:     opcode.BVolOp,
		maxVol:    0xFF,
		panOp:     opcode.BPanOp,
		pitchOp:   nil,
		noteOnOp:  opcode.BNoteOp,
		noteOffOp: opcode.BStopOp,
		retriggerOp: notApplicable(),
		cutOp:     opcode.BCutOp,
		delayOp:   opcode.BDelayOp,
	}
}

// NewFactories builds the fixed 14-entry channel factory table: FM×4,
// SSG×3, ADPCM-A×6, ADPCM-B×1.
func NewFactories() []ChannelFactory {
	out := make([]ChannelFactory, 0, 14)
	for i := 0; i < 4; i++ {
		out = append(out, fmFactory(i))
	}
	for i := 0; i < 3; i++ {
		out = append(out, ssgFactory(i))
	}
	for i := 0; i < 6; i++ {
		out = append(out, adpcmAFactory(i))
	}
	out = append(out, adpcmBFactory())
	return out
}
