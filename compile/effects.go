package compile

import (
	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/tracker"
)

// Tracker effect codes recognised by applyEffect, named for readability
// at each dispatch site; values match convert_row's elif chain.
const (
	fxArpeggio         = 0x00
	fxPitchSlideUp     = 0x01
	fxPitchSlideDown   = 0x02
	fxPortamento       = 0x03
	fxVibrato          = 0x04
	fxPanning          = 0x08
	fxGroove           = 0x09
	fxVolSlide         = 0x0A
	fxJumpToOrder      = 0x0B
	fxRetrigger        = 0x0C
	fxNextOrder        = 0x0D
	fxSpeed            = 0x0F
	fxOp1Level         = 0x12
	fxOp2Level         = 0x13
	fxOp3Level         = 0x14
	fxOp4Level         = 0x15
	fxLegacyPanning    = 0x80
	fxArpeggioSpeed    = 0xE0
	fxNoteSlideUp      = 0xE1
	fxNoteSlideDown    = 0xE2
	fxPitchOffset      = 0xE5
	fxQuickLegatoEither = 0xE6
	fxQuickLegatoUp    = 0xE8
	fxQuickLegatoDown  = 0xE9
	fxLegato           = 0xEA
	fxNoteCut          = 0xEC
	fxNoteDelay        = 0xED
	fxStop             = 0xFF
)

// applyEffect dispatches one tracker (code, value) effect slot into
// out's fx/pre_fx/post_fx/flow_fx segments or its JmpToOrder signal,
// following convert_row's effect table.
func applyEffect(out *RowActions, factory ChannelFactory, fx tracker.FxCmd, diag *nsserr.Diagnostics) {
	if fx.Code == -1 {
		return
	}

	absentOrZero := fx.Value == -1 || fx.Value == 0

	switch fx.Code {
	case fxArpeggio:
		if absentOrZero {
			out.PreFx = append(out.PreFx, opcode.ArpeggioOffOp())
		} else {
			out.Fx = append(out.Fx, opcode.ArpeggioOp(byte(fx.Value)))
		}
	case fxPitchSlideUp:
		if absentOrZero {
			out.PreFx = append(out.PreFx, opcode.NoteSlideOffOp())
		} else {
			out.Fx = append(out.Fx, opcode.NotePitchSlideUOp(byte(fx.Value)))
		}
	case fxPitchSlideDown:
		if absentOrZero {
			out.PreFx = append(out.PreFx, opcode.NoteSlideOffOp())
		} else {
			out.Fx = append(out.Fx, opcode.NotePitchSlideDOp(byte(fx.Value)))
		}
	case fxPortamento:
		out.Fx = append(out.Fx, opcode.NotePortaOp(byte(fx.Value)))
	case fxVibrato:
		if absentOrZero {
			out.PreFx = append(out.PreFx, opcode.VibratoOffOp())
		} else {
			out.Fx = append(out.Fx, opcode.VibratoOp(byte(fx.Value)))
		}
	case fxPanning:
		panL, panR := byte(0), byte(0)
		if fx.Value&0xF0 != 0 {
			panL = 0x80
		}
		if fx.Value&0x0F != 0 {
			panR = 0x40
		}
		if rec, ok := factory.Pan(panL|panR, diag); ok {
			out.Fx = append(out.Fx, rec)
		}
	case fxGroove:
		out.FlowFx = append(out.FlowFx, opcode.GrooveOp(byte(fx.Value)))
	case fxJumpToOrder:
		out.JmpToOrder = fx.Value
	case fxNextOrder:
		out.JmpToOrder = opcode.JmpNextOrder
	case fxSpeed:
		out.FlowFx = append(out.FlowFx, opcode.SpeedOp(byte(fx.Value)))
	case fxOp1Level:
		out.Fx = append(out.Fx, opcode.Op1Level(byte(fx.Value)))
	case fxOp2Level:
		out.Fx = append(out.Fx, opcode.Op2Level(byte(fx.Value)))
	case fxOp3Level:
		out.Fx = append(out.Fx, opcode.Op3Level(byte(fx.Value)))
	case fxOp4Level:
		out.Fx = append(out.Fx, opcode.Op4Level(byte(fx.Value)))
	case fxVolSlide:
		switch {
		case absentOrZero:
			out.PreFx = append(out.PreFx, opcode.VolSlideOffOp())
		case fx.Value > 0x0F:
			out.Fx = append(out.Fx, opcode.VolSlideUOp(byte(fx.Value>>4)))
		default:
			out.Fx = append(out.Fx, opcode.VolSlideDOp(byte(fx.Value)))
		}
	case fxRetrigger:
		if rec, ok := factory.Retrigger(byte(fx.Value), diag); ok {
			out.Fx = append(out.Fx, rec)
		}
	case fxLegacyPanning:
		panL, panR := byte(0), byte(0)
		if fx.Value == 0x00 || fx.Value == 0x80 {
			panL = 0x80
		}
		if fx.Value == 0x80 || fx.Value == 0xFF {
			panR = 0x40
		}
		if rec, ok := factory.Pan(panL|panR, diag); ok {
			out.Fx = append(out.Fx, rec)
		}
	case fxArpeggioSpeed:
		v := fx.Value
		if v < 1 {
			v = 1
		}
		out.Fx = append(out.Fx, opcode.ArpeggioSpeedOp(byte(v)))
	case fxNoteSlideUp:
		if absentOrZero {
			out.PreFx = append(out.PreFx, opcode.NoteSlideOffOp())
		} else {
			out.PostFx = append(out.PostFx, opcode.NoteSlideUOp(byte(fx.Value)))
		}
	case fxNoteSlideDown:
		if absentOrZero {
			out.PreFx = append(out.PreFx, opcode.NoteSlideOffOp())
		} else {
			out.PostFx = append(out.PostFx, opcode.NoteSlideDOp(byte(fx.Value)))
		}
	case fxPitchOffset:
		if rec, ok := factory.Pitch(byte(fx.Value), diag); ok {
			out.Fx = append(out.Fx, rec)
		}
	case fxQuickLegatoEither:
		ticks, semitones := fx.Value>>4, fx.Value&0xF
		if ticks >= 8 && ticks <= 15 {
			out.Fx = append(out.Fx, opcode.QuickLegatoDOp(byte((ticks-8)<<4|semitones)))
		} else {
			out.Fx = append(out.Fx, opcode.QuickLegatoUOp(byte(ticks<<4|semitones)))
		}
	case fxQuickLegatoUp:
		out.Fx = append(out.Fx, opcode.QuickLegatoUOp(byte(fx.Value)))
	case fxQuickLegatoDown:
		out.Fx = append(out.Fx, opcode.QuickLegatoDOp(byte(fx.Value)))
	case fxLegato:
		if absentOrZero {
			out.PreFx = append(out.PreFx, opcode.LegatoOffOp())
		} else {
			out.PostFx = append(out.PostFx, opcode.LegatoOp())
		}
	case fxNoteCut:
		out.Fx = append(out.Fx, factory.Cut(byte(fx.Value)))
	case fxNoteDelay:
		out.PreFx = append(out.PreFx, factory.Delay(byte(fx.Value)))
	case fxStop:
		out.JmpToOrder = opcode.JmpStop
	default:
		diag.Addf("%w: unsupported effect code %#02x", nsserr.ErrUnsupportedFx, fx.Code)
	}
}
