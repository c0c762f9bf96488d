// Package compile lowers a tracker row into opcode records: the
// per-channel factories and effect dispatch table are a direct port of
// original_source/tools/nsstool.py's channel_nss_factory/convert_row,
// and the playback-graph walker is a port of raw_nss, including its
// compact-mode pattern-block factoring.
package compile

import (
	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/tracker"
)

// RowActions collects every opcode segment one tracker row lowers to,
// in the groups row_actions_to_nss flattens in a fixed order.
type RowActions struct {
	HasLocation bool
	Location    opcode.Record

	// JmpToOrder mirrors opcode.JmpNone/JmpNextOrder/JmpStop, or a
	// concrete order index.
	JmpToOrder int

	FlowFx []opcode.Record

	HasCtx bool
	Ctx    opcode.Record

	PreFx []opcode.Record

	HasIns bool
	Ins    opcode.Record

	HasVol bool
	Vol    opcode.Record

	Fx []opcode.Record

	HasNote bool
	Note    opcode.Record

	PostFx []opcode.Record
}

// Flatten reproduces row_actions_to_nss's fixed concatenation order:
// location, flow_fx, ctx, pre_fx, ins, vol, fx, note, post_fx.
func (a RowActions) Flatten() []opcode.Record {
	out := make([]opcode.Record, 0, 4+len(a.FlowFx)+len(a.PreFx)+len(a.Fx)+len(a.PostFx))
	if a.HasLocation {
		out = append(out, a.Location)
	}
	out = append(out, a.FlowFx...)
	if a.HasCtx {
		out = append(out, a.Ctx)
	}
	out = append(out, a.PreFx...)
	if a.HasIns {
		out = append(out, a.Ins)
	}
	if a.HasVol {
		out = append(out, a.Vol)
	}
	out = append(out, a.Fx...)
	if a.HasNote {
		out = append(out, a.Note)
	}
	out = append(out, a.PostFx...)
	return out
}

// toNssNote converts a Furnace semitone (counting octaves from C--5) to
// the NSS note space (counting octaves from C-0).
func toNssNote(furnaceNote int) int {
	return furnaceNote - 5*12
}

// convertRow lowers one tracker row for the given channel into a
// RowActions, applying volume clamping, panning conversion, and the full
// effect-code dispatch table.
func convertRow(row tracker.Row, channel int, order, rowIdx int, factories []ChannelFactory, diag *nsserr.Diagnostics) RowActions {
	out := RowActions{JmpToOrder: opcode.JmpNone}
	if row.IsEmpty() {
		return out
	}

	factory := factories[channel]

	out.HasLocation = true
	out.Location = opcode.NewLoc(order, channel, rowIdx)
	out.HasCtx = true
	out.Ctx = factory.Ctx()

	if row.Note != -1 {
		out.HasNote = true
		if row.Note == tracker.NoteOff {
			out.Note = factory.NoteOff()
		} else {
			out.Note = factory.NoteOn(byte(toNssNote(row.Note)))
		}
	}

	if row.Instrument != -1 {
		out.HasIns = true
		out.Ins = factory.Instr(byte(row.Instrument))
	}

	if row.Volume != -1 {
		out.HasVol = true
		out.Vol = factory.Vol(byte(row.Volume), diag)
	}

	for _, fx := range row.Fx {
		applyEffect(&out, factory, fx, diag)
	}

	return out
}
