// Package optimize applies the fixed sequence of validation and
// size-reduction passes to an unoptimised opcode stream, ported from
// original_source/tools/nsstool.py's check/compact/resolve functions and
// run in generate_nss_stream's order.
package optimize

import (
	"fmt"

	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/tracker"
)

// PassFunc is one control-flow-aware rewrite step: given the next
// opcode and the output stream it should append to, it decides what (if
// anything) survives into out.
type PassFunc func(op opcode.Record, out *[]opcode.Record)

var fmCtxIndex = map[opcode.Code]int{
	opcode.FmCtx1: 0, opcode.FmCtx2: 1, opcode.FmCtx3: 2, opcode.FmCtx4: 3,
}
var ssgCtxIndex = map[opcode.Code]int{
	opcode.SCtx1: 0, opcode.SCtx2: 1, opcode.SCtx3: 2,
}
var adpcmACtxIndex = map[opcode.Code]int{
	opcode.ACtx1: 0, opcode.ACtx2: 1, opcode.ACtx3: 2,
	opcode.ACtx4: 3, opcode.ACtx5: 4, opcode.ACtx6: 5,
}

// streamFromLabel returns the sub-slice of stream starting at the label
// named target and ending (inclusive) at the next nss_ret, mirroring
// stream_from_label.
func streamFromLabel(stream []opcode.Record, target string) []opcode.Record {
	start := -1
	for i, op := range stream {
		if op.Code == opcode.Label && op.LabelName == target {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}
	end := -1
	for i := start; i < len(stream); i++ {
		if stream[i].Code == opcode.NssRet {
			end = i
			break
		}
	}
	if end == -1 {
		return stream[start:]
	}
	return stream[start : end+1]
}

// RunControlFlowPass drives pass across nss the way run_control_flow_pass
// does: the main sequence is walked linearly, but a call/call_entry
// diverts into its callee block (visited once; repeat calls are replayed
// through pass to keep its running state correct, but their output is
// discarded), a ret returns to the caller, and a jmp/nss_end stops the
// whole walk. Blocks reached via call are appended after the main output.
func RunControlFlowPass(pass PassFunc, nss []opcode.Record) []opcode.Record {
	var outMain []opcode.Record
	var outBlocks []opcode.Record
	var discard []opcode.Record
	seenBlocks := map[string]bool{}
	out := &outMain

	var prevStream []opcode.Record
	stream := append([]opcode.Record(nil), nss...)

	for len(stream) > 0 {
		op := stream[0]
		stream = stream[1:]

		switch {
		case op.Code == opcode.Call || op.Code == opcode.CallEntryRec:
			*out = append(*out, op)
			if !seenBlocks[op.Target] {
				seenBlocks[op.Target] = true
				out = &outBlocks
			} else {
				discard = discard[:0]
				out = &discard
			}
			prevStream = stream
			stream = streamFromLabel(stream, op.Target)
		case op.Code == opcode.NssRet:
			*out = append(*out, op)
			out = &outMain
			stream = prevStream
		case op.Code == opcode.Jmp || op.Code == opcode.NssEnd:
			*out = append(*out, op)
			stream = nil
		default:
			pass(op, out)
		}
	}

	return append(outMain, outBlocks...)
}

// CheckInstrumentsValidForChannel verifies every fm_instr/s_macro/a_instr/
// b_instr opcode names an instrument of the matching kind, recording a
// diagnostic (and returning false) for each mismatch.
func CheckInstrumentsValidForChannel(ins []tracker.Instrument, nss []opcode.Record, diag *nsserr.Diagnostics) bool {
	ok := true
	check := func(idx byte, want tracker.InstrumentKind, label string) {
		if int(idx) >= len(ins) {
			diag.Addf("%w: %s instrument %d does not exist", nsserr.ErrBadInstrument, label, idx)
			ok = false
			return
		}
		if ins[idx].Kind != want {
			diag.Addf("%w: instrument %d is not a valid %s instrument", nsserr.ErrBadInstrument, idx, label)
			ok = false
		}
	}

	RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		switch op.Code {
		case opcode.FmInstrOp:
			check(op.Operands[0], tracker.InstrumentKindFm, "FM")
		case opcode.SMacro:
			check(op.Operands[0], tracker.InstrumentKindSsgMacro, "SSG")
		case opcode.AInstrOp:
			check(op.Operands[0], tracker.InstrumentKindAdpcmA, "ADPCM-A")
		case opcode.BInstr:
			check(op.Operands[0], tracker.InstrumentKindAdpcmB, "ADPCM-B")
		}
		*out = append(*out, op)
	}, nss)

	return ok
}

// CheckInstrumentsBeforeFirstNote verifies no channel plays a note before
// an instrument has been set on it.
func CheckInstrumentsBeforeFirstNote(nss []opcode.Record, diag *nsserr.Diagnostics) bool {
	fmCtx, ssgCtx, aCtx := 0, 0, 0
	fmIs := [4]int{-1, -1, -1, -1}
	ssgIs := [3]int{-1, -1, -1}
	aIs := [6]int{-1, -1, -1, -1, -1, -1}
	bIs := -1
	ok := true

	RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		if idx, found := fmCtxIndexLookup(op.Code); found {
			fmCtx = idx
		} else if op.Code == opcode.FmInstrOp {
			fmIs[fmCtx] = int(op.Operands[0])
		} else if op.Code == opcode.FmNoteOp && fmIs[fmCtx] == -1 {
			diag.Addf("%w: FM channel played a note before any instrument was set", nsserr.ErrBadInstrument)
			ok = false
		}

		if idx, found := ssgCtxIndexLookup(op.Code); found {
			ssgCtx = idx
		} else if op.Code == opcode.SMacro {
			ssgIs[ssgCtx] = int(op.Operands[0])
		} else if op.Code == opcode.SNoteOp && ssgIs[ssgCtx] == -1 {
			diag.Addf("%w: SSG channel played a note before any instrument was set", nsserr.ErrBadInstrument)
			ok = false
		}

		if idx, found := adpcmACtxIndexLookup(op.Code); found {
			aCtx = idx
		} else if op.Code == opcode.AInstrOp {
			aIs[aCtx] = int(op.Operands[0])
		} else if op.Code == opcode.AStart && aIs[aCtx] == -1 {
			diag.Addf("%w: ADPCM-A channel played a note before any instrument was set", nsserr.ErrBadInstrument)
			ok = false
		}

		switch op.Code {
		case opcode.BInstr:
			bIs = int(op.Operands[0])
		case opcode.BNote:
			if bIs == -1 {
				diag.Addf("%w: ADPCM-B channel played a note before any instrument was set", nsserr.ErrBadInstrument)
				ok = false
			}
		}
		*out = append(*out, op)
	}, nss)

	return ok
}

func fmCtxIndexLookup(c opcode.Code) (int, bool)     { v, ok := fmCtxIndex[c]; return v, ok }
func ssgCtxIndexLookup(c opcode.Code) (int, bool)    { v, ok := ssgCtxIndex[c]; return v, ok }
func adpcmACtxIndexLookup(c opcode.Code) (int, bool) { v, ok := adpcmACtxIndex[c]; return v, ok }

// RemoveLocations strips all diagnostic nss_loc records; call only after
// the check passes that consume them have run.
func RemoveLocations(nss []opcode.Record) []opcode.Record {
	out := make([]opcode.Record, 0, len(nss))
	for _, op := range nss {
		if op.Code != opcode.Loc {
			out = append(out, op)
		}
	}
	return out
}

// RemoveUnreferencedLabels drops every label no jmp/call/call_entry
// targets, except the reserved "_start" entry label.
func RemoveUnreferencedLabels(nss []opcode.Record) []opcode.Record {
	refs := map[string]bool{}
	for _, op := range nss {
		if op.Code == opcode.Jmp || op.Code == opcode.Call || op.Code == opcode.CallEntryRec {
			refs[op.Target] = true
		}
	}
	out := make([]opcode.Record, 0, len(nss))
	for _, op := range nss {
		if op.Code == opcode.Label && op.LabelName != "_start" && !refs[op.LabelName] {
			continue
		}
		out = append(out, op)
	}
	return out
}

// MergeAdjacentWaits folds runs of consecutive wait_n opcodes into as few
// wait_n(255)-capped opcodes as possible.
func MergeAdjacentWaits(nss []opcode.Record) []opcode.Record {
	var out []opcode.Record
	curWait := 0
	for _, op := range nss {
		if op.Code == opcode.WaitNOp {
			curWait += int(op.Operands[0])
			for curWait > 255 {
				out = append(out, opcode.WaitN(255))
				curWait -= 255
			}
			continue
		}
		if curWait > 0 {
			out = append(out, opcode.WaitN(byte(curWait)))
			curWait = 0
		}
		out = append(out, op)
	}
	if curWait > 0 {
		out = append(out, opcode.WaitN(byte(curWait)))
	}
	return out
}

// CompactInstr drops redundant fm_instr/s_macro/a_instr/b_instr opcodes
// that repeat the instrument already active on that channel, resetting
// its tracked state at every label (a fresh block may be entered with a
// different live instrument than where it last left off).
func CompactInstr(nss []opcode.Record) []opcode.Record {
	fmCtx, ssgCtx, aCtx := 0, 0, 0
	fmIs := [4]int{-1, -1, -1, -1}
	ssgIs := [3]int{-1, -1, -1}
	aIs := [6]int{-1, -1, -1, -1, -1, -1}
	bIs := -1

	return RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		switch {
		case op.Code == opcode.Label:
			fmIs, ssgIs, aIs, bIs = [4]int{-1, -1, -1, -1}, [3]int{-1, -1, -1}, [6]int{-1, -1, -1, -1, -1, -1}, -1
			*out = append(*out, op)
		case op.Code == opcode.FmInstrOp:
			if fmIs[fmCtx] != int(op.Operands[0]) {
				fmIs[fmCtx] = int(op.Operands[0])
				*out = append(*out, op)
			}
		case op.Code == opcode.SMacro:
			if ssgIs[ssgCtx] != int(op.Operands[0]) {
				ssgIs[ssgCtx] = int(op.Operands[0])
				*out = append(*out, op)
			}
		case op.Code == opcode.AInstrOp:
			if aIs[aCtx] != int(op.Operands[0]) {
				aIs[aCtx] = int(op.Operands[0])
				*out = append(*out, op)
			}
		case op.Code == opcode.BInstr:
			if bIs != int(op.Operands[0]) {
				bIs = int(op.Operands[0])
				*out = append(*out, op)
			}
		default:
			if idx, found := fmCtxIndexLookup(op.Code); found {
				fmCtx = idx
			} else if idx, found := ssgCtxIndexLookup(op.Code); found {
				ssgCtx = idx
			} else if idx, found := adpcmACtxIndexLookup(op.Code); found {
				aCtx = idx
			}
			*out = append(*out, op)
		}
	}, nss)
}

// InsertMissingVol inserts a default-maximum volume opcode on any channel
// that plays its first note without one having been set.
func InsertMissingVol(nss []opcode.Record) []opcode.Record {
	fmCtx, ssgCtx, aCtx := 0, 0, 0
	volsFm := [4]bool{}
	volsSsg := [3]bool{}
	volsA := [6]bool{}
	volB := false

	return RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		if idx, found := fmCtxIndexLookup(op.Code); found {
			fmCtx = idx
			*out = append(*out, op)
			return
		}
		if idx, found := ssgCtxIndexLookup(op.Code); found {
			ssgCtx = idx
			*out = append(*out, op)
			return
		}
		if idx, found := adpcmACtxIndexLookup(op.Code); found {
			aCtx = idx
			*out = append(*out, op)
			return
		}
		switch {
		case op.Code == opcode.FmVol:
			volsFm[fmCtx] = true
			*out = append(*out, op)
		case op.Code == opcode.FmNoteOp:
			if !volsFm[fmCtx] {
				*out = append(*out, opcode.FmVolOp(0x7F))
				volsFm[fmCtx] = true
			}
			*out = append(*out, op)
		case op.Code == opcode.SVol:
			volsSsg[ssgCtx] = true
			*out = append(*out, op)
		case op.Code == opcode.SNoteOp:
			if !volsSsg[ssgCtx] {
				*out = append(*out, opcode.SVolOp(0x0F))
				volsSsg[ssgCtx] = true
			}
			*out = append(*out, op)
		case op.Code == opcode.AVol:
			volsA[aCtx] = true
			*out = append(*out, op)
		case op.Code == opcode.AStart:
			if !volsA[aCtx] {
				*out = append(*out, opcode.AVolOp(0x1F))
				volsA[aCtx] = true
			}
			*out = append(*out, op)
		case op.Code == opcode.BVol:
			volB = true
			*out = append(*out, op)
		case op.Code == opcode.BNote:
			if !volB {
				*out = append(*out, opcode.BVolOp(0xFF))
				volB = true
			}
			*out = append(*out, op)
		default:
			*out = append(*out, op)
		}
	}, nss)
}

// CompactWaitNLast replaces a wait_n whose row count repeats the previous
// wait_n on the same label-delimited run with the one-byte wait_last.
func CompactWaitNLast(nss []opcode.Record) []opcode.Record {
	lastRows := -1
	return RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		switch op.Code {
		case opcode.Label:
			lastRows = -1
			*out = append(*out, op)
		case opcode.WaitNOp:
			rows := int(op.Operands[0])
			if rows == lastRows {
				*out = append(*out, opcode.WaitLastOp())
			} else {
				lastRows = rows
				*out = append(*out, op)
			}
		default:
			*out = append(*out, op)
		}
	}, nss)
}

var fuseMap = map[opcode.Code]func(byte) opcode.Record{
	opcode.FmNoteOp: opcode.FmNoteWOp,
	opcode.SNoteOp:  opcode.SNoteWOp,
}

// FuseNoteWaitLast fuses a note/start opcode immediately followed by
// wait_last into the single combined *_w opcode.
func FuseNoteWaitLast(nss []opcode.Record) []opcode.Record {
	var pendingNote *opcode.Record
	var pendingStartStop *opcode.Record

	return RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		switch {
		case op.Code == opcode.WaitLast:
			switch {
			case pendingNote != nil:
				*out = append(*out, fuseMap[pendingNote.Code](pendingNote.Operands[0]))
				pendingNote = nil
			case pendingStartStop != nil:
				*out = append(*out, opcode.AStartWOp())
				pendingStartStop = nil
			default:
				*out = append(*out, op)
			}
		case op.Code == opcode.FmNoteOp || op.Code == opcode.SNoteOp:
			cp := op
			pendingNote = &cp
		case op.Code == opcode.AStart:
			cp := op
			pendingStartStop = &cp
		default:
			if pendingNote != nil {
				*out = append(*out, *pendingNote)
				pendingNote = nil
			}
			if pendingStartStop != nil {
				*out = append(*out, *pendingStartStop)
				pendingStartStop = nil
			}
			*out = append(*out, op)
		}
	}, nss)
}

// CompactCalls rewrites every call into a shared call_tbl/call_entry run
// and prepends a pat_offset table resolving each distinct callee once.
func CompactCalls(nss []opcode.Record) []opcode.Record {
	var compact []opcode.Record
	seen := map[string]bool{}
	var order []string
	var entries []opcode.Record

	flush := func() {
		if len(entries) == 0 {
			return
		}
		compact = append(compact, opcode.CallTblOp(byte(len(entries))))
		compact = append(compact, entries...)
		entries = nil
	}

	for _, op := range nss {
		if op.Code == opcode.Call {
			if !seen[op.Target] {
				seen[op.Target] = true
				order = append(order, op.Target)
			}
			entries = append(entries, opcode.CallEntryTo(0, op.Target))
			continue
		}
		flush()
		compact = append(compact, op)
	}
	flush()

	offsets := make([]opcode.Record, 0, len(order))
	for _, target := range order {
		offsets = append(offsets, opcode.PatOffsetTo(target))
	}
	return append(offsets, compact...)
}

// TuneAdpcmBNotes applies each ADPCM-B instrument's Tuned offset to every
// note it plays, resetting the tracked instrument at every label.
func TuneAdpcmBNotes(ins []tracker.Instrument, nss []opcode.Record) []opcode.Record {
	currentInst := -1
	tune := 0

	return RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		switch op.Code {
		case opcode.Label:
			currentInst = -1
			*out = append(*out, op)
		case opcode.BInstr:
			idx := int(op.Operands[0])
			if currentInst != idx {
				currentInst = idx
				if idx < len(ins) && ins[idx].AdpcmB != nil {
					tune = ins[idx].AdpcmB.Tuned
				}
				*out = append(*out, op)
			}
		case opcode.BNote:
			*out = append(*out, opcode.BNoteOp(byte(int(op.Operands[0])+tune)))
		default:
			*out = append(*out, op)
		}
	}, nss)
}

var ctxCodes = map[opcode.Code]bool{
	opcode.FmCtx1: true, opcode.FmCtx2: true, opcode.FmCtx3: true, opcode.FmCtx4: true,
	opcode.SCtx1: true, opcode.SCtx2: true, opcode.SCtx3: true,
	opcode.ACtx1: true, opcode.ACtx2: true, opcode.ACtx3: true,
	opcode.ACtx4: true, opcode.ACtx5: true, opcode.ACtx6: true,
}

// RemoveCtx strips every channel context-switch opcode outright, used
// for compact (call-sharing) streams where each callee must work
// regardless of which caller's context preceded it.
func RemoveCtx(nss []opcode.Record) []opcode.Record {
	out := make([]opcode.Record, 0, len(nss))
	for _, op := range nss {
		if !ctxCodes[op.Code] {
			out = append(out, op)
		}
	}
	return out
}

// CompactCtx drops a context-switch opcode that would keep the current
// subchannel context unchanged, tracking the live context per family and
// resetting it at every wait (a new row may run on a hardware channel
// whose register context was not explicitly restored).
func CompactCtx(nss []opcode.Record) []opcode.Record {
	fmCtx, ssgCtx, aCtx := 0, 0, 0

	return RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		if idx, found := fmCtxIndexLookup(op.Code); found {
			if fmCtx == idx {
				return
			}
			fmCtx = idx
			*out = append(*out, op)
			return
		}
		if idx, found := ssgCtxIndexLookup(op.Code); found {
			if ssgCtx == idx {
				return
			}
			ssgCtx = idx
			*out = append(*out, op)
			return
		}
		if idx, found := adpcmACtxIndexLookup(op.Code); found {
			if aCtx == idx {
				return
			}
			aCtx = idx
			*out = append(*out, op)
			return
		}

		switch {
		case op.Code == opcode.WaitNOp || op.Code == opcode.WaitLast:
			fmCtx, ssgCtx, aCtx = 0, 0, 0
		case op.Code == opcode.FmNoteOp || op.Code == opcode.FmStop:
			fmCtx++
		case op.Code == opcode.SNoteOp || op.Code == opcode.SStop:
			ssgCtx++
		case op.Code == opcode.AStart || op.Code == opcode.AStop:
			aCtx++
		}
		*out = append(*out, op)
	}, nss)
}

// equalTemperedFreqs[octave][semitone] is the A4=440Hz note table used by
// simulate_ssg_autoenv to derive each note's hardware envelope period.
var equalTemperedFreqs = [8][12]float64{
	{32.7, 34.65, 36.71, 38.89, 41.2, 43.65, 46.25, 49.0, 51.91, 55.0, 58.27, 61.74},
	{65.41, 69.3, 73.42, 77.78, 82.41, 87.31, 92.5, 98.0, 103.8, 110.0, 116.5, 123.5},
	{130.8, 138.6, 146.8, 155.6, 164.8, 174.6, 185.0, 196.0, 207.7, 220.0, 233.1, 246.9},
	{261.6, 277.2, 293.7, 311.1, 329.6, 349.2, 370.0, 392.0, 415.3, 440.0, 466.2, 493.9},
	{523.3, 554.4, 587.3, 622.3, 659.3, 698.5, 740.0, 784.0, 830.6, 880.0, 932.3, 987.8},
	{1047.0, 1109.0, 1175.0, 1245.0, 1319.0, 1397.0, 1480.0, 1568.0, 1661.0, 1760.0, 1865.0, 1976.0},
	{2093.0, 2217.0, 2349.0, 2489.0, 2637.0, 2794.0, 2960.0, 3136.0, 3322.0, 3520.0, 3729.0, 3951.0},
	{4186.0, 4435.0, 4699.0, 4978.0, 5274.0, 5588.0, 5920.0, 6272.0, 6645.0, 7040.0, 7459.0, 7902.0},
}

// SimulateSsgAutoenv inserts s_env opcodes ahead of any SSG note whose
// active instrument has an auto-envelope macro, deriving the hardware
// envelope period from the note's pitch the way the YM2149 timer would.
func SimulateSsgAutoenv(ins []tracker.Instrument, nss []opcode.Record) []opcode.Record {
	ssgCtx := 0
	is := [3]int{-1, -1, -1}
	autoenv := [3]bool{}
	autoNum := [3]int{}
	autoDen := [3]int{}
	period := [3]int{-1, -1, -1}

	return RunControlFlowPass(func(op opcode.Record, out *[]opcode.Record) {
		if idx, found := ssgCtxIndexLookup(op.Code); found {
			ssgCtx = idx
			*out = append(*out, op)
			return
		}
		switch {
		case op.Code == opcode.WaitNOp || op.Code == opcode.WaitLast:
			ssgCtx = 0
			*out = append(*out, op)
		case op.Code == opcode.SMacro:
			idx := int(op.Operands[0])
			if is[ssgCtx] != idx {
				is[ssgCtx] = idx
				autoenv[ssgCtx] = false
				if idx < len(ins) && ins[idx].Ssg != nil && ins[idx].Ssg.HasAutoEnv {
					autoenv[ssgCtx] = true
					autoNum[ssgCtx] = ins[idx].Ssg.AutoEnvNum
					autoDen[ssgCtx] = ins[idx].Ssg.AutoEnvDen
				}
				period[ssgCtx] = -1
				*out = append(*out, op)
			}
		case op.Code == opcode.SNoteOp:
			if autoenv[ssgCtx] {
				note := int(op.Operands[0])
				octave := note/12 + 1
				semitone := note % 12
				noteFreq := int(equalTemperedFreqs[octave-1][semitone])
				num, den := autoNum[ssgCtx], autoDen[ssgCtx]
				p := ((125000 / noteFreq) * den / num) / 16
				if period[ssgCtx] != p {
					period[ssgCtx] = p
					*out = append(*out, opcode.SEnvOp(byte(p&0xFF), byte((p>>8)&0xFF)))
				}
			}
			ssgCtx++
			*out = append(*out, op)
		case op.Code == opcode.SStop:
			ssgCtx++
			*out = append(*out, op)
		default:
			*out = append(*out, op)
		}
	}, nss)
}

// ResolveJmpAndCall computes each label's byte offset from the start of
// the stream and patches it into every unresolved jmp/call/pat_offset
// record's two-byte operand pair.
func ResolveJmpAndCall(nss []opcode.Record) ([]opcode.Record, error) {
	labels := map[string]int{}
	pos := 0
	for _, op := range nss {
		if op.Code == opcode.Label {
			labels[op.LabelName] = pos
			continue
		}
		pos += op.Width()
	}

	out := make([]opcode.Record, len(nss))
	for i, op := range nss {
		if op.Code == opcode.Jmp || op.Code == opcode.Call || op.Code == opcode.PatOffsetRec {
			offset, ok := labels[op.Target]
			if !ok {
				return nil, fmt.Errorf("%w: unresolved jump target %q", nsserr.ErrInvalidModule, op.Target)
			}
			op.Operands = []byte{byte(offset & 0xFF), byte((offset >> 8) & 0xFF)}
		}
		out[i] = op
	}
	return out, nil
}
