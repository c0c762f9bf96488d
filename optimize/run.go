package optimize

import (
	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/tracker"
)

var controlFlowCodes = map[opcode.Code]bool{
	opcode.Loc: true, opcode.Label: true,
	opcode.Jmp: true, opcode.Call: true, opcode.PatOffsetRec: true,
	opcode.CallTbl: true, opcode.CallEntryRec: true,
	opcode.NssRet: true, opcode.NssEnd: true,
	opcode.WaitNOp: true, opcode.WaitLast: true,
}

// StreamSizeInEffectiveOpcodes counts every opcode that is not pure
// control flow or timing, used to decide whether a stream is worth
// injecting a tempo opcode into.
func StreamSizeInEffectiveOpcodes(nss []opcode.Record) int {
	n := 0
	for _, op := range nss {
		if !controlFlowCodes[op.Code] {
			n++
		}
	}
	return n
}

// StreamSizeInBytes sums the emitted byte width of every record, used to
// size the descriptive header comment nsstool.py's asm_header prints.
func StreamSizeInBytes(nss []opcode.Record) int {
	n := 0
	for _, op := range nss {
		n += op.Width()
	}
	return n
}

// Run applies the full fixed pipeline to a raw (Lower-produced) opcode
// stream, in generate_nss_stream's order: validate, then compact, then
// resolve jump targets to concrete byte offsets. ok is false if a check
// pass failed; the returned stream is nil in that case and the failures
// are recorded in diag.
func Run(mod *tracker.Module, nss []opcode.Record, compact bool, diag *nsserr.Diagnostics) (out []opcode.Record, ok bool, err error) {
	if !CheckInstrumentsValidForChannel(mod.Instruments, nss, diag) {
		return nil, false, nil
	}
	if !CheckInstrumentsBeforeFirstNote(nss, diag) {
		return nil, false, nil
	}

	nss = RemoveLocations(nss)
	nss = RemoveUnreferencedLabels(nss)
	nss = MergeAdjacentWaits(nss)
	nss = CompactInstr(nss)
	nss = InsertMissingVol(nss)
	nss = CompactWaitNLast(nss)
	nss = FuseNoteWaitLast(nss)
	nss = CompactCalls(nss)
	nss = TuneAdpcmBNotes(mod.Instruments, nss)

	if compact {
		nss = RemoveCtx(nss)
	} else {
		nss = CompactCtx(nss)
	}

	nss = SimulateSsgAutoenv(mod.Instruments, nss)

	resolved, err := ResolveJmpAndCall(nss)
	if err != nil {
		return nil, false, err
	}
	return resolved, true, nil
}
