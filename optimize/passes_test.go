package optimize

import (
	"testing"

	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/tracker"
)

func TestMergeAdjacentWaits(t *testing.T) {
	in := []opcode.Record{
		opcode.WaitN(200),
		opcode.WaitN(100),
		opcode.FmNote(60),
		opcode.WaitN(10),
	}
	out := MergeAdjacentWaits(in)

	var waits []byte
	for _, op := range out {
		if op.Code == opcode.WaitNOp {
			waits = append(waits, op.Operands[0])
		}
	}
	if len(waits) != 3 || waits[0] != 255 || waits[1] != 45 || waits[2] != 10 {
		t.Errorf("expected waits [255 45 10], got %v", waits)
	}
}

func TestCompactWaitNLastReplacesRepeats(t *testing.T) {
	in := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.WaitN(1),
		opcode.WaitN(1),
		opcode.WaitN(2),
	}
	out := CompactWaitNLast(in)

	var codes []opcode.Code
	for _, op := range out {
		codes = append(codes, op.Code)
	}
	want := []opcode.Code{opcode.Label, opcode.WaitNOp, opcode.WaitLast, opcode.WaitNOp}
	if len(codes) != len(want) {
		t.Fatalf("got %v", codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("at %d: got %v want %v", i, codes[i], want[i])
		}
	}
}

func TestCompactInstrDropsRedundantInstr(t *testing.T) {
	in := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.FmCtx(0),
		opcode.FmInstr(2),
		opcode.FmNote(60),
		opcode.FmInstr(2),
		opcode.FmNote(62),
	}
	out := CompactInstr(in)

	count := 0
	for _, op := range out {
		if op.Code == opcode.FmInstrOp {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected a single surviving fm_instr, got %d", count)
	}
}

func TestInsertMissingVolInsertsDefault(t *testing.T) {
	in := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.FmCtx(0),
		opcode.FmInstr(0),
		opcode.FmNote(60),
	}
	out := InsertMissingVol(in)

	foundVolBeforeNote := false
	for i, op := range out {
		if op.Code == opcode.FmVol && i+1 < len(out) && out[i+1].Code == opcode.FmNoteOp {
			foundVolBeforeNote = true
		}
	}
	if !foundVolBeforeNote {
		t.Errorf("expected an inserted fm_vol immediately before the note, got %+v", out)
	}
}

func TestCheckInstrumentsValidForChannelRejectsMismatch(t *testing.T) {
	ins := []tracker.Instrument{{Kind: tracker.InstrumentKindSsgMacro}}
	nss := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.FmInstr(0),
		opcode.NssEndOp(),
	}
	diag := &nsserr.Diagnostics{}
	if CheckInstrumentsValidForChannel(ins, nss, diag) {
		t.Errorf("expected failure: instrument 0 is SSG, not FM")
	}
	if diag.Len() == 0 {
		t.Errorf("expected a diagnostic to be recorded")
	}
}

func TestCheckInstrumentsBeforeFirstNoteCatchesMissingInstrument(t *testing.T) {
	nss := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.FmCtx(0),
		opcode.FmNote(60),
		opcode.NssEndOp(),
	}
	diag := &nsserr.Diagnostics{}
	if CheckInstrumentsBeforeFirstNote(nss, diag) {
		t.Errorf("expected failure: note played with no instrument set")
	}
}

func TestCompactCallsProducesOffsetTableAndEntries(t *testing.T) {
	nss := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.CallTo("f1_00_02"),
		opcode.WaitN(2),
		opcode.NssEndOp(),
		opcode.NewLabel("f1_00_02"),
		opcode.FmNote(60),
		opcode.NssRetOp(),
	}
	out := CompactCalls(nss)

	var sawOffset, sawTbl, sawEntry bool
	for _, op := range out {
		switch op.Code {
		case opcode.PatOffsetRec:
			sawOffset = true
		case opcode.CallTbl:
			sawTbl = true
		case opcode.CallEntryRec:
			sawEntry = true
		}
	}
	if !sawOffset || !sawTbl || !sawEntry {
		t.Errorf("expected a pat_offset, call_tbl and call_entry triple, got %+v", out)
	}
}

func TestResolveJmpAndCallPatchesOperands(t *testing.T) {
	nss := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.WaitN(1),
		opcode.JmpTo("_start"),
	}
	out, err := ResolveJmpAndCall(nss)
	if err != nil {
		t.Fatalf("ResolveJmpAndCall: %v", err)
	}
	last := out[len(out)-1]
	if last.Operands[0] != 0 || last.Operands[1] != 0 {
		t.Errorf("expected jmp back to offset 0, got %v", last.Operands)
	}
}

func TestResolveJmpAndCallErrorsOnUnknownTarget(t *testing.T) {
	nss := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.JmpTo("missing"),
	}
	if _, err := ResolveJmpAndCall(nss); err == nil {
		t.Errorf("expected an error for an unresolved jump target")
	}
}

func TestTuneAdpcmBNotesAppliesOffset(t *testing.T) {
	ins := []tracker.Instrument{
		{Kind: tracker.InstrumentKindAdpcmB, AdpcmB: &tracker.AdpcmBInstrument{Tuned: 3}},
	}
	nss := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.BInstrOp(0),
		opcode.BNoteOp(60),
		opcode.NssEndOp(),
	}
	out := TuneAdpcmBNotes(ins, nss)

	for _, op := range out {
		if op.Code == opcode.BNote {
			if op.Operands[0] != 63 {
				t.Errorf("expected tuned note 63, got %d", op.Operands[0])
			}
		}
	}
}
