// Package opcode is the closed instruction set emitted by the row
// lowerer and consumed by the optimisation passes: one Code per mnemonic
// in original_source/tools/nsstool.py's register_nss_ops() table, each
// carrying a fixed-width operand slice.
//
// The source builds one Python dataclass per opcode name at runtime
// (register_nss_ops uses make_dataclass in a loop). Go has no direct
// equivalent to a dynamically constructed closed sum type, so the cases
// are rendered as a single tagged Record (Code + fixed-width Operands)
// together with one constructor function per mnemonic: passes still
// switch exhaustively on Code, and every call site reads exactly like
// the mnemonic it emits (opcode.FmInstr(5), opcode.WaitN(1), ...).
package opcode

// Code identifies an opcode's position in the fixed instruction table.
// Values below 0 are synthetic records outside the base table: Label and
// Loc are zero-width metadata, and CallEntryRec/PatOffsetRec are written
// as operand bytes only, with no opcode byte.
type Code int

const (
	// Synthetic, zero-width metadata. Never written to the byte stream.
	Label Code = -(iota + 1)
	Loc
	// CallEntry (one byte) and PatOffset (two bytes) are introduced by
	// the compact-calls pass; they are not part of the base table.
	CallEntryRec
	PatOffsetRec
)

// Real instruction codes, matching nsstool.py's register_nss_ops table
// byte-for-byte (including the reserved/unassigned slots, left as gaps).
const (
	Jmp      Code = 0x02
	NssEnd   Code = 0x03
	Tempo    Code = 0x04
	WaitNOp  Code = 0x05
	Call     Code = 0x06
	NssRet   Code = 0x07

	Nop       Code = 0x08
	Speed     Code = 0x09
	Groove    Code = 0x0A
	WaitLast  Code = 0x0B
	BInstr    Code = 0x0C
	BNote     Code = 0x0D
	BStop     Code = 0x0E
	FmCtx1    Code = 0x0F

	FmCtx2  Code = 0x10
	FmCtx3  Code = 0x11
	FmCtx4  Code = 0x12
	FmInstrOp Code = 0x13
	FmNoteOp  Code = 0x14
	FmStop    Code = 0x15
	ACtx1     Code = 0x16
	ACtx2     Code = 0x17

	ACtx3   Code = 0x18
	ACtx4   Code = 0x19
	ACtx5   Code = 0x1A
	ACtx6   Code = 0x1B
	AInstrOp Code = 0x1C
	AStart   Code = 0x1D
	AStop    Code = 0x1E
	Op1Lvl   Code = 0x1F

	Op2Lvl  Code = 0x20
	Op3Lvl  Code = 0x21
	Op4Lvl  Code = 0x22
	FmPitch Code = 0x23
	SCtx1   Code = 0x24
	SCtx2   Code = 0x25
	SCtx3   Code = 0x26
	SMacro  Code = 0x27

	SNoteOp Code = 0x28
	SStop   Code = 0x29
	SVol    Code = 0x2A
	FmVol   Code = 0x2B
	SEnv    Code = 0x2C

	BVol   Code = 0x33
	AVol   Code = 0x34
	FmPan  Code = 0x35

	SDelay   Code = 0x39
	FmDelay  Code = 0x3A
	ADelay   Code = 0x3B
	BCtx     Code = 0x3C
	SPitch   Code = 0x3F

	FmCut Code = 0x45
	SCut  Code = 0x46
	ACut  Code = 0x47

	BCut        Code = 0x48
	BDelay      Code = 0x49
	ARetrigger  Code = 0x4A
	APan        Code = 0x4B
	BPan        Code = 0x4C
	CallTbl     Code = 0x4E
	FmNoteW     Code = 0x4F

	SNoteW    Code = 0x50
	AStartW   Code = 0x51
	FmStopW   Code = 0x52
	Arpeggio  Code = 0x53
	ArpeggioSpeed Code = 0x54
	ArpeggioOff   Code = 0x55
	QuickLegatoU  Code = 0x56
	QuickLegatoD  Code = 0x57

	VolSlideOff Code = 0x58
	VolSlideU   Code = 0x59
	VolSlideD   Code = 0x5A
	NoteSlideOff Code = 0x5B
	NoteSlideU   Code = 0x5C
	NoteSlideD   Code = 0x5D
	NotePitchSlideU Code = 0x5E
	NotePitchSlideD Code = 0x5F

	NotePorta Code = 0x60
	Vibrato   Code = 0x61
	VibratoOff Code = 0x62
	Legato     Code = 0x63
	LegatoOff  Code = 0x64
)

// mnemonics maps every real Code to its source mnemonic, used by the
// emitter's comment column.
var mnemonics = map[Code]string{
	Jmp: "jmp", NssEnd: "nss_end", Tempo: "tempo", WaitNOp: "wait_n",
	Call: "call", NssRet: "nss_ret", Nop: "nop", Speed: "speed",
	Groove: "groove", WaitLast: "wait_last", BInstr: "b_instr",
	BNote: "b_note", BStop: "b_stop", FmCtx1: "fm_ctx_1", FmCtx2: "fm_ctx_2",
	FmCtx3: "fm_ctx_3", FmCtx4: "fm_ctx_4", FmInstrOp: "fm_instr",
	FmNoteOp: "fm_note", FmStop: "fm_stop", ACtx1: "a_ctx_1", ACtx2: "a_ctx_2",
	ACtx3: "a_ctx_3", ACtx4: "a_ctx_4", ACtx5: "a_ctx_5", ACtx6: "a_ctx_6",
	AInstrOp: "a_instr", AStart: "a_start", AStop: "a_stop", Op1Lvl: "op1_lvl",
	Op2Lvl: "op2_lvl", Op3Lvl: "op3_lvl", Op4Lvl: "op4_lvl", FmPitch: "fm_pitch",
	SCtx1: "s_ctx_1", SCtx2: "s_ctx_2", SCtx3: "s_ctx_3", SMacro: "s_macro",
	SNoteOp: "s_note", SStop: "s_stop", SVol: "s_vol", FmVol: "fm_vol",
	SEnv: "s_env", BVol: "b_vol", AVol: "a_vol", FmPan: "fm_pan",
	SDelay: "s_delay", FmDelay: "fm_delay", ADelay: "a_delay", BCtx: "b_ctx",
	SPitch: "s_pitch", FmCut: "fm_cut", SCut: "s_cut", ACut: "a_cut",
	BCut: "b_cut", BDelay: "b_delay", ARetrigger: "a_retrigger", APan: "a_pan",
	BPan: "b_pan", CallTbl: "call_tbl", FmNoteW: "fm_note_w", SNoteW: "s_note_w",
	AStartW: "a_start_w", FmStopW: "fm_stop_w", Arpeggio: "arpeggio",
	ArpeggioSpeed: "arpeggio_speed", ArpeggioOff: "arpeggio_off",
	QuickLegatoU: "quick_legato_u", QuickLegatoD: "quick_legato_d",
	VolSlideOff: "vol_slide_off", VolSlideU: "vol_slide_u", VolSlideD: "vol_slide_d",
	NoteSlideOff: "note_slide_off", NoteSlideU: "note_slide_u", NoteSlideD: "note_slide_d",
	NotePitchSlideU: "note_pitch_slide_u", NotePitchSlideD: "note_pitch_slide_d",
	NotePorta: "note_porta", Vibrato: "vibrato", VibratoOff: "vibrato_off",
	Legato: "legato", LegatoOff: "legato_off",
	CallEntryRec: "call_entry", PatOffsetRec: "pat_offset",
}

// Mnemonic returns the source instruction name for a Code, or "" for an
// unrecognised or zero-width metadata code.
func Mnemonic(c Code) string { return mnemonics[c] }

// Record is one opcode-stream element: a Code plus its operand bytes in
// emission order. Label and Loc records carry their payload in LabelName
// and LocOrder/LocChannel/LocRow instead of Operands and are always
// zero-width.
type Record struct {
	Code     Code
	Operands []byte

	// LabelName is set on Label records: the symbolic name the resolver
	// binds to this position's byte offset.
	LabelName string

	// LocOrder/LocChannel/LocRow are set on Loc records: the source row
	// this segment lowers from, used only for diagnostics.
	LocOrder, LocChannel, LocRow int

	// Target is set on unresolved Jmp/Call/PatOffset records: the
	// symbolic label name the resolve-jmp-and-call pass must locate and
	// patch into Operands before emission.
	Target string
}

// IsMetadata reports whether r occupies zero bytes in the emitted stream.
func (r Record) IsMetadata() bool {
	return r.Code == Label || r.Code == Loc
}

// Width returns the number of bytes r occupies in the emitted stream:
// zero for metadata, payload-only for the compact-calls offset-table
// records (CallEntryRec/PatOffsetRec carry no opcode ID byte), else one
// opcode byte plus its operands.
func (r Record) Width() int {
	if r.IsMetadata() {
		return 0
	}
	if r.Code == CallEntryRec || r.Code == PatOffsetRec {
		return len(r.Operands)
	}
	return 1 + len(r.Operands)
}

func rec(c Code, operands ...byte) Record {
	return Record{Code: c, Operands: operands}
}

// NewLabel creates a zero-width label record targetable by Jmp/Call.
func NewLabel(name string) Record { return Record{Code: Label, LabelName: name} }

// NewLoc creates a zero-width source-location record for diagnostics.
func NewLoc(order, channel, row int) Record {
	return Record{Code: Loc, LocOrder: order, LocChannel: channel, LocRow: row}
}

// Fixed, argument-less opcodes.
func NssEndOp() Record       { return rec(NssEnd) }
func NssRetOp() Record       { return rec(NssRet) }
func NopOp() Record          { return rec(Nop) }
func WaitLastOp() Record     { return rec(WaitLast) }
func BStopOp() Record        { return rec(BStop) }
func FmStopOp() Record       { return rec(FmStop) }
func AStartOp() Record       { return rec(AStart) }
func AStopOp() Record        { return rec(AStop) }
func SStopOp() Record        { return rec(SStop) }
func BCtxOp() Record         { return rec(BCtx) }
func AStartWOp() Record      { return rec(AStartW) }
func FmStopWOp() Record      { return rec(FmStopW) }
func ArpeggioOffOp() Record  { return rec(ArpeggioOff) }
func VolSlideOffOp() Record  { return rec(VolSlideOff) }
func NoteSlideOffOp() Record { return rec(NoteSlideOff) }
func VibratoOffOp() Record   { return rec(VibratoOff) }
func LegatoOp() Record       { return rec(Legato) }
func LegatoOffOp() Record    { return rec(LegatoOff) }

// FmCtx builds the context-switch opcode for FM subchannel 0..3.
func FmCtx(sub int) Record {
	return rec([]Code{FmCtx1, FmCtx2, FmCtx3, FmCtx4}[sub])
}

// SsgCtx builds the context-switch opcode for SSG subchannel 0..2.
func SsgCtx(sub int) Record {
	return rec([]Code{SCtx1, SCtx2, SCtx3}[sub])
}

// AdpcmACtx builds the context-switch opcode for ADPCM-A subchannel 0..5.
func AdpcmACtx(sub int) Record {
	return rec([]Code{ACtx1, ACtx2, ACtx3, ACtx4, ACtx5, ACtx6}[sub])
}

// One-operand opcodes.
func Tempo2(val byte) Record         { return rec(Tempo, val) }
func WaitN(rows byte) Record         { return rec(WaitNOp, rows) }
func SpeedOp(ticks byte) Record      { return rec(Speed, ticks) }
func GrooveOp(ticks byte) Record     { return rec(Groove, ticks) }
func BInstrOp(inst byte) Record      { return rec(BInstr, inst) }
func BNoteOp(note byte) Record       { return rec(BNote, note) }
func FmInstr(inst byte) Record       { return rec(FmInstrOp, inst) }
func FmNote(note byte) Record        { return rec(FmNoteOp, note) }
func AInstr(inst byte) Record        { return rec(AInstrOp, inst) }
func Op1Level(v byte) Record         { return rec(Op1Lvl, v) }
func Op2Level(v byte) Record         { return rec(Op2Lvl, v) }
func Op3Level(v byte) Record         { return rec(Op3Lvl, v) }
func Op4Level(v byte) Record         { return rec(Op4Lvl, v) }
func FmPitchOp(tune byte) Record     { return rec(FmPitch, tune) }
func SMacroOp(inst byte) Record      { return rec(SMacro, inst) }
func SNote(note byte) Record         { return rec(SNoteOp, note) }
func SVolOp(v byte) Record           { return rec(SVol, v) }
func FmVolOp(v byte) Record          { return rec(FmVol, v) }
func BVolOp(v byte) Record           { return rec(BVol, v) }
func AVolOp(v byte) Record           { return rec(AVol, v) }
func FmPanOp(mask byte) Record       { return rec(FmPan, mask) }
func SDelayOp(d byte) Record         { return rec(SDelay, d) }
func FmDelayOp(d byte) Record        { return rec(FmDelay, d) }
func ADelayOp(d byte) Record         { return rec(ADelay, d) }
func SPitchOp(p byte) Record         { return rec(SPitch, p) }
func FmCutOp(d byte) Record          { return rec(FmCut, d) }
func SCutOp(d byte) Record           { return rec(SCut, d) }
func ACutOp(d byte) Record           { return rec(ACut, d) }
func BCutOp(d byte) Record           { return rec(BCut, d) }
func BDelayOp(d byte) Record         { return rec(BDelay, d) }
func ARetriggerOp(d byte) Record     { return rec(ARetrigger, d) }
func APanOp(mask byte) Record        { return rec(APan, mask) }
func BPanOp(mask byte) Record        { return rec(BPan, mask) }
func FmNoteWOp(note byte) Record     { return rec(FmNoteW, note) }
func SNoteWOp(note byte) Record      { return rec(SNoteW, note) }
func ArpeggioOp(firstSecond byte) Record     { return rec(Arpeggio, firstSecond) }
func ArpeggioSpeedOp(speed byte) Record      { return rec(ArpeggioSpeed, speed) }
func QuickLegatoUOp(delayTranspose byte) Record { return rec(QuickLegatoU, delayTranspose) }
func QuickLegatoDOp(delayTranspose byte) Record { return rec(QuickLegatoD, delayTranspose) }
func VolSlideUOp(inc byte) Record    { return rec(VolSlideU, inc) }
func VolSlideDOp(inc byte) Record    { return rec(VolSlideD, inc) }
func NoteSlideUOp(speedDepth byte) Record { return rec(NoteSlideU, speedDepth) }
func NoteSlideDOp(speedDepth byte) Record { return rec(NoteSlideD, speedDepth) }
func NotePitchSlideUOp(speed byte) Record { return rec(NotePitchSlideU, speed) }
func NotePitchSlideDOp(speed byte) Record { return rec(NotePitchSlideD, speed) }
func NotePortaOp(speed byte) Record  { return rec(NotePorta, speed) }
func VibratoOp(speedDepth byte) Record { return rec(Vibrato, speedDepth) }

// Two-operand opcodes.
func Jmp2(lsb, msb byte) Record  { return rec(Jmp, lsb, msb) }
func Call2(lsb, msb byte) Record { return rec(Call, lsb, msb) }
func SEnvOp(fine, coarse byte) Record { return rec(SEnv, fine, coarse) }

// JmpTo builds an unresolved jmp targeting a label name; the
// resolve-jmp-and-call pass fills in its lsb/msb operands.
func JmpTo(target string) Record {
	return Record{Code: Jmp, Operands: []byte{0, 0}, Target: target}
}

// CallTo builds an unresolved call targeting a label name; the
// resolve-jmp-and-call pass fills in its lsb/msb operands.
func CallTo(target string) Record {
	return Record{Code: Call, Operands: []byte{0, 0}, Target: target}
}

// CallEntry references one callee's index in the compact-calls offset
// table; it occupies a single byte and is only ever produced by the
// compact-calls optimisation pass.
func CallEntry(entry byte) Record { return rec(CallEntryRec, entry) }

// CallEntryTo is CallEntry plus the callee's label name, so later
// control-flow-aware passes can still follow the call into its block.
func CallEntryTo(entry byte, target string) Record {
	return Record{Code: CallEntryRec, Operands: []byte{entry}, Target: target}
}

// PatOffsetTo is a two-byte (lsb, msb) slot in the compact-calls offset
// table prologue, targeting a callee label; the resolver patches it once
// callee offsets are known.
func PatOffsetTo(target string) Record {
	return Record{Code: PatOffsetRec, Operands: []byte{0, 0}, Target: target}
}

// CallTblOp starts a compacted run of n consecutive CallEntry records.
func CallTblOp(n byte) Record { return rec(CallTbl, n) }

// JmpTarget sentinels used by the row lowerer's RowActions.JmpToOrder field.
const (
	JmpNone    = -1
	JmpNextOrder = 256
	JmpStop      = 257
)
