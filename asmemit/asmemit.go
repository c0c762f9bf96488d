// Package asmemit renders a resolved opcode stream, an instrument table
// and a sample-ROM offset map as Z80 assembler text, the way
// original_source/tools/nsstool.py's asm_header/nss_to_asm and
// furtool.py's asm_fm_instrument/asm_adpcm_instrument do.
package asmemit

import (
	"fmt"
	"io"
	"strings"

	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/romalloc"
	"github.com/ngforge/nss/tracker"
)

// channelNames mirrors nsstool.py's channel_name: the lowercase stream
// suffix used to build per-channel label names in compact-header mode.
var channelNames = []string{
	"f1", "f2", "f3", "f4",
	"s1", "s2", "s3",
	"a1", "a2", "a3", "a4", "a5", "a6",
	"b",
}

func channelName(channel int) string { return channelNames[channel] }

func streamName(prefix string, channel int) string {
	return fmt.Sprintf("%s_%s", prefix, channelName(channel))
}

// StreamName builds the per-channel stream label a compact NSS header
// points at, matching nsstool.py's stream_name.
func StreamName(prefix string, channel int) string {
	return streamName(prefix, channel)
}

// WriteHeader prints the NSS stream's descriptive comment block and
// selects its memory area, matching asm_header.
func WriteHeader(w io.Writer, mod *tracker.Module, bank *int, sizeBytes int) {
	fmt.Fprintln(w, ";;; NSS music data")
	fmt.Fprintln(w, ";;; generated by nsstool.py (ngdevkit)")
	fmt.Fprintln(w, ";;; ---")
	fmt.Fprintf(w, ";;; Song title: %s\n", mod.Name)
	fmt.Fprintf(w, ";;; Song author: %s\n", mod.Author)
	fmt.Fprintf(w, ";;; NSS size: %d\n", sizeBytes)
	fmt.Fprintln(w, ";;;")
	fmt.Fprintln(w)
	if bank != nil {
		fmt.Fprintf(w, "        .area   BANK%d\n", *bank)
	} else {
		fmt.Fprintln(w, "        .area   CODE")
	}
	fmt.Fprintln(w)
}

// channelsBitfield packs the selected channel set into the 16-bit field
// the compact/inline headers carry, shifting every channel above 6 (the
// ADPCM-A and ADPCM-B channels) up one bit so that bit 7 stays unused,
// the way channels_bitfield does, and returns a
// human-readable channel list for the trailing comment.
func channelsBitfield(channels []int) (uint16, string) {
	names := []string{"F1", "F2", "F3", "F4", "S1", "S2", "S3", "__",
		"A1", "A2", "A3", "A4", "A5", "A6", "B", "__"}
	var bits uint16
	for _, c := range channels {
		pos := c
		if c > 6 {
			pos++
		}
		bits |= 1 << uint(pos)
	}
	var used []string
	for i := 0; i < 15; i++ {
		if bits&(1<<uint(i)) != 0 {
			used = append(used, names[i])
		}
	}
	return bits, strings.Join(used, ",")
}

// WriteCompactHeader emits the multi-stream compact NSS header: stream
// count, channel bitfield, module speeds and a jump table to each
// channel's stream label, matching nss_compact_header.
func WriteCompactHeader(w io.Writer, mod *tracker.Module, channels []int, name string) {
	bits, comment := channelsBitfield(channels)
	if name != "" {
		fmt.Fprintf(w, "%s::\n", name)
	}
	fmt.Fprintf(w, "%-40s ; number of streams\n", fmt.Sprintf("        .db     0x%02x", len(channels)))
	fmt.Fprintf(w, "%-40s ; channels: %s\n", fmt.Sprintf("        .dw     0x%04x", bits), comment)

	speeds := make([]string, len(mod.Speeds))
	for i, s := range mod.Speeds {
		speeds[i] = fmt.Sprintf("0x%02x", s)
	}
	fmt.Fprintf(w, "%-40s ; speeds\n", fmt.Sprintf("        .db     0x%02x, %s", len(mod.Speeds), strings.Join(speeds, ", ")))

	for i, c := range channels {
		line := fmt.Sprintf("        .dw     %s", streamName(name, c))
		fmt.Fprintf(w, "%-40s ; stream %d: NSS data\n", line, i)
	}
	fmt.Fprintln(w)
}

// WriteInlineHeader emits the single-stream inline NSS header, matching
// nss_inline_header.
func WriteInlineHeader(w io.Writer, channels []int, name string) {
	bits, comment := channelsBitfield(channels)
	if name != "" {
		fmt.Fprintf(w, "%s::\n", name)
	}
	fmt.Fprintf(w, "%-40s ; inline NSS stream marker\n", "        .db     0xff")
	fmt.Fprintf(w, "%-40s ; channels: %s\n", fmt.Sprintf("        .dw     0x%04x", bits), comment)
}

// WriteFooter emits the trailing end-of-stream label, matching
// nss_footer.
func WriteFooter(w io.Writer, name string) {
	fmt.Fprintf(w, "%s_end::\n", name)
}

func dbLine(w io.Writer, op opcode.Record) {
	var bytes []byte
	if op.Code != opcode.CallEntryRec && op.Code != opcode.PatOffsetRec {
		bytes = append(bytes, byte(op.Code))
	}
	bytes = append(bytes, op.Operands...)

	hexParts := make([]string, len(bytes))
	for i, b := range bytes {
		hexParts[i] = fmt.Sprintf("0x%02x", b)
	}
	comment := " ; " + strings.ToUpper(opcode.Mnemonic(op.Code))
	fmt.Fprintf(w, "        .db     %-24s%s\n", strings.Join(hexParts, ", "), comment)
}

// WriteStream renders a fully resolved opcode stream as a sequence of
// .db directives, one per record, preceded by its compact-calls entry
// table (the records emitted before the "_start" label) if any,
// matching nss_to_asm.
func WriteStream(w io.Writer, nss []opcode.Record, name string) error {
	start := -1
	for i, op := range nss {
		if op.Code == opcode.Label && op.LabelName == "_start" {
			start = i
			break
		}
	}
	if start < 0 {
		return fmt.Errorf("asmemit: stream has no \"_start\" label")
	}

	emit := func(ops []opcode.Record) {
		for _, op := range ops {
			switch {
			case op.Code == opcode.Loc:
				continue
			case op.Code == opcode.Label:
				switch {
				case op.LabelName == "_start":
					fmt.Fprintln(w, "        ;; start of NSS stream")
				case !strings.Contains(op.LabelName, "jmp"):
					fmt.Fprintf(w, "        ;; pattern %s\n", op.LabelName)
				}
				continue
			default:
				dbLine(w, op)
			}
		}
	}

	callOffsets := nss[:start]
	streamOps := nss[start:]
	if len(callOffsets) > 0 {
		fmt.Fprintf(w, "\n        ;; call entries for %s\n", name)
		emit(callOffsets)
	}
	if name != "" {
		fmt.Fprintf(w, "%s::\n", name)
	}
	emit(streamOps)
	return nil
}

// WriteInstruments renders the instrument pointer table followed by
// each instrument's voice data, matching generate_instruments.
func WriteInstruments(w io.Writer, mod *tracker.Module, sampleMapName, insTableName string, ins []tracker.Instrument) {
	fmt.Fprintln(w, ";;; NSS instruments - generated by nsstool.py (ngdevkit)")
	fmt.Fprintln(w, ";;; ---")
	fmt.Fprintf(w, ";;; Song title: %s\n", mod.Name)
	fmt.Fprintf(w, ";;; Song author: %s\n", mod.Author)
	fmt.Fprintln(w, ";;;")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "        .area   CODE")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "        ;; offset of ADPCM samples in ROMs")
	fmt.Fprintf(w, "        .include \"%s\"\n", sampleMapName)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s::\n", insTableName)
	for _, i := range ins {
		fmt.Fprintf(w, "        .dw     %s\n", i.Name)
	}
	fmt.Fprintln(w)

	for _, i := range ins {
		switch i.Kind {
		case tracker.InstrumentKindFm:
			writeFmInstrument(w, i.Fm)
		case tracker.InstrumentKindAdpcmA, tracker.InstrumentKindAdpcmB:
			writeAdpcmInstrument(w, i)
		}
	}
}

func ebit(v, msb, lsb int) byte {
	mask := (1 << uint(msb-lsb+1)) - 1
	return byte((v & mask) << uint(lsb))
}

func writeFmInstrument(w io.Writer, ins *tracker.FmInstrument) {
	fmt.Fprintf(w, "%s:\n", ins.Name)
	fmt.Fprintln(w, "        ;;       OP1 - OP3 - OP2 - OP4")

	row := func(field func(tracker.FmOperator) byte) [4]byte {
		var out [4]byte
		for i, op := range ins.Ops {
			out[i] = field(op)
		}
		return out
	}

	dtmul := row(func(o tracker.FmOperator) byte { return ebit(o.Detune, 6, 4) | ebit(o.Multiply, 3, 0) })
	tl := row(func(o tracker.FmOperator) byte { return ebit(o.TotalLevel, 6, 0) })
	ksar := row(func(o tracker.FmOperator) byte { return ebit(o.KeyScale, 7, 6) | ebit(o.AttackRate, 4, 0) })
	amdr := row(func(o tracker.FmOperator) byte { return ebit(o.AmOn, 7, 7) | ebit(o.DecayRate, 4, 0) })
	sr := row(func(o tracker.FmOperator) byte { return ebit(o.Kvs, 6, 5) | ebit(o.SustainRate, 4, 0) })
	slrr := row(func(o tracker.FmOperator) byte { return ebit(o.SustainLevel, 7, 4) | ebit(o.ReleaseRate, 3, 0) })
	ssgeg := row(func(o tracker.FmOperator) byte { return ebit(o.SsgEg, 3, 0) })
	fbalgo := ebit(ins.Feedback, 5, 3) | ebit(ins.Algorithm, 2, 0)
	amsfms := ebit(0b11, 7, 6) | ebit(ins.AmSense, 5, 4) | ebit(ins.FmSense, 2, 0)

	hex4 := func(b [4]byte) string {
		return fmt.Sprintf("0x%02x, 0x%02x, 0x%02x, 0x%02x", b[0], b[1], b[2], b[3])
	}
	fmt.Fprintf(w, "        .db     %s   ; DT | MUL\n", hex4(dtmul))
	fmt.Fprintf(w, "        .db     %s   ; TL\n", hex4(tl))
	fmt.Fprintf(w, "        .db     %s   ; KS | AR\n", hex4(ksar))
	fmt.Fprintf(w, "        .db     %s   ; AM | DR\n", hex4(amdr))
	fmt.Fprintf(w, "        .db     %s   ; SR\n", hex4(sr))
	fmt.Fprintf(w, "        .db     %s   ; SL | RR\n", hex4(slrr))
	fmt.Fprintf(w, "        .db     %s   ; SSG\n", hex4(ssgeg))
	fmt.Fprintf(w, "        .db     0x%02x                     ; FB | ALGO\n", fbalgo)
	fmt.Fprintf(w, "        .db     0x%02x                     ; LR | AMS | FMS\n", amsfms)
	fmt.Fprintln(w)
}

func writeAdpcmInstrument(w io.Writer, ins tracker.Instrument) {
	var sampleName string
	switch ins.Kind {
	case tracker.InstrumentKindAdpcmA:
		sampleName = ins.AdpcmA.Name
	case tracker.InstrumentKindAdpcmB:
		sampleName = ins.AdpcmB.Name
	}
	name := strings.ToUpper(sampleName)
	fmt.Fprintf(w, "%s:\n", ins.Name)
	fmt.Fprintf(w, "        .db     %s_START_LSB, %s_START_MSB  ; start >> 8\n", name, name)
	fmt.Fprintf(w, "        .db     %s_STOP_LSB,  %s_STOP_MSB   ; stop  >> 8\n", name, name)
	fmt.Fprintln(w)
}

// WriteSampleDefines emits one .equ block per placed sample, matching
// generate_asm_defines; romBaseName is printed for each sample's
// originating bank in the descriptive comment.
func WriteSampleDefines(w io.Writer, placements []romalloc.Placement, romBaseName func(romalloc.Placement) string) {
	fmt.Fprintln(w, ";;; ADPCM samples map in VROM")
	fmt.Fprintln(w, ";;; generated by vromtool.py (ngdevkit)")
	fmt.Fprintln(w)

	kindName := map[tracker.SampleKind]string{
		tracker.SampleKindAdpcmA: "ADPCM-A",
		tracker.SampleKindAdpcmB: "ADPCM-B",
	}
	for _, p := range placements {
		start := p.Start >> 8
		stop := (p.Stop - 1) >> 8
		name := strings.ToUpper(p.Sample.Name)
		fmt.Fprintf(w, ";;; %s\n", p.Sample.Name)
		fmt.Fprintf(w, ";;; %s [%04x00..%04xff] %s\n", romBaseName(p), start, stop, kindName[p.Sample.Kind])
		fmt.Fprintf(w, "        .equ    %s_START_LSB, 0x%02x\n", name, p.StartLSB())
		fmt.Fprintf(w, "        .equ    %s_START_MSB, 0x%02x\n", name, p.StartMSB())
		fmt.Fprintf(w, "        .equ    %s_STOP_LSB, 0x%02x\n", name, p.StopLSB())
		fmt.Fprintf(w, "        .equ    %s_STOP_MSB, 0x%02x\n", name, p.StopMSB())
		fmt.Fprintln(w)
	}
}
