package asmemit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/romalloc"
	"github.com/ngforge/nss/tracker"
)

func TestWriteHeaderUsesBankArea(t *testing.T) {
	var buf bytes.Buffer
	bank := 3
	WriteHeader(&buf, &tracker.Module{Name: "song", Author: "me"}, &bank, 128)
	if !strings.Contains(buf.String(), ".area   BANK3") {
		t.Errorf("expected a BANK3 area directive, got:\n%s", buf.String())
	}
}

func TestWriteHeaderUsesCodeAreaWithoutBank(t *testing.T) {
	var buf bytes.Buffer
	WriteHeader(&buf, &tracker.Module{Name: "song", Author: "me"}, nil, 128)
	if !strings.Contains(buf.String(), ".area   CODE") {
		t.Errorf("expected a CODE area directive, got:\n%s", buf.String())
	}
}

func TestChannelsBitfieldSplitsAdpcmB(t *testing.T) {
	bits, comment := channelsBitfield([]int{0, 13})
	if bits&1 == 0 {
		t.Errorf("expected bit 0 (F1) set, got %#x", bits)
	}
	if bits&(1<<14) == 0 {
		t.Errorf("expected bit 14 (B, shifted past the F1..S3 gap) set, got %#x", bits)
	}
	if !strings.Contains(comment, "F1") || !strings.Contains(comment, "B") {
		t.Errorf("expected comment to mention F1 and B, got %q", comment)
	}
}

func TestWriteStreamRequiresStartLabel(t *testing.T) {
	var buf bytes.Buffer
	err := WriteStream(&buf, []opcode.Record{opcode.NssEndOp()}, "song")
	if err == nil {
		t.Errorf("expected an error for a stream missing its _start label")
	}
}

func TestWriteStreamEmitsDbLines(t *testing.T) {
	var buf bytes.Buffer
	nss := []opcode.Record{
		opcode.NewLabel("_start"),
		opcode.WaitN(3),
		opcode.NssEndOp(),
	}
	if err := WriteStream(&buf, nss, "song"); err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "song::") {
		t.Errorf("expected a song:: label, got:\n%s", out)
	}
	if !strings.Contains(out, "0x05, 0x03") {
		t.Errorf("expected a wait_n opcode/operand pair, got:\n%s", out)
	}
	if !strings.Contains(out, "; WAIT_N") {
		t.Errorf("expected a WAIT_N comment, got:\n%s", out)
	}
}

func TestWriteInstrumentsRendersFmVoice(t *testing.T) {
	var buf bytes.Buffer
	ins := []tracker.Instrument{
		{
			Kind: tracker.InstrumentKindFm,
			Name: "piano",
			Fm: &tracker.FmInstrument{
				Name:      "piano",
				Algorithm: 4,
				Feedback:  5,
				Ops:       [4]tracker.FmOperator{{TotalLevel: 20}, {TotalLevel: 21}, {TotalLevel: 22}, {TotalLevel: 23}},
			},
		},
	}
	WriteInstruments(&buf, &tracker.Module{Name: "song", Author: "me"}, "samples.inc", "instruments", ins)
	out := buf.String()
	if !strings.Contains(out, "piano:") {
		t.Errorf("expected a piano: label, got:\n%s", out)
	}
	if !strings.Contains(out, "; FB | ALGO") {
		t.Errorf("expected an FB | ALGO comment, got:\n%s", out)
	}
}

func TestWriteSampleDefinesEmitsEquBlock(t *testing.T) {
	var buf bytes.Buffer
	placements := []romalloc.Placement{
		{Sample: tracker.Sample{Kind: tracker.SampleKindAdpcmA, Name: "kick"}, Bank: 0, Start: 0, Stop: 256},
	}
	WriteSampleDefines(&buf, placements, func(p romalloc.Placement) string { return "vrom1.bin" })
	out := buf.String()
	if !strings.Contains(out, "KICK_START_LSB") {
		t.Errorf("expected a KICK_START_LSB equ, got:\n%s", out)
	}
}
