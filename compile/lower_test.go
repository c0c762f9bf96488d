package compile

import (
	"testing"

	clone "github.com/huandu/go-clone/generic"

	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/tracker"
)

func emptyRow() tracker.Row {
	return tracker.Row{Note: -1, Instrument: -1, Volume: -1}
}

func notePattern(channel, index int, note int) *tracker.Pattern {
	return &tracker.Pattern{
		Channel: channel,
		Index:   index,
		Rows: []tracker.Row{
			{Note: note, Instrument: 0, Volume: 0x7F, Fx: nil},
			emptyRow(),
		},
	}
}

func blankPattern(channel, index int) *tracker.Pattern {
	return &tracker.Pattern{
		Channel: channel,
		Index:   index,
		Rows:    []tracker.Row{emptyRow(), emptyRow()},
	}
}

// buildTwoOrderModule builds a module whose order 0 plays an FM1 note and
// whose order 1 loops back to order 0 via a jump-to-order effect.
func buildTwoOrderModule() *tracker.Module {
	mod := &tracker.Module{
		Orders: [][14]int{
			{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		Patterns: map[tracker.PatternKey]*tracker.Pattern{},
	}

	for ch := 0; ch < tracker.NumChannels; ch++ {
		mod.Patterns[tracker.PatternKey{Channel: ch, PatternID: 0}] = blankPattern(ch, 0)
	}
	mod.Patterns[tracker.PatternKey{Channel: 0, PatternID: 0}] = notePattern(0, 0, 60)

	loopPat := &tracker.Pattern{
		Channel: 0,
		Index:   1,
		Rows: []tracker.Row{
			emptyRow(),
			{Note: -1, Instrument: -1, Volume: -1, Fx: []tracker.FxCmd{{Code: fxJumpToOrder, Value: 0}}},
		},
	}
	mod.Patterns[tracker.PatternKey{Channel: 0, PatternID: 1}] = loopPat
	for ch := 1; ch < tracker.NumChannels; ch++ {
		mod.Patterns[tracker.PatternKey{Channel: ch, PatternID: 1}] = blankPattern(ch, 1)
	}

	return mod
}

// twoOrderModuleFixture is built once and cloned per test so a test that
// ends up mutating its copy (e.g. by caching rows keyed off pointers)
// can never bleed state into another test sharing the same fixture.
var twoOrderModuleFixture = buildTwoOrderModule()

func TestLowerProducesJmpOnLoopBack(t *testing.T) {
	mod := clone.Clone(twoOrderModuleFixture)
	diag := &nsserr.Diagnostics{}

	out, err := Lower(mod, []int{0}, false, false, diag)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var sawNote, sawTrailingJmp bool
	for i, rec := range out {
		if rec.Code == opcode.FmNoteOp {
			sawNote = true
		}
		if rec.Code == opcode.Jmp && i == len(out)-1 {
			sawTrailingJmp = true
		}
	}
	if !sawNote {
		t.Errorf("expected an FM note opcode in output, got %+v", out)
	}
	if !sawTrailingJmp {
		t.Errorf("expected the stream to end with a jmp back to order 0, got %+v", out)
	}
}

func TestLowerEndsStreamWhenOrdersExhausted(t *testing.T) {
	mod := &tracker.Module{
		Orders:   [][14]int{{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		Patterns: map[tracker.PatternKey]*tracker.Pattern{},
	}
	for ch := 0; ch < tracker.NumChannels; ch++ {
		mod.Patterns[tracker.PatternKey{Channel: ch, PatternID: 0}] = blankPattern(ch, 0)
	}
	diag := &nsserr.Diagnostics{}

	out, err := Lower(mod, []int{0}, false, false, diag)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if out[len(out)-1].Code != opcode.NssEnd {
		t.Errorf("expected trailing nss_end, got code %v", out[len(out)-1].Code)
	}
}

func TestLowerCompactModeEmitsCallBlock(t *testing.T) {
	mod := &tracker.Module{
		Orders:   [][14]int{{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		Patterns: map[tracker.PatternKey]*tracker.Pattern{},
	}
	for ch := 0; ch < tracker.NumChannels; ch++ {
		mod.Patterns[tracker.PatternKey{Channel: ch, PatternID: 0}] = blankPattern(ch, 0)
	}
	mod.Patterns[tracker.PatternKey{Channel: 0, PatternID: 0}] = notePattern(0, 0, 60)
	diag := &nsserr.Diagnostics{}

	out, err := Lower(mod, []int{0}, true, false, diag)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var sawCall, sawRet bool
	for _, rec := range out {
		if rec.Code == opcode.Call {
			sawCall = true
		}
		if rec.Code == opcode.NssRet {
			sawRet = true
		}
	}
	if !sawCall {
		t.Errorf("expected a call opcode in compact mode output")
	}
	if !sawRet {
		t.Errorf("expected a ret opcode closing the call-target block")
	}
}

func TestConvertRowVolumeClamp(t *testing.T) {
	factories := NewFactories()
	diag := &nsserr.Diagnostics{}
	row := tracker.Row{Note: -1, Instrument: -1, Volume: 0x7F, Fx: nil}

	// SSG channel 4 (S1) has maxVol 0x0F; 0x7F must clamp and warn.
	out := convertRow(row, 4, 0, 0, factories, diag)
	if !out.HasVol {
		t.Fatalf("expected volume opcode")
	}
	if out.Vol.Operands[0] != 0x0F {
		t.Errorf("expected clamped volume 0x0F, got %#02x", out.Vol.Operands[0])
	}
	if diag.Len() == 0 {
		t.Errorf("expected a clamp warning to be recorded")
	}
}

func TestRowActionsFlattenOrder(t *testing.T) {
	factories := NewFactories()
	diag := &nsserr.Diagnostics{}
	row := tracker.Row{
		Note:       60,
		Instrument: 2,
		Volume:     0x7F,
		Fx:         []tracker.FxCmd{{Code: fxArpeggio, Value: 0x12}},
	}
	out := convertRow(row, 0, 0, 0, factories, diag)
	flat := out.Flatten()

	order := []opcode.Code{}
	for _, rec := range flat {
		order = append(order, rec.Code)
	}

	idx := func(c opcode.Code) int {
		for i, o := range order {
			if o == c {
				return i
			}
		}
		return -1
	}

	if idx(opcode.FmCtx1) > idx(opcode.FmInstrOp) || idx(opcode.FmInstrOp) > idx(opcode.FmVol) ||
		idx(opcode.FmVol) > idx(opcode.Arpeggio) || idx(opcode.Arpeggio) > idx(opcode.FmNoteOp) {
		t.Errorf("flatten order violated: %v", order)
	}
}
