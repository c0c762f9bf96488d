package romalloc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/tracker"
)

func sample(name string, n int) tracker.Sample {
	d := make([]byte, n)
	for i := range d {
		d[i] = byte(i)
	}
	return tracker.Sample{Kind: tracker.SampleKindAdpcmA, Name: name, Data: d}
}

func TestAllocatePacksSequentiallyWithinOneBank(t *testing.T) {
	samples := []tracker.Sample{sample("kick", 100), sample("snare", 100)}
	placements, banks, err := Allocate(samples, 1024)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(banks) != 1 {
		t.Fatalf("expected 1 bank, got %d", len(banks))
	}
	if placements[0].Start != 0 || placements[0].Stop != 100 {
		t.Errorf("kick misplaced: %+v", placements[0])
	}
	if placements[1].Start != 100 || placements[1].Stop != 200 {
		t.Errorf("snare misplaced: %+v", placements[1])
	}
}

func TestAllocateStartsNewBankWhenFull(t *testing.T) {
	samples := []tracker.Sample{sample("a", 900), sample("b", 900)}
	placements, banks, err := Allocate(samples, 1024)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(banks) != 2 {
		t.Fatalf("expected 2 banks, got %d", len(banks))
	}
	if placements[0].Bank != 0 || placements[1].Bank != 1 {
		t.Errorf("expected samples split across banks 0 and 1, got %+v", placements)
	}
	if placements[1].Start != 0 {
		t.Errorf("expected second sample to start its new bank at offset 0, got %d", placements[1].Start)
	}
}

func TestAllocateRejectsSampleLargerThanBank(t *testing.T) {
	samples := []tracker.Sample{sample("huge", 2048)}
	_, _, err := Allocate(samples, 1024)
	if !errors.Is(err, nsserr.ErrRomOverflow) {
		t.Errorf("expected ErrRomOverflow, got %v", err)
	}
}

func TestPlacementByteSplit(t *testing.T) {
	p := Placement{Start: 0x1234, Stop: 0x1234 + 0x10}
	if p.StartLSB() != 0x12 || p.StartMSB() != 0x00 {
		t.Errorf("unexpected start split: lsb=%#x msb=%#x", p.StartLSB(), p.StartMSB())
	}
}

func TestWriteBanksRejectsTooManyBanks(t *testing.T) {
	samples := []tracker.Sample{sample("a", 900), sample("b", 900)}
	_, banks, err := Allocate(samples, 1024)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := WriteBanks(banks, filepath.Join(t.TempDir(), "vromX.bin"), 1); !errors.Is(err, nsserr.ErrRomOverflow) {
		t.Errorf("expected ErrRomOverflow for a 1-bank budget with 2 banks, got %v", err)
	}
}

func TestWriteBanksPadsToFullSize(t *testing.T) {
	samples := []tracker.Sample{sample("a", 10)}
	_, banks, err := Allocate(samples, 64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	dir := t.TempDir()
	pattern := filepath.Join(dir, "vromX.bin")
	if err := WriteBanks(banks, pattern, 4); err != nil {
		t.Fatalf("WriteBanks: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "vrom1.bin"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 64 {
		t.Errorf("expected padded bank of 64 bytes, got %d", len(data))
	}
}
