// Package romalloc packs ADPCM sample data into fixed-size sound ROM
// banks, first-fit in sample order, and records the start/stop byte
// offsets each sample lands at within its bank.
package romalloc

import (
	"fmt"
	"os"
	"strings"

	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/tracker"
)

// Placement records where one sample landed: which bank (0-based) and
// its inclusive start/exclusive stop byte offset within that bank.
type Placement struct {
	Sample tracker.Sample
	Bank   int
	Start  int
	Stop   int
}

// StartLSB, StartMSB, StopLSB, StopMSB mirror vromtool.py's ASM-define
// byte split: the low byte of the offset is dropped (samples are always
// bank-offset aligned to 256 bytes) and the remaining 16 bits are split
// into LSB/MSB halves of the 24-bit bank address.
func (p Placement) StartLSB() byte { return byte((p.Start >> 8) & 0xff) }
func (p Placement) StartMSB() byte { return byte((p.Start >> 16) & 0xff) }
func (p Placement) StopLSB() byte  { return byte(((p.Stop - 1) >> 8) & 0xff) }
func (p Placement) StopMSB() byte  { return byte(((p.Stop - 1) >> 16) & 0xff) }

// Bank is one packed ROM image, built up incrementally by Allocate.
type Bank struct {
	data []byte
	size int
}

func newBank(size int) *Bank {
	return &Bank{data: make([]byte, 0, size), size: size}
}

// Bytes returns the bank's content padded to its full size with zeros,
// matching generate_vroms' f.truncate(vrom_size).
func (b *Bank) Bytes() []byte {
	out := make([]byte, b.size)
	copy(out, b.data)
	return out
}

// Allocate packs samples into banks of bankSize bytes, in order, never
// splitting a sample across a bank boundary. A single sample larger
// than bankSize can never fit and is reported as ErrRomOverflow —
// allocate_samples has no such check and would silently overflow past
// vrom_size, relying on a human to notice a truncated dump; this port
// treats it as a hard compile-time error instead since NSS projects are
// built unattended.
func Allocate(samples []tracker.Sample, bankSize int) ([]Placement, []*Bank, error) {
	if bankSize <= 0 {
		return nil, nil, fmt.Errorf("%w: bank size must be positive, got %d", nsserr.ErrRomOverflow, bankSize)
	}

	var placements []Placement
	var banks []*Bank

	pos := bankSize
	bankIdx := -1

	for _, s := range samples {
		if len(s.Data) > bankSize {
			return nil, nil, fmt.Errorf("%w: sample %q is %d bytes, larger than bank size %d",
				nsserr.ErrRomOverflow, s.Name, len(s.Data), bankSize)
		}
		if pos+len(s.Data) > bankSize {
			bankIdx++
			banks = append(banks, newBank(bankSize))
			pos = 0
		}

		bank := banks[bankIdx]
		bank.data = append(bank.data, s.Data...)

		placements = append(placements, Placement{
			Sample: s,
			Bank:   bankIdx,
			Start:  pos,
			Stop:   pos + len(s.Data),
		})
		pos += len(s.Data)
	}

	return placements, banks, nil
}

// WriteBanks writes each bank to disk, substituting "X" in outPattern
// with the bank's 1-based number, matching generate_vroms. maxBanks
// bounds how many distinct ROM files the caller is willing to produce;
// Allocate has no such limit itself, so this is the hard stop that
// turns "samples don't fit in the configured ROM count" into
// ErrRomOverflow instead of silently writing extra files.
func WriteBanks(banks []*Bank, outPattern string, maxBanks int) error {
	if len(banks) > maxBanks {
		return fmt.Errorf("%w: allocation needs %d ROM bank(s), only %d configured",
			nsserr.ErrRomOverflow, len(banks), maxBanks)
	}
	for i, b := range banks {
		path := strings.Replace(outPattern, "X", fmt.Sprintf("%d", i+1), 1)
		if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
			return fmt.Errorf("%w: writing bank %q: %v", nsserr.ErrIo, path, err)
		}
	}
	return nil
}
