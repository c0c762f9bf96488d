package tracker

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/ngforge/nss/bitstream"
	"github.com/ngforge/nss/nsserr"
)

// magic is the 16-byte marker every expanded container must begin with.
const magic = "-Furnace module-"

// targetChip is the single chip-enable byte value the parser accepts;
// any other configuration is an unsupported format.
const targetChip = 165

// Load decompresses raw, validates its magic and chip configuration, and
// walks its INFO directory to build a complete Module.
func Load(id ModuleID, raw []byte) (*Module, *nsserr.Diagnostics, error) {
	diag := &nsserr.Diagnostics{}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, diag, fmt.Errorf("%w: %v", nsserr.ErrDecompress, err)
	}
	defer zr.Close()
	expanded, err := io.ReadAll(zr)
	if err != nil {
		return nil, diag, fmt.Errorf("%w: %v", nsserr.ErrDecompress, err)
	}

	r := bitstream.New(expanded)

	hdr, err := r.Read(len(magic))
	if err != nil || string(hdr) != magic {
		return nil, diag, fmt.Errorf("%w: missing module magic", nsserr.ErrBadMagic)
	}
	r.U2() // format version major, ignored
	r.U2() // format version minor, ignored

	infoOffset, err := r.U4()
	if err != nil {
		return nil, diag, fmt.Errorf("%w: truncated header", nsserr.ErrInvalidModule)
	}
	r.Seek(int(infoOffset))

	mod := &Module{ID: id, Patterns: map[PatternKey]*Pattern{}}

	insPtrs, smpPtrs, patPtrs, err := readInfo(r, mod)
	if err != nil {
		return nil, diag, err
	}

	samples := make([]Sample, len(smpPtrs))
	for i, p := range smpPtrs {
		r.Seek(int(p))
		s, err := readSample(r)
		if err != nil {
			return nil, diag, err
		}
		samples[i] = *s
	}
	mod.Samples = samples

	instruments := make([]Instrument, len(insPtrs))
	for i, p := range insPtrs {
		r.Seek(int(p))
		ins, err := readInstrument(r, mod, diag)
		if err != nil {
			return nil, diag, err
		}
		instruments[i] = *ins
	}
	mod.Instruments = instruments

	for _, p := range patPtrs {
		r.Seek(int(p))
		pat, err := readPattern(r, mod)
		if err != nil {
			return nil, diag, err
		}
		mod.Patterns[PatternKey{Channel: pat.Channel, PatternID: pat.Index}] = pat
	}

	return mod, diag, nil
}

func u4slice(r *bitstream.Reader, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := r.U4()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated pointer table", nsserr.ErrInvalidModule)
		}
		out[i] = v
	}
	return out, nil
}

// readInfo reads the INFO directory described in the module parser
// design, returning the instrument/sample/pattern pointer tables so the
// caller can visit each chunk.
func readInfo(r *bitstream.Reader, mod *Module) (insPtrs, smpPtrs, patPtrs []uint32, err error) {
	hdr, err := r.Read(4)
	if err != nil || string(hdr) != "INFO" {
		return nil, nil, nil, fmt.Errorf("%w: missing INFO chunk", nsserr.ErrBadMagic)
	}

	r.U1() // timebase, ignored
	r.U1() // legacy speed 1, ignored
	r.U1() // legacy speed 2, ignored
	r.U1() // arpeggio tick, ignored

	freq, err := r.F4()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: truncated INFO header", nsserr.ErrInvalidModule)
	}
	mod.Frequency = float64(freq)

	patternLen, err := r.U2()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: truncated INFO header", nsserr.ErrInvalidModule)
	}
	mod.PatternLen = int(patternLen)

	orderCount, err := r.U2()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: truncated INFO header", nsserr.ErrInvalidModule)
	}

	r.U1() // highlight A, ignored
	r.U1() // highlight B, ignored

	nbInstruments, _ := r.U2()
	nbWavetables, _ := r.U2()
	nbSamples, _ := r.U2()
	nbPatterns, err := r.U4()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: truncated INFO header", nsserr.ErrInvalidModule)
	}

	chips, err := r.Read(32)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: truncated chip table", nsserr.ErrInvalidModule)
	}
	if err := validateChips(chips); err != nil {
		return nil, nil, nil, err
	}
	r.Read(32)  // chip volumes, ignored
	r.Read(32)  // chip pans, ignored
	r.Read(128) // chip flag pointers, ignored

	name, err := r.Ustr()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
	}
	mod.Name = name
	author, err := r.Ustr()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
	}
	mod.Author = author

	r.F4()      // fine-tuning, ignored
	r.Read(20)  // reserved, ignored

	insPtrs, err = u4slice(r, int(nbInstruments))
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := u4slice(r, int(nbWavetables)); err != nil {
		return nil, nil, nil, err
	}
	smpPtrs, err = u4slice(r, int(nbSamples))
	if err != nil {
		return nil, nil, nil, err
	}
	patPtrs, err = u4slice(r, int(nbPatterns))
	if err != nil {
		return nil, nil, nil, err
	}

	orders := make([][NumChannels]int, orderCount)
	for ch := 0; ch < NumChannels; ch++ {
		for ord := 0; ord < int(orderCount); ord++ {
			b, err := r.U1()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%w: truncated orders matrix", nsserr.ErrInvalidModule)
			}
			orders[ord][ch] = int(b)
		}
	}
	mod.Orders = orders

	for ch := 0; ch < NumChannels; ch++ {
		b, err := r.U1()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: truncated fx column table", nsserr.ErrInvalidModule)
		}
		mod.FxColumns[ch] = int(b)
	}

	r.Read(NumChannels) // UI "shown" flags, ignored
	r.Read(NumChannels) // UI collapse flags, ignored

	for i := 0; i < 28; i++ {
		if _, err := r.Ustr(); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
		}
	}
	if _, err := r.Ustr(); err != nil { // comment, ignored
		return nil, nil, nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
	}
	r.F4()     // master volume, ignored
	r.Read(28) // reserved, ignored
	r.U2()     // virtual tempo numerator, ignored
	r.U2()     // virtual tempo denominator, ignored
	if _, err := r.Ustr(); err != nil { // subsong name, ignored
		return nil, nil, nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
	}
	if _, err := r.Ustr(); err != nil { // subsong comment, ignored
		return nil, nil, nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
	}

	subsongCount, err := r.U1()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: truncated INFO header", nsserr.ErrInvalidModule)
	}
	if subsongCount != 0 {
		return nil, nil, nil, fmt.Errorf("%w: multiple subsongs are not supported", nsserr.ErrUnsupportedFormat)
	}

	for i := 0; i < 3; i++ { // additional localised metadata strings, ignored
		if _, err := r.Ustr(); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
		}
	}
	r.Read(12) // reserved, ignored

	patchbayCount, err := r.U4()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: truncated patchbay", nsserr.ErrInvalidModule)
	}
	if _, err := u4slice(r, int(patchbayCount)); err != nil {
		return nil, nil, nil, err
	}
	r.U1()     // auto-patchbay flag, ignored
	r.Read(8)  // compat flags, ignored

	speedCount, err := r.U1()
	if err != nil || speedCount < 1 || speedCount > 16 {
		return nil, nil, nil, fmt.Errorf("%w: invalid speeds list length", nsserr.ErrInvalidModule)
	}
	speeds := make([]int, speedCount)
	for i := range speeds {
		b, err := r.U1()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: truncated speeds list", nsserr.ErrInvalidModule)
		}
		speeds[i] = int(b)
	}
	mod.Speeds = speeds

	return insPtrs, smpPtrs, patPtrs, nil
}

func validateChips(chips []byte) error {
	zero := bytes.IndexByte(chips, 0)
	if zero == -1 {
		zero = len(chips)
	}
	if zero != 1 || chips[0] != targetChip {
		return fmt.Errorf("%w: module does not target the expected sound chip", nsserr.ErrUnsupportedFormat)
	}
	return nil
}
