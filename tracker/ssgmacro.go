package tracker

import (
	"fmt"

	"github.com/ngforge/nss/bitstream"
	"github.com/ngforge/nss/nsserr"
)

// Macro code ids recognised inside an MA feature payload. furtool.py (the
// only available reference implementation) predates SSG instrument
// support, so these follow the ordering given directly by the
// specification prose rather than a numeric table from source; see
// DESIGN.md.
const (
	macroCodeVolume = iota
	macroCodeArpeggio
	macroCodeNoiseFreq
	macroCodeWaveform
	macroCodePitch
	macroCodePhaseReset
	macroCodeEnvelope
	macroCodeEnvNumerator
	macroCodeEnvDenominator
)

// Load-bit mask flags: which register groups a given SsgMacroStep writes
// this tick, plus the EVAL_MACRO continuation flag.
const (
	SsgLoadVolume    = 1 << 0
	SsgLoadArpeggio  = 1 << 1
	SsgLoadPitch     = 1 << 2
	SsgLoadWaveform  = 1 << 3
	SsgLoadEnvelope  = 1 << 4
	SsgLoadEvalMacro = 1 << 7
)

// SsgMacroStep is one tick of the compiled flat program: the register
// values present this tick (only those selected by LoadMask are meaningful)
// plus the continuation flag.
type SsgMacroStep struct {
	LoadMask byte
	Volume   byte
	Arpeggio byte
	Pitch    byte
	Waveform byte
	Envelope byte
}

// SsgMacro is the compiled micro-program for the 3-register SSG channel,
// as produced by decodeSsgMacro.
type SsgMacro struct {
	Steps []SsgMacroStep
	// Loop is the step index the program jumps back to on completion, or
	// -1 if the macro plays once and holds its last step.
	Loop int

	HasAutoEnv bool
	AutoEnvNum int
	AutoEnvDen int
}

type rawMacroBlock struct {
	code   int
	loop   int
	values []byte
}

// decodeSsgMacro parses the MA feature payload into per-code-id raw
// sequences, splits out the auto-envelope numerator/denominator codes,
// applies the waveform/volume bit-merge, and interleaves the remaining
// groups into a flat step program.
func decodeSsgMacro(payload []byte) (*SsgMacro, error) {
	r := bitstream.New(payload)
	blocks := map[int]rawMacroBlock{}

	for !r.EOF() {
		code, err := r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated ssg macro code id", nsserr.ErrInvalidModule)
		}
		length, err := r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated ssg macro length", nsserr.ErrInvalidModule)
		}
		loopIdx, err := r.U1()
		if err != nil {
			return nil, err
		}
		r.U1() // release, ignored
		r.U1() // mode, ignored
		sizeType, err := r.U1()
		if err != nil {
			return nil, err
		}
		if sizeType != 0 {
			return nil, fmt.Errorf("%w: ssg macro is not an 8-bit unsigned sequence", nsserr.ErrUnsupportedFormat)
		}
		r.U1() // delay, ignored
		r.U1() // speed, ignored

		values, err := r.Read(int(length))
		if err != nil {
			return nil, fmt.Errorf("%w: truncated ssg macro payload", nsserr.ErrInvalidModule)
		}

		loop := int(loopIdx)
		if loop == 0xFF || loop >= int(length) {
			loop = -1
		}

		blocks[int(code)] = rawMacroBlock{code: int(code), loop: loop, values: append([]byte(nil), values...)}
	}

	macro := &SsgMacro{Loop: -1}

	if b, ok := blocks[macroCodeEnvNumerator]; ok && len(b.values) > 0 {
		macro.HasAutoEnv = true
		macro.AutoEnvNum = int(b.values[0])
		delete(blocks, macroCodeEnvNumerator)
	}
	if b, ok := blocks[macroCodeEnvDenominator]; ok && len(b.values) > 0 {
		macro.HasAutoEnv = true
		macro.AutoEnvDen = int(b.values[0])
		delete(blocks, macroCodeEnvDenominator)
	}

	// Merge the waveform group's per-step mixer-enable bits: bit 2 (env
	// enable) folds into bit 4 of the matching volume step; the
	// remaining (noise<<3 | tone) bits are inverted to match the
	// hardware's active-low mixer register convention.
	if wave, ok := blocks[macroCodeWaveform]; ok {
		vol := blocks[macroCodeVolume]
		for i, w := range wave.values {
			env := (w >> 2) & 1
			noise := (w >> 1) & 1
			tone := w & 1
			if env != 0 && i < len(vol.values) {
				vol.values[i] |= 0x10
			}
			wave.values[i] = (noise<<3 | tone) ^ 0xFF
		}
		blocks[macroCodeVolume] = vol
		blocks[macroCodeWaveform] = wave
	}

	order := []struct {
		code int
		mask byte
	}{
		{macroCodeEnvelope, SsgLoadEnvelope},
		{macroCodePitch, SsgLoadPitch},
		{macroCodeVolume, SsgLoadVolume},
		{macroCodeWaveform, SsgLoadWaveform},
		{macroCodeArpeggio, SsgLoadArpeggio},
	}

	maxLen := 0
	loop := -1
	for _, o := range order {
		if b, ok := blocks[o.code]; ok {
			if len(b.values) > maxLen {
				maxLen = len(b.values)
			}
			if b.loop >= 0 {
				loop = b.loop
			}
		}
	}
	macro.Loop = loop

	macro.Steps = make([]SsgMacroStep, maxLen)
	for i := range macro.Steps {
		step := &macro.Steps[i]
		for _, o := range order {
			b, ok := blocks[o.code]
			if !ok || i >= len(b.values) {
				continue
			}
			step.LoadMask |= o.mask
			v := b.values[i]
			switch o.code {
			case macroCodeEnvelope:
				step.Envelope = v
			case macroCodePitch:
				step.Pitch = v
			case macroCodeVolume:
				step.Volume = v
			case macroCodeWaveform:
				step.Waveform = v
			case macroCodeArpeggio:
				step.Arpeggio = v
			}
		}
		if loop >= 0 || i != maxLen-1 {
			step.LoadMask |= SsgLoadEvalMacro
		}
	}

	return macro, nil
}
