package tracker

import (
	"fmt"

	"github.com/ngforge/nss/adpcm"
	"github.com/ngforge/nss/bitstream"
	"github.com/ngforge/nss/nsserr"
)

const (
	instrumentTypeFm      = 1
	instrumentTypeSsg     = 6
	instrumentTypeAdpcmA  = 37
	instrumentTypeAdpcmB  = 38
)

// minInstrumentFormatVersion is the oldest format version read_instrument
// will accept; Furnace instrument blocks older than this use a layout
// this decoder does not understand.
const minInstrumentFormatVersion = 127

// readInstrument decodes one INS2 chunk at the reader's current
// position into the matching Instrument variant. smp indexes are
// validated against mod.Samples once all samples have been loaded, which
// the caller guarantees by reading samples before instruments.
func readInstrument(r *bitstream.Reader, mod *Module, diag *nsserr.Diagnostics) (*Instrument, error) {
	hdr, err := r.Read(4)
	if err != nil || string(hdr) != "INS2" {
		return nil, fmt.Errorf("%w: missing INS2 chunk", nsserr.ErrBadMagic)
	}
	// endOffset is relative to the position just read, matching
	// read_instrument's endblock = bs.pos + bs.u4().
	endOffsetDelta, err := r.U4()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated instrument header", nsserr.ErrInvalidModule)
	}
	endBlock := r.Pos() + int(endOffsetDelta)

	version, err := r.U2()
	if err != nil || version < minInstrumentFormatVersion {
		return nil, fmt.Errorf("%w: unsupported instrument format version", nsserr.ErrUnsupportedFormat)
	}
	itype, err := r.U2()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated instrument header", nsserr.ErrInvalidModule)
	}

	var (
		name      string
		fm        *FmInstrument
		ssg       *SsgMacro
		sampleIdx = -1
	)

	for r.Pos() < endBlock {
		tag, err := r.Read(2)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated feature tag", nsserr.ErrInvalidModule)
		}
		length, err := r.U2()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated feature length", nsserr.ErrInvalidModule)
		}
		tagStr := string(tag)
		switch tagStr {
		case "NA":
			name, err = r.Ustr()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
			}
		case "FM":
			fm, err = readFmInstrument(r)
			if err != nil {
				return nil, err
			}
		case "LD":
			if _, err := r.Read(int(length)); err != nil {
				return nil, fmt.Errorf("%w: truncated LD feature", nsserr.ErrInvalidModule)
			}
		case "SM":
			idx, err := r.U2()
			if err != nil {
				return nil, fmt.Errorf("%w: truncated SM feature", nsserr.ErrInvalidModule)
			}
			sampleIdx = int(idx)
			r.U2() // flags and waveform, ignored
		case "MA":
			payload, err := r.Read(int(length))
			if err != nil {
				return nil, fmt.Errorf("%w: truncated MA feature", nsserr.ErrInvalidModule)
			}
			if itype == instrumentTypeSsg {
				ssg, err = decodeSsgMacro(payload)
				if err != nil {
					return nil, err
				}
			} else {
				diag.Addf("instrument: uninterpreted macro data on non-SSG instrument type %d", itype)
			}
		case "NE":
			body, err := r.Read(int(length))
			if err != nil {
				return nil, fmt.Errorf("%w: truncated NE feature", nsserr.ErrInvalidModule)
			}
			if len(body) != 1 || body[0] != 0 {
				return nil, fmt.Errorf("%w: per-note sample maps are not supported", nsserr.ErrUnsupportedFormat)
			}
		default:
			if _, err := r.Read(int(length)); err != nil {
				return nil, fmt.Errorf("%w: truncated feature %q", nsserr.ErrInvalidModule, tagStr)
			}
			diag.Addf("instrument: unrecognised feature tag %q", tagStr)
		}
	}

	safeName := asmSafeName(name)

	switch itype {
	case instrumentTypeFm:
		if fm == nil {
			return nil, fmt.Errorf("%w: FM instrument missing FM payload", nsserr.ErrInvalidModule)
		}
		fm.Name = safeName
		return &Instrument{Kind: InstrumentKindFm, Name: safeName, Fm: fm}, nil
	case instrumentTypeSsg:
		if ssg == nil {
			return nil, fmt.Errorf("%w: SSG instrument missing macro payload", nsserr.ErrInvalidModule)
		}
		return &Instrument{Kind: InstrumentKindSsgMacro, Name: safeName, Ssg: ssg}, nil
	case instrumentTypeAdpcmA, instrumentTypeAdpcmB:
		if sampleIdx < 0 || sampleIdx >= len(mod.Samples) {
			return nil, fmt.Errorf("%w: instrument references out-of-range sample %d", nsserr.ErrInvalidModule, sampleIdx)
		}
		if err := transcodeSampleIfNeeded(mod, sampleIdx, int(itype), diag); err != nil {
			return nil, err
		}
		if itype == instrumentTypeAdpcmA {
			return &Instrument{Kind: InstrumentKindAdpcmA, Name: safeName, AdpcmA: &AdpcmAInstrument{Name: safeName, SampleIdx: sampleIdx}}, nil
		}
		return &Instrument{Kind: InstrumentKindAdpcmB, Name: safeName, AdpcmB: &AdpcmBInstrument{Name: safeName, SampleIdx: sampleIdx, Loop: mod.Samples[sampleIdx].Loop}}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognised instrument type %d", nsserr.ErrUnsupportedFormat, itype)
	}
}

// transcodeSampleIfNeeded converts a referenced PcmSample to the ADPCM
// variant the instrument type demands, replacing it in place and
// recording a warning, exactly as the §4.6 instrument decoder design
// requires.
func transcodeSampleIfNeeded(mod *Module, sampleIdx, itype int, diag *nsserr.Diagnostics) error {
	s := &mod.Samples[sampleIdx]
	if s.Kind != SampleKindPcm {
		return nil
	}

	pcm16 := make([]int16, len(s.Data)/2)
	for i := range pcm16 {
		pcm16[i] = int16(uint16(s.Data[2*i]) | uint16(s.Data[2*i+1])<<8)
	}

	switch itype {
	case instrumentTypeAdpcmA:
		var c adpcm.CodecA
		s.Data = adpcm.PackNibbles(c.Encode(pcm16))
		s.Kind = SampleKindAdpcmA
	case instrumentTypeAdpcmB:
		var c adpcm.CodecB
		s.Data = adpcm.PackNibbles(c.Encode(pcm16))
		s.Kind = SampleKindAdpcmB
	}
	diag.Addf("sample %q transcoded from raw PCM for instrument type %d", s.Name, itype)
	return nil
}

// readFmInstrument decodes the fixed-layout FM operator block that
// follows an "FM" feature tag.
func readFmInstrument(r *bitstream.Reader) (*FmInstrument, error) {
	marker, err := r.U1()
	if err != nil || marker != 0xF4 {
		return nil, fmt.Errorf("%w: unexpected FM instrument marker", nsserr.ErrInvalidModule)
	}

	b, err := r.U1()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated FM instrument", nsserr.ErrInvalidModule)
	}
	algorithm := int(ubit(b, 2, 0))
	feedback := int(ubit(b, 6, 4))

	b, err = r.U1()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated FM instrument", nsserr.ErrInvalidModule)
	}
	amSense := int(ubit(b, 4, 3))
	fmSense := int(ubit(b, 2, 0))

	r.U1() // unused

	ins := &FmInstrument{Algorithm: algorithm, Feedback: feedback, AmSense: amSense, FmSense: fmSense}
	for i := 0; i < 4; i++ {
		var op FmOperator

		b, err := r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FM operator", nsserr.ErrInvalidModule)
		}
		op.Detune = int(ubit(b, 6, 4))
		op.Multiply = int(ubit(b, 3, 0))

		b, err = r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FM operator", nsserr.ErrInvalidModule)
		}
		op.TotalLevel = int(ubit(b, 6, 0))

		b, err = r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FM operator", nsserr.ErrInvalidModule)
		}
		op.KeyScale = int(ubit(b, 7, 6))
		op.AttackRate = int(ubit(b, 4, 0))

		b, err = r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FM operator", nsserr.ErrInvalidModule)
		}
		op.AmOn = int(ubit(b, 7, 7))
		op.DecayRate = int(ubit(b, 4, 0))

		b, err = r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FM operator", nsserr.ErrInvalidModule)
		}
		op.Kvs = int(ubit(b, 6, 5))
		op.SustainRate = int(ubit(b, 4, 0))

		b, err = r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FM operator", nsserr.ErrInvalidModule)
		}
		op.SustainLevel = int(ubit(b, 7, 4))
		op.ReleaseRate = int(ubit(b, 3, 0))

		b, err = r.U1()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FM operator", nsserr.ErrInvalidModule)
		}
		op.SsgEg = int(ubit(b, 3, 0))

		r.U1() // unused
		ins.Ops[i] = op
	}

	return ins, nil
}

// ubit extracts bits [lsb, msb] (inclusive) from data.
func ubit(data byte, msb, lsb int) byte {
	mask := byte((1 << uint(msb-lsb+1)) - 1)
	return (data >> uint(lsb)) & mask
}

// EncodeDetune re-derives the hardware sign-magnitude detune byte from
// the decoded value, as asm_fm_instrument does implicitly via ebit: the
// stored value is offset by -3 relative to the hardware's own encoding.
func EncodeDetune(detune int) byte {
	raw := detune - 3
	if raw >= 0 {
		return byte(raw)
	}
	return byte(-raw) | 0b100
}
