package tracker

import (
	"fmt"

	"github.com/ngforge/nss/bitstream"
	"github.com/ngforge/nss/nsserr"
)

const (
	sampleTypeAdpcmA = 5
	sampleTypeAdpcmB = 6
	sampleTypePcm16  = 16
)

// readSample decodes one SMP2 chunk. ADPCM payloads are zero-padded up
// to the next 256-byte boundary; PCM16 payloads are simply
// widened to 2 bytes per sample, with transcode-time padding left to the
// instrument decoder's codec pass.
func readSample(r *bitstream.Reader) (*Sample, error) {
	hdr, err := r.Read(4)
	if err != nil || string(hdr) != "SMP2" {
		return nil, fmt.Errorf("%w: missing SMP2 chunk", nsserr.ErrBadMagic)
	}
	if _, err := r.U4(); err != nil { // end offset, ignored
		return nil, fmt.Errorf("%w: truncated SMP2 header", nsserr.ErrInvalidModule)
	}
	name, err := r.Ustr()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
	}
	sampleCount, err := r.U4()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated SMP2 header", nsserr.ErrInvalidModule)
	}
	if _, err := r.U4(); err != nil { // compat frequency, ignored
		return nil, fmt.Errorf("%w: truncated SMP2 header", nsserr.ErrInvalidModule)
	}
	c4Freq, err := r.U4()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated SMP2 header", nsserr.ErrInvalidModule)
	}
	stype, err := r.U1()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated SMP2 header", nsserr.ErrInvalidModule)
	}

	loopStart, err := r.S4()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated SMP2 loop range", nsserr.ErrInvalidModule)
	}
	loopEnd, err := r.S4()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated SMP2 loop range", nsserr.ErrInvalidModule)
	}
	loop := loopStart != -1 && loopEnd != -1

	r.U1() // loop direction, ignored
	r.U2() // flags, ignored
	r.Read(16) // ROM allocation, ignored

	safeName := asmSafeName(name)

	switch stype {
	case sampleTypeAdpcmA, sampleTypeAdpcmB:
		if sampleCount%2 != 0 {
			return nil, fmt.Errorf("%w: odd ADPCM sample count", nsserr.ErrInvalidModule)
		}
		dataBytes := int(sampleCount / 2)
		padded := ((dataBytes + 255) / 256) * 256
		data, err := r.Read(dataBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated ADPCM sample data", nsserr.ErrInvalidModule)
		}
		buf := make([]byte, padded)
		copy(buf, data)

		kind := SampleKindAdpcmA
		if stype == sampleTypeAdpcmB {
			kind = SampleKindAdpcmB
		}
		return &Sample{Kind: kind, Name: safeName, Data: buf, SourceRate: int(c4Freq), Loop: loop}, nil
	case sampleTypePcm16:
		data, err := r.Read(int(sampleCount) * 2)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated PCM sample data", nsserr.ErrInvalidModule)
		}
		buf := append([]byte(nil), data...)
		return &Sample{Kind: SampleKindPcm, Name: safeName, Data: buf, SourceRate: int(c4Freq), Loop: loop}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognised sample type %d", nsserr.ErrUnsupportedFormat, stype)
	}
}
