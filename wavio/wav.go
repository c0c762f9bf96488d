// Package wavio is a small mono WAV reader/writer used by adpcmtool to
// read the uncompressed PCM input it encodes and write the PCM output
// it decodes (see DESIGN.md for its grounding): same RIFF/fmt/data chunk
// layout and the same "patch the size fields after all frames are
// written" approach as a stereo WAV writer, but mono and bit-depth aware
// since encode/decode accept both 8-bit unsigned and 16-bit signed PCM.
package wavio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const formatPCM = 1

// ErrUnsupportedWAV covers any input a PCM-to-ADPCM conversion must
// reject: more than one channel, a compressed format tag, or a sample
// width other than 8 or 16 bits.
var ErrUnsupportedWAV = errors.New("wavio: unsupported wav file")

// Format mirrors the WAV "fmt " sub-chunk fields this package cares about.
type Format struct {
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// Decoded holds a parsed mono WAV file's raw sample bytes alongside its format.
type Decoded struct {
	Format Format
	// Data is the raw little-endian PCM payload, 1 or 2 bytes per sample.
	Data []byte
}

// Read parses a RIFF/WAVE stream, validating that it is mono,
// uncompressed PCM with 8 or 16 bits per sample.
func Read(r io.Reader) (*Decoded, error) {
	var riffHdr [12]byte
	if _, err := io.ReadFull(r, riffHdr[:]); err != nil {
		return nil, fmt.Errorf("wavio: read riff header: %w", err)
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupportedWAV)
	}

	var format Format
	var data []byte
	haveFmt := false

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("wavio: read chunk header: %w", err)
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("wavio: read %s chunk: %w", id, err)
		}
		if size%2 == 1 {
			// chunks are word-aligned; consume the pad byte
			var pad [1]byte
			io.ReadFull(r, pad[:])
		}

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != formatPCM {
				return nil, fmt.Errorf("%w: only uncompressed PCM is supported", ErrUnsupportedWAV)
			}
			format.Channels = binary.LittleEndian.Uint16(body[2:4])
			format.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			format.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			data = body
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedWAV)
	}
	if format.Channels != 1 {
		return nil, fmt.Errorf("%w: only mono WAV is supported", ErrUnsupportedWAV)
	}
	if format.BitsPerSample != 8 && format.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: only 8 or 16 bits per sample is supported", ErrUnsupportedWAV)
	}

	return &Decoded{Format: format, Data: data}, nil
}

// Writer streams mono 16-bit PCM to an io.WriteSeeker, patching the RIFF
// and data chunk sizes once the caller calls Finish.
type Writer struct {
	ws io.WriteSeeker
}

// NewWriter writes the RIFF/WAVE/fmt/data chunk headers for a mono
// 16-bit PCM stream at the given sample rate, with zeroed size fields
// to be patched by Finish.
func NewWriter(ws io.WriteSeeker, sampleRate int) (*Writer, error) {
	w := &Writer{ws: ws}

	if _, err := ws.Write([]byte("RIFF")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return nil, err
	}
	if _, err := ws.Write([]byte("WAVE")); err != nil {
		return nil, err
	}

	if _, err := ws.Write([]byte("fmt ")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(16)); err != nil {
		return nil, err
	}
	const bitsPerSample = 16
	fmtBody := struct {
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{
		AudioFormat:   formatPCM,
		Channels:      1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * (bitsPerSample / 8),
		BlockAlign:    bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
	}
	if err := binary.Write(ws, binary.LittleEndian, fmtBody); err != nil {
		return nil, err
	}

	if _, err := ws.Write([]byte("data")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return nil, err
	}

	return w, nil
}

// WriteSamples appends mono 16-bit PCM samples to the stream.
func (w *Writer) WriteSamples(samples []int16) error {
	return binary.Write(w.ws, binary.LittleEndian, samples)
}

// Finish patches the RIFF and data chunk size fields now that the total
// sample count is known, and returns the final stream length.
func (w *Writer) Finish() (int64, error) {
	total, err := w.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	if _, err := w.ws.Seek(4, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(total-8)); err != nil {
		return 0, err
	}

	if _, err := w.ws.Seek(40, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(total-44)); err != nil {
		return 0, err
	}

	return total, nil
}
