// Package nsserr defines the error taxonomy shared by every stage of the
// music-data toolchain: decompression, module parsing, instrument/pattern
// decoding, row lowering, and sample-ROM allocation.
//
// Each stage wraps one of these sentinels with fmt.Errorf("...: %w", ...)
// so callers can use errors.Is without caring which package raised it.
package nsserr

import (
	"errors"
	"fmt"
)

var (
	// ErrIo is a missing or unreadable input file.
	ErrIo = errors.New("io error")

	// ErrDecompress is a malformed compressed module container.
	ErrDecompress = errors.New("decompress error")

	// ErrBadMagic is unexpected leading bytes where a fixed magic was expected.
	ErrBadMagic = errors.New("bad magic")

	// ErrUnsupportedFormat covers subsong count > 0, unknown chip, unknown
	// sample type, unrecognised instrument variant, or a macro of
	// non-sequence type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidModule is a chunk length mismatch, row over-run, invalid
	// feature tag payload, or inconsistent pattern lengths across channels.
	ErrInvalidModule = errors.New("invalid module")

	// ErrUnsupportedFx is a tracker effect not present in the effect table.
	// Collected as a diagnostic, not normally fatal.
	ErrUnsupportedFx = errors.New("unsupported fx")

	// ErrBadInstrument is a note-on without a preceding instrument, or an
	// instrument whose variant does not match its channel.
	ErrBadInstrument = errors.New("bad instrument")

	// ErrVolumeClamp is a warning-only condition: a volume value was
	// clamped to the channel's maximum.
	ErrVolumeClamp = errors.New("volume clamped")

	// ErrRomOverflow is raised when the sample allocator exhausts its
	// configured bank budget.
	ErrRomOverflow = errors.New("rom overflow")

	// ErrPcmConversion is an unsupported input WAV (non-mono, compressed,
	// or an unexpected sample width).
	ErrPcmConversion = errors.New("pcm conversion error")
)

// Diagnostics accumulates non-fatal warnings (unsupported FX, volume
// clamps) across a compilation run. It is not safe for concurrent use;
// the toolchain runs single-threaded end to end.
type Diagnostics struct {
	entries []string
}

// Add records a warning message for later flushing.
func (d *Diagnostics) Add(msg string) {
	d.entries = append(d.entries, msg)
}

// Addf records a formatted warning message. The format is handled as by
// fmt.Errorf, so a %w verb embeds the wrapped error's text.
func (d *Diagnostics) Addf(format string, args ...any) {
	d.Add(fmt.Errorf(format, args...).Error())
}

// Entries returns the accumulated warnings in the order they were added.
func (d *Diagnostics) Entries() []string {
	return d.entries
}

// Len reports how many warnings have accumulated.
func (d *Diagnostics) Len() int {
	return len(d.entries)
}
