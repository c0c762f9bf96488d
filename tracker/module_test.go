package tracker

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// moduleBuilder assembles a minimal, well-formed module container byte
// buffer matching readInfo's expected layout, for tests that don't want
// to depend on checked-in binary fixtures.
type moduleBuilder struct {
	buf bytes.Buffer
}

func (b *moduleBuilder) u1(v byte) { b.buf.WriteByte(v) }
func (b *moduleBuilder) u2(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
}
func (b *moduleBuilder) u4(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}
func (b *moduleBuilder) s4(v int32) { b.u4(uint32(v)) }
func (b *moduleBuilder) f4(v float32) {
	b.u4(math.Float32bits(v))
}
func (b *moduleBuilder) raw(n int) { b.buf.Write(make([]byte, n)) }
func (b *moduleBuilder) ustr(s string) {
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
}

// buildEmptyModule constructs the scenario-1 "empty module" container:
// zero patterns, zero orders, single speed [6], frequency 60.0.
func buildEmptyModule(t *testing.T) []byte {
	t.Helper()

	var body moduleBuilder
	body.buf.WriteString(magic)
	body.u2(1) // version major
	body.u2(0) // version minor

	// info offset will point right after this header (20 bytes so far).
	headerLen := body.buf.Len() + 4 // +4 for the pointer field itself
	body.u4(uint32(headerLen))

	var info moduleBuilder
	info.buf.WriteString("INFO")
	info.u1(0) // timebase
	info.u1(0) // legacy speed 1
	info.u1(0) // legacy speed 2
	info.u1(0) // arpeggio tick
	info.f4(60.0)
	info.u2(0) // pattern length
	info.u2(0) // order count
	info.u1(0) // highlight A
	info.u1(0) // highlight B
	info.u2(0) // nb instruments
	info.u2(0) // nb wavetables
	info.u2(0) // nb samples
	info.u4(0) // nb patterns
	chips := make([]byte, 32)
	chips[0] = targetChip
	info.buf.Write(chips)
	info.raw(32 + 32 + 128)
	info.ustr("Empty Song")
	info.ustr("Nobody")
	info.f4(0)
	info.raw(20)
	// no instrument/wavetable/sample/pattern pointers (all counts are 0)
	// orders matrix is 14 x 0 = nothing
	info.raw(NumChannels) // fx columns
	info.raw(NumChannels * 2)
	for i := 0; i < 28; i++ {
		info.ustr("")
	}
	info.ustr("") // comment
	info.f4(1.0)  // master volume
	info.raw(28)
	info.u2(0)
	info.u2(0)
	info.ustr("") // subsong name
	info.ustr("") // subsong comment
	info.u1(0)    // subsong count
	for i := 0; i < 3; i++ {
		info.ustr("")
	}
	info.raw(12)
	info.u4(0) // patchbay count
	info.u1(0) // auto patchbay
	info.raw(8)
	info.u1(1) // speed count
	info.u1(6) // speeds[0]

	body.buf.Write(info.buf.Bytes())

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(body.buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return compressed.Bytes()
}

func TestLoadEmptyModule(t *testing.T) {
	raw := buildEmptyModule(t)
	mod, diag, err := Load("empty.fur", raw)
	require.NoError(t, err)
	require.Equal(t, 0, diag.Len())

	require.Equal(t, []int{6}, mod.Speeds)
	require.InDelta(t, 60.0, mod.Frequency, 1e-6)
	require.Equal(t, 0, mod.PatternLen)
	require.Equal(t, "Empty Song", mod.Name)
	require.Equal(t, "Nobody", mod.Author)
	require.Empty(t, mod.Instruments)
	require.Empty(t, mod.Samples)
	require.Empty(t, mod.Patterns)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, _ = zw.Write([]byte("not a module at all"))
	zw.Close()

	_, _, err := Load("bad.fur", compressed.Bytes())
	require.Error(t, err)
}

func TestAsmSafeName(t *testing.T) {
	require.Equal(t, "_1up", asmSafeName("1up"))
	require.Equal(t, "lead_piano", asmSafeName("Lead Piano"))
	require.Equal(t, "kick_", asmSafeName("Kick!"))
}
