package bitstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveReads(t *testing.T) {
	buf := []byte{
		0x2a,                   // u1
		0x34, 0x12,             // u2 = 0x1234
		0x78, 0x56, 0x34, 0x12, // u4 = 0x12345678
		'h', 'i', 0x00, // ustr "hi"
	}
	r := New(buf)

	u1, err := r.U1()
	require.NoError(t, err)
	assert.Equal(t, byte(0x2a), u1)

	u2, err := r.U2()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u2)

	u4, err := r.U4()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), u4)

	s, err := r.Ustr()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
	assert.True(t, r.EOF())
}

func TestSeekAndUnexpectedEOF(t *testing.T) {
	r := New([]byte{1, 2, 3})
	r.Seek(2)
	b, err := r.U1()
	require.NoError(t, err)
	assert.Equal(t, byte(3), b)

	_, err = r.U1()
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestInvalidUTF8(t *testing.T) {
	r := New([]byte{0xff, 0xfe, 0x00})
	_, err := r.Ustr()
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestF4RoundTrip(t *testing.T) {
	// 1.5f little-endian
	r := New([]byte{0x00, 0x00, 0xc0, 0x3f})
	f, err := r.F4()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, float64(f), 1e-9)
}
