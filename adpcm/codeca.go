// Package adpcm implements the two 4-bit delta-modulation codecs used by
// the target sound chip's ADPCM channels: codec A (12-bit, fixed-rate,
// YM2610 ADPCM-A) and codec B (16-bit, adaptive-step, YM2610 ADPCM-B).
//
// Both are ported directly from original_source/tools/adpcmtool.py's
// ym2610_adpcma / ym2610_adpcmb classes, including their lookup tables.
package adpcm

// samplesPerBlock is the YM2610 playback granularity: samples are only
// played back in multiples of 256 bytes, i.e. 512 4-bit nibbles.
const samplesPerBlock = 512

// stepSizeA is the codec-A adaptive step-size table. It grows
// exponentially (base ~1.1), 49 entries, enough to encode a 12-bit input.
var stepSizeA = [49]int{
	16, 17, 19, 21, 23, 25, 28,
	31, 34, 37, 41, 45, 50, 55,
	60, 66, 73, 80, 88, 97, 107,
	118, 130, 143, 157, 173, 190, 209,
	230, 253, 279, 307, 337, 371, 408,
	449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552,
}

// stepAdjA is the step-index adjustment table, indexed by a decoded
// nibble's 3-bit magnitude. Some reference sources duplicate this to 16
// entries; only the low 8 are ever consulted since the decoder masks the
// magnitude to 3 bits before indexing (spec open question, §9).
var stepAdjA = [8]int{-1, -1, -1, -1, 2, 5, 7, 9}

// CodecA is a stateful ADPCM-A quantiser/dequantiser. Its zero value is a
// codec freshly reset.
type CodecA struct {
	stepIndex    int
	lastSample12 int
}

// Reset zeroes the codec's adaptive step index and running sample state.
func (c *CodecA) Reset() {
	c.stepIndex = 0
	c.lastSample12 = 0
}

// EncodeSample quantises a single 12-bit signed sample and returns the
// encoded nibble (sign<<3 | magnitude), advancing codec state to match
// what DecodeSample would produce for that same nibble.
func (c *CodecA) EncodeSample(sample12 int) byte {
	diff := sample12 - c.lastSample12
	sign := byte(0)
	if diff < 0 {
		sign = 0b1000
		diff = -diff
	}

	var magnitude byte
	threshold := stepSizeA[c.stepIndex]
	if diff >= threshold {
		magnitude |= 0b100
		diff -= threshold
	}
	threshold >>= 1
	if diff >= threshold {
		magnitude |= 0b010
		diff -= threshold
	}
	threshold >>= 1
	if diff >= threshold {
		magnitude |= 0b001
	}

	nibble := sign | magnitude
	// Advancing state through the decode step keeps encoder and decoder
	// in lock-step, which is essential for correct playback.
	c.DecodeSample(nibble)
	return nibble
}

// DecodeSample reconstructs a 12-bit signed sample from an encoded
// nibble and advances the codec's adaptive state.
func (c *CodecA) DecodeSample(nibble byte) int {
	stepSize := stepSizeA[c.stepIndex]
	sign := nibble & 8
	magnitude := int(nibble & 7)

	quantizedDiff := ((2*magnitude + 1) * stepSize) >> 3
	if sign != 0 {
		quantizedDiff = -quantizedDiff
	}

	decoded := c.lastSample12 + quantizedDiff
	decoded = clamp(decoded, -2048, 2047)

	newStepIndex := c.stepIndex + stepAdjA[magnitude]
	newStepIndex = clamp(newStepIndex, 0, 48)

	c.lastSample12 = decoded
	c.stepIndex = newStepIndex
	return decoded
}

// Encode downscales pcm16 to 12-bit space, pads with zero samples up to
// the next multiple of 512 samples, and encodes the result. The codec is
// reset before encoding starts.
func (c *CodecA) Encode(pcm16 []int16) []byte {
	c.Reset()
	padded := ceilToBlock(len(pcm16))
	out := make([]byte, padded)
	for i := range out {
		var s12 int
		if i < len(pcm16) {
			s12 = int(pcm16[i]) >> 4
		}
		out[i] = c.EncodeSample(s12)
	}
	return out
}

// Decode is the symmetric inverse of Encode: it upscales each decoded
// 12-bit sample by <<4 back to 16-bit space. The codec is reset before
// decoding starts.
func (c *CodecA) Decode(nibbles []byte) []int16 {
	c.Reset()
	out := make([]int16, len(nibbles))
	for i, n := range nibbles {
		out[i] = int16(c.DecodeSample(n) << 4)
	}
	return out
}

// EncodeU8 converts unsigned 8-bit PCM to the signed 16-bit domain
// (matching the WAV "8-bit is always unsigned" convention) before
// encoding, as vromtool.py's convert_to_adpcm does for 8-bit WAV input.
func (c *CodecA) EncodeU8(pcm8 []byte) []byte {
	return c.Encode(u8ToS16(pcm8))
}

func ceilToBlock(n int) int {
	return ((n + samplesPerBlock - 1) / samplesPerBlock) * samplesPerBlock
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func u8ToS16(pcm8 []byte) []int16 {
	out := make([]int16, len(pcm8))
	for i, u := range pcm8 {
		out[i] = int16((int(u) - 128) << 8)
	}
	return out
}

// PackNibbles packs a sequence of 4-bit nibbles two-per-byte, high
// nibble first, as the on-disk ADPCM stream format requires. len(nibbles)
// must be even (guaranteed by the 512-sample padding in Encode).
func PackNibbles(nibbles []byte) []byte {
	out := make([]byte, len(nibbles)/2)
	for i := 0; i < len(out); i++ {
		out[i] = (nibbles[2*i] << 4) | (nibbles[2*i+1] & 0x0f)
	}
	return out
}

// UnpackNibbles expands packed ADPCM bytes back into one nibble per
// element, high nibble first.
func UnpackNibbles(packed []byte) []byte {
	out := make([]byte, len(packed)*2)
	for i, b := range packed {
		out[2*i] = b >> 4
		out[2*i+1] = b & 0x0f
	}
	return out
}
