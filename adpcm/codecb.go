package adpcm

// stepTableB scales the adaptive step size for codec B, indexed by a
// decoded nibble's 3-bit magnitude. Values are a <<6 fixed-point scale
// factor (90%-240% of the current step).
var stepTableB = [8]int{57, 57, 57, 57, 77, 102, 128, 153}

const (
	codecBStepMin = 127
	codecBStepMax = 24576
)

// CodecB is a stateful ADPCM-B quantiser/dequantiser. Its zero value is
// not ready for use; call Reset (Encode/Decode do this automatically).
type CodecB struct {
	stepSize     int
	lastSample16 int
}

// Reset restores the initial step size (127) and sample state (0).
func (c *CodecB) Reset() {
	c.stepSize = codecBStepMin
	c.lastSample16 = 0
}

// EncodeSample quantises a single 16-bit signed sample and returns the
// encoded nibble, advancing codec state to match DecodeSample.
func (c *CodecB) EncodeSample(sample16 int) byte {
	step := c.stepSize
	diff := sample16 - c.lastSample16

	sign := byte(0)
	if diff < 0 {
		sign = 0b1000
		diff = -diff
	}

	magnitude := (diff << 16) / (step << 14)
	if magnitude > 7 {
		magnitude = 7
	}

	nibble := sign | byte(magnitude)
	c.DecodeSample(nibble)
	return nibble
}

// DecodeSample reconstructs a 16-bit signed sample from an encoded
// nibble and advances the codec's adaptive step size.
func (c *CodecB) DecodeSample(nibble byte) int {
	step := c.stepSize
	sign := nibble & 8
	magnitude := int(nibble & 7)

	quantizedDiff := ((2*magnitude + 1) * step) >> 3
	if sign != 0 {
		quantizedDiff = -quantizedDiff
	}

	decoded := c.lastSample16 + quantizedDiff
	decoded = clamp(decoded, -32768, 32767)

	newStep := (step * stepTableB[magnitude]) >> 6
	newStep = clamp(newStep, codecBStepMin, codecBStepMax)

	c.lastSample16 = decoded
	c.stepSize = newStep
	return decoded
}

// Encode pads pcm16 with zero samples up to the next multiple of 512
// samples and encodes the result. The codec is reset before encoding.
func (c *CodecB) Encode(pcm16 []int16) []byte {
	c.Reset()
	padded := ceilToBlock(len(pcm16))
	out := make([]byte, padded)
	for i := range out {
		var s16 int
		if i < len(pcm16) {
			s16 = int(pcm16[i])
		}
		out[i] = c.EncodeSample(s16)
	}
	return out
}

// Decode is the symmetric inverse of Encode. The codec is reset before
// decoding starts.
func (c *CodecB) Decode(nibbles []byte) []int16 {
	c.Reset()
	out := make([]int16, len(nibbles))
	for i, n := range nibbles {
		out[i] = int16(c.DecodeSample(n))
	}
	return out
}

// EncodeU8 converts unsigned 8-bit PCM to the signed 16-bit domain
// before encoding, mirroring vromtool.py's convert_to_adpcm.
func (c *CodecB) EncodeU8(pcm8 []byte) []byte {
	return c.Encode(u8ToS16(pcm8))
}
