package compile

import (
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/optimize"
)

// TempoTicks derives the tempo opcode's tick-base operand from the
// module's playback frequency, matching generate_nss_stream's
// round(256 - (4000000 / (1152 * frequency))).
func TempoTicks(frequency float64) byte {
	tb := 256.0 - (4000000.0 / (1152.0 * frequency))
	v := int(tb + 0.5)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

// Prepare inserts a tempo opcode ahead of a raw stream's first effective
// opcode (only if the stream actually does something) and the reserved
// "_start" entry label, mirroring generate_nss_stream's prologue before
// the optimisation passes run.
func Prepare(nss []opcode.Record, frequency float64, tempoAlreadyInjected bool) (out []opcode.Record, tempoInjected bool) {
	out = nss
	if !tempoAlreadyInjected && optimize.StreamSizeInEffectiveOpcodes(nss) > 0 {
		out = append([]opcode.Record{opcode.Tempo2(TempoTicks(frequency))}, out...)
		tempoAlreadyInjected = true
	}
	out = append([]opcode.Record{opcode.NewLabel("_start")}, out...)
	return out, tempoAlreadyInjected
}
