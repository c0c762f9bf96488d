// Command adpcmtool converts between raw 16-bit PCM (wrapped in a mono
// WAV file, or bare) and YM2610 ADPCM-A/ADPCM-B nibble-packed audio.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/ngforge/nss/adpcm"
	"github.com/ngforge/nss/chlog"
	"github.com/ngforge/nss/wavio"
)

const (
	defaultRateA = 18500
	defaultRateB = 44100
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("adpcmtool: %v", err))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("adpcmtool", pflag.ContinueOnError)
	useA := fs.BoolP("adpcma", "a", true, "encode and decode with the ADPCM-A codec")
	useB := fs.BoolP("adpcmb", "b", false, "encode and decode with the ADPCM-B codec")
	encode := fs.BoolP("encode", "e", false, "encode an input WAV file into ADPCM")
	decode := fs.BoolP("decode", "d", false, "decode raw ADPCM input into a WAV file")
	output := fs.StringP("output", "o", "", "name of output file")
	rate := fs.IntP("rate", "r", 0, "set sample rate of the decoded WAV file (0 = codec default)")
	verbose := fs.BoolP("verbose", "v", false, "print details of processing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := chlog.Default(*verbose)

	if *encode == *decode {
		return fmt.Errorf("exactly one of --encode or --decode is required")
	}
	if *output == "" {
		return fmt.Errorf("--output is required")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one input FILE argument, got %d", fs.NArg())
	}
	input := fs.Arg(0)

	var codecA adpcm.CodecA
	var codecB adpcm.CodecB

	rateHz := *rate
	if rateHz == 0 {
		if *useB {
			rateHz = defaultRateB
		} else {
			rateHz = defaultRateA
		}
	}

	if *encode {
		log.Debug("encoding", "input", input, "codec", codecName(*useB))
		return runEncode(log, input, *output, *useB, &codecA, &codecB)
	}
	log.Debug("decoding", "input", input, "codec", codecName(*useB), "rate", rateHz)
	return runDecode(log, input, *output, *useB, rateHz, &codecA, &codecB)
}

func codecName(useB bool) string {
	if useB {
		return "adpcm-b"
	}
	return "adpcm-a"
}

func runEncode(log logger, input, output string, useB bool, codecA *adpcm.CodecA, codecB *adpcm.CodecB) error {
	raw, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	var pcm []int16
	if wav, werr := wavio.Read(bytes.NewReader(raw)); werr == nil {
		pcm, err = pcmSamplesFromWAV(wav)
		if err != nil {
			return err
		}
	} else {
		log.Debug("input is not a valid WAV file, treating it as raw PCM")
		if len(raw)%2 != 0 {
			return fmt.Errorf("raw PCM input %s has an odd byte length", input)
		}
		pcm = make([]int16, len(raw)/2)
		for i := range pcm {
			pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		}
	}

	var nibbles []byte
	if useB {
		nibbles = codecB.Encode(pcm)
	} else {
		nibbles = codecA.Encode(pcm)
	}
	packed := adpcm.PackNibbles(nibbles)

	log.Info("encoded", "samples", len(pcm), "bytes", len(packed))
	return os.WriteFile(output, packed, 0o644)
}

func runDecode(log logger, input, output string, useB bool, rateHz int, codecA *adpcm.CodecA, codecB *adpcm.CodecB) error {
	raw, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	nibbles := adpcm.UnpackNibbles(raw)
	var pcm []int16
	if useB {
		pcm = codecB.Decode(nibbles)
	} else {
		pcm = codecA.Decode(nibbles)
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer out.Close()

	w, err := wavio.NewWriter(out, rateHz)
	if err != nil {
		return fmt.Errorf("writing WAV header: %w", err)
	}
	if err := w.WriteSamples(pcm); err != nil {
		return fmt.Errorf("writing PCM samples: %w", err)
	}
	total, err := w.Finish()
	if err != nil {
		return fmt.Errorf("finishing WAV file: %w", err)
	}

	log.Info("decoded", "samples", len(pcm), "bytes", total)
	return nil
}

func pcmSamplesFromWAV(wav *wavio.Decoded) ([]int16, error) {
	if wav.Format.BitsPerSample == 8 {
		pcm := make([]int16, len(wav.Data))
		for i, b := range wav.Data {
			pcm[i] = (int16(b) - 128) << 8
		}
		return pcm, nil
	}
	if len(wav.Data)%2 != 0 {
		return nil, fmt.Errorf("16-bit WAV data has an odd byte length")
	}
	pcm := make([]int16, len(wav.Data)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(wav.Data[i*2 : i*2+2]))
	}
	return pcm, nil
}

// logger is the subset of *log.Logger the run helpers need, so tests
// could substitute a recording stub without pulling in charmbracelet/log.
type logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
}
