// Command nsstool converts a parsed tracker module's patterns into NSS
// bytecode and emits it as Z80 assembler text, one inline stream or one
// compact per-channel stream set, matching nsstool.py's CLI surface.
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/ngforge/nss/asmemit"
	"github.com/ngforge/nss/chlog"
	"github.com/ngforge/nss/compile"
	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/optimize"
	"github.com/ngforge/nss/tracker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("nsstool: %v", err))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("nsstool", pflag.ContinueOnError)
	output := fs.StringP("output", "o", "", "output file name (default stdout)")
	bank := fs.IntP("bank", "b", -1, "generate data for a bank-switched Z80 memory area (-1 = none)")
	name := fs.StringP("name", "n", "nss_stream", "name of the ASM label for the NSS data; empty skips the label")
	channelsArg := fs.StringP("channels", "c", "0123456789abcd", "process specific channels, one hex digit per channel")
	compact := fs.BoolP("compact", "z", false, "generate a compact per-channel NSS stream")
	verbose := fs.BoolP("verbose", "v", false, "print details of processing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one Furnace module FILE argument, got %d", fs.NArg())
	}
	path := fs.Arg(0)

	log := chlog.Default(*verbose)

	channels, err := parseChannels(*channelsArg)
	if err != nil {
		return err
	}

	log.Debug("loading module", "path", path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	mod, diag, err := tracker.Load(tracker.ModuleIDFromPath(path), raw)
	if err != nil {
		return err
	}
	for _, e := range diag.Entries() {
		log.Debug(e)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", *output, err)
		}
		defer f.Close()
		out = f
	}

	var bankPtr *int
	if *bank >= 0 {
		bankPtr = bank
	}

	if *compact {
		return runCompact(log, mod, channels, *name, bankPtr, out)
	}
	return runInline(log, mod, channels, *name, bankPtr, out)
}

func parseChannels(spec string) ([]int, error) {
	spec = strings.ToLower(spec)
	set := map[int]bool{}
	for _, c := range spec {
		if c < '0' || c > 'd' {
			return nil, fmt.Errorf("invalid channel filter %q", spec)
		}
		v, err := strconv.ParseInt(string(c), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid channel filter %q", spec)
		}
		set[int(v)] = true
	}
	channels := make([]int, 0, len(set))
	for c := range set {
		channels = append(channels, c)
	}
	sort.Ints(channels)
	return channels, nil
}

// buildStream lowers, prepares and optimises one channel set into a
// resolved opcode stream, matching generate_nss_stream.
func buildStream(mod *tracker.Module, channels []int, compact, capture bool, diag *nsserr.Diagnostics, tempoInjected *bool) ([]opcode.Record, bool, error) {
	raw, err := compile.Lower(mod, channels, compact, capture, diag)
	if err != nil {
		return nil, false, err
	}
	prepared, injected := compile.Prepare(raw, mod.Frequency, *tempoInjected)
	*tempoInjected = injected

	resolved, ok, err := optimize.Run(mod, prepared, compact, diag)
	return resolved, ok, err
}

func runInline(log logger, mod *tracker.Module, channels []int, name string, bank *int, out *os.File) error {
	diag := &nsserr.Diagnostics{}
	tempoInjected := false
	stream, ok, err := buildStream(mod, channels, false, false, diag, &tempoInjected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("instrument/channel validation failed:\n%s", strings.Join(diag.Entries(), "\n"))
	}

	size := 1 + 2 + optimize.StreamSizeInBytes(stream)
	asmemit.WriteHeader(out, mod, bank, size)
	asmemit.WriteInlineHeader(out, channels, name)
	if err := asmemit.WriteStream(out, stream, ""); err != nil {
		return err
	}
	asmemit.WriteFooter(out, name)
	log.Info("wrote inline NSS stream", "channels", len(channels), "bytes", size)
	return nil
}

func runCompact(log logger, mod *tracker.Module, channels []int, name string, bank *int, out *os.File) error {
	diag := &nsserr.Diagnostics{}
	tempoInjected := false

	streams := make([][]opcode.Record, len(channels))
	for i, c := range channels {
		stream, ok, err := buildStream(mod, []int{c}, true, i == 0, diag, &tempoInjected)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instrument/channel validation failed on channel %d:\n%s", c, strings.Join(diag.Entries(), "\n"))
		}
		streams[i] = stream
	}

	keptChannels, keptStreams := removeEmptyStreams(channels, streams)

	size := 1 + 2 + 1 + len(mod.Speeds) + 2*len(keptStreams)
	for _, s := range keptStreams {
		size += optimize.StreamSizeInBytes(s)
	}

	asmemit.WriteHeader(out, mod, bank, size)
	asmemit.WriteCompactHeader(out, mod, keptChannels, name)
	for i, ch := range keptChannels {
		if err := asmemit.WriteStream(out, keptStreams[i], asmemit.StreamName(name, ch)); err != nil {
			return err
		}
	}
	asmemit.WriteFooter(out, name)
	log.Info("wrote compact NSS streams", "streams", len(keptStreams), "bytes", size)
	return nil
}

// removeEmptyStreams drops channel streams that carry no effective
// opcodes, matching remove_empty_streams.
func removeEmptyStreams(channels []int, streams [][]opcode.Record) ([]int, [][]opcode.Record) {
	var keptChannels []int
	var keptStreams [][]opcode.Record
	for i, s := range streams {
		if optimize.StreamSizeInEffectiveOpcodes(s) > 0 {
			keptChannels = append(keptChannels, channels[i])
			keptStreams = append(keptStreams, s)
		}
	}
	return keptChannels, keptStreams
}

type logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
}
