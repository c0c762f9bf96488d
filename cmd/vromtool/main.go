// Command vromtool packs ADPCM samples pulled from one or more parsed
// tracker modules into fixed-size sound ROM banks and emits either the
// resulting byte offsets as Z80 assembler .equ defines or the bank files
// themselves, optionally also dumping the samples as a YAML sample map,
// matching vromtool.py's CLI surface.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/ngforge/nss/assetmap"
	"github.com/ngforge/nss/asmemit"
	"github.com/ngforge/nss/chlog"
	"github.com/ngforge/nss/romalloc"
	"github.com/ngforge/nss/tracker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("vromtool: %v", err))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("vromtool", pflag.ContinueOnError)
	writeRoms := fs.BoolP("roms", "r", false, "generate VROM files out of the input modules' samples")
	writeAsm := fs.BoolP("asm", "a", true, "dump offsets in ASM format out of the input modules' samples")
	output := fs.StringP("output", "o", "", "output file path; 'X' is substituted with the bank number")
	outputMap := fs.StringP("output-map", "m", "", "also write a YAML sample map to this path")
	size := fs.IntP("size", "s", 0, "size of one VROM in bytes")
	nb := fs.IntP("nb", "n", 1, "number of VROM banks to generate")
	verbose := fs.BoolP("verbose", "v", false, "print details of processing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := chlog.Default(*verbose)

	if fs.NArg() == 0 {
		return fmt.Errorf("expected at least one Furnace module FILE argument")
	}
	if *output == "" {
		return fmt.Errorf("--output is required")
	}
	if *size <= 0 {
		return fmt.Errorf("--size must be positive")
	}

	var samples []tracker.Sample
	for _, path := range fs.Args() {
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
		log.Debug("loaded module", "path", path, "samples", len(mod.Samples))
		samples = append(samples, mod.Samples...)
	}

	placements, banks, err := romalloc.Allocate(samples, *size)
	if err != nil {
		return err
	}
	log.Info("allocated samples", "count", len(samples), "banks", len(banks))

	if *writeRoms {
		if err := romalloc.WriteBanks(banks, *output, *nb); err != nil {
			return err
		}
		log.Info("wrote VROM banks", "count", len(banks), "pattern", *output)
	} else if *writeAsm {
		out := os.Stdout
		if *output != "" {
			f, err := os.Create(*output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", *output, err)
			}
			defer f.Close()
			out = f
		}
		asmemit.WriteSampleDefines(out, placements, func(p romalloc.Placement) string {
			return filepath.Base(romBankPath(*output, p.Bank))
		})
	}

	if *outputMap != "" {
		doc, err := assetmap.FromModuleSamples(samples)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*outputMap, doc, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", *outputMap, err)
		}
		log.Info("wrote sample map", "path", *outputMap)
	}

	return nil
}

// romBankPath substitutes 'X' in pattern with the 1-based bank number,
// matching vromtool.py's out_vrom_pattern.replace("X", str(vrom)).
func romBankPath(pattern string, bankIdx int) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == 'X' {
			return pattern[:i] + fmt.Sprintf("%d", bankIdx+1) + pattern[i+1:]
		}
	}
	return pattern
}
