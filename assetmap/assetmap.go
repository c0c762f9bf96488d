// Package assetmap emits the YAML sample-map format vromtool.py reads
// and validates: a list of single-key documents, each naming a sample
// source as "furnace", "adpcm_a" or "adpcm_b".
package assetmap

import (
	"encoding/base64"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ngforge/nss/tracker"
)

// Source names one sample: a display name plus a "file://" or
// "data:;base64,..." URI, matching vromtool.py's validate().
type Source struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
}

// Entry is one sample-map element: exactly one of Furnace/AdpcmA/AdpcmB
// is set, mirroring vromtool.py's single-key-dict validation.
type Entry struct {
	Furnace *Source `yaml:"furnace,omitempty"`
	AdpcmA  *Source `yaml:"adpcm_a,omitempty"`
	AdpcmB  *Source `yaml:"adpcm_b,omitempty"`
}

// FromModuleSamples builds one entry per sample carried by a parsed
// module, encoding each sample's data inline as a "data:;base64,..." URI
// the way furtool.py's generate_sample_map does, rather than referencing
// the module by path — the module has already been parsed, so there is
// no benefit to re-reading it through a "furnace:" indirection.
func FromModuleSamples(samples []tracker.Sample) ([]byte, error) {
	entries := make([]Entry, 0, len(samples))
	for _, s := range samples {
		src := &Source{
			Name: s.Name,
			URI:  "data:;base64," + base64.StdEncoding.EncodeToString(s.Data),
		}
		switch s.Kind {
		case tracker.SampleKindAdpcmA:
			entries = append(entries, Entry{AdpcmA: src})
		case tracker.SampleKindAdpcmB:
			entries = append(entries, Entry{AdpcmB: src})
		default:
			return nil, fmt.Errorf("assetmap: sample %q has no ADPCM encoding to reference (kind %d)", s.Name, s.Kind)
		}
	}
	return Marshal(entries)
}

// FurnaceReference builds a single "furnace:" entry pointing at a module
// file on disk, for the rarer case where the consuming tool should
// re-parse the module itself rather than have samples embedded inline.
func FurnaceReference(name, path string) ([]byte, error) {
	return Marshal([]Entry{{Furnace: &Source{Name: name, URI: "file://" + path}}})
}

// Marshal renders sample-map entries as YAML, one "---"-separated
// document per entry to match vromtool.py's yaml.load_all multi-document
// reader.
func Marshal(entries []Entry) ([]byte, error) {
	var out []byte
	for i, e := range entries {
		if i > 0 {
			out = append(out, []byte("---\n")...)
		}
		doc, err := yaml.Marshal([]Entry{e})
		if err != nil {
			return nil, fmt.Errorf("assetmap: marshalling entry %d: %w", i, err)
		}
		out = append(out, doc...)
	}
	return out, nil
}
