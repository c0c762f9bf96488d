package assetmap

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ngforge/nss/tracker"
)

func TestFromModuleSamplesEncodesBase64(t *testing.T) {
	samples := []tracker.Sample{
		{Kind: tracker.SampleKindAdpcmA, Name: "kick", Data: []byte{0x01, 0x02, 0x03}},
		{Kind: tracker.SampleKindAdpcmB, Name: "snare", Data: []byte{0xaa, 0xbb}},
	}
	out, err := FromModuleSamples(samples)
	if err != nil {
		t.Fatalf("FromModuleSamples: %v", err)
	}

	docs := strings.Split(string(out), "---\n")
	if len(docs) != 2 {
		t.Fatalf("expected 2 yaml documents, got %d:\n%s", len(docs), out)
	}

	var first []Entry
	if err := yaml.Unmarshal([]byte(docs[0]), &first); err != nil {
		t.Fatalf("unmarshal first doc: %v", err)
	}
	if first[0].AdpcmA == nil || first[0].AdpcmA.Name != "kick" {
		t.Errorf("expected an adpcm_a entry named kick, got %+v", first)
	}
	if !strings.HasPrefix(first[0].AdpcmA.URI, "data:;base64,") {
		t.Errorf("expected a base64 data URI, got %q", first[0].AdpcmA.URI)
	}
}

func TestFromModuleSamplesRejectsPcmKind(t *testing.T) {
	samples := []tracker.Sample{{Kind: tracker.SampleKindPcm, Name: "raw"}}
	if _, err := FromModuleSamples(samples); err == nil {
		t.Errorf("expected an error for a raw PCM sample with no ADPCM encoding")
	}
}

func TestFurnaceReferenceUsesFileURI(t *testing.T) {
	out, err := FurnaceReference("song", "/tmp/song.fur")
	if err != nil {
		t.Fatalf("FurnaceReference: %v", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(out, &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entries[0].Furnace == nil || entries[0].Furnace.URI != "file:///tmp/song.fur" {
		t.Errorf("expected a file:// URI, got %+v", entries[0].Furnace)
	}
}
