package tracker

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ModuleIDFromPath derives a ModuleID from a source file path: the
// basename without its extension, lower-cased and made assembler-safe so
// it can namespace generated symbols across multiple songs sharing one
// ROM, mirroring the newer furtool.py's module_id_from_path.
func ModuleIDFromPath(path string) ModuleID {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return ModuleID(asmSafeName(base))
}

// asmSafeName turns an arbitrary instrument/sample name into a valid
// assembler label: non-word runes become underscores and a leading digit
// gets an underscore prefix, mirroring furtool.py's
// re.sub(r"\W|^(?=\d)", "_", name).lower().
func asmSafeName(name string) string {
	var b strings.Builder
	runes := []rune(name)
	if len(runes) > 0 && unicode.IsDigit(runes[0]) {
		b.WriteByte('_')
	}
	for _, r := range runes {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.ToLower(b.String())
}
