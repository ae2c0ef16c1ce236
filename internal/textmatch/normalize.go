package textmatch

import "strings"

// turkishFold maps the six Turkish diacritic letters (and their uppercase
// forms) to their ASCII base letter so that OCR output and registry records
// compare equal regardless of encoding quality.
var turkishFold = strings.NewReplacer(
	"ç", "c", "Ç", "C",
	"ğ", "g", "Ğ", "G",
	"ı", "i", "İ", "I",
	"ö", "o", "Ö", "O",
	"ş", "s", "Ş", "S",
	"ü", "u", "Ü", "U",
)

// Normalize canonicalizes text for comparison: trims surrounding whitespace,
// folds Turkish diacritics to ASCII, and lower-cases unless caseSensitive is
// set. It is total: empty input yields an empty string.
func Normalize(s string, caseSensitive bool) string {
	if s == "" {
		return ""
	}
	out := turkishFold.Replace(strings.TrimSpace(s))
	if !caseSensitive {
		out = strings.ToLower(out)
	}
	return out
}
