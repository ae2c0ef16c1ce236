package textmatch

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input         string
		caseSensitive bool
		expected      string
	}{
		{"", false, ""},
		{"  Ali  ", false, "ali"},
		{"Yılmaz", false, "yilmaz"},
		{"ÇĞİÖŞÜ", false, "cgiosu"},
		{"çğıöşü", false, "cgiosu"},
		{"İşitme Cihazı Reçetesi", false, "isitme cihazi recetesi"},
		{"Özgür", true, "Ozgur"},
		{"plain ascii", false, "plain ascii"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input, tt.caseSensitive); got != tt.expected {
			t.Errorf("Normalize(%q, %v) = %q, expected %q", tt.input, tt.caseSensitive, got, tt.expected)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"", "Ali Yılmaz", "  ÇĞİÖŞÜ çğıöşü  ", "12345678901", "Ödeme Alındı"}
	for _, s := range inputs {
		once := Normalize(s, false)
		twice := Normalize(once, false)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", s, once, twice)
		}
	}
}
