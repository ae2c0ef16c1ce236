package classify

import (
	"strings"

	"intake-backend/internal/textmatch"
)

// signal is a weighted keyword or phrase. Phrases score higher than single
// keywords because OCR noise produces spurious single-word hits.
type signal struct {
	phrase string
	weight float64
}

// signalsByType holds the scoring table per document type, matched against
// normalized text. Keywords are stored pre-normalized (lowercase, diacritics
// folded) so classification cost is one Contains per signal.
var signalsByType = map[DocumentType][]signal{
	TypeDevicePrescription: {
		{"isitme cihazi recetesi", 0.6},
		{"isitme cihazi", 0.35},
		{"recete", 0.2},
		{"kulak", 0.1},
		{"sag / sol", 0.05},
	},
	TypeBatteryPrescription: {
		{"pil recetesi", 0.6},
		{"isitme cihazi pili", 0.5},
		{"pil", 0.25},
		{"recete", 0.15},
	},
	TypeAudiogram: {
		{"odyogram", 0.6},
		{"odyometri", 0.5},
		{"isitme esigi", 0.3},
		{"saf ses ortalamasi", 0.3},
		{"db", 0.1},
	},
	TypeComplianceCertificate: {
		{"uygunluk belgesi", 0.6},
		{"cihaz uygunluk", 0.5},
		{"garanti", 0.15},
		{"seri no", 0.15},
	},
	TypeAdministrativeReport: {
		{"saglik kurulu raporu", 0.6},
		{"saglik kurulu", 0.4},
		{"rapor", 0.2},
		{"heyet", 0.2},
	},
}

// Classify assigns extracted text to a document type with a confidence in
// [0,1]. It is total (unknown text yields TypeOther with confidence 0) and
// deterministic: the same text always classifies the same way.
func Classify(text string) (DocumentType, float64) {
	normalized := textmatch.Normalize(text, false)
	if normalized == "" {
		return TypeOther, 0
	}

	best := TypeOther
	bestScore := 0.0
	for _, docType := range scanOrder {
		score := 0.0
		for _, sig := range signalsByType[docType] {
			if strings.Contains(normalized, sig.phrase) {
				score += sig.weight
			}
		}
		if score > bestScore {
			best = docType
			bestScore = score
		}
	}

	if bestScore == 0 {
		return TypeOther, 0
	}
	if bestScore > 1 {
		bestScore = 1
	}
	return best, bestScore
}

// scanOrder fixes evaluation order so ties resolve deterministically.
var scanOrder = []DocumentType{
	TypeBatteryPrescription,
	TypeDevicePrescription,
	TypeAudiogram,
	TypeComplianceCertificate,
	TypeAdministrativeReport,
}
