package registry

// Candidate is a read-only patient snapshot supplied by the patient registry.
// The pipeline never mutates it.
type Candidate struct {
	ID          string
	DisplayName string
	// NationalID is the 11-digit TC identity number when known.
	NationalID string
	Phone      string
}

// MatchType describes how a candidate was matched.
type MatchType string

const (
	MatchExact            MatchType = "exact"
	MatchFuzzy            MatchType = "fuzzy"
	MatchIdentifierSuffix MatchType = "identifier-suffix"
)

// MatchResult is one ranked candidate. Results are always returned sorted
// descending by score; ties break exact-first, then by longest identifier
// overlap.
type MatchResult struct {
	PatientID string
	Score     float64
	MatchType MatchType

	// overlap is the identifier overlap length used for tie-breaking.
	overlap int
}
