package registry

import (
	"sort"
	"strings"

	"intake-backend/internal/textmatch"
)

// Identifier scoring: an exact identifier hit always wins; suffix overlap
// scores 3 + min(overlap, 11); plain inclusion scores 1 + min(len, 11).
// rawExact sits strictly above the largest possible suffix score so the
// exact > suffix > inclusion ordering never depends on overlap lengths.
const (
	rawExact      = 20
	maxIdentifier = 11
	minSuffixRun  = 3
)

// MatcherConfig bounds and tunes matching. Zero values fall back to the
// observed defaults, which are configuration, not validated constants.
type MatcherConfig struct {
	Threshold float64
	// MinTokenLength gates the fuzzy fallback per token.
	MinTokenLength int
	// MaxCandidates caps the candidate set scanned per call. Matching is
	// O(candidates * tokens) with an edit-distance inner loop; the cap keeps
	// the search interactive at registry sizes of a few thousand. This is a
	// deliberate design limit, not an index.
	MaxCandidates int
}

// Matcher ranks registry candidates against patient-identifying text
// extracted from a document.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher constructs a Matcher, applying defaults for zero config values.
func NewMatcher(cfg MatcherConfig) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.6
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 3
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5000
	}
	return &Matcher{cfg: cfg}
}

// Match ranks candidates for the query. A numeric query of three or more
// digits is treated as a partial national-identifier search; anything else
// is tokenized with conjunctive (AND) semantics: every token must hit some
// part of the candidate's searchable text. An empty query returns the full
// candidate list unfiltered; no candidates returns an empty list.
func (m *Matcher) Match(query string, candidates []Candidate) []MatchResult {
	if len(candidates) > m.cfg.MaxCandidates {
		candidates = candidates[:m.cfg.MaxCandidates]
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		out := make([]MatchResult, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, MatchResult{PatientID: c.ID})
		}
		return out
	}

	var results []MatchResult
	if isNumeric(trimmed) && len(trimmed) >= 3 {
		results = m.matchIdentifier(trimmed, candidates)
	} else {
		results = m.matchText(trimmed, candidates)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if (a.MatchType == MatchExact) != (b.MatchType == MatchExact) {
			return a.MatchType == MatchExact
		}
		return a.overlap > b.overlap
	})
	return results
}

func (m *Matcher) matchIdentifier(query string, candidates []Candidate) []MatchResult {
	results := make([]MatchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.NationalID != "" {
			if c.NationalID == query {
				results = append(results, MatchResult{
					PatientID: c.ID,
					Score:     1,
					MatchType: MatchExact,
					overlap:   len(query),
				})
				continue
			}
			if overlap := commonSuffixLen(query, c.NationalID); overlap >= minSuffixRun {
				raw := 3 + minInt(overlap, maxIdentifier)
				results = append(results, MatchResult{
					PatientID: c.ID,
					Score:     float64(raw) / rawExact,
					MatchType: MatchIdentifierSuffix,
					overlap:   overlap,
				})
				continue
			}
			if strings.Contains(c.NationalID, query) {
				results = append(results, MatchResult{
					PatientID: c.ID,
					Score:     float64(1+minInt(len(query), maxIdentifier)) / rawExact,
					MatchType: MatchExact,
					overlap:   len(query),
				})
				continue
			}
		}
		// Free-text fallback for numeric queries: phone fragments. Always
		// below any identifier hit.
		if strings.Contains(digitsOnly(c.Phone), query) {
			results = append(results, MatchResult{
				PatientID: c.ID,
				Score:     float64(1+minInt(len(query), maxIdentifier)) / rawExact,
				MatchType: MatchExact,
				overlap:   0,
			})
		}
	}
	return results
}

func (m *Matcher) matchText(query string, candidates []Candidate) []MatchResult {
	opts := textmatch.Options{Threshold: m.cfg.Threshold, MinLength: m.cfg.MinTokenLength}
	queryTokens := strings.Fields(textmatch.Normalize(query, false))
	if len(queryTokens) == 0 {
		return nil
	}

	results := make([]MatchResult, 0, len(candidates))
	for _, c := range candidates {
		searchable := textmatch.Normalize(c.DisplayName+" "+c.Phone+" "+c.NationalID, false)
		candTokens := strings.Fields(searchable)

		allExact := true
		total := 0.0
		matched := true
		for _, qt := range queryTokens {
			score, exact := bestTokenScore(qt, searchable, candTokens, opts)
			if score == 0 {
				matched = false
				break
			}
			if !exact {
				allExact = false
			}
			total += score
		}
		if !matched {
			continue
		}

		matchType := MatchFuzzy
		if allExact {
			matchType = MatchExact
		}
		results = append(results, MatchResult{
			PatientID: c.ID,
			Score:     total / float64(len(queryTokens)),
			MatchType: matchType,
		})
	}
	return results
}

// bestTokenScore scores one query token against a candidate. Substring
// containment anywhere in the searchable text is an exact hit worth 1; the
// fuzzy fallback takes the best per-token similarity at or above the
// threshold, and never fires for tokens shorter than MinLength.
func bestTokenScore(token, searchable string, candTokens []string, opts textmatch.Options) (float64, bool) {
	if strings.Contains(searchable, token) {
		return 1, true
	}
	if len([]rune(token)) < opts.MinLength {
		return 0, false
	}
	best := 0.0
	for _, ct := range candTokens {
		if sim := textmatch.Similarity(token, ct); sim >= opts.Threshold && sim > best {
			best = sim
		}
	}
	return best, false
}

func commonSuffixLen(a, b string) int {
	i := len(a)
	j := len(b)
	n := 0
	for i > 0 && j > 0 && a[i-1] == b[j-1] {
		i--
		j--
		n++
	}
	return n
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
