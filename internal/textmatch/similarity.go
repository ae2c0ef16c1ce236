package textmatch

import "strings"

// Options controls fuzzy matching behavior. Threshold and MinLength come
// from configuration; the shipped defaults are starting points, not audited
// values.
type Options struct {
	// Threshold is the minimum similarity for a fuzzy hit.
	Threshold float64
	// MinLength gates the fuzzy fallback: queries shorter than this only
	// match by containment.
	MinLength int
	// CaseSensitive disables case folding during normalization.
	CaseSensitive bool
}

// DefaultOptions returns the observed production defaults.
func DefaultOptions() Options {
	return Options{Threshold: 0.6, MinLength: 3}
}

// Distance computes the edit distance between a and b: insertions, deletions
// and substitutions each cost 1. Runs in O(len(a)*len(b)) time and
// O(min-row) space.
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = minOf(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Similarity maps edit distance into [0,1]: 1 - distance/max(len). Two empty
// strings are identical (1); an empty string never resembles a non-empty one.
func Similarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	return 1 - float64(Distance(a, b))/float64(longest)
}

// IsMatch reports whether query matches text. Containment after
// normalization always wins and is checked first; only then does the
// similarity threshold apply, and only for queries of at least MinLength
// runes.
func IsMatch(query, text string, opts Options) bool {
	q := Normalize(query, opts.CaseSensitive)
	t := Normalize(text, opts.CaseSensitive)
	if q == "" {
		return false
	}
	if strings.Contains(t, q) {
		return true
	}
	if len([]rune(q)) < opts.MinLength {
		return false
	}
	return Similarity(q, t) >= opts.Threshold
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
