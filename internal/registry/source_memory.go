package registry

import (
	"context"
	"sync"
)

// MemorySource serves candidates from an in-process snapshot. It backs local
// development and tests, and doubles as the last rung of a source chain so
// matching keeps working when the clinic database and the remote registry
// are both down.
type MemorySource struct {
	mu         sync.RWMutex
	candidates []Candidate
}

// NewMemorySource seeds the source with an initial snapshot.
func NewMemorySource(candidates []Candidate) *MemorySource {
	s := &MemorySource{}
	s.Replace(candidates)
	return s
}

// Replace swaps the snapshot wholesale.
func (s *MemorySource) Replace(candidates []Candidate) {
	next := make([]Candidate, len(candidates))
	copy(next, candidates)
	s.mu.Lock()
	s.candidates = next
	s.mu.Unlock()
}

// Name implements Source.
func (s *MemorySource) Name() string { return "memory" }

// Search returns the full snapshot; ranking and filtering are the matcher's
// job.
func (s *MemorySource) Search(ctx context.Context, query string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out, nil
}

var _ Source = (*MemorySource)(nil)
