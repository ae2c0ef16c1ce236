package registry

import (
	"context"
	"errors"
	"fmt"

	"intake-backend/internal/shared/telemetry"
)

// ErrAllSourcesFailed is returned by Chain.Search when every configured
// source failed.
var ErrAllSourcesFailed = errors.New("all patient sources failed")

// Source supplies patient candidates for a query. Implementations must be
// safe for concurrent use.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Search returns candidates for the query. An empty result with a nil
	// error means the source answered and found nothing.
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Chain tries sources in the configured order and returns the first
// successful answer. The order is explicit: callers construct the chain,
// nothing is inferred. If every source errors, Search returns
// ErrAllSourcesFailed wrapping the last failure.
type Chain struct {
	sources []Source
}

// NewChain builds a fallback chain over the given sources, tried in order.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// Search queries each source in order; the first nil-error answer wins, even
// if it is empty.
func (c *Chain) Search(ctx context.Context, query string) ([]Candidate, error) {
	if len(c.sources) == 0 {
		return nil, ErrAllSourcesFailed
	}
	var lastErr error
	for _, src := range c.sources {
		candidates, err := src.Search(ctx, query)
		if err != nil {
			telemetry.Warn("registry.source_failed", map[string]any{
				"source": src.Name(),
				"error":  err.Error(),
			})
			lastErr = err
			continue
		}
		return candidates, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, lastErr)
}

// Name implements Source so a chain can itself be a source.
func (c *Chain) Name() string { return "chain" }

var _ Source = (*Chain)(nil)
