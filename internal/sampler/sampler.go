// Package sampler builds evaluation sets by drawing corpus items without
// replacement from a seeded generator and keeping only those an external
// predicate accepts.
//
// Only the draw order is reproducible for a fixed seed. The predicate is
// usually an LLM call, so the same draw may be accepted in one run and
// rejected in the next, and the accepted set can differ between runs.
package sampler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giantswarm/survey-eval/internal/dataset"
)

// Predicate decides whether a drawn pair belongs in the sample. An error is
// fatal to the sampling call.
type Predicate func(ctx context.Context, pair dataset.Pair) (bool, error)

// Draw records one draw from the pool.
type Draw struct {
	Index    int  `json:"index"`
	Accepted bool `json:"accepted"`
}

// Result is the outcome of a successful Sample call.
type Result struct {
	Seed      int64          `json:"seed"`
	Requested int            `json:"requested"`
	Accepted  []dataset.Pair `json:"accepted"` // draw order
	Draws     []Draw         `json:"draws"`    // every draw, accepted or not
}

// InsufficientCandidatesError is returned when the pool runs dry before the
// requested number of pairs has been accepted.
type InsufficientCandidatesError struct {
	Requested  int
	Accepted   int
	CorpusSize int
}

func (e *InsufficientCandidatesError) Error() string {
	return fmt.Sprintf("insufficient candidates: accepted %d of %d requested after drawing all %d corpus items",
		e.Accepted, e.Requested, e.CorpusSize)
}

// DrawFunc is notified after every predicate evaluation.
type DrawFunc func(draw Draw, accepted, requested int)

// Option configures a Sample call.
type Option func(*options)

type options struct {
	onDraw DrawFunc
}

// WithDrawFunc registers a progress callback.
func WithDrawFunc(fn DrawFunc) Option {
	return func(o *options) {
		o.onDraw = fn
	}
}

// Sample draws indices from corpus until n pairs satisfy predicate.
//
// n == 0 returns an empty result without drawing. A pool that empties first
// yields *InsufficientCandidatesError and no partial result.
func Sample(ctx context.Context, n int, corpus []dataset.Pair, seed int64, predicate Predicate, opts ...Option) (*Result, error) {
	if n < 0 {
		return nil, fmt.Errorf("sample size must not be negative, got %d", n)
	}
	if predicate == nil {
		return nil, fmt.Errorf("predicate is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	result := &Result{
		Seed:      seed,
		Requested: n,
		Accepted:  make([]dataset.Pair, 0, n),
	}
	if n == 0 {
		return result, nil
	}

	pool := newIndexPool(len(corpus), seed)
	for len(result.Accepted) < n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sampling cancelled after %d draws: %w", len(result.Draws), err)
		}
		if pool.Len() == 0 {
			return nil, &InsufficientCandidatesError{
				Requested:  n,
				Accepted:   len(result.Accepted),
				CorpusSize: len(corpus),
			}
		}

		idx := pool.Draw()
		pair := corpus[idx]

		ok, err := predicate(ctx, pair)
		if err != nil {
			return nil, fmt.Errorf("predicate failed for corpus index %d: %w", idx, err)
		}

		draw := Draw{Index: idx, Accepted: ok}
		result.Draws = append(result.Draws, draw)
		if ok {
			result.Accepted = append(result.Accepted, pair)
		}

		slog.Debug("sample draw",
			"index", idx,
			"accepted", ok,
			"progress", len(result.Accepted),
			"requested", n,
		)
		if o.onDraw != nil {
			o.onDraw(draw, len(result.Accepted), n)
		}
	}

	return result, nil
}

// DrawOrder returns the first k indices the generator would draw from a pool
// of the given size. It performs no predicate calls and is useful to preview
// or audit a seed.
func DrawOrder(size int, seed int64, k int) []int {
	k = min(k, size)
	if k <= 0 {
		return nil
	}
	pool := newIndexPool(size, seed)
	order := make([]int, 0, k)
	for range k {
		order = append(order, pool.Draw())
	}
	return order
}
