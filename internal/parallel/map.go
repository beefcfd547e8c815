// Package parallel runs independent per-item tasks concurrently.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds concurrency when the caller passes a non-positive limit.
const DefaultLimit = 8

// Map applies fn to every item with at most limit tasks in flight. Tasks
// complete in any order but results keep the position of their input. The
// first error cancels the context handed to the remaining tasks and is
// returned; no partial results are returned alongside it.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
