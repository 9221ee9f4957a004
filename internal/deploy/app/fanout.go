package app

import (
	"context"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// dispatch runs fn for every item with at most limit in flight and waits for
// all of them to settle. A failing member never cancels its siblings; every
// member error is combined into the result. limit <= 0 means unbounded.
func dispatch[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, i int, item T) error) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	errs := make([]error, len(items))
	for i, item := range items {
		g.Go(func() error {
			errs[i] = fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}
