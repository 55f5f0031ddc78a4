// Package workerpool provides a bounded fan-out helper for running one
// function per item with a fixed concurrency ceiling, adapted from the
// worker-group/ticker-loop utilities used elsewhere in this codebase for
// background execution.
package workerpool

import (
	"context"
	"sync"
)

// Run invokes fn once per item, at most limit calls in flight at a time,
// and waits for all of them to finish. A limit ≤ 0 means unbounded
// (all items run concurrently). Context cancellation stops new item
// dispatch but does not interrupt calls already in flight; fn is expected
// to observe ctx itself for mid-call cancellation.
func Run[T any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) error) []error {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	errs := make([]error, len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, it T) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[idx] = fn(ctx, it)
		}(i, item)
	}
	wg.Wait()
	return errs
}
