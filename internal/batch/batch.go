// Package batch runs work in bounded sequential batches.
package batch

import (
	"context"
	"errors"
	"fmt"
)

// Run partitions items into consecutive chunks of at most size and invokes
// worker once per chunk, waiting for a chunk to complete before starting the
// next. Concurrency inside a chunk belongs to the worker; the sequencing
// here only caps how much work is in flight at once.
//
// A failed chunk does not stop later chunks; worker errors are collected and
// joined. An empty items slice returns immediately.
func Run[T any](ctx context.Context, items []T, size int, worker func(ctx context.Context, chunk []T) error) error {
	if size <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", size)
	}
	var errs []error
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("batching aborted: %w", err))
			break
		}
		end := min(start+size, len(items))
		if err := worker(ctx, items[start:end]); err != nil {
			errs = append(errs, fmt.Errorf("batch %d: %w", start/size, err))
		}
	}
	return errors.Join(errs...)
}

// Count reports how many chunks Run will execute for n items.
func Count(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
