// Package partial runs a function over a list and keeps going when items fail.
// Each output slot carries either a value or the error for the input at the same index.
package partial

import (
	"context"
	"fmt"
	"sync"
)

// Result is the outcome for the input at Index
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// OK reports whether the item succeeded
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// PanicError wraps a recovered panic so one bad item never aborts the run
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Collect runs fn sequentially over items.
// len(result) == len(items) and result[i] belongs to items[i].
func Collect[In, Out any](ctx context.Context, items []In, fn func(ctx context.Context, index int, item In) (Out, error)) []Result[Out] {
	results := make([]Result[Out], len(items))
	for i, item := range items {
		results[i] = run(ctx, i, item, fn)
	}
	return results
}

// CollectParallel is Collect with a bounded worker pool.
// Output order and content match Collect for the same fn.
func CollectParallel[In, Out any](ctx context.Context, items []In, workers int, fn func(ctx context.Context, index int, item In) (Out, error)) []Result[Out] {
	if workers <= 1 || len(items) <= 1 {
		return Collect(ctx, items, fn)
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]Result[Out], len(items))
	indexCh := make(chan int, len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexCh {
				// 각 워커는 자기 인덱스에만 쓴다
				results[i] = run(ctx, i, items[i], fn)
			}
		}()
	}

	for i := range items {
		indexCh <- i
	}
	close(indexCh)
	wg.Wait()

	return results
}

// Split separates successes from failures, preserving order within each
func Split[T any](results []Result[T]) (ok []T, failed []Result[T]) {
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		ok = append(ok, r.Value)
	}
	return ok, failed
}

func run[In, Out any](ctx context.Context, i int, item In, fn func(ctx context.Context, index int, item In) (Out, error)) (res Result[Out]) {
	res.Index = i

	defer func() {
		if p := recover(); p != nil {
			var zero Out
			res.Value = zero
			res.Err = &PanicError{Value: p}
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	res.Value, res.Err = fn(ctx, i, item)
	return res
}
