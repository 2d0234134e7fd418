// Package parallel provides bounded fan-out helpers for data-parallel work.
//
// Work items are independent: no ordering between items is implied while
// they run, but results are always returned in input order.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Result carries either a value or the error that prevented producing it.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool { return r.Err == nil }

// Workers normalises a worker limit: values <= 0 mean GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// For runs fn(i) for i in [0, n) using at most workers goroutines. It stops
// scheduling new indices once ctx is done and returns ctx.Err() in that case.
func For(ctx context.Context, n, workers int, fn func(i int)) error {
	if n <= 0 {
		return ctx.Err()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Map applies fn to every item concurrently and returns one Result per item
// in input order. A failing item never affects the others. Items not started
// before ctx is cancelled carry ctx.Err().
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(Workers(workers))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			v, err := fn(item)
			results[i] = Result[R]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Values returns the values of the successful results, preserving order.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}

// Errors returns the errors of the failed results, preserving order.
func Errors[T any](results []Result[T]) []error {
	var out []error
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.Err)
		}
	}
	return out
}
