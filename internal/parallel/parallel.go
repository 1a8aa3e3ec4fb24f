// Package parallel provides the fork-join fan-out used by assembly and
// collision queries.
//
// Work is split into contiguous chunks, one goroutine per chunk. Every
// chunk gets a worker index in [0, Workers()) so callers can keep
// per-worker buffers and merge them serially after the join.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

var workers = runtime.GOMAXPROCS(0)

// Workers returns the maximum number of concurrent chunks For will use.
func Workers() int { return workers }

// SetWorkers overrides the worker count. Values below one select serial execution.
func SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	workers = n
}

// Chunks returns the number of chunks For splits n items into.
func Chunks(n, minChunk int) int {
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		return 1
	}
	w := workers
	if n/minChunk < w {
		w = n / minChunk
	}
	if w < 1 {
		w = 1
	}
	return w
}

// For executes fn over [0, n) in parallel.
func For(n, minChunk int, fn func(start, end, worker int)) {
	_ = ForErr(n, minChunk, func(start, end, worker int) error {
		fn(start, end, worker)
		return nil
	})
}

// ForErr is For with error propagation. The first non-nil error is returned
// after all chunks have finished.
func ForErr(n, minChunk int, fn func(start, end, worker int) error) error {
	if n <= 0 {
		return nil
	}
	w := Chunks(n, minChunk)
	if w == 1 {
		return fn(0, n, 0)
	}

	chunkSize := (n + w - 1) / w

	var g errgroup.Group
	for worker := 0; worker < w; worker++ {
		start := worker * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		g.Go(func() error {
			return fn(start, end, worker)
		})
	}
	return g.Wait()
}

// Storage holds one value per worker.
type Storage[T any] struct {
	locals []T
}

// NewStorage allocates a value for every possible worker.
func NewStorage[T any](init func() T) *Storage[T] {
	s := &Storage[T]{locals: make([]T, workers)}
	for i := range s.locals {
		s.locals[i] = init()
	}
	return s
}

// Local returns the value owned by worker.
func (s *Storage[T]) Local(worker int) T { return s.locals[worker] }

// All returns every worker's value in worker order.
func (s *Storage[T]) All() []T { return s.locals }

// Set replaces the value owned by worker.
func (s *Storage[T]) Set(worker int, v T) { s.locals[worker] = v }
