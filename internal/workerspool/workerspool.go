// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool limits the number of goroutines working on CPU-bound tasks, like the per-example
// reduction of attention tensors.
package workerspool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// Pool of workers. Create it with New.
type Pool struct {
	// maxParallelism is the limit of tasks running in parallel.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Should be signaled whenever numRunning is decreased.
	numRunning     int
}

// New returns a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is the limit of tasks running in parallel.
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism. Values < -1 are invalid and panic.
//
// You should only change the parallelism before any workers start running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	if maxParallelism < -1 {
		exceptions.Panicf("workerspool: invalid max parallelism %d, it must be >= -1", maxParallelism)
	}
	w.maxParallelism = maxParallelism
}

// NumWorkers returns the number of goroutines Saturate and ForEach use: 1 if parallelism is disabled,
// runtime.NumCPU() if it is unlimited.
func (w *Pool) NumWorkers() int {
	switch {
	case w.maxParallelism == 0:
		return 1
	case w.maxParallelism < 0:
		return runtime.NumCPU()
	default:
		return w.maxParallelism
	}
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// WaitToStart waits until there is a worker available to run the task.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline and returns when it is finished.
func (w *Pool) WaitToStart(task func()) {
	if w.IsUnlimited() {
		go task()
		return

	} else if w.maxParallelism == 0 {
		task()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// Saturate starts NumWorkers() copies of task, each given its worker number (from 0 to NumWorkers()-1),
// and waits for all of them to finish.
//
// Tasks usually pull work from a shared queue, and keep per-worker state indexed by the worker number.
// If parallelism is disabled, task(0) is run inline.
func (w *Pool) Saturate(task func(worker int)) {
	numWorkers := w.NumWorkers()
	if !w.IsEnabled() {
		task(0)
		return
	}
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for worker := range numWorkers {
		w.WaitToStart(func() {
			defer wg.Done()
			task(worker)
		})
	}
	wg.Wait()
}

// ForEach calls fn for every index in [0, numTasks), distributed over the pool workers. fn is also given the
// worker number, so it can accumulate into per-worker state without locking.
//
// It stops handing out new indices at the first error returned by fn, or when ctx is cancelled, and returns
// that error.
func (w *Pool) ForEach(ctx context.Context, numTasks int, fn func(worker, index int) error) error {
	var (
		next     atomic.Int64
		errMu    sync.Mutex
		firstErr error
		failed   atomic.Bool
	)
	setErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
			failed.Store(true)
		}
	}
	w.Saturate(func(worker int) {
		for !failed.Load() {
			if err := ctx.Err(); err != nil {
				setErr(err)
				return
			}
			index := int(next.Add(1) - 1)
			if index >= numTasks {
				return
			}
			if err := fn(worker, index); err != nil {
				setErr(err)
				return
			}
		}
	})
	return firstErr
}
