// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Saturate(t *testing.T) {
	pool := New()
	wantTasks := 5
	pool.SetMaxParallelism(wantTasks)
	assert.Equal(t, wantTasks, pool.NumWorkers())

	// All workers must be running at the same time: each waits for all others to start.
	var count atomic.Int32
	var allStarted sync.WaitGroup
	allStarted.Add(wantTasks)
	seen := make([]bool, wantTasks)
	done := make(chan struct{})
	go func() {
		pool.Saturate(func(worker int) {
			count.Add(1)
			seen[worker] = true
			allStarted.Done()
			allStarted.Wait()
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout before all tasks were executed.")
	}
	assert.Equal(t, int32(wantTasks), count.Load())
	for worker, ok := range seen {
		assert.True(t, ok, "worker %d didn't run", worker)
	}

	// No parallelism: one inline call.
	pool.SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	count.Store(0)
	pool.Saturate(func(worker int) {
		assert.Equal(t, 0, worker)
		count.Add(1)
	})
	assert.Equal(t, int32(1), count.Load())

	// Unlimited.
	pool.SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	count.Store(0)
	pool.Saturate(func(int) { count.Add(1) })
	assert.Equal(t, int32(runtime.NumCPU()), count.Load())

	assert.Panics(t, func() { pool.SetMaxParallelism(-2) })
}

func TestPool_ForEach(t *testing.T) {
	for _, parallelism := range []int{0, 1, 3, -1} {
		pool := New()
		pool.SetMaxParallelism(parallelism)
		numWorkers := pool.NumWorkers()
		perWorker := make([]int, numWorkers)
		visited := make([]atomic.Int32, 100)
		err := pool.ForEach(context.Background(), len(visited), func(worker, index int) error {
			perWorker[worker] += index
			visited[index].Add(1)
			return nil
		})
		require.NoError(t, err)
		total := 0
		for _, sum := range perWorker {
			total += sum
		}
		assert.Equal(t, 99*100/2, total, "parallelism=%d", parallelism)
		for index := range visited {
			assert.Equal(t, int32(1), visited[index].Load(), "index %d", index)
		}
	}

	// Errors stop the loop.
	pool := New()
	pool.SetMaxParallelism(2)
	boom := errors.New("boom")
	var calls atomic.Int32
	err := pool.ForEach(context.Background(), 1000, func(_, index int) error {
		calls.Add(1)
		if index == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, int(calls.Load()), 1000)

	// Cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pool.ForEach(ctx, 10, func(int, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
