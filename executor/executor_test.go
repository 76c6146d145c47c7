package executor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, workers int) (*Executor, *manualScheduler) {
	t.Helper()
	pool := NewFixedPool(workers)
	t.Cleanup(pool.Stop)
	sched := &manualScheduler{}
	e, err := New(pool, sched)
	require.NoError(t, err)
	return e, sched
}

func TestExecutorSubmit(t *testing.T) {
	t.Run("returns the callable's result", func(t *testing.T) {
		e, _ := newTestExecutor(t, 2)

		f, err := e.Submit(func(x int) int { return x * x }, 7)
		require.NoError(t, err)

		v, err := f.Result(-1)
		require.NoError(t, err)
		assert.Equal(t, 49, v)
	})

	t.Run("captures a returned error", func(t *testing.T) {
		e, _ := newTestExecutor(t, 2)
		boom := errors.New("boom")

		f, err := e.Submit(func() (int, error) { return 0, boom })
		require.NoError(t, err)

		taskErr, probeErr := f.Err(-1)
		require.NoError(t, probeErr)
		assert.ErrorIs(t, taskErr, boom)
	})

	t.Run("captures a panic as a task error", func(t *testing.T) {
		e, _ := newTestExecutor(t, 2)

		// integer division by zero panics in the worker
		f, err := e.Submit(func(a, b int) int { return a / b }, 1, 0)
		require.NoError(t, err)

		taskErr, probeErr := f.Err(-1)
		require.NoError(t, probeErr)
		var te *TaskError
		require.ErrorAs(t, taskErr, &te)
		assert.Contains(t, te.Error(), "divide by zero")
		assert.Equal(t, f.ID(), te.FutureID)

		// Result surfaces the same condition
		_, err = f.Result(0)
		assert.ErrorAs(t, err, &te)
	})

	t.Run("converts compatible argument types", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)

		f, err := e.Submit(func(x float64) float64 { return x / 2 }, 7)
		require.NoError(t, err)

		v, err := f.Result(-1)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, v, 1e-9)
	})

	t.Run("supports variadic callables", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)

		f, err := e.Submit(func(xs ...int) int {
			total := 0
			for _, x := range xs {
				total += x
			}
			return total
		}, 1, 2, 3)
		require.NoError(t, err)

		v, err := f.Result(-1)
		require.NoError(t, err)
		assert.Equal(t, 6, v)
	})

	t.Run("discards return values beyond the first", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)

		f, err := e.Submit(func() (int, string) { return 1, "dropped" })
		require.NoError(t, err)

		v, err := f.Result(-1)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("rejects a non-function callable", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)
		_, err := e.Submit(42)
		assert.Error(t, err)
	})

	t.Run("wrong arity is stored as the task error", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)

		f, err := e.Submit(func(a, b int) int { return a + b }, 1)
		require.NoError(t, err)

		taskErr, probeErr := f.Err(-1)
		require.NoError(t, probeErr)
		assert.Error(t, taskErr)
	})
}

func TestExecutorCancel(t *testing.T) {
	t.Run("cancelled before start never runs", func(t *testing.T) {
		// single worker, blocked: the second task stays pending
		e, _ := newTestExecutor(t, 1)

		release := make(chan struct{})
		blocker, err := e.Submit(func() { <-release })
		require.NoError(t, err)

		var ran atomic.Bool
		f, err := e.Submit(func() { ran.Store(true) })
		require.NoError(t, err)

		assert.True(t, f.Cancel())
		close(release)

		require.NoError(t, blocker.Wait(-1))
		require.NoError(t, f.Wait(-1))
		assert.True(t, f.Cancelled())
		assert.False(t, ran.Load(), "cancelled task must not execute")
	})

	t.Run("cancel is too late once running", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)

		started := make(chan struct{})
		release := make(chan struct{})
		f, err := e.Submit(func() int {
			close(started)
			<-release
			return 1
		})
		require.NoError(t, err)

		<-started
		assert.False(t, f.Cancel())
		close(release)

		v, err := f.Result(-1)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})
}

func TestExecutorShutdown(t *testing.T) {
	t.Run("rejects submissions after shutdown", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)
		e.Shutdown(false)

		_, err := e.Submit(func() {})
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("wait blocks until tracked futures are terminal", func(t *testing.T) {
		e, _ := newTestExecutor(t, 2)

		var finished atomic.Bool
		_, err := e.Submit(func() {
			time.Sleep(30 * time.Millisecond)
			finished.Store(true)
		})
		require.NoError(t, err)

		e.Shutdown(true)
		assert.True(t, finished.Load(), "Shutdown(wait=true) returned before the task finished")
	})

	t.Run("wait with tracking disabled warns and returns", func(t *testing.T) {
		pool := NewFixedPool(1)
		t.Cleanup(pool.Stop)
		e, err := New(pool, &manualScheduler{}, WithTracking(false))
		require.NoError(t, err)

		release := make(chan struct{})
		f, err := e.Submit(func() { <-release })
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			e.Shutdown(true)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Shutdown(wait=true) blocked despite tracking being disabled")
		}

		close(release)
		require.NoError(t, f.Wait(-1))
	})

	t.Run("cancelled futures count as terminal", func(t *testing.T) {
		e, _ := newTestExecutor(t, 1)

		release := make(chan struct{})
		blocker, err := e.Submit(func() { <-release })
		require.NoError(t, err)
		f, err := e.Submit(func() {})
		require.NoError(t, err)
		require.True(t, f.Cancel())

		done := make(chan struct{})
		go func() {
			e.Shutdown(true)
			close(done)
		}()

		close(release)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Shutdown(wait=true) never returned")
		}
		require.NoError(t, blocker.Wait(0))
	})
}

func TestWaitAll(t *testing.T) {
	t.Run("waits for every future", func(t *testing.T) {
		e, _ := newTestExecutor(t, 4)

		var futures []*Future
		for i := 0; i < 8; i++ {
			f, err := e.Submit(func(i int) int {
				time.Sleep(time.Millisecond)
				return i
			}, i)
			require.NoError(t, err)
			futures = append(futures, f)
		}

		require.NoError(t, WaitAll(-1, futures...))
		for _, f := range futures {
			assert.True(t, f.Done())
		}
	})

	t.Run("zero timeout probes", func(t *testing.T) {
		f := NewFuture(&manualScheduler{})
		assert.ErrorIs(t, WaitAll(0, f), ErrNotReady)
	})
}

func TestFixedPool(t *testing.T) {
	t.Run("bounds concurrency", func(t *testing.T) {
		pool := NewFixedPool(2)
		t.Cleanup(pool.Stop)

		var mu sync.Mutex
		current, peak := 0, 0
		var wg sync.WaitGroup
		wg.Add(10)
		for i := 0; i < 10; i++ {
			pool.Start(func() {
				defer wg.Done()
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
			})
		}
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.LessOrEqual(t, peak, 2)
		assert.Positive(t, peak)
	})

	t.Run("stop drains the backlog", func(t *testing.T) {
		pool := NewFixedPool(1)

		var ran atomic.Int32
		for i := 0; i < 5; i++ {
			pool.Start(func() { ran.Add(1) })
		}
		pool.Stop()
		assert.EqualValues(t, 5, ran.Load())
	})

	t.Run("survives a panicking runnable", func(t *testing.T) {
		pool := NewFixedPool(1)
		t.Cleanup(pool.Stop)

		pool.Start(func() { panic("boom") })
		done := make(chan struct{})
		pool.Start(func() { close(done) })

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not survive the panic")
		}
	})
}
