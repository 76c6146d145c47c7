package executor

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/casualjim/loom/loop"
	"github.com/casualjim/loom/pkg/slogx"
	"github.com/fogfish/opts"
)

// WithTracking controls whether the executor keeps a pending set of
// outstanding futures. With tracking disabled Shutdown(wait=true) has
// nothing to wait on; keeping track of futures is then the caller's
// responsibility (use WaitAll).
var WithTracking = opts.ForName[Executor, bool]("track")

// Executor submits callables to a shared worker pool and returns futures
// for their eventual results.
type Executor struct {
	pool  Pool
	sched loop.Scheduler
	track bool

	// mu guards pending and shutdown; this pair is the executor's only
	// shared mutable state.
	mu       sync.Mutex
	pending  map[*Future]struct{}
	shutdown bool
}

// New creates an executor on the given pool and owner-loop scheduler.
func New(pool Pool, sched loop.Scheduler, options ...opts.Option[Executor]) (*Executor, error) {
	var err error
	if pool == nil {
		err = errors.Join(err, errors.New("pool is required"))
	}
	if sched == nil {
		err = errors.Join(err, errors.New("scheduler is required"))
	}
	if err != nil {
		return nil, err
	}

	e := &Executor{
		pool:    pool,
		sched:   sched,
		track:   true,
		pending: make(map[*Future]struct{}),
	}
	if err := opts.Apply(e, options); err != nil {
		return nil, err
	}
	return e, nil
}

// Submit wraps fn and args into a task, hands it to the pool and returns
// the future that will hold the outcome. It never blocks. After shutdown
// has been initiated it fails with ErrRejected.
func (e *Executor) Submit(fn any, args ...any) (*Future, error) {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil, ErrRejected
	}
	future := NewFuture(e.sched)
	task, err := NewTask(future, fn, args...)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if e.track {
		e.pending[future] = struct{}{}
	}
	e.mu.Unlock()

	if e.track {
		future.onTerminal(func(f *Future) {
			e.mu.Lock()
			delete(e.pending, f)
			e.mu.Unlock()
		})
	}
	e.pool.Start(task.Run)
	return future, nil
}

// Shutdown stops the executor from accepting new work. With wait=true it
// blocks the calling goroutine until every tracked future is terminal;
// it must therefore not be called from the owner loop while tasks still
// need owner-loop callbacks to complete. When tracking was disabled at
// construction, wait=true is a caller error: it is reported and the
// call returns without blocking.
func (e *Executor) Shutdown(wait bool) {
	e.mu.Lock()
	e.shutdown = true
	var futures []*Future
	if wait && e.track {
		futures = make([]*Future, 0, len(e.pending))
		for f := range e.pending {
			futures = append(futures, f)
		}
	}
	track := e.track
	e.mu.Unlock()

	if wait && !track {
		slog.Warn("Shutdown(wait=true) requested, but pending tracking is disabled", slogx.LoggerName("executor"))
		return
	}
	for _, f := range futures {
		_ = f.Wait(-1)
	}
}

// WaitAll blocks until every given future is terminal or the timeout
// expires. A negative timeout waits indefinitely; a zero timeout is a
// pure probe that fails fast with ErrNotReady on the first non-terminal
// future.
func WaitAll(timeout time.Duration, futures ...*Future) error {
	if timeout < 0 {
		for _, f := range futures {
			_ = f.Wait(-1)
		}
		return nil
	}
	deadline := time.Now().Add(timeout)
	for _, f := range futures {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if err := f.Wait(remaining); err != nil {
			return err
		}
	}
	return nil
}
