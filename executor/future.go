package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/casualjim/loom/loop"
	"github.com/casualjim/loom/pkg/uuidx"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Future. Transitions are monotonic:
// Pending -> Running -> Finished, or Pending -> Cancelled.
type State int32

const (
	Pending State = iota
	Running
	Cancelled
	Finished
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Future is a single-assignment, observable result cell. It is created
// pending by the entity that will fulfil it and mutated only by the
// executing task, or by Cancel before execution starts. Once terminal,
// state and payload are immutable.
type Future struct {
	sched loop.Scheduler
	id    uuid.UUID

	mu        sync.Mutex
	state     State
	result    any
	err       error
	callbacks []func(*Future)
	observers []func(*Future)
	done      chan struct{}
}

// NewFuture creates a pending future whose done callbacks will be
// delivered through sched.
func NewFuture(sched loop.Scheduler) *Future {
	return &Future{
		sched: sched,
		id:    uuidx.New(),
		done:  make(chan struct{}),
	}
}

// ID returns the future's unique id.
func (f *Future) ID() uuid.UUID { return f.id }

// TryStartRunning attempts the Pending -> Running transition. It reports
// false when the future has already left Pending; in particular a
// cancelled future stays cancelled and the caller must not execute the
// task.
func (f *Future) TryStartRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Pending {
		return false
	}
	f.state = Running
	return true
}

// SetResult commits the result payload and moves the future to Finished.
// Legal only from Running.
func (f *Future) SetResult(v any) error {
	return f.finish(v, nil)
}

// SetError commits the error payload and moves the future to Finished.
// Legal only from Running.
func (f *Future) SetError(err error) error {
	return f.finish(nil, err)
}

func (f *Future) finish(v any, err error) error {
	f.mu.Lock()
	if f.state != Running {
		st := f.state
		f.mu.Unlock()
		return fmt.Errorf("future %s: invalid transition %s -> %s", f.id, st, Finished)
	}
	f.state = Finished
	f.result = v
	f.err = err
	cbs := f.callbacks
	obs := f.observers
	f.callbacks = nil
	f.observers = nil
	close(f.done)
	f.mu.Unlock()

	for _, o := range obs {
		o(f)
	}
	f.fire(cbs)
	return nil
}

// Cancel attempts the Pending -> Cancelled transition. It reports true
// only when the future was still pending; cancellation is cooperative and
// never interrupts a running task.
func (f *Future) Cancel() bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}
	f.state = Cancelled
	cbs := f.callbacks
	obs := f.observers
	f.callbacks = nil
	f.observers = nil
	close(f.done)
	f.mu.Unlock()

	for _, o := range obs {
		o(f)
	}
	f.fire(cbs)
	return true
}

// fire posts done callbacks onto the owner loop in registration order.
// Delivery is asynchronous in every case, including callbacks registered
// on an already terminal future, so a callback never runs in the stack
// that registered it or in the stack that completed the future.
func (f *Future) fire(cbs []func(*Future)) {
	for _, cb := range cbs {
		cb := cb
		f.sched.PostNow(func() { cb(f) })
	}
}

// AddDoneCallback registers cb to be invoked, exactly once, after the
// future reaches a terminal state. When the future is already terminal
// the callback still goes through the owner loop.
func (f *Future) AddDoneCallback(cb func(*Future)) {
	if cb == nil {
		return
	}
	f.mu.Lock()
	if f.state == Pending || f.state == Running {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.fire([]func(*Future){cb})
}

// onTerminal registers a synchronous observer invoked on the completing
// goroutine the moment the terminal state is committed. Internal; used
// for executor bookkeeping that must not depend on a running loop.
func (f *Future) onTerminal(obs func(*Future)) {
	f.mu.Lock()
	if f.state == Pending || f.state == Running {
		f.observers = append(f.observers, obs)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	obs(f)
}

// Done reports whether the future reached a terminal state.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancelled reports whether the future was cancelled.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == Cancelled
}

// State returns the current lifecycle state.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Wait blocks until the future is terminal. A zero timeout is a
// non-blocking probe that fails fast with ErrNotReady; a negative timeout
// waits indefinitely.
func (f *Future) Wait(timeout time.Duration) error {
	if timeout == 0 {
		select {
		case <-f.done:
			return nil
		default:
			return ErrNotReady
		}
	}
	if timeout < 0 {
		<-f.done
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return nil
	case <-timer.C:
		return ErrNotReady
	}
}

// Result returns the result payload. It fails with ErrNotReady when the
// future is not terminal within the timeout, with ErrCancelled when the
// future was cancelled, and with the stored task error when the task
// failed.
func (f *Future) Result(timeout time.Duration) (any, error) {
	if err := f.Wait(timeout); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Cancelled {
		return nil, ErrCancelled
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// Err returns the stored task error, nil when the task finished with a
// result. The second return value reports probe failures: ErrNotReady
// before completion, ErrCancelled for a cancelled future.
func (f *Future) Err(timeout time.Duration) (error, error) {
	if err := f.Wait(timeout); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Cancelled {
		return nil, ErrCancelled
	}
	return f.err, nil
}
