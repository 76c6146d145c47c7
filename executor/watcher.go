package executor

import (
	"sync"

	"github.com/casualjim/loom/loop"
)

// Hook receives the owner-loop notifications for one watched future.
// Every method runs on the owner loop.
type Hook interface {
	// OnCancelled fires when the watched future was cancelled.
	OnCancelled(*Future)
	// OnFinished fires when the watched future finished with a result or
	// an error, but not when it was cancelled.
	OnFinished(*Future)
	// OnDone fires after OnCancelled or OnFinished, for every terminal
	// state.
	OnDone(*Future)
	// OnResult fires with the result payload after OnDone, when the
	// future finished without error.
	OnResult(any)
	// OnError fires with the stored task error after OnDone, when the
	// future finished with an error.
	OnError(error)
}

// HookFuncs adapts plain functions to the Hook interface. Nil fields are
// skipped.
type HookFuncs struct {
	Cancelled func(*Future)
	Finished  func(*Future)
	Done      func(*Future)
	Result    func(any)
	Err       func(error)
}

var _ Hook = HookFuncs{}

func (h HookFuncs) OnCancelled(f *Future) {
	if h.Cancelled != nil {
		h.Cancelled(f)
	}
}

func (h HookFuncs) OnFinished(f *Future) {
	if h.Finished != nil {
		h.Finished(f)
	}
}

func (h HookFuncs) OnDone(f *Future) {
	if h.Done != nil {
		h.Done(f)
	}
}

func (h HookFuncs) OnResult(v any) {
	if h.Result != nil {
		h.Result(v)
	}
}

func (h HookFuncs) OnError(err error) {
	if h.Err != nil {
		h.Err(err)
	}
}

// Watcher observes the state changes of exactly one Future and delivers
// a deterministic notification sequence on the owner loop, regardless of
// which goroutine completed the future and regardless of whether the
// future was already terminal when it was set.
//
// The emission order is fixed: a cancelled future emits OnCancelled then
// OnDone; a finished future emits OnFinished, OnDone, then exactly one of
// OnError or OnResult.
type Watcher struct {
	handle loop.Handle
	notify func(args ...any) bool
	hook   Hook

	mu     sync.Mutex
	future *Future
}

// NewWatcher creates a watcher delivering notifications to hook on the
// given loop. Release the watcher when the hook's target goes away;
// deliveries after release are silently dropped.
func NewWatcher(l *loop.Loop, hook Hook) *Watcher {
	w := &Watcher{hook: hook}
	w.handle = l.Register()
	w.notify = l.Bind(w.handle, func(...any) { w.emit() }, loop.CallQueued)
	return w
}

// SetFuture attaches the watcher to future. Watchers are single-use;
// a second call fails with ErrFutureAlreadySet.
func (w *Watcher) SetFuture(future *Future) error {
	w.mu.Lock()
	if w.future != nil {
		w.mu.Unlock()
		return ErrFutureAlreadySet
	}
	w.future = future
	w.mu.Unlock()

	future.AddDoneCallback(func(*Future) { w.notify() })
	return nil
}

// Future returns the watched future, nil when none was set.
func (w *Watcher) Future() *Future {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.future
}

// Result is a non-blocking probe of the watched future's result. It
// fails with ErrNotReady before completion.
func (w *Watcher) Result() (any, error) {
	f := w.Future()
	if f == nil {
		return nil, ErrNotReady
	}
	return f.Result(0)
}

// Err is a non-blocking probe of the watched future's error.
func (w *Watcher) Err() (error, error) {
	f := w.Future()
	if f == nil {
		return nil, ErrNotReady
	}
	return f.Err(0)
}

// Release drops the watcher's loop target. Pending notifications become
// silent no-ops.
func (w *Watcher) Release() {
	w.handle.Release()
}

// emit runs on the owner loop and inspects the terminal state exactly
// once.
func (w *Watcher) emit() {
	f := w.Future()
	if f == nil || w.hook == nil || !f.Done() {
		return
	}
	if f.Cancelled() {
		w.hook.OnCancelled(f)
		w.hook.OnDone(f)
		return
	}
	w.hook.OnFinished(f)
	w.hook.OnDone(f)
	if err, _ := f.Err(0); err != nil {
		w.hook.OnError(err)
		return
	}
	result, _ := f.Result(0)
	w.hook.OnResult(result)
}
