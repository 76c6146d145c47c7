package loop

import (
	"github.com/casualjim/loom/pkg/uuidx"
)

// CallMode selects how a bound cross-thread call is delivered to the
// owner loop.
type CallMode int

const (
	// CallQueued enqueues the call and returns immediately. The owner
	// loop must be running for the call to ever execute.
	CallQueued CallMode = iota
	// CallBlocking enqueues the call and blocks the caller until it has
	// executed. When the caller already is the owner goroutine the call
	// executes inline instead, since waiting on the loop from the loop
	// would deadlock.
	CallBlocking
	// CallDirect executes the call inline when the caller already is the
	// owner goroutine, and falls back to queued delivery otherwise.
	CallDirect
)

// Handle is a non-owning reference to a target living on the owner loop.
// Releasing the handle turns every pending and future delivery into a
// silent no-op.
type Handle struct {
	id   string
	loop *Loop
}

// Register allocates a live target handle on the loop.
func (l *Loop) Register() Handle {
	id := uuidx.NewString()
	l.targets.Set(id, struct{}{})
	return Handle{id: id, loop: l}
}

// Release marks the target as gone. Idempotent.
func (h Handle) Release() {
	if h.loop != nil {
		h.loop.targets.Del(h.id)
	}
}

// Alive reports whether the target has not been released.
func (h Handle) Alive() bool {
	if h.loop == nil {
		return false
	}
	_, ok := h.loop.targets.Get(h.id)
	return ok
}

// Bind produces a callable that is safe to invoke from any goroutine. The
// callable captures its arguments and requests execution of fn on the
// owner loop according to mode. It reports false when the target was
// already released at call time; a target released while the call is in
// flight is checked again immediately before delivery and dropped
// silently.
func (l *Loop) Bind(h Handle, fn func(args ...any), mode CallMode) func(args ...any) bool {
	return func(args ...any) bool {
		if !h.Alive() {
			return false
		}
		call := func() {
			if !h.Alive() {
				return
			}
			fn(args...)
		}
		switch mode {
		case CallDirect:
			if l.RunningOnLoop() {
				call()
				return true
			}
			l.PostNow(call)
		case CallBlocking:
			if l.RunningOnLoop() {
				call()
				return true
			}
			executed := make(chan struct{})
			l.PostNow(func() {
				defer close(executed)
				call()
			})
			select {
			case <-executed:
			case <-l.quit:
				return false
			}
		default:
			l.PostNow(call)
		}
		return true
	}
}
