package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/loom/pkg/slogx"
	"github.com/fogfish/opts"
)

var (
	// ErrAlreadyRunning is returned when Run is called on a loop that is
	// already being driven by another goroutine.
	ErrAlreadyRunning = errors.New("loop: already running")

	// ErrReentrantRun is returned when Run is called from an event that is
	// itself executing on the loop.
	ErrReentrantRun = errors.New("loop: cannot call Run from within the loop")

	// ErrClosed is returned when an operation requires a running loop but
	// the loop has been shut down.
	ErrClosed = errors.New("loop: closed")
)

// Scheduler is the capability consumers use to hand events to the owner
// loop. It is the injection point for every component in this module that
// must defer work onto the owner goroutine.
type Scheduler interface {
	// PostNow enqueues ev for execution on the owner loop.
	PostNow(ev func())
	// PostDelayed enqueues ev on the owner loop after delay has elapsed.
	PostDelayed(ev func(), delay time.Duration)
}

const defaultQueueSize = 256

// WithQueueSize configures the capacity of the loop's ingress queue.
var WithQueueSize = opts.ForName[Loop, int]("queueSize")

// Loop is a channel-fed, single-consumer event loop. One goroutine calls
// Run and becomes the owner; every posted event executes on that
// goroutine, in post order.
type Loop struct {
	queueSize int
	ingress   chan func()
	quit      chan struct{}
	done      chan struct{}
	targets   *haxmap.Map[string, struct{}]
	ownerGID  atomic.Uint64
	started   atomic.Bool
	stopOnce  sync.Once
}

// New creates a Loop. The loop does not process events until Run is
// called.
func New(options ...opts.Option[Loop]) *Loop {
	l := &Loop{
		queueSize: defaultQueueSize,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		targets:   haxmap.New[string, struct{}](),
	}
	if err := opts.Apply(l, options); err != nil {
		panic(err)
	}
	l.ingress = make(chan func(), l.queueSize)
	return l
}

var _ Scheduler = &Loop{}

// Run drives the loop on the calling goroutine until ctx is cancelled or
// Shutdown is called; either way the loop stops accepting posts. The
// calling goroutine becomes the owner for the duration of the run.
func (l *Loop) Run(ctx context.Context) error {
	if l.RunningOnLoop() {
		return ErrReentrantRun
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	l.ownerGID.Store(goroutineID())
	defer l.ownerGID.Store(0)
	defer close(l.done)

	for {
		select {
		case ev := <-l.ingress:
			l.dispatch(ev)
		case <-l.quit:
			l.drain()
			return nil
		case <-ctx.Done():
			// stop accepting posts, or senders would fill the ingress
			// buffer and block forever against a dead consumer
			l.stopOnce.Do(func() { close(l.quit) })
			return ctx.Err()
		}
	}
}

// drain executes events that were already queued when shutdown was
// initiated.
func (l *Loop) drain() {
	for {
		select {
		case ev := <-l.ingress:
			l.dispatch(ev)
		default:
			return
		}
	}
}

func (l *Loop) dispatch(ev func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in owner loop event", slogx.LoggerName("loop"), slog.Any("recovered", r))
		}
	}()
	ev()
}

// Shutdown stops the loop and waits for the owner goroutine to exit, or
// for ctx to expire. Events still queued at shutdown are executed;
// events posted afterwards are dropped.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.quit) })
	if !l.started.Load() {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PostNow enqueues ev for execution on the owner loop. Posting to a loop
// that has shut down is a best-effort no-op.
func (l *Loop) PostNow(ev func()) {
	if ev == nil {
		return
	}
	select {
	case <-l.quit:
		slog.Debug("dropping event posted after loop shutdown", slogx.LoggerName("loop"))
	case l.ingress <- ev:
	}
}

// PostDelayed enqueues ev on the owner loop once delay has elapsed. The
// relative order of two delayed events with distinct deadlines follows
// their deadlines, not their post order.
func (l *Loop) PostDelayed(ev func(), delay time.Duration) {
	if ev == nil {
		return
	}
	if delay <= 0 {
		l.PostNow(ev)
		return
	}
	time.AfterFunc(delay, func() { l.PostNow(ev) })
}

// RunningOnLoop reports whether the calling goroutine is the owner
// goroutine currently driving this loop.
func (l *Loop) RunningOnLoop() bool {
	gid := l.ownerGID.Load()
	return gid != 0 && gid == goroutineID()
}

// Flush blocks until every event posted before the call has executed, or
// the timeout expires. It is primarily useful in tests, as an analogue of
// flushing a posted-event queue.
func (l *Loop) Flush(timeout time.Duration) error {
	barrier := make(chan struct{})
	l.PostNow(func() { close(barrier) })
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-barrier:
		return nil
	case <-l.done:
		return ErrClosed
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

// goroutineID parses the current goroutine's id out of the runtime stack
// header. There is no supported API for goroutine identity; the header
// format has been stable since Go 1.0.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
