package loom

import (
	"context"
	"runtime"

	"github.com/casualjim/loom/executor"
	"github.com/casualjim/loom/loop"
	"github.com/fogfish/opts"
)

var (
	// WithWorkers sets the worker count of the runtime-owned pool. It is
	// ignored when a pool is injected with WithPool.
	WithWorkers = opts.ForName[Runtime, int]("workers")

	// WithQueueSize sets the owner loop's ingress queue capacity.
	WithQueueSize = opts.ForName[Runtime, int]("queueSize")

	// WithTracking controls whether the executor tracks outstanding
	// futures for Shutdown(wait=true).
	WithTracking = opts.ForName[Runtime, bool]("track")
)

// WithPool injects a shared worker pool instead of letting the runtime
// own one. The runtime will not stop an injected pool on shutdown.
func WithPool(pool executor.Pool) opts.Option[Runtime] {
	return opts.Type[Runtime](func(r *Runtime) error {
		r.pool = pool
		return nil
	})
}

// Runtime wires an owner loop, a worker pool and an executor together
// and runs the loop on a dedicated goroutine.
type Runtime struct {
	workers   int
	queueSize int
	track     bool
	pool      executor.Pool

	ownPool *executor.FixedPool
	loop    *loop.Loop
	exec    *executor.Executor
	cancel  context.CancelFunc
}

// New builds and starts a runtime. The owner loop begins processing
// events immediately.
func New(options ...opts.Option[Runtime]) (*Runtime, error) {
	r := &Runtime{
		workers:   runtime.NumCPU(),
		queueSize: 256,
		track:     true,
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}

	r.loop = loop.New(loop.WithQueueSize(r.queueSize))
	if r.pool == nil {
		r.ownPool = executor.NewFixedPool(r.workers)
		r.pool = r.ownPool
	}

	exec, err := executor.New(r.pool, r.loop, executor.WithTracking(r.track))
	if err != nil {
		if r.ownPool != nil {
			r.ownPool.Stop()
		}
		return nil, err
	}
	r.exec = exec

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() { _ = r.loop.Run(ctx) }()
	return r, nil
}

// Submit schedules fn(args...) on the worker pool and returns its
// future.
func (r *Runtime) Submit(fn any, args ...any) (*executor.Future, error) {
	return r.exec.Submit(fn, args...)
}

// Watch attaches a fresh completion watcher to future, delivering the
// hook's notifications on the owner loop. Release the watcher when the
// hook's target goes away.
func (r *Runtime) Watch(future *executor.Future, hook executor.Hook) (*executor.Watcher, error) {
	w := executor.NewWatcher(r.loop, hook)
	if err := w.SetFuture(future); err != nil {
		w.Release()
		return nil, err
	}
	return w, nil
}

// Scheduler returns the owner-loop scheduler, for wiring collaborators
// such as the materialize manager.
func (r *Runtime) Scheduler() loop.Scheduler { return r.loop }

// Loop returns the owner loop.
func (r *Runtime) Loop() *loop.Loop { return r.loop }

// Executor returns the underlying executor.
func (r *Runtime) Executor() *executor.Executor { return r.exec }

// Shutdown rejects new work, optionally waits for all tracked futures,
// stops the runtime-owned pool, and winds down the owner loop. Do not
// call with wait=true from the owner loop itself: waiting there for
// work that still needs an owner-loop callback deadlocks.
func (r *Runtime) Shutdown(ctx context.Context, wait bool) error {
	r.exec.Shutdown(wait)
	if r.ownPool != nil {
		r.ownPool.Stop()
	}
	err := r.loop.Shutdown(ctx)
	r.cancel()
	return err
}
