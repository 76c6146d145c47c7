package executor

import (
	"log/slog"
	"sync"

	"github.com/casualjim/loom/pkg/slogx"
)

// Pool abstracts the shared bounded worker pool that actually runs
// tasks. The executor hands runnables to a pool and never owns the
// workers, so multiple executors may share one pool.
type Pool interface {
	Start(run func())
}

// FixedPool runs work on a fixed number of worker goroutines fed from an
// unbounded backlog, so handing work to the pool never blocks the
// submitter.
type FixedPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	backlog []func()
	closed  bool
	wg      sync.WaitGroup
}

var _ Pool = &FixedPool{}

// NewFixedPool starts a pool with the given number of workers. At most
// that many runnables execute concurrently; the rest queue in submission
// order.
func NewFixedPool(workers int) *FixedPool {
	if workers < 1 {
		workers = 1
	}
	p := &FixedPool{}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Start enqueues run for execution by the next free worker. Runnables
// handed to a stopped pool are dropped with a warning.
func (p *FixedPool) Start(run func()) {
	if run == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		slog.Warn("runnable handed to a stopped pool, dropping", slogx.LoggerName("pool"))
		return
	}
	p.backlog = append(p.backlog, run)
	p.cond.Signal()
	p.mu.Unlock()
}

// Stop drains the backlog and waits for all workers to exit. Runnables
// already queued still execute.
func (p *FixedPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *FixedPool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.backlog) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.backlog) == 0 {
			p.mu.Unlock()
			return
		}
		run := p.backlog[0]
		p.backlog = p.backlog[1:]
		p.mu.Unlock()
		p.safeRun(run)
	}
}

// safeRun keeps a panicking runnable from taking the worker down with it.
func (p *FixedPool) safeRun(run func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pool worker", slogx.LoggerName("pool"), slog.Any("recovered", r))
		}
	}()
	run()
}
