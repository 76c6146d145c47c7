package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/loom/loop"
	"github.com/stretchr/testify/require"
)

// manualScheduler records posted events so tests can drain them at a
// deterministic point, standing in for a running owner loop.
type manualScheduler struct {
	mu      sync.Mutex
	now     []func()
	delayed []func()
}

func (s *manualScheduler) PostNow(ev func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = append(s.now, ev)
}

func (s *manualScheduler) PostDelayed(ev func(), _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayed = append(s.delayed, ev)
}

// runAll drains the immediate queue, including events posted while
// draining, and reports how many events ran.
func (s *manualScheduler) runAll() int {
	ran := 0
	for {
		s.mu.Lock()
		if len(s.now) == 0 {
			s.mu.Unlock()
			return ran
		}
		ev := s.now[0]
		s.now = s.now[1:]
		s.mu.Unlock()
		ev()
		ran++
	}
}

// pendingNow reports the number of queued immediate events.
func (s *manualScheduler) pendingNow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.now)
}

// startLoop runs a real owner loop for tests that exercise cross-thread
// delivery.
func startLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New()
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
	})
	require.NoError(t, l.Flush(time.Second))
	return l
}

// recordingHook appends every notification to a shared sequence slice.
type recordingHook struct {
	mu  sync.Mutex
	seq []string
}

func (h *recordingHook) append(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq = append(h.seq, s)
}

func (h *recordingHook) sequence() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.seq))
	copy(out, h.seq)
	return out
}

func (h *recordingHook) OnCancelled(*Future) { h.append("cancelled") }
func (h *recordingHook) OnFinished(*Future)  { h.append("finished") }
func (h *recordingHook) OnDone(*Future)      { h.append("done") }
func (h *recordingHook) OnResult(any)        { h.append("result") }
func (h *recordingHook) OnError(error)       { h.append("error") }
