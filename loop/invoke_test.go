package loop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindQueued(t *testing.T) {
	t.Run("delivers on the owner loop with marshalled args", func(t *testing.T) {
		l := startLoop(t)
		h := l.Register()
		defer h.Release()

		type delivery struct {
			onLoop bool
			args   []any
		}
		got := make(chan delivery, 1)
		call := l.Bind(h, func(args ...any) {
			got <- delivery{onLoop: l.RunningOnLoop(), args: args}
		}, CallQueued)

		assert.True(t, call(1, "two"))

		select {
		case d := <-got:
			assert.True(t, d.onLoop, "delivery happened off the owner loop")
			assert.Equal(t, []any{1, "two"}, d.args)
		case <-time.After(time.Second):
			t.Fatal("call was never delivered")
		}
	})

	t.Run("released target is a silent no-op", func(t *testing.T) {
		l := startLoop(t)
		h := l.Register()

		call := l.Bind(h, func(...any) { t.Error("delivered to a released target") }, CallQueued)
		h.Release()

		assert.False(t, call())
		require.NoError(t, l.Flush(time.Second))
	})

	t.Run("target released while in flight is dropped", func(t *testing.T) {
		l := startLoop(t)
		h := l.Register()

		call := l.Bind(h, func(...any) { t.Error("delivered to a released target") }, CallQueued)

		// stall the loop so the delivery stays queued while we release
		gate := make(chan struct{})
		l.PostNow(func() { <-gate })
		assert.True(t, call())
		h.Release()
		close(gate)

		require.NoError(t, l.Flush(time.Second))
	})
}

func TestBindBlocking(t *testing.T) {
	t.Run("caller observes the effect on return", func(t *testing.T) {
		l := startLoop(t)
		h := l.Register()
		defer h.Release()

		var mu sync.Mutex
		ran := false
		call := l.Bind(h, func(...any) {
			mu.Lock()
			ran = true
			mu.Unlock()
		}, CallBlocking)

		assert.True(t, call())

		mu.Lock()
		defer mu.Unlock()
		assert.True(t, ran)
	})

	t.Run("executes inline when already on the loop", func(t *testing.T) {
		l := startLoop(t)
		h := l.Register()
		defer h.Release()

		ran := false
		call := l.Bind(h, func(...any) { ran = true }, CallBlocking)

		done := make(chan bool, 1)
		l.PostNow(func() {
			call()
			done <- ran
		})

		select {
		case got := <-done:
			assert.True(t, got, "blocking call from the loop must execute inline")
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	})
}

func TestBindDirect(t *testing.T) {
	t.Run("inline on the owner loop", func(t *testing.T) {
		l := startLoop(t)
		h := l.Register()
		defer h.Release()

		ran := false
		call := l.Bind(h, func(...any) { ran = true }, CallDirect)

		done := make(chan bool, 1)
		l.PostNow(func() {
			call()
			done <- ran
		})

		select {
		case got := <-done:
			assert.True(t, got)
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	})

	t.Run("queued when off the owner loop", func(t *testing.T) {
		l := startLoop(t)
		h := l.Register()
		defer h.Release()

		ran := make(chan struct{})
		call := l.Bind(h, func(...any) { close(ran) }, CallDirect)

		assert.True(t, call())
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatal("direct call off the loop was never delivered")
		}
	})
}

func TestHandleAlive(t *testing.T) {
	l := startLoop(t)

	h := l.Register()
	assert.True(t, h.Alive())
	h.Release()
	assert.False(t, h.Alive())
	// releasing twice is fine
	h.Release()

	var zero Handle
	assert.False(t, zero.Alive())
}
