package materialize

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/loom/executor"
	"github.com/casualjim/loom/loop"
	"github.com/casualjim/loom/pkg/slogx"
	"github.com/casualjim/loom/pkg/stdx"
	"github.com/fogfish/opts"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Factory supplies the build and dispose capabilities for the managed
// objects. Build runs on the owner loop; Dispose must be non-blocking.
type Factory[T comparable] interface {
	Build(key string) (T, error)
	Dispose(obj T)
}

// Hook receives object lifecycle notifications, on the owner loop.
type Hook[T comparable] interface {
	// OnAdded fires right after an object was built and registered.
	OnAdded(key string, obj T)
	// OnRemoved fires while the object is still valid, before disposal.
	OnRemoved(key string, obj T)
}

// HookFuncs adapts plain functions to the Hook interface. Nil fields are
// skipped.
type HookFuncs[T comparable] struct {
	Added   func(key string, obj T)
	Removed func(key string, obj T)
}

func (h HookFuncs[T]) OnAdded(key string, obj T) {
	if h.Added != nil {
		h.Added(key, obj)
	}
}

func (h HookFuncs[T]) OnRemoved(key string, obj T) {
	if h.Removed != nil {
		h.Removed(key, obj)
	}
}

// initState is the per-entity lifecycle state: delayed or materialized,
// never both. The interface is sealed so state handling stays an
// exhaustive type switch.
type initState[T comparable] interface {
	isInitState()
}

// delayed marks an entity whose object has not been built yet. The
// future completes with the object, or is cancelled when the entity is
// unregistered first.
type delayed[T comparable] struct {
	key    string
	future *executor.Future
}

func (delayed[T]) isInitState() {}

// materialized marks an entity whose object was built and registered.
type materialized[T comparable] struct {
	key string
	obj T
}

func (materialized[T]) isInitState() {}

// A frame at 30fps plus a margin, matching a "build when the loop went
// idle" cadence without starving interactive events.
const defaultInitDelay = time.Second/30 + 10*time.Millisecond

// WithDelayedInit toggles the delayed-build policy. When disabled,
// Register builds synchronously.
func WithDelayedInit[T comparable](enabled bool) opts.Option[Manager[T]] {
	return opts.Type[Manager[T]](func(m *Manager[T]) error {
		m.delayedInit = enabled
		return nil
	})
}

// WithInitDelay overrides the delay before a registered entity's
// scheduled build fires.
func WithInitDelay[T comparable](delay time.Duration) opts.Option[Manager[T]] {
	return opts.Type[Manager[T]](func(m *Manager[T]) error {
		m.initDelay = delay
		return nil
	})
}

// WithHook installs the lifecycle notification hook.
func WithHook[T comparable](hook Hook[T]) opts.Option[Manager[T]] {
	return opts.Type[Manager[T]](func(m *Manager[T]) error {
		m.hook = hook
		return nil
	})
}

// Manager owns the lifecycle of one object per entity key. All methods
// must run on the owner loop.
type Manager[T comparable] struct {
	sched       loop.Scheduler
	factory     Factory[T]
	hook        Hook[T]
	delayedInit bool
	initDelay   time.Duration

	states    *orderedmap.OrderedMap[string, initState[T]]
	keyForObj map[T]string
}

// NewManager creates a manager building objects with factory and
// scheduling deferred builds through sched.
func NewManager[T comparable](sched loop.Scheduler, factory Factory[T], options ...opts.Option[Manager[T]]) (*Manager[T], error) {
	var err error
	if sched == nil {
		err = errors.Join(err, errors.New("scheduler is required"))
	}
	if factory == nil {
		err = errors.Join(err, errors.New("factory is required"))
	}
	if err != nil {
		return nil, err
	}

	m := &Manager[T]{
		sched:       sched,
		factory:     factory,
		delayedInit: true,
		initDelay:   defaultInitDelay,
		states:      orderedmap.New[string, initState[T]](),
		keyForObj:   make(map[T]string),
	}
	if err := opts.Apply(m, options); err != nil {
		return nil, err
	}
	return m, nil
}

// Register tracks a new entity key and schedules its deferred build.
// With the delayed-init policy disabled the object is built
// synchronously instead.
func (m *Manager[T]) Register(key string) error {
	if _, ok := m.states.Get(key); ok {
		return fmt.Errorf("materialize: entity %q already registered", key)
	}
	future := executor.NewFuture(m.sched)
	m.states.Set(key, delayed[T]{key: key, future: future})

	if !m.delayedInit {
		_, err := m.materialize(key, future)
		return err
	}

	m.sched.PostDelayed(func() {
		// No-op when the entity was fetched via Get or unregistered
		// before the delay elapsed.
		if future.Done() {
			return
		}
		current, ok := m.states.Get(key)
		if !ok {
			return
		}
		if d, ok := current.(delayed[T]); !ok || d.future != future {
			return
		}
		if _, err := m.materialize(key, future); err != nil {
			slog.Error("deferred build failed",
				slogx.LoggerName("materialize"), slog.String("entity", key), slogx.Error(err))
		}
	}, m.initDelay)
	return nil
}

// Get returns the entity's object, building it synchronously when it is
// still in the delayed state. The later-firing scheduled build then
// becomes a no-op.
func (m *Manager[T]) Get(key string) (T, error) {
	state, ok := m.states.Get(key)
	if !ok {
		return stdx.Zero[T](), fmt.Errorf("materialize: unknown entity %q", key)
	}
	switch state := state.(type) {
	case delayed[T]:
		return m.materialize(key, state.future)
	case materialized[T]:
		return state.obj, nil
	default:
		panic(fmt.Sprintf("materialize: unknown init state %T", state))
	}
}

// Unregister discards the entity. A delayed entity has its future
// cancelled and its object is never built; a materialized entity emits
// OnRemoved while the object is still valid, then the object is disposed
// of.
func (m *Manager[T]) Unregister(key string) error {
	state, ok := m.states.Get(key)
	if !ok {
		return fmt.Errorf("materialize: unknown entity %q", key)
	}
	switch state := state.(type) {
	case delayed[T]:
		state.future.Cancel()
		m.states.Delete(key)
	case materialized[T]:
		if m.hook != nil {
			m.hook.OnRemoved(key, state.obj)
		}
		m.states.Delete(key)
		delete(m.keyForObj, state.obj)
		m.factory.Dispose(state.obj)
	default:
		panic(fmt.Sprintf("materialize: unknown init state %T", state))
	}
	return nil
}

// KeyFor returns the entity key for an already materialized object.
func (m *Manager[T]) KeyFor(obj T) (string, bool) {
	key, ok := m.keyForObj[obj]
	return key, ok
}

// Keys returns the tracked entity keys in registration order.
func (m *Manager[T]) Keys() []string {
	keys := make([]string, 0, m.states.Len())
	for pair := m.states.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of tracked entities.
func (m *Manager[T]) Len() int {
	return m.states.Len()
}

// Close unregisters every tracked entity, in registration order.
func (m *Manager[T]) Close() {
	for _, key := range m.Keys() {
		if err := m.Unregister(key); err != nil {
			slog.Error("failed to unregister entity",
				slogx.LoggerName("materialize"), slog.String("entity", key), slogx.Error(err))
		}
	}
}

// materialize performs the one-time build for a delayed entity. All
// construction side effects live here: the reverse lookup registration,
// the future fulfilment, and the added notification.
func (m *Manager[T]) materialize(key string, future *executor.Future) (T, error) {
	obj, err := m.factory.Build(key)
	if err != nil {
		// discard the state so the key can be registered again
		m.states.Delete(key)
		if future.TryStartRunning() {
			_ = future.SetError(err)
		}
		return stdx.Zero[T](), err
	}

	m.states.Set(key, materialized[T]{key: key, obj: obj})
	m.keyForObj[obj] = key
	if future.TryStartRunning() {
		_ = future.SetResult(obj)
	}
	if m.hook != nil {
		m.hook.OnAdded(key, obj)
	}
	return obj, nil
}
