// Package loop implements the owner-thread event loop at the heart of loom.
//
// A single goroutine (the "owner") drains a queue of events, giving every
// consumer callback a serialized, single-threaded execution context. Any
// goroutine may hand work to the owner through the Scheduler interface:
//
//   - PostNow enqueues an event for the next loop iteration
//   - PostDelayed enqueues an event after a fixed delay
//
// On top of the raw queue the package provides cross-thread invocation:
// a target registers for a Handle, and Bind produces a callable that is
// safe to call from any goroutine. The callable marshals its arguments
// and requests execution on the owner loop. Delivery modes:
//
//   - CallQueued: enqueue and return immediately
//   - CallBlocking: enqueue and wait for the call to have executed
//   - CallDirect: execute inline when already on the owner loop
//
// The Handle keeps only a non-owning reference to its target. Once the
// handle is released, pending and future deliveries become silent no-ops.
// Liveness is re-checked immediately before each delivery.
package loop
