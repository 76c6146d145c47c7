// Package executor runs callables on a shared worker pool while keeping
// every result-consuming callback on the owner loop.
//
// The building blocks:
//
//   - Future: a single-assignment result cell with a terminal state
//     (Finished or Cancelled) and an ordered done-callback list. Done
//     callbacks are always delivered asynchronously through the owner
//     loop, also when they are registered after the future is already
//     terminal. This keeps notification ordering deterministic and rules
//     out reentrancy into the caller's stack.
//   - Task: a callable bound to its arguments and the Future it will
//     fulfil. A worker gates execution on TryStartRunning, so a future
//     cancelled while still pending aborts before the callable runs.
//   - Executor: accepts work, wraps it into tasks, hands them to an
//     injected Pool and tracks outstanding futures so that
//     Shutdown(wait=true) can block until they are all terminal. The
//     executor never owns worker goroutines; the pool is a shared,
//     opaque resource.
//   - Watcher: binds to exactly one future and re-emits its terminal
//     state as an ordered notification sequence on the owner loop:
//     cancelled, done for a cancelled future; finished, done, then
//     exactly one of error or result otherwise.
//
// Failure isolation: a panic inside a callable is captured at the task
// boundary as a TaskError and stored in the future's error slot. Nothing
// ever propagates across the worker boundary uncaught; failures surface
// only when the submitter probes Result/Err or receives the watcher's
// error notification.
package executor
