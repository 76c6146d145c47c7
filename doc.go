/*
Package loom executes work on background worker goroutines while
guaranteeing that all result-consuming logic runs exclusively on one
designated owner goroutine driving a cooperative event loop.

Callers fire-and-forget a computation, later probe or block for its
result, cancel it before it starts, and receive completion notifications
that are delivered back onto the owner loop regardless of which
goroutine finished the work.

The building blocks live in their own packages:

  - loop: the owner-loop Scheduler, and cross-thread invocation with
    queued, blocking, and direct delivery modes
  - executor: Future, Task, the pool-backed Executor, and the
    completion Watcher
  - materialize: deferred construction of expensive per-entity objects

This package ties them together behind a Runtime:

	rt, err := loom.New(loom.WithWorkers(4))
	if err != nil {
		// handle error
	}
	defer rt.Shutdown(context.Background(), true)

	f, err := rt.Submit(func(x int) int { return x * x }, 7)
	if err != nil {
		// handle error
	}
	result, err := loom.ResultAs[int](f, -1) // 49

Completion notifications arrive in a fixed order on the owner loop:

	w, _ := rt.Watch(f, executor.HookFuncs{
		Finished: func(*executor.Future) { fmt.Println("finished") },
		Done:     func(*executor.Future) { fmt.Println("done") },
		Result:   func(v any) { fmt.Println("result:", v) },
	})
	defer w.Release()

Cancellation is cooperative: it succeeds only while the future is still
pending, and a cancelled task is never started at all.
*/
package loom
