package executor

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

var (
	// ErrRejected is returned by Submit after shutdown has been initiated.
	ErrRejected = errors.New("executor: shut down, rejecting new tasks")

	// ErrNotReady is returned by zero-timeout probes on a future that has
	// not reached a terminal state yet.
	ErrNotReady = errors.New("executor: future is not done yet")

	// ErrCancelled is returned when probing the result of a cancelled
	// future.
	ErrCancelled = errors.New("executor: future was cancelled")

	// ErrFutureAlreadySet is returned by Watcher.SetFuture when the
	// watcher is already bound; watchers are single-use.
	ErrFutureAlreadySet = errors.New("executor: watcher future already set")
)

// TaskError captures a panic raised by a task's callable. The panic is
// confined to the worker boundary and surfaces only through the future's
// error slot.
type TaskError struct {
	FutureID  uuid.UUID
	Recovered any
	Timestamp strfmt.DateTime
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task for future %s panicked: %v", e.FutureID, e.Recovered)
}
