package executor

import (
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/casualjim/loom/pkg/slogx"
	"github.com/go-openapi/strfmt"
)

// Task binds a callable and its positional arguments to the Future it
// will fulfil. The executor owns the task until it is handed to a worker;
// the worker owns it for the duration of execution.
type Task struct {
	future *Future
	fn     reflect.Value
	args   []any
}

// NewTask validates fn and wraps it with its arguments and future. fn
// must be a function; its trailing error return, if any, is captured into
// the future's error slot and the first remaining return value becomes
// the result. Any further return values are discarded.
func NewTask(future *Future, fn any, args ...any) (*Task, error) {
	if future == nil {
		return nil, fmt.Errorf("task requires a future")
	}
	val := reflect.ValueOf(fn)
	if !val.IsValid() || val.Kind() != reflect.Func {
		return nil, fmt.Errorf("task callable must be a function, got %T", fn)
	}
	return &Task{future: future, fn: val, args: args}, nil
}

// Future returns the future this task fulfils.
func (t *Task) Future() *Future { return t.future }

// Run executes the task on the calling goroutine, typically a pool
// worker. A future cancelled before the worker got to it aborts here
// without invoking the callable. No error or panic escapes.
func (t *Task) Run() {
	if !t.future.TryStartRunning() {
		return
	}
	result, err := t.call()
	if err != nil {
		err = t.wrapPanic(err)
		if serr := t.future.SetError(err); serr != nil {
			slog.Error("failed to store task error",
				slogx.LoggerName("executor"), slogx.Stringer("state", t.future.State()), slogx.Error(serr))
		}
		return
	}
	if serr := t.future.SetResult(result); serr != nil {
		slog.Error("failed to store task result",
			slogx.LoggerName("executor"), slogx.Stringer("state", t.future.State()), slogx.Error(serr))
	}
}

type panicError struct{ recovered any }

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.recovered) }

func (t *Task) wrapPanic(err error) error {
	if p, ok := err.(*panicError); ok { //nolint: errorlint
		return &TaskError{
			FutureID:  t.future.ID(),
			Recovered: p.recovered,
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}
	return err
}

// call invokes the callable with the bound arguments, converting each
// argument to the corresponding parameter type where possible.
func (t *Task) call() (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &panicError{recovered: r}
		}
	}()

	vtpe := t.fn.Type()
	if vtpe.IsVariadic() {
		if len(t.args) < vtpe.NumIn()-1 {
			return nil, fmt.Errorf("task callable wants at least %d args, got %d", vtpe.NumIn()-1, len(t.args))
		}
	} else if len(t.args) != vtpe.NumIn() {
		return nil, fmt.Errorf("task callable wants %d args, got %d", vtpe.NumIn(), len(t.args))
	}

	callArgs := make([]reflect.Value, len(t.args))
	for i, arg := range t.args {
		paramType := paramTypeAt(vtpe, i)
		if arg == nil {
			callArgs[i] = reflect.Zero(paramType)
			continue
		}
		av := reflect.ValueOf(arg)
		if av.Type() != paramType && av.Type().ConvertibleTo(paramType) {
			av = av.Convert(paramType)
		}
		callArgs[i] = av
	}

	results := t.fn.Call(callArgs)
	return splitResults(results)
}

func paramTypeAt(fn reflect.Type, i int) reflect.Type {
	if fn.IsVariadic() && i >= fn.NumIn()-1 {
		return fn.In(fn.NumIn() - 1).Elem()
	}
	return fn.In(i)
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// splitResults maps the callable's return values onto (result, error).
// A trailing error return is surfaced as the task error; the first
// remaining value, if any, becomes the result.
func splitResults(results []reflect.Value) (any, error) {
	if len(results) == 0 {
		return nil, nil
	}
	last := results[len(results)-1]
	if last.Type().Implements(errType) {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		results = results[:len(results)-1]
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Interface(), nil
}
