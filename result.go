package loom

import (
	"time"

	"github.com/casualjim/loom/executor"
	"github.com/casualjim/loom/pkg/stdx"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// ResultAs returns the future's result as T, waiting up to timeout for
// completion (0 probes, negative waits indefinitely). A direct type
// assertion is tried first; a gjson.Result target is parsed from the
// value's JSON form; any other mismatch is bridged with a JSON round
// trip.
func ResultAs[T any](f *executor.Future, timeout time.Duration) (T, error) {
	v, err := f.Result(timeout)
	if err != nil {
		return stdx.Zero[T](), err
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	var t T
	if _, ok := any(t).(gjson.Result); ok {
		data, err := json.Marshal(v)
		if err != nil {
			return stdx.Zero[T](), err
		}
		return any(gjson.ParseBytes(data)).(T), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return stdx.Zero[T](), err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return stdx.Zero[T](), err
	}
	return t, nil
}
