package slogx

import (
	"fmt"
	"log/slog"
	"time"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer creates a slog.Attr with the provided key and the string
// representation of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// Duration creates a slog.Attr with the duration rendered in its
// human-readable form rather than as raw nanoseconds.
func Duration(key string, value time.Duration) slog.Attr {
	return slog.String(key, value.String())
}

const (
	// KeyLoggerName is the attribute key identifying the component logger.
	KeyLoggerName = "logger"
)

// LoggerName returns an attribute for the component logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
