// Package logx is the process-wide structured logger, backed by zerolog.
package logx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Fields are structured key/values attached to an entry.
type Fields map[string]any

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, "console")
)

func newLogger(w io.Writer, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(toZerolog(l))
}

// SetOutput replaces the sink. format is "json" or "console".
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	lvl := logger.GetLevel()
	logger = newLogger(w, format).Level(lvl)
}

// ParseLevel maps a LOG_LEVEL string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Entry is a logger with fields attached.
type Entry struct {
	fields Fields
}

func WithFields(f Fields) *Entry {
	return &Entry{fields: f}
}

func WithField(key string, value any) *Entry {
	return &Entry{fields: Fields{key: value}}
}

func (e *Entry) WithField(key string, value any) *Entry {
	f := make(Fields, len(e.fields)+1)
	for k, v := range e.fields {
		f[k] = v
	}
	f[key] = value
	return &Entry{fields: f}
}

func (e *Entry) event(lvl zerolog.Level) *zerolog.Event {
	l := current()
	ev := l.WithLevel(lvl)
	if ev == nil || l.GetLevel() > lvl {
		return nil
	}
	if len(e.fields) > 0 {
		ev = ev.Fields(map[string]any(e.fields))
	}
	return ev
}

func (e *Entry) Debug(msg string)                  { send(e.event(zerolog.DebugLevel), msg) }
func (e *Entry) Debugf(format string, args ...any) { send(e.event(zerolog.DebugLevel), fmt.Sprintf(format, args...)) }
func (e *Entry) Info(msg string)                   { send(e.event(zerolog.InfoLevel), msg) }
func (e *Entry) Infof(format string, args ...any)  { send(e.event(zerolog.InfoLevel), fmt.Sprintf(format, args...)) }
func (e *Entry) Warn(msg string)                   { send(e.event(zerolog.WarnLevel), msg) }
func (e *Entry) Warnf(format string, args ...any)  { send(e.event(zerolog.WarnLevel), fmt.Sprintf(format, args...)) }
func (e *Entry) Error(msg string)                  { send(e.event(zerolog.ErrorLevel), msg) }
func (e *Entry) Errorf(format string, args ...any) { send(e.event(zerolog.ErrorLevel), fmt.Sprintf(format, args...)) }

func send(ev *zerolog.Event, msg string) {
	if ev != nil {
		ev.Msg(msg)
	}
}

var std = &Entry{}

func Debug(msg string)                  { std.Debug(msg) }
func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Info(msg string)                   { std.Info(msg) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warn(msg string)                   { std.Warn(msg) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Error(msg string)                  { std.Error(msg) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }

func Fatal(msg string) {
	l := current()
	l.Fatal().Msg(msg)
}

func Fatalf(format string, args ...any) {
	l := current()
	l.Fatal().Msgf(format, args...)
}
