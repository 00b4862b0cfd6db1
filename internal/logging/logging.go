// Package logging provides the structured logging contract shared by every
// tcprest-go subsystem. Nothing in this package depends on a concrete
// logging backend; StdLogger wraps the standard library logger so the
// framework works out of the box, but callers are free to inject their own.
package logging

import (
	"log"
	"os"
)

// Logger is the canonical logging protocol for tcprest-go.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// Bind returns a Logger that prepends the given key/value pairs to
	// every subsequent call. Used to attach a connection or request ID to
	// a whole call chain without threading it through every signature.
	Bind(keysAndValues ...any) Logger
}

// StdLogger implements Logger on top of the standard library's *log.Logger.
type StdLogger struct {
	out    *log.Logger
	fields []any
}

// NewStdLogger returns a StdLogger writing to stderr with a time-stamped prefix.
func NewStdLogger() *StdLogger {
	return &StdLogger{out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *StdLogger) Debug(msg string, keysAndValues ...any) { l.write("DEBUG", msg, keysAndValues) }
func (l *StdLogger) Info(msg string, keysAndValues ...any)  { l.write("INFO", msg, keysAndValues) }
func (l *StdLogger) Warn(msg string, keysAndValues ...any)  { l.write("WARN", msg, keysAndValues) }
func (l *StdLogger) Error(msg string, keysAndValues ...any) { l.write("ERROR", msg, keysAndValues) }

func (l *StdLogger) Bind(keysAndValues ...any) Logger {
	combined := make([]any, 0, len(l.fields)+len(keysAndValues))
	combined = append(combined, l.fields...)
	combined = append(combined, keysAndValues...)
	return &StdLogger{out: l.out, fields: combined}
}

func (l *StdLogger) write(level, msg string, extra []any) {
	all := make([]any, 0, len(l.fields)+len(extra))
	all = append(all, l.fields...)
	all = append(all, extra...)
	l.out.Printf("[%s] %s %v", level, msg, all)
}

// Noop returns a Logger that discards everything. Useful in tests that
// don't care about log output but must satisfy a constructor signature.
func Noop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)   {}
func (noopLogger) Info(string, ...any)    {}
func (noopLogger) Warn(string, ...any)    {}
func (noopLogger) Error(string, ...any)   {}
func (noopLogger) Bind(...any) Logger     { return noopLogger{} }
