// Package observability defines shared logging primitives.
package observability

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

type loggerHolder struct {
	logger Logger
}

var defaultLogger atomic.Pointer[loggerHolder]

func init() {
	defaultLogger.Store(&loggerHolder{logger: noopLogger{}})
}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger.Store(&loggerHolder{logger: noopLogger{}})
		return
	}
	defaultLogger.Store(&loggerHolder{logger: logger})
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger.Load().logger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// StdLogger renders structured entries through a standard library logger as
// "LEVEL msg key=value ..." lines.
type StdLogger struct {
	out   *log.Logger
	debug bool
}

// NewStdLogger wraps out. Debug entries are dropped unless verbose is set.
func NewStdLogger(out *log.Logger, verbose bool) *StdLogger {
	return &StdLogger{out: out, debug: verbose}
}

// Debug logs a debug entry when verbose output is enabled.
func (l *StdLogger) Debug(msg string, fields ...Field) {
	if !l.debug {
		return
	}
	l.emit("DEBUG", msg, fields)
}

// Info logs an informational entry.
func (l *StdLogger) Info(msg string, fields ...Field) { l.emit("INFO", msg, fields) }

// Error logs an error entry.
func (l *StdLogger) Error(msg string, fields ...Field) { l.emit("ERROR", msg, fields) }

func (l *StdLogger) emit(level, msg string, fields []Field) {
	if l == nil || l.out == nil {
		return
	}
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(f.Value))
	}
	l.out.Print(b.String())
}

func formatValue(v any) string {
	switch typed := v.(type) {
	case string:
		if strings.ContainsAny(typed, " \t\n\"") {
			return fmt.Sprintf("%q", typed)
		}
		return typed
	case error:
		return fmt.Sprintf("%q", typed.Error())
	default:
		return fmt.Sprint(typed)
	}
}
