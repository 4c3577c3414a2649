// Package engine executes subtask graphs: it walks the dependency frontier,
// evaluates branch conditions, runs each subtask through a model fallback
// chain, and reduces the results to a single answer.
package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// pkgLogger is used by engine code that is not handed a logger.
var pkgLogger atomic.Pointer[DebugLogger]

// SetPackageLogger sets the logger used by components that are not handed one.
// Passing nil silences them.
func SetPackageLogger(l *DebugLogger) {
	pkgLogger.Store(l)
}

func debugLog(format string, args ...interface{}) {
	pkgLogger.Load().Log(format, args...)
}

// logTimeLayout prefixes every line.
const logTimeLayout = "15:04:05.000"

// DebugLogger writes timestamped lines to a file. It is safe for concurrent
// use. A nil logger, or one without a destination, discards everything.
type DebugLogger struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewDebugLogger opens path for appending, creating parent directories as
// needed. An empty path yields a logger that discards everything.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return NopLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{w: f, c: f}
	l.Log("=== jit debug log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriterLogger logs to w. Close leaves w open.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: w}
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log formats and writes one line.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format(logTimeLayout)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	fmt.Fprintf(l.w, "[%s] %s\n", ts, msg)
	if f, ok := l.w.(*os.File); ok {
		f.Sync()
	}
}

// Func adapts the logger to the SetDebugLog signature used by other packages.
func (l *DebugLogger) Func() func(format string, args ...interface{}) {
	return l.Log
}

// Close closes the log file, if the logger opened one. Later calls to Log
// are dropped.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.c
	l.w, l.c = nil, nil
	if c == nil {
		return nil
	}
	return c.Close()
}
