// Package logging writes structured JSON run logs through log/slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// FileName is the log file created inside a run directory.
const FileName = "debug.log"

// Logger is safe for concurrent use. Child loggers share the parent's file.
type Logger struct {
	logger *slog.Logger
	sink   *sink
}

type sink struct {
	mu   sync.Mutex
	file *os.File
}

// New opens {runDir}/debug.log for appending. An empty runDir logs to stderr.
func New(runDir, level string) (*Logger, error) {
	var w io.Writer = os.Stderr
	var file *os.File
	if runDir != "" {
		if err := os.MkdirAll(runDir, 0o700); err != nil {
			return nil, fmt.Errorf("logging: create run dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(runDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		file, w = f, f
	}
	l := NewWriter(w, level)
	l.sink.file = file
	return l, nil
}

// NewWriter logs to an arbitrary writer.
func NewWriter(w io.Writer, level string) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: toSlog(level)})
	return &Logger{logger: slog.New(h), sink: &sink{}}
}

// Nop discards everything.
func Nop() *Logger {
	return NewWriter(io.Discard, LevelError)
}

// With returns a child logger carrying extra key/value attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), sink: l.sink}
}

// WithRun tags every entry with the run ID.
func (l *Logger) WithRun(runID string) *Logger { return l.With("run_id", runID) }

// WithPhase tags every entry with the phase label.
func (l *Logger) WithPhase(label string) *Logger { return l.With("phase", label) }

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Close syncs and closes the log file, if any. Closing a child closes the
// shared file.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	f := l.sink.file
	if f == nil {
		return nil
	}
	l.sink.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("logging: sync: %w", err)
	}
	return f.Close()
}

// ValidLevel reports whether level names a known level (case-insensitive).
func ValidLevel(level string) bool {
	switch strings.ToUpper(level) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

func toSlog(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
