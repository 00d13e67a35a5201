// Package logging provides structured console and file logging for maildirwatch.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
)

// Logger is the structured logging interface.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)
	// Info logs an informational message.
	Info(msg string, args ...any)
	// Warn logs a warning message.
	Warn(msg string, args ...any)
	// Error logs an error message.
	Error(msg string, args ...any)
	// With returns a new logger with additional key-value pairs.
	With(args ...any) Logger
	// Shutdown flushes any buffered logs and releases resources.
	Shutdown() error
}

// loggerImpl fans records out to a console logger and an optional file logger.
type loggerImpl struct {
	mu       sync.RWMutex
	console  *clog.Logger
	file     *clog.Logger
	out      *os.File
	redactor *redactor
	fields   []any
	path     string
}

// Init creates a Logger from cfg. The console sink is always active; the
// JSON file sink only when cfg.FileEnabled is set.
func Init(cfg Config) (Logger, error) {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	level := parseLevel(cfg.Level)
	l := &loggerImpl{
		console: clog.NewWithOptions(console, clog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Level:           level,
			Prefix:          cfg.Command,
		}),
		redactor: newRedactor(),
	}
	if !cfg.FileEnabled {
		return l, nil
	}

	logDir := cfg.Dir
	if logDir == "" {
		var err error
		if logDir, err = LogDir(cfg.StateDir); err != nil {
			return nil, fmt.Errorf("failed to determine log directory: %w", err)
		}
	}
	if err := rotate(logDir, cfg.MaxFiles); err != nil {
		// Non-fatal; report on the console and continue
		l.console.Warn("log rotation failed", "dir", logDir, "err", err)
	}
	fname := fmt.Sprintf("%s%s_PID%d.log", filePrefix, time.Now().Format("20060102_150405"), cfg.PID)
	path := filepath.Join(logDir, fname)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	fileLogger := clog.NewWithOptions(f, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Level:           level,
	})
	fileLogger.SetFormatter(clog.JSONFormatter)
	l.file = fileLogger.With("pid", cfg.PID)
	l.out = f
	l.path = path
	return l, nil
}

// parseLevel converts a string level to clog.Level.
func parseLevel(level string) clog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return clog.DebugLevel
	case "info":
		return clog.InfoLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

func (l *loggerImpl) Debug(msg string, args ...any) { l.log(clog.DebugLevel, msg, args) }
func (l *loggerImpl) Info(msg string, args ...any)  { l.log(clog.InfoLevel, msg, args) }
func (l *loggerImpl) Warn(msg string, args ...any)  { l.log(clog.WarnLevel, msg, args) }
func (l *loggerImpl) Error(msg string, args ...any) { l.log(clog.ErrorLevel, msg, args) }

// log writes a record to every sink with redaction applied to the key-value pairs.
func (l *loggerImpl) log(level clog.Level, msg string, args []any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := make([]any, 0, len(l.fields)+len(args))
	all = append(all, l.fields...)
	all = append(all, args...)
	redacted := l.redactor.redact(all)
	l.console.Log(level, msg, redacted...)
	if l.file != nil {
		l.file.Log(level, msg, redacted...)
	}
}

func (l *loggerImpl) With(args ...any) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fields := make([]any, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	fields = append(fields, args...)
	// Children share the sinks; only the root closes the file.
	return &loggerImpl{
		console:  l.console,
		file:     l.file,
		redactor: l.redactor,
		fields:   fields,
		path:     l.path,
	}
}

func (l *loggerImpl) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	l.file = nil
	return err
}

// filePath returns the full path to the log file.
func (l *loggerImpl) filePath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

// noopLogger is a logger that discards all output.
type noopLogger struct{}

func (n noopLogger) Debug(msg string, args ...any) {}
func (n noopLogger) Info(msg string, args ...any)  {}
func (n noopLogger) Warn(msg string, args ...any)  {}
func (n noopLogger) Error(msg string, args ...any) {}
func (n noopLogger) With(args ...any) Logger       { return n }
func (n noopLogger) Shutdown() error               { return nil }

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return noopLogger{}
}

// New returns a console-only Logger writing to w at level. Handy in tests.
func New(w io.Writer, level string) Logger {
	l, _ := Init(Config{Console: w, Level: level})
	return l
}

var (
	globalLogger   Logger
	globalLoggerMu sync.RWMutex
)

// SetGlobal installs l as the process-wide logger and returns the previous one.
func SetGlobal(l Logger) Logger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	prev := globalLogger
	globalLogger = l
	if prev == nil {
		prev = noopLogger{}
	}
	return prev
}

// GetGlobal returns the global logger, or a no-op logger if not initialized.
func GetGlobal() Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	if globalLogger == nil {
		return noopLogger{}
	}
	return globalLogger
}

// ShutdownGlobal shuts down the global logger.
func ShutdownGlobal() error {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger != nil {
		return globalLogger.Shutdown()
	}
	return nil
}

// CurrentLogFile returns the path of the global logger's file, or "".
func CurrentLogFile() string {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	if impl, ok := globalLogger.(*loggerImpl); ok {
		return impl.filePath()
	}
	return ""
}
