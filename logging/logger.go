package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" (any case) to a LogLevel.
// Unknown values yield LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface for turnmesh.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// TurnLogger wraps slog.Logger adding session/turn context and helpers for
// the events the orchestrator reports most: task completions, phase
// summaries and turn summaries. With* methods return modified copies.
type TurnLogger struct {
	logger    *slog.Logger
	level     LogLevel
	attrs     []slog.Attr
	component string
	sessionID string
	turnID    string
}

// LoggerConfig configures construction of a TurnLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds a TurnLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *TurnLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &TurnLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component}
}

// NewSlogLogger creates a TurnLogger with the given level, format ("json" or "text") and source flag.
func NewSlogLogger(level LogLevel, format string, addSource bool) *TurnLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *TurnLogger) clone() *TurnLogger {
	nl := *l
	nl.attrs = append([]slog.Attr(nil), l.attrs...)
	return &nl
}

// With attaches a key/value attribute to every subsequent entry.
func (l *TurnLogger) With(key string, value any) *TurnLogger {
	nl := l.clone()
	nl.attrs = append(nl.attrs, slog.Any(key, value))
	return nl
}

// WithComponent sets the logical component (executor, scheduler, engine, ...).
func (l *TurnLogger) WithComponent(c string) *TurnLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithSession attaches session and turn identifiers.
func (l *TurnLogger) WithSession(sessionID, turnID string) *TurnLogger {
	nl := l.clone()
	nl.sessionID = sessionID
	nl.turnID = turnID
	return nl
}

func (l *TurnLogger) baseAttrs(extra int) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.attrs)+3+extra)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", l.sessionID))
	}
	if l.turnID != "" {
		attrs = append(attrs, slog.String("turn_id", l.turnID))
	}
	return append(attrs, l.attrs...)
}

func (l *TurnLogger) log(level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	attrs := l.baseAttrs(len(args) / 2)
	for len(args) > 0 {
		key, ok := args[0].(string)
		if !ok || len(args) == 1 {
			attrs = append(attrs, slog.Any("!BADKEY", args[0]))
			args = args[1:]
			continue
		}
		attrs = append(attrs, slog.Any(key, args[1]))
		args = args[2:]
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level.
func (l *TurnLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *TurnLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *TurnLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *TurnLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogTask records the outcome of one task within a phase.
func (l *TurnLogger) LogTask(phase, task, outcome string, dur time.Duration, err error) {
	args := []any{"phase", phase, "task", task, "outcome", outcome, "duration", dur}
	if err != nil {
		args = append(args, "error", err.Error())
		l.Warn("Task finished without result", args...)
		return
	}
	l.Debug("Task finished", args...)
}

// LogPhase records an aggregate phase summary; counts maps outcome kind to number of tasks.
func (l *TurnLogger) LogPhase(phase string, dur time.Duration, counts map[string]int) {
	args := []any{"phase", phase, "duration", dur}
	for k, v := range counts {
		args = append(args, "count_"+k, v)
	}
	l.Info("Phase completed", args...)
}

// LogTurn records a turn summary. fatal is nil for successful turns.
func (l *TurnLogger) LogTurn(dur time.Duration, responder, prompter string, fatal error) {
	args := []any{"duration", dur, "responder", responder, "prompter", prompter}
	if fatal != nil {
		args = append(args, "error", fatal.Error())
		l.Error("Turn failed", args...)
		return
	}
	l.Info("Turn completed", args...)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *TurnLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Debug("Operation completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// With returns a Logger that prepends args to every call on l.
func With(l Logger, args ...any) Logger {
	l = OrNoOp(l)
	if len(args) == 0 {
		return l
	}
	if _, ok := l.(NoOpLogger); ok {
		return l
	}
	return &boundLogger{next: l, args: args}
}

type boundLogger struct {
	next Logger
	args []any
}

func (b *boundLogger) merge(args []any) []any {
	out := make([]any, 0, len(b.args)+len(args))
	return append(append(out, b.args...), args...)
}

func (b *boundLogger) Debug(msg string, args ...any) { b.next.Debug(msg, b.merge(args)...) }
func (b *boundLogger) Info(msg string, args ...any)  { b.next.Info(msg, b.merge(args)...) }
func (b *boundLogger) Warn(msg string, args ...any)  { b.next.Warn(msg, b.merge(args)...) }
func (b *boundLogger) Error(msg string, args ...any) { b.next.Error(msg, b.merge(args)...) }

// ForTurn scopes l to one turn of a session. A *TurnLogger keeps its typed
// session fields; any other Logger gets them as leading attributes.
func ForTurn(l Logger, sessionID, turnID string) Logger {
	if tl, ok := l.(*TurnLogger); ok {
		return tl.WithSession(sessionID, turnID)
	}
	return With(l, "session_id", sessionID, "turn_id", turnID)
}

// Phase emits a phase summary, using LogPhase when l is a *TurnLogger.
func Phase(l Logger, phase string, dur time.Duration, counts map[string]int) {
	if tl, ok := l.(*TurnLogger); ok {
		tl.LogPhase(phase, dur, counts)
		return
	}
	OrNoOp(l).Debug("Phase completed", "phase", phase, "duration", dur)
}

// Turn emits a turn summary, using LogTurn when l is a *TurnLogger.
func Turn(l Logger, dur time.Duration, responder, prompter string, fatal error) {
	if tl, ok := l.(*TurnLogger); ok {
		tl.LogTurn(dur, responder, prompter, fatal)
		return
	}
	l = OrNoOp(l)
	if fatal != nil {
		l.Error("Turn failed", "duration", dur, "error", fatal.Error())
		return
	}
	l.Info("Turn completed", "duration", dur, "responder", responder, "prompter", prompter)
}
