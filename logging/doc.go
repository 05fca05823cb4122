// Package logging provides a minimal logging interface and adapters for turnmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the executor, scheduler, ranking runner and engine use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - TurnLogger with session/turn context and task/phase/turn helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// Arguments after the message are slog-style key/value pairs.
package logging
