// Package logging provides a minimal logging interface and adapters for the
// daemon.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the router, coordinator and stores use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - DaemonLogger with correlation-aware contextual helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	rt := router.New(func(o *router.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
