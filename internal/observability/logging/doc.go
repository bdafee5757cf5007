// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the engine.
//
// Key features:
//   - JSON and text output formats
//   - Session ID propagation
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "newsdeck/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("engine started", slog.String("version", "1.0.0"))
//	}
//
//	func record(ctx context.Context) {
//	    logger := logging.WithSession(ctx, slog.Default())
//	    logger.Info("interaction recorded")
//	}
package logging
