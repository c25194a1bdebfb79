// Package observability provides logging, metrics, and tracing helpers for
// emitter registries.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds registry context to a logger.
// Returns a new logger with the scope field set.
func EnrichLogger(logger *slog.Logger, scope string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("scope", scope))
}

// LogListen logs a listener registration.
func LogListen(logger *slog.Logger, event string, id uint64, once bool) {
	if logger == nil {
		return
	}
	logger.Debug("listener registered",
		slog.String("event", event),
		slog.Uint64("listener_id", id),
		slog.Bool("once", once),
	)
}

// LogCancel logs a cancellation. id is zero when every listener for the
// event was removed.
func LogCancel(logger *slog.Logger, event string, id uint64, removed int) {
	if logger == nil {
		return
	}
	logger.Debug("listeners cancelled",
		slog.String("event", event),
		slog.Uint64("listener_id", id),
		slog.Int("removed", removed),
	)
}

// LogDispatch logs a completed dispatch episode.
func LogDispatch(logger *slog.Logger, event string, invoked int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("event", event),
		slog.Int("invoked", invoked),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogListenerError logs a failed listener invocation.
func LogListenerError(logger *slog.Logger, event string, id uint64, err error) {
	if logger == nil {
		return
	}
	logger.Error("listener failed",
		slog.String("event", event),
		slog.Uint64("listener_id", id),
		slog.String("error", err.Error()),
	)
}

// LogDeadLetterError logs a failure to record a dead letter (non-fatal).
func LogDeadLetterError(logger *slog.Logger, event string, id uint64, err error) {
	if logger == nil {
		return
	}
	logger.Warn("dead letter not recorded",
		slog.String("event", event),
		slog.Uint64("listener_id", id),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// Milliseconds converts a duration to fractional milliseconds for log fields.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
