package emitter

import (
	"log/slog"

	"github.com/randalmurphal/emitter/pkg/emitter/deadletter"
	"github.com/randalmurphal/emitter/pkg/emitter/filterexpr"
	"github.com/randalmurphal/emitter/pkg/emitter/observability"
)

// registryConfig holds configuration for a Registry.
type registryConfig struct {
	logger      *slog.Logger
	scope       string
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	policy      ErrorPolicy
	deadLetters deadletter.Store
	onError     func(*ListenerError)
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		policy:  PolicyPropagate,
	}
}

// Option configures a Registry.
type Option func(*registryConfig)

// WithLogger sets the structured logger. Registration, cancellation, and
// dispatch are logged at debug level; listener failures at error level.
// A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// WithScope tags log records with a scope name.
func WithScope(name string) Option {
	return func(c *registryConfig) {
		c.scope = name
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
//
// The recorder uses the global OTel meter provider.
func WithMetrics(enabled bool) Option {
	return func(c *registryConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder installs a specific recorder. Nil restores the no-op.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *registryConfig) {
		if m == nil {
			m = observability.NoopMetrics{}
		}
		c.metrics = m
	}
}

// WithTracing enables or disables OpenTelemetry dispatch spans.
func WithTracing(enabled bool) Option {
	return func(c *registryConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager installs a specific span manager. Nil restores the no-op.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(c *registryConfig) {
		if sm == nil {
			sm = observability.NoopSpanManager{}
		}
		c.spans = sm
	}
}

// WithErrorPolicy selects how dispatch treats failing listeners.
// Default: PolicyPropagate.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(c *registryConfig) {
		c.policy = p
	}
}

// WithDeadLetters records every failed invocation in store.
// The registry does not close the store.
func WithDeadLetters(store deadletter.Store) Option {
	return func(c *registryConfig) {
		c.deadLetters = store
	}
}

// WithErrorHandler calls fn for every failed invocation, under either policy.
func WithErrorHandler(fn func(*ListenerError)) Option {
	return func(c *registryConfig) {
		c.onError = fn
	}
}

// listenConfig holds per-registration settings.
type listenConfig struct {
	filter Filter
	once   bool
}

// ListenOption configures a single registration.
type ListenOption func(*listenConfig)

// WithFilter gates the listener on f. Several filters combine with AND.
func WithFilter(f Filter) ListenOption {
	return func(c *listenConfig) {
		if f == nil {
			return
		}
		if prev := c.filter; prev != nil {
			c.filter = func(args Args) bool { return prev(args) && f(args) }
			return
		}
		c.filter = f
	}
}

// WithExpr gates the listener on a compiled filter expression.
func WithExpr(ex *filterexpr.Expr) ListenOption {
	if ex == nil {
		return func(*listenConfig) {}
	}
	return WithFilter(func(args Args) bool { return ex.Match(args) })
}

// Once routes the listener to the one-shot table.
func Once() ListenOption {
	return OnceIf(true)
}

// OnceIf routes the listener to the one-shot table when once is true.
func OnceIf(once bool) ListenOption {
	return func(c *listenConfig) {
		c.once = once
	}
}
