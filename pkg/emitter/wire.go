package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/emitter/pkg/emitter/config"
	"github.com/randalmurphal/emitter/pkg/emitter/deadletter"
	"github.com/randalmurphal/emitter/pkg/emitter/filterexpr"
)

// OptionsFromSettings converts settings into registry options.
// The dead-letter store is not opened here; see OpenDeadLetters.
func OptionsFromSettings(s config.Settings, logger *slog.Logger) ([]Option, error) {
	policy, err := ParseErrorPolicy(s.ErrorPolicy)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithErrorPolicy(policy),
		WithMetrics(s.Metrics),
		WithTracing(s.Tracing),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return opts, nil
}

// OpenDeadLetters opens the store named by s. It returns a nil store when
// no driver is configured. The caller owns the store.
func OpenDeadLetters(s config.Settings) (deadletter.Store, error) {
	if s.DeadLetter.Driver == "" {
		return nil, nil
	}
	return deadletter.Open(s.DeadLetter.Driver, s.DeadLetter.Path)
}

// Wire registers configured bindings, resolving handler names in handlers.
// All bindings are checked before any is registered, so on error the
// registry is unchanged.
func Wire(r *Registry, bindings []config.Binding, handlers map[string]Callback) ([]ID, error) {
	specs := make([]Spec, 0, len(bindings))
	for i, b := range bindings {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		cb, ok := handlers[b.Handler]
		if !ok {
			return nil, fmt.Errorf("bindings[%d]: %w: %q", i, ErrUnknownHandler, b.Handler)
		}
		spec := Spec{Event: b.Event, Callback: cb, Once: b.Once}
		if b.Filter != "" {
			ex, err := filterexpr.Compile(b.Filter)
			if err != nil {
				return nil, fmt.Errorf("bindings[%d]: %w", i, err)
			}
			spec.Filter = func(args Args) bool { return ex.Match(args) }
		}
		specs = append(specs, spec)
	}
	return r.OnMany(specs), nil
}

// Redeliver dispatches a dead letter's payload to the listener that failed.
// It returns ErrListenerGone when that listener is no longer registered.
// A one-shot listener that failed is still registered and is consumed by a
// successful redelivery.
func (r *Registry) Redeliver(ctx context.Context, rec *deadletter.Record) error {
	if rec == nil {
		return errors.New("redeliver: nil record")
	}
	id := ID(rec.ListenerID)
	if !r.Has(rec.EventName, id) {
		return fmt.Errorf("%w: listener %d on %q", ErrListenerGone, id, rec.EventName)
	}
	args, err := rec.Args()
	if err != nil {
		return fmt.Errorf("redeliver %s: %w", rec.ID, err)
	}
	return r.CallTarget(ctx, rec.EventName, id, args)
}
