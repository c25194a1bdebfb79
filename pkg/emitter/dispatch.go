package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/emitter/pkg/emitter/deadletter"
	"github.com/randalmurphal/emitter/pkg/emitter/observability"
)

// Call dispatches args to every listener for event: persistent listeners
// first, then one-shot listeners, each in registration order. Every one-shot
// listener that runs without failing is consumed, even if its filter rejects
// args. A one-shot listener whose callback fails stays registered.
//
// The listener sets are fixed when the dispatch starts. Listeners registered
// by a callback wait for the next dispatch; listeners cancelled by a callback
// are skipped.
//
// Under PolicyPropagate the first failure stops the dispatch and is returned
// as a *ListenerError; a panic is re-raised after it is reported. Under
// PolicyContinue every listener runs and all failures are returned joined.
func (r *Registry) Call(ctx context.Context, event string, args Args) error {
	return r.dispatch(ctx, event, 0, args)
}

// CallTarget dispatches args to the listener with id only. Both tables are
// checked; at most one callback runs. A one-shot target is consumed unless it
// fails.
// An id of 0 behaves like Call.
func (r *Registry) CallTarget(ctx context.Context, event string, id ID, args Args) error {
	return r.dispatch(ctx, event, id, args)
}

// episode tracks a single dispatch.
type episode struct {
	r       *Registry
	ctx     context.Context
	event   string
	target  ID
	args    Args
	invoked int
	errs    []error
}

func (r *Registry) dispatch(ctx context.Context, event string, target ID, args Args) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	elapsed := observability.TimedOperation()
	ctx, span := r.cfg.spans.StartDispatchSpan(ctx, event, uint64(target))

	ep := &episode{r: r, ctx: ctx, event: event, target: target, args: args}
	defer func() {
		if p := recover(); p != nil {
			r.finish(ep, span, elapsed(), fmt.Errorf("%w: %v", ErrListenerPanic, p))
			panic(p)
		}
		r.finish(ep, span, elapsed(), err)
	}()

	persistent, once := r.snapshot(event)
	if ep.runPersistent(persistent) {
		return ep.result()
	}
	ep.runOnce(once)
	return ep.result()
}

func (r *Registry) finish(ep *episode, span trace.Span, d time.Duration, err error) {
	r.cfg.metrics.RecordDispatch(ep.ctx, ep.event, ep.invoked, d, err)
	r.cfg.spans.EndSpanWithError(span, err)
	observability.LogDispatch(r.cfg.logger, ep.event, ep.invoked, observability.Milliseconds(d))
}

// runPersistent reports whether the dispatch must stop.
func (ep *episode) runPersistent(listeners []*Listener) bool {
	for _, l := range listeners {
		if ep.target != 0 && l.id != ep.target {
			continue
		}
		if l.removed.Load() {
			if ep.target != 0 {
				return false
			}
			continue
		}
		stop := ep.invoke(l)
		if ep.target != 0 || stop {
			return stop
		}
	}
	return false
}

func (ep *episode) runOnce(listeners []*Listener) {
	for _, l := range listeners {
		if ep.target != 0 && l.id != ep.target {
			continue
		}
		if !ep.r.claim(l) {
			if ep.target != 0 {
				return
			}
			continue
		}
		lerr := ep.execute(l)
		ep.r.settle(l, lerr != nil)
		stop := ep.fail(lerr)
		if ep.target != 0 || stop {
			return
		}
	}
}

// invoke runs one listener and reports whether the dispatch must stop.
func (ep *episode) invoke(l *Listener) bool {
	return ep.fail(ep.execute(l))
}

// fail handles a listener's failure, if any, and reports whether the
// dispatch must stop.
func (ep *episode) fail(lerr *ListenerError) bool {
	if lerr == nil {
		return false
	}
	ep.r.report(ep.ctx, lerr, ep.args)
	if ep.r.cfg.policy == PolicyPropagate {
		if lerr.Panicked {
			panic(lerr.PanicValue)
		}
		ep.errs = append(ep.errs, lerr)
		return true
	}
	ep.errs = append(ep.errs, lerr)
	return false
}

// execute runs l with panics recovered into a ListenerError.
func (ep *episode) execute(l *Listener) (lerr *ListenerError) {
	defer func() {
		if p := recover(); p != nil {
			ep.invoked++
			lerr = &ListenerError{
				Event:      ep.event,
				ListenerID: l.id,
				Once:       l.once,
				Panicked:   true,
				PanicValue: p,
				Err:        fmt.Errorf("%w: %v", ErrListenerPanic, p),
			}
		}
	}()

	ran, err := l.run(ep.ctx, ep.args)
	if ran {
		ep.invoked++
	}
	if err == nil {
		return nil
	}
	return &ListenerError{Event: ep.event, ListenerID: l.id, Once: l.once, Err: err}
}

func (ep *episode) result() error {
	switch len(ep.errs) {
	case 0:
		return nil
	case 1:
		return ep.errs[0]
	default:
		return errors.Join(ep.errs...)
	}
}

// report fans a failure out to logging, metrics, tracing, the error handler,
// and the dead-letter store.
func (r *Registry) report(ctx context.Context, lerr *ListenerError, args Args) {
	observability.LogListenerError(r.cfg.logger, lerr.Event, uint64(lerr.ListenerID), lerr.Err)
	r.cfg.metrics.RecordListenerError(ctx, lerr.Event, lerr.Panicked)
	r.cfg.spans.AddSpanEvent(ctx, "listener.failed",
		attribute.Int64("listener.id", int64(lerr.ListenerID)),
		attribute.Bool("listener.panicked", lerr.Panicked),
		attribute.String("error", lerr.Err.Error()),
	)

	if r.cfg.onError != nil {
		r.cfg.onError(lerr)
	}

	if r.cfg.deadLetters != nil {
		rec := deadletter.NewRecord(lerr.Event, uint64(lerr.ListenerID), lerr.Once, args, lerr.Err, lerr.Panicked)
		if err := r.cfg.deadLetters.Save(ctx, rec); err != nil {
			observability.LogDeadLetterError(r.cfg.logger, lerr.Event, uint64(lerr.ListenerID), err)
		}
	}
}
