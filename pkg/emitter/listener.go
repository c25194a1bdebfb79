package emitter

import (
	"context"
	"sync/atomic"
)

// ID identifies a registered listener. IDs start at 1 and are never reused
// within a Registry; zero means "no listener".
type ID uint64

// Args is the argument bag passed to every listener of a dispatch.
type Args map[string]any

// Callback is invoked when a listener fires.
type Callback func(ctx context.Context, args Args) error

// Filter gates a listener. When it returns false the callback is skipped
// but the listener stays registered.
type Filter func(args Args) bool

// Listener pairs an identity and event name with a callback and optional
// filter. Listeners are immutable. A Registry creates its own; use
// Registry.Lookup to get one back, or NewListener to build one standalone.
type Listener struct {
	id       ID
	event    string
	callback Callback
	filter   Filter
	once     bool

	// removed is set when the listener leaves its table by Off, and while a
	// one-shot dispatch holds it.
	removed atomic.Bool
}

// NewListener returns a persistent listener outside any Registry. A nil
// filter accepts every call.
func NewListener(id ID, event string, cb Callback, filter Filter) *Listener {
	return newListener(id, event, cb, filter, false)
}

func newListener(id ID, event string, cb Callback, filter Filter, once bool) *Listener {
	return &Listener{
		id:       id,
		event:    event,
		callback: cb,
		filter:   filter,
		once:     once,
	}
}

// ID returns the listener's identity.
func (l *Listener) ID() ID { return l.id }

// Event returns the event name the listener is registered under.
func (l *Listener) Event() string { return l.event }

// Once reports whether the listener lives in the one-shot table.
func (l *Listener) Once() bool { return l.once }

// Filtered reports whether the listener has a filter.
func (l *Listener) Filtered() bool { return l.filter != nil }

// Execute runs the callback unless the filter rejects args.
// Errors and panics from the filter or callback are not contained.
func (l *Listener) Execute(ctx context.Context, args Args) error {
	_, err := l.run(ctx, args)
	return err
}

// run is Execute that also reports whether the callback was reached.
func (l *Listener) run(ctx context.Context, args Args) (bool, error) {
	if l.filter != nil && !l.filter(args) {
		return false, nil
	}
	if l.callback == nil {
		return true, nil
	}
	return true, l.callback(ctx, args)
}

// Info is a read-only description of a registered listener.
type Info struct {
	ID       ID
	Event    string
	Once     bool
	Filtered bool
}

func (l *Listener) info() Info {
	return Info{ID: l.id, Event: l.event, Once: l.once, Filtered: l.filter != nil}
}
