package emitter

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/randalmurphal/emitter/pkg/emitter/observability"
)

// Registry maps event names to listeners. Each event has a persistent table
// and a one-shot table; both keep registration order.
//
// A Registry is safe for concurrent use. Callbacks run without the lock
// held, so they may register, cancel, or dispatch on the same Registry.
//
// Create with New; the zero value is not usable.
type Registry struct {
	mu         sync.Mutex
	persistent map[string][]*Listener
	once       map[string][]*Listener
	lastID     ID

	cfg registryConfig
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.scope != "" {
		cfg.logger = observability.EnrichLogger(cfg.logger, cfg.scope)
	}
	return &Registry{
		persistent: make(map[string][]*Listener),
		once:       make(map[string][]*Listener),
		cfg:        cfg,
	}
}

// Policy returns the registry's error policy.
func (r *Registry) Policy() ErrorPolicy {
	return r.cfg.policy
}

// On registers cb for event and returns the new listener's ID.
//
// With Once the listener goes to the one-shot table and is removed the first
// time a dispatch reaches it. A nil cb registers a listener that does nothing.
func (r *Registry) On(event string, cb Callback, opts ...ListenOption) ID {
	var lc listenConfig
	for _, opt := range opts {
		opt(&lc)
	}

	r.mu.Lock()
	r.lastID++
	l := newListener(r.lastID, event, cb, lc.filter, lc.once)
	if lc.once {
		r.once[event] = append(r.once[event], l)
	} else {
		r.persistent[event] = append(r.persistent[event], l)
	}
	r.mu.Unlock()

	observability.LogListen(r.cfg.logger, event, uint64(l.id), l.once)
	r.cfg.metrics.RecordRegistration(context.Background(), event, l.once)
	return l.id
}

// Spec describes one registration for OnMany.
type Spec struct {
	Event    string
	Callback Callback
	Filter   Filter
	Once     bool
}

// OnMany registers each spec in order and returns the IDs in the same order.
func (r *Registry) OnMany(specs []Spec) []ID {
	ids := make([]ID, 0, len(specs))
	for _, s := range specs {
		ids = append(ids, r.On(s.Event, s.Callback, WithFilter(s.Filter), OnceIf(s.Once)))
	}
	return ids
}

// Off removes listeners from event and returns how many were removed.
//
// With a nonzero id only the table selected by once is searched and the
// first listener with that id is removed. With id 0 every listener for the
// event is removed from both tables and once is ignored. Unknown events and
// ids are not an error.
func (r *Registry) Off(event string, id ID, once bool) int {
	r.mu.Lock()
	var removed int
	switch {
	case id == 0:
		removed = dropEvent(r.persistent, event) + dropEvent(r.once, event)
	case once:
		removed = dropListener(r.once, event, id)
	default:
		removed = dropListener(r.persistent, event, id)
	}
	r.mu.Unlock()

	if removed > 0 {
		observability.LogCancel(r.cfg.logger, event, uint64(id), removed)
		r.cfg.metrics.RecordCancellation(context.Background(), event, removed)
	}
	return removed
}

// OffAll removes every listener for event.
func (r *Registry) OffAll(event string) int {
	return r.Off(event, 0, false)
}

// Clear removes every listener for every event. IDs keep increasing.
func (r *Registry) Clear() {
	r.mu.Lock()
	for event := range r.persistent {
		dropEvent(r.persistent, event)
	}
	for event := range r.once {
		dropEvent(r.once, event)
	}
	r.mu.Unlock()
}

// Listeners describes the listeners for event: persistent first, then
// one-shot, each in registration order.
func (r *Registry) Listeners(event string) []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.persistent[event])+len(r.once[event]))
	for _, l := range r.persistent[event] {
		infos = append(infos, l.info())
	}
	for _, l := range r.once[event] {
		infos = append(infos, l.info())
	}
	return infos
}

// Lookup returns the listener with id registered for event. Running its
// Execute directly bypasses dispatch: a one-shot listener is not consumed
// and failures are not reported.
func (r *Registry) Lookup(event string, id ID) (*Listener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, table := range []map[string][]*Listener{r.persistent, r.once} {
		if i := indexOf(table[event], id); i >= 0 {
			return table[event][i], true
		}
	}
	return nil, false
}

// Count returns the number of listeners registered for event.
func (r *Registry) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.persistent[event]) + len(r.once[event])
}

// Has reports whether a listener with id is registered for event.
func (r *Registry) Has(event string, id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return indexOf(r.persistent[event], id) >= 0 || indexOf(r.once[event], id) >= 0
}

// Events returns the names that currently have listeners, sorted.
func (r *Registry) Events() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.persistent)+len(r.once))
	for name := range r.persistent {
		names = append(names, name)
	}
	for name := range r.once {
		if _, dup := r.persistent[name]; !dup {
			names = append(names, name)
		}
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// snapshot copies both tables' entries for event under one lock.
func (r *Registry) snapshot(event string) (persistent, once []*Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.persistent[event]), slices.Clone(r.once[event])
}

// claim reserves a one-shot listener for the calling dispatch. Only the first
// caller for a given listener gets true. The listener stays in its table
// until settle decides its fate.
func (r *Registry) claim(l *Listener) bool {
	return l.removed.CompareAndSwap(false, true)
}

// settle consumes a claimed one-shot listener after a successful run, or
// releases it back to the table after a failed one. A listener cancelled
// while it ran stays cancelled.
func (r *Registry) settle(l *Listener, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.once[l.event], l)
	if i < 0 {
		return
	}
	if failed {
		l.removed.Store(false)
		return
	}
	removeAt(r.once, l.event, i)
}

func indexOf(list []*Listener, id ID) int {
	return slices.IndexFunc(list, func(l *Listener) bool { return l.id == id })
}

// dropListener removes the first listener with id. Caller holds r.mu.
func dropListener(table map[string][]*Listener, event string, id ID) int {
	i := indexOf(table[event], id)
	if i < 0 {
		return 0
	}
	table[event][i].removed.Store(true)
	removeAt(table, event, i)
	return 1
}

// dropEvent removes every listener for event. Caller holds r.mu.
func dropEvent(table map[string][]*Listener, event string) int {
	list := table[event]
	for _, l := range list {
		l.removed.Store(true)
	}
	delete(table, event)
	return len(list)
}

// removeAt deletes index i and drops the key once the list is empty.
// Dispatch iterates over clones, so in-place deletion is safe.
func removeAt(table map[string][]*Listener, event string, i int) {
	list := slices.Delete(table[event], i, i+1)
	if len(list) == 0 {
		delete(table, event)
		return
	}
	table[event] = list
}
