// Package scope keeps one emitter.Registry per named scope.
//
// A scope is any unit whose listeners share a lifetime: a game session, a
// tenant, a test. Dropping the scope releases all of its listeners at once.
package scope

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/randalmurphal/emitter/pkg/emitter"
)

// Hub is a thread-safe set of registries indexed by scope name.
type Hub struct {
	mu     sync.RWMutex
	scopes map[string]*emitter.Registry
	opts   []emitter.Option
}

// NewHub creates an empty Hub. opts are applied to every registry it creates,
// followed by emitter.WithScope(name).
func NewHub(opts ...emitter.Option) *Hub {
	return &Hub{
		scopes: make(map[string]*emitter.Registry),
		opts:   opts,
	}
}

// Get returns the registry for name, creating it on first use. Concurrent
// callers for the same name receive the same registry.
func (h *Hub) Get(name string) *emitter.Registry {
	h.mu.RLock()
	r, ok := h.scopes[name]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.scopes[name]; ok {
		return r
	}
	opts := append(append([]emitter.Option(nil), h.opts...), emitter.WithScope(name))
	r = emitter.New(opts...)
	h.scopes[name] = r
	return r
}

// Lookup returns the registry for name without creating it.
func (h *Hub) Lookup(name string) (*emitter.Registry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.scopes[name]
	return r, ok
}

// Drop removes the scope and clears its listeners. It reports whether the
// scope existed. Holders of the old registry keep a usable, empty registry;
// the next Get creates a fresh one.
func (h *Hub) Drop(name string) bool {
	h.mu.Lock()
	r, ok := h.scopes[name]
	delete(h.scopes, name)
	h.mu.Unlock()

	if ok {
		r.Clear()
	}
	return ok
}

// Names returns the scope names, sorted.
func (h *Hub) Names() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.scopes))
	for name := range h.scopes {
		names = append(names, name)
	}
	h.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of scopes.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scopes)
}

// Range calls fn for each scope in name order until fn returns false.
// It iterates over a snapshot, so fn may call Get or Drop.
func (h *Hub) Range(fn func(name string, r *emitter.Registry) bool) {
	h.mu.RLock()
	snapshot := make(map[string]*emitter.Registry, len(h.scopes))
	for k, v := range h.scopes {
		snapshot[k] = v
	}
	h.mu.RUnlock()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !fn(name, snapshot[name]) {
			return
		}
	}
}

// Broadcast calls event in every scope. Every scope is dispatched to even if
// an earlier one fails; failures are joined and tagged with the scope name.
func (h *Hub) Broadcast(ctx context.Context, event string, args emitter.Args) error {
	var errs []error
	h.Range(func(name string, r *emitter.Registry) bool {
		if err := r.Call(ctx, event, args); err != nil {
			errs = append(errs, fmt.Errorf("scope %q: %w", name, err))
		}
		return true
	})
	return errors.Join(errs...)
}
