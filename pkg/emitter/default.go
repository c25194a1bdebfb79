package emitter

import (
	"context"
	"sync"
)

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide Registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Listen registers cb on the default registry.
func Listen(event string, cb Callback, opts ...ListenOption) ID {
	return Default().On(event, cb, opts...)
}

// ListenMulti registers every spec on the default registry.
func ListenMulti(specs []Spec) []ID {
	return Default().OnMany(specs)
}

// Cancel removes listeners from the default registry. See Registry.Off.
func Cancel(event string, id ID, once bool) {
	Default().Off(event, id, once)
}

// OnEvent dispatches to the default registry.
func OnEvent(ctx context.Context, event string, args Args) error {
	return Default().Call(ctx, event, args)
}

// OnTargetEvent dispatches to one listener on the default registry.
func OnTargetEvent(ctx context.Context, event string, id ID, args Args) error {
	return Default().CallTarget(ctx, event, id, args)
}

// Binding gives a type listener methods by embedding:
//
//	type Scoreboard struct {
//		emitter.Binding
//	}
//
//	board := &Scoreboard{}
//	board.Listen("score", onScore)
//
// A zero Binding uses Default().
type Binding struct {
	Registry *Registry
}

// Bind returns a Binding for r.
func Bind(r *Registry) Binding {
	return Binding{Registry: r}
}

func (b Binding) registry() *Registry {
	if b.Registry == nil {
		return Default()
	}
	return b.Registry
}

// Listen registers cb. See Registry.On.
func (b Binding) Listen(event string, cb Callback, opts ...ListenOption) ID {
	return b.registry().On(event, cb, opts...)
}

// ListenMulti registers every spec. See Registry.OnMany.
func (b Binding) ListenMulti(specs []Spec) []ID {
	return b.registry().OnMany(specs)
}

// Cancel removes listeners. See Registry.Off.
func (b Binding) Cancel(event string, id ID, once bool) {
	b.registry().Off(event, id, once)
}

// OnEvent dispatches event. See Registry.Call.
func (b Binding) OnEvent(ctx context.Context, event string, args Args) error {
	return b.registry().Call(ctx, event, args)
}

// OnTargetEvent dispatches event to one listener. See Registry.CallTarget.
func (b Binding) OnTargetEvent(ctx context.Context, event string, id ID, args Args) error {
	return b.registry().CallTarget(ctx, event, id, args)
}
