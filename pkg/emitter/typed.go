package emitter

import (
	"context"
	"encoding/json"
)

// PayloadKey is the Args key a Topic stores its payload under.
const PayloadKey = "payload"

// Topic binds an event name to a payload type.
//
//	var scored = emitter.NewTopic[Score]("score")
//	scored.On(r, func(ctx context.Context, s Score) error { ... })
//	scored.Emit(ctx, r, Score{Points: 10})
type Topic[T any] struct {
	name string
}

// NewTopic creates a topic for event name.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the event name.
func (t Topic[T]) Name() string { return t.name }

// On registers fn for the topic. A payload that cannot be decoded into T
// fails the invocation with a *DecodeError.
func (t Topic[T]) On(r *Registry, fn func(context.Context, T) error, opts ...ListenOption) ID {
	return r.On(t.name, adapt(fn), opts...)
}

// OnIf registers fn gated on pred. Payloads that fail to decode are
// filtered out rather than reported.
func (t Topic[T]) OnIf(r *Registry, pred func(T) bool, fn func(context.Context, T) error, opts ...ListenOption) ID {
	filter := func(args Args) bool {
		v, err := Decode[T](args)
		return err == nil && pred(v)
	}
	return r.On(t.name, adapt(fn), append([]ListenOption{WithFilter(filter)}, opts...)...)
}

// Emit dispatches payload to every listener of the topic.
func (t Topic[T]) Emit(ctx context.Context, r *Registry, payload T) error {
	return r.Call(ctx, t.name, Args{PayloadKey: payload})
}

// EmitTo dispatches payload to a single listener.
func (t Topic[T]) EmitTo(ctx context.Context, r *Registry, id ID, payload T) error {
	return r.CallTarget(ctx, t.name, id, Args{PayloadKey: payload})
}

func adapt[T any](fn func(context.Context, T) error) Callback {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, args Args) error {
		v, err := Decode[T](args)
		if err != nil {
			return err
		}
		return fn(ctx, v)
	}
}

// Decode extracts a T from args. A value of type T under PayloadKey is
// returned as is. Otherwise the value under PayloadKey, or the whole bag when
// the key is absent, is converted through JSON. This lets untyped callers and
// redelivered dead letters feed typed listeners.
func Decode[T any](args Args) (T, error) {
	var src any = map[string]any(args)
	if v, ok := args[PayloadKey]; ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		src = v
	}

	var out T
	data, err := json.Marshal(src)
	if err != nil {
		return out, newDecodeError[T](err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, newDecodeError[T](err)
	}
	return out, nil
}
