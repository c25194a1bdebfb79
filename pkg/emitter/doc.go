/*
Package emitter provides an in-process listener registry with synchronous
dispatch.

# Overview

A Registry maps event names to listeners. Each event name has two
independent tables: persistent listeners fire on every dispatch, one-shot
listeners are removed after their first run that does not fail. Every registration gets
a unique, increasing ID that can be used to cancel the listener or to
dispatch to it alone.

# Basic Usage

	r := emitter.New()

	id := r.On("score", func(ctx context.Context, args emitter.Args) error {
	    fmt.Println("scored", args["points"])
	    return nil
	})

	_ = r.Call(ctx, "score", emitter.Args{"points": 10})
	_ = r.CallTarget(ctx, "score", id, emitter.Args{"points": 5})
	r.Off("score", id, false)

# One-shot Listeners and Filters

	r.On("ready", onReady, emitter.Once())
	r.On("score", onBig, emitter.WithFilter(func(a emitter.Args) bool {
	    n, _ := a["points"].(int)
	    return n > 100
	}))
	r.On("score", onBig, emitter.WithExpr(filterexpr.MustCompile("points > 100")))

A one-shot listener is consumed by the first dispatch that reaches it, even
when its filter rejects that dispatch's arguments.

# Typed Topics

Topic binds an event name to a payload type:

	var scored = emitter.NewTopic[Score]("score")
	scored.On(r, func(ctx context.Context, s Score) error { ... })
	_ = scored.Emit(ctx, r, Score{Points: 10})

# Dispatch Semantics

Dispatch is synchronous. Persistent listeners run first, then one-shot
listeners, each in registration order. Callbacks run without the registry
lock held and may register, cancel, or dispatch re-entrantly. A dispatch
works from the listener set present when it started.

# Error Handling

By default the first failing listener stops the dispatch and its error is
returned as a *ListenerError. WithErrorPolicy(PolicyContinue) recovers
panics, runs every listener, and returns all failures joined. Failures can
also be recorded in a dead-letter store:

	store := deadletter.NewMemoryStore()
	r := emitter.New(
	    emitter.WithErrorPolicy(emitter.PolicyContinue),
	    emitter.WithDeadLetters(store),
	)

# Observability

	r := emitter.New(
	    emitter.WithLogger(slog.Default()),
	    emitter.WithMetrics(true),
	    emitter.WithTracing(true),
	)

Metrics and spans use the global OpenTelemetry providers.
*/
package emitter
