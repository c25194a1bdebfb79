package emitter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/emitter/pkg/emitter/deadletter"
)

func TestCall_ScoreScenario(t *testing.T) {
	r := New()
	rec := &recorder{}

	id1 := r.On("score", rec.cb("cb1"))
	id2 := r.On("score", rec.cb("cb2"), Once())
	require.Equal(t, ID(1), id1)
	require.Equal(t, ID(2), id2)

	require.NoError(t, r.Call(testCtx(), "score", Args{"v": 5}))
	assert.Equal(t, []string{"cb1", "cb2"}, rec.got())
	assert.Equal(t, []Args{{"v": 5}, {"v": 5}}, rec.args)

	rec.reset()
	require.NoError(t, r.Call(testCtx(), "score", Args{}))
	assert.Equal(t, []string{"cb1"}, rec.got())

	rec.reset()
	r.Off("score", id1, false)
	require.NoError(t, r.Call(testCtx(), "score", Args{}))
	assert.Empty(t, rec.got())
}

func TestCall_AllInRegistrationOrder(t *testing.T) {
	r := New()
	rec := &recorder{}
	names := []string{"a", "b", "c", "d", "e"}
	for _, n := range names {
		r.On("e", rec.cb(n))
	}

	require.NoError(t, r.Call(testCtx(), "e", nil))

	assert.Equal(t, names, rec.got())
}

func TestCall_PersistentBeforeOneShot(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", rec.cb("once"), Once())
	r.On("e", rec.cb("persistent"))

	require.NoError(t, r.Call(testCtx(), "e", nil))

	assert.Equal(t, []string{"persistent", "once"}, rec.got())
}

func TestCall_UnknownEventIsNoop(t *testing.T) {
	r := New()
	assert.NoError(t, r.Call(testCtx(), "nothing", Args{"x": 1}))
	assert.NoError(t, r.CallTarget(testCtx(), "nothing", 4, nil))
}

func TestCall_FilterSkipsButKeeps(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", rec.cb("big"), WithFilter(func(a Args) bool {
		n, _ := a["n"].(int)
		return n > 10
	}))

	require.NoError(t, r.Call(testCtx(), "e", Args{"n": 1}))
	assert.Empty(t, rec.got())
	assert.Equal(t, 1, r.Count("e"))

	require.NoError(t, r.Call(testCtx(), "e", Args{"n": 11}))
	assert.Equal(t, []string{"big"}, rec.got())
}

func TestCall_OneShotConsumedEvenWhenFiltered(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", rec.cb("o"), Once(), WithFilter(func(Args) bool { return false }))

	require.NoError(t, r.Call(testCtx(), "e", nil))

	assert.Empty(t, rec.got())
	assert.Zero(t, r.Count("e"))
}

func TestCallTarget_InvokesOnlyMatch(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", rec.cb("a"))
	b := r.On("e", rec.cb("b"))
	r.On("e", rec.cb("c"), Once())

	require.NoError(t, r.CallTarget(testCtx(), "e", b, nil))

	assert.Equal(t, []string{"b"}, rec.got())
	assert.Equal(t, 3, r.Count("e"))
}

func TestCallTarget_OneShotConsumed(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", rec.cb("p"))
	a := r.On("e", rec.cb("o1"), Once())
	r.On("e", rec.cb("o2"), Once())

	require.NoError(t, r.CallTarget(testCtx(), "e", a, nil))
	require.NoError(t, r.CallTarget(testCtx(), "e", a, nil))

	assert.Equal(t, []string{"o1"}, rec.got())
	assert.False(t, r.Has("e", a))
	assert.Equal(t, 2, r.Count("e"))
}

func TestCallTarget_ZeroIDIsBroadcast(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", rec.cb("a"))
	r.On("e", rec.cb("b"))

	require.NoError(t, r.CallTarget(testCtx(), "e", 0, nil))

	assert.Equal(t, []string{"a", "b"}, rec.got())
}

func TestCall_ListenerAddedDuringDispatchWaits(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", func(ctx context.Context, args Args) error {
		r.On("e", rec.cb("late"))
		r.On("e", rec.cb("late-once"), Once())
		return nil
	}, Once())

	require.NoError(t, r.Call(testCtx(), "e", nil))
	assert.Empty(t, rec.got())
	assert.Equal(t, 2, r.Count("e"))

	require.NoError(t, r.Call(testCtx(), "e", nil))
	assert.Equal(t, []string{"late", "late-once"}, rec.got())
}

func TestCall_OneShotAddedByPersistentWaits(t *testing.T) {
	r := New()
	rec := &recorder{}
	r.On("e", func(context.Context, Args) error {
		if r.Count("e") == 1 {
			r.On("e", rec.cb("late-once"), Once())
		}
		return nil
	})

	require.NoError(t, r.Call(testCtx(), "e", nil))
	assert.Empty(t, rec.got())

	require.NoError(t, r.Call(testCtx(), "e", nil))
	assert.Equal(t, []string{"late-once"}, rec.got())
}

func TestCall_ListenerRemovedDuringDispatchSkipped(t *testing.T) {
	r := New()
	rec := &recorder{}
	var victim, victimOnce ID
	r.On("e", func(context.Context, Args) error {
		r.Off("e", victim, false)
		r.Off("e", victimOnce, true)
		return nil
	})
	victim = r.On("e", rec.cb("victim"))
	victimOnce = r.On("e", rec.cb("victim-once"), Once())
	r.On("e", rec.cb("survivor"))

	require.NoError(t, r.Call(testCtx(), "e", nil))

	assert.Equal(t, []string{"survivor"}, rec.got())
}

func TestCall_SelfRemoval(t *testing.T) {
	r := New()
	rec := &recorder{}
	var self ID
	self = r.On("e", func(ctx context.Context, args Args) error {
		r.Off("e", self, false)
		return rec.cb("self")(ctx, args)
	})
	r.On("e", rec.cb("next"))

	require.NoError(t, r.Call(testCtx(), "e", nil))
	require.NoError(t, r.Call(testCtx(), "e", nil))

	assert.Equal(t, []string{"self", "next", "next"}, rec.got())
}

func TestCall_ReentrantDispatchFiresOneShotOnce(t *testing.T) {
	r := New()
	var fired atomic.Int32
	r.On("e", func(ctx context.Context, args Args) error {
		return r.Call(ctx, "e", args)
	}, Once())
	r.On("e", func(context.Context, Args) error {
		fired.Add(1)
		return nil
	}, Once())

	require.NoError(t, r.Call(testCtx(), "e", nil))

	assert.Equal(t, int32(1), fired.Load())
	assert.Zero(t, r.Count("e"))
}

func TestCall_ConcurrentOneShotFiresAtMostOnce(t *testing.T) {
	r := New()
	var fired atomic.Int32
	for range 50 {
		r.On("e", func(context.Context, Args) error {
			fired.Add(1)
			return nil
		}, Once())
	}

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			return r.Call(testCtx(), "e", nil)
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(50), fired.Load())
	assert.Zero(t, r.Count("e"))
}

func TestCall_ConcurrentRegistrationAndDispatch(t *testing.T) {
	r := New()
	var fired atomic.Int64

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for range 100 {
				id := r.On("e", func(context.Context, Args) error {
					fired.Add(1)
					return nil
				})
				if err := r.Call(testCtx(), "e", nil); err != nil {
					return err
				}
				r.Off("e", id, false)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Positive(t, fired.Load())
	assert.Zero(t, r.Count("e"))
}

func TestCall_PropagateStopsAtFirstError(t *testing.T) {
	r := New()
	rec := &recorder{}
	boom := errors.New("boom")
	r.On("e", rec.cb("before"))
	bad := r.On("e", failing(boom))
	r.On("e", rec.cb("after"))
	r.On("e", rec.cb("once"), Once())

	err := r.Call(testCtx(), "e", Args{"k": "v"})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var lerr *ListenerError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "e", lerr.Event)
	assert.Equal(t, bad, lerr.ListenerID)
	assert.False(t, lerr.Panicked)
	assert.Equal(t, []string{"before"}, rec.got())
	assert.Equal(t, 4, r.Count("e"), "unreached one-shot listener stays registered")
}

func TestCall_PropagateRepanics(t *testing.T) {
	var reported *ListenerError
	r := New(WithErrorHandler(func(e *ListenerError) { reported = e }))
	rec := &recorder{}
	r.On("e", panicking("kaboom"))
	r.On("e", rec.cb("after"))

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = r.Call(testCtx(), "e", nil)
	})

	assert.Empty(t, rec.got())
	require.NotNil(t, reported)
	assert.True(t, reported.Panicked)
	assert.ErrorIs(t, reported, ErrListenerPanic)
}

func TestCall_ContinueCollectsFailures(t *testing.T) {
	var reported []*ListenerError
	r := New(
		WithErrorPolicy(PolicyContinue),
		WithErrorHandler(func(e *ListenerError) { reported = append(reported, e) }),
	)
	rec := &recorder{}
	boom := errors.New("boom")
	r.On("e", failing(boom))
	r.On("e", rec.cb("middle"))
	r.On("e", panicking("kaboom"), Once())
	r.On("e", rec.cb("last"), Once())

	err := r.Call(testCtx(), "e", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrListenerPanic)
	assert.Equal(t, []string{"middle", "last"}, rec.got())
	require.Len(t, reported, 2)
	assert.False(t, reported[0].Panicked)
	assert.True(t, reported[1].Panicked)
	assert.Equal(t, "kaboom", reported[1].PanicValue)
	assert.True(t, reported[1].Once)
	assert.Equal(t, 3, r.Count("e"), "failed one-shot listener stays registered")
}

func TestCall_FailedOneShotStaysRegistered(t *testing.T) {
	r := New()
	var calls int
	boom := errors.New("boom")
	id := r.On("e", func(context.Context, Args) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	}, Once())

	assert.ErrorIs(t, r.Call(testCtx(), "e", nil), boom)
	assert.True(t, r.Has("e", id))

	require.NoError(t, r.Call(testCtx(), "e", nil))
	require.NoError(t, r.Call(testCtx(), "e", nil))

	assert.Equal(t, 2, calls)
	assert.False(t, r.Has("e", id))
}

func TestCall_FailedOneShotKeepsOrder(t *testing.T) {
	r := New()
	rec := &recorder{}
	boom := errors.New("boom")
	var failed bool
	r.On("e", rec.cb("a"), Once())
	b := r.On("e", func(ctx context.Context, args Args) error {
		if !failed {
			failed = true
			return boom
		}
		return rec.cb("b")(ctx, args)
	}, Once())
	r.On("e", rec.cb("c"), Once())

	assert.ErrorIs(t, r.Call(testCtx(), "e", nil), boom)
	assert.Equal(t, []string{"a"}, rec.got())
	assert.Equal(t, 2, r.Count("e"))

	rec.reset()
	require.NoError(t, r.Call(testCtx(), "e", nil))
	assert.Equal(t, []string{"b", "c"}, rec.got())
	assert.False(t, r.Has("e", b))
	assert.Zero(t, r.Count("e"))
}

func TestCall_PanickingOneShotStaysRegistered(t *testing.T) {
	r := New()
	id := r.On("e", panicking("kaboom"), Once())

	assert.Panics(t, func() { _ = r.Call(testCtx(), "e", nil) })

	assert.True(t, r.Has("e", id))
}

func TestCall_OneShotCancelledWhileFailingStaysGone(t *testing.T) {
	r := New()
	var id ID
	id = r.On("e", func(context.Context, Args) error {
		r.Off("e", id, true)
		return errors.New("boom")
	}, Once())

	require.Error(t, r.Call(testCtx(), "e", nil))

	assert.False(t, r.Has("e", id))
	assert.Zero(t, r.Count("e"))
}

func TestCallTarget_FailedOneShotStaysRegistered(t *testing.T) {
	r := New(WithErrorPolicy(PolicyContinue))
	boom := errors.New("boom")
	id := r.On("e", failing(boom), Once())

	assert.ErrorIs(t, r.CallTarget(testCtx(), "e", id, nil), boom)

	assert.True(t, r.Has("e", id))
}

func TestCall_ContinueSingleFailureNotJoined(t *testing.T) {
	r := New(WithErrorPolicy(PolicyContinue))
	boom := errors.New("boom")
	r.On("e", failing(boom))

	err := r.Call(testCtx(), "e", nil)

	var lerr *ListenerError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, `listener 1 on "e": boom`, err.Error())
}

func TestCall_DeadLetters(t *testing.T) {
	store := deadletter.NewMemoryStore()
	r := New(WithErrorPolicy(PolicyContinue), WithDeadLetters(store))
	r.On("e", failing(errors.New("boom")))
	r.On("e", panicking("kaboom"), Once())

	require.Error(t, r.Call(testCtx(), "e", Args{"user": "ana"}))

	recs, err := store.List(testCtx(), deadletter.Query{EventName: "e"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(1), recs[0].ListenerID)
	assert.Contains(t, recs[0].Error, "boom")
	assert.False(t, recs[0].Panicked)
	assert.True(t, recs[1].Panicked)
	assert.True(t, recs[1].Once)

	args, err := recs[0].Args()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "ana"}, args)
}

func TestCall_DeadLetterFailureDoesNotChangeResult(t *testing.T) {
	store := deadletter.NewMemoryStore()
	require.NoError(t, store.Close())
	r := New(WithDeadLetters(store))
	r.On("e", nil)

	assert.NoError(t, r.Call(testCtx(), "e", nil))

	boom := errors.New("boom")
	r.On("e", failing(boom))
	assert.ErrorIs(t, r.Call(testCtx(), "e", nil), boom)
}

func TestRedeliver(t *testing.T) {
	store := deadletter.NewMemoryStore()
	r := New(WithDeadLetters(store))
	var attempts int
	id := r.On("e", func(_ context.Context, args Args) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		assert.Equal(t, "ana", args["user"])
		return nil
	})

	require.Error(t, r.Call(testCtx(), "e", Args{"user": "ana"}))
	recs, err := store.List(testCtx(), deadletter.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(id), recs[0].ListenerID)

	require.NoError(t, r.Redeliver(testCtx(), recs[0]))
	assert.Equal(t, 2, attempts)

	r.Off("e", id, false)
	assert.ErrorIs(t, r.Redeliver(testCtx(), recs[0]), ErrListenerGone)
	assert.Error(t, r.Redeliver(testCtx(), nil))
}

func TestRedeliver_OneShot(t *testing.T) {
	store := deadletter.NewMemoryStore()
	r := New(WithDeadLetters(store))
	var attempts int
	id := r.On("e", func(context.Context, Args) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	}, Once())

	require.Error(t, r.Call(testCtx(), "e", Args{"user": "ana"}))
	recs, err := store.List(testCtx(), deadletter.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Once)

	require.NoError(t, r.Redeliver(testCtx(), recs[0]))
	assert.Equal(t, 2, attempts)
	assert.False(t, r.Has("e", id))
	assert.ErrorIs(t, r.Redeliver(testCtx(), recs[0]), ErrListenerGone)
}

func TestParseErrorPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ErrorPolicy
		wantErr bool
	}{
		{in: "", want: PolicyPropagate},
		{in: "propagate", want: PolicyPropagate},
		{in: " Continue ", want: PolicyContinue},
		{in: "ignore", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseErrorPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "continue", PolicyContinue.String())
	assert.Equal(t, "unknown", ErrorPolicy(9).String())
}
