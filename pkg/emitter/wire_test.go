package emitter

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/emitter/pkg/emitter/config"
	"github.com/randalmurphal/emitter/pkg/emitter/deadletter"
)

func TestOptionsFromSettings(t *testing.T) {
	s := config.Default()
	s.ErrorPolicy = config.PolicyContinue

	opts, err := OptionsFromSettings(s, slog.Default())
	require.NoError(t, err)

	r := New(opts...)
	assert.Equal(t, PolicyContinue, r.Policy())
	assert.NotNil(t, r.cfg.logger)

	s.ErrorPolicy = "explode"
	_, err = OptionsFromSettings(s, nil)
	assert.ErrorIs(t, err, config.ErrInvalidPolicy)
}

func TestOpenDeadLetters(t *testing.T) {
	s := config.Default()
	store, err := OpenDeadLetters(s)
	require.NoError(t, err)
	assert.Nil(t, store)

	s.DeadLetter = config.DeadLetter{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "dl.db")}
	store, err = OpenDeadLetters(s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r := New(WithDeadLetters(store), WithErrorPolicy(PolicyContinue))
	r.On("e", panicking("x"))
	require.Error(t, r.Call(testCtx(), "e", Args{"n": 1}))

	n, err := store.Count(testCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWire(t *testing.T) {
	r := New()
	rec := &recorder{}
	handlers := map[string]Callback{
		"audit": rec.cb("audit"),
		"greet": rec.cb("greet"),
	}

	ids, err := Wire(r, []config.Binding{
		{Event: "login", Handler: "audit"},
		{Event: "login", Handler: "greet", Filter: `user.role == "admin"`, Once: true},
	}, handlers)
	require.NoError(t, err)
	assert.Equal(t, []ID{1, 2}, ids)

	require.NoError(t, r.Call(testCtx(), "login", Args{"user": map[string]any{"role": "guest"}}))
	assert.Equal(t, []string{"audit"}, rec.got())
	assert.Equal(t, 1, r.Count("login"), "filtered one-shot still consumed")
}

func TestWire_AllOrNothing(t *testing.T) {
	handlers := map[string]Callback{"ok": func(context.Context, Args) error { return nil }}

	tests := []struct {
		name     string
		bindings []config.Binding
		wantErr  error
	}{
		{
			name:     "unknown handler",
			bindings: []config.Binding{{Event: "a", Handler: "ok"}, {Event: "b", Handler: "missing"}},
			wantErr:  ErrUnknownHandler,
		},
		{
			name:     "bad filter",
			bindings: []config.Binding{{Event: "a", Handler: "ok"}, {Event: "b", Handler: "ok", Filter: "x =="}},
			wantErr:  config.ErrInvalidBinding,
		},
		{
			name:     "missing event",
			bindings: []config.Binding{{Handler: "ok"}},
			wantErr:  config.ErrInvalidBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			ids, err := Wire(r, tt.bindings, handlers)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, ids)
			assert.Empty(t, r.Events())
		})
	}
}

func TestRedeliver_FromSQLite(t *testing.T) {
	store, err := deadletter.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r := New(WithDeadLetters(store))
	topic := NewTopic[score]("score")
	var seen []score
	fail := true
	topic.On(r, func(_ context.Context, s score) error {
		if fail {
			fail = false
			return assert.AnError
		}
		seen = append(seen, s)
		return nil
	})

	require.ErrorIs(t, topic.Emit(testCtx(), r, score{Player: "ana", Points: 9}), assert.AnError)

	recs, err := store.List(testCtx(), deadletter.Query{EventName: "score"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, r.Redeliver(testCtx(), recs[0]))
	assert.Equal(t, []score{{Player: "ana", Points: 9}}, seen)
}
