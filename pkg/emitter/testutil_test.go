package emitter

import (
	"context"
	"sync"
)

// recorder collects callback invocations in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
	args  []Args
}

// cb returns a callback that records name.
func (r *recorder) cb(name string) Callback {
	return func(_ context.Context, args Args) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		r.args = append(r.args, args)
		return nil
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.args = nil
}

// failing returns a callback that returns err.
func failing(err error) Callback {
	return func(context.Context, Args) error { return err }
}

// panicking returns a callback that panics with v.
func panicking(v any) Callback {
	return func(context.Context, Args) error { panic(v) }
}

func testCtx() context.Context {
	return context.Background()
}
