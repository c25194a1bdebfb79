package emitter

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/randalmurphal/emitter/pkg/emitter/config"
)

// Sentinel errors.
var (
	// ErrListenerPanic is wrapped by ListenerError when a listener panicked.
	ErrListenerPanic = errors.New("listener panicked")

	// ErrListenerGone indicates a redelivery target is no longer registered.
	ErrListenerGone = errors.New("listener no longer registered")

	// ErrUnknownHandler indicates a configured binding names a handler that
	// was not supplied.
	ErrUnknownHandler = errors.New("unknown handler")
)

// ListenerError reports a failed listener invocation.
type ListenerError struct {
	// Event is the dispatched event name.
	Event string
	// ListenerID is the listener that failed.
	ListenerID ID
	// Once reports whether the listener was one-shot.
	Once bool
	// Panicked is true when the listener panicked instead of returning an error.
	Panicked bool
	// PanicValue holds the recovered value when Panicked is true.
	PanicValue any
	// Err is the returned error, or ErrListenerPanic wrapped with the panic value.
	Err error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %d on %q: %v", e.ListenerID, e.Event, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// DecodeError reports a payload that could not be decoded for a typed topic.
type DecodeError struct {
	Type string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payload as %s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError[T any](err error) *DecodeError {
	return &DecodeError{Type: reflect.TypeFor[T]().String(), Err: err}
}

// ErrorPolicy decides what a dispatch does when a listener fails.
type ErrorPolicy int

const (
	// PolicyPropagate aborts the dispatch at the first failure. Errors are
	// returned to the caller and panics are re-raised.
	PolicyPropagate ErrorPolicy = iota

	// PolicyContinue recovers panics, keeps invoking the remaining
	// listeners, and returns every failure joined.
	PolicyContinue
)

// String returns the policy name used in settings.
func (p ErrorPolicy) String() string {
	switch p {
	case PolicyPropagate:
		return config.PolicyPropagate
	case PolicyContinue:
		return config.PolicyContinue
	default:
		return "unknown"
	}
}

// ParseErrorPolicy converts a settings value to an ErrorPolicy.
// The empty string selects PolicyPropagate.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.PolicyPropagate:
		return PolicyPropagate, nil
	case config.PolicyContinue:
		return PolicyContinue, nil
	default:
		return PolicyPropagate, fmt.Errorf("%w: %q", config.ErrInvalidPolicy, s)
	}
}
