// Package deadletter stores listener invocations that failed during dispatch
// so they can be inspected and redelivered.
package deadletter

//go:generate mockgen -destination=mock/mock_store.go -package=mockdeadletter -source=store.go

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record describes one failed listener invocation.
type Record struct {
	ID         string    `json:"id"`
	EventName  string    `json:"event_name"`
	ListenerID uint64    `json:"listener_id"`
	Once       bool      `json:"once"`
	Payload    []byte    `json:"payload"`
	Error      string    `json:"error"`
	Panicked   bool      `json:"panicked"`
	FailedAt   time.Time `json:"failed_at"`
}

// NewRecord builds a Record for a failed invocation, encoding args as JSON.
// Arguments that cannot be encoded are replaced by an empty payload and the
// encoding failure is appended to the error text.
func NewRecord(event string, listenerID uint64, once bool, args map[string]any, cause error, panicked bool) *Record {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		payload = []byte("{}")
		msg = fmt.Sprintf("%s (payload not encodable: %v)", msg, err)
	}

	return &Record{
		ID:         uuid.New().String(),
		EventName:  event,
		ListenerID: listenerID,
		Once:       once,
		Payload:    payload,
		Error:      msg,
		Panicked:   panicked,
		FailedAt:   time.Now().UTC(),
	}
}

// Args decodes the stored payload back into an argument bag.
func (r *Record) Args() (map[string]any, error) {
	args := make(map[string]any)
	if len(r.Payload) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(r.Payload, &args); err != nil {
		return nil, fmt.Errorf("decode dead letter %s: %w", r.ID, err)
	}
	return args, nil
}

// Query selects records from a Store.
type Query struct {
	// EventName restricts results to one event. Empty matches all events.
	EventName string

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Store persists dead letters.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a record. Saving an existing ID overwrites it.
	Save(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns matching records, oldest first.
	List(ctx context.Context, q Query) ([]*Record, error)

	// Delete removes a record. Returns nil if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// Purge removes every record for an event, or all records when event is
	// empty, and returns how many were removed.
	Purge(ctx context.Context, event string) (int, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources.
	Close() error
}

// Sentinel errors for dead letter operations.
var (
	// ErrNotFound indicates a dead letter doesn't exist.
	ErrNotFound = errors.New("dead letter not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("dead letter store closed")

	// ErrUnknownDriver indicates Open was given an unsupported driver.
	ErrUnknownDriver = errors.New("unknown dead letter driver")
)

// Open creates a Store for the named driver.
// Supported drivers are "memory" and "sqlite"; sqlite requires a path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if path == "" {
			return nil, fmt.Errorf("sqlite dead letter store: path is required")
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
