package deadletter

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps dead letters in process memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	seq     map[string]int // id -> insertion order
	next    int
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		seq:     make(map[string]int),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	stored := cloneRecord(rec)
	if _, exists := m.seq[rec.ID]; !exists {
		m.next++
		m.seq[rec.ID] = m.next
	}
	m.records[rec.ID] = stored
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, q Query) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		if q.EventName != "" && rec.EventName != q.EventName {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i, rec := range out {
		out[i] = cloneRecord(rec)
	}
	return out, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.records, id)
	delete(m.seq, id)
	return nil
}

// Purge implements Store.
func (m *MemoryStore) Purge(_ context.Context, event string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	for id, rec := range m.records {
		if event != "" && rec.EventName != event {
			continue
		}
		delete(m.records, id)
		delete(m.seq, id)
		removed++
	}
	return removed, nil
}

// Count implements Store.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.records), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	m.seq = nil
	return nil
}

// cloneRecord copies rec so callers can't mutate stored state.
func cloneRecord(rec *Record) *Record {
	c := *rec
	c.Payload = append([]byte(nil), rec.Payload...)
	return &c
}
