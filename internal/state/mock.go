package state

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Mock is an in-memory Interface for tests.
type Mock struct {
	mu      sync.Mutex
	queue   *QueueState
	pending []PendingScrobble
	nextID  int64
	saves   int
	closed  bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) SaveQueue(_ context.Context, s QueueState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = &s
	m.saves++
	return nil
}

func (m *Mock) SaveQueueDebounced(s QueueState) {
	_ = m.SaveQueue(context.Background(), s)
}

func (m *Mock) GetQueue(_ context.Context) (*QueueState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue == nil {
		return &QueueState{}, nil
	}
	q := *m.queue
	return &q, nil
}

func (m *Mock) AddPendingScrobble(s PendingScrobble) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now()
	m.pending = append(m.pending, s)
	return nil
}

func (m *Mock) GetPendingScrobbles() ([]PendingScrobble, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PendingScrobble(nil), m.pending...), nil
}

func (m *Mock) DeletePendingScrobble(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pending {
		if p.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mock) UpdatePendingScrobbleAttempt(id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.pending {
		if m.pending[i].ID == id {
			m.pending[i].Attempts++
			m.pending[i].LastError = errMsg
		}
	}
	return nil
}

func (m *Mock) DeleteOldPendingScrobbles(maxAge time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	kept := m.pending[:0]
	for _, p := range m.pending {
		if !p.CreatedAt.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	m.pending = kept
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Test helpers

func (m *Mock) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Mock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
