// Package state persists queue snapshots and Last.fm bookkeeping in sqlite
// so a host can resume across restarts.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "lineup"
	dbFileName   = "lineup.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db *sql.DB

	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *QueueState
	saveErr   func(error)
}

// Open opens the database at path, or under the XDG data directory when
// path is empty.
func Open(path string) (*Manager, error) {
	if path == "" {
		p, err := getDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve state path: %w", err)
		}
		path = p
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Manager{db: db}, nil
}

// OnSaveError sets the handler for failures of debounced saves.
func (m *Manager) OnSaveError(fn func(error)) {
	m.saveMu.Lock()
	m.saveErr = fn
	m.saveMu.Unlock()
}

func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	if pending != nil {
		_ = saveQueue(context.Background(), m.db, *pending)
	}
	return m.db.Close()
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

func (m *Manager) GetQueue(ctx context.Context) (*QueueState, error) {
	return getQueue(ctx, m.db)
}

func (m *Manager) SaveQueue(ctx context.Context, s QueueState) error {
	return saveQueue(ctx, m.db, s)
}

// SaveQueueDebounced coalesces bursts of edits into one write.
func (m *Manager) SaveQueueDebounced(s QueueState) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &s
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		onErr := m.saveErr
		m.saveMu.Unlock()

		if pending == nil {
			return
		}
		if err := saveQueue(context.Background(), m.db, *pending); err != nil && onErr != nil {
			onErr(err)
		}
	})
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
