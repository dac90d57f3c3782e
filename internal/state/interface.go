package state

import (
	"context"
	"database/sql"
	"time"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB
	SaveQueue(ctx context.Context, s QueueState) error
	SaveQueueDebounced(s QueueState)
	GetQueue(ctx context.Context) (*QueueState, error)
	PendingStore
	Close() error
}

// PendingStore keeps scrobbles that could not be submitted.
type PendingStore interface {
	AddPendingScrobble(s PendingScrobble) error
	GetPendingScrobbles() ([]PendingScrobble, error)
	DeletePendingScrobble(id int64) error
	UpdatePendingScrobbleAttempt(id int64, errMsg string) error
	DeleteOldPendingScrobbles(maxAge time.Duration) error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
