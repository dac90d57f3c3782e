package playback

import (
	"github.com/llehouerou/lineup/internal/errmsg"
	"github.com/llehouerou/lineup/internal/metrics"
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/reconcile"
)

// QueueChange is emitted after every reconciliation.
type QueueChange struct {
	Descriptors []playlist.Descriptor // full descriptor list
	Window      []playlist.ID         // ids handed to the engine, current first
}

// CurrentChange is emitted when the engine's current item changes.
// Previous and Current are nil when there was or is no current item.
type CurrentChange struct {
	Previous *playlist.Descriptor
	Current  *playlist.Descriptor
}

// MetricsChange is emitted when samples for the current item were aggregated.
type MetricsChange struct {
	Snapshot metrics.DeltaSnapshot
}

// ModeChange is emitted when the repeat mode changes.
type ModeChange struct {
	RepeatMode reconcile.RepeatMode
}

// ErrorEvent is emitted when an error occurs during playback.
type ErrorEvent struct {
	Operation errmsg.Op
	ID        playlist.ID // descriptor id if applicable
	Err       error
}

// Message renders the error for display.
func (e ErrorEvent) Message() string {
	return errmsg.Format(e.Operation, e.Err)
}
