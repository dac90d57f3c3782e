package engine

import (
	"time"

	"github.com/llehouerou/lineup/internal/metrics"
)

// Properties are the engine-reported playback properties of the current item.
type Properties struct {
	Buffering bool
	Rate      float64
	Position  time.Duration
	Duration  time.Duration
}

// Interface is the native playback engine boundary. The engine plays the
// head of the queue and advances through the rest on its own.
type Interface interface {
	// SetQueue replaces the queue. The head becomes current unless it
	// already is, in which case its playback position is kept.
	SetQueue(items []*Item)
	Queue() []*Item
	Current() *Item

	Play() error
	Pause()
	Seek(position time.Duration)
	State() State

	// CurrentChanged reports items the engine moved to on its own.
	CurrentChanged() <-chan *Item
	// Samples delivers access-log-like counter events.
	Samples() <-chan metrics.Sample
	// PropertiesChanged delivers buffering, rate and time updates.
	PropertiesChanged() <-chan Properties

	Close() error
}
