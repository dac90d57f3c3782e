// Package playback runs the player service: the single coordination context
// that keeps the native engine's queue, the observer bindings and the
// metrics in step with the caller's descriptor list.
package playback

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/lineup/internal/engine"
	"github.com/llehouerou/lineup/internal/metrics"
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/reconcile"
	"github.com/llehouerou/lineup/internal/resource"
)

var (
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("playback service closed")
	// ErrUnknownID is returned when a descriptor id is not in the list.
	ErrUnknownID = errors.New("unknown descriptor id")
	// ErrNoResolver is returned by Reload when no Resolver was configured.
	ErrNoResolver = errors.New("no resolver configured")
)

// DefaultWindowLength is the number of items handed to the engine.
const DefaultWindowLength = 3

// Resolver produces the playable resource for a descriptor. It runs off the
// coordination context and must honor ctx cancellation. An error turns the
// descriptor's resource into resource.Failed.
type Resolver func(ctx context.Context, d playlist.Descriptor) (resource.Resource, error)

// Options configures a Service. Zero values select defaults.
type Options struct {
	WindowLength       int
	RepeatMode         reconcile.RepeatMode
	HistorySize        int
	MaxConcurrentLoads int

	// Resolver resolves Loading descriptors and Reload requests.
	Resolver Resolver
	// Adapter builds engine items; engine.Adapter when nil.
	Adapter engine.ItemAdapter
	// Exporter, when set, receives every metrics snapshot.
	Exporter *metrics.Exporter
	// Logger defaults to the "playback" component logger.
	Logger *zerolog.Logger
}

// Service defines the playback service contract.
//
// Commands block until the coordination context has applied them. They must
// not be called from inside an observer binding; queries may.
type Service interface {
	// Content
	SetDescriptors(ds []playlist.Descriptor) error
	Descriptors() []playlist.Descriptor
	CurrentDescriptor() (playlist.Descriptor, bool)
	Reload(id playlist.ID) error
	JumpTo(id playlist.ID) error

	// Observers and metrics
	Register(id playlist.ID, b playlist.Binding) error
	// Metrics covers the current item only: EventCount and totals restart
	// from zero whenever the current item changes.
	Metrics() metrics.DeltaSnapshot

	// Playback control
	Play() error
	Pause() error
	Seek(position time.Duration) error
	State() engine.State
	Queue() []playlist.ID

	// Descriptor list history
	Undo() bool
	Redo() bool

	// Mode control
	RepeatMode() reconcile.RepeatMode
	SetRepeatMode(mode reconcile.RepeatMode) error
	CycleRepeatMode() (reconcile.RepeatMode, error)

	// Event subscription
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}
