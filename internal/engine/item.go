package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/resource"
)

// Status is the load status of an engine item.
type Status int

const (
	StatusReady Status = iota
	StatusLoading
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusLoading:
		return "Loading"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

var serials atomic.Uint64

// Item is a queued unit of the native engine, tagged with the id of the
// descriptor it was built from. Items are compared by pointer identity.
type Item struct {
	serial     uint64
	descriptor playlist.Descriptor
	status     Status
	err        error
	position   time.Duration
}

func newItem(d playlist.Descriptor) *Item {
	it := &Item{
		serial:     serials.Add(1),
		descriptor: d,
	}
	switch d.Resource.Kind() {
	case resource.KindLoading:
		it.status = StatusLoading
	case resource.KindFailed:
		it.status = StatusFailed
		it.err = d.Resource.Err()
	default:
		it.status = StatusReady
	}
	return it
}

// ID returns the descriptor id the item was built from.
func (it *Item) ID() playlist.ID { return it.descriptor.ID }

// Serial is unique per built item; a rebuilt item never shares it.
func (it *Item) Serial() uint64 { return it.serial }

// Descriptor returns the descriptor last applied to the item.
func (it *Item) Descriptor() playlist.Descriptor { return it.descriptor }

func (it *Item) Status() Status { return it.status }

// Err returns the failure of a Failed placeholder.
func (it *Item) Err() error { return it.err }

// IsPlaceholder reports whether the item can never become playable.
func (it *Item) IsPlaceholder() bool { return it.status != StatusReady }

func (it *Item) Position() time.Duration { return it.position }

// SetPosition records the playback position. Placeholders stay at zero.
func (it *Item) SetPosition(p time.Duration) {
	if it.IsPlaceholder() {
		return
	}
	it.position = p
}

func (it *Item) String() string {
	return fmt.Sprintf("%s#%d(%s)", it.descriptor.ID, it.serial, it.status)
}
