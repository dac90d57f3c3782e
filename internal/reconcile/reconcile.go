// Package reconcile computes the engine queue for a descriptor list.
//
// The engine only holds the current item plus a short lookahead, so every
// edit produces a window of at most length descriptors. The item already
// playing is kept (same instance, same position) when its id is still present
// and its resource did not change; everything else is built fresh.
package reconcile

import (
	"github.com/llehouerou/lineup/internal/engine"
	"github.com/llehouerou/lineup/internal/playlist"
)

// Entry is one slot of a planned window.
type Entry struct {
	Descriptor playlist.Descriptor
	// Reused is set on the slot that keeps the current engine item.
	Reused bool
}

// Plan computes the window of descriptors the engine should hold.
// currentID is the id of the engine's current item; hasCurrent is false when
// the engine has none. length must be at least 1.
func Plan(previous, current []playlist.Descriptor, currentID playlist.ID, hasCurrent bool, mode RepeatMode, length int) []Entry {
	if length < 1 {
		panic("reconcile: window length must be at least 1")
	}
	if len(current) == 0 {
		return nil
	}

	start, reused := 0, false
	if hasCurrent {
		start, reused = locate(previous, current, currentID)
	}

	if mode == RepeatOne {
		length = 1
	}

	size := min(length, len(current)-start)
	if mode == RepeatAll {
		size = length
	}
	window := make([]Entry, 0, size)
	for i := start; i < len(current) && len(window) < length; i++ {
		window = append(window, Entry{Descriptor: current[i]})
	}
	if mode == RepeatAll {
		for k := 0; len(window) < length; k++ {
			window = append(window, Entry{Descriptor: current[k%len(current)]})
		}
	}
	if reused {
		window[0].Reused = true
	}
	return window
}

// locate finds where the window starts in current and whether the engine's
// current item can be kept there.
func locate(previous, current []playlist.Descriptor, currentID playlist.ID) (start int, reused bool) {
	if i := playlist.IndexOf(current, currentID); i >= 0 {
		p := playlist.IndexOf(previous, currentID)
		unchanged := p >= 0 && previous[p].Resource.Equal(current[i].Resource)
		return i, unchanged
	}
	return anchor(previous, current, currentID), false
}

// anchor resumes after a removed current item: it walks previous forward from
// the removed item's old position and returns the index in current of the
// first id found there. Without such an id the window starts at 0.
func anchor(previous, current []playlist.Descriptor, removed playlist.ID) int {
	p := playlist.IndexOf(previous, removed)
	if p < 0 {
		return 0
	}
	for _, d := range previous[p+1:] {
		if i := playlist.IndexOf(current, d.ID); i >= 0 {
			return i
		}
	}
	return 0
}

// Reconciler materializes plans into engine items.
type Reconciler struct {
	adapter engine.ItemAdapter
}

// New creates a reconciler building items with adapter.
func New(adapter engine.ItemAdapter) *Reconciler {
	if adapter == nil {
		adapter = engine.Adapter{}
	}
	return &Reconciler{adapter: adapter}
}

// Reconcile returns the ordered items the engine queue should hold. When
// the engine's current item is kept it is returned as-is at the head, with
// the new descriptor's metadata applied in place.
func (r *Reconciler) Reconcile(previous, current []playlist.Descriptor, currentItem *engine.Item, mode RepeatMode, length int) []*engine.Item {
	var currentID playlist.ID
	if currentItem != nil {
		currentID = currentItem.ID()
	}
	plan := Plan(previous, current, currentID, currentItem != nil, mode, length)

	items := make([]*engine.Item, len(plan))
	for i, e := range plan {
		if e.Reused && r.adapter.Matches(currentItem, e.Descriptor) {
			r.adapter.Update(currentItem, e.Descriptor)
			items[i] = currentItem
			continue
		}
		items[i] = r.adapter.Build(e.Descriptor)
	}
	return items
}

// Reconcile uses the default engine adapter.
func Reconcile(previous, current []playlist.Descriptor, currentItem *engine.Item, mode RepeatMode, length int) []*engine.Item {
	return New(nil).Reconcile(previous, current, currentItem, mode, length)
}

// Jump returns a fresh window starting at id, for explicit skips. Nothing is
// reused. An unknown id starts at the head.
func (r *Reconciler) Jump(current []playlist.Descriptor, id playlist.ID, mode RepeatMode, length int) []*engine.Item {
	plan := Plan(nil, current, id, true, mode, length)
	items := make([]*engine.Item, len(plan))
	for i, e := range plan {
		items[i] = r.adapter.Build(e.Descriptor)
	}
	return items
}
