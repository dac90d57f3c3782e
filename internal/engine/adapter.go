package engine

import (
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/resource"
)

// ItemAdapter converts descriptors into engine items.
type ItemAdapter interface {
	// Build creates a fresh item.
	Build(d playlist.Descriptor) *Item
	// Update re-applies d to item in place without reloading it.
	Update(item *Item, d playlist.Descriptor)
	// Matches reports whether item was built for d's id.
	Matches(item *Item, d playlist.Descriptor) bool
}

// Adapter is the default ItemAdapter.
type Adapter struct{}

var _ ItemAdapter = Adapter{}

func (Adapter) Build(d playlist.Descriptor) *Item {
	return newItem(d)
}

// Update keeps the item's resource, status and position; only metadata and
// bindings follow d.
func (Adapter) Update(item *Item, d playlist.Descriptor) {
	if item == nil || item.descriptor.ID != d.ID {
		return
	}
	res := item.descriptor.Resource
	item.descriptor = d
	item.descriptor.Resource = res
}

func (Adapter) Matches(item *Item, d playlist.Descriptor) bool {
	return item != nil && item.descriptor.ID == d.ID
}

// Reload returns d with a new Loading placeholder. The reconciler sees it as
// a resource change and rebuilds the item.
func Reload(d playlist.Descriptor) playlist.Descriptor {
	return d.WithResource(resource.Loading())
}
