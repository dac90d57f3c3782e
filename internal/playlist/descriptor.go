package playlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/lineup/internal/resource"
)

// ErrDuplicateID is returned when a descriptor list repeats an id.
var ErrDuplicateID = errors.New("duplicate descriptor id")

// ID identifies a descriptor across edits.
type ID string

// NewID returns a random descriptor id.
func NewID() ID {
	return ID(uuid.NewString())
}

// Well-known Metadata.Extra keys.
const (
	ExtraAlbumArtist   = "album_artist"
	ExtraGenre         = "genre"
	ExtraYear          = "year"
	ExtraMBRecordingID = "musicbrainz_recording_id"
)

// Metadata is the display snapshot of a descriptor.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Duration    time.Duration
	ArtworkURL  string
	Extra       map[string]string
}

// Equal compares two snapshots field by field.
func (m Metadata) Equal(o Metadata) bool {
	if m.Title != o.Title || m.Artist != o.Artist || m.Album != o.Album ||
		m.TrackNumber != o.TrackNumber || m.Duration != o.Duration ||
		m.ArtworkURL != o.ArtworkURL || len(m.Extra) != len(o.Extra) {
		return false
	}
	for k, v := range m.Extra {
		if ov, ok := o.Extra[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Descriptor is one playable unit. It is a value: edits build a new
// descriptor carrying the same ID.
type Descriptor struct {
	ID       ID
	Resource resource.Resource
	Metadata Metadata
	Bindings []BindingFactory
}

// New creates a descriptor with a fresh id.
func New(res resource.Resource, meta Metadata, bindings ...BindingFactory) Descriptor {
	return Descriptor{
		ID:       NewID(),
		Resource: res,
		Metadata: meta,
		Bindings: bindings,
	}
}

// WithResource returns a copy of d pointing at res.
func (d Descriptor) WithResource(res resource.Resource) Descriptor {
	d.Resource = res
	return d
}

// WithMetadata returns a copy of d with a new metadata snapshot.
func (d Descriptor) WithMetadata(meta Metadata) Descriptor {
	d.Metadata = meta
	return d
}

// IDs returns the ids of ds in order.
func IDs(ds []Descriptor) []ID {
	ids := make([]ID, len(ds))
	for i := range ds {
		ids[i] = ds[i].ID
	}
	return ids
}

// IndexOf returns the position of id in ds, or -1.
func IndexOf(ds []Descriptor, id ID) int {
	for i := range ds {
		if ds[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate rejects lists that repeat an id.
func Validate(ds []Descriptor) error {
	seen := make(map[ID]struct{}, len(ds))
	for i := range ds {
		if _, ok := seen[ds[i].ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateID, ds[i].ID)
		}
		seen[ds[i].ID] = struct{}{}
	}
	return nil
}
