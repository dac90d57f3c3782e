package playlist

import (
	"fmt"
	"math/rand/v2"
)

// Playlist is an editable ordered collection of descriptors. Every edit
// leaves previous snapshots returned by Descriptors untouched.
type Playlist struct {
	items []Descriptor
}

// NewPlaylist creates a playlist holding ds.
func NewPlaylist(ds ...Descriptor) *Playlist {
	p := &Playlist{items: make([]Descriptor, 0, len(ds))}
	p.items = append(p.items, ds...)
	return p
}

// Add appends descriptors to the playlist.
// Returns ErrDuplicateID if any id is already present.
func (p *Playlist) Add(ds ...Descriptor) error {
	return p.Insert(len(p.items), ds...)
}

// Insert places descriptors before index (len inserts at the end).
func (p *Playlist) Insert(index int, ds ...Descriptor) error {
	if index < 0 || index > len(p.items) {
		return fmt.Errorf("insert at %d: index out of range [0,%d]", index, len(p.items))
	}
	next := make([]Descriptor, 0, len(p.items)+len(ds))
	next = append(next, p.items[:index]...)
	next = append(next, ds...)
	next = append(next, p.items[index:]...)
	if err := Validate(next); err != nil {
		return err
	}
	p.items = next
	return nil
}

// Remove removes the descriptor at the given index.
// Returns false if index is out of bounds.
func (p *Playlist) Remove(index int) bool {
	if index < 0 || index >= len(p.items) {
		return false
	}
	next := make([]Descriptor, 0, len(p.items)-1)
	next = append(next, p.items[:index]...)
	p.items = append(next, p.items[index+1:]...)
	return true
}

// RemoveID removes the descriptor with the given id.
func (p *Playlist) RemoveID(id ID) bool {
	return p.Remove(IndexOf(p.items, id))
}

// Replace swaps the descriptor sharing d's id for d.
// Returns false if no descriptor has that id.
func (p *Playlist) Replace(d Descriptor) bool {
	i := IndexOf(p.items, d.ID)
	if i < 0 {
		return false
	}
	next := p.Descriptors()
	next[i] = d
	p.items = next
	return true
}

// Set replaces the whole content.
func (p *Playlist) Set(ds []Descriptor) error {
	if err := Validate(ds); err != nil {
		return err
	}
	p.items = append(make([]Descriptor, 0, len(ds)), ds...)
	return nil
}

// Clear removes all descriptors from the playlist.
func (p *Playlist) Clear() {
	p.items = nil
}

// Descriptors returns a copy of all descriptors.
func (p *Playlist) Descriptors() []Descriptor {
	result := make([]Descriptor, len(p.items))
	copy(result, p.items)
	return result
}

// At returns the descriptor at the given index.
func (p *Playlist) At(index int) (Descriptor, bool) {
	if index < 0 || index >= len(p.items) {
		return Descriptor{}, false
	}
	return p.items[index], true
}

// Index returns the position of id, or -1.
func (p *Playlist) Index(id ID) int {
	return IndexOf(p.items, id)
}

// Len returns the number of descriptors.
func (p *Playlist) Len() int {
	return len(p.items)
}

// Move moves the descriptor at fromIndex to toIndex.
// Returns false if either index is out of bounds.
func (p *Playlist) Move(fromIndex, toIndex int) bool {
	if fromIndex < 0 || fromIndex >= len(p.items) {
		return false
	}
	if toIndex < 0 || toIndex >= len(p.items) {
		return false
	}
	if fromIndex == toIndex {
		return true
	}

	next := p.Descriptors()
	d := next[fromIndex]
	next = append(next[:fromIndex], next[fromIndex+1:]...)
	next = append(next[:toIndex], append([]Descriptor{d}, next[toIndex:]...)...)
	p.items = next
	return true
}

// Shuffle randomizes the order. If pinned is present it is moved to the
// front so the playing item keeps its place at the head of the queue.
func (p *Playlist) Shuffle(r *rand.Rand, pinned ID) {
	next := p.Descriptors()
	r.Shuffle(len(next), func(i, j int) {
		next[i], next[j] = next[j], next[i]
	})
	if i := IndexOf(next, pinned); i > 0 {
		d := next[i]
		copy(next[1:i+1], next[:i])
		next[0] = d
	}
	p.items = next
}
