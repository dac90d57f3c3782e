// Package nowplaying maps the current descriptor and its playback
// properties to a "now playing" record for system media surfaces.
package nowplaying

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/lineup/internal/playlist"
)

// Info is what a media surface displays.
type Info struct {
	TrackID     string
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	ArtworkURL  string
	Duration    time.Duration
	Position    time.Duration
	Rate        float64
	Buffering   bool
}

// Playing reports whether time is advancing.
func (i Info) Playing() bool {
	return i.Rate > 0 && !i.Buffering
}

func (i Info) String() string {
	label := i.Title
	if i.Artist != "" {
		label = i.Artist + " - " + i.Title
	}
	state := "paused"
	switch {
	case i.Buffering:
		state = "buffering"
	case i.Playing():
		state = "playing"
	}
	return fmt.Sprintf("%s [%s / %s] %s", label, clock(i.Position), clock(i.Duration), state)
}

func clock(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	s := int(d.Round(time.Second).Seconds())
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// Sink receives now playing records.
type Sink interface {
	Publish(info Info)
	Clear()
}

// Mapper is a binding factory feeding a Sink.
type Mapper struct {
	sink Sink
}

func NewMapper(sink Sink) *Mapper {
	return &Mapper{sink: sink}
}

// Binding creates the observer for one stay of d in the current slot.
func (m *Mapper) Binding(d playlist.Descriptor) playlist.Binding {
	return &binding{sink: m.sink, info: infoFor(d.ID, d.Metadata)}
}

func infoFor(id playlist.ID, meta playlist.Metadata) Info {
	return Info{
		TrackID:     trackID(id),
		Title:       meta.Title,
		Artist:      meta.Artist,
		Album:       meta.Album,
		TrackNumber: meta.TrackNumber,
		ArtworkURL:  meta.ArtworkURL,
		Duration:    meta.Duration,
	}
}

func trackID(id playlist.ID) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/lineup/track/%x", h.Sum64())
}

type binding struct {
	sink    Sink
	info    Info
	enabled bool
}

func (b *binding) Enable() {
	b.enabled = true
	b.sink.Publish(b.info)
}

func (b *binding) Update(p playlist.Properties) {
	if !b.enabled {
		return
	}
	next := infoFor("", p.Metadata)
	next.TrackID = b.info.TrackID
	next.Position = p.Position
	next.Rate = p.Rate
	next.Buffering = p.Buffering
	if p.Duration > 0 {
		next.Duration = p.Duration
	}
	if next == b.info {
		return
	}
	b.info = next
	b.sink.Publish(next)
}

func (b *binding) Disable() {
	if !b.enabled {
		return
	}
	b.enabled = false
	b.sink.Clear()
}

// Recorder is a Sink keeping the latest record.
type Recorder struct {
	mu        sync.Mutex
	latest    Info
	has       bool
	published int
}

func (r *Recorder) Publish(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = info
	r.has = true
	r.published++
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = Info{}
	r.has = false
}

// Latest returns the current record, false after Clear.
func (r *Recorder) Latest() (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.has
}

// Published counts Publish calls.
func (r *Recorder) Published() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published
}

// Summary renders a one-line description including how long ago the record
// was published, for status output.
func Summary(info Info, since time.Time) string {
	return fmt.Sprintf("%s (updated %s)", info, humanize.Time(since))
}
