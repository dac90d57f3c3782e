package lastfm

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/state"
)

const (
	minScrobbleDuration  = 30 * time.Second
	maxScrobbleThreshold = 4 * time.Minute
	pendingMaxAge        = 14 * 24 * time.Hour
	jobBufferSize        = 32
)

// Scrobbler is the part of Client the tracker uses.
type Scrobbler interface {
	UpdateNowPlaying(track ScrobbleTrack) error
	Scrobble(track ScrobbleTrack) error
}

// ShouldScrobble applies the Last.fm rule: tracks of at least 30s count
// once half of them, or four minutes, has been played.
func ShouldScrobble(position, duration time.Duration) bool {
	if duration < minScrobbleDuration {
		return false
	}
	return position >= min(duration/2, maxScrobbleThreshold)
}

// Tracker is an analytics observer. Its Binding method is a binding factory:
// every stay of a descriptor in the current slot reports "now playing" once
// and scrobbles at most once. Network calls run on the tracker's own worker
// so bindings never block the caller. Failures are logged and, when a
// pending store is set, queued for RetryPending.
type Tracker struct {
	client  Scrobbler
	pending state.PendingStore
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	jobs   chan func()
	wg     sync.WaitGroup
}

// NewTracker starts a tracker. pending may be nil.
func NewTracker(client Scrobbler, pending state.PendingStore, log zerolog.Logger) *Tracker {
	t := &Tracker{
		client:  client,
		pending: pending,
		log:     log,
		now:     time.Now,
		jobs:    make(chan func(), jobBufferSize),
	}
	t.wg.Add(1)
	go t.work()
	return t
}

func (t *Tracker) work() {
	defer t.wg.Done()
	for job := range t.jobs {
		job()
	}
}

// Binding creates the observer for one stay of d in the current slot.
func (t *Tracker) Binding(d playlist.Descriptor) playlist.Binding {
	return &session{tracker: t, meta: d.Metadata}
}

// Close stops the worker after the queued submissions ran.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.jobs)
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) submit(job func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.jobs <- job:
	default:
		t.log.Warn().Msg("last.fm queue full, dropping request")
	}
}

func (t *Tracker) nowPlaying(track ScrobbleTrack) {
	t.submit(func() {
		if err := t.client.UpdateNowPlaying(track); err != nil {
			t.log.Warn().Err(err).Str("track", track.Track).Msg("now playing update failed")
		}
	})
}

func (t *Tracker) scrobble(track ScrobbleTrack) {
	t.submit(func() {
		err := t.client.Scrobble(track)
		if err == nil {
			return
		}
		t.log.Warn().Err(err).Str("track", track.Track).Msg("scrobble failed")
		if t.pending == nil || errors.Is(err, ErrNotAuthenticated) {
			return
		}
		if err := t.pending.AddPendingScrobble(pendingFrom(track)); err != nil {
			t.log.Error().Err(err).Msg("queue pending scrobble")
		}
	})
}

// RetryPending resubmits queued scrobbles and drops stale ones. It runs on
// the caller's goroutine.
func (t *Tracker) RetryPending() (succeeded, failed int, err error) {
	if t.pending == nil {
		return 0, 0, nil
	}
	if err := t.pending.DeleteOldPendingScrobbles(pendingMaxAge); err != nil {
		return 0, 0, err
	}
	queued, err := t.pending.GetPendingScrobbles()
	if err != nil {
		return 0, 0, err
	}
	for _, p := range queued {
		if serr := t.client.Scrobble(trackFrom(p)); serr != nil {
			failed++
			if err := t.pending.UpdatePendingScrobbleAttempt(p.ID, serr.Error()); err != nil {
				return succeeded, failed, err
			}
			continue
		}
		succeeded++
		if err := t.pending.DeletePendingScrobble(p.ID); err != nil {
			return succeeded, failed, err
		}
	}
	return succeeded, failed, nil
}

func pendingFrom(track ScrobbleTrack) state.PendingScrobble {
	return state.PendingScrobble{
		Artist:        track.Artist,
		Track:         track.Track,
		Album:         track.Album,
		DurationSecs:  int(track.Duration.Seconds()),
		Timestamp:     track.Timestamp,
		MBRecordingID: track.MBRecordingID,
	}
}

func trackFrom(p state.PendingScrobble) ScrobbleTrack {
	return ScrobbleTrack{
		Artist:        p.Artist,
		Track:         p.Track,
		Album:         p.Album,
		Duration:      time.Duration(p.DurationSecs) * time.Second,
		Timestamp:     p.Timestamp,
		MBRecordingID: p.MBRecordingID,
	}
}

// session is the binding for one stay in the current slot.
type session struct {
	tracker   *Tracker
	meta      playlist.Metadata
	startedAt time.Time
	enabled   bool
	scrobbled bool
}

func (s *session) Enable() {
	s.enabled = true
	s.startedAt = s.tracker.now()
	if track := TrackFromMetadata(s.meta, s.startedAt); track.Valid() {
		s.tracker.nowPlaying(track)
	}
}

func (s *session) Update(p playlist.Properties) {
	if !s.enabled || s.scrobbled {
		return
	}
	if p.Metadata.Title != "" || p.Metadata.Artist != "" {
		s.meta = p.Metadata
	}
	duration := p.Duration
	if duration <= 0 {
		duration = s.meta.Duration
	}
	if !ShouldScrobble(p.Position, duration) {
		return
	}
	track := TrackFromMetadata(s.meta, s.startedAt)
	if !track.Valid() {
		return
	}
	track.Duration = duration
	s.scrobbled = true
	s.tracker.scrobble(track)
}

func (s *session) Disable() {
	s.enabled = false
}
