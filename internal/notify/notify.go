// Package notify shows desktop notifications when the current item changes.
package notify

import (
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/llehouerou/lineup/internal/nowplaying"
)

// Urgency is the freedesktop notification urgency hint.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// DefaultTimeout is the notification lifetime in milliseconds.
const DefaultTimeout = 5000

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	// Returns 0 and nil error if notifications are disabled or unavailable.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
}

// Sink is a nowplaying.Sink announcing each new track once. Later updates
// of the same track (position, buffering) are ignored.
type Sink struct {
	notifier Notifier
	timeout  int32
	log      zerolog.Logger

	mu    sync.Mutex
	track string
	id    uint32
}

var _ nowplaying.Sink = (*Sink)(nil)

// NewSink creates a sink. timeout <= 0 selects DefaultTimeout.
func NewSink(n Notifier, timeout int32, log zerolog.Logger) *Sink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sink{notifier: n, timeout: timeout, log: log}
}

func (s *Sink) Publish(info nowplaying.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.TrackID == s.track {
		return
	}
	s.track = info.TrackID

	id, err := s.notifier.Notify(Notification{
		Title:      info.Title,
		Body:       body(info),
		Icon:       iconPath(info.ArtworkURL),
		Timeout:    s.timeout,
		ReplacesID: s.id,
		Urgency:    UrgencyLow,
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("notification failed")
		return
	}
	s.id = id
}

// Clear closes the visible notification.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = ""
	if s.id == 0 {
		return
	}
	if err := s.notifier.Close(s.id); err != nil {
		s.log.Debug().Err(err).Msg("closing notification failed")
	}
	s.id = 0
}

func body(info nowplaying.Info) string {
	parts := make([]string, 0, 2)
	if info.Artist != "" {
		parts = append(parts, info.Artist)
	}
	if info.Album != "" {
		parts = append(parts, info.Album)
	}
	return strings.Join(parts, " · ")
}

// iconPath keeps local artwork only; notification servers take paths.
func iconPath(artwork string) string {
	u, err := url.Parse(artwork)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return u.Path
}
