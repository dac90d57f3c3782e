//go:build linux

package mpris

import (
	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
)

const busName = "lineup"

// New creates a publisher and claims the org.mpris.MediaPlayer2.lineup
// bus name in the background.
func New() (*Publisher, error) {
	p := &Publisher{}
	srv := server.NewServer(busName, rootAdapter{}, &playerAdapter{pub: p})
	p.server = srv

	go func() {
		_ = srv.Listen()
	}()
	return p, nil
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (rootAdapter) Raise() error { return ErrReadOnly }
func (rootAdapter) Quit() error { return ErrReadOnly }
func (rootAdapter) CanQuit() (bool, error) { return false, nil }
func (rootAdapter) CanRaise() (bool, error) { return false, nil }
func (rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}
func (rootAdapter) Identity() (string, error) { return busName, nil }

//nolint:revive // Method name required by interface.
func (rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file", "http", "https"}, nil
}

func (rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/mp4"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter over the
// latest published record.
type playerAdapter struct {
	pub *Publisher
}

func (*playerAdapter) Next() error { return ErrReadOnly }
func (*playerAdapter) Previous() error { return ErrReadOnly }
func (*playerAdapter) Pause() error { return ErrReadOnly }
func (*playerAdapter) PlayPause() error { return ErrReadOnly }
func (*playerAdapter) Stop() error { return ErrReadOnly }
func (*playerAdapter) Play() error { return ErrReadOnly }
func (*playerAdapter) Seek(types.Microseconds) error { return ErrReadOnly }
func (*playerAdapter) SetRate(float64) error { return ErrReadOnly }
func (*playerAdapter) SetVolume(float64) error { return ErrReadOnly }
func (*playerAdapter) SetPosition(string, types.Microseconds) error {
	return ErrReadOnly
}

//nolint:revive // Method name required by interface.
func (*playerAdapter) OpenUri(string) error { return ErrReadOnly }

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	info, ok := p.pub.snapshot()
	switch {
	case !ok:
		return types.PlaybackStatusStopped, nil
	case info.Playing():
		return types.PlaybackStatusPlaying, nil
	default:
		return types.PlaybackStatusPaused, nil
	}
}

func (p *playerAdapter) Rate() (float64, error) {
	if info, ok := p.pub.snapshot(); ok && info.Rate > 0 {
		return info.Rate, nil
	}
	return 1.0, nil
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	info, ok := p.pub.snapshot()
	if !ok {
		return types.Metadata{}, nil
	}
	meta := types.Metadata{
		TrackId:     dbus.ObjectPath(info.TrackID),
		Length:      types.Microseconds(info.Duration.Microseconds()),
		Title:       info.Title,
		Album:       info.Album,
		TrackNumber: info.TrackNumber,
		ArtUrl:      info.ArtworkURL,
	}
	if info.Artist != "" {
		meta.Artist = []string{info.Artist}
	}
	return meta, nil
}

func (*playerAdapter) Volume() (float64, error) { return 1.0, nil }

func (p *playerAdapter) Position() (int64, error) {
	info, _ := p.pub.snapshot()
	return info.Position.Microseconds(), nil
}

func (*playerAdapter) MinimumRate() (float64, error) { return 1.0, nil }
func (*playerAdapter) MaximumRate() (float64, error) { return 1.0, nil }

func (*playerAdapter) CanGoNext() (bool, error) { return false, nil }
func (*playerAdapter) CanGoPrevious() (bool, error) { return false, nil }
func (*playerAdapter) CanPlay() (bool, error) { return false, nil }
func (*playerAdapter) CanPause() (bool, error) { return false, nil }
func (*playerAdapter) CanSeek() (bool, error) { return false, nil }
func (*playerAdapter) CanControl() (bool, error) { return false, nil }
