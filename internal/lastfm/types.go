package lastfm

import (
	"time"

	"github.com/llehouerou/lineup/internal/playlist"
)

// ScrobbleTrack contains track metadata for scrobbling.
type ScrobbleTrack struct {
	Artist        string
	Track         string
	Album         string
	AlbumArtist   string
	Duration      time.Duration
	Timestamp     time.Time // When playback started
	MBRecordingID string    // Optional MusicBrainz recording ID
}

// TrackFromMetadata builds the scrobble payload for a descriptor.
func TrackFromMetadata(m playlist.Metadata, started time.Time) ScrobbleTrack {
	return ScrobbleTrack{
		Artist:        m.Artist,
		Track:         m.Title,
		Album:         m.Album,
		AlbumArtist:   m.Extra[playlist.ExtraAlbumArtist],
		Duration:      m.Duration,
		Timestamp:     started,
		MBRecordingID: m.Extra[playlist.ExtraMBRecordingID],
	}
}

// Valid reports whether Last.fm would accept the track.
func (t ScrobbleTrack) Valid() bool {
	return t.Artist != "" && t.Track != ""
}
