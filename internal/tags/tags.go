// Package tags reads descriptor metadata from local audio files.
package tags

import (
	"path/filepath"
	"strings"
	"time"
)

// File extensions supported by the tags package.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
)

// Tag is the subset of file tags that feeds descriptor metadata.
type Tag struct {
	Path          string
	Title         string
	Artist        string
	AlbumArtist   string
	Album         string
	Genre         string
	Year          int
	TrackNumber   int
	TotalTracks   int
	DiscNumber    int
	MBRecordingID string
	Duration      time.Duration
}

// IsMusicFile returns true if the path has a supported music file extension.
func IsMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3, ExtFLAC, ExtOPUS, ExtOGG, ExtOGA, ExtM4A, ExtMP4:
		return true
	default:
		return false
	}
}
