package tags

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dhowden/tag"

	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/resource"
)

// Descriptor builds a descriptor for a local file. Untagged files are
// titled after their file name; unreadable files are an error.
func Descriptor(path string, bindings ...playlist.BindingFactory) (playlist.Descriptor, error) {
	if _, err := os.Stat(path); err != nil {
		return playlist.Descriptor{}, err
	}

	t, err := Read(path)
	if errors.Is(err, tag.ErrNoTagsFound) {
		t = &Tag{Path: path, Title: filepath.Base(path)}
		t.Duration, _ = ReadDuration(path)
	} else if err != nil {
		return playlist.Descriptor{}, err
	}

	meta := Metadata(t)
	if art := FindAlbumArt(path); art != "" {
		meta.ArtworkURL = FileURL(art)
	}
	return playlist.New(resource.Simple(FileURL(path)), meta, bindings...), nil
}

// Metadata maps tags to descriptor metadata.
func Metadata(t *Tag) playlist.Metadata {
	extra := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			extra[k] = v
		}
	}
	set(playlist.ExtraAlbumArtist, t.AlbumArtist)
	set(playlist.ExtraGenre, t.Genre)
	set(playlist.ExtraMBRecordingID, t.MBRecordingID)
	if t.Year > 0 {
		set(playlist.ExtraYear, strconv.Itoa(t.Year))
	}
	if len(extra) == 0 {
		extra = nil
	}

	return playlist.Metadata{
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		TrackNumber: t.TrackNumber,
		Duration:    t.Duration,
		Extra:       extra,
	}
}
