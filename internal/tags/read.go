package tags

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

const musicBrainzOwner = "http://musicbrainz.org"

// Read reads tag metadata and the audio length from a music file. Files
// without tags return tag.ErrNoTagsFound. A stream taglib cannot measure
// leaves Duration zero.
func Read(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	t := fromMetadata(path, m)
	t.Duration, _ = ReadDuration(path)
	return t, nil
}

func fromMetadata(path string, m tag.Metadata) *Tag {
	title := m.Title()
	if title == "" {
		title = filepath.Base(path)
	}
	albumArtist := m.AlbumArtist()
	if albumArtist == "" {
		albumArtist = m.Artist()
	}
	track, total := m.Track()
	disc, _ := m.Disc()

	return &Tag{
		Path:          path,
		Title:         title,
		Artist:        m.Artist(),
		AlbumArtist:   albumArtist,
		Album:         m.Album(),
		Genre:         m.Genre(),
		Year:          m.Year(),
		TrackNumber:   track,
		TotalTracks:   total,
		DiscNumber:    disc,
		MBRecordingID: recordingID(m.Raw()),
	}
}

// recordingID finds the MusicBrainz recording id: a Vorbis comment, an
// MP4 freeform atom, or an ID3 UFID frame owned by MusicBrainz.
func recordingID(raw map[string]any) string {
	for key, v := range raw {
		switch val := v.(type) {
		case string:
			k := strings.ToLower(key)
			if k == "musicbrainz_trackid" || strings.HasSuffix(k, "musicbrainz track id") {
				return val
			}
		case *tag.UFID:
			if val.Provider == musicBrainzOwner {
				return string(val.Identifier)
			}
		}
	}
	return ""
}
