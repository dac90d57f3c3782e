package nowplaying

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/lineup/internal/playlist"
)

func descriptor() playlist.Descriptor {
	return playlist.Descriptor{
		ID: "abc",
		Metadata: playlist.Metadata{
			Title:    "Song",
			Artist:   "Artist",
			Album:    "Album",
			Duration: 3 * time.Minute,
		},
	}
}

func TestMapper_PublishesAndClears(t *testing.T) {
	rec := &Recorder{}
	d := descriptor()
	b := NewMapper(rec).Binding(d)

	b.Enable()
	info, ok := rec.Latest()
	require.True(t, ok)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, 3*time.Minute, info.Duration)
	assert.Contains(t, info.TrackID, "/lineup/track/")

	b.Update(playlist.Properties{Metadata: d.Metadata, Rate: 1, Position: 30 * time.Second})
	info, _ = rec.Latest()
	assert.Equal(t, 30*time.Second, info.Position)
	assert.True(t, info.Playing())

	b.Disable()
	_, ok = rec.Latest()
	assert.False(t, ok)
}

func TestMapper_SkipsUnchangedUpdates(t *testing.T) {
	rec := &Recorder{}
	d := descriptor()
	b := NewMapper(rec).Binding(d)
	props := playlist.Properties{Metadata: d.Metadata, Rate: 1, Position: time.Second}

	b.Enable()
	b.Update(props)
	b.Update(props)

	assert.Equal(t, 2, rec.Published())
}

func TestMapper_IgnoresCallsOutsideEnabled(t *testing.T) {
	rec := &Recorder{}
	b := NewMapper(rec).Binding(descriptor())

	b.Update(playlist.Properties{Position: time.Second})
	b.Disable()

	assert.Equal(t, 0, rec.Published())
}

func TestTrackID_Stable(t *testing.T) {
	assert.Equal(t, trackID("abc"), trackID("abc"))
	assert.NotEqual(t, trackID("abc"), trackID("abd"))
}

func TestSummary(t *testing.T) {
	got := Summary(Info{Title: "Song"}, time.Now().Add(-3*time.Minute))
	assert.Equal(t, "Song [--:-- / --:--] paused (updated 3 minutes ago)", got)
}

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "playing",
			info: Info{Title: "Song", Artist: "Artist", Position: 75 * time.Second, Duration: 3 * time.Minute, Rate: 1},
			want: "Artist - Song [1:15 / 3:00] playing",
		},
		{
			name: "buffering without duration",
			info: Info{Title: "Live", Rate: 1, Buffering: true},
			want: "Live [--:-- / --:--] buffering",
		},
		{
			name: "paused long",
			info: Info{Title: "Mix", Position: time.Hour + 2*time.Second, Duration: 2 * time.Hour},
			want: "Mix [1:00:02 / 2:00:00] paused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
