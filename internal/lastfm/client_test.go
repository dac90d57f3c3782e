package lastfm

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RequiresSession(t *testing.T) {
	c := New("key", "secret")

	assert.False(t, c.IsAuthenticated())
	assert.ErrorIs(t, c.UpdateNowPlaying(ScrobbleTrack{Artist: "a", Track: "b"}), ErrNotAuthenticated)
	assert.ErrorIs(t, c.Scrobble(ScrobbleTrack{Artist: "a", Track: "b"}), ErrNotAuthenticated)
	assert.ErrorIs(t, c.ScrobbleBatch(nil), ErrNotAuthenticated)

	c.SetSessionKey("sk")
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, "sk", c.SessionKey())
	assert.NoError(t, c.ScrobbleBatch(nil))
}

func TestClient_AuthURL(t *testing.T) {
	c := New("key", "secret")

	u, err := url.Parse(c.AuthURL("tok", "http://127.0.0.1:9847/callback"))

	require.NoError(t, err)
	assert.Equal(t, "www.last.fm", u.Host)
	assert.Equal(t, "key", u.Query().Get("api_key"))
	assert.Equal(t, "tok", u.Query().Get("token"))
	assert.Equal(t, "http://127.0.0.1:9847/callback", u.Query().Get("cb"))
}

func TestTrackParams(t *testing.T) {
	p := trackParams(ScrobbleTrack{
		Artist:      "A",
		Track:       "T",
		AlbumArtist: "A",
		Duration:    200 * time.Second,
	})

	assert.Equal(t, "A", p["artist"])
	assert.Equal(t, 200, p["duration"])
	assert.NotContains(t, p, "albumArtist")
	assert.NotContains(t, p, "album")
}

func TestAuthServer_ReceivesToken(t *testing.T) {
	as, err := StartAuthServer("127.0.0.1:0")
	require.NoError(t, err)
	defer as.Shutdown()

	resp, err := http.Get(as.CallbackURL() + "?token=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	token, err := as.WaitForToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestAuthServer_EmptyToken(t *testing.T) {
	as, err := StartAuthServer("127.0.0.1:0")
	require.NoError(t, err)
	defer as.Shutdown()

	resp, err := http.Get(as.CallbackURL())
	require.NoError(t, err)
	resp.Body.Close()

	_, err = as.WaitForToken(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestAuthServer_WaitHonorsContext(t *testing.T) {
	as, err := StartAuthServer("127.0.0.1:0")
	require.NoError(t, err)
	defer as.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = as.WaitForToken(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
