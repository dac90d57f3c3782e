package lastfm

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/shkh/lastfm-go/lastfm"
)

// ErrNotAuthenticated is returned when an operation requires authentication.
var ErrNotAuthenticated = errors.New("not authenticated")

const maxBatchSize = 50

// Client wraps the Last.fm API for scrobbling operations.
type Client struct {
	api        *lastfm.Api
	apiKey     string
	sessionKey string
}

// New creates a new Last.fm client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	return &Client{
		api:    lastfm.New(apiKey, apiSecret),
		apiKey: apiKey,
	}
}

// SetSessionKey sets the authenticated session key.
func (c *Client) SetSessionKey(key string) {
	c.sessionKey = key
	c.api.SetSession(key)
}

func (c *Client) SessionKey() string {
	return c.sessionKey
}

func (c *Client) IsAuthenticated() bool {
	return c.sessionKey != ""
}

// GetToken requests an authentication token from Last.fm.
func (c *Client) GetToken() (string, error) {
	token, err := c.api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// AuthURL returns the page where the user authorizes token. When callback
// is set Last.fm redirects there afterwards.
func (c *Client) AuthURL(token, callback string) string {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("token", token)
	if callback != "" {
		q.Set("cb", callback)
	}
	return "https://www.last.fm/api/auth/?" + q.Encode()
}

// GetSession exchanges an authorized token for a session key. The username
// is "unknown" when the profile lookup fails after a successful login.
func (c *Client) GetSession(token string) (username, sessionKey string, err error) {
	if err := c.api.LoginWithToken(token); err != nil {
		return "", "", fmt.Errorf("get session: %w", err)
	}
	sessionKey = c.api.GetSessionKey()
	c.sessionKey = sessionKey

	info, err := c.api.User.GetInfo(nil)
	if err != nil {
		return "unknown", sessionKey, nil //nolint:nilerr // username is optional
	}
	return info.Name, sessionKey, nil
}

// UpdateNowPlaying sends a "now playing" notification to Last.fm.
func (c *Client) UpdateNowPlaying(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if _, err := c.api.Track.UpdateNowPlaying(trackParams(track)); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

// Scrobble submits a track play to Last.fm.
func (c *Client) Scrobble(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	params := trackParams(track)
	params["timestamp"] = track.Timestamp.Unix()
	if _, err := c.api.Track.Scrobble(params); err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

// ScrobbleBatch submits up to 50 plays in one request; the rest are ignored.
func (c *Client) ScrobbleBatch(tracks []ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if len(tracks) == 0 {
		return nil
	}
	if len(tracks) > maxBatchSize {
		tracks = tracks[:maxBatchSize]
	}

	artists := make([]string, len(tracks))
	titles := make([]string, len(tracks))
	albums := make([]string, len(tracks))
	timestamps := make([]int64, len(tracks))
	for i, t := range tracks {
		artists[i] = t.Artist
		titles[i] = t.Track
		albums[i] = t.Album
		timestamps[i] = t.Timestamp.Unix()
	}

	_, err := c.api.Track.Scrobble(lastfm.P{
		"artist":    artists,
		"track":     titles,
		"album":     albums,
		"timestamp": timestamps,
	})
	if err != nil {
		return fmt.Errorf("batch scrobble: %w", err)
	}
	return nil
}

func trackParams(track ScrobbleTrack) lastfm.P {
	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Track,
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.AlbumArtist != "" && track.AlbumArtist != track.Artist {
		params["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"] = int(track.Duration.Seconds())
	}
	if track.MBRecordingID != "" {
		params["mbid"] = track.MBRecordingID
	}
	return params
}
