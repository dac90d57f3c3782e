package state

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/lineup/internal/db"
)

// LastfmSession is the linked Last.fm account.
type LastfmSession struct {
	Username   string
	SessionKey string
	LinkedAt   time.Time
}

// PendingScrobble is a scrobble waiting to be resubmitted.
type PendingScrobble struct {
	ID            int64
	Artist        string
	Track         string
	Album         string
	DurationSecs  int
	Timestamp     time.Time
	MBRecordingID string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
}

// GetLastfmSession returns the linked session, or nil when none is linked.
func (m *Manager) GetLastfmSession() (*LastfmSession, error) {
	var (
		s        LastfmSession
		linkedAt int64
	)
	err := m.db.QueryRow(`
		SELECT username, session_key, linked_at FROM lastfm_session WHERE id = 1
	`).Scan(&s.Username, &s.SessionKey, &linkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no session means not linked
	}
	if err != nil {
		return nil, err
	}
	s.LinkedAt = time.Unix(linkedAt, 0)
	return &s, nil
}

// SaveLastfmSession links an account, replacing any previous one.
func (m *Manager) SaveLastfmSession(username, sessionKey string) error {
	_, err := m.db.Exec(`
		INSERT INTO lastfm_session (id, username, session_key, linked_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			session_key = excluded.session_key,
			linked_at = excluded.linked_at
	`, username, sessionKey, time.Now().Unix())
	return err
}

// DeleteLastfmSession unlinks the account.
func (m *Manager) DeleteLastfmSession() error {
	_, err := m.db.Exec(`DELETE FROM lastfm_session WHERE id = 1`)
	return err
}

func (m *Manager) AddPendingScrobble(s PendingScrobble) error {
	_, err := m.db.Exec(`
		INSERT INTO lastfm_pending_scrobbles
		(artist, track, album, duration_seconds, timestamp, mb_recording_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.Artist, s.Track, dbutil.NullString(s.Album), s.DurationSecs,
		s.Timestamp.Unix(), dbutil.NullString(s.MBRecordingID), time.Now().Unix())
	return err
}

// GetPendingScrobbles returns pending scrobbles, oldest first.
func (m *Manager) GetPendingScrobbles() ([]PendingScrobble, error) {
	rows, err := m.db.Query(`
		SELECT id, artist, track, album, duration_seconds, timestamp, mb_recording_id, attempts, last_error, created_at
		FROM lastfm_pending_scrobbles
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingScrobble
	for rows.Next() {
		var (
			s                      PendingScrobble
			album, mbid, lastError sql.NullString
			duration               sql.NullInt64
			timestamp, createdAt   int64
		)
		if err := rows.Scan(&s.ID, &s.Artist, &s.Track, &album, &duration,
			&timestamp, &mbid, &s.Attempts, &lastError, &createdAt); err != nil {
			return nil, err
		}
		s.Album = dbutil.NullStringValue(album)
		s.MBRecordingID = dbutil.NullStringValue(mbid)
		s.LastError = dbutil.NullStringValue(lastError)
		s.DurationSecs = int(dbutil.NullInt64Value(duration))
		s.Timestamp = time.Unix(timestamp, 0)
		s.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (m *Manager) DeletePendingScrobble(id int64) error {
	_, err := m.db.Exec(`DELETE FROM lastfm_pending_scrobbles WHERE id = ?`, id)
	return err
}

// UpdatePendingScrobbleAttempt records a failed resubmission.
func (m *Manager) UpdatePendingScrobbleAttempt(id int64, errMsg string) error {
	_, err := m.db.Exec(`
		UPDATE lastfm_pending_scrobbles
		SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`, errMsg, id)
	return err
}

// DeleteOldPendingScrobbles drops scrobbles queued longer than maxAge ago.
func (m *Manager) DeleteOldPendingScrobbles(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	_, err := m.db.Exec(`DELETE FROM lastfm_pending_scrobbles WHERE created_at < ?`, cutoff)
	return err
}
