package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/llehouerou/lineup/internal/db"
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/reconcile"
	"github.com/llehouerou/lineup/internal/resource"
)

// Metadata keys carrying the persisted source of a restored descriptor.
// Only Simple resources are restored as-is; every other kind comes back as
// a Loading placeholder for the host's resolver.
const (
	ExtraSourceURL  = "lineup.source_url"
	ExtraSourceKind = "lineup.source_kind"
)

// QueueEntry is one persisted descriptor.
type QueueEntry struct {
	ID          string
	Kind        string
	URL         string
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Duration    time.Duration
	ArtworkURL  string
}

// QueueState is a saved descriptor list.
type QueueState struct {
	CurrentID  string
	RepeatMode reconcile.RepeatMode
	Entries    []QueueEntry
	SavedAt    time.Time
}

// Snapshot captures ds for persistence. Bindings and delegates are not
// persisted.
func Snapshot(ds []playlist.Descriptor, current playlist.ID, mode reconcile.RepeatMode) QueueState {
	entries := make([]QueueEntry, len(ds))
	for i, d := range ds {
		kind := d.Resource.Kind().String()
		url := d.Resource.URL()
		if !d.Resource.IsPlayable() && d.Metadata.Extra[ExtraSourceURL] != "" {
			kind = d.Metadata.Extra[ExtraSourceKind]
			url = d.Metadata.Extra[ExtraSourceURL]
		}
		entries[i] = QueueEntry{
			ID:          string(d.ID),
			Kind:        kind,
			URL:         url,
			Title:       d.Metadata.Title,
			Artist:      d.Metadata.Artist,
			Album:       d.Metadata.Album,
			TrackNumber: d.Metadata.TrackNumber,
			Duration:    d.Metadata.Duration,
			ArtworkURL:  d.Metadata.ArtworkURL,
		}
	}
	return QueueState{CurrentID: string(current), RepeatMode: mode, Entries: entries}
}

// Descriptors rebuilds the saved list, attaching bindings to every
// descriptor.
func (q QueueState) Descriptors(bindings ...playlist.BindingFactory) []playlist.Descriptor {
	ds := make([]playlist.Descriptor, len(q.Entries))
	for i, e := range q.Entries {
		meta := playlist.Metadata{
			Title:       e.Title,
			Artist:      e.Artist,
			Album:       e.Album,
			TrackNumber: e.TrackNumber,
			Duration:    e.Duration,
			ArtworkURL:  e.ArtworkURL,
		}
		res := resource.Simple(e.URL)
		if e.Kind != resource.KindSimple.String() || e.URL == "" {
			res = resource.Loading()
			meta.Extra = map[string]string{
				ExtraSourceURL:  e.URL,
				ExtraSourceKind: e.Kind,
			}
		}
		ds[i] = playlist.Descriptor{
			ID:       playlist.ID(e.ID),
			Resource: res,
			Metadata: meta,
			Bindings: append([]playlist.BindingFactory(nil), bindings...),
		}
	}
	return ds
}

func getQueue(ctx context.Context, db *sql.DB) (*QueueState, error) {
	var (
		currentID sql.NullString
		repeat    string
		savedAt   int64
	)
	row := db.QueryRowContext(ctx, `SELECT current_id, repeat_mode, saved_at FROM queue_state WHERE id = 1`)
	err := row.Scan(&currentID, &repeat, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &QueueState{}, nil
	}
	if err != nil {
		return nil, err
	}
	mode, err := reconcile.ParseRepeatMode(repeat)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT descriptor_id, kind, url, title, artist, album, track_number, duration_ms, artwork_url
		FROM queue_entries
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var (
			e                       QueueEntry
			url, artist, album, art sql.NullString
			trackNumber, durationMS sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &url, &e.Title, &artist, &album, &trackNumber, &durationMS, &art); err != nil {
			return nil, err
		}
		e.URL = dbutil.NullStringValue(url)
		e.Artist = dbutil.NullStringValue(artist)
		e.Album = dbutil.NullStringValue(album)
		e.ArtworkURL = dbutil.NullStringValue(art)
		e.TrackNumber = int(dbutil.NullInt64Value(trackNumber))
		e.Duration = time.Duration(dbutil.NullInt64Value(durationMS)) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueueState{
		CurrentID:  dbutil.NullStringValue(currentID),
		RepeatMode: mode,
		Entries:    entries,
		SavedAt:    time.Unix(savedAt, 0),
	}, nil
}

func saveQueue(ctx context.Context, sqlDB *sql.DB, s QueueState) error {
	return dbutil.WithTx(ctx, sqlDB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_entries`); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO queue_state (id, current_id, repeat_mode, saved_at)
			VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_id = excluded.current_id,
				repeat_mode = excluded.repeat_mode,
				saved_at = excluded.saved_at
		`, dbutil.NullString(s.CurrentID), strings.ToLower(s.RepeatMode.String()), time.Now().Unix())
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO queue_entries
			(position, descriptor_id, kind, url, title, artist, album, track_number, duration_ms, artwork_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, e := range s.Entries {
			_, err = stmt.ExecContext(ctx, i, e.ID, e.Kind,
				dbutil.NullString(e.URL), e.Title,
				dbutil.NullString(e.Artist), dbutil.NullString(e.Album),
				dbutil.NullInt64(int64(e.TrackNumber)),
				dbutil.NullInt64(e.Duration.Milliseconds()),
				dbutil.NullString(e.ArtworkURL))
			if err != nil {
				return fmt.Errorf("save entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

