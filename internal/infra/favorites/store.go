// Package favorites persists each user's saved tracks in SQLite.
package favorites

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/domain/track"
)

// ErrNotFound means the requested favorite does not exist.
var ErrNotFound = errors.New("favorite not found")

// Store is the SQLite-backed favorites repository.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the favorites database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening favorites database")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "applying %s", pragma)
		}
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS favorites (
			user_id       TEXT NOT NULL,
			position      INTEGER NOT NULL,
			title         TEXT NOT NULL,
			url           TEXT NOT NULL,
			duration_sec  INTEGER NOT NULL DEFAULT 0,
			thumbnail     TEXT NOT NULL DEFAULT '',
			kind          INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, position)
		);
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating favorites table")
	}
	zlog.Debug().Msgf("favorites store opened at %s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns a user's favorites in saved order.
func (s *Store) List(ctx context.Context, userID snowflake.ID) ([]track.Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, url, duration_sec, thumbnail, kind
		FROM favorites WHERE user_id = ? ORDER BY position`,
		userID.String())
	if err != nil {
		return nil, errors.Wrap(err, "listing favorites")
	}
	defer rows.Close()

	var out []track.Track
	for rows.Next() {
		var t track.Track
		var dur, kind int
		if err := rows.Scan(&t.Title, &t.URL, &dur, &t.Thumbnail, &kind); err != nil {
			return nil, errors.Wrap(err, "scanning favorite")
		}
		t.SetDuration(dur)
		t.Kind = track.SourceKind(kind)
		t.RequestedBy = userID
		out = append(out, t)
	}
	return out, rows.Err()
}

// Add appends a track to the user's favorites and returns its 1-based
// position.
func (s *Store) Add(ctx context.Context, userID snowflake.ID, t track.Track) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM favorites WHERE user_id = ?`,
		userID.String()).Scan(&next); err != nil {
		return 0, errors.Wrap(err, "allocating position")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO favorites (user_id, position, title, url, duration_sec, thumbnail, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID.String(), next, t.Title, t.URL, t.DurationSec, t.Thumbnail, int(t.Kind)); err != nil {
		return 0, errors.Wrap(err, "inserting favorite")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing favorite")
	}
	return next, nil
}

// Remove deletes the favorite at the 1-based position and compacts the
// positions that follow it.
func (s *Store) Remove(ctx context.Context, userID snowflake.ID, position int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND position = ?`,
		userID.String(), position)
	if err != nil {
		return errors.Wrap(err, "deleting favorite")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE favorites SET position = position - 1 WHERE user_id = ? AND position > ?`,
		userID.String(), position); err != nil {
		return errors.Wrap(err, "compacting positions")
	}
	return errors.Wrap(tx.Commit(), "committing removal")
}

// Get returns the favorite at the 1-based position.
func (s *Store) Get(ctx context.Context, userID snowflake.ID, position int) (track.Track, error) {
	var t track.Track
	var dur, kind int
	err := s.db.QueryRowContext(ctx, `
		SELECT title, url, duration_sec, thumbnail, kind
		FROM favorites WHERE user_id = ? AND position = ?`,
		userID.String(), position).Scan(&t.Title, &t.URL, &dur, &t.Thumbnail, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return track.Track{}, ErrNotFound
	}
	if err != nil {
		return track.Track{}, errors.Wrap(err, "getting favorite")
	}
	t.SetDuration(dur)
	t.Kind = track.SourceKind(kind)
	t.RequestedBy = userID
	return t, nil
}
