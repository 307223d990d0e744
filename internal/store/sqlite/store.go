// Package sqlite is a single-file store.Store backend on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/internal/store"
)

// Store implements store.Store for SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database file and migrates the schema.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// writers serialise on the file lock anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS videos (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id  TEXT NOT NULL UNIQUE,
	raw       TEXT NOT NULL,
	name      TEXT,
	added_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS status (
	video_id     TEXT PRIMARY KEY,
	is_live_now  INTEGER NOT NULL,
	live_status  TEXT,
	checked_at   TEXT NOT NULL,
	note         TEXT
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) ListVideos(ctx context.Context) ([]store.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT video_id, raw, name, added_at FROM videos ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	regs := []store.Registration{}
	for rows.Next() {
		var (
			reg     store.Registration
			name    sql.NullString
			addedAt string
		)
		if err := rows.Scan(&reg.VideoID, &reg.Raw, &name, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		if name.Valid {
			reg.Name = &name.String
		}
		reg.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *Store) AddVideo(ctx context.Context, raw, videoID string, name *string) (store.Registration, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Registration{}, false, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
INSERT INTO videos (video_id, raw, name, added_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(video_id) DO NOTHING`, videoID, raw, nullString(name), now.Format(time.RFC3339Nano))
	if err != nil {
		return store.Registration{}, false, fmt.Errorf("failed to insert video: %w", err)
	}
	affected, _ := res.RowsAffected()
	created := affected > 0

	if !created {
		if _, err := tx.ExecContext(ctx, `UPDATE videos SET name = ? WHERE video_id = ?`, nullString(name), videoID); err != nil {
			return store.Registration{}, false, fmt.Errorf("failed to update name: %w", err)
		}
	}

	reg := store.Registration{VideoID: videoID, Name: name}
	var addedAt string
	if err := tx.QueryRowContext(ctx, `SELECT raw, added_at FROM videos WHERE video_id = ?`, videoID).
		Scan(&reg.Raw, &addedAt); err != nil {
		return store.Registration{}, false, fmt.Errorf("failed to read back video: %w", err)
	}
	reg.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)

	if err := tx.Commit(); err != nil {
		return store.Registration{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return reg, created, nil
}

func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE video_id = ?`, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM status WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return tx.Commit()
}

func (s *Store) SaveStatus(ctx context.Context, st models.StatusItem) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO status (video_id, is_live_now, live_status, checked_at, note)
SELECT ?, ?, ?, ?, ?
WHERE EXISTS (SELECT 1 FROM videos WHERE video_id = ?)
ON CONFLICT(video_id) DO UPDATE SET
	is_live_now = excluded.is_live_now,
	live_status = excluded.live_status,
	checked_at  = excluded.checked_at,
	note        = excluded.note`,
		st.VideoID, st.IsLiveNow, nullString(st.LiveStatus),
		st.CheckedAt.UTC().Format(time.RFC3339Nano), nullString(st.Note), st.VideoID)
	if err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (s *Store) ListStatus(ctx context.Context) ([]models.StatusItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, is_live_now, live_status, checked_at, note FROM status ORDER BY video_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list status: %w", err)
	}
	defer rows.Close()

	items := []models.StatusItem{}
	for rows.Next() {
		var (
			it         models.StatusItem
			liveStatus sql.NullString
			note       sql.NullString
			checkedAt  string
		)
		if err := rows.Scan(&it.VideoID, &it.IsLiveNow, &liveStatus, &checkedAt, &note); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		if liveStatus.Valid {
			it.LiveStatus = &liveStatus.String
		}
		if note.Valid {
			it.Note = &note.String
		}
		if it.CheckedAt, err = time.Parse(time.RFC3339Nano, checkedAt); err != nil {
			return nil, fmt.Errorf("bad checked_at for %s: %w", it.VideoID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) Counts(ctx context.Context) (int, int, error) {
	var watching, cached int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM videos), (SELECT COUNT(*) FROM status)`).Scan(&watching, &cached)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count: %w", err)
	}
	return watching, cached, nil
}

func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ store.Store = (*Store)(nil)
