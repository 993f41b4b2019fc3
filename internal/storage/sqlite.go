package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tiliavir/shiftcheck/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	kind       TEXT NOT NULL,
	week_start TEXT NOT NULL,
	id         TEXT NOT NULL,
	fetched_at TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (kind, week_start)
)`

// SQLiteStore keeps snapshots as JSON documents in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path. ":memory:" is allowed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshots table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveSchedule upserts the schedule snapshot of its week, assigning an ID
// when it has none.
func (s *SQLiteStore) SaveSchedule(ctx context.Context, snap *model.ScheduleSnapshot) error {
	ensureID(&snap.ID)
	return s.upsert(ctx, KindSchedule, snap.Week, snap.ID, snap.FetchedAt, snap)
}

// LoadSchedule returns the stored schedule of week, or ErrNoSnapshot.
func (s *SQLiteStore) LoadSchedule(ctx context.Context, week model.Week) (*model.ScheduleSnapshot, error) {
	var snap model.ScheduleSnapshot
	if err := s.get(ctx, KindSchedule, week, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveWorklogs upserts the worklog snapshot of its week, assigning an ID
// when it has none.
func (s *SQLiteStore) SaveWorklogs(ctx context.Context, snap *model.WorklogSnapshot) error {
	ensureID(&snap.ID)
	return s.upsert(ctx, KindWorklogs, snap.Week, snap.ID, snap.FetchedAt, snap)
}

// LoadWorklogs returns the stored worklogs of week, or ErrNoSnapshot.
func (s *SQLiteStore) LoadWorklogs(ctx context.Context, week model.Week) (*model.WorklogSnapshot, error) {
	var snap model.WorklogSnapshot
	if err := s.get(ctx, KindWorklogs, week, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) upsert(ctx context.Context, kind Kind, week model.Week, id string, fetchedAt time.Time, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s snapshot: %w", kind, err)
	}
	query := `INSERT INTO snapshots (kind, week_start, id, fetched_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, week_start) DO UPDATE SET
			id = excluded.id, fetched_at = excluded.fetched_at, data = excluded.data`
	_, err = s.db.ExecContext(ctx, query, string(kind), week.Key(), id, fetchedAt.UTC().Format(time.RFC3339), string(data))
	if err != nil {
		return fmt.Errorf("saving %s snapshot: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, kind Kind, week model.Week, v any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE kind = ? AND week_start = ?`,
		string(kind), week.Key(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoSnapshot
	}
	if err != nil {
		return fmt.Errorf("loading %s snapshot: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("decoding %s snapshot: %w", kind, err)
	}
	return nil
}
