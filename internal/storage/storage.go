package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Tiliavir/shiftcheck/internal/model"
)

// ErrNoSnapshot is returned when no snapshot exists for the requested week.
var ErrNoSnapshot = errors.New("no snapshot for week")

// Kind names a snapshot type.
type Kind string

const (
	KindSchedule Kind = "schedule"
	KindWorklogs Kind = "worklogs"
)

// Store persists weekly snapshots. Saving a snapshot replaces any previous
// snapshot of the same kind and week.
type Store interface {
	SaveSchedule(ctx context.Context, snap *model.ScheduleSnapshot) error
	LoadSchedule(ctx context.Context, week model.Week) (*model.ScheduleSnapshot, error)
	SaveWorklogs(ctx context.Context, snap *model.WorklogSnapshot) error
	LoadWorklogs(ctx context.Context, week model.Week) (*model.WorklogSnapshot, error)
	Close() error
}

// BaseDir returns the root data directory (~/.shiftcheck).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".shiftcheck"), nil
}

// Open returns the store selected by backend ("file" or "sqlite") rooted at dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dataDir), nil
	case "sqlite":
		return OpenSQLite(filepath.Join(dataDir, "shiftcheck.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want file or sqlite)", backend)
	}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// FileStore keeps one JSON file per snapshot under base/YYYY/MM/DD, where the
// date is the week's Monday.
type FileStore struct {
	Base string
}

// NewFileStore returns a FileStore rooted at base.
func NewFileStore(base string) *FileStore {
	return &FileStore{Base: base}
}

// snapshotPath returns the path of the given kind's file for week.
func (s *FileStore) snapshotPath(kind Kind, week model.Week) string {
	t := week.Start
	return filepath.Join(s.Base, t.Format("2006"), t.Format("01"), t.Format("02"), string(kind)+".json")
}

func (s *FileStore) SaveSchedule(_ context.Context, snap *model.ScheduleSnapshot) error {
	ensureID(&snap.ID)
	return s.save(s.snapshotPath(KindSchedule, snap.Week), snap)
}

func (s *FileStore) LoadSchedule(_ context.Context, week model.Week) (*model.ScheduleSnapshot, error) {
	var snap model.ScheduleSnapshot
	if err := s.load(s.snapshotPath(KindSchedule, week), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *FileStore) SaveWorklogs(_ context.Context, snap *model.WorklogSnapshot) error {
	ensureID(&snap.ID)
	return s.save(s.snapshotPath(KindWorklogs, snap.Week), snap)
}

func (s *FileStore) LoadWorklogs(_ context.Context, week model.Week) (*model.WorklogSnapshot, error) {
	var snap model.WorklogSnapshot
	if err := s.load(s.snapshotPath(KindWorklogs, week), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *FileStore) Close() error { return nil }

// load decodes the file at path into v. A missing file yields ErrNoSnapshot.
func (s *FileStore) load(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNoSnapshot
	}
	if err != nil {
		return fmt.Errorf("storage error reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	return nil
}

// save atomically writes v as indented JSON to path.
func (s *FileStore) save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}
