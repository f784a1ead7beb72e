// Package runstore wires the per-run and shared SQLite files the rest
// of the control plane operates on: opening a fresh run database for
// the run worker, listing prior runs newest-first for the cache, and
// deriving an evaluation/retrain dataset from the most recent run.
package runstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pjsousa/jobato-ml/internal/cache"
	"github.com/pjsousa/jobato-ml/internal/repository"
	"github.com/pjsousa/jobato-ml/internal/store/sqlite"
)

// Store scopes the per-run SQLite files and the current-db pointer
// file under <dataDir>/db, following the persisted state layout:
// db/current-db.txt, db/runs/<runId>.db, db/evaluations.db.
type Store struct {
	dbDir       string
	runsDir     string
	pointerPath string
}

func New(dataDir string) *Store {
	dbDir := filepath.Join(dataDir, "db")
	return &Store{
		dbDir:       dbDir,
		runsDir:     filepath.Join(dbDir, "runs"),
		pointerPath: filepath.Join(dbDir, "current-db.txt"),
	}
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.runsDir, runID+".db")
}

// OpenRun snapshots the current pointed-to database (if any) into a
// fresh file for runID — preserving cache and revisit-throttle history
// across runs — applies the run_items migration, and returns a narrow
// repository plus the new file's path and a close func. Satisfies
// runworker.RunStore.
func (s *Store) OpenRun(ctx context.Context, runID string) (repository.RunResultRepository, string, func() error, error) {
	if err := os.MkdirAll(s.runsDir, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("runstore: mkdir: %w", err)
	}
	path := s.path(runID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.snapshotCurrent(path); err != nil {
			return nil, "", nil, err
		}
	}
	db, err := sqlite.Open(ctx, path, sqlite.RunMigrations)
	if err != nil {
		return nil, "", nil, err
	}
	return sqlite.NewRunResultRepository(db), path, db.Close, nil
}

// snapshotCurrent copies the database named by the pointer file to
// dest byte-for-byte, or creates an empty file if no current database
// is pointed to yet.
func (s *Store) snapshotCurrent(dest string) error {
	current, err := s.currentDBPath()
	if err != nil {
		return fmt.Errorf("runstore: read pointer: %w", err)
	}
	if current == "" {
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("runstore: create %s: %w", dest, err)
		}
		return f.Close()
	}

	data, err := os.ReadFile(current)
	if err != nil {
		if os.IsNotExist(err) {
			f, ferr := os.Create(dest)
			if ferr != nil {
				return fmt.Errorf("runstore: create %s: %w", dest, ferr)
			}
			return f.Close()
		}
		return fmt.Errorf("runstore: read current db %s: %w", current, err)
	}
	return os.WriteFile(dest, data, 0o644)
}

// currentDBPath reads the pointer file, returning "" if it doesn't
// exist or is empty.
func (s *Store) currentDBPath() (string, error) {
	data, err := os.ReadFile(s.pointerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// PromoteCurrent atomically repoints current-db.txt at dbPath via a
// write-temp-then-rename, so a crash mid-swap never leaves a partially
// written pointer. Satisfies runworker.RunStore.
func (s *Store) PromoteCurrent(ctx context.Context, dbPath string) error {
	if err := os.MkdirAll(s.dbDir, 0o755); err != nil {
		return fmt.Errorf("runstore: mkdir: %w", err)
	}
	tmp := s.pointerPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(dbPath), 0o644); err != nil {
		return fmt.Errorf("runstore: write pointer tmp: %w", err)
	}
	if err := os.Rename(tmp, s.pointerPath); err != nil {
		return fmt.Errorf("runstore: swap pointer: %w", err)
	}
	return nil
}

// ListRunIDsByRecency returns run ids (filenames without extension)
// under the runs directory, most recently modified first. Satisfies
// cache.PriorRunSource.
func (s *Store) ListRunIDsByRecency(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("runstore: list runs: %w", err)
	}

	type stamped struct {
		id  string
		mod time.Time
	}
	var runs []stamped
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, stamped{id: strings.TrimSuffix(entry.Name(), ".db"), mod: info.ModTime()})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].mod.After(runs[j].mod) })

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}

// OpenRunResults opens an existing run's database read-only from the
// cache's perspective. Satisfies cache.PriorRunSource.
func (s *Store) OpenRunResults(ctx context.Context, runID string) (cache.RunResultReader, func() error, error) {
	db, err := sqlite.Open(ctx, s.path(runID), sqlite.RunMigrations)
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewRunResultRepository(db), db.Close, nil
}

func openReadRepo(ctx context.Context, path string) (*sqlite.RunResultRepository, func() error, error) {
	db, err := sqlite.Open(ctx, path, sqlite.RunMigrations)
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewRunResultRepository(db), db.Close, nil
}
