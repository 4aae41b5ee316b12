// Package csvfile persists charging records to a single CSV file.
package csvfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"evcharge/internal/core"
	"evcharge/internal/importer"
	applog "evcharge/internal/log"
)

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// LoadAll implements sheets.RecordLoader. A missing file is an empty list.
// Rows that no longer validate are skipped with a warning.
func (s *Store) LoadAll(ctx context.Context) ([]core.ChargingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []core.ChargingRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	rep, err := importer.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	for _, rej := range rep.Rejected {
		logger().WarnContext(ctx, "Skipping invalid row in CSV file",
			"path", s.path,
			"line", rej.Line,
			"code", rej.Code,
			"error", rej.Err)
	}
	return rep.Records, nil
}

// SaveAll implements sheets.RecordSaver. The file is written to a temporary
// sibling and renamed over the target.
func (s *Store) SaveAll(ctx context.Context, records []core.ChargingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := importer.Encode(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("write records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	logger().DebugContext(ctx, "Charging sessions saved to CSV", "path", s.path, "count", len(records))
	return nil
}

func logger() *applog.Logger {
	return applog.ForComponent(applog.ComponentStorage)
}
