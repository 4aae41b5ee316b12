package memory

import (
	"context"
	"sync"

	"evcharge/internal/core"
)

// Store keeps records in process memory. Nothing survives a restart.
type Store struct {
	mu    sync.Mutex
	items []core.ChargingRecord
	saves int
}

func New(seed ...core.ChargingRecord) *Store {
	return &Store{items: append([]core.ChargingRecord(nil), seed...)}
}

// LoadAll implements sheets.RecordLoader.
func (s *Store) LoadAll(_ context.Context) ([]core.ChargingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ChargingRecord{}, s.items...), nil
}

// SaveAll implements sheets.RecordSaver.
func (s *Store) SaveAll(_ context.Context, records []core.ChargingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.ChargingRecord(nil), records...)
	s.saves++
	return nil
}

// Saves reports how many times SaveAll was called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
