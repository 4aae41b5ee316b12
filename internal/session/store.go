// Package session holds the ordered list of charging records for one
// interactive session. Records are addressed by their zero-based position;
// deleting a record shifts every later position down by one.
//
// Store is not safe for concurrent use. The owning service serializes access.
package session

import (
	"errors"
	"fmt"

	"evcharge/internal/core"
)

var ErrIndexOutOfRange = errors.New("index out of range")

// Entry is a snapshot of one stored record together with its stable id and
// its position at the time of the snapshot.
type Entry struct {
	ID       int64               `json:"id"`
	Position int                 `json:"position"`
	Record   core.ChargingRecord `json:"record"`
}

type item struct {
	id     int64
	record core.ChargingRecord
}

type Store struct {
	items  []item
	nextID int64
}

func New() *Store {
	return &Store{nextID: 1}
}

// Append adds r at the end and returns its position.
func (s *Store) Append(r core.ChargingRecord) int {
	s.items = append(s.items, item{id: s.allocID(), record: r})
	return len(s.items) - 1
}

// UpdateAt replaces the record at pos. The id is kept.
func (s *Store) UpdateAt(pos int, r core.ChargingRecord) error {
	if err := s.check(pos); err != nil {
		return err
	}
	s.items[pos].record = r
	return nil
}

// DeleteAt removes the record at pos.
func (s *Store) DeleteAt(pos int) error {
	if err := s.check(pos); err != nil {
		return err
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	return nil
}

// All returns a copy of the records in position order.
func (s *Store) All() []core.ChargingRecord {
	out := make([]core.ChargingRecord, len(s.items))
	for i, it := range s.items {
		out[i] = it.record
	}
	return out
}

// At returns the entry at pos.
func (s *Store) At(pos int) (Entry, error) {
	if err := s.check(pos); err != nil {
		return Entry{}, err
	}
	return Entry{ID: s.items[pos].id, Position: pos, Record: s.items[pos].record}, nil
}

func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.items))
	for i, it := range s.items {
		out[i] = Entry{ID: it.id, Position: i, Record: it.record}
	}
	return out
}

// PositionOf resolves a stable id to its current position.
func (s *Store) PositionOf(id int64) (int, bool) {
	for i, it := range s.items {
		if it.id == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) Len() int { return len(s.items) }

// Replace drops the current contents and loads records in order. Ids are
// reassigned from 1.
func (s *Store) Replace(records []core.ChargingRecord) {
	s.nextID = 1
	s.items = make([]item, 0, len(records))
	for _, r := range records {
		s.items = append(s.items, item{id: s.allocID(), record: r})
	}
}

// Snapshot captures the full state so it can be put back with Restore.
type Snapshot struct {
	items  []item
	nextID int64
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{items: append([]item(nil), s.items...), nextID: s.nextID}
}

func (s *Store) Restore(snap Snapshot) {
	s.items = append([]item(nil), snap.items...)
	s.nextID = snap.nextID
}

func (s *Store) allocID() int64 {
	if s.nextID == 0 {
		s.nextID = 1
	}
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) check(pos int) error {
	if pos < 0 || pos >= len(s.items) {
		return fmt.Errorf("%w: position %d, have %d records", ErrIndexOutOfRange, pos, len(s.items))
	}
	return nil
}
