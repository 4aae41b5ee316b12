package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"evcharge/internal/core"
	"evcharge/internal/importer"
	applog "evcharge/internal/log"
	"evcharge/internal/session"
	"evcharge/internal/sheets"
)

// ChargingService owns one charging session: the ordered record list, the
// backend it is persisted to and the publishers notified after each change.
//
// Every mutation validates, mutates the store and saves the full list. When
// the save fails the store is rolled back, so callers never observe a state
// the backend does not hold. Publishing happens after a successful save,
// outside the session lock, and its failures are only logged.
type ChargingService struct {
	mu      sync.Mutex
	store   *session.Store
	repo    sheets.Repository
	changes sheets.ChangePublisher
	summary sheets.SummaryPublisher
	now     func() time.Time
	seq     uint64

	pubMu     sync.Mutex
	published uint64
}

type Option func(*ChargingService)

func WithChangePublisher(p sheets.ChangePublisher) Option {
	return func(s *ChargingService) { s.changes = p }
}

func WithSummaryPublisher(p sheets.SummaryPublisher) Option {
	return func(s *ChargingService) { s.summary = p }
}

// ImportResult reports a bulk import.
type ImportResult struct {
	Imported int                  `json:"imported"`
	Rejected []importer.Rejection `json:"rejected"`
	Total    int                  `json:"total"`
}

func NewChargingService(repo sheets.Repository, opts ...Option) *ChargingService {
	s := &ChargingService{
		store: session.New(),
		repo:  repo,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the session contents with what the backend holds.
func (s *ChargingService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	s.store.Replace(records)
	logger().InfoContext(ctx, "Charging sessions loaded", "count", len(records))
	return nil
}

// Add validates c and appends it to the session.
func (s *ChargingService) Add(ctx context.Context, c core.Candidate) (session.Entry, error) {
	rec, err := core.Validate(c)
	if err != nil {
		return session.Entry{}, err
	}

	s.mu.Lock()
	snap := s.store.Snapshot()
	pos := s.store.Append(rec)
	if err := s.persist(ctx, snap); err != nil {
		s.mu.Unlock()
		return session.Entry{}, err
	}
	entry, _ := s.store.At(pos)
	n := s.noticeLocked(sheets.OpAdd, pos)
	s.mu.Unlock()

	s.publish(ctx, n)
	return entry, nil
}

// Update replaces the record at pos with the validated candidate.
func (s *ChargingService) Update(ctx context.Context, pos int, c core.Candidate) (session.Entry, error) {
	rec, err := core.Validate(c)
	if err != nil {
		return session.Entry{}, err
	}

	s.mu.Lock()
	snap := s.store.Snapshot()
	if err := s.store.UpdateAt(pos, rec); err != nil {
		s.mu.Unlock()
		return session.Entry{}, err
	}
	if err := s.persist(ctx, snap); err != nil {
		s.mu.Unlock()
		return session.Entry{}, err
	}
	entry, _ := s.store.At(pos)
	n := s.noticeLocked(sheets.OpUpdate, pos)
	s.mu.Unlock()

	s.publish(ctx, n)
	return entry, nil
}

// Delete removes the record at pos. Later records shift down by one.
func (s *ChargingService) Delete(ctx context.Context, pos int) error {
	s.mu.Lock()
	snap := s.store.Snapshot()
	if err := s.store.DeleteAt(pos); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.persist(ctx, snap); err != nil {
		s.mu.Unlock()
		return err
	}
	n := s.noticeLocked(sheets.OpDelete, pos)
	s.mu.Unlock()

	s.publish(ctx, n)
	return nil
}

// Import appends every valid row of a CSV document. Invalid rows are
// reported and skipped. Nothing is saved when no row is valid.
func (s *ChargingService) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	rep, err := importer.Decode(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("decode import: %w", err)
	}
	res := ImportResult{
		Imported: len(rep.Records),
		Rejected: rep.Rejected,
		Total:    len(rep.Records) + len(rep.Rejected),
	}
	if res.Rejected == nil {
		res.Rejected = []importer.Rejection{}
	}
	if len(rep.Records) == 0 {
		return res, nil
	}

	s.mu.Lock()
	snap := s.store.Snapshot()
	for _, rec := range rep.Records {
		s.store.Append(rec)
	}
	if err := s.persist(ctx, snap); err != nil {
		s.mu.Unlock()
		return ImportResult{}, err
	}
	n := s.noticeLocked(sheets.OpImport, -1)
	s.mu.Unlock()

	logger().InfoContext(ctx, "CSV import completed",
		"imported", res.Imported,
		"rejected", len(res.Rejected))
	s.publish(ctx, n)
	return res, nil
}

// Records returns a snapshot of the session in position order.
func (s *ChargingService) Records() []session.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Entries()
}

// All returns the plain records in position order.
func (s *ChargingService) All() []core.ChargingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

func (s *ChargingService) Summary() ([]core.MonthlyBucket, core.GrandTotal) {
	return core.Summarize(s.All())
}

func (s *ChargingService) Table() []core.SummaryRow {
	return core.Table(s.Summary())
}

func (s *ChargingService) Chart(view core.ChartView, kind core.ChartKind) (core.Chart, error) {
	return core.Project(s.All(), view, kind)
}

// persist saves the current store, restoring snap on failure.
// Callers hold s.mu.
func (s *ChargingService) persist(ctx context.Context, snap session.Snapshot) error {
	if err := s.repo.SaveAll(ctx, s.store.All()); err != nil {
		s.store.Restore(snap)
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}

// notice is what a committed mutation publishes, captured under s.mu.
type notice struct {
	seq   uint64
	event sheets.RecordsChanged
	rows  []core.SummaryRow
}

// noticeLocked snapshots the event and summary table for the mutation just
// committed. Callers hold s.mu.
func (s *ChargingService) noticeLocked(op sheets.Operation, pos int) notice {
	s.seq++
	n := notice{
		seq: s.seq,
		event: sheets.RecordsChanged{
			Operation: op,
			Position:  pos,
			Count:     s.store.Len(),
			At:        s.now().UTC(),
		},
	}
	if s.summary != nil {
		n.rows = core.Table(core.Summarize(s.store.All()))
	}
	return n
}

// publish sends a notice without holding s.mu, so a slow broker never
// blocks reads or other mutations. Publishes are serialized by pubMu and a
// summary older than one already sent is dropped, keeping the retained
// summary current.
func (s *ChargingService) publish(ctx context.Context, n notice) {
	if s.changes == nil && s.summary == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if s.changes != nil {
		if err := s.changes.PublishRecordsChanged(ctx, n.event); err != nil {
			logger().ErrorContext(ctx, "Failed to publish records changed event",
				"operation", n.event.Operation, "position", n.event.Position, "error", err)
		}
	}
	if s.summary != nil && n.seq > s.published {
		s.published = n.seq
		if err := s.summary.PublishSummary(ctx, n.rows); err != nil {
			logger().ErrorContext(ctx, "Failed to publish summary", "error", err)
		}
	}
}

func logger() *applog.Logger {
	return applog.ForComponent(applog.ComponentCharging)
}
