// Package worker keeps a mirror backend (typically Google Sheets) in step
// with the primary record store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"evcharge/internal/amqp"
	"evcharge/internal/core"
	applog "evcharge/internal/log"
	"evcharge/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// Consumer delivers change messages until ctx is done.
type Consumer interface {
	ConsumeWithRetry(ctx context.Context, handler amqp.Handler) error
}

// MirrorWorker copies the full record list from source to mirror. Each sync
// reads the current list, so lost or duplicated messages are harmless.
type MirrorWorker struct {
	source   sheets.RecordLoader
	mirror   sheets.RecordSaver
	interval time.Duration

	mu     sync.Mutex
	last   []core.ChargingRecord
	synced bool
	syncs  int
}

func NewMirrorWorker(source sheets.RecordLoader, mirror sheets.RecordSaver, interval time.Duration) *MirrorWorker {
	return &MirrorWorker{source: source, mirror: mirror, interval: interval}
}

// HandleRecordsChanged is the amqp.Handler for change messages.
func (w *MirrorWorker) HandleRecordsChanged(ctx context.Context, msg *amqp.RecordsChangedMessage) error {
	logger().InfoContext(ctx, "Processing records changed message",
		"message_id", msg.ID,
		"operation", msg.Operation,
		"count", msg.Count)
	return w.Sync(ctx, "message")
}

// Sync mirrors the source when it differs from the last mirrored list.
func (w *MirrorWorker) Sync(ctx context.Context, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.source.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load source records: %w", err)
	}
	if w.synced && slices.Equal(records, w.last) {
		logger().DebugContext(ctx, "Mirror already up to date", "reason", reason, "count", len(records))
		return nil
	}
	if err := w.mirror.SaveAll(ctx, records); err != nil {
		return fmt.Errorf("save mirror records: %w", err)
	}
	w.last = records
	w.synced = true
	w.syncs++

	logger().InfoContext(ctx, "Mirror synchronized", "reason", reason, "count", len(records))
	return nil
}

// Run performs a startup sync, then consumes messages and runs the periodic
// catch-up until ctx is cancelled or the consumer fails.
func (w *MirrorWorker) Run(ctx context.Context, consumer Consumer) error {
	if err := w.Sync(ctx, "startup"); err != nil {
		logger().ErrorContext(ctx, "Startup sync failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeWithRetry(ctx, w.HandleRecordsChanged)
		})
	}
	if w.interval > 0 {
		g.Go(func() error {
			return w.tick(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *MirrorWorker) tick(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sync(ctx, "periodic"); err != nil {
				logger().ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}

// Syncs reports how many times the mirror was written.
func (w *MirrorWorker) Syncs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncs
}

func logger() *applog.Logger {
	return applog.ForComponent(applog.ComponentWorker)
}
