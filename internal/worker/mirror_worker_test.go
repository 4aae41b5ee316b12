package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"evcharge/internal/amqp"
	"evcharge/internal/core"
	"evcharge/internal/sheets/memory"

	"github.com/google/uuid"
)

type fakeConsumer struct {
	msgs []*amqp.RecordsChangedMessage
	errs []error
}

func (f *fakeConsumer) ConsumeWithRetry(ctx context.Context, handler amqp.Handler) error {
	for _, m := range f.msgs {
		f.errs = append(f.errs, handler(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

type brokenMirror struct{}

func (brokenMirror) SaveAll(context.Context, []core.ChargingRecord) error {
	return errors.New("quota exceeded")
}

func rec(day int) core.ChargingRecord {
	return core.ChargingRecord{Date: core.NewDate(2024, 1, day), EnergyKwh: float64(day), Cost: 1}
}

func TestSyncCopiesAndSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	source := memory.New(rec(1), rec(2))
	mirror := memory.New()
	w := NewMirrorWorker(source, mirror, 0)

	if err := w.Sync(ctx, "test"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, _ := mirror.LoadAll(ctx)
	if len(got) != 2 {
		t.Fatalf("mirror has %d records", len(got))
	}

	if err := w.Sync(ctx, "test"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if mirror.Saves() != 1 {
		t.Fatalf("unchanged source should not rewrite the mirror, saves=%d", mirror.Saves())
	}

	_ = source.SaveAll(ctx, []core.ChargingRecord{rec(3)})
	if err := w.Sync(ctx, "test"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, _ = mirror.LoadAll(ctx)
	if len(got) != 1 || got[0] != rec(3) {
		t.Fatalf("mirror not refreshed: %+v", got)
	}
}

func TestEmptySourceStillWritesOnce(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New(rec(9))
	w := NewMirrorWorker(memory.New(), mirror, 0)
	if err := w.Sync(ctx, "startup"); err != nil {
		t.Fatal(err)
	}
	got, _ := mirror.LoadAll(ctx)
	if len(got) != 0 {
		t.Fatalf("stale mirror rows must be cleared, got %+v", got)
	}
}

func TestSyncFailureIsReturned(t *testing.T) {
	w := NewMirrorWorker(memory.New(rec(1)), brokenMirror{}, 0)
	if err := w.Sync(context.Background(), "test"); err == nil {
		t.Fatal("expected mirror error")
	}
	if w.Syncs() != 0 {
		t.Fatal("failed sync must not count")
	}
}

func TestRunConsumesMessages(t *testing.T) {
	source := memory.New(rec(1))
	mirror := memory.New()
	w := NewMirrorWorker(source, mirror, 10*time.Millisecond)
	consumer := &fakeConsumer{msgs: []*amqp.RecordsChangedMessage{{ID: uuid.New(), Operation: "add", Count: 1}}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx, consumer); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run: %v", err)
	}

	if len(consumer.errs) != 1 || consumer.errs[0] != nil {
		t.Fatalf("handler results: %v", consumer.errs)
	}
	if got, _ := mirror.LoadAll(context.Background()); len(got) != 1 {
		t.Fatalf("mirror not synced: %+v", got)
	}
}
