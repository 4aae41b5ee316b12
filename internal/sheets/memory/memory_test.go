package memory

import (
	"context"
	"testing"

	"evcharge/internal/core"
)

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	seed := core.ChargingRecord{Date: core.NewDate(2024, 1, 1), EnergyKwh: 1, Cost: 1}
	s := New(seed)

	got, err := s.LoadAll(context.Background())
	if err != nil || len(got) != 1 || got[0] != seed {
		t.Fatalf("unexpected load: %v %v", got, err)
	}

	next := []core.ChargingRecord{seed, {Date: core.NewDate(2024, 1, 2), EnergyKwh: 2, Cost: 2}}
	if err := s.SaveAll(context.Background(), next); err != nil {
		t.Fatalf("save: %v", err)
	}
	next[0].Cost = 99 // caller mutation must not leak in

	got, _ = s.LoadAll(context.Background())
	if len(got) != 2 || got[0].Cost != 1 {
		t.Fatalf("unexpected contents %+v", got)
	}
	if s.Saves() != 1 {
		t.Fatalf("saves = %d", s.Saves())
	}
}

func TestEmptyStoreLoadsNonNil(t *testing.T) {
	got, err := New().LoadAll(context.Background())
	if err != nil || got == nil {
		t.Fatalf("expected empty slice, got %#v %v", got, err)
	}
}
