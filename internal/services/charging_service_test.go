package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"evcharge/internal/core"
	"evcharge/internal/session"
	"evcharge/internal/sheets"
	"evcharge/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct {
	*memory.Store
	fail bool
}

func (f *failingRepo) SaveAll(ctx context.Context, records []core.ChargingRecord) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.SaveAll(ctx, records)
}

type recordingPublisher struct {
	events []sheets.RecordsChanged
	tables [][]core.SummaryRow
	err    error
}

func (p *recordingPublisher) PublishRecordsChanged(_ context.Context, ev sheets.RecordsChanged) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) PublishSummary(_ context.Context, rows []core.SummaryRow) error {
	p.tables = append(p.tables, rows)
	return p.err
}

func cand(date, energy, cost, percent string) core.Candidate {
	return core.Candidate{Date: date, EnergyKwh: energy, Cost: cost, ChargePercent: percent}
}

func TestChargingServiceScenario(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewChargingService(repo)

	for _, c := range []core.Candidate{
		cand("2024-01-03", "10", "100", "50"),
		cand("2024-02-10", "20", "150", "80"),
		cand("2024-01-28", "5", "60", "100"),
	} {
		_, err := svc.Add(ctx, c)
		require.NoError(t, err)
	}

	rows := svc.Table()
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01", rows[0].MonthKey)
	assert.InDelta(t, 1.5, rows[0].ChargeCycles, 1e-9)
	assert.Equal(t, core.TotalKey, rows[2].MonthKey)
	assert.InDelta(t, 310.0/35.0, rows[2].CostPerKwh, 1e-9)

	saved, _ := repo.LoadAll(ctx)
	assert.Len(t, saved, 3)
}

func TestChargingServiceRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewChargingService(repo)

	_, err := svc.Add(ctx, cand("2024-01-01", "0", "10", ""))
	assert.ErrorIs(t, err, core.ErrInvalidEnergy)
	assert.Empty(t, svc.Records())
	assert.Equal(t, 0, repo.Saves(), "invalid input must not reach the backend")
}

func TestChargingServiceDeleteShiftsPositions(t *testing.T) {
	ctx := context.Background()
	svc := NewChargingService(memory.New())
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		_, err := svc.Add(ctx, cand(d, "1", "1", ""))
		require.NoError(t, err)
	}

	require.NoError(t, svc.Delete(ctx, 1))
	entries := svc.Records()
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-01-03", entries[1].Record.Date.String())
	assert.Equal(t, 1, entries[1].Position)

	err := svc.Delete(ctx, 5)
	assert.ErrorIs(t, err, session.ErrIndexOutOfRange)
}

func TestChargingServiceRollsBackOnSaveFailure(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{Store: memory.New()}
	pub := &recordingPublisher{}
	svc := NewChargingService(repo, WithChangePublisher(pub), WithSummaryPublisher(pub))

	_, err := svc.Add(ctx, cand("2024-01-01", "10", "5", "50"))
	require.NoError(t, err)
	before := svc.Table()

	repo.fail = true
	_, err = svc.Add(ctx, cand("2024-01-02", "3", "1", ""))
	assert.Error(t, err)
	_, err = svc.Update(ctx, 0, cand("2024-03-01", "99", "99", ""))
	assert.Error(t, err)
	assert.Error(t, svc.Delete(ctx, 0))
	_, err = svc.Import(ctx, strings.NewReader("date,energy_kwh,cost\n2024-04-01,1,1\n"))
	assert.Error(t, err)

	assert.Len(t, svc.Records(), 1)
	assert.Equal(t, before, svc.Table(), "summaries must be unchanged after failed saves")
	assert.Len(t, pub.events, 1, "failed mutations must not publish")

	repo.fail = false
	entry, err := svc.Add(ctx, cand("2024-01-05", "1", "1", ""))
	require.NoError(t, err)
	assert.EqualValues(t, 2, entry.ID, "rolled back appends must not consume ids")
}

func TestChargingServicePublishesAfterChange(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewChargingService(memory.New(), WithChangePublisher(pub), WithSummaryPublisher(pub))

	_, err := svc.Add(ctx, cand("2024-01-01", "10", "5", ""))
	require.NoError(t, err, "publish failures must not fail the mutation")
	_, err = svc.Update(ctx, 0, cand("2024-01-01", "12", "5", ""))
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, sheets.OpAdd, pub.events[0].Operation)
	assert.Equal(t, sheets.OpUpdate, pub.events[1].Operation)
	assert.Equal(t, 1, pub.events[1].Count)
	require.Len(t, pub.tables, 2)
	assert.InDelta(t, 12, pub.tables[1][0].TotalEnergyKwh, 1e-9)
}

type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) PublishRecordsChanged(ctx context.Context, _ sheets.RecordsChanged) error {
	p.entered <- struct{}{}
	<-p.release
	return nil
}

func TestChargingServiceReadsDuringSlowPublish(t *testing.T) {
	ctx := context.Background()
	pub := &blockingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewChargingService(memory.New(), WithChangePublisher(pub))

	added := make(chan error, 1)
	go func() {
		_, err := svc.Add(ctx, cand("2024-01-01", "10", "5", ""))
		added <- err
	}()

	select {
	case <-pub.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("publish never started")
	}

	read := make(chan int, 1)
	go func() {
		_ = svc.Table()
		read <- len(svc.Records())
	}()
	select {
	case n := <-read:
		assert.Equal(t, 1, n, "committed record is visible while publishing")
	case <-time.After(2 * time.Second):
		t.Fatal("reads blocked by an in-flight publish")
	}

	close(pub.release)
	require.NoError(t, <-added)
}

func TestChargingServiceImport(t *testing.T) {
	ctx := context.Background()
	svc := NewChargingService(memory.New())

	res, err := svc.Import(ctx, strings.NewReader(
		"Tarih;Tüketim (kWh);Maliyet (₺);Lokasyon\n"+
			"2024-01-01;10;100;Ev\n"+
			"2024-01-02;-1;100;Ev\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "invalid_energy", res.Rejected[0].Code)
	assert.Len(t, svc.Records(), 1)
}

func TestChargingServiceLoad(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(core.ChargingRecord{Date: core.NewDate(2024, 1, 1), EnergyKwh: 1, Cost: 1})
	svc := NewChargingService(repo)
	require.NoError(t, svc.Load(ctx))
	assert.Len(t, svc.Records(), 1)

	chart, err := svc.Chart(core.ViewMonthly, core.ChartBar)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01"}, chart.Labels)
}
