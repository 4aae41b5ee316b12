package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"evcharge/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadAll implements sheets.RecordLoader. Rows come back in position order.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.ChargingRecord, error) {
	rows, err := r.queries.ListChargingSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list charging sessions: %w", err)
	}

	records := make([]core.ChargingRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveAll implements sheets.RecordSaver. The table is replaced in a single
// transaction, so readers see either the old or the new list.
func (r *SQLiteRepository) SaveAll(ctx context.Context, records []core.ChargingRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllChargingSessions(ctx); err != nil {
		return fmt.Errorf("clear charging sessions: %w", err)
	}
	for i, rec := range records {
		if err := q.InsertChargingSession(ctx, toParams(i, rec)); err != nil {
			return fmt.Errorf("insert charging session at position %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "Charging sessions saved to SQLite", "count", len(records))
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountChargingSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count charging sessions: %w", err)
	}
	return n, nil
}

func toParams(pos int, rec core.ChargingRecord) InsertChargingSessionParams {
	p := InsertChargingSessionParams{
		Position:  int64(pos),
		ChargedOn: rec.Date.String(),
		EnergyKwh: rec.EnergyKwh,
		Cost:      rec.Cost,
		Location:  rec.Location,
	}
	if rec.HasChargePercent() {
		p.ChargePercent = sql.NullInt64{Int64: int64(rec.ChargePercent), Valid: true}
	}
	return p
}

func fromRow(row ChargingSession) (core.ChargingRecord, error) {
	date, err := core.ParseDate(row.ChargedOn)
	if err != nil {
		return core.ChargingRecord{}, err
	}
	rec := core.ChargingRecord{
		Date:      date,
		EnergyKwh: row.EnergyKwh,
		Cost:      row.Cost,
		Location:  row.Location,
	}
	if row.ChargePercent.Valid {
		rec.ChargePercent = int(row.ChargePercent.Int64)
	}
	if err := rec.Validate(); err != nil {
		return core.ChargingRecord{}, err
	}
	return rec, nil
}
