package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ChargingSession is a row of charging_sessions.
type ChargingSession struct {
	ID            int64
	Position      int64
	ChargedOn     string
	EnergyKwh     float64
	Cost          float64
	Location      string
	ChargePercent sql.NullInt64
}

const listChargingSessions = `
SELECT id, position, charged_on, energy_kwh, cost, location, charge_percent
FROM charging_sessions
ORDER BY position ASC
`

func (q *Queries) ListChargingSessions(ctx context.Context) ([]ChargingSession, error) {
	rows, err := q.db.QueryContext(ctx, listChargingSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ChargingSession
	for rows.Next() {
		var i ChargingSession
		if err := rows.Scan(
			&i.ID,
			&i.Position,
			&i.ChargedOn,
			&i.EnergyKwh,
			&i.Cost,
			&i.Location,
			&i.ChargePercent,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAllChargingSessions = `DELETE FROM charging_sessions`

func (q *Queries) DeleteAllChargingSessions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllChargingSessions)
	return err
}

const insertChargingSession = `
INSERT INTO charging_sessions (position, charged_on, energy_kwh, cost, location, charge_percent)
VALUES (?, ?, ?, ?, ?, ?)
`

type InsertChargingSessionParams struct {
	Position      int64
	ChargedOn     string
	EnergyKwh     float64
	Cost          float64
	Location      string
	ChargePercent sql.NullInt64
}

func (q *Queries) InsertChargingSession(ctx context.Context, arg InsertChargingSessionParams) error {
	_, err := q.db.ExecContext(ctx, insertChargingSession,
		arg.Position,
		arg.ChargedOn,
		arg.EnergyKwh,
		arg.Cost,
		arg.Location,
		arg.ChargePercent,
	)
	return err
}

const countChargingSessions = `SELECT COUNT(*) FROM charging_sessions`

func (q *Queries) CountChargingSessions(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countChargingSessions)
	var count int64
	err := row.Scan(&count)
	return count, err
}
