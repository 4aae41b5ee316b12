package sheets

import (
	"context"
	"time"

	"evcharge/internal/core"
)

// Operation names the mutation that produced a RecordsChanged event.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpImport Operation = "import"
)

// RecordsChanged describes a committed mutation of the record list.
type RecordsChanged struct {
	Operation Operation
	Position  int // -1 for bulk operations
	Count     int // records in the list after the change
	At        time.Time
}

// Ports for outbound adapters.
type (
	// RecordLoader reads the full ordered record list from a backend.
	RecordLoader interface {
		LoadAll(ctx context.Context) ([]core.ChargingRecord, error)
	}

	// RecordSaver replaces the backend contents with records, in order.
	RecordSaver interface {
		SaveAll(ctx context.Context, records []core.ChargingRecord) error
	}

	Repository interface {
		RecordLoader
		RecordSaver
	}

	ChangePublisher interface {
		PublishRecordsChanged(ctx context.Context, ev RecordsChanged) error
	}

	// SummaryPublisher pushes the freshly computed summary table to consumers.
	SummaryPublisher interface {
		PublishSummary(ctx context.Context, rows []core.SummaryRow) error
	}
)
