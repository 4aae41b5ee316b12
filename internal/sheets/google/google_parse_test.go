package google

import (
	"context"
	"errors"
	"testing"

	"evcharge/internal/core"
)

// Matrix as returned by the Sheets API with UNFORMATTED_VALUE rendering.
func TestParseRows(t *testing.T) {
	values := [][]interface{}{
		{"2024-01-03", 10.0, 100.0, "Home", 50.0},
		{"2024-01-28", 5.0, 60.0},
		{},
		{"", "", "", "", ""},
		{"2024-02-10", 0.0, 150.0, "", 80.0},
		{"2024-02-11", "7,5", "12", "Office", ""},
	}
	records, skipped := parseRows(values)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(records), records)
	}
	if records[0].Location != "Home" || records[0].ChargePercent != 50 {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].HasChargePercent() {
		t.Fatalf("short row must not invent a charge percent")
	}
	if records[2].EnergyKwh != 7.5 {
		t.Fatalf("comma decimal not parsed: %+v", records[2])
	}
	if len(skipped) != 1 || skipped[0].Row != 6 || !errors.Is(skipped[0].Err, core.ErrInvalidEnergy) {
		t.Fatalf("unexpected skipped rows %+v", skipped)
	}
}

func TestToValuesStartsWithHeader(t *testing.T) {
	values := toValues([]core.ChargingRecord{
		{Date: core.NewDate(2024, 1, 3), EnergyKwh: 10, Cost: 100, ChargePercent: 50},
		{Date: core.NewDate(2024, 1, 4), EnergyKwh: 1, Cost: 2, Location: "Mall"},
	})
	if len(values) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(values))
	}
	if values[0][0] != "date" || values[0][4] != "charge_percent" {
		t.Fatalf("unexpected header %v", values[0])
	}
	if values[1][4] != 50 || values[2][4] != "" {
		t.Fatalf("unexpected percent cells %v %v", values[1][4], values[2][4])
	}

	// What we write must read back the same.
	records, skipped := parseRows(values[1:])
	if len(skipped) != 0 || len(records) != 2 || records[1].Location != "Mall" {
		t.Fatalf("round trip failed: %+v %+v", records, skipped)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientWithoutServiceFails(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Sessions"}
	if _, err := c.LoadAll(context.Background()); err == nil {
		t.Fatal("expected error without service")
	}
	if err := c.SaveAll(context.Background(), nil); err == nil {
		t.Fatal("expected error without service")
	}
}
