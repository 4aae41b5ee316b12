package google

import (
	"fmt"
	"strconv"
	"strings"

	"evcharge/internal/core"
	"evcharge/internal/importer"
)

// skippedRow is a sheet row that did not pass validation. Row is the 1-based
// sheet row number.
type skippedRow struct {
	Row int
	Err error
}

// parseRows converts the A2:E values matrix into records. Empty rows are
// ignored, invalid ones are returned as skipped.
func parseRows(values [][]interface{}) ([]core.ChargingRecord, []skippedRow) {
	records := make([]core.ChargingRecord, 0, len(values))
	var skipped []skippedRow
	for i, raw := range values {
		row := toStrings(raw)
		if isEmpty(row) {
			continue
		}
		rec, err := core.Validate(importer.CandidateFromRow(row))
		if err != nil {
			skipped = append(skipped, skippedRow{Row: i + 2, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

// toValues renders the header row followed by one row per record.
func toValues(records []core.ChargingRecord) [][]interface{} {
	out := make([][]interface{}, 0, len(records)+1)
	out = append(out, stringsToCells(importer.Header))
	for _, r := range records {
		var percent interface{} = ""
		if r.HasChargePercent() {
			percent = r.ChargePercent
		}
		out = append(out, []interface{}{r.Date.String(), r.EnergyKwh, r.Cost, r.Location, percent})
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(x))
		}
	}
	return out
}

func stringsToCells(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func isEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
