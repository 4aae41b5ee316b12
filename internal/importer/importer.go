// Package importer reads and writes charging records as CSV.
//
// Decode is header driven: columns may appear in any order, under any of the
// accepted aliases, separated by ',' or ';'. Rows that fail validation are
// reported and skipped; they never abort the import.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"evcharge/internal/core"
)

// Canonical header, in column order.
var Header = []string{"date", "energy_kwh", "cost", "location", "charge_percent"}

var ErrMissingColumn = errors.New("missing required column")

type field int

const (
	fieldDate field = iota
	fieldEnergy
	fieldCost
	fieldLocation
	fieldPercent
)

var aliases = map[string]field{
	"date":             fieldDate,
	"day":              fieldDate,
	"charged_on":       fieldDate,
	"tarih":            fieldDate,
	"energy_kwh":       fieldEnergy,
	"energy":           fieldEnergy,
	"kwh":              fieldEnergy,
	"energy (kwh)":     fieldEnergy,
	"consumption":      fieldEnergy,
	"tüketim":          fieldEnergy,
	"tüketim (kwh)":    fieldEnergy,
	"cost":             fieldCost,
	"price":            fieldCost,
	"amount":           fieldCost,
	"maliyet":          fieldCost,
	"maliyet (₺)":      fieldCost,
	"location":         fieldLocation,
	"place":            fieldLocation,
	"station":          fieldLocation,
	"lokasyon":         fieldLocation,
	"charge_percent":   fieldPercent,
	"charge %":         fieldPercent,
	"charge percent":   fieldPercent,
	"percent":          fieldPercent,
	"şarj yüzdesi":     fieldPercent,
	"şarj yüzdesi (%)": fieldPercent,
}

// Rejection is one row that did not pass validation.
type Rejection struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func reject(line int, code string, err error) Rejection {
	return Rejection{Line: line, Code: code, Message: err.Error(), Err: err}
}

func (r Rejection) Error() string {
	return fmt.Sprintf("line %d: %v", r.Line, r.Err)
}

// Report holds the outcome of a bulk decode.
type Report struct {
	Records  []core.ChargingRecord
	Rejected []Rejection
}

// Decode parses CSV from r. It fails only when the input cannot be read or
// when a required column is absent from the header.
func Decode(r io.Reader) (Report, error) {
	br := bufio.NewReader(r)
	skipBOM(br)

	first, err := br.Peek(peekSize(br))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Report{}, fmt.Errorf("read csv: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(first)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Report{}, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return Report{}, fmt.Errorf("read csv header: %w", err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return Report{}, err
	}

	report := Report{Records: []core.ChargingRecord{}}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.Rejected = append(report.Rejected, reject(perr.Line, "malformed_row", err))
				continue
			}
			return report, fmt.Errorf("read csv: %w", err)
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)

		rec, err := core.Validate(candidate(row, cols))
		if err != nil {
			report.Rejected = append(report.Rejected, reject(line, core.ErrorCode(err), err))
			continue
		}
		report.Records = append(report.Records, rec)
	}
	return report, nil
}

// Encode writes records as canonical CSV with a header row.
func Encode(w io.Writer, records []core.ChargingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders a record in canonical column order.
func Row(r core.ChargingRecord) []string {
	percent := ""
	if r.HasChargePercent() {
		percent = strconv.Itoa(r.ChargePercent)
	}
	return []string{
		r.Date.String(),
		strconv.FormatFloat(r.EnergyKwh, 'f', -1, 64),
		strconv.FormatFloat(r.Cost, 'f', -1, 64),
		r.Location,
		percent,
	}
}

// CandidateFromRow reads a canonical row, tolerating missing trailing cells.
func CandidateFromRow(row []string) core.Candidate {
	return candidate(row, [5]int{0, 1, 2, 3, 4})
}

func mapHeader(header []string) ([5]int, error) {
	cols := [5]int{-1, -1, -1, -1, -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if f, ok := aliases[key]; ok && cols[f] < 0 {
			cols[f] = i
		}
	}
	var missing []string
	for f, name := range []string{"date", "energy_kwh", "cost"} {
		if cols[f] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func candidate(row []string, cols [5]int) core.Candidate {
	cell := func(f field) string {
		i := cols[f]
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return core.Candidate{
		Date:          cell(fieldDate),
		EnergyKwh:     cell(fieldEnergy),
		Cost:          cell(fieldCost),
		Location:      cell(fieldLocation),
		ChargePercent: cell(fieldPercent),
	}
}

// detectDelimiter picks ';' when the header line has more semicolons than
// commas.
func detectDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	if bytes.Count(sample, []byte{';'}) > bytes.Count(sample, []byte{','}) {
		return ';'
	}
	return ','
}

func skipBOM(br *bufio.Reader) {
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
}

func peekSize(br *bufio.Reader) int {
	if n := br.Size(); n < 1024 {
		return n
	}
	return 1024
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
