// Package core provides the charging record model, its validator and the
// monthly aggregation engine.
//
// This file contains the parsers used by the validator to read loosely typed
// input coming from forms, CSV files and spreadsheet cells.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	time.RFC3339,
}

// ParseDecimal reads a decimal number accepting both dot (12.34) and comma
// (12,34) separators. Sign checks are left to the caller.
//
// Examples:
//
//	ParseDecimal("12.5")  -> 12.5, nil
//	ParseDecimal(" 7,25") -> 7.25, nil
//	ParseDecimal("1.2.3") -> 0, error
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("value is empty")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, fmt.Errorf("malformed number %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q", s)
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseChargePercent reads an optional whole percentage. An empty string
// means the session did not record one and yields 0.
func ParseChargePercent(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed value %q", ErrInvalidChargePercent, s)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrInvalidChargePercent, d.String())
	}
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(decimal.NewFromInt(100)) {
		return 0, fmt.Errorf("%w: %s is outside 1-100", ErrInvalidChargePercent, d.String())
	}
	return int(d.IntPart()), nil
}

// ParseDate reads a calendar date in one of the accepted layouts and drops
// any time component.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: date", ErrMissingRequiredField)
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return NewDate(t.Year(), int(t.Month()), t.Day()), nil
	}
	return Date{}, fmt.Errorf("%w: unparseable date %q", ErrMissingRequiredField, s)
}

// SanitizeText trims whitespace and removes control characters except tab,
// newline and carriage return.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
