package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

type (
	Date struct {
		time.Time
	}

	// ChargingRecord is one logged charging session.
	ChargingRecord struct {
		Date          Date    `json:"date"`
		EnergyKwh     float64 `json:"energy_kwh"`
		Cost          float64 `json:"cost"`
		Location      string  `json:"location,omitempty"`
		ChargePercent int     `json:"charge_percent,omitempty"` // 0 when not recorded
	}

	// Candidate is a raw, loosely typed record as it arrives from a form,
	// a JSON body, an imported CSV row or a spreadsheet row.
	Candidate struct {
		Date          string
		EnergyKwh     string
		Cost          string
		Location      string
		ChargePercent string
	}
)

var (
	ErrInvalidEnergy        = errors.New("invalid energy")
	ErrInvalidCost          = errors.New("invalid cost")
	ErrInvalidChargePercent = errors.New("invalid charge percent")
	ErrMissingRequiredField = errors.New("missing required field")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingRequiredField)
	}
	return nil
}

// MonthKey returns the zero-padded calendar month, e.g. "2024-03".
func (d Date) MonthKey() string {
	return d.Format(monthLayout)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// HasChargePercent reports whether the session recorded a charge percentage.
func (r ChargingRecord) HasChargePercent() bool {
	return r.ChargePercent != 0
}

// Validate checks the record invariants. Typed records coming back from a
// backend go through the same rules as parsed candidates.
func (r ChargingRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if math.IsNaN(r.EnergyKwh) || math.IsInf(r.EnergyKwh, 0) {
		return fmt.Errorf("%w: energy must be finite", ErrInvalidEnergy)
	}
	if r.EnergyKwh <= 0 {
		return fmt.Errorf("%w: energy must be greater than zero, got %v", ErrInvalidEnergy, r.EnergyKwh)
	}
	if math.IsNaN(r.Cost) || math.IsInf(r.Cost, 0) {
		return fmt.Errorf("%w: cost must be finite", ErrInvalidCost)
	}
	if r.Cost < 0 {
		return fmt.Errorf("%w: cost cannot be negative, got %v", ErrInvalidCost, r.Cost)
	}
	if r.ChargePercent < 0 || r.ChargePercent > 100 {
		return fmt.Errorf("%w: %d is outside 1-100", ErrInvalidChargePercent, r.ChargePercent)
	}
	return nil
}

// Validate turns a raw candidate into a ChargingRecord or explains why it
// was rejected. It has no side effects.
func Validate(c Candidate) (ChargingRecord, error) {
	date, err := ParseDate(c.Date)
	if err != nil {
		return ChargingRecord{}, err
	}

	energy, err := ParseDecimal(c.EnergyKwh)
	if err != nil {
		return ChargingRecord{}, fmt.Errorf("%w: %v", ErrInvalidEnergy, err)
	}

	cost, err := ParseDecimal(c.Cost)
	if err != nil {
		return ChargingRecord{}, fmt.Errorf("%w: %v", ErrInvalidCost, err)
	}

	percent, err := ParseChargePercent(c.ChargePercent)
	if err != nil {
		return ChargingRecord{}, err
	}

	r := ChargingRecord{
		Date:          date,
		EnergyKwh:     energy,
		Cost:          cost,
		Location:      SanitizeText(c.Location),
		ChargePercent: percent,
	}
	if err := r.Validate(); err != nil {
		return ChargingRecord{}, err
	}
	return r, nil
}

// ErrorCode maps a rejection to a stable machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEnergy):
		return "invalid_energy"
	case errors.Is(err, ErrInvalidCost):
		return "invalid_cost"
	case errors.Is(err, ErrInvalidChargePercent):
		return "invalid_charge_percent"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_required_field"
	default:
		return "internal_error"
	}
}

// IsValidationError reports whether err is one of the validator rejections.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEnergy) ||
		errors.Is(err, ErrInvalidCost) ||
		errors.Is(err, ErrInvalidChargePercent) ||
		errors.Is(err, ErrMissingRequiredField)
}
