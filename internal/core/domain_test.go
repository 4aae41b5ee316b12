package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func candidate(date, energy, cost, loc, percent string) Candidate {
	return Candidate{Date: date, EnergyKwh: energy, Cost: cost, Location: loc, ChargePercent: percent}
}

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrMissingRequiredField) {
			t.Fatalf("case %d expected ErrMissingRequiredField, got %v", i, err)
		}
	}
}

func TestDateMonthKeyIsZeroPadded(t *testing.T) {
	if got := NewDate(2024, 3, 9).MonthKey(); got != "2024-03" {
		t.Fatalf("month key = %q", got)
	}
}

func TestValidateRoundTripsValidRecords(t *testing.T) {
	r, err := Validate(candidate("2024-01-15", "10.5", "100", "  Home  ", "50"))
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	want := ChargingRecord{
		Date:          NewDate(2024, 1, 15),
		EnergyKwh:     10.5,
		Cost:          100,
		Location:      "Home",
		ChargePercent: 50,
	}
	if r != want {
		t.Fatalf("got %+v, want %+v", r, want)
	}
}

func TestValidateAcceptsCommaDecimalsAndZeroCost(t *testing.T) {
	r, err := Validate(candidate("15.01.2024", "7,25", "0", "", ""))
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if r.EnergyKwh != 7.25 || r.Cost != 0 || r.HasChargePercent() {
		t.Fatalf("unexpected record %+v", r)
	}
}

func TestValidateRejectsNonPositiveEnergy(t *testing.T) {
	for _, energy := range []string{"0", "-1", "-0.01", "", "abc", "NaN", "Inf", "1.2.3"} {
		_, err := Validate(candidate("2024-01-01", energy, "10", "", ""))
		if !errors.Is(err, ErrInvalidEnergy) {
			t.Fatalf("energy %q: expected ErrInvalidEnergy, got %v", energy, err)
		}
	}
}

func TestValidateRejectsInvalidCost(t *testing.T) {
	for _, cost := range []string{"-5", "", "x", "1,2,3"} {
		_, err := Validate(candidate("2024-01-01", "10", cost, "", ""))
		if !errors.Is(err, ErrInvalidCost) {
			t.Fatalf("cost %q: expected ErrInvalidCost, got %v", cost, err)
		}
	}
}

func TestValidateChargePercentBounds(t *testing.T) {
	for _, p := range []string{"0", "101", "-5", "50.5", "lots"} {
		_, err := Validate(candidate("2024-01-01", "10", "10", "", p))
		if !errors.Is(err, ErrInvalidChargePercent) {
			t.Fatalf("percent %q: expected ErrInvalidChargePercent, got %v", p, err)
		}
	}
	for _, p := range []string{"1", "50", "100", "80%", " 100 "} {
		if _, err := Validate(candidate("2024-01-01", "10", "10", "", p)); err != nil {
			t.Fatalf("percent %q: expected ok, got %v", p, err)
		}
	}
}

func TestValidateRejectsMissingDate(t *testing.T) {
	for _, d := range []string{"", "   ", "yesterday", "2024-13-01"} {
		_, err := Validate(candidate(d, "10", "10", "", ""))
		if !errors.Is(err, ErrMissingRequiredField) {
			t.Fatalf("date %q: expected ErrMissingRequiredField, got %v", d, err)
		}
	}
}

func TestRecordValidateRejectsNonFinite(t *testing.T) {
	bads := []struct {
		r    ChargingRecord
		want error
	}{
		{ChargingRecord{Date: NewDate(2024, 1, 1), EnergyKwh: math.NaN(), Cost: 1}, ErrInvalidEnergy},
		{ChargingRecord{Date: NewDate(2024, 1, 1), EnergyKwh: math.Inf(1), Cost: 1}, ErrInvalidEnergy},
		{ChargingRecord{Date: NewDate(2024, 1, 1), EnergyKwh: 1, Cost: math.Inf(1)}, ErrInvalidCost},
		{ChargingRecord{Date: NewDate(2024, 1, 1), EnergyKwh: 1, Cost: 1, ChargePercent: 101}, ErrInvalidChargePercent},
		{ChargingRecord{EnergyKwh: 1, Cost: 1}, ErrMissingRequiredField},
	}
	for i, tc := range bads {
		if err := tc.r.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestErrorCode(t *testing.T) {
	_, err := Validate(candidate("2024-01-01", "0", "1", "", ""))
	if got := ErrorCode(err); got != "invalid_energy" {
		t.Fatalf("code = %q", got)
	}
	if !IsValidationError(err) {
		t.Fatalf("expected validation error")
	}
	if IsValidationError(errors.New("disk full")) {
		t.Fatalf("unexpected validation error classification")
	}
	if ErrorCode(nil) != "" {
		t.Fatalf("nil error should have empty code")
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, 2, 29)
	b, err := d.MarshalJSON()
	if err != nil || string(b) != `"2024-02-29"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var back Date
	if err := back.UnmarshalJSON(b); err != nil || !back.Equal(d.Time) {
		t.Fatalf("unmarshal: %v %v", back, err)
	}
}
