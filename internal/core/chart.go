package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// UnspecifiedLocation labels sessions without a location in share charts.
const UnspecifiedLocation = "(unspecified)"

type (
	// ChartKind selects the shape of the projected series.
	ChartKind string

	// ChartView selects whether series are per record or per month.
	ChartView string

	// Series is one named sequence of values aligned with Chart.Labels.
	// Shares is filled for pie charts and holds value/total fractions.
	Series struct {
		Name   string    `json:"name"`
		Values []float64 `json:"values"`
		Shares []float64 `json:"shares,omitempty"`
	}

	// Chart carries the numeric series a renderer needs; styling is left to
	// the renderer.
	Chart struct {
		Kind   ChartKind `json:"kind"`
		View   ChartView `json:"view"`
		Labels []string  `json:"labels"`
		Series []Series  `json:"series"`
	}
)

const (
	ChartBar ChartKind = "bar"
	ChartPie ChartKind = "pie"

	ViewRecords ChartView = "records"
	ViewMonthly ChartView = "monthly"
)

var (
	ErrUnknownChartKind = errors.New("unknown chart kind")
	ErrUnknownChartView = errors.New("unknown chart view")
)

func ParseChartKind(s string) (ChartKind, error) {
	switch ChartKind(strings.ToLower(strings.TrimSpace(s))) {
	case ChartBar, "":
		return ChartBar, nil
	case ChartPie:
		return ChartPie, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChartKind, s)
}

func ParseChartView(s string) (ChartView, error) {
	switch ChartView(strings.ToLower(strings.TrimSpace(s))) {
	case ViewRecords, "":
		return ViewRecords, nil
	case ViewMonthly:
		return ViewMonthly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChartView, s)
}

// Project builds the series for the requested view and kind.
func Project(records []ChargingRecord, view ChartView, kind ChartKind) (Chart, error) {
	if kind != ChartBar && kind != ChartPie {
		return Chart{}, fmt.Errorf("%w: %q", ErrUnknownChartKind, kind)
	}
	switch view {
	case ViewRecords:
		if kind == ChartPie {
			return EnergyByLocation(records), nil
		}
		return EnergyByDate(records), nil
	case ViewMonthly:
		buckets, _ := Summarize(records)
		if kind == ChartPie {
			return CostShareByMonth(buckets), nil
		}
		return MonthlyBars(buckets), nil
	}
	return Chart{}, fmt.Errorf("%w: %q", ErrUnknownChartView, view)
}

// EnergyByDate is one bar per record, in record order.
func EnergyByDate(records []ChargingRecord) Chart {
	labels := make([]string, 0, len(records))
	values := make([]float64, 0, len(records))
	for _, r := range records {
		labels = append(labels, r.Date.String())
		values = append(values, r.EnergyKwh)
	}
	return Chart{
		Kind:   ChartBar,
		View:   ViewRecords,
		Labels: labels,
		Series: []Series{{Name: "energy_kwh", Values: values}},
	}
}

// EnergyByLocation sums energy per location. Locations are sorted by name
// with UnspecifiedLocation last.
func EnergyByLocation(records []ChargingRecord) Chart {
	var order []string
	sums := make(map[string]decimal.Decimal)
	for _, r := range records {
		loc := strings.TrimSpace(r.Location)
		if loc == "" {
			loc = UnspecifiedLocation
		}
		if _, seen := sums[loc]; !seen {
			order = append(order, loc)
		}
		sums[loc] = sums[loc].Add(decimal.NewFromFloat(r.EnergyKwh))
	}
	sort.SliceStable(order, func(i, j int) bool {
		if (order[i] == UnspecifiedLocation) != (order[j] == UnspecifiedLocation) {
			return order[j] == UnspecifiedLocation
		}
		return order[i] < order[j]
	})
	values := make([]float64, 0, len(order))
	for _, loc := range order {
		f, _ := sums[loc].Float64()
		values = append(values, f)
	}
	return Chart{
		Kind:   ChartPie,
		View:   ViewRecords,
		Labels: nonNil(order),
		Series: []Series{{Name: "energy_kwh", Values: values, Shares: shares(values)}},
	}
}

// MonthlyBars groups cost, cost per kWh and charge cycles by month.
func MonthlyBars(buckets []MonthlyBucket) Chart {
	labels := make([]string, 0, len(buckets))
	cost := make([]float64, 0, len(buckets))
	perKwh := make([]float64, 0, len(buckets))
	cycles := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		labels = append(labels, b.MonthKey)
		cost = append(cost, b.TotalCost)
		perKwh = append(perKwh, b.CostPerKwh)
		cycles = append(cycles, b.ChargeCycles)
	}
	return Chart{
		Kind:   ChartBar,
		View:   ViewMonthly,
		Labels: labels,
		Series: []Series{
			{Name: "total_cost", Values: cost},
			{Name: "cost_per_kwh", Values: perKwh},
			{Name: "charge_cycles", Values: cycles},
		},
	}
}

// CostShareByMonth is the share of total cost spent in each month.
func CostShareByMonth(buckets []MonthlyBucket) Chart {
	labels := make([]string, 0, len(buckets))
	cost := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		labels = append(labels, b.MonthKey)
		cost = append(cost, b.TotalCost)
	}
	return Chart{
		Kind:   ChartPie,
		View:   ViewMonthly,
		Labels: labels,
		Series: []Series{{Name: "total_cost", Values: cost, Shares: shares(cost)}},
	}
}

func shares(values []float64) []float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	out := make([]float64, len(values))
	if total == 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
