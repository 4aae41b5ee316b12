package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TotalKey labels the grand total row in a summary table.
const TotalKey = "TOTAL"

// MonthlyBucket aggregates every record charged in one calendar month.
type MonthlyBucket struct {
	MonthKey       string  `json:"month_key"`
	TotalCost      float64 `json:"total_cost"`
	TotalEnergyKwh float64 `json:"total_energy_kwh"`
	CostPerKwh     float64 `json:"cost_per_kwh"`
	ChargeCycles   float64 `json:"charge_cycles"`
	Sessions       int     `json:"sessions"`
	AverageCost    float64 `json:"average_cost"`
}

// GrandTotal sums all monthly buckets. CostPerKwh is the ratio of the
// totals, not the mean of the monthly ratios.
type GrandTotal struct {
	TotalCost      float64 `json:"total_cost"`
	TotalEnergyKwh float64 `json:"total_energy_kwh"`
	CostPerKwh     float64 `json:"cost_per_kwh"`
	ChargeCycles   float64 `json:"charge_cycles"`
	Sessions       int     `json:"sessions"`
	AverageCost    float64 `json:"average_cost"`
}

// SummaryRow is one line of the table handed to renderers: a month or,
// when IsTotal is set, the grand total under MonthKey TotalKey.
type SummaryRow struct {
	MonthKey       string  `json:"month_key"`
	TotalCost      float64 `json:"total_cost"`
	TotalEnergyKwh float64 `json:"total_energy_kwh"`
	CostPerKwh     float64 `json:"cost_per_kwh"`
	ChargeCycles   float64 `json:"charge_cycles"`
	Sessions       int     `json:"sessions"`
	AverageCost    float64 `json:"average_cost"`
	IsTotal        bool    `json:"is_total"`
}

type accumulator struct {
	cost     decimal.Decimal
	energy   decimal.Decimal
	percents int64
	sessions int
}

func (a *accumulator) add(r ChargingRecord) {
	a.cost = a.cost.Add(decimal.NewFromFloat(r.Cost))
	a.energy = a.energy.Add(decimal.NewFromFloat(r.EnergyKwh))
	if r.HasChargePercent() {
		a.percents += int64(r.ChargePercent)
	}
	a.sessions++
}

func (a *accumulator) merge(o *accumulator) {
	a.cost = a.cost.Add(o.cost)
	a.energy = a.energy.Add(o.energy)
	a.percents += o.percents
	a.sessions += o.sessions
}

// ratio divides and returns 0 when the divisor is zero.
func ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	n, _ := num.Float64()
	d, _ := den.Float64()
	return n / d
}

func (a *accumulator) totals() (cost, energy, perKwh, cycles, avg float64) {
	cost, _ = a.cost.Float64()
	energy, _ = a.energy.Float64()
	perKwh = ratio(a.cost, a.energy)
	cycles = float64(a.percents) / 100
	if a.sessions > 0 {
		avg = cost / float64(a.sessions)
	}
	return cost, energy, perKwh, cycles, avg
}

// Summarize groups records by calendar month and computes per-month and
// overall statistics. Buckets are ordered by month ascending. The result is
// a pure function of the input.
func Summarize(records []ChargingRecord) ([]MonthlyBucket, GrandTotal) {
	groups := make(map[string]*accumulator)
	for _, r := range records {
		key := r.Date.MonthKey()
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		acc.add(r)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make([]MonthlyBucket, 0, len(keys))
	var all accumulator
	for _, k := range keys {
		acc := groups[k]
		all.merge(acc)
		cost, energy, perKwh, cycles, avg := acc.totals()
		buckets = append(buckets, MonthlyBucket{
			MonthKey:       k,
			TotalCost:      cost,
			TotalEnergyKwh: energy,
			CostPerKwh:     perKwh,
			ChargeCycles:   cycles,
			Sessions:       acc.sessions,
			AverageCost:    avg,
		})
	}

	cost, energy, perKwh, cycles, avg := all.totals()
	total := GrandTotal{
		TotalCost:      cost,
		TotalEnergyKwh: energy,
		CostPerKwh:     perKwh,
		ChargeCycles:   cycles,
		Sessions:       all.sessions,
		AverageCost:    avg,
	}
	return buckets, total
}

// Table flattens buckets and the grand total into one ordered sequence,
// the total row last.
func Table(buckets []MonthlyBucket, total GrandTotal) []SummaryRow {
	rows := make([]SummaryRow, 0, len(buckets)+1)
	for _, b := range buckets {
		rows = append(rows, SummaryRow{
			MonthKey:       b.MonthKey,
			TotalCost:      b.TotalCost,
			TotalEnergyKwh: b.TotalEnergyKwh,
			CostPerKwh:     b.CostPerKwh,
			ChargeCycles:   b.ChargeCycles,
			Sessions:       b.Sessions,
			AverageCost:    b.AverageCost,
		})
	}
	return append(rows, SummaryRow{
		MonthKey:       TotalKey,
		TotalCost:      total.TotalCost,
		TotalEnergyKwh: total.TotalEnergyKwh,
		CostPerKwh:     total.CostPerKwh,
		ChargeCycles:   total.ChargeCycles,
		Sessions:       total.Sessions,
		AverageCost:    total.AverageCost,
		IsTotal:        true,
	})
}
