package analytics

import (
	"cmp"
	"math"
	"slices"

	"gemdesk/internal/records"
)

// StatusCount is the number of contracts with one status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// MonthValue is the summed contract value of one month (YYYY-MM).
type MonthValue struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// MinistryValue is the summed contract value of one ministry.
type MinistryValue struct {
	Ministry string  `json:"ministry"`
	Value    float64 `json:"value"`
}

// ModeAverage is the mean contract value of one buying mode.
type ModeAverage struct {
	BuyingMode string  `json:"buying_mode"`
	AvgValue   float64 `json:"avg_value"`
}

// MonthCount is the number of contracts dated in one month.
type MonthCount struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// DefaultTopMinistries is how many ministries TopMinistries returns by default.
const DefaultTopMinistries = 10

func byStatus(contracts []records.Contract) []StatusCount {
	counts := make(map[string]int)
	for _, c := range contracts {
		counts[c.Status]++
	}
	out := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	slices.SortFunc(out, func(a, b StatusCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Status, b.Status))
	})
	return out
}

// Undated contracts are left out of the monthly series.
func valueOverTime(contracts []records.Contract) []MonthValue {
	sums := make(map[string]float64)
	for _, c := range contracts {
		if c.ContractDate == nil {
			continue
		}
		sums[c.ContractDate.UTC().Format("2006-01")] += total(c)
	}
	out := make([]MonthValue, 0, len(sums))
	for month, sum := range sums {
		out = append(out, MonthValue{Date: month, Total: round2(sum)})
	}
	slices.SortFunc(out, func(a, b MonthValue) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

func topMinistries(contracts []records.Contract, limit int) []MinistryValue {
	sums := make(map[string]float64)
	for _, c := range contracts {
		sums[c.Ministry] += total(c)
	}
	out := make([]MinistryValue, 0, len(sums))
	for ministry, sum := range sums {
		out = append(out, MinistryValue{Ministry: ministry, Value: round2(sum)})
	}
	slices.SortFunc(out, func(a, b MinistryValue) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmp.Compare(a.Ministry, b.Ministry))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Contracts without a total do not count toward the mean; a mode with no
// totals at all averages 0.
func averageByBuyingMode(contracts []records.Contract) []ModeAverage {
	type acc struct {
		sum float64
		n   int
	}
	modes := make(map[string]*acc)
	for _, c := range contracts {
		a, ok := modes[c.BuyingMode]
		if !ok {
			a = &acc{}
			modes[c.BuyingMode] = a
		}
		if c.Total != nil {
			a.sum += *c.Total
			a.n++
		}
	}
	out := make([]ModeAverage, 0, len(modes))
	for mode, a := range modes {
		avg := 0.0
		if a.n > 0 {
			avg = round2(a.sum / float64(a.n))
		}
		out = append(out, ModeAverage{BuyingMode: mode, AvgValue: avg})
	}
	slices.SortFunc(out, func(a, b ModeAverage) int { return cmp.Compare(a.BuyingMode, b.BuyingMode) })
	return out
}

func countByMonth(contracts []records.Contract) []MonthCount {
	type ym struct{ year, month int }
	counts := make(map[ym]int)
	for _, c := range contracts {
		if c.ContractDate == nil {
			continue
		}
		d := c.ContractDate.UTC()
		counts[ym{d.Year(), int(d.Month())}]++
	}
	out := make([]MonthCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthCount{Year: k.year, Month: k.month, Count: n})
	}
	slices.SortFunc(out, func(a, b MonthCount) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Month, b.Month))
	})
	return out
}

func total(c records.Contract) float64 {
	if c.Total == nil {
		return 0
	}
	return *c.Total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
