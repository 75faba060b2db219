// Package aggregate computes reporting rollups over findings. All
// functions are pure: they never touch storage, so callers can feed
// them either a single scan's findings or an account-wide slice.
package aggregate

import (
	"sort"

	"github.com/costhound/costhound/pricing"
	"github.com/costhound/costhound/types"
)

// Statistics is the rollup shown on scan reports
type Statistics struct {
	TotalFindings    int            `json:"total_findings"`
	ByType           map[string]int `json:"by_type"`
	ByRegion         map[string]int `json:"by_region"`
	ByStatus         map[string]int `json:"by_status"`
	TotalMonthlyCost float64        `json:"total_monthly_cost"`
	TotalAnnualCost  float64        `json:"total_annual_cost"`
	Currency         string         `json:"currency"`
}

// Compute builds statistics over the given findings. Costs are summed
// raw and rounded once at the end.
func Compute(findings []types.Finding) Statistics {
	stats := Statistics{
		TotalFindings: len(findings),
		ByType:        make(map[string]int),
		ByRegion:      make(map[string]int),
		ByStatus:      make(map[string]int),
		Currency:      "USD",
	}

	for _, f := range findings {
		stats.ByType[f.ResourceType]++
		stats.ByRegion[f.Region]++
		stats.ByStatus[string(f.Status)]++
		if f.Currency != "" {
			stats.Currency = f.Currency
		}
	}

	monthly := pricing.TotalWaste(findings)
	stats.TotalMonthlyCost = pricing.Round2(monthly)
	stats.TotalAnnualCost = pricing.Round2(pricing.Annualize(monthly))
	return stats
}

// TopByCost returns the n most expensive findings. Ordering is stable:
// cost descending, then creation time ascending, then ID, so repeated
// calls over the same data always produce the same ranking.
func TopByCost(findings []types.Finding, n int) []types.Finding {
	if n <= 0 {
		return nil
	}

	out := make([]types.Finding, len(findings))
	copy(out, findings)
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyCost != out[j].MonthlyCost {
			return out[i].MonthlyCost > out[j].MonthlyCost
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Priority buckets findings by monthly cost for triage
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Thresholds in USD per month
const (
	highPriorityCost   = 50.0
	mediumPriorityCost = 10.0
)

// PriorityFor buckets a single monthly cost
func PriorityFor(monthlyCost float64) Priority {
	switch {
	case monthlyCost >= highPriorityCost:
		return PriorityHigh
	case monthlyCost >= mediumPriorityCost:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ByPriority splits findings into triage buckets, each bucket ordered
// by cost descending.
func ByPriority(findings []types.Finding) map[Priority][]types.Finding {
	out := map[Priority][]types.Finding{}
	for _, f := range TopByCost(findings, len(findings)) {
		p := PriorityFor(f.MonthlyCost)
		out[p] = append(out[p], f)
	}
	return out
}
