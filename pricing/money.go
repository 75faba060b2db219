// Package pricing is the deterministic cost model: table-driven unit
// prices overridable by a refreshable cache, and the monetary helpers
// used when aggregating findings.
package pricing

import (
	"math"

	"github.com/costhound/costhound/types"
)

// HoursPerMonth is the flat hour count used to turn hourly unit prices
// into monthly estimates.
const HoursPerMonth = 730

// Round2 rounds to two decimal places. Only call this at presentation
// or aggregation boundaries, never while accumulating, so rounding
// error does not compound.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Annualize converts a monthly amount to a yearly one
func Annualize(monthly float64) float64 {
	return monthly * 12
}

// TotalWaste sums estimated monthly cost across findings without
// intermediate rounding.
func TotalWaste(findings []types.Finding) float64 {
	var total float64
	for _, f := range findings {
		total += f.MonthlyCost
	}
	return total
}
