package processor

import (
	"sort"

	"github.com/shopspring/decimal"

	"holdingsflow/models"
)

// DefaultTopLimit is the number of institutions kept by TopInstitutions
// when no limit is given.
const DefaultTopLimit = 100

// TopInstitutions groups rows by institution name, sums their whole-dollar
// value and returns the largest totals first. Each group keeps the first
// CIK seen for the name. Ties keep first-seen order.
func TopInstitutions(rows []models.HoldingRecord, limit int) []models.InstitutionTotal {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	index := make(map[string]int)
	var totals []models.InstitutionTotal
	for _, r := range rows {
		i, ok := index[r.InstitutionName]
		if !ok {
			index[r.InstitutionName] = len(totals)
			totals = append(totals, models.InstitutionTotal{
				InstitutionName: r.InstitutionName,
				InstitutionID:   r.InstitutionID,
				TotalValueUSD:   decimal.Zero,
			})
			i = len(totals) - 1
		}
		totals[i].TotalValueUSD = totals[i].TotalValueUSD.Add(r.ValueUSD)
	}

	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].TotalValueUSD.GreaterThan(totals[j].TotalValueUSD)
	})
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals
}
