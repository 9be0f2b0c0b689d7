package processor

import (
	"github.com/shopspring/decimal"

	"holdingsflow/models"
)

var hundred = decimal.NewFromInt(100)

type positionKey struct {
	institutionID string
	institution   string
	issuer        string
}

func keyOf(h models.HoldingRecord) positionKey {
	return positionKey{institutionID: h.InstitutionID, institution: h.InstitutionName, issuer: h.IssuerName}
}

// SumValueUSD totals the whole-dollar value of rows.
func SumValueUSD(rows []models.HoldingRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.ValueUSD)
	}
	return total
}

// CalculateChanges emits one change record per row of earlier, compared
// against the matching (cik, institution, issuer) position in later.
//
// When later holds the same key more than once the last row wins. A zero
// change is classified as a sell. Percentage change is zero when the
// earlier value is zero.
func CalculateChanges(earlier, later []models.HoldingRecord) []models.ChangeRecord {
	laterValues := make(map[positionKey]decimal.Decimal, len(later))
	for _, h := range later {
		laterValues[keyOf(h)] = h.ValueUSD
	}

	totalEarlier := SumValueUSD(earlier)
	totalLater := SumValueUSD(later)

	out := make([]models.ChangeRecord, 0, len(earlier))
	for _, h := range earlier {
		laterValue, ok := laterValues[keyOf(h)]
		if !ok {
			laterValue = decimal.Zero
		}
		change := laterValue.Sub(h.ValueUSD)

		position := models.PositionSell
		if change.IsPositive() {
			position = models.PositionBuy
		}

		pct := decimal.Zero
		if !h.ValueUSD.IsZero() {
			pct = change.Div(h.ValueUSD).Mul(hundred)
		}

		out = append(out, models.ChangeRecord{
			InstitutionID:             h.InstitutionID,
			InstitutionName:           h.InstitutionName,
			IssuerName:                h.IssuerName,
			Position:                  position,
			ChangeValue:               change,
			IsNew:                     laterValue.IsZero(),
			TotalValueCurrentQuarter:  totalEarlier,
			TotalValuePreviousQuarter: totalLater,
			PercentageChange:          pct,
		})
	}
	return out
}
