package models

import (
	"github.com/shopspring/decimal"
)

// RawHoldingFields holds the tag values scanned from one filing body, in
// document order. The sequences are not guaranteed to be the same length.
type RawHoldingFields struct {
	IssuerNames      []string
	TitlesOfClass    []string
	CUSIPs           []string
	Values           []string
	ShareAmounts     []string
	ShareAmountTypes []string
}

// Lengths returns the sequence lengths in tag order.
func (r RawHoldingFields) Lengths() []int {
	return []int{
		len(r.IssuerNames),
		len(r.TitlesOfClass),
		len(r.CUSIPs),
		len(r.Values),
		len(r.ShareAmounts),
		len(r.ShareAmountTypes),
	}
}

// HoldingRecord is one normalized position of an institution in a quarter.
type HoldingRecord struct {
	ID                int64           `json:"id,omitempty"`
	FilingYear        int             `json:"filing_year"`
	FilingQuarter     int             `json:"filing_quarter"`
	IssuerName        string          `json:"name_of_issuer"`
	TitleOfClass      string          `json:"title_of_class"`
	CUSIP             string          `json:"cusip"`
	ValueUSD          decimal.Decimal `json:"value_usd"`
	ValueUSDThousands decimal.Decimal `json:"value_usd_thousands"`
	ShareAmount       string          `json:"share_amount"`
	ShareAmountType   string          `json:"share_amount_type"`
	InstitutionID     string          `json:"cik"`
	InstitutionName   string          `json:"company_name"`
	FilingDate        string          `json:"filing_date"`
}

// Period returns the quarter the record was filed in.
func (h HoldingRecord) Period() Period {
	return Period{Year: h.FilingYear, Quarter: h.FilingQuarter}
}

// Position classifies a change record.
type Position string

const (
	PositionBuy  Position = "buy"
	PositionSell Position = "sell"
)

// ChangeRecord compares one position of the earlier quarter against the
// matching position in the later quarter.
//
// IsNew is true when the position has no value in the later quarter.
// TotalValueCurrentQuarter carries the earlier quarter's total and
// TotalValuePreviousQuarter the later quarter's total; both keep the column
// names of the persisted change tables.
type ChangeRecord struct {
	InstitutionID             string          `json:"cik"`
	InstitutionName           string          `json:"holding_company_name"`
	IssuerName                string          `json:"company_name"`
	Position                  Position        `json:"position"`
	ChangeValue               decimal.Decimal `json:"change_value"`
	IsNew                     bool            `json:"is_new"`
	TotalValueCurrentQuarter  decimal.Decimal `json:"total_value_current_quarter"`
	TotalValuePreviousQuarter decimal.Decimal `json:"total_value_previous_quarter"`
	PercentageChange          decimal.Decimal `json:"percentage_change"`
}

// InstitutionTotal is the summed holdings value of one institution.
type InstitutionTotal struct {
	InstitutionName string          `json:"company"`
	InstitutionID   string          `json:"cik"`
	TotalValueUSD   decimal.Decimal `json:"total_value_usd"`
}
