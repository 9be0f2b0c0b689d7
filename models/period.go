package models

import (
	"errors"
	"fmt"
)

// ErrInvalidPeriod is returned for a quarter outside 1..4 or a non-positive year.
var ErrInvalidPeriod = errors.New("invalid period")

// Period identifies a filing year and quarter.
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// NewPeriod validates and returns a Period.
func NewPeriod(year, quarter int) (Period, error) {
	p := Period{Year: year, Quarter: quarter}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (p Period) Validate() error {
	if p.Year <= 0 || p.Quarter < 1 || p.Quarter > 4 {
		return fmt.Errorf("%w: %d-QTR%d", ErrInvalidPeriod, p.Year, p.Quarter)
	}
	return nil
}

// Next returns the following quarter, rolling Q4 into Q1 of the next year.
func (p Period) Next() Period {
	if p.Quarter == 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}

// Prev returns the preceding quarter.
func (p Period) Prev() Period {
	if p.Quarter == 1 {
		return Period{Year: p.Year - 1, Quarter: 4}
	}
	return Period{Year: p.Year, Quarter: p.Quarter - 1}
}

// Before reports whether p sorts strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

// String returns the index filename stem form, e.g. 2024-QTR3.
func (p Period) String() string {
	return fmt.Sprintf("%04d-QTR%d", p.Year, p.Quarter)
}

// ParsePeriod parses the YYYY-QTRn form produced by String.
func ParsePeriod(s string) (Period, error) {
	var p Period
	if _, err := fmt.Sscanf(s, "%4d-QTR%1d", &p.Year, &p.Quarter); err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	if p.String() != s {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, p.Validate()
}
