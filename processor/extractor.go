package processor

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"holdingsflow/logger"
	"holdingsflow/models"
)

// ErrValueParse is returned when a value cannot be read as a number. The
// whole document is rejected.
var ErrValueParse = errors.New("value parse failure")

var thousand = decimal.NewFromInt(1000)

// Unit is the scale the values of a document are reported in.
type Unit int

const (
	UnitThousands Unit = iota
	UnitCurrency
)

func (u Unit) String() string {
	if u == UnitCurrency {
		return "currency"
	}
	return "thousands"
}

// Extraction is the outcome of extracting one filing body.
type Extraction struct {
	Records []models.HoldingRecord
	Lengths []int
	Unit    Unit
	// Dropped counts the tag values beyond the shortest sequence.
	Dropped int
}

// Truncated reports whether the sequences had unequal lengths.
func (e Extraction) Truncated() bool {
	return e.Dropped > 0
}

// Extractor turns a filing body into holding records.
type Extractor struct {
	log *logger.Log
}

func NewExtractor(log *logger.Log) *Extractor {
	return &Extractor{log: log}
}

// Extract scans text and emits min(len) records, one per aligned index of
// the six tag sequences. A document missing any tag yields no records.
func (e *Extractor) Extract(text string, meta models.FilingMeta) (Extraction, error) {
	raw := ScanFields(text)
	lengths := raw.Lengths()
	out := Extraction{Lengths: lengths}

	n := lengths[0]
	total := 0
	for _, l := range lengths {
		if l < n {
			n = l
		}
		total += l
	}
	if n == 0 {
		return out, nil
	}
	out.Dropped = total - n*len(lengths)

	unit := DetectUnit(raw.Values[0])
	out.Unit = unit

	values := make([]decimal.Decimal, len(raw.Values))
	for i, v := range raw.Values {
		d, err := ParseValue(v)
		if err != nil {
			return Extraction{Lengths: lengths, Unit: unit}, fmt.Errorf("value %d of %s: %w", i, meta.InstitutionID, err)
		}
		values[i] = d
	}

	records := make([]models.HoldingRecord, n)
	for i := 0; i < n; i++ {
		usd, thousands := Normalize(values[i], unit)
		records[i] = models.HoldingRecord{
			FilingYear:        meta.Period.Year,
			FilingQuarter:     meta.Period.Quarter,
			IssuerName:        raw.IssuerNames[i],
			TitleOfClass:      raw.TitlesOfClass[i],
			CUSIP:             raw.CUSIPs[i],
			ValueUSD:          usd,
			ValueUSDThousands: thousands,
			ShareAmount:       raw.ShareAmounts[i],
			ShareAmountType:   raw.ShareAmountTypes[i],
			InstitutionID:     meta.InstitutionID,
			InstitutionName:   meta.Institution,
			FilingDate:        meta.FilingDate,
		}
	}
	out.Records = records

	if out.Truncated() && e.log != nil {
		e.log.WithComponent("extractor").WithFields(logger.Fields{
			"cik":     meta.InstitutionID,
			"lengths": lengths,
			"kept":    n,
			"dropped": out.Dropped,
		}).Info("tag sequences truncated to shortest")
	}
	return out, nil
}

// DetectUnit infers the document unit from its first raw value. A currency
// symbol means whole dollars; otherwise values are in thousands.
func DetectUnit(first string) Unit {
	if strings.IndexFunc(first, isCurrencySymbol) >= 0 {
		return UnitCurrency
	}
	return UnitThousands
}

// ParseValue strips currency symbols, thousands separators and spaces,
// then parses the remainder.
func ParseValue(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || isCurrencySymbol(r) {
			return -1
		}
		return r
	}, raw)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrValueParse, raw)
	}
	return d, nil
}

// Normalize returns the whole-dollar and thousands-scaled forms of v.
func Normalize(v decimal.Decimal, unit Unit) (usd, thousands decimal.Decimal) {
	if unit == UnitCurrency {
		return v, v.Div(thousand)
	}
	return v.Mul(thousand), v
}

func isCurrencySymbol(r rune) bool {
	return unicode.Is(unicode.Sc, r)
}
