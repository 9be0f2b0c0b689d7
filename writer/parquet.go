package writer

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"holdingsflow/models"
)

// HoldingRow is the parquet layout of an archived holding.
type HoldingRow struct {
	FilingYear        int32  `parquet:"name=filing_year, type=INT32"`
	FilingQuarter     int32  `parquet:"name=filing_quarter, type=INT32"`
	IssuerName        string `parquet:"name=name_of_issuer, type=BYTE_ARRAY, convertedtype=UTF8"`
	TitleOfClass      string `parquet:"name=title_of_class, type=BYTE_ARRAY, convertedtype=UTF8"`
	CUSIP             string `parquet:"name=cusip, type=BYTE_ARRAY, convertedtype=UTF8"`
	ValueUSD          string `parquet:"name=value_usd, type=BYTE_ARRAY, convertedtype=UTF8"`
	ValueUSDThousands string `parquet:"name=value_usd_thousands, type=BYTE_ARRAY, convertedtype=UTF8"`
	ShareAmount       string `parquet:"name=share_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	ShareAmountType   string `parquet:"name=share_amount_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	CIK               string `parquet:"name=cik, type=BYTE_ARRAY, convertedtype=UTF8"`
	CompanyName       string `parquet:"name=company_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	FilingDate        string `parquet:"name=filing_date, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ChangeRow is the parquet layout of an archived change record.
type ChangeRow struct {
	CIK                       string  `parquet:"name=cik, type=BYTE_ARRAY, convertedtype=UTF8"`
	HoldingCompanyName        string  `parquet:"name=holding_company_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	CompanyName               string  `parquet:"name=company_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Position                  string  `parquet:"name=position, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChangeValue               float64 `parquet:"name=change_value, type=DOUBLE"`
	IsNew                     bool    `parquet:"name=is_new, type=BOOLEAN"`
	TotalValueCurrentQuarter  float64 `parquet:"name=total_value_current_quarter, type=DOUBLE"`
	TotalValuePreviousQuarter float64 `parquet:"name=total_value_previous_quarter, type=DOUBLE"`
	PercentageChange          float64 `parquet:"name=percentage_change, type=DOUBLE"`
}

func holdingRow(h models.HoldingRecord) HoldingRow {
	return HoldingRow{
		FilingYear:        int32(h.FilingYear),
		FilingQuarter:     int32(h.FilingQuarter),
		IssuerName:        h.IssuerName,
		TitleOfClass:      h.TitleOfClass,
		CUSIP:             h.CUSIP,
		ValueUSD:          h.ValueUSD.String(),
		ValueUSDThousands: h.ValueUSDThousands.String(),
		ShareAmount:       h.ShareAmount,
		ShareAmountType:   h.ShareAmountType,
		CIK:               h.InstitutionID,
		CompanyName:       h.InstitutionName,
		FilingDate:        h.FilingDate,
	}
}

func changeRow(c models.ChangeRecord) ChangeRow {
	return ChangeRow{
		CIK:                       c.InstitutionID,
		HoldingCompanyName:        c.InstitutionName,
		CompanyName:               c.IssuerName,
		Position:                  string(c.Position),
		ChangeValue:               c.ChangeValue.InexactFloat64(),
		IsNew:                     c.IsNew,
		TotalValueCurrentQuarter:  c.TotalValueCurrentQuarter.InexactFloat64(),
		TotalValuePreviousQuarter: c.TotalValuePreviousQuarter.InexactFloat64(),
		PercentageChange:          c.PercentageChange.InexactFloat64(),
	}
}

// memoryFileWriter implements source.ParquetFile for in-memory writing.
// The parquet writer only appends, so Seek reports the current length.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

func compressionCodec(name string) parquet.CompressionCodec {
	switch name {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// encodeParquet writes rows with the schema of schemaObj into memory.
func encodeParquet(schemaObj interface{}, rows []interface{}, compression string) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := writer.NewParquetWriter(fw, schemaObj, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}
