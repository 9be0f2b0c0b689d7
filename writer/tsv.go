package writer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"holdingsflow/models"
)

// TopCompaniesHeader is the header row of the ranked institutions export.
var TopCompaniesHeader = []string{"Company", "CIK", "Total Value (USD)"}

// WriteTopCompanies writes totals as tab separated rows under the standard
// header.
func WriteTopCompanies(w io.Writer, totals []models.InstitutionTotal) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(TopCompaniesHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range totals {
		if err := cw.Write([]string{t.InstitutionName, t.InstitutionID, t.TotalValueUSD.String()}); err != nil {
			return fmt.Errorf("write row %s: %w", t.InstitutionName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTopCompaniesFile creates path and writes totals into it.
func WriteTopCompaniesFile(path string, totals []models.InstitutionTotal) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteTopCompanies(bw, totals); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// ReadTopCompanies parses an export written by WriteTopCompanies. The first
// row is treated as the header and skipped.
func ReadTopCompanies(r io.Reader) ([]models.InstitutionTotal, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = len(TopCompaniesHeader)
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var out []models.InstitutionTotal
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		total, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("parse total for %s: %w", row[0], err)
		}
		out = append(out, models.InstitutionTotal{InstitutionName: row[0], InstitutionID: row[1], TotalValueUSD: total})
	}
}

// ReadTopCompaniesFile opens path and parses it.
func ReadTopCompaniesFile(path string) ([]models.InstitutionTotal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadTopCompanies(f)
}
