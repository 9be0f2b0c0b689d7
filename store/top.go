package store

import (
	"context"
	"fmt"

	"holdingsflow/models"
)

const topCompaniesSchema = `
CREATE TABLE IF NOT EXISTS top_companies (
	Company TEXT,
	CIK TEXT,
	Total_Value TEXT
)`

// ReplaceTopCompanies loads totals into the top_companies table of the year
// partition, replacing whatever was there.
func (s *Store) ReplaceTopCompanies(ctx context.Context, year int, totals []models.InstitutionTotal) error {
	db, err := s.partition(ctx, year)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin top_companies: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, topCompaniesSchema); err != nil {
		return fmt.Errorf("create top_companies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM top_companies`); err != nil {
		return fmt.Errorf("clear top_companies: %w", err)
	}
	for _, t := range totals {
		if _, err := tx.ExecContext(ctx, `INSERT INTO top_companies (Company, CIK, Total_Value) VALUES (?, ?, ?)`,
			t.InstitutionName, t.InstitutionID, t.TotalValueUSD); err != nil {
			return fmt.Errorf("insert top company %s: %w", t.InstitutionName, err)
		}
	}
	return tx.Commit()
}

// TopCompanies reads the top_companies table in insertion order.
func (s *Store) TopCompanies(ctx context.Context, year int) ([]models.InstitutionTotal, error) {
	db, err := s.partition(ctx, year)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT Company, CIK, Total_Value FROM top_companies ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query top_companies: %w", err)
	}
	defer rows.Close()

	var out []models.InstitutionTotal
	for rows.Next() {
		var t models.InstitutionTotal
		if err := rows.Scan(&t.InstitutionName, &t.InstitutionID, &t.TotalValueUSD); err != nil {
			return nil, fmt.Errorf("scan top company: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
