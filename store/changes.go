package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"holdingsflow/models"
)

// ChangesTable names the change table for the later quarter of a pair.
func ChangesTable(later models.Period) string {
	return fmt.Sprintf("changes_%d_%d", later.Year, later.Quarter)
}

func changesSchema(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
	CIK TEXT,
	HoldingCompanyName TEXT,
	CompanyName TEXT,
	Position TEXT,
	ChangeValue REAL,
	IsNew BOOLEAN,
	TotalValueCurrentQuarter REAL,
	TotalValuePreviousQuarter REAL,
	PercentageChange REAL
)`
}

// WriteChanges stores records in the change table of later, inside later's
// year partition. With replace set, existing rows are removed first so a
// rerun leaves one copy of the change set.
func (s *Store) WriteChanges(ctx context.Context, later models.Period, records []models.ChangeRecord, replace bool) error {
	if err := later.Validate(); err != nil {
		return err
	}
	db, err := s.partition(ctx, later.Year)
	if err != nil {
		return err
	}
	table := ChangesTable(later)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, changesSchema(table)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i, c := range records {
		if _, err := stmt.ExecContext(ctx,
			c.InstitutionID, c.InstitutionName, c.IssuerName, string(c.Position),
			c.ChangeValue.InexactFloat64(), c.IsNew,
			c.TotalValueCurrentQuarter.InexactFloat64(), c.TotalValuePreviousQuarter.InexactFloat64(),
			c.PercentageChange.InexactFloat64()); err != nil {
			return fmt.Errorf("insert change %d into %s: %w", i, table, err)
		}
	}
	return tx.Commit()
}

// Changes reads the change table of later. A missing table is an error.
func (s *Store) Changes(ctx context.Context, later models.Period) ([]models.ChangeRecord, error) {
	db, err := s.partition(ctx, later.Year)
	if err != nil {
		return nil, err
	}
	table := ChangesTable(later)
	rows, err := db.QueryContext(ctx, `SELECT CIK, HoldingCompanyName, CompanyName, Position, ChangeValue, IsNew,
		TotalValueCurrentQuarter, TotalValuePreviousQuarter, PercentageChange FROM `+table+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.ChangeRecord
	for rows.Next() {
		var (
			c                              models.ChangeRecord
			position                       string
			change, current, previous, pct float64
		)
		if err := rows.Scan(&c.InstitutionID, &c.InstitutionName, &c.IssuerName, &position, &change, &c.IsNew,
			&current, &previous, &pct); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		c.Position = models.Position(position)
		c.ChangeValue = decimal.NewFromFloat(change)
		c.TotalValueCurrentQuarter = decimal.NewFromFloat(current)
		c.TotalValuePreviousQuarter = decimal.NewFromFloat(previous)
		c.PercentageChange = decimal.NewFromFloat(pct)
		out = append(out, c)
	}
	return out, rows.Err()
}
