// Package store persists holdings in one SQLite database per filing year.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"holdingsflow/logger"
	"holdingsflow/models"
)

const holdingsSchema = `
CREATE TABLE IF NOT EXISTS holdings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filing_year INTEGER,
	filing_quarter INTEGER,
	name_of_issuer TEXT,
	title_of_class TEXT,
	cusip TEXT,
	value_usd TEXT,
	value_usd_thousands TEXT,
	share_amount TEXT,
	share_amount_type TEXT,
	cik TEXT,
	company_name TEXT,
	filing_date TEXT
)`

const holdingsColumns = `filing_year, filing_quarter, name_of_issuer, title_of_class, cusip,
	value_usd, value_usd_thousands, share_amount, share_amount_type, cik, company_name, filing_date`

const insertHolding = `INSERT INTO holdings (` + holdingsColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Store opens year partitions lazily and keeps them until Close.
type Store struct {
	dir    string
	prefix string
	log    *logger.Log

	mu  sync.Mutex
	dbs map[int]*sql.DB
}

func Open(dir, prefix string, log *logger.Log) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	return &Store{dir: dir, prefix: prefix, log: log, dbs: make(map[int]*sql.DB)}, nil
}

// Path returns the database file of a year partition.
func (s *Store) Path(year int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d.db", s.prefix, year))
}

// Exists reports whether the partition for year has been created.
func (s *Store) Exists(year int) bool {
	_, err := os.Stat(s.Path(year))
	return err == nil
}

func (s *Store) partition(ctx context.Context, year int) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[year]; ok {
		return db, nil
	}
	path := s.Path(year)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, holdingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create holdings table in %s: %w", path, err)
	}
	s.dbs[year] = db
	s.log.WithComponent("store").WithFields(logger.Fields{"year": year, "path": path}).Debug("opened partition")
	return db, nil
}

// Close closes every open partition.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for year, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close partition %d: %w", year, err))
		}
		delete(s.dbs, year)
	}
	return errors.Join(errs...)
}

func holdingArgs(h models.HoldingRecord) []any {
	return []any{
		h.FilingYear, h.FilingQuarter, h.IssuerName, h.TitleOfClass, h.CUSIP,
		h.ValueUSD, h.ValueUSDThousands, h.ShareAmount, h.ShareAmountType,
		h.InstitutionID, h.InstitutionName, h.FilingDate,
	}
}

// Append inserts records into the partition for year without any dedupe.
// Each insert commits on its own; rows written before a failure remain.
func (s *Store) Append(ctx context.Context, year int, records []models.HoldingRecord) (int, error) {
	db, err := s.partition(ctx, year)
	if err != nil {
		return 0, err
	}
	for i, h := range records {
		if _, err := db.ExecContext(ctx, insertHolding, holdingArgs(h)...); err != nil {
			return i, fmt.Errorf("insert holding %d: %w", i, err)
		}
	}
	return len(records), nil
}

type upsertKey struct {
	cik, issuer, filingDate string
}

// collapseLast keeps the last record for every (cik, issuer, filing date) key,
// in the order those last occurrences appear.
func collapseLast(records []models.HoldingRecord) []models.HoldingRecord {
	last := make(map[upsertKey]int, len(records))
	for i, h := range records {
		last[upsertKey{h.InstitutionID, h.IssuerName, h.FilingDate}] = i
	}
	out := make([]models.HoldingRecord, 0, len(last))
	for i, h := range records {
		if last[upsertKey{h.InstitutionID, h.IssuerName, h.FilingDate}] == i {
			out = append(out, h)
		}
	}
	return out
}

// Upsert replaces rows matching (cik, name_of_issuer, filing_date) with the
// given records. Duplicate keys within records collapse to the last one.
// The batch is applied in one transaction.
func (s *Store) Upsert(ctx context.Context, year int, records []models.HoldingRecord) (int, error) {
	db, err := s.partition(ctx, year)
	if err != nil {
		return 0, err
	}
	records = collapseLast(records)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	for i, h := range records {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM holdings WHERE cik = ? AND name_of_issuer = ? AND filing_date = ?`,
			h.InstitutionID, h.IssuerName, h.FilingDate); err != nil {
			return 0, fmt.Errorf("replace holding %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, insertHolding, holdingArgs(h)...); err != nil {
			return 0, fmt.Errorf("insert holding %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(records), nil
}

// Snapshot returns every holding of period in storage order. A missing
// partition yields no rows and is not created.
func (s *Store) Snapshot(ctx context.Context, p models.Period) ([]models.HoldingRecord, error) {
	return s.query(ctx, p.Year, `WHERE filing_year = ? AND filing_quarter = ?`, p.Year, p.Quarter)
}

// YearRows returns every holding stored in the partition for year.
func (s *Store) YearRows(ctx context.Context, year int) ([]models.HoldingRecord, error) {
	return s.query(ctx, year, "")
}

func (s *Store) query(ctx context.Context, year int, where string, args ...any) ([]models.HoldingRecord, error) {
	if !s.Exists(year) {
		return nil, nil
	}
	db, err := s.partition(ctx, year)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, `+holdingsColumns+` FROM holdings `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query holdings %d: %w", year, err)
	}
	defer rows.Close()

	var out []models.HoldingRecord
	for rows.Next() {
		var h models.HoldingRecord
		if err := rows.Scan(&h.ID, &h.FilingYear, &h.FilingQuarter, &h.IssuerName, &h.TitleOfClass, &h.CUSIP,
			&h.ValueUSD, &h.ValueUSDThousands, &h.ShareAmount, &h.ShareAmountType,
			&h.InstitutionID, &h.InstitutionName, &h.FilingDate); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Periods lists the quarters that have holdings in the partition for year.
func (s *Store) Periods(ctx context.Context, year int) ([]models.Period, error) {
	if !s.Exists(year) {
		return nil, nil
	}
	db, err := s.partition(ctx, year)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT filing_year, filing_quarter FROM holdings ORDER BY filing_year, filing_quarter`)
	if err != nil {
		return nil, fmt.Errorf("query periods %d: %w", year, err)
	}
	defer rows.Close()

	var out []models.Period
	for rows.Next() {
		var p models.Period
		if err := rows.Scan(&p.Year, &p.Quarter); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
