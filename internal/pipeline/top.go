package pipeline

import (
	"context"
	"fmt"

	"holdingsflow/logger"
	"holdingsflow/models"
	"holdingsflow/processor"
	"holdingsflow/writer"
)

// TopRunner ranks institutions by total holdings value.
type TopRunner struct {
	store SnapshotStore
	log   *logger.Log
}

func NewTopRunner(store SnapshotStore, log *logger.Log) *TopRunner {
	return &TopRunner{store: store, log: log}
}

// Export ranks every holding of year and writes the TSV to path.
func (r *TopRunner) Export(ctx context.Context, year, limit int, path string) ([]models.InstitutionTotal, error) {
	rows, err := r.store.YearRows(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load %d: %w", year, err)
	}
	totals := processor.TopInstitutions(rows, limit)
	if err := writer.WriteTopCompaniesFile(path, totals); err != nil {
		return nil, err
	}
	logger.LogDataFlowEntry(r.log.WithComponent("top"), fmt.Sprintf("holdings_%d", year), path, len(totals), "institution_total")
	return totals, nil
}

// Import loads a TSV export into the top_companies table of year.
func (r *TopRunner) Import(ctx context.Context, year int, path string) (int, error) {
	totals, err := writer.ReadTopCompaniesFile(path)
	if err != nil {
		return 0, err
	}
	if err := r.store.ReplaceTopCompanies(ctx, year, totals); err != nil {
		return 0, fmt.Errorf("load top companies into %d: %w", year, err)
	}
	logger.LogDataFlowEntry(r.log.WithComponent("top"), path, "top_companies", len(totals), "institution_total")
	return len(totals), nil
}
