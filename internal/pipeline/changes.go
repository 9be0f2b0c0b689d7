package pipeline

import (
	"context"
	"fmt"

	"holdingsflow/logger"
	"holdingsflow/models"
	"holdingsflow/processor"
)

// SnapshotStore is the storage side of change and ranking runs.
type SnapshotStore interface {
	Snapshot(ctx context.Context, p models.Period) ([]models.HoldingRecord, error)
	YearRows(ctx context.Context, year int) ([]models.HoldingRecord, error)
	WriteChanges(ctx context.Context, later models.Period, records []models.ChangeRecord, replace bool) error
	Changes(ctx context.Context, later models.Period) ([]models.ChangeRecord, error)
	ReplaceTopCompanies(ctx context.Context, year int, totals []models.InstitutionTotal) error
}

// ChangeSummary describes one computed quarter pair.
type ChangeSummary struct {
	Earlier     models.Period
	Later       models.Period
	EarlierRows int
	LaterRows   int
	Changes     int
}

// PairsBetween lists the earlier period of every adjacent pair from from up
// to to. The last pair is (to.Prev(), to).
func PairsBetween(from, to models.Period) ([]models.Period, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%s must be before %s", from, to)
	}
	var out []models.Period
	for p := from; p.Before(to); p = p.Next() {
		out = append(out, p)
	}
	return out, nil
}

// ChangeRunner computes and stores quarter over quarter change tables.
type ChangeRunner struct {
	store SnapshotStore
	log   *logger.Log
}

func NewChangeRunner(store SnapshotStore, log *logger.Log) *ChangeRunner {
	return &ChangeRunner{store: store, log: log}
}

// Run computes the pair (p, p.Next()) for every earlier period given. With
// replace set, each change table is cleared before it is written.
func (r *ChangeRunner) Run(ctx context.Context, earlier []models.Period, replace bool) ([]ChangeSummary, error) {
	out := make([]ChangeSummary, 0, len(earlier))
	for _, p := range earlier {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		s, err := r.runPair(ctx, p, replace)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *ChangeRunner) runPair(ctx context.Context, earlier models.Period, replace bool) (ChangeSummary, error) {
	later := earlier.Next()
	log := r.log.WithComponent("changes").WithFields(logger.Fields{
		"earlier": earlier.String(),
		"later":   later.String(),
	})

	before, err := r.store.Snapshot(ctx, earlier)
	if err != nil {
		return ChangeSummary{}, fmt.Errorf("load %s: %w", earlier, err)
	}
	after, err := r.store.Snapshot(ctx, later)
	if err != nil {
		return ChangeSummary{}, fmt.Errorf("load %s: %w", later, err)
	}
	if len(before) == 0 || len(after) == 0 {
		log.WithFields(logger.Fields{"earlier_rows": len(before), "later_rows": len(after)}).Warn("quarter has no holdings")
	}

	changes := processor.CalculateChanges(before, after)
	if err := r.store.WriteChanges(ctx, later, changes, replace); err != nil {
		return ChangeSummary{}, fmt.Errorf("store changes for %s: %w", later, err)
	}

	summary := ChangeSummary{
		Earlier:     earlier,
		Later:       later,
		EarlierRows: len(before),
		LaterRows:   len(after),
		Changes:     len(changes),
	}
	log.WithFields(logger.Fields{"changes": summary.Changes}).Info("change table written")
	return summary, nil
}
