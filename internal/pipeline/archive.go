package pipeline

import (
	"context"
	"fmt"

	"holdingsflow/logger"
	"holdingsflow/models"
	"holdingsflow/writer"
)

// Archive exports parquet copies of stored tables.
type Archive interface {
	ArchiveHoldings(ctx context.Context, p models.Period, records []models.HoldingRecord) (writer.ArchivedFile, error)
	ArchiveChanges(ctx context.Context, later models.Period, records []models.ChangeRecord) (writer.ArchivedFile, error)
}

// ArchiveRunner exports one quarter and, when present, its change table.
type ArchiveRunner struct {
	store    SnapshotStore
	archiver Archive
	log      *logger.Log
}

func NewArchiveRunner(store SnapshotStore, archiver Archive, log *logger.Log) *ArchiveRunner {
	return &ArchiveRunner{store: store, archiver: archiver, log: log}
}

func (r *ArchiveRunner) Run(ctx context.Context, p models.Period, withChanges bool) ([]writer.ArchivedFile, error) {
	holdings, err := r.store.Snapshot(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p, err)
	}
	f, err := r.archiver.ArchiveHoldings(ctx, p, holdings)
	if err != nil {
		return nil, err
	}
	files := []writer.ArchivedFile{f}

	if withChanges {
		changes, err := r.store.Changes(ctx, p)
		if err != nil {
			return files, fmt.Errorf("load changes for %s: %w", p, err)
		}
		f, err := r.archiver.ArchiveChanges(ctx, p, changes)
		if err != nil {
			return files, err
		}
		files = append(files, f)
	}

	r.log.WithComponent("archive").WithFields(logger.Fields{
		"period": p.String(),
		"files":  len(files),
	}).Info("archive run finished")
	return files, nil
}
