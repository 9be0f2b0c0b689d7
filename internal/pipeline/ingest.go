// Package pipeline sequences the ingest, change, ranking and archive runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"holdingsflow/logger"
	"holdingsflow/models"
	"holdingsflow/processor"
	"holdingsflow/reader"
)

// ErrNoIndexFiles is returned when no YYYY-QTRn index file can be found.
var ErrNoIndexFiles = errors.New("no index files found")

// Mode selects how extracted holdings are written.
type Mode string

const (
	ModeAppend Mode = "append"
	ModeUpsert Mode = "upsert"
)

// HoldingsWriter is the storage side of an ingest run.
type HoldingsWriter interface {
	Append(ctx context.Context, year int, records []models.HoldingRecord) (int, error)
	Upsert(ctx context.Context, year int, records []models.HoldingRecord) (int, error)
}

// IngestStats is returned by every ingest run.
type IngestStats struct {
	IndexFiles       int
	IndexLines       int
	MalformedLines   int
	Filings          int
	FetchFailures    int
	ExtractFailures  int
	EmptyFilings     int
	TruncatedFilings int
	HoldingsStored   int
}

func (s *IngestStats) add(o IngestStats) {
	s.IndexFiles += o.IndexFiles
	s.IndexLines += o.IndexLines
	s.MalformedLines += o.MalformedLines
	s.Filings += o.Filings
	s.FetchFailures += o.FetchFailures
	s.ExtractFailures += o.ExtractFailures
	s.EmptyFilings += o.EmptyFilings
	s.TruncatedFilings += o.TruncatedFilings
	s.HoldingsStored += o.HoldingsStored
}

func (s IngestStats) fields() logger.Fields {
	return logger.Fields{
		"index_files":       s.IndexFiles,
		"index_lines":       s.IndexLines,
		"malformed_lines":   s.MalformedLines,
		"filings":           s.Filings,
		"fetch_failures":    s.FetchFailures,
		"extract_failures":  s.ExtractFailures,
		"empty_filings":     s.EmptyFilings,
		"truncated_filings": s.TruncatedFilings,
		"holdings_stored":   s.HoldingsStored,
	}
}

// Ingestor fetches and stores the holdings of every filing in an index.
type Ingestor struct {
	parser    *reader.IndexParser
	fetcher   reader.Fetcher
	throttle  *reader.Throttle
	extractor *processor.Extractor
	store     HoldingsWriter
	indexExt  string
	log       *logger.Log
}

func NewIngestor(parser *reader.IndexParser, fetcher reader.Fetcher, throttle *reader.Throttle,
	extractor *processor.Extractor, store HoldingsWriter, indexExt string, log *logger.Log) *Ingestor {
	return &Ingestor{
		parser:    parser,
		fetcher:   fetcher,
		throttle:  throttle,
		extractor: extractor,
		store:     store,
		indexExt:  indexExt,
		log:       log,
	}
}

// Seed ingests every index file in dir in append mode, oldest first.
func (in *Ingestor) Seed(ctx context.Context, dir string) (IngestStats, error) {
	files, err := reader.DiscoverIndexFiles(dir, in.indexExt)
	if err != nil {
		return IngestStats{}, err
	}
	if len(files) == 0 {
		in.log.WithComponent("ingest").WithFields(logger.Fields{"dir": dir}).Error("no index files to seed from")
		return IngestStats{}, fmt.Errorf("%w in %s", ErrNoIndexFiles, dir)
	}

	var total IngestStats
	for _, f := range files {
		stats, err := in.IngestFile(ctx, f, ModeAppend)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	in.report("seed", total)
	return total, nil
}

// Update ingests only the latest index file in dir, replacing matching rows.
func (in *Ingestor) Update(ctx context.Context, dir string) (IngestStats, error) {
	latest, ok, err := reader.LatestIndexFile(dir, in.indexExt)
	if err != nil {
		return IngestStats{}, err
	}
	if !ok {
		in.log.WithComponent("ingest").WithFields(logger.Fields{"dir": dir}).Error("no valid index file found for update")
		return IngestStats{}, fmt.Errorf("%w in %s", ErrNoIndexFiles, dir)
	}
	stats, err := in.IngestFile(ctx, latest, ModeUpsert)
	if err == nil {
		in.report("update", stats)
	}
	return stats, err
}

// IngestFile processes one index file. Fetch and extraction failures are
// logged and counted; storage failures stop the run.
func (in *Ingestor) IngestFile(ctx context.Context, file reader.IndexFile, mode Mode) (IngestStats, error) {
	log := in.log.WithComponent("ingest").WithFields(logger.Fields{
		"index_file": file.Path,
		"period":     file.Period.String(),
		"mode":       string(mode),
	})
	start := time.Now()

	refs, idx, err := in.parser.ParseFile(file.Path)
	stats := IngestStats{IndexFiles: 1, IndexLines: idx.Lines, MalformedLines: idx.Malformed}
	if err != nil {
		return stats, err
	}
	log.WithFields(logger.Fields{"filings": len(refs)}).Info("processing index file")

	write := in.store.Append
	if mode == ModeUpsert {
		write = in.store.Upsert
	}

	for _, ref := range refs {
		if err := in.throttle.Wait(ctx); err != nil {
			return stats, err
		}
		flog := log.WithFields(logger.Fields{"cik": ref.CompanyID, "url": ref.DocumentURL})

		body, err := in.fetcher.Fetch(ctx, ref.DocumentURL)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FetchFailures++
			flog.WithError(err).Error("failed to fetch filing")
			continue
		}

		ex, err := in.extractor.Extract(body, ref.Meta(file.Period))
		if err != nil {
			stats.ExtractFailures++
			flog.WithError(err).Error("failed to extract holdings")
			continue
		}
		if len(ex.Records) == 0 {
			stats.EmptyFilings++
			flog.WithFields(logger.Fields{"lengths": ex.Lengths}).Debug("filing has no holdings table")
			continue
		}
		if ex.Truncated() {
			stats.TruncatedFilings++
		}

		n, err := write(ctx, file.Period.Year, ex.Records)
		stats.HoldingsStored += n
		if err != nil {
			flog.WithError(err).Error("failed to store holdings")
			return stats, fmt.Errorf("store holdings of %s: %w", ref.CompanyID, err)
		}
		stats.Filings++
	}

	logger.LogPerformanceEntry(log, "ingest", "ingest_file", time.Since(start), stats.fields())
	return stats, nil
}

// Preview extracts up to limit filings from file without storing anything.
func (in *Ingestor) Preview(ctx context.Context, file reader.IndexFile, limit int) ([]processor.Extraction, error) {
	refs, _, err := in.parser.ParseFile(file.Path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}

	log := in.log.WithComponent("preview")
	var out []processor.Extraction
	for _, ref := range refs {
		if err := in.throttle.Wait(ctx); err != nil {
			return out, err
		}
		body, err := in.fetcher.Fetch(ctx, ref.DocumentURL)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"url": ref.DocumentURL}).Error("failed to fetch filing")
			continue
		}
		ex, err := in.extractor.Extract(body, ref.Meta(file.Period))
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"url": ref.DocumentURL}).Error("failed to extract holdings")
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}

func (in *Ingestor) report(run string, stats IngestStats) {
	log := in.log.WithComponent("ingest")
	log.WithFields(stats.fields()).WithFields(logger.Fields{"run": run}).Info("ingest finished")
	in.log.LogMetric("ingest", "filings_processed", stats.Filings, "counter", logger.Fields{"run": run})
	in.log.LogMetric("ingest", "holdings_stored", stats.HoldingsStored, "counter", logger.Fields{"run": run})
	in.log.LogMetric("ingest", "fetch_failures", stats.FetchFailures, "counter", logger.Fields{"run": run})
	in.log.LogMetric("ingest", "extraction_failures", stats.ExtractFailures, "counter", logger.Fields{"run": run})
}
