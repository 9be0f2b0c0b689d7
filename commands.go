package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"holdingsflow/internal/pipeline"
	"holdingsflow/logger"
	"holdingsflow/models"
	"holdingsflow/processor"
	"holdingsflow/reader"
	"holdingsflow/store"
	"holdingsflow/writer"
)

func openStore() (*store.Store, error) {
	return store.Open(cfg.Storage.DBDir, cfg.Storage.DBPrefix, log)
}

func newThrottle() *reader.Throttle {
	return reader.NewThrottle(cfg.Reader.BatchSize, cfg.Reader.BatchDelay)
}

func newIngestor(st *store.Store) *pipeline.Ingestor {
	return pipeline.NewIngestor(
		reader.NewIndexParser(cfg.Edgar.BaseURL, cfg.Edgar.FormType, reader.MalformedPolicy(cfg.Edgar.MalformedLines), log),
		reader.NewHTTPFetcher(cfg.Edgar.UserAgent, cfg.Reader.Timeout),
		newThrottle(),
		processor.NewExtractor(log),
		st,
		cfg.Edgar.IndexExt,
		log,
	)
}

func parsePeriodFlag(cmd *cobra.Command, name string) (models.Period, bool, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return models.Period{}, false, nil
	}
	p, err := models.ParsePeriod(raw)
	if err != nil {
		return models.Period{}, false, fmt.Errorf("--%s: %w", name, err)
	}
	return p, true, nil
}

var downloadIndexCmd = &cobra.Command{
	Use:   "download-index",
	Short: "Download quarterly master indexes as pipe-delimited index files",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetInt("since")
		if since == 0 {
			since = cfg.Edgar.SinceYear
		}
		d := reader.NewIndexDownloader(
			reader.NewHTTPFetcher(cfg.Edgar.UserAgent, cfg.Reader.Timeout),
			newThrottle(),
			cfg.Edgar.BaseURL,
			cfg.Edgar.IndexDir,
			log,
		)
		written, err := d.Download(cmd.Context(), reader.QuartersSince(since, time.Now()))
		log.WithComponent("main").WithFields(logger.Fields{"files": len(written), "since": since}).Info("index download finished")
		return err
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ingest every index file into the holdings store",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		_, err = newIngestor(st).Seed(cmd.Context(), cfg.Edgar.IndexDir)
		return err
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Ingest the latest index file, replacing matching holdings",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		_, err = newIngestor(st).Update(cmd.Context(), cfg.Edgar.IndexDir)
		return err
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch and print holdings of the first filings of an index file",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		path, _ := cmd.Flags().GetString("file")

		var file reader.IndexFile
		if path == "" {
			latest, ok, err := reader.LatestIndexFile(cfg.Edgar.IndexDir, cfg.Edgar.IndexExt)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w in %s", pipeline.ErrNoIndexFiles, cfg.Edgar.IndexDir)
			}
			file = latest
		} else {
			p, ok := reader.PeriodFromFilename(filepath.Base(path))
			if !ok {
				return fmt.Errorf("cannot derive period from %s", path)
			}
			file = reader.IndexFile{Path: path, Period: p}
		}

		// Preview never writes, so no store is opened.
		in := pipeline.NewIngestor(
			reader.NewIndexParser(cfg.Edgar.BaseURL, cfg.Edgar.FormType, reader.MalformedPolicy(cfg.Edgar.MalformedLines), log),
			reader.NewHTTPFetcher(cfg.Edgar.UserAgent, cfg.Reader.Timeout),
			newThrottle(),
			processor.NewExtractor(log),
			nil,
			cfg.Edgar.IndexExt,
			log,
		)
		out, err := in.Preview(cmd.Context(), file, limit)
		for _, ex := range out {
			fmt.Fprintf(cmd.OutOrStdout(), "# lengths=%v unit=%s dropped=%d\n", ex.Lengths, ex.Unit, ex.Dropped)
			for _, r := range ex.Records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.InstitutionID, r.InstitutionName, r.IssuerName, r.CUSIP,
					r.ValueUSD.String(), r.ShareAmount, r.ShareAmountType)
			}
		}
		return err
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Compute quarter over quarter change tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, ok, err := parsePeriodFlag(cmd, "from")
		if err != nil {
			return err
		}
		if !ok {
			from = models.Period{Year: cfg.Edgar.SinceYear, Quarter: 1}
		}
		to, ok, err := parsePeriodFlag(cmd, "to")
		if err != nil {
			return err
		}
		if !ok {
			periods := reader.QuartersSince(from.Year, time.Now())
			to = periods[len(periods)-1]
		}
		replace, _ := cmd.Flags().GetBool("replace")

		pairs, err := pipeline.PairsBetween(from, to)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		summaries, err := pipeline.NewChangeRunner(st, log).Run(cmd.Context(), pairs, replace)
		for _, s := range summaries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %d changes stored in %s\n",
				s.Earlier, s.Later, s.Changes, store.ChangesTable(s.Later))
		}
		return err
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank institutions of a year by total holdings value",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		limit, _ := cmd.Flags().GetInt("limit")
		out, _ := cmd.Flags().GetString("out")
		load, _ := cmd.Flags().GetBool("load")
		if limit == 0 {
			limit = cfg.Storage.TopLimit
		}
		if out == "" {
			out = fmt.Sprintf("top_companies_%d.tsv", year)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if !st.Exists(year) {
			return fmt.Errorf("no holdings partition for %d at %s", year, st.Path(year))
		}

		runner := pipeline.NewTopRunner(st, log)
		totals, err := runner.Export(cmd.Context(), year, limit, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d institutions written to %s\n", len(totals), out)
		if !load {
			return nil
		}
		_, err = runner.Import(cmd.Context(), year, out)
		return err
	},
}

var importTopCmd = &cobra.Command{
	Use:   "import-top",
	Short: "Load a top companies TSV into the top_companies table of a year",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			file = fmt.Sprintf("top_companies_%d.tsv", year)
		}
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("top companies file: %w", err)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := pipeline.NewTopRunner(st, log).Import(cmd.Context(), year, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rows loaded into top_companies of %d\n", n, year)
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export a quarter snapshot and its change table to parquet",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok, err := parsePeriodFlag(cmd, "period")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("--period is required")
		}
		withChanges, _ := cmd.Flags().GetBool("changes")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		archiver, err := writer.NewArchiver(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		files, err := pipeline.NewArchiveRunner(st, archiver, log).Run(cmd.Context(), p, withChanges)
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\tuploaded=%t\n", f.LocalPath, f.Records, f.Uploaded)
		}
		return err
	},
}

func init() {
	downloadIndexCmd.Flags().Int("since", 0, "first year to download (default edgar.since_year)")

	previewCmd.Flags().Int("limit", 10, "number of filings to preview")
	previewCmd.Flags().String("file", "", "index file to preview (default latest in edgar.index_dir)")

	changesCmd.Flags().String("from", "", "first earlier quarter, YYYY-QTRn (default edgar.since_year Q1)")
	changesCmd.Flags().String("to", "", "last later quarter, YYYY-QTRn (default current quarter)")
	changesCmd.Flags().Bool("replace", true, "clear each change table before writing")

	topCmd.Flags().Int("year", time.Now().Year(), "partition year to rank")
	topCmd.Flags().Int("limit", 0, "number of institutions (default storage.top_limit)")
	topCmd.Flags().String("out", "", "TSV output path (default top_companies_<year>.tsv)")
	topCmd.Flags().Bool("load", false, "also load the TSV into top_companies")

	importTopCmd.Flags().Int("year", time.Now().Year(), "partition year to load into")
	importTopCmd.Flags().String("file", "", "TSV to load (default top_companies_<year>.tsv)")

	archiveCmd.Flags().String("period", "", "quarter to archive, YYYY-QTRn")
	archiveCmd.Flags().Bool("changes", false, "also archive the change table of the quarter")
}
