package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdingsflow/logger"
	"holdingsflow/models"
	"holdingsflow/processor"
	"holdingsflow/reader"
	"holdingsflow/store"
	"holdingsflow/writer"
)

func filingBody(entries ...[2]string) string {
	var b strings.Builder
	b.WriteString("<XML><informationTable>")
	for _, e := range entries {
		fmt.Fprintf(&b, "<infoTable><nameOfIssuer>%s</nameOfIssuer><titleOfClass>COM</titleOfClass>"+
			"<cusip>000000000</cusip><value>%s</value><shrsOrPrnAmt><sshPrnamt>1</sshPrnamt>"+
			"<sshPrnamtType>SH</sshPrnamtType></shrsOrPrnAmt></infoTable>\n", e[0], e[1])
	}
	b.WriteString("</informationTable></XML>")
	return b.String()
}

type fixture struct {
	dir   string
	store *store.Store
	in    *Ingestor
	srv   *httptest.Server
}

func newFixture(t *testing.T, docs map[string]string) *fixture {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	log := logger.Discard()
	st, err := store.Open(filepath.Join(t.TempDir(), "db"), "company_holdings_", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	in := NewIngestor(
		reader.NewIndexParser(srv.URL+"/", "13F-HR", reader.MalformedSkip, log),
		reader.NewHTTPFetcher("test ops@example.com", 5*time.Second),
		reader.NewThrottle(5, 0),
		processor.NewExtractor(log),
		st, ".tsv", log,
	)
	return &fixture{dir: t.TempDir(), store: st, in: in, srv: srv}
}

func (f *fixture) writeIndex(t *testing.T, name string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestSeedIngestsAllIndexFiles(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/a1.txt": filingBody([2]string{"APPLE INC", "100"}, [2]string{"BANK", "50"}),
		"/a2.txt": filingBody([2]string{"APPLE INC", "150"}),
		"/bad.txt": filingBody([2]string{"APPLE INC", "oops"}),
	})
	f.writeIndex(t, "2024-QTR1.tsv",
		"1|ALPHA|13F-HR|2024-02-01|a1.txt|a1-index.html",
		"2|BETA|10-K|2024-02-01|b.txt|b-index.html",
		"3|GAMMA|13F-HR|2024-02-01|missing.txt|missing-index.html",
		"broken line",
	)
	f.writeIndex(t, "2024-QTR2.tsv",
		"1|ALPHA|13F-HR|2024-05-01|a2.txt|a2-index.html",
		"4|DELTA|13F-HR|2024-05-01|bad.txt|bad-index.html",
	)

	stats, err := f.in.Seed(context.Background(), f.dir)
	require.NoError(t, err)
	assert.Equal(t, IngestStats{
		IndexFiles:      2,
		IndexLines:      6,
		MalformedLines:  1,
		Filings:         2,
		FetchFailures:   1,
		ExtractFailures: 1,
		HoldingsStored:  3,
	}, stats)

	q1, err := f.store.Snapshot(context.Background(), models.Period{Year: 2024, Quarter: 1})
	require.NoError(t, err)
	require.Len(t, q1, 2)
	assert.Equal(t, "2024-02-01", q1[0].FilingDate)
	assert.True(t, q1[0].ValueUSD.Equal(decimal.NewFromInt(100000)))
}

func TestUpdateUsesLatestFileAndReplaces(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/a3.txt": filingBody([2]string{"APPLE INC", "200"}),
	})
	f.writeIndex(t, "2024-QTR2.tsv", "1|ALPHA|13F-HR|2024-05-01|nothing.txt|n-index.html")
	f.writeIndex(t, "2024-QTR3.tsv", "1|ALPHA|13F-HR|2024-08-01|a3.txt|a3-index.html")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		stats, err := f.in.Update(ctx, f.dir)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.IndexFiles)
		assert.Equal(t, 1, stats.HoldingsStored)
	}

	rows, err := f.store.Snapshot(ctx, models.Period{Year: 2024, Quarter: 3})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	older, err := f.store.Snapshot(ctx, models.Period{Year: 2024, Quarter: 2})
	require.NoError(t, err)
	assert.Empty(t, older)
}

func TestUpdateWithoutIndexFiles(t *testing.T) {
	f := newFixture(t, nil)
	f.writeIndex(t, "notes.tsv", "x")
	_, err := f.in.Update(context.Background(), f.dir)
	assert.True(t, errors.Is(err, ErrNoIndexFiles))
}

type failingWriter struct{}

func (failingWriter) Append(context.Context, int, []models.HoldingRecord) (int, error) {
	return 0, errors.New("disk full")
}

func (failingWriter) Upsert(context.Context, int, []models.HoldingRecord) (int, error) {
	return 0, errors.New("disk full")
}

func TestStorageFailureAbortsRun(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/a1.txt": filingBody([2]string{"APPLE INC", "100"}),
		"/a2.txt": filingBody([2]string{"BANK", "100"}),
	})
	f.in.store = failingWriter{}
	f.writeIndex(t, "2024-QTR1.tsv",
		"1|ALPHA|13F-HR|2024-02-01|a1.txt|a1-index.html",
		"2|BETA|13F-HR|2024-02-01|a2.txt|a2-index.html",
	)
	stats, err := f.in.Seed(context.Background(), f.dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, stats.Filings)
}

func TestCancelledContextStopsIngest(t *testing.T) {
	f := newFixture(t, map[string]string{"/a1.txt": filingBody([2]string{"APPLE INC", "1"})})
	f.writeIndex(t, "2024-QTR1.tsv", "1|ALPHA|13F-HR|2024-02-01|a1.txt|a1-index.html")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.in.Seed(ctx, f.dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreviewDoesNotStore(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/a1.txt": filingBody([2]string{"APPLE INC", "1"}),
		"/a2.txt": filingBody([2]string{"BANK", "2"}),
	})
	f.writeIndex(t, "2024-QTR1.tsv",
		"1|ALPHA|13F-HR|2024-02-01|a1.txt|a1-index.html",
		"2|BETA|13F-HR|2024-02-01|a2.txt|a2-index.html",
	)
	file, ok, err := reader.LatestIndexFile(f.dir, ".tsv")
	require.NoError(t, err)
	require.True(t, ok)

	out, err := f.in.Preview(context.Background(), file, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "APPLE INC", out[0].Records[0].IssuerName)
	assert.False(t, f.store.Exists(2024))
}

func seedHoldings(t *testing.T, st *store.Store, p models.Period, cik, inst string, values map[string]int64, order []string) {
	t.Helper()
	var recs []models.HoldingRecord
	for _, issuer := range order {
		recs = append(recs, models.HoldingRecord{
			FilingYear: p.Year, FilingQuarter: p.Quarter, IssuerName: issuer,
			ValueUSD: decimal.NewFromInt(values[issuer]), ValueUSDThousands: decimal.Zero,
			InstitutionID: cik, InstitutionName: inst, FilingDate: p.String(),
		})
	}
	_, err := st.Append(context.Background(), p.Year, recs)
	require.NoError(t, err)
}

func TestChangeRunnerIdempotentAcrossYears(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q4 := models.Period{Year: 2023, Quarter: 4}
	q1 := models.Period{Year: 2024, Quarter: 1}
	seedHoldings(t, f.store, q4, "1", "ALPHA", map[string]int64{"APPLE INC": 100, "BANK": 40}, []string{"APPLE INC", "BANK"})
	seedHoldings(t, f.store, q1, "1", "ALPHA", map[string]int64{"APPLE INC": 150}, []string{"APPLE INC"})

	runner := NewChangeRunner(f.store, logger.Discard())
	for i := 0; i < 2; i++ {
		sums, err := runner.Run(ctx, []models.Period{q4}, true)
		require.NoError(t, err)
		require.Len(t, sums, 1)
		assert.Equal(t, ChangeSummary{Earlier: q4, Later: q1, EarlierRows: 2, LaterRows: 1, Changes: 2}, sums[0])
	}

	got, err := f.store.Changes(ctx, q1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.PositionBuy, got[0].Position)
	assert.True(t, got[0].PercentageChange.Equal(decimal.NewFromInt(50)))
	assert.True(t, got[1].IsNew)
	assert.True(t, got[1].TotalValueCurrentQuarter.Equal(decimal.NewFromInt(140)))
	assert.True(t, got[1].TotalValuePreviousQuarter.Equal(decimal.NewFromInt(150)))
}

func TestPairsBetween(t *testing.T) {
	pairs, err := PairsBetween(models.Period{Year: 2023, Quarter: 1}, models.Period{Year: 2024, Quarter: 1})
	require.NoError(t, err)
	require.Len(t, pairs, 4)
	assert.Equal(t, models.Period{Year: 2023, Quarter: 4}, pairs[3])

	_, err = PairsBetween(models.Period{Year: 2024, Quarter: 1}, models.Period{Year: 2024, Quarter: 1})
	assert.Error(t, err)
}

func TestTopRunnerExportAndImport(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := models.Period{Year: 2023, Quarter: 2}
	seedHoldings(t, f.store, p, "10", "ALPHA", map[string]int64{"X": 300}, []string{"X"})
	seedHoldings(t, f.store, p, "20", "BETA", map[string]int64{"X": 100}, []string{"X"})
	seedHoldings(t, f.store, p, "30", "GAMMA", map[string]int64{"X": 300}, []string{"X"})

	runner := NewTopRunner(f.store, logger.Discard())
	path := filepath.Join(t.TempDir(), "top_companies_2023.tsv")
	totals, err := runner.Export(ctx, 2023, 100, path)
	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.Equal(t, "GAMMA", totals[1].InstitutionName)

	n, err := runner.Import(ctx, 2023, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	loaded, err := f.store.TopCompanies(ctx, 2023)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "ALPHA", loaded[0].InstitutionName)
	assert.Equal(t, "10", loaded[0].InstitutionID)
}

type recordingArchive struct {
	holdings int
	changes  int
}

func (r *recordingArchive) ArchiveHoldings(_ context.Context, p models.Period, recs []models.HoldingRecord) (writer.ArchivedFile, error) {
	r.holdings += len(recs)
	return writer.ArchivedFile{Key: "holdings/" + p.String(), Records: len(recs)}, nil
}

func (r *recordingArchive) ArchiveChanges(_ context.Context, p models.Period, recs []models.ChangeRecord) (writer.ArchivedFile, error) {
	r.changes += len(recs)
	return writer.ArchivedFile{Key: "changes/" + p.String(), Records: len(recs)}, nil
}

func TestArchiveRunner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q1 := models.Period{Year: 2024, Quarter: 1}
	q2 := models.Period{Year: 2024, Quarter: 2}
	seedHoldings(t, f.store, q1, "1", "ALPHA", map[string]int64{"A": 1}, []string{"A"})
	seedHoldings(t, f.store, q2, "1", "ALPHA", map[string]int64{"A": 2, "B": 3}, []string{"A", "B"})
	_, err := NewChangeRunner(f.store, logger.Discard()).Run(ctx, []models.Period{q1}, true)
	require.NoError(t, err)

	arch := &recordingArchive{}
	files, err := NewArchiveRunner(f.store, arch, logger.Discard()).Run(ctx, q2, true)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 2, arch.holdings)
	assert.Equal(t, 1, arch.changes)
}
