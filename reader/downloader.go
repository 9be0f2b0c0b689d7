package reader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"holdingsflow/logger"
	"holdingsflow/models"
)

// IndexDownloader fetches EDGAR master indexes and stores them as
// YYYY-QTRn.tsv files in the six field index format.
type IndexDownloader struct {
	fetcher  Fetcher
	throttle *Throttle
	baseURL  string
	dir      string
	log      *logger.Log
}

func NewIndexDownloader(fetcher Fetcher, throttle *Throttle, baseURL, dir string, log *logger.Log) *IndexDownloader {
	return &IndexDownloader{fetcher: fetcher, throttle: throttle, baseURL: baseURL, dir: dir, log: log}
}

// QuartersSince lists every period from sinceYear Q1 up to and including the
// quarter containing now.
func QuartersSince(sinceYear int, now time.Time) []models.Period {
	last := models.Period{Year: now.Year(), Quarter: (int(now.Month())-1)/3 + 1}
	var out []models.Period
	for p := (models.Period{Year: sinceYear, Quarter: 1}); !last.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// MasterIndexURL returns the location of the master index for p.
func (d *IndexDownloader) MasterIndexURL(p models.Period) string {
	return fmt.Sprintf("%sedgar/full-index/%d/QTR%d/master.idx", d.baseURL, p.Year, p.Quarter)
}

// Download fetches each period. Failed periods are logged and skipped; the
// written file paths are returned.
func (d *IndexDownloader) Download(ctx context.Context, periods []models.Period) ([]string, error) {
	log := d.log.WithComponent("index_downloader")
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	var written []string
	for _, p := range periods {
		if err := d.throttle.Wait(ctx); err != nil {
			return written, err
		}
		url := d.MasterIndexURL(p)
		body, err := d.fetcher.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			log.WithError(err).WithFields(logger.Fields{"period": p.String(), "url": url}).Error("failed to download master index")
			continue
		}
		path := filepath.Join(d.dir, p.String()+".tsv")
		n, err := writeIndexFile(path, body)
		if err != nil {
			return written, err
		}
		log.WithFields(logger.Fields{"period": p.String(), "path": path, "lines": n}).Info("index file written")
		written = append(written, path)
	}
	return written, nil
}

// ConvertMasterIndex converts the data lines of a master.idx body. The
// header ends at the first line of dashes; lines without five fields are
// dropped.
func ConvertMasterIndex(body string) []string {
	var out []string
	inData := false
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if !inData {
			if strings.HasPrefix(line, "----") {
				inData = true
			}
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 5 {
			continue
		}
		out = append(out, line+"|"+strings.Replace(fields[4], ".txt", "-index.html", 1))
	}
	return out
}

func writeIndexFile(path, body string) (int, error) {
	lines := ConvertMasterIndex(body)
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			f.Close()
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(lines), f.Close()
}
