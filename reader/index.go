package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"holdingsflow/logger"
	"holdingsflow/models"
)

// ErrMalformedIndexLine is returned for an index line with fewer than six
// pipe-delimited fields.
var ErrMalformedIndexLine = errors.New("malformed index line")

const indexFieldCount = 6

// MalformedPolicy selects what the index parser does with a malformed line.
type MalformedPolicy string

const (
	MalformedSkip  MalformedPolicy = "skip"
	MalformedAbort MalformedPolicy = "abort"
)

// ParseIndexLine parses one companyId|companyName|formType|filingDate|docPath|indexPath
// line. matched is false when the form type does not contain marker.
func ParseIndexLine(line, baseURL, marker string) (ref models.FilingReference, matched bool, err error) {
	fields := strings.Split(strings.TrimSpace(line), "|")
	if len(fields) < indexFieldCount {
		return models.FilingReference{}, false, fmt.Errorf("%w: %d fields", ErrMalformedIndexLine, len(fields))
	}
	if !strings.Contains(fields[2], marker) {
		return models.FilingReference{}, false, nil
	}
	return models.FilingReference{
		CompanyID:   fields[0],
		CompanyName: fields[1],
		FormType:    fields[2],
		FilingDate:  fields[3],
		DocumentURL: baseURL + fields[4],
		IndexURL:    baseURL + fields[5],
	}, true, nil
}

// IndexStats counts what a parse pass saw.
type IndexStats struct {
	Lines     int
	Matched   int
	Malformed int
}

// IndexParser turns a quarterly index stream into filing references.
type IndexParser struct {
	BaseURL string
	Marker  string
	Policy  MalformedPolicy
	log     *logger.Log
}

func NewIndexParser(baseURL, marker string, policy MalformedPolicy, log *logger.Log) *IndexParser {
	if policy == "" {
		policy = MalformedSkip
	}
	return &IndexParser{BaseURL: baseURL, Marker: marker, Policy: policy, log: log}
}

// Parse reads every line of r. Blank lines are ignored. Malformed lines are
// counted and skipped, or returned as an error under MalformedAbort.
func (p *IndexParser) Parse(r io.Reader) ([]models.FilingReference, IndexStats, error) {
	var (
		refs  []models.FilingReference
		stats IndexStats
	)
	log := p.log.WithComponent("index_parser")

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		ref, ok, err := ParseIndexLine(line, p.BaseURL, p.Marker)
		if err != nil {
			stats.Malformed++
			if p.Policy == MalformedAbort {
				return refs, stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			log.WithError(err).WithFields(logger.Fields{"line": lineNo}).Warn("skipping malformed index line")
			continue
		}
		if !ok {
			continue
		}
		stats.Matched++
		refs = append(refs, ref)
	}
	if err := sc.Err(); err != nil {
		return refs, stats, fmt.Errorf("read index: %w", err)
	}
	return refs, stats, nil
}

// ParseFile opens path and parses it.
func (p *IndexParser) ParseFile(path string) ([]models.FilingReference, IndexStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, IndexStats{}, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}
