// Package metadata keeps a small Iceberg-style manifest next to archived
// parquet files so downstream readers can list what each run produced.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DataFile describes a single archived parquet file.
type DataFile struct {
	Path        string         `json:"path"`
	FileSize    int64          `json:"file_size_in_bytes"`
	RecordCount int64          `json:"record_count"`
	Partition   map[string]any `json:"partition"`
	Timestamp   time.Time      `json:"-"`
}

type ManifestEntry struct {
	Status   int      `json:"status"`
	DataFile DataFile `json:"data_file"`
}

type Snapshot struct {
	SnapshotID  int64  `json:"snapshot-id"`
	TimestampMs int64  `json:"timestamp-ms"`
	Manifest    string `json:"manifest-list"`
}

// TableMetadata is the metadata.json document of one archived table.
type TableMetadata struct {
	FormatVersion     int        `json:"format-version"`
	TableUUID         string     `json:"table-uuid"`
	TableName         string     `json:"table-name"`
	Location          string     `json:"location"`
	CurrentSnapshotID int64      `json:"current-snapshot-id"`
	Snapshots         []Snapshot `json:"snapshots"`
}

// Generator appends snapshots to the metadata of one table rooted at
// basePath. Existing metadata is picked up so snapshots accumulate across runs.
type Generator struct {
	basePath string
	meta     TableMetadata
}

func NewGenerator(basePath, tableName string) (*Generator, error) {
	g := &Generator{
		basePath: basePath,
		meta: TableMetadata{
			FormatVersion: 2,
			TableUUID:     uuid.NewString(),
			TableName:     tableName,
			Location:      basePath,
		},
	}
	b, err := os.ReadFile(g.metadataPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		return g, nil
	case err != nil:
		return nil, fmt.Errorf("read table metadata: %w", err)
	}
	if err := json.Unmarshal(b, &g.meta); err != nil {
		return nil, fmt.Errorf("parse table metadata: %w", err)
	}
	return g, nil
}

func (g *Generator) metadataPath() string {
	return filepath.Join(g.basePath, "metadata", "metadata.json")
}

// Metadata returns a copy of the current table metadata.
func (g *Generator) Metadata() TableMetadata {
	m := g.meta
	m.Snapshots = append([]Snapshot(nil), g.meta.Snapshots...)
	return m
}

// AddFile records a newly written parquet file as a new snapshot.
func (g *Generator) AddFile(df DataFile) error {
	if df.Timestamp.IsZero() {
		df.Timestamp = time.Now()
	}
	snapID := df.Timestamp.UnixNano()
	for _, s := range g.meta.Snapshots {
		if s.SnapshotID >= snapID {
			snapID = s.SnapshotID + 1
		}
	}

	manifestFile := fmt.Sprintf("manifest-%d.json", snapID)
	manifestPath := filepath.Join(g.basePath, "metadata", manifestFile)
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal([]ManifestEntry{{Status: 1, DataFile: df}})
	if err != nil {
		return err
	}
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return err
	}

	g.meta.Snapshots = append(g.meta.Snapshots, Snapshot{
		SnapshotID:  snapID,
		TimestampMs: df.Timestamp.UnixMilli(),
		Manifest:    manifestFile,
	})
	g.meta.CurrentSnapshotID = snapID

	out, err := json.MarshalIndent(g.meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.metadataPath(), out, 0o644)
}
