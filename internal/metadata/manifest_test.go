package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGeneratorCreatesMetadata(t *testing.T) {
	dir := t.TempDir()
	gen, err := NewGenerator(dir, "holdings")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	df := DataFile{
		Path:        "holdings/year=2024/quarter=1/holdings_x.parquet",
		FileSize:    100,
		RecordCount: 10,
		Partition:   map[string]any{"year": 2024, "quarter": 1},
		Timestamp:   time.Unix(0, 0),
	}
	if err := gen.AddFile(df); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "metadata", "metadata.json")); err != nil {
		t.Fatalf("metadata not written: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "metadata", gen.Metadata().Snapshots[0].Manifest))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if len(entries) != 1 || entries[0].DataFile.RecordCount != 10 {
		t.Fatalf("unexpected manifest: %+v", entries)
	}
}

func TestGeneratorResumesExistingMetadata(t *testing.T) {
	dir := t.TempDir()
	first, err := NewGenerator(dir, "changes")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	ts := time.Unix(100, 0)
	if err := first.AddFile(DataFile{Path: "a", Timestamp: ts}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	second, err := NewGenerator(dir, "changes")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if err := second.AddFile(DataFile{Path: "b", Timestamp: ts}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	meta := second.Metadata()
	if meta.TableUUID != first.Metadata().TableUUID {
		t.Fatalf("table uuid changed across runs")
	}
	if len(meta.Snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(meta.Snapshots))
	}
	if meta.Snapshots[1].SnapshotID <= meta.Snapshots[0].SnapshotID {
		t.Fatalf("snapshot ids not increasing: %+v", meta.Snapshots)
	}
	if meta.CurrentSnapshotID != meta.Snapshots[1].SnapshotID {
		t.Fatalf("current snapshot not updated")
	}
}
