package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "run.log")

	log := Logger()
	if err := log.Configure("info", "json", path, 0); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	log.WithComponent("test").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Fatalf("log line not written: %s", data)
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestErrorLogReceivesWarningsOnly(t *testing.T) {
	log := Discard()
	var buf bytes.Buffer
	if err := log.attachErrorLog(&buf); err != nil {
		t.Fatalf("attachErrorLog: %v", err)
	}

	log.WithComponent("fetcher").Info("fetched")
	log.WithComponent("fetcher").Warn("slow response")
	log.WithComponent("fetcher").WithFields(Fields{"url": "https://example.test/a.txt"}).Error("fetch failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 error log lines, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["url"] != "https://example.test/a.txt" || rec["level"] != "error" {
		t.Fatalf("unexpected record: %v", rec)
	}

	warnings, errs := log.ErrorLogCounts()
	if warnings != 1 || errs != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", warnings, errs)
	}
}

func TestErrorLogAttachOnce(t *testing.T) {
	log := Discard()
	if err := log.attachErrorLog(&bytes.Buffer{}); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := log.attachErrorLog(&bytes.Buffer{}); err == nil {
		t.Fatalf("expected error on second attach")
	}
}

func TestDashboardBodyIsJSON(t *testing.T) {
	var v map[string]any
	if err := json.Unmarshal([]byte(dashboardBody("Test")), &v); err != nil {
		t.Fatalf("dashboard body not valid JSON: %v", err)
	}
}
