package telemetry

import (
	stdjson "encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talkincode/netpulse/pkg/metrics"
)

func reading(name string, value float64) metrics.Reading {
	return metrics.Reading{
		Name:      name,
		Type:      metrics.TypeCounter,
		Tags:      map[string]string{"target": "internet"},
		Value:     value,
		Timestamp: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func jsonFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestExportProducesValidArray(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir, 0, "run1")

	sink.Export([]metrics.Reading{reading("netpulse_cycles_total", 1), reading("netpulse_cycles_total", 2)})
	sink.Export([]metrics.Reading{reading("netpulse_probe_failures_total", 1)})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files := jsonFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("file count = %d, want 1", len(files))
	}
	if !strings.HasPrefix(files[0], "metrics-run1-") {
		t.Errorf("file name %q must carry the run identifier", files[0])
	}

	data, err := os.ReadFile(filepath.Join(dir, files[0]))
	if err != nil {
		t.Fatal(err)
	}
	var records []metrics.Reading
	if err := stdjson.Unmarshal(data, &records); err != nil {
		t.Fatalf("closed file is not a valid JSON array: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("record count = %d, want 3", len(records))
	}
	if records[0].Name != "netpulse_cycles_total" || records[0].Tags["target"] != "internet" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
}

func TestRotationBySize(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir, 256, "run2")

	for i := 0; i < 20; i++ {
		sink.Export([]metrics.Reading{reading("netpulse_probe_latency_ms", float64(i))})
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files := jsonFiles(t, dir)
	if len(files) < 2 {
		t.Fatalf("file count = %d, want rotation to produce several files", len(files))
	}

	// Every file, rotated ones included, must be a valid JSON array.
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		var records []metrics.Reading
		if err := stdjson.Unmarshal(data, &records); err != nil {
			t.Errorf("file %s is not a valid JSON array: %v", name, err)
		}
		if len(data) > 256+64 {
			t.Errorf("file %s is %d bytes, far above the rotation threshold", name, len(data))
		}
	}
}

func TestRotatedFilesAreNumberedSequentially(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir, 256, "run3")

	for i := 0; i < 20; i++ {
		sink.Export([]metrics.Reading{reading("netpulse_probe_latency_ms", float64(i))})
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files := jsonFiles(t, dir)
	date := time.Now().UTC().Format("20060102")
	base := "metrics-run3-" + date
	seen := map[string]bool{}
	for _, name := range files {
		seen[name] = true
	}
	if !seen[base+".json"] {
		t.Errorf("first file of the date must have no sequence suffix, got %v", files)
	}
	if len(files) > 1 && !seen[base+"-1.json"] {
		t.Errorf("second file must carry sequence 1, got %v", files)
	}
}

func TestDisabledSinkIsInert(t *testing.T) {
	sink := NewSink("", 0, "run4")
	sink.Export([]metrics.Reading{reading("x", 1)})
	if err := sink.Close(); err != nil {
		t.Errorf("Close on disabled sink = %v, want nil", err)
	}
}

func TestExportAbsorbsDirectoryFailure(t *testing.T) {
	// The sink directory path points at an existing file, so MkdirAll
	// fails; Export must log and return normally.
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := NewSink(blocker, 0, "run5")
	sink.Export([]metrics.Reading{reading("x", 1)})
	if err := sink.Close(); err != nil {
		t.Errorf("Close = %v, want nil after absorbed failure", err)
	}
}
