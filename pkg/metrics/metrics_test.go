package metrics

import (
	"testing"
	"time"
)

func setup(t *testing.T) {
	t.Helper()
	if err := InitMetrics(""); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func findReading(readings []Reading, name, typ string) (Reading, bool) {
	for _, r := range readings {
		if r.Name == name && r.Type == typ {
			return r, true
		}
	}
	return Reading{}, false
}

func TestCounter(t *testing.T) {
	setup(t)

	tags := map[string]string{"target": "internet"}
	IncrCounter("test_cycles_total", tags)
	IncrCounter("test_cycles_total", tags)
	AddCounter("test_cycles_total", tags, 3)

	r, ok := findReading(Snapshot(), "test_cycles_total", TypeCounter)
	if !ok {
		t.Fatal("counter missing from snapshot")
	}
	if r.Value != 5 {
		t.Errorf("counter value = %v, want 5", r.Value)
	}
	if r.Tags["target"] != "internet" {
		t.Errorf("counter tags = %v", r.Tags)
	}
}

func TestGauge(t *testing.T) {
	setup(t)

	SetGauge("test_memuse", 120)
	SetGauge("test_memuse", 140)

	r, ok := findReading(Snapshot(), "test_memuse", TypeGauge)
	if !ok {
		t.Fatal("gauge missing from snapshot")
	}
	if r.Value != 140 {
		t.Errorf("gauge value = %v, want latest 140", r.Value)
	}
}

func TestHistogram(t *testing.T) {
	setup(t)

	tags := map[string]string{"target": "router"}
	for _, v := range []float64{10, 20, 30} {
		ObserveHistogram("test_latency_ms", tags, v)
	}

	r, ok := findReading(Snapshot(), "test_latency_ms", TypeHistogram)
	if !ok {
		t.Fatal("histogram missing from snapshot")
	}
	if r.Count != 3 || r.Sum != 60 {
		t.Errorf("histogram = {count:%d sum:%v}, want {count:3 sum:60}", r.Count, r.Sum)
	}
}

func TestDescribe(t *testing.T) {
	setup(t)

	Describe("test_latency_ms", "Probe round-trip latency", "ms")
	ObserveHistogram("test_latency_ms", nil, 5)

	r, ok := findReading(Snapshot(), "test_latency_ms", TypeHistogram)
	if !ok {
		t.Fatal("histogram missing from snapshot")
	}
	if r.Description != "Probe round-trip latency" || r.Unit != "ms" {
		t.Errorf("metadata = (%q, %q)", r.Description, r.Unit)
	}
}

func TestRangeReadsBackPoints(t *testing.T) {
	setup(t)

	tags := map[string]string{"target": "internet"}
	ObserveHistogram("test_latency_ms", tags, 42)

	points, err := Range("test_latency_ms", tags,
		time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("expected at least one recorded point")
	}
	if points[len(points)-1].Value != 42 {
		t.Errorf("point value = %v, want 42", points[len(points)-1].Value)
	}
}

func TestUninitializedRegistryIsInert(t *testing.T) {
	_ = Close()

	IncrCounter("x", nil)
	SetGauge("y", 1)
	ObserveHistogram("z", nil, 1)
	if got := Snapshot(); got != nil {
		t.Errorf("Snapshot without init = %v, want nil", got)
	}
	if RunID() != "norun" {
		t.Errorf("RunID without init = %q", RunID())
	}
}
