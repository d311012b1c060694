package extract

import (
	"testing"
	"time"
)

func TestParseStatsSnapshotPercentiles(t *testing.T) {
	stats := NewParseStats(time.Hour)
	for _, us := range []int64{100, 200, 300, 400, 500} {
		stats.Record(time.Duration(us) * time.Microsecond)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinUs != 100 || snap.MaxUs != 500 {
		t.Fatalf("expected min=100 max=500, got %d %d", snap.MinUs, snap.MaxUs)
	}
	if snap.AvgUs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgUs)
	}
	if snap.P50Us != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Us)
	}
	if snap.P95Us != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Us)
	}
	if snap.P99Us != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Us)
	}
}

func TestParseStatsPrunesExpiredSamples(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := NewParseStats(time.Minute)
	stats.now = func() time.Time { return now }

	stats.Record(100 * time.Microsecond)
	stats.RecordError()
	now = now.Add(2 * time.Minute)

	snap := stats.Snapshot()
	if snap.Count != 0 || snap.Errors != 0 {
		t.Fatalf("expected empty window after prune, got %+v", snap)
	}

	stats.Record(200 * time.Microsecond)
	snap = stats.Snapshot()
	if snap.Count != 1 || snap.MinUs != 200 || snap.MaxUs != 200 {
		t.Fatalf("expected a single fresh sample, got %+v", snap)
	}
}

func TestParseStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewParseStats(time.Hour)
	stats.Record(-time.Second)
	if snap := stats.Snapshot(); snap.MinUs != 0 || snap.Count != 1 {
		t.Fatalf("expected clamped sample, got %+v", snap)
	}
}

func TestParseStatsCountsErrors(t *testing.T) {
	stats := NewParseStats(0)
	stats.RecordError()
	stats.RecordError()
	snap := stats.Snapshot()
	if snap.Errors != 2 || snap.Count != 0 {
		t.Fatalf("expected 2 errors, got %+v", snap)
	}
	if snap.Window != "1h0m0s" {
		t.Errorf("expected default window, got %q", snap.Window)
	}
}
