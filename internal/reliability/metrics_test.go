package reliability_test

import (
	"errors"
	"testing"
	"time"

	"mira-sales-pipeline/internal/reliability"
)

func TestMetricsCountsCallsAndFailures(t *testing.T) {
	metrics := reliability.NewMetrics()

	metrics.Record("crm.create_deal", 10*time.Millisecond, nil)
	metrics.Record("crm.create_deal", 20*time.Millisecond, nil)
	metrics.Record("crm.create_deal", 30*time.Millisecond, errors.New("boom"))

	snapshot := metrics.Snapshot()
	stats, ok := snapshot["crm.create_deal"]
	if !ok {
		t.Fatal("Expected stats for crm.create_deal")
	}

	if stats.Calls != 3 {
		t.Errorf("Expected 3 calls, got %d", stats.Calls)
	}
	if stats.Successes != 2 {
		t.Errorf("Expected 2 successes, got %d", stats.Successes)
	}
	if stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
	if stats.AvgLatencyMS != 20 {
		t.Errorf("Expected average latency 20ms, got %v", stats.AvgLatencyMS)
	}
}

func TestMetricsRecentErrorsBounded(t *testing.T) {
	metrics := reliability.NewMetrics()

	for i := 0; i < 200; i++ {
		metrics.Record("extraction.extract", time.Millisecond, errors.New("malformed output"))
	}

	recent := metrics.RecentErrors()
	if len(recent) > 64 {
		t.Errorf("Expected recent error log bounded at 64, got %d", len(recent))
	}
	if recent[len(recent)-1].Operation != "extraction.extract" {
		t.Errorf("Unexpected operation in error record: %s", recent[len(recent)-1].Operation)
	}
}

func TestMetricsLatencySamplesBounded(t *testing.T) {
	metrics := reliability.NewMetrics()

	for i := 0; i < 1000; i++ {
		metrics.Record("turn", time.Duration(i)*time.Millisecond, nil)
	}

	snapshot := metrics.Snapshot()
	stats := snapshot["turn"]
	if stats.Calls != 1000 {
		t.Errorf("Expected 1000 calls, got %d", stats.Calls)
	}
	// samples ring holds only the most recent window, so the average must
	// reflect late samples, not the whole run
	if stats.AvgLatencyMS < 500 {
		t.Errorf("Expected rolling average above 500ms, got %v", stats.AvgLatencyMS)
	}
}
