package query

import (
	"testing"
	"time"

	"github.com/meetgraph/meetgraph/internal/models"
)

func TestExtractTimeRangeLastNDays(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	tw := extractTimeRange("what happened in the last 7 days", now)
	if tw == nil {
		t.Fatalf("expected a time window")
	}
	if !tw.Start.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("expected start 7 days ago, got %v", tw.Start)
	}
}

func TestExtractTimeRangeQuarter(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	tw := extractTimeRange("summarize Q2 2026", now)
	if tw == nil {
		t.Fatalf("expected a time window")
	}
	if tw.Start.Month() != time.April {
		t.Fatalf("expected Q2 to start in April, got %v", tw.Start.Month())
	}
}

func TestExtractTimeRangeNoMatch(t *testing.T) {
	if tw := extractTimeRange("what's the status", time.Now()); tw != nil {
		t.Fatalf("expected no time window, got %+v", tw)
	}
}

func TestExtractFiltersStatusAndType(t *testing.T) {
	filters := extractFilters("show me blocked tasks")
	if filters["status"] != string(models.StatusBlocked) {
		t.Fatalf("expected status=blocked, got %v", filters)
	}
	if filters["type"] != string(models.EntityTask) {
		t.Fatalf("expected type=task, got %v", filters)
	}
}

func TestExtractAggregationCount(t *testing.T) {
	if got := extractAggregation("how many features are in progress"); got != "count" {
		t.Fatalf("expected count, got %v", got)
	}
}
