package query

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/normalize"
)

var lastOrPastDaysPattern = regexp.MustCompile(`(?i)(?:last|past) (\d+) days?`)
var quarterPattern = regexp.MustCompile(`(?i)Q(\d)\s*(\d{4})?`)

// extractQueryEntities scans every known entity and returns the names that
// literally appear (by display name or normalized name) in the query text,
// ported from query_engine_v2.py's _extract_query_entities.
func (e *Engine) extractQueryEntities(ctx context.Context, query string) ([]string, error) {
	all, err := e.store.GetAllEntities(ctx, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(query)
	var names []string
	for _, ent := range all {
		if strings.Contains(lower, strings.ToLower(ent.Name)) || strings.Contains(lower, ent.NormalizedName) {
			names = append(names, ent.Name)
		}
	}
	return names, nil
}

// extractTimeRange parses a handful of relative/absolute date phrases out
// of the query, ported from query_engine_v2.py's _extract_time_range.
func extractTimeRange(query string, now time.Time) *models.TimeWindow {
	lower := strings.ToLower(query)

	dayStart := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	dayEnd := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	}

	switch {
	case strings.Contains(lower, "today"):
		return &models.TimeWindow{Start: dayStart(now), End: now}
	case strings.Contains(lower, "yesterday"):
		y := now.AddDate(0, 0, -1)
		return &models.TimeWindow{Start: dayStart(y), End: dayEnd(y)}
	case strings.Contains(lower, "this week"):
		start := now.AddDate(0, 0, -int(now.Weekday()))
		return &models.TimeWindow{Start: dayStart(start), End: now}
	case strings.Contains(lower, "last week"):
		start := now.AddDate(0, 0, -int(now.Weekday())-7)
		end := start.AddDate(0, 0, 6)
		return &models.TimeWindow{Start: dayStart(start), End: dayEnd(end)}
	}

	if m := lastOrPastDaysPattern.FindStringSubmatch(lower); m != nil {
		days, _ := strconv.Atoi(m[1])
		return &models.TimeWindow{Start: now.AddDate(0, 0, -days), End: now}
	}

	if m := quarterPattern.FindStringSubmatch(query); m != nil {
		quarter, _ := strconv.Atoi(m[1])
		year := now.Year()
		if m[2] != "" {
			year, _ = strconv.Atoi(m[2])
		}
		if quarter >= 1 && quarter <= 4 {
			starts := map[int]time.Time{
				1: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
				2: time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC),
				3: time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC),
				4: time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC),
			}
			start := starts[quarter]
			var end time.Time
			if quarter < 4 {
				end = starts[quarter+1].AddDate(0, 0, -1)
			} else {
				end = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
			}
			return &models.TimeWindow{Start: start, End: end}
		}
	}

	return nil
}

// extractFilters pulls a status/type filter pair out of the query text,
// ported from query_engine_v2.py's _extract_query_filters.
func extractFilters(query string) map[string]string {
	filters := make(map[string]string)
	lower := strings.ToLower(query)

	switch {
	case strings.Contains(lower, "in progress"):
		filters["status"] = string(models.StatusInProgress)
	case strings.Contains(lower, "blocked"):
		filters["status"] = string(models.StatusBlocked)
	case strings.Contains(lower, "completed"):
		filters["status"] = string(models.StatusCompleted)
	case strings.Contains(lower, "planned"):
		filters["status"] = string(models.StatusPlanned)
	}

	switch {
	case strings.Contains(lower, "project"):
		filters["type"] = string(models.EntityProject)
	case strings.Contains(lower, "feature"):
		filters["type"] = string(models.EntityFeature)
	case strings.Contains(lower, "task"):
		filters["type"] = string(models.EntityTask)
	}

	return filters
}

// extractAggregation classifies the requested aggregation kind, ported
// from query_engine_v2.py's _extract_aggregation_type.
func extractAggregation(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "count") || strings.Contains(lower, "how many"):
		return "count"
	case strings.Contains(lower, "average") || strings.Contains(lower, "avg"):
		return "average"
	case strings.Contains(lower, "sum") || strings.Contains(lower, "total"):
		return "sum"
	case strings.Contains(lower, "group by"):
		return "group"
	default:
		return ""
	}
}

// statusOf returns the normalized "status" field of state, or "" when state
// is nil or has no string status; the blocker/analytics handlers use it to
// filter entities by state.
func statusOf(state *models.EntityState) string {
	if state == nil {
		return ""
	}
	v, ok := state.State["status"]
	if !ok {
		return ""
	}
	return normalize.Status(toStr(v))
}

func toStr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
