package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/meetgraph/meetgraph/internal/models"
)

type timelineEntry struct {
	Entity  string      `json:"entity"`
	Type    string      `json:"type"`
	History []timelineItem `json:"timeline"`
}

type timelineItem struct {
	Date          string   `json:"date"`
	FromState     models.State `json:"from_state,omitempty"`
	ToState       models.State `json:"to_state"`
	ChangedFields []string `json:"changes"`
	Reason        string   `json:"reason"`
}

// handleTimeline implements query_engine_v2.py's _handle_timeline_query.
func (e *Engine) handleTimeline(ctx context.Context, qc *queryContext) *models.QueryResult {
	var timelines []timelineEntry
	var involved []string

	for _, ent := range qc.Entities {
		entry := timelineEntry{Entity: ent.Name, Type: string(ent.Type)}
		for _, t := range qc.Timelines[ent.ID] {
			entry.History = append(entry.History, timelineItem{
				Date:          t.Transition.Timestamp.Format(timeFormat),
				FromState:     t.Transition.FromState,
				ToState:       t.Transition.ToState,
				ChangedFields: t.Transition.ChangedFields,
				Reason:        t.Transition.Reason,
			})
		}
		timelines = append(timelines, entry)
		involved = append(involved, ent.Name)
	}

	fallback := fmt.Sprintf("Found timeline data for %d entit(ies).", len(timelines))
	answer, confidence := e.synthesize(ctx,
		"You are a helpful assistant that analyzes timeline data and provides comprehensive answers. Respond only with valid JSON matching {\"answer\": string, \"confidence\": number}.",
		fmt.Sprintf("Based on the timeline data below, answer this query: %s\n\nTimeline data: %+v\n\nDescribe the progression chronologically, highlight key state changes, and be specific about dates.", qc.Query, timelines),
		1000, fallback, 0.5)

	return &models.QueryResult{
		Answer: answer, Confidence: confidence, Intent: models.IntentTimeline,
		SupportingData: timelines, EntitiesInvolved: involved,
		Metadata: map[string]interface{}{"timeline_count": len(timelines)},
	}
}

type blockerEntry struct {
	Entity            string        `json:"entity"`
	Type              string        `json:"type"`
	CurrentBlockers   []string      `json:"current_blockers"`
	ResolutionHistory []timelineItem `json:"resolution_history"`
}

// handleBlocker implements query_engine_v2.py's _handle_blocker_query.
func (e *Engine) handleBlocker(ctx context.Context, qc *queryContext) *models.QueryResult {
	all, err := e.store.GetAllEntities(ctx, nil, 0, 0)
	if err != nil {
		e.logger.Warn("blocker query failed to list entities", "error", err)
	}

	var blockers []blockerEntry
	var involved []string

	for _, ent := range all {
		state, err := e.store.GetEntityCurrentState(ctx, ent.ID)
		if err != nil || state == nil || statusOf(state) != string(models.StatusBlocked) {
			continue
		}
		entry := blockerEntry{Entity: ent.Name, Type: string(ent.Type)}
		if raw, ok := state.State["blockers"]; ok {
			entry.CurrentBlockers = toStringSlice(raw)
		}

		timeline, err := e.store.GetEntityTimeline(ctx, ent.ID, timelineLimit)
		if err == nil {
			for _, t := range timeline {
				if !containsField(t.Transition.ChangedFields, "blockers") {
					continue
				}
				entry.ResolutionHistory = append(entry.ResolutionHistory, timelineItem{
					Date: t.Transition.Timestamp.Format(timeFormat), FromState: t.Transition.FromState,
					ToState: t.Transition.ToState, Reason: t.Transition.Reason,
				})
			}
		}
		blockers = append(blockers, entry)
		involved = append(involved, ent.Name)
	}

	fallback := fmt.Sprintf("Found %d currently blocked entit(ies).", len(blockers))
	answer, confidence := e.synthesize(ctx,
		"You are a helpful assistant that analyzes blocker data and provides comprehensive, actionable answers. Respond only with valid JSON matching {\"answer\": string, \"confidence\": number}.",
		fmt.Sprintf("Based on the blocker data below, answer this query: %s\n\nBlocker data: %+v\n\nList current blockers, show resolution history, and suggest resolution paths.", qc.Query, blockers),
		800, fallback, 0.5)

	return &models.QueryResult{
		Answer: answer, Confidence: confidence, Intent: models.IntentBlocker,
		SupportingData: blockers, EntitiesInvolved: involved,
		Metadata: map[string]interface{}{"blocker_count": len(blockers)},
	}
}

type statusEntry struct {
	Entity        string         `json:"entity"`
	Type          string         `json:"type"`
	CurrentState  models.State   `json:"current_state"`
	LastUpdated   string         `json:"last_updated"`
	RecentChanges []timelineItem `json:"recent_changes"`
}

// handleStatus implements query_engine_v2.py's _handle_status_query.
func (e *Engine) handleStatus(ctx context.Context, qc *queryContext) *models.QueryResult {
	var statuses []statusEntry
	var involved []string

	for _, ent := range qc.Entities {
		entry := statusEntry{Entity: ent.Name, Type: string(ent.Type)}
		if state, err := e.store.GetEntityCurrentState(ctx, ent.ID); err == nil && state != nil {
			entry.CurrentState = state.State
			entry.LastUpdated = state.Timestamp.Format(timeFormat)
		}

		timeline := qc.Timelines[ent.ID]
		sort.Slice(timeline, func(i, j int) bool {
			return timeline[i].Transition.Timestamp.After(timeline[j].Transition.Timestamp)
		})
		for i, t := range timeline {
			if i >= 3 {
				break
			}
			entry.RecentChanges = append(entry.RecentChanges, timelineItem{
				Date: t.Transition.Timestamp.Format(timeFormat), Reason: t.Transition.Reason,
				ChangedFields: t.Transition.ChangedFields,
			})
		}
		statuses = append(statuses, entry)
		involved = append(involved, ent.Name)
	}

	fallback := fmt.Sprintf("Status available for %d entit(ies).", len(statuses))
	answer, confidence := e.synthesize(ctx,
		"You are a helpful assistant that analyzes status data and provides concise, comprehensive answers. Respond only with valid JSON matching {\"answer\": string, \"confidence\": number}.",
		fmt.Sprintf("Based on the status data below, answer this query: %s\n\nStatus data: %+v\n\nProvide current status, highlight blockers or delays, and note recent changes.", qc.Query, statuses),
		600, fallback, 0.5)

	return &models.QueryResult{
		Answer: answer, Confidence: confidence, Intent: models.IntentStatus,
		SupportingData: statuses, EntitiesInvolved: involved,
		Metadata: map[string]interface{}{"entity_count": len(statuses)},
	}
}

type ownershipEntry struct {
	Entity           string          `json:"entity"`
	Type             string          `json:"type"`
	CurrentOwner     string          `json:"current_owner"`
	OwnershipHistory []ownershipItem `json:"ownership_history"`
}

type ownershipItem struct {
	Date string `json:"date"`
	From string `json:"from"`
	To   string `json:"to"`
	Reason string `json:"reason"`
}

// handleOwnership implements query_engine_v2.py's _handle_ownership_query.
func (e *Engine) handleOwnership(ctx context.Context, qc *queryContext) *models.QueryResult {
	entities := qc.Entities
	if len(entities) == 0 {
		all, err := e.store.GetAllEntities(ctx, nil, 0, 0)
		if err == nil {
			for _, ent := range all {
				if state, err := e.store.GetEntityCurrentState(ctx, ent.ID); err == nil && state != nil {
					if _, ok := state.State["assigned_to"]; ok {
						entities = append(entities, ent)
					}
				}
			}
		}
	}

	var ownership []ownershipEntry
	var involved []string

	for _, ent := range entities {
		entry := ownershipEntry{Entity: ent.Name, Type: string(ent.Type)}
		if state, err := e.store.GetEntityCurrentState(ctx, ent.ID); err == nil && state != nil {
			entry.CurrentOwner = toStr(state.State["assigned_to"])
		}
		if timeline, err := e.store.GetEntityTimeline(ctx, ent.ID, timelineLimit); err == nil {
			for _, t := range timeline {
				if !containsField(t.Transition.ChangedFields, "assigned_to") {
					continue
				}
				var from string
				if t.Transition.FromState != nil {
					from = toStr(t.Transition.FromState["assigned_to"])
				}
				entry.OwnershipHistory = append(entry.OwnershipHistory, ownershipItem{
					Date: t.Transition.Timestamp.Format(timeFormat), From: from,
					To: toStr(t.Transition.ToState["assigned_to"]), Reason: t.Transition.Reason,
				})
			}
		}
		ownership = append(ownership, entry)
		involved = append(involved, ent.Name)
	}

	fallback := fmt.Sprintf("Ownership information available for %d entit(ies).", len(ownership))
	answer, confidence := e.synthesize(ctx,
		"You are a helpful assistant that analyzes ownership data and provides comprehensive answers. Respond only with valid JSON matching {\"answer\": string, \"confidence\": number}.",
		fmt.Sprintf("Based on the ownership data below, answer this query: %s\n\nOwnership data: %+v", qc.Query, ownership),
		600, fallback, 0.5)

	return &models.QueryResult{
		Answer: answer, Confidence: confidence, Intent: models.IntentOwnership,
		SupportingData: ownership, EntitiesInvolved: involved,
		Metadata: map[string]interface{}{"ownership_count": len(ownership)},
	}
}

// handleAnalytics implements a trimmed _handle_analytics_query /
// _calculate_counts: entity counts by type/status plus blocked/completed/
// in-progress totals. Velocity and cycle-time metrics from the original are
// judged out of scope for a first cut and are not ported.
func (e *Engine) handleAnalytics(ctx context.Context, qc *queryContext) *models.QueryResult {
	entities, err := e.store.GetAllEntities(ctx, nil, 0, 0)
	if err != nil {
		e.logger.Warn("analytics query failed to list entities", "error", err)
	}

	byType := make(map[string]int)
	byStatus := make(map[string]int)
	var blocked, completed, inProgress int

	for _, ent := range entities {
		if len(qc.Filters) > 0 {
			if want, ok := qc.Filters["type"]; ok && want != string(ent.Type) {
				continue
			}
		}
		byType[string(ent.Type)]++
		state, err := e.store.GetEntityCurrentState(ctx, ent.ID)
		if err != nil || state == nil {
			continue
		}
		status := statusOf(state)
		if status == "" {
			status = "unknown"
		}
		byStatus[status]++
		switch status {
		case string(models.StatusBlocked):
			blocked++
		case string(models.StatusCompleted):
			completed++
		case string(models.StatusInProgress):
			inProgress++
		}
	}

	analytics := map[string]interface{}{
		"total_entities":     len(entities),
		"by_type":            byType,
		"by_status":          byStatus,
		"blocked_count":       blocked,
		"completed_count":     completed,
		"in_progress_count":   inProgress,
	}

	fallback := fmt.Sprintf("Tracking %d entities: %d blocked, %d completed, %d in progress.", len(entities), blocked, completed, inProgress)
	answer, confidence := e.synthesize(ctx,
		"You are a helpful assistant that analyzes metrics and provides comprehensive, quantitative answers. Respond only with valid JSON matching {\"answer\": string, \"confidence\": number}.",
		fmt.Sprintf("Based on the analytics data below, answer this query: %s\n\nAnalytics data: %+v", qc.Query, analytics),
		700, fallback, 0.6)

	return &models.QueryResult{
		Answer: answer, Confidence: confidence, Intent: models.IntentAnalytics,
		SupportingData: analytics, Metadata: analytics,
	}
}

type relationshipEntry struct {
	Entity        string                         `json:"entity"`
	Type          string                         `json:"type"`
	Relationships map[string][]relationshipLink `json:"relationships"`
}

type relationshipLink struct {
	Entity string `json:"entity"`
	Type   string `json:"type"`
	Since  string `json:"since"`
}

// handleRelationship implements query_engine_v2.py's
// _handle_relationship_query, grouping by the canonical relationship
// vocabulary instead of the original's fixed four-key subset.
func (e *Engine) handleRelationship(ctx context.Context, qc *queryContext) *models.QueryResult {
	var out []relationshipEntry
	var involved []string
	total := 0

	for _, ent := range qc.Entities {
		grouped := make(map[string][]relationshipLink)
		for _, rr := range qc.Relationships[ent.ID] {
			other := rr.ToName
			if rr.Relationship.ToEntityID == ent.ID {
				other = rr.FromName
			}
			key := string(rr.Relationship.Type)
			grouped[key] = append(grouped[key], relationshipLink{
				Entity: other, Since: rr.Relationship.Timestamp.Format(timeFormat),
			})
			total++
		}
		out = append(out, relationshipEntry{Entity: ent.Name, Type: string(ent.Type), Relationships: grouped})
		involved = append(involved, ent.Name)
	}

	fallback := fmt.Sprintf("Found %d relationship(s) across %d entit(ies).", total, len(out))
	answer, confidence := e.synthesize(ctx,
		"You are a helpful assistant that analyzes entity relationships and dependencies. Respond only with valid JSON matching {\"answer\": string, \"confidence\": number}.",
		fmt.Sprintf("Based on the relationship data below, answer this query: %s\n\nRelationship data: %+v", qc.Query, out),
		700, fallback, 0.5)

	return &models.QueryResult{
		Answer: answer, Confidence: confidence, Intent: models.IntentRelationship,
		SupportingData: out, EntitiesInvolved: involved,
		Metadata: map[string]interface{}{"relationship_count": total},
	}
}

type searchHit struct {
	Content  string   `json:"content"`
	Meeting  string   `json:"meeting"`
	Date     string   `json:"date"`
	Score    float64  `json:"score"`
	Entities []string `json:"entities"`
}

// handleSearch implements query_engine_v2.py's _handle_search_query.
func (e *Engine) handleSearch(ctx context.Context, qc *queryContext) *models.QueryResult {
	limit := 10
	if len(qc.Memories) < limit {
		limit = len(qc.Memories)
	}

	var hits []searchHit
	var involved []string
	for _, r := range qc.Memories[:limit] {
		hits = append(hits, searchHit{
			Content: r.Memory.Content, Meeting: r.Meeting.Title,
			Date: r.Meeting.Date.Format(timeFormat), Score: r.Score, Entities: r.RelevantEntities,
		})
		involved = append(involved, r.RelevantEntities...)
	}

	fallback := fmt.Sprintf("Found %d relevant mention(s).", len(hits))
	answer, confidence := e.synthesize(ctx,
		"You are a helpful assistant that summarizes search results from meeting transcripts. Respond only with valid JSON matching {\"answer\": string, \"confidence\": number}.",
		fmt.Sprintf("Based on the search results below, answer this query: %s\n\nResults: %+v", qc.Query, hits),
		800, fallback, 0.5)

	return &models.QueryResult{
		Answer: answer, Confidence: confidence, Intent: models.IntentSearch,
		SupportingData: hits, EntitiesInvolved: dedupe(involved),
		Metadata: map[string]interface{}{"result_count": len(hits)},
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func containsField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

func toStringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			out = append(out, fmt.Sprintf("%v", x))
		}
		return out
	default:
		return nil
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
