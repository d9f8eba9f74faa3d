// Package query implements the natural-language BI query engine: intent
// classification, context assembly, intent-specific payload dispatch, LLM
// answer synthesis with a templated fallback, and follow-up suggestions.
//
// Grounded in original_source/src/query_engine_v2.py's
// ProductionQueryEngine.process_query, with intent classification
// generalized from the teacher's internal/agent/classifier.go
// RuleBasedClassifier.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/meetgraph/meetgraph/internal/llmproc"
	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/storage"
)

const (
	semanticSearchLimit = 20
	timelineLimit       = 50
)

// Config wires the query engine's dependencies.
type Config struct {
	Store      Store
	Embedder   Embedder
	LLM        *llmproc.Client
	Model      string
	MaxRetries uint64
	Logger     *slog.Logger
}

// Engine answers natural-language BI questions against the knowledge graph.
type Engine struct {
	store      Store
	embedder   Embedder
	llm        *llmproc.Client
	model      string
	maxRetries uint64
	logger     *slog.Logger
}

// New builds an Engine. LLM may be nil, in which case every answer is
// produced by the templated fallback.
func New(cfg Config) *Engine {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:      cfg.Store,
		embedder:   cfg.Embedder,
		llm:        cfg.LLM,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// queryContext is the assembled evidence a handler reasons over.
type queryContext struct {
	Query         string
	Intent        models.Intent
	Entities      []models.Entity
	Memories      []models.SearchResult
	Timelines     map[string][]storage.TimelineEntry
	Relationships map[string][]storage.ResolvedRelationship
	Filters       map[string]string
	TimeWindow    *models.TimeWindow
	Aggregation   string
}

// ProcessQuery is the query engine's single entry point: classify intent,
// assemble context, dispatch to the intent-specific handler, then attach
// follow-up suggestions.
func (e *Engine) ProcessQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	intent, _ := ClassifyIntent(query)

	qctx, err := e.buildContext(ctx, query, intent)
	if err != nil {
		return nil, err
	}

	var result *models.QueryResult
	switch intent {
	case models.IntentTimeline:
		result = e.handleTimeline(ctx, qctx)
	case models.IntentBlocker:
		result = e.handleBlocker(ctx, qctx)
	case models.IntentStatus:
		result = e.handleStatus(ctx, qctx)
	case models.IntentOwnership:
		result = e.handleOwnership(ctx, qctx)
	case models.IntentAnalytics:
		result = e.handleAnalytics(ctx, qctx)
	case models.IntentRelationship:
		result = e.handleRelationship(ctx, qctx)
	default:
		result = e.handleSearch(ctx, qctx)
	}

	result.FollowUps = followUpSuggestions(qctx)
	return result, nil
}

func (e *Engine) buildContext(ctx context.Context, query string, intent models.Intent) (*queryContext, error) {
	qctx := &queryContext{
		Query:         query,
		Intent:        intent,
		Timelines:     make(map[string][]storage.TimelineEntry),
		Relationships: make(map[string][]storage.ResolvedRelationship),
		Filters:       extractFilters(query),
		TimeWindow:    extractTimeRange(query, time.Now().UTC()),
		Aggregation:   extractAggregation(query),
	}

	names, err := e.extractQueryEntities(ctx, query)
	if err != nil {
		e.logger.Warn("entity extraction from query failed", "error", err)
	}
	for _, name := range names {
		entity, err := e.store.GetEntityByName(ctx, name, nil)
		if err != nil || entity == nil {
			continue
		}
		qctx.Entities = append(qctx.Entities, *entity)

		timeline, err := e.store.GetEntityTimeline(ctx, entity.ID, timelineLimit)
		if err == nil {
			qctx.Timelines[entity.ID] = timeline
		}
		rels, err := e.store.GetEntityRelationships(ctx, entity.ID, true)
		if err == nil {
			qctx.Relationships[entity.ID] = rels
		}
	}

	if query != "" {
		vec := e.embedder.Encode(ctx, query)
		hits, err := e.store.SearchMemories(ctx, vec, storage.MemorySearchFilters{}, semanticSearchLimit)
		if err != nil {
			e.logger.Warn("semantic memory search failed", "error", err)
		} else {
			qctx.Memories = hits
		}
	}

	return qctx, nil
}

// synthesize asks the LLM for a {"answer","confidence"} JSON object given a
// system prompt and a user prompt, falling back to fallbackAnswer on any
// failure — ported from query_engine_v2.py's per-intent
// _generate_*_response methods, generalized into one shared call since
// they're otherwise identical strict-JSON-mode calls with different prompts.
func (e *Engine) synthesize(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, fallbackAnswer string, fallbackConfidence float64) (string, float64) {
	if e.llm == nil || e.model == "" {
		return fallbackAnswer, fallbackConfidence
	}

	req := llmproc.ChatRequest{
		Model: e.model,
		Messages: []llmproc.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.3,
		MaxTokens:      maxTokens,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	var answer string
	var confidence float64
	op := func() error {
		content, err := e.llm.Chat(ctx, req)
		if err != nil {
			return err
		}
		var parsed struct {
			Answer     string  `json:"answer"`
			Confidence float64 `json:"confidence"`
		}
		if err := unmarshalJSONFences(content, &parsed); err != nil {
			return err
		}
		if parsed.Answer == "" {
			return errEmptyAnswer
		}
		answer = parsed.Answer
		confidence = parsed.Confidence
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = 10 * time.Second
	bo := backoff.WithMaxRetries(eb, e.maxRetries-1)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		e.logger.Warn("answer synthesis LLM call failed, using fallback", "error", err)
		return fallbackAnswer, fallbackConfidence
	}
	return answer, confidence
}
