// Package resolver implements the multi-strategy entity resolution cascade:
// exact name match, vector similarity, fuzzy string match, and LLM batch
// resolution, backed by a thread-safe, single-flight-refreshed entity cache.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/meetgraph/meetgraph/internal/cache"
	"github.com/meetgraph/meetgraph/internal/llmproc"
	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/normalize"
)

const entityCacheKey = "all_entities"

// maxLLMCatalog bounds how many candidate entities are sent in one LLM
// resolution call, per the backpressure budget.
const maxLLMCatalog = 200

// Config configures a Resolver.
type Config struct {
	CacheTTL        time.Duration
	VectorThreshold float64
	FuzzyThreshold  float64
	UseLLM          bool
	MaxRetries      uint64
	Logger          *slog.Logger
}

const (
	vectorFloor = 0.50
	fuzzyFloor  = 0.50
)

// Resolver maps free-text entity mentions to canonical Entity records.
type Resolver struct {
	store    EntityStore
	embedder Embedder
	llm      *llmproc.Client
	model    string

	cfg Config

	entityCache *cache.TTLCache[[]models.Entity]
	sf          *cache.SingleFlight

	mu    sync.Mutex
	stats Stats
}

// Stats mirrors the Python resolver's resolution_stats counter set.
type Stats struct {
	ExactMatches  int64
	VectorMatches int64
	FuzzyMatches  int64
	LLMMatches    int64
	NoMatches     int64
	CacheHits     int64
	CacheMisses   int64
}

// New builds a Resolver.
func New(store EntityStore, embedder Embedder, llm *llmproc.Client, model string, cfg Config) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 300 * time.Second
	}
	if cfg.VectorThreshold <= 0 {
		cfg.VectorThreshold = 0.85
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = 0.75
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{
		store:       store,
		embedder:    embedder,
		llm:         llm,
		model:       model,
		cfg:         cfg,
		entityCache: cache.New[[]models.Entity](cfg.CacheTTL),
		sf:          cache.NewSingleFlight(),
	}
}

// Close releases the resolver's background cache-eviction goroutine.
func (r *Resolver) Close() {
	r.entityCache.Close()
}

// StatsSnapshot returns a copy of the resolver's lifetime counters.
func (r *Resolver) StatsSnapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// cachedEntities returns the full entity catalog, refreshed lazily on TTL
// expiry. Concurrent refreshes for the same key collapse into one fetch via
// single-flight, since a full table scan is expensive enough to dedupe.
func (r *Resolver) cachedEntities(ctx context.Context) ([]models.Entity, error) {
	if entities, ok := r.entityCache.Get(entityCacheKey); ok {
		r.mu.Lock()
		r.stats.CacheHits++
		r.mu.Unlock()
		return entities, nil
	}

	r.mu.Lock()
	r.stats.CacheMisses++
	r.mu.Unlock()

	result, err := r.sf.Do(entityCacheKey, func() (interface{}, error) {
		r.cfg.Logger.Info("refreshing entity cache")
		entities, err := r.store.GetAllEntities(ctx, nil, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("refresh entity cache: %w", err)
		}
		r.entityCache.Set(entityCacheKey, entities)
		r.cfg.Logger.Info("entity cache refreshed", "count", len(entities))
		return entities, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Entity), nil
}

// ResolveEntities resolves each query term to a canonical entity, running
// the exact → vector → fuzzy → LLM-batch cascade per term and batching the
// LLM step across every term that falls through the first three strategies.
func (r *Resolver) ResolveEntities(ctx context.Context, queryTerms []string, context_ string) (map[string]models.EntityMatch, error) {
	if len(queryTerms) == 0 {
		return map[string]models.EntityMatch{}, nil
	}

	entities, err := r.cachedEntities(ctx)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		out := make(map[string]models.EntityMatch, len(queryTerms))
		for _, term := range queryTerms {
			out[term] = models.EntityMatch{QueryTerm: term, Confidence: 0, MatchType: models.MatchNoEntities}
		}
		return out, nil
	}

	results := make(map[string]models.EntityMatch, len(queryTerms))
	var llmCandidates []string

	for _, term := range queryTerms {
		if match := r.tryExactMatch(term, entities); match != nil {
			results[term] = *match
			r.bump(&r.stats.ExactMatches)
			continue
		}

		if match := r.tryVectorMatch(ctx, term); match != nil && match.Confidence >= r.cfg.VectorThreshold {
			results[term] = *match
			r.bump(&r.stats.VectorMatches)
			continue
		}

		if match := r.tryFuzzyMatch(term, entities); match != nil && match.Confidence >= r.cfg.FuzzyThreshold {
			results[term] = *match
			r.bump(&r.stats.FuzzyMatches)
			continue
		}

		llmCandidates = append(llmCandidates, term)
	}

	if len(llmCandidates) == 0 {
		return results, nil
	}

	if !r.cfg.UseLLM {
		for _, term := range llmCandidates {
			results[term] = models.EntityMatch{QueryTerm: term, Confidence: 0, MatchType: models.MatchLLMDisabled}
			r.bump(&r.stats.NoMatches)
		}
		return results, nil
	}

	llmMatches, err := r.resolveWithLLM(ctx, llmCandidates, entities, context_)
	if err != nil {
		r.cfg.Logger.Error("llm entity resolution failed", "error", err)
		for _, term := range llmCandidates {
			results[term] = models.EntityMatch{QueryTerm: term, Confidence: 0, MatchType: models.MatchLLMError}
			r.bump(&r.stats.NoMatches)
		}
		return results, nil
	}
	for term, match := range llmMatches {
		results[term] = match
		if match.Entity != nil {
			r.bump(&r.stats.LLMMatches)
		} else {
			r.bump(&r.stats.NoMatches)
		}
	}

	return results, nil
}

func (r *Resolver) bump(counter *int64) {
	r.mu.Lock()
	*counter++
	r.mu.Unlock()
}

func (r *Resolver) tryExactMatch(term string, entities []models.Entity) *models.EntityMatch {
	normalized := normalize.Name(term)
	for i := range entities {
		if normalize.Name(entities[i].Name) == normalized {
			return &models.EntityMatch{QueryTerm: term, Entity: &entities[i], Confidence: 1.0, MatchType: models.MatchExact}
		}
	}
	return nil
}

func (r *Resolver) tryVectorMatch(ctx context.Context, term string) *models.EntityMatch {
	vec := r.embedder.Encode(ctx, term)
	hits, err := r.store.SearchEntityEmbeddings(ctx, vec, 1)
	if err != nil || len(hits) == 0 {
		if err != nil {
			r.cfg.Logger.Warn("vector matching failed", "term", term, "error", err)
		}
		return nil
	}
	best := hits[0]
	if best.Score <= vectorFloor {
		return nil
	}
	entity, err := r.store.GetEntity(ctx, best.ID)
	if err != nil || entity == nil {
		return nil
	}
	return &models.EntityMatch{
		QueryTerm: term, Entity: entity, Confidence: best.Score, MatchType: models.MatchVector,
		Metadata: map[string]interface{}{"similarity_score": best.Score},
	}
}

func (r *Resolver) tryFuzzyMatch(term string, entities []models.Entity) *models.EntityMatch {
	var best *models.Entity
	bestScore := 0.0
	for i := range entities {
		score := bestFuzzyScore(term, entities[i].Name)
		if score > bestScore {
			bestScore = score
			best = &entities[i]
		}
	}
	if best == nil || bestScore <= fuzzyFloor {
		return nil
	}
	return &models.EntityMatch{
		QueryTerm: term, Entity: best, Confidence: bestScore, MatchType: models.MatchFuzzy,
		Metadata: map[string]interface{}{"fuzzy_score": bestScore},
	}
}

type llmCatalogEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type llmResolution struct {
	QueryTerm  string  `json:"query_term"`
	EntityID   *string `json:"entity_id"`
	Confidence float64 `json:"confidence"`
}

type llmResolutionResponse struct {
	Resolutions []llmResolution `json:"resolutions"`
}

func (r *Resolver) resolveWithLLM(ctx context.Context, terms []string, entities []models.Entity, context_ string) (map[string]models.EntityMatch, error) {
	n := len(entities)
	if n > maxLLMCatalog {
		n = maxLLMCatalog
	}
	catalog := make([]llmCatalogEntry, n)
	byID := make(map[string]*models.Entity, n)
	for i := 0; i < n; i++ {
		desc, _ := entities[i].Attributes["description"].(string)
		if len(desc) > 200 {
			desc = desc[:200]
		}
		catalog[i] = llmCatalogEntry{ID: entities[i].ID, Name: entities[i].Name, Type: string(entities[i].Type), Description: desc}
		byID[entities[i].ID] = &entities[i]
	}

	if context_ == "" {
		context_ = "No additional context provided."
	}
	termsJSON, _ := json.Marshal(terms)
	catalogJSON, _ := json.Marshal(catalog)

	prompt := fmt.Sprintf(`You are an advanced entity resolution system. Match the following query terms to the most appropriate entities from the catalog, using semantic similarity, abbreviations, and context. Respond with strict JSON only: {"resolutions": [{"query_term": "...", "entity_id": "... or null", "confidence": 0.0}]}, one entry per query term.

Query Terms: %s
Context: %s

Available Entities:
%s`, string(termsJSON), context_, string(catalogJSON))

	var content string
	operation := func() error {
		resp, err := r.llm.Chat(ctx, llmproc.ChatRequest{
			Model:          r.model,
			Messages:       []llmproc.ChatMessage{{Role: "user", Content: prompt}},
			Temperature:    0.1,
			MaxTokens:      1500,
			ResponseFormat: map[string]any{"type": "json_object"},
		})
		if err != nil {
			return err
		}
		content = resp
		return nil
	}
	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = 10 * time.Second
	b := backoff.WithMaxRetries(eb, r.cfg.MaxRetries-1)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("llm resolution call failed: %w", err)
	}

	var parsed llmResolutionResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		out := make(map[string]models.EntityMatch, len(terms))
		for _, term := range terms {
			out[term] = models.EntityMatch{QueryTerm: term, Confidence: 0, MatchType: models.MatchLLMError}
		}
		return out, nil
	}

	out := make(map[string]models.EntityMatch, len(terms))
	for _, res := range parsed.Resolutions {
		if res.QueryTerm == "" {
			continue
		}
		var entity *models.Entity
		matchType := models.MatchLLMNoMatch
		if res.EntityID != nil {
			if e, ok := byID[*res.EntityID]; ok {
				entity = e
				matchType = models.MatchLLM
			}
		}
		out[res.QueryTerm] = models.EntityMatch{
			QueryTerm: res.QueryTerm, Entity: entity, Confidence: res.Confidence, MatchType: matchType,
			Metadata: map[string]interface{}{"llm_response": res},
		}
	}
	for _, term := range terms {
		if _, ok := out[term]; !ok {
			out[term] = models.EntityMatch{QueryTerm: term, Confidence: 0, MatchType: models.MatchLLMNoMatch}
		}
	}
	return out, nil
}
