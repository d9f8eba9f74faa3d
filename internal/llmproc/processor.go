package llmproc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/meetgraph/meetgraph/internal/cache"
	"github.com/meetgraph/meetgraph/internal/errs"
	"github.com/meetgraph/meetgraph/internal/models"
)

// StatePair is one (old, new) state comparison request.
type StatePair struct {
	EntityID string
	EntityName string
	Old      models.State
	New      models.State
}

// Stats tracks the processor's lifetime counters, useful for tuning cache
// TTLs.
type Stats struct {
	CacheHits     int64
	CacheMisses   int64
	FallbackCount int64
	ModelCalls    map[string]int64
}

// Processor is the batching, caching, fallback-guarded LLM gateway used for
// batched state comparison. The resolver, extractor, and query engine call
// the raw Client directly and do not go through this cache or rate limiter.
type Processor struct {
	client   *Client
	models   []string // primary model first, then fallbacks in order
	memCache *cache.TTLCache[string]
	disk     *persistentCache
	limiter  *rate.Limiter
	cacheTTL time.Duration
	maxRetries uint64
	logger   *slog.Logger

	mu         sync.Mutex
	modelCalls map[string]int64
	hits       int64
	misses     int64
	fallbacks  int64
}

// Config configures a Processor.
type Config struct {
	BaseURL         string
	APIKey          string
	Models          []string // [0] is primary, rest are fallbacks
	Timeout         time.Duration
	CacheTTL        time.Duration
	BadgerPath      string // empty disables the persistent disk cache
	RequestsPerSec  float64
	Burst           int
	MaxRetries      uint64
	Logger          *slog.Logger
}

// New builds a Processor. The disk cache is optional: when BadgerPath is
// empty, only the in-memory TTL cache is used.
func New(cfg Config) (*Processor, error) {
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("%w: at least one model is required", errs.ErrInvalidInput)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 3600 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	var disk *persistentCache
	if cfg.BadgerPath != "" {
		d, err := openPersistentCache(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		disk = d
	}

	return &Processor{
		client:     NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout),
		models:     cfg.Models,
		memCache:   cache.New[string](ttl),
		disk:       disk,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		cacheTTL:   ttl,
		maxRetries: maxRetries,
		logger:     logger,
		modelCalls: make(map[string]int64),
	}, nil
}

// Close releases the disk cache and in-memory cleanup goroutine.
func (p *Processor) Close() error {
	p.memCache.Close()
	if p.disk != nil {
		return p.disk.close()
	}
	return nil
}

// Stats returns a snapshot of lifetime counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	calls := make(map[string]int64, len(p.modelCalls))
	for k, v := range p.modelCalls {
		calls[k] = v
	}
	return Stats{
		CacheHits:     p.hits,
		CacheMisses:   p.misses,
		FallbackCount: p.fallbacks,
		ModelCalls:    calls,
	}
}

// CompareStatesBatch compares each (old,new) pair in one LLM call when
// possible, falling back to a deterministic field-wise diff for any pair
// whose LLM comparison ultimately fails on every model. Results are returned
// in the same order as pairs.
func (p *Processor) CompareStatesBatch(ctx context.Context, pairs []StatePair) ([]models.StateComparison, error) {
	out := make([]models.StateComparison, len(pairs))
	pending := make([]int, 0, len(pairs))
	pendingPairs := make([]StatePair, 0, len(pairs))

	for i, pair := range pairs {
		key := p.cacheKey(pair)
		if cached, ok := p.memCache.Get(key); ok {
			atomic.AddInt64(&p.hits, 1)
			var comp models.StateComparison
			if err := json.Unmarshal([]byte(cached), &comp); err == nil {
				out[i] = comp
				continue
			}
		}
		if p.disk != nil {
			var comp models.StateComparison
			if found, err := p.disk.get(key, &comp); err == nil && found {
				atomic.AddInt64(&p.hits, 1)
				out[i] = comp
				p.memCache.Set(key, mustJSON(comp))
				continue
			}
		}
		atomic.AddInt64(&p.misses, 1)
		pending = append(pending, i)
		pendingPairs = append(pendingPairs, pair)
	}

	if len(pendingPairs) == 0 {
		return out, nil
	}

	comparisons, err := p.compareViaLLM(ctx, pendingPairs)
	if err != nil {
		p.logger.Warn("llm batch comparison failed on every model; falling back to deterministic diff", "error", err, "pairs", len(pendingPairs))
		atomic.AddInt64(&p.fallbacks, int64(len(pendingPairs)))
		comparisons = make([]models.StateComparison, len(pendingPairs))
		for i, pair := range pendingPairs {
			comparisons[i] = deterministicDiff(pair.Old, pair.New)
		}
	}

	for i, idx := range pending {
		out[idx] = comparisons[i]
		key := p.cacheKey(pendingPairs[i])
		p.memCache.Set(key, mustJSON(comparisons[i]))
		if p.disk != nil {
			if err := p.disk.set(key, comparisons[i], p.cacheTTL); err != nil {
				p.logger.Warn("failed writing llm result to disk cache", "error", err)
			}
		}
	}
	return out, nil
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (p *Processor) cacheKey(pair StatePair) string {
	return cache.MakeKey("state_compare", pair.Old, pair.New)
}

// compareViaLLM tries each configured model in order until one returns a
// parseable batch response, retrying each model with bounded exponential
// backoff via backoff/v4.
func (p *Processor) compareViaLLM(ctx context.Context, pairs []StatePair) ([]models.StateComparison, error) {
	prompt, err := buildComparePrompt(pairs)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, model := range p.models {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		var content string
		operation := func() error {
			resp, callErr := p.client.Chat(ctx, ChatRequest{
				Model:    model,
				Messages: []ChatMessage{{Role: "user", Content: prompt}},
				Temperature: 0,
				ResponseFormat: map[string]any{"type": "json_object"},
			})
			if callErr != nil {
				return callErr
			}
			content = resp
			return nil
		}

		eb := backoff.NewExponentialBackOff()
		eb.MaxInterval = 10 * time.Second
		b := backoff.WithMaxRetries(eb, p.maxRetries-1)
		retryErr := backoff.Retry(operation, backoff.WithContext(b, ctx))

		p.mu.Lock()
		p.modelCalls[model]++
		p.mu.Unlock()

		if retryErr != nil {
			lastErr = fmt.Errorf("model %s: %w", model, retryErr)
			p.logger.Warn("llm model exhausted retries, trying next fallback", "model", model, "error", retryErr)
			continue
		}

		comparisons, parseErr := parseCompareResponse(content, len(pairs))
		if parseErr != nil {
			lastErr = fmt.Errorf("model %s: %w", model, parseErr)
			p.logger.Warn("llm model returned unparseable batch response, trying next fallback", "model", model, "error", parseErr)
			continue
		}
		return comparisons, nil
	}

	return nil, fmt.Errorf("%w: %v", errs.ErrLLMUnavailable, lastErr)
}

type compareResponseItem struct {
	Index         int      `json:"index"`
	HasChanges    bool     `json:"has_changes"`
	ChangedFields []string `json:"changed_fields"`
	Reason        string   `json:"reason"`
}

type compareResponse struct {
	Comparisons []compareResponseItem `json:"comparisons"`
}

func buildComparePrompt(pairs []StatePair) (string, error) {
	type promptPair struct {
		Index int          `json:"index"`
		Name  string       `json:"entity_name"`
		Old   models.State `json:"old_state"`
		New   models.State `json:"new_state"`
	}
	items := make([]promptPair, len(pairs))
	for i, pair := range pairs {
		items[i] = promptPair{Index: i, Name: pair.EntityName, Old: pair.Old, New: pair.New}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal compare batch: %w", err)
	}
	return fmt.Sprintf(`Compare each entity's old_state to its new_state below. For each item, decide whether the state materially changed (ignore purely cosmetic rewording). Respond with strict JSON: {"comparisons": [{"index": 0, "has_changes": true, "changed_fields": ["status"], "reason": "short reason"}, ...]}, one entry per input item, in the same order.

Items:
%s`, string(payload)), nil
}

func parseCompareResponse(content string, expected int) ([]models.StateComparison, error) {
	var parsed compareResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse compare response: %w", err)
	}
	if len(parsed.Comparisons) != expected {
		return nil, fmt.Errorf("expected %d comparisons, got %d", expected, len(parsed.Comparisons))
	}
	byIndex := make(map[int]compareResponseItem, len(parsed.Comparisons))
	for _, item := range parsed.Comparisons {
		byIndex[item.Index] = item
	}
	out := make([]models.StateComparison, expected)
	for i := 0; i < expected; i++ {
		item, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("missing comparison for index %d", i)
		}
		out[i] = models.StateComparison{HasChanges: item.HasChanges, ChangedFields: item.ChangedFields, Reason: item.Reason}
	}
	return out, nil
}

// deterministicDiff is the final fallback when every configured model fails:
// a plain field-wise comparison with no semantic reasoning.
func deterministicDiff(old, new_ models.State) models.StateComparison {
	changed := make([]string, 0)
	seen := make(map[string]bool)
	for k := range old {
		seen[k] = true
	}
	for k := range new_ {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reflect.DeepEqual(old[k], new_[k]) {
			changed = append(changed, k)
		}
	}
	reason := "no change detected"
	if len(changed) > 0 {
		reason = "deterministic diff detected field changes (llm unavailable)"
	}
	return models.StateComparison{HasChanges: len(changed) > 0, ChangedFields: changed, Reason: reason}
}
