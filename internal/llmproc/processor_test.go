package llmproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetgraph/meetgraph/internal/models"
)

func TestDeterministicDiffDetectsChangedFields(t *testing.T) {
	old := models.State{"status": "planned", "owner": "Alice"}
	newState := models.State{"status": "in_progress", "owner": "Alice"}

	comp := deterministicDiff(old, newState)

	assert.True(t, comp.HasChanges)
	assert.Equal(t, []string{"status"}, comp.ChangedFields)
}

func TestDeterministicDiffNoChanges(t *testing.T) {
	state := models.State{"status": "planned"}
	comp := deterministicDiff(state, models.State{"status": "planned"})
	assert.False(t, comp.HasChanges)
	assert.Empty(t, comp.ChangedFields)
}

func TestDeterministicDiffDetectsNewKeys(t *testing.T) {
	old := models.State{"status": "planned"}
	newState := models.State{"status": "planned", "deadline": "2026-01-01"}
	comp := deterministicDiff(old, newState)
	assert.True(t, comp.HasChanges)
	assert.Equal(t, []string{"deadline"}, comp.ChangedFields)
}

func TestNewRejectsEmptyModelList(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"})
	require.Error(t, err)
}

func TestCompareStatesBatchServesFromMemoryCache(t *testing.T) {
	p, err := New(Config{BaseURL: "http://127.0.0.1:1", Models: []string{"test-model"}})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	pair := StatePair{EntityID: "e1", EntityName: "Project Alpha",
		Old: models.State{"status": "planned"}, New: models.State{"status": "in_progress"}}

	want := models.StateComparison{HasChanges: true, ChangedFields: []string{"status"}, Reason: "manually seeded"}
	p.memCache.Set(p.cacheKey(pair), mustJSON(want))

	got, err := p.CompareStatesBatch(context.Background(), []StatePair{pair})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Empty(t, stats.ModelCalls, "a cache hit must not reach the LLM client")
}

func TestCompareStatesBatchFallsBackWhenEveryModelFails(t *testing.T) {
	p, err := New(Config{BaseURL: "http://127.0.0.1:1", Models: []string{"unreachable-model"}, MaxRetries: 1})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	pair := StatePair{EntityID: "e1", EntityName: "Project Alpha",
		Old: models.State{"status": "planned"}, New: models.State{"status": "blocked"}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got, err := p.CompareStatesBatch(ctx, []StatePair{pair})
	require.NoError(t, err, "fallback path must not surface an error to the caller")
	require.Len(t, got, 1)
	assert.True(t, got[0].HasChanges)
	assert.Equal(t, []string{"status"}, got[0].ChangedFields)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.FallbackCount)
}
