package query

import (
	"context"
	"testing"
	"time"

	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/storage"
)

type fakeStore struct {
	entities      []models.Entity
	states        map[string]*models.EntityState
	timelines     map[string][]storage.TimelineEntry
	relationships map[string][]storage.ResolvedRelationship
	memories      []models.SearchResult
}

func (f *fakeStore) GetAllEntities(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]models.Entity, error) {
	return f.entities, nil
}

func (f *fakeStore) GetEntityByName(ctx context.Context, name string, entityType *models.EntityType) (*models.Entity, error) {
	for i := range f.entities {
		if f.entities[i].Name == name {
			return &f.entities[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetEntityCurrentState(ctx context.Context, entityID string) (*models.EntityState, error) {
	return f.states[entityID], nil
}

func (f *fakeStore) GetEntityTimeline(ctx context.Context, entityID string, limit int) ([]storage.TimelineEntry, error) {
	return f.timelines[entityID], nil
}

func (f *fakeStore) GetEntityRelationships(ctx context.Context, entityID string, activeOnly bool) ([]storage.ResolvedRelationship, error) {
	return f.relationships[entityID], nil
}

func (f *fakeStore) SearchMemories(ctx context.Context, vec []float32, filters storage.MemorySearchFilters, k int) ([]models.SearchResult, error) {
	return f.memories, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Encode(ctx context.Context, text string) []float32 { return []float32{0.1, 0.2} }

func newTestEngine(store *fakeStore) *Engine {
	return New(Config{Store: store, Embedder: fakeEmbedder{}})
}

func baseEntity(id, name string, typ models.EntityType) models.Entity {
	return models.Entity{ID: id, Name: name, NormalizedName: name, Type: typ}
}

func TestProcessQueryClassifiesTimelineIntentAndUsesFallback(t *testing.T) {
	entity := baseEntity("e1", "API Migration", models.EntityProject)
	store := &fakeStore{
		entities: []models.Entity{entity},
		timelines: map[string][]storage.TimelineEntry{
			"e1": {{
				Transition: models.StateTransition{
					ToState:       models.State{"status": "in_progress"},
					ChangedFields: []string{"status"},
					Reason:        "work started",
					Timestamp:     time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
				},
			}},
		},
	}
	e := newTestEngine(store)

	result, err := e.ProcessQuery(context.Background(), "Show me the timeline for API Migration")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != models.IntentTimeline {
		t.Fatalf("expected timeline intent, got %v", result.Intent)
	}
	if len(result.EntitiesInvolved) != 1 || result.EntitiesInvolved[0] != "API Migration" {
		t.Fatalf("expected API Migration in entities involved, got %v", result.EntitiesInvolved)
	}
	if len(result.FollowUps) == 0 {
		t.Fatalf("expected follow-up suggestions")
	}
}

func TestProcessQueryBlockerIntentFindsBlockedEntities(t *testing.T) {
	entity := baseEntity("e1", "Checkout Redesign", models.EntityFeature)
	store := &fakeStore{
		entities: []models.Entity{entity},
		states: map[string]*models.EntityState{
			"e1": {EntityID: "e1", State: models.State{"status": "blocked", "blockers": []string{"waiting on design review"}}},
		},
		timelines: map[string][]storage.TimelineEntry{
			"e1": {{
				Transition: models.StateTransition{
					ChangedFields: []string{"blockers"},
					Reason:        "design review requested",
					Timestamp:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
				},
			}},
		},
	}
	e := newTestEngine(store)

	result, err := e.ProcessQuery(context.Background(), "what is blocked right now")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != models.IntentBlocker {
		t.Fatalf("expected blocker intent, got %v", result.Intent)
	}
	blockers, ok := result.SupportingData.([]blockerEntry)
	if !ok || len(blockers) != 1 {
		t.Fatalf("expected one blocker entry, got %+v", result.SupportingData)
	}
	if blockers[0].Entity != "Checkout Redesign" {
		t.Fatalf("expected Checkout Redesign, got %+v", blockers[0])
	}
}

func TestProcessQuerySearchIntentReturnsMemoryHits(t *testing.T) {
	store := &fakeStore{
		memories: []models.SearchResult{
			{
				Memory:           models.Memory{Content: "We discussed the new onboarding flow"},
				Meeting:          models.MeetingBrief{Title: "Weekly Sync", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
				Score:            0.82,
				RelevantEntities: []string{"Onboarding"},
			},
		},
	}
	e := newTestEngine(store)

	result, err := e.ProcessQuery(context.Background(), "tell me about the onboarding flow xyzzy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != models.IntentSearch {
		t.Fatalf("expected default search intent, got %v", result.Intent)
	}
	hits, ok := result.SupportingData.([]searchHit)
	if !ok || len(hits) != 1 {
		t.Fatalf("expected one search hit, got %+v", result.SupportingData)
	}
}
