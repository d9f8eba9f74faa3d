package resolver

import (
	"context"
	"testing"

	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/storage"
)

type fakeStore struct {
	entities []models.Entity
}

func (f *fakeStore) GetAllEntities(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]models.Entity, error) {
	return f.entities, nil
}

func (f *fakeStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	for i := range f.entities {
		if f.entities[i].ID == id {
			return &f.entities[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SearchEntityEmbeddings(ctx context.Context, vec []float32, k int) ([]storage.ScoredID, error) {
	return nil, nil // forces the cascade past vector matching in these tests
}

type fakeEmbedder struct{}

func (fakeEmbedder) Encode(ctx context.Context, text string) []float32 { return nil }

func newTestResolver(entities []models.Entity, useLLM bool) *Resolver {
	store := &fakeStore{entities: entities}
	r := New(store, fakeEmbedder{}, nil, "", Config{UseLLM: useLLM})
	return r
}

func TestResolveEntitiesExactMatch(t *testing.T) {
	entities := []models.Entity{{ID: "e1", Name: "API Migration", Type: models.EntityProject}}
	r := newTestResolver(entities, false)
	t.Cleanup(r.Close)

	results, err := r.ResolveEntities(context.Background(), []string{"  api migration  "}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	match := results["  api migration  "]
	if match.MatchType != models.MatchExact || match.Confidence != 1.0 {
		t.Fatalf("expected exact match with confidence 1.0, got %+v", match)
	}
	if match.Entity == nil || match.Entity.ID != "e1" {
		t.Fatalf("expected resolved entity e1, got %+v", match.Entity)
	}
}

func TestResolveEntitiesFuzzyMatch(t *testing.T) {
	entities := []models.Entity{{ID: "e1", Name: "API Migration Project", Type: models.EntityProject}}
	r := newTestResolver(entities, false)
	t.Cleanup(r.Close)

	results, err := r.ResolveEntities(context.Background(), []string{"api migration"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	match := results["api migration"]
	if match.MatchType != models.MatchFuzzy {
		t.Fatalf("expected fuzzy match, got %+v", match)
	}
	if match.Confidence < 0.75 {
		t.Fatalf("expected confidence above the default fuzzy threshold, got %v", match.Confidence)
	}
}

func TestResolveEntitiesLLMDisabledMarksUnresolved(t *testing.T) {
	entities := []models.Entity{{ID: "e1", Name: "Quarterly Budget Review", Type: models.EntityProject}}
	r := newTestResolver(entities, false)
	t.Cleanup(r.Close)

	results, err := r.ResolveEntities(context.Background(), []string{"Totally Unrelated Term"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	match := results["Totally Unrelated Term"]
	if match.MatchType != models.MatchLLMDisabled {
		t.Fatalf("expected llm_disabled, got %+v", match)
	}
	if match.Entity != nil {
		t.Fatalf("expected no entity resolved, got %+v", match.Entity)
	}
}

func TestResolveEntitiesNoEntitiesReturnsNoEntities(t *testing.T) {
	r := newTestResolver(nil, false)
	t.Cleanup(r.Close)

	results, err := r.ResolveEntities(context.Background(), []string{"anything"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["anything"].MatchType != models.MatchNoEntities {
		t.Fatalf("expected no_entities, got %+v", results["anything"])
	}
}

func TestResolveEntitiesEmptyTermsReturnsEmptyMap(t *testing.T) {
	r := newTestResolver(nil, false)
	t.Cleanup(r.Close)

	results, err := r.ResolveEntities(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result map, got %+v", results)
	}
}
