package processor

import (
	"context"
	"testing"
	"time"

	"github.com/meetgraph/meetgraph/internal/llmproc"
	"github.com/meetgraph/meetgraph/internal/models"
)

type fakeStore struct {
	entities      map[string]models.Entity // keyed by normalized name|type
	states        map[string]models.EntityState
	savedStates   []models.EntityState
	savedTrans    []models.StateTransition
	savedRels     []models.EntityRelationship
	savedMemories []models.Memory
	embeddings    map[string][]float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:   make(map[string]models.Entity),
		states:     make(map[string]models.EntityState),
		embeddings: make(map[string][]float32),
	}
}

func (s *fakeStore) SaveMeeting(ctx context.Context, m models.Meeting) error { return nil }

func (s *fakeStore) SaveMemories(ctx context.Context, memories []models.Memory, vectors [][]float32) error {
	s.savedMemories = append(s.savedMemories, memories...)
	return nil
}

func (s *fakeStore) SaveEntities(ctx context.Context, entities []models.Entity) error {
	for _, e := range entities {
		s.entities[string(e.Type)+"|"+e.Name] = e
	}
	return nil
}

func (s *fakeStore) SaveEntityStates(ctx context.Context, states []models.EntityState) error {
	s.savedStates = append(s.savedStates, states...)
	for _, st := range states {
		s.states[st.EntityID] = st
	}
	return nil
}

func (s *fakeStore) SaveTransitions(ctx context.Context, transitions []models.StateTransition) error {
	s.savedTrans = append(s.savedTrans, transitions...)
	return nil
}

func (s *fakeStore) SaveRelationships(ctx context.Context, rels []models.EntityRelationship) error {
	s.savedRels = append(s.savedRels, rels...)
	return nil
}

func (s *fakeStore) GetEntityByName(ctx context.Context, name string, entityType *models.EntityType) (*models.Entity, error) {
	if entityType == nil {
		return nil, nil
	}
	if e, ok := s.entities[string(*entityType)+"|"+name]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) GetEntityCurrentState(ctx context.Context, entityID string) (*models.EntityState, error) {
	if st, ok := s.states[entityID]; ok {
		cp := st
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) SaveEntityEmbedding(ctx context.Context, entityID string, vec []float32) error {
	s.embeddings[entityID] = vec
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Encode(ctx context.Context, text string) []float32 { return []float32{1, 2, 3} }

type fakeResolver struct {
	matches map[string]models.EntityMatch
}

func (r fakeResolver) ResolveEntities(ctx context.Context, queryTerms []string, context string) (map[string]models.EntityMatch, error) {
	out := make(map[string]models.EntityMatch)
	for _, t := range queryTerms {
		if m, ok := r.matches[t]; ok {
			out[t] = m
		}
	}
	return out, nil
}

type fakeComparer struct {
	results []models.StateComparison
}

func (c fakeComparer) CompareStatesBatch(ctx context.Context, pairs []llmproc.StatePair) ([]models.StateComparison, error) {
	return c.results, nil
}

func newTestProcessor(store Store, resolver EntityResolver, comparer StateComparer) *Processor {
	return New(Config{
		Store:    store,
		Embedder: fakeEmbedder{},
		Resolver: resolver,
		Comparer: comparer,
	})
}

func TestProcessMeetingCreatesInitialStateForNewEntity(t *testing.T) {
	store := newFakeStore()
	p := newTestProcessor(store, fakeResolver{}, fakeComparer{})

	extraction := models.ExtractionResult{
		Entities: []models.ExtractedEntity{
			{Name: "API Migration", Type: models.EntityProject, CurrentState: models.State{"status": "planned"}},
		},
	}

	summary, err := p.ProcessMeeting(context.Background(), "m1", "Sync", time.Now(), "transcript", extraction, "llm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.EntitiesProcessed != 1 {
		t.Fatalf("expected 1 entity processed, got %d", summary.EntitiesProcessed)
	}
	if summary.TransitionsCreated != 1 {
		t.Fatalf("expected 1 initial transition, got %d", summary.TransitionsCreated)
	}
	if len(store.savedTrans) != 1 || store.savedTrans[0].Reason != "Initial state captured" {
		t.Fatalf("expected an initial-state transition, got %+v", store.savedTrans)
	}
	if len(store.embeddings) != 1 {
		t.Fatalf("expected the new entity to get an embedding saved, got %d", len(store.embeddings))
	}
}

func TestProcessMeetingBatchesTransitionForExistingEntity(t *testing.T) {
	store := newFakeStore()
	existingID := "entity-1"
	store.entities[string(models.EntityProject)+"|API Migration"] = models.Entity{
		ID: existingID, Type: models.EntityProject, Name: "API Migration",
	}
	store.states[existingID] = models.EntityState{
		ID: "state-0", EntityID: existingID, State: models.State{"status": "planned"},
	}

	comparer := fakeComparer{results: []models.StateComparison{
		{HasChanges: true, ChangedFields: []string{"status"}, Reason: "moved to in progress"},
	}}
	p := newTestProcessor(store, fakeResolver{}, comparer)

	extraction := models.ExtractionResult{
		Entities: []models.ExtractedEntity{
			{Name: "API Migration", Type: models.EntityProject, CurrentState: models.State{"status": "in_progress"}},
		},
	}

	summary, err := p.ProcessMeeting(context.Background(), "m2", "Sync", time.Now(), "transcript", extraction, "llm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TransitionsCreated != 1 {
		t.Fatalf("expected 1 batched transition, got %d", summary.TransitionsCreated)
	}
	if len(store.embeddings) != 0 {
		t.Fatalf("expected no new embedding for a pre-existing entity, got %d", len(store.embeddings))
	}
	if store.savedTrans[0].Reason != "moved to in progress" {
		t.Fatalf("expected the comparison's reason to be used absent an LLM reason refiner, got %q", store.savedTrans[0].Reason)
	}
}

func TestProcessMeetingSkipsUnchangedComparisons(t *testing.T) {
	store := newFakeStore()
	existingID := "entity-1"
	store.entities[string(models.EntityProject)+"|API Migration"] = models.Entity{
		ID: existingID, Type: models.EntityProject, Name: "API Migration",
	}
	store.states[existingID] = models.EntityState{
		ID: "state-0", EntityID: existingID, State: models.State{"status": "planned"},
	}

	comparer := fakeComparer{results: []models.StateComparison{{HasChanges: false}}}
	p := newTestProcessor(store, fakeResolver{}, comparer)

	extraction := models.ExtractionResult{
		Entities: []models.ExtractedEntity{
			{Name: "API Migration", Type: models.EntityProject, CurrentState: models.State{"status": "planned"}},
		},
	}

	summary, err := p.ProcessMeeting(context.Background(), "m3", "Sync", time.Now(), "transcript", extraction, "llm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TransitionsCreated != 0 {
		t.Fatalf("expected no transitions for has_changes=false, got %d", summary.TransitionsCreated)
	}
}

func TestProcessMeetingResolvesRelationshipsViaEntityMap(t *testing.T) {
	store := newFakeStore()
	p := newTestProcessor(store, fakeResolver{}, fakeComparer{})

	extraction := models.ExtractionResult{
		Entities: []models.ExtractedEntity{
			{Name: "Alice", Type: models.EntityPerson},
			{Name: "API Migration", Type: models.EntityProject},
		},
		Relationships: []models.ExtractedRelation{
			{FromName: "Alice", ToName: "API Migration", Type: "owns"},
		},
	}

	summary, err := p.ProcessMeeting(context.Background(), "m4", "Sync", time.Now(), "transcript", extraction, "llm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RelationshipsSaved != 1 {
		t.Fatalf("expected 1 relationship saved, got %d", summary.RelationshipsSaved)
	}
	if store.savedRels[0].Type != models.RelOwns {
		t.Fatalf("expected normalized relationship type owns, got %q", store.savedRels[0].Type)
	}
}

func TestProcessMeetingDropsRelationshipWithUnresolvedEndpoint(t *testing.T) {
	store := newFakeStore()
	p := newTestProcessor(store, fakeResolver{}, fakeComparer{})

	extraction := models.ExtractionResult{
		Entities: []models.ExtractedEntity{
			{Name: "Alice", Type: models.EntityPerson},
		},
		Relationships: []models.ExtractedRelation{
			{FromName: "Alice", ToName: "Unknown Project", Type: "owns"},
		},
	}

	summary, err := p.ProcessMeeting(context.Background(), "m5", "Sync", time.Now(), "transcript", extraction, "llm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RelationshipsSaved != 0 {
		t.Fatalf("expected the relationship to be dropped, got %d saved", summary.RelationshipsSaved)
	}
}

func TestProcessMeetingResolvesMemoryMentionsViaFallbackResolver(t *testing.T) {
	store := newFakeStore()
	resolver := fakeResolver{matches: map[string]models.EntityMatch{
		"API Migration": {QueryTerm: "API Migration", Entity: &models.Entity{ID: "ext-1"}, MatchType: models.MatchFuzzy},
	}}
	p := newTestProcessor(store, resolver, fakeComparer{})

	extraction := models.ExtractionResult{
		Memories: []models.Memory{
			{Content: "discussed rollout", EntityMentions: []string{"API Migration"}},
		},
	}

	_, err := p.ProcessMeeting(context.Background(), "m6", "Sync", time.Now(), "transcript", extraction, "llm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.savedMemories) != 1 {
		t.Fatalf("expected 1 memory saved, got %d", len(store.savedMemories))
	}
	if len(store.savedMemories[0].EntityMentions) != 1 || store.savedMemories[0].EntityMentions[0] != "ext-1" {
		t.Fatalf("expected mention resolved to entity id via resolver fallback, got %+v", store.savedMemories[0].EntityMentions)
	}
}

func TestIsEmptyStateAllNilOrBlank(t *testing.T) {
	if !isEmptyState(models.State{"status": "", "progress": nil, "blockers": []string{}}) {
		t.Fatalf("expected all-blank state to be empty")
	}
	if isEmptyState(models.State{"status": "planned"}) {
		t.Fatalf("expected a populated status to make the state non-empty")
	}
}

func TestFallbackReasonDescribesStatusChange(t *testing.T) {
	reason := fallbackReason(models.State{"status": "planned"}, models.State{"status": "in_progress"})
	if reason == "" || reason == "State updated" {
		t.Fatalf("expected a status-change description, got %q", reason)
	}
}

func TestFallbackReasonInitialState(t *testing.T) {
	reason := fallbackReason(nil, models.State{"status": "planned"})
	if reason != "Initial state captured: planned" {
		t.Fatalf("unexpected initial-state reason: %q", reason)
	}
}
