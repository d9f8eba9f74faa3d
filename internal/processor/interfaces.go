package processor

import (
	"context"

	"github.com/meetgraph/meetgraph/internal/llmproc"
	"github.com/meetgraph/meetgraph/internal/models"
)

// Store is the slice of the storage façade the meeting processor depends on.
type Store interface {
	SaveMeeting(ctx context.Context, m models.Meeting) error
	SaveMemories(ctx context.Context, memories []models.Memory, vectors [][]float32) error
	SaveEntities(ctx context.Context, entities []models.Entity) error
	SaveEntityStates(ctx context.Context, states []models.EntityState) error
	SaveTransitions(ctx context.Context, transitions []models.StateTransition) error
	SaveRelationships(ctx context.Context, rels []models.EntityRelationship) error
	GetEntityByName(ctx context.Context, name string, entityType *models.EntityType) (*models.Entity, error)
	GetEntityCurrentState(ctx context.Context, entityID string) (*models.EntityState, error)
	SaveEntityEmbedding(ctx context.Context, entityID string, vec []float32) error
}

// Embedder is the slice of the embedding engine the processor depends on.
type Embedder interface {
	Encode(ctx context.Context, text string) []float32
}

// EntityResolver is the slice of the resolver the processor falls back to
// when a relationship or memory mention references a name it didn't itself
// just create.
type EntityResolver interface {
	ResolveEntities(ctx context.Context, queryTerms []string, context string) (map[string]models.EntityMatch, error)
}

// StateComparer is the slice of the LLM processor used to batch-compare
// prior and current entity states.
type StateComparer interface {
	CompareStatesBatch(ctx context.Context, pairs []llmproc.StatePair) ([]models.StateComparison, error)
}
