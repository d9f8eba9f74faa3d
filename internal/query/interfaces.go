package query

import (
	"context"

	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/storage"
)

// Store is the slice of the storage façade the query engine depends on.
type Store interface {
	GetAllEntities(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]models.Entity, error)
	GetEntityByName(ctx context.Context, name string, entityType *models.EntityType) (*models.Entity, error)
	GetEntityCurrentState(ctx context.Context, entityID string) (*models.EntityState, error)
	GetEntityTimeline(ctx context.Context, entityID string, limit int) ([]storage.TimelineEntry, error)
	GetEntityRelationships(ctx context.Context, entityID string, activeOnly bool) ([]storage.ResolvedRelationship, error)
	SearchMemories(ctx context.Context, vec []float32, filters storage.MemorySearchFilters, k int) ([]models.SearchResult, error)
}

// Embedder is the slice of the embedding engine the query engine depends on.
type Embedder interface {
	Encode(ctx context.Context, text string) []float32
}
