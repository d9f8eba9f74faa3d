package resolver

import (
	"context"

	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/storage"
)

// EntityStore is the slice of the storage façade the resolver depends on.
type EntityStore interface {
	GetAllEntities(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]models.Entity, error)
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	SearchEntityEmbeddings(ctx context.Context, vec []float32, k int) ([]storage.ScoredID, error)
}

// Embedder is the slice of the embedding engine the resolver depends on.
type Embedder interface {
	Encode(ctx context.Context, text string) []float32
}
