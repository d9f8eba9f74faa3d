package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meetgraph/meetgraph/internal/errs"
	"github.com/meetgraph/meetgraph/internal/models"
)

// Store is the façade combining the relational and vector halves behind the
// single set of operations the core depends on (§4.2). Cross-store writes
// are best-effort: a relational success with a vector failure (or vice
// versa) is reported as an error and left to the caller to retry. Meeting,
// memory, vector, entity, and relationship writes are idempotent for a
// stable id; EntityState and StateTransition writes are plain inserts, so
// re-saving an already-stored id fails.
type Store struct {
	Rel    *Relational
	Vec    *Vector
	logger *slog.Logger
}

// New builds a Store from already-open relational and vector halves.
func New(rel *Relational, vec *Vector, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Rel: rel, Vec: vec, logger: logger}
}

// SaveMeeting persists a Meeting.
func (s *Store) SaveMeeting(ctx context.Context, m models.Meeting) error {
	return s.Rel.SaveMeeting(ctx, m)
}

// SaveMemories writes memories to the relational store and their vectors to
// the vector store. vectors must align index-for-index with memories.
func (s *Store) SaveMemories(ctx context.Context, memories []models.Memory, vectors [][]float32) error {
	if len(memories) != len(vectors) {
		return fmt.Errorf("%w: memories/vectors length mismatch: %d vs %d", errs.ErrInvalidInput, len(memories), len(vectors))
	}
	if err := s.Rel.SaveMemories(ctx, memories); err != nil {
		return err
	}
	for i, m := range memories {
		if err := s.Vec.SaveMemoryVector(ctx, m, vectors[i]); err != nil {
			s.logger.Warn("memory vector write failed after relational write succeeded; caller should retry",
				"memory_id", m.ID, "error", err)
			return err
		}
	}
	return nil
}

// SaveEntities upserts entities relationally.
func (s *Store) SaveEntities(ctx context.Context, entities []models.Entity) error {
	return s.Rel.SaveEntities(ctx, entities)
}

// SaveEntityStates appends EntityState rows.
func (s *Store) SaveEntityStates(ctx context.Context, states []models.EntityState) error {
	return s.Rel.SaveEntityStates(ctx, states)
}

// SaveTransitions appends StateTransition rows.
func (s *Store) SaveTransitions(ctx context.Context, transitions []models.StateTransition) error {
	return s.Rel.SaveTransitions(ctx, transitions)
}

// SaveRelationships upserts relationships, deduplicating active duplicates.
func (s *Store) SaveRelationships(ctx context.Context, rels []models.EntityRelationship) error {
	return s.Rel.SaveRelationships(ctx, rels)
}

// GetEntityByName looks up an entity by exact normalized-name equality.
func (s *Store) GetEntityByName(ctx context.Context, name string, entityType *models.EntityType) (*models.Entity, error) {
	return s.Rel.GetEntityByName(ctx, name, entityType)
}

// GetEntity fetches a single entity by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return s.Rel.GetEntity(ctx, id)
}

// GetEntitiesBatch fetches many entities by id.
func (s *Store) GetEntitiesBatch(ctx context.Context, ids []string) ([]models.Entity, error) {
	return s.Rel.GetEntitiesBatch(ctx, ids)
}

// GetAllEntities lists entities, optionally filtered and paginated.
func (s *Store) GetAllEntities(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]models.Entity, error) {
	return s.Rel.GetAllEntities(ctx, entityType, limit, offset)
}

// GetEntityCurrentState returns the latest EntityState for an entity.
func (s *Store) GetEntityCurrentState(ctx context.Context, entityID string) (*models.EntityState, error) {
	return s.Rel.GetEntityCurrentState(ctx, entityID)
}

// GetEntityTimeline returns an entity's StateTransitions joined with meeting
// context, newest first.
func (s *Store) GetEntityTimeline(ctx context.Context, entityID string, limit int) ([]TimelineEntry, error) {
	return s.Rel.GetEntityTimeline(ctx, entityID, limit)
}

// GetEntityRelationships returns relationships touching entityID with
// endpoint names resolved.
func (s *Store) GetEntityRelationships(ctx context.Context, entityID string, activeOnly bool) ([]ResolvedRelationship, error) {
	return s.Rel.GetEntityRelationships(ctx, entityID, activeOnly)
}

// SaveEntityEmbedding upserts an entity-name vector.
func (s *Store) SaveEntityEmbedding(ctx context.Context, entityID string, vec []float32) error {
	return s.Vec.SaveEntityEmbedding(ctx, entityID, vec)
}

// GetEntityEmbedding fetches a previously-saved entity-name vector.
func (s *Store) GetEntityEmbedding(ctx context.Context, entityID string) ([]float32, error) {
	return s.Vec.GetEntityEmbedding(ctx, entityID)
}

// SearchEntityEmbeddings returns the top-k nearest entity ids by cosine
// similarity over the entity_names collection.
func (s *Store) SearchEntityEmbeddings(ctx context.Context, vec []float32, k int) ([]ScoredID, error) {
	return s.Vec.SearchEntityEmbeddings(ctx, vec, k)
}

// SearchMemories runs a k-NN search over the memories collection and joins
// each hit back to its full Memory and a brief of its Meeting.
func (s *Store) SearchMemories(ctx context.Context, vec []float32, filters MemorySearchFilters, k int) ([]models.SearchResult, error) {
	hits, err := s.Vec.SearchMemories(ctx, vec, filters, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		memory, meeting, err := s.Rel.getMemoryWithMeeting(ctx, hit.ID)
		if err != nil {
			s.logger.Warn("search hit missing relational row", "memory_id", hit.ID, "error", err)
			continue
		}
		if memory == nil {
			continue
		}
		out = append(out, models.SearchResult{
			Memory:           *memory,
			Meeting:          *meeting,
			Score:            hit.Score,
			RelevantEntities: memory.EntityMentions,
		})
	}
	return out, nil
}

// Close releases both underlying stores.
func (s *Store) Close() error {
	relErr := s.Rel.Close()
	vecErr := s.Vec.Close()
	if relErr != nil {
		return relErr
	}
	return vecErr
}
