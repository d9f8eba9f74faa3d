package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"unsafe"

	"github.com/go-redis/redis/v8"

	"github.com/meetgraph/meetgraph/internal/errs"
	"github.com/meetgraph/meetgraph/internal/models"
)

// Vector wraps the Redis+RediSearch-backed half of the Store, generalized
// from the episodic memory store's single-collection pattern into the two
// named collections the spec requires: memories and entity_names.
type Vector struct {
	client             *redis.Client
	dimensions         int
	memoriesIndex      string
	memoriesPrefix     string
	entitiesIndex      string
	entitiesPrefix     string
	logger             *slog.Logger
}

// VectorConfig configures the Redis connection and collection names.
type VectorConfig struct {
	Addr                string
	Password            string
	DB                  int
	Dimensions          int
	MemoriesCollection  string
	EntitiesCollection  string
}

// OpenVector connects to Redis and ensures both RediSearch indexes exist.
func OpenVector(ctx context.Context, cfg VectorConfig, logger *slog.Logger) (*Vector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: connect redis: %v", errs.ErrPersistenceFailed, err)
	}

	v := &Vector{
		client:         client,
		dimensions:     cfg.Dimensions,
		memoriesIndex:  "mg:" + cfg.MemoriesCollection + ":idx",
		memoriesPrefix: "mg:mem:",
		entitiesIndex:  "mg:" + cfg.EntitiesCollection + ":idx",
		entitiesPrefix: "mg:ent:",
		logger:         logger,
	}
	if err := v.createIndex(ctx, v.memoriesIndex, v.memoriesPrefix, true); err != nil {
		return nil, err
	}
	if err := v.createIndex(ctx, v.entitiesIndex, v.entitiesPrefix, false); err != nil {
		return nil, err
	}
	return v, nil
}

// createIndex creates a RediSearch FLAT cosine index over a hash prefix,
// grounded directly in the episodic store's FT.CREATE invocation. withPayload
// adds the extra TAG fields the memories collection's filters need.
func (v *Vector) createIndex(ctx context.Context, index, prefix string, withPayload bool) error {
	if _, err := v.client.Do(ctx, "FT.INFO", index).Result(); err == nil {
		return nil
	}

	args := []interface{}{
		"FT.CREATE", index,
		"ON", "HASH",
		"PREFIX", "1", prefix,
		"SCHEMA",
		"embedding", "VECTOR", "FLAT", "6", "DIM", v.dimensions, "DISTANCE_METRIC", "COSINE", "TYPE", "FLOAT32",
	}
	if withPayload {
		args = append(args, "meeting_id", "TAG", "entity_mentions", "TAG")
	}
	if err := v.client.Do(ctx, args...).Err(); err != nil {
		return fmt.Errorf("%w: create index %s: %v", errs.ErrPersistenceFailed, index, err)
	}
	return nil
}

func serializeEmbedding(embedding []float32) []byte {
	out := make([]byte, len(embedding)*4)
	for i, val := range embedding {
		bits := *(*uint32)(unsafe.Pointer(&val))
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

// SaveMemoryVector upserts a memory's embedding and search payload.
func (v *Vector) SaveMemoryVector(ctx context.Context, memory models.Memory, vec []float32) error {
	metadata, _ := json.Marshal(memory.Metadata)
	mentions, _ := json.Marshal(memory.EntityMentions)
	fields := map[string]interface{}{
		"embedding":       serializeEmbedding(vec),
		"content":         memory.Content,
		"meeting_id":      memory.MeetingID,
		"speaker":         memory.Speaker,
		"metadata":        string(metadata),
		"entity_mentions": string(mentions),
	}
	if memory.Timestamp != nil {
		fields["timestamp"] = memory.Timestamp.Unix()
	}
	key := v.memoriesPrefix + memory.ID
	if err := v.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("%w: save memory vector %s: %v", errs.ErrPersistenceFailed, memory.ID, err)
	}
	return nil
}

// SaveEntityEmbedding upserts an entity-name embedding keyed by entity id.
func (v *Vector) SaveEntityEmbedding(ctx context.Context, entityID string, vec []float32) error {
	key := v.entitiesPrefix + entityID
	err := v.client.HSet(ctx, key, map[string]interface{}{"embedding": serializeEmbedding(vec), "entity_id": entityID}).Err()
	if err != nil {
		return fmt.Errorf("%w: save entity embedding %s: %v", errs.ErrPersistenceFailed, entityID, err)
	}
	return nil
}

// GetEntityEmbedding fetches a previously-saved entity-name embedding.
func (v *Vector) GetEntityEmbedding(ctx context.Context, entityID string) ([]float32, error) {
	key := v.entitiesPrefix + entityID
	raw, err := v.client.HGet(ctx, key, "embedding").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get entity embedding %s: %v", errs.ErrPersistenceFailed, entityID, err)
	}
	return deserializeEmbedding(raw), nil
}

func deserializeEmbedding(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		out[i] = *(*float32)(unsafe.Pointer(&bits))
	}
	return out
}

// ScoredID is one (id, similarity score) hit from a KNN search.
type ScoredID struct {
	ID    string
	Score float64
}

// SearchEntityEmbeddings returns the top-k nearest entity-name vectors.
func (v *Vector) SearchEntityEmbeddings(ctx context.Context, vec []float32, k int) ([]ScoredID, error) {
	return v.knnSearch(ctx, v.entitiesIndex, v.entitiesPrefix, vec, k, nil)
}

// MemorySearchFilters narrows a memory KNN search by payload equality.
type MemorySearchFilters struct {
	MeetingID      string
	EntityMentions []string
}

// SearchMemories returns the top-k nearest memories, applying filters as a
// pre-filter clause in the FT.SEARCH query string.
func (v *Vector) SearchMemories(ctx context.Context, vec []float32, filters MemorySearchFilters, k int) ([]ScoredID, error) {
	var filterClauses []string
	if filters.MeetingID != "" {
		filterClauses = append(filterClauses, fmt.Sprintf("@meeting_id:{%s}", escapeTag(filters.MeetingID)))
	}
	for _, m := range filters.EntityMentions {
		filterClauses = append(filterClauses, fmt.Sprintf("@entity_mentions:{%s}", escapeTag(m)))
	}
	return v.knnSearch(ctx, v.memoriesIndex, v.memoriesPrefix, vec, k, filterClauses)
}

func escapeTag(s string) string {
	out := make([]byte, 0, len(s))
	for _, c := range []byte(s) {
		switch c {
		case '-', ' ', '.', '@', ':', '/', '\\':
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

func (v *Vector) knnSearch(ctx context.Context, index, prefix string, vec []float32, k int, filterClauses []string) ([]ScoredID, error) {
	prefilter := "*"
	if len(filterClauses) > 0 {
		prefilter = ""
		for _, c := range filterClauses {
			prefilter += c + " "
		}
	}
	query := fmt.Sprintf("%s=>[KNN %d @embedding $query_vec]", prefilter, k)
	args := []interface{}{
		"FT.SEARCH", index, query,
		"PARAMS", "2", "query_vec", serializeEmbedding(vec),
		"DIALECT", "2",
		"LIMIT", "0", strconv.Itoa(k),
	}
	result, err := v.client.Do(ctx, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: knn search %s: %v", errs.ErrPersistenceFailed, index, err)
	}
	return parseKNNResults(result, prefix), nil
}

// parseKNNResults parses the raw FT.SEARCH reply: [total, id1, fields1, id2, fields2, ...].
func parseKNNResults(result interface{}, prefix string) []ScoredID {
	results, ok := result.([]interface{})
	if !ok || len(results) < 2 {
		return nil
	}
	var out []ScoredID
	for i := 1; i+1 < len(results); i += 2 {
		id := fmt.Sprint(results[i])
		id = trimPrefix(id, prefix)
		score := 0.0
		if fields, ok := results[i+1].([]interface{}); ok {
			for j := 0; j+1 < len(fields); j += 2 {
				if fmt.Sprint(fields[j]) == "__embedding_score" || fmt.Sprint(fields[j]) == "score" {
					// RediSearch reports cosine distance; convert to similarity.
					var dist float64
					fmt.Sscanf(fmt.Sprint(fields[j+1]), "%f", &dist)
					score = 1 - dist
				}
			}
		}
		out = append(out, ScoredID{ID: id, Score: score})
	}
	return out
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// Close closes the Redis connection.
func (v *Vector) Close() error {
	return v.client.Close()
}
