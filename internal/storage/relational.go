// Package storage implements the relational store (SQLite) and vector store
// (Redis + RediSearch) the core depends on, combined behind a single Store
// façade.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/meetgraph/meetgraph/internal/errs"
	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/meetgraph/meetgraph/internal/normalize"
)

// schema is grounded directly in the source system's SQLite DDL, trimmed to
// the tables the spec's data model names.
const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	transcript TEXT NOT NULL,
	participants TEXT,
	date TIMESTAMP,
	summary TEXT,
	topics TEXT,
	decisions TEXT,
	action_items TEXT,
	meeting_type TEXT,
	created_at TIMESTAMP NOT NULL,
	memory_count INTEGER DEFAULT 0,
	entity_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	meeting_id TEXT NOT NULL,
	content TEXT NOT NULL,
	speaker TEXT,
	timestamp TIMESTAMP,
	metadata TEXT,
	entity_mentions TEXT,
	FOREIGN KEY (meeting_id) REFERENCES meetings(id)
);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	attributes TEXT,
	first_seen TIMESTAMP NOT NULL,
	last_updated TIMESTAMP NOT NULL,
	UNIQUE(normalized_name, type)
);

CREATE TABLE IF NOT EXISTS entity_states (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	state TEXT NOT NULL,
	meeting_id TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	confidence REAL DEFAULT 1.0,
	FOREIGN KEY (entity_id) REFERENCES entities(id),
	FOREIGN KEY (meeting_id) REFERENCES meetings(id)
);

CREATE TABLE IF NOT EXISTS state_transitions (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	from_state TEXT,
	to_state TEXT NOT NULL,
	changed_fields TEXT,
	reason TEXT,
	meeting_id TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	FOREIGN KEY (entity_id) REFERENCES entities(id),
	FOREIGN KEY (meeting_id) REFERENCES meetings(id)
);

CREATE TABLE IF NOT EXISTS entity_relationships (
	id TEXT PRIMARY KEY,
	from_entity_id TEXT NOT NULL,
	to_entity_id TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	attributes TEXT,
	meeting_id TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	active BOOLEAN DEFAULT 1,
	FOREIGN KEY (from_entity_id) REFERENCES entities(id),
	FOREIGN KEY (to_entity_id) REFERENCES entities(id)
);

CREATE INDEX IF NOT EXISTS idx_entities_normalized ON entities(normalized_name);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_last_updated ON entities(last_updated);
CREATE INDEX IF NOT EXISTS idx_entity_states_entity ON entity_states(entity_id);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON entity_relationships(from_entity_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON entity_relationships(to_entity_id);
CREATE INDEX IF NOT EXISTS idx_transitions_entity ON state_transitions(entity_id);
`

// Relational wraps the SQLite-backed half of the Store.
type Relational struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenRelational opens (creating if necessary) the SQLite database at path
// and applies the schema.
func OpenRelational(path string, logger *slog.Logger) (*Relational, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", errs.ErrPersistenceFailed, err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("%w: apply schema: %v", errs.ErrPersistenceFailed, err)
	}
	return &Relational{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (r *Relational) Close() error {
	return r.db.Close()
}

// SaveMeeting inserts a Meeting row; if the id already exists, only its
// memory_count and entity_count are updated.
func (r *Relational) SaveMeeting(ctx context.Context, m models.Meeting) error {
	participants, _ := json.Marshal(m.Participants)
	topics, _ := json.Marshal(m.Topics)
	decisions, _ := json.Marshal(m.Decisions)
	actionItems, _ := json.Marshal(m.ActionItems)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, transcript, participants, date, summary, topics, decisions, action_items, meeting_type, created_at, memory_count, entity_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET memory_count=excluded.memory_count, entity_count=excluded.entity_count
	`, m.ID, m.Title, m.Transcript, string(participants), m.Date, m.Summary, string(topics), string(decisions), string(actionItems), string(m.MeetingType), m.CreatedAt, m.MemoryCount, m.EntityCount)
	if err != nil {
		return fmt.Errorf("%w: save meeting: %v", errs.ErrPersistenceFailed, err)
	}
	return nil
}

// SaveMemories batch-inserts memories. Vector writes happen separately in
// the vector store; callers treat the two as best-effort and idempotent.
func (r *Relational) SaveMemories(ctx context.Context, memories []models.Memory) error {
	if len(memories) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", errs.ErrPersistenceFailed, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO memories (id, meeting_id, content, speaker, timestamp, metadata, entity_mentions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare memory insert: %v", errs.ErrPersistenceFailed, err)
	}
	defer stmt.Close()

	for _, m := range memories {
		metadata, _ := json.Marshal(m.Metadata)
		mentions, _ := json.Marshal(m.EntityMentions)
		if _, err := stmt.ExecContext(ctx, m.ID, m.MeetingID, m.Content, m.Speaker, m.Timestamp, string(metadata), string(mentions)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: insert memory %s: %v", errs.ErrPersistenceFailed, m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit memories: %v", errs.ErrPersistenceFailed, err)
	}
	return nil
}

// SaveEntities upserts each entity by (normalized_name, type), merging
// attributes with new keys winning and bumping last_updated to now.
func (r *Relational) SaveEntities(ctx context.Context, entities []models.Entity) error {
	for i := range entities {
		e := &entities[i]
		e.NormalizedName = normalizeName(e.Name)
		existing, err := r.getEntityByNormalizedName(ctx, e.NormalizedName, e.Type)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if existing != nil {
			e.ID = existing.ID
			e.FirstSeen = existing.FirstSeen
			merged := make(map[string]interface{}, len(existing.Attributes)+len(e.Attributes))
			for k, v := range existing.Attributes {
				merged[k] = v
			}
			for k, v := range e.Attributes {
				merged[k] = v
			}
			e.Attributes = merged
		} else {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.FirstSeen.IsZero() {
				e.FirstSeen = now
			}
		}
		e.LastUpdated = now

		attrs, _ := json.Marshal(e.Attributes)
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO entities (id, type, name, normalized_name, attributes, first_seen, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(normalized_name, type) DO UPDATE SET
				name=excluded.name, attributes=excluded.attributes, last_updated=excluded.last_updated
		`, e.ID, string(e.Type), e.Name, e.NormalizedName, string(attrs), e.FirstSeen, e.LastUpdated)
		if err != nil {
			return fmt.Errorf("%w: upsert entity %s: %v", errs.ErrPersistenceFailed, e.Name, err)
		}
	}
	return nil
}

func normalizeName(name string) string {
	return normalize.Name(name)
}

func (r *Relational) getEntityByNormalizedName(ctx context.Context, normalizedName string, entityType models.EntityType) (*models.Entity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, name, normalized_name, attributes, first_seen, last_updated
		FROM entities WHERE normalized_name = ? AND type = ?
	`, normalizedName, string(entityType))
	return scanEntity(row)
}

func scanEntity(row *sql.Row) (*models.Entity, error) {
	var e models.Entity
	var entityType, attrs string
	err := row.Scan(&e.ID, &entityType, &e.Name, &e.NormalizedName, &attrs, &e.FirstSeen, &e.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan entity: %v", errs.ErrPersistenceFailed, err)
	}
	e.Type = models.EntityType(entityType)
	if attrs != "" {
		json.Unmarshal([]byte(attrs), &e.Attributes)
	}
	return &e, nil
}

// GetEntityByName looks up an entity by exact normalized-name equality,
// optionally narrowed by type.
func (r *Relational) GetEntityByName(ctx context.Context, name string, entityType *models.EntityType) (*models.Entity, error) {
	normalized := normalizeName(name)
	query := `SELECT id, type, name, normalized_name, attributes, first_seen, last_updated FROM entities WHERE normalized_name = ?`
	args := []interface{}{normalized}
	if entityType != nil {
		query += " AND type = ?"
		args = append(args, string(*entityType))
	}
	row := r.db.QueryRowContext(ctx, query, args...)
	return scanEntity(row)
}

// GetEntity fetches a single entity by id.
func (r *Relational) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, name, normalized_name, attributes, first_seen, last_updated
		FROM entities WHERE id = ?
	`, id)
	return scanEntity(row)
}

// GetEntitiesBatch fetches many entities by id in one round trip.
func (r *Relational) GetEntitiesBatch(ctx context.Context, ids []string) ([]models.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, type, name, normalized_name, attributes, first_seen, last_updated
		FROM entities WHERE id IN (%s)
	`, joinPlaceholders(placeholders))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get entities batch: %v", errs.ErrPersistenceFailed, err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

func joinPlaceholders(p []string) string {
	out := ""
	for i, s := range p {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func scanEntities(rows *sql.Rows) ([]models.Entity, error) {
	var out []models.Entity
	for rows.Next() {
		var e models.Entity
		var entityType, attrs string
		if err := rows.Scan(&e.ID, &entityType, &e.Name, &e.NormalizedName, &attrs, &e.FirstSeen, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("%w: scan entity row: %v", errs.ErrPersistenceFailed, err)
		}
		e.Type = models.EntityType(entityType)
		if attrs != "" {
			json.Unmarshal([]byte(attrs), &e.Attributes)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetAllEntities lists entities, optionally filtered by type and paginated.
func (r *Relational) GetAllEntities(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]models.Entity, error) {
	query := `SELECT id, type, name, normalized_name, attributes, first_seen, last_updated FROM entities`
	var args []interface{}
	if entityType != nil {
		query += " WHERE type = ?"
		args = append(args, string(*entityType))
	}
	query += " ORDER BY last_updated DESC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get all entities: %v", errs.ErrPersistenceFailed, err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// SaveEntityStates batch-appends EntityState rows.
func (r *Relational) SaveEntityStates(ctx context.Context, states []models.EntityState) error {
	if len(states) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", errs.ErrPersistenceFailed, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entity_states (id, entity_id, state, meeting_id, timestamp, confidence) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare state insert: %v", errs.ErrPersistenceFailed, err)
	}
	defer stmt.Close()
	for _, s := range states {
		stateJSON, _ := json.Marshal(normalize.StateDict(s.State))
		if _, err := stmt.ExecContext(ctx, s.ID, s.EntityID, string(stateJSON), s.MeetingID, s.Timestamp, s.Confidence); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: insert state %s: %v", errs.ErrPersistenceFailed, s.ID, err)
		}
	}
	return tx.Commit()
}

// SaveTransitions batch-appends StateTransition rows.
func (r *Relational) SaveTransitions(ctx context.Context, transitions []models.StateTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", errs.ErrPersistenceFailed, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO state_transitions (id, entity_id, from_state, to_state, changed_fields, reason, meeting_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare transition insert: %v", errs.ErrPersistenceFailed, err)
	}
	defer stmt.Close()
	for _, t := range transitions {
		var fromState []byte
		if t.FromState != nil {
			fromState, _ = json.Marshal(t.FromState)
		}
		toState, _ := json.Marshal(t.ToState)
		changedFields, _ := json.Marshal(t.ChangedFields)
		if _, err := stmt.ExecContext(ctx, t.ID, t.EntityID, nullableString(fromState), string(toState), string(changedFields), t.Reason, t.MeetingID, t.Timestamp); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: insert transition %s: %v", errs.ErrPersistenceFailed, t.ID, err)
		}
	}
	return tx.Commit()
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

// GetEntityCurrentState returns the most recent EntityState for entityID, or
// nil if none exists.
func (r *Relational) GetEntityCurrentState(ctx context.Context, entityID string) (*models.EntityState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, entity_id, state, meeting_id, timestamp, confidence
		FROM entity_states WHERE entity_id = ? ORDER BY timestamp DESC LIMIT 1
	`, entityID)
	var s models.EntityState
	var stateJSON string
	err := row.Scan(&s.ID, &s.EntityID, &stateJSON, &s.MeetingID, &s.Timestamp, &s.Confidence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get current state: %v", errs.ErrPersistenceFailed, err)
	}
	json.Unmarshal([]byte(stateJSON), &s.State)
	return &s, nil
}

// TimelineEntry is one joined StateTransition row enriched with meeting
// context, as GetEntityTimeline returns them: newest first.
type TimelineEntry struct {
	Transition  models.StateTransition
	MeetingName string
	MeetingDate time.Time
}

// GetEntityTimeline joins StateTransitions for entityID with their meeting's
// title/date, newest first.
func (r *Relational) GetEntityTimeline(ctx context.Context, entityID string, limit int) ([]TimelineEntry, error) {
	query := `
		SELECT st.id, st.entity_id, st.from_state, st.to_state, st.changed_fields, st.reason, st.meeting_id, st.timestamp,
		       m.title, m.date
		FROM state_transitions st
		JOIN meetings m ON m.id = st.meeting_id
		WHERE st.entity_id = ?
		ORDER BY st.timestamp DESC
	`
	args := []interface{}{entityID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get entity timeline: %v", errs.ErrPersistenceFailed, err)
	}
	defer rows.Close()

	var out []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		var fromState sql.NullString
		var toState, changedFields string
		if err := rows.Scan(&e.Transition.ID, &e.Transition.EntityID, &fromState, &toState, &changedFields,
			&e.Transition.Reason, &e.Transition.MeetingID, &e.Transition.Timestamp, &e.MeetingName, &e.MeetingDate); err != nil {
			return nil, fmt.Errorf("%w: scan timeline row: %v", errs.ErrPersistenceFailed, err)
		}
		if fromState.Valid {
			json.Unmarshal([]byte(fromState.String), &e.Transition.FromState)
		}
		json.Unmarshal([]byte(toState), &e.Transition.ToState)
		json.Unmarshal([]byte(changedFields), &e.Transition.ChangedFields)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveRelationships upserts relationships, deduplicating against any
// existing active relationship with the identical (from,to,type).
func (r *Relational) SaveRelationships(ctx context.Context, rels []models.EntityRelationship) error {
	for _, rel := range rels {
		var existingID string
		err := r.db.QueryRowContext(ctx, `
			SELECT id FROM entity_relationships
			WHERE from_entity_id = ? AND to_entity_id = ? AND relationship_type = ? AND active = 1
		`, rel.FromEntityID, rel.ToEntityID, string(rel.Type)).Scan(&existingID)
		if err == nil {
			continue // already present and active; dedup per (from,to,type,active).
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("%w: check relationship dedup: %v", errs.ErrPersistenceFailed, err)
		}

		attrs, _ := json.Marshal(rel.Attributes)
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO entity_relationships (id, from_entity_id, to_entity_id, relationship_type, attributes, meeting_id, timestamp, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rel.ID, rel.FromEntityID, rel.ToEntityID, string(rel.Type), string(attrs), rel.MeetingID, rel.Timestamp, rel.Active)
		if err != nil {
			return fmt.Errorf("%w: insert relationship %s: %v", errs.ErrPersistenceFailed, rel.ID, err)
		}
	}
	return nil
}

// ResolvedRelationship pairs a relationship with its endpoint entity names.
type ResolvedRelationship struct {
	Relationship models.EntityRelationship
	FromName     string
	ToName       string
}

// getMemoryWithMeeting fetches a Memory by id alongside a brief of its
// Meeting, used to enrich vector-search hits.
func (r *Relational) getMemoryWithMeeting(ctx context.Context, memoryID string) (*models.Memory, *models.MeetingBrief, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT mem.id, mem.meeting_id, mem.content, mem.speaker, mem.timestamp, mem.metadata, mem.entity_mentions,
		       m.id, m.title, m.date
		FROM memories mem JOIN meetings m ON m.id = mem.meeting_id
		WHERE mem.id = ?
	`, memoryID)

	var mem models.Memory
	var meeting models.MeetingBrief
	var speaker sql.NullString
	var ts sql.NullTime
	var metadata, mentions string
	err := row.Scan(&mem.ID, &mem.MeetingID, &mem.Content, &speaker, &ts, &metadata, &mentions,
		&meeting.ID, &meeting.Title, &meeting.Date)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: get memory with meeting: %v", errs.ErrPersistenceFailed, err)
	}
	if speaker.Valid {
		mem.Speaker = speaker.String
	}
	if ts.Valid {
		mem.Timestamp = &ts.Time
	}
	json.Unmarshal([]byte(metadata), &mem.Metadata)
	json.Unmarshal([]byte(mentions), &mem.EntityMentions)
	return &mem, &meeting, nil
}

// GetEntityRelationships returns relationships touching entityID (either
// endpoint), resolving both endpoint names, optionally restricted to active.
func (r *Relational) GetEntityRelationships(ctx context.Context, entityID string, activeOnly bool) ([]ResolvedRelationship, error) {
	query := `
		SELECT r.id, r.from_entity_id, r.to_entity_id, r.relationship_type, r.attributes, r.meeting_id, r.timestamp, r.active,
		       f.name, t.name
		FROM entity_relationships r
		JOIN entities f ON f.id = r.from_entity_id
		JOIN entities t ON t.id = r.to_entity_id
		WHERE (r.from_entity_id = ? OR r.to_entity_id = ?)
	`
	args := []interface{}{entityID, entityID}
	if activeOnly {
		query += " AND r.active = 1"
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get entity relationships: %v", errs.ErrPersistenceFailed, err)
	}
	defer rows.Close()

	var out []ResolvedRelationship
	for rows.Next() {
		var rr ResolvedRelationship
		var relType, attrs string
		if err := rows.Scan(&rr.Relationship.ID, &rr.Relationship.FromEntityID, &rr.Relationship.ToEntityID, &relType,
			&attrs, &rr.Relationship.MeetingID, &rr.Relationship.Timestamp, &rr.Relationship.Active, &rr.FromName, &rr.ToName); err != nil {
			return nil, fmt.Errorf("%w: scan relationship row: %v", errs.ErrPersistenceFailed, err)
		}
		rr.Relationship.Type = models.RelationshipType(relType)
		if attrs != "" {
			json.Unmarshal([]byte(attrs), &rr.Relationship.Attributes)
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}
