// Package models defines the core knowledge-graph types shared across the
// ingestion pipeline, storage layer, and query engine.
package models

import "time"

// EntityType is the closed set of business-noun categories an Entity may take.
type EntityType string

const (
	EntityPerson     EntityType = "person"
	EntityProject    EntityType = "project"
	EntityFeature    EntityType = "feature"
	EntityTask       EntityType = "task"
	EntityDecision   EntityType = "decision"
	EntityDeadline   EntityType = "deadline"
	EntityRisk       EntityType = "risk"
	EntityGoal       EntityType = "goal"
	EntityMetric     EntityType = "metric"
	EntityTeam       EntityType = "team"
	EntitySystem     EntityType = "system"
	EntityTechnology EntityType = "technology"
)

// ValidEntityTypes is the closed enum for entity classification.
var ValidEntityTypes = map[EntityType]bool{
	EntityPerson: true, EntityProject: true, EntityFeature: true, EntityTask: true,
	EntityDecision: true, EntityDeadline: true, EntityRisk: true, EntityGoal: true,
	EntityMetric: true, EntityTeam: true, EntitySystem: true, EntityTechnology: true,
}

// RelationshipType is the closed set of edge labels between two entities.
type RelationshipType string

const (
	RelOwns            RelationshipType = "owns"
	RelWorksOn         RelationshipType = "works_on"
	RelReportsTo       RelationshipType = "reports_to"
	RelDependsOn       RelationshipType = "depends_on"
	RelBlocks          RelationshipType = "blocks"
	RelIncludes        RelationshipType = "includes"
	RelAssignedTo      RelationshipType = "assigned_to"
	RelResponsibleFor  RelationshipType = "responsible_for"
	RelCollaboratesWith RelationshipType = "collaborates_with"
	RelMentionedIn     RelationshipType = "mentioned_in"
	RelRelatesTo       RelationshipType = "relates_to"
)

// ValidRelationshipTypes is the closed enum for relationship classification.
var ValidRelationshipTypes = map[RelationshipType]bool{
	RelOwns: true, RelWorksOn: true, RelReportsTo: true, RelDependsOn: true,
	RelBlocks: true, RelIncludes: true, RelAssignedTo: true, RelResponsibleFor: true,
	RelCollaboratesWith: true, RelMentionedIn: true, RelRelatesTo: true,
}

// Status is the canonical vocabulary for EntityState.status.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

// MemoryKind classifies what kind of utterance a Memory captures.
type MemoryKind string

const (
	MemoryDecision   MemoryKind = "decision"
	MemoryAction     MemoryKind = "action"
	MemoryInsight    MemoryKind = "insight"
	MemoryDiscussion MemoryKind = "discussion"
	MemoryRisk       MemoryKind = "risk"
	MemoryDeadline   MemoryKind = "deadline"
)

// Importance is a coarse relevance grading for a Memory.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "med"
	ImportanceLow    Importance = "low"
)

// MeetingType classifies the nature of a meeting, supplemental to the core
// spec and populated on a best-effort basis by the extractor.
type MeetingType string

const (
	MeetingSteering      MeetingType = "steering"
	MeetingProgram       MeetingType = "program"
	MeetingWorkstream    MeetingType = "workstream"
	MeetingFunctional    MeetingType = "functional"
	MeetingWorking       MeetingType = "working"
	MeetingOneOnOne      MeetingType = "one_on_one"
	MeetingInternal      MeetingType = "internal"
	MeetingClient        MeetingType = "client"
	MeetingVendor        MeetingType = "vendor"
	MeetingStandup       MeetingType = "standup"
	MeetingReview        MeetingType = "review"
	MeetingPlanning      MeetingType = "planning"
	MeetingRetrospective MeetingType = "retrospective"
)

// Meeting is immutable after first write except for MemoryCount/EntityCount.
type Meeting struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Transcript   string      `json:"transcript"`
	Date         time.Time   `json:"date"`
	Participants []string    `json:"participants"`
	Summary      string      `json:"summary"`
	Topics       []string    `json:"topics"`
	Decisions    []string    `json:"decisions"`
	ActionItems  []string    `json:"action_items"`
	MeetingType  MeetingType `json:"meeting_type,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	MemoryCount  int         `json:"memory_count"`
	EntityCount  int         `json:"entity_count"`
}

// MemoryMetadata carries the classification fields for a Memory.
type MemoryMetadata struct {
	Type       MemoryKind `json:"type"`
	Importance Importance `json:"importance"`
}

// Memory is a single semantically-indexable utterance, created once during
// ingestion and never mutated thereafter.
type Memory struct {
	ID             string         `json:"id"`
	MeetingID      string         `json:"meeting_id"`
	Content        string         `json:"content"`
	Speaker        string         `json:"speaker,omitempty"`
	Timestamp      *time.Time     `json:"timestamp,omitempty"`
	Metadata       MemoryMetadata `json:"metadata"`
	EntityMentions []string       `json:"entity_mentions"`
}

// Entity is a typed business noun tracked across meetings, unique by
// (NormalizedName, Type). Attributes are merged on re-ingest: new keys win.
type Entity struct {
	ID             string                 `json:"id"`
	Type           EntityType             `json:"type"`
	Name           string                 `json:"name"`
	NormalizedName string                 `json:"normalized_name"`
	Attributes     map[string]interface{} `json:"attributes"`
	FirstSeen      time.Time              `json:"first_seen"`
	LastUpdated    time.Time              `json:"last_updated"`
}

// State is the free-form attribute map describing an Entity at a moment.
// Well-known keys (status, progress, assigned_to, deadline, blockers) are
// documented but the map stays open to extractor-discovered fields.
type State map[string]interface{}

// EntityState is an append-only history record; the current state is the
// latest by Timestamp.
type EntityState struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	State      State     `json:"state"`
	MeetingID  string    `json:"meeting_id"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// StateTransition records a semantic change between two EntityStates.
type StateTransition struct {
	ID            string    `json:"id"`
	EntityID      string    `json:"entity_id"`
	FromState     State     `json:"from_state,omitempty"`
	ToState       State     `json:"to_state"`
	ChangedFields []string  `json:"changed_fields"`
	Reason        string    `json:"reason"`
	MeetingID     string    `json:"meeting_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// EntityRelationship is a directed, typed edge between two entities,
// deduplicated per (FromEntityID, ToEntityID, Type, Active=true).
type EntityRelationship struct {
	ID           string                 `json:"id"`
	FromEntityID string                 `json:"from_entity_id"`
	ToEntityID   string                 `json:"to_entity_id"`
	Type         RelationshipType       `json:"type"`
	Attributes   map[string]interface{} `json:"attributes"`
	MeetingID    string                 `json:"meeting_id"`
	Timestamp    time.Time              `json:"timestamp"`
	Active       bool                   `json:"active"`
}

// ExtractionResult is the typed output of the extractor: memories, entities
// (with an optional initial state), relationships, and meeting metadata.
type ExtractionResult struct {
	Memories         []Memory              `json:"memories"`
	Entities         []ExtractedEntity     `json:"entities"`
	Relationships    []ExtractedRelation   `json:"relationships"`
	Summary          string                `json:"summary"`
	DetailedSummary  string                `json:"detailed_summary"`
	Topics           []string              `json:"topics"`
	Participants     []string              `json:"participants"`
	Decisions        []string              `json:"decisions"`
	ActionItems      []string              `json:"action_items"`
	MeetingType      MeetingType           `json:"meeting_type,omitempty"`
	TranscriptContext string               `json:"transcript_context"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// ExtractedEntity is an entity as seen by the extractor, before resolution.
type ExtractedEntity struct {
	Name         string                 `json:"name"`
	Type         EntityType             `json:"type"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
	CurrentState State                  `json:"current_state,omitempty"`
}

// ExtractedRelation is a relationship as seen by the extractor, referencing
// entities by name rather than id; resolved to ids in the meeting processor.
type ExtractedRelation struct {
	FromName   string                 `json:"from_name"`
	ToName     string                 `json:"to_name"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// MatchType records which resolution strategy produced an EntityMatch.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchVector     MatchType = "vector"
	MatchFuzzy      MatchType = "fuzzy"
	MatchLLM        MatchType = "llm"
	MatchLLMNoMatch MatchType = "llm_no_match"
	MatchLLMDisabled MatchType = "llm_disabled"
	MatchLLMError   MatchType = "llm_error"
	MatchNoEntities MatchType = "no_entities"
)

// EntityMatch is the resolver's answer for one free-text mention.
type EntityMatch struct {
	QueryTerm  string                 `json:"query_term"`
	Entity     *Entity                `json:"entity"`
	Confidence float64                `json:"confidence"`
	MatchType  MatchType              `json:"match_type"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// StateComparison is the LLM processor's verdict for one (old,new) state pair.
type StateComparison struct {
	HasChanges    bool     `json:"has_changes"`
	ChangedFields []string `json:"changed_fields"`
	Reason        string   `json:"reason"`
}

// SearchResult is one hit from a semantic memory search.
type SearchResult struct {
	Memory           Memory       `json:"memory"`
	Meeting          MeetingBrief `json:"meeting"`
	Score            float64      `json:"score"`
	RelevantEntities []string     `json:"relevant_entities"`
}

// MeetingBrief is the minimal projection of a Meeting embedded in search hits.
type MeetingBrief struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// EmbeddingFilters narrows a memory vector search by payload fields.
type EmbeddingFilters struct {
	MeetingID      string
	EntityMentions []string
}

// ProcessingSummary is returned by the meeting processor after ingestion.
type ProcessingSummary struct {
	MeetingID          string   `json:"meeting_id"`
	EntitiesProcessed  int      `json:"entities_processed"`
	StatesCaptured     int      `json:"states_captured"`
	TransitionsCreated int      `json:"transitions_created"`
	RelationshipsSaved int      `json:"relationships_saved"`
	ConsistencyErrors  []string `json:"consistency_errors"`
	NoStateEntities    []string `json:"no_state_entities"`
	ExtractionMethod   string   `json:"extraction_method"`
	ExtractionError    string   `json:"extraction_error,omitempty"`
}

// Intent is the closed set of query classifications.
type Intent string

const (
	IntentTimeline     Intent = "timeline"
	IntentBlocker      Intent = "blocker"
	IntentStatus       Intent = "status"
	IntentOwnership    Intent = "ownership"
	IntentAnalytics    Intent = "analytics"
	IntentRelationship Intent = "relationship"
	IntentSearch       Intent = "search"
)

// TimeWindow is an optional [Start,End] bound parsed out of a query.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// QueryResult is the query engine's response to a natural-language question.
type QueryResult struct {
	Answer            string                 `json:"answer"`
	Confidence        float64                `json:"confidence"`
	Intent            Intent                 `json:"intent"`
	FollowUps         []string               `json:"follow_ups"`
	SupportingData    interface{}            `json:"supporting_data,omitempty"`
	EntitiesInvolved  []string               `json:"entities_involved,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}
