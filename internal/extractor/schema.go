package extractor

// rawExtraction is the shape the LLM is asked to return, matched field for
// field against the original extractor's JSON schema before being converted
// into models.ExtractionResult.
type rawExtraction struct {
	Memories      []rawMemory      `json:"memories"`
	Entities      []rawEntity      `json:"entities"`
	Relationships []rawRelation    `json:"relationships"`
	Participants  []string         `json:"participants"`
	Topics        []string         `json:"topics"`
	Summary       string           `json:"summary"`
	Decisions     []string         `json:"decisions"`
	ActionItems   []rawActionItem  `json:"action_items"`
	Metadata      rawMeetingMeta   `json:"metadata"`
}

type rawMemory struct {
	Content        string          `json:"content"`
	Speaker        *string         `json:"speaker"`
	Timestamp      *string         `json:"timestamp"`
	Metadata       rawMemoryMeta   `json:"metadata"`
	EntityMentions []string        `json:"entity_mentions"`
}

type rawMemoryMeta struct {
	Type       string   `json:"type"`
	Importance string   `json:"importance"`
	Tags       []string `json:"tags"`
}

type rawEntity struct {
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	CurrentState map[string]interface{} `json:"current_state"`
	Attributes   map[string]interface{} `json:"attributes"`
}

type rawRelation struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
}

type rawActionItem struct {
	Action   string  `json:"action"`
	Assignee *string `json:"assignee"`
	Due      *string `json:"due"`
}

type rawMeetingMeta struct {
	MeetingType      string                 `json:"meeting_type"`
	DetailedSummary  string                 `json:"detailed_summary"`
	ProjectTags      []string               `json:"project_tags"`
	OrganizationCtx  string                 `json:"organization_context"`
	KeyMetrics       map[string]interface{} `json:"key_metrics"`
}

// extractionSystemPrompt is the extractor's system instruction, ported from
// original_source/src/extractor.py's MemoryExtractor.system_prompt, trimmed
// of the email-specific metadata fields the spec doesn't carry forward.
const extractionSystemPrompt = `You are a business intelligence analyst extracting structured insights from meeting transcripts.

CRITICAL INSTRUCTIONS:
1. Use full entity names. Do not truncate or shorten names. If you see "the mobile app redesign project", the entity name is "mobile app redesign project", not "redesign project".
2. Be consistent: use the exact same full entity name when defining relationships as when defining entities.

Focus on extracting:
1. Key discussion points, decisions, and insights as memories
2. Business entities (people, projects, features, deadlines, metrics, teams, systems, technologies)
3. Relationships between entities (who owns what, dependencies, assignments)
4. Current state per entity (status, progress, health, assigned_to, deadline, blockers)
5. Action items with assignees and deadlines
6. Key decisions made during the meeting

Entity types: person, project, feature, deadline, metric, team, system, technology.
Relationship types: owns, works_on, reports_to, depends_on, blocks, assigned_to, responsible_for, collaborates_with.

Return strict JSON with this exact structure and nothing else:
{
  "memories": [{"content": "string", "speaker": "string or null", "timestamp": "string or null", "metadata": {"type": "decision|action|insight|discussion|risk|deadline", "importance": "high|medium|low", "tags": []}, "entity_mentions": ["entity names mentioned"]}],
  "entities": [{"name": "string", "type": "person|project|feature|deadline|metric|team|system|technology", "current_state": {"status": "string", "progress": "string", "health": "string", "assigned_to": "string", "deadline": "string", "blockers": []}, "attributes": {}}],
  "relationships": [{"from": "entity name", "to": "entity name", "type": "owns|works_on|reports_to|depends_on|blocks|assigned_to|responsible_for|collaborates_with", "attributes": {}}],
  "participants": ["names"],
  "topics": ["topics discussed"],
  "summary": "brief summary",
  "decisions": ["decision 1", "decision 2"],
  "action_items": [{"action": "string", "assignee": "name or null", "due": "date or null"}],
  "metadata": {"meeting_type": "string", "detailed_summary": "comprehensive 2-3 paragraph summary", "project_tags": [], "organization_context": "string or empty", "key_metrics": {}}
}`
