// Package extractor implements LLM-driven extraction of memories, entities,
// relationships, and meeting metadata from a transcript, with a heuristic
// fallback when the LLM call or its JSON response fails.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/meetgraph/meetgraph/internal/llmproc"
	"github.com/meetgraph/meetgraph/internal/models"
)

// Extractor turns a raw transcript into a models.ExtractionResult.
type Extractor struct {
	client     *llmproc.Client
	model      string
	maxRetries uint64
	logger     *slog.Logger
}

// Config configures an Extractor.
type Config struct {
	Model      string
	MaxRetries uint64
	Logger     *slog.Logger
}

// New builds an Extractor.
func New(client *llmproc.Client, cfg Config) *Extractor {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{client: client, model: cfg.Model, maxRetries: cfg.MaxRetries, logger: cfg.Logger}
}

// Extract calls the LLM with the structured-extraction prompt and converts
// its response into a models.ExtractionResult. On any LLM or parse failure
// it logs the cause and falls back to heuristic extraction rather than
// failing the whole ingestion.
func (e *Extractor) Extract(ctx context.Context, transcript, meetingID string) models.ExtractionResult {
	result, err := e.extractViaLLM(ctx, transcript)
	if err != nil {
		e.logger.Warn("llm extraction failed, using fallback heuristic extraction", "meeting_id", meetingID, "error", err)
		return fallbackExtract(transcript)
	}
	return result
}

func (e *Extractor) extractViaLLM(ctx context.Context, transcript string) (models.ExtractionResult, error) {
	userPrompt := fmt.Sprintf("Extract business intelligence from this transcript:\n\n%s", transcript)

	var content string
	operation := func() error {
		resp, err := e.client.Chat(ctx, llmproc.ChatRequest{
			Model:       e.model,
			Temperature: 0.3,
			MaxTokens:   20000,
			Messages: []llmproc.ChatMessage{
				{Role: "system", Content: extractionSystemPrompt},
				{Role: "user", Content: userPrompt},
			},
			ResponseFormat: map[string]any{"type": "json_object"},
		})
		if err != nil {
			return err
		}
		content = resp
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = 10 * time.Second
	b := backoff.WithMaxRetries(eb, e.maxRetries-1)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return models.ExtractionResult{}, fmt.Errorf("extraction call failed: %w", err)
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &raw); err != nil {
		return models.ExtractionResult{}, fmt.Errorf("parse extraction response: %w", err)
	}

	return convertRaw(raw, transcript), nil
}

func convertRaw(raw rawExtraction, transcript string) models.ExtractionResult {
	memories := make([]models.Memory, 0, len(raw.Memories))
	for _, m := range raw.Memories {
		var speaker string
		if m.Speaker != nil {
			speaker = *m.Speaker
		}
		var ts *time.Time
		if m.Timestamp != nil {
			if parsed, err := time.Parse(time.RFC3339, *m.Timestamp); err == nil {
				ts = &parsed
			}
		}
		memories = append(memories, models.Memory{
			Content:   m.Content,
			Speaker:   speaker,
			Timestamp: ts,
			Metadata: models.MemoryMetadata{
				Type:       models.MemoryKind(m.Metadata.Type),
				Importance: models.Importance(m.Metadata.Importance),
			},
			EntityMentions: m.EntityMentions,
		})
	}

	entities := make([]models.ExtractedEntity, 0, len(raw.Entities))
	for _, ent := range raw.Entities {
		entities = append(entities, models.ExtractedEntity{
			Name:         ent.Name,
			Type:         models.EntityType(ent.Type),
			Attributes:   ent.Attributes,
			CurrentState: models.State(ent.CurrentState),
		})
	}

	relations := make([]models.ExtractedRelation, 0, len(raw.Relationships))
	for _, rel := range raw.Relationships {
		relations = append(relations, models.ExtractedRelation{
			FromName:   rel.From,
			ToName:     rel.To,
			Type:       rel.Type,
			Attributes: rel.Attributes,
		})
	}

	actionItems := make([]string, 0, len(raw.ActionItems))
	for _, item := range raw.ActionItems {
		desc := item.Action
		if item.Assignee != nil && *item.Assignee != "" {
			desc = fmt.Sprintf("%s (assignee: %s)", desc, *item.Assignee)
		}
		if item.Due != nil && *item.Due != "" {
			desc = fmt.Sprintf("%s (due: %s)", desc, *item.Due)
		}
		actionItems = append(actionItems, desc)
	}

	meetingType := models.MeetingType(raw.Metadata.MeetingType)
	if meetingType == "" {
		meetingType = ClassifyMeetingType(transcript)
	}

	return models.ExtractionResult{
		Memories:          memories,
		Entities:          entities,
		Relationships:     relations,
		Summary:           raw.Summary,
		DetailedSummary:   raw.Metadata.DetailedSummary,
		Topics:            raw.Topics,
		Participants:      raw.Participants,
		Decisions:         raw.Decisions,
		ActionItems:       actionItems,
		MeetingType:       meetingType,
		TranscriptContext: transcript,
		Metadata: map[string]interface{}{
			"project_tags":         raw.Metadata.ProjectTags,
			"organization_context": raw.Metadata.OrganizationCtx,
			"key_metrics":          raw.Metadata.KeyMetrics,
		},
	}
}

// cleanJSONResponse strips markdown code-fence wrapping, grounded in the
// teacher's identically-named helper in internal/memory/extractor.go.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	if strings.HasSuffix(response, "```") {
		response = strings.TrimSuffix(response, "```")
	}
	return strings.TrimSpace(response)
}
