package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/meetgraph/meetgraph/internal/models"
)

const (
	minMemoryLength = 10
	maxMemoryLength = 2000
)

var (
	speakerPattern  = regexp.MustCompile(`(?m)^([A-Z][A-Za-z\s]+):\s*(.+)$`)
	deadlinePattern = regexp.MustCompile(`(?i)\bQ[1-4]\b|\b(January|February|March|April|May|June|July|August|September|October|November|December)\b`)
)

var skipSpeakers = map[string]bool{
	"to": true, "from": true, "subject": true, "date": true,
	"references": true, "cc": true, "bcc": true,
}

var decisionKeywords = []string{"decided", "will", "going to", "agreed", "decision"}
var actionKeywords = []string{"will", "need to", "should", "must", "action"}
var featureKeywords = []string{"feature", "module", "component", "service", "system", "project"}

// fallbackExtract is a regex/keyword-based extraction used when the LLM call
// or its JSON response fails, ported from
// original_source/src/extractor.py's MemoryExtractor._fallback_extract.
// Deliberately does not attempt state inference: entities get a plain
// "discussed" or "participant" placeholder state rather than a guessed
// status, since guessed state is worse than no state.
func fallbackExtract(transcript string) models.ExtractionResult {
	var memories []models.Memory
	participants := make(map[string]bool)
	var entities []models.ExtractedEntity
	seenEntity := make(map[string]bool)
	var decisions []string
	var actionItems []string

	matches := speakerPattern.FindAllStringSubmatch(transcript, -1)
	for _, m := range matches {
		speaker := strings.TrimSpace(m[1])
		content := strings.TrimSpace(m[2])

		if skipSpeakers[strings.ToLower(speaker)] {
			continue
		}
		participants[speaker] = true

		if !seenEntity[speaker] {
			seenEntity[speaker] = true
			entities = append(entities, models.ExtractedEntity{
				Name:         speaker,
				Type:         models.EntityPerson,
				CurrentState: models.State{"role": "participant"},
			})
		}

		contentLower := strings.ToLower(content)
		for _, kw := range decisionKeywords {
			if strings.Contains(contentLower, kw) {
				decisions = append(decisions, content)
				break
			}
		}

		isAction := false
		for _, kw := range actionKeywords {
			if strings.Contains(contentLower, kw) {
				isAction = true
				break
			}
		}
		if isAction {
			actionItems = append(actionItems, fmt.Sprintf("%s (assignee: %s)", content, speaker))
		}

		if len(content) < minMemoryLength || len(content) > maxMemoryLength {
			continue
		}

		var mentions []string
		for _, kw := range featureKeywords {
			if !strings.Contains(contentLower, kw) {
				continue
			}
			words := strings.Fields(content)
			for i, w := range words {
				if strings.ToLower(w) == kw && i > 0 {
					entityName := words[i-1] + " " + w
					mentions = append(mentions, entityName)
					if !seenEntity[entityName] {
						seenEntity[entityName] = true
						entityType := models.EntityFeature
						if kw == "project" {
							entityType = models.EntityProject
						}
						entities = append(entities, models.ExtractedEntity{
							Name:         entityName,
							Type:         entityType,
							CurrentState: models.State{"status": "discussed"},
						})
					}
				}
			}
		}

		if deadlinePattern.MatchString(content) {
			mentions = append(mentions, "deadline")
		}

		memType := models.MemoryDiscussion
		if isDecision := containsAny(contentLower, decisionKeywords); isDecision {
			memType = models.MemoryDecision
		} else if isAction {
			memType = models.MemoryAction
		}

		memories = append(memories, models.Memory{
			Content: content,
			Speaker: speaker,
			Metadata: models.MemoryMetadata{
				Type:       memType,
				Importance: models.ImportanceMedium,
			},
			EntityMentions: mentions,
		})
	}

	topicSet := make(map[string]bool)
	for _, e := range entities {
		if e.Type == models.EntityFeature || e.Type == models.EntityProject {
			topicSet[e.Name] = true
		}
	}
	topics := make([]string, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}

	participantList := make([]string, 0, len(participants))
	for p := range participants {
		participantList = append(participantList, p)
	}

	return models.ExtractionResult{
		Memories:          memories,
		Entities:          entities,
		Participants:      participantList,
		Topics:            topics,
		Summary:           fmt.Sprintf("Meeting with %d participants discussing %d features/projects", len(participants), len(topicSet)),
		Decisions:         decisions,
		ActionItems:       actionItems,
		MeetingType:       ClassifyMeetingType(transcript),
		TranscriptContext: transcript,
		Metadata:          map[string]interface{}{"extraction_method": "fallback_heuristic"},
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
