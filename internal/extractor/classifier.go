package extractor

import (
	"strings"

	"github.com/meetgraph/meetgraph/internal/models"
)

// meetingTypeKeywords mirrors the structure of the teacher's
// RuleBasedClassifier rule map (internal/agent/classifier.go), generalized
// from agent routing keywords to meeting-type keywords.
var meetingTypeKeywords = map[models.MeetingType][]string{
	models.MeetingStandup: {
		"standup", "daily", "yesterday", "blockers", "today i",
	},
	models.MeetingPlanning: {
		"planning", "roadmap", "backlog", "sprint planning", "estimate", "prioritize",
	},
	models.MeetingReview: {
		"review", "demo", "showcase", "sign off", "sign-off", "approve",
	},
	models.MeetingRetrospective: {
		"retro", "retrospective", "what went well", "went wrong", "improve",
	},
	models.MeetingOneOnOne: {
		"one on one", "1:1", "one-on-one", "career", "feedback session",
	},
	models.MeetingClient: {
		"client", "customer", "external stakeholder", "contract",
	},
	models.MeetingVendor: {
		"vendor", "supplier", "procurement", "sow", "statement of work",
	},
	models.MeetingSteering: {
		"steering committee", "executive", "board", "governance",
	},
	models.MeetingProgram: {
		"program review", "program update", "cross-team", "program lead", "milestones",
	},
	models.MeetingWorkstream: {
		"workstream", "work stream", "track lead", "stream sync",
	},
	models.MeetingFunctional: {
		"functional review", "department", "cross-functional", "func sync",
	},
	models.MeetingInternal: {
		"internal only", "internal sync", "team only", "no external attendees",
	},
}

// ClassifyMeetingType scores the transcript against each meeting type's
// keyword list and returns the best match, defaulting to MeetingWorking
// when nothing scores, matching original_source/src/models_v2.py's
// MeetingType default. Best-effort only: a wrong classification never
// blocks ingestion.
func ClassifyMeetingType(transcript string) models.MeetingType {
	lower := strings.ToLower(transcript)

	best := models.MeetingWorking
	bestScore := 0
	for meetingType, keywords := range meetingTypeKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = meetingType
		}
	}
	return best
}
