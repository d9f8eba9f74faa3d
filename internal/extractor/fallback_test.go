package extractor

import (
	"testing"

	"github.com/meetgraph/meetgraph/internal/models"
)

const sampleTranscript = `Alice: We decided to move the mobile app redesign project to Q2. I will own the rollout.
Bob: I need to finish the API Migration feature by next Friday. This is an action item for me.
Alice: Sounds good, let's sync again next week.`

func TestFallbackExtractFindsSpeakersAsEntities(t *testing.T) {
	result := fallbackExtract(sampleTranscript)

	names := make(map[string]bool)
	for _, e := range result.Entities {
		if e.Type == models.EntityPerson {
			names[e.Name] = true
		}
	}
	if !names["Alice"] || !names["Bob"] {
		t.Fatalf("expected Alice and Bob as person entities, got %+v", result.Entities)
	}
}

func TestFallbackExtractDetectsDecisionsAndActionItems(t *testing.T) {
	result := fallbackExtract(sampleTranscript)

	if len(result.Decisions) == 0 {
		t.Fatalf("expected at least one detected decision, got none")
	}
	if len(result.ActionItems) == 0 {
		t.Fatalf("expected at least one detected action item, got none")
	}
}

func TestFallbackExtractNeverGuessesEntityStatus(t *testing.T) {
	result := fallbackExtract(sampleTranscript)

	for _, e := range result.Entities {
		if status, ok := e.CurrentState["status"]; ok {
			if status != "discussed" {
				t.Fatalf("fallback extraction must never infer a real status via regex, got %q for entity %s", status, e.Name)
			}
		}
	}
}

func TestFallbackExtractCarriesTranscriptContext(t *testing.T) {
	result := fallbackExtract(sampleTranscript)

	if result.TranscriptContext != sampleTranscript {
		t.Fatalf("expected transcript_context to carry the verbatim transcript, got %q", result.TranscriptContext)
	}
}

func TestFallbackExtractSkipsEmailHeaderLikeSpeakers(t *testing.T) {
	transcript := "From: someone@example.com\nSubject: Weekly sync\nAlice: Let's begin the meeting."
	result := fallbackExtract(transcript)

	for _, p := range result.Participants {
		if p == "From" || p == "Subject" {
			t.Fatalf("expected email headers to be excluded from participants, got %+v", result.Participants)
		}
	}
}
