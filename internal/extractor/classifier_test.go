package extractor

import (
	"testing"

	"github.com/meetgraph/meetgraph/internal/models"
)

func TestClassifyMeetingTypeStandup(t *testing.T) {
	transcript := "Daily standup: yesterday I finished the API work, today I'm blocked on review."
	if got := ClassifyMeetingType(transcript); got != models.MeetingStandup {
		t.Fatalf("expected standup classification, got %q", got)
	}
}

func TestClassifyMeetingTypeNoMatchDefaultsToWorking(t *testing.T) {
	if got := ClassifyMeetingType("The weather was nice outside today."); got != models.MeetingWorking {
		t.Fatalf("expected default working classification, got %q", got)
	}
}
