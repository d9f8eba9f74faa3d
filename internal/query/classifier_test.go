package query

import (
	"testing"

	"github.com/meetgraph/meetgraph/internal/models"
)

func TestClassifyIntentTimeline(t *testing.T) {
	intent, score := ClassifyIntent("what is the history and evolution of this project")
	if intent != models.IntentTimeline {
		t.Fatalf("expected timeline intent, got %v (score %v)", intent, score)
	}
	if score <= 0 {
		t.Fatalf("expected positive score, got %v", score)
	}
}

func TestClassifyIntentBlocker(t *testing.T) {
	intent, _ := ClassifyIntent("why is the checkout feature blocked and stuck")
	if intent != models.IntentBlocker {
		t.Fatalf("expected blocker intent, got %v", intent)
	}
}

func TestClassifyIntentDefaultsToSearchOnNoMatch(t *testing.T) {
	intent, score := ClassifyIntent("xyzzy plugh qwfp")
	if intent != models.IntentSearch || score != 0.5 {
		t.Fatalf("expected default search@0.5, got %v@%v", intent, score)
	}
}

func TestClassifyIntentEmptyQuery(t *testing.T) {
	intent, score := ClassifyIntent("")
	if intent != models.IntentSearch || score != 0.5 {
		t.Fatalf("expected default search@0.5 for empty query, got %v@%v", intent, score)
	}
}
