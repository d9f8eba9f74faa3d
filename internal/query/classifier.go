package query

import (
	"sort"
	"strings"

	"github.com/meetgraph/meetgraph/internal/models"
)

// intentKeywords is the keyword-rule map driving intent classification,
// generalized from the teacher's internal/agent/classifier.go
// RuleBasedClassifier (agent-type routing keywords) to the query engine's
// seven BI intents, grounded in
// original_source/src/query_engine_v2.py's INTENT_PATTERNS keyword lists.
var intentKeywords = map[models.Intent][]string{
	models.IntentTimeline:     {"timeline", "history", "evolution", "progress", "changes", "evolve", "track"},
	models.IntentBlocker:      {"blocker", "blocked", "blocking", "waiting", "stuck", "impediment", "obstacle"},
	models.IntentStatus:       {"status", "current", "latest", "update", "doing"},
	models.IntentOwnership:    {"owner", "owns", "responsible", "assigned", "team", "lead", "ownership"},
	models.IntentAnalytics:    {"metrics", "analytics", "count", "statistics", "breakdown", "distribution", "many"},
	models.IntentRelationship: {"dependencies", "depends", "related", "connected", "impacts", "affects", "blocks"},
	models.IntentSearch:       {"find", "search", "mentions", "references", "discussions", "about"},
}

// ClassifyIntent scores every intent's keyword list against the query and
// returns the highest-scoring intent, defaulting to IntentSearch at
// confidence 0.5 when nothing matches — ported from
// query_engine_v2.py's _classify_intent_with_confidence, generalized to the
// teacher's score = matches/total_words + matches*0.1 (capped at 1.0)
// formula instead of that function's separate pattern/keyword weights,
// since this system has no compiled-regex pattern set, only the
// keyword-rule map the teacher already uses for routing.
func ClassifyIntent(query string) (models.Intent, float64) {
	lower := strings.ToLower(query)
	words := strings.Fields(lower)
	if len(words) == 0 {
		return models.IntentSearch, 0.5
	}

	type scored struct {
		intent models.Intent
		score  float64
	}
	var scores []scored

	for intent, keywords := range intentKeywords {
		matchCount := 0
		for _, kw := range keywords {
			for _, w := range words {
				if strings.Contains(w, kw) {
					matchCount++
					break
				}
			}
		}
		if matchCount == 0 {
			continue
		}
		score := float64(matchCount)/float64(len(words)) + float64(matchCount)*0.1
		if score > 1.0 {
			score = 1.0
		}
		scores = append(scores, scored{intent: intent, score: score})
	}

	if len(scores) == 0 {
		return models.IntentSearch, 0.5
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	return scores[0].intent, scores[0].score
}
