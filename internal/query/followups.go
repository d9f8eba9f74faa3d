package query

import "github.com/meetgraph/meetgraph/internal/models"

// followUpSuggestions proposes 1-3 deterministic next questions, ported from
// query_engine_v2.py's _generate_follow_up_suggestions.
func followUpSuggestions(qc *queryContext) []string {
	var suggestions []string

	switch qc.Intent {
	case models.IntentTimeline:
		suggestions = append(suggestions,
			"What caused the most recent change?",
			"Who was involved in these transitions?")
	case models.IntentBlocker:
		suggestions = append(suggestions,
			"What is blocking the oldest unresolved item?",
			"Who can unblock these items?")
	case models.IntentStatus:
		suggestions = append(suggestions,
			"What changed since the last update?",
			"What is blocking progress, if anything?")
	case models.IntentOwnership:
		suggestions = append(suggestions, "Has ownership changed recently?")
	case models.IntentAnalytics:
		suggestions = append(suggestions,
			"How does this compare to last quarter?",
			"Which entities are driving the blocked count?")
	case models.IntentRelationship:
		suggestions = append(suggestions, "Are any of these dependencies blocking progress?")
	default:
		suggestions = append(suggestions, "Would you like a timeline of any of these entities?")
	}

	if len(qc.Entities) == 1 {
		suggestions = append(suggestions, "What is the full history of "+qc.Entities[0].Name+"?")
	}

	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions
}
