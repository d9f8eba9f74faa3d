// Package normalize canonicalizes status and relationship-type values so
// that semantically identical strings collapse to one representation
// regardless of the casing, separators, or synonyms an LLM extraction used.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meetgraph/meetgraph/internal/models"
)

// canonicalStates maps a canonical status to every accepted input variation.
var canonicalStates = map[models.Status][]string{
	models.StatusPlanned:    {"planned", "planning", "not_started", "notstarted", "not started"},
	models.StatusInProgress: {"in_progress", "inprogress", "in progress", "in-progress", "in_process", "active", "ongoing"},
	models.StatusCompleted:  {"completed", "complete", "done", "finished", "closed"},
	models.StatusBlocked:    {"blocked", "on_hold", "onhold", "on hold", "paused", "stuck"},
	models.StatusCancelled:  {"cancelled", "canceled", "abandoned", "stopped"},
}

var stateMapping = buildReverse()

func buildReverse() map[string]models.Status {
	m := make(map[string]models.Status)
	for canonical, variants := range canonicalStates {
		for _, v := range variants {
			m[v] = canonical
		}
	}
	return m
}

// Name normalizes an entity display name to its comparison key: lowercased
// and whitespace-trimmed, per the Entity.NormalizedName contract in §3.
func Name(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Status normalizes a free-text status value to its canonical form. An empty
// input is returned unchanged. Idempotent: Status(Status(s)) == Status(s).
func Status(value string) string {
	if value == "" {
		return value
	}
	key := strings.ToLower(strings.TrimSpace(value))
	if canon, ok := stateMapping[key]; ok {
		return string(canon)
	}
	if canon, ok := stateMapping[strings.NewReplacer("-", "_", " ", "_").Replace(key)]; ok {
		return string(canon)
	}
	return key
}

// DisplayStatus renders a canonical status back to a human-readable label.
func DisplayStatus(value string) string {
	switch models.Status(value) {
	case models.StatusPlanned:
		return "Planned"
	case models.StatusInProgress:
		return "In Progress"
	case models.StatusCompleted:
		return "Completed"
	case models.StatusBlocked:
		return "Blocked"
	case models.StatusCancelled:
		return "Cancelled"
	default:
		return strings.Title(strings.ReplaceAll(value, "_", " "))
	}
}

// StateDict returns a shallow copy of a state map with its well-known fields
// normalized; the input map is not modified. Unknown keys pass through
// untouched.
func StateDict(state models.State) models.State {
	if len(state) == 0 {
		return state
	}
	out := make(models.State, len(state))
	for k, v := range state {
		out[k] = v
	}
	if status, ok := out["status"].(string); ok && status != "" {
		out["status"] = Status(status)
	}
	if progressRaw, ok := out["progress"]; ok && progressRaw != nil {
		progress := strings.TrimSpace(toString(progressRaw))
		progress = strings.ReplaceAll(progress, "complete", "")
		progress = strings.ReplaceAll(progress, "%", "")
		progress = strings.TrimSpace(progress)
		if _, err := strconv.Atoi(progress); err == nil {
			out["progress"] = progress + "%"
		}
	}
	return out
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
