package normalize

import (
	"testing"

	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestStatusCanonicalizesAliases(t *testing.T) {
	cases := map[string]string{
		"planning":       "planned",
		"not started":    "planned",
		"in progress":    "in_progress",
		"in-progress":    "in_progress",
		"active":         "in_progress",
		"done":           "completed",
		"closed":         "completed",
		"on hold":        "blocked",
		"stuck":          "blocked",
		"canceled":       "cancelled",
		"abandoned":      "cancelled",
		"already_canonical_value": "already_canonical_value",
	}
	for in, want := range cases {
		assert.Equal(t, want, Status(in), "input=%q", in)
	}
}

func TestStatusIdempotent(t *testing.T) {
	for _, s := range []string{"planning", "In Progress", "DONE", "stuck", "xyz"} {
		once := Status(s)
		twice := Status(once)
		assert.Equal(t, once, twice, "Status must be idempotent for %q", s)
	}
}

func TestStatusEmptyPassesThrough(t *testing.T) {
	assert.Equal(t, "", Status(""))
}

func TestStateDictNormalizesStatusAndProgress(t *testing.T) {
	in := models.State{"status": "in planning", "progress": "30% complete"}
	// "in planning" isn't a listed alias, falls through lowercase/trim unchanged.
	out := StateDict(in)
	assert.Equal(t, "in planning", out["status"])
	assert.Equal(t, "30%", out["progress"])
}

func TestStateDictNormalizesKnownStatusAlias(t *testing.T) {
	in := models.State{"status": "Planning"}
	out := StateDict(in)
	assert.Equal(t, "planned", out["status"])
}

func TestStateDictDoesNotMutateInput(t *testing.T) {
	in := models.State{"status": "Planning"}
	_ = StateDict(in)
	assert.Equal(t, "Planning", in["status"])
}
