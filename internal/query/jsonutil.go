package query

import (
	"encoding/json"
	"errors"
	"strings"
)

var errEmptyAnswer = errors.New("llm returned an empty answer")

// unmarshalJSONFences strips a markdown code fence before parsing, the same
// defensive step internal/extractor.cleanJSONResponse and
// internal/processor's cleanJSONFences apply to LLM output.
func unmarshalJSONFences(content string, out interface{}) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}
	s = strings.TrimSpace(s)
	return json.Unmarshal([]byte(s), out)
}
