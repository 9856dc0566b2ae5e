package nutrition

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InferredTags is the answer of an inferred-tags provider for one source.
type InferredTags struct {
	Preferences TagSet `json:"dietary_preferences"`
	Health      TagSet `json:"health_conditions"`
}

// DecodeInferredTags extracts the first JSON object from a model response
// (which may be wrapped in prose or a markdown fence) and keeps only tags
// from the known vocabularies.
func DecodeInferredTags(raw string) (InferredTags, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || start > end {
		return InferredTags{}, fmt.Errorf("could not find JSON object in response: %s", raw)
	}

	var out InferredTags
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return InferredTags{}, fmt.Errorf("failed to unmarshal inferred tags: %w", err)
	}
	out.Preferences = out.Preferences.Intersect(KnownPreferences)
	out.Health = out.Health.Intersect(KnownHealth)
	return out, nil
}
