package core

import (
	"encoding/json"
	"strings"
)

// EncodeTags serializes a tag list for the tags column. Blank tags are
// dropped and the rest trimmed; the result is always a JSON array.
func EncodeTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		clean = append(clean, t)
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeTags is the inverse of EncodeTags. Rows written as plain
// comma-separated text are accepted too. It never returns nil.
func DecodeTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			if tags == nil {
				return []string{}
			}
			return tags
		}
	}
	out := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
