package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedBlockRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	lineCommentRe  = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// ExtractJSON recovers a single JSON value from raw model output that may be
// wrapped in a fenced block, decorated with comments, or surrounded by prose.
// It performs no semantic validation; callers check required fields.
func ExtractJSON(raw string) (string, error) {
	candidate := raw
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}

	// Lower-quality models like to annotate their JSON.
	candidate = lineCommentRe.ReplaceAllString(candidate, "")
	candidate = blockCommentRe.ReplaceAllString(candidate, "")
	candidate = strings.TrimSpace(candidate)

	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	start := strings.IndexAny(candidate, "{[")
	end := strings.LastIndexAny(candidate, "}]")
	if start != -1 && end > start {
		sliced := candidate[start : end+1]
		if json.Valid([]byte(sliced)) {
			return sliced, nil
		}
	}

	return "", &MalformedOutputError{Raw: raw}
}

// DecodeJSON extracts a JSON value from raw model output and unmarshals it
// into v.
func DecodeJSON(raw string, v any) error {
	text, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &MalformedOutputError{Raw: raw}
	}
	return nil
}
