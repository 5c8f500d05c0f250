package gemini

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Pre-compiled patterns for pulling a JSON object out of model output that
// arrives wrapped in markdown fences or surrounded by commentary.
var (
	// taggedFencePattern matches ```json { ... } ```.
	taggedFencePattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	// bareFencePattern matches ``` { ... } ```.
	bareFencePattern = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
)

// ExtractJSONObject extracts a single JSON object from raw model output.
// Attempts, first success wins:
//  1. the whole trimmed text parses as JSON;
//  2. a fenced block containing an object (language-tagged fences before bare
//     ones), where the candidate must itself parse;
//  3. the greedy span from the first '{' to the last '}', returned without
//     validation — callers must treat it as best-effort and re-validate.
//
// Returns ("", false) when no candidate exists. Never errors on malformed
// input; absence is the only failure signal.
func ExtractJSONObject(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if json.Valid([]byte(text)) {
		return text, true
	}

	for _, pat := range []*regexp.Regexp{taggedFencePattern, bareFencePattern} {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1]), true
	}

	return "", false
}
