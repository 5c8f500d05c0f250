package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/gemini"
)

// fallbackFeedback is what the student sees when interpretation failed
// entirely; the pipeline still completes with an unscored result.
const fallbackFeedback = "Your action could not be fully interpreted. Please clarify or try a more specific step."

const interpretationFailedConcern = "LLM_interpretation_failed"

// FallbackInterpretation is the fixed conservative interpretation used
// whenever the model output could not be turned into a valid one. It is
// always well-typed, so the assessment engine and the state merge treat it
// as a harmless no-op.
func FallbackInterpretation() domain.Interpretation {
	return domain.Interpretation{
		InterpretedAction:   domain.ActionUnspecified,
		ClinicalIntent:      domain.IntentOther,
		Priority:            domain.PriorityMedium,
		SafetyConcerns:      []string{interpretationFailedConcern},
		ExplanatoryFeedback: fallbackFeedback,
		StructuredArgs:      map[string]any{},
	}
}

// ParseInterpretation extracts and normalizes an Interpretation from raw
// model output. It only errors when no JSON object could be recovered at
// all; callers convert that error into FallbackInterpretation.
func ParseInterpretation(raw string) (domain.Interpretation, error) {
	jsonStr, ok := gemini.ExtractJSONObject(raw)
	if !ok {
		return domain.Interpretation{}, fmt.Errorf("no JSON object found in model response")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return domain.Interpretation{}, fmt.Errorf("decode model JSON: %w", err)
	}

	return NormalizeInterpretation(data), nil
}

// NormalizeInterpretation repairs a decoded model object field by field so
// the result is always fully populated and well-typed: strings trimmed, the
// action key defaulted to the sentinel, enums constrained to their member
// sets, safety concerns coerced to a string slice and structured args to a
// map.
func NormalizeInterpretation(data map[string]any) domain.Interpretation {
	out := domain.Interpretation{
		InterpretedAction:   strings.TrimSpace(stringField(data, "interpreted_action")),
		ClinicalIntent:      strings.TrimSpace(stringField(data, "clinical_intent")),
		Priority:            strings.TrimSpace(stringField(data, "priority")),
		SafetyConcerns:      concernList(data["safety_concerns"]),
		ExplanatoryFeedback: strings.TrimSpace(stringField(data, "explanatory_feedback")),
		StructuredArgs:      mapField(data, "structured_args"),
	}

	if out.InterpretedAction == "" {
		out.InterpretedAction = domain.ActionUnspecified
	}
	if !domain.ClinicalIntents[out.ClinicalIntent] {
		out.ClinicalIntent = domain.IntentOther
	}
	switch out.Priority {
	case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
	default:
		out.Priority = domain.PriorityMedium
	}

	return out
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

func mapField(data map[string]any, key string) map[string]any {
	if data != nil {
		if m, ok := data[key].(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// concernList coerces the safety_concerns value into a string slice. A bare
// scalar becomes a one-element list rather than being dropped.
func concernList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
				continue
			}
			out = append(out, strings.TrimSpace(fmt.Sprint(item)))
		}
		return out
	case []string:
		return t
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return []string{}
	default:
		return []string{strings.TrimSpace(fmt.Sprint(t))}
	}
}
