package services

import (
	"reflect"
	"testing"

	"github.com/dentsim/dentsim-backend/internal/domain"
)

func TestParseInterpretation(t *testing.T) {
	t.Run("clean json", func(t *testing.T) {
		got, err := ParseInterpretation(`{
			"interpreted_action": "check_allergies_meds",
			"clinical_intent": "history_taking",
			"priority": "high",
			"safety_concerns": ["penicillin allergy"],
			"explanatory_feedback": "Checking allergies before prescribing is essential.",
			"structured_args": {"drug": "amoxicillin"}
		}`)
		if err != nil {
			t.Fatalf("ParseInterpretation: %v", err)
		}
		if got.InterpretedAction != "check_allergies_meds" {
			t.Fatalf("InterpretedAction = %q", got.InterpretedAction)
		}
		if got.ClinicalIntent != "history_taking" {
			t.Fatalf("ClinicalIntent = %q", got.ClinicalIntent)
		}
		if got.Priority != domain.PriorityHigh {
			t.Fatalf("Priority = %q", got.Priority)
		}
		if !reflect.DeepEqual(got.SafetyConcerns, []string{"penicillin allergy"}) {
			t.Fatalf("SafetyConcerns = %v", got.SafetyConcerns)
		}
		if got.StructuredArgs["drug"] != "amoxicillin" {
			t.Fatalf("StructuredArgs = %v", got.StructuredArgs)
		}
	})

	t.Run("fenced json", func(t *testing.T) {
		got, err := ParseInterpretation("Sure! ```json\n{\"interpreted_action\": \"order_radiograph\"}\n```")
		if err != nil {
			t.Fatalf("ParseInterpretation: %v", err)
		}
		if got.InterpretedAction != "order_radiograph" {
			t.Fatalf("InterpretedAction = %q", got.InterpretedAction)
		}
	})

	t.Run("no json", func(t *testing.T) {
		if _, err := ParseInterpretation("I could not decide."); err == nil {
			t.Fatal("expected error for response without JSON")
		}
	})

	t.Run("greedy candidate that fails to decode", func(t *testing.T) {
		if _, err := ParseInterpretation("prefix {not valid json} suffix"); err == nil {
			t.Fatal("expected decode error for invalid greedy candidate")
		}
	})
}

func TestNormalizeInterpretation(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want domain.Interpretation
	}{
		{
			name: "empty object gets full defaults",
			in:   map[string]any{},
			want: domain.Interpretation{
				InterpretedAction: domain.ActionUnspecified,
				ClinicalIntent:    domain.IntentOther,
				Priority:          domain.PriorityMedium,
				SafetyConcerns:    []string{},
				StructuredArgs:    map[string]any{},
			},
		},
		{
			name: "unknown intent and priority collapse to defaults",
			in: map[string]any{
				"interpreted_action": " diagnose_pulpitis ",
				"clinical_intent":    "telepathy",
				"priority":           "urgent",
			},
			want: domain.Interpretation{
				InterpretedAction: "diagnose_pulpitis",
				ClinicalIntent:    domain.IntentOther,
				Priority:          domain.PriorityMedium,
				SafetyConcerns:    []string{},
				StructuredArgs:    map[string]any{},
			},
		},
		{
			name: "scalar safety concern coerced to list",
			in: map[string]any{
				"interpreted_action": "prescribe_antibiotics",
				"clinical_intent":    "treatment_planning",
				"priority":           "low",
				"safety_concerns":    "allergy unknown",
			},
			want: domain.Interpretation{
				InterpretedAction: "prescribe_antibiotics",
				ClinicalIntent:    "treatment_planning",
				Priority:          domain.PriorityLow,
				SafetyConcerns:    []string{"allergy unknown"},
				StructuredArgs:    map[string]any{},
			},
		},
		{
			name: "mistyped structured args replaced with empty map",
			in: map[string]any{
				"interpreted_action": "gather_medical_history",
				"structured_args":    "not an object",
			},
			want: domain.Interpretation{
				InterpretedAction: "gather_medical_history",
				ClinicalIntent:    domain.IntentOther,
				Priority:          domain.PriorityMedium,
				SafetyConcerns:    []string{},
				StructuredArgs:    map[string]any{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeInterpretation(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("NormalizeInterpretation = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFallbackInterpretation(t *testing.T) {
	got := FallbackInterpretation()
	if got.InterpretedAction != domain.ActionUnspecified {
		t.Fatalf("InterpretedAction = %q", got.InterpretedAction)
	}
	if got.ClinicalIntent != domain.IntentOther || got.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if !reflect.DeepEqual(got.SafetyConcerns, []string{"LLM_interpretation_failed"}) {
		t.Fatalf("SafetyConcerns = %v", got.SafetyConcerns)
	}
	if got.ExplanatoryFeedback == "" {
		t.Fatal("expected non-empty feedback")
	}
}
