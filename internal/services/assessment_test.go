package services

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dentsim/dentsim-backend/internal/content"
	"github.com/dentsim/dentsim-backend/internal/data/repos/testutil"
	"github.com/dentsim/dentsim-backend/internal/domain"
)

func ruleStoreFromJSON(t *testing.T, body string) *content.RuleStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return content.NewRuleStore(path, testutil.Logger(t))
}

func TestAssessmentEngineEvaluate(t *testing.T) {
	rules := ruleStoreFromJSON(t, `[
		{
			"case_id": "olp_001",
			"rules": [
				{
					"target_action": "check_allergies_meds",
					"score": 5,
					"rule_outcome": "Correct",
					"action_effect": {"score_change": 5}
				},
				{
					"target_action": "bare_rule"
				}
			]
		}
	]`)
	engine := NewAssessmentEngine(rules, testutil.Logger(t))

	t.Run("matched rule projects onto result", func(t *testing.T) {
		got := engine.Evaluate("olp_001", domain.Interpretation{InterpretedAction: "check_allergies_meds"})
		if got.Score != 5 || got.ScoreChange != 5 || got.RuleOutcome != "Correct" {
			t.Fatalf("unexpected result: %+v", got)
		}
		effect, ok := got.ActionEffect.(map[string]any)
		if !ok || effect["score_change"] != float64(5) {
			t.Fatalf("unexpected effect: %v", got.ActionEffect)
		}
	})

	t.Run("unknown action yields default unscored result", func(t *testing.T) {
		got := engine.Evaluate("olp_001", domain.Interpretation{InterpretedAction: "unknown_action"})
		if !reflect.DeepEqual(got, domain.UnscoredResult()) {
			t.Fatalf("got %+v, want unscored default", got)
		}
	})

	t.Run("blank action skips lookup", func(t *testing.T) {
		got := engine.Evaluate("olp_001", domain.Interpretation{InterpretedAction: "   "})
		if !reflect.DeepEqual(got, domain.UnscoredResult()) {
			t.Fatalf("got %+v, want unscored default", got)
		}
	})

	t.Run("missing rule fields get defaults", func(t *testing.T) {
		got := engine.Evaluate("olp_001", domain.Interpretation{InterpretedAction: "bare_rule"})
		if got.Score != 0 || got.ScoreChange != 0 {
			t.Fatalf("unexpected score: %+v", got)
		}
		if got.RuleOutcome != domain.OutcomeUnscored {
			t.Fatalf("RuleOutcome = %q", got.RuleOutcome)
		}
	})

	t.Run("unknown case yields default unscored result", func(t *testing.T) {
		got := engine.Evaluate("missing_case", domain.Interpretation{InterpretedAction: "check_allergies_meds"})
		if !reflect.DeepEqual(got, domain.UnscoredResult()) {
			t.Fatalf("got %+v, want unscored default", got)
		}
	})

	t.Run("evaluation is repeatable", func(t *testing.T) {
		interp := domain.Interpretation{InterpretedAction: "check_allergies_meds"}
		first := engine.Evaluate("olp_001", interp)
		second := engine.Evaluate("olp_001", interp)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("results differ: %+v vs %+v", first, second)
		}
	})
}
