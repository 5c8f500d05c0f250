package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dentsim/dentsim-backend/internal/data/repos/testutil"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoring_rules.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestRuleStoreFind(t *testing.T) {
	path := writeRules(t, `[
		{
			"case_id": "olp_001",
			"rules": [
				{"target_action": "check_allergies_meds", "score": 5, "rule_outcome": "Correct", "action_effect": {"score_change": 5}},
				{"target_action": "prescribe_antibiotics", "score": -10, "rule_outcome": "Incorrect", "rationale": "no infection present"}
			]
		},
		{
			"case_id": "perio_001",
			"actions": [
				{"target_action": "order_radiograph", "score": 10, "rule_outcome": "Correct"}
			]
		},
		{
			"case_id": "olp_001",
			"rules": [
				{"target_action": "shadowed_action", "score": 99, "rule_outcome": "Correct"}
			]
		}
	]`)
	store := NewRuleStore(path, testutil.Logger(t))

	t.Run("match projects rule fields", func(t *testing.T) {
		rule, ok := store.Find("olp_001", "check_allergies_meds")
		if !ok {
			t.Fatal("expected rule")
		}
		if rule.Score != 5 || rule.RuleOutcome != "Correct" {
			t.Fatalf("unexpected rule: %+v", rule)
		}
		effect, ok := rule.ActionEffect.(map[string]any)
		if !ok || effect["score_change"] != float64(5) {
			t.Fatalf("unexpected effect: %v", rule.ActionEffect)
		}
	})

	t.Run("rationale carried as hints", func(t *testing.T) {
		rule, ok := store.Find("olp_001", "prescribe_antibiotics")
		if !ok {
			t.Fatal("expected rule")
		}
		if rule.Hints != "no infection present" {
			t.Fatalf("Hints = %v", rule.Hints)
		}
	})

	t.Run("actions key accepted as rule list", func(t *testing.T) {
		rule, ok := store.Find("perio_001", "order_radiograph")
		if !ok || rule.Score != 10 {
			t.Fatalf("Find(perio_001) = %+v, %v", rule, ok)
		}
	})

	t.Run("first case entry wins, later duplicate never scanned", func(t *testing.T) {
		if _, ok := store.Find("olp_001", "shadowed_action"); ok {
			t.Fatal("duplicate case entry must not be reachable")
		}
	})

	t.Run("no match within the matched case", func(t *testing.T) {
		if _, ok := store.Find("olp_001", "unknown_action"); ok {
			t.Fatal("expected no rule")
		}
	})

	t.Run("unknown case", func(t *testing.T) {
		if _, ok := store.Find("missing_case", "check_allergies_meds"); ok {
			t.Fatal("expected no rule")
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if _, ok := store.Find("", "check_allergies_meds"); ok {
			t.Fatal("empty case id must not match")
		}
		if _, ok := store.Find("olp_001", ""); ok {
			t.Fatal("empty action must not match")
		}
	})
}

func TestRuleStoreMaxScore(t *testing.T) {
	path := writeRules(t, `[
		{
			"case_id": "olp_001",
			"rules": [
				{"target_action": "a", "score": 10},
				{"target_action": "b", "score": 5},
				{"target_action": "c", "score": -10}
			]
		}
	]`)
	store := NewRuleStore(path, testutil.Logger(t))

	if got := store.MaxScore("olp_001"); got != 15 {
		t.Fatalf("MaxScore = %v, want 15", got)
	}
	if got := store.MaxScore("missing"); got != 0 {
		t.Fatalf("MaxScore(missing) = %v, want 0", got)
	}
}

func TestRuleStoreLoadFailures(t *testing.T) {
	t.Run("missing file yields empty store", func(t *testing.T) {
		store := NewRuleStore(filepath.Join(t.TempDir(), "nope.json"), testutil.Logger(t))
		if !store.Empty() {
			t.Fatal("expected empty store")
		}
		if _, ok := store.Find("olp_001", "anything"); ok {
			t.Fatal("empty store must not match")
		}
	})

	t.Run("malformed json yields empty store", func(t *testing.T) {
		store := NewRuleStore(writeRules(t, `{"not": "a list"`), testutil.Logger(t))
		if !store.Empty() {
			t.Fatal("expected empty store")
		}
	})

	t.Run("non-list top level yields empty store", func(t *testing.T) {
		store := NewRuleStore(writeRules(t, `{"cases": []}`), testutil.Logger(t))
		if !store.Empty() {
			t.Fatal("expected empty store")
		}
	})

	t.Run("malformed rule list degrades to not found", func(t *testing.T) {
		store := NewRuleStore(writeRules(t, `[{"case_id": "olp_001", "rules": "bogus"}]`), testutil.Logger(t))
		if _, ok := store.Find("olp_001", "anything"); ok {
			t.Fatal("malformed rule list must yield not found")
		}
	})
}
