package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dentsim/dentsim-backend/internal/data/repos/session"
	"github.com/dentsim/dentsim-backend/internal/data/repos/testutil"
	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/dbctx"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newAgentFixture(t *testing.T, gen *stubGenerator) (AgentService, *scenarioFixture, session.ChatLogRepo) {
	t.Helper()
	f := newScenarioFixture(t)
	log := testutil.Logger(t)
	chats := session.NewChatLogRepo(f.db, log)

	rules := ruleStoreFromJSON(t, `[
		{
			"case_id": "olp_001",
			"rules": [
				{
					"target_action": "check_allergies_meds",
					"score": 5,
					"rule_outcome": "Correct",
					"action_effect": {
						"score_change": 5,
						"revealed_findings": ["no known drug allergies"]
					},
					"hints": "Always confirm allergies before prescribing."
				}
			]
		}
	]`)
	engine := NewAssessmentEngine(rules, log)
	agent := NewAgentService(log, gen, engine, f.svc, chats)
	return agent, f, chats
}

func TestAgentProcessActionScoredPath(t *testing.T) {
	gen := &stubGenerator{reply: "Sure! ```json\n" + `{
		"interpreted_action": "check_allergies_meds",
		"clinical_intent": "history_taking",
		"priority": "high",
		"safety_concerns": [],
		"explanatory_feedback": "You verified the allergy history first."
	}` + "\n```"}
	agent, f, chats := newAgentFixture(t, gen)
	ctx := context.Background()

	result, err := agent.ProcessAction(ctx, "u1", "Hastanın alerji geçmişini soruyorum.")
	if err != nil {
		t.Fatalf("ProcessAction: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d", gen.calls)
	}
	if result.CaseID != "olp_001" {
		t.Fatalf("CaseID = %q", result.CaseID)
	}
	if result.Interpretation.InterpretedAction != "check_allergies_meds" {
		t.Fatalf("InterpretedAction = %q", result.Interpretation.InterpretedAction)
	}
	if result.Assessment.Score != 5 || result.Assessment.RuleOutcome != "Correct" {
		t.Fatalf("unexpected assessment: %+v", result.Assessment)
	}

	for _, want := range []string{
		"You verified the allergy history first.",
		"Objective score: 5.",
		"Outcome: Correct.",
		"Tip: Always confirm allergies before prescribing.",
	} {
		if !strings.Contains(result.FinalFeedback, want) {
			t.Fatalf("feedback %q missing %q", result.FinalFeedback, want)
		}
	}

	// Rule effect flowed into the persisted state.
	if result.UpdatedState["current_score"] != float64(5) {
		t.Fatalf("updated score = %v", result.UpdatedState["current_score"])
	}
	findings, ok := result.UpdatedState["revealed_findings"].([]any)
	if !ok || len(findings) != 1 {
		t.Fatalf("revealed_findings = %v", result.UpdatedState["revealed_findings"])
	}

	// Both sides of the exchange are in the transcript.
	sess, err := f.sessions.GetLatestByStudent(dbctx.Context{Ctx: ctx}, "u1")
	if err != nil || sess == nil {
		t.Fatalf("GetLatestByStudent: %v", err)
	}
	logs, err := chats.ListBySessionID(dbctx.Context{Ctx: ctx}, sess.ID)
	if err != nil {
		t.Fatalf("ListBySessionID: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("chat log count = %d, want 2", len(logs))
	}
	if logs[0].Role != domain.ChatRoleStudent || logs[1].Role != domain.ChatRoleAssistant {
		t.Fatalf("chat roles = %q, %q", logs[0].Role, logs[1].Role)
	}
	if logs[1].Content != result.FinalFeedback {
		t.Fatalf("assistant content mismatch")
	}
}

func TestAgentProcessActionModelFailureFallsBack(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream unavailable")}
	agent, _, _ := newAgentFixture(t, gen)

	result, err := agent.ProcessAction(context.Background(), "u1", "do something")
	if err != nil {
		t.Fatalf("ProcessAction must not fail on model errors: %v", err)
	}
	if result.Interpretation.InterpretedAction != domain.ActionUnspecified {
		t.Fatalf("InterpretedAction = %q", result.Interpretation.InterpretedAction)
	}
	if result.Assessment.RuleOutcome != domain.OutcomeUnscored {
		t.Fatalf("RuleOutcome = %q", result.Assessment.RuleOutcome)
	}
	for _, want := range []string{
		"Your action could not be fully interpreted.",
		"Objective score: 0.",
		"Outcome: Unscored.",
		"Safety considerations: LLM_interpretation_failed.",
	} {
		if !strings.Contains(result.FinalFeedback, want) {
			t.Fatalf("feedback %q missing %q", result.FinalFeedback, want)
		}
	}
	if result.UpdatedState["current_score"] != float64(0) {
		t.Fatalf("score must stay 0, got %v", result.UpdatedState["current_score"])
	}
}

func TestAgentProcessActionUnparseableReplyFallsBack(t *testing.T) {
	gen := &stubGenerator{reply: "I am not sure what to do."}
	agent, _, _ := newAgentFixture(t, gen)

	result, err := agent.ProcessAction(context.Background(), "u1", "do something")
	if err != nil {
		t.Fatalf("ProcessAction: %v", err)
	}
	if result.Interpretation.InterpretedAction != domain.ActionUnspecified {
		t.Fatalf("InterpretedAction = %q", result.Interpretation.InterpretedAction)
	}
}

func TestEffectUpdates(t *testing.T) {
	t.Run("non-map effect yields nothing", func(t *testing.T) {
		if got := effectUpdates("scalar"); got != nil {
			t.Fatalf("got %v", got)
		}
		if got := effectUpdates(nil); got != nil {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("map effect used directly", func(t *testing.T) {
		got := effectUpdates(map[string]any{"score_change": float64(5)})
		if got["score_change"] != float64(5) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("legacy wrapper keys unwrapped", func(t *testing.T) {
		for _, key := range []string{"state_updates", "state_update", "new_state_data"} {
			got := effectUpdates(map[string]any{key: map[string]any{"phase": "done"}})
			if got["phase"] != "done" {
				t.Fatalf("wrapper %q not unwrapped: %v", key, got)
			}
		}
	})
}

func TestComposeFinalFeedback(t *testing.T) {
	t.Run("no explanation falls back to interpreted action", func(t *testing.T) {
		got := composeFinalFeedback(
			domain.Interpretation{InterpretedAction: "order_radiograph"},
			domain.AssessmentResult{Score: 10, RuleOutcome: "Correct"},
		)
		want := "Interpreted your action as: order_radiograph. Objective score: 10. Outcome: Correct."
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	t.Run("list hints joined with semicolons", func(t *testing.T) {
		got := composeFinalFeedback(
			domain.Interpretation{InterpretedAction: "x", ExplanatoryFeedback: "Done."},
			domain.AssessmentResult{Score: 0, RuleOutcome: "Unscored", Hints: []any{"one", "two"}},
		)
		if !strings.Contains(got, "Tip: one; two") {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("fractional scores keep their decimals", func(t *testing.T) {
		got := composeFinalFeedback(
			domain.Interpretation{InterpretedAction: "x"},
			domain.AssessmentResult{Score: 2.5, RuleOutcome: "Partial"},
		)
		if !strings.Contains(got, "Objective score: 2.5.") {
			t.Fatalf("got %q", got)
		}
	})
}
