package services

import (
	"strings"

	"github.com/dentsim/dentsim-backend/internal/content"
	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

// AssessmentEngine scores normalized actions against the case rule table.
// Evaluation is a pure function of the (immutable) rule store and its two
// arguments; it never errors, and anything unmatchable degrades to the
// default unscored result.
type AssessmentEngine struct {
	log   *logger.Logger
	rules *content.RuleStore
}

func NewAssessmentEngine(rules *content.RuleStore, baseLog *logger.Logger) *AssessmentEngine {
	return &AssessmentEngine{
		log:   baseLog.With("service", "AssessmentEngine"),
		rules: rules,
	}
}

func (e *AssessmentEngine) Evaluate(caseID string, interp domain.Interpretation) domain.AssessmentResult {
	action := strings.TrimSpace(interp.InterpretedAction)
	if action == "" {
		return domain.UnscoredResult()
	}

	rule, ok := e.rules.Find(caseID, action)
	if !ok {
		return domain.UnscoredResult()
	}

	outcome := rule.RuleOutcome
	if outcome == "" {
		outcome = domain.OutcomeUnscored
	}

	return domain.AssessmentResult{
		Score:        rule.Score,
		ScoreChange:  rule.Score,
		RuleOutcome:  outcome,
		ActionEffect: rule.ActionEffect,
		Hints:        rule.Hints,
	}
}

// MaxScore reports the best reachable total for a case, for exam snapshots.
func (e *AssessmentEngine) MaxScore(caseID string) float64 {
	return e.rules.MaxScore(caseID)
}
