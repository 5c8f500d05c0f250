package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"github.com/dentsim/dentsim-backend/internal/data/repos/session"
	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/dbctx"
	"github.com/dentsim/dentsim-backend/internal/platform/gemini"
	"github.com/dentsim/dentsim-backend/internal/platform/keyedmutex"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

// AgentService runs the hybrid pipeline for one student action: model
// interpretation, rule-based scoring, feedback composition, and the state
// update derived from the matched rule's effect. Model and parse failures
// never surface to the caller; they degrade to the conservative fallback
// interpretation so the simulation keeps moving.
type AgentService interface {
	ProcessAction(ctx context.Context, studentID, rawAction string) (*domain.ActionResult, error)
}

type agentService struct {
	log      *logger.Logger
	gen      gemini.Generator
	engine   *AssessmentEngine
	scenario ScenarioService
	chats    session.ChatLogRepo
	locks    *keyedmutex.Registry
}

func NewAgentService(
	baseLog *logger.Logger,
	gen gemini.Generator,
	engine *AssessmentEngine,
	scenario ScenarioService,
	chats session.ChatLogRepo,
) AgentService {
	return &agentService{
		log:      baseLog.With("service", "AgentService"),
		gen:      gen,
		engine:   engine,
		scenario: scenario,
		chats:    chats,
		locks:    keyedmutex.New(),
	}
}

func (s *agentService) ProcessAction(ctx context.Context, studentID, rawAction string) (*domain.ActionResult, error) {
	if studentID == "" {
		return nil, fmt.Errorf("student id required")
	}

	// Serializes submissions per student so actions score against the state
	// their author saw. This registry is separate from the scenario store's
	// internal one; the store's lock is taken and released inside each call.
	s.locks.Lock(studentID)
	defer s.locks.Unlock(studentID)

	state, err := s.scenario.GetState(ctx, studentID, "")
	if err != nil {
		return nil, fmt.Errorf("load scenario state: %w", err)
	}
	caseID, _ := state["case_id"].(string)

	interp := s.interpret(ctx, rawAction, state)
	assessment := s.engine.Evaluate(caseID, interp)
	feedback := composeFinalFeedback(interp, assessment)

	if updates := effectUpdates(assessment.ActionEffect); len(updates) > 0 {
		if err := s.scenario.UpdateState(ctx, studentID, updates, caseID); err != nil {
			s.log.Error("Failed to apply action effect to scenario state",
				"student_id", studentID,
				"case_id", caseID,
				"error", err,
			)
		}
	}

	updated, err := s.scenario.GetState(ctx, studentID, "")
	if err != nil {
		s.log.Warn("Failed to re-read scenario state after update", "student_id", studentID, "error", err)
		updated = state
	}

	result := &domain.ActionResult{
		StudentID:      studentID,
		CaseID:         caseID,
		Interpretation: interp,
		Assessment:     assessment,
		FinalFeedback:  feedback,
		UpdatedState:   updated,
	}

	s.logExchange(ctx, studentID, caseID, rawAction, result)

	return result, nil
}

// interpret calls the model and parses its reply, falling back to the
// conservative default interpretation on any failure.
func (s *agentService) interpret(ctx context.Context, rawAction string, state map[string]any) domain.Interpretation {
	raw, err := s.gen.Generate(ctx, BuildUserPrompt(rawAction, state))
	if err != nil {
		s.log.Error("Model call failed, using fallback interpretation", "error", err)
		return FallbackInterpretation()
	}

	interp, err := ParseInterpretation(raw)
	if err != nil {
		s.log.Error("Model reply unparseable, using fallback interpretation", "error", err)
		return FallbackInterpretation()
	}
	return interp
}

// logExchange appends the student's message and the composed feedback to the
// session transcript. Best effort; a transcript write must not fail the
// action.
func (s *agentService) logExchange(ctx context.Context, studentID, caseID, rawAction string, result *domain.ActionResult) {
	sess, err := s.scenario.CurrentSession(ctx, studentID, caseID)
	if err != nil || sess == nil {
		s.log.Warn("Skipping chat log, no session", "student_id", studentID, "error", err)
		return
	}

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.chats.Append(dbc, &domain.ChatLog{
		SessionID: sess.ID,
		Role:      domain.ChatRoleStudent,
		Content:   rawAction,
	}); err != nil {
		s.log.Warn("Failed to append student chat log", "session_id", sess.ID.String(), "error", err)
		return
	}

	meta, err := json.Marshal(map[string]any{
		"llm_interpretation": result.Interpretation,
		"assessment":         result.Assessment,
	})
	if err != nil {
		meta = nil
	}
	if _, err := s.chats.Append(dbc, &domain.ChatLog{
		SessionID:    sess.ID,
		Role:         domain.ChatRoleAssistant,
		Content:      result.FinalFeedback,
		MetadataJSON: datatypes.JSON(meta),
	}); err != nil {
		s.log.Warn("Failed to append assistant chat log", "session_id", sess.ID.String(), "error", err)
	}
}

// effectUpdates extracts a state-update mapping from a rule's action
// effect. The effect may be the update mapping itself, or carry it under a
// legacy wrapper key.
func effectUpdates(effect any) map[string]any {
	m, ok := effect.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{"state_updates", "state_update", "new_state_data"} {
		if wrapped, ok := m[key].(map[string]any); ok && len(wrapped) > 0 {
			return wrapped
		}
	}
	return m
}

// composeFinalFeedback blends the model's explanation with the objective
// scoring outcome into one learner-facing message.
func composeFinalFeedback(interp domain.Interpretation, assessment domain.AssessmentResult) string {
	var parts []string

	if explanation := strings.TrimSpace(interp.ExplanatoryFeedback); explanation != "" {
		parts = append(parts, explanation)
	} else {
		parts = append(parts, fmt.Sprintf("Interpreted your action as: %s.", interp.InterpretedAction))
	}

	parts = append(parts, fmt.Sprintf("Objective score: %s.", formatScore(assessment.Score)))
	if assessment.RuleOutcome != "" {
		parts = append(parts, fmt.Sprintf("Outcome: %s.", assessment.RuleOutcome))
	}

	if len(interp.SafetyConcerns) > 0 {
		parts = append(parts, "Safety considerations: "+strings.Join(interp.SafetyConcerns, "; ")+".")
	}

	if hint := hintText(assessment.Hints); hint != "" {
		parts = append(parts, "Tip: "+hint)
	}

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func hintText(hints any) string {
	switch v := hints.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
		return strings.Join(items, "; ")
	case []string:
		return strings.Join(v, "; ")
	default:
		return fmt.Sprint(v)
	}
}

// formatScore renders whole-number scores without a trailing ".0".
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
