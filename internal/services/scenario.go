package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dentsim/dentsim-backend/internal/content"
	"github.com/dentsim/dentsim-backend/internal/data/repos/session"
	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/dbctx"
	"github.com/dentsim/dentsim-backend/internal/platform/keyedmutex"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

// ScenarioService owns per-student simulation state. Session rows are
// append-only; the durable current_score column is the single source of
// truth for the score, and the JSON blob carries everything else. All
// read-modify-write work for one student runs under a per-student lock plus
// a database transaction, so concurrent updates can neither lose score
// increments nor interleave merges.
type ScenarioService interface {
	// GetState retrieves (or lazily creates) the current state for a student.
	// When caseID is non-empty, the most recent session for that case is
	// selected; otherwise the most recent session overall.
	GetState(ctx context.Context, studentID, caseID string) (map[string]any, error)
	// UpdateState applies an additive state delta: a numeric score_change is
	// added to the durable score, every other key merges into the blob.
	UpdateState(ctx context.Context, studentID string, updates map[string]any, caseID string) error
	// CurrentSession returns the session row that GetState would operate on,
	// creating it if necessary.
	CurrentSession(ctx context.Context, studentID, caseID string) (*domain.StudentSession, error)
	// StartSession always appends a fresh session row for the case,
	// superseding any earlier run of the same case.
	StartSession(ctx context.Context, studentID, caseID string) (map[string]any, error)
	// CompleteCase snapshots the student's current session into an exam
	// result.
	CompleteCase(ctx context.Context, studentID string) (*domain.ExamResult, error)
}

type scenarioService struct {
	db       *gorm.DB
	log      *logger.Logger
	sessions session.StudentSessionRepo
	exams    session.ExamResultRepo
	cases    *content.CaseStore
	rules    *content.RuleStore
	locks    *keyedmutex.Registry
}

func NewScenarioService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessions session.StudentSessionRepo,
	exams session.ExamResultRepo,
	cases *content.CaseStore,
	rules *content.RuleStore,
) ScenarioService {
	return &scenarioService{
		db:       db,
		log:      baseLog.With("service", "ScenarioService"),
		sessions: sessions,
		exams:    exams,
		cases:    cases,
		rules:    rules,
		locks:    keyedmutex.New(),
	}
}

func (s *scenarioService) GetState(ctx context.Context, studentID, caseID string) (map[string]any, error) {
	if studentID == "" {
		return nil, fmt.Errorf("student id required")
	}

	s.locks.Lock(studentID)
	defer s.locks.Unlock(studentID)

	var state map[string]any
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		_, st, err := s.ensureSession(dbc, studentID, caseID)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *scenarioService) CurrentSession(ctx context.Context, studentID, caseID string) (*domain.StudentSession, error) {
	if studentID == "" {
		return nil, fmt.Errorf("student id required")
	}

	s.locks.Lock(studentID)
	defer s.locks.Unlock(studentID)

	var sess *domain.StudentSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, _, err := s.ensureSession(dbc, studentID, caseID)
		if err != nil {
			return err
		}
		sess = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *scenarioService) StartSession(ctx context.Context, studentID, caseID string) (map[string]any, error) {
	if studentID == "" {
		return nil, fmt.Errorf("student id required")
	}
	resolved := caseID
	if resolved == "" {
		resolved = s.cases.DefaultCaseID()
	}
	if resolved == "" {
		return nil, fmt.Errorf("no case available to start")
	}

	s.locks.Lock(studentID)
	defer s.locks.Unlock(studentID)

	var state map[string]any
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		_, st, err := s.createSession(dbc, studentID, resolved)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *scenarioService) UpdateState(ctx context.Context, studentID string, updates map[string]any, caseID string) error {
	if studentID == "" || updates == nil {
		return nil
	}

	s.locks.Lock(studentID)
	defer s.locks.Unlock(studentID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		sess, state, err := s.ensureSession(dbc, studentID, caseID)
		if err != nil {
			return err
		}

		newScore := sess.CurrentScore
		if delta, ok := asNumber(updates["score_change"]); ok {
			if err := s.sessions.AddScore(dbc, sess.ID, delta); err != nil {
				return fmt.Errorf("apply score change: %w", err)
			}
			newScore += delta
		}

		for k, v := range updates {
			// The durable score only moves through score_change; a literal
			// current_score in an update payload must not clobber it.
			if k == "score_change" || k == "current_score" {
				continue
			}
			state[k] = mergeValue(state[k], v)
		}

		resolved := s.resolveCaseID(caseID, sess, state)
		state["case_id"] = resolved
		state["current_score"] = newScore

		fields := map[string]any{}
		blob, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		fields["state_json"] = datatypes.JSON(blob)
		if sess.CaseID != resolved {
			fields["case_id"] = resolved
		}
		if err := s.sessions.UpdateFields(dbc, sess.ID, fields); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
		return nil
	})
}

func (s *scenarioService) CompleteCase(ctx context.Context, studentID string) (*domain.ExamResult, error) {
	if studentID == "" {
		return nil, fmt.Errorf("student id required")
	}

	s.locks.Lock(studentID)
	defer s.locks.Unlock(studentID)

	var result *domain.ExamResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		sess, state, err := s.ensureSession(dbc, studentID, "")
		if err != nil {
			return err
		}

		details, err := json.Marshal(map[string]any{
			"session_id":  sess.ID,
			"final_state": state,
		})
		if err != nil {
			return fmt.Errorf("encode exam details: %w", err)
		}

		row, err := s.exams.Create(dbc, &domain.ExamResult{
			StudentID:   studentID,
			CaseID:      sess.CaseID,
			Score:       sess.CurrentScore,
			MaxScore:    s.rules.MaxScore(sess.CaseID),
			DetailsJSON: datatypes.JSON(details),
		})
		if err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureSession selects the current session (most recent for the case when
// one is named, most recent overall otherwise), creating one when none
// exists, and returns it with its repaired state map. Repairs — unreadable
// blob, drifted case_id, stale cached score — are persisted immediately.
func (s *scenarioService) ensureSession(dbc dbctx.Context, studentID, caseID string) (*domain.StudentSession, map[string]any, error) {
	var (
		sess *domain.StudentSession
		err  error
	)
	if caseID != "" {
		sess, err = s.sessions.GetLatestByStudentAndCase(dbc, studentID, caseID)
	} else {
		sess, err = s.sessions.GetLatestByStudent(dbc, studentID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("select session: %w", err)
	}

	if sess == nil {
		return s.createSession(dbc, studentID, s.resolveCaseID(caseID, nil, nil))
	}

	state, repaired := s.decodeState(sess)

	if got, _ := state["case_id"].(string); got != sess.CaseID {
		state["case_id"] = sess.CaseID
		repaired = true
	}
	if cached, ok := asNumber(state["current_score"]); !ok || cached != sess.CurrentScore {
		state["current_score"] = sess.CurrentScore
		repaired = true
	}

	if repaired {
		blob, err := json.Marshal(state)
		if err != nil {
			return nil, nil, fmt.Errorf("encode repaired state: %w", err)
		}
		if err := s.sessions.UpdateFields(dbc, sess.ID, map[string]any{"state_json": datatypes.JSON(blob)}); err != nil {
			return nil, nil, fmt.Errorf("persist repaired state: %w", err)
		}
	}

	return sess, state, nil
}

func (s *scenarioService) createSession(dbc dbctx.Context, studentID, caseID string) (*domain.StudentSession, map[string]any, error) {
	if caseID == "" {
		return nil, nil, fmt.Errorf("no case available for new session")
	}

	state := s.seedState(caseID)
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, nil, fmt.Errorf("encode seed state: %w", err)
	}

	row, err := s.sessions.Create(dbc, &domain.StudentSession{
		StudentID:    studentID,
		CaseID:       caseID,
		CurrentScore: 0,
		StateJSON:    datatypes.JSON(blob),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("Created new scenario session",
		"student_id", studentID,
		"case_id", caseID,
		"session_id", row.ID.String(),
	)
	return row, state, nil
}

// seedState builds the initial blob for a case from its definition.
func (s *scenarioService) seedState(caseID string) map[string]any {
	state := map[string]any{
		"case_id":       caseID,
		"current_score": float64(0),
	}
	def, ok := s.cases.Get(caseID)
	if !ok {
		s.log.Warn("Case definition missing, seeding bare state", "case_id", caseID)
		return state
	}
	if def.Patient != nil {
		patient := make(map[string]any, len(def.Patient))
		for k, v := range def.Patient {
			patient[k] = v
		}
		state["patient"] = patient
	}
	if def.Name != "" {
		state["case_name"] = def.Name
	}
	if def.Difficulty != "" {
		state["case_difficulty"] = def.Difficulty
	}
	return state
}

// decodeState parses a session's blob, rebuilding from the case definition
// when the blob is unreadable or empty. The second return reports whether a
// rebuild happened.
func (s *scenarioService) decodeState(sess *domain.StudentSession) (map[string]any, bool) {
	var state map[string]any
	if len(sess.StateJSON) > 0 {
		if err := json.Unmarshal(sess.StateJSON, &state); err != nil {
			s.log.Warn("Stored state blob unreadable, rebuilding from case definition",
				"session_id", sess.ID.String(),
				"error", err,
			)
			state = nil
		}
	}
	if len(state) == 0 {
		return s.seedState(sess.CaseID), true
	}
	return state, false
}

// resolveCaseID picks the authoritative case id by precedence:
// explicit request > session row > state blob > configured default.
func (s *scenarioService) resolveCaseID(explicit string, sess *domain.StudentSession, state map[string]any) string {
	if explicit != "" {
		return explicit
	}
	if sess != nil && sess.CaseID != "" {
		return sess.CaseID
	}
	if state != nil {
		if fromBlob, _ := state["case_id"].(string); fromBlob != "" {
			return fromBlob
		}
	}
	return s.cases.DefaultCaseID()
}
