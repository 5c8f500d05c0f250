package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dentsim/dentsim-backend/internal/content"
	"github.com/dentsim/dentsim-backend/internal/data/repos/session"
	"github.com/dentsim/dentsim-backend/internal/platform/dbctx"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
	"github.com/dentsim/dentsim-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	scenario services.ScenarioService
	chats    session.ChatLogRepo
	exams    session.ExamResultRepo
	cases    *content.CaseStore
}

func NewSessionHandler(
	log *logger.Logger,
	scenario services.ScenarioService,
	chats session.ChatLogRepo,
	exams session.ExamResultRepo,
	cases *content.CaseStore,
) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		scenario: scenario,
		chats:    chats,
		exams:    exams,
		cases:    cases,
	}
}

// GET /api/sessions/state?student_id=...&case_id=...
func (h *SessionHandler) GetState(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("student_id is required"))
		return
	}

	state, err := h.scenario.GetState(c.Request.Context(), studentID, c.Query("case_id"))
	if err != nil {
		h.log.Error("Failed to load scenario state", "student_id", studentID, "error", err)
		RespondError(c, http.StatusInternalServerError, "state_load_failed", errors.New("failed to load state"))
		return
	}
	RespondOK(c, gin.H{"student_id": studentID, "state": state})
}

type startSessionRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	CaseID    string `json:"case_id"`
}

// POST /api/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	state, err := h.scenario.StartSession(c.Request.Context(), req.StudentID, req.CaseID)
	if err != nil {
		h.log.Error("Failed to start session", "student_id", req.StudentID, "case_id", req.CaseID, "error", err)
		RespondError(c, http.StatusInternalServerError, "session_start_failed", errors.New("failed to start session"))
		return
	}
	RespondOK(c, gin.H{"student_id": req.StudentID, "state": state})
}

type completeCaseRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// POST /api/sessions/complete
func (h *SessionHandler) CompleteCase(c *gin.Context) {
	var req completeCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.scenario.CompleteCase(c.Request.Context(), req.StudentID)
	if err != nil {
		h.log.Error("Failed to complete case", "student_id", req.StudentID, "error", err)
		RespondError(c, http.StatusInternalServerError, "case_complete_failed", errors.New("failed to complete case"))
		return
	}
	RespondOK(c, gin.H{"result": result})
}

// GET /api/sessions/chat?student_id=...&case_id=...
func (h *SessionHandler) GetChatLog(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("student_id is required"))
		return
	}

	sess, err := h.scenario.CurrentSession(c.Request.Context(), studentID, c.Query("case_id"))
	if err != nil {
		h.log.Error("Failed to resolve session for chat log", "student_id", studentID, "error", err)
		RespondError(c, http.StatusInternalServerError, "chat_load_failed", errors.New("failed to load chat log"))
		return
	}

	logs, err := h.chats.ListBySessionID(dbctx.Context{Ctx: c.Request.Context()}, sess.ID)
	if err != nil {
		h.log.Error("Failed to list chat log", "session_id", sess.ID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "chat_load_failed", errors.New("failed to load chat log"))
		return
	}
	RespondOK(c, gin.H{"session_id": sess.ID, "messages": logs})
}

// GET /api/results?student_id=...
func (h *SessionHandler) ListResults(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("student_id is required"))
		return
	}

	results, err := h.exams.ListByStudent(dbctx.Context{Ctx: c.Request.Context()}, studentID)
	if err != nil {
		h.log.Error("Failed to list exam results", "student_id", studentID, "error", err)
		RespondError(c, http.StatusInternalServerError, "results_load_failed", errors.New("failed to load results"))
		return
	}
	RespondOK(c, gin.H{"student_id": studentID, "results": results})
}

// GET /api/cases
func (h *SessionHandler) ListCases(c *gin.Context) {
	RespondOK(c, gin.H{"cases": h.cases.List(), "default_case_id": h.cases.DefaultCaseID()})
}
