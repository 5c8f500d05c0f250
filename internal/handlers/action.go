package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dentsim/dentsim-backend/internal/platform/logger"
	"github.com/dentsim/dentsim-backend/internal/services"
)

type ActionHandler struct {
	log   *logger.Logger
	agent services.AgentService
}

func NewActionHandler(log *logger.Logger, agent services.AgentService) *ActionHandler {
	return &ActionHandler{
		log:   log.With("handler", "ActionHandler"),
		agent: agent,
	}
}

type processActionRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Action    string `json:"action" binding:"required"`
}

// POST /api/actions
func (h *ActionHandler) ProcessAction(c *gin.Context) {
	var req processActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.agent.ProcessAction(c.Request.Context(), req.StudentID, req.Action)
	if err != nil {
		h.log.Error("Action processing failed", "student_id", req.StudentID, "error", err)
		RespondError(c, http.StatusInternalServerError, "action_failed", errors.New("failed to process action"))
		return
	}
	RespondOK(c, result)
}
