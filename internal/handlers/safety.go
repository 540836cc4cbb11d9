package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/safety"
)

type SafetyHandler struct {
	safety SafetyService
}

func NewSafetyHandler(safetySvc SafetyService) *SafetyHandler {
	return &SafetyHandler{safety: safetySvc}
}

type validateSafetyRequest struct {
	Content string `json:"content" binding:"required"`
}

// POST /api/validate-safety
func (h *SafetyHandler) ValidateSafety(c *gin.Context) {
	var req validateSafetyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}

	report := h.safety.Validate(c.Request.Context(), req.Content)
	resp := gin.H{"report": report}
	if report.PIIDetected {
		resp["sanitized_content"] = safety.Sanitize(req.Content)
	}
	RespondOK(c, resp)
}
