package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/generator"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	"github.com/finlearn/finlearn-backend/internal/safety"
)

// LessonService generates lessons; satisfied by generator.LessonGenerator.
type LessonService interface {
	GenerateLesson(ctx context.Context, topic, level string) (domain.Lesson, error)
	GenerateQuiz(ctx context.Context, topic, difficulty string) (generator.Quiz, error)
}

// SafetyService validates and redacts generated content.
type SafetyService interface {
	Validate(ctx context.Context, content string) domain.SafetyReport
}

type LessonHandler struct {
	lessons LessonService
	safety  SafetyService
	log     *logger.Logger
}

func NewLessonHandler(lessons LessonService, safetySvc SafetyService, log *logger.Logger) *LessonHandler {
	return &LessonHandler{lessons: lessons, safety: safetySvc, log: log.With("handler", "lesson")}
}

type generateLessonRequest struct {
	Topic string `json:"topic" binding:"required"`
	Level string `json:"level"`
}

type generateLessonResponse struct {
	Lesson domain.Lesson       `json:"lesson"`
	Safety domain.SafetyReport `json:"safety"`
}

// POST /api/generate-lesson
//
// A failed safety check annotates the response rather than rejecting it;
// detected PII is redacted from the lesson before it ships.
func (h *LessonHandler) GenerateLesson(c *gin.Context) {
	var req generateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}

	lesson, err := h.lessons.GenerateLesson(c.Request.Context(), req.Topic, req.Level)
	if err != nil {
		RespondTypedError(c, err)
		return
	}

	report := h.safety.Validate(c.Request.Context(), lesson.Content+"\n"+lesson.Scenario)
	if report.PIIDetected {
		lesson.Content = safety.Sanitize(lesson.Content)
		lesson.Scenario = safety.Sanitize(lesson.Scenario)
	}
	if !report.Passed {
		h.log.Warn("lesson shipped with safety annotations",
			"topic", req.Topic, "issues", report.Issues)
	}

	RespondOK(c, generateLessonResponse{Lesson: lesson, Safety: report})
}

type generateQuizRequest struct {
	Topic      string `json:"topic" binding:"required"`
	Difficulty string `json:"difficulty"`
}

// POST /api/generate-quiz
func (h *LessonHandler) GenerateQuiz(c *gin.Context) {
	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}

	quiz, err := h.lessons.GenerateQuiz(c.Request.Context(), req.Topic, req.Difficulty)
	if err != nil {
		RespondTypedError(c, err)
		return
	}
	RespondOK(c, gin.H{"quiz": quiz})
}
