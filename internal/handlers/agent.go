package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/agent"
	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
)

// AgentService is the tutoring loop; satisfied by agent.Orchestrator.
type AgentService interface {
	HandleMessage(ctx context.Context, learnerID, message string) agent.Response
	StartLessonFlow(ctx context.Context, learnerID, topic string) agent.Response
	SubmitQuizAnswer(ctx context.Context, learnerID, question, correctAnswer, learnerAnswer string) agent.Response
}

type AgentHandler struct {
	agent  AgentService
	memory agent.Memory
}

func NewAgentHandler(agentSvc AgentService, memory agent.Memory) *AgentHandler {
	return &AgentHandler{agent: agentSvc, memory: memory}
}

type chatRequest struct {
	LearnerID string `json:"learner_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// POST /api/agent/chat
func (h *AgentHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}
	RespondOK(c, h.agent.HandleMessage(c.Request.Context(), req.LearnerID, req.Message))
}

type startLessonRequest struct {
	LearnerID string `json:"learner_id" binding:"required"`
	Topic     string `json:"topic" binding:"required"`
}

// POST /api/agent/start-lesson
func (h *AgentHandler) StartLesson(c *gin.Context) {
	var req startLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}
	RespondOK(c, h.agent.StartLessonFlow(c.Request.Context(), req.LearnerID, req.Topic))
}

type submitAnswerRequest struct {
	LearnerID     string `json:"learner_id" binding:"required"`
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer" binding:"required"`
	LearnerAnswer string `json:"learner_answer" binding:"required"`
}

// POST /api/agent/submit-answer
func (h *AgentHandler) SubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}
	RespondOK(c, h.agent.SubmitQuizAnswer(c.Request.Context(),
		req.LearnerID, req.Question, req.CorrectAnswer, req.LearnerAnswer))
}

// GET /api/agent/learning-path/:learner_id
//
// Summarizes stored progress into a recommended next step without invoking
// the model.
func (h *AgentHandler) LearningPath(c *gin.Context) {
	learnerID := c.Param("learner_id")
	lc, err := h.memory.GetContext(c.Request.Context(), learnerID)
	if err != nil {
		RespondTypedError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"learner_id":          lc.LearnerID,
		"current_level":       lc.CurrentLevel,
		"topics_covered":      lc.TopicsCovered,
		"performance":         lc.PerformanceMetrics,
		"needs_reinforcement": needsReinforcement(lc),
	})
}

func needsReinforcement(lc domain.LearnerContext) bool {
	return lc.PerformanceMetrics.QuizzesTaken > 0 && lc.PerformanceMetrics.AverageScore < 0.5
}
