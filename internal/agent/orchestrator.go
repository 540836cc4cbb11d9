package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/finlearn/finlearn-backend/internal/platform/envutil"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	"github.com/finlearn/finlearn-backend/internal/platform/openai"

	"github.com/finlearn/finlearn-backend/internal/domain"
)

const defaultMaxIterations = 5

const apologyResponse = "I ran into a problem handling that. Please try again in a moment."

const agentSystemPrompt = `You are a friendly financial education tutor.
You teach one concept at a time, adapt difficulty to the learner, and use
your tools to fetch learner context, generate lessons and quizzes, score
answers, and adjust difficulty. Keep responses short and encouraging.
Never give personalized financial advice.`

// Response is the agent's reply to one learner message.
type Response struct {
	Response  string `json:"response"`
	Status    string `json:"status"`
	LearnerID string `json:"learner_id"`
}

// ToolChatter is the model surface the orchestrator drives.
type ToolChatter interface {
	ChatWithTools(ctx context.Context, messages []openai.Message, tools []openai.ToolDef) (openai.Message, error)
}

// Orchestrator runs the tool-calling loop between the model and the toolset.
type Orchestrator struct {
	ai            ToolChatter
	tools         *Toolset
	memory        Memory
	maxIterations int
	log           *logger.Logger
}

func NewOrchestrator(ai ToolChatter, tools *Toolset, memory Memory, log *logger.Logger) *Orchestrator {
	maxIter := envutil.Int("AGENT_MAX_ITERATIONS", defaultMaxIterations)
	if maxIter < 1 {
		maxIter = defaultMaxIterations
	}
	return &Orchestrator{
		ai:            ai,
		tools:         tools,
		memory:        memory,
		maxIterations: maxIter,
		log:           log.With("service", "agent"),
	}
}

// HandleMessage answers one chat turn. Model or tool-loop failures produce
// an apology response with error status instead of propagating.
func (o *Orchestrator) HandleMessage(ctx context.Context, learnerID, message string) Response {
	if strings.TrimSpace(message) == "" {
		return Response{Response: "What would you like to learn about?", Status: "success", LearnerID: learnerID}
	}

	lc, err := o.memory.GetContext(ctx, learnerID)
	if err != nil {
		o.log.Error("load learner context", "error", err)
		return Response{Response: apologyResponse, Status: "error", LearnerID: learnerID}
	}

	messages := []openai.Message{
		{Role: "system", Content: agentSystemPrompt + "\n\n" + describeLearner(lc)},
		{Role: "user", Content: message},
	}

	final, err := o.runToolLoop(ctx, messages)
	if err != nil {
		o.log.Error("agent loop failed", "learner_id", learnerID, "error", err)
		return Response{Response: apologyResponse, Status: "error", LearnerID: learnerID}
	}

	if _, err := o.memory.RecordInteraction(ctx, learnerID, domain.Interaction{
		Type:    "chat",
		Content: message,
	}); err != nil {
		o.log.Warn("record interaction failed", "learner_id", learnerID, "error", err)
	}

	return Response{Response: final, Status: "success", LearnerID: learnerID}
}

// StartLessonFlow kicks off a lesson on topic, letting the agent pick the
// level from stored context.
func (o *Orchestrator) StartLessonFlow(ctx context.Context, learnerID, topic string) Response {
	msg := fmt.Sprintf("Teach me a lesson about %s. Pick the difficulty that fits my history, then finish with the quiz question.", topic)
	return o.HandleMessage(ctx, learnerID, msg)
}

// SubmitQuizAnswer routes a quiz answer through the agent so it scores the
// answer, records it, and adjusts difficulty when warranted.
func (o *Orchestrator) SubmitQuizAnswer(ctx context.Context, learnerID, question, correctAnswer, learnerAnswer string) Response {
	msg := fmt.Sprintf(
		"I was asked: %q. The correct answer is %q. My answer is: %q. Score my answer, record it, and adjust my difficulty if my performance warrants it.",
		question, correctAnswer, learnerAnswer)
	return o.HandleMessage(ctx, learnerID, msg)
}

// runToolLoop alternates between the model and tool execution until the
// model answers without tool calls or the iteration cap is hit.
func (o *Orchestrator) runToolLoop(ctx context.Context, messages []openai.Message) (string, error) {
	defs := o.tools.Defs()
	for i := 0; i < o.maxIterations; i++ {
		reply, err := o.ai.ChatWithTools(ctx, messages, defs)
		if err != nil {
			return "", err
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			result := o.tools.Execute(ctx, call)
			messages = append(messages, openai.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
	return "", errs.Generation(fmt.Sprintf("no final answer after %d iterations", o.maxIterations), nil)
}

func describeLearner(lc domain.LearnerContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Learner id: %s\nCurrent level: %s\n", lc.LearnerID, lc.CurrentLevel)
	if len(lc.TopicsCovered) > 0 {
		fmt.Fprintf(&sb, "Topics covered: %s\n", strings.Join(lc.TopicsCovered, ", "))
	}
	if lc.PerformanceMetrics.QuizzesTaken > 0 {
		fmt.Fprintf(&sb, "Quiz average: %.2f over %d quizzes\n",
			lc.PerformanceMetrics.AverageScore, lc.PerformanceMetrics.QuizzesTaken)
	}
	return sb.String()
}
