package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/generator"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	"github.com/finlearn/finlearn-backend/internal/platform/openai"
)

// Performance thresholds for difficulty adjustment.
const (
	increaseThreshold = 0.8
	decreaseThreshold = 0.5
)

// engagementFullSeconds is the session length that counts as full engagement.
const engagementFullSeconds = 300.0

// Toolset implements the functions the tutoring agent can call.
type Toolset struct {
	memory Memory
	gen    *generator.LessonGenerator
	log    *logger.Logger
}

func NewToolset(memory Memory, gen *generator.LessonGenerator, log *logger.Logger) *Toolset {
	return &Toolset{memory: memory, gen: gen, log: log.With("service", "agent_tools")}
}

// Defs returns the tool declarations advertised to the model.
func (t *Toolset) Defs() []openai.ToolDef {
	return []openai.ToolDef{
		{
			Name:        "assess_knowledge",
			Description: "Assess the learner's current knowledge: level, topics covered, quiz performance, and recent activity.",
			Parameters: objectSchema(map[string]any{
				"learner_id": map[string]any{"type": "string"},
			}, "learner_id"),
		},
		{
			Name:        "generate_lesson",
			Description: "Generate a micro-lesson on a financial topic at the given difficulty level.",
			Parameters: objectSchema(map[string]any{
				"topic": map[string]any{"type": "string"},
				"level": map[string]any{"type": "string", "enum": []string{
					domain.LevelBeginner, domain.LevelIntermediate, domain.LevelAdvanced,
				}},
			}, "topic"),
		},
		{
			Name:        "create_scenario",
			Description: "Create a scenario-based practice exercise on a topic for reinforcement.",
			Parameters: objectSchema(map[string]any{
				"topic":      map[string]any{"type": "string"},
				"difficulty": map[string]any{"type": "string", "enum": []string{"easy", "medium", "hard"}},
			}, "topic"),
		},
		{
			Name:        "evaluate_quiz",
			Description: "Score the learner's quiz answer against the correct one and record the result.",
			Parameters: objectSchema(map[string]any{
				"learner_id":     map[string]any{"type": "string"},
				"topic":          map[string]any{"type": "string"},
				"learner_answer": map[string]any{"type": "string"},
				"correct_answer": map[string]any{"type": "string"},
			}, "learner_id", "learner_answer", "correct_answer"),
		},
		{
			Name:        "update_learning_path",
			Description: "Adjust the learner's path up or down based on recent performance between 0 and 1.",
			Parameters: objectSchema(map[string]any{
				"learner_id":  map[string]any{"type": "string"},
				"performance": map[string]any{"type": "number"},
			}, "learner_id", "performance"),
		},
		{
			Name:        "track_engagement",
			Description: "Record how long the learner stayed engaged this session, in seconds.",
			Parameters: objectSchema(map[string]any{
				"learner_id":               map[string]any{"type": "string"},
				"session_duration_seconds": map[string]any{"type": "number"},
			}, "learner_id", "session_duration_seconds"),
		},
	}
}

// Execute runs one tool call and returns its JSON result. Tool failures come
// back as an error payload so the model can react instead of aborting the
// conversation.
func (t *Toolset) Execute(ctx context.Context, call openai.ToolCall) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errorPayload(fmt.Sprintf("invalid arguments: %v", err))
	}

	var (
		result any
		err    error
	)
	switch call.Name {
	case "assess_knowledge":
		result, err = t.assessKnowledge(ctx, args)
	case "generate_lesson":
		result, err = t.generateLesson(ctx, args)
	case "create_scenario":
		result, err = t.createScenario(ctx, args)
	case "evaluate_quiz":
		result, err = t.evaluateQuiz(ctx, args)
	case "update_learning_path":
		result, err = t.updateLearningPath(ctx, args)
	case "track_engagement":
		result, err = t.trackEngagement(ctx, args)
	default:
		return errorPayload(fmt.Sprintf("unknown tool %q", call.Name))
	}
	if err != nil {
		t.log.Warn("tool call failed", "tool", call.Name, "error", err)
		return errorPayload(err.Error())
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorPayload(fmt.Sprintf("encode result: %v", err))
	}
	return string(raw)
}

// assessKnowledge summarizes the learner's stored state so the model can
// pick a topic and level.
func (t *Toolset) assessKnowledge(ctx context.Context, args map[string]any) (any, error) {
	lc, err := t.memory.GetContext(ctx, strArg(args, "learner_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"current_level":       lc.CurrentLevel,
		"topics_covered":      lc.TopicsCovered,
		"average_score":       lc.PerformanceMetrics.AverageScore,
		"quizzes_taken":       lc.PerformanceMetrics.QuizzesTaken,
		"recent_interactions": lc.RecentInteractions,
		"preferences":         lc.Preferences,
	}, nil
}

func (t *Toolset) generateLesson(ctx context.Context, args map[string]any) (any, error) {
	return t.gen.GenerateLesson(ctx, strArg(args, "topic"), strArg(args, "level"))
}

func (t *Toolset) createScenario(ctx context.Context, args map[string]any) (any, error) {
	return t.gen.GenerateQuiz(ctx, strArg(args, "topic"), strArg(args, "difficulty"))
}

// evaluateQuiz compares answers ignoring case and surrounding whitespace,
// then records the quiz result in the learner's history.
func (t *Toolset) evaluateQuiz(ctx context.Context, args map[string]any) (any, error) {
	learnerID := strArg(args, "learner_id")
	given := normalizeAnswer(strArg(args, "learner_answer"))
	correct := normalizeAnswer(strArg(args, "correct_answer"))

	score := 0.0
	if given != "" && given == correct {
		score = 1.0
	}

	lc, err := t.memory.RecordInteraction(ctx, learnerID, domain.Interaction{
		Type:     "quiz",
		Topic:    strArg(args, "topic"),
		Content:  strArg(args, "learner_answer"),
		Score:    score,
		HasScore: true,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"correct":       score == 1.0,
		"score":         score,
		"average_score": lc.PerformanceMetrics.AverageScore,
		"quizzes_taken": lc.PerformanceMetrics.QuizzesTaken,
	}, nil
}

func (t *Toolset) updateLearningPath(ctx context.Context, args map[string]any) (any, error) {
	learnerID := strArg(args, "learner_id")
	performance := floatArg(args, "performance")

	lc, err := t.memory.GetContext(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	previous := lc.CurrentLevel
	adjustment := "maintain"
	reinforcement := false
	switch {
	case performance > increaseThreshold:
		adjustment = "increase"
		lc.CurrentLevel = nextLevel(lc.CurrentLevel)
	case performance < decreaseThreshold:
		adjustment = "decrease"
		lc.CurrentLevel = prevLevel(lc.CurrentLevel)
		reinforcement = true
	}

	if err := t.memory.SaveContext(ctx, lc); err != nil {
		return nil, err
	}
	return map[string]any{
		"difficulty_adjustment": adjustment,
		"reinforcement_needed":  reinforcement,
		"previous_level":        previous,
		"new_level":             lc.CurrentLevel,
	}, nil
}

// trackEngagement scores a session from 0 to 1, saturating at five minutes.
func (t *Toolset) trackEngagement(ctx context.Context, args map[string]any) (any, error) {
	learnerID := strArg(args, "learner_id")
	duration := floatArg(args, "session_duration_seconds")
	if duration < 0 {
		duration = 0
	}

	engagement := duration / engagementFullSeconds
	if engagement > 1 {
		engagement = 1
	}

	_, err := t.memory.RecordInteraction(ctx, learnerID, domain.Interaction{
		Type:    "engagement",
		Content: fmt.Sprintf("session of %.0f seconds", duration),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"engagement_score": engagement}, nil
}

func nextLevel(level string) string {
	switch level {
	case domain.LevelBeginner:
		return domain.LevelIntermediate
	case domain.LevelIntermediate:
		return domain.LevelAdvanced
	default:
		return domain.LevelAdvanced
	}
}

func prevLevel(level string) string {
	switch level {
	case domain.LevelAdvanced:
		return domain.LevelIntermediate
	case domain.LevelIntermediate:
		return domain.LevelBeginner
	default:
		return domain.LevelBeginner
	}
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func floatArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func errorPayload(msg string) string {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return string(raw)
}
