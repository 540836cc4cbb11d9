package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finlearn/finlearn-backend/internal/platform/errs"
)

// Quiz is a standalone scenario-based practice exercise, generated separately
// from a full lesson for reinforcement rounds.
type Quiz struct {
	Scenario      string   `json:"scenario"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

func quizSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scenario": map[string]any{"type": "string"},
			"question": map[string]any{"type": "string"},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 4,
				"maxItems": 4,
			},
			"correct_answer": map[string]any{"type": "string"},
			"explanation":    map[string]any{"type": "string"},
		},
		"required":             []string{"scenario", "question", "options", "correct_answer", "explanation"},
		"additionalProperties": false,
	}
}

// GenerateQuiz produces one scenario-based practice exercise on topic, tuned
// to difficulty ("easy", "medium", "hard").
func (g *LessonGenerator) GenerateQuiz(ctx context.Context, topic, difficulty string) (Quiz, error) {
	if strings.TrimSpace(topic) == "" {
		return Quiz{}, errs.Validation("quiz topic is empty", nil)
	}
	if difficulty == "" {
		difficulty = "medium"
	}

	user := fmt.Sprintf(`Create one %s practice exercise about %q: a short
realistic scenario followed by one multiple-choice question about it.

Reference material:
%s

Provide exactly four options and a short explanation of the correct answer.
correct_answer must be exactly one of options.`,
		difficulty, topic, g.contextFor(ctx, topic))

	raw, err := g.ai.GenerateJSON(ctx, lessonSystemPrompt, user, "quiz", quizSchema())
	if err != nil {
		return Quiz{}, errs.Generation(fmt.Sprintf("generate quiz for %q", topic), err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return Quiz{}, errs.Parse("encode quiz response", err)
	}
	var quiz Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return Quiz{}, errs.Parse("decode quiz response", err)
	}
	if quiz.Question == "" || len(quiz.Options) == 0 {
		return Quiz{}, errs.Parse("quiz response missing required fields", nil)
	}
	if !containsOption(quiz.Options, quiz.CorrectAnswer) {
		return Quiz{}, errs.Parse(
			fmt.Sprintf("correct_answer %q is not one of options", quiz.CorrectAnswer), nil)
	}
	return quiz, nil
}
