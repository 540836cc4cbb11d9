package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

const noContextPlaceholder = "No context available."

// Retriever fetches reference documents for a topic. Nil means generation
// runs without retrieval grounding.
type Retriever func(ctx context.Context, query string) ([]domain.Document, error)

// JSONGenerator is the model surface lesson generation needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

// LessonGenerator produces structured micro-lessons grounded in retrieved
// course material.
type LessonGenerator struct {
	ai       JSONGenerator
	retrieve Retriever
	log      *logger.Logger
}

func NewLessonGenerator(ai JSONGenerator, retrieve Retriever, log *logger.Logger) *LessonGenerator {
	return &LessonGenerator{ai: ai, retrieve: retrieve, log: log.With("service", "generator")}
}

const lessonSystemPrompt = `You are an expert financial education content creator.
Create engaging, accurate micro-lessons that teach one concept at a time.
Ground every claim in the provided reference material when it is available.
Never give personalized financial advice.`

// GenerateLesson builds a lesson for topic at the given difficulty level.
// Retrieval failures degrade to ungrounded generation rather than failing
// the request.
func (g *LessonGenerator) GenerateLesson(ctx context.Context, topic, level string) (domain.Lesson, error) {
	if strings.TrimSpace(topic) == "" {
		return domain.Lesson{}, errs.Validation("lesson topic is empty", nil)
	}
	if level == "" {
		level = domain.LevelBeginner
	}

	contextBlock := g.contextFor(ctx, topic)
	user := fmt.Sprintf(`Create a micro-lesson about %q for a %s-level learner.

Reference material:
%s

The lesson needs concise content, three to five key points, a realistic
scenario applying the concept, and one multiple-choice quiz question with
four options. correct_answer is the zero-based index of the right option
in quiz_options.`,
		topic, level, contextBlock)

	raw, err := g.ai.GenerateJSON(ctx, lessonSystemPrompt, user, "lesson", domain.LessonSchema())
	if err != nil {
		return domain.Lesson{}, errs.Generation(fmt.Sprintf("generate lesson for %q", topic), err)
	}

	lesson, err := decodeLesson(raw)
	if err != nil {
		return domain.Lesson{}, err
	}
	if lesson.Topic == "" {
		lesson.Topic = topic
	}
	g.log.Info("lesson generated", "topic", topic, "level", level,
		"key_points", len(lesson.KeyPoints), "quiz_options", len(lesson.QuizOptions))
	return lesson, nil
}

func (g *LessonGenerator) contextFor(ctx context.Context, topic string) string {
	if g.retrieve == nil {
		return noContextPlaceholder
	}
	docs, err := g.retrieve(ctx, topic)
	if err != nil {
		g.log.Warn("retrieval failed, generating without context", "topic", topic, "error", err)
		return noContextPlaceholder
	}
	if len(docs) == 0 {
		return noContextPlaceholder
	}
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.Text
	}
	return strings.Join(parts, "\n\n")
}

func decodeLesson(raw map[string]any) (domain.Lesson, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return domain.Lesson{}, errs.Parse("encode lesson response", err)
	}
	var lesson domain.Lesson
	if err := json.Unmarshal(data, &lesson); err != nil {
		return domain.Lesson{}, errs.Parse("decode lesson response", err)
	}
	if lesson.Content == "" || lesson.QuizQuestion == "" {
		return domain.Lesson{}, errs.Parse("lesson response missing required fields", nil)
	}
	if lesson.CorrectAnswer < 0 || lesson.CorrectAnswer >= len(lesson.QuizOptions) {
		return domain.Lesson{}, errs.Parse(
			fmt.Sprintf("correct_answer %d is out of range for %d quiz_options",
				lesson.CorrectAnswer, len(lesson.QuizOptions)), nil)
	}
	return lesson, nil
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(answer)) {
			return true
		}
	}
	return false
}
