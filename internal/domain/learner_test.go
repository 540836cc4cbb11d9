package domain

import (
	"fmt"
	"math"
	"testing"
)

func TestApplyRunningAverage(t *testing.T) {
	ctx := DefaultLearnerContext("l1")

	scores := []float64{1.0, 0.5, 0.75}
	for _, s := range scores {
		ctx.Apply(Interaction{Type: "quiz", Topic: "interest", Score: s, HasScore: true})
	}

	if ctx.PerformanceMetrics.QuizzesTaken != 3 {
		t.Fatalf("quizzes taken: want=3 got=%d", ctx.PerformanceMetrics.QuizzesTaken)
	}
	want := (1.0 + 0.5 + 0.75) / 3
	if math.Abs(ctx.PerformanceMetrics.AverageScore-want) > 1e-9 {
		t.Fatalf("average: want=%v got=%v", want, ctx.PerformanceMetrics.AverageScore)
	}
}

func TestApplyDedupsTopics(t *testing.T) {
	ctx := DefaultLearnerContext("l1")
	ctx.Apply(Interaction{Type: "chat", Topic: "credit cards"})
	ctx.Apply(Interaction{Type: "lesson", Topic: "credit cards"})
	ctx.Apply(Interaction{Type: "lesson", Topic: "interest rates"})

	if len(ctx.TopicsCovered) != 2 {
		t.Fatalf("topics: want=2 got=%v", ctx.TopicsCovered)
	}
}

func TestApplyBoundsInteractionLog(t *testing.T) {
	ctx := DefaultLearnerContext("l1")
	for i := 0; i < MaxRecentInteractions+5; i++ {
		ctx.Apply(Interaction{Type: "chat", Content: fmt.Sprintf("msg-%d", i)})
	}

	if len(ctx.RecentInteractions) != MaxRecentInteractions {
		t.Fatalf("interactions: want=%d got=%d", MaxRecentInteractions, len(ctx.RecentInteractions))
	}
	// Oldest entries dropped: the first remaining entry is msg-5.
	if ctx.RecentInteractions[0].Content != "msg-5" {
		t.Fatalf("first interaction: want=msg-5 got=%q", ctx.RecentInteractions[0].Content)
	}
}

func TestWithMetadataOverlayWins(t *testing.T) {
	doc := Document{Text: "x", Metadata: map[string]string{"source": "a.pdf", "category": "old"}}
	got := doc.WithMetadata(map[string]string{"category": "new", "extra": "1"})

	if got.Metadata["category"] != "new" {
		t.Fatalf("overlay should win: got=%q", got.Metadata["category"])
	}
	if got.Metadata["source"] != "a.pdf" || got.Metadata["extra"] != "1" {
		t.Fatalf("metadata merge mismatch: %v", got.Metadata)
	}
	if doc.Metadata["category"] != "old" {
		t.Fatalf("original document mutated: %v", doc.Metadata)
	}
}
