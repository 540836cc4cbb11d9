package domain

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// MaxRecentInteractions bounds the interaction log kept per learner; the
// oldest entries are dropped on overflow.
const MaxRecentInteractions = 10

// Interaction is one recorded learner event (chat turn, quiz, lesson).
type Interaction struct {
	Type     string  `json:"type"`
	Topic    string  `json:"topic,omitempty"`
	Content  string  `json:"interaction,omitempty"`
	Score    float64 `json:"score,omitempty"`
	HasScore bool    `json:"has_score,omitempty"`
}

type PerformanceMetrics struct {
	AverageScore float64 `json:"average_score"`
	QuizzesTaken int     `json:"quizzes_taken"`
}

// LearnerContext is the persisted per-learner state, keyed in the store by
// learner id. It is created lazily with defaults on first access.
type LearnerContext struct {
	LearnerID          string             `json:"learner_id"`
	TopicsCovered      []string           `json:"topics_covered"`
	CurrentLevel       string             `json:"current_level"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	Preferences        map[string]string  `json:"preferences"`
	RecentInteractions []Interaction      `json:"recent_interactions"`
}

func DefaultLearnerContext(learnerID string) LearnerContext {
	return LearnerContext{
		LearnerID:          learnerID,
		TopicsCovered:      []string{},
		CurrentLevel:       LevelBeginner,
		PerformanceMetrics: PerformanceMetrics{},
		Preferences:        map[string]string{"difficulty": "medium"},
		RecentInteractions: []Interaction{},
	}
}

// Apply folds one interaction into the context: appends to the bounded
// interaction log, dedups the topic set, and updates the running quiz
// average as (avg*n + score) / (n+1).
func (c *LearnerContext) Apply(in Interaction) {
	c.RecentInteractions = append(c.RecentInteractions, in)
	if len(c.RecentInteractions) > MaxRecentInteractions {
		c.RecentInteractions = c.RecentInteractions[len(c.RecentInteractions)-MaxRecentInteractions:]
	}

	if in.Topic != "" && !containsString(c.TopicsCovered, in.Topic) {
		c.TopicsCovered = append(c.TopicsCovered, in.Topic)
	}

	if in.Type == "quiz" && in.HasScore {
		n := c.PerformanceMetrics.QuizzesTaken
		avg := c.PerformanceMetrics.AverageScore
		c.PerformanceMetrics.AverageScore = (avg*float64(n) + in.Score) / float64(n+1)
		c.PerformanceMetrics.QuizzesTaken = n + 1
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
