package domain

// Lesson is the structured output of one generation call. It is transient:
// the service returns it but does not persist it.
type Lesson struct {
	Topic         string   `json:"topic"`
	Content       string   `json:"content"`
	KeyPoints     []string `json:"key_points"`
	Scenario      string   `json:"scenario"`
	QuizQuestion  string   `json:"quiz_question"`
	QuizOptions   []string `json:"quiz_options"`
	CorrectAnswer int      `json:"correct_answer"`
}

// LessonSchema is the JSON schema handed to the model for structured output.
func LessonSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic":   map[string]any{"type": "string", "description": "The topic of the lesson"},
			"content": map[string]any{"type": "string", "description": "Main lesson content"},
			"key_points": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "3-5 key takeaways",
			},
			"scenario":      map[string]any{"type": "string", "description": "Real-world scenario example"},
			"quiz_question": map[string]any{"type": "string", "description": "Multiple choice question"},
			"quiz_options": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "4 answer options",
			},
			"correct_answer": map[string]any{
				"type":        "integer",
				"description": "Index of correct answer (0-3)",
			},
		},
		"required": []string{
			"topic", "content", "key_points", "scenario",
			"quiz_question", "quiz_options", "correct_answer",
		},
		"additionalProperties": false,
	}
}
