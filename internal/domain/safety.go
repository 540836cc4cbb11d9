package domain

// SafetyReport is the result of one validation pass. Transient; never persisted.
type SafetyReport struct {
	Passed                 bool     `json:"passed"`
	PIIDetected            bool     `json:"pii_detected"`
	ModerationFlagged      bool     `json:"moderation_flagged"`
	ConstitutionalAIPassed bool     `json:"constitutional_ai_passed"`
	Issues                 []string `json:"issues"`
}
