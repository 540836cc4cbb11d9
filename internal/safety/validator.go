package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/platform/envutil"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	"github.com/finlearn/finlearn-backend/internal/platform/openai"
)

// PII patterns, ordered so broader matches are redacted before patterns that
// could match their fragments (SSN before the short phone form, for example).
var piiPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{"phone_short", regexp.MustCompile(`\b\d{3}[-.\s]\d{4}\b`)},
}

const redactionToken = "[REDACTED]"

// Principles the constitutional check asks the model to verify.
var constitutionalPrinciples = []string{
	"Content must be educational and never constitute personalized financial advice.",
	"Content must not promote specific financial products, brokers, or services.",
	"Risk must be presented honestly; never downplay the possibility of losses.",
	"Content must be appropriate for a general audience, including minors.",
	"Claims about returns or outcomes must be realistic, never promissory.",
}

// Config toggles each check independently.
type Config struct {
	PIIEnabled            bool
	ModerationEnabled     bool
	ConstitutionalEnabled bool
}

func ConfigFromEnv() Config {
	return Config{
		PIIEnabled:            envutil.Bool("ENABLE_PII_DETECTION", true),
		ModerationEnabled:     envutil.Bool("ENABLE_CONTENT_MODERATION", true),
		ConstitutionalEnabled: envutil.Bool("ENABLE_CONSTITUTIONAL_AI", true),
	}
}

// Validator runs generated content through the PII scan, the moderation
// endpoint, and the constitutional check. Moderation unavailability blocks
// content; constitutional unavailability does not.
type Validator struct {
	ai  openai.Client
	cfg Config
	log *logger.Logger
}

func NewValidator(ai openai.Client, cfg Config, log *logger.Logger) *Validator {
	return &Validator{ai: ai, cfg: cfg, log: log.With("service", "safety")}
}

// Validate runs every enabled check and aggregates the findings. The report
// passes only when no enabled check objects.
func (v *Validator) Validate(ctx context.Context, content string) domain.SafetyReport {
	report := domain.SafetyReport{Passed: true, ConstitutionalAIPassed: true}

	if v.cfg.PIIEnabled {
		if kinds := DetectPII(content); len(kinds) > 0 {
			report.PIIDetected = true
			report.Passed = false
			report.Issues = append(report.Issues, "pii detected: "+strings.Join(kinds, ", "))
		}
	}

	if v.cfg.ModerationEnabled {
		flagged, categories, err := v.moderate(ctx, content)
		if err != nil {
			// Moderation failures block: unverified content must not ship.
			report.ModerationFlagged = true
			report.Passed = false
			report.Issues = append(report.Issues, "moderation unavailable: "+err.Error())
			v.log.Error("moderation check failed", "error", err)
		} else if flagged {
			report.ModerationFlagged = true
			report.Passed = false
			report.Issues = append(report.Issues, "moderation flagged: "+strings.Join(categories, ", "))
		}
	}

	if v.cfg.ConstitutionalEnabled {
		passed, err := v.checkConstitutional(ctx, content)
		if err != nil {
			// The constitutional check degrades gracefully.
			v.log.Warn("constitutional check unavailable", "error", err)
		} else if !passed {
			report.ConstitutionalAIPassed = false
			report.Passed = false
			report.Issues = append(report.Issues, "constitutional principles violated")
		}
	}

	return report
}

// Sanitize returns content with all recognized PII replaced by a redaction
// token. Clean text comes back unchanged.
func Sanitize(content string) string {
	for _, p := range piiPatterns {
		content = p.re.ReplaceAllString(content, redactionToken)
	}
	return content
}

// DetectPII reports which PII kinds appear in content, in pattern order.
func DetectPII(content string) []string {
	var kinds []string
	remaining := content
	for _, p := range piiPatterns {
		if p.re.MatchString(remaining) {
			kinds = append(kinds, p.name)
			// Redact as we go so narrower patterns do not re-report
			// fragments of an already-found match.
			remaining = p.re.ReplaceAllString(remaining, redactionToken)
		}
	}
	return kinds
}

func (v *Validator) moderate(ctx context.Context, content string) (bool, []string, error) {
	res, err := v.ai.Moderate(ctx, content)
	if err != nil {
		return false, nil, err
	}
	return res.Flagged, res.Categories, nil
}

func (v *Validator) checkConstitutional(ctx context.Context, content string) (bool, error) {
	var sb strings.Builder
	sb.WriteString("Evaluate the following educational content against these principles:\n\n")
	for i, p := range constitutionalPrinciples {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}
	sb.WriteString("\nContent:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nDoes the content comply with every principle? Answer with a single word: true or false.")

	answer, err := v.ai.GenerateText(ctx,
		"You are a strict reviewer of financial education content.",
		sb.String())
	if err != nil {
		return false, err
	}
	normalized := strings.ToLower(answer)
	return strings.Contains(normalized, "true") || strings.Contains(normalized, "passed"), nil
}
