package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/finlearn/finlearn-backend/internal/platform/envutil"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

// Message is a single chat turn. Tool invocations requested by the model are
// carried in ToolCalls; tool results are sent back with Role "tool" and the
// originating ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// ToolDef describes a callable tool exposed to the model. Parameters is a
// JSON schema object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ModerationResult struct {
	Flagged    bool
	Categories []string
}

// Client is the LLM API client used by the rest of the backend.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// Structured outputs (json_schema)
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)

	// Plain text (no schema)
	GenerateText(ctx context.Context, system string, user string) (string, error)

	// Content classification against the hosted moderation model.
	Moderate(ctx context.Context, input string) (ModerationResult, error)

	// One model turn over a running conversation with tool definitions.
	// The returned message either carries tool calls or final content.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDef) (Message, error)
}

type client struct {
	log             *logger.Logger
	baseURL         string
	apiKey          string
	model           string
	embedModel      string
	moderationModel string
	temperature     float64
	maxRetries      int
	httpClient      *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}

	embed := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if embed == "" {
		embed = "text-embedding-3-small"
	}

	moderation := strings.TrimSpace(os.Getenv("OPENAI_MODERATION_MODEL"))
	if moderation == "" {
		moderation = "omni-moderation-latest"
	}

	timeoutSec := 120
	if v := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := strings.TrimSpace(os.Getenv("OPENAI_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	temperature := envutil.Float("OPENAI_TEMPERATURE", 0.7)

	c := &client{
		log:             log.With("service", "OpenAIClient"),
		baseURL:         baseURL,
		apiKey:          apiKey,
		model:           model,
		embedModel:      embed,
		moderationModel: moderation,
		temperature:     temperature,
		maxRetries:      maxRetries,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}

	c.log.Info("OpenAI client initialized",
		"base_url", baseURL,
		"model", model,
		"embed_model", embed,
		"moderation_model", moderation,
	)
	return c, nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	req := map[string]any{
		"model": c.embedModel,
		"input": inputs,
	}
	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings count mismatch: want=%d got=%d", len(inputs), len(resp.Data))
	}

	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index out of range: %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	req := map[string]any{
		"model":       c.model,
		"temperature": c.temperature,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}

	text, err := c.chat(ctx, req)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return nil, fmt.Errorf("decode structured output: %w", err)
	}
	return out, nil
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := map[string]any{
		"model":       c.model,
		"temperature": c.temperature,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	return c.chat(ctx, req)
}

func (c *client) Moderate(ctx context.Context, input string) (ModerationResult, error) {
	req := map[string]any{
		"model": c.moderationModel,
		"input": input,
	}
	var resp struct {
		Results []struct {
			Flagged    bool            `json:"flagged"`
			Categories map[string]bool `json:"categories"`
		} `json:"results"`
	}
	if err := c.doJSON(ctx, "/v1/moderations", req, &resp); err != nil {
		return ModerationResult{}, err
	}
	if len(resp.Results) == 0 {
		return ModerationResult{}, fmt.Errorf("moderation returned no results")
	}

	r := resp.Results[0]
	out := ModerationResult{Flagged: r.Flagged}
	if r.Flagged {
		for category, flagged := range r.Categories {
			if flagged {
				out.Categories = append(out.Categories, category)
			}
		}
	}
	return out, nil
}

func (c *client) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDef) (Message, error) {
	wireMessages := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		wireMessages = append(wireMessages, encodeMessage(m))
	}

	wireTools := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		wireTools = append(wireTools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}

	req := map[string]any{
		"model":       c.model,
		"temperature": c.temperature,
		"messages":    wireMessages,
	}
	if len(wireTools) > 0 {
		req["tools"] = wireTools
	}

	var resp chatResponse
	if err := c.doJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return Message{}, err
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("chat completion returned no choices")
	}

	wire := resp.Choices[0].Message
	out := Message{Role: wire.Role, Content: wire.Content}
	for _, tc := range wire.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) chat(ctx context.Context, req map[string]any) (string, error) {
	var resp chatResponse
	if err := c.doJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func encodeMessage(m Message) map[string]any {
	out := map[string]any{"role": m.Role}
	if m.Role == "tool" {
		out["tool_call_id"] = m.ToolCallID
		out["content"] = m.Content
		return out
	}
	out["content"] = m.Content
	if len(m.ToolCalls) > 0 {
		calls := make([]map[string]any, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": tc.Arguments,
				},
			})
		}
		out["tool_calls"] = calls
	}
	return out
}

func (c *client) doJSON(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("openai %s status=%d body=%s", path, resp.StatusCode, truncate(body, 512))
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("openai %s status=%d body=%s", path, resp.StatusCode, truncate(body, 512))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("openai %s failed after %d attempts: %w", path, c.maxRetries+1, lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
