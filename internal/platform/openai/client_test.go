package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"testing"

	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

type fakeTransport struct {
	fn func(r *http.Request) (*http.Response, error)
}

func (t *fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) { return t.fn(r) }

func newTestClient(t *testing.T, fn func(r *http.Request) (*http.Response, error)) *client {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &client{
		log:             log,
		baseURL:         "https://api.test",
		apiKey:          "test-key",
		model:           "test-model",
		embedModel:      "test-embed",
		moderationModel: "test-moderation",
		temperature:     0,
		maxRetries:      2,
		httpClient:      &http.Client{Transport: &fakeTransport{fn: fn}},
	}
}

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(raw)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestNewClientReadsTemperatureFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")

	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := NewClient(log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if got := c.(*client).temperature; got != 0.2 {
		t.Fatalf("temperature: want=0.2 got=%v", got)
	}
}

func TestEmbedRestoresInputOrder(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("path: want=/v1/embeddings got=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization header: got=%q", got)
		}
		// Return data out of order; client must re-order by index.
		return jsonResponse(t, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{4, 5}},
				{"index": 0, "embedding": []float32{1, 2}},
			},
		}), nil
	})

	got, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("embeddings length: want=2 got=%d", len(got))
	}
	if got[0][0] != 1 || got[1][0] != 4 {
		t.Fatalf("embedding order not restored: got=%v", got)
	}
}

func TestEmbedEmptyInputNoCall(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request to %s", r.URL.Path)
		return nil, nil
	})
	got, err := c.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got != nil {
		t.Fatalf("want nil embeddings got=%v", got)
	}
}

func TestModerateCollectsFlaggedCategories(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/moderations" {
			t.Fatalf("path: want=/v1/moderations got=%s", r.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"results": []map[string]any{
				{
					"flagged": true,
					"categories": map[string]bool{
						"hate":     true,
						"violence": true,
						"self-harm": false,
					},
				},
			},
		}), nil
	})

	got, err := c.Moderate(context.Background(), "bad text")
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}
	if !got.Flagged {
		t.Fatalf("Flagged: want=true got=false")
	}
	sort.Strings(got.Categories)
	if len(got.Categories) != 2 || got.Categories[0] != "hate" || got.Categories[1] != "violence" {
		t.Fatalf("categories: want=[hate violence] got=%v", got.Categories)
	}
}

func TestChatWithToolsDecodesToolCalls(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id": "call_1",
								"function": map[string]any{
									"name":      "assess_knowledge",
									"arguments": `{"learner_id":"l1","topic":"interest"}`,
								},
							},
						},
					},
				},
			},
		}), nil
	})

	msg, err := c.ChatWithTools(context.Background(),
		[]Message{{Role: "user", Content: "teach me"}},
		[]ToolDef{{Name: "assess_knowledge", Description: "assess", Parameters: map[string]any{"type": "object"}}},
	)
	if err != nil {
		t.Fatalf("ChatWithTools: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls: want=1 got=%d", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].Name != "assess_knowledge" || msg.ToolCalls[0].ID != "call_1" {
		t.Fatalf("tool call mismatch: %+v", msg.ToolCalls[0])
	}

	toolsRaw, ok := captured["tools"].([]any)
	if !ok || len(toolsRaw) != 1 {
		t.Fatalf("request tools: got=%v", captured["tools"])
	}
}

func TestDoJSONRetriesOnServerError(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return jsonResponse(t, http.StatusInternalServerError, map[string]any{"error": "boom"}), nil
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello"}},
			},
		}), nil
	})

	got, err := c.GenerateText(context.Background(), "sys", "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "hello" {
		t.Fatalf("content: want=hello got=%q", got)
	}
	if attempts != 3 {
		t.Fatalf("attempts: want=3 got=%d", attempts)
	}
}

func TestDoJSONDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		return jsonResponse(t, http.StatusBadRequest, map[string]any{"error": "bad request"}), nil
	})

	if _, err := c.GenerateText(context.Background(), "sys", "hi"); err == nil {
		t.Fatalf("want error got nil")
	}
	if attempts != 1 {
		t.Fatalf("attempts: want=1 got=%d", attempts)
	}
}
