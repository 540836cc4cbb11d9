package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/agent"
	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/generator"
	"github.com/finlearn/finlearn-backend/internal/ingestion"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not json: %q", w.Body.String())
	}
	return out
}

// --- fakes ---

type fakeLessonService struct {
	lesson domain.Lesson
	quiz   generator.Quiz
	err    error
}

func (f *fakeLessonService) GenerateLesson(ctx context.Context, topic, level string) (domain.Lesson, error) {
	return f.lesson, f.err
}

func (f *fakeLessonService) GenerateQuiz(ctx context.Context, topic, difficulty string) (generator.Quiz, error) {
	return f.quiz, f.err
}

type fakeSafetyService struct {
	report domain.SafetyReport
}

func (f *fakeSafetyService) Validate(ctx context.Context, content string) domain.SafetyReport {
	return f.report
}

type fakeIngestionService struct {
	result    ingestion.Result
	err       error
	prefixRun chan struct{}
	dirRun    chan string
}

func (f *fakeIngestionService) ProcessRef(ctx context.Context, ref, collection string, extra map[string]string) (ingestion.Result, error) {
	if _, perr := ingestion.ParseRef(ref); perr != nil {
		return ingestion.Result{}, perr
	}
	return f.result, f.err
}

func (f *fakeIngestionService) ProcessDirectory(ctx context.Context, dir, glob string, maxFiles int, collection string, extra map[string]string) (ingestion.Result, error) {
	if f.dirRun != nil {
		f.dirRun <- dir
	}
	return f.result, f.err
}

func (f *fakeIngestionService) ProcessS3Prefix(ctx context.Context, bucket, prefix, glob string, maxFiles int, collection string, extra map[string]string) (ingestion.Result, error) {
	if f.prefixRun != nil {
		close(f.prefixRun)
	}
	return f.result, f.err
}

type fakeAgentService struct {
	resp agent.Response
}

func (f *fakeAgentService) HandleMessage(ctx context.Context, learnerID, message string) agent.Response {
	return f.resp
}

func (f *fakeAgentService) StartLessonFlow(ctx context.Context, learnerID, topic string) agent.Response {
	return f.resp
}

func (f *fakeAgentService) SubmitQuizAnswer(ctx context.Context, learnerID, question, correctAnswer, learnerAnswer string) agent.Response {
	return f.resp
}

type fakeMemory struct {
	lc  domain.LearnerContext
	err error
}

func (f *fakeMemory) GetContext(ctx context.Context, learnerID string) (domain.LearnerContext, error) {
	if f.err != nil {
		return domain.LearnerContext{}, f.err
	}
	return f.lc, nil
}

func (f *fakeMemory) SaveContext(ctx context.Context, lc domain.LearnerContext) error { return nil }

func (f *fakeMemory) RecordInteraction(ctx context.Context, learnerID string, in domain.Interaction) (domain.LearnerContext, error) {
	return f.lc, nil
}

func (f *fakeMemory) Close() error { return nil }

// --- lesson handler ---

func lessonRouter(t *testing.T, svc LessonService, safetySvc SafetyService) *gin.Engine {
	h := NewLessonHandler(svc, safetySvc, testLogger(t))
	r := gin.New()
	r.POST("/api/generate-lesson", h.GenerateLesson)
	r.POST("/api/generate-quiz", h.GenerateQuiz)
	return r
}

func TestGenerateLessonHappyPath(t *testing.T) {
	svc := &fakeLessonService{lesson: domain.Lesson{
		Topic:   "budgeting",
		Content: "Track income against spending.",
	}}
	r := lessonRouter(t, svc, &fakeSafetyService{report: domain.SafetyReport{Passed: true, ConstitutionalAIPassed: true}})

	w := doJSON(t, r, http.MethodPost, "/api/generate-lesson", `{"topic":"budgeting"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	safetyBlock, _ := body["safety"].(map[string]any)
	if safetyBlock["passed"] != true {
		t.Fatalf("safety: got=%v", body["safety"])
	}
}

func TestGenerateLessonSanitizesPII(t *testing.T) {
	svc := &fakeLessonService{lesson: domain.Lesson{
		Topic:    "budgeting",
		Content:  "Email alice@example.com for help.",
		Scenario: "Call 555-0134 to open an account.",
	}}
	r := lessonRouter(t, svc, &fakeSafetyService{report: domain.SafetyReport{
		Passed: false, PIIDetected: true, ConstitutionalAIPassed: true,
		Issues: []string{"pii detected: email"},
	}})

	w := doJSON(t, r, http.MethodPost, "/api/generate-lesson", `{"topic":"budgeting"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("annotate, never reject: got=%d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "alice@example.com") || strings.Contains(body, "555-0134") {
		t.Fatalf("pii survived sanitization: %s", body)
	}
	if !strings.Contains(body, "[REDACTED]") {
		t.Fatalf("missing redaction token: %s", body)
	}
}

func TestGenerateLessonMissingTopic(t *testing.T) {
	r := lessonRouter(t, &fakeLessonService{}, &fakeSafetyService{})
	w := doJSON(t, r, http.MethodPost, "/api/generate-lesson", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", w.Code)
	}
}

func TestGenerateLessonGenerationFailure(t *testing.T) {
	svc := &fakeLessonService{err: errs.Generation("model unavailable", errors.New("503"))}
	r := lessonRouter(t, svc, &fakeSafetyService{})
	w := doJSON(t, r, http.MethodPost, "/api/generate-lesson", `{"topic":"budgeting"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", w.Code)
	}
	body := decodeBody(t, w)
	errBlock, _ := body["error"].(map[string]any)
	if errBlock["code"] != string(errs.CodeGeneration) {
		t.Fatalf("code: got=%v", body)
	}
}

// --- ingestion handler ---

func ingestionRouter(t *testing.T, svc IngestionService, bucket string) *gin.Engine {
	h := NewIngestionHandler(svc, "financial_docs", bucket, testLogger(t))
	r := gin.New()
	r.POST("/api/ingest-documents", h.IngestDocuments)
	r.POST("/api/process-document", h.ProcessDocument)
	return r
}

func TestIngestDocumentsAccepted(t *testing.T) {
	svc := &fakeIngestionService{
		result:    ingestion.Result{DocumentsLoaded: 2, ChunksCreated: 8, EmbeddingsCreated: 8},
		prefixRun: make(chan struct{}),
	}
	r := ingestionRouter(t, svc, "docs")

	w := doJSON(t, r, http.MethodPost, "/api/ingest-documents", `{"prefix":"kb/"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: want=202 got=%d", w.Code)
	}
	body := decodeBody(t, w)
	if body["job_id"] == "" || body["status"] != "accepted" {
		t.Fatalf("body: got=%v", body)
	}

	select {
	case <-svc.prefixRun:
	case <-time.After(2 * time.Second):
		t.Fatalf("background ingestion never ran")
	}
}

func TestIngestDocumentsLocalDirectory(t *testing.T) {
	svc := &fakeIngestionService{
		result: ingestion.Result{DocumentsLoaded: 3, ChunksCreated: 12},
		dirRun: make(chan string, 1),
	}
	r := ingestionRouter(t, svc, "") // no default bucket needed for directories

	w := doJSON(t, r, http.MethodPost, "/api/ingest-documents", `{"directory":"/srv/docs"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: want=202 got=%d body=%s", w.Code, w.Body.String())
	}
	select {
	case dir := <-svc.dirRun:
		if dir != "/srv/docs" {
			t.Fatalf("directory: want=/srv/docs got=%q", dir)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("directory ingestion never ran")
	}
}

func TestIngestDocumentsNoSource(t *testing.T) {
	r := ingestionRouter(t, &fakeIngestionService{}, "")
	w := doJSON(t, r, http.MethodPost, "/api/ingest-documents", `{"prefix":"kb/"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", w.Code)
	}
}

func TestProcessDocumentInlineStats(t *testing.T) {
	svc := &fakeIngestionService{result: ingestion.Result{
		DocumentsLoaded:   1,
		ChunksCreated:     5,
		EmbeddingsCreated: 5,
		ProcessingTime:    1500 * time.Millisecond,
	}}
	r := ingestionRouter(t, svc, "docs")

	w := doJSON(t, r, http.MethodPost, "/api/process-document", `{"ref":"s3://docs/guide.pdf"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	body := decodeBody(t, w)
	if body["chunks_created"] != 5.0 || body["embeddings_created"] != 5.0 {
		t.Fatalf("stats: got=%v", body)
	}
	if body["processing_time_seconds"] != 1.5 {
		t.Fatalf("duration: got=%v", body["processing_time_seconds"])
	}
}

func TestProcessDocumentContainedFailure(t *testing.T) {
	svc := &fakeIngestionService{err: errs.Storage("embed failed", errors.New("boom"))}
	r := ingestionRouter(t, svc, "docs")

	w := doJSON(t, r, http.MethodPost, "/api/process-document", `{"ref":"s3://docs/guide.pdf"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline failures are contained: got=%d", w.Code)
	}
	body := decodeBody(t, w)
	if msg, _ := body["error"].(string); !strings.Contains(msg, "embed failed") {
		t.Fatalf("error field: got=%v", body)
	}
}

func TestProcessDocumentMalformedRef(t *testing.T) {
	r := ingestionRouter(t, &fakeIngestionService{}, "docs")
	w := doJSON(t, r, http.MethodPost, "/api/process-document", `{"ref":"s3://bucket-only"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d body=%s", w.Code, w.Body.String())
	}
}

// --- safety handler ---

func TestValidateSafetyWithSanitizedContent(t *testing.T) {
	h := NewSafetyHandler(&fakeSafetyService{report: domain.SafetyReport{
		Passed: false, PIIDetected: true, ConstitutionalAIPassed: true,
	}})
	r := gin.New()
	r.POST("/api/validate-safety", h.ValidateSafety)

	w := doJSON(t, r, http.MethodPost, "/api/validate-safety", `{"content":"reach alice@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	body := decodeBody(t, w)
	sanitized, _ := body["sanitized_content"].(string)
	if strings.Contains(sanitized, "alice@example.com") || !strings.Contains(sanitized, "[REDACTED]") {
		t.Fatalf("sanitized_content: got=%q", sanitized)
	}
}

func TestValidateSafetyCleanOmitsSanitized(t *testing.T) {
	h := NewSafetyHandler(&fakeSafetyService{report: domain.SafetyReport{
		Passed: true, ConstitutionalAIPassed: true,
	}})
	r := gin.New()
	r.POST("/api/validate-safety", h.ValidateSafety)

	w := doJSON(t, r, http.MethodPost, "/api/validate-safety", `{"content":"all clean"}`)
	body := decodeBody(t, w)
	if _, present := body["sanitized_content"]; present {
		t.Fatalf("clean content must not include sanitized_content: %v", body)
	}
}

// --- agent handler ---

func agentRouter(resp agent.Response, memory agent.Memory) *gin.Engine {
	h := NewAgentHandler(&fakeAgentService{resp: resp}, memory)
	r := gin.New()
	r.POST("/api/agent/chat", h.Chat)
	r.POST("/api/agent/start-lesson", h.StartLesson)
	r.POST("/api/agent/submit-answer", h.SubmitAnswer)
	r.GET("/api/agent/learning-path/:learner_id", h.LearningPath)
	return r
}

func TestAgentChat(t *testing.T) {
	r := agentRouter(agent.Response{Response: "hi there", Status: "success", LearnerID: "l1"}, &fakeMemory{})

	w := doJSON(t, r, http.MethodPost, "/api/agent/chat", `{"learner_id":"l1","message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "success" || body["response"] != "hi there" {
		t.Fatalf("body: got=%v", body)
	}
}

func TestAgentChatMissingFields(t *testing.T) {
	r := agentRouter(agent.Response{}, &fakeMemory{})
	w := doJSON(t, r, http.MethodPost, "/api/agent/chat", `{"learner_id":"l1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", w.Code)
	}
}

func TestLearningPathReportsReinforcement(t *testing.T) {
	lc := domain.DefaultLearnerContext("l1")
	lc.PerformanceMetrics = domain.PerformanceMetrics{AverageScore: 0.25, QuizzesTaken: 4}
	r := agentRouter(agent.Response{}, &fakeMemory{lc: lc})

	w := doJSON(t, r, http.MethodGet, "/api/agent/learning-path/l1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	body := decodeBody(t, w)
	if body["needs_reinforcement"] != true {
		t.Fatalf("want reinforcement flag, got=%v", body)
	}
	if body["current_level"] != domain.LevelBeginner {
		t.Fatalf("level: got=%v", body["current_level"])
	}
}
