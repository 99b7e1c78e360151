package httpadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/observability/metrics"
)

type queryFake struct {
	bundle *domain.AnswerBundle
	err    error
	last   domain.QueryRequest
}

func (f *queryFake) Answer(_ context.Context, req domain.QueryRequest) (*domain.AnswerBundle, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	if f.bundle != nil {
		return f.bundle, nil
	}
	return &domain.AnswerBundle{
		Message:    "Check the avalanche bulletin before you leave.",
		Sources:    []domain.Source{{Title: "Avalanche Safety", Content: "Check the bulletin", RelevanceScore: 0.8, DocumentType: "safety_guide"}},
		Confidence: 0.72,
		Retrieved:  []domain.SearchResult{{ID: "doc_0", Title: "Avalanche Safety"}},
		Metadata:   map[string]any{"model_used": "llama3.1:8b", "location_context": req.Location},
	}, nil
}

type searchFake struct {
	resp   *domain.SearchResponse
	err    error
	query  string
	filter domain.RetrievalFilter
	limit  int
}

func (f *searchFake) Search(_ context.Context, query string, filter domain.RetrievalFilter, limit int) (*domain.SearchResponse, error) {
	f.query, f.filter, f.limit = query, filter, limit
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &domain.SearchResponse{Query: query, Results: []domain.SearchResult{}, TotalFound: 0}, nil
}

type updaterFake struct {
	err     error
	reasons []string
}

func (f *updaterFake) RequestUpdate(_ context.Context, reason string) error {
	f.reasons = append(f.reasons, reason)
	return f.err
}

type statusFake struct {
	status domain.ServiceStatus
}

func (f statusFake) Status(context.Context) domain.ServiceStatus {
	return f.status
}

type testFakes struct {
	query   *queryFake
	search  *searchFake
	updater *updaterFake
}

func newTestDeps() Dependencies {
	deps, _ := newTestDepsWithFakes()
	return deps
}

func newTestDepsWithFakes() (Dependencies, *testFakes) {
	fakes := &testFakes{query: &queryFake{}, search: &searchFake{}, updater: &updaterFake{}}
	return Dependencies{
		Query:   fakes.query,
		Search:  fakes.search,
		Updater: fakes.updater,
		Status: statusFake{status: domain.ServiceStatus{
			Version:    "1.0.0",
			Generation: domain.GenerationStatus{Available: true, Provider: "ollama", Model: "llama3.1:8b"},
			Knowledge:  domain.KnowledgeStatus{Backend: "memory", Documents: 19, Categories: domain.KnowledgeCategories},
		}},
	}, fakes
}

func newTestHandler(cfg config.Config, deps Dependencies) http.Handler {
	return NewRouter(cfg, deps).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestChatReturnsAnswerBundleWithLocationContext(t *testing.T) {
	deps, fakes := newTestDepsWithFakes()
	handler := newTestHandler(config.Config{RAGTopK: 5}, deps)

	res := postJSON(t, handler, "/chat", map[string]any{
		"message":       "Is it safe to hike today?",
		"location":      " Zermatt ",
		"activity_type": "hiking",
		"context":       map[string]any{"weather": map[string]any{"condition": "snow", "temperature": -4}},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	if fakes.query.last.Filter != (domain.RetrievalFilter{Location: "Zermatt", Category: "hiking"}) {
		t.Fatalf("unexpected filter: %#v", fakes.query.last.Filter)
	}
	if fakes.query.last.Limit != 5 {
		t.Fatalf("expected default limit 5, got %d", fakes.query.last.Limit)
	}
	if fakes.query.last.Weather == nil || fakes.query.last.Weather.Condition != "snow" {
		t.Fatalf("expected weather forwarded, got %#v", fakes.query.last.Weather)
	}

	var resp map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["model_used"] != "llama3.1:8b" {
		t.Fatalf("expected model_used, got %#v", resp["model_used"])
	}
	if resp["location_context"] != "Zermatt" {
		t.Fatalf("expected location_context Zermatt, got %#v", resp["location_context"])
	}
	if _, ok := resp["sources"].([]any); !ok {
		t.Fatalf("expected sources array, got %#v", resp["sources"])
	}
}

func TestChatRejectsInvalidInput(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	cases := []struct {
		name    string
		payload any
	}{
		{name: "blank message", payload: map[string]any{"message": "   "}},
		{name: "missing message", payload: map[string]any{"location": "Zermatt"}},
		{name: "control characters in filter", payload: map[string]any{"message": "snow?", "location": "Zer\x00matt"}},
		{name: "whitespace-only filter", payload: map[string]any{"message": "snow?", "activity_type": "  "}},
		{name: "oversized filter", payload: map[string]any{"message": "snow?", "location": strings.Repeat("a", 101)}},
	}
	for _, tc := range cases {
		res := postJSON(t, handler, "/chat", tc.payload)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, res.Code, res.Body.String())
		}
	}
}

func TestChatRejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatMapsIndexNotReadyTo503WithoutLeakingDetails(t *testing.T) {
	deps, fakes := newTestDepsWithFakes()
	fakes.query.err = domain.WrapError(domain.ErrIndexNotReady, "answer", errors.New("collection alpine missing at 10.0.0.3"))
	handler := newTestHandler(config.Config{}, deps)

	res := postJSON(t, handler, "/chat", map[string]any{"message": "avalanche risk?"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "10.0.0.3") {
		t.Fatalf("expected internal details hidden, got %s", res.Body.String())
	}
}

func TestChatStreamEmitsChunksFinalEventAndDone(t *testing.T) {
	deps, fakes := newTestDepsWithFakes()
	fakes.query.bundle = &domain.AnswerBundle{
		Message:    strings.Repeat("é", streamChunkRunes+10),
		Sources:    []domain.Source{},
		Confidence: 0.3,
		Retrieved:  []domain.SearchResult{},
		Metadata:   map[string]any{"model_used": "fallback", "fallback_reason": "generation_unavailable"},
	}
	handler := newTestHandler(config.Config{}, deps)

	res := postJSON(t, handler, "/chat/stream", map[string]any{"message": "weather?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	var events []string
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(events) != 4 {
		t.Fatalf("expected 2 chunks, final and done, got %d: %v", len(events), events)
	}
	if events[3] != "[DONE]" {
		t.Fatalf("expected stream to end with [DONE], got %q", events[3])
	}

	var final streamEvent
	if err := json.Unmarshal([]byte(events[2]), &final); err != nil {
		t.Fatalf("decode final event: %v", err)
	}
	if final.Type != "final" || final.Confidence == nil || *final.Confidence != 0.3 {
		t.Fatalf("unexpected final event: %#v", final)
	}
	if final.GenerationMetadata["fallback_reason"] != "generation_unavailable" {
		t.Fatalf("expected fallback reason in final event, got %#v", final.GenerationMetadata)
	}
}

func TestSearchGetParsesQueryParameters(t *testing.T) {
	deps, fakes := newTestDepsWithFakes()
	handler := newTestHandler(config.Config{RAGTopK: 5}, deps)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/search?query=crevasse&limit=3&location=Saas-Fee&activity_type=", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fakes.search.query != "crevasse" || fakes.search.limit != 3 {
		t.Fatalf("unexpected search call: %q limit %d", fakes.search.query, fakes.search.limit)
	}
	if fakes.search.filter != (domain.RetrievalFilter{Location: "Saas-Fee"}) {
		t.Fatalf("expected empty activity to mean no constraint, got %#v", fakes.search.filter)
	}
}

func TestSearchRejectsBadLimit(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	for _, path := range []string{
		"/knowledge/search?query=snow&limit=abc",
		"/knowledge/search?query=snow&limit=0",
		"/knowledge/search?query=snow&limit=-2",
		"/knowledge/search?limit=3",
	} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, res.Code)
		}
	}
}

func TestSearchPostReturnsDegradedResults(t *testing.T) {
	deps, fakes := newTestDepsWithFakes()
	fakes.search.resp = &domain.SearchResponse{Query: "snow", Results: []domain.SearchResult{}, Degraded: true}
	handler := newTestHandler(config.Config{}, deps)

	res := postJSON(t, handler, "/knowledge/search", map[string]any{"query": "snow", "limit": 2})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded search, got %d", res.Code)
	}
	var resp domain.SearchResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Degraded || fakes.search.limit != 2 {
		t.Fatalf("unexpected response %#v (limit %d)", resp, fakes.search.limit)
	}
}

func TestKnowledgeUpdateReturns202And409(t *testing.T) {
	deps, fakes := newTestDepsWithFakes()
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/knowledge/update", nil))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(fakes.updater.reasons) != 1 || fakes.updater.reasons[0] != "api" {
		t.Fatalf("expected default reason, got %v", fakes.updater.reasons)
	}

	fakes.updater.err = domain.WrapError(domain.ErrUpdateInProgress, "request update", errors.New("busy"))
	res2 := postJSON(t, handler, "/knowledge/update", map[string]any{"reason": "new bulletin"})
	if res2.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res2.Code)
	}
	if fakes.updater.reasons[1] != "new bulletin" {
		t.Fatalf("expected reason forwarded, got %v", fakes.updater.reasons)
	}
}

func TestKnowledgeUpdateAcceptsEmptyChunkedBody(t *testing.T) {
	deps, fakes := newTestDepsWithFakes()
	handler := newTestHandler(config.Config{}, deps)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/update", strings.NewReader(""))
	req.ContentLength = -1
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for empty chunked body, got %d: %s", res.Code, res.Body.String())
	}
	if len(fakes.updater.reasons) != 1 || fakes.updater.reasons[0] != "api" {
		t.Fatalf("expected default reason, got %v", fakes.updater.reasons)
	}

	req = httptest.NewRequest(http.MethodPost, "/knowledge/update", strings.NewReader("{"))
	req.ContentLength = -1
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for truncated json, got %d", res.Code)
	}
}

func TestHealthReportsKnowledgeBaseAndModel(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/health", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" || !resp.ModelLoaded || resp.KnowledgeBaseSize != 19 || resp.Version != "1.0.0" {
		t.Fatalf("unexpected health: %#v", resp)
	}
}

func TestHealthIsInitializingWithEmptyIndex(t *testing.T) {
	deps := newTestDeps()
	deps.Status = statusFake{status: domain.ServiceStatus{Version: "1.0.0"}}
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp healthResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "initializing" {
		t.Fatalf("expected initializing, got %q", resp.Status)
	}
}

func TestModelStatusAndMetricsEndpoints(t *testing.T) {
	deps := newTestDeps()
	deps.Metrics = metrics.NewHTTPServerMetrics(serviceName)
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/models/status", nil))
	var status domain.ServiceStatus
	if err := json.Unmarshal(res.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Knowledge.Documents != 19 || len(status.Knowledge.Categories) != 7 {
		t.Fatalf("unexpected knowledge status: %#v", status.Knowledge)
	}

	_ = postJSON(t, handler, "/chat", map[string]any{"message": "avalanche?"})

	metricsRes := httptest.NewRecorder()
	handler.ServeHTTP(metricsRes, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := metricsRes.Body.String()
	if !strings.Contains(body, `alpine_http_requests_total{method="POST",path="/chat",service="api",status="200"} 1`) {
		t.Fatalf("expected chat request in metrics, got:\n%s", body)
	}
	if !strings.Contains(body, "alpine_rag_confidence_count") {
		t.Fatalf("expected confidence histogram, got:\n%s", body)
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json body, got %q", ct)
	}
}

func TestSplitByRunesKeepsMultibyteCharacters(t *testing.T) {
	parts := splitByRunes("Grüezi mitenand", 4)
	if strings.Join(parts, "") != "Grüezi mitenand" {
		t.Fatalf("expected lossless split, got %v", parts)
	}
	if parts[0] != "Grüe" {
		t.Fatalf("expected rune-based split, got %q", parts[0])
	}
}
