package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/config"
	"github.com/dgallion1/markforest/internal/pipeline"
)

const testKey = "secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:              testKey,
		WorkerCount:         1,
		MaxQueueSize:        10,
		MaxBatchConcurrency: 2,
		MaxUploadBytes:      1 << 20,
		JobTTL:              time.Hour,
		IDCacheTTL:          time.Minute,
		StatsWindow:         time.Hour,
	}
	a := analysis.New(analysis.Options{Connector: cfg.Connector.Inference()}, analysis.NewStats(cfg.StatsWindow), logger)
	orch := pipeline.NewOrchestrator(cfg, a, logger)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, a, logger, cfg)
}

func do(t *testing.T, s *Server, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body)
	}
}

func TestMetricsIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	for _, header := range []string{"", "Bearer wrong", "Basic secret"} {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/analysis", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestAnalyzeText(t *testing.T) {
	s := newTestServer(t)
	body := `{"text":"One {A|root|X} {B|A}\n\nTwo {C|root} {line|3} {line}","title":"notes"}`
	rec := do(t, s, http.MethodPost, "/api/analyze/text", "application/json", strings.NewReader(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	res := decode[analysis.Result](t, rec)
	if res.Title != "notes" || res.Summary.Trees != 2 || res.Summary.Pairs != 1 {
		t.Errorf("unexpected result %+v", res.Summary)
	}
}

func TestAnalyzeText_Validation(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{
		`{"text":""}`,
		`{"text":"x","format":"pdf"}`,
		`{"text":"x","extra":1}`,
		`not json`,
	} {
		rec := do(t, s, http.MethodPost, "/api/analyze/text", "application/json", strings.NewReader(body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestAnalyzeUpload(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "file", map[string]string{"doc.md": "# Title {T|root}\n\nBody {U|T}\n"})
	rec := do(t, s, http.MethodPost, "/api/analyze", ct, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	res := decode[analysis.Result](t, rec)
	// T and U sit in different blocks, so U is an orphan root in its own scope.
	if res.Summary.Scopes != 2 || res.Summary.Diagnostics != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
}

func TestAnalyzeUpload_UnsupportedType(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "file", map[string]string{"doc.exe": "MZ"})
	rec := do(t, s, http.MethodPost, "/api/analyze", ct, body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "files", map[string]string{
		"a.txt": "{A|root} {B|A}",
		"b.txt": "{C|root}",
		"c.bin": "nope",
	})
	rec := do(t, s, http.MethodPost, "/api/analyze/batch", ct, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	out := decode[struct {
		Results []BatchItem `json:"results"`
	}](t, rec)
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	byName := map[string]BatchItem{}
	for _, item := range out.Results {
		byName[item.Filename] = item
	}
	if byName["a.txt"].Result == nil || byName["a.txt"].Result.Summary.Nodes != 2 {
		t.Errorf("unexpected a.txt result %+v", byName["a.txt"])
	}
	if byName["c.bin"].Error == "" {
		t.Error("expected error for unsupported file")
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "file", map[string]string{"doc.txt": "{A|root} {B|A}"})
	rec := do(t, s, http.MethodPost, "/api/jobs", ct, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	accepted := decode[map[string]any](t, rec)
	jobID, _ := accepted["job_id"].(string)
	if jobID == "" || accepted["poll_url"] != "/api/jobs/"+jobID {
		t.Fatalf("unexpected accept body %v", accepted)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = do(t, s, http.MethodGet, "/api/jobs/"+jobID, "", nil)
		snap := decode[pipeline.JobSnapshot](t, rec)
		if snap.Status.Terminal() {
			if snap.Status != pipeline.StatusCompleted {
				t.Fatalf("job failed: %v", snap.Progress.Errors)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = do(t, s, http.MethodGet, "/api/jobs/"+jobID+"/result", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if res := decode[analysis.Result](t, rec); res.Summary.Nodes != 2 {
		t.Errorf("expected 2 nodes, got %d", res.Summary.Nodes)
	}

	if rec := do(t, s, http.MethodGet, "/api/jobs/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing job, got %d", rec.Code)
	}
}

func TestNextIDAndInvalidate(t *testing.T) {
	s := newTestServer(t)
	next := func(text string) map[string]any {
		body := `{"document_id":"d1","seed":"N1","text":` + strings.TrimSpace(mustJSON(t, text)) + `}`
		rec := do(t, s, http.MethodPost, "/api/ids/next", "application/json", strings.NewReader(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		return decode[map[string]any](t, rec)
	}

	text := "{N1a|root} {N1b|N1a}"
	first := next(text)
	if first["id"] != "N1c" || first["cached"] != false {
		t.Errorf("unexpected first allocation %v", first)
	}
	// Same length: the cache is reused and remembers N1c.
	second := next(text)
	if second["id"] != "N1d" || second["cached"] != true {
		t.Errorf("unexpected second allocation %v", second)
	}

	if rec := do(t, s, http.MethodDelete, "/api/ids/d1", "", nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/ids/d1", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after invalidate, got %d", rec.Code)
	}
	if third := next(text); third["id"] != "N1c" {
		t.Errorf("expected rescan after invalidate, got %v", third)
	}
}

func TestNextID_Validation(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/ids/next", "application/json", strings.NewReader(`{"seed":"a"}`))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "document_id") {
		t.Errorf("expected 400 naming document_id, got %d %s", rec.Code, rec.Body)
	}
}

func TestAnalysisStats(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/analyze/text", "application/json", strings.NewReader(`{"text":"{A|root}"}`))
	rec := do(t, s, http.MethodGet, "/api/stats/analysis", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := decode[struct {
		Stats analysis.StatsSnapshot `json:"stats"`
	}](t, rec)
	if out.Stats.Count != 1 {
		t.Errorf("expected one sample, got %d", out.Stats.Count)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd": "passwd",
		`C:\docs\a.txt`:    "a.txt",
		"":                 "unnamed",
		"a..b.md":          "a_b.md",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
