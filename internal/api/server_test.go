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

	"github.com/dgallion1/quizgest/internal/config"
	"github.com/dgallion1/quizgest/internal/pathstore"
	"github.com/dgallion1/quizgest/internal/pipeline"
	"github.com/dgallion1/quizgest/internal/quiz"
	"github.com/dgallion1/quizgest/internal/stats"
)

const testKey = "test-key"

const sampleQuiz = `1. What is 2+2?
A. 3
B. 4
`

type fakeQuizStore struct {
	nodes   map[string]any
	deleted []string
}

func (f *fakeQuizStore) GetNode(_ context.Context, key string) (*pathstore.Node, error) {
	v, ok := f.nodes[key]
	if !ok {
		return nil, nil
	}
	return &pathstore.Node{Key: key, Value: v}, nil
}

func (f *fakeQuizStore) ListChildren(_ context.Context, key string, _ int) ([]pathstore.Node, error) {
	var out []pathstore.Node
	for k, v := range f.nodes {
		if strings.HasPrefix(k, key+"/") {
			out = append(out, pathstore.Node{Key: k, Value: v})
		}
	}
	return out, nil
}

func (f *fakeQuizStore) DeleteNode(_ context.Context, key string, _ bool) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestServer(t *testing.T, store QuizStore) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	cfg := config.Config{
		QuizgestAPIKey:     testKey,
		WorkerCount:        1,
		MaxQueueSize:       4,
		MaxConcurrentStore: 1,
		MaxUploadBytes:     1 << 20,
		JobTTL:             time.Hour,
		LineTolerance:      5,
		PDFCropInset:       10,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := stats.NewRecorder(time.Hour)
	orch := pipeline.NewOrchestrator(cfg, nil, rec, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, store, rec, log, cfg), orch
}

func multipartBody(t *testing.T, field string, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
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

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/convert", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/convert", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestConvert_ReturnsQuestions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, "file", map[string]string{"quiz.txt": sampleQuiz}, nil)
	rec := do(t, s, http.MethodPost, "/api/convert", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var qs []quiz.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &qs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(qs) != 1 || qs[0].Body != "What is 2+2?" || len(qs[0].Options) != 2 {
		t.Errorf("unexpected questions: %+v", qs)
	}

	rec = do(t, s, http.MethodGet, "/api/stats/convert", nil, "")
	var st struct {
		Conversions stats.Snapshot `json:"conversions"`
	}
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st.Conversions.Count != 1 || st.Conversions.Questions != 1 {
		t.Errorf("expected 1 recorded conversion with 1 question, got %+v", st.Conversions)
	}
}

func TestConvert_EmptyResultIsArray(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, "file", map[string]string{"notes.txt": "no questions here\n"}, nil)
	rec := do(t, s, http.MethodPost, "/api/convert", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("expected %q, got %q", "[]", got)
	}
}

func TestConvert_Errors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body, ct := multipartBody(t, "file", map[string]string{"quiz.xls": "x"}, nil)
	if rec := do(t, s, http.MethodPost, "/api/convert", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", rec.Code)
	}

	body, ct = multipartBody(t, "file", map[string]string{"quiz.pdf": "not a pdf"}, nil)
	if rec := do(t, s, http.MethodPost, "/api/convert", body, ct); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for broken pdf, got %d", rec.Code)
	}

	body, ct = multipartBody(t, "file", map[string]string{"quiz.txt": sampleQuiz}, map[string]string{"tolerance": "-1"})
	if rec := do(t, s, http.MethodPost, "/api/convert", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad tolerance, got %d", rec.Code)
	}

	body, ct = multipartBody(t, "other", map[string]string{"quiz.txt": sampleQuiz}, nil)
	if rec := do(t, s, http.MethodPost, "/api/convert", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file, got %d", rec.Code)
	}
}

func TestIngest_StatusAndQuestions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, "file", map[string]string{"quiz.txt": sampleQuiz}, map[string]string{"doc_id": "bio-1"})
	rec := do(t, s, http.MethodPost, "/api/ingest", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID string `json:"job_id"`
		DocID string `json:"doc_id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &accepted)
	if accepted.DocID != "bio-1" {
		t.Errorf("expected doc id %q, got %q", "bio-1", accepted.DocID)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = do(t, s, http.MethodGet, "/api/ingest/"+accepted.JobID+"/status", nil, "")
		var st struct {
			Status pipeline.JobStatus `json:"status"`
		}
		json.Unmarshal(rec.Body.Bytes(), &st)
		if st.Status.Done() {
			if st.Status != pipeline.StatusCompleted {
				t.Fatalf("expected completed, got %q", st.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %s", rec.Body.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = do(t, s, http.MethodGet, "/api/ingest/"+accepted.JobID+"/questions", nil, "")
	var qs []quiz.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &qs); err != nil || len(qs) != 1 {
		t.Errorf("expected 1 question, got %s", rec.Body.String())
	}
}

func TestIngest_UnknownJob(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/api/ingest/nope/status", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/ingest/nope/questions", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestBatchIngest_ReportsPerFile(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, "files", map[string]string{"a.txt": sampleQuiz, "b.exe": "x"}, nil)
	rec := do(t, s, http.MethodPost, "/api/ingest/batch", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp struct {
		Jobs []map[string]any `json:"jobs"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Jobs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Jobs))
	}
	var accepted, rejected int
	for _, j := range resp.Jobs {
		if _, ok := j["error"]; ok {
			rejected++
		} else if _, ok := j["job_id"]; ok {
			accepted++
		}
	}
	if accepted != 1 || rejected != 1 {
		t.Errorf("expected 1 accepted and 1 rejected, got %d and %d", accepted, rejected)
	}
}

func TestQuiz_StoreNotConfigured(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/api/quizzes/d1", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestQuiz_GetAndDelete(t *testing.T) {
	store := &fakeQuizStore{nodes: map[string]any{
		"quizzes/d1/meta":             map[string]any{"title": "Bio"},
		"quizzes/d1/questions/1-0":    map[string]any{"id": 1},
		"quizzes/other/questions/1-0": map[string]any{"id": 9},
	}}
	s, _ := newTestServer(t, store)

	rec := do(t, s, http.MethodGet, "/api/quizzes/d1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Questions []any `json:"questions"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Questions) != 1 {
		t.Errorf("expected 1 stored question, got %d", len(resp.Questions))
	}

	if rec := do(t, s, http.MethodGet, "/api/quizzes/missing", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	if rec := do(t, s, http.MethodDelete, "/api/quizzes/d1", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "quizzes/d1" {
		t.Errorf("expected recursive delete of %q, got %v", "quizzes/d1", store.deleted)
	}
}

func TestQuiz_GetReturnsDiscoveryOrder(t *testing.T) {
	store := &fakeQuizStore{nodes: map[string]any{
		"quizzes/d1/meta":               map[string]any{"title": "Bio"},
		"quizzes/d1/questions/00002-10": map[string]any{"id": float64(10)},
		"quizzes/d1/questions/00000-2":  map[string]any{"id": float64(2)},
		"quizzes/d1/questions/00001-2":  map[string]any{"id": float64(2), "q": "second"},
		"quizzes/d1/questions/00010-1":  map[string]any{"id": float64(1)},
	}}
	s, _ := newTestServer(t, store)

	rec := do(t, s, http.MethodGet, "/api/quizzes/d1", nil, "")
	var resp struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []float64{2, 2, 10, 1}
	if len(resp.Questions) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(resp.Questions))
	}
	for i, id := range want {
		if resp.Questions[i]["id"] != id {
			t.Errorf("question[%d]: expected id %v, got %v", i, id, resp.Questions[i]["id"])
		}
	}
	if resp.Questions[1]["q"] != "second" {
		t.Errorf("expected duplicate ids to keep their order, got %v", resp.Questions[1])
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd.txt": "passwd.txt",
		"a..b.pdf":             "a_b.pdf",
		"":                     "unnamed",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
