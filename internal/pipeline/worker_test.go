package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/quizgest/internal/config"
	"github.com/dgallion1/quizgest/internal/convert"
	"github.com/dgallion1/quizgest/internal/pathstore"
	"github.com/dgallion1/quizgest/internal/quiz"
	"github.com/dgallion1/quizgest/internal/stats"
)

const sampleQuiz = `1. What is 2+2?
A. 3
B. 4
2. Capital of France?
A. Paris
B. Rome
`

type fakeStore struct {
	mu        sync.Mutex
	nodes     map[string]pathstore.NodeRequest
	fail      func(key string) error
	transient int
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: make(map[string]pathstore.NodeRequest)}
}

func (s *fakeStore) PutNode(_ context.Context, key string, req pathstore.NodeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transient > 0 {
		s.transient--
		return &pathstore.RetryableError{Err: errors.New("status 503")}
	}
	if s.fail != nil {
		if err := s.fail(key); err != nil {
			return err
		}
	}
	s.nodes[key] = req
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWorker(store NodeWriter, jobs *JobStore) *Worker {
	w := NewWorker(convert.New(), store, jobs, stats.NewRecorder(time.Hour), testLogger(), 2)
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func TestWorker_ProcessWithoutStore(t *testing.T) {
	job := NewJob("quiz.txt", "doc1", "", []byte(sampleQuiz))
	testWorker(nil, nil).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Questions != 2 {
		t.Errorf("expected 2 questions, got %d", snap.Progress.Questions)
	}
	qs := job.Questions()
	if qs[1].Body != "Capital of France?" {
		t.Errorf("expected body %q, got %q", "Capital of France?", qs[1].Body)
	}
	if job.FileData() != nil {
		t.Error("expected file data to be released after processing")
	}
}

func TestWorker_ProcessStoresQuestionsAndMeta(t *testing.T) {
	store := newFakeStore()
	job := NewJob("quiz.txt", "doc1", "", []byte(sampleQuiz))
	testWorker(store, nil).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.QuestionsStored != 2 {
		t.Errorf("expected 2 stored, got %d", snap.Progress.QuestionsStored)
	}
	for _, key := range []string{"quizzes/doc1/questions/00000-1", "quizzes/doc1/questions/00001-2", "quizzes/doc1/meta"} {
		if _, ok := store.nodes[key]; !ok {
			t.Errorf("expected node %q to be stored", key)
		}
	}
	q, ok := store.nodes["quizzes/doc1/questions/00000-1"].Value.(quiz.Question)
	if !ok || q.Body != "What is 2+2?" {
		t.Errorf("expected stored question body, got %#v", store.nodes["quizzes/doc1/questions/00000-1"].Value)
	}
}

func TestWorker_RetriesTransientStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.transient = 2
	job := NewJob("quiz.txt", "doc1", "", []byte(sampleQuiz))
	testWorker(store, nil).Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, got)
	}
}

func TestWorker_PartialStore(t *testing.T) {
	store := newFakeStore()
	store.fail = func(key string) error {
		if strings.HasSuffix(key, "/00001-2") {
			return errors.New("status 400: bad value")
		}
		return nil
	}
	job := NewJob("quiz.txt", "doc1", "", []byte(sampleQuiz))
	testWorker(store, nil).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Errorf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_AllStoresFail(t *testing.T) {
	store := newFakeStore()
	store.fail = func(string) error { return errors.New("status 403") }
	job := NewJob("quiz.txt", "doc1", "", []byte(sampleQuiz))
	testWorker(store, nil).Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, got)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	job := NewJob("quiz.xls", "doc1", "", []byte("x"))
	testWorker(nil, nil).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "decoding" {
		t.Errorf("expected failed in decoding, got %q in %q", snap.Status, snap.Phase)
	}
}

func TestWorker_DecodeError(t *testing.T) {
	job := NewJob("quiz.pdf", "doc1", "", []byte("not a pdf"))
	testWorker(nil, nil).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Progress.Errors) == 0 || !strings.HasPrefix(snap.Progress.Errors[0], "decode:") {
		t.Errorf("expected decode error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_DuplicateReusesResult(t *testing.T) {
	jobs := NewJobStore(time.Hour)
	w := testWorker(nil, jobs)

	first := NewJob("quiz.txt", "", "", []byte(sampleQuiz))
	jobs.Put(first)
	w.Process(context.Background(), first)

	second := NewJob("copy.txt", "", "", []byte(sampleQuiz))
	jobs.Put(second)
	w.Process(context.Background(), second)

	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Errorf("expected status %q, got %q", StatusDupSkipped, snap.Status)
	}
	if len(second.Questions()) != 2 {
		t.Errorf("expected reused questions, got %d", len(second.Questions()))
	}
}

func TestWorker_SameContentNewDocIDIsPublished(t *testing.T) {
	store := newFakeStore()
	jobs := NewJobStore(time.Hour)
	w := testWorker(store, jobs)

	first := NewJob("quiz.txt", "bio", "", []byte(sampleQuiz))
	jobs.Put(first)
	w.Process(context.Background(), first)

	second := NewJob("quiz.txt", "bio-copy", "", []byte(sampleQuiz))
	jobs.Put(second)
	w.Process(context.Background(), second)

	if got := second.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, got)
	}
	for _, key := range []string{MetaKey("bio-copy"), "quizzes/bio-copy/questions/00001-2"} {
		if _, ok := store.nodes[key]; !ok {
			t.Errorf("expected node %q to be stored", key)
		}
	}
}

func TestQuestionKey_SortsInDiscoveryOrder(t *testing.T) {
	keys := []string{
		QuestionKey("d", quiz.Question{ID: 10}, 2),
		QuestionKey("d", quiz.Question{ID: 2}, 9),
		QuestionKey("d", quiz.Question{ID: 2}, 10),
	}
	if !(keys[0] < keys[1] && keys[1] < keys[2]) {
		t.Errorf("expected keys ordered by index, got %v", keys)
	}
}

func TestWorker_RecordsConversionStats(t *testing.T) {
	rec := stats.NewRecorder(time.Hour)
	w := NewWorker(convert.New(), nil, nil, rec, testLogger(), 1)
	w.Process(context.Background(), NewJob("quiz.txt", "", "", []byte(sampleQuiz)))
	w.Process(context.Background(), NewJob("quiz.pdf", "", "", []byte("not a pdf")))

	snap := rec.Snapshot()
	if snap.Count != 1 || snap.Failures != 1 {
		t.Errorf("expected 1 conversion and 1 failure, got %+v", snap)
	}
	if snap.Questions != 2 || snap.Pages != 1 {
		t.Errorf("expected 2 questions on 1 page, got %d and %d", snap.Questions, snap.Pages)
	}
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func(int) time.Duration { return 0 }, func() error {
		calls++
		return errors.New("permanent")
	})
	if err == nil || calls != 1 {
		t.Errorf("expected a single failed call, got %d calls and %v", calls, err)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func(int) time.Duration { return 0 }, func() error {
		calls++
		return &pathstore.RetryableError{Err: errors.New("busy")}
	})
	if !IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
	if calls != MaxRetries {
		t.Errorf("expected %d calls, got %d", MaxRetries, calls)
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: expected backoff in [%v, %v), got %v", attempt, base, base+base/2, d)
		}
	}
	if d := Backoff(10); d > 45*time.Second {
		t.Errorf("expected capped backoff, got %v", d)
	}
}

func TestOrchestrator_ProcessesSubmittedJobs(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, MaxConcurrentStore: 2, JobTTL: time.Hour, LineTolerance: 5, PDFCropInset: 10}
	o := NewOrchestrator(cfg, nil, stats.NewRecorder(time.Hour), testLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("quiz.txt", "", "", []byte(sampleQuiz))
	if err := o.Submit(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected submitted job to be registered")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Status.Done() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", job.Snapshot().Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, got)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, nil, nil, testLogger())

	if err := o.Submit(NewJob("a.txt", "", "", []byte("a"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job := NewJob("b.txt", "", "", []byte("b"))
	if err := o.Submit(job); err == nil {
		t.Fatal("expected queue full error")
	}
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, got)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
