package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/quizgest/internal/convert"
	"github.com/dgallion1/quizgest/internal/parser"
	"github.com/dgallion1/quizgest/internal/pathstore"
	"github.com/dgallion1/quizgest/internal/quiz"
	"github.com/dgallion1/quizgest/internal/stats"
)

// NodeWriter is the part of the result store the worker publishes through.
// *pathstore.Client satisfies it.
type NodeWriter interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
}

// Worker processes a single document job.
type Worker struct {
	conv    *convert.Converter
	store   NodeWriter
	jobs    *JobStore
	stats   *stats.Recorder
	log     *slog.Logger

	maxConcurrentStore int
	backoff            func(int) time.Duration
}

// NewWorker creates a worker. store, jobs and rec may be nil; without a
// store the questions are only kept on the job.
func NewWorker(conv *convert.Converter, store NodeWriter, jobs *JobStore, rec *stats.Recorder, log *slog.Logger, maxStore int) *Worker {
	if maxStore <= 0 {
		maxStore = 1
	}
	return &Worker{
		conv:               conv,
		store:              store,
		jobs:               jobs,
		stats:              rec,
		log:                log,
		maxConcurrentStore: maxStore,
		backoff:            Backoff,
	}
}

// QuestionKey is the result store path of the i-th question of a document.
// The zero-padded index comes first so a prefix scan lists questions in
// discovery order.
func QuestionKey(docID string, q quiz.Question, i int) string {
	return fmt.Sprintf("quizzes/%s/questions/%05d-%d", docID, i, q.ID)
}

// MetaKey is the result store path of a document's metadata node.
func MetaKey(docID string) string {
	return fmt.Sprintf("quizzes/%s/meta", docID)
}

// Process runs the full conversion pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	defer job.releaseFileData()

	if w.jobs != nil {
		if prev := w.jobs.FindCompleted(job.ContentHash, job.DocID, job.ID); prev != nil {
			log.Info("duplicate document, reusing result", "existing_job_id", prev.ID)
			job.SetQuestions(prev.Questions())
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 1: Decode
	start := time.Now()
	job.SetStatus(StatusDecoding, "decoding")
	p, err := parser.ForFile(job.Filename, w.conv.Parser)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "decoding")
		return
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		if w.stats != nil {
			w.stats.RecordFailure()
		}
		log.Error("decode failed", "error", err)
		job.AddError(fmt.Sprintf("decode: %s", err))
		job.SetStatus(StatusFailed, "decoding")
		return
	}

	// Phase 2: Assemble
	decode := time.Since(start)
	job.SetStatus(StatusAssembling, "assembling")
	res := w.conv.FromDocument(doc)
	res.Decode = decode
	job.SetResult(res)
	if w.stats != nil {
		w.stats.Record(res.Conversion())
	}
	log.Info("assembled questions", "pages", res.Pages, "lines", res.Lines, "questions", len(res.Questions),
		"decode_ms", res.Decode.Milliseconds(), "assemble_ms", res.Assemble.Milliseconds())

	if w.store == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	stored, hadErrors := w.storeQuestions(ctx, log, job, res.Questions)
	job.AddStored(stored)
	log.Info("storage complete", "stored", stored, "total", len(res.Questions))

	snap := job.Snapshot()
	metaErr := w.put(ctx, MetaKey(job.DocID), pathstore.NodeRequest{
		Value: map[string]any{
			"filename":         job.Filename,
			"title":            snap.Title,
			"content_hash":     job.ContentHash,
			"pages":            res.Pages,
			"questions":        len(res.Questions),
			"questions_stored": stored,
			"created_at":       job.CreatedAt.Format(time.RFC3339),
		},
		Source: "quizgest:" + job.DocID,
	})
	if metaErr != nil {
		log.Error("meta write failed", "error", metaErr)
		job.AddError(fmt.Sprintf("meta: %s", metaErr))
		hadErrors = true
	}

	switch {
	case !hadErrors:
		job.SetStatus(StatusCompleted, "done")
	case stored > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "storing")
	}
}

// storeQuestions writes each question with bounded concurrency and returns
// how many were stored.
func (w *Worker) storeQuestions(ctx context.Context, log *slog.Logger, job *Job, qs []quiz.Question) (int, bool) {
	type storeResult struct {
		key string
		err error
	}
	results := make(chan storeResult, len(qs))
	sem := make(chan struct{}, w.maxConcurrentStore)

	for i, q := range qs {
		sem <- struct{}{}
		go func(i int, q quiz.Question) {
			defer func() { <-sem }()
			key := QuestionKey(job.DocID, q, i)
			err := w.put(ctx, key, pathstore.NodeRequest{
				Value:  q,
				Source: "quizgest:" + job.DocID,
			})
			results <- storeResult{key: key, err: err}
		}(i, q)
	}

	stored := 0
	hadErrors := false
	for range qs {
		r := <-results
		if r.err != nil {
			log.Error("store failed", "key", r.key, "error", r.err)
			job.AddError(fmt.Sprintf("store %s: %s", r.key, r.err))
			hadErrors = true
			continue
		}
		stored++
	}
	return stored, hadErrors
}

func (w *Worker) put(ctx context.Context, key string, req pathstore.NodeRequest) error {
	return withRetry(ctx, w.backoff, func() error {
		err := w.store.PutNode(ctx, key, req)
		if err != nil && IsRetryable(err) {
			w.log.Warn("retryable store error", "key", key, "error", err)
		}
		return err
	})
}
