package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/metrics"
	"github.com/dgallion1/markforest/internal/parser"
)

// Worker processes a single document job.
type Worker struct {
	analyzer *analysis.Analyzer
	jobs     *JobStore
	opts     parser.Options
	log      *slog.Logger
}

func NewWorker(analyzer *analysis.Analyzer, jobs *JobStore, opts parser.Options, log *slog.Logger) *Worker {
	return &Worker{
		analyzer: analyzer,
		jobs:     jobs,
		opts:     opts,
		log:      log,
	}
}

// Process parses the upload and analyses it. A job whose content matches
// an already completed job reuses that result.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "file", job.Filename)

	if prev := w.jobs.CompletedByHash(job.ContentHash, job.ID); prev != nil {
		log.Info("duplicate content, reusing result", "previous_job_id", prev.ID)
		job.SetResult(prev.Result())
		w.finish(job, StatusCompleted, "dedup")
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.opts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		w.fail(job, "parsing", err)
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		w.fail(job, "parsing", fmt.Errorf("parse: %w", err))
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	}
	job.SetTextBytes(len(doc.Text))

	if err := ctx.Err(); err != nil {
		w.fail(job, "parsing", err)
		return
	}

	// Phase 2: Analyze
	job.SetStatus(StatusAnalyzing, "analyzing")
	res := w.analyzer.Analyze(doc)
	job.SetResult(res)
	log.Info("analysis complete",
		"scopes", res.Summary.Scopes,
		"trees", res.Summary.Trees,
		"pairs", res.Summary.Pairs,
		"diagnostics", res.Summary.Diagnostics,
	)
	w.finish(job, StatusCompleted, "done")
}

func (w *Worker) fail(job *Job, phase string, err error) {
	job.AddError(err.Error())
	w.finish(job, StatusFailed, phase)
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) {
	job.SetStatus(status, phase)
	metrics.RecordJobFinished(string(status))
}
