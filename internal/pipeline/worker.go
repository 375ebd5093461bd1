package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docpress/internal/compress"
	"github.com/dgallion1/docpress/internal/metrics"
	"github.com/dgallion1/docpress/internal/parser"
	"github.com/dgallion1/docpress/internal/pathstore"
	"github.com/dgallion1/docpress/internal/reportstore"
)

// Worker processes a single document job.
type Worker struct {
	engine   *compress.Engine
	store    *reportstore.Store
	exporter *pathstore.Exporter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewWorker(engine *compress.Engine, store *reportstore.Store, exporter *pathstore.Exporter, m *metrics.Metrics, log *slog.Logger) *Worker {
	return &Worker{
		engine:   engine,
		store:    store,
		exporter: exporter,
		metrics:  m,
		log:      log,
	}
}

// Process runs the full compression pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	engine := w.engine
	if job.Config != nil {
		e, err := engine.With(*job.Config)
		if err != nil {
			w.fail(log, job, "config", err)
			return
		}
		engine = e
	}

	// Phase 1: Load
	job.SetStatus(StatusLoading, "loading")
	doc, err := parser.Parse(bytes.NewReader(job.FileData()), job.Filename, engine.ParserOptions())
	if err != nil {
		w.fail(log, job, "loading", fmt.Errorf("parse: %w", err))
		return
	}
	job.setHash(ContentHashHex([]byte(doc.Text())))

	// Phase 1.5: Dedup check. A forced run of known content keeps the
	// earlier doc id so its export replaces the earlier one.
	if w.store != nil {
		rec, err := w.store.FindByHash(ctx, job.ContentHash)
		switch {
		case err == nil && job.Force:
			log.Info("forced re-run of known document", "existing_doc_id", rec.DocID)
			job.setDocID(rec.DocID)
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", rec.DocID, "report_id", rec.ID)
			w.finished(StatusDupSkipped)
			job.markDuplicate(rec.DocID, rec.ID)
			return
		case !errors.Is(err, reportstore.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 2: Compress. Engine events drive status and progress.
	run, err := engine.Observed(job).Compress(ctx, doc)
	if err != nil {
		w.fail(log, job, "compressing", err)
		return
	}
	log.Info("compression complete",
		"chunks", run.Chunks.Len(),
		"sections", len(run.Sections),
		"critical_facts", len(run.Report.CriticalFacts),
		"summary_words", run.DocumentSummary.SummaryWords,
	)

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	if w.store != nil {
		if _, err := w.store.PutReport(ctx, job.ID, job.DocID, job.ContentHash, run.Report); err != nil {
			w.fail(log, job, "storing", err)
			return
		}
	}
	job.setReport(job.ID, run.Report)

	if w.exporter != nil {
		res, err := w.exporter.Replace(ctx, job.DocID, run.Report)
		if err != nil {
			log.Error("pathstore export failed", "error", err)
			job.AddError(fmt.Sprintf("export: %s", err))
		} else {
			log.Info("pathstore export complete", "nodes", res.Nodes, "links", res.Links)
		}
	}

	w.finished(StatusCompleted)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	w.finished(StatusFailed)
	job.SetStatus(StatusFailed, phase)
}

// finished counts the run. It is called before the final status is set so
// pollers never observe a final job ahead of its metric.
func (w *Worker) finished(s JobStatus) {
	if w.metrics != nil {
		w.metrics.RunFinished(string(s))
	}
}
