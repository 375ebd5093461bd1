// Package pipeline runs compression jobs on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docpress/internal/compress"
	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/metrics"
	"github.com/dgallion1/docpress/internal/pathstore"
	"github.com/dgallion1/docpress/internal/reportstore"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// Orchestrator manages the document compression pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	engine   *compress.Engine
	store    *reportstore.Store
	exporter *pathstore.Exporter
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      config.PipelineConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Deps are the orchestrator's collaborators. Exporter and Metrics are
// optional.
type Deps struct {
	Engine   *compress.Engine
	Store    *reportstore.Store
	Exporter *pathstore.Exporter
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.PipelineConfig, d Deps) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		engine:   d.Engine,
		store:    d.Store,
		exporter: d.Exporter,
		metrics:  d.Metrics,
		log:      d.Log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.engine, o.store, o.exporter, o.metrics, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Engine returns the default compression engine.
func (o *Orchestrator) Engine() *compress.Engine {
	return o.engine
}

// Store returns the report archive for direct use by API handlers.
func (o *Orchestrator) Store() *reportstore.Store {
	return o.store
}
