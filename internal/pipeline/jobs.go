package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docpress/internal/compress"
	"github.com/dgallion1/docpress/internal/events"
	"github.com/dgallion1/docpress/internal/report"
)

// JobStatus represents the state of a compression job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusLoading     JobStatus = "loading"
	StatusChunking    JobStatus = "chunking"
	StatusSummarizing JobStatus = "summarizing"
	StatusAggregating JobStatus = "aggregating"
	StatusReporting   JobStatus = "reporting"
	StatusStoring     JobStatus = "storing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusDupSkipped  JobStatus = "duplicate_skipped"
)

// Final reports whether no further transitions will happen.
func (s JobStatus) Final() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDupSkipped
}

// Job tracks the state of a single document compression.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	DocID    string    `json:"doc_id"`
	ReportID string    `json:"report_id,omitempty"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Config overrides the orchestrator's compression settings when set.
	Config *compress.Config `json:"-"`
	// Force skips the duplicate check.
	Force bool `json:"-"`

	// Internal: not serialized.
	fileData []byte
	report   *report.Report
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks      int      `json:"total_chunks"`
	ChunksSummarized int      `json:"chunks_summarized"`
	Sections         int      `json:"sections"`
	CriticalFacts    int      `json:"critical_facts"`
	Fallbacks        int      `json:"generator_fallbacks"`
	Errors           []string `json:"errors"`
}

// NewJob creates a queued job with fresh job and document ids.
func NewJob(filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// IncrChunksSummarized atomically increments chunks summarized.
func (j *Job) IncrChunksSummarized() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksSummarized++
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// setReport attaches the finished report and drops the upload.
func (j *Job) setReport(id string, r *report.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ReportID = id
	j.report = r
	j.fileData = nil
	if r != nil {
		j.Progress.CriticalFacts = len(r.CriticalFacts)
	}
	j.UpdatedAt = time.Now()
}

// Report returns the finished report, or nil. Duplicate jobs carry only a
// ReportID.
func (j *Job) Report() *report.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

// Observe maps engine events onto job status and progress.
func (j *Job) Observe(e events.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch e.Kind {
	case events.KindStarted:
		switch e.Stage {
		case events.StageChunk:
			j.Status, j.Phase = StatusChunking, "chunking"
		case events.StageSummarize:
			j.Status, j.Phase = StatusSummarizing, "summarizing chunks"
		case events.StageSection:
			j.Status, j.Phase = StatusAggregating, "aggregating sections"
		case events.StageDocument:
			j.Status, j.Phase = StatusAggregating, "aggregating document"
		case events.StageReport:
			j.Status, j.Phase = StatusReporting, "reporting"
		}
	case events.KindCompleted:
		switch e.Stage {
		case events.StageChunk:
			j.Progress.TotalChunks = e.Count
		case events.StageSection:
			j.Progress.Sections = e.Count
		}
	case events.KindChunkSummarized:
		j.Progress.ChunksSummarized++
	case events.KindFallback:
		j.Progress.Fallbacks++
	}
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	DocID       string    `json:"doc_id"`
	ReportID    string    `json:"report_id,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		DocID:       j.DocID,
		ReportID:    j.ReportID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

func (j *Job) setHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

func (j *Job) setDocID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.DocID = id
}

// markDuplicate points the job at an earlier report for the same content.
func (j *Job) markDuplicate(docID, reportID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.DocID = docID
	j.ReportID = reportID
	j.fileData = nil
	j.Status = StatusDupSkipped
	j.Phase = "dedup"
	j.UpdatedAt = time.Now()
}
