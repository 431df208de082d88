package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docpress/internal/calc"
	"github.com/dgallion1/docpress/internal/parser"
)

// JobStatus represents the state of a document build.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusComputing JobStatus = "computing"
	StatusRendering JobStatus = "rendering"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusSkipped   JobStatus = "skipped"
)

// Terminal reports whether no further transitions follow.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Job tracks the state of a single document build.
type Job struct {
	mu sync.Mutex

	ID   string `json:"build_id"`
	File string `json:"file"`
	Name string `json:"name"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	result   calc.Result
	pdfPath  string
	docxPath string
	pages    int
	duration time.Duration
	errors   []string

	done     chan struct{}
	doneOnce sync.Once
}

// NewJob creates a queued build for the document at path. IDs are UUIDv7 so
// they sort by creation time.
func NewJob(path string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.Must(uuid.NewV7()).String(),
		File:      path,
		Name:      parser.DocumentName(path),
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}
}

// BaseName is the file name without directory.
func (j *Job) BaseName() string {
	return filepath.Base(j.File)
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

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
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
	j.UpdatedAt = time.Now()
}

// SetResult records what the computation pass changed.
func (j *Job) SetResult(res calc.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.UpdatedAt = time.Now()
}

// SetArtifacts records the rendered outputs.
func (j *Job) SetArtifacts(pdfPath, docxPath string, pages int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pdfPath = pdfPath
	j.docxPath = docxPath
	j.pages = pages
	j.UpdatedAt = time.Now()
}

// SetDuration records the build wall time.
func (j *Job) SetDuration(d time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.duration = d
}

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) markDone() {
	j.doneOnce.Do(func() { close(j.done) })
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID            string       `json:"build_id"`
	File          string       `json:"file"`
	Name          string       `json:"name"`
	Status        JobStatus    `json:"status"`
	Phase         string       `json:"phase"`
	DatesReplaced int          `json:"dates_replaced"`
	Calculated    bool         `json:"calculated"`
	Totals        *calc.Totals `json:"totals,omitempty"`
	PDFPath       string       `json:"pdf_path,omitempty"`
	DOCXPath      string       `json:"docx_path,omitempty"`
	Pages         int          `json:"pages"`
	DurationMs    int64        `json:"duration_ms"`
	Errors        []string     `json:"errors"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	return JobSnapshot{
		ID:            j.ID,
		File:          j.File,
		Name:          j.Name,
		Status:        j.Status,
		Phase:         j.Phase,
		DatesReplaced: j.result.DatesReplaced,
		Calculated:    j.result.Calculated,
		Totals:        j.result.Totals,
		PDFPath:       j.pdfPath,
		DOCXPath:      j.docxPath,
		Pages:         j.pages,
		DurationMs:    j.duration.Milliseconds(),
		Errors:        errs,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}
