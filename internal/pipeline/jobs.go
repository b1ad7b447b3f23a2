package pipeline

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docxref/internal/xref"
)

// JobStatus represents the state of a resolution build.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusResolving  JobStatus = "resolving"
	StatusCompleted  JobStatus = "completed"
	StatusReconciled JobStatus = "reconciled"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one document build: its inputs, the engine state and the
// reports it produced.
type Job struct {
	mu sync.Mutex

	ID string `json:"build_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Source   string    `json:"source,omitempty"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	htmlData   []byte
	sourceData []byte
	build      *xref.Build
	summary    *xref.Summary
	reconcile  *xref.Summary
	errors     []string
}

// Progress tracks resolution progress.
type Progress struct {
	Labels        int      `json:"labels"`
	TotalLinks    int      `json:"total_links"`
	LinksFixed    int      `json:"links_fixed"`
	LinksExisting int      `json:"links_existing"`
	LinksFailed   int      `json:"links_failed"`
	Errors        []string `json:"errors"`
}

// JobStore is a thread-safe in-memory build registry with TTL eviction.
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

// Delete drops a build. It reports whether the build existed.
func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok
}

// Len returns the number of tracked builds.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired builds.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
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

// SetInput sets the rendered HTML and the optional source for processing.
func (j *Job) SetInput(htmlData, sourceData []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.htmlData = htmlData
	j.sourceData = sourceData
	j.ContentHash = ContentHashHex(htmlData)
}

// Input returns the rendered HTML and the source bytes.
func (j *Job) Input() (htmlData, sourceData []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.htmlData, j.sourceData
}

// SetLabelCount records how many labels the source declared.
func (j *Job) SetLabelCount(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Labels = n
	j.UpdatedAt = time.Now()
}

// SetResult stores the engine state and the primary-pass summary.
func (j *Job) SetResult(b *xref.Build, s xref.Summary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.build = b
	j.summary = &s
	j.Progress.TotalLinks = s.Processed
	j.Progress.LinksFixed = s.Fixed
	j.Progress.LinksExisting = s.Existing
	j.Progress.LinksFailed = s.Failed
	j.htmlData = nil
	j.UpdatedAt = time.Now()
}

// WithBuild runs fn with the job's engine state while holding the job lock,
// so passes over one build never overlap. It reports false when the build
// has no engine state yet.
func (j *Job) WithBuild(fn func(b *xref.Build)) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.build == nil {
		return false
	}
	fn(j.build)
	j.UpdatedAt = time.Now()
	return true
}

// Reconciled records a reconciliation summary.
func (j *Job) Reconciled(s xref.Summary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reconcile = &s
	j.Progress.LinksFixed += s.Fixed
	j.Progress.LinksFailed = countFailed(j.summary, &s)
	j.Status = StatusReconciled
	j.Phase = "reconciled"
	j.UpdatedAt = time.Now()
}

// countFailed is the primary-pass failures minus those reconciliation fixed.
func countFailed(primary, rec *xref.Summary) int {
	if primary == nil {
		return rec.Failed
	}
	failed := primary.Failed - rec.Fixed
	if failed < rec.Failed {
		failed = rec.Failed
	}
	return failed
}

// Document renders the build's current tree.
func (j *Job) Document() ([]byte, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.build == nil {
		return nil, false
	}
	var buf bytes.Buffer
	if err := j.build.Tree().Render(&buf); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string        `json:"build_id"`
	Status    JobStatus     `json:"status"`
	Phase     string        `json:"phase"`
	Filename  string        `json:"filename"`
	Source    string        `json:"source,omitempty"`
	Title     string        `json:"title"`
	Progress  Progress      `json:"progress"`
	Summary   *xref.Summary `json:"summary,omitempty"`
	Reconcile *xref.Summary `json:"reconcile,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append(make([]string, 0, len(j.Progress.Errors)), j.Progress.Errors...)
	return JobSnapshot{
		ID:        j.ID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Source:    j.Source,
		Title:     j.Title,
		Progress:  p,
		Summary:   j.summary,
		Reconcile: j.reconcile,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
