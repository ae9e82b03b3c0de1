package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a packing job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the state of a single packing run.
type Job struct {
	mu sync.Mutex

	ID      string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Phase   string    `json:"phase"`
	Request Request   `json:"request"`

	Progress JobProgress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	result *Result
	errors []string
}

// Counter is the (current, max) pair of one progress channel.
type Counter struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// JobProgress tracks the two progress channels of a run.
type JobProgress struct {
	Fetch     Counter  `json:"fetch"`
	Transcode Counter  `json:"transcode"`
	Errors    []string `json:"errors"`
}

// NewJob creates a queued job with a time-ordered ID.
func NewJob(req Request) (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	now := time.Now()
	return &Job{
		ID:        id.String(),
		Status:    StatusQueued,
		Phase:     "queued",
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
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

// Delete removes a job and reports whether it existed.
func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok
}

// List returns all retained jobs, newest first.
func (s *JobStore) List() []*Job {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()
	slices.SortFunc(jobs, func(a, b *Job) int { return strings.Compare(b.ID, a.ID) })
	return jobs
}

// Len returns the number of retained jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs idle for longer than the TTL, along with their
// archives.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Stage records the current step of a running job.
func (j *Job) Stage(name string) {
	j.SetStatus(StatusRunning, name)
}

// Report updates one progress channel.
func (j *Job) Report(phase Phase, current, max int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c := Counter{Current: current, Max: max}
	switch phase {
	case PhaseFetch:
		j.Progress.Fetch = c
	case PhaseTranscode:
		j.Progress.Transcode = c
	}
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

// Complete stores the run result and marks the job completed.
func (j *Job) Complete(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Result returns the run result, or nil until the job completes.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string      `json:"job_id"`
	Status    JobStatus   `json:"status"`
	Phase     string      `json:"phase"`
	Request   Request     `json:"request"`
	Progress  JobProgress `json:"progress"`
	Archive   string      `json:"archive,omitempty"`
	Size      int         `json:"size,omitempty"`
	ElapsedMS int64       `json:"elapsed_ms"`
	CreatedAt time.Time   `json:"created_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	snap := JobSnapshot{
		ID:      j.ID,
		Status:  j.Status,
		Phase:   j.Phase,
		Request: j.Request,
		Progress: JobProgress{
			Fetch:     j.Progress.Fetch,
			Transcode: j.Progress.Transcode,
			Errors:    append(errs[:0:0], errs...),
		},
		CreatedAt: j.CreatedAt,
	}
	if j.result != nil {
		snap.Archive = j.result.Name
		snap.Size = len(j.result.Archive)
		snap.ElapsedMS = j.result.ElapsedMS
	} else if j.Status == StatusRunning {
		snap.ElapsedMS = time.Since(j.CreatedAt).Milliseconds()
	}
	return snap
}
