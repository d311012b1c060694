package pipeline

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/hl7gest/internal/annotate"
	"github.com/dgallion1/hl7gest/internal/extract"
)

// JobStatus represents the state of a batch job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusSplitting JobStatus = "splitting"
	StatusParsing   JobStatus = "parsing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Done reports whether the status is final.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks the state of a single batch file.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	specs    []extract.Spec
	results  []MessageResult
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalMessages     int      `json:"total_messages"`
	MessagesProcessed int      `json:"messages_processed"`
	MessagesFailed    int      `json:"messages_failed"`
	LintErrors        int      `json:"lint_errors"`
	LintWarnings      int      `json:"lint_warnings"`
	Errors            []string `json:"errors"`
}

// MessageResult is the outcome for one message of a batch.
type MessageResult struct {
	Index        int               `json:"index"`
	Line         int               `json:"line"`
	Segments     int               `json:"segments"`
	Message      *annotate.Message `json:"message,omitempty"`
	Record       extract.Record    `json:"record,omitempty"`
	LintErrors   int               `json:"lint_errors"`
	LintWarnings int               `json:"lint_warnings"`
	Error        string            `json:"error,omitempty"`
}

// NewJob creates a queued job for a batch file. Specs must already be
// validated.
func NewJob(filename string, data []byte, specs []extract.Spec) *Job {
	now := time.Now()
	return &Job{
		ID:          NewJobID(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
		specs:       specs,
	}
}

// NewJobID returns a time-ordered job id.
func NewJobID() string {
	return uuid.Must(uuid.NewV7()).String()
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

// Cleanup removes expired jobs.
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

// CurrentStatus returns the status under the job lock.
func (j *Job) CurrentStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalMessages records the number of messages found in the file.
func (j *Job) SetTotalMessages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalMessages = n
	j.UpdatedAt = time.Now()
}

// AddResult records one processed message.
func (j *Job) AddResult(r MessageResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, r)
	j.Progress.MessagesProcessed++
	if r.Error != "" {
		j.Progress.MessagesFailed++
	}
	j.Progress.LintErrors += r.LintErrors
	j.Progress.LintWarnings += r.LintWarnings
	j.UpdatedAt = time.Now()
}

// Results returns the processed messages ordered by index.
func (j *Job) Results() []MessageResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := slices.Clone(j.results)
	slices.SortFunc(out, func(a, b MessageResult) int { return a.Index - b.Index })
	return out
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

// Specs returns the extraction specs of the job.
func (j *Job) Specs() []extract.Spec {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.specs
}

// releaseInput drops the file bytes once processing is over.
func (j *Job) releaseInput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string          `json:"job_id"`
	Status      JobStatus       `json:"status"`
	Phase       string          `json:"phase"`
	Filename    string          `json:"filename"`
	ContentHash string          `json:"content_hash,omitempty"`
	Progress    Progress        `json:"progress"`
	Results     []MessageResult `json:"results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state. Results are only
// included once the job is done.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	errs := slices.Clone(j.Progress.Errors)
	if errs == nil {
		errs = []string{}
	}
	snap := JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress: Progress{
			TotalMessages:     j.Progress.TotalMessages,
			MessagesProcessed: j.Progress.MessagesProcessed,
			MessagesFailed:    j.Progress.MessagesFailed,
			LintErrors:        j.Progress.LintErrors,
			LintWarnings:      j.Progress.LintWarnings,
			Errors:            errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	done := j.Status.Done()
	j.mu.Unlock()

	if done {
		snap.Results = j.Results()
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
