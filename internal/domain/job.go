// Package domain — queued job types.
// A Job is one asynchronous match request flowing through the broker:
// enqueue → dequeue → execute → persist → notify.
package domain

import "time"

// JobStatus tracks job lifecycle.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal returns true once the job has reached a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobPriority orders dequeueing across queues of the same broker.
type JobPriority int

const (
	PriorityHigh JobPriority = iota
	PriorityNormal
	PriorityLow

	priorityCount = iota
)

// JobPriorities enumerates the classes in dequeue order.
func JobPriorities() [priorityCount]JobPriority {
	return [priorityCount]JobPriority{PriorityHigh, PriorityNormal, PriorityLow}
}

func (p JobPriority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// ParseJobPriority maps an API priority string to a class, defaulting to normal.
func ParseJobPriority(s string) JobPriority {
	switch s {
	case "high", "urgent":
		return PriorityHigh
	case "low", "batch":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// TaskName selects the worker routine that runs a job.
type TaskName string

const (
	TaskMatch          TaskName = "match"
	TaskFindJobs       TaskName = "find_jobs"
	TaskFindCandidates TaskName = "find_candidates"
)

// MatchPayload carries the inputs of a queued match. Either inline raw
// records or directory ids; the worker resolves ids before canonicalizing.
// Nil Options means the engine defaults apply.
type MatchPayload struct {
	Candidate   map[string]any   `json:"candidate,omitempty"`
	Jobs        []map[string]any `json:"jobs,omitempty"`
	CandidateID string           `json:"candidate_id,omitempty"`
	JobID       string           `json:"job_id,omitempty"`
	WithCommute bool             `json:"with_commute_time,omitempty"`
	Options     *MatchOptions    `json:"options,omitempty"`
}

// Job is one queued match request.
type Job struct {
	ID          string       `json:"id"`
	Task        TaskName     `json:"task"`
	Queue       string       `json:"queue"`
	Priority    JobPriority  `json:"priority"`
	Status      JobStatus    `json:"status"`
	Payload     MatchPayload `json:"payload"`
	WebhookURL  string       `json:"webhook_url,omitempty"`
	Retries     int          `json:"retries"`
	MaxRetries  int          `json:"max_retries"`
	EnqueuedAt  time.Time    `json:"enqueued_at"`
	StartedAt   time.Time    `json:"started_at,omitempty"`
	CompletedAt time.Time    `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Duration returns the execution time of a finished job (0 otherwise).
func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// DLQMatchingFailed is the dead-letter queue for jobs that exhausted retries.
const DLQMatchingFailed = "matching_failed"

// StoredResult is the persisted form of a completed job. Payload holds the
// serialized response envelope; FilePath points at the blob tier when the
// payload exceeded the inline threshold.
type StoredResult struct {
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	Payload        []byte    `json:"-"`
	FilePath       string    `json:"file_path,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	ProcessingTime float64   `json:"processing_time,omitempty"` // seconds
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
