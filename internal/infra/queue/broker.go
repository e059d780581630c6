// Package queue implements the asynchronous matching surface: a priority
// broker over named queues, a worker pool that drives the match engine, and
// the webhook notifier for completion callbacks.
package queue

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
)

// Config bounds the broker.
type Config struct {
	MaxDepth   int           // pending jobs across all queues before rejection
	ResultTTL  time.Duration // retention of terminal jobs in the registry
	JobTimeout time.Duration // hard execution timeout per job
	MaxRetries int           // attempts after the first failure
	SweepEvery time.Duration // registry sweep interval
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth:   10000,
		ResultTTL:  24 * time.Hour,
		JobTimeout: time.Hour,
		MaxRetries: 3,
		SweepEvery: time.Minute,
	}
}

// DefaultQueue receives jobs that name no queue.
const DefaultQueue = "matching"

// Broker owns the named priority queues and the job registry. Workers block
// on Dequeue; state transitions run under the broker lock so status reads
// are always consistent.
type Broker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	cfg    Config
	queues map[string]*classes
	jobs   map[string]*domain.Job
	closed bool
	log    *zap.Logger

	enqueued  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	dead      atomic.Int64
}

// classes holds one FIFO slice per priority class.
type classes [3][]*domain.Job

// NewBroker creates an empty broker.
func NewBroker(cfg Config, log *zap.Logger) *Broker {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultConfig().ResultTTL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	b := &Broker{
		cfg:    cfg,
		queues: make(map[string]*classes),
		jobs:   make(map[string]*domain.Job),
		log:    log.Named("broker"),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// EnqueueRequest describes one job submission.
type EnqueueRequest struct {
	Task       domain.TaskName
	Payload    domain.MatchPayload
	Queue      string // empty means DefaultQueue
	JobID      string // empty means a fresh uuid
	Priority   domain.JobPriority
	WebhookURL string
	MaxRetries int // 0 means the broker default
}

// Enqueue registers a job and places it on its queue. Re-submitting the id
// of a job that is still queued or processing returns the existing job, so
// client retries stay idempotent.
func (b *Broker) Enqueue(req EnqueueRequest) (domain.Job, error) {
	switch req.Task {
	case domain.TaskMatch, domain.TaskFindJobs, domain.TaskFindCandidates:
	default:
		return domain.Job{}, domain.ErrUnknownTask
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return domain.Job{}, domain.ErrQueueClosed
	}
	if req.JobID != "" {
		if existing, ok := b.jobs[req.JobID]; ok && !existing.Status.IsTerminal() {
			return *existing, nil
		}
	}
	if b.pendingLocked() >= b.cfg.MaxDepth {
		b.rejected.Add(1)
		return domain.Job{}, domain.ErrQueueFull
	}

	job := &domain.Job{
		ID:         req.JobID,
		Task:       req.Task,
		Queue:      req.Queue,
		Priority:   req.Priority,
		Status:     domain.JobQueued,
		Payload:    req.Payload,
		WebhookURL: req.WebhookURL,
		MaxRetries: req.MaxRetries,
		EnqueuedAt: time.Now(),
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Queue == "" {
		job.Queue = DefaultQueue
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = b.cfg.MaxRetries
	}

	b.jobs[job.ID] = job
	b.pushLocked(job)
	b.enqueued.Add(1)
	b.cond.Signal()

	b.log.Debug("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("task", string(job.Task)),
		zap.String("queue", job.Queue),
		zap.String("priority", job.Priority.String()))
	return *job, nil
}

// Dequeue blocks until a job is available or the broker closes, then marks
// it processing and returns a copy. Nil means shutdown. Priority classes
// drain high before normal before low, FIFO within a class; the dead-letter
// queue is never served.
func (b *Broker) Dequeue() *domain.Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if job := b.nextLocked(); job != nil {
			job.Status = domain.JobProcessing
			job.StartedAt = time.Now()
			cp := *job
			return &cp
		}
		if b.closed {
			return nil
		}
		b.cond.Wait()
	}
}

// Complete marks a processing job completed.
func (b *Broker) Complete(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return
	}
	job.Status = domain.JobCompleted
	job.CompletedAt = time.Now()
	b.completed.Add(1)
}

// Fail records a failed execution. With retry budget left and a retryable
// cause, the job goes back on its queue and true is returned. Otherwise the
// job is marked failed and its payload moves to the dead-letter queue.
func (b *Broker) Fail(id string, cause error, permanent bool) (requeued bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false
	}
	job.Error = cause.Error()

	if !permanent && job.Retries < job.MaxRetries && !b.closed {
		job.Retries++
		job.Status = domain.JobQueued
		job.StartedAt = time.Time{}
		b.pushLocked(job)
		b.cond.Signal()
		b.log.Warn("job requeued",
			zap.String("job_id", id),
			zap.Int("retry", job.Retries),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(cause))
		return true
	}

	job.Status = domain.JobFailed
	job.CompletedAt = time.Now()
	b.failed.Add(1)

	// dead-letter copy keeps the payload for inspection
	dead := *job
	dead.Queue = domain.DLQMatchingFailed
	b.pushLocked(&dead)
	b.dead.Add(1)
	metrics.DeadLettered.Inc()
	b.log.Error("job dead-lettered", zap.String("job_id", id), zap.Error(cause))
	return false
}

// Job returns a copy of the job record.
func (b *Broker) Job(id string) (domain.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// DeadLetters returns up to limit dead-lettered jobs, oldest first.
// A non-positive limit returns everything.
func (b *Broker) DeadLetters(limit int) []domain.Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[domain.DLQMatchingFailed]
	if !ok {
		return nil
	}
	var out []domain.Job
	for _, class := range q {
		for _, job := range class {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt.Before(out[j].EnqueuedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Close stops intake and wakes blocked workers. Pending jobs stay queued;
// in-flight jobs finish through their normal transitions.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// ─── Stats & sweeping ───────────────────────────────────────────────────────

// Stats is a point-in-time view of the broker.
type Stats struct {
	Pending        int            `json:"pending"`
	PendingByClass map[string]int `json:"pending_by_class"`
	DeadLetters    int            `json:"dead_letters"`
	TotalEnqueued  int64          `json:"total_enqueued"`
	TotalCompleted int64          `json:"total_completed"`
	TotalFailed    int64          `json:"total_failed"`
	TotalRejected  int64          `json:"total_rejected"`
}

// Stats returns current broker statistics.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	pending := b.pendingLocked()
	byClass := make(map[string]int, 3)
	for name, q := range b.queues {
		if name == domain.DLQMatchingFailed {
			continue
		}
		for i, class := range q {
			byClass[domain.JobPriority(i).String()] += len(class)
		}
	}
	var deadDepth int
	if q, ok := b.queues[domain.DLQMatchingFailed]; ok {
		for _, class := range q {
			deadDepth += len(class)
		}
	}
	b.mu.Unlock()

	return Stats{
		Pending:        pending,
		PendingByClass: byClass,
		DeadLetters:    deadDepth,
		TotalEnqueued:  b.enqueued.Load(),
		TotalCompleted: b.completed.Load(),
		TotalFailed:    b.failed.Load(),
		TotalRejected:  b.rejected.Load(),
	}
}

// Sweep drops terminal jobs older than the result TTL from the registry and
// the dead-letter queue, returning how many were removed.
func (b *Broker) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, job := range b.jobs {
		if job.Status.IsTerminal() && now.Sub(job.CompletedAt) > b.cfg.ResultTTL {
			delete(b.jobs, id)
			removed++
		}
	}
	if q, ok := b.queues[domain.DLQMatchingFailed]; ok {
		for i, class := range q {
			kept := class[:0]
			for _, job := range class {
				if now.Sub(job.CompletedAt) > b.cfg.ResultTTL {
					removed++
					continue
				}
				kept = append(kept, job)
			}
			q[i] = kept
		}
		b.gaugeLocked(domain.DLQMatchingFailed)
	}
	return removed
}

// Run sweeps expired jobs until done is closed.
func (b *Broker) Run(done <-chan struct{}) {
	every := b.cfg.SweepEvery
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n := b.Sweep(time.Now()); n > 0 {
				b.log.Debug("swept expired jobs", zap.Int("removed", n))
			}
		}
	}
}

// ─── Internal ───────────────────────────────────────────────────────────────

func (b *Broker) pushLocked(job *domain.Job) {
	q, ok := b.queues[job.Queue]
	if !ok {
		q = &classes{}
		b.queues[job.Queue] = q
	}
	class := clampClass(job.Priority)
	q[class] = append(q[class], job)
	b.gaugeLocked(job.Queue)
}

// nextLocked pops the highest-priority pending job, scanning queue names in
// lexical order for determinism.
func (b *Broker) nextLocked() *domain.Job {
	names := make([]string, 0, len(b.queues))
	for name := range b.queues {
		if name == domain.DLQMatchingFailed {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, p := range domain.JobPriorities() {
		class := clampClass(p)
		for _, name := range names {
			q := b.queues[name]
			if len(q[class]) == 0 {
				continue
			}
			job := q[class][0]
			q[class] = q[class][1:]
			b.gaugeLocked(name)
			return job
		}
	}
	return nil
}

func (b *Broker) pendingLocked() int {
	total := 0
	for name, q := range b.queues {
		if name == domain.DLQMatchingFailed {
			continue
		}
		for _, class := range q {
			total += len(class)
		}
	}
	return total
}

func (b *Broker) gaugeLocked(name string) {
	q := b.queues[name]
	for i, class := range q {
		metrics.QueueDepth.WithLabelValues(name, domain.JobPriority(i).String()).Set(float64(len(class)))
	}
}

func clampClass(p domain.JobPriority) int {
	if p < domain.PriorityHigh || p > domain.PriorityLow {
		return int(domain.PriorityNormal)
	}
	return int(p)
}
