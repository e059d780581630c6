package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/app/engine"
	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
)

// Matcher is the slice of the match engine the workers need.
type Matcher interface {
	Match(ctx context.Context, candidateRaw map[string]any, jobsRaw []map[string]any, opts domain.MatchOptions) (*engine.Response, error)
	DefaultOptions() domain.MatchOptions
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Workers    int           // default 4
	JobTimeout time.Duration // hard per-job budget, default 1h
}

// DefaultPoolConfig returns production defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 4, JobTimeout: time.Hour}
}

// Pool runs queued jobs against the engine: dequeue, execute with a hard
// timeout, persist through the result store, notify the webhook, and route
// exhausted retries to the dead-letter queue.
type Pool struct {
	broker   *Broker
	matcher  Matcher
	store    domain.ResultStore
	notifier *Notifier
	dir      domain.Directory
	cfg      PoolConfig
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewPool creates a worker pool. The directory may be nil when payloads
// always inline their records; the notifier may be nil to disable webhooks.
func NewPool(broker *Broker, matcher Matcher, store domain.ResultStore, notifier *Notifier, dir domain.Directory, cfg PoolConfig, log *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPoolConfig().Workers
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultPoolConfig().JobTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		broker:   broker,
		matcher:  matcher,
		store:    store,
		notifier: notifier,
		dir:      dir,
		cfg:      cfg,
		log:      log.Named("worker"),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	p.log.Info("worker pool started", zap.Int("workers", p.cfg.Workers))
}

// Stop closes the broker and waits for every worker to finish its in-flight
// job.
func (p *Pool) Stop() {
	p.broker.Close()
	p.wg.Wait()
	p.log.Info("worker pool drained")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	log := p.log.With(zap.Int("worker", id))
	for {
		job := p.broker.Dequeue()
		if job == nil {
			return
		}
		p.process(log, job)
	}
}

func (p *Pool) process(log *zap.Logger, job *domain.Job) {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	body, err := p.execute(ctx, job)
	if err == nil && ctx.Err() != nil {
		// the job beat the fallback chain but not the clock
		err = domain.Classify(domain.KindWorkerFault, ctx.Err())
	}
	elapsed := time.Since(start).Seconds()

	if err == nil {
		if perr := p.persist(ctx, job, domain.JobCompleted, body, elapsed, ""); perr != nil {
			err = domain.Classify(domain.KindPersistenceFault, perr)
		}
	}

	if err != nil {
		permanent := domain.KindOf(err) == domain.KindInvalidInput
		if p.broker.Fail(job.ID, err, permanent) {
			metrics.JobsProcessed.WithLabelValues(string(job.Task), "requeued").Inc()
			return
		}
		if perr := p.persist(context.Background(), job, domain.JobFailed, nil, elapsed, err.Error()); perr != nil {
			log.Warn("persist failed job", zap.String("job_id", job.ID), zap.Error(perr))
		}
		metrics.JobsProcessed.WithLabelValues(string(job.Task), "failed").Inc()
		return
	}

	p.broker.Complete(job.ID)
	metrics.JobsProcessed.WithLabelValues(string(job.Task), "completed").Inc()
	metrics.JobDuration.WithLabelValues(string(job.Task)).Observe(elapsed)
	log.Debug("job completed",
		zap.String("job_id", job.ID),
		zap.String("task", string(job.Task)),
		zap.Float64("seconds", elapsed))

	if job.WebhookURL != "" && p.notifier != nil {
		if werr := p.notifier.Notify(context.Background(), job.WebhookURL, job.ID, domain.JobCompleted, body); werr != nil {
			log.Warn("webhook dropped", zap.String("job_id", job.ID), zap.Error(werr))
		}
	}
}

func (p *Pool) persist(ctx context.Context, job *domain.Job, status domain.JobStatus, body []byte, elapsed float64, errText string) error {
	if p.store == nil {
		return nil
	}
	now := time.Now()
	return p.store.Save(ctx, domain.StoredResult{
		JobID:          job.ID,
		Status:         status,
		Payload:        body,
		Priority:       job.Priority.String(),
		ProcessingTime: elapsed,
		Error:          errText,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// ─── Task execution ─────────────────────────────────────────────────────────

// execute dispatches the job to its task routine and returns the serialized
// result payload.
func (p *Pool) execute(ctx context.Context, job *domain.Job) ([]byte, error) {
	switch job.Task {
	case domain.TaskMatch:
		return p.runMatch(ctx, job)
	case domain.TaskFindJobs:
		return p.runFindJobs(ctx, job)
	case domain.TaskFindCandidates:
		return p.runFindCandidates(ctx, job)
	default:
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrUnknownTask)
	}
}

func (p *Pool) options(job *domain.Job) domain.MatchOptions {
	opts := p.matcher.DefaultOptions()
	if job.Payload.Options != nil {
		opts = *job.Payload.Options
	}
	if job.Payload.WithCommute && (opts.Algorithm == "" || opts.Algorithm == domain.AlgoAuto) {
		opts.Algorithm = domain.AlgoGeo
	}
	return opts
}

// runMatch scores one candidate against one or more jobs, resolving
// directory ids when the records are not inline.
func (p *Pool) runMatch(ctx context.Context, job *domain.Job) ([]byte, error) {
	candidate := job.Payload.Candidate
	if candidate == nil {
		var err error
		candidate, err = p.lookupCandidate(ctx, job.Payload.CandidateID)
		if err != nil {
			return nil, err
		}
	}
	jobs := job.Payload.Jobs
	if len(jobs) == 0 {
		raw, err := p.lookupJob(ctx, job.Payload.JobID)
		if err != nil {
			return nil, err
		}
		jobs = []map[string]any{raw}
	}

	resp, err := p.matcher.Match(ctx, candidate, jobs, p.options(job))
	if err != nil {
		return nil, err
	}
	if resp.Status == engine.StatusError {
		return nil, domain.Classify(domain.KindAlgorithmFault, errors.New(firstError(resp)))
	}
	return json.Marshal(resp)
}

// runFindJobs fans one candidate out over the whole job directory.
func (p *Pool) runFindJobs(ctx context.Context, job *domain.Job) ([]byte, error) {
	candidate := job.Payload.Candidate
	if candidate == nil {
		var err error
		candidate, err = p.lookupCandidate(ctx, job.Payload.CandidateID)
		if err != nil {
			return nil, err
		}
	}
	if p.dir == nil {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrNoDirectory)
	}
	jobs, err := p.dir.ListJobs(ctx)
	if err != nil {
		return nil, domain.Classify(domain.KindTransientExternal, err)
	}
	if len(jobs) == 0 {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrNoJobs)
	}

	resp, err := p.matcher.Match(ctx, candidate, jobs, p.options(job))
	if err != nil {
		return nil, err
	}
	if resp.Status == engine.StatusError {
		return nil, domain.Classify(domain.KindAlgorithmFault, errors.New(firstError(resp)))
	}
	return json.Marshal(resp)
}

// CandidateRanking is one scored candidate in a reverse search.
type CandidateRanking struct {
	CandidateID string  `json:"candidate_id"`
	Name        string  `json:"name,omitempty"`
	GlobalScore int     `json:"global_score"`
	Confidence  float64 `json:"confidence"`
}

// FindCandidatesResult is the payload of a completed reverse search: the
// candidates of the directory ranked against one job posting.
type FindCandidatesResult struct {
	Status     string             `json:"status"`
	JobID      string             `json:"job_id"`
	Candidates []CandidateRanking `json:"candidates"`
	Evaluated  int                `json:"evaluated"`
}

// runFindCandidates ranks every directory candidate against one job. Each
// candidate scores through the full pipeline; candidates that fail
// canonicalization are skipped rather than failing the search.
func (p *Pool) runFindCandidates(ctx context.Context, job *domain.Job) ([]byte, error) {
	jobRaw, err := p.inlineOrLookupJob(ctx, job)
	if err != nil {
		return nil, err
	}
	if p.dir == nil {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrNoDirectory)
	}
	candidates, err := p.dir.ListCandidates(ctx)
	if err != nil {
		return nil, domain.Classify(domain.KindTransientExternal, err)
	}

	opts := p.options(job)
	opts.Limit = 1
	out := FindCandidatesResult{
		Status:    engine.StatusSuccess,
		JobID:     stringAt(jobRaw, "id", "job_id"),
		Evaluated: len(candidates),
	}
	for _, raw := range candidates {
		resp, merr := p.matcher.Match(ctx, raw, []map[string]any{jobRaw}, opts)
		if merr != nil {
			if domain.KindOf(merr) == domain.KindInvalidInput {
				continue
			}
			return nil, merr
		}
		if len(resp.Results) == 0 {
			continue
		}
		r := resp.Results[0]
		out.Candidates = append(out.Candidates, CandidateRanking{
			CandidateID: stringAt(raw, "id", "candidate_id"),
			Name:        stringAt(raw, "name", "nom"),
			GlobalScore: r.GlobalScore,
			Confidence:  r.Confidence,
		})
	}
	sort.SliceStable(out.Candidates, func(i, j int) bool {
		if out.Candidates[i].GlobalScore != out.Candidates[j].GlobalScore {
			return out.Candidates[i].GlobalScore > out.Candidates[j].GlobalScore
		}
		return out.Candidates[i].Confidence > out.Candidates[j].Confidence
	})
	return json.Marshal(out)
}

// ─── Directory resolution ───────────────────────────────────────────────────

func (p *Pool) lookupCandidate(ctx context.Context, id string) (map[string]any, error) {
	if id == "" {
		return nil, domain.Classify(domain.KindInvalidInput, fmt.Errorf("no candidate inline and no candidate_id: %w", domain.ErrNotAnObject))
	}
	if p.dir == nil {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrNoDirectory)
	}
	raw, err := p.dir.GetCandidate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCandidateNotFound) {
			return nil, domain.Classify(domain.KindInvalidInput, err)
		}
		return nil, domain.Classify(domain.KindTransientExternal, err)
	}
	return raw, nil
}

func (p *Pool) lookupJob(ctx context.Context, id string) (map[string]any, error) {
	if id == "" {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrNoJobs)
	}
	if p.dir == nil {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrNoDirectory)
	}
	raw, err := p.dir.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobPostingNotFound) {
			return nil, domain.Classify(domain.KindInvalidInput, err)
		}
		return nil, domain.Classify(domain.KindTransientExternal, err)
	}
	return raw, nil
}

func (p *Pool) inlineOrLookupJob(ctx context.Context, job *domain.Job) (map[string]any, error) {
	if len(job.Payload.Jobs) > 0 {
		return job.Payload.Jobs[0], nil
	}
	return p.lookupJob(ctx, job.Payload.JobID)
}

func firstError(resp *engine.Response) string {
	if len(resp.Errors) > 0 {
		return resp.Errors[0]
	}
	return "match pipeline produced no result"
}

func stringAt(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
