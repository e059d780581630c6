package queue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/app/engine"
	"github.com/matchd-io/matchd/internal/domain"
)

// ─── Test doubles ─────────────────────────────────────────────────────────────

// stubMatcher answers Match calls through fn, or with a flat score 80 per job
// when fn is nil.
type stubMatcher struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, candidate map[string]any, jobs []map[string]any, opts domain.MatchOptions) (*engine.Response, error)

	lastCandidate map[string]any
	lastJobs      []map[string]any
	lastOpts      domain.MatchOptions
}

func (m *stubMatcher) DefaultOptions() domain.MatchOptions {
	return domain.MatchOptions{Algorithm: domain.AlgoAuto, Limit: 10, MinScore: 0.6, EnableFallback: true}
}

func (m *stubMatcher) Match(ctx context.Context, candidate map[string]any, jobs []map[string]any, opts domain.MatchOptions) (*engine.Response, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastCandidate = candidate
	m.lastJobs = jobs
	m.lastOpts = opts
	fn := m.fn
	m.mu.Unlock()

	if fn != nil {
		return fn(call, candidate, jobs, opts)
	}
	return okResponse(jobs, 80), nil
}

func (m *stubMatcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func okResponse(jobs []map[string]any, score int) *engine.Response {
	results := make([]domain.MatchResult, 0, len(jobs))
	for _, j := range jobs {
		id, _ := j["id"].(string)
		results = append(results, domain.MatchResult{
			JobID:         id,
			GlobalScore:   score,
			Confidence:    float64(score) / 100,
			AlgorithmUsed: "enhanced",
		})
	}
	return &engine.Response{
		Status:        engine.StatusSuccess,
		AlgorithmUsed: "enhanced",
		Results:       results,
		Meta:          engine.Meta{TotalOffers: len(jobs), Returned: len(results)},
	}
}

// memStore is an in-memory domain.ResultStore; failing toggles total outage.
type memStore struct {
	mu      sync.Mutex
	records map[string]domain.StoredResult
	failing bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.StoredResult)}
}

func (s *memStore) Save(_ context.Context, rec domain.StoredResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("store offline")
	}
	s.records[rec.JobID] = rec
	return nil
}

func (s *memStore) Load(_ context.Context, jobID string) (*domain.StoredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[jobID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return &rec, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) record(jobID string) (domain.StoredResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[jobID]
	return rec, ok
}

// stubDirectory serves fixed records keyed by id.
type stubDirectory struct {
	candidates map[string]map[string]any
	jobs       map[string]map[string]any
}

func (d *stubDirectory) GetCandidate(_ context.Context, id string) (map[string]any, error) {
	if raw, ok := d.candidates[id]; ok {
		return raw, nil
	}
	return nil, domain.ErrCandidateNotFound
}

func (d *stubDirectory) GetJob(_ context.Context, id string) (map[string]any, error) {
	if raw, ok := d.jobs[id]; ok {
		return raw, nil
	}
	return nil, domain.ErrJobPostingNotFound
}

func (d *stubDirectory) ListCandidates(_ context.Context) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(d.candidates))
	for _, raw := range d.candidates {
		out = append(out, raw)
	}
	return out, nil
}

func (d *stubDirectory) ListJobs(_ context.Context) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(d.jobs))
	for _, raw := range d.jobs {
		out = append(out, raw)
	}
	return out, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func inlinePayload() domain.MatchPayload {
	return domain.MatchPayload{
		Candidate: map[string]any{"skills": []string{"python"}, "location": "Paris"},
		Jobs:      []map[string]any{{"id": "job-1", "title": "Python Developer"}},
	}
}

func startPool(t *testing.T, b *Broker, m Matcher, store domain.ResultStore, notifier *Notifier, dir domain.Directory, cfg PoolConfig) *Pool {
	t.Helper()
	pool := NewPool(b, m, store, notifier, dir, cfg, zap.NewNop())
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func waitTerminal(t *testing.T, b *Broker, id string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := b.Job(id); ok && job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := b.Job(id)
	t.Fatalf("job %s never reached a terminal status (last %q)", id, job.Status)
	return domain.Job{}
}

// ─── Pool behavior ────────────────────────────────────────────────────────────

func TestPoolCompletesMatchJob(t *testing.T) {
	b := testBroker(DefaultConfig())
	store := newMemStore()
	startPool(t, b, &stubMatcher{}, store, nil, nil, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: inlinePayload()})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobCompleted {
		t.Fatalf("Status = %q, want completed (error %q)", done.Status, done.Error)
	}

	rec, ok := store.record(job.ID)
	if !ok {
		t.Fatal("no stored result")
	}
	if rec.Status != domain.JobCompleted {
		t.Errorf("stored Status = %q, want completed", rec.Status)
	}
	var resp engine.Response
	if err := json.Unmarshal(rec.Payload, &resp); err != nil {
		t.Fatalf("stored payload does not parse: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].JobID != "job-1" {
		t.Errorf("stored results = %v", resp.Results)
	}
}

func TestPoolRetriesTransientFailure(t *testing.T) {
	b := testBroker(DefaultConfig())
	store := newMemStore()
	m := &stubMatcher{fn: func(call int, _ map[string]any, jobs []map[string]any, _ domain.MatchOptions) (*engine.Response, error) {
		if call == 1 {
			return nil, domain.Classify(domain.KindTransientExternal, errors.New("travel api down"))
		}
		return okResponse(jobs, 75), nil
	}}
	startPool(t, b, m, store, nil, nil, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: inlinePayload()})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobCompleted {
		t.Fatalf("Status = %q, want completed after retry", done.Status)
	}
	if done.Retries != 1 {
		t.Errorf("Retries = %d, want 1", done.Retries)
	}
	if got := m.callCount(); got != 2 {
		t.Errorf("matcher calls = %d, want 2", got)
	}
}

func TestPoolInvalidInputIsPermanent(t *testing.T) {
	b := testBroker(DefaultConfig())
	store := newMemStore()
	m := &stubMatcher{fn: func(int, map[string]any, []map[string]any, domain.MatchOptions) (*engine.Response, error) {
		return nil, domain.Classify(domain.KindInvalidInput, errors.New("candidate has no usable skills"))
	}}
	startPool(t, b, m, store, nil, nil, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: inlinePayload()})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobFailed {
		t.Fatalf("Status = %q, want failed", done.Status)
	}
	if done.Retries != 0 {
		t.Errorf("Retries = %d, want 0 for invalid input", done.Retries)
	}
	if got := m.callCount(); got != 1 {
		t.Errorf("matcher calls = %d, want 1", got)
	}
	rec, ok := store.record(job.ID)
	if !ok {
		t.Fatal("failed job left no stored record")
	}
	if rec.Status != domain.JobFailed || !strings.Contains(rec.Error, "skills") {
		t.Errorf("stored record = %q / %q", rec.Status, rec.Error)
	}
	if dead := b.DeadLetters(0); len(dead) != 1 {
		t.Errorf("DeadLetters() = %d entries, want 1", len(dead))
	}
}

func TestPoolFailsJobWhenStoreDown(t *testing.T) {
	b := testBroker(Config{MaxRetries: 0})
	store := newMemStore()
	store.failing = true
	startPool(t, b, &stubMatcher{}, store, nil, nil, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: inlinePayload()})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobFailed {
		t.Fatalf("Status = %q, want failed when no tier can persist", done.Status)
	}
	if !strings.Contains(done.Error, "store offline") {
		t.Errorf("Error = %q, want the persistence cause", done.Error)
	}
}

func TestPoolJobTimeoutFailsMatch(t *testing.T) {
	b := testBroker(Config{MaxRetries: 0})
	m := &stubMatcher{fn: func(_ int, _ map[string]any, jobs []map[string]any, _ domain.MatchOptions) (*engine.Response, error) {
		time.Sleep(80 * time.Millisecond) // overshoots the pool budget
		return okResponse(jobs, 90), nil
	}}
	startPool(t, b, m, newMemStore(), nil, nil, PoolConfig{Workers: 1, JobTimeout: 20 * time.Millisecond})

	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: inlinePayload()})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobFailed {
		t.Fatalf("Status = %q, want failed on timeout", done.Status)
	}
	if !strings.Contains(done.Error, "deadline") {
		t.Errorf("Error = %q, want a deadline cause", done.Error)
	}
}

func TestPoolResolvesDirectoryRecords(t *testing.T) {
	b := testBroker(DefaultConfig())
	dir := &stubDirectory{
		candidates: map[string]map[string]any{
			"cand-7": {"id": "cand-7", "skills": []string{"go"}},
		},
		jobs: map[string]map[string]any{
			"job-9": {"id": "job-9", "title": "Go Developer"},
		},
	}
	m := &stubMatcher{}
	startPool(t, b, m, newMemStore(), nil, dir, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{
		Task:    domain.TaskMatch,
		Payload: domain.MatchPayload{CandidateID: "cand-7", JobID: "job-9"},
	})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobCompleted {
		t.Fatalf("Status = %q, want completed (error %q)", done.Status, done.Error)
	}
	if got := m.lastCandidate["id"]; got != "cand-7" {
		t.Errorf("matched candidate = %v, want the directory record", got)
	}
	if len(m.lastJobs) != 1 || m.lastJobs[0]["id"] != "job-9" {
		t.Errorf("matched jobs = %v, want the directory posting", m.lastJobs)
	}
}

func TestPoolUnknownCandidateIsPermanent(t *testing.T) {
	b := testBroker(DefaultConfig())
	m := &stubMatcher{}
	startPool(t, b, m, newMemStore(), nil, &stubDirectory{}, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{
		Task:    domain.TaskMatch,
		Payload: domain.MatchPayload{CandidateID: "ghost", JobID: "job-9"},
	})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobFailed || done.Retries != 0 {
		t.Fatalf("job = %q retries %d, want failed without retries", done.Status, done.Retries)
	}
	if got := m.callCount(); got != 0 {
		t.Errorf("matcher calls = %d, want none", got)
	}
}

func TestPoolWithCommuteForcesGeo(t *testing.T) {
	b := testBroker(DefaultConfig())
	m := &stubMatcher{}
	startPool(t, b, m, newMemStore(), nil, nil, PoolConfig{Workers: 1})

	payload := inlinePayload()
	payload.WithCommute = true
	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: payload})

	waitTerminal(t, b, job.ID)
	if m.lastOpts.Algorithm != domain.AlgoGeo {
		t.Errorf("Algorithm = %q, want %q when commute time is requested", m.lastOpts.Algorithm, domain.AlgoGeo)
	}
}

func TestPoolHonorsPayloadOptions(t *testing.T) {
	b := testBroker(DefaultConfig())
	m := &stubMatcher{}
	startPool(t, b, m, newMemStore(), nil, nil, PoolConfig{Workers: 1})

	payload := inlinePayload()
	payload.Options = &domain.MatchOptions{Algorithm: "comprehensive", Limit: 3, MinScore: 0.4}
	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: payload})

	waitTerminal(t, b, job.ID)
	if m.lastOpts.Algorithm != "comprehensive" || m.lastOpts.Limit != 3 {
		t.Errorf("opts = %+v, want the payload options", m.lastOpts)
	}
}

func TestPoolFindJobsUsesDirectory(t *testing.T) {
	b := testBroker(DefaultConfig())
	dir := &stubDirectory{jobs: map[string]map[string]any{
		"job-1": {"id": "job-1", "title": "Backend"},
		"job-2": {"id": "job-2", "title": "Data"},
	}}
	m := &stubMatcher{}
	store := newMemStore()
	startPool(t, b, m, store, nil, dir, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{
		Task:    domain.TaskFindJobs,
		Payload: domain.MatchPayload{Candidate: map[string]any{"skills": []string{"python"}}},
	})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobCompleted {
		t.Fatalf("Status = %q, want completed (error %q)", done.Status, done.Error)
	}
	if len(m.lastJobs) != 2 {
		t.Errorf("matcher saw %d jobs, want the whole directory", len(m.lastJobs))
	}
}

func TestPoolFindCandidatesRanks(t *testing.T) {
	b := testBroker(DefaultConfig())
	dir := &stubDirectory{candidates: map[string]map[string]any{
		"cand-a": {"id": "cand-a", "name": "Ada", "score": 90},
		"cand-b": {"id": "cand-b", "name": "Bob", "score": 70},
		"cand-c": {"id": "cand-c", "name": "Cy", "score": 80},
		"cand-x": {"id": "cand-x", "name": "Nix", "score": -1}, // unparseable profile
	}}
	m := &stubMatcher{fn: func(_ int, candidate map[string]any, jobs []map[string]any, _ domain.MatchOptions) (*engine.Response, error) {
		score, _ := candidate["score"].(int)
		if score < 0 {
			return nil, domain.Classify(domain.KindInvalidInput, errors.New("no usable skills"))
		}
		return okResponse(jobs, score), nil
	}}
	store := newMemStore()
	startPool(t, b, m, store, nil, dir, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{
		Task:    domain.TaskFindCandidates,
		Payload: domain.MatchPayload{Jobs: []map[string]any{{"id": "job-1", "title": "Backend"}}},
	})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobCompleted {
		t.Fatalf("Status = %q, want completed (error %q)", done.Status, done.Error)
	}

	rec, _ := store.record(job.ID)
	var out FindCandidatesResult
	if err := json.Unmarshal(rec.Payload, &out); err != nil {
		t.Fatalf("result payload does not parse: %v", err)
	}
	if out.JobID != "job-1" || out.Evaluated != 4 {
		t.Errorf("JobID = %q Evaluated = %d, want job-1 / 4", out.JobID, out.Evaluated)
	}
	if len(out.Candidates) != 3 {
		t.Fatalf("ranked %d candidates, want 3 (one skipped)", len(out.Candidates))
	}
	wantOrder := []string{"cand-a", "cand-c", "cand-b"}
	for i, want := range wantOrder {
		if out.Candidates[i].CandidateID != want {
			t.Errorf("rank %d = %q, want %q", i, out.Candidates[i].CandidateID, want)
		}
	}
}

func TestPoolStopDrainsPending(t *testing.T) {
	b := testBroker(DefaultConfig())
	m := &stubMatcher{fn: func(_ int, _ map[string]any, jobs []map[string]any, _ domain.MatchOptions) (*engine.Response, error) {
		time.Sleep(10 * time.Millisecond)
		return okResponse(jobs, 80), nil
	}}
	pool := NewPool(b, m, newMemStore(), nil, nil, PoolConfig{Workers: 2}, zap.NewNop())
	pool.Start()

	ids := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: inlinePayload()})
		ids = append(ids, job.ID)
	}

	pool.Stop()

	for _, id := range ids {
		job, _ := b.Job(id)
		if job.Status != domain.JobCompleted {
			t.Errorf("job %s = %q, want completed after drain", id, job.Status)
		}
	}
}

// ─── Webhook delivery from the pool ───────────────────────────────────────────

func TestPoolDeliversSignedWebhook(t *testing.T) {
	const secret = "wh-secret"
	type delivery struct {
		body      []byte
		signature string
		userAgent string
	}
	got := make(chan delivery, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- delivery{body: body, signature: r.Header.Get("X-Signature"), userAgent: r.Header.Get("User-Agent")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := testBroker(DefaultConfig())
	notifier := NewNotifier(NotifierConfig{Secret: secret, MaxRetries: 0, Timeout: 2 * time.Second}, zap.NewNop())
	startPool(t, b, &stubMatcher{}, newMemStore(), notifier, nil, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{
		Task:       domain.TaskMatch,
		Payload:    inlinePayload(),
		WebhookURL: srv.URL,
	})
	waitTerminal(t, b, job.ID)

	var d delivery
	select {
	case d = <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("webhook never arrived")
	}

	if d.userAgent != "matching-service/1.0" {
		t.Errorf("User-Agent = %q", d.userAgent)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(d.body)
	if want := hex.EncodeToString(mac.Sum(nil)); d.signature != want {
		t.Errorf("X-Signature = %q, want HMAC over the delivered body", d.signature)
	}

	var evt struct {
		JobID     string          `json:"job_id"`
		Status    string          `json:"status"`
		Timestamp string          `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(d.body, &evt); err != nil {
		t.Fatalf("webhook body does not parse: %v", err)
	}
	if evt.JobID != job.ID || evt.Status != string(domain.JobCompleted) {
		t.Errorf("event = %s/%s, want %s/completed", evt.JobID, evt.Status, job.ID)
	}
	if _, err := time.Parse(time.RFC3339, evt.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339", evt.Timestamp)
	}
	var resp engine.Response
	if err := json.Unmarshal(evt.Data, &resp); err != nil {
		t.Fatalf("event data does not parse as a match response: %v", err)
	}
	if resp.Status != engine.StatusSuccess {
		t.Errorf("data.status = %q", resp.Status)
	}
}

func TestPoolCompletesWhenWebhookDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := testBroker(DefaultConfig())
	notifier := NewNotifier(NotifierConfig{MaxRetries: 0, Timeout: time.Second}, zap.NewNop())
	startPool(t, b, &stubMatcher{}, newMemStore(), notifier, nil, PoolConfig{Workers: 1})

	job := enqueue(t, b, EnqueueRequest{Task: domain.TaskMatch, Payload: inlinePayload(), WebhookURL: srv.URL})

	done := waitTerminal(t, b, job.ID)
	if done.Status != domain.JobCompleted {
		t.Fatalf("Status = %q; a dead webhook must not fail the job", done.Status)
	}
}
