package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/app/algo"
	"github.com/matchd-io/matchd/internal/app/engine"
	"github.com/matchd-io/matchd/internal/app/scoring"
	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/health"
	"github.com/matchd-io/matchd/internal/infra/queue"
)

// stubTravel answers every query with a fixed duration.
type stubTravel struct{}

func (stubTravel) Route(_ context.Context, q domain.TravelQuery) (domain.TravelResult, error) {
	return domain.TravelResult{
		DurationMinutes: 20,
		DistanceKm:      10,
		Mode:            q.Mode,
		Source:          domain.TravelSourceSimulated,
	}, nil
}

// memResults is an in-memory ResultSource.
type memResults struct {
	records map[string]domain.StoredResult
}

func (m *memResults) Load(_ context.Context, jobID string) (*domain.StoredResult, error) {
	rec, ok := m.records[jobID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return &rec, nil
}

func (m *memResults) Recent(_ context.Context, limit int) ([]domain.StoredResult, error) {
	out := make([]domain.StoredResult, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestEngine() *engine.Engine {
	syn := scoring.DefaultSynonyms()
	reg := algo.NewRegistry()
	reg.Register(algo.NewSkillsCentric(syn))
	reg.Register(algo.NewGeoAware(syn, stubTravel{}))
	reg.Register(algo.NewEnhanced(syn))
	reg.Register(algo.NewComprehensive(syn, stubTravel{}, algo.DefaultBonusConfig()))
	reg.Register(algo.Simple{})
	reg.Register(algo.Keyword{})
	reg.Register(algo.Statistical{})
	reg.Register(algo.Emergency{})
	sel := algo.NewSelector(reg, nil, nil)
	return engine.New(reg, sel, engine.DefaultConfig(), zap.NewNop())
}

func newTestServer(t *testing.T) (*Server, *queue.Broker, *memResults) {
	t.Helper()
	b := queue.NewBroker(queue.DefaultConfig(), zap.NewNop())
	t.Cleanup(b.Close)
	results := &memResults{records: map[string]domain.StoredResult{}}
	srv := NewServer(newTestEngine(), b, results, zap.NewNop())
	return srv, b, results
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func rawCandidate() map[string]any {
	return map[string]any{
		"id":                  "cand-1",
		"skills":              []string{"python", "django", "sql"},
		"years_experience":    5,
		"location":            "Paris",
		"salary_expectation":  55000,
		"contract_types":      []string{"cdi"},
		"remote_preference":   "hybride",
		"max_commute_minutes": 45,
	}
}

func rawJob(id string, skills ...string) map[string]any {
	if len(skills) == 0 {
		skills = []string{"python", "django", "postgresql"}
	}
	return map[string]any{
		"id":                        id,
		"title":                     "Senior Python Developer",
		"required_skills":           skills,
		"required_experience_years": "3-6",
		"contract_type":             "cdi",
		"location":                  "Paris",
		"remote_policy":             "hybride partiel",
		"salary_band":               map[string]any{"min": 50000, "max": 60000},
	}
}

func matchBody(t *testing.T, options map[string]any) string {
	t.Helper()
	body := map[string]any{
		"candidate": rawCandidate(),
		"jobs":      []map[string]any{rawJob("job-1"), rawJob("job-2", "python", "django", "sql")},
	}
	if options != nil {
		body["options"] = options
	}
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return string(buf)
}

// ─── Synchronous surface ────────────────────────────────────────────────────

func TestAPI_Match(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "POST", "/match", matchBody(t, map[string]any{"min_score": 0}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp engine.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != engine.StatusSuccess {
		t.Errorf("Status = %q, want success", resp.Status)
	}
	if resp.AlgorithmUsed == "" {
		t.Error("AlgorithmUsed is empty")
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results with min_score 0")
	}
	if resp.Meta.TotalOffers != 2 {
		t.Errorf("Meta.TotalOffers = %d, want 2", resp.Meta.TotalOffers)
	}
}

func TestAPI_MatchOptionsOverlay(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// limit set, min_score absent: limit applies, min_score keeps its default
	w := do(t, srv, "POST", "/match", matchBody(t, map[string]any{"min_score": 0, "limit": 1}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp engine.Response
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Meta.Returned != 1 {
		t.Errorf("Meta.Returned = %d, want 1 with limit 1", resp.Meta.Returned)
	}
	if resp.Meta.TotalOffers != 2 {
		t.Errorf("Meta.TotalOffers = %d, want 2", resp.Meta.TotalOffers)
	}
}

func TestAPI_Match_InvalidInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{"candidate": {"id": "x"}, "jobs": [{"id": "job-1", "title": "Dev", "required_skills": ["go"]}]}`
	w := do(t, srv, "POST", "/match", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestAPI_Match_BadJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "POST", "/match", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPI_Compare(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "POST", "/compare", matchBody(t, map[string]any{"min_score": 0}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp engine.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AlgorithmUsed != algo.ComparisonName {
		t.Errorf("AlgorithmUsed = %q, want %q", resp.AlgorithmUsed, algo.ComparisonName)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results")
	}
	if len(resp.Results[0].VariantScores) == 0 {
		t.Error("comparison results should carry per-variant scores")
	}
}

func TestAPI_Explain(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "POST", "/explain", matchBody(t, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var exp algo.Explanation
	if err := json.NewDecoder(w.Body).Decode(&exp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if exp.Chosen == "" {
		t.Error("Chosen is empty")
	}
	if exp.RuleFired == "" {
		t.Error("RuleFired is empty")
	}
	if len(exp.Alternatives) == 0 {
		t.Error("Alternatives is empty")
	}
}

func TestAPI_Algorithms(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "GET", "/algorithms", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Algorithms []engine.Capability `json:"algorithms"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Algorithms) != 8 {
		t.Errorf("len(algorithms) = %d, want 8", len(body.Algorithms))
	}
	names := make(map[string]bool, len(body.Algorithms))
	for _, c := range body.Algorithms {
		names[c.Name] = true
	}
	for _, want := range []string{algo.NameSkillsCentric, algo.NameEmergency} {
		if !names[want] {
			t.Errorf("algorithm %q missing from listing", want)
		}
	}
}

func TestAPI_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.SetVersion("1.2.3")

	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %v, want 1.2.3", body["version"])
	}
	algos, ok := body["algorithms_available"].([]interface{})
	if !ok || len(algos) != 8 {
		t.Errorf("algorithms_available = %v, want 8 entries", body["algorithms_available"])
	}
	if _, ok := body["uptime_s"].(float64); !ok {
		t.Errorf("uptime_s = %v, want a number", body["uptime_s"])
	}
}

type deadPinger struct{}

func (deadPinger) Ping(context.Context) error { return context.DeadlineExceeded }

func TestAPI_HealthDegraded(t *testing.T) {
	srv, _, _ := newTestServer(t)

	checker := health.NewChecker(deadPinger{}, nil, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx) // one synchronous pass, then the cancelled ctx stops it
	srv.SetHealthChecker(checker)

	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
	if _, ok := body["checks"]; !ok {
		t.Error("checks missing from degraded health report")
	}
}

// ─── Queued surface ─────────────────────────────────────────────────────────

func TestAPI_EnqueueMatch(t *testing.T) {
	srv, b, _ := newTestServer(t)

	w := do(t, srv, "POST", "/v2/match?candidate_id=cand-9&job_id=job-3&with_commute_time=true", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "queued" {
		t.Errorf("status = %q, want queued", body["status"])
	}
	if body["job_id"] == "" {
		t.Fatal("job_id is empty")
	}

	job, ok := b.Job(body["job_id"])
	if !ok {
		t.Fatal("job not in broker registry")
	}
	if job.Task != domain.TaskMatch {
		t.Errorf("Task = %q, want match", job.Task)
	}
	if job.Payload.CandidateID != "cand-9" || job.Payload.JobID != "job-3" {
		t.Errorf("payload ids = %q/%q", job.Payload.CandidateID, job.Payload.JobID)
	}
	if !job.Payload.WithCommute {
		t.Error("WithCommute not set from query")
	}
}

func TestAPI_EnqueueInlineBody(t *testing.T) {
	srv, b, _ := newTestServer(t)

	body := map[string]any{
		"candidate":   rawCandidate(),
		"jobs":        []map[string]any{rawJob("job-1")},
		"options":     map[string]any{"limit": 3},
		"webhook_url": "https://hooks.example.com/done",
		"priority":    "high",
	}
	buf, _ := json.Marshal(body)

	w := do(t, srv, "POST", "/v2/match", string(buf))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var out map[string]string
	json.NewDecoder(w.Body).Decode(&out)
	job, ok := b.Job(out["job_id"])
	if !ok {
		t.Fatal("job not in broker registry")
	}
	if job.Payload.Candidate == nil || len(job.Payload.Jobs) != 1 {
		t.Error("inline records not carried into the payload")
	}
	if job.WebhookURL != "https://hooks.example.com/done" {
		t.Errorf("WebhookURL = %q", job.WebhookURL)
	}
	if job.Priority != domain.PriorityHigh {
		t.Errorf("Priority = %v, want high", job.Priority)
	}
	if job.Payload.Options == nil {
		t.Fatal("options not stored")
	}
	if job.Payload.Options.Limit != 3 {
		t.Errorf("Options.Limit = %d, want 3", job.Payload.Options.Limit)
	}
	// absent keys keep engine defaults after the overlay
	if job.Payload.Options.MinScore != 0.6 {
		t.Errorf("Options.MinScore = %v, want default 0.6", job.Payload.Options.MinScore)
	}
	if !job.Payload.Options.EnableFallback {
		t.Error("Options.EnableFallback should keep its default true")
	}
}

func TestAPI_EnqueueValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"match without candidate", "/v2/match?job_id=j1"},
		{"match without jobs", "/v2/match?candidate_id=c1"},
		{"find-jobs without candidate", "/v2/find-jobs"},
		{"find-candidates without job", "/v2/find-candidates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, "POST", tt.path, ""); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestAPI_EnqueueQueueFull(t *testing.T) {
	b := queue.NewBroker(queue.Config{MaxDepth: 1}, zap.NewNop())
	t.Cleanup(b.Close)
	srv := NewServer(newTestEngine(), b, nil, zap.NewNop())

	if w := do(t, srv, "POST", "/v2/match?candidate_id=c1&job_id=j1", ""); w.Code != http.StatusAccepted {
		t.Fatalf("first enqueue status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/v2/match?candidate_id=c2&job_id=j2", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("second enqueue status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestAPI_EnqueueFindJobs(t *testing.T) {
	srv, b, _ := newTestServer(t)

	w := do(t, srv, "POST", "/v2/find-jobs?candidate_id=cand-4", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var out map[string]string
	json.NewDecoder(w.Body).Decode(&out)
	job, _ := b.Job(out["job_id"])
	if job.Task != domain.TaskFindJobs {
		t.Errorf("Task = %q, want find_jobs", job.Task)
	}
}

func TestAPI_EnqueueFindCandidates(t *testing.T) {
	srv, b, _ := newTestServer(t)

	w := do(t, srv, "POST", "/v2/find-candidates?job_id=job-7", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var out map[string]string
	json.NewDecoder(w.Body).Decode(&out)
	job, _ := b.Job(out["job_id"])
	if job.Task != domain.TaskFindCandidates {
		t.Errorf("Task = %q, want find_candidates", job.Task)
	}
	if job.Payload.JobID != "job-7" {
		t.Errorf("Payload.JobID = %q, want job-7", job.Payload.JobID)
	}
}

func TestAPI_JobStatusFromBroker(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "POST", "/v2/match?candidate_id=c1&job_id=j1", "")
	var out map[string]string
	json.NewDecoder(w.Body).Decode(&out)

	w = do(t, srv, "GET", "/v2/jobs/"+out["job_id"], "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status jobStatusResponse
	json.NewDecoder(w.Body).Decode(&status)
	if status.Status != domain.JobQueued {
		t.Errorf("Status = %q, want queued", status.Status)
	}
	if len(status.Result) != 0 {
		t.Error("queued job should have no result")
	}
}

func TestAPI_JobStatusFromStore(t *testing.T) {
	srv, _, results := newTestServer(t)
	results.records["job-done"] = domain.StoredResult{
		JobID:          "job-done",
		Status:         domain.JobCompleted,
		Payload:        []byte(`{"status":"success","results":[]}`),
		ProcessingTime: 0.42,
	}

	w := do(t, srv, "GET", "/v2/jobs/job-done", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status jobStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Status != domain.JobCompleted {
		t.Errorf("Status = %q, want completed", status.Status)
	}
	var envelope map[string]interface{}
	if err := json.Unmarshal(status.Result, &envelope); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if envelope["status"] != "success" {
		t.Errorf("result.status = %v, want success", envelope["status"])
	}
	if status.ProcessingTime != 0.42 {
		t.Errorf("ProcessingTime = %v, want 0.42", status.ProcessingTime)
	}
}

func TestAPI_JobStatusNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if w := do(t, srv, "GET", "/v2/jobs/no-such-job", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAPI_RecentJobs(t *testing.T) {
	srv, _, results := newTestServer(t)
	for _, id := range []string{"j1", "j2", "j3"} {
		results.records[id] = domain.StoredResult{JobID: id, Status: domain.JobCompleted}
	}

	w := do(t, srv, "GET", "/v2/jobs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Count != 3 {
		t.Errorf("count = %d, want 3", body.Count)
	}

	w = do(t, srv, "GET", "/v2/jobs?limit=2", "")
	json.NewDecoder(w.Body).Decode(&body)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2 with limit", body.Count)
	}
}

func TestAPI_QueueStats(t *testing.T) {
	srv, _, _ := newTestServer(t)
	do(t, srv, "POST", "/v2/match?candidate_id=c1&job_id=j1", "")

	w := do(t, srv, "GET", "/v2/queue/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var stats queue.Stats
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.Pending != 1 {
		t.Errorf("Pending = %d, want 1", stats.Pending)
	}
	if stats.TotalEnqueued != 1 {
		t.Errorf("TotalEnqueued = %d, want 1", stats.TotalEnqueued)
	}
}

// ─── Auth ───────────────────────────────────────────────────────────────────

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAPI_AuthGuardsQueuedSurface(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.SetAuthSecret("s3cret")

	// no token
	if w := do(t, srv, "POST", "/v2/match?candidate_id=c1&job_id=j1", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	// wrong secret
	req := httptest.NewRequest("POST", "/v2/match?candidate_id=c1&job_id=j1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", w.Code)
	}

	// valid token
	req = httptest.NewRequest("POST", "/v2/match?candidate_id=c1&job_id=j1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret"))
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("valid token: status = %d, want 202, body: %s", w.Code, w.Body.String())
	}
}

func TestAPI_AuthSkipsSyncSurface(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.SetAuthSecret("s3cret")

	// the synchronous surface stays open
	if w := do(t, srv, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
	if w := do(t, srv, "POST", "/match", matchBody(t, nil)); w.Code != http.StatusOK {
		t.Errorf("match status = %d, want 200", w.Code)
	}
}

// ─── Operational endpoints ──────────────────────────────────────────────────

func TestAPI_Metrics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if w := do(t, srv, "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled: status = %d, want 404", w.Code)
	}

	srv.EnableMetrics()
	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics enabled: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "matchd_") {
		t.Error("metrics output missing matchd_ series")
	}
}

func TestAPI_CORS(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/match", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS: Access-Control-Allow-Origin should be *")
	}
}
