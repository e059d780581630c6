package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/queue"
)

// ─── Queued surface (/v2/*) ──────────────────────────────────────────────────
// Enqueue endpoints accept records either inline in the body or as directory
// ids in the query string; workers resolve ids at execution time.

// enqueueBody is the optional JSON body of the enqueue endpoints.
type enqueueBody struct {
	Candidate  map[string]any   `json:"candidate,omitempty"`
	Jobs       []map[string]any `json:"jobs,omitempty"`
	Options    json.RawMessage  `json:"options,omitempty"`
	WebhookURL string           `json:"webhook_url,omitempty"`
	Priority   string           `json:"priority,omitempty"`
}

func decodeEnqueueBody(r *http.Request) (enqueueBody, error) {
	var body enqueueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return body, fmt.Errorf("decode request: %w", err)
	}
	return body, nil
}

// --- POST /v2/match ---

func (s *Server) handleEnqueueMatch(w http.ResponseWriter, r *http.Request) {
	body, err := decodeEnqueueBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()

	payload := domain.MatchPayload{
		Candidate:   body.Candidate,
		Jobs:        body.Jobs,
		CandidateID: q.Get("candidate_id"),
		JobID:       q.Get("job_id"),
		WithCommute: queryBool(q.Get("with_commute_time")),
	}
	if payload.Candidate == nil && payload.CandidateID == "" {
		writeError(w, http.StatusBadRequest, "candidate or candidate_id is required")
		return
	}
	if len(payload.Jobs) == 0 && payload.JobID == "" {
		writeError(w, http.StatusBadRequest, "jobs or job_id is required")
		return
	}
	s.enqueue(w, r, domain.TaskMatch, payload, body)
}

// --- POST /v2/find-jobs ---

func (s *Server) handleEnqueueFindJobs(w http.ResponseWriter, r *http.Request) {
	body, err := decodeEnqueueBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()

	payload := domain.MatchPayload{
		Candidate:   body.Candidate,
		CandidateID: q.Get("candidate_id"),
		WithCommute: queryBool(q.Get("with_commute_time")),
	}
	if payload.Candidate == nil && payload.CandidateID == "" {
		writeError(w, http.StatusBadRequest, "candidate or candidate_id is required")
		return
	}
	s.enqueue(w, r, domain.TaskFindJobs, payload, body)
}

// --- POST /v2/find-candidates ---

func (s *Server) handleEnqueueFindCandidates(w http.ResponseWriter, r *http.Request) {
	body, err := decodeEnqueueBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()

	payload := domain.MatchPayload{
		Jobs:        body.Jobs,
		JobID:       q.Get("job_id"),
		WithCommute: queryBool(q.Get("with_commute_time")),
	}
	if len(payload.Jobs) == 0 && payload.JobID == "" {
		writeError(w, http.StatusBadRequest, "jobs or job_id is required")
		return
	}
	s.enqueue(w, r, domain.TaskFindCandidates, payload, body)
}

// enqueue pushes the assembled payload onto the broker and answers 202.
// Request options overlay the engine defaults here, so workers can take the
// stored options verbatim.
func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, task domain.TaskName, payload domain.MatchPayload, body enqueueBody) {
	if s.broker == nil {
		writeError(w, http.StatusServiceUnavailable, "queue is not enabled")
		return
	}
	if len(body.Options) > 0 {
		opts := s.engine.DefaultOptions()
		if err := json.Unmarshal(body.Options, &opts); err != nil {
			writeError(w, http.StatusBadRequest, "decode options: "+err.Error())
			return
		}
		payload.Options = &opts
	}

	q := r.URL.Query()
	webhook := q.Get("webhook_url")
	if webhook == "" {
		webhook = body.WebhookURL
	}
	priority := q.Get("priority")
	if priority == "" {
		priority = body.Priority
	}

	job, err := s.broker.Enqueue(queue.EnqueueRequest{
		Task:       task,
		Payload:    payload,
		Priority:   domain.ParseJobPriority(priority),
		WebhookURL: webhook,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQueueFull):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, domain.ErrQueueClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.log.Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("task", string(task)),
		zap.String("priority", job.Priority.String()))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

// --- GET /v2/jobs/{jobID} ---

// jobStatusResponse is the unified lookup answer. Result carries the stored
// envelope verbatim when the job has one.
type jobStatusResponse struct {
	JobID          string           `json:"job_id"`
	Status         domain.JobStatus `json:"status"`
	Result         json.RawMessage  `json:"result,omitempty"`
	Error          string           `json:"error,omitempty"`
	ProcessingTime float64          `json:"processing_time_s,omitempty"`
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	// The store is authoritative for terminal jobs and survives restarts.
	if s.results != nil {
		rec, err := s.results.Load(r.Context(), id)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, jobStatusResponse{
				JobID:          rec.JobID,
				Status:         rec.Status,
				Result:         json.RawMessage(rec.Payload),
				Error:          rec.Error,
				ProcessingTime: rec.ProcessingTime,
			})
			return
		case !errors.Is(err, domain.ErrResultNotFound):
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	// Not persisted yet: still queued or processing.
	if s.broker != nil {
		if job, ok := s.broker.Job(id); ok {
			writeJSON(w, http.StatusOK, jobStatusResponse{
				JobID:  job.ID,
				Status: job.Status,
				Error:  job.Error,
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "job not found")
}

// --- GET /v2/jobs ---

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeError(w, http.StatusServiceUnavailable, "result store is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := s.results.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  recs,
		"count": len(recs),
	})
}

// --- GET /v2/queue/stats ---

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		writeError(w, http.StatusServiceUnavailable, "queue is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.broker.Stats())
}

func queryBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
