package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/matchd-io/matchd/internal/domain"
)

// ─── Synchronous matching surface ────────────────────────────────────────────

// matchRequest is the body shared by /match, /compare, and /explain. Options
// stays raw so absent keys keep the engine defaults when overlaid.
type matchRequest struct {
	Candidate map[string]any   `json:"candidate"`
	Jobs      []map[string]any `json:"jobs"`
	Options   json.RawMessage  `json:"options,omitempty"`
}

func (s *Server) decodeMatch(r *http.Request) (matchRequest, domain.MatchOptions, error) {
	var req matchRequest
	opts := s.engine.DefaultOptions()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, opts, fmt.Errorf("decode request: %w", err)
	}
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return req, opts, fmt.Errorf("decode options: %w", err)
		}
	}
	return req, opts, nil
}

// --- POST /match ---

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	req, opts, err := s.decodeMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.engine.Match(r.Context(), req.Candidate, req.Jobs, opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- POST /compare ---

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	req, opts, err := s.decodeMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts.Algorithm = domain.AlgoComparison

	resp, err := s.engine.Match(r.Context(), req.Candidate, req.Jobs, opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- POST /explain ---

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.decodeMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exp, err := s.engine.Explain(req.Candidate, req.Jobs)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// --- GET /algorithms ---

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"algorithms": s.engine.Algorithms(),
	})
}

// --- GET /health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	caps := s.engine.Algorithms()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.Name
	}

	status := "ok"
	if s.checker != nil && !s.checker.IsHealthy() {
		status = "degraded"
	}
	body := map[string]interface{}{
		"status":               status,
		"uptime_s":             time.Since(s.started).Seconds(),
		"version":              s.version,
		"algorithms_available": names,
	}
	if s.checker != nil {
		body["checks"] = s.checker.Statuses()
	}
	writeJSON(w, http.StatusOK, body)
}
