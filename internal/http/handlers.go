package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"purchasing/internal/core"
	"purchasing/internal/log"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// runResponse is the JSON shape of a recorded run.
type runResponse struct {
	ID          string          `json:"id"`
	Kind        core.ReportKind `json:"kind"`
	Status      string          `json:"status"`
	Today       string          `json:"today"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	DurationMS  int64           `json:"duration_ms"`
	SummaryRows int             `json:"summary_rows"`
	TrendRows   int             `json:"trend_rows"`
	Error       string          `json:"error,omitempty"`
}

func toRunResponse(r core.ReportRun) runResponse {
	return runResponse{
		ID:          r.ID,
		Kind:        r.Kind,
		Status:      r.Status,
		Today:       r.Today.String(),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		DurationMS:  r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
		SummaryRows: r.SummaryRows,
		TrendRows:   r.TrendRows,
		Error:       r.Error,
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the run log answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	if _, err := s.runs.ListRuns(r.Context(), 1); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "run log unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run log disabled")
		return
	}
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list runs", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run log disabled")
		return
	}
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, core.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load run", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// handleTriggerReport starts a report in the background and answers 202
// with the run id to poll. One triggered run per kind at a time.
func (s *Server) handleTriggerReport(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusNotFound, "report trigger disabled")
		return
	}
	kind := core.ReportKind(r.PathValue("kind"))
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "kind must be summary, trend or all")
		return
	}
	var today core.Date
	if v := r.URL.Query().Get("today"); v != "" {
		d, err := core.ParseISODate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return
		}
		today = d
	}

	runID := uuid.NewString()
	s.mu.Lock()
	if prev, busy := s.active[kind]; busy {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "report already running", "run_id": prev})
		return
	}
	s.active[kind] = runID
	s.inflight.Add(1)
	s.mu.Unlock()

	logger := log.FromContext(r.Context())
	go func() {
		defer s.inflight.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, kind)
			s.mu.Unlock()
		}()
		if _, err := s.runner.RunWithID(s.runCtx, runID, kind, today); err != nil {
			logger.Error("Triggered report failed", log.FieldRunID, runID, log.FieldError, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "kind": string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
