package server

import (
	"encoding/json"
	"net/http"

	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/types"
)

// handleGetAutopilot returns the site's autopilot settings and progress.
func (s *Server) handleGetAutopilot(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, cfg)
}

// handleUpdateAutopilot applies a partial settings update.
func (s *Server) handleUpdateAutopilot(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	var update types.AutopilotConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if update.Empty() {
		s.errorResponse(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if err := update.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	updated, err := s.sites.UpdateAutopilotConfig(r.Context(), cfg.SiteID, update)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, updated)
}

// handleRunNow starts a fresh run of articlesPerRun units and waits for it.
func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	var req RunRequest
	if err := decodeOptional(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	report, err := s.runner.RunNow(r.Context(), cfg.SiteID, s.runOptions(req))
	s.writeRunResult(w, r, report, err)
}

// handleResume continues an in-flight unit from step 3.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	var req RunRequest
	if err := decodeOptional(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	report, err := s.runner.Resume(r.Context(), cfg.SiteID, s.runOptions(req))
	s.writeRunResult(w, r, report, err)
}

// handleRunStream starts a fresh run and streams step progress via SSE.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	var req RunRequest
	if err := decodeOptional(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// Reject before the stream opens so the caller gets a plain status code.
	if cfg.InFlight() {
		s.handleError(w, r, pipeline.ErrResumeRequired)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := s.runOptions(req)
	opts.OnProgress = func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("step", event); err != nil {
			s.logger.Warn("failed to write SSE event", "error", err)
		}
	}

	report, err := s.runner.RunNow(r.Context(), cfg.SiteID, opts)
	if err != nil {
		sse.WriteEvent("error", RunResponse{Report: report, Error: err.Error()}) //nolint:errcheck
		return
	}
	sse.WriteComplete(report)
}
