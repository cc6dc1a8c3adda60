package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/server/middleware"
	"github.com/jonathan/content-autopilot/internal/types"
)

// RunRequest is the optional body of the run endpoints.
type RunRequest struct {
	Instructions      string `json:"instructions,omitempty"`
	GenerateThumbnail *bool  `json:"generate_thumbnail,omitempty"`
	SubmitIndexing    *bool  `json:"submit_indexing,omitempty"`
}

// RunResponse wraps a run report. Error is set when the run stopped early.
type RunResponse struct {
	Report *pipeline.RunReport `json:"report"`
	Error  string              `json:"error,omitempty"`
}

// authorizeSite loads the site named in the path and checks that it belongs
// to the caller's organization. It writes the error response itself.
func (s *Server) authorizeSite(w http.ResponseWriter, r *http.Request) (*types.AutopilotConfig, bool) {
	siteID, err := uuid.Parse(r.PathValue("site_id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid site_id")
		return nil, false
	}

	orgID, err := middleware.GetOrganizationID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	cfg, err := s.sites.GetAutopilotConfig(r.Context(), siteID)
	if err != nil {
		s.handleError(w, r, err)
		return nil, false
	}
	if cfg == nil {
		s.errorResponse(w, http.StatusNotFound, "site not found")
		return nil, false
	}
	if cfg.OrganizationID != orgID {
		s.handleError(w, r, &ErrForbidden{})
		return nil, false
	}
	return cfg, true
}

// decodeOptional decodes a JSON body into v. An empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// runOptions builds pipeline options from a request body and server defaults.
func (s *Server) runOptions(req RunRequest) pipeline.RunOptions {
	opts := pipeline.RunOptions{
		Instructions:      req.Instructions,
		GenerateThumbnail: s.generateThumbnail,
		SubmitIndexing:    s.submitIndexing,
	}
	if req.GenerateThumbnail != nil {
		opts.GenerateThumbnail = *req.GenerateThumbnail
	}
	if req.SubmitIndexing != nil {
		opts.SubmitIndexing = *req.SubmitIndexing
	}
	return opts
}

// writeRunResult writes a finished run. A run that fails part way still
// returns its report so the caller can see which step stopped it.
func (s *Server) writeRunResult(w http.ResponseWriter, r *http.Request, report *pipeline.RunReport, err error) {
	if err == nil {
		s.jsonResponse(w, http.StatusOK, RunResponse{Report: report})
		return
	}
	if report == nil {
		s.handleError(w, r, err)
		return
	}
	s.logger.Warn("run stopped", "site_id", report.SiteID, "mode", report.Mode, "error", err)
	s.jsonResponse(w, HTTPStatus(err), RunResponse{Report: report, Error: err.Error()})
}
