package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/types"
)

// CalendarResponse lists the scheduled runs of one month.
type CalendarResponse struct {
	Month string               `json:"month"`
	Today string               `json:"today"`
	Runs  []types.ScheduledRun `json:"runs"`
}

// ScheduledRunsResponse lists scheduled runs created or selected by a request.
type ScheduledRunsResponse struct {
	Date string               `json:"date,omitempty"`
	Runs []types.ScheduledRun `json:"runs"`
}

func nonNil(runs []types.ScheduledRun) []types.ScheduledRun {
	if runs == nil {
		return []types.ScheduledRun{}
	}
	return runs
}

// pathDate parses the {date} path segment.
func (s *Server) pathDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := types.ParseDate(r.PathValue("date"))
	if err != nil {
		s.handleError(w, r, &ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

// handleListCalendar returns every scheduled run of ?month=YYYY-MM, the current month by default.
func (s *Server) handleListCalendar(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	today := s.calendar.Today()
	ym := calendar.MonthOf(today)
	if month := r.URL.Query().Get("month"); month != "" {
		parsed, err := calendar.ParseYearMonth(month)
		if err != nil {
			s.handleError(w, r, &ErrValidation{Field: "month", Message: "must be YYYY-MM"})
			return
		}
		ym = parsed
	}

	runs, err := s.calendar.ListMonth(r.Context(), cfg.SiteID, ym)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, CalendarResponse{
		Month: ym.String(),
		Today: today.Format(types.DateLayout),
		Runs:  nonNil(runs),
	})
}

// handleCreateScheduledRuns commits pending runs on explicit dates.
func (s *Server) handleCreateScheduledRuns(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	var req types.CreateScheduledRunsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		date, err := types.ParseDate(d)
		if err != nil {
			s.handleError(w, r, &ErrValidation{Field: "dates", Message: "must be YYYY-MM-DD"})
			return
		}
		dates = append(dates, date)
	}

	created, err := s.calendar.CreateRuns(r.Context(), cfg.SiteID, dates)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, ScheduledRunsResponse{Runs: nonNil(created)})
}

// handleScheduleMonth fills a month on the selected weekdays.
func (s *Server) handleScheduleMonth(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	var req types.ScheduleMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}
	ym, err := calendar.ParseYearMonth(req.Month)
	if err != nil {
		s.handleError(w, r, &ErrValidation{Field: "month", Message: "must be YYYY-MM"})
		return
	}

	created, err := s.calendar.ScheduleMonth(r.Context(), cfg.SiteID, ym, req.Weekdays, s.calendar.Today())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ScheduledRunsResponse{Runs: nonNil(created)})
}

// handleToggleDay creates or removes a pending run on one day.
func (s *Server) handleToggleDay(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}
	date, ok := s.pathDate(w, r)
	if !ok {
		return
	}

	result, err := s.calendar.ToggleDay(r.Context(), cfg.SiteID, date)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleDeleteScheduledRun removes a pending run.
func (s *Server) handleDeleteScheduledRun(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}
	date, ok := s.pathDate(w, r)
	if !ok {
		return
	}

	if err := s.calendar.DeleteRun(r.Context(), cfg.SiteID, date); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReadyToday lists the keyword_picked runs of ?date=, today by default.
func (s *Server) handleReadyToday(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	day := s.calendar.Today()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := types.ParseDate(d)
		if err != nil {
			s.handleError(w, r, &ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	runs, err := s.calendar.ReadyToday(r.Context(), cfg.SiteID, day)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ScheduledRunsResponse{Date: day.Format(types.DateLayout), Runs: nonNil(runs)})
}

// handleRunReady executes today's keyword_picked runs in date order.
func (s *Server) handleRunReady(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.authorizeSite(w, r)
	if !ok {
		return
	}

	var req RunRequest
	if err := decodeOptional(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	report, err := s.runner.RunReadyToday(r.Context(), cfg.SiteID, s.calendar.Today(), s.runOptions(req))
	s.writeRunResult(w, r, report, err)
}
