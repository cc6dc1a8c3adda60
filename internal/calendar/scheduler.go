package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/types"
)

var (
	// ErrPastDate rejects committing a run to a day before today.
	ErrPastDate = errors.New("date is in the past")
	// ErrInvalidWeekday rejects weekday numbers outside 0-6.
	ErrInvalidWeekday = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
)

// Store persists scheduled runs.
type Store interface {
	ListScheduledRuns(ctx context.Context, siteID uuid.UUID, from, to time.Time) ([]types.ScheduledRun, error)
	ListScheduledRunsByStatus(ctx context.Context, siteID uuid.UUID, date time.Time, status types.ScheduledRunStatus) ([]types.ScheduledRun, error)
	GetScheduledRun(ctx context.Context, siteID uuid.UUID, date time.Time) (*types.ScheduledRun, error)
	CreateScheduledRuns(ctx context.Context, siteID uuid.UUID, dates []time.Time) ([]types.ScheduledRun, error)
	DeleteScheduledRun(ctx context.Context, siteID uuid.UUID, date time.Time) error
}

// ToggleAction is what a day toggle did.
type ToggleAction string

// ToggleAction values
const (
	ToggleCreated   ToggleAction = "created"
	ToggleDeleted   ToggleAction = "deleted"
	ToggleUnchanged ToggleAction = "unchanged"
)

// ToggleResult is the outcome of ToggleDay. Run is the row after the toggle,
// nil when the day has no row.
type ToggleResult struct {
	Action ToggleAction        `json:"action"`
	Date   time.Time           `json:"date"`
	Run    *types.ScheduledRun `json:"run,omitempty"`
}

// Scheduler manages calendar commitments for sites.
type Scheduler struct {
	store    Store
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler. Today is evaluated in loc.
func NewScheduler(store Store, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		location: loc,
		logger:   logger.With("component", "calendar"),
		now:      time.Now,
	}
}

// Today returns the current calendar day in the scheduler's time zone.
func (s *Scheduler) Today() time.Time {
	return types.Day(s.now().In(s.location))
}

// ListMonth returns every row in the month regardless of status.
func (s *Scheduler) ListMonth(ctx context.Context, siteID uuid.UUID, ym YearMonth) ([]types.ScheduledRun, error) {
	from, to := ym.Range()
	return s.store.ListScheduledRuns(ctx, siteID, from, to)
}

// ToggleDay creates a pending row for an empty day and deletes a pending one.
// Days before today and days whose row has progressed past pending are left
// unchanged.
func (s *Scheduler) ToggleDay(ctx context.Context, siteID uuid.UUID, date time.Time) (*ToggleResult, error) {
	day := types.Day(date)
	result := &ToggleResult{Action: ToggleUnchanged, Date: day}

	existing, err := s.store.GetScheduledRun(ctx, siteID, day)
	if err != nil {
		return nil, err
	}
	result.Run = existing

	if day.Before(s.Today()) {
		return result, nil
	}

	switch {
	case existing == nil:
		created, err := s.store.CreateScheduledRuns(ctx, siteID, []time.Time{day})
		if err != nil {
			return nil, err
		}
		if len(created) == 0 {
			// Another writer created the row first.
			result.Run, err = s.store.GetScheduledRun(ctx, siteID, day)
			if err != nil {
				return nil, err
			}
			return result, nil
		}
		result.Action = ToggleCreated
		result.Run = &created[0]

	case existing.Status == types.ScheduledRunPending:
		err := s.store.DeleteScheduledRun(ctx, siteID, day)
		switch {
		case err == nil:
			result.Action = ToggleDeleted
			result.Run = nil
		case errors.Is(err, db.ErrScheduledRunNotPending), errors.Is(err, db.ErrScheduledRunNotFound):
			result.Run, err = s.store.GetScheduledRun(ctx, siteID, day)
			if err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	if result.Action != ToggleUnchanged {
		s.logger.Info("day toggled", "site_id", siteID, "date", day.Format(types.DateLayout), "action", result.Action)
	}
	return result, nil
}

// ScheduleMonth creates pending rows on the selected weekdays of the month,
// for days strictly after today that have no row yet. Existing rows are
// never modified, so repeating the call creates nothing new.
func (s *Scheduler) ScheduleMonth(ctx context.Context, siteID uuid.UUID, ym YearMonth, weekdays []int, today time.Time) ([]types.ScheduledRun, error) {
	set, err := Weekdays(weekdays)
	if err != nil {
		return nil, err
	}

	dates := EligibleDates(ym, set, today)
	if len(dates) == 0 {
		return nil, nil
	}

	created, err := s.store.CreateScheduledRuns(ctx, siteID, dates)
	if err != nil {
		return nil, err
	}
	s.logger.Info("month scheduled", "site_id", siteID, "month", ym.String(), "eligible", len(dates), "created", len(created))
	return created, nil
}

// ReadyToday returns today's rows whose keyword was picked ahead of time.
func (s *Scheduler) ReadyToday(ctx context.Context, siteID uuid.UUID, today time.Time) ([]types.ScheduledRun, error) {
	return s.store.ListScheduledRunsByStatus(ctx, siteID, types.Day(today), types.ScheduledRunKeywordPicked)
}

// CreateRuns commits pending rows for the given dates. Dates that already
// have a row are left as they are; only new rows are returned.
func (s *Scheduler) CreateRuns(ctx context.Context, siteID uuid.UUID, dates []time.Time) ([]types.ScheduledRun, error) {
	days := uniqueDays(dates)
	today := s.Today()
	for _, d := range days {
		if d.Before(today) {
			return nil, fmt.Errorf("%w: %s", ErrPastDate, d.Format(types.DateLayout))
		}
	}
	return s.store.CreateScheduledRuns(ctx, siteID, days)
}

// DeleteRun removes a pending row. Rows in any other status are protected.
func (s *Scheduler) DeleteRun(ctx context.Context, siteID uuid.UUID, date time.Time) error {
	return s.store.DeleteScheduledRun(ctx, siteID, types.Day(date))
}
