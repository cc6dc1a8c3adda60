package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ScheduledRunStatus is the lifecycle state of a calendar commitment.
type ScheduledRunStatus string

// ScheduledRunStatus values
const (
	ScheduledRunPending       ScheduledRunStatus = "pending"
	ScheduledRunKeywordPicked ScheduledRunStatus = "keyword_picked"
	ScheduledRunRunning       ScheduledRunStatus = "running"
	ScheduledRunCompleted     ScheduledRunStatus = "completed"
	ScheduledRunFailed        ScheduledRunStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ScheduledRunStatus) Terminal() bool {
	return s == ScheduledRunCompleted || s == ScheduledRunFailed
}

// Valid reports whether s is a known status.
func (s ScheduledRunStatus) Valid() bool {
	switch s {
	case ScheduledRunPending, ScheduledRunKeywordPicked, ScheduledRunRunning,
		ScheduledRunCompleted, ScheduledRunFailed:
		return true
	}
	return false
}

var scheduledRunTransitions = map[ScheduledRunStatus][]ScheduledRunStatus{
	ScheduledRunPending:       {ScheduledRunKeywordPicked, ScheduledRunRunning, ScheduledRunFailed},
	ScheduledRunKeywordPicked: {ScheduledRunRunning, ScheduledRunFailed},
	ScheduledRunRunning:       {ScheduledRunCompleted, ScheduledRunFailed},
}

// CanTransition reports whether a row may move from one status to another.
// Statuses only move forward; failed is reachable from any non-terminal state.
func CanTransition(from, to ScheduledRunStatus) bool {
	for _, next := range scheduledRunTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ScheduledRun is a commitment to produce one article for one site on one calendar day.
type ScheduledRun struct {
	ID            uuid.UUID          `json:"id"`
	SiteID        uuid.UUID          `json:"site_id"`
	ScheduledDate time.Time          `json:"scheduled_date"`
	Status        ScheduledRunStatus `json:"status"`
	KeywordID     *uuid.UUID         `json:"keyword_id,omitempty"`
	KeywordText   *string            `json:"keyword_text,omitempty"`
	ArticleID     *uuid.UUID         `json:"article_id,omitempty"`
	ArticleTitle  *string            `json:"article_title,omitempty"`
	PublishedURL  *string            `json:"published_url,omitempty"`
	LastError     *string            `json:"last_error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// DateLayout is the wire format of a calendar day.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar day into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Day truncates t to its calendar day, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateScheduledRunsRequest represents a request to commit a set of dates.
type CreateScheduledRunsRequest struct {
	Dates []string `json:"dates" validate:"required,min=1,max=62,dive,datetime=2006-01-02"`
}

// Validate validates the CreateScheduledRunsRequest using the validator.
func (r *CreateScheduledRunsRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ScheduleMonthRequest represents a request to fill a month on selected weekdays.
type ScheduleMonthRequest struct {
	Month    string `json:"month" validate:"required,datetime=2006-01"`
	Weekdays []int  `json:"weekdays" validate:"required,min=1,max=7,dive,min=0,max=6"`
}

// Validate validates the ScheduleMonthRequest using the validator.
func (r *ScheduleMonthRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
