package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/pipeline/steps"
	"github.com/jonathan/content-autopilot/internal/types"
)

// Mode identifies which entry point produced a report.
type Mode string

// Mode values
const (
	ModeFresh     Mode = "fresh"
	ModeResume    Mode = "resume"
	ModeScheduled Mode = "scheduled"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	SiteID   uuid.UUID    `json:"site_id"`
	Unit     int          `json:"unit"`
	Step     string       `json:"step"`
	Number   int          `json:"number"`
	Category string       `json:"category"`
	Status   steps.Status `json:"status"`
	Message  string       `json:"message"`
	Content  any          `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds per-invocation settings for the pipeline
type RunOptions struct {
	Instructions      string
	GenerateThumbnail bool
	SubmitIndexing    bool
	OnProgress        ProgressCallback
}

// StepState is the caller-visible status of one step.
type StepState struct {
	Step       string       `json:"step"`
	Number     int          `json:"number"`
	Status     steps.Status `json:"status"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"duration_ms,omitempty"`
}

func newStepState(name string) *StepState {
	return &StepState{Step: name, Number: steps.Number(name), Status: steps.StatusPending}
}

// UnitReport is the progress of one article through steps 2-4.
type UnitReport struct {
	Index         int                  `json:"index"`
	ScheduledDate *time.Time           `json:"scheduled_date,omitempty"`
	Steps         []*StepState         `json:"steps"`
	KeywordID     *uuid.UUID           `json:"keyword_id,omitempty"`
	Keyword       string               `json:"keyword,omitempty"`
	Article       *types.Article       `json:"article,omitempty"`
	Publish       *types.PublishResult `json:"publish,omitempty"`
}

func newUnitReport(index int) *UnitReport {
	unit := &UnitReport{Index: index}
	for _, name := range steps.UnitSteps {
		unit.Steps = append(unit.Steps, newStepState(name))
	}
	return unit
}

// Step returns the state of the named step within the unit.
func (u *UnitReport) Step(name string) *StepState {
	for _, s := range u.Steps {
		if s.Step == name {
			return s
		}
	}
	return nil
}

// Published reports whether the unit reached the end of step 4.
func (u *UnitReport) Published() bool {
	return u.Publish != nil
}

// RunReport is the caller-visible progress view of one invocation.
type RunReport struct {
	SiteID     uuid.UUID            `json:"site_id"`
	Mode       Mode                 `json:"mode"`
	Refresh    *StepState           `json:"refresh"`
	Refreshed  *types.RefreshResult `json:"refreshed,omitempty"`
	Units      []*UnitReport        `json:"units"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Published returns the number of units that were published.
func (r *RunReport) Published() int {
	count := 0
	for _, u := range r.Units {
		if u.Published() {
			count++
		}
	}
	return count
}

// FailedStep returns the first failed step and its unit index, if any.
func (r *RunReport) FailedStep() (*StepState, int) {
	if r.Refresh != nil && r.Refresh.Status == steps.StatusFailed {
		return r.Refresh, 0
	}
	for _, u := range r.Units {
		for _, s := range u.Steps {
			if s.Status == steps.StatusFailed {
				return s, u.Index
			}
		}
	}
	return nil, 0
}
