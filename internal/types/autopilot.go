// Package types provides type definitions for structured data used throughout the content autopilot.
package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Cadence controls how often a fresh autopilot run is due for a site.
type Cadence string

// Cadence values
const (
	CadenceDaily      Cadence = "daily"
	CadenceEvery3Days Cadence = "every_3_days"
	CadenceWeekly     Cadence = "weekly"
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceEvery3Days, CadenceWeekly:
		return true
	}
	return false
}

// Interval returns the time between two cadence-driven runs.
func (c Cadence) Interval() time.Duration {
	switch c {
	case CadenceDaily:
		return 24 * time.Hour
	case CadenceEvery3Days:
		return 3 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Next returns the next due time after from.
func (c Cadence) Next(from time.Time) time.Time {
	return from.Add(c.Interval())
}

// ReasoningLevel is the generation effort knob. The core passes it through
// to the article generator untouched.
type ReasoningLevel string

// ReasoningLevel values
const (
	ReasoningLow    ReasoningLevel = "low"
	ReasoningMedium ReasoningLevel = "medium"
	ReasoningHigh   ReasoningLevel = "high"
)

// Valid reports whether r is a known reasoning level.
func (r ReasoningLevel) Valid() bool {
	switch r {
	case ReasoningLow, ReasoningMedium, ReasoningHigh:
		return true
	}
	return false
}

// PipelineStep is the persisted resumability marker of a site.
// The zero value means no unit of work is in flight.
type PipelineStep string

// PipelineStep values
const (
	PipelineStepNone               PipelineStep = ""
	PipelineStepAwaitingGeneration PipelineStep = "awaiting_generation"
)

// Site is a managed web property.
type Site struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Domain         string    `json:"domain"`
	CreatedAt      time.Time `json:"created_at"`
}

// AutopilotConfig is the per-site autopilot configuration together with the
// single-slot pipeline progress record.
type AutopilotConfig struct {
	SiteID            uuid.UUID      `json:"site_id"`
	OrganizationID    uuid.UUID      `json:"organization_id"`
	Domain            string         `json:"domain"`
	Enabled           bool           `json:"enabled"`
	Cadence           Cadence        `json:"cadence"`
	ReasoningLevel    ReasoningLevel `json:"reasoning_level"`
	ArticlesPerRun    int            `json:"articles_per_run"`
	NextRunAt         *time.Time     `json:"next_run_at,omitempty"`
	PipelineStep      PipelineStep   `json:"pipeline_step,omitempty"`
	PipelineKeywordID *uuid.UUID     `json:"pipeline_keyword_id,omitempty"`
	PipelineArticleID *uuid.UUID     `json:"pipeline_article_id,omitempty"`
	LastRunAt         *time.Time     `json:"last_run_at,omitempty"`
	LastError         *string        `json:"last_error,omitempty"`
	RunningSince      *time.Time     `json:"running_since,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// InFlight reports whether steps 1-2 completed and step 3 is still owed.
func (c *AutopilotConfig) InFlight() bool {
	return c.PipelineStep == PipelineStepAwaitingGeneration
}

// Running reports whether an ad hoc run holds the site at now. Locks older
// than staleAfter are treated as abandoned.
func (c *AutopilotConfig) Running(now time.Time, staleAfter time.Duration) bool {
	if c.RunningSince == nil {
		return false
	}
	return now.Sub(*c.RunningSince) < staleAfter
}

// CheckPairing returns an error when the step marker and keyword handle disagree.
func (c *AutopilotConfig) CheckPairing() error {
	hasKeyword := c.PipelineKeywordID != nil
	if c.InFlight() != hasKeyword {
		return fmt.Errorf("pipeline progress inconsistent: step=%q keyword_set=%t", c.PipelineStep, hasKeyword)
	}
	if c.PipelineStep != PipelineStepNone && !c.InFlight() {
		return fmt.Errorf("unknown pipeline step %q", c.PipelineStep)
	}
	return nil
}

// AutopilotConfigUpdate is a partial update of the user-editable autopilot settings.
// Nil fields are left untouched.
type AutopilotConfigUpdate struct {
	Enabled        *bool           `json:"enabled,omitempty"`
	Cadence        *Cadence        `json:"cadence,omitempty" validate:"omitempty,oneof=daily every_3_days weekly"`
	ReasoningLevel *ReasoningLevel `json:"reasoning_level,omitempty" validate:"omitempty,oneof=low medium high"`
	ArticlesPerRun *int            `json:"articles_per_run,omitempty" validate:"omitempty,min=1"`
	NextRunAt      *time.Time      `json:"next_run_at,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u *AutopilotConfigUpdate) Empty() bool {
	return u.Enabled == nil && u.Cadence == nil && u.ReasoningLevel == nil &&
		u.ArticlesPerRun == nil && u.NextRunAt == nil
}

// Validate validates the AutopilotConfigUpdate using the validator.
func (u *AutopilotConfigUpdate) Validate() error {
	validate := validator.New()
	return validate.Struct(u)
}
