// Package server provides the HTTP REST API for the content autopilot.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/pipeline"
)

// ErrInvalidCredentials indicates an unknown or revoked API key.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid organization or api key"
}

// ErrForbidden indicates the caller's organization does not own the site.
type ErrForbidden struct{}

func (e *ErrForbidden) Error() string {
	return "site belongs to another organization"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrInvalidCredentials:
		return http.StatusUnauthorized
	case *ErrForbidden:
		return http.StatusForbidden
	case *ErrValidation, validator.ValidationErrors:
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, db.ErrSiteNotFound),
		errors.Is(err, db.ErrScheduledRunNotFound),
		errors.Is(err, db.ErrArticleNotFound),
		errors.Is(err, db.ErrKeywordNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrResumeRequired),
		errors.Is(err, pipeline.ErrRunInFlight),
		errors.Is(err, pipeline.ErrNothingToResume),
		errors.Is(err, db.ErrScheduledRunNotPending),
		errors.Is(err, db.ErrStatusConflict),
		errors.Is(err, db.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, calendar.ErrPastDate),
		errors.Is(err, calendar.ErrInvalidWeekday):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNoOpportunity):
		return http.StatusUnprocessableEntity
	}

	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// extractValidationErrors renders the first validator failure for a response body.
func extractValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	var ve *ErrValidation
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return "validation error: invalid request"
}
