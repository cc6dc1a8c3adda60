package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/pipeline/steps"
	"github.com/jonathan/content-autopilot/internal/types"
)

func TestErrInvalidCredentials(t *testing.T) {
	err := &ErrInvalidCredentials{}
	assert.Equal(t, "invalid organization or api key", err.Error())
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))
}

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "month", Message: "must be YYYY-MM"}
	assert.Equal(t, "validation error: month - must be YYYY-MM", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.Equal(t, err.Error(), extractValidationErrors(err))
}

func TestHTTPStatus(t *testing.T) {
	stepErr := &pipeline.StepError{Unit: 1, Step: steps.GenerateArticle, Err: errors.New("RateLimited")}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden", &ErrForbidden{}, http.StatusForbidden},
		{"site not found", fmt.Errorf("load: %w", db.ErrSiteNotFound), http.StatusNotFound},
		{"run not found", db.ErrScheduledRunNotFound, http.StatusNotFound},
		{"resume required", pipeline.ErrResumeRequired, http.StatusConflict},
		{"run in flight", pipeline.ErrRunInFlight, http.StatusConflict},
		{"nothing to resume", pipeline.ErrNothingToResume, http.StatusConflict},
		{"not pending", db.ErrScheduledRunNotPending, http.StatusConflict},
		{"past date", fmt.Errorf("%w: 2025-07-01", calendar.ErrPastDate), http.StatusBadRequest},
		{"bad weekday", calendar.ErrInvalidWeekday, http.StatusBadRequest},
		{"no opportunity", &pipeline.StepError{Unit: 1, Step: steps.PickKeyword, Err: db.ErrNoOpportunity}, http.StatusUnprocessableEntity},
		{"collaborator failure", stepErr, http.StatusBadGateway},
		{"batch failure", &pipeline.BatchError{Index: 2, Date: time.Now(), Err: stepErr}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_ValidatorErrors(t *testing.T) {
	req := types.ScheduleMonthRequest{Month: "July"}
	err := req.Validate()
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	var ve validator.ValidationErrors
	assert.ErrorAs(t, err, &ve)
	assert.Contains(t, extractValidationErrors(err), "validation error: ")
}
