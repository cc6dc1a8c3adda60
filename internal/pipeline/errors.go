package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/content-autopilot/internal/pipeline/steps"
	"github.com/jonathan/content-autopilot/internal/types"
)

// Precondition errors. They are returned before any step runs.
var (
	// ErrResumeRequired rejects a fresh run while a unit is awaiting generation.
	ErrResumeRequired = errors.New("an article is awaiting generation; resume it instead of starting a fresh run")
	// ErrRunInFlight rejects a second ad hoc run for a site that is already running.
	ErrRunInFlight = errors.New("a run is already in progress for this site")
	// ErrNothingToResume rejects a resume when no unit is awaiting generation.
	ErrNothingToResume = errors.New("nothing to resume: no article is awaiting generation")
)

// StepError reports the step that failed and the unit it belonged to.
// Unit is 0 for the batch-wide refresh step and 1-based otherwise.
type StepError struct {
	Unit int
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e.Unit == 0 {
		return fmt.Sprintf("step %d (%s) failed: %v", steps.Number(e.Step), e.Step, e.Err)
	}
	return fmt.Sprintf("unit %d: step %d (%s) failed: %v", e.Unit, steps.Number(e.Step), e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// BatchError reports the scheduled row that halted a ready-today batch.
// Index is 1-based in the order rows were processed.
type BatchError struct {
	Index int
	Date  time.Time
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("scheduled run %d (%s) failed: %v", e.Index, e.Date.Format(types.DateLayout), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// failureMessage is the message recorded as lastError: the collaborator's own
// message without the step prefix.
func failureMessage(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Err != nil {
		return stepErr.Err.Error()
	}
	return err.Error()
}
