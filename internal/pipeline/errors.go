package pipeline

import "errors"

// Request-path errors. Callers match them with errors.Is; the returned
// error usually wraps one of these with the task ID or stage name.
var (
	// ErrTaskNotFound is returned when a task ID is unknown to the registry.
	ErrTaskNotFound = errors.New("task not found")

	// ErrStageMismatch is returned when a decision names a stage that is not
	// the task's current stage.
	ErrStageMismatch = errors.New("stage mismatch")

	// ErrMissingFeedback is returned when a rejection carries no feedback text.
	ErrMissingFeedback = errors.New("feedback is required when rejecting a stage")

	// ErrAlreadyPaused is returned when pausing a task that is already paused.
	ErrAlreadyPaused = errors.New("task is already paused")

	// ErrNotPaused is returned when resuming a task that is not paused.
	ErrNotPaused = errors.New("task is not paused")

	// ErrAlreadyComplete is returned for any state change on a finished task.
	ErrAlreadyComplete = errors.New("task is already complete")

	// ErrInvalidStage is returned when a stage name is not part of the sequence.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrMissingProblem is returned when a task is submitted without a problem statement.
	ErrMissingProblem = errors.New("problem statement is required")
)

// Background errors. These are recorded into task state, never returned to
// a request-path caller.
var (
	// ErrGenerationFailure wraps any error returned by the generation provider.
	ErrGenerationFailure = errors.New("generation failed")

	// ErrInvalidTransition indicates a per-stage status change that the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid stage transition")
)
