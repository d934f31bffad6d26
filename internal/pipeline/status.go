package pipeline

import "fmt"

// StageStatus is the lifecycle state of a single stage within a task.
type StageStatus string

const (
	StatusPending          StageStatus = "pending"           // Not started yet
	StatusInProgress       StageStatus = "in_progress"       // Generation running or queued
	StatusAwaitingApproval StageStatus = "awaiting_approval" // Output produced, waiting on a human
	StatusApproved         StageStatus = "approved"          // Accepted; terminal for the stage
	StatusNeedsRevision    StageStatus = "needs_revision"    // Rejected with feedback, re-run pending
	StatusError            StageStatus = "error"             // Generation failed; terminal for the task
)

var allowedTransitions = map[StageStatus]map[StageStatus]struct{}{
	StatusPending: {
		StatusInProgress: {},
	},
	StatusInProgress: {
		StatusInProgress:       {}, // re-run after an interrupted execution
		StatusAwaitingApproval: {},
		StatusError:            {},
	},
	StatusAwaitingApproval: {
		StatusApproved:      {},
		StatusNeedsRevision: {},
	},
	StatusNeedsRevision: {
		StatusInProgress: {},
		StatusError:      {},
	},
	StatusApproved: {},
	StatusError:    {},
}

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Active reports whether a stage in this status counts as the task's active stage.
func (s StageStatus) Active() bool {
	return s == StatusInProgress || s == StatusAwaitingApproval
}

// ValidateTransition checks a per-stage status change against the transition table.
func ValidateTransition(from, to StageStatus) error {
	if !from.Valid() {
		return fmt.Errorf("%w: unknown source status %q", ErrInvalidTransition, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, to)
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
