package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Progress increments applied on state transitions.
const (
	ProgressStageComplete = 15 // a stage produced output for review
	ProgressStep          = 5  // any other meaningful sub-step
	ProgressMax           = 100
)

// LogEntry is one human-readable progress message.
type LogEntry struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// TaskState is the authoritative record of one pipeline run.
type TaskState struct {
	ID                   string                `json:"task_id"`
	Problem              string                `json:"problem"`
	StageSequence        []Stage               `json:"stage_sequence"`
	CurrentStage         Stage                 `json:"current_stage"`
	StageStatus          map[Stage]StageStatus `json:"stage_status"`
	Outputs              map[Stage]string      `json:"outputs"`
	Feedback             map[Stage]string      `json:"feedback"`
	RevisionCount        map[Stage]int         `json:"revision_count"`
	CompletedStages      []Stage               `json:"completed_stages"`
	Progress             int                   `json:"progress"`
	Log                  []LogEntry            `json:"log"`
	AwaitingUserApproval bool                  `json:"awaiting_user_approval"`
	Paused               bool                  `json:"paused"`
	PauseReason          string                `json:"pause_reason,omitempty"`
	PauseTimestamp       *time.Time            `json:"pause_timestamp,omitempty"`
	Complete             bool                  `json:"complete"`
	Error                string                `json:"error,omitempty"`
	FinalResult          string                `json:"final_result,omitempty"`

	// RunID identifies the in-flight stage execution; empty when none is running.
	// Completions carrying a different ID are discarded.
	RunID string `json:"run_id,omitempty"`

	// Version increases by one on every committed mutation.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTaskState returns a fresh state with every stage pending.
func NewTaskState(id, problem string, now time.Time) *TaskState {
	seq := Sequence()
	t := &TaskState{
		ID:              id,
		Problem:         problem,
		StageSequence:   seq,
		CurrentStage:    seq[0],
		StageStatus:     make(map[Stage]StageStatus, len(seq)),
		Outputs:         make(map[Stage]string),
		Feedback:        make(map[Stage]string),
		RevisionCount:   make(map[Stage]int, len(seq)),
		CompletedStages: []Stage{},
		Log:             []LogEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, s := range seq {
		t.StageStatus[s] = StatusPending
		t.RevisionCount[s] = 0
	}
	t.record("Task created: "+problem, 0, now)
	return t
}

// Clone returns a deep copy.
func (t *TaskState) Clone() *TaskState {
	if t == nil {
		return nil
	}
	c := *t
	c.StageSequence = append([]Stage(nil), t.StageSequence...)
	c.CompletedStages = append([]Stage{}, t.CompletedStages...)
	c.Log = append([]LogEntry{}, t.Log...)
	c.StageStatus = make(map[Stage]StageStatus, len(t.StageStatus))
	for k, v := range t.StageStatus {
		c.StageStatus[k] = v
	}
	c.Outputs = make(map[Stage]string, len(t.Outputs))
	for k, v := range t.Outputs {
		c.Outputs[k] = v
	}
	c.Feedback = make(map[Stage]string, len(t.Feedback))
	for k, v := range t.Feedback {
		c.Feedback[k] = v
	}
	c.RevisionCount = make(map[Stage]int, len(t.RevisionCount))
	for k, v := range t.RevisionCount {
		c.RevisionCount[k] = v
	}
	if t.PauseTimestamp != nil {
		ts := *t.PauseTimestamp
		c.PauseTimestamp = &ts
	}
	return &c
}

// Status returns the status of a stage (pending when unknown).
func (t *TaskState) Status(s Stage) StageStatus {
	if st, ok := t.StageStatus[s]; ok {
		return st
	}
	return StatusPending
}

// Output returns the latest output of a stage.
func (t *TaskState) Output(s Stage) (string, bool) {
	out, ok := t.Outputs[s]
	return out, ok
}

// InFlight reports whether a stage execution is currently running for this task.
func (t *TaskState) InFlight() bool {
	return t.RunID != ""
}

// ActiveStages lists the stages currently in_progress or awaiting_approval.
func (t *TaskState) ActiveStages() []Stage {
	var active []Stage
	for _, s := range t.StageSequence {
		if t.Status(s).Active() {
			active = append(active, s)
		}
	}
	return active
}

// Upstream collects the latest outputs of the stages s depends on.
func (t *TaskState) Upstream(s Stage) map[Stage]string {
	deps := s.Dependencies()
	up := make(map[Stage]string, len(deps))
	for _, d := range deps {
		if out, ok := t.Outputs[d]; ok {
			up[d] = out
		}
	}
	return up
}

// LastLog returns the most recent log message, or "".
func (t *TaskState) LastLog() string {
	if len(t.Log) == 0 {
		return ""
	}
	return t.Log[len(t.Log)-1].Message
}

// record appends a log message and advances progress, clamped at ProgressMax.
func (t *TaskState) record(msg string, increment int, now time.Time) {
	t.Log = append(t.Log, LogEntry{Message: msg, At: now})
	if increment > 0 {
		t.Progress += increment
	}
	if t.Progress > ProgressMax {
		t.Progress = ProgressMax
	}
}

// transition moves a stage to a new status through the transition table.
func (t *TaskState) transition(s Stage, to StageStatus) error {
	if t.Complete {
		return fmt.Errorf("%s: %w", t.ID, ErrAlreadyComplete)
	}
	if err := ValidateTransition(t.Status(s), to); err != nil {
		return fmt.Errorf("stage %s: %w", s, err)
	}
	t.StageStatus[s] = to
	return nil
}

// fail records a terminal error against a stage and closes the task.
func (t *TaskState) fail(s Stage, cause error, now time.Time) {
	if s.Valid() {
		t.StageStatus[s] = StatusError
	}
	t.Error = cause.Error()
	t.Complete = true
	t.AwaitingUserApproval = false
	t.RunID = ""
	t.record(fmt.Sprintf("Error during %s execution: %v", s, cause), 0, now)
}

// Validate checks the structural invariants of the state.
func (t *TaskState) Validate() error {
	var problems []string

	if !t.CurrentStage.Valid() && t.CurrentStage != StageComplete {
		problems = append(problems, fmt.Sprintf("current stage %d is not in the sequence", int(t.CurrentStage)))
	}
	if t.CurrentStage == StageComplete && !t.Complete {
		problems = append(problems, "current stage is complete but task is not")
	}

	active := t.ActiveStages()
	if len(active) > 1 {
		problems = append(problems, fmt.Sprintf("multiple active stages: %v", active))
	}
	if len(active) == 0 && !t.Complete && !t.Paused && t.Status(t.CurrentStage) != StatusNeedsRevision && t.Status(t.CurrentStage) != StatusPending {
		problems = append(problems, "no active stage on a running task")
	}

	for _, s := range t.CompletedStages {
		if t.Status(s) != StatusApproved {
			problems = append(problems, fmt.Sprintf("completed stage %s has status %s", s, t.Status(s)))
		}
	}
	for s, n := range t.RevisionCount {
		if n > 0 && t.Feedback[s] == "" {
			problems = append(problems, fmt.Sprintf("stage %s revised %d times without feedback", s, n))
		}
	}
	if t.AwaitingUserApproval && t.Status(t.CurrentStage) != StatusAwaitingApproval {
		problems = append(problems, "awaiting approval flag set without output under review")
	}
	if t.Progress < 0 || t.Progress > ProgressMax {
		problems = append(problems, fmt.Sprintf("progress %d out of range", t.Progress))
	}

	if len(problems) > 0 {
		return fmt.Errorf("task %s invariants violated: %s", t.ID, strings.Join(problems, "; "))
	}
	return nil
}

// Summary is a compact view of a task for listings.
type Summary struct {
	ID                   string    `json:"task_id"`
	Problem              string    `json:"problem"`
	CurrentStage         Stage     `json:"current_stage"`
	Status               string    `json:"status"`
	Progress             int       `json:"progress"`
	AwaitingUserApproval bool      `json:"awaiting_user_approval"`
	Paused               bool      `json:"paused"`
	Complete             bool      `json:"complete"`
	Error                string    `json:"error,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Summarize derives a listing row from the full state.
func (t *TaskState) Summarize() Summary {
	return Summary{
		ID:                   t.ID,
		Problem:              t.Problem,
		CurrentStage:         t.CurrentStage,
		Status:               t.Phase(),
		Progress:             t.Progress,
		AwaitingUserApproval: t.AwaitingUserApproval,
		Paused:               t.Paused,
		Complete:             t.Complete,
		Error:                t.Error,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

// Phase names the task-level state: running, paused, complete or failed.
func (t *TaskState) Phase() string {
	switch {
	case t.Complete && t.Error != "":
		return "failed"
	case t.Complete:
		return "complete"
	case t.Paused:
		return "paused"
	default:
		return "running"
	}
}
