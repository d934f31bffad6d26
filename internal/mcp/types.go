// Package mcp exposes the planning pipeline as Model Context Protocol tools.
package mcp

// Tool names.
const (
	ToolSubmit      = "triage_submit"
	ToolStatus      = "triage_status"
	ToolStageOutput = "triage_stage_output"
	ToolDecide      = "triage_decide"
	ToolPause       = "triage_pause"
	ToolResume      = "triage_resume"
	ToolResult      = "triage_result"
)

// SubmitParams defines the parameters for triage_submit.
type SubmitParams struct {
	// Problem is the software problem statement to plan for. Required.
	Problem string `json:"problem"`
}

// TaskParams identifies a task. Used by triage_status and triage_result.
type TaskParams struct {
	// TaskID is the full task ID or a unique prefix of it. Required.
	TaskID string `json:"task_id"`
}

// StageOutputParams defines the parameters for triage_stage_output.
type StageOutputParams struct {
	TaskID string `json:"task_id"`

	// Stage is one of project_manager, architect, security, tester, reviewer.
	Stage string `json:"stage"`
}

// DecideParams defines the parameters for triage_decide.
type DecideParams struct {
	TaskID string `json:"task_id"`
	Stage  string `json:"stage"`

	// Approved must be set explicitly; there is no default decision.
	Approved *bool `json:"approved"`

	// Feedback is required when rejecting.
	Feedback string `json:"feedback,omitempty"`
}

// PauseParams defines the parameters for triage_pause.
type PauseParams struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason,omitempty"`
}

// ResumeParams defines the parameters for triage_resume.
type ResumeParams struct {
	TaskID string `json:"task_id"`

	// ContinueFrom, when set, must name the task's current stage.
	ContinueFrom string `json:"continue_from,omitempty"`
}

// ToolResult is the outcome of a tool handler. Error holds a user-facing
// message; when set, Content is empty and the result is flagged as an error.
type ToolResult struct {
	Tool    string `json:"tool"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}
