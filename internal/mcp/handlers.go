package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/pipeline"
)

// Gateway is the subset of approval.Gateway the tools call.
type Gateway interface {
	Submit(ctx context.Context, problem string) (approval.SubmitResult, error)
	Decide(ctx context.Context, id, stage string, approved bool, feedback string) (approval.DecisionResult, error)
	Pause(ctx context.Context, id, reason string) (approval.PauseResult, error)
	Resume(ctx context.Context, id, continueFrom string) (approval.ResumeResult, error)
	GetStatus(id string) (*pipeline.TaskState, error)
	GetStageOutput(id, stage string) (approval.StageOutput, error)
	GetFinalResult(id string) (approval.FinalResult, error)
	ResolveID(ctx context.Context, prefix string) (string, error)
}

// Handlers binds tool calls to a Gateway.
type Handlers struct {
	gw Gateway
}

// NewHandlers returns tool handlers over gw.
func NewHandlers(gw Gateway) *Handlers {
	return &Handlers{gw: gw}
}

// Submit handles triage_submit.
func (h *Handlers) Submit(ctx context.Context, p SubmitParams) *ToolResult {
	if strings.TrimSpace(p.Problem) == "" {
		return validationError(ToolSubmit, "problem", "problem is required")
	}
	res, err := h.gw.Submit(ctx, p.Problem)
	if err != nil {
		return toolError(ToolSubmit, err)
	}
	return &ToolResult{Tool: ToolSubmit, Content: FormatSubmit(res)}
}

// Status handles triage_status.
func (h *Handlers) Status(ctx context.Context, p TaskParams) *ToolResult {
	id, errRes := h.resolve(ctx, ToolStatus, p.TaskID)
	if errRes != nil {
		return errRes
	}
	st, err := h.gw.GetStatus(id)
	if err != nil {
		return toolError(ToolStatus, err)
	}
	return &ToolResult{Tool: ToolStatus, Content: FormatStatus(st)}
}

// StageOutput handles triage_stage_output.
func (h *Handlers) StageOutput(ctx context.Context, p StageOutputParams) *ToolResult {
	if strings.TrimSpace(p.Stage) == "" {
		return validationError(ToolStageOutput, "stage", "stage is required")
	}
	id, errRes := h.resolve(ctx, ToolStageOutput, p.TaskID)
	if errRes != nil {
		return errRes
	}
	out, err := h.gw.GetStageOutput(id, p.Stage)
	if err != nil {
		return toolError(ToolStageOutput, err)
	}
	return &ToolResult{Tool: ToolStageOutput, Content: FormatStageOutput(id, out)}
}

// Decide handles triage_decide.
func (h *Handlers) Decide(ctx context.Context, p DecideParams) *ToolResult {
	if strings.TrimSpace(p.Stage) == "" {
		return validationError(ToolDecide, "stage", "stage is required")
	}
	if p.Approved == nil {
		return validationError(ToolDecide, "approved", "approved must be true or false")
	}
	if !*p.Approved && strings.TrimSpace(p.Feedback) == "" {
		return validationError(ToolDecide, "feedback", "feedback is required when rejecting")
	}
	id, errRes := h.resolve(ctx, ToolDecide, p.TaskID)
	if errRes != nil {
		return errRes
	}
	res, err := h.gw.Decide(ctx, id, p.Stage, *p.Approved, p.Feedback)
	if err != nil {
		return toolError(ToolDecide, err)
	}
	return &ToolResult{Tool: ToolDecide, Content: FormatDecision(res)}
}

// Pause handles triage_pause.
func (h *Handlers) Pause(ctx context.Context, p PauseParams) *ToolResult {
	id, errRes := h.resolve(ctx, ToolPause, p.TaskID)
	if errRes != nil {
		return errRes
	}
	res, err := h.gw.Pause(ctx, id, p.Reason)
	if err != nil {
		return toolError(ToolPause, err)
	}
	return &ToolResult{Tool: ToolPause, Content: FormatPause(res)}
}

// Resume handles triage_resume.
func (h *Handlers) Resume(ctx context.Context, p ResumeParams) *ToolResult {
	id, errRes := h.resolve(ctx, ToolResume, p.TaskID)
	if errRes != nil {
		return errRes
	}
	res, err := h.gw.Resume(ctx, id, p.ContinueFrom)
	if err != nil {
		return toolError(ToolResume, err)
	}
	return &ToolResult{Tool: ToolResume, Content: FormatResume(res)}
}

// Result handles triage_result.
func (h *Handlers) Result(ctx context.Context, p TaskParams) *ToolResult {
	id, errRes := h.resolve(ctx, ToolResult, p.TaskID)
	if errRes != nil {
		return errRes
	}
	res, err := h.gw.GetFinalResult(id)
	if err != nil {
		return toolError(ToolResult, err)
	}
	return &ToolResult{Tool: ToolResult, Content: FormatFinalResult(id, res)}
}

func (h *Handlers) resolve(ctx context.Context, tool, prefix string) (string, *ToolResult) {
	if strings.TrimSpace(prefix) == "" {
		return "", validationError(tool, "task_id", "task_id is required")
	}
	id, err := h.gw.ResolveID(ctx, prefix)
	if err != nil {
		return "", toolError(tool, err)
	}
	return id, nil
}

func validationError(tool, field, msg string) *ToolResult {
	return &ToolResult{Tool: tool, Error: FormatValidationError(field, msg)}
}

// toolError maps gateway errors to messages the calling model can act on.
func toolError(tool string, err error) *ToolResult {
	msg := err.Error()
	switch {
	case errors.Is(err, pipeline.ErrStageMismatch):
		msg += ". Call triage_status to see the current stage."
	case errors.Is(err, pipeline.ErrNotPaused):
		msg += ". Only paused tasks can be resumed."
	case errors.Is(err, approval.ErrPolicyDenied):
		msg += ". Reject the stage with feedback that addresses the policy."
	}
	return &ToolResult{Tool: tool, Error: FormatError(msg)}
}
