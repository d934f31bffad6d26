// Package approval is the human-in-the-loop boundary: it turns submit,
// approve, reject, pause and resume requests into pipeline controller calls
// and serves read-only views of task state.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/psychon7/Triage-AI/internal/pipeline"
	"github.com/psychon7/Triage-AI/internal/policy"
	"github.com/psychon7/Triage-AI/internal/util"
)

// ErrPolicyDenied is returned when an approval guardrail rejects a decision.
var ErrPolicyDenied = policy.ErrPolicyDenied

// Guard vets an approval before it is applied. *policy.Engine implements it.
type Guard interface {
	CheckApproval(ctx context.Context, in policy.ApprovalInput) error
}

// SubmitResult acknowledges a new task. Timestamp is Unix seconds.
type SubmitResult struct {
	TaskID      string    `json:"taskId"`
	Message     string    `json:"message"`
	Timestamp   float64   `json:"timestamp"`
	SubmittedAt time.Time `json:"-"`
}

// DecisionResult acknowledges an approve or reject decision.
type DecisionResult struct {
	Message string `json:"message"`
	TaskID  string `json:"taskId"`
	Stage   string `json:"stage"`
}

// PauseResult acknowledges a pause.
type PauseResult struct {
	Message  string    `json:"message"`
	TaskID   string    `json:"taskId"`
	PausedAt time.Time `json:"pausedAt"`
}

// ResumeResult acknowledges a resume.
type ResumeResult struct {
	Message      string `json:"message"`
	TaskID       string `json:"taskId"`
	CurrentStage string `json:"currentStage"`
}

// StageOutput is the latest output of one stage; Output is nil when the
// stage has not produced anything yet.
type StageOutput struct {
	Stage  string  `json:"stage"`
	Output *string `json:"output"`
}

// FinalResult is the consolidated plan. Before completion it is assembled
// from whatever outputs exist.
type FinalResult struct {
	Result   string  `json:"result"`
	Complete bool    `json:"complete"`
	Error    *string `json:"error"`
}

// Gateway is safe for concurrent use.
type Gateway struct {
	ctrl   *pipeline.Controller
	reg    *pipeline.Registry
	guard  Guard
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithGuard installs an approval guardrail.
func WithGuard(g Guard) Option {
	return func(gw *Gateway) { gw.guard = g }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(gw *Gateway) {
		if clock != nil {
			gw.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(gw *Gateway) {
		if l != nil {
			gw.logger = l
		}
	}
}

// NewGateway creates a gateway in front of ctrl.
func NewGateway(ctrl *pipeline.Controller, opts ...Option) *Gateway {
	gw := &Gateway{
		ctrl:   ctrl,
		reg:    ctrl.Registry(),
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(gw)
	}
	return gw
}

// Submit registers a task and schedules its first stage. It returns as soon
// as the task exists; generation happens in the background.
func (g *Gateway) Submit(_ context.Context, problem string) (SubmitResult, error) {
	id, err := g.reg.Create(problem)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := g.ctrl.StartFirstStage(id); err != nil {
		return SubmitResult{}, fmt.Errorf("start task %s: %w", id, err)
	}
	g.logger.Info("task submitted", "task_id", id)
	now := g.clock()
	return SubmitResult{
		TaskID:      id,
		Message:     "Task submitted successfully and is being processed",
		Timestamp:   unixSeconds(now),
		SubmittedAt: now,
	}, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Decide approves or rejects the output of the named stage. Feedback given
// with an approval is kept on the stage.
func (g *Gateway) Decide(ctx context.Context, id, stageName string, approved bool, feedback string) (DecisionResult, error) {
	stage, err := pipeline.ParseStage(stageName)
	if err != nil {
		return DecisionResult{}, err
	}
	res := DecisionResult{TaskID: id, Stage: stage.String()}

	if !approved {
		if err := g.ctrl.RestartWithFeedback(id, stage, feedback); err != nil {
			return DecisionResult{}, err
		}
		res.Message = fmt.Sprintf("%s work requires revision. Restarting with feedback.", stage.Title())
		return res, nil
	}

	if err := g.checkApproval(ctx, id, stage); err != nil {
		return DecisionResult{}, err
	}
	if err := g.ctrl.AdvanceOnApproval(id, stage, feedback); err != nil {
		return DecisionResult{}, err
	}
	if next, ok := stage.Next(); ok {
		res.Message = fmt.Sprintf("%s work approved, proceeding to %s", stage.Title(), next)
	} else {
		res.Message = fmt.Sprintf("%s work approved. Task completed! Full plan file has been generated.", stage.Title())
	}
	return res, nil
}

// checkApproval runs the guard against the output under review. Precondition
// errors are left for the controller to report.
func (g *Gateway) checkApproval(ctx context.Context, id string, stage pipeline.Stage) error {
	st, err := g.reg.Get(id)
	if err != nil {
		return err
	}
	if g.guard == nil || st.Complete || st.CurrentStage != stage {
		return nil
	}
	err = g.guard.CheckApproval(ctx, policy.ApprovalInput{
		TaskID:        id,
		Stage:         stage.String(),
		Output:        st.Outputs[stage],
		RevisionCount: st.RevisionCount[stage],
		Problem:       st.Problem,
	})
	if err != nil {
		g.logger.Warn("approval blocked by policy", "task_id", id, "stage", stage.String(), "error", err)
	}
	return err
}

// Pause stops further scheduling for the task.
func (g *Gateway) Pause(_ context.Context, id, reason string) (PauseResult, error) {
	if err := g.ctrl.Pause(id, reason); err != nil {
		return PauseResult{}, err
	}
	res := PauseResult{Message: "Task paused successfully", TaskID: id, PausedAt: g.clock()}
	if st, err := g.reg.Get(id); err == nil && st.PauseTimestamp != nil {
		res.PausedAt = *st.PauseTimestamp
	}
	return res, nil
}

// Resume clears the pause. continueFrom, when set, must name the current stage.
func (g *Gateway) Resume(_ context.Context, id, continueFrom string) (ResumeResult, error) {
	if continueFrom = strings.TrimSpace(continueFrom); continueFrom != "" {
		stage, err := pipeline.ParseStage(continueFrom)
		if err != nil {
			return ResumeResult{}, err
		}
		st, err := g.reg.Get(id)
		if err != nil {
			return ResumeResult{}, err
		}
		if st.CurrentStage != stage {
			return ResumeResult{}, fmt.Errorf("%w: cannot continue from %s, current stage is %s", pipeline.ErrStageMismatch, stage, st.CurrentStage)
		}
	}

	if err := g.ctrl.Resume(id); err != nil {
		return ResumeResult{}, err
	}
	st, err := g.reg.Get(id)
	if err != nil {
		return ResumeResult{}, err
	}

	res := ResumeResult{TaskID: id, CurrentStage: st.CurrentStage.String()}
	if st.AwaitingUserApproval {
		res.Message = "Task resumed and awaiting user approval"
	} else {
		res.Message = "Task resumed and continuing execution"
	}
	return res, nil
}

// GetStatus returns a full snapshot of the task.
func (g *Gateway) GetStatus(id string) (*pipeline.TaskState, error) {
	return g.reg.Get(id)
}

// GetStageOutput returns the latest output of a stage.
func (g *Gateway) GetStageOutput(id, stageName string) (StageOutput, error) {
	stage, err := pipeline.ParseStage(stageName)
	if err != nil {
		return StageOutput{}, err
	}
	st, err := g.reg.Get(id)
	if err != nil {
		return StageOutput{}, err
	}
	res := StageOutput{Stage: stage.String()}
	if out, ok := st.Output(stage); ok {
		res.Output = &out
	}
	return res, nil
}

// GetFinalResult returns the consolidated plan.
func (g *Gateway) GetFinalResult(id string) (FinalResult, error) {
	st, err := g.reg.Get(id)
	if err != nil {
		return FinalResult{}, err
	}
	res := FinalResult{Result: st.FinalResult, Complete: st.Complete}
	if res.Result == "" {
		res.Result = pipeline.BuildDocument(st, g.clock())
	}
	if st.Error != "" {
		msg := st.Error
		res.Error = &msg
	}
	return res, nil
}

// ListTasks returns a summary of every task, oldest first.
func (g *Gateway) ListTasks() []pipeline.Summary {
	states := g.reg.List()
	out := make([]pipeline.Summary, len(states))
	for i, st := range states {
		out[i] = st.Summarize()
	}
	return out
}

// ResolveID expands a unique task ID prefix.
func (g *Gateway) ResolveID(ctx context.Context, prefix string) (string, error) {
	id, err := util.ResolveTaskID(ctx, util.ResolverFunc(g.reg.FindIDsByPrefix), prefix)
	if errors.Is(err, util.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", pipeline.ErrTaskNotFound, prefix)
	}
	return id, err
}
