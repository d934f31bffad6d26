package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychon7/Triage-AI/internal/pipeline"
	"github.com/psychon7/Triage-AI/internal/policy"
	"github.com/psychon7/Triage-AI/internal/util"
)

type guardFunc func(ctx context.Context, in policy.ApprovalInput) error

func (f guardFunc) CheckApproval(ctx context.Context, in policy.ApprovalInput) error { return f(ctx, in) }

func newTestGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := pipeline.GeneratorFunc(func(context.Context, string) (string, error) {
		return "generated output", nil
	})
	exec, err := pipeline.NewExecutor(gen, nil, logger)
	require.NoError(t, err)

	n := 0
	reg := pipeline.NewRegistry(pipeline.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("a1b2c3d4-%04d", n)
	}))
	disp := pipeline.NewDispatcher(2)
	t.Cleanup(func() { _ = disp.Close(context.Background()) })

	ctrl, err := pipeline.NewController(reg, exec, disp, pipeline.WithLogger(logger))
	require.NoError(t, err)
	return NewGateway(ctrl, append([]Option{WithLogger(logger)}, opts...)...)
}

func waitAwaiting(t *testing.T, gw *Gateway, id string, stage pipeline.Stage) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := gw.GetStatus(id)
		return err == nil && st.AwaitingUserApproval && st.CurrentStage == stage
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubmit(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	_, err := gw.Submit(ctx, "  ")
	assert.ErrorIs(t, err, pipeline.ErrMissingProblem)

	res, err := gw.Submit(ctx, "Build a todo app")
	require.NoError(t, err)
	assert.NotEmpty(t, res.TaskID)
	assert.Equal(t, "Task submitted successfully and is being processed", res.Message)
	assert.False(t, res.SubmittedAt.IsZero())
	assert.Positive(t, res.Timestamp)

	waitAwaiting(t, gw, res.TaskID, pipeline.StageProjectManager)
}

func TestSubmitTimestampIsUnixSeconds(t *testing.T) {
	at := time.Unix(1700000000, 500_000_000)
	gw := newTestGateway(t, WithClock(func() time.Time { return at }))

	res, err := gw.Submit(context.Background(), "p")
	require.NoError(t, err)
	assert.InDelta(t, 1700000000.5, res.Timestamp, 1e-6)
	assert.True(t, at.Equal(res.SubmittedAt))

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.IsType(t, float64(0), fields["timestamp"])
	assert.NotContains(t, fields, "SubmittedAt")
	waitAwaiting(t, gw, res.TaskID, pipeline.StageProjectManager)
}

func TestApproveKeepsFeedback(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	res, err := gw.Submit(ctx, "p")
	require.NoError(t, err)
	id := res.TaskID
	waitAwaiting(t, gw, id, pipeline.StageProjectManager)

	_, err = gw.Decide(ctx, id, "project_manager", true, "  looks good, ship it ")
	require.NoError(t, err)

	st, err := gw.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, "looks good, ship it", st.Feedback[pipeline.StageProjectManager])
	assert.Zero(t, st.RevisionCount[pipeline.StageProjectManager])
	assert.Equal(t, []pipeline.Stage{pipeline.StageProjectManager}, st.CompletedStages)
	assert.NoError(t, st.Validate())
}

func TestGetStageOutput(t *testing.T) {
	gw := newTestGateway(t)
	res, err := gw.Submit(context.Background(), "p")
	require.NoError(t, err)
	waitAwaiting(t, gw, res.TaskID, pipeline.StageProjectManager)

	out, err := gw.GetStageOutput(res.TaskID, "project_manager")
	require.NoError(t, err)
	require.NotNil(t, out.Output)
	assert.Equal(t, "generated output", *out.Output)

	out, err = gw.GetStageOutput(res.TaskID, "architect")
	require.NoError(t, err)
	assert.Nil(t, out.Output)

	_, err = gw.GetStageOutput(res.TaskID, "designer")
	assert.ErrorIs(t, err, pipeline.ErrInvalidStage)

	_, err = gw.GetStageOutput("missing", "architect")
	assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
}

func TestDecide(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	res, err := gw.Submit(ctx, "p")
	require.NoError(t, err)
	id := res.TaskID
	waitAwaiting(t, gw, id, pipeline.StageProjectManager)

	_, err = gw.Decide(ctx, id, "nope", true, "")
	assert.ErrorIs(t, err, pipeline.ErrInvalidStage)

	_, err = gw.Decide(ctx, id, "architect", true, "")
	assert.ErrorIs(t, err, pipeline.ErrStageMismatch)

	_, err = gw.Decide(ctx, id, "project_manager", false, "")
	assert.ErrorIs(t, err, pipeline.ErrMissingFeedback)

	dec, err := gw.Decide(ctx, id, "project_manager", false, "more detail")
	require.NoError(t, err)
	assert.Equal(t, "Project Manager work requires revision. Restarting with feedback.", dec.Message)
	waitAwaiting(t, gw, id, pipeline.StageProjectManager)

	dec, err = gw.Decide(ctx, id, "project_manager", true, "")
	require.NoError(t, err)
	assert.Equal(t, "Project Manager work approved, proceeding to architect", dec.Message)
	assert.Equal(t, "project_manager", dec.Stage)

	for _, s := range pipeline.Sequence()[1:] {
		waitAwaiting(t, gw, id, s)
		dec, err = gw.Decide(ctx, id, s.String(), true, "")
		require.NoError(t, err)
	}
	assert.Equal(t, "Reviewer work approved. Task completed! Full plan file has been generated.", dec.Message)

	final, err := gw.GetFinalResult(id)
	require.NoError(t, err)
	assert.True(t, final.Complete)
	assert.Nil(t, final.Error)
	assert.Contains(t, final.Result, "## 5. Final Review and Implementation Plan\ngenerated output")

	_, err = gw.Decide(ctx, id, "reviewer", true, "")
	assert.ErrorIs(t, err, pipeline.ErrAlreadyComplete)
}

func TestDecidePolicyDenied(t *testing.T) {
	var seen policy.ApprovalInput
	gw := newTestGateway(t, WithGuard(guardFunc(func(_ context.Context, in policy.ApprovalInput) error {
		seen = in
		return fmt.Errorf("%w: no", policy.ErrPolicyDenied)
	})))
	ctx := context.Background()
	res, err := gw.Submit(ctx, "Build a todo app")
	require.NoError(t, err)
	waitAwaiting(t, gw, res.TaskID, pipeline.StageProjectManager)
	before, err := gw.GetStatus(res.TaskID)
	require.NoError(t, err)

	_, err = gw.Decide(ctx, res.TaskID, "project_manager", true, "")
	assert.ErrorIs(t, err, ErrPolicyDenied)
	assert.Equal(t, "project_manager", seen.Stage)
	assert.Equal(t, "generated output", seen.Output)
	assert.Equal(t, "Build a todo app", seen.Problem)

	after, err := gw.GetStatus(res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)

	// rejections are not policy checked
	_, err = gw.Decide(ctx, res.TaskID, "project_manager", false, "retry")
	assert.NoError(t, err)
}

func TestPauseResume(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	res, err := gw.Submit(ctx, "p")
	require.NoError(t, err)
	id := res.TaskID
	waitAwaiting(t, gw, id, pipeline.StageProjectManager)

	_, err = gw.Resume(ctx, id, "")
	assert.ErrorIs(t, err, pipeline.ErrNotPaused)

	p, err := gw.Pause(ctx, id, "coffee")
	require.NoError(t, err)
	assert.Equal(t, "Task paused successfully", p.Message)
	assert.False(t, p.PausedAt.IsZero())

	_, err = gw.Pause(ctx, id, "")
	assert.ErrorIs(t, err, pipeline.ErrAlreadyPaused)

	_, err = gw.Resume(ctx, id, "architect")
	assert.ErrorIs(t, err, pipeline.ErrStageMismatch)
	_, err = gw.Resume(ctx, id, "bogus")
	assert.ErrorIs(t, err, pipeline.ErrInvalidStage)

	r, err := gw.Resume(ctx, id, "project_manager")
	require.NoError(t, err)
	assert.Equal(t, "Task resumed and awaiting user approval", r.Message)
	assert.Equal(t, "project_manager", r.CurrentStage)
}

func TestResumeContinuesExecution(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	res, err := gw.Submit(ctx, "p")
	require.NoError(t, err)
	id := res.TaskID
	waitAwaiting(t, gw, id, pipeline.StageProjectManager)

	_, err = gw.Pause(ctx, id, "")
	require.NoError(t, err)
	_, err = gw.Decide(ctx, id, "project_manager", true, "")
	require.NoError(t, err)

	r, err := gw.Resume(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "architect", r.CurrentStage)
	assert.Equal(t, "Task resumed and continuing execution", r.Message)
	waitAwaiting(t, gw, id, pipeline.StageArchitect)
}

func TestGetFinalResultBeforeCompletion(t *testing.T) {
	gw := newTestGateway(t)
	res, err := gw.Submit(context.Background(), "p")
	require.NoError(t, err)
	waitAwaiting(t, gw, res.TaskID, pipeline.StageProjectManager)

	final, err := gw.GetFinalResult(res.TaskID)
	require.NoError(t, err)
	assert.False(t, final.Complete)
	assert.Nil(t, final.Error)
	assert.Contains(t, final.Result, "## 1. Project Management Specification\ngenerated output")
	assert.Contains(t, final.Result, "No architect output available")

	_, err = gw.GetFinalResult("missing")
	assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
}

func TestListAndResolve(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	first, err := gw.Submit(ctx, "one")
	require.NoError(t, err)
	_, err = gw.Submit(ctx, "two")
	require.NoError(t, err)

	list := gw.ListTasks()
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Problem)

	id, err := gw.ResolveID(ctx, " A1B2C3D4-0001 ")
	require.NoError(t, err)
	assert.Equal(t, first.TaskID, id)

	_, err = gw.ResolveID(ctx, "a1b2")
	assert.ErrorIs(t, err, util.ErrAmbiguousID)
	_, err = gw.ResolveID(ctx, "ffff")
	assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
}
