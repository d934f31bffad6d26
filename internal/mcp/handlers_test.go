package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/pipeline"
)

func newTestHandlers(t *testing.T) (*Handlers, *approval.Gateway) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := pipeline.GeneratorFunc(func(context.Context, string) (string, error) {
		return "stage output", nil
	})
	exec, err := pipeline.NewExecutor(gen, nil, logger)
	require.NoError(t, err)

	n := 0
	reg := pipeline.NewRegistry(pipeline.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("5f0c1e2a-%04d", n)
	}))
	disp := pipeline.NewDispatcher(2)
	t.Cleanup(func() { _ = disp.Close(context.Background()) })

	ctrl, err := pipeline.NewController(reg, exec, disp, pipeline.WithLogger(logger))
	require.NoError(t, err)
	gw := approval.NewGateway(ctrl, approval.WithLogger(logger))
	return NewHandlers(gw), gw
}

func submitTask(t *testing.T, h *Handlers, gw *approval.Gateway) string {
	t.Helper()
	res := h.Submit(context.Background(), SubmitParams{Problem: "Build a URL shortener"})
	require.Empty(t, res.Error)
	tasks := gw.ListTasks()
	require.NotEmpty(t, tasks)
	id := tasks[len(tasks)-1].ID
	assert.Contains(t, res.Content, id)

	require.Eventually(t, func() bool {
		st, err := gw.GetStatus(id)
		return err == nil && st.AwaitingUserApproval
	}, 2*time.Second, 5*time.Millisecond)
	return id
}

func boolPtr(b bool) *bool { return &b }

func TestHandlersValidation(t *testing.T) {
	h, _ := newTestHandlers(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		res   *ToolResult
		field string
	}{
		{"submit problem", h.Submit(ctx, SubmitParams{}), "problem"},
		{"status task id", h.Status(ctx, TaskParams{}), "task_id"},
		{"stage output stage", h.StageOutput(ctx, StageOutputParams{TaskID: "x"}), "stage"},
		{"decide approved", h.Decide(ctx, DecideParams{TaskID: "x", Stage: "architect"}), "approved"},
		{"decide feedback", h.Decide(ctx, DecideParams{TaskID: "x", Stage: "architect", Approved: boolPtr(false)}), "feedback"},
		{"pause task id", h.Pause(ctx, PauseParams{}), "task_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, tt.res.Content)
			assert.Contains(t, tt.res.Error, "Validation Error")
			assert.Contains(t, tt.res.Error, "`"+tt.field+"`")
		})
	}
}

func TestHandlersUnknownTask(t *testing.T) {
	h, _ := newTestHandlers(t)

	res := h.Status(context.Background(), TaskParams{TaskID: "deadbeef"})
	assert.Contains(t, res.Error, "task not found")
}

func TestHandlersPrefixAndStatus(t *testing.T) {
	h, gw := newTestHandlers(t)
	id := submitTask(t, h, gw)

	res := h.Status(context.Background(), TaskParams{TaskID: id[:12]})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "## Task `"+id+"`: Running")
	assert.Contains(t, res.Content, "| Project Manager | awaiting approval | 0 |")
	assert.Contains(t, res.Content, "call `triage_decide`")

	out := h.StageOutput(context.Background(), StageOutputParams{TaskID: id, Stage: "project_manager"})
	require.Empty(t, out.Error)
	assert.Contains(t, out.Content, "## Project Manager Output")

	out = h.StageOutput(context.Background(), StageOutputParams{TaskID: id, Stage: "tester"})
	assert.Contains(t, out.Content, "No output yet")
}

func TestHandlersDecideFlow(t *testing.T) {
	h, gw := newTestHandlers(t)
	id := submitTask(t, h, gw)
	ctx := context.Background()

	res := h.Decide(ctx, DecideParams{TaskID: id, Stage: "architect", Approved: boolPtr(true)})
	assert.Contains(t, res.Error, "stage mismatch")
	assert.Contains(t, res.Error, "triage_status")

	res = h.Decide(ctx, DecideParams{TaskID: id, Stage: "project_manager", Approved: boolPtr(false), Feedback: "more detail"})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "requires revision")

	require.Eventually(t, func() bool {
		st, err := gw.GetStatus(id)
		return err == nil && st.AwaitingUserApproval
	}, 2*time.Second, 5*time.Millisecond)

	res = h.Decide(ctx, DecideParams{TaskID: id, Stage: "project_manager", Approved: boolPtr(true)})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "Project Manager work approved, proceeding to architect")
}

func TestHandlersPauseResume(t *testing.T) {
	h, gw := newTestHandlers(t)
	id := submitTask(t, h, gw)
	ctx := context.Background()

	res := h.Resume(ctx, ResumeParams{TaskID: id})
	assert.Contains(t, res.Error, "Only paused tasks")

	res = h.Pause(ctx, PauseParams{TaskID: id, Reason: "review later"})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "Task paused successfully")

	res = h.Status(ctx, TaskParams{TaskID: id})
	assert.Contains(t, res.Content, "**Paused**: review later")

	res = h.Resume(ctx, ResumeParams{TaskID: id, ContinueFrom: "project_manager"})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "awaiting user approval")
}

func TestHandlersResultIsPartialBeforeCompletion(t *testing.T) {
	h, gw := newTestHandlers(t)
	id := submitTask(t, h, gw)

	res := h.Result(context.Background(), TaskParams{TaskID: id})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "this plan is partial")
	assert.Contains(t, res.Content, "# Complete Project Plan")
}

func TestToCallResult(t *testing.T) {
	ok, err := toCallResult(&ToolResult{Tool: ToolStatus, Content: "fine"})
	require.NoError(t, err)
	assert.False(t, ok.IsError)
	require.Len(t, ok.Content, 1)

	bad, err := toCallResult(&ToolResult{Tool: ToolStatus, Error: FormatError("boom")})
	require.NoError(t, err)
	assert.True(t, bad.IsError)
}
