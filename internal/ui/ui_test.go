package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestStyles(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI256)
	defer lipgloss.SetColorProfile(termenv.Ascii)

	out := StyleSuccess.Render("Test")
	assert.Contains(t, out, "Test")
	assert.NotEqual(t, "Test", out, "style should add ANSI codes when forced")

	icon, _ := StatusIcon(pipeline.StatusApproved)
	assert.Equal(t, "✓", icon)
	icon, _ = StatusIcon(pipeline.StatusPending)
	assert.Equal(t, "○", icon)
}

func TestSettled(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*pipeline.TaskState)
		want bool
	}{
		{"running", func(st *pipeline.TaskState) { st.RunID = "r1" }, false},
		{"awaiting", func(st *pipeline.TaskState) { st.AwaitingUserApproval = true }, true},
		{"complete", func(st *pipeline.TaskState) { st.Complete = true }, true},
		{"paused idle", func(st *pipeline.TaskState) { st.Paused = true }, true},
		{"paused in flight", func(st *pipeline.TaskState) {
			st.Paused = true
			st.RunID = "r1"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := pipeline.NewTaskState("t", "p", testNow)
			tt.mut(st)
			assert.Equal(t, tt.want, Settled(st))
		})
	}
	assert.False(t, Settled(nil))
}

func TestStageWaitModelQuitsWhenSettled(t *testing.T) {
	st := pipeline.NewTaskState("t", "p", testNow)
	st.RunID = "r1"
	m := NewStageWaitModel(func() (*pipeline.TaskState, error) { return st, nil }, time.Millisecond)

	next, cmd := m.Update(pollMsg{state: st})
	m = next.(StageWaitModel)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Running Project Manager agent")

	settled := st.Clone()
	settled.RunID = ""
	settled.AwaitingUserApproval = true
	next, _ = m.Update(pollMsg{state: settled})
	m = next.(StageWaitModel)
	assert.Empty(t, m.View())
	assert.True(t, m.State().AwaitingUserApproval)
}

func TestStageWaitModelPollError(t *testing.T) {
	m := NewStageWaitModel(nil, 0)
	next, _ := m.Update(pollMsg{err: errors.New("gone")})
	m = next.(StageWaitModel)
	assert.EqualError(t, m.err, "gone")
	assert.True(t, m.done)
}

func TestStageWaitModelQuitKey(t *testing.T) {
	m := NewStageWaitModel(nil, 0)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, next.(StageWaitModel).quitting)
}

func TestWaitSettled(t *testing.T) {
	calls := 0
	poll := func() (*pipeline.TaskState, error) {
		calls++
		st := pipeline.NewTaskState("t", "p", testNow)
		st.AwaitingUserApproval = calls >= 3
		return st, nil
	}
	st, err := WaitSettled(context.Background(), poll, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, st.AwaitingUserApproval)
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WaitSettled(ctx, func() (*pipeline.TaskState, error) {
		return pipeline.NewTaskState("t", "p", testNow), nil
	}, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderTaskStatus(t *testing.T) {
	st := pipeline.NewTaskState("task-1", "Build a todo app", testNow)
	st.AwaitingUserApproval = true
	st.StageStatus[pipeline.StageProjectManager] = pipeline.StatusAwaitingApproval
	st.RevisionCount[pipeline.StageProjectManager] = 2

	out := RenderTaskStatus(st)
	assert.Contains(t, out, "Task task-1")
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "Project Manager")
	assert.Contains(t, out, "awaiting approval")
	assert.Contains(t, out, "(2 revisions)")
	assert.Contains(t, out, "awaiting your decision")
	assert.Equal(t, "", RenderTaskStatus(nil))
}

func TestRenderTaskList(t *testing.T) {
	assert.Contains(t, RenderTaskList(nil), "No tasks yet.")

	st := pipeline.NewTaskState("3f2a9c1e-7b4d-4e8a", "Build\na   todo app", testNow)
	out := RenderTaskList([]pipeline.Summary{st.Summarize()})
	assert.Contains(t, out, "3f2a9c1e ")
	assert.NotContains(t, out, "7b4d")
	assert.Contains(t, out, "Build a todo app")
	assert.Contains(t, out, "running")
}

func TestRenderStages(t *testing.T) {
	out := RenderStages(pipeline.Describe())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[2], "project_manager")
	assert.Contains(t, lines[6], "architect, security")
}

func TestTable(t *testing.T) {
	tbl := &Table{Headers: []string{"A", "B"}, Rows: [][]string{{"long value", "x"}}, MaxWidth: 6}
	assert.Equal(t, []int{6, 1}, tbl.ColumnWidths())
	assert.Contains(t, tbl.Render(), "lon...")
	assert.Equal(t, "", (&Table{}).Render())
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 2, "he"},
		{"héllo wörld", 6, "hél..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
	}
}

func TestValidateText(t *testing.T) {
	assert.Error(t, validateText(true)("  "))
	assert.NoError(t, validateText(true)("ok"))
	assert.NoError(t, validateText(false)(""))
}
