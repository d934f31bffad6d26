package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

// ErrInterrupted is returned when the user quits while a stage is running.
var ErrInterrupted = errors.New("interrupted")

// DefaultPollInterval is how often the stage view re-reads task state.
const DefaultPollInterval = 150 * time.Millisecond

// PollFunc returns the latest task snapshot.
type PollFunc func() (*pipeline.TaskState, error)

// Settled reports whether the task no longer needs waiting on: it awaits a
// decision, has finished, or is paused with nothing running.
func Settled(st *pipeline.TaskState) bool {
	if st == nil {
		return false
	}
	return st.AwaitingUserApproval || st.Complete || (st.Paused && !st.InFlight())
}

type pollMsg struct {
	state *pipeline.TaskState
	err   error
}

// StageWaitModel shows a spinner and progress bar until the task settles.
type StageWaitModel struct {
	poll     PollFunc
	interval time.Duration
	spinner  spinner.Model
	progress progress.Model
	state    *pipeline.TaskState
	err      error
	done     bool
	quitting bool
}

// NewStageWaitModel creates a wait model polling with poll.
func NewStageWaitModel(poll PollFunc, interval time.Duration) StageWaitModel {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	return StageWaitModel{
		poll:     poll,
		interval: interval,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m StageWaitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.pollAfter(0))
}

func (m StageWaitModel) pollAfter(d time.Duration) tea.Cmd {
	poll := m.poll
	if d <= 0 {
		return func() tea.Msg {
			st, err := poll()
			return pollMsg{state: st, err: err}
		}
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		st, err := poll()
		return pollMsg{state: st, err: err}
	})
}

func (m StageWaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case pollMsg:
		if msg.err != nil {
			m.err = msg.err
			m.done = true
			return m, tea.Quit
		}
		m.state = msg.state
		if Settled(m.state) {
			m.done = true
			return m, tea.Quit
		}
		var pct float64
		if m.state != nil {
			pct = float64(m.state.Progress) / float64(pipeline.ProgressMax)
		}
		return m, tea.Batch(m.progress.SetPercent(pct), m.pollAfter(m.interval))
	}
	return m, nil
}

func (m StageWaitModel) View() string {
	if m.done || m.quitting {
		return ""
	}
	label := "Starting..."
	if m.state != nil {
		label = fmt.Sprintf("Running %s agent", m.state.CurrentStage.Title())
		if last := m.state.LastLog(); last != "" {
			label += StyleSubtle.Render("  " + Truncate(last, 60))
		}
	}
	return fmt.Sprintf("%s %s\n  %s\n", m.spinner.View(), label, m.progress.View())
}

// State returns the last snapshot seen.
func (m StageWaitModel) State() *pipeline.TaskState { return m.state }

// RunStageWait runs the wait view on out until the task settles.
func RunStageWait(ctx context.Context, poll PollFunc, out io.Writer) (*pipeline.TaskState, error) {
	p := tea.NewProgram(NewStageWaitModel(poll, DefaultPollInterval), tea.WithContext(ctx), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(StageWaitModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", final)
	}
	if m.quitting {
		return m.state, ErrInterrupted
	}
	return m.state, m.err
}

// WaitSettled polls without a TUI, for non-interactive runs.
func WaitSettled(ctx context.Context, poll PollFunc, interval time.Duration) (*pipeline.TaskState, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := poll()
		if err != nil {
			return nil, err
		}
		if Settled(st) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}
