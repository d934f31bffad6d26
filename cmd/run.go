/*
Copyright © 2025 The Triage Authors
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/pipeline"
	"github.com/psychon7/Triage-AI/internal/ui"
)

var (
	runAutoApprove bool
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run [problem]",
	Short: "Run the planning pipeline interactively in the terminal",
	Long: `Submit a problem and walk it through every stage in this terminal.
After each stage you can approve it, reject it with feedback, or pause.

Without a terminal (piped input, CI) pass --yes to approve every stage.

Examples:
  triage run "Build a multi-tenant invoicing API"
  triage run --yes "Design a rate limiter" > plan.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&runAutoApprove, "yes", "y", false, "approve every stage without prompting")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "print only the final plan")
}

func runRun(cmd *cobra.Command, args []string) error {
	interactive := ui.IsInteractive()
	if !interactive && !runAutoApprove {
		return errors.New("stdin is not a terminal; pass --yes to approve every stage")
	}

	problem := ""
	if len(args) == 1 {
		problem = args[0]
	}
	if strings.TrimSpace(problem) == "" {
		if !interactive {
			return errors.New("a problem statement argument is required")
		}
		var err error
		if problem, err = ui.PromptText("Problem statement", true); err != nil {
			return err
		}
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, appConfig, log, runtimeOptions{})
	if err != nil {
		return err
	}

	sess := &runSession{
		gw:          rt.gateway,
		out:         cmd.OutOrStdout(),
		status:      cmd.ErrOrStderr(),
		interactive: interactive,
		autoApprove: runAutoApprove,
		quiet:       runQuiet,
	}
	id, runErr := sess.run(ctx, problem)
	if err := finishRun(rt, id, sess.status); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// finishRun drains the runtime so pending artifact writes land, then reports
// where the plan was written. Nothing is reported for unfinished tasks.
func finishRun(rt *pipelineRuntime, id string, w io.Writer) error {
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil {
		return err
	}
	if id != "" && rt.sink != nil && rt.sink.HasFinalPlan(id) {
		fmt.Fprintf(w, "Plan written to %s\n", rt.sink.FinalPlanPath(id))
	}
	return nil
}

// runSession drives one task to completion from the terminal.
type runSession struct {
	gw          *approval.Gateway
	out         io.Writer // final plan
	status      io.Writer // progress and stage outputs
	interactive bool
	autoApprove bool
	quiet       bool
}

func (s *runSession) run(ctx context.Context, problem string) (string, error) {
	sub, err := s.gw.Submit(ctx, problem)
	if err != nil {
		return "", err
	}
	id := sub.TaskID
	s.printf("%s %s\n", ui.StyleHeader.Render("Task "+id), ui.StyleSubtle.Render(sub.Message))

	poll := func() (*pipeline.TaskState, error) { return s.gw.GetStatus(id) }
	for {
		st, err := s.wait(ctx, poll)
		if err != nil {
			if errors.Is(err, ui.ErrInterrupted) || errors.Is(err, context.Canceled) {
				s.printf("Stopped. Task %s was not finished.\n", id)
				return id, nil
			}
			return id, err
		}

		if st.Complete {
			if st.Error != "" {
				s.printf("%s\n", ui.RenderErrorPanel("Task failed", st.Error))
				return id, fmt.Errorf("task %s failed: %s", id, st.Error)
			}
			res, err := s.gw.GetFinalResult(id)
			if err != nil {
				return id, err
			}
			fmt.Fprintln(s.out, res.Result)
			return id, nil
		}

		stage := st.CurrentStage
		if st.Paused {
			if err := s.handlePaused(ctx, id); err != nil {
				return id, err
			}
			continue
		}

		if out, ok := st.Output(stage); ok && !s.quiet {
			s.printf("\n%s\n", ui.RenderPanel(stage.Title()+" Output", strings.TrimSpace(out)))
		}

		if err := s.decide(ctx, id, stage); err != nil {
			if errors.Is(err, errQuit) {
				s.printf("Task %s left at %s.\n", id, stage.Title())
				return id, nil
			}
			return id, err
		}
	}
}

var errQuit = errors.New("quit")

func (s *runSession) wait(ctx context.Context, poll ui.PollFunc) (*pipeline.TaskState, error) {
	if s.interactive && !s.quiet {
		return ui.RunStageWait(ctx, poll, s.status)
	}
	return ui.WaitSettled(ctx, poll, 0)
}

func (s *runSession) decide(ctx context.Context, id string, stage pipeline.Stage) error {
	if s.autoApprove {
		res, err := s.gw.Decide(ctx, id, stage.String(), true, "")
		if err != nil {
			return err
		}
		s.printf("%s %s\n", ui.Icon("✓", ui.StyleSuccess), res.Message)
		return nil
	}

	for {
		d, feedback, err := ui.PromptDecision(stage)
		if err != nil {
			return err
		}

		var res approval.DecisionResult
		switch d {
		case ui.DecisionApprove:
			res, err = s.gw.Decide(ctx, id, stage.String(), true, "")
		case ui.DecisionReject:
			res, err = s.gw.Decide(ctx, id, stage.String(), false, feedback)
		case ui.DecisionPause:
			_, err = s.gw.Pause(ctx, id, "")
			return err
		default:
			return errQuit
		}
		if errors.Is(err, approval.ErrPolicyDenied) {
			s.printf("%s\n", ui.RenderErrorPanel("Approval blocked", err.Error()))
			continue
		}
		if err != nil {
			return err
		}
		s.printf("%s %s\n", ui.Icon("✓", ui.StyleSuccess), res.Message)
		return nil
	}
}

func (s *runSession) handlePaused(ctx context.Context, id string) error {
	if !s.interactive {
		_, err := s.gw.Resume(ctx, id, "")
		return err
	}
	s.printf("%s\n", ui.StyleWarning.Render("Task paused."))
	if _, err := ui.PromptText("Press Enter to resume", false); err != nil {
		return errQuit
	}
	res, err := s.gw.Resume(ctx, id, "")
	if err != nil {
		return err
	}
	s.printf("%s\n", res.Message)
	return nil
}

func (s *runSession) printf(format string, a ...any) {
	if s.quiet {
		return
	}
	fmt.Fprintf(s.status, format, a...)
}
