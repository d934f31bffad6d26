package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPauseReason is recorded when a pause request carries no reason.
const DefaultPauseReason = "User requested pause"

// errStaleRun marks a completion whose run was superseded. Never surfaced.
var errStaleRun = errors.New("stale stage run")

// StageRunner executes one stage. *Executor implements it.
type StageRunner interface {
	Execute(ctx context.Context, stage Stage, in Inputs) (string, error)
}

// ArtifactSink persists approved outputs and the consolidated plan.
type ArtifactSink interface {
	WriteStageOutput(taskID string, stage Stage, output string, at time.Time) error
	WriteFinalDocument(taskID, document string) error
}

// Controller drives tasks through the stage sequence. Every state change goes
// through Registry.Mutate; stage executions run on the dispatcher.
type Controller struct {
	registry   *Registry
	runner     StageRunner
	dispatcher *Dispatcher
	sink       ArtifactSink
	observer   Observer
	clock      func() time.Time
	newRunID   func() string
	logger     *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithArtifactSink sets where approved outputs are written.
func WithArtifactSink(s ArtifactSink) ControllerOption {
	return func(c *Controller) { c.sink = s }
}

// WithObserver sets the lifecycle event observer.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController wires a controller. Registry, runner and dispatcher are required.
func NewController(reg *Registry, runner StageRunner, d *Dispatcher, opts ...ControllerOption) (*Controller, error) {
	if reg == nil {
		return nil, errors.New("controller: registry is required")
	}
	if runner == nil {
		return nil, errors.New("controller: stage runner is required")
	}
	if d == nil {
		return nil, errors.New("controller: dispatcher is required")
	}
	c := &Controller{
		registry:   reg,
		runner:     runner,
		dispatcher: d,
		observer:   noopObserver{},
		clock:      time.Now,
		newRunID:   uuid.NewString,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Registry returns the registry the controller mutates.
func (c *Controller) Registry() *Registry { return c.registry }

// stageRun is one scheduled execution of a stage.
type stageRun struct {
	taskID   string
	stage    Stage
	runID    string
	revision bool
}

// beginRun claims the run slot for stage. Fresh runs move the stage to
// in_progress here; revisions stay needs_revision until the job starts.
func (c *Controller) beginRun(t *TaskState, stage Stage, revision bool) (*stageRun, error) {
	if !revision {
		if err := t.transition(stage, StatusInProgress); err != nil {
			return nil, err
		}
	}
	t.RunID = c.newRunID()
	return &stageRun{taskID: t.ID, stage: stage, runID: t.RunID, revision: revision}, nil
}

// StartFirstStage moves a new task onto its first stage and schedules it.
func (c *Controller) StartFirstStage(id string) error {
	var run *stageRun
	now := c.clock()

	_, err := c.registry.Mutate(id, func(t *TaskState) error {
		if t.Complete {
			return fmt.Errorf("%w: %s", ErrAlreadyComplete, id)
		}
		first := t.StageSequence[0]
		if len(t.CompletedStages) > 0 || t.Status(first) != StatusPending {
			return fmt.Errorf("%w: task %s already started", ErrInvalidTransition, id)
		}
		t.CurrentStage = first
		t.record("Starting task execution...", ProgressStep, now)
		if t.Paused {
			return nil
		}

		var err error
		if run, err = c.beginRun(t, first, false); err != nil {
			return err
		}
		t.record(fmt.Sprintf("Starting %s agent...", first), ProgressStep, now)
		return nil
	})
	if err != nil {
		return err
	}

	c.observe(EventTaskStarted, id, First(), nil)
	c.launch(run)
	return nil
}

// AdvanceOnApproval accepts the current stage's output and moves on. A
// non-empty note is kept as the stage's feedback. Approving a stage that is
// not awaiting approval is allowed as an operator override and only logged.
func (c *Controller) AdvanceOnApproval(id string, stage Stage, note string) error {
	var (
		run      *stageRun
		approved string
		document string
		finished bool
	)
	now := c.clock()
	log := c.logger.With("task_id", id, "stage", stage.String())

	_, err := c.registry.Mutate(id, func(t *TaskState) error {
		if t.Complete {
			return fmt.Errorf("%w: %s", ErrAlreadyComplete, id)
		}
		if t.CurrentStage != stage {
			return fmt.Errorf("%w: decision for %s but current stage is %s", ErrStageMismatch, stage, t.CurrentStage)
		}

		if st := t.Status(stage); st == StatusAwaitingApproval && t.AwaitingUserApproval {
			if err := t.transition(stage, StatusApproved); err != nil {
				return err
			}
		} else {
			// operator override
			log.Warn("approving stage that is not awaiting approval", "status", string(st))
			t.StageStatus[stage] = StatusApproved
		}

		t.RunID = ""
		t.AwaitingUserApproval = false
		t.CompletedStages = append(t.CompletedStages, stage)
		approved = t.Outputs[stage]
		if note = strings.TrimSpace(note); note != "" {
			t.Feedback[stage] = note
		}
		t.record(fmt.Sprintf("%s output approved by user", stage.Title()), ProgressStep, now)

		next, ok := stage.Next()
		if !ok {
			t.Complete = true
			t.CurrentStage = StageComplete
			t.Paused = false
			t.PauseReason = ""
			t.PauseTimestamp = nil
			t.FinalResult = BuildDocument(t, now)
			t.Progress = ProgressMax
			t.record("All agents have completed their work. Full plan generated.", 0, now)
			document = t.FinalResult
			finished = true
			return nil
		}

		t.CurrentStage = next
		if t.Paused {
			t.record(fmt.Sprintf("%s agent will start when the task is resumed", next.Title()), 0, now)
			return nil
		}

		var err error
		if run, err = c.beginRun(t, next, false); err != nil {
			return err
		}
		t.record(fmt.Sprintf("Starting %s agent...", next), ProgressStep, now)
		return nil
	})
	if err != nil {
		return err
	}

	c.writeStageOutput(id, stage, approved, now)
	c.observe(EventStageApproved, id, stage, nil)
	if finished {
		c.writeFinalDocument(id, document)
		c.observe(EventTaskCompleted, id, stage, nil)
		log.Info("task complete")
	}
	c.launch(run)
	return nil
}

// RestartWithFeedback rejects the current stage's output and re-runs the
// stage with the feedback appended to its prompt.
func (c *Controller) RestartWithFeedback(id string, stage Stage, feedback string) error {
	var run *stageRun
	now := c.clock()
	log := c.logger.With("task_id", id, "stage", stage.String())

	var revision int
	_, err := c.registry.Mutate(id, func(t *TaskState) error {
		if t.Complete {
			return fmt.Errorf("%w: %s", ErrAlreadyComplete, id)
		}
		if t.CurrentStage != stage {
			return fmt.Errorf("%w: decision for %s but current stage is %s", ErrStageMismatch, stage, t.CurrentStage)
		}
		if strings.TrimSpace(feedback) == "" {
			return fmt.Errorf("%w: stage %s", ErrMissingFeedback, stage)
		}

		if st := t.Status(stage); st == StatusAwaitingApproval {
			if err := t.transition(stage, StatusNeedsRevision); err != nil {
				return err
			}
		} else {
			// operator override: restart whatever is running with the new feedback
			log.Warn("rejecting stage that is not awaiting approval", "status", string(st))
			t.StageStatus[stage] = StatusNeedsRevision
		}

		t.RevisionCount[stage]++
		revision = t.RevisionCount[stage]
		t.Feedback[stage] = feedback
		t.AwaitingUserApproval = false
		t.RunID = ""
		t.record(fmt.Sprintf("%s output rejected. Restarting with feedback: %s", stage.Title(), feedback), ProgressStep, now)

		if t.Paused {
			return nil
		}
		var err error
		run, err = c.beginRun(t, stage, true)
		return err
	})
	if err != nil {
		return err
	}

	c.observe(EventStageRejected, id, stage, map[string]any{"revision": revision})
	c.launch(run)
	return nil
}

// Pause stops further scheduling for a task. An execution already running
// is not interrupted; its result is still recorded.
func (c *Controller) Pause(id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultPauseReason
	}
	now := c.clock()

	snap, err := c.registry.Mutate(id, func(t *TaskState) error {
		if t.Complete {
			return fmt.Errorf("%w: %s", ErrAlreadyComplete, id)
		}
		if t.Paused {
			return fmt.Errorf("%w: %s", ErrAlreadyPaused, id)
		}
		t.Paused = true
		t.PauseReason = reason
		ts := now
		t.PauseTimestamp = &ts
		t.record("Task paused by user: "+reason, 0, now)
		return nil
	})
	if err != nil {
		return err
	}

	c.observe(EventTaskPaused, id, snap.CurrentStage, nil)
	return nil
}

// Resume clears the pause. If no decision is pending and nothing is running,
// the current stage is executed again from scratch.
func (c *Controller) Resume(id string) error {
	var run *stageRun
	now := c.clock()

	snap, err := c.registry.Mutate(id, func(t *TaskState) error {
		if !t.Paused {
			return fmt.Errorf("%w: %s", ErrNotPaused, id)
		}

		var paused time.Duration
		if t.PauseTimestamp != nil {
			paused = now.Sub(*t.PauseTimestamp)
		}
		t.Paused = false
		t.PauseReason = ""
		t.PauseTimestamp = nil
		t.record(fmt.Sprintf("Task resumed after being paused for %d seconds", int(paused.Seconds())), 0, now)

		stage := t.CurrentStage
		if t.Complete || t.AwaitingUserApproval || t.InFlight() || !stage.Valid() {
			return nil
		}

		t.record(fmt.Sprintf("Resuming execution from agent: %s", stage), 0, now)
		var err error
		run, err = c.beginRun(t, stage, t.Status(stage) == StatusNeedsRevision)
		return err
	})
	if err != nil {
		return err
	}

	c.observe(EventTaskResumed, id, snap.CurrentStage, nil)
	c.launch(run)
	return nil
}

// launch hands a claimed run to the dispatcher.
func (c *Controller) launch(run *stageRun) {
	if run == nil {
		return
	}
	name := fmt.Sprintf("stage %s/%s", run.taskID, run.stage)
	if err := c.dispatcher.Go(name, func(ctx context.Context) { c.execute(ctx, run) }); err != nil {
		c.logger.Warn("stage not scheduled", "task_id", run.taskID, "stage", run.stage.String(), "error", err)
	}
}

// execute runs one stage and commits its result. It never returns an error:
// failures and panics are recorded into the task.
func (c *Controller) execute(ctx context.Context, run *stageRun) {
	log := c.logger.With("task_id", run.taskID, "stage", run.stage.String(), "run_id", run.runID)

	defer func() {
		if r := recover(); r != nil {
			c.fail(run, fmt.Errorf("panic during %s: %v", run.stage, r))
			panic(r)
		}
	}()

	snap, err := c.registry.Get(run.taskID)
	if err != nil {
		log.Warn("task vanished before execution", "error", err)
		return
	}
	if snap.RunID != run.runID || snap.Complete {
		log.Debug("run superseded before start")
		return
	}

	if run.revision {
		_, err := c.registry.Mutate(run.taskID, func(t *TaskState) error {
			if t.RunID != run.runID || t.Complete {
				return errStaleRun
			}
			return t.transition(run.stage, StatusInProgress)
		})
		if errors.Is(err, errStaleRun) {
			log.Debug("run superseded before start")
			return
		}
		if err != nil {
			c.fail(run, err)
			return
		}
	}

	in := Inputs{Problem: snap.Problem, Upstream: snap.Upstream(run.stage)}
	if run.revision {
		in.Feedback = snap.Feedback[run.stage]
	}

	output, genErr := c.runner.Execute(ctx, run.stage, in)
	now := c.clock()

	_, err = c.registry.Mutate(run.taskID, func(t *TaskState) error {
		if t.RunID != run.runID || t.Complete {
			return errStaleRun
		}
		t.RunID = ""
		if genErr != nil {
			t.fail(run.stage, genErr, now)
			return nil
		}
		if err := t.transition(run.stage, StatusAwaitingApproval); err != nil {
			return err
		}
		t.Outputs[run.stage] = output
		t.AwaitingUserApproval = true
		if run.revision {
			t.record(fmt.Sprintf("%s revision completed. Awaiting user approval.", run.stage.Title()), ProgressStep, now)
		} else {
			t.record(fmt.Sprintf("%s has completed work. Awaiting user approval.", run.stage.Title()), ProgressStageComplete, now)
		}
		return nil
	})

	switch {
	case errors.Is(err, errStaleRun):
		log.Info("discarding result of superseded run")
	case err != nil:
		c.fail(run, err)
	case genErr != nil:
		log.Error("stage failed", "error", genErr)
		c.observe(EventTaskFailed, run.taskID, run.stage, map[string]any{"error": genErr.Error()})
	default:
		log.Info("stage awaiting approval", "revision", run.revision)
		c.observe(EventStageCompleted, run.taskID, run.stage, map[string]any{"revision": run.revision})
	}
}

// fail records an unexpected error against the run's task.
func (c *Controller) fail(run *stageRun, cause error) {
	now := c.clock()
	_, err := c.registry.Mutate(run.taskID, func(t *TaskState) error {
		if t.Complete {
			return errStaleRun
		}
		t.fail(run.stage, cause, now)
		return nil
	})
	if err != nil && !errors.Is(err, errStaleRun) {
		c.logger.Error("could not record stage failure", "task_id", run.taskID, "error", err)
		return
	}
	c.observe(EventTaskFailed, run.taskID, run.stage, map[string]any{"error": cause.Error()})
}

func (c *Controller) writeStageOutput(id string, stage Stage, output string, at time.Time) {
	if c.sink == nil {
		return
	}
	name := fmt.Sprintf("artifact %s/%s", id, stage)
	err := c.dispatcher.Go(name, func(context.Context) {
		if err := c.sink.WriteStageOutput(id, stage, output, at); err != nil {
			c.logger.Error("write stage output", "task_id", id, "stage", stage.String(), "error", err)
		}
	})
	if err != nil {
		c.logger.Warn("stage output not written", "task_id", id, "error", err)
	}
}

func (c *Controller) writeFinalDocument(id, document string) {
	if c.sink == nil {
		return
	}
	err := c.dispatcher.Go("artifact "+id+"/full_plan", func(context.Context) {
		if err := c.sink.WriteFinalDocument(id, document); err != nil {
			c.logger.Error("write final document", "task_id", id, "error", err)
		}
	})
	if err != nil {
		c.logger.Warn("final document not written", "task_id", id, "error", err)
	}
}

func (c *Controller) observe(name, id string, stage Stage, props map[string]any) {
	c.observer.Observe(Event{Name: name, TaskID: id, Stage: stage, Props: props})
}
