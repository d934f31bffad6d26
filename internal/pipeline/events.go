package pipeline

// Lifecycle event names reported to an Observer.
const (
	EventTaskStarted    = "task_started"
	EventStageCompleted = "stage_completed"
	EventStageApproved  = "stage_approved"
	EventStageRejected  = "stage_rejected"
	EventTaskPaused     = "task_paused"
	EventTaskResumed    = "task_resumed"
	EventTaskCompleted  = "task_completed"
	EventTaskFailed     = "task_failed"
)

// Event is a task lifecycle notification. Props never carries stage output
// or the problem text.
type Event struct {
	Name   string
	TaskID string
	Stage  Stage
	Props  map[string]any
}

// Observer receives lifecycle events after the state change is committed.
// Observe must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) { f(e) }

type noopObserver struct{}

func (noopObserver) Observe(Event) {}
