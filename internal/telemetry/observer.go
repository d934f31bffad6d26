package telemetry

import "github.com/psychon7/Triage-AI/internal/pipeline"

// Observer forwards pipeline lifecycle events to a Client.
type Observer struct {
	client Client
}

// NewObserver wraps client. A nil client yields a no-op observer.
func NewObserver(client Client) *Observer {
	if client == nil {
		client = NewNoopClient()
	}
	return &Observer{client: client}
}

// Observe implements pipeline.Observer.
func (o *Observer) Observe(e pipeline.Event) {
	props := make(map[string]any, len(e.Props)+2)
	for k, v := range e.Props {
		props[k] = v
	}
	// Error strings can quote model output.
	delete(props, "error")
	props["task_id"] = e.TaskID
	props["stage"] = e.Stage.String()
	o.client.Track(e.Name, props)
}

var _ pipeline.Observer = (*Observer)(nil)
