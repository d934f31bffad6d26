// Package telemetry sends anonymous pipeline lifecycle events to PostHog.
// Events carry task IDs, stage names and counters only; problem text and
// stage output never leave the process.
package telemetry

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

// Client is the interface for telemetry clients.
type Client interface {
	// Track sends an event asynchronously. It never blocks.
	Track(event string, properties map[string]any)

	// Close flushes pending events.
	Close() error
}

type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogClient wraps the PostHog SDK.
type PostHogClient struct {
	client     enqueuer
	distinctID string
	version    string
	mu         sync.RWMutex
	closed     bool
}

// ClientConfig holds what is needed to build a PostHogClient.
type ClientConfig struct {
	APIKey     string
	Endpoint   string
	Version    string
	DistinctID string
}

// New returns a PostHog client, or a NoopClient when enabled is false or no
// API key is configured.
func New(enabled bool, cfg ClientConfig) (Client, error) {
	if !enabled || cfg.APIKey == "" {
		return NewNoopClient(), nil
	}

	phConfig := posthog.Config{
		BatchSize: 20,
		Interval:  5 * time.Second,
		// Transport warnings must not reach the server log.
		Logger: quietPostHogLogger{},
	}
	if cfg.Endpoint != "" {
		phConfig.Endpoint = cfg.Endpoint
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, phConfig)
	if err != nil {
		return nil, err
	}
	return newPostHogClientWithEnqueuer(client, cfg.DistinctID, cfg.Version), nil
}

func newPostHogClientWithEnqueuer(enq enqueuer, distinctID, version string) *PostHogClient {
	return &PostHogClient{client: enq, distinctID: distinctID, version: version}
}

// Track enqueues an event. No-op after Close.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("app_version", c.version)
	props.Set("$process_person_profile", false)

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes the queue. Safe to call twice.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// NoopClient does nothing.
type NoopClient struct{}

// Track is a no-op.
func (c *NoopClient) Track(event string, properties map[string]any) {}

// Close is a no-op.
func (c *NoopClient) Close() error { return nil }

// NewNoopClient returns a client that does nothing.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
