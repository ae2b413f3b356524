// Package telemetry sends opt-in, anonymous product events to PostHog.
//
// Events describe what happened (a session finished, gaps were found),
// never the user's content: task text, goals and reflections stay local.
package telemetry

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

// Client records product events.
type Client interface {
	// Track enqueues an event and returns immediately.
	Track(event string, properties Properties)
	// Close flushes pending events.
	Close() error
}

// Properties are event attributes.
type Properties = map[string]any

// maxStringProp bounds string property values so free text never leaves
// the machine.
const maxStringProp = 32

// enqueuer is the subset of the PostHog client we use.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// Options configures New.
type Options struct {
	Enabled  bool
	APIKey   string
	Endpoint string // optional, for self-hosted PostHog
	Version  string
	DataDir  string // where the anonymous id is kept
}

// New returns a PostHog client when telemetry is enabled and keyed, and a
// NoopClient otherwise.
func New(opts Options) (Client, error) {
	if !opts.Enabled || opts.APIKey == "" {
		return NoopClient{}, nil
	}
	id, err := AnonymousID(opts.DataDir)
	if err != nil {
		return nil, err
	}

	cfg := posthog.Config{
		BatchSize: 10,
		Interval:  time.Second,
		Logger:    quietLogger{},
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	ph, err := posthog.NewWithConfig(opts.APIKey, cfg)
	if err != nil {
		return nil, err
	}
	return newPostHogClient(ph, id, opts.Version), nil
}

// PostHogClient sends events through the PostHog SDK.
type PostHogClient struct {
	mu         sync.RWMutex
	client     enqueuer
	distinctID string
	version    string
	closed     bool
}

func newPostHogClient(enq enqueuer, distinctID, version string) *PostHogClient {
	return &PostHogClient{client: enq, distinctID: distinctID, version: version}
}

// Track enqueues event with sanitized properties.
func (c *PostHogClient) Track(event string, properties Properties) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		if allowed(v) {
			props.Set(k, v)
		}
	}
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("version", c.version)
	// Anonymous events only; no person profiles.
	props.Set("$process_person_profile", false)

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes the queue. Later Track calls are dropped.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// allowed keeps numbers, booleans and short strings.
func allowed(v any) bool {
	switch x := v.(type) {
	case bool, int, int64, float64:
		return true
	case string:
		return len(x) <= maxStringProp
	default:
		return false
	}
}

// NoopClient drops every event.
type NoopClient struct{}

func (NoopClient) Track(string, Properties) {}
func (NoopClient) Close() error             { return nil }

type quietLogger struct{}

func (quietLogger) Debugf(string, ...interface{}) {}
func (quietLogger) Logf(string, ...interface{})   {}
func (quietLogger) Warnf(string, ...interface{})  {}
func (quietLogger) Errorf(string, ...interface{}) {}
