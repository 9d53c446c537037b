package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"

	"github.com/josephgoksu/guidedmodules/models"
)

// Client receives instrumentation events. Implementations must be safe for
// concurrent use and must not block the caller.
type Client interface {
	Track(event string, properties map[string]any)
	Close() error
}

// enqueuer is the part of the PostHog SDK the client drives.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// ClientConfig configures NewPostHogClient.
type ClientConfig struct {
	APIKey   string
	Endpoint string // self-hosted PostHog, optional
	Version  string
	Config   *Config
	Logger   *slog.Logger // receives SDK warnings; nil discards them
}

// PostHogClient batches events to PostHog under the install's anonymous ID.
type PostHogClient struct {
	mu      sync.Mutex
	queue   enqueuer
	state   *Config
	version string
	closed  bool
}

// NewPostHogClient returns a client that sends events when cfg has both an
// API key and install state. Otherwise the client drops everything.
func NewPostHogClient(cfg ClientConfig) (*PostHogClient, error) {
	c := &PostHogClient{state: cfg.Config, version: cfg.Version}
	if cfg.APIKey == "" || cfg.Config == nil {
		return c, nil
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	queue, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint:  cfg.Endpoint,
		BatchSize: 10,
		Interval:  time.Second,
		Logger:    sdkLogger{log.With("component", "posthog")},
	})
	if err != nil {
		return nil, fmt.Errorf("posthog client: %w", err)
	}
	c.queue = queue
	return c, nil
}

// Track enqueues event with the standard install properties added.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue == nil || c.closed || !c.state.IsEnabled() {
		return
	}

	props := posthog.NewProperties().
		Set("os", runtime.GOOS).
		Set("arch", runtime.GOARCH).
		Set("cli_version", c.version).
		Set("$process_person_profile", false)
	for k, v := range properties {
		props.Set(k, v)
	}
	_ = c.queue.Enqueue(posthog.Capture{
		DistinctId: c.state.AnonymousID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes queued events. Later calls to Track are dropped.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue == nil || c.closed {
		return nil
	}
	c.closed = true
	return c.queue.Close()
}

// Mirror forwards a persisted instrumentation event to c.
func Mirror(c Client, e *models.Event) {
	if c == nil || e == nil {
		return
	}
	c.Track(e.Type, Properties(e))
}

// NoopClient drops every event.
type NoopClient struct{}

func (NoopClient) Track(string, map[string]any) {}
func (NoopClient) Close() error                 { return nil }

// sdkLogger routes PostHog SDK output into the log file instead of the
// terminal.
type sdkLogger struct{ log *slog.Logger }

func (l sdkLogger) Debugf(format string, args ...any) { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l sdkLogger) Logf(format string, args ...any)   { l.log.Info(fmt.Sprintf(format, args...)) }
func (l sdkLogger) Warnf(format string, args ...any)  { l.log.Warn(fmt.Sprintf(format, args...)) }
func (l sdkLogger) Errorf(format string, args ...any) { l.log.Error(fmt.Sprintf(format, args...)) }
