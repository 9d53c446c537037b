// Package telemetry mirrors instrumentation events to PostHog. Only event
// names, module and question keys are sent, under a random install ID; no
// answer values or user identities leave the machine.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/josephgoksu/guidedmodules/types"
)

// StateFileName holds the install ID inside the project root.
const StateFileName = "telemetry.json"

// Config holds the effective telemetry settings.
type Config struct {
	// Enabled mirrors types.TelemetryConfig.Enabled.
	Enabled bool `json:"enabled"`

	// AnonymousID is a random UUID generated once per install.
	AnonymousID string `json:"anonymous_id"`
}

// IsEnabled returns true if events should be sent.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// Load reads the install state from dir and applies the application
// settings. A missing state file yields a fresh anonymous ID.
func Load(dir string, app types.TelemetryConfig) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse telemetry state: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read telemetry state: %w", err)
	}

	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
	}
	cfg.Enabled = app.Enabled
	return cfg, nil
}

// Save writes the install state to dir with owner-only permissions.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, StateFileName), data, 0o600); err != nil {
		return fmt.Errorf("write telemetry state: %w", err)
	}
	return nil
}
