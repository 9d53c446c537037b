/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	Project   ProjectConfig   `mapstructure:"project" validate:"required"`
	Data      DataConfig      `mapstructure:"data" validate:"required"`
	Actor     ActorConfig     `mapstructure:"actor" validate:"required"`
	Render    RenderConfig    `mapstructure:"render"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProjectConfig holds workspace paths. Relative paths resolve against RootDir.
type ProjectConfig struct {
	RootDir     string `mapstructure:"rootDir" validate:"required"`
	ModulesDir  string `mapstructure:"modulesDir" validate:"required"`
	PoliciesDir string `mapstructure:"policiesDir" validate:"required"`
	LogPath     string `mapstructure:"logPath" validate:"required"`
}

// DataConfig selects the persistence adapter.
type DataConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	// Path is the SQLite database file, relative to the project root.
	Path string `mapstructure:"path" validate:"required_if=Driver sqlite"`
	// DSN is the Postgres connection string.
	DSN string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
}

// ActorConfig is the identity the CLI acts as.
type ActorConfig struct {
	UserID         string `mapstructure:"userId" validate:"required,max=128"`
	OrganizationID string `mapstructure:"organizationId" validate:"required,max=128"`
}

// RenderConfig holds document rendering defaults.
type RenderConfig struct {
	DefaultFormat string `mapstructure:"defaultFormat" validate:"omitempty,oneof=markdown html text"`
}

// TelemetryConfig controls instrumentation export to PostHog.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"apiKey" validate:"required_if=Enabled true"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}
