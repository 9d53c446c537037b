package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".guidedmodules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	root := t.TempDir()
	v := viper.New()
	v.Set("config", writeConfig(t, "project:\n  rootDir: "+root+"\n"))

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Project.RootDir)
	assert.Equal(t, filepath.Join(root, "modules"), cfg.Project.ModulesDir)
	assert.Equal(t, filepath.Join(root, "policies"), cfg.Project.PoliciesDir)
	assert.Equal(t, filepath.Join(root, "logs", "guidedmodules.log"), cfg.Project.LogPath)
	assert.Equal(t, "sqlite", cfg.Data.Driver)
	assert.Equal(t, "guidedmodules.db", cfg.Data.Path)
	assert.Equal(t, "default", cfg.Actor.OrganizationID)
	assert.NotEmpty(t, cfg.Actor.UserID)
	assert.Equal(t, "markdown", cfg.Render.DefaultFormat)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadConfigAbsolutePathsKept(t *testing.T) {
	modules := filepath.Join(t.TempDir(), "defs")
	v := viper.New()
	v.Set("config", writeConfig(t, "project:\n  rootDir: /srv/gm\n  modulesDir: "+modules+"\n"))

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, modules, cfg.Project.ModulesDir)
	assert.Equal(t, filepath.Join("/srv/gm", "policies"), cfg.Project.PoliciesDir)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("GUIDEDMODULES_ACTOR_ORGANIZATIONID", "globex")
	t.Setenv("GUIDEDMODULES_RENDER_DEFAULTFORMAT", "html")

	v := viper.New()
	v.Set("config", writeConfig(t, "actor:\n  userId: carol\n"))

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "carol", cfg.Actor.UserID)
	assert.Equal(t, "globex", cfg.Actor.OrganizationID)
	assert.Equal(t, "html", cfg.Render.DefaultFormat)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "data:\n  driver: mysql\n"},
		{name: "postgres without dsn", body: "data:\n  driver: postgres\n"},
		{name: "unknown render format", body: "render:\n  defaultFormat: pdf\n"},
		{name: "telemetry without key", body: "telemetry:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("config", writeConfig(t, tt.body))
			_, err := loadConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := loadConfig(v)
	assert.Error(t, err)
}

func TestUnderRoot(t *testing.T) {
	assert.Equal(t, filepath.Join("r", "x"), underRoot("r", "x"))
	assert.Equal(t, "/abs", underRoot("r", "/abs"))
	assert.Equal(t, "", underRoot("r", ""))
	assert.Equal(t, "x", underRoot("", "x"))
}
