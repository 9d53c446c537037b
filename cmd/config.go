/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/josephgoksu/guidedmodules/types"
)

const (
	configName = ".guidedmodules"
	envPrefix  = "GUIDEDMODULES"
	defaultDir = ".guidedmodules"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate is a single instance of Validate, it caches struct info
var validate = validator.New()

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		HandleFatalError("Invalid configuration. Run with --verbose for details.", err)
	}
	GlobalAppConfig = *cfg
}

// setDefaults registers the built-in configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project.rootDir", defaultDir)
	v.SetDefault("project.modulesDir", "modules")
	v.SetDefault("project.policiesDir", "policies")
	v.SetDefault("project.logPath", "logs/guidedmodules.log")

	v.SetDefault("data.driver", "sqlite")
	v.SetDefault("data.path", "guidedmodules.db")
	v.SetDefault("data.dsn", "")

	user := os.Getenv("USER")
	if user == "" {
		user = "local"
	}
	v.SetDefault("actor.userId", user)
	v.SetDefault("actor.organizationId", "default")

	v.SetDefault("render.defaultFormat", "markdown")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.apiKey", "")
	v.SetDefault("telemetry.endpoint", "")
}

// loadConfig layers defaults, the config file, .env and the environment
// into an AppConfig and validates it. Relative project paths are resolved
// against the project root.
func loadConfig(v *viper.Viper) (*types.AppConfig, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v.SetEnvPrefix(envPrefix)                          // e.g., GUIDEDMODULES_DATA_DRIVER
	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace dots with underscores in env var names
	setDefaults(v)

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("project.rootDir"))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file %s: %w", v.ConfigFileUsed(), err)
		}
		if v.GetString("config") != "" {
			return nil, fmt.Errorf("config file not found: %s", v.GetString("config"))
		}
	} else if v.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}

	var cfg types.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Project.LogPath = underRoot(cfg.Project.RootDir, cfg.Project.LogPath)
	cfg.Project.ModulesDir = underRoot(cfg.Project.RootDir, cfg.Project.ModulesDir)
	cfg.Project.PoliciesDir = underRoot(cfg.Project.RootDir, cfg.Project.PoliciesDir)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func underRoot(root, path string) string {
	if path == "" || filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}
