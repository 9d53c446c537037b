package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/guidedmodules/internal/engine"
	"github.com/josephgoksu/guidedmodules/internal/logger"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/policy"
	"github.com/josephgoksu/guidedmodules/internal/storage"
	"github.com/josephgoksu/guidedmodules/internal/telemetry"
	"github.com/josephgoksu/guidedmodules/internal/util"
	"github.com/josephgoksu/guidedmodules/store"
	"github.com/josephgoksu/guidedmodules/types"
)

// app is everything a command needs, opened from the configuration.
type app struct {
	cfg       *types.AppConfig
	logger    *slog.Logger
	source    *store.FileSource
	catalog   *module.Catalog
	policy    *policy.Engine
	store     *storage.SQLStore
	telemetry telemetry.Client
	engine    *engine.Engine

	closers []io.Closer
}

// openApp loads modules and policies, opens storage and builds the engine.
// Close the app when done.
func openApp(ctx context.Context) (*app, error) {
	cfg := GetConfig()
	a := &app{cfg: cfg}
	logger.SetStateDir(cfg.Project.RootDir)

	log, closer, err := logger.New(logger.Options{
		Path:    cfg.Project.LogPath,
		Verbose: cfg.Verbose,
		Console: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	a.logger = log
	a.closers = append(a.closers, closer)

	if err := a.loadCatalog(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.policy, err = policy.NewEngine(ctx, policy.EngineConfig{PoliciesDir: cfg.Project.PoliciesDir})
	if err != nil {
		a.Close()
		return nil, types.WrapConfigurationError(err, "load policies from %s", cfg.Project.PoliciesDir)
	}

	a.store, err = storage.Open(ctx, cfg.Data, cfg.Project.RootDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s storage: %w", cfg.Data.Driver, err)
	}
	a.closers = append(a.closers, a.store)

	a.telemetry, err = openTelemetry(cfg, a.logger)
	if err != nil {
		LogError("telemetry disabled", err)
		a.telemetry = telemetry.NoopClient{}
	}
	a.closers = append(a.closers, a.telemetry)

	a.engine, err = engine.New(engine.Config{
		Catalog:    a.catalog,
		Store:      a.store,
		Authorizer: engine.PolicyAuthorizer(a.policy, log),
		Telemetry:  a.telemetry,
		Functions:  builtinFunctions(),
		Logger:     log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) loadCatalog(ctx context.Context) error {
	a.source = moduleSource()
	catalog, err := loadModules(ctx, a.source)
	if err != nil {
		return err
	}
	a.catalog = catalog
	a.logger.Debug("modules loaded", "dir", a.source.Describe(), "count", len(catalog.Modules()))
	return nil
}

// Close releases everything openApp acquired, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			LogError("close", err)
		}
	}
	a.closers = nil
}

func openTelemetry(cfg *types.AppConfig, log *slog.Logger) (telemetry.Client, error) {
	if !cfg.Telemetry.Enabled {
		return telemetry.NoopClient{}, nil
	}
	tc, err := telemetry.Load(cfg.Project.RootDir, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	if err := tc.Save(cfg.Project.RootDir); err != nil {
		return nil, err
	}
	return telemetry.NewPostHogClient(telemetry.ClientConfig{
		APIKey:   cfg.Telemetry.APIKey,
		Version:  version,
		Config:   tc,
		Endpoint: cfg.Telemetry.Endpoint,
		Logger:   log,
	})
}

// builtinFunctions are the external functions every CLI install provides.
func builtinFunctions() *engine.Functions {
	fns := engine.NewFunctions()
	fns.Register("today", func(ctx context.Context, in engine.FunctionInput) (any, error) {
		return time.Now().UTC().Format(module.DateLayout), nil
	})
	fns.Register("uuid", func(ctx context.Context, in engine.FunctionInput) (any, error) {
		return uuid.NewString(), nil
	})
	fns.Register("task_title", func(ctx context.Context, in engine.FunctionInput) (any, error) {
		if in.Task == nil {
			return nil, errors.New("no task")
		}
		return in.Task.Title, nil
	})
	return fns
}

// withApp opens the app, runs fn and closes it.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// taskID expands a task ID prefix typed by the user.
func (a *app) taskID(ctx context.Context, arg string) (string, error) {
	return util.ResolveTaskID(ctx, a.store, arg)
}

// projectID expands a project ID prefix typed by the user.
func (a *app) projectID(ctx context.Context, arg string) (string, error) {
	return util.ResolveProjectID(ctx, a.store, arg)
}

// taskIDs expands every prefix in args.
func (a *app) taskIDs(ctx context.Context, args []string) ([]string, error) {
	if args == nil {
		return nil, nil
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := a.taskID(ctx, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
