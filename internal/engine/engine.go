// Package engine is the entry point for hosts: it resolves task answers,
// applies answer mutations, manages the task graph and renders documents.
// Every call takes an explicit Actor and runs in one storage transaction.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/policy"
	"github.com/josephgoksu/guidedmodules/internal/taskgraph"
	"github.com/josephgoksu/guidedmodules/internal/telemetry"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/store"
)

// Actor is the user on whose behalf an engine call runs.
type Actor = models.Actor

// AuthorizerFactory binds permission predicates to a repository, so that
// membership lookups and decision records join the caller's transaction.
type AuthorizerFactory func(repo store.Repository) taskgraph.Authorizer

// PolicyAuthorizer evaluates pe with memberships and the audit log read
// from the transaction's repository.
func PolicyAuthorizer(pe *policy.Engine, logger *slog.Logger) AuthorizerFactory {
	return func(repo store.Repository) taskgraph.Authorizer {
		return policy.NewAuthorizer(pe, repo, repo, logger)
	}
}

// StaticAuthorizer uses the same predicates for every transaction.
func StaticAuthorizer(a taskgraph.Authorizer) AuthorizerFactory {
	return func(store.Repository) taskgraph.Authorizer { return a }
}

// Config wires an Engine.
type Config struct {
	Catalog    *module.Catalog
	Store      store.Store
	Authorizer AuthorizerFactory
	// Telemetry receives a copy of every instrumentation event. Optional.
	Telemetry telemetry.Client
	// Functions computes external-function questions. Optional.
	Functions *Functions
	Logger    *slog.Logger
}

// Engine implements the answer-resolution operations.
type Engine struct {
	catalog   *module.Catalog
	store     store.Store
	authz     AuthorizerFactory
	telemetry telemetry.Client
	functions *Functions
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("engine: catalog is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.Authorizer == nil {
		return nil, fmt.Errorf("engine: authorizer is required")
	}
	e := &Engine{
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		authz:     cfg.Authorizer,
		telemetry: cfg.Telemetry,
		functions: cfg.Functions,
		logger:    cfg.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if e.telemetry == nil {
		e.telemetry = telemetry.NoopClient{}
	}
	if e.functions == nil {
		e.functions = NewFunctions()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Catalog returns the module catalog the engine resolves against.
func (e *Engine) Catalog() *module.Catalog { return e.catalog }

// session is the per-transaction view of the engine.
type session struct {
	e       *Engine
	repo    store.Repository
	graph   *taskgraph.Graph
	answers *answer.Store
	events  []*models.Event
}

// inTx runs fn in a transaction. Events recorded by fn are mirrored to
// telemetry after commit.
func (e *Engine) inTx(ctx context.Context, fn func(s *session) error) error {
	var committed []*models.Event
	err := e.store.InTx(ctx, func(tx store.Repository) error {
		s := &session{
			e:       e,
			repo:    tx,
			graph:   taskgraph.New(tx, e.catalog, e.authz(tx)),
			answers: answer.NewStore(tx),
		}
		if err := fn(s); err != nil {
			return err
		}
		committed = s.events
		return nil
	})
	if err != nil {
		return err
	}
	for _, ev := range committed {
		telemetry.Mirror(e.telemetry, ev)
	}
	return nil
}

// readable loads a task, deleted or not, and checks read access.
func (s *session) readable(ctx context.Context, actor Actor, taskID string) (*models.Task, error) {
	t, err := s.graph.Task(ctx, taskID, true)
	if err != nil {
		return nil, err
	}
	if err := s.graph.CheckReadable(ctx, actor, t); err != nil {
		return nil, err
	}
	return t, nil
}
