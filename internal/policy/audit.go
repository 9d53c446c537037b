package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/josephgoksu/guidedmodules/models"
)

// AuditLog persists policy decisions for compliance and audit trail.
type AuditLog interface {
	SaveDecision(ctx context.Context, d *Decision) error
	ListDecisions(ctx context.Context, opts ListDecisionsOptions) ([]*Decision, error)
}

// ListDecisionsOptions provides filtering options for ListDecisions.
type ListDecisionsOptions struct {
	TaskID  string    // Filter by task ID
	ActorID string    // Filter by actor
	Result  string    // Filter by result ("allow" or "deny")
	Since   time.Time // Filter by evaluated_at >= since
	Limit   int       // Maximum number of results (0 = no limit)
}

// Memberships looks up project memberships. A nil membership with a nil
// error means the user is not a member.
type Memberships interface {
	Membership(ctx context.Context, projectID, userID string) (*models.Membership, error)
}

// Authorizer answers read/write predicates on tasks with the policy engine
// and records every decision in the audit log.
type Authorizer struct {
	engine  *Engine
	members Memberships
	audit   AuditLog
	logger  *slog.Logger
}

// NewAuthorizer creates an Authorizer. audit may be nil.
func NewAuthorizer(engine *Engine, members Memberships, audit AuditLog, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{engine: engine, members: members, audit: audit, logger: logger}
}

// Decide evaluates one access and records the decision.
func (a *Authorizer) Decide(ctx context.Context, action Action, actor models.Actor, task *models.Task) (*Decision, error) {
	m, err := a.members.Membership(ctx, task.ProjectID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}

	decision, err := a.engine.Evaluate(ctx, BuildInput(action, actor, task, m))
	if err != nil {
		return nil, err
	}

	if a.audit != nil {
		if err := a.audit.SaveDecision(ctx, decision); err != nil {
			a.logger.Warn("failed to record policy decision", "decision", decision.DecisionID, "error", err)
		}
	}
	return decision, nil
}

// CanRead implements taskgraph.Authorizer.
func (a *Authorizer) CanRead(ctx context.Context, actor models.Actor, task *models.Task) (bool, error) {
	d, err := a.Decide(ctx, ActionRead, actor, task)
	if err != nil {
		return false, err
	}
	return d.IsAllowed(), nil
}

// CanWrite implements taskgraph.Authorizer.
func (a *Authorizer) CanWrite(ctx context.Context, actor models.Actor, task *models.Task) (bool, error) {
	d, err := a.Decide(ctx, ActionWrite, actor, task)
	if err != nil {
		return false, err
	}
	return d.IsAllowed(), nil
}

// Predicate is a host-supplied permission check.
type Predicate func(ctx context.Context, actor models.Actor, task *models.Task) (bool, error)

// Func adapts plain host predicates to taskgraph.Authorizer. A nil
// predicate denies.
type Func struct {
	Read  Predicate
	Write Predicate
}

// AllowAll returns a Func that grants every access.
func AllowAll() Func {
	allow := func(context.Context, models.Actor, *models.Task) (bool, error) { return true, nil }
	return Func{Read: allow, Write: allow}
}

func (f Func) CanRead(ctx context.Context, actor models.Actor, task *models.Task) (bool, error) {
	if f.Read == nil {
		return false, nil
	}
	return f.Read(ctx, actor, task)
}

func (f Func) CanWrite(ctx context.Context, actor models.Actor, task *models.Task) (bool, error) {
	if f.Write == nil {
		return false, nil
	}
	return f.Write(ctx, actor, task)
}
