package store

import (
	"context"
	"time"

	"github.com/josephgoksu/guidedmodules/internal/policy"
	"github.com/josephgoksu/guidedmodules/internal/taskgraph"
	"github.com/josephgoksu/guidedmodules/models"
)

// EventFilter narrows ListEvents.
type EventFilter struct {
	TaskID    string
	ProjectID string
	ActorID   string
	Type      string
	Since     time.Time
	Limit     int
}

// Repository is everything the engine persists. Implementations are not
// expected to be safe for use across transactions.
type Repository interface {
	taskgraph.Repository
	policy.Memberships
	policy.AuditLog

	CreateProject(ctx context.Context, p *models.Project) error
	// GetProject returns the project or a not-found error.
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	ListProjects(ctx context.Context, organizationID string) ([]*models.Project, error)

	// AddMember inserts or updates a membership.
	AddMember(ctx context.Context, m *models.Membership) error
	ListMembers(ctx context.Context, projectID string) ([]*models.Membership, error)

	// PutFile stores content under ref.SHA256. Storing the same content
	// twice is a no-op.
	PutFile(ctx context.Context, ref *models.FileRef, content []byte) error
	// GetFile returns the stored content or a not-found error.
	GetFile(ctx context.Context, sha256 string) (*models.FileRef, []byte, error)

	RecordEvent(ctx context.Context, e *models.Event) error
	ListEvents(ctx context.Context, f EventFilter) ([]*models.Event, error)
}

// Store is a Repository that can run work atomically.
type Store interface {
	Repository

	// InTx runs fn against a transactional Repository. fn's error rolls the
	// transaction back; nil commits. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(tx Repository) error) error

	Close() error
}
