// Package taskgraph maintains the delegation graph between tasks: questions
// of type module and module-set are answered by pointing at child tasks.
//
// The graph is a DAG. Links are validated for type compatibility, read
// access and cycles before anything is written.
package taskgraph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// Authorizer answers the host's permission predicates.
type Authorizer interface {
	CanRead(ctx context.Context, actor models.Actor, task *models.Task) (bool, error)
	CanWrite(ctx context.Context, actor models.Actor, task *models.Task) (bool, error)
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	OrganizationID string
	ProjectID      string
	ModuleKey      string
	EditorID       string
	IncludeDeleted bool
}

// Repository persists tasks and their answers.
type Repository interface {
	answer.Repository

	CreateTask(ctx context.Context, t *models.Task) error
	// GetTask returns the task whether or not it is deleted, or a not-found
	// error.
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error)
	// ParentTaskIDs returns the tasks whose effective answers reference childID.
	ParentTaskIDs(ctx context.Context, childID string) ([]string, error)
}

// Graph operates on one Repository. For atomic operations, build a Graph
// over a transaction's repository.
type Graph struct {
	repo    Repository
	catalog *module.Catalog
	authz   Authorizer
	now     func() time.Time
}

// New creates a Graph.
func New(repo Repository, catalog *module.Catalog, authz Authorizer) *Graph {
	return &Graph{
		repo:    repo,
		catalog: catalog,
		authz:   authz,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Task loads a task. Deleted tasks are a not-found error unless
// includeDeleted is set.
func (g *Graph) Task(ctx context.Context, id string, includeDeleted bool) (*models.Task, error) {
	t, err := g.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsDeleted() && !includeDeleted {
		return nil, types.NewNotFoundError("task %s is deleted", id)
	}
	return t, nil
}

// Module returns the module version a task was created against.
func (g *Graph) Module(t *models.Task) (*module.Module, error) {
	return g.catalog.Get(t.ModuleKey, t.ModuleVersion)
}

// Children returns the tasks referenced by a task's effective answers,
// ordered by question key.
func (g *Graph) Children(ctx context.Context, taskID string) ([]string, error) {
	latest, err := g.repo.LatestAnswers(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load answers of %s: %w", taskID, err)
	}
	keys := make([]string, 0, len(latest))
	for k, rec := range latest {
		if rec.Effective() && len(rec.AnsweredByTasks) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []string
	seen := map[string]bool{}
	for _, k := range keys {
		for _, id := range latest[k].AnsweredByTasks {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// Ancestors returns every task from which taskID is reachable via answer
// links, nearest first.
func (g *Graph) Ancestors(ctx context.Context, taskID string) ([]string, error) {
	var out []string
	seen := map[string]bool{taskID: true}
	queue := []string{taskID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		parents, err := g.repo.ParentTaskIDs(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load parents of %s: %w", id, err)
		}
		for _, p := range parents {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
				queue = append(queue, p)
			}
		}
	}
	return out, nil
}

// checkCycle fails if linking child under parent would close a cycle, that
// is, if parent is reachable from child.
func (g *Graph) checkCycle(ctx context.Context, parentID, childID string) error {
	if parentID == childID {
		return types.NewCycleError("task %s cannot answer its own question", childID)
	}

	visited := map[string]bool{}
	var walk func(id string, path []string) error
	walk = func(id string, path []string) error {
		visited[id] = true
		children, err := g.Children(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range children {
			next := append(append([]string(nil), path...), c)
			if c == parentID {
				return types.NewCycleError("linking %s under %s would create a cycle", childID, parentID).
					With("path", next)
			}
			if !visited[c] {
				if err := walk(c, next); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(childID, []string{childID})
}

// ValidateReferences checks a proposed answer-by-reference and returns the
// referenced tasks in order. Nothing is written.
func (g *Graph) ValidateReferences(ctx context.Context, actor models.Actor, parent *models.Task, q *module.Question, childIDs []string) ([]*models.Task, error) {
	want, ok := q.AnswerModule()
	if !ok {
		return nil, types.NewValidationError("question %s is not answered by tasks", q.Key)
	}
	if q.Type == module.TypeModule && len(childIDs) != 1 {
		return nil, types.NewValidationError("question %s takes exactly one task, got %d", q.Key, len(childIDs))
	}

	seen := make(map[string]bool, len(childIDs))
	out := make([]*models.Task, 0, len(childIDs))
	for _, id := range childIDs {
		if seen[id] {
			return nil, types.NewValidationError("task %s is listed twice", id)
		}
		seen[id] = true

		child, err := g.repo.GetTask(ctx, id)
		if err != nil {
			if types.KindOf(err) == types.KindNotFound {
				return nil, types.NewValidationError("task %s does not exist", id)
			}
			return nil, err
		}
		if child.IsDeleted() {
			return nil, types.NewValidationError("task %s is deleted", id)
		}
		if child.ModuleKey != want {
			return nil, types.NewValidationError("task %s is a %s task, question %s needs %s", id, child.ModuleKey, q.Key, want)
		}
		ok, err := g.authz.CanRead(ctx, actor, child)
		if err != nil {
			return nil, fmt.Errorf("check read access on %s: %w", id, err)
		}
		if !ok {
			return nil, types.NewPermissionError("%s may not read task %s", actor.UserID, id)
		}
		if err := g.checkCycle(ctx, parent.ID, id); err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// CheckWritable fails with a permission error if actor may not change t's
// answers, including when t is deleted.
func (g *Graph) CheckWritable(ctx context.Context, actor models.Actor, t *models.Task) error {
	if t.IsDeleted() {
		return types.NewPermissionError("task %s is deleted", t.ID)
	}
	ok, err := g.authz.CanWrite(ctx, actor, t)
	if err != nil {
		return fmt.Errorf("check write access on %s: %w", t.ID, err)
	}
	if !ok {
		return types.NewPermissionError("%s may not edit task %s", actor.UserID, t.ID)
	}
	return nil
}

// CheckReadable fails with a permission error if actor may not read t.
func (g *Graph) CheckReadable(ctx context.Context, actor models.Actor, t *models.Task) error {
	ok, err := g.authz.CanRead(ctx, actor, t)
	if err != nil {
		return fmt.Errorf("check read access on %s: %w", t.ID, err)
	}
	if !ok {
		return types.NewPermissionError("%s may not read task %s", actor.UserID, t.ID)
	}
	return nil
}
