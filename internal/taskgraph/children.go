package taskgraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// Question returns a question of the task's module that is answered by
// child tasks.
func (g *Graph) Question(parent *models.Task, key string) (*module.Question, error) {
	m, err := g.Module(parent)
	if err != nil {
		return nil, err
	}
	q, ok := m.Question(key)
	if !ok {
		return nil, types.NewValidationError("module %s has no question %q", m.Ref(), key)
	}
	if !q.IsReference() {
		return nil, types.NewValidationError("question %s is %s, not answered by tasks", key, q.Type)
	}
	return q, nil
}

// CreateChild creates a task of the question's answer-type module and links
// it as (part of) the parent's answer. A module question's link is replaced;
// a module-set question gets the child appended.
//
// Both writes go through the Graph's repository; run it over a transaction
// so that a failure leaves the parent answer unchanged.
func (g *Graph) CreateChild(ctx context.Context, actor models.Actor, parent *models.Task, questionKey string) (*models.Task, *answer.Outcome, error) {
	if err := g.CheckWritable(ctx, actor, parent); err != nil {
		return nil, nil, err
	}
	q, err := g.Question(parent, questionKey)
	if err != nil {
		return nil, nil, err
	}
	key, _ := q.AnswerModule()
	m, err := g.catalog.Latest(key)
	if err != nil {
		return nil, nil, types.WrapConfigurationError(err, "question %s answers with module %s", q.Key, key)
	}

	child := models.NewTask(parent.ProjectID, parent.OrganizationID, actor.UserID, m.Key, m.Version, m.Title)
	child.CreatedAt, child.UpdatedAt = g.now(), g.now()
	if err := models.ValidateStruct(child); err != nil {
		return nil, nil, types.NewValidationError("%v", err)
	}
	if err := g.repo.CreateTask(ctx, child); err != nil {
		return nil, nil, fmt.Errorf("create task: %w", err)
	}

	store := answer.NewStore(g.repo)
	ids := []string{child.ID}
	if q.Type == module.TypeModuleSet {
		cur, err := store.Current(ctx, parent.ID, q.Key)
		if err != nil {
			return nil, nil, err
		}
		if cur != nil {
			ids = append(append([]string(nil), cur.AnsweredByTasks...), child.ID)
		}
	}

	out, err := store.Save(ctx, answer.Proposal{
		TaskID:      parent.ID,
		QuestionKey: q.Key,
		ActorID:     actor.UserID,
		Tasks:       ids,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("link %s to %s.%s: %w", child.ID, parent.ID, q.Key, err)
	}
	return child, out, nil
}

// EnsureChild returns the task currently answering a module question, or
// creates one when there is none (or it was deleted).
func (g *Graph) EnsureChild(ctx context.Context, actor models.Actor, parent *models.Task, questionKey string) (*models.Task, bool, error) {
	q, err := g.Question(parent, questionKey)
	if err != nil {
		return nil, false, err
	}
	if q.Type != module.TypeModule {
		return nil, false, types.NewValidationError("question %s holds a set of tasks; create children explicitly", q.Key)
	}

	cur, err := answer.NewStore(g.repo).Current(ctx, parent.ID, q.Key)
	if err != nil {
		return nil, false, err
	}
	if cur != nil && len(cur.AnsweredByTasks) == 1 {
		child, err := g.repo.GetTask(ctx, cur.AnsweredByTasks[0])
		if err != nil && types.KindOf(err) != types.KindNotFound {
			return nil, false, err
		}
		if child != nil && !child.IsDeleted() {
			return child, false, nil
		}
	}

	child, _, err := g.CreateChild(ctx, actor, parent, questionKey)
	if err != nil {
		return nil, false, err
	}
	return child, true, nil
}

// StartTask returns the actor's most recently updated active task of the
// module in the project, or creates one at the module's latest version.
func (g *Graph) StartTask(ctx context.Context, actor models.Actor, project *models.Project, moduleKey string) (*models.Task, bool, error) {
	existing, err := g.repo.ListTasks(ctx, TaskFilter{
		OrganizationID: project.OrganizationID,
		ProjectID:      project.ID,
		ModuleKey:      moduleKey,
		EditorID:       actor.UserID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("list tasks: %w", err)
	}
	if len(existing) > 0 {
		sortByRecency(existing)
		return existing[0], false, nil
	}

	m, err := g.catalog.Latest(moduleKey)
	if err != nil {
		return nil, false, err
	}
	t := models.NewTask(project.ID, project.OrganizationID, actor.UserID, m.Key, m.Version, m.Title)
	t.CreatedAt, t.UpdatedAt = g.now(), g.now()
	if err := models.ValidateStruct(t); err != nil {
		return nil, false, types.NewValidationError("%v", err)
	}
	if err := g.repo.CreateTask(ctx, t); err != nil {
		return nil, false, fmt.Errorf("create task: %w", err)
	}
	return t, true, nil
}

// SetDeleted soft-deletes or restores a task. It is allowed whatever the
// current state.
func (g *Graph) SetDeleted(ctx context.Context, actor models.Actor, t *models.Task, deleted bool) error {
	ok, err := g.authz.CanWrite(ctx, actor, t)
	if err != nil {
		return fmt.Errorf("check write access on %s: %w", t.ID, err)
	}
	if !ok {
		return types.NewPermissionError("%s may not edit task %s", actor.UserID, t.ID)
	}

	now := g.now()
	if deleted {
		t.State = models.TaskDeleted
		t.DeletedAt = &now
	} else {
		t.State = models.TaskActive
		t.DeletedAt = nil
	}
	t.UpdatedAt = now
	return g.repo.UpdateTask(ctx, t)
}

// ReadableFilter narrows ReadableTasks and sets its sort preferences.
type ReadableFilter struct {
	ModuleKey string
	// ProjectID sorts tasks of this project ahead of others.
	ProjectID string
	// Current sorts these task IDs first, in order.
	Current []string
}

// ReadableTasks lists the active tasks in the actor's organization that the
// actor may read: current answers first, then tasks of the same project,
// then most recently updated.
func (g *Graph) ReadableTasks(ctx context.Context, actor models.Actor, f ReadableFilter) ([]*models.Task, error) {
	all, err := g.repo.ListTasks(ctx, TaskFilter{
		OrganizationID: actor.OrganizationID,
		ModuleKey:      f.ModuleKey,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	out := make([]*models.Task, 0, len(all))
	for _, t := range all {
		if t.IsDeleted() || t.OrganizationID != actor.OrganizationID {
			continue
		}
		ok, err := g.authz.CanRead(ctx, actor, t)
		if err != nil {
			return nil, fmt.Errorf("check read access on %s: %w", t.ID, err)
		}
		if ok {
			out = append(out, t)
		}
	}

	current := make(map[string]int, len(f.Current))
	for i, id := range f.Current {
		current[id] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ai, aCur := current[a.ID]
		bi, bCur := current[b.ID]
		if aCur != bCur {
			return aCur
		}
		if aCur {
			return ai < bi
		}
		aSame, bSame := a.ProjectID == f.ProjectID, b.ProjectID == f.ProjectID
		if aSame != bSame {
			return aSame
		}
		return newer(a, b)
	})
	return out, nil
}

func sortByRecency(ts []*models.Task) {
	sort.SliceStable(ts, func(i, j int) bool { return newer(ts[i], ts[j]) })
}

func newer(a, b *models.Task) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}
