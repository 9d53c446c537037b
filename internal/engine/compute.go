package engine

import (
	"context"
	"strings"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// ComputeAnswers resolves a task's answers. Module questions resolve to the
// child task's values, nested to any depth; soft deletion is ignored.
func (e *Engine) ComputeAnswers(ctx context.Context, actor Actor, taskID string) (*resolver.Resolution, error) {
	var res *resolver.Resolution
	err := e.inTx(ctx, func(s *session) error {
		t, err := s.readable(ctx, actor, taskID)
		if err != nil {
			return err
		}
		res, err = s.resolve(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolve computes t's resolution, following child links.
func (s *session) resolve(ctx context.Context, t *models.Task) (*resolver.Resolution, error) {
	w := &walker{s: s, memo: map[string]*resolver.Resolution{}}
	return w.resolve(ctx, t, nil)
}

// walker resolves a task tree once per task and detects link cycles.
type walker struct {
	s    *session
	memo map[string]*resolver.Resolution
}

func (w *walker) resolve(ctx context.Context, t *models.Task, stack []string) (*resolver.Resolution, error) {
	if res, ok := w.memo[t.ID]; ok {
		return res, nil
	}
	stack = append(stack, t.ID)

	m, err := w.s.graph.Module(t)
	if err != nil {
		return nil, types.WrapConfigurationError(err, "task %s uses module %s@%d", t.ID, t.ModuleKey, t.ModuleVersion)
	}
	answers, err := w.s.answers.Effective(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	res, err := resolver.Resolve(ctx, m, answers, resolver.Options{
		Children: func(ctx context.Context, q *module.Question, ids []string) (any, error) {
			values := make([]any, 0, len(ids))
			for _, id := range ids {
				v, err := w.child(ctx, id, stack)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			if q.Type == module.TypeModule {
				return values[0], nil
			}
			return values, nil
		},
	})
	if err != nil {
		return nil, err
	}
	w.memo[t.ID] = res
	return res, nil
}

// child returns the nested value of a child task: every question of its
// module, with pending questions as null.
func (w *walker) child(ctx context.Context, id string, stack []string) (map[string]any, error) {
	for _, seen := range stack {
		if seen == id {
			path := append(append([]string(nil), stack...), id)
			return nil, types.NewCycleError("task %s is its own ancestor", id).
				With("path", strings.Join(path, " -> "))
		}
	}

	t, err := w.s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := w.resolve(ctx, t, stack)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(res.Statuses))
	for _, st := range res.Statuses {
		out[st.Key()] = res.Values[st.Key()]
	}
	return out, nil
}
