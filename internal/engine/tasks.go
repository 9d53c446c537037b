package engine

import (
	"context"

	"github.com/josephgoksu/guidedmodules/internal/render"
	"github.com/josephgoksu/guidedmodules/internal/taskgraph"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// Task returns a task the actor may read. Deleted tasks are not found
// unless includeDeleted is set.
func (e *Engine) Task(ctx context.Context, actor Actor, taskID string, includeDeleted bool) (*models.Task, error) {
	var out *models.Task
	err := e.inTx(ctx, func(s *session) error {
		t, err := s.graph.Task(ctx, taskID, includeDeleted)
		if err != nil {
			return err
		}
		if err := s.graph.CheckReadable(ctx, actor, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// DeleteTask soft-deletes a task.
func (e *Engine) DeleteTask(ctx context.Context, actor Actor, taskID string) (*models.Task, error) {
	return e.setDeleted(ctx, actor, taskID, true)
}

// UndeleteTask restores a soft-deleted task.
func (e *Engine) UndeleteTask(ctx context.Context, actor Actor, taskID string) (*models.Task, error) {
	return e.setDeleted(ctx, actor, taskID, false)
}

func (e *Engine) setDeleted(ctx context.Context, actor Actor, taskID string, deleted bool) (*models.Task, error) {
	var out *models.Task
	err := e.inTx(ctx, func(s *session) error {
		t, err := s.graph.Task(ctx, taskID, true)
		if err != nil {
			return err
		}
		if err := s.graph.SetDeleted(ctx, actor, t, deleted); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("task state changed", "task", taskID, "state", out.State, "actor", actor.String())
	return out, nil
}

// ReadableTasks lists the active tasks the actor may read.
func (e *Engine) ReadableTasks(ctx context.Context, actor Actor, f taskgraph.ReadableFilter) ([]*models.Task, error) {
	var out []*models.Task
	err := e.inTx(ctx, func(s *session) error {
		var err error
		out, err = s.graph.ReadableTasks(ctx, actor, f)
		return err
	})
	return out, err
}

// History lists every answer record of a question, oldest first.
func (e *Engine) History(ctx context.Context, actor Actor, taskID, questionKey string) ([]*models.AnswerRecord, error) {
	var out []*models.AnswerRecord
	err := e.inTx(ctx, func(s *session) error {
		if _, err := s.readable(ctx, actor, taskID); err != nil {
			return err
		}
		var err error
		out, err = s.answers.History(ctx, taskID, questionKey)
		return err
	})
	return out, err
}

// RenderDocument renders one of the task module's output documents.
func (e *Engine) RenderDocument(ctx context.Context, actor Actor, taskID, documentID string, format render.Format, opts render.Options) (*render.Document, error) {
	var out *render.Document
	err := e.inTx(ctx, func(s *session) error {
		t, err := s.readable(ctx, actor, taskID)
		if err != nil {
			return err
		}
		res, err := s.resolve(ctx, t)
		if err != nil {
			return err
		}
		doc, ok := res.Module.Document(documentID)
		if !ok {
			return types.NewNotFoundError("module %s has no document %q", res.Module.Ref(), documentID)
		}
		if opts.Modules == nil {
			opts.Modules = e.catalog.Latest
		}
		out, err = render.Render(res, doc, format, opts)
		return err
	})
	return out, err
}
