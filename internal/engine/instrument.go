package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/telemetry"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/store"
)

// afterMutation bumps the task, records instrumentation and resolves the
// task's new state.
func (s *session) afterMutation(ctx context.Context, actor Actor, t *models.Task, q *module.Question, result *ApplyResult) error {
	if result.Outcome.Changed {
		t.UpdatedAt = s.e.now()
		if err := s.repo.UpdateTask(ctx, t); err != nil {
			return fmt.Errorf("touch task %s: %w", t.ID, err)
		}
	}

	if err := s.firstInteraction(ctx, actor, t); err != nil {
		return err
	}
	if err := s.record(ctx, actor, t, telemetry.QuestionEvent(string(result.Outcome.Event)), q.Key); err != nil {
		return err
	}

	res, err := s.resolve(ctx, t)
	if err != nil {
		return err
	}
	result.Resolution = res
	if res.Complete {
		done, err := s.repo.ListEvents(ctx, store.EventFilter{TaskID: t.ID, Type: telemetry.EventTaskDone, Limit: 1})
		if err != nil {
			return fmt.Errorf("load task events: %w", err)
		}
		if len(done) == 0 {
			if err := s.record(ctx, actor, t, telemetry.EventTaskDone, ""); err != nil {
				return err
			}
		}
	}
	result.Events = s.events
	return nil
}

// firstInteraction records interact-first the first time actor touches t.
func (s *session) firstInteraction(ctx context.Context, actor Actor, t *models.Task) error {
	prior, err := s.repo.ListEvents(ctx, store.EventFilter{TaskID: t.ID, ActorID: actor.UserID, Limit: 1})
	if err != nil {
		return fmt.Errorf("load task events: %w", err)
	}
	if len(prior) > 0 {
		return nil
	}
	return s.record(ctx, actor, t, telemetry.EventInteractFirst, "")
}

func (s *session) record(ctx context.Context, actor Actor, t *models.Task, eventType, questionKey string) error {
	ev := &models.Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		ActorID:     actor.UserID,
		ProjectID:   t.ProjectID,
		TaskID:      t.ID,
		ModuleKey:   t.ModuleKey,
		QuestionKey: questionKey,
		CreatedAt:   s.e.now(),
	}
	if err := s.repo.RecordEvent(ctx, ev); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	s.events = append(s.events, ev)
	return nil
}

// ShowQuestion records that actor viewed a question of a task.
func (e *Engine) ShowQuestion(ctx context.Context, actor Actor, taskID, questionKey string) (*models.Task, error) {
	var task *models.Task
	err := e.inTx(ctx, func(s *session) error {
		t, err := s.readable(ctx, actor, taskID)
		if err != nil {
			return err
		}
		if err := s.firstInteraction(ctx, actor, t); err != nil {
			return err
		}
		task = t
		return s.record(ctx, actor, t, telemetry.EventQuestionShow, questionKey)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Events lists a task's instrumentation events, oldest first.
func (e *Engine) Events(ctx context.Context, actor Actor, taskID string) ([]*models.Event, error) {
	var out []*models.Event
	err := e.inTx(ctx, func(s *session) error {
		if _, err := s.readable(ctx, actor, taskID); err != nil {
			return err
		}
		var err error
		out, err = s.repo.ListEvents(ctx, store.EventFilter{TaskID: taskID})
		return err
	})
	return out, err
}
