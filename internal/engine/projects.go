package engine

import (
	"context"
	"fmt"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// CreateProject creates a project in the actor's organization, makes the
// actor its admin and starts its root task from the project module.
func (e *Engine) CreateProject(ctx context.Context, actor Actor, title string) (*models.Project, *models.Task, error) {
	root, err := e.catalog.Latest(module.ProjectModuleKey)
	if err != nil {
		return nil, nil, types.WrapConfigurationError(err, "projects need a %q module", module.ProjectModuleKey)
	}

	p := models.NewProject(actor.OrganizationID, title)
	if err := models.ValidateStruct(p); err != nil {
		return nil, nil, types.NewValidationError("%v", err)
	}

	var task *models.Task
	err = e.inTx(ctx, func(s *session) error {
		if err := s.repo.CreateProject(ctx, p); err != nil {
			return err
		}
		if err := s.repo.AddMember(ctx, &models.Membership{ProjectID: p.ID, UserID: actor.UserID, IsAdmin: true}); err != nil {
			return err
		}

		task = models.NewTask(p.ID, p.OrganizationID, actor.UserID, root.Key, root.Version, p.Title)
		if err := models.ValidateStruct(task); err != nil {
			return types.NewValidationError("%v", err)
		}
		if err := s.repo.CreateTask(ctx, task); err != nil {
			return err
		}
		p.RootTaskID = task.ID
		return s.repo.UpdateProject(ctx, p)
	})
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("project created", "project", p.ID, "root", task.ID, "actor", actor.String())
	return p, task, nil
}

// project loads a project of the actor's organization.
func (s *session) project(ctx context.Context, actor Actor, projectID string) (*models.Project, *models.Membership, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if p.OrganizationID != actor.OrganizationID {
		return nil, nil, types.NewNotFoundError("project %s not found", projectID)
	}
	m, err := s.repo.Membership(ctx, p.ID, actor.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load membership: %w", err)
	}
	return p, m, nil
}

// Project returns a project the actor is a member of.
func (e *Engine) Project(ctx context.Context, actor Actor, projectID string) (*models.Project, []*models.Membership, error) {
	var p *models.Project
	var members []*models.Membership
	err := e.inTx(ctx, func(s *session) error {
		var m *models.Membership
		var err error
		p, m, err = s.project(ctx, actor, projectID)
		if err != nil {
			return err
		}
		if m == nil {
			return types.NewPermissionError("%s is not a member of project %s", actor.UserID, projectID)
		}
		members, err = s.repo.ListMembers(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return p, members, nil
}

// Projects lists the projects of the actor's organization the actor belongs to.
func (e *Engine) Projects(ctx context.Context, actor Actor) ([]*models.Project, error) {
	var out []*models.Project
	err := e.inTx(ctx, func(s *session) error {
		all, err := s.repo.ListProjects(ctx, actor.OrganizationID)
		if err != nil {
			return err
		}
		for _, p := range all {
			m, err := s.repo.Membership(ctx, p.ID, actor.UserID)
			if err != nil {
				return fmt.Errorf("load membership: %w", err)
			}
			if m != nil {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// AddMember grants userID access to a project. Only project admins may.
func (e *Engine) AddMember(ctx context.Context, actor Actor, projectID, userID string, admin bool) (*models.Membership, error) {
	m := &models.Membership{ProjectID: projectID, UserID: userID, IsAdmin: admin}
	if err := models.ValidateStruct(m); err != nil {
		return nil, types.NewValidationError("%v", err)
	}
	err := e.inTx(ctx, func(s *session) error {
		_, mine, err := s.project(ctx, actor, projectID)
		if err != nil {
			return err
		}
		if mine == nil || !mine.IsAdmin {
			return types.NewPermissionError("%s is not an admin of project %s", actor.UserID, projectID)
		}
		return s.repo.AddMember(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("member added", "project", projectID, "user", userID, "admin", admin, "actor", actor.String())
	return m, nil
}

// StartTask returns the actor's most recent active task of a module in a
// project, or creates one. The actor must be a project member.
func (e *Engine) StartTask(ctx context.Context, actor Actor, projectID, moduleKey string) (*models.Task, bool, error) {
	var t *models.Task
	var created bool
	err := e.inTx(ctx, func(s *session) error {
		p, m, err := s.project(ctx, actor, projectID)
		if err != nil {
			return err
		}
		if m == nil {
			return types.NewPermissionError("%s is not a member of project %s", actor.UserID, projectID)
		}
		t, created, err = s.graph.StartTask(ctx, actor, p, moduleKey)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		e.logger.Info("task started", "task", t.ID, "module", moduleKey, "actor", actor.String())
	}
	return t, created, nil
}
