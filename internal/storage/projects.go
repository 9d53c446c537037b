package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

const projectColumns = `id, organization_id, title, root_task_id, created_at, updated_at`

// CreateProject inserts a project.
func (s *SQLStore) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := s.exec(ctx, `
		INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrganizationID, p.Title, nullString(p.RootTaskID), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject returns a project or a not-found error.
func (s *SQLStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(s.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewNotFoundError("project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// UpdateProject writes the title and root task of a project.
func (s *SQLStore) UpdateProject(ctx context.Context, p *models.Project) error {
	res, err := s.exec(ctx, `
		UPDATE projects SET title = ?, root_task_id = ?, updated_at = ? WHERE id = ?`,
		p.Title, nullString(p.RootTaskID), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewNotFoundError("project %s not found", p.ID)
	}
	return nil
}

// ListProjects returns an organization's projects, newest first.
func (s *SQLStore) ListProjects(ctx context.Context, organizationID string) ([]*models.Project, error) {
	rows, err := s.query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE organization_id = ?
		ORDER BY created_at DESC, id`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember inserts a membership or updates its admin flag.
func (s *SQLStore) AddMember(ctx context.Context, m *models.Membership) error {
	_, err := s.exec(ctx, `
		INSERT INTO project_members (project_id, user_id, is_admin) VALUES (?, ?, ?)
		ON CONFLICT (project_id, user_id) DO UPDATE SET is_admin = excluded.is_admin`,
		m.ProjectID, m.UserID, boolInt(m.IsAdmin))
	if err != nil {
		return fmt.Errorf("add member %s to %s: %w", m.UserID, m.ProjectID, err)
	}
	return nil
}

// Membership implements policy.Memberships. A non-member yields nil, nil.
func (s *SQLStore) Membership(ctx context.Context, projectID, userID string) (*models.Membership, error) {
	m := &models.Membership{ProjectID: projectID, UserID: userID}
	var admin int
	err := s.queryRow(ctx, `
		SELECT is_admin FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	m.IsAdmin = admin != 0
	return m, nil
}

// ListMembers returns a project's memberships ordered by user.
func (s *SQLStore) ListMembers(ctx context.Context, projectID string) ([]*models.Membership, error) {
	rows, err := s.query(ctx, `
		SELECT user_id, is_admin FROM project_members
		WHERE project_id = ? ORDER BY user_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		m := &models.Membership{ProjectID: projectID}
		var admin int
		if err := rows.Scan(&m.UserID, &admin); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.IsAdmin = admin != 0
		out = append(out, m)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	var root sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Title, &root, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.RootTaskID = root.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
