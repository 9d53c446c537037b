package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/josephgoksu/guidedmodules/internal/taskgraph"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

const taskColumns = `id, project_id, organization_id, editor_id, module_key, module_version,
	title, notes, state, deleted_at, created_at, updated_at`

// CreateTask inserts a new task.
func (s *SQLStore) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := s.exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.OrganizationID, t.EditorID, t.ModuleKey, t.ModuleVersion,
		t.Title, t.Notes, string(t.State), nullTime(t.DeletedAt),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask returns the task whatever its state.
func (s *SQLStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewNotFoundError("task %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// UpdateTask writes the mutable fields of a task.
func (s *SQLStore) UpdateTask(ctx context.Context, t *models.Task) error {
	res, err := s.exec(ctx, `
		UPDATE tasks
		SET editor_id = ?, title = ?, notes = ?, state = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?`,
		t.EditorID, t.Title, t.Notes, string(t.State), nullTime(t.DeletedAt), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewNotFoundError("task %s not found", t.ID)
	}
	return nil
}

// ListTasks returns tasks matching f, most recently updated first.
func (s *SQLStore) ListTasks(ctx context.Context, f taskgraph.TaskFilter) ([]*models.Task, error) {
	var where []string
	var args []any
	if f.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, f.OrganizationID)
	}
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.ModuleKey != "" {
		where = append(where, "module_key = ?")
		args = append(args, f.ModuleKey)
	}
	if f.EditorID != "" {
		where = append(where, "editor_id = ?")
		args = append(args, f.EditorID)
	}
	if !f.IncludeDeleted {
		where = append(where, "state = ?")
		args = append(args, string(models.TaskActive))
	}

	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY updated_at DESC, id"

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	var t models.Task
	var state, createdAt, updatedAt string
	var deletedAt sql.NullString
	if err := row.Scan(&t.ID, &t.ProjectID, &t.OrganizationID, &t.EditorID, &t.ModuleKey, &t.ModuleVersion,
		&t.Title, &t.Notes, &state, &deletedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.State = models.TaskState(state)
	if deletedAt.Valid {
		d := parseTime(deletedAt.String)
		t.DeletedAt = &d
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
