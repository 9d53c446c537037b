package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/store"
)

// RecordEvent appends an instrumentation event. Missing ID and time are
// filled in.
func (s *SQLStore) RecordEvent(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = timeNow()
	}
	var extra any
	if len(e.Extra) > 0 {
		b, err := json.Marshal(e.Extra)
		if err != nil {
			return fmt.Errorf("encode event extra: %w", err)
		}
		extra = string(b)
	}
	var value any
	if e.Value != nil {
		value = *e.Value
	}

	_, err := s.exec(ctx, `
		INSERT INTO instrumentation_events (
			id, type, value, actor_id, project_id, task_id, module_key, question_key, extra, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, value, e.ActorID, nullString(e.ProjectID), nullString(e.TaskID),
		nullString(e.ModuleKey), nullString(e.QuestionKey), extra, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.Type, err)
	}
	return nil
}

// ListEvents returns matching events, oldest first.
func (s *SQLStore) ListEvents(ctx context.Context, f store.EventFilter) ([]*models.Event, error) {
	var where []string
	var args []any
	if f.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.Since))
	}

	q := `SELECT id, type, value, actor_id, project_id, task_id, module_key, question_key, extra, created_at
		FROM instrumentation_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		var e models.Event
		var value sql.NullFloat64
		var projectID, taskID, moduleKey, questionKey, extra sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Type, &value, &e.ActorID, &projectID, &taskID,
			&moduleKey, &questionKey, &extra, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if value.Valid {
			v := value.Float64
			e.Value = &v
		}
		e.ProjectID, e.TaskID = projectID.String, taskID.String
		e.ModuleKey, e.QuestionKey = moduleKey.String, questionKey.String
		if extra.Valid {
			_ = json.Unmarshal([]byte(extra.String), &e.Extra)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}
