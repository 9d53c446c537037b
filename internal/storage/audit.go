package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josephgoksu/guidedmodules/internal/policy"
)

// SaveDecision implements policy.AuditLog. It sets d.ID.
func (s *SQLStore) SaveDecision(ctx context.Context, d *policy.Decision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	if d.DecisionID == "" {
		d.DecisionID = uuid.New().String()
	}
	if d.EvaluatedAt.IsZero() {
		d.EvaluatedAt = timeNow()
	}

	err := s.queryRow(ctx, `
		INSERT INTO policy_decisions (
			decision_id, policy_path, action, result, violations, input_json, task_id, actor_id, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		d.DecisionID, d.PolicyPath, string(d.Action), d.Result, d.ViolationsJSON(), d.InputJSON(),
		nullString(d.TaskID), nullString(d.ActorID), formatTime(d.EvaluatedAt)).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert policy decision: %w", err)
	}
	return nil
}

// ListDecisions implements policy.AuditLog, newest first.
func (s *SQLStore) ListDecisions(ctx context.Context, opts policy.ListDecisionsOptions) ([]*policy.Decision, error) {
	var where []string
	var args []any
	if opts.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, opts.TaskID)
	}
	if opts.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, opts.ActorID)
	}
	if opts.Result != "" {
		where = append(where, "result = ?")
		args = append(args, opts.Result)
	}
	if !opts.Since.IsZero() {
		where = append(where, "evaluated_at >= ?")
		args = append(args, formatTime(opts.Since))
	}

	q := `SELECT id, decision_id, policy_path, action, result, violations, input_json, task_id, actor_id, evaluated_at
		FROM policy_decisions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY evaluated_at DESC, id DESC"
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query policy decisions: %w", err)
	}
	defer rows.Close()

	var out []*policy.Decision
	for rows.Next() {
		var d policy.Decision
		var action, evaluatedAt string
		var violations, input, taskID, actorID sql.NullString
		if err := rows.Scan(&d.ID, &d.DecisionID, &d.PolicyPath, &action, &d.Result,
			&violations, &input, &taskID, &actorID, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("scan policy decision: %w", err)
		}
		d.Action = policy.Action(action)
		d.Violations = policy.ParseViolations(violations.String)
		if input.Valid && input.String != "" {
			var v map[string]any
			if err := json.Unmarshal([]byte(input.String), &v); err == nil {
				d.Input = v
			}
		}
		d.TaskID, d.ActorID = taskID.String, actorID.String
		d.EvaluatedAt = parseTime(evaluatedAt)
		out = append(out, &d)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}
