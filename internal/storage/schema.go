package storage

import (
	"context"
	"fmt"
	"strings"
)

// schema is applied statement by statement. {{id}}, {{blob}} and {{real}}
// are replaced per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id              TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		title           TEXT NOT NULL,
		root_task_id    TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_org ON projects(organization_id)`,

	`CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		is_admin   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT PRIMARY KEY,
		project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		organization_id TEXT NOT NULL,
		editor_id       TEXT NOT NULL,
		module_key      TEXT NOT NULL,
		module_version  INTEGER NOT NULL,
		title           TEXT NOT NULL,
		notes           TEXT NOT NULL DEFAULT '',
		state           TEXT NOT NULL DEFAULT 'active',
		deleted_at      TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_org_module ON tasks(organization_id, module_key)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,

	// Append-only: the row with the highest seq per (task_id, question_key)
	// is the current answer.
	`CREATE TABLE IF NOT EXISTS answer_history (
		id                TEXT PRIMARY KEY,
		task_id           TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		question_key      TEXT NOT NULL,
		seq               INTEGER NOT NULL,
		value             TEXT,
		file_sha256       TEXT,
		file_name         TEXT,
		file_content_type TEXT,
		file_size         BIGINT,
		skipped           INTEGER NOT NULL DEFAULT 0,
		cleared           INTEGER NOT NULL DEFAULT 0,
		actor_id          TEXT NOT NULL,
		created_at        TEXT NOT NULL,
		UNIQUE (task_id, question_key, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS answer_history_tasks (
		record_id     TEXT NOT NULL REFERENCES answer_history(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		child_task_id TEXT NOT NULL REFERENCES tasks(id),
		PRIMARY KEY (record_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_answer_history_tasks_child ON answer_history_tasks(child_task_id)`,

	`CREATE TABLE IF NOT EXISTS files (
		sha256       TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size         BIGINT NOT NULL,
		content      {{blob}} NOT NULL,
		created_at   TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS instrumentation_events (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL,
		value        {{real}},
		actor_id     TEXT NOT NULL,
		project_id   TEXT,
		task_id      TEXT,
		module_key   TEXT,
		question_key TEXT,
		extra        TEXT,
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_task ON instrumentation_events(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_type ON instrumentation_events(type)`,

	`CREATE TABLE IF NOT EXISTS policy_decisions (
		id           {{id}},
		decision_id  TEXT NOT NULL UNIQUE,
		policy_path  TEXT NOT NULL,
		action       TEXT NOT NULL,
		result       TEXT NOT NULL,
		violations   TEXT,
		input_json   TEXT,
		task_id      TEXT,
		actor_id     TEXT,
		evaluated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_decisions_task ON policy_decisions(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_decisions_result ON policy_decisions(result)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_decisions_evaluated_at ON policy_decisions(evaluated_at)`,
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	var r *strings.Replacer
	switch s.dialect {
	case DialectPostgres:
		r = strings.NewReplacer("{{id}}", "BIGSERIAL PRIMARY KEY", "{{blob}}", "BYTEA", "{{real}}", "DOUBLE PRECISION")
	default:
		r = strings.NewReplacer("{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{blob}}", "BLOB", "{{real}}", "REAL")
	}
	for i, stmt := range schema {
		if _, err := s.q.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
