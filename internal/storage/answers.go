package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/josephgoksu/guidedmodules/models"
)

const answerColumns = `h.id, h.task_id, h.question_key, h.seq, h.value,
	h.file_sha256, h.file_name, h.file_content_type, h.file_size,
	h.skipped, h.cleared, h.actor_id, h.created_at`

// latestOnly restricts h to the newest record of its (task, question) pair.
const latestOnly = `h.seq = (
	SELECT MAX(h2.seq) FROM answer_history h2
	WHERE h2.task_id = h.task_id AND h2.question_key = h.question_key)`

// AppendAnswer stores rec as the newest record of its pair and sets rec.Seq.
func (s *SQLStore) AppendAnswer(ctx context.Context, rec *models.AnswerRecord) error {
	var seq int
	if err := s.queryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM answer_history
		WHERE task_id = ? AND question_key = ?`,
		rec.TaskID, rec.QuestionKey).Scan(&seq); err != nil {
		return fmt.Errorf("next answer seq: %w", err)
	}

	var value any
	if rec.Value != nil && !rec.Skipped && !rec.Cleared {
		b, err := json.Marshal(rec.Value)
		if err != nil {
			return fmt.Errorf("encode answer value: %w", err)
		}
		value = string(b)
	}

	var sha, name, contentType, size any
	if f := rec.AnsweredByFile; f != nil {
		sha, name, contentType, size = f.SHA256, f.Name, f.ContentType, f.Size
	}

	if _, err := s.exec(ctx, `
		INSERT INTO answer_history (
			id, task_id, question_key, seq, value,
			file_sha256, file_name, file_content_type, file_size,
			skipped, cleared, actor_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TaskID, rec.QuestionKey, seq, value,
		sha, name, contentType, size,
		boolInt(rec.Skipped), boolInt(rec.Cleared), rec.ActorID, formatTime(rec.CreatedAt)); err != nil {
		return fmt.Errorf("insert answer %s.%s: %w", rec.TaskID, rec.QuestionKey, err)
	}

	for i, child := range rec.AnsweredByTasks {
		if _, err := s.exec(ctx, `
			INSERT INTO answer_history_tasks (record_id, position, child_task_id)
			VALUES (?, ?, ?)`, rec.ID, i, child); err != nil {
			return fmt.Errorf("insert answer link %s: %w", child, err)
		}
	}
	rec.Seq = seq
	return nil
}

// LatestAnswer returns the newest record of the pair, or nil.
func (s *SQLStore) LatestAnswer(ctx context.Context, taskID, questionKey string) (*models.AnswerRecord, error) {
	row := s.queryRow(ctx, `
		SELECT `+answerColumns+` FROM answer_history h
		WHERE h.task_id = ? AND h.question_key = ?
		ORDER BY h.seq DESC LIMIT 1`, taskID, questionKey)
	rec, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get answer %s.%s: %w", taskID, questionKey, err)
	}
	if err := s.loadLinks(ctx, []*models.AnswerRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// LatestAnswers returns the newest record per question key of a task.
func (s *SQLStore) LatestAnswers(ctx context.Context, taskID string) (map[string]*models.AnswerRecord, error) {
	recs, err := s.answers(ctx, `
		SELECT `+answerColumns+` FROM answer_history h
		WHERE h.task_id = ? AND `+latestOnly, taskID)
	if err != nil {
		return nil, fmt.Errorf("list answers of %s: %w", taskID, err)
	}
	out := make(map[string]*models.AnswerRecord, len(recs))
	for _, r := range recs {
		out[r.QuestionKey] = r
	}
	return out, nil
}

// AnswerHistory returns every record of the pair, oldest first.
func (s *SQLStore) AnswerHistory(ctx context.Context, taskID, questionKey string) ([]*models.AnswerRecord, error) {
	recs, err := s.answers(ctx, `
		SELECT `+answerColumns+` FROM answer_history h
		WHERE h.task_id = ? AND h.question_key = ?
		ORDER BY h.seq`, taskID, questionKey)
	if err != nil {
		return nil, fmt.Errorf("answer history of %s.%s: %w", taskID, questionKey, err)
	}
	return recs, nil
}

// ParentTaskIDs returns the tasks whose current, non-cleared answers link to
// childID.
func (s *SQLStore) ParentTaskIDs(ctx context.Context, childID string) ([]string, error) {
	rows, err := s.query(ctx, `
		SELECT DISTINCT h.task_id FROM answer_history h
		JOIN answer_history_tasks l ON l.record_id = h.id
		WHERE l.child_task_id = ? AND h.cleared = 0 AND `+latestOnly+`
		ORDER BY h.task_id`, childID)
	if err != nil {
		return nil, fmt.Errorf("parents of %s: %w", childID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) answers(ctx context.Context, q string, args ...any) ([]*models.AnswerRecord, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var recs []*models.AnswerRecord
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := checkRowsErr(rows); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Close before loading links: SQLite runs on a single connection.
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := s.loadLinks(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// loadLinks fills AnsweredByTasks in link order.
func (s *SQLStore) loadLinks(ctx context.Context, recs []*models.AnswerRecord) error {
	if len(recs) == 0 {
		return nil
	}
	byID := make(map[string]*models.AnswerRecord, len(recs))
	args := make([]any, 0, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
		args = append(args, r.ID)
	}

	rows, err := s.query(ctx, `
		SELECT record_id, child_task_id FROM answer_history_tasks
		WHERE record_id IN (`+placeholders(len(args))+`)
		ORDER BY record_id, position`, args...)
	if err != nil {
		return fmt.Errorf("load answer links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID, child string
		if err := rows.Scan(&recordID, &child); err != nil {
			return fmt.Errorf("scan answer link: %w", err)
		}
		if r := byID[recordID]; r != nil {
			r.AnsweredByTasks = append(r.AnsweredByTasks, child)
		}
	}
	return checkRowsErr(rows)
}

func scanAnswer(row scanner) (*models.AnswerRecord, error) {
	var rec models.AnswerRecord
	var value, sha, name, contentType sql.NullString
	var size sql.NullInt64
	var skipped, cleared int
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.TaskID, &rec.QuestionKey, &rec.Seq, &value,
		&sha, &name, &contentType, &size,
		&skipped, &cleared, &rec.ActorID, &createdAt); err != nil {
		return nil, err
	}
	if value.Valid {
		if err := json.Unmarshal([]byte(value.String), &rec.Value); err != nil {
			return nil, fmt.Errorf("decode answer %s: %w", rec.ID, err)
		}
	}
	if sha.Valid {
		rec.AnsweredByFile = &models.FileRef{
			SHA256:      sha.String,
			Name:        name.String,
			ContentType: contentType.String,
			Size:        size.Int64,
		}
	}
	rec.Skipped = skipped != 0
	rec.Cleared = cleared != 0
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}
