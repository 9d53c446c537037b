package models

import "time"

// FileRef points at uploaded file content stored by its sha256.
type FileRef struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size" validate:"min=0"`
	SHA256      string `json:"sha256" validate:"required,len=64,hexadecimal"`
}

// AnswerRecord is one entry in the append-only answer history of a
// (task, question) pair. The latest record is the current answer.
type AnswerRecord struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"taskId"`
	QuestionKey     string    `json:"questionKey"`
	Seq             int       `json:"seq"`
	Value           any       `json:"value"`
	AnsweredByTasks []string  `json:"answeredByTasks,omitempty"`
	AnsweredByFile  *FileRef  `json:"answeredByFile,omitempty"`
	Skipped         bool      `json:"skipped,omitempty"`
	Cleared         bool      `json:"cleared,omitempty"`
	ActorID         string    `json:"actorId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Effective reports whether the record counts as an answer. A cleared record
// returns the question to unanswered.
func (r *AnswerRecord) Effective() bool {
	return r != nil && !r.Cleared
}

// Event is one instrumentation record of a user interaction with a task.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Value       *float64       `json:"value,omitempty"`
	ActorID     string         `json:"actorId"`
	ProjectID   string         `json:"projectId,omitempty"`
	TaskID      string         `json:"taskId,omitempty"`
	ModuleKey   string         `json:"moduleKey,omitempty"`
	QuestionKey string         `json:"questionKey,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}
