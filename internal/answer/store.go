// Package answer implements the per-(task, question) answer state machine
// with append-only history.
//
// A question moves unanswered -> answered -> cleared (unanswered again), and
// answered -> answered when its value changes. Skipping stores an explicit
// null and counts as answered; clearing removes the effective answer.
package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/guidedmodules/models"
)

// Repository persists answer history. Implementations must never update or
// delete records.
type Repository interface {
	// LatestAnswer returns the most recent record for the pair, cleared or
	// not, or nil if the question has never been touched.
	LatestAnswer(ctx context.Context, taskID, questionKey string) (*models.AnswerRecord, error)
	// LatestAnswers returns the most recent record per question key.
	LatestAnswers(ctx context.Context, taskID string) (map[string]*models.AnswerRecord, error)
	// AppendAnswer stores rec as the newest record of its pair and sets rec.Seq.
	AppendAnswer(ctx context.Context, rec *models.AnswerRecord) error
	// AnswerHistory returns every record of the pair, oldest first.
	AnswerHistory(ctx context.Context, taskID, questionKey string) ([]*models.AnswerRecord, error)
}

// Method is the kind of mutation a caller proposes.
type Method string

const (
	MethodSave  Method = "save"
	MethodSkip  Method = "skip"
	MethodClear Method = "clear"
)

// EventType classifies a mutation for instrumentation.
type EventType string

const (
	EventAnswer EventType = "answer"
	EventChange EventType = "change"
	EventSkip   EventType = "skip"
	EventKeep   EventType = "keep"
	EventClear  EventType = "clear"
)

// State is the effective state of a (task, question) pair.
type State string

const (
	StateUnanswered State = "unanswered"
	StateAnswered   State = "answered"
	StateSkipped    State = "skipped"
)

// StateOf returns the state a latest record puts its question in.
func StateOf(latest *models.AnswerRecord) State {
	switch {
	case !latest.Effective():
		return StateUnanswered
	case latest.Skipped:
		return StateSkipped
	default:
		return StateAnswered
	}
}

// Proposal is a new answer for one question of one task.
type Proposal struct {
	TaskID      string
	QuestionKey string
	ActorID     string
	Value       any
	Tasks       []string
	File        *models.FileRef
}

// Outcome reports what a mutation did.
type Outcome struct {
	Event    EventType
	Changed  bool
	Previous *models.AnswerRecord
	Current  *models.AnswerRecord
}

// Store applies save, skip and clear on top of a Repository.
type Store struct {
	repo Repository
	now  func() time.Time
}

// NewStore creates a Store. Within a transaction, build one over the
// transaction's repository.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Save records p if it differs materially from the current answer.
func (s *Store) Save(ctx context.Context, p Proposal) (*Outcome, error) {
	value, err := Canonical(p.Value)
	if err != nil {
		return nil, err
	}
	rec := s.newRecord(p)
	rec.Value = value
	rec.AnsweredByTasks = append([]string(nil), p.Tasks...)
	rec.AnsweredByFile = p.File
	return s.apply(ctx, rec, EventAnswer)
}

// Skip records an explicit null answer. The question stays answered.
func (s *Store) Skip(ctx context.Context, p Proposal) (*Outcome, error) {
	rec := s.newRecord(p)
	rec.Skipped = true
	return s.apply(ctx, rec, EventSkip)
}

// Clear returns the question to unanswered. Clearing an unanswered question
// is a no-op.
func (s *Store) Clear(ctx context.Context, p Proposal) (*Outcome, error) {
	latest, err := s.repo.LatestAnswer(ctx, p.TaskID, p.QuestionKey)
	if err != nil {
		return nil, fmt.Errorf("load current answer: %w", err)
	}
	if !latest.Effective() {
		return &Outcome{Event: EventKeep, Current: latest}, nil
	}
	rec := s.newRecord(p)
	rec.Cleared = true
	if err := s.repo.AppendAnswer(ctx, rec); err != nil {
		return nil, fmt.Errorf("append answer: %w", err)
	}
	return &Outcome{Event: EventClear, Changed: true, Previous: latest, Current: rec}, nil
}

// Apply dispatches on method.
func (s *Store) Apply(ctx context.Context, method Method, p Proposal) (*Outcome, error) {
	switch method {
	case MethodSave:
		return s.Save(ctx, p)
	case MethodSkip:
		return s.Skip(ctx, p)
	case MethodClear:
		return s.Clear(ctx, p)
	}
	return nil, fmt.Errorf("unknown answer method %q", method)
}

// Current returns the effective answer, or nil if the question is unanswered.
func (s *Store) Current(ctx context.Context, taskID, questionKey string) (*models.AnswerRecord, error) {
	latest, err := s.repo.LatestAnswer(ctx, taskID, questionKey)
	if err != nil {
		return nil, err
	}
	if !latest.Effective() {
		return nil, nil
	}
	return latest, nil
}

// Effective returns the effective answers of a task keyed by question.
// Cleared questions are absent.
func (s *Store) Effective(ctx context.Context, taskID string) (map[string]*models.AnswerRecord, error) {
	latest, err := s.repo.LatestAnswers(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.AnswerRecord, len(latest))
	for k, rec := range latest {
		if rec.Effective() {
			out[k] = rec
		}
	}
	return out, nil
}

// History returns every record of a question, oldest first.
func (s *Store) History(ctx context.Context, taskID, questionKey string) ([]*models.AnswerRecord, error) {
	return s.repo.AnswerHistory(ctx, taskID, questionKey)
}

func (s *Store) newRecord(p Proposal) *models.AnswerRecord {
	return &models.AnswerRecord{
		ID:          uuid.New().String(),
		TaskID:      p.TaskID,
		QuestionKey: p.QuestionKey,
		ActorID:     p.ActorID,
		CreatedAt:   s.now(),
	}
}

// apply appends rec unless it matches the effective answer. fresh is the
// event reported when there was no effective answer before.
func (s *Store) apply(ctx context.Context, rec *models.AnswerRecord, fresh EventType) (*Outcome, error) {
	latest, err := s.repo.LatestAnswer(ctx, rec.TaskID, rec.QuestionKey)
	if err != nil {
		return nil, fmt.Errorf("load current answer: %w", err)
	}

	var prev *models.AnswerRecord
	if latest.Effective() {
		prev = latest
	}
	if prev != nil && Same(prev, rec) {
		return &Outcome{Event: EventKeep, Previous: prev, Current: prev}, nil
	}

	if err := s.repo.AppendAnswer(ctx, rec); err != nil {
		return nil, fmt.Errorf("append answer: %w", err)
	}

	event := fresh
	if prev != nil && fresh == EventAnswer {
		event = EventChange
	}
	return &Outcome{Event: event, Changed: true, Previous: prev, Current: rec}, nil
}
