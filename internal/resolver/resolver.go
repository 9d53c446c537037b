// Package resolver computes the answer set of a task: which questions are
// answered, which can be answered now, which are not yet reachable, and the
// values imputed for questions that will not be asked.
//
// Resolution is a pure function of the module and the effective answers; it
// is recomputed on every read and never cached.
package resolver

import (
	"context"
	"fmt"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// Status is the resolution state of one question.
type Status string

const (
	// StatusAnswered covers saved and skipped answers.
	StatusAnswered Status = "answered"
	// StatusImputed means the question will not be asked; Value holds the
	// imputed value (null unless the module defines one).
	StatusImputed Status = "imputed"
	// StatusCanAnswer means every dependency is known and the question is visible.
	StatusCanAnswer Status = "can-answer"
	// StatusUnreachable means some dependency is still pending.
	StatusUnreachable Status = "not-yet-reachable"
)

// Known reports whether the question has a settled value.
func (s Status) Known() bool {
	return s == StatusAnswered || s == StatusImputed
}

// QuestionStatus is the resolution of one question.
type QuestionStatus struct {
	Question *module.Question
	Status   Status
	Value    any
	Skipped  bool
	// Record is the effective stored answer, if any. It is kept even when an
	// imputation overrides it.
	Record     *models.AnswerRecord
	Overridden bool
	// ImputedBy is "ask_if" or "impute[n]" for imputed questions.
	ImputedBy string
}

// Key returns the question key.
func (s *QuestionStatus) Key() string { return s.Question.Key }

// Resolution is the computed answer set of a task.
type Resolution struct {
	Module *module.Module
	// Statuses lists every question in definition order.
	Statuses []*QuestionStatus
	// Key lists in resolution order.
	Answered    []string
	Imputed     []string
	CanAnswer   []string
	Unreachable []string
	// Values holds answered and imputed values by key.
	Values   map[string]any
	Complete bool

	byKey map[string]*QuestionStatus
}

// Status returns the resolution of a question, or nil for unknown keys.
func (r *Resolution) Status(key string) *QuestionStatus {
	return r.byKey[key]
}

// Next returns the first question that can be answered now, or nil.
func (r *Resolution) Next() *QuestionStatus {
	if len(r.CanAnswer) == 0 {
		return nil
	}
	return r.byKey[r.CanAnswer[0]]
}

// Pending returns the keys of questions without a settled value.
func (r *Resolution) Pending() []string {
	out := make([]string, 0, len(r.CanAnswer)+len(r.Unreachable))
	out = append(out, r.CanAnswer...)
	return append(out, r.Unreachable...)
}

// ChildResolver turns the child tasks answering a module or module-set
// question into the value conditions and templates see. For module questions
// taskIDs has exactly one element.
type ChildResolver func(ctx context.Context, q *module.Question, taskIDs []string) (any, error)

// Options configures Resolve.
type Options struct {
	// Children resolves reference answers. When nil, reference questions
	// resolve to their task IDs.
	Children ChildResolver
}

// Resolve computes the answer set of a task whose effective answers are
// given by question key. Answers for keys the module does not define are
// ignored. Conditions that cannot be evaluated are configuration errors.
func Resolve(ctx context.Context, m *module.Module, answers map[string]*models.AnswerRecord, opts Options) (*Resolution, error) {
	if err := m.Prepare(ctx); err != nil {
		return nil, err
	}

	res := &Resolution{
		Module: m,
		Values: map[string]any{},
		byKey:  make(map[string]*QuestionStatus, len(m.Questions)),
	}

	for _, q := range m.ResolutionOrder() {
		st, err := resolveQuestion(ctx, q, answers[q.Key], res, opts)
		if err != nil {
			return nil, err
		}
		res.byKey[q.Key] = st

		switch st.Status {
		case StatusAnswered:
			res.Answered = append(res.Answered, q.Key)
			res.Values[q.Key] = st.Value
		case StatusImputed:
			res.Imputed = append(res.Imputed, q.Key)
			res.Values[q.Key] = st.Value
		case StatusCanAnswer:
			res.CanAnswer = append(res.CanAnswer, q.Key)
		case StatusUnreachable:
			res.Unreachable = append(res.Unreachable, q.Key)
		}
	}

	res.Statuses = make([]*QuestionStatus, len(m.Questions))
	for i, q := range m.Questions {
		res.Statuses[i] = res.byKey[q.Key]
	}
	res.Complete = len(res.CanAnswer) == 0 && len(res.Unreachable) == 0
	return res, nil
}

func resolveQuestion(ctx context.Context, q *module.Question, rec *models.AnswerRecord, res *Resolution, opts Options) (*QuestionStatus, error) {
	st := &QuestionStatus{Question: q}
	if rec.Effective() {
		st.Record = rec
	}

	for _, dep := range q.Dependencies() {
		ds := res.byKey[dep]
		if ds == nil || !ds.Status.Known() {
			st.Status = StatusUnreachable
			return st, nil
		}
	}

	for i, rule := range q.Impute {
		ok, err := rule.Compiled().Eval(ctx, res.Values)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.Key, err)
		}
		if ok {
			st.Status = StatusImputed
			st.Value = rule.Value
			st.ImputedBy = fmt.Sprintf("impute[%d]", i)
			st.Overridden = st.Record != nil
			return st, nil
		}
	}

	if c := q.AskCondition(); c != nil {
		ok, err := c.Eval(ctx, res.Values)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.Key, err)
		}
		if !ok {
			st.Status = StatusImputed
			st.Value = q.Default
			st.ImputedBy = "ask_if"
			st.Overridden = st.Record != nil
			return st, nil
		}
	}

	if st.Record == nil {
		st.Status = StatusCanAnswer
		return st, nil
	}

	st.Status = StatusAnswered
	if st.Record.Skipped {
		st.Skipped = true
		return st, nil
	}
	value, err := answerValue(ctx, q, st.Record, opts)
	if err != nil {
		return nil, err
	}
	st.Value = value
	return st, nil
}

// answerValue is the value conditions and templates see for a stored answer.
func answerValue(ctx context.Context, q *module.Question, rec *models.AnswerRecord, opts Options) (any, error) {
	switch {
	case q.IsReference():
		ids := rec.AnsweredByTasks
		if q.Type == module.TypeModule && len(ids) != 1 {
			return nil, types.NewValidationError("question %s must be answered by exactly one task, has %d", q.Key, len(ids))
		}
		if opts.Children == nil {
			if q.Type == module.TypeModule {
				return ids[0], nil
			}
			out := make([]any, len(ids))
			for i, id := range ids {
				out[i] = id
			}
			return out, nil
		}
		return opts.Children(ctx, q, ids)
	case rec.AnsweredByFile != nil:
		f := rec.AnsweredByFile
		return map[string]any{
			"name":         f.Name,
			"content_type": f.ContentType,
			"size":         f.Size,
			"sha256":       f.SHA256,
		}, nil
	}
	return rec.Value, nil
}
