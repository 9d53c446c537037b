package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/josephgoksu/guidedmodules/internal/answer"
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// FileUpload is the content of a file answer.
type FileUpload struct {
	Name        string
	ContentType string
	Content     []byte
}

// Proposal is a requested mutation of one question of one task.
type Proposal struct {
	TaskID      string
	QuestionKey string
	Method      answer.Method

	// Value answers plain questions.
	Value any
	// Tasks answers module and module-set questions by reference.
	Tasks []string
	// NewTask creates a child task and links it instead of Tasks.
	NewTask bool
	// File answers file questions.
	File *FileUpload
}

// ApplyResult reports a mutation.
type ApplyResult struct {
	Task    *models.Task
	Outcome *answer.Outcome
	// Child is the task created for a NewTask proposal.
	Child *models.Task
	// Resolution is the task's state after the mutation.
	Resolution *resolver.Resolution
	// Events are the instrumentation events recorded.
	Events []*models.Event
}

// ApplyAnswer validates and applies p. Nothing is written unless every
// check passes.
func (e *Engine) ApplyAnswer(ctx context.Context, actor Actor, p Proposal) (*ApplyResult, error) {
	var result *ApplyResult
	err := e.inTx(ctx, func(s *session) error {
		var err error
		result, err = s.apply(ctx, actor, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("answer applied",
		"task", p.TaskID, "question", p.QuestionKey, "method", p.Method,
		"event", result.Outcome.Event, "actor", actor.String())
	return result, nil
}

func (s *session) apply(ctx context.Context, actor Actor, p Proposal) (*ApplyResult, error) {
	t, err := s.graph.Task(ctx, p.TaskID, true)
	if err != nil {
		return nil, err
	}
	if err := s.graph.CheckWritable(ctx, actor, t); err != nil {
		return nil, err
	}
	m, err := s.graph.Module(t)
	if err != nil {
		return nil, types.WrapConfigurationError(err, "task %s uses module %s@%d", t.ID, t.ModuleKey, t.ModuleVersion)
	}
	q, ok := m.Question(p.QuestionKey)
	if !ok {
		return nil, types.NewValidationError("module %s has no question %q", m.Ref(), p.QuestionKey)
	}

	base := answer.Proposal{TaskID: t.ID, QuestionKey: q.Key, ActorID: actor.UserID}
	result := &ApplyResult{Task: t}

	switch p.Method {
	case answer.MethodClear:
		result.Outcome, err = s.answers.Clear(ctx, base)
	case answer.MethodSkip:
		if q.Required {
			return nil, types.NewValidationError("question %s is required and cannot be skipped", q.Key)
		}
		result.Outcome, err = s.answers.Skip(ctx, base)
	case answer.MethodSave, "":
		result.Outcome, result.Child, err = s.save(ctx, actor, t, q, p, base)
	default:
		return nil, types.NewValidationError("unknown method %q", p.Method)
	}
	if err != nil {
		return nil, err
	}

	if err := s.afterMutation(ctx, actor, t, q, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *session) save(ctx context.Context, actor Actor, t *models.Task, q *module.Question, p Proposal, base answer.Proposal) (*answer.Outcome, *models.Task, error) {
	if p.NewTask && !q.IsReference() {
		return nil, nil, types.NewValidationError("question %s is %s, not answered by tasks", q.Key, q.Type)
	}
	switch {
	case q.IsReference():
		if p.NewTask {
			child, out, err := s.graph.CreateChild(ctx, actor, t, q.Key)
			return out, child, err
		}
		if _, err := s.graph.ValidateReferences(ctx, actor, t, q, p.Tasks); err != nil {
			return nil, nil, err
		}
		base.Tasks = p.Tasks
		if base.Tasks == nil {
			base.Tasks = []string{}
		}
		out, err := s.answers.Save(ctx, base)
		return out, nil, err

	case q.Type == module.TypeFile:
		ref, err := s.storeFile(ctx, q, p.File)
		if err != nil {
			return nil, nil, err
		}
		base.File = ref
		out, err := s.answers.Save(ctx, base)
		return out, nil, err

	case q.Type == module.TypeExternalFunction:
		v, err := s.callFunction(ctx, t, q)
		if err != nil {
			return nil, nil, err
		}
		base.Value = v
		out, err := s.answers.Save(ctx, base)
		return out, nil, err
	}

	v, err := q.Spec.Normalize(p.Value)
	if err != nil {
		return nil, nil, err
	}
	base.Value = v
	out, err := s.answers.Save(ctx, base)
	return out, nil, err
}

// storeFile validates an upload against the question and stores its
// content by digest.
func (s *session) storeFile(ctx context.Context, q *module.Question, f *FileUpload) (*models.FileRef, error) {
	if f == nil {
		return nil, types.NewValidationError("question %s needs an uploaded file", q.Key)
	}
	sum := sha256.Sum256(f.Content)
	v, err := q.Spec.Normalize(&models.FileRef{
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        int64(len(f.Content)),
		SHA256:      hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return nil, err
	}
	ref := v.(*models.FileRef)
	if err := s.repo.PutFile(ctx, ref, f.Content); err != nil {
		return nil, err
	}
	return ref, nil
}

// callFunction evaluates an external-function question over the task's
// current values.
func (s *session) callFunction(ctx context.Context, t *models.Task, q *module.Question) (any, error) {
	spec := q.Spec.(*module.ExternalFunctionSpec)
	fn, ok := s.e.functions.Lookup(spec.Function)
	if !ok {
		return nil, types.NewConfigurationError("question %s calls unknown function %q", q.Key, spec.Function)
	}
	res, err := s.resolve(ctx, t)
	if err != nil {
		return nil, err
	}
	if st := res.Status(q.Key); st != nil && st.Status == resolver.StatusUnreachable {
		return nil, types.NewValidationError("question %s is not answerable yet", q.Key)
	}
	v, err := fn(ctx, FunctionInput{Task: t, Question: q, Values: res.Values})
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", spec.Function, err)
	}
	return q.Spec.Normalize(v)
}

// CreateSubtask creates a task answering a module or module-set question of
// the parent and links it.
func (e *Engine) CreateSubtask(ctx context.Context, actor Actor, parentID, questionKey string) (*models.Task, error) {
	res, err := e.ApplyAnswer(ctx, actor, Proposal{
		TaskID:      parentID,
		QuestionKey: questionKey,
		Method:      answer.MethodSave,
		NewTask:     true,
	})
	if err != nil {
		return nil, err
	}
	if res.Child == nil {
		return nil, types.NewValidationError("question %s is not answered by tasks", questionKey)
	}
	return res.Child, nil
}
