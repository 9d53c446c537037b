// Package module defines guided modules: versioned questionnaires made of
// typed questions, visibility conditions and output document templates.
package module

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/guidedmodules/internal/condition"
)

// ProjectModuleKey is the module every project's root task instantiates.
const ProjectModuleKey = "project"

var (
	identPattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	moduleKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-/]*$`)
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("modulekey", func(fl validator.FieldLevel) bool {
		return moduleKeyPattern.MatchString(fl.Field().String())
	})
}

// Module is a versioned questionnaire definition. It is immutable once
// prepared; edits are published as a new version.
type Module struct {
	Key          string      `yaml:"key" json:"key" validate:"required,modulekey"`
	Version      int         `yaml:"version" json:"version" validate:"required,min=1"`
	Title        string      `yaml:"title" json:"title" validate:"required"`
	Introduction string      `yaml:"introduction,omitempty" json:"introduction,omitempty"`
	Questions    []*Question `yaml:"questions" json:"questions" validate:"required,min=1,dive,required"`
	Documents    []*Document `yaml:"documents,omitempty" json:"documents,omitempty" validate:"dive,required"`

	// Set by the catalog and the definition loader.
	SupersededBy *int   `yaml:"-" json:"supersededBy,omitempty"`
	Fingerprint  string `yaml:"-" json:"fingerprint,omitempty"`
	Source       string `yaml:"-" json:"source,omitempty"`

	once    sync.Once
	prepErr error
	index   map[string]int
	order   []*Question
}

// Document is an output template rendered from a task's resolved answers.
type Document struct {
	ID       string `yaml:"id" json:"id" validate:"required,ident"`
	Title    string `yaml:"title" json:"title"`
	Format   string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=markdown html text"`
	Template string `yaml:"template" json:"template" validate:"required"`
}

// SourceFormat returns the template's authoring format, markdown by default.
func (d *Document) SourceFormat() string {
	if d.Format == "" {
		return "markdown"
	}
	return d.Format
}

// Choice is one option of a choice or multiple-choice question.
type Choice struct {
	Key  string `yaml:"key" json:"key" validate:"required"`
	Text string `yaml:"text" json:"text"`
}

// ImputeRule assigns Value to a question without asking it when Condition holds.
type ImputeRule struct {
	Condition string `yaml:"condition" json:"condition" validate:"required"`
	Value     any    `yaml:"value" json:"value"`

	compiled *condition.Condition
}

// Compiled returns the prepared condition. Nil before Module.Prepare.
func (r *ImputeRule) Compiled() *condition.Condition { return r.compiled }

// Question is one typed prompt of a module.
type Question struct {
	Key      string        `yaml:"key" json:"key" validate:"required,ident"`
	Type     QuestionType  `yaml:"type" json:"type" validate:"required"`
	Title    string        `yaml:"title" json:"title" validate:"required"`
	Prompt   string        `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	AskIf    string        `yaml:"ask_if,omitempty" json:"askIf,omitempty"`
	AskFirst []string      `yaml:"ask_first,omitempty" json:"askFirst,omitempty" validate:"dive,ident"`
	Impute   []*ImputeRule `yaml:"impute,omitempty" json:"impute,omitempty" validate:"dive,required"`
	Default  any           `yaml:"default,omitempty" json:"default,omitempty"`
	Required bool          `yaml:"required,omitempty" json:"required,omitempty"`

	// Spec is the type-specific schema decoded from the same YAML mapping.
	Spec QuestionSpec `yaml:"-" json:"spec" validate:"-"`

	index int
	askIf *condition.Condition
	deps  []string
}

// UnmarshalYAML decodes the common question fields and then the schema
// variant selected by the type tag.
func (q *Question) UnmarshalYAML(node *yaml.Node) error {
	type plain Question
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	spec, err := newSpec(p.Type)
	if err != nil {
		return fmt.Errorf("question %q: %w", p.Key, err)
	}
	if err := node.Decode(spec); err != nil {
		return fmt.Errorf("question %q: decode %s schema: %w", p.Key, p.Type, err)
	}
	*q = Question(p)
	q.Spec = spec
	return nil
}

// Index is the question's position in definition order.
func (q *Question) Index() int { return q.index }

// AskCondition returns the compiled visibility condition, or nil if the
// question is always asked.
func (q *Question) AskCondition() *condition.Condition { return q.askIf }

// Dependencies returns the keys this question structurally depends on, in
// definition order.
func (q *Question) Dependencies() []string {
	out := make([]string, len(q.deps))
	copy(out, q.deps)
	return out
}

// AnswerModule returns the answer-type module key for module and module-set
// questions.
func (q *Question) AnswerModule() (string, bool) {
	if s, ok := q.Spec.(*ModuleSpec); ok {
		return s.Module, true
	}
	return "", false
}

// IsReference reports whether the question is answered by child tasks.
func (q *Question) IsReference() bool {
	return q.Type == TypeModule || q.Type == TypeModuleSet
}

// Question returns the question with the given key.
func (m *Module) Question(key string) (*Question, bool) {
	if m.index != nil {
		i, ok := m.index[key]
		if !ok {
			return nil, false
		}
		return m.Questions[i], true
	}
	for _, q := range m.Questions {
		if q.Key == key {
			return q, true
		}
	}
	return nil, false
}

// Document returns the output document with the given id.
func (m *Module) Document(id string) (*Document, bool) {
	for _, d := range m.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// ResolutionOrder returns the questions in dependency order with ties broken
// by definition order. Prepare must have succeeded.
func (m *Module) ResolutionOrder() []*Question {
	out := make([]*Question, len(m.order))
	copy(out, m.order)
	return out
}

// Ref identifies a module version.
func (m *Module) Ref() string {
	return fmt.Sprintf("%s@%d", m.Key, m.Version)
}

// Prepare validates the definition, compiles its conditions and derives the
// question dependency order. It runs once; later calls return the first
// result. All failures are configuration errors.
func (m *Module) Prepare(ctx context.Context) error {
	m.once.Do(func() {
		m.prepErr = m.prepare(ctx)
	})
	return m.prepErr
}

// Prepared reports whether Prepare has completed successfully.
func (m *Module) Prepared() bool {
	return m.order != nil && m.prepErr == nil
}
