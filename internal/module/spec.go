package module

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// QuestionType is the tag selecting a question's schema variant.
type QuestionType string

const (
	TypeText             QuestionType = "text"
	TypeLongText         QuestionType = "longtext"
	TypeEmail            QuestionType = "email"
	TypeURL              QuestionType = "url"
	TypeInteger          QuestionType = "integer"
	TypeReal             QuestionType = "real"
	TypeYesNo            QuestionType = "yesno"
	TypeDate             QuestionType = "date"
	TypeChoice           QuestionType = "choice"
	TypeMultipleChoice   QuestionType = "multiple-choice"
	TypeModule           QuestionType = "module"
	TypeModuleSet        QuestionType = "module-set"
	TypeFile             QuestionType = "file"
	TypeExternalFunction QuestionType = "external-function"
	TypeInterstitial     QuestionType = "interstitial"
)

// DateLayout is the accepted format of date answers.
const DateLayout = "2006-01-02"

// QuestionSpec is the type-specific part of a question. Implementations
// check their own schema at load time and normalise proposed values at save
// time, returning validation errors for values the user may correct.
type QuestionSpec interface {
	QuestionType() QuestionType
	Normalize(v any) (any, error)
	check() error
}

func newSpec(t QuestionType) (QuestionSpec, error) {
	switch t {
	case TypeText, TypeLongText:
		return &TextSpec{Type: t}, nil
	case TypeEmail, TypeURL:
		return &FormatSpec{Type: t}, nil
	case TypeInteger, TypeReal:
		return &NumberSpec{Type: t}, nil
	case TypeYesNo:
		return &YesNoSpec{}, nil
	case TypeDate:
		return &DateSpec{}, nil
	case TypeChoice:
		return &ChoiceSpec{}, nil
	case TypeMultipleChoice:
		return &MultipleChoiceSpec{}, nil
	case TypeModule, TypeModuleSet:
		return &ModuleSpec{Type: t}, nil
	case TypeFile:
		return &FileSpec{}, nil
	case TypeExternalFunction:
		return &ExternalFunctionSpec{}, nil
	case TypeInterstitial:
		return &InterstitialSpec{}, nil
	case "":
		return nil, fmt.Errorf("missing question type")
	default:
		return nil, fmt.Errorf("unknown question type %q", t)
	}
}

// TextSpec covers text and longtext questions.
type TextSpec struct {
	Type      QuestionType `yaml:"-" json:"-"`
	MaxLength int          `yaml:"max_length,omitempty" json:"maxLength,omitempty" validate:"min=0"`
}

func (s *TextSpec) QuestionType() QuestionType { return s.Type }

func (s *TextSpec) check() error { return nil }

func (s *TextSpec) Normalize(v any) (any, error) {
	str, err := nonEmptyString(v)
	if err != nil {
		return nil, err
	}
	if s.MaxLength > 0 && utf8.RuneCountInString(str) > s.MaxLength {
		return nil, types.NewValidationError("answer is longer than %d characters", s.MaxLength)
	}
	return str, nil
}

// FormatSpec covers email and url questions, checked with validator tags.
type FormatSpec struct {
	Type QuestionType `yaml:"-" json:"-"`
}

func (s *FormatSpec) QuestionType() QuestionType { return s.Type }

func (s *FormatSpec) check() error { return nil }

func (s *FormatSpec) Normalize(v any) (any, error) {
	str, err := nonEmptyString(v)
	if err != nil {
		return nil, err
	}
	str = strings.TrimSpace(str)
	if err := models.ValidateVar(str, string(s.Type)); err != nil {
		return nil, types.NewValidationError("%q is not a valid %s", str, s.Type)
	}
	return str, nil
}

// NumberSpec covers integer and real questions with optional bounds.
type NumberSpec struct {
	Type QuestionType `yaml:"-" json:"-"`
	Min  *float64     `yaml:"min,omitempty" json:"min,omitempty"`
	Max  *float64     `yaml:"max,omitempty" json:"max,omitempty"`
}

func (s *NumberSpec) QuestionType() QuestionType { return s.Type }

func (s *NumberSpec) check() error {
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		return fmt.Errorf("min %v is greater than max %v", *s.Min, *s.Max)
	}
	return nil
}

func (s *NumberSpec) Normalize(v any) (any, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, types.NewValidationError("%v is not a finite number", v)
	}
	if s.Min != nil && f < *s.Min {
		return nil, types.NewValidationError("must be at least %v", *s.Min)
	}
	if s.Max != nil && f > *s.Max {
		return nil, types.NewValidationError("must be at most %v", *s.Max)
	}
	if s.Type == TypeInteger {
		return wholeNumber(v, f)
	}
	return f, nil
}

// maxWholeNumber is the largest integer a float64, and so every JSON
// reader, holds exactly.
const maxWholeNumber = 1 << 53

// wholeNumber converts an integer answer. f is v as parsed by toFloat, which
// may have rounded v, so integer text is re-read exactly.
func wholeNumber(v any, f float64) (any, error) {
	if f != math.Trunc(f) {
		return nil, types.NewValidationError("%v is not a whole number", v)
	}
	outOfRange := types.NewValidationError("%v is outside the whole number range ±%d", v, int64(maxWholeNumber))
	if math.Abs(f) > maxWholeNumber {
		return nil, outOfRange
	}

	n := int64(f)
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			n = i
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(strings.ReplaceAll(x, ",", "")), 10, 64); err == nil {
			n = i
		}
	}
	if n > maxWholeNumber || n < -maxWholeNumber {
		return nil, outOfRange
	}
	return n, nil
}

// YesNoSpec accepts "yes" and "no".
type YesNoSpec struct{}

func (s *YesNoSpec) QuestionType() QuestionType { return TypeYesNo }

func (s *YesNoSpec) check() error { return nil }

func (s *YesNoSpec) Normalize(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return "yes", nil
		}
		return "no", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "y", "true":
			return "yes", nil
		case "no", "n", "false":
			return "no", nil
		}
	}
	return nil, types.NewValidationError("answer must be yes or no")
}

// DateSpec accepts dates as YYYY-MM-DD.
type DateSpec struct{}

func (s *DateSpec) QuestionType() QuestionType { return TypeDate }

func (s *DateSpec) check() error { return nil }

func (s *DateSpec) Normalize(v any) (any, error) {
	str, err := nonEmptyString(v)
	if err != nil {
		return nil, err
	}
	d, err := time.Parse(DateLayout, strings.TrimSpace(str))
	if err != nil {
		return nil, types.NewValidationError("%q is not a date in YYYY-MM-DD form", str)
	}
	return d.Format(DateLayout), nil
}

// ChoiceSpec selects exactly one choice key.
type ChoiceSpec struct {
	Choices []Choice `yaml:"choices" json:"choices" validate:"required,min=1,dive"`
}

func (s *ChoiceSpec) QuestionType() QuestionType { return TypeChoice }

func (s *ChoiceSpec) check() error { return checkChoices(s.Choices) }

func (s *ChoiceSpec) Normalize(v any) (any, error) {
	str, err := nonEmptyString(v)
	if err != nil {
		return nil, err
	}
	if choiceIndex(s.Choices, str) < 0 {
		return nil, types.NewValidationError("%q is not one of the choices", str)
	}
	return str, nil
}

// Text returns the display text for a choice key.
func (s *ChoiceSpec) Text(key string) string {
	return choiceText(s.Choices, key)
}

// MultipleChoiceSpec selects a set of choice keys. MaxSelect 0 is unbounded.
type MultipleChoiceSpec struct {
	Choices   []Choice `yaml:"choices" json:"choices" validate:"required,min=1,dive"`
	MinSelect int      `yaml:"min,omitempty" json:"min,omitempty" validate:"min=0"`
	MaxSelect int      `yaml:"max,omitempty" json:"max,omitempty" validate:"min=0"`
}

func (s *MultipleChoiceSpec) QuestionType() QuestionType { return TypeMultipleChoice }

func (s *MultipleChoiceSpec) check() error {
	if s.MaxSelect > 0 && s.MinSelect > s.MaxSelect {
		return fmt.Errorf("min %d is greater than max %d", s.MinSelect, s.MaxSelect)
	}
	if s.MinSelect > len(s.Choices) {
		return fmt.Errorf("min %d exceeds the %d choices", s.MinSelect, len(s.Choices))
	}
	return checkChoices(s.Choices)
}

// Normalize returns the selected keys in choice definition order.
func (s *MultipleChoiceSpec) Normalize(v any) (any, error) {
	keys, err := toStrings(v)
	if err != nil {
		return nil, err
	}
	picked := make(map[string]bool, len(keys))
	for _, k := range keys {
		if choiceIndex(s.Choices, k) < 0 {
			return nil, types.NewValidationError("%q is not one of the choices", k)
		}
		if picked[k] {
			return nil, types.NewValidationError("%q was selected more than once", k)
		}
		picked[k] = true
	}
	if len(keys) < s.MinSelect {
		return nil, types.NewValidationError("select at least %d", s.MinSelect)
	}
	if s.MaxSelect > 0 && len(keys) > s.MaxSelect {
		return nil, types.NewValidationError("select at most %d", s.MaxSelect)
	}
	out := make([]string, 0, len(keys))
	for _, c := range s.Choices {
		if picked[c.Key] {
			out = append(out, c.Key)
		}
	}
	return out, nil
}

// Text returns the display text for a choice key.
func (s *MultipleChoiceSpec) Text(key string) string {
	return choiceText(s.Choices, key)
}

// ModuleSpec covers module and module-set questions, answered by child tasks
// whose module key equals Module.
type ModuleSpec struct {
	Type   QuestionType `yaml:"-" json:"-"`
	Module string       `yaml:"module" json:"module" validate:"required,modulekey"`
}

func (s *ModuleSpec) QuestionType() QuestionType { return s.Type }

func (s *ModuleSpec) check() error { return nil }

// Multiple reports whether more than one child task is allowed.
func (s *ModuleSpec) Multiple() bool { return s.Type == TypeModuleSet }

func (s *ModuleSpec) Normalize(v any) (any, error) {
	return nil, types.NewValidationError("%s questions are answered with tasks, not values", s.Type)
}

// FileSpec accepts uploaded file references.
type FileSpec struct {
	MaxSize      int64    `yaml:"max_size,omitempty" json:"maxSize,omitempty" validate:"min=0"`
	ContentTypes []string `yaml:"content_types,omitempty" json:"contentTypes,omitempty"`
}

func (s *FileSpec) QuestionType() QuestionType { return TypeFile }

func (s *FileSpec) check() error { return nil }

func (s *FileSpec) Normalize(v any) (any, error) {
	var ref models.FileRef
	switch x := v.(type) {
	case models.FileRef:
		ref = x
	case *models.FileRef:
		if x == nil {
			return nil, types.NewValidationError("no file was uploaded")
		}
		ref = *x
	default:
		return nil, types.NewValidationError("answer must be an uploaded file")
	}
	if err := models.ValidateStruct(ref); err != nil {
		return nil, types.NewValidationError("invalid file: %v", err)
	}
	if s.MaxSize > 0 && ref.Size > s.MaxSize {
		return nil, types.NewValidationError("file is larger than %d bytes", s.MaxSize)
	}
	if len(s.ContentTypes) > 0 && !containsFold(s.ContentTypes, ref.ContentType) {
		return nil, types.NewValidationError("files of type %q are not accepted", ref.ContentType)
	}
	return &ref, nil
}

// ExternalFunctionSpec computes the answer with a registered function.
type ExternalFunctionSpec struct {
	Function string `yaml:"function" json:"function" validate:"required"`
}

func (s *ExternalFunctionSpec) QuestionType() QuestionType { return TypeExternalFunction }

func (s *ExternalFunctionSpec) check() error { return nil }

// Normalize accepts any JSON-compatible result.
func (s *ExternalFunctionSpec) Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, types.NewValidationError("function result is not JSON-compatible: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, types.NewValidationError("function result is not JSON-compatible: %v", err)
	}
	return out, nil
}

// InterstitialSpec is informational. Acknowledging it stores null.
type InterstitialSpec struct{}

func (s *InterstitialSpec) QuestionType() QuestionType { return TypeInterstitial }

func (s *InterstitialSpec) check() error { return nil }

func (s *InterstitialSpec) Normalize(v any) (any, error) {
	if v != nil {
		return nil, types.NewValidationError("interstitial pages take no answer")
	}
	return nil, nil
}

func nonEmptyString(v any) (string, error) {
	str, ok := v.(string)
	if !ok {
		return "", types.NewValidationError("answer must be text, got %T", v)
	}
	if strings.TrimSpace(str) == "" {
		return "", types.NewValidationError("answer is empty; skip the question instead")
	}
	return str, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(x, ",", "")), 64)
		if err != nil {
			return 0, types.NewValidationError("%q is not a number", x)
		}
		return f, nil
	}
	return 0, types.NewValidationError("answer must be a number, got %T", v)
}

func toStrings(v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, types.NewValidationError("choice keys must be text, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return []string{}, nil
	}
	return nil, types.NewValidationError("answer must be a list of choices, got %T", v)
}

func checkChoices(choices []Choice) error {
	seen := make(map[string]bool, len(choices))
	for _, c := range choices {
		if seen[c.Key] {
			return fmt.Errorf("duplicate choice key %q", c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

func choiceIndex(choices []Choice, key string) int {
	for i, c := range choices {
		if c.Key == key {
			return i
		}
	}
	return -1
}

func choiceText(choices []Choice, key string) string {
	if i := choiceIndex(choices, key); i >= 0 && choices[i].Text != "" {
		return choices[i].Text
	}
	return key
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// Types returns every supported question type, sorted.
func Types() []QuestionType {
	all := []QuestionType{
		TypeText, TypeLongText, TypeEmail, TypeURL, TypeInteger, TypeReal,
		TypeYesNo, TypeDate, TypeChoice, TypeMultipleChoice, TypeModule,
		TypeModuleSet, TypeFile, TypeExternalFunction, TypeInterstitial,
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}
