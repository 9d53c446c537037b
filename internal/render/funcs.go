package render

import (
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/guidedmodules/internal/module"
)

var titleCaser = cases.Title(language.English)

func funcs(m *module.Module) template.FuncMap {
	return template.FuncMap{
		"join":    join,
		"default": dflt,
		"yesno":   yesno,
		"title":   titleCaser.String,
		"choice": func(key string, v any) (string, error) {
			return choiceText(m, key, v)
		},
	}
}

// join renders a list answer as sep-separated text.
func join(list any, sep string) string {
	switch x := list.(type) {
	case []any:
		parts := make([]string, 0, len(x))
		for _, v := range x {
			if s := describe(v); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	case []string:
		return strings.Join(x, sep)
	}
	return describe(list)
}

// dflt returns v, or fallback when v renders empty.
func dflt(fallback, v any) any {
	if v == nil || describe(v) == "" {
		return fallback
	}
	if l, ok := v.([]any); ok && len(l) == 0 {
		return fallback
	}
	return v
}

func yesno(v any) string {
	switch describe(v) {
	case "yes":
		return "Yes"
	case "no":
		return "No"
	}
	return ""
}

// choiceText maps the stored key(s) of a choice or multiple-choice question
// to their display text.
func choiceText(m *module.Module, key string, v any) (string, error) {
	q, ok := m.Question(key)
	if !ok {
		return "", fmt.Errorf("choice: module %s has no question %q", m.Ref(), key)
	}

	var text func(string) string
	switch s := q.Spec.(type) {
	case *module.ChoiceSpec:
		text = s.Text
	case *module.MultipleChoiceSpec:
		text = s.Text
	default:
		return "", fmt.Errorf("choice: question %s is %s, not a choice question", key, q.Type)
	}

	switch x := v.(type) {
	case string:
		if x == "" {
			return "", nil
		}
		return text(x), nil
	case []any:
		parts := make([]string, 0, len(x))
		for _, k := range x {
			parts = append(parts, text(describe(k)))
		}
		return strings.Join(parts, ", "), nil
	}
	return describe(v), nil
}
