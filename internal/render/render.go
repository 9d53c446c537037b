// Package render produces output documents, question prompts and module
// introductions from a task's resolved answers.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"
	"text/template"

	"gitlab.com/golang-commonmark/markdown"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/types"
)

// Format is an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// ParseFormat validates a format name. The empty string selects markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatHTML, FormatText:
		return f, nil
	}
	return "", types.NewValidationError("unknown output format %q (want markdown, html or text)", s)
}

// Options controls rendering.
type Options struct {
	// AllowIncomplete renders tasks with pending questions; their keys
	// render empty instead of being absent.
	AllowIncomplete bool

	// Modules finds answer-type modules so that an unanswered module
	// question renders as a map of empty fields. Without it only the
	// task's own module is known.
	Modules ModuleLookup
}

// Document is a rendered output document.
type Document struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Format Format `json:"format"`
	Body   string `json:"body"`
}

var md = markdown.New(
	markdown.HTML(false),
	markdown.Tables(true),
	markdown.Linkify(true),
	markdown.Typographer(false),
)

// Render renders one output document of the resolution's module. An
// incomplete task is a validation error unless AllowIncomplete is set. A
// template referencing a key that neither resolution nor imputation
// provides is a configuration error.
func Render(res *resolver.Resolution, doc *module.Document, format Format, opts Options) (*Document, error) {
	if format == "" {
		format = FormatMarkdown
	}
	if !res.Complete && !opts.AllowIncomplete {
		return nil, types.NewValidationError("task has unanswered questions: %s", strings.Join(res.Pending(), ", ")).
			With("document", doc.ID)
	}

	src, err := execute(res, "document "+doc.ID, doc.Template, opts)
	if err != nil {
		return nil, err
	}

	body, err := convert(src, doc.SourceFormat(), format)
	if err != nil {
		return nil, err
	}
	return &Document{ID: doc.ID, Title: doc.Title, Format: format, Body: body}, nil
}

// RenderPrompt renders a question's prompt (or its title when the prompt is
// empty) against the answers known so far.
func RenderPrompt(res *resolver.Resolution, q *module.Question) (string, error) {
	if q.Prompt == "" {
		return q.Title, nil
	}
	return execute(res, "question "+q.Key, q.Prompt, Options{AllowIncomplete: true})
}

// RenderIntroduction renders the module introduction against the answers
// known so far.
func RenderIntroduction(res *resolver.Resolution) (string, error) {
	if res.Module.Introduction == "" {
		return "", nil
	}
	return execute(res, "introduction", res.Module.Introduction, Options{AllowIncomplete: true})
}

func execute(res *resolver.Resolution, name, text string, opts Options) (string, error) {
	m := res.Module
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(funcs(m)).
		Parse(text)
	if err != nil {
		return "", types.WrapConfigurationError(err, "module %s: parse %s template", m.Ref(), name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Data(res, opts)); err != nil {
		return "", types.WrapConfigurationError(err, "module %s: render %s", m.Ref(), name)
	}
	return buf.String(), nil
}

func convert(src, from string, to Format) (string, error) {
	if to != FormatHTML {
		return src, nil
	}
	switch from {
	case "html":
		return src, nil
	case "text":
		return "<pre>" + html.EscapeString(src) + "</pre>\n", nil
	case "markdown":
		return md.RenderToString([]byte(src)), nil
	}
	return "", types.NewConfigurationError("unknown document source format %q", from)
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
