package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

const reportYAML = `
key: report
version: 1
title: Report
introduction: "Hello {{.name}}"
questions:
  - {key: name, type: text, title: Name}
  - key: cloud
    type: yesno
    title: Cloud
  - key: provider
    type: choice
    title: Provider
    prompt: "Which provider hosts {{.name}}?"
    ask_if: 'input.cloud == "yes"'
    choices:
      - {key: aws, text: Amazon Web Services}
      - {key: gcp, text: Google Cloud}
  - key: regions
    type: multiple-choice
    title: Regions
    choices: [{key: east, text: East}, {key: west, text: West}]
documents:
  - id: summary
    title: Summary
    template: |
      # {{.name}}
      Cloud: {{yesno .cloud}}
      Provider: {{choice "provider" .provider}}
      Regions: {{join .regions ", "}}
      Notes: {{default "none" .provider}}
  - id: broken
    title: Broken
    template: "{{.nonexistent}}"
  - id: plain
    title: Plain
    format: text
    template: "<{{.name}}>"
`

func resolved(t *testing.T, answers map[string]*models.AnswerRecord) *resolver.Resolution {
	t.Helper()
	m, err := module.Parse([]byte(reportYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	res, err := resolver.Resolve(context.Background(), m, answers, resolver.Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return res
}

func complete(t *testing.T) *resolver.Resolution {
	return resolved(t, map[string]*models.AnswerRecord{
		"name":     {Value: "Acme"},
		"cloud":    {Value: "yes"},
		"provider": {Value: "gcp"},
		"regions":  {Value: []any{"east", "west"}},
	})
}

func document(t *testing.T, res *resolver.Resolution, id string) *module.Document {
	t.Helper()
	doc, ok := res.Module.Document(id)
	if !ok {
		t.Fatalf("document %s not found", id)
	}
	return doc
}

func TestRender_Markdown(t *testing.T) {
	res := complete(t)
	out, err := Render(res, document(t, res, "summary"), FormatMarkdown, Options{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"# Acme", "Cloud: Yes", "Provider: Google Cloud", "Regions: east, west", "Notes: gcp"} {
		if !strings.Contains(out.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, out.Body)
		}
	}
	if out.Format != FormatMarkdown || out.Title != "Summary" {
		t.Errorf("Document = %+v", out)
	}
}

func TestRender_ImputedAndSkippedRenderEmpty(t *testing.T) {
	res := resolved(t, map[string]*models.AnswerRecord{
		"name":    {Value: "Acme"},
		"cloud":   {Value: "no"},
		"regions": {Skipped: true},
	})
	if !res.Complete {
		t.Fatalf("resolution incomplete: %v", res.Pending())
	}
	out, err := Render(res, document(t, res, "summary"), FormatMarkdown, Options{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Provider: \n", "Regions: \n", "Notes: none"} {
		if !strings.Contains(out.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, out.Body)
		}
	}
}

func TestRender_IncompleteTask(t *testing.T) {
	res := resolved(t, map[string]*models.AnswerRecord{"name": {Value: "Acme"}})
	doc := document(t, res, "summary")

	_, err := Render(res, doc, FormatMarkdown, Options{})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("Render() error = %v, want validation error", err)
	}

	out, err := Render(res, doc, FormatMarkdown, Options{AllowIncomplete: true})
	if err != nil {
		t.Fatalf("Render(AllowIncomplete) error = %v", err)
	}
	if !strings.Contains(out.Body, "Cloud: \n") {
		t.Errorf("pending key did not render empty:\n%s", out.Body)
	}
}

func TestRender_UnknownVariableIsConfigurationError(t *testing.T) {
	res := complete(t)
	_, err := Render(res, document(t, res, "broken"), FormatMarkdown, Options{})
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("Render() error = %v, want configuration error", err)
	}
}

func TestRender_HTML(t *testing.T) {
	res := complete(t)
	out, err := Render(res, document(t, res, "summary"), FormatHTML, Options{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out.Body, "<h1>Acme</h1>") {
		t.Errorf("HTML body = %s", out.Body)
	}

	out, err = Render(res, document(t, res, "plain"), FormatHTML, Options{})
	if err != nil {
		t.Fatalf("Render(plain) error = %v", err)
	}
	if out.Body != "<pre>&lt;Acme&gt;</pre>\n" {
		t.Errorf("text source as HTML = %q", out.Body)
	}
}

func TestRenderPromptAndIntroduction(t *testing.T) {
	res := complete(t)
	q, _ := res.Module.Question("provider")
	prompt, err := RenderPrompt(res, q)
	if err != nil {
		t.Fatalf("RenderPrompt() error = %v", err)
	}
	if prompt != "Which provider hosts Acme?" {
		t.Errorf("RenderPrompt() = %q", prompt)
	}

	q, _ = res.Module.Question("cloud")
	if prompt, _ := RenderPrompt(res, q); prompt != "Cloud" {
		t.Errorf("RenderPrompt() without prompt = %q, want title", prompt)
	}

	empty := resolved(t, nil)
	intro, err := RenderIntroduction(empty)
	if err != nil {
		t.Fatalf("RenderIntroduction() error = %v", err)
	}
	if intro != "Hello " {
		t.Errorf("RenderIntroduction() = %q", intro)
	}
}

const sourcingYAML = `
key: sourcing
version: 1
title: Sourcing
questions:
  - {key: outsourced, type: yesno, title: Outsourced}
  - key: vendor
    type: module
    title: Vendor
    module: contact
    ask_if: 'input.outsourced == "yes"'
  - {key: vendors, type: module-set, title: Vendors, module: contact}
  - key: tags
    type: multiple-choice
    title: Tags
    choices: [{key: a, text: A}, {key: b, text: B}]
  - {key: contract, type: file, title: Contract}
documents:
  - id: summary
    title: Summary
    template: |
      Vendor: [{{.vendor.name}}] [{{.vendor.address.city}}] [{{.vendor.manager.name}}]
      {{range .vendors}}- {{.name}}
      {{else}}No vendors
      {{end}}Tags: {{range .tags}}{{.}} {{end}}
      Contract: [{{.contract.name}}]
`

const contactYAML = `
key: contact
version: 1
title: Contact
questions:
  - {key: name, type: text, title: Name}
  - {key: address, type: module, title: Address, module: address}
  - {key: manager, type: module, title: Manager, module: contact}
`

const addressYAML = `
key: address
version: 1
title: Address
questions:
  - {key: city, type: text, title: City}
`

func lookup(t *testing.T, sources ...string) ModuleLookup {
	t.Helper()
	mods := map[string]*module.Module{}
	for _, src := range sources {
		m, err := module.Parse([]byte(src))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		mods[m.Key] = m
	}
	return func(key string) (*module.Module, error) {
		if m, ok := mods[key]; ok {
			return m, nil
		}
		return nil, types.NewNotFoundError("module %q is not loaded", key)
	}
}

func sourcing(t *testing.T, answers map[string]*models.AnswerRecord, opts resolver.Options) *resolver.Resolution {
	t.Helper()
	m, err := module.Parse([]byte(sourcingYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	res, err := resolver.Resolve(context.Background(), m, answers, opts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Complete {
		t.Fatalf("resolution incomplete: %v", res.Pending())
	}
	return res
}

func TestRender_UnansweredReferencesRenderEmpty(t *testing.T) {
	res := sourcing(t, map[string]*models.AnswerRecord{
		"outsourced": {Value: "no"},
		"vendors":    {Skipped: true},
		"tags":       {Skipped: true},
		"contract":   {Skipped: true},
	}, resolver.Options{})

	opts := Options{Modules: lookup(t, contactYAML, addressYAML)}
	out, err := Render(res, document(t, res, "summary"), FormatMarkdown, opts)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "Vendor: [] [] []\nNo vendors\nTags: \nContract: []\n"
	if out.Body != want {
		t.Errorf("Body = %q, want %q", out.Body, want)
	}
}

func TestRender_UnknownAnswerModuleRendersEmptyMap(t *testing.T) {
	res := sourcing(t, map[string]*models.AnswerRecord{
		"outsourced": {Value: "no"},
		"vendors":    {Skipped: true},
		"tags":       {Skipped: true},
		"contract":   {Skipped: true},
	}, resolver.Options{})

	data := Data(res, Options{})
	vendor, ok := data["vendor"].(map[string]any)
	if !ok || len(vendor) != 0 {
		t.Errorf("vendor = %#v, want empty map", data["vendor"])
	}
	if vendors, ok := data["vendors"].([]any); !ok || len(vendors) != 0 {
		t.Errorf("vendors = %#v, want empty list", data["vendors"])
	}
}

func TestRender_AnsweredReferenceFillsNestedFields(t *testing.T) {
	children := func(_ context.Context, q *module.Question, ids []string) (any, error) {
		child := map[string]any{"name": "Initech", "address": nil, "manager": nil}
		if q.Type == module.TypeModule {
			return child, nil
		}
		out := make([]any, len(ids))
		for i := range ids {
			out[i] = map[string]any{"name": nil, "address": nil, "manager": nil}
		}
		return out, nil
	}
	res := sourcing(t, map[string]*models.AnswerRecord{
		"outsourced": {Value: "yes"},
		"vendor":     {AnsweredByTasks: []string{"task-00000001"}},
		"vendors":    {AnsweredByTasks: []string{"task-00000002"}},
		"tags":       {Value: []any{"a", "b"}},
		"contract":   {Skipped: true},
	}, resolver.Options{Children: children})

	opts := Options{Modules: lookup(t, contactYAML, addressYAML)}
	out, err := Render(res, document(t, res, "summary"), FormatMarkdown, opts)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "Vendor: [Initech] [] []\n- \nTags: a b \nContract: []\n"
	if out.Body != want {
		t.Errorf("Body = %q, want %q", out.Body, want)
	}
}

func TestFuncs_FloatsPrintInFullDecimal(t *testing.T) {
	if got := join([]any{1e21, 2.5}, ", "); got != "1000000000000000000000, 2.5" {
		t.Errorf("join() = %q", got)
	}
	if got := dflt("none", float64(1e21)); describe(got) != "1000000000000000000000" {
		t.Errorf("default() = %v", got)
	}
	if got := describe(float64(42)); got != "42" {
		t.Errorf("describe(42.0) = %q", got)
	}
}

func TestData_BlanksNestedNulls(t *testing.T) {
	got := blank(map[string]any{"a": nil, "b": []any{nil, "x"}})
	m := got.(map[string]any)
	if m["a"] != "" {
		t.Errorf("a = %v", m["a"])
	}
	if l := m["b"].([]any); l[0] != "" || l[1] != "x" {
		t.Errorf("b = %v", l)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatMarkdown, false},
		{"HTML", FormatHTML, false},
		{"text", FormatText, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
