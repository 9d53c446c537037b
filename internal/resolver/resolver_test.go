package resolver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

const gatedYAML = `
key: gated
version: 1
title: Gated
questions:
  - {key: a, type: yesno, title: A}
  - {key: b, type: text, title: B, ask_if: 'input.a == "yes"'}
`

func mustModule(t *testing.T, src string) *module.Module {
	t.Helper()
	m, err := module.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := m.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return m
}

func answered(value any) *models.AnswerRecord {
	return &models.AnswerRecord{Value: value}
}

func resolve(t *testing.T, m *module.Module, answers map[string]*models.AnswerRecord) *Resolution {
	t.Helper()
	res, err := Resolve(context.Background(), m, answers, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return res
}

func TestResolve_Unanswered(t *testing.T) {
	res := resolve(t, mustModule(t, gatedYAML), nil)

	if !reflect.DeepEqual(res.CanAnswer, []string{"a"}) {
		t.Errorf("CanAnswer = %v, want [a]", res.CanAnswer)
	}
	if !reflect.DeepEqual(res.Unreachable, []string{"b"}) {
		t.Errorf("Unreachable = %v, want [b]", res.Unreachable)
	}
	if res.Complete {
		t.Error("Complete = true for an unanswered module")
	}
	if next := res.Next(); next == nil || next.Key() != "a" {
		t.Errorf("Next() = %v, want a", next)
	}
}

func TestResolve_FalseConditionImputesNull(t *testing.T) {
	res := resolve(t, mustModule(t, gatedYAML), map[string]*models.AnswerRecord{
		"a": answered("no"),
	})

	if !reflect.DeepEqual(res.Answered, []string{"a"}) {
		t.Errorf("Answered = %v, want [a]", res.Answered)
	}
	if !reflect.DeepEqual(res.Imputed, []string{"b"}) {
		t.Errorf("Imputed = %v, want [b]", res.Imputed)
	}
	v, ok := res.Values["b"]
	if !ok || v != nil {
		t.Errorf("Values[b] = %v (present %v), want null", v, ok)
	}
	if !res.Complete {
		t.Error("Complete = false, want true")
	}
	if res.Next() != nil {
		t.Errorf("Next() = %v, want nil", res.Next().Key())
	}
	if st := res.Status("b"); st.ImputedBy != "ask_if" {
		t.Errorf("b.ImputedBy = %q, want ask_if", st.ImputedBy)
	}
}

func TestResolve_TrueConditionMakesQuestionAnswerable(t *testing.T) {
	res := resolve(t, mustModule(t, gatedYAML), map[string]*models.AnswerRecord{
		"a": answered("yes"),
	})

	if !reflect.DeepEqual(res.CanAnswer, []string{"b"}) {
		t.Errorf("CanAnswer = %v, want [b]", res.CanAnswer)
	}
	if res.Complete {
		t.Error("Complete = true with b pending")
	}
}

func TestResolve_Partition(t *testing.T) {
	m := mustModule(t, gatedYAML)
	cases := []map[string]*models.AnswerRecord{
		nil,
		{"a": answered("yes")},
		{"a": answered("no")},
		{"a": answered("yes"), "b": answered("details")},
		{"b": answered("orphan")},
	}
	for i, answers := range cases {
		res := resolve(t, m, answers)
		seen := map[string]int{}
		for _, list := range [][]string{res.Answered, res.Imputed, res.CanAnswer, res.Unreachable} {
			for _, k := range list {
				seen[k]++
			}
		}
		for _, q := range m.Questions {
			if seen[q.Key] != 1 {
				t.Errorf("case %d: %s appears %d times across categories", i, q.Key, seen[q.Key])
			}
		}
		if len(res.Statuses) != len(m.Questions) {
			t.Errorf("case %d: %d statuses, want %d", i, len(res.Statuses), len(m.Questions))
		}
	}
}

func TestResolve_Idempotent(t *testing.T) {
	m := mustModule(t, gatedYAML)
	answers := map[string]*models.AnswerRecord{"a": answered("yes"), "b": answered("text")}

	first := resolve(t, m, answers)
	second := resolve(t, m, answers)
	if !reflect.DeepEqual(first.Values, second.Values) ||
		!reflect.DeepEqual(first.Answered, second.Answered) ||
		first.Complete != second.Complete {
		t.Errorf("Resolve() is not idempotent: %+v vs %+v", first.Values, second.Values)
	}
}

func TestResolve_SkipIsAnsweredWithNull(t *testing.T) {
	res := resolve(t, mustModule(t, gatedYAML), map[string]*models.AnswerRecord{
		"a": {Skipped: true},
	})

	st := res.Status("a")
	if st.Status != StatusAnswered || !st.Skipped || st.Value != nil {
		t.Errorf("a = %+v, want answered/skipped/nil", st)
	}
	// null != "yes", so b is imputed.
	if res.Status("b").Status != StatusImputed {
		t.Errorf("b status = %s, want imputed", res.Status("b").Status)
	}
}

func TestResolve_ClearedAnswerIsUnanswered(t *testing.T) {
	res := resolve(t, mustModule(t, gatedYAML), map[string]*models.AnswerRecord{
		"a": {Value: "yes", Cleared: true},
	})
	if !reflect.DeepEqual(res.CanAnswer, []string{"a"}) {
		t.Errorf("CanAnswer = %v, want [a]", res.CanAnswer)
	}
}

func TestResolve_ImputeRulesAndOverride(t *testing.T) {
	m := mustModule(t, `
key: sizing
version: 1
title: Sizing
questions:
  - key: employees
    type: integer
    title: Employees
  - key: tier
    type: choice
    title: Tier
    choices: [{key: small}, {key: large}]
    impute:
      - {condition: 'input.employees < 10', value: small}
      - {condition: 'input.employees > 1000', value: large}
`)

	res := resolve(t, m, map[string]*models.AnswerRecord{
		"employees": answered(5.0),
		"tier":      answered("large"),
	})
	st := res.Status("tier")
	if st.Status != StatusImputed || st.Value != "small" || st.ImputedBy != "impute[0]" {
		t.Errorf("tier = %+v, want imputed small by impute[0]", st)
	}
	if !st.Overridden || st.Record == nil {
		t.Errorf("tier should report its stored answer as overridden")
	}

	res = resolve(t, m, map[string]*models.AnswerRecord{"employees": answered(50.0)})
	if res.Status("tier").Status != StatusCanAnswer {
		t.Errorf("tier status = %s, want can-answer when no rule holds", res.Status("tier").Status)
	}
}

func TestResolve_DefinitionOrderBreaksTies(t *testing.T) {
	m := mustModule(t, `
key: order
version: 1
title: Order
questions:
  - {key: z, type: text, title: Z}
  - {key: y, type: text, title: Y, ask_if: 'input.x == "go"'}
  - {key: x, type: text, title: X}
  - {key: w, type: text, title: W}
`)
	res := resolve(t, m, nil)
	if !reflect.DeepEqual(res.CanAnswer, []string{"z", "x", "w"}) {
		t.Errorf("CanAnswer = %v, want [z x w]", res.CanAnswer)
	}

	res = resolve(t, m, map[string]*models.AnswerRecord{"x": answered("go")})
	if !reflect.DeepEqual(res.CanAnswer, []string{"z", "y", "w"}) {
		t.Errorf("CanAnswer = %v, want [z y w]", res.CanAnswer)
	}
}

func TestResolve_UndefinedKeyIsConfigurationError(t *testing.T) {
	m, err := module.Parse([]byte(`
key: broken
version: 1
title: Broken
questions:
  - {key: a, type: text, title: A, ask_if: 'input.missing == 1'}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	_, err = Resolve(context.Background(), m, nil, Options{})
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("Resolve() error = %v, want configuration error", err)
	}
}

func TestResolve_ReferenceValues(t *testing.T) {
	m := mustModule(t, `
key: app
version: 1
title: App
questions:
  - {key: owner, type: module, title: Owner, module: contact}
  - {key: vendors, type: module-set, title: Vendors, module: contact}
  - {key: notify, type: yesno, title: Notify, ask_if: 'input.owner.email != ""'}
`)
	answers := map[string]*models.AnswerRecord{
		"owner":   {AnsweredByTasks: []string{"task-00000001"}},
		"vendors": {AnsweredByTasks: []string{"task-00000002", "task-00000003"}},
	}

	res := resolve(t, m, answers)
	if res.Values["owner"] != "task-00000001" {
		t.Errorf("owner = %v, want task id without a child resolver", res.Values["owner"])
	}

	var calls []string
	children := func(_ context.Context, q *module.Question, ids []string) (any, error) {
		calls = append(calls, q.Key)
		if q.Type == module.TypeModule {
			return map[string]any{"email": "owner@example.com"}, nil
		}
		out := make([]any, len(ids))
		for i := range ids {
			out[i] = map[string]any{"email": ""}
		}
		return out, nil
	}
	res, err := Resolve(context.Background(), m, answers, Options{Children: children})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(calls, []string{"owner", "vendors"}) {
		t.Errorf("child resolver calls = %v", calls)
	}
	if vs, _ := res.Values["vendors"].([]any); len(vs) != 2 {
		t.Errorf("vendors = %v, want two child maps", res.Values["vendors"])
	}
	if res.Status("notify").Status != StatusCanAnswer {
		t.Errorf("notify status = %s, want can-answer", res.Status("notify").Status)
	}
}

func TestResolve_ChildCycleSurfaces(t *testing.T) {
	m := mustModule(t, `
key: node
version: 1
title: Node
questions:
  - {key: parent, type: module, title: Parent, module: node}
`)
	cycle := func(context.Context, *module.Question, []string) (any, error) {
		return nil, types.NewCycleError("task %s is already being resolved", "task-00000001")
	}
	_, err := Resolve(context.Background(), m, map[string]*models.AnswerRecord{
		"parent": {AnsweredByTasks: []string{"task-00000001"}},
	}, Options{Children: cycle})
	if !errors.Is(err, types.ErrCycle) {
		t.Errorf("Resolve() error = %v, want cycle error", err)
	}
}

func TestResolve_FileAnswerValue(t *testing.T) {
	m := mustModule(t, `
key: upload
version: 1
title: Upload
questions:
  - {key: diagram, type: file, title: Diagram}
`)
	ref := &models.FileRef{Name: "net.png", ContentType: "image/png", Size: 42, SHA256: "ab"}
	res := resolve(t, m, map[string]*models.AnswerRecord{"diagram": {AnsweredByFile: ref}})
	v, _ := res.Values["diagram"].(map[string]any)
	if v["name"] != "net.png" || v["size"] != int64(42) {
		t.Errorf("diagram = %v", res.Values["diagram"])
	}
}
