package render

import (
	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/resolver"
)

// ModuleLookup returns the module a module or module-set question is
// answered with. module.Catalog.Latest satisfies it.
type ModuleLookup func(key string) (*module.Module, error)

// Data returns the template data for res. Missing answers render as the
// empty value of their type: "" for scalars, an empty list for
// multiple-choice and module-set questions, and a map of empty fields for
// module and file questions, so that {{.q.field}} and {{range .q}} never
// fail on a skipped or hidden question.
func Data(res *resolver.Resolution, opts Options) map[string]any {
	f := filler{lookup: opts.Modules, root: res.Module}
	path := map[string]bool{res.Module.Key: true}

	out := make(map[string]any, len(res.Values))
	for k, v := range res.Values {
		q, ok := res.Module.Question(k)
		if !ok {
			out[k] = blank(v)
			continue
		}
		out[k] = f.value(q, v, path)
	}
	if opts.AllowIncomplete {
		for _, k := range res.Pending() {
			if q, ok := res.Module.Question(k); ok {
				out[k] = f.value(q, nil, path)
			} else {
				out[k] = ""
			}
		}
	}
	return out
}

type filler struct {
	lookup ModuleLookup
	root   *module.Module
}

// value fills v, the answer to q, with typed empties. path holds the
// module keys being expanded and stops self-referencing modules.
func (f filler) value(q *module.Question, v any, path map[string]bool) any {
	switch q.Type {
	case module.TypeModule:
		m := f.module(q)
		if v == nil {
			return f.empty(m, path)
		}
		return f.fields(m, v, path)
	case module.TypeModuleSet:
		items, _ := v.([]any)
		out := make([]any, 0, len(items))
		m := f.module(q)
		for _, item := range items {
			out = append(out, f.fields(m, item, path))
		}
		return out
	case module.TypeMultipleChoice:
		if v == nil {
			return []any{}
		}
	case module.TypeFile:
		if v == nil {
			return map[string]any{"name": "", "content_type": "", "size": "", "sha256": ""}
		}
	}
	return blank(v)
}

func (f filler) module(q *module.Question) *module.Module {
	key, ok := q.AnswerModule()
	if !ok {
		return nil
	}
	if f.lookup != nil {
		if m, err := f.lookup(key); err == nil && m != nil {
			return m
		}
	}
	if f.root != nil && f.root.Key == key {
		return f.root
	}
	return nil
}

// empty is a child map of m with every field unanswered. A module already
// being expanded gets its fields one level deep, with module fields left
// as empty maps.
func (f filler) empty(m *module.Module, path map[string]bool) map[string]any {
	out := map[string]any{}
	if m == nil {
		return out
	}
	if path[m.Key] {
		for _, q := range m.Questions {
			if q.Type == module.TypeModule {
				out[q.Key] = map[string]any{}
			} else {
				out[q.Key] = f.value(q, nil, path)
			}
		}
		return out
	}
	path[m.Key] = true
	defer delete(path, m.Key)
	for _, q := range m.Questions {
		out[q.Key] = f.value(q, nil, path)
	}
	return out
}

// fields fills the nil fields of a resolved child map. A value that is not
// a map, such as a bare task ID, is returned unchanged.
func (f filler) fields(m *module.Module, v any, path map[string]bool) any {
	child, ok := v.(map[string]any)
	if !ok {
		return blank(v)
	}
	if m == nil {
		return blank(child)
	}
	out := make(map[string]any, len(child))
	for k, cv := range child {
		if q, ok := m.Question(k); ok {
			out[k] = f.value(q, cv, path)
		} else {
			out[k] = blank(cv)
		}
	}
	return out
}

// blank replaces nil with "" at every depth so that templates print nothing
// for unanswered questions.
func blank(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = blank(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = blank(e)
		}
		return out
	}
	return v
}
