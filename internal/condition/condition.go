// Package condition compiles and evaluates the boolean expressions that gate
// whether a question is asked or imputed.
//
// Conditions are Rego query bodies over the resolved answers of a task, which
// are exposed as input. For example:
//
//	input.hosting == "cloud"
//	"pii" in input.data_types
//	input.org_profile.size > 50
//
// Every reference into input must name a question key statically so the
// dependency graph can be derived at load time.
package condition

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/josephgoksu/guidedmodules/types"
)

// Ref is a static reference into input: the question key plus any further
// constant path segments (used to address answers of child tasks).
type Ref struct {
	Key  string
	Path []string
}

// Condition is a compiled, ready-to-evaluate expression.
type Condition struct {
	source string
	refs   []Ref
	query  rego.PreparedEvalQuery
}

// Compile parses and prepares src. Malformed expressions and dynamic
// references into input are configuration errors.
func Compile(ctx context.Context, src string) (*Condition, error) {
	body, err := ast.ParseBody(src)
	if err != nil {
		return nil, types.WrapConfigurationError(err, "malformed condition %q", src)
	}
	if len(body) == 0 {
		return nil, types.NewConfigurationError("empty condition")
	}

	refs, err := collectRefs(body)
	if err != nil {
		return nil, types.WrapConfigurationError(err, "condition %q", src)
	}

	pq, err := rego.New(rego.ParsedQuery(body)).PrepareForEval(ctx)
	if err != nil {
		return nil, types.WrapConfigurationError(err, "compile condition %q", src)
	}

	return &Condition{source: src, refs: refs, query: pq}, nil
}

// MustCompile is like Compile but panics on error. Only use in tests.
func MustCompile(src string) *Condition {
	c, err := Compile(context.Background(), src)
	if err != nil {
		panic(fmt.Sprintf("compile condition: %v", err))
	}
	return c
}

// String returns the source expression.
func (c *Condition) String() string { return c.source }

// Refs returns the static input references in order of first appearance.
func (c *Condition) Refs() []Ref {
	out := make([]Ref, len(c.refs))
	copy(out, c.refs)
	return out
}

// Keys returns the distinct question keys the condition reads.
func (c *Condition) Keys() []string {
	seen := make(map[string]bool, len(c.refs))
	var keys []string
	for _, r := range c.refs {
		if !seen[r.Key] {
			seen[r.Key] = true
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// Eval evaluates the condition against the known values of a task.
// An expression that is undefined, false or null counts as false.
func (c *Condition) Eval(ctx context.Context, values map[string]any) (bool, error) {
	if values == nil {
		values = map[string]any{}
	}
	rs, err := c.query.Eval(ctx, rego.EvalInput(values))
	if err != nil {
		return false, types.WrapConfigurationError(err, "evaluate condition %q", c.source)
	}
	if len(rs) == 0 {
		return false, nil
	}
	for _, expr := range rs[0].Expressions {
		if expr.Value == nil {
			return false, nil
		}
		if b, ok := expr.Value.(bool); ok && !b {
			return false, nil
		}
	}
	return true, nil
}

func collectRefs(body ast.Body) ([]Ref, error) {
	var (
		refs     []Ref
		firstErr error
		inputRef int
		inputVar int
		seen     = map[string]bool{}
	)

	ast.WalkRefs(body, func(ref ast.Ref) bool {
		if !ref.HasPrefix(ast.InputRootRef) {
			return false
		}
		inputRef++
		if len(ref) < 2 {
			return false
		}
		key, ok := ref[1].Value.(ast.String)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("dynamic reference %s: question keys must be constant", ref)
			}
			return false
		}
		r := Ref{Key: string(key)}
		for _, term := range ref[2:] {
			s, ok := term.Value.(ast.String)
			if !ok {
				break
			}
			r.Path = append(r.Path, string(s))
		}
		id := ref.String()
		if !seen[id] {
			seen[id] = true
			refs = append(refs, r)
		}
		return false
	})

	ast.WalkVars(body, func(v ast.Var) bool {
		if v.Equal(ast.InputRootDocument.Value) {
			inputVar++
		}
		return false
	})

	if firstErr != nil {
		return nil, firstErr
	}
	if inputVar > inputRef {
		return nil, fmt.Errorf("conditions must reference input.<question>, not input as a whole")
	}
	return refs, nil
}
