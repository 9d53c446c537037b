package module

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/josephgoksu/guidedmodules/internal/condition"
	"github.com/josephgoksu/guidedmodules/types"
)

func (m *Module) prepare(ctx context.Context) error {
	if err := validate.Struct(m); err != nil {
		return types.WrapConfigurationError(err, "module %s", m.Ref())
	}

	m.index = make(map[string]int, len(m.Questions))
	for i, q := range m.Questions {
		if _, dup := m.index[q.Key]; dup {
			return m.configErr(q, "duplicate question key")
		}
		m.index[q.Key] = i
		q.index = i
	}

	docs := make(map[string]bool, len(m.Documents))
	for _, d := range m.Documents {
		if docs[d.ID] {
			return types.NewConfigurationError("module %s: duplicate document id %q", m.Ref(), d.ID)
		}
		docs[d.ID] = true
	}

	for _, q := range m.Questions {
		if err := m.prepareQuestion(ctx, q); err != nil {
			return err
		}
	}

	order, err := m.resolutionOrder()
	if err != nil {
		return err
	}
	m.order = order
	return nil
}

func (m *Module) prepareQuestion(ctx context.Context, q *Question) error {
	if q.Spec == nil {
		spec, err := newSpec(q.Type)
		if err != nil {
			return m.configErr(q, err.Error())
		}
		q.Spec = spec
	}
	if q.Spec.QuestionType() != q.Type {
		return m.configErr(q, fmt.Sprintf("schema is for type %s", q.Spec.QuestionType()))
	}
	if err := validate.Struct(q.Spec); err != nil {
		return types.WrapConfigurationError(err, "module %s: question %s: schema", m.Ref(), q.Key)
	}
	if err := q.Spec.check(); err != nil {
		return m.configErr(q, err.Error())
	}
	if q.Required && q.Type == TypeInterstitial {
		return m.configErr(q, "interstitial pages cannot be required")
	}

	deps := map[string]bool{}

	if q.AskIf != "" {
		c, err := condition.Compile(ctx, q.AskIf)
		if err != nil {
			return types.WrapConfigurationError(err, "module %s: question %s: ask_if", m.Ref(), q.Key)
		}
		if err := m.checkRefs(q, c); err != nil {
			return err
		}
		q.askIf = c
		for _, k := range c.Keys() {
			deps[k] = true
		}
	}

	for i, rule := range q.Impute {
		c, err := condition.Compile(ctx, rule.Condition)
		if err != nil {
			return types.WrapConfigurationError(err, "module %s: question %s: impute rule %d", m.Ref(), q.Key, i+1)
		}
		if err := m.checkRefs(q, c); err != nil {
			return err
		}
		rule.compiled = c
		for _, k := range c.Keys() {
			deps[k] = true
		}
	}

	for _, k := range q.AskFirst {
		if _, ok := m.index[k]; !ok {
			return m.configErr(q, fmt.Sprintf("ask_first references undefined question key %q", k))
		}
		if k == q.Key {
			return m.configErr(q, "question cannot be asked before itself")
		}
		deps[k] = true
	}

	q.deps = q.deps[:0]
	for k := range deps {
		q.deps = append(q.deps, k)
	}
	sort.Slice(q.deps, func(i, j int) bool { return m.index[q.deps[i]] < m.index[q.deps[j]] })
	return nil
}

// checkRefs rejects conditions that read undefined keys or the question itself.
func (m *Module) checkRefs(q *Question, c *condition.Condition) error {
	for _, k := range c.Keys() {
		if _, ok := m.index[k]; !ok {
			return m.configErr(q, fmt.Sprintf("condition %q references undefined question key %q", c.String(), k))
		}
		if k == q.Key {
			return m.configErr(q, fmt.Sprintf("condition %q references the question itself", c.String()))
		}
	}
	return nil
}

// resolutionOrder is Kahn's algorithm where the ready question with the
// lowest definition index always goes next.
func (m *Module) resolutionOrder() ([]*Question, error) {
	n := len(m.Questions)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, q := range m.Questions {
		for _, d := range q.deps {
			j := m.index[d]
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	done := make([]bool, n)
	order := make([]*Question, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i := 0; i < n; i++ {
				if !done[i] {
					stuck = append(stuck, m.Questions[i].Key)
				}
			}
			return nil, types.NewConfigurationError("module %s: dependency cycle among questions %s", m.Ref(), strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, m.Questions[next])
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return order, nil
}

func (m *Module) configErr(q *Question, msg string) error {
	return types.NewConfigurationError("module %s: question %s: %s", m.Ref(), q.Key, msg)
}
