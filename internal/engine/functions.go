package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/models"
)

// FunctionInput is what an external function sees: the task, the question
// being answered and the task's currently resolved values.
type FunctionInput struct {
	Task     *models.Task
	Question *module.Question
	Values   map[string]any
}

// Function computes the answer to an external-function question.
type Function func(ctx context.Context, in FunctionInput) (any, error)

// Functions is a registry of external functions keyed by the name module
// definitions refer to.
type Functions struct {
	mu  sync.RWMutex
	fns map[string]Function
}

// NewFunctions returns an empty registry.
func NewFunctions() *Functions {
	return &Functions{fns: map[string]Function{}}
}

// Register adds or replaces a function.
func (f *Functions) Register(name string, fn Function) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns[name] = fn
}

// Lookup returns the named function.
func (f *Functions) Lookup(name string) (Function, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.fns[name]
	return fn, ok
}

// Names lists registered functions in order.
func (f *Functions) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.fns))
	for name := range f.fns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
