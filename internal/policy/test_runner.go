package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/tester"
	"github.com/open-policy-agent/opa/v1/topdown"
	"github.com/spf13/afero"
)

const testTimeout = 30 * time.Second

// TestResult is the outcome of one test_* rule.
type TestResult struct {
	Name     string        `json:"name"`
	Package  string        `json:"package"`
	Passed   bool          `json:"passed"`
	Failed   bool          `json:"failed"`
	Skipped  bool          `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Notes    []string      `json:"notes,omitempty"` // print() and trace() output
}

// TestSummary aggregates a test run.
type TestSummary struct {
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Errored  int           `json:"errored"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
	Results  []*TestResult `json:"results"`
}

// TestRunner runs the Rego tests found in a policies directory against the
// built-in policy and the operator policies beside them.
type TestRunner struct {
	loader *Loader
	// Builtin adds the tests shipped with the built-in policy.
	Builtin bool
}

// NewTestRunner returns a runner over dir on fs.
func NewTestRunner(fs afero.Fs, dir string) *TestRunner {
	return &TestRunner{loader: NewLoader(fs, dir)}
}

// Run compiles every module and executes its tests.
func (r *TestRunner) Run(ctx context.Context) (*TestSummary, error) {
	start := time.Now()

	modules, err := r.modules()
	if err != nil {
		return nil, err
	}
	compiler := ast.NewCompiler()
	if compiler.Compile(modules); compiler.Failed() {
		return nil, fmt.Errorf("compile policies: %w", compiler.Errors)
	}

	ch, err := tester.NewRunner().
		SetCompiler(compiler).
		SetModules(modules).
		EnableTracing(true).
		SetTimeout(testTimeout).
		RunTests(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("run policy tests: %w", err)
	}

	summary := &TestSummary{Results: []*TestResult{}}
	for tr := range ch {
		summary.add(convertResult(tr))
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

func convertResult(tr *tester.Result) *TestResult {
	res := &TestResult{Name: tr.Name, Package: tr.Package, Duration: tr.Duration}
	switch {
	case tr.Skip:
		res.Skipped = true
	case tr.Error != nil:
		res.Error = tr.Error.Error()
	case tr.Fail:
		res.Failed = true
	default:
		res.Passed = true
	}
	for _, ev := range tr.Trace {
		if ev.Op == topdown.NoteOp && ev.Message != "" {
			res.Notes = append(res.Notes, ev.Message)
		}
	}
	return res
}

func (s *TestSummary) add(r *TestResult) {
	switch {
	case r.Passed:
		s.Passed++
	case r.Skipped:
		s.Skipped++
	case r.Failed:
		s.Failed++
	default:
		s.Errored++
	}
	s.Total++
	s.Results = append(s.Results, r)
}

// modules parses the built-in policy plus every file in the directory,
// tests included.
func (r *TestRunner) modules() (map[string]*ast.Module, error) {
	sources := map[string]string{"default.rego": DefaultPolicy}
	if r.Builtin {
		sources["default_test.rego"] = DefaultPolicyTests
	}
	out := make(map[string]*ast.Module, len(sources))
	for name, src := range sources {
		m, err := ast.ParseModule(name, src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = m
	}

	paths, err := r.loader.ListFiles()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		p, err := r.loader.LoadFile(path)
		if err != nil {
			return nil, err
		}
		out[r.loader.moduleName(path)] = p.module
	}
	return out, nil
}

// FormatSummary renders the totals line printed after a run.
func (s *TestSummary) FormatSummary() string {
	if s.Total == 0 {
		return "No tests found.\n"
	}
	parts := []string{fmt.Sprintf("%d passed", s.Passed)}
	for _, c := range []struct {
		n    int
		word string
	}{{s.Failed, "failed"}, {s.Errored, "errored"}, {s.Skipped, "skipped"}} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.word))
		}
	}
	return fmt.Sprintf("\n%d tests, %s in %s\n", s.Total, strings.Join(parts, ", "), s.Duration.Round(time.Millisecond))
}

// AllPassed reports whether nothing failed or errored.
func (s *TestSummary) AllPassed() bool {
	return s.Failed == 0 && s.Errored == 0
}
