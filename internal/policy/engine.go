package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// Engine wraps OPA for access decisions. It evaluates DefaultPolicy together
// with operator policies loaded from .rego files. All evaluation is local.
type Engine struct {
	mu       sync.RWMutex
	policies []*PolicyFile
	query    rego.PreparedEvalQuery
	now      func() time.Time
}

// EngineConfig holds configuration for creating an Engine.
type EngineConfig struct {
	// PoliciesDir is the directory containing operator .rego files. It may
	// be empty or missing.
	PoliciesDir string

	// Fs is the filesystem to load policies from. Nil means the OS filesystem.
	Fs afero.Fs
}

// NewEngine loads operator policies and prepares the decision query.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	var policies []*PolicyFile
	if cfg.PoliciesDir != "" {
		loaded, err := NewLoader(cfg.Fs, cfg.PoliciesDir).LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
		policies = loaded
	}
	return NewEngineWithPolicies(ctx, policies)
}

// NewEngineWithPolicies creates an engine with explicitly provided operator
// policies. This is useful for testing.
func NewEngineWithPolicies(ctx context.Context, policies []*PolicyFile) (*Engine, error) {
	e := &Engine{now: func() time.Time { return time.Now().UTC() }}
	if err := e.setPolicies(ctx, policies); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) setPolicies(ctx context.Context, policies []*PolicyFile) error {
	opts := []func(*rego.Rego){
		rego.Query("data." + DefaultPolicyPackage),
		rego.Module("default.rego", DefaultPolicy),
	}
	for _, p := range policies {
		opts = append(opts, rego.Module(p.Path, p.Content))
	}
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("compile policies: %w", err)
	}

	e.mu.Lock()
	e.policies = policies
	e.query = pq
	e.mu.Unlock()
	return nil
}

// Reload reloads operator policies. On error the previous policies stay in
// effect.
func (e *Engine) Reload(ctx context.Context, fs afero.Fs, policiesDir string) error {
	policies, err := NewLoader(fs, policiesDir).LoadAll()
	if err != nil {
		return fmt.Errorf("reload policies: %w", err)
	}
	return e.setPolicies(ctx, policies)
}

// PolicyNames returns the names of the loaded operator policies.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Evaluate decides one access. The action is allowed when the matching
// allow rule holds and no deny rule fires.
func (e *Engine) Evaluate(ctx context.Context, input *Input) (*Decision, error) {
	e.mu.RLock()
	pq := e.query
	e.mu.RUnlock()

	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluate policy: %w", err)
	}

	var doc map[string]any
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		doc, _ = rs[0].Expressions[0].Value.(map[string]any)
	}

	decision := &Decision{
		DecisionID:  uuid.New().String(),
		PolicyPath:  DefaultPolicyPackage,
		Action:      input.Action,
		Input:       input,
		TaskID:      input.Task.ID,
		ActorID:     input.Actor.UserID,
		EvaluatedAt: e.now(),
		Violations:  stringSet(doc["deny"]),
	}

	allowed, _ := doc["allow_"+string(input.Action)].(bool)
	switch {
	case len(decision.Violations) > 0:
		decision.Result = ResultDeny
	case allowed:
		decision.Result = ResultAllow
	default:
		decision.Result = ResultDeny
	}
	return decision, nil
}

// stringSet extracts the string members of a Rego set value.
func stringSet(v any) []string {
	set, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range set {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// ValidatePolicy checks that operator policy source compiles alongside the
// default policy.
func ValidatePolicy(ctx context.Context, content string) error {
	_, err := rego.New(
		rego.Query("data."+DefaultPolicyPackage),
		rego.Module("default.rego", DefaultPolicy),
		rego.Module("validation.rego", content),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
