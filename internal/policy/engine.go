package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// PolicyPackage is the Rego package acceptance rules live in.
const PolicyPackage = "wayline.accept"

// Engine evaluates the deny and warn rules of PolicyPackage. Policies are
// compiled once per load and can be swapped at runtime by Reload.
type Engine struct {
	loader         *Loader
	includeDefault bool

	mu       sync.RWMutex
	policies []*PolicyFile
	deny     *rego.PreparedEvalQuery
	warn     *rego.PreparedEvalQuery
}

// EngineConfig configures NewEngine.
type EngineConfig struct {
	// Dir holds user .rego files. Empty means built-in policy only.
	Dir string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// SkipDefault leaves the embedded default policy out.
	SkipDefault bool
}

// NewEngine loads and compiles the policies.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	e := &Engine{
		loader:         NewLoader(cfg.Fs, cfg.Dir),
		includeDefault: !cfg.SkipDefault,
	}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineWithPolicies compiles explicit policies, for tests and embedding.
func NewEngineWithPolicies(ctx context.Context, policies []*PolicyFile) (*Engine, error) {
	e := &Engine{}
	if err := e.install(ctx, policies); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload re-reads the policy directory. On a compile error the previous
// policies stay in force.
func (e *Engine) Reload(ctx context.Context) error {
	var policies []*PolicyFile
	if e.includeDefault {
		policies = append(policies, DefaultPolicy())
	}
	if e.loader != nil {
		loaded, err := e.loader.LoadAll()
		if err != nil {
			return fmt.Errorf("load policies: %w", err)
		}
		policies = append(policies, loaded...)
	}
	return e.install(ctx, policies)
}

func (e *Engine) install(ctx context.Context, policies []*PolicyFile) error {
	var deny, warn *rego.PreparedEvalQuery
	if len(policies) > 0 {
		var err error
		if deny, err = prepare(ctx, "deny", policies); err != nil {
			return err
		}
		if warn, err = prepare(ctx, "warn", policies); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.policies, e.deny, e.warn = policies, deny, warn
	e.mu.Unlock()
	slog.Debug("policies loaded", "count", len(policies))
	return nil
}

func prepare(ctx context.Context, rule string, policies []*PolicyFile) (*rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(fmt.Sprintf("data.%s.%s", PolicyPackage, rule))}
	for _, p := range policies {
		opts = append(opts, rego.Module(p.Path, p.Content))
	}
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile %s rules: %w", rule, err)
	}
	return &pq, nil
}

// PolicyNames lists the loaded policies.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Evaluate runs the deny and warn rules against input. With no policies
// everything is allowed.
func (e *Engine) Evaluate(ctx context.Context, input any) (*Decision, error) {
	e.mu.RLock()
	deny, warn := e.deny, e.warn
	e.mu.RUnlock()

	d := &Decision{
		DecisionID:  uuid.New().String(),
		PolicyPath:  PolicyPackage,
		Result:      ResultAllow,
		EvaluatedAt: time.Now().UTC(),
	}
	if deny == nil {
		return d, nil
	}

	violations, err := querySet(ctx, deny, input)
	if err != nil {
		return nil, fmt.Errorf("query deny rules: %w", err)
	}
	// warn is optional; a failure there never blocks.
	warnings, _ := querySet(ctx, warn, input)

	d.Violations = violations
	d.Warnings = warnings
	if len(violations) > 0 {
		d.Result = ResultDeny
	}
	return d, nil
}

// EvaluateAcceptance checks an acceptance batch.
func (e *Engine) EvaluateAcceptance(ctx context.Context, in AcceptInput) (*Decision, error) {
	if in.NewTasks == nil {
		in.NewTasks = []TaskInput{}
	}
	if in.Edits == nil {
		in.Edits = []EditInput{}
	}
	return e.Evaluate(ctx, in)
}

// querySet collects the string members of a set rule.
func querySet(ctx context.Context, pq *rego.PreparedEvalQuery, input any) ([]string, error) {
	if pq == nil {
		return nil, nil
	}
	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range set {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out, nil
}

// ValidatePolicy reports a syntax or compile error in content.
func ValidatePolicy(ctx context.Context, content string) error {
	_, err := rego.New(
		rego.Query("data"),
		rego.Module("validation.rego", content),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
