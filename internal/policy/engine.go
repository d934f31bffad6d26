package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// DefaultPackage is the Rego package queried for deny and warn rules.
const DefaultPackage = "triage.policy"

// ErrPolicyDenied is returned when a deny rule rejects an approval.
var ErrPolicyDenied = errors.New("approval denied by policy")

// Engine evaluates the loaded policies. Evaluation is local; no network calls.
type Engine struct {
	pkg string
	fs  afero.Fs
	dir string

	mu    sync.RWMutex
	files []*File
	deny  *rego.PreparedEvalQuery
	warn  *rego.PreparedEvalQuery
}

// Config configures NewEngine.
type Config struct {
	Fs          afero.Fs
	PoliciesDir string
	Package     string // defaults to DefaultPackage
}

// NewEngine loads and compiles the policies found in cfg.PoliciesDir.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	loader := NewLoader(cfg.Fs, cfg.PoliciesDir)
	files, err := loader.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	e, err := NewEngineWithPolicies(ctx, cfg.Package, files)
	if err != nil {
		return nil, err
	}
	e.fs, e.dir = loader.fs, cfg.PoliciesDir
	return e, nil
}

// NewEngineWithPolicies compiles the given modules.
func NewEngineWithPolicies(ctx context.Context, pkg string, files []*File) (*Engine, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}
	e := &Engine{pkg: pkg}
	if err := e.compile(ctx, files); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) compile(ctx context.Context, files []*File) error {
	var deny, warn *rego.PreparedEvalQuery
	if len(files) > 0 {
		var err error
		if deny, err = e.prepare(ctx, "deny", files); err != nil {
			return err
		}
		if warn, err = e.prepare(ctx, "warn", files); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.files = files
	e.deny = deny
	e.warn = warn
	e.mu.Unlock()
	return nil
}

func (e *Engine) prepare(ctx context.Context, rule string, files []*File) (*rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(fmt.Sprintf("data.%s.%s", e.pkg, rule))}
	for _, f := range files {
		opts = append(opts, rego.Module(f.Path, f.Content))
	}
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	return &pq, nil
}

// Reload re-reads the policies directory and swaps in the new modules.
// On error the previous policies stay active.
func (e *Engine) Reload(ctx context.Context) error {
	if e.dir == "" {
		return nil
	}
	files, err := NewLoader(e.fs, e.dir).LoadAll()
	if err != nil {
		return fmt.Errorf("reload policies: %w", err)
	}
	return e.compile(ctx, files)
}

// PolicyNames lists the loaded modules.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.files))
	for i, f := range e.files {
		names[i] = f.Name
	}
	return names
}

// Evaluate runs the deny and warn rules against input. With no policies
// loaded everything is allowed.
func (e *Engine) Evaluate(ctx context.Context, input any) (*Decision, error) {
	e.mu.RLock()
	deny, warn := e.deny, e.warn
	e.mu.RUnlock()

	decision := &Decision{
		DecisionID:  uuid.NewString(),
		PolicyPath:  e.pkg,
		Result:      ResultAllow,
		EvaluatedAt: time.Now().UTC(),
	}
	if deny == nil {
		return decision, nil
	}

	violations, err := querySet(ctx, deny, input)
	if err != nil {
		return nil, fmt.Errorf("query deny rules: %w", err)
	}
	// warn rules are optional
	warnings, _ := querySet(ctx, warn, input)

	decision.Violations = violations
	decision.Warnings = warnings
	if len(violations) > 0 {
		decision.Result = ResultDeny
	}
	return decision, nil
}

// querySet evaluates a set-generating rule and returns its string members.
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

// CheckApproval evaluates an approval and returns ErrPolicyDenied, wrapped
// with the violation messages, when any deny rule fires.
func (e *Engine) CheckApproval(ctx context.Context, in ApprovalInput) error {
	decision, err := e.Evaluate(ctx, in)
	if err != nil {
		return err
	}
	if !decision.IsAllowed() {
		return fmt.Errorf("%w: %s", ErrPolicyDenied, strings.Join(decision.Violations, "; "))
	}
	return nil
}
