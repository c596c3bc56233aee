package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// Engine evaluates admission policies for module mounts. It implements
// orchestrator.Admission.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	mode     Mode
	startup  func() []string
	logger   zerolog.Logger
}

// compiledPolicy is one parsed and prepared Rego policy.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// NewEngine creates a policy engine with the built-in policies loaded.
// startup, when non-nil, supplies the current startup module names for
// policy input.
func NewEngine(mode Mode, startup func() []string, logger zerolog.Logger) (*Engine, error) {
	if mode == "" {
		mode = ModeAdvisory
	}

	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		mode:     mode,
		startup:  startup,
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	builtin := GetBuiltinPolicies()
	for i := range builtin {
		if err := e.compileAndStorePolicy(&builtin[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtin[i].Name, err)
		}
	}
	e.logger.Info().Int("count", len(builtin)).Msg("built-in policies loaded")

	return e, nil
}

// Admit evaluates all policies for one mount. In advisory mode it
// always admits; in enforcing mode error-severity violations reject.
func (e *Engine) Admit(ctx context.Context, cc *orchestrator.ContainerConfig, detail *orchestrator.MicroFrontEndConfig) error {
	result, err := e.Evaluate(ctx, cc, detail)
	if err != nil {
		// Evaluation failure is contained: a broken policy must never
		// block module mounting.
		e.logger.Error().Err(err).Str("module", cc.Name).Msg("policy evaluation failed, admitting")
		return nil
	}

	for i := range result.Violations {
		v := &result.Violations[i]
		e.logger.Warn().
			Str("policy", v.Policy).
			Str("module", v.Module).
			Str("severity", v.Severity).
			Msg(v.Message)
	}

	if e.mode == ModeEnforcing && !result.Allowed {
		return fmt.Errorf("mount rejected by policy: %d violation(s)", len(result.Violations))
	}
	return nil
}

// Evaluate runs every enabled policy against the mount input.
func (e *Engine) Evaluate(ctx context.Context, cc *orchestrator.ContainerConfig, detail *orchestrator.MicroFrontEndConfig) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := &Input{
		Module:    cc,
		Detail:    detail,
		Timestamp: time.Now(),
	}
	if e.startup != nil {
		input.Startup = e.startup()
	}

	var all []Violation
	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("module", cc.Name).
				Msg("policy evaluation failed")
			continue
		}
		all = append(all, violations...)
	}

	allowed := true
	for i := range all {
		if all[i].Severity == string(SeverityError) {
			allowed = false
			break
		}
	}

	return &Result{
		Allowed:     allowed,
		Violations:  all,
		EvaluatedAt: time.Now(),
	}, nil
}

// evaluatePolicy queries one policy's deny set.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	query := fmt.Sprintf("data.%s.deny", extractPackageName(cp.policy.Rego))

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, e.makeViolation(cp.policy, d, input))
		}
	}

	return violations, nil
}

// makeViolation converts one deny result into a Violation.
func (e *Engine) makeViolation(policy *Policy, result interface{}, input *Input) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: string(policy.Severity),
	}
	if input.Module != nil {
		violation.Module = input.Module.Name
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = sev
		}
		if mod, ok := v["module"].(string); ok {
			violation.Module = mod
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy parses a policy and stores it.
func (e *Engine) compileAndStorePolicy(policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		compiled: time.Now(),
	}
	return nil
}

// ReplacePolicies swaps the loaded file policies while keeping the
// built-ins. Used by the loader on hot reload.
func (e *Engine) ReplacePolicies(policies []Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.policies = make(map[string]*compiledPolicy)
	builtin := GetBuiltinPolicies()
	for i := range builtin {
		if err := e.compileAndStorePolicy(&builtin[i]); err != nil {
			return err
		}
	}
	for i := range policies {
		if err := e.compileAndStorePolicy(&policies[i]); err != nil {
			e.logger.Error().Err(err).Str("policy", policies[i].Name).Msg("failed to compile policy, skipping")
		}
	}

	e.logger.Info().Int("count", len(e.policies)).Msg("policies reloaded")
	return nil
}

// extractPackageName extracts the package name from Rego code.
func extractPackageName(code string) string {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "openmosaic.policies"
}
