package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

const blockListPolicy = `package custom.blocklist

import rego.v1

deny contains violation if {
	input.module.name == "blocked"
	violation := {
		"message": "module is on the block list",
		"severity": "error",
	}
}
`

func newTestEngine(t *testing.T, mode Mode) *Engine {
	t.Helper()
	e, err := NewEngine(mode, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEvaluateCleanModule(t *testing.T) {
	e := newTestEngine(t, ModeAdvisory)

	cc := &orchestrator.ContainerConfig{Name: "cart"}
	detail := &orchestrator.MicroFrontEndConfig{Name: "cart"}

	result, err := e.Evaluate(context.Background(), cc, detail)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Allowed {
		t.Error("clean module not allowed")
	}
	if len(result.Violations) != 0 {
		t.Errorf("unexpected violations: %+v", result.Violations)
	}
}

func TestEvaluateFlagsBadTagName(t *testing.T) {
	e := newTestEngine(t, ModeAdvisory)

	cc := &orchestrator.ContainerConfig{Name: "Bad_Name"}
	detail := &orchestrator.MicroFrontEndConfig{Name: "Bad_Name"}

	result, err := e.Evaluate(context.Background(), cc, detail)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Allowed {
		t.Error("malformed tag name allowed")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "tag-naming" && v.Severity == "error" {
			found = true
		}
	}
	if !found {
		t.Errorf("no tag-naming violation in %+v", result.Violations)
	}
}

func TestEvaluateWarnsOnReservedPlacementAtStartup(t *testing.T) {
	e := newTestEngine(t, ModeAdvisory)

	cc := &orchestrator.ContainerConfig{Name: "profile-badge", LoadOnInit: true}
	detail := &orchestrator.MicroFrontEndConfig{
		Name:       "profile-badge",
		LoadOnInit: true,
		Placement:  orchestrator.PlacementUserProfile,
	}

	result, err := e.Evaluate(context.Background(), cc, detail)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Allowed {
		t.Error("warning-only violations must not reject")
	}
	if len(result.Violations) == 0 {
		t.Fatal("expected a reserved-placement warning")
	}
	if result.Violations[0].Severity != "warning" {
		t.Errorf("severity = %s, want warning", result.Violations[0].Severity)
	}
}

func TestAdmitAdvisoryAlwaysAdmits(t *testing.T) {
	e := newTestEngine(t, ModeAdvisory)

	cc := &orchestrator.ContainerConfig{Name: "Bad_Name"}
	if err := e.Admit(context.Background(), cc, &orchestrator.MicroFrontEndConfig{}); err != nil {
		t.Errorf("advisory mode rejected: %v", err)
	}
}

func TestAdmitEnforcingRejectsErrorViolations(t *testing.T) {
	e := newTestEngine(t, ModeEnforcing)

	cc := &orchestrator.ContainerConfig{Name: "Bad_Name"}
	if err := e.Admit(context.Background(), cc, &orchestrator.MicroFrontEndConfig{}); err == nil {
		t.Error("enforcing mode admitted an error violation")
	}

	good := &orchestrator.ContainerConfig{Name: "cart"}
	if err := e.Admit(context.Background(), good, &orchestrator.MicroFrontEndConfig{Name: "cart"}); err != nil {
		t.Errorf("clean module rejected: %v", err)
	}
}

func TestReplacePoliciesKeepsBuiltins(t *testing.T) {
	e := newTestEngine(t, ModeEnforcing)

	custom := []Policy{{
		Name:     "block-list",
		Rego:     blockListPolicy,
		Severity: SeverityError,
		Enabled:  true,
	}}
	if err := e.ReplacePolicies(custom); err != nil {
		t.Fatalf("ReplacePolicies: %v", err)
	}

	blocked := &orchestrator.ContainerConfig{Name: "blocked"}
	if err := e.Admit(context.Background(), blocked, &orchestrator.MicroFrontEndConfig{}); err == nil {
		t.Error("custom policy not applied after reload")
	}

	bad := &orchestrator.ContainerConfig{Name: "Bad_Name"}
	if err := e.Admit(context.Background(), bad, &orchestrator.MicroFrontEndConfig{}); err == nil {
		t.Error("built-in policy lost after reload")
	}
}

func TestReplacePoliciesSkipsBrokenPolicy(t *testing.T) {
	e := newTestEngine(t, ModeAdvisory)

	broken := []Policy{{
		Name:    "broken",
		Rego:    "package broken\n\ndeny[",
		Enabled: true,
	}}
	if err := e.ReplacePolicies(broken); err != nil {
		t.Fatalf("ReplacePolicies: %v", err)
	}

	cc := &orchestrator.ContainerConfig{Name: "cart"}
	result, err := e.Evaluate(context.Background(), cc, &orchestrator.MicroFrontEndConfig{Name: "cart"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Allowed {
		t.Error("engine unusable after skipping a broken policy")
	}
}
