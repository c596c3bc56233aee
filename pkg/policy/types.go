// Package policy gates module mounting with Rego admission policies.
// Built-in policies cover tag naming, reserved-placement usage and
// dependency declarations; operators may add policy files from disk,
// hot-reloaded on change.
//
// In advisory mode (the default) violations are logged and mounting
// proceeds, so one module's violation never blocks its siblings. In
// enforcing mode error-severity violations reject the mount.
package policy

import (
	"time"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that reject the mount in enforcing
	// mode.
	SeverityError Severity = "error"
)

// Mode selects how violations are acted on.
type Mode string

const (
	// ModeAdvisory logs violations and always admits.
	ModeAdvisory Mode = "advisory"

	// ModeEnforcing rejects mounts with error-severity violations.
	ModeEnforcing Mode = "enforcing"
)

// Policy is one admission rule with its Rego code.
type Policy struct {
	// Name is the unique policy name.
	Name string `json:"name"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// Rego contains the policy code. The deny set carries violations.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// CreatedAt is when the policy was registered.
	CreatedAt time.Time `json:"created_at"`
}

// Violation is one finding produced by a policy.
type Violation struct {
	// Policy is the name of the violated policy.
	Policy string `json:"policy"`

	// Module is the module name the finding concerns.
	Module string `json:"module,omitempty"`

	// Message describes the finding.
	Message string `json:"message"`

	// Severity is the finding severity.
	Severity string `json:"severity"`
}

// Input is the document handed to policy evaluation.
type Input struct {
	// Module is the container configuration being mounted.
	Module *orchestrator.ContainerConfig `json:"module"`

	// Detail is the module's detail configuration.
	Detail *orchestrator.MicroFrontEndConfig `json:"detail"`

	// Startup lists the module names flagged for startup load.
	Startup []string `json:"startup,omitempty"`

	// Timestamp is when evaluation started.
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of evaluating all policies for one mount.
type Result struct {
	// Allowed reports whether the mount is admitted.
	Allowed bool `json:"allowed"`

	// Violations lists all findings.
	Violations []Violation `json:"violations,omitempty"`

	// EvaluatedAt is when evaluation completed.
	EvaluatedAt time.Time `json:"evaluated_at"`
}
