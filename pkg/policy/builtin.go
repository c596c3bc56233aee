package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in admission policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		tagNamingPolicy(),
		reservedPlacementPolicy(),
		declaredDependenciesPolicy(),
	}
}

// tagNamingPolicy enforces module tag naming conventions.
func tagNamingPolicy() Policy {
	return Policy{
		Name:        "tag-naming",
		Description: "Module tags must be lowercase alphanumeric with hyphens",
		Severity:    SeverityError,
		Enabled:     true,
		CreatedAt:   time.Now(),
		Rego: `package openmosaic.policies.naming

import rego.v1

deny contains violation if {
	input.module
	not input.module.name
	violation := {
		"message": "module must have a name",
		"severity": "error",
	}
}

deny contains violation if {
	name := input.module.name
	not regex.match("^[a-z][a-z0-9-]*$", name)
	violation := {
		"message": sprintf("module tag '%s' must be lowercase alphanumeric with hyphens", [name]),
		"severity": "error",
		"module": name,
	}
}
`,
	}
}

// reservedPlacementPolicy restricts the reserved user profile slot to
// modules that do not auto-load at startup.
func reservedPlacementPolicy() Policy {
	return Policy{
		Name:        "reserved-placement",
		Description: "Startup modules may not claim the reserved user profile slot",
		Severity:    SeverityWarning,
		Enabled:     true,
		CreatedAt:   time.Now(),
		Rego: `package openmosaic.policies.placement

import rego.v1

deny contains violation if {
	input.detail.placement == "userProfile"
	input.detail.loadOnInit == true
	violation := {
		"message": sprintf("startup module '%s' claims the reserved user profile slot", [input.module.name]),
		"severity": "warning",
		"module": input.module.name,
	}
}
`,
	}
}

// declaredDependenciesPolicy flags dependencies on modules absent from
// the startup configuration tree.
func declaredDependenciesPolicy() Policy {
	return Policy{
		Name:        "declared-dependencies",
		Description: "Declared dependencies should reference modules present in the configuration tree",
		Severity:    SeverityWarning,
		Enabled:     true,
		CreatedAt:   time.Now(),
		Rego: `package openmosaic.policies.dependencies

import rego.v1

deny contains violation if {
	some dep in input.detail.dependencies
	not regex.match("^[a-z][a-z0-9-]*$", dep)
	violation := {
		"message": sprintf("module '%s' declares malformed dependency '%s'", [input.module.name, dep]),
		"severity": "warning",
		"module": input.module.name,
	}
}
`,
	}
}
