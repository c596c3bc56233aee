package orchestrator

import "time"

// ModuleState tracks one module through its lifecycle.
type ModuleState string

const (
	// StateUnregistered means the module name has been resolved but no
	// configuration is recorded yet.
	StateUnregistered ModuleState = "unregistered"

	// StateConfigured means the detail configuration is recorded.
	StateConfigured ModuleState = "configured"

	// StateBundleLoading means a bundle fetch/evaluation is in flight.
	StateBundleLoading ModuleState = "bundle-loading"

	// StateBundleLoaded means the bundle has been evaluated. Permanent.
	StateBundleLoaded ModuleState = "bundle-loaded"

	// StateMounted means the module's root element is in a slot.
	StateMounted ModuleState = "mounted"

	// StateBundleLoadFailed means the last bundle load attempt failed.
	// A later explicit request may retry.
	StateBundleLoadFailed ModuleState = "bundle-load-failed"

	// StateMountRejected means placement was refused (slot conflict).
	// Not retried automatically.
	StateMountRejected ModuleState = "mount-rejected"
)

// ModuleStatus is one recorded state transition, persisted by the
// status store for operator visibility.
type ModuleStatus struct {
	// ID is the unique record identifier.
	ID string `json:"id"`

	// Module is the module name.
	Module string `json:"module"`

	// State is the state the module transitioned into.
	State ModuleState `json:"state"`

	// Detail carries an optional human-readable annotation, typically
	// the error text for failure states.
	Detail string `json:"detail,omitempty"`

	// At is when the transition was observed.
	At time.Time `json:"at"`
}
