package orchestrator

import (
	"context"
)

// Transport fetches and decodes the configuration documents and module
// bundles. Implementations live outside this package; failures are
// contained by the callers and never abort the startup sequence.
type Transport interface {
	// FetchContainerTree retrieves the root configuration tree.
	FetchContainerTree(ctx context.Context) ([]*ContainerConfig, error)

	// FetchModuleConfig retrieves one module's detail configuration.
	FetchModuleConfig(ctx context.Context, cc *ContainerConfig) (*MicroFrontEndConfig, error)

	// FetchBundle retrieves one module's executable bundle.
	FetchBundle(ctx context.Context, cc *ContainerConfig) ([]byte, error)
}

// Environment resolves configuration values by string key, such as the
// configuration base URL.
type Environment interface {
	Lookup(key string) (string, bool)
}

// SessionNotifier is the idle/session collaborator. ResetTimeout is
// notified whenever a module is activated through its context key.
type SessionNotifier interface {
	ResetTimeout()
}

// StatusStore persists module state transitions. RemoveAllStatuses is
// invoked once at process start, before any configuration load.
type StatusStore interface {
	RecordStatus(ctx context.Context, status ModuleStatus) error
	RemoveAllStatuses(ctx context.Context) error
}

// ElementFactory produces a live element for a registered tag. Bundles
// register a factory for their module's tag when evaluated.
type ElementFactory func(tag string) Element

// Document is the host document collaborator. It exposes the fixed
// insertion points modules are placed into and the open tag space
// bundles register into.
type Document interface {
	// Region returns the insertion point with the given identifier.
	Region(id RegionID) Region

	// CreateElement creates an element for the tag. If a bundle has
	// registered a factory for the tag, the element is a live module
	// instance; otherwise it is an inert placeholder.
	CreateElement(tag string) Element

	// RegisterTag registers an element factory for a tag. Registering a
	// tag twice is an error.
	RegisterTag(tag string, factory ElementFactory) error
}

// Region is one document insertion point.
type Region interface {
	// ID returns the region identifier.
	ID() RegionID

	// Append inserts an element at the end of the region.
	Append(el Element) error

	// Remove detaches an element from the region.
	Remove(el Element) error

	// Children returns the currently inserted elements in order.
	Children() []Element
}

// Element is a handle to an inserted element. Mounted module elements
// implement the relayed-event capability through Deliver, and expose
// module-emitted events through Events.
type Element interface {
	// TagName returns the element's tag, equal to the module name for
	// module root elements.
	TagName() string

	// Hidden reports whether the element carries the hidden marker.
	Hidden() bool

	// SetHidden sets or clears the hidden marker. Hidden is not
	// unmounted: the element stays in its region.
	SetHidden(hidden bool)

	// Deliver hands a relayed event to the element's module instance.
	Deliver(ev RelayEvent) error

	// Events exposes the stream of events emitted by the module
	// instance. The relay subscribes to this stream on mount.
	Events() <-chan RelayEvent
}

// EventRelay rebroadcasts request- and response-type events emitted by
// mounted elements to the element(s) whose tag matches the event's
// declared target.
type EventRelay interface {
	// Attach subscribes the relay to the element's event stream and
	// makes the element eligible to receive relayed events.
	Attach(el Element)
}

// BundleEvaluator evaluates a fetched bundle exactly once per module.
// Evaluation is expected to register the module's tag with the host
// document so that creating an element with that tag yields a live
// module instance.
type BundleEvaluator interface {
	Evaluate(ctx context.Context, cc *ContainerConfig, bundle []byte) error
}

// Admission decides whether a module may be mounted. Implementations
// in advisory mode log violations and return nil.
type Admission interface {
	Admit(ctx context.Context, cc *ContainerConfig, detail *MicroFrontEndConfig) error
}

// Metrics receives orchestration measurements. The telemetry package
// provides the Prometheus-backed implementation.
type Metrics interface {
	RecordConfigFetch(kind, status string)
	RecordBundleLoad(status string)
	RecordMount(placement, status string)
	RecordRelayEvent(eventType string, receivers int)
	RecordError(class, code string)
}

// NopMetrics is a Metrics implementation that discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordConfigFetch(kind, status string)            {}
func (NopMetrics) RecordBundleLoad(status string)                   {}
func (NopMetrics) RecordMount(placement, status string)             {}
func (NopMetrics) RecordRelayEvent(eventType string, receivers int) {}
func (NopMetrics) RecordError(class, code string)                   {}
