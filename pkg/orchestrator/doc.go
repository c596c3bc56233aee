// Package orchestrator provides the core types and components of the
// OpenMosaic micro front-end orchestration engine.
//
// The engine resolves a declarative configuration tree into a flat,
// deduplicated load plan, fetches and evaluates each module's bundle
// exactly once, mounts module root elements into placement slots, and
// relays cross-module events between mounted elements.
//
// # Architecture
//
// The package is organized around a small number of cooperating
// components, leaves first:
//
//   - Registry: process-scoped configuration store and load/mount
//     trackers. Container configurations are populated once at startup;
//     bundle-loaded flags and mounted handles are monotonic for the
//     lifetime of the process.
//   - Flatten: walks the nested container configuration tree and
//     produces the deduplicated, first-seen-ordered set of module names.
//   - BundleLoader: idempotent bundle fetch and evaluation with a
//     per-name in-flight guard and a fire-and-forget dependency cascade.
//   - MountManager: slot placement, occupancy and visibility policy for
//     module root elements.
//   - Engine: the public facade composing the above with the external
//     collaborators (transport, environment, session, status store).
//
// External concerns (HTTP transport, bundle evaluation, the host
// document, event relaying, policy admission, status persistence) are
// consumed through the narrow interfaces in interfaces.go and
// implemented in sibling packages.
//
// # Module lifecycle
//
// Each module moves through the states in state.go:
//
//	unregistered -> configured -> bundle-loading -> bundle-loaded ->
//	mounted (hidden <-> visible)
//
// with the terminal failure states bundle-load-failed (retryable by a
// later explicit request) and mount-rejected (slot conflict, not
// retried automatically). A bundle-loaded flag, once set, is never
// reset; a mounted element, once recorded, is hidden but never removed.
package orchestrator
