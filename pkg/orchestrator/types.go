package orchestrator

import (
	"fmt"
	"strings"
)

// Placement identifies the document region a module's root element is
// inserted into.
type Placement string

const (
	// PlacementDefault places the module in the shared main content region.
	PlacementDefault Placement = "default"

	// PlacementUserProfile places the module in the reserved
	// single-occupancy user profile region.
	PlacementUserProfile Placement = "userProfile"
)

// RegionID identifies one of the fixed insertion points exposed by the
// host document.
type RegionID string

const (
	// RegionMain is the shared main content region.
	RegionMain RegionID = "main-content"

	// RegionUserProfile is the reserved single-occupancy region.
	RegionUserProfile RegionID = "user-profile"
)

// Region returns the document region for a placement.
func (p Placement) Region() RegionID {
	if p == PlacementUserProfile {
		return RegionUserProfile
	}
	return RegionMain
}

// ContainerConfig is the container-level descriptor for one module as
// delivered in the root configuration tree. Identity is Name.
// Instances are created once at startup and mutated in place only to
// promote LoadOnInit when the module's detail configuration flags it.
type ContainerConfig struct {
	// Name is the unique module name. The module's bundle registers this
	// name as its element tag.
	Name string `json:"name" validate:"required"`

	// Version selects the bundle and detail configuration revision.
	Version string `json:"version,omitempty"`

	// LoadOnInit marks the module for automatic load at startup. It is
	// promoted to true once the detail configuration declares it.
	LoadOnInit bool `json:"loadOnInit,omitempty"`

	// MicroFrontEnds is the ordered list of nested module subtrees.
	MicroFrontEnds []*ContainerConfig `json:"microFrontEnds,omitempty" validate:"omitempty,dive"`
}

// BundlePath returns the versioned bundle locator relative to the
// configuration base URL.
func (c *ContainerConfig) BundlePath() string {
	return fmt.Sprintf("bundles/%s/%s/%s.wasm", c.Name, c.versionOrLatest(), c.Name)
}

// ConfigPath returns the detail configuration locator relative to the
// configuration base URL. The version rides along as a cache-busting
// query parameter.
func (c *ContainerConfig) ConfigPath() string {
	return fmt.Sprintf("modules/%s.json?v=%s", c.Name, c.versionOrLatest())
}

func (c *ContainerConfig) versionOrLatest() string {
	if c.Version == "" {
		return "latest"
	}
	return c.Version
}

// ContainerTree is the root configuration document fetched at startup.
type ContainerTree struct {
	// MicroFrontEnds is the root list of container configurations.
	MicroFrontEnds []*ContainerConfig `json:"microFrontEnds" validate:"omitempty,dive"`
}

// MicroFrontEndConfig is the per-module runtime detail descriptor,
// fetched separately for each resolved module name.
type MicroFrontEndConfig struct {
	// Name echoes the module name the configuration belongs to.
	Name string `json:"name,omitempty"`

	// LoadOnInit requests automatic loading at startup.
	LoadOnInit bool `json:"loadOnInit,omitempty"`

	// Context is an optional external routing key mapping onto this
	// module.
	Context string `json:"context,omitempty"`

	// Placement selects the document region for the module's root
	// element. Empty means the default main content region.
	Placement Placement `json:"placement,omitempty" validate:"omitempty,oneof=default userProfile"`

	// Dependencies lists module names loaded after this module's bundle
	// completes. The cascade is fire-and-forget.
	Dependencies []string `json:"dependencies,omitempty"`

	// NavigationBarItem carries navigation metadata for the host shell.
	NavigationBarItem *NavigationBarItem `json:"navigationBarItem,omitempty"`
}

// NormalizeNavigation applies the navigation invariant: when the
// configuration declares both a route and a non-empty menu item list,
// the route is invalid and dropped. Reports whether a route was
// dropped; the caller logs the warning.
func (c *MicroFrontEndConfig) NormalizeNavigation() bool {
	nav := c.NavigationBarItem
	if nav == nil || nav.Route == "" || len(nav.MenuItems) == 0 {
		return false
	}
	nav.Route = ""
	return true
}

// NavigationBarItem describes how a module surfaces in the host
// navigation bar. A route and a non-empty menu item list are mutually
// exclusive; the route is dropped when both are present.
type NavigationBarItem struct {
	// Title is the display label.
	Title string `json:"title,omitempty"`

	// Route is the navigation target for a plain item.
	Route string `json:"route,omitempty"`

	// MenuItems are sub-entries for a drop-down item.
	MenuItems []MenuItem `json:"menuItems,omitempty"`
}

// MenuItem is one entry of a drop-down navigation item.
type MenuItem struct {
	// Title is the display label.
	Title string `json:"title,omitempty"`

	// Route is the navigation target.
	Route string `json:"route,omitempty"`
}

// RelayEventType distinguishes the two intercepted message types.
type RelayEventType string

const (
	// RelayEventRequest is the request-type message emitted by modules.
	RelayEventRequest RelayEventType = "mosaic.request"

	// RelayEventResponse is the response-type message emitted by modules.
	RelayEventResponse RelayEventType = "mosaic.response"
)

// RelaySuffix is appended to the event type when an intercepted event
// is rebroadcast to matching elements.
const RelaySuffix = ".relayed"

// RelayEvent is a structured message exchanged between mounted modules.
type RelayEvent struct {
	// ID is the unique event identifier, assigned by the relay when
	// absent.
	ID string `json:"id,omitempty"`

	// Type is the event type. Rebroadcast events carry RelaySuffix.
	Type RelayEventType `json:"type"`

	// Source is the tag name of the emitting element.
	Source string `json:"source,omitempty"`

	// Target is the tag name of the element(s) the event addresses.
	// Matching is case-insensitive.
	Target string `json:"target"`

	// Payload is the opaque event body.
	Payload map[string]any `json:"payload,omitempty"`
}

// Relayed returns a derived event with the rebroadcast type suffix.
func (e RelayEvent) Relayed() RelayEvent {
	derived := e
	derived.Type = RelayEventType(string(e.Type) + RelaySuffix)
	return derived
}

// Matches reports whether the event's target matches the given tag,
// case-insensitively.
func (e RelayEvent) Matches(tag string) bool {
	return e.Target != "" && strings.EqualFold(e.Target, tag)
}
