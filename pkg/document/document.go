// Package document provides the in-memory host document collaborator:
// the two fixed insertion points module elements are placed into and
// the open tag space bundles register element factories into.
package document

import (
	"fmt"
	"sync"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// eventBuffer is the per-element outbound event buffer size.
const eventBuffer = 64

// Document is an in-memory host document. It implements
// orchestrator.Document.
type Document struct {
	mu        sync.RWMutex
	regions   map[orchestrator.RegionID]*Region
	factories map[string]orchestrator.ElementFactory
}

// New creates a document with the main content and user profile
// regions.
func New() *Document {
	return &Document{
		regions: map[orchestrator.RegionID]*Region{
			orchestrator.RegionMain:        newRegion(orchestrator.RegionMain),
			orchestrator.RegionUserProfile: newRegion(orchestrator.RegionUserProfile),
		},
		factories: make(map[string]orchestrator.ElementFactory),
	}
}

// Region returns the insertion point with the given identifier.
func (d *Document) Region(id orchestrator.RegionID) orchestrator.Region {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.regions[id]
}

// CreateElement creates an element for the tag. A registered factory
// yields a live module instance; otherwise the element is inert.
func (d *Document) CreateElement(tag string) orchestrator.Element {
	d.mu.RLock()
	factory, ok := d.factories[tag]
	d.mu.RUnlock()

	if ok {
		return factory(tag)
	}
	return NewElement(tag)
}

// RegisterTag registers an element factory for a tag. Bundles call
// this during evaluation; a tag registers at most once.
func (d *Document) RegisterTag(tag string, factory orchestrator.ElementFactory) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.factories[tag]; exists {
		return fmt.Errorf("tag %q already registered", tag)
	}
	d.factories[tag] = factory
	return nil
}

// TagRegistered reports whether a factory is registered for the tag.
func (d *Document) TagRegistered(tag string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.factories[tag]
	return ok
}

// Region is one document insertion point holding an ordered list of
// elements.
type Region struct {
	id       orchestrator.RegionID
	mu       sync.RWMutex
	children []orchestrator.Element
}

func newRegion(id orchestrator.RegionID) *Region {
	return &Region{id: id}
}

// ID returns the region identifier.
func (r *Region) ID() orchestrator.RegionID { return r.id }

// Append inserts an element at the end of the region.
func (r *Region) Append(el orchestrator.Element) error {
	if el == nil {
		return fmt.Errorf("cannot append nil element")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = append(r.children, el)
	return nil
}

// Remove detaches an element from the region. Removing an element that
// is not present is a no-op.
func (r *Region) Remove(el orchestrator.Element) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, child := range r.children {
		if child == el {
			r.children = append(r.children[:i], r.children[i+1:]...)
			return nil
		}
	}
	return nil
}

// Children returns the currently inserted elements in order.
func (r *Region) Children() []orchestrator.Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]orchestrator.Element, len(r.children))
	copy(out, r.children)
	return out
}

// Element is an in-memory element handle. Module instances publish
// outbound events through Publish and receive relayed events through
// the sink registered with OnDeliver.
type Element struct {
	tag string

	mu     sync.RWMutex
	hidden bool
	sink   func(orchestrator.RelayEvent) error

	events chan orchestrator.RelayEvent
}

// NewElement creates an element for a tag.
func NewElement(tag string) *Element {
	return &Element{
		tag:    tag,
		events: make(chan orchestrator.RelayEvent, eventBuffer),
	}
}

// TagName returns the element's tag.
func (e *Element) TagName() string { return e.tag }

// Hidden reports whether the element carries the hidden marker.
func (e *Element) Hidden() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hidden
}

// SetHidden sets or clears the hidden marker.
func (e *Element) SetHidden(hidden bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden = hidden
}

// OnDeliver registers the module-side sink for relayed events.
func (e *Element) OnDeliver(sink func(orchestrator.RelayEvent) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Deliver hands a relayed event to the module-side sink. Events
// delivered to an element without a sink are dropped.
func (e *Element) Deliver(ev orchestrator.RelayEvent) error {
	e.mu.RLock()
	sink := e.sink
	e.mu.RUnlock()

	if sink == nil {
		return nil
	}
	return sink(ev)
}

// Publish emits an event from the module instance. The relay consumes
// it through Events. Publishing to a full buffer drops the event.
func (e *Element) Publish(ev orchestrator.RelayEvent) error {
	if ev.Source == "" {
		ev.Source = e.tag
	}
	select {
	case e.events <- ev:
		return nil
	default:
		return fmt.Errorf("event buffer full for element %q", e.tag)
	}
}

// Events exposes the stream of module-emitted events.
func (e *Element) Events() <-chan orchestrator.RelayEvent {
	return e.events
}
