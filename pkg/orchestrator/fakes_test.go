package orchestrator

import (
	"context"
	"sync"
)

// fakeTransport serves canned configuration documents and bundles.
type fakeTransport struct {
	mu      sync.Mutex
	tree    []*ContainerConfig
	treeErr error
	details map[string]*MicroFrontEndConfig
	detErr  map[string]error
	bundles map[string][]byte
	bunErr  map[string]error

	bundleFetches map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		details:       make(map[string]*MicroFrontEndConfig),
		detErr:        make(map[string]error),
		bundles:       make(map[string][]byte),
		bunErr:        make(map[string]error),
		bundleFetches: make(map[string]int),
	}
}

func (t *fakeTransport) FetchContainerTree(ctx context.Context) ([]*ContainerConfig, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.treeErr != nil {
		return nil, t.treeErr
	}
	return t.tree, nil
}

func (t *fakeTransport) FetchModuleConfig(ctx context.Context, cc *ContainerConfig) (*MicroFrontEndConfig, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.detErr[cc.Name]; err != nil {
		return nil, err
	}
	if detail, ok := t.details[cc.Name]; ok {
		copied := *detail
		return &copied, nil
	}
	return &MicroFrontEndConfig{Name: cc.Name}, nil
}

func (t *fakeTransport) FetchBundle(ctx context.Context, cc *ContainerConfig) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bundleFetches[cc.Name]++
	if err := t.bunErr[cc.Name]; err != nil {
		return nil, err
	}
	if bundle, ok := t.bundles[cc.Name]; ok {
		return bundle, nil
	}
	return []byte{0x00, 0x61, 0x73, 0x6d}, nil
}

func (t *fakeTransport) fetchCount(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bundleFetches[name]
}

// fakeEvaluator records evaluations and can be told to fail or block.
type fakeEvaluator struct {
	mu        sync.Mutex
	evaluated map[string]int
	errs      map[string]error
	gate      chan struct{}
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{
		evaluated: make(map[string]int),
		errs:      make(map[string]error),
	}
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, cc *ContainerConfig, bundle []byte) error {
	if e.gate != nil {
		<-e.gate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluated[cc.Name]++
	return e.errs[cc.Name]
}

func (e *fakeEvaluator) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluated[name]
}

// fakeElement is an in-memory element handle.
type fakeElement struct {
	tag    string
	mu     sync.Mutex
	hidden bool

	delivered []RelayEvent
	events    chan RelayEvent
}

func newFakeElement(tag string) *fakeElement {
	return &fakeElement{tag: tag, events: make(chan RelayEvent, 16)}
}

func (e *fakeElement) TagName() string { return e.tag }

func (e *fakeElement) Hidden() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hidden
}

func (e *fakeElement) SetHidden(hidden bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden = hidden
}

func (e *fakeElement) Deliver(ev RelayEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delivered = append(e.delivered, ev)
	return nil
}

func (e *fakeElement) Events() <-chan RelayEvent { return e.events }

// fakeRegion is an ordered element container.
type fakeRegion struct {
	id       RegionID
	mu       sync.Mutex
	children []Element
}

func (r *fakeRegion) ID() RegionID { return r.id }

func (r *fakeRegion) Append(el Element) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = append(r.children, el)
	return nil
}

func (r *fakeRegion) Remove(el Element) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.children {
		if existing == el {
			r.children = append(r.children[:i], r.children[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRegion) Children() []Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Element, len(r.children))
	copy(out, r.children)
	return out
}

// tagCounts returns the number of inserted elements per tag. Successful
// bundle loads leave their loader script element in the region, so
// assertions count by tag instead of raw child totals.
func (r *fakeRegion) tagCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, el := range r.children {
		counts[el.TagName()]++
	}
	return counts
}

// fakeDocument exposes the two fixed regions and a tag registry.
type fakeDocument struct {
	mu      sync.Mutex
	main    *fakeRegion
	profile *fakeRegion
	tags    map[string]ElementFactory
}

func newFakeDocument() *fakeDocument {
	return &fakeDocument{
		main:    &fakeRegion{id: RegionMain},
		profile: &fakeRegion{id: RegionUserProfile},
		tags:    make(map[string]ElementFactory),
	}
}

func (d *fakeDocument) Region(id RegionID) Region {
	if id == RegionUserProfile {
		return d.profile
	}
	return d.main
}

func (d *fakeDocument) CreateElement(tag string) Element {
	d.mu.Lock()
	factory := d.tags[tag]
	d.mu.Unlock()
	if factory != nil {
		return factory(tag)
	}
	return newFakeElement(tag)
}

func (d *fakeDocument) RegisterTag(tag string, factory ElementFactory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.tags[tag]; exists {
		return NewConflictError("tag already registered", nil).WithModule(tag)
	}
	d.tags[tag] = factory
	return nil
}

// fakeRelay records attached elements.
type fakeRelay struct {
	mu       sync.Mutex
	attached []Element
}

func (r *fakeRelay) Attach(el Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = append(r.attached, el)
}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attached)
}

// fakeAdmission rejects the named modules.
type fakeAdmission struct {
	rejected map[string]error
}

func (a *fakeAdmission) Admit(ctx context.Context, cc *ContainerConfig, detail *MicroFrontEndConfig) error {
	if a.rejected == nil {
		return nil
	}
	return a.rejected[cc.Name]
}

// fakeStatusStore records statuses in memory.
type fakeStatusStore struct {
	mu       sync.Mutex
	statuses []ModuleStatus
	cleared  int
}

func (s *fakeStatusStore) RecordStatus(ctx context.Context, status ModuleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeStatusStore) RemoveAllStatuses(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = nil
	s.cleared++
	return nil
}

func (s *fakeStatusStore) states(module string) []ModuleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ModuleState
	for _, st := range s.statuses {
		if st.Module == module {
			out = append(out, st.State)
		}
	}
	return out
}

// fakeSession counts timeout resets.
type fakeSession struct {
	mu     sync.Mutex
	resets int
}

func (s *fakeSession) ResetTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func (s *fakeSession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}
