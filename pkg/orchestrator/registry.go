package orchestrator

import (
	"sync"
)

// Registry holds the process-scoped orchestration state: the
// configuration store, the bundle-loaded flags, the mounted element
// handles, the context mapping and the startup list.
//
// Lifecycle: container configurations are replaced once at startup and
// read-only afterwards; detail configurations accrete as fetches
// settle; bundle-loaded flags and mounted handles are monotonic, never
// cleared for the lifetime of the process.
type Registry struct {
	// mu protects all registry state.
	mu sync.RWMutex

	// roots is the root list of the container configuration tree.
	roots []*ContainerConfig

	// containers maps module name to its container configuration,
	// flattened from the tree.
	containers map[string]*ContainerConfig

	// details maps module name to its detail configuration.
	details map[string]*MicroFrontEndConfig

	// contexts maps external routing context to module name.
	contexts map[string]string

	// loaded maps module name to the permanent bundle-loaded flag.
	loaded map[string]bool

	// mounted maps module name to the mounted root element handle.
	mounted map[string]Element

	// startup is the append-only list of modules flagged for automatic
	// load at startup.
	startup []*ContainerConfig

	// states maps module name to its last observed lifecycle state.
	states map[string]ModuleState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		containers: make(map[string]*ContainerConfig),
		details:    make(map[string]*MicroFrontEndConfig),
		contexts:   make(map[string]string),
		loaded:     make(map[string]bool),
		mounted:    make(map[string]Element),
		states:     make(map[string]ModuleState),
	}
}

// ReplaceContainers replaces the container configuration tree and
// rebuilds the name index from the flattened tree.
func (r *Registry) ReplaceContainers(roots []*ContainerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roots = roots
	r.containers = make(map[string]*ContainerConfig)
	indexContainers(roots, r.containers)
}

// indexContainers walks the tree depth-first and records the first
// occurrence of each name.
func indexContainers(nodes []*ContainerConfig, index map[string]*ContainerConfig) {
	for _, node := range nodes {
		if node == nil || node.Name == "" {
			continue
		}
		if _, seen := index[node.Name]; !seen {
			index[node.Name] = node
		}
		indexContainers(node.MicroFrontEnds, index)
	}
}

// Roots returns the root list of the container configuration tree.
func (r *Registry) Roots() []*ContainerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roots
}

// Container returns the container configuration for a module name.
func (r *Registry) Container(name string) (*ContainerConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cc, ok := r.containers[name]
	return cc, ok
}

// SetDetail records a module's detail configuration and its context
// mapping, if any.
func (r *Registry) SetDetail(name string, detail *MicroFrontEndConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.details[name] = detail
	if detail.Context != "" {
		r.contexts[detail.Context] = name
	}
	if state, ok := r.states[name]; !ok || state == StateUnregistered {
		r.states[name] = StateConfigured
	}
}

// Detail returns the detail configuration for a module name.
func (r *Registry) Detail(name string) (*MicroFrontEndConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.details[name]
	return d, ok
}

// NameByContext resolves an external routing context to a module name.
func (r *Registry) NameByContext(context string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.contexts[context]
	return name, ok
}

// AppendStartup appends a module to the startup list and promotes the
// container's LoadOnInit flag. Appending the same module twice is a
// no-op.
func (r *Registry) AppendStartup(cc *ContainerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.startup {
		if existing.Name == cc.Name {
			return
		}
	}
	cc.LoadOnInit = true
	r.startup = append(r.startup, cc)
}

// StartupModules returns the ordered startup list.
func (r *Registry) StartupModules() []*ContainerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ContainerConfig, len(r.startup))
	copy(out, r.startup)
	return out
}

// IsStartup reports whether a module name is in the startup set.
func (r *Registry) IsStartup(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cc := range r.startup {
		if cc.Name == name {
			return true
		}
	}
	return false
}

// StartupFlagged reports whether a module's container carries the
// LoadOnInit flag. AppendStartup promotes the flag under the registry
// mutex, so callers must read it here rather than off the container.
func (r *Registry) StartupFlagged(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cc, ok := r.containers[name]
	return ok && cc.LoadOnInit
}

// BundleLoaded reports whether a module's bundle-loaded flag is set.
func (r *Registry) BundleLoaded(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded[name]
}

// MarkBundleLoaded sets a module's bundle-loaded flag. The flag is
// permanent: there is no way to clear it.
func (r *Registry) MarkBundleLoaded(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[name] = true
	r.states[name] = StateBundleLoaded
}

// Mounted returns the mounted element handle for a module name.
func (r *Registry) Mounted(name string) (Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	el, ok := r.mounted[name]
	return el, ok
}

// SetMounted records a module's mounted element handle. The handle is
// recorded at most once; later calls for the same name are ignored.
func (r *Registry) SetMounted(name string, el Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mounted[name]; exists {
		return
	}
	r.mounted[name] = el
	r.states[name] = StateMounted
}

// MountedElements returns a snapshot of all mounted element handles.
func (r *Registry) MountedElements() []Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Element, 0, len(r.mounted))
	for _, el := range r.mounted {
		out = append(out, el)
	}
	return out
}

// SetState records a module's lifecycle state.
func (r *Registry) SetState(name string, state ModuleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[name] = state
}

// State returns a module's last observed lifecycle state.
func (r *Registry) State(name string) ModuleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if state, ok := r.states[name]; ok {
		return state
	}
	return StateUnregistered
}
