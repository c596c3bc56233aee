package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MountManager places module root elements into document regions and
// enforces the slot occupancy and visibility policy. Mounting is
// expected to run only after the module's bundle has loaded.
type MountManager struct {
	registry  *Registry
	document  Document
	relay     EventRelay
	admission Admission
	status    StatusStore
	metrics   Metrics
	log       zerolog.Logger

	// mu serializes overlapping mounts so that two nearly-simultaneous
	// calls for the same module cannot both observe "not mounted".
	mu sync.Mutex
}

// NewMountManager creates a mount manager. relay, admission and status
// may be nil.
func NewMountManager(
	registry *Registry,
	document Document,
	relay EventRelay,
	admission Admission,
	status StatusStore,
	metrics Metrics,
	logger zerolog.Logger,
) *MountManager {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &MountManager{
		registry:  registry,
		document:  document,
		relay:     relay,
		admission: admission,
		status:    status,
		metrics:   metrics,
		log:       logger.With().Str("component", "mount-manager").Logger(),
	}
}

// Mount ensures the module's root element exists in the correct
// placement slot at most once. Calling Mount again for an already
// mounted module only clears its hidden marker. A reserved-slot
// conflict is reported through logs and the status store, never as an
// error to the caller chain.
func (m *MountManager) Mount(ctx context.Context, cc *ContainerConfig) {
	if cc == nil || cc.Name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.log.With().Str("module", cc.Name).Logger()
	detail, hasDetail := m.registry.Detail(cc.Name)

	// Visibility bookkeeping runs on every non-startup mount: every
	// mounted element whose tag is not in the startup set is ghosted,
	// keeping exactly the startup set visible while a non-startup
	// module is surfaced.
	if !hasDetail || !detail.LoadOnInit {
		m.ghostNonStartup()
	}
	if !hasDetail {
		log.Debug().Msg("no detail configuration, skipping mount")
		return
	}

	if _, mounted := m.registry.Mounted(cc.Name); mounted {
		m.reveal(cc.Name)
		return
	}

	if m.admission != nil {
		if err := m.admission.Admit(ctx, cc, detail); err != nil {
			log.Error().Err(err).Msg("mount rejected by policy")
			m.reject(ctx, cc.Name, detail.Placement, err.Error())
			return
		}
	}

	if detail.Placement == PlacementUserProfile {
		profile := m.document.Region(RegionUserProfile)
		if len(profile.Children()) > 0 {
			log.Error().Msg("user profile slot already occupied, mount aborted")
			m.metrics.RecordError(string(ErrorClassConflict), ErrCodeSlotOccupied)
			m.reject(ctx, cc.Name, detail.Placement, "user profile slot occupied")
			return
		}
		m.place(ctx, cc, profile, log)
		return
	}

	m.place(ctx, cc, m.document.Region(RegionMain), log)
}

// place creates the module's root element, inserts it into the region,
// records the handle and attaches the relay listeners.
func (m *MountManager) place(ctx context.Context, cc *ContainerConfig, region Region, log zerolog.Logger) {
	el := m.document.CreateElement(cc.Name)
	if err := region.Append(el); err != nil {
		log.Error().Err(err).Str("region", string(region.ID())).Msg("failed to insert root element")
		m.metrics.RecordMount(string(region.ID()), "failure")
		m.reject(ctx, cc.Name, "", err.Error())
		return
	}

	m.registry.SetMounted(cc.Name, el)
	if m.relay != nil {
		m.relay.Attach(el)
	}

	m.recordStatus(ctx, cc.Name, StateMounted, "")
	m.metrics.RecordMount(string(region.ID()), "success")
	log.Info().Str("region", string(region.ID())).Msg("module mounted")
}

// reveal clears the hidden marker on an already-mounted element.
func (m *MountManager) reveal(name string) {
	if el, ok := m.registry.Mounted(name); ok {
		el.SetHidden(false)
	}
}

// ghostNonStartup hides every mounted element whose tag is not a
// startup module name. Hidden elements stay mounted.
func (m *MountManager) ghostNonStartup() {
	for _, el := range m.registry.MountedElements() {
		if !m.registry.IsStartup(el.TagName()) {
			el.SetHidden(true)
		}
	}
}

// reject records a mount rejection. The failure is contained here: the
// module simply fails to appear.
func (m *MountManager) reject(ctx context.Context, name string, placement Placement, detail string) {
	m.registry.SetState(name, StateMountRejected)
	m.recordStatus(ctx, name, StateMountRejected, detail)
	if placement != "" {
		m.metrics.RecordMount(string(placement.Region()), "rejected")
	}
}

func (m *MountManager) recordStatus(ctx context.Context, module string, state ModuleState, detail string) {
	if m.status == nil {
		return
	}
	status := ModuleStatus{
		ID:     uuid.New().String(),
		Module: module,
		State:  state,
		Detail: detail,
		At:     time.Now(),
	}
	if err := m.status.RecordStatus(ctx, status); err != nil {
		m.log.Warn().Err(err).Str("module", module).Msg("failed to record module status")
	}
}
