package orchestrator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// defaultDetailWorkers bounds the parallel detail-configuration fetch.
const defaultDetailWorkers = 8

// Engine is the orchestration facade. It composes the registry, the
// bundle loader and the mount manager with the external collaborators
// and exposes the public load operations.
type Engine struct {
	registry  *Registry
	transport Transport
	loader    *BundleLoader
	mounter   *MountManager
	session   SessionNotifier
	status    StatusStore
	metrics   Metrics
	tracer    trace.Tracer
	log       zerolog.Logger

	detailWorkers int
}

// Options configures an Engine. Transport, Document and Evaluator are
// required; the remaining collaborators are optional.
type Options struct {
	// Transport fetches configuration documents and bundles.
	Transport Transport

	// Document is the host document collaborator.
	Document Document

	// Evaluator evaluates fetched bundles.
	Evaluator BundleEvaluator

	// Relay receives mounted elements for event fan-out. Optional.
	Relay EventRelay

	// Admission gates mounting. Optional.
	Admission Admission

	// Session is notified on context-based activation. Optional.
	Session SessionNotifier

	// Status persists module state transitions. Optional.
	Status StatusStore

	// Metrics receives measurements. Defaults to NopMetrics.
	Metrics Metrics

	// Logger is the base logger. Component children derive from it.
	Logger zerolog.Logger

	// DetailWorkers bounds the parallel detail-config fetch.
	// Defaults to 8.
	DetailWorkers int
}

// New creates an engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, NewPermanentError("transport is required", nil).WithCode(ErrCodeValidation)
	}
	if opts.Document == nil {
		return nil, NewPermanentError("document is required", nil).WithCode(ErrCodeValidation)
	}
	if opts.Evaluator == nil {
		return nil, NewPermanentError("bundle evaluator is required", nil).WithCode(ErrCodeValidation)
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.DetailWorkers <= 0 {
		opts.DetailWorkers = defaultDetailWorkers
	}

	registry := NewRegistry()
	loader := NewBundleLoader(registry, opts.Transport, opts.Evaluator, opts.Document,
		opts.Status, opts.Metrics, opts.Logger)
	mounter := NewMountManager(registry, opts.Document, opts.Relay, opts.Admission,
		opts.Status, opts.Metrics, opts.Logger)

	return &Engine{
		registry:      registry,
		transport:     opts.Transport,
		loader:        loader,
		mounter:       mounter,
		session:       opts.Session,
		status:        opts.Status,
		metrics:       opts.Metrics,
		tracer:        otel.Tracer("openmosaic/orchestrator"),
		log:           opts.Logger.With().Str("component", "engine").Logger(),
		detailWorkers: opts.DetailWorkers,
	}, nil
}

// Registry exposes the engine's registry, primarily for inspection.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Bootstrap runs the full startup sequence: status reset, container
// tree load, detail configuration load, then startup module load.
// Nothing in the sequence is allowed to hard-fail the startup.
func (e *Engine) Bootstrap(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "engine.Bootstrap")
	defer span.End()

	if e.status != nil {
		if err := e.status.RemoveAllStatuses(ctx); err != nil {
			e.log.Warn().Err(err).Msg("failed to reset module statuses")
		}
	}

	e.LoadContainerConfigurations(ctx)
	e.LoadMicroFrontEndConfigurations(ctx)
	e.LoadDefaultMicroFrontEnds(ctx)
	return nil
}

// LoadContainerConfigurations fetches the root configuration tree and
// replaces the registry's container list. Transport failure is logged
// and swallowed: startup proceeds with an empty tree.
func (e *Engine) LoadContainerConfigurations(ctx context.Context) {
	ctx, span := e.tracer.Start(ctx, "engine.LoadContainerConfigurations")
	defer span.End()

	roots, err := e.transport.FetchContainerTree(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to fetch container configuration tree")
		e.metrics.RecordConfigFetch("tree", "failure")
		e.metrics.RecordError(string(ClassOf(err)), ErrCodeTransport)
		return
	}

	e.registry.ReplaceContainers(roots)
	e.metrics.RecordConfigFetch("tree", "success")
	e.log.Info().Int("modules", len(Flatten(roots))).Msg("container configuration tree loaded")
}

// LoadMicroFrontEndConfigurations resolves the flattened module-name
// set and fetches every module's detail configuration in parallel.
// Each fetch settles independently: one module's failure never blocks
// its siblings. Returns after every fetch has settled.
func (e *Engine) LoadMicroFrontEndConfigurations(ctx context.Context) {
	ctx, span := e.tracer.Start(ctx, "engine.LoadMicroFrontEndConfigurations")
	defer span.End()

	names := Flatten(e.registry.Roots())
	span.SetAttributes(attribute.Int("modules", len(names)))

	sem := make(chan struct{}, e.detailWorkers)
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()
			e.loadDetailConfiguration(ctx, name)
		}(name)
	}
	wg.Wait()
}

// loadDetailConfiguration fetches and records one module's detail
// configuration. Failures are contained here.
func (e *Engine) loadDetailConfiguration(ctx context.Context, name string) {
	log := e.log.With().Str("module", name).Logger()

	cc, ok := e.registry.Container(name)
	if !ok {
		log.Error().Msg("resolved module has no container configuration, skipping")
		e.metrics.RecordError(string(ErrorClassPermanent), ErrCodeNotFound)
		return
	}

	detail, err := e.transport.FetchModuleConfig(ctx, cc)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch module configuration")
		e.metrics.RecordConfigFetch("detail", "failure")
		e.metrics.RecordError(string(ClassOf(err)), ErrCodeTransport)
		return
	}
	if detail.Name == "" {
		detail.Name = name
	}

	// A navigation route and a non-empty menu item list are mutually
	// exclusive: menu items win and the route is dropped.
	if detail.NormalizeNavigation() {
		log.Warn().Msg("navigation route dropped: menu items take precedence")
	}

	e.registry.SetDetail(name, detail)
	if detail.LoadOnInit {
		e.registry.AppendStartup(cc)
	}
	e.metrics.RecordConfigFetch("detail", "success")
	log.Debug().
		Bool("load_on_init", detail.LoadOnInit).
		Str("context", detail.Context).
		Str("placement", string(detail.Placement)).
		Msg("module configuration loaded")
}

// LoadDefaultMicroFrontEnds sequentially triggers the full load
// (bundle + mount) for every module in the startup list. A failing
// startup module never prevents the remaining ones from loading.
func (e *Engine) LoadDefaultMicroFrontEnds(ctx context.Context) {
	ctx, span := e.tracer.Start(ctx, "engine.LoadDefaultMicroFrontEnds")
	defer span.End()

	for _, cc := range e.registry.StartupModules() {
		if err := e.LoadMicroFrontEnd(ctx, cc); err != nil {
			e.log.Error().Err(err).Str("module", cc.Name).Msg("startup module failed to load")
		}
	}
}

// LoadMicroFrontEnd runs the bundle loader and, only on bundle
// success, the mount manager for one module. Bundle failure
// short-circuits mounting.
func (e *Engine) LoadMicroFrontEnd(ctx context.Context, cc *ContainerConfig) error {
	ctx, span := e.tracer.Start(ctx, "engine.LoadMicroFrontEnd")
	defer span.End()
	if cc != nil {
		span.SetAttributes(attribute.String("module", cc.Name))
	}

	if err := e.loader.Load(ctx, cc); err != nil {
		e.log.Error().Err(err).Msg("bundle load failed, skipping mount")
		return err
	}

	e.mounter.Mount(ctx, cc)
	return nil
}

// LoadMicroFrontEndByName resolves a module name to its container
// configuration and loads it.
func (e *Engine) LoadMicroFrontEndByName(ctx context.Context, name string) error {
	cc, ok := e.registry.Container(name)
	if !ok {
		err := NewPermanentError("unknown module", nil).
			WithModule(name).WithOperation("load-by-name").WithCode(ErrCodeNotFound)
		e.log.Error().Err(err).Msg("module name not registered")
		e.metrics.RecordError(string(err.Class), err.Code)
		return err
	}
	return e.LoadMicroFrontEnd(ctx, cc)
}

// LoadMicroFrontEndByContext resolves an external routing context to a
// module and loads it. The session collaborator is notified that
// activity occurred.
func (e *Engine) LoadMicroFrontEndByContext(ctx context.Context, moduleContext string) error {
	if e.session != nil {
		e.session.ResetTimeout()
	}

	name, ok := e.registry.NameByContext(moduleContext)
	if !ok {
		err := NewPermanentError("unknown module context", nil).
			WithOperation("load-by-context").WithCode(ErrCodeNotFound)
		e.log.Error().Err(err).Str("context", moduleContext).Msg("module context not registered")
		e.metrics.RecordError(string(err.Class), err.Code)
		return err
	}
	return e.LoadMicroFrontEndByName(ctx, name)
}
