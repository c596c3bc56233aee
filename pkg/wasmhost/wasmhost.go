// Package wasmhost evaluates module bundles as WebAssembly artifacts.
// A bundle, once evaluated, registers its module's tag with the host
// document so that creating an element with that tag yields a live
// module instance backed by the guest.
//
// Module contract: the guest may export mosaic_alloc and
// mosaic_on_event to receive relayed events, and may import
// mosaic.emit_event to publish request/response messages.
package wasmhost

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/openmosaic/openmosaic/pkg/document"
	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// Guest export names of the module contract.
const (
	exportAlloc   = "mosaic_alloc"
	exportOnEvent = "mosaic_on_event"
)

// Config contains evaluator settings.
type Config struct {
	// Timeout bounds every guest call. Defaults to 10s.
	Timeout time.Duration

	// MemoryLimitPages caps guest memory in 64KiB pages.
	// Defaults to 256 pages (16MB).
	MemoryLimitPages uint32
}

// Evaluator instantiates WASM bundles in a shared runtime. It
// implements orchestrator.BundleEvaluator.
type Evaluator struct {
	runtime wazero.Runtime
	doc     orchestrator.Document
	timeout time.Duration
	log     zerolog.Logger

	mu        sync.RWMutex
	instances map[string]*moduleInstance
}

// moduleInstance binds one evaluated guest to its mounted element.
// The element is written by the document on mount and read by the
// emit_event host function, so access goes through the mutex.
type moduleInstance struct {
	module api.Module

	mu      sync.Mutex
	element *document.Element
}

func (i *moduleInstance) setElement(el *document.Element) {
	i.mu.Lock()
	i.element = el
	i.mu.Unlock()
}

func (i *moduleInstance) mountedElement() *document.Element {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.element
}

// New creates an evaluator with its own wazero runtime and the mosaic
// host module instantiated.
func New(ctx context.Context, doc orchestrator.Document, cfg Config, logger zerolog.Logger) (*Evaluator, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MemoryLimitPages == 0 {
		cfg.MemoryLimitPages = 256
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	e := &Evaluator{
		runtime:   runtime,
		doc:       doc,
		timeout:   cfg.Timeout,
		log:       logger.With().Str("component", "wasm-host").Logger(),
		instances: make(map[string]*moduleInstance),
	}

	if err := e.instantiateHostModule(ctx); err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}

	return e, nil
}

// instantiateHostModule registers the host functions guests import.
func (e *Evaluator) instantiateHostModule(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder("mosaic")

	// emit_event publishes a JSON-encoded relay event from the guest.
	// The emitting module is identified by its instantiated module name.
	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint32 {
			raw, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 1
			}

			var ev orchestrator.RelayEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				e.log.Warn().Err(err).Str("module", mod.Name()).Msg("guest emitted malformed event")
				return 1
			}
			ev.Source = mod.Name()

			e.mu.RLock()
			inst := e.instances[mod.Name()]
			e.mu.RUnlock()
			if inst == nil {
				return 1
			}
			el := inst.mountedElement()
			if el == nil {
				// The module is loaded but not mounted yet; events from
				// unmounted modules have no element to ride on.
				return 1
			}

			if err := el.Publish(ev); err != nil {
				e.log.Warn().Err(err).Str("module", mod.Name()).Msg("guest event dropped")
				return 1
			}
			return 0
		}).
		Export("emit_event")

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}
	return nil
}

// Evaluate compiles and instantiates one bundle and registers the
// module's tag with the host document. The caller guarantees
// at-most-once evaluation per module.
func (e *Evaluator) Evaluate(ctx context.Context, cc *orchestrator.ContainerConfig, bundle []byte) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	moduleConfig := wazero.NewModuleConfig().WithName(cc.Name)
	mod, err := e.runtime.InstantiateWithConfig(ctx, bundle, moduleConfig)
	if err != nil {
		return fmt.Errorf("failed to instantiate bundle for %s: %w", cc.Name, err)
	}

	inst := &moduleInstance{module: mod}
	e.mu.Lock()
	e.instances[cc.Name] = inst
	e.mu.Unlock()

	if err := e.doc.RegisterTag(cc.Name, e.elementFactory(inst)); err != nil {
		// The tag space is open and shared; a collision means another
		// bundle claimed the name first.
		return fmt.Errorf("failed to register tag for %s: %w", cc.Name, err)
	}

	e.log.Info().Str("module", cc.Name).Msg("bundle evaluated, tag registered")
	return nil
}

// elementFactory yields live elements bound to the guest instance.
// Relayed events delivered to the element are forwarded into the guest
// through its exports, when present.
func (e *Evaluator) elementFactory(inst *moduleInstance) orchestrator.ElementFactory {
	return func(tag string) orchestrator.Element {
		el := document.NewElement(tag)
		inst.setElement(el)

		onEvent := inst.module.ExportedFunction(exportOnEvent)
		alloc := inst.module.ExportedFunction(exportAlloc)
		if onEvent != nil && alloc != nil {
			el.OnDeliver(func(ev orchestrator.RelayEvent) error {
				return e.callOnEvent(inst, alloc, onEvent, ev)
			})
		}
		return el
	}
}

// callOnEvent marshals an event into guest memory and invokes the
// guest's event entry point.
func (e *Evaluator) callOnEvent(inst *moduleInstance, alloc, onEvent api.Function, ev orchestrator.RelayEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	results, err := alloc.Call(ctx, uint64(len(raw)))
	if err != nil {
		return fmt.Errorf("guest alloc failed: %w", err)
	}
	ptr := uint32(results[0])

	if !inst.module.Memory().Write(ptr, raw) {
		return fmt.Errorf("failed to write event into guest memory")
	}

	if _, err := onEvent.Call(ctx, uint64(ptr), uint64(len(raw))); err != nil {
		return fmt.Errorf("guest event handler failed: %w", err)
	}
	return nil
}

// Close closes the runtime and every instantiated guest.
func (e *Evaluator) Close(ctx context.Context) error {
	if err := e.runtime.Close(ctx); err != nil {
		return fmt.Errorf("failed to close WASM runtime: %w", err)
	}
	return nil
}
