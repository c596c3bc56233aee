package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BundleLoader fetches and evaluates module bundles at most once per
// module. Concurrent callers for the same module are coalesced on a
// per-name in-flight guard: exactly one fetch/evaluation runs and all
// callers observe its outcome.
type BundleLoader struct {
	registry  *Registry
	transport Transport
	evaluator BundleEvaluator
	document  Document
	status    StatusStore
	metrics   Metrics
	log       zerolog.Logger

	// group serializes overlapping loads per module name.
	group flightGroup
}

// NewBundleLoader creates a bundle loader. status may be nil; metrics
// may be NopMetrics.
func NewBundleLoader(
	registry *Registry,
	transport Transport,
	evaluator BundleEvaluator,
	document Document,
	status StatusStore,
	metrics Metrics,
	logger zerolog.Logger,
) *BundleLoader {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &BundleLoader{
		registry:  registry,
		transport: transport,
		evaluator: evaluator,
		document:  document,
		status:    status,
		metrics:   metrics,
		log:       logger.With().Str("component", "bundle-loader").Logger(),
	}
}

// Load ensures the module's bundle is fetched and evaluated. It returns
// immediately when the bundle-loaded flag is already set. On success the
// flag is set permanently and the module's declared dependencies are
// loaded fire-and-forget. On failure the flag stays unset so a later
// explicit request may retry.
func (l *BundleLoader) Load(ctx context.Context, cc *ContainerConfig) error {
	if cc == nil || cc.Name == "" {
		err := NewPermanentError("invalid container configuration", nil).
			WithOperation("load-bundle").WithCode(ErrCodeValidation)
		l.metrics.RecordError(string(err.Class), err.Code)
		return err
	}

	if l.registry.BundleLoaded(cc.Name) {
		return nil
	}

	err := l.group.do(cc.Name, func() error {
		// Re-check under the guard: a coalesced predecessor may have
		// completed between the fast path and here.
		if l.registry.BundleLoaded(cc.Name) {
			return nil
		}
		return l.loadOnce(ctx, cc)
	})
	if err != nil {
		return err
	}

	l.cascadeDependencies(cc)
	return nil
}

// loadOnce performs one fetch/evaluation attempt. Runs at most once per
// name at a time, guarded by the flight group.
func (l *BundleLoader) loadOnce(ctx context.Context, cc *ContainerConfig) error {
	log := l.log.With().Str("module", cc.Name).Str("version", cc.Version).Logger()

	l.registry.SetState(cc.Name, StateBundleLoading)
	l.recordStatus(ctx, cc.Name, StateBundleLoading, "")

	// The loader element marks the in-progress injection in the main
	// content region. It stays attached on success and is removed when
	// the load fails.
	loaderEl := l.document.CreateElement("script")
	main := l.document.Region(RegionMain)
	if err := main.Append(loaderEl); err != nil {
		return l.fail(ctx, cc, log, "failed to attach loader element", err)
	}

	start := time.Now()
	bundle, err := l.transport.FetchBundle(ctx, cc)
	if err != nil {
		_ = main.Remove(loaderEl)
		return l.fail(ctx, cc, log, "bundle fetch failed", err)
	}

	if err := l.evaluator.Evaluate(ctx, cc, bundle); err != nil {
		_ = main.Remove(loaderEl)
		return l.fail(ctx, cc, log, "bundle evaluation failed", err)
	}

	l.registry.MarkBundleLoaded(cc.Name)
	l.recordStatus(ctx, cc.Name, StateBundleLoaded, "")
	l.metrics.RecordBundleLoad("success")
	log.Info().
		Int("bundle_bytes", len(bundle)).
		Dur("duration", time.Since(start)).
		Msg("bundle loaded")
	return nil
}

// fail cleans up after a failed attempt and classifies the error. The
// bundle-loaded flag is left unset.
func (l *BundleLoader) fail(ctx context.Context, cc *ContainerConfig, log zerolog.Logger, msg string, cause error) error {
	err := NewTransientError(msg, cause).
		WithModule(cc.Name).WithOperation("load-bundle").WithCode(ErrCodeBundleFailed)

	l.registry.SetState(cc.Name, StateBundleLoadFailed)
	l.recordStatus(ctx, cc.Name, StateBundleLoadFailed, err.Error())
	l.metrics.RecordBundleLoad("failure")
	l.metrics.RecordError(string(err.Class), err.Code)
	log.Error().Err(cause).Msg(msg)
	return err
}

// cascadeDependencies spawns a fire-and-forget load for every declared
// dependency of the module. The cascade never couples back to the
// parent caller: dependency failures are logged and sunk here.
// Dependencies already flagged for startup are skipped to avoid a
// double trigger with the startup sequence.
func (l *BundleLoader) cascadeDependencies(cc *ContainerConfig) {
	detail, ok := l.registry.Detail(cc.Name)
	if !ok {
		return
	}

	for _, depName := range detail.Dependencies {
		dep, ok := l.registry.Container(depName)
		if !ok {
			l.log.Error().
				Str("module", cc.Name).
				Str("dependency", depName).
				Msg("dependency has no container configuration, skipping")
			l.metrics.RecordError(string(ErrorClassPermanent), ErrCodeNotFound)
			continue
		}
		if l.registry.StartupFlagged(depName) {
			continue
		}

		go func(dep *ContainerConfig) {
			defer func() {
				if r := recover(); r != nil {
					l.log.Error().
						Str("dependency", dep.Name).
						Interface("panic", r).
						Msg("dependency load panicked")
				}
			}()
			if err := l.Load(context.Background(), dep); err != nil {
				l.log.Error().Err(err).
					Str("module", cc.Name).
					Str("dependency", dep.Name).
					Msg("dependency bundle load failed")
			}
		}(dep)
	}
}

// recordStatus mirrors a state transition to the status store, if one
// is configured. Store failures are logged, never propagated.
func (l *BundleLoader) recordStatus(ctx context.Context, module string, state ModuleState, detail string) {
	if l.status == nil {
		return
	}
	status := ModuleStatus{
		ID:     uuid.New().String(),
		Module: module,
		State:  state,
		Detail: detail,
		At:     time.Now(),
	}
	if err := l.status.RecordStatus(ctx, status); err != nil {
		l.log.Warn().Err(err).Str("module", module).Msg("failed to record module status")
	}
}

// flightGroup coalesces concurrent calls per key: the first caller runs
// fn, later callers block until it settles and share the result.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

type flightCall struct {
	done chan struct{}
	err  error
}

func (g *flightGroup) do(key string, fn func() error) error {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*flightCall)
	}
	if call, inFlight := g.calls[key]; inFlight {
		g.mu.Unlock()
		<-call.done
		return call.err
	}

	call := &flightCall{done: make(chan struct{})}
	g.calls[key] = call
	g.mu.Unlock()

	call.err = runProtected(fn)

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
	close(call.done)

	return call.err
}

// runProtected converts a panic in fn into an error so waiters are
// always released.
func runProtected(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPermanentError(fmt.Sprintf("panic: %v", r), nil).WithCode(ErrCodeInternal)
		}
	}()
	return fn()
}
