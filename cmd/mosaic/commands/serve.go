package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmosaic/openmosaic/pkg/config"
	"github.com/openmosaic/openmosaic/pkg/document"
	"github.com/openmosaic/openmosaic/pkg/orchestrator"
	"github.com/openmosaic/openmosaic/pkg/policy"
	"github.com/openmosaic/openmosaic/pkg/relay"
	"github.com/openmosaic/openmosaic/pkg/session"
	"github.com/openmosaic/openmosaic/pkg/stores"
	"github.com/openmosaic/openmosaic/pkg/telemetry"
	"github.com/openmosaic/openmosaic/pkg/transport"
	"github.com/openmosaic/openmosaic/pkg/wasmhost"
)

func newServeCommand() *cobra.Command {
	var enforcePolicies bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the micro front-end host",
		Long: `Run the OpenMosaic host: fetch the configuration tree, load and mount
the startup micro front-ends, and serve until interrupted.

The boot sequence is:
  1. Reset the module status store
  2. Fetch the container configuration tree
  3. Fetch every module's detail configuration in parallel
  4. Load and mount the startup modules
  5. Serve the metrics endpoint until a signal arrives`,
		Example: `  # Serve with configuration from the environment
  MOSAIC_CONFIG_BASE_URL=https://config.example.com mosaic serve

  # Serve with a host config file and enforcing policies
  mosaic serve --config mosaic.yaml --enforce-policies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), enforcePolicies)
		},
	}

	cmd.Flags().BoolVar(&enforcePolicies, "enforce-policies", false, "reject mounts on error-severity policy violations")

	return cmd
}

func runServe(ctx context.Context, enforcePolicies bool) error {
	hc, err := config.LoadHostConfig(configPath, config.OSEnvironment{})
	if err != nil {
		return err
	}

	logLevel := hc.LogLevel
	if verbose {
		logLevel = "debug"
	}
	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  logLevel,
		Format: hc.LogFormat,
		Output: "stderr",
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	tracingConfig := telemetry.DefaultConfig().Tracing
	tracingConfig.Enabled = hc.TraceExporter != ""
	tracingConfig.Exporter = hc.TraceExporter
	tracingConfig.Endpoint = hc.TraceEndpoint
	tracingConfig.SamplingRate = hc.TraceSampleRate
	tracer, err := telemetry.NewTracer(tracingConfig, "openmosaic", buildVersion, "production")
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to shut down tracer")
		}
	}()

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:       hc.MetricsAddr != "",
		ListenAddress: hc.MetricsAddr,
		Path:          "/metrics",
		Namespace:     "openmosaic",
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	client, err := transport.New(transport.Options{
		BaseURL: hc.ConfigBaseURL,
		Timeout: hc.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	doc := document.New()

	evaluator, err := wasmhost.New(ctx, doc, wasmhost.Config{}, logger)
	if err != nil {
		return fmt.Errorf("failed to create WASM host: %w", err)
	}
	defer func() {
		if err := evaluator.Close(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("failed to close WASM host")
		}
	}()

	eventRelay := relay.New(metrics, logger)
	defer eventRelay.Close()

	// The admission engine reads the startup list lazily so it can be
	// constructed before the orchestrator that owns the registry.
	var eng *orchestrator.Engine
	startupNames := func() []string {
		if eng == nil {
			return nil
		}
		modules := eng.Registry().StartupModules()
		names := make([]string, 0, len(modules))
		for _, cc := range modules {
			names = append(names, cc.Name)
		}
		return names
	}

	mode := policy.ModeAdvisory
	if enforcePolicies {
		mode = policy.ModeEnforcing
	}
	admission, err := policy.NewEngine(mode, startupNames, logger)
	if err != nil {
		return fmt.Errorf("failed to create policy engine: %w", err)
	}

	if hc.PolicyDir != "" {
		loader := policy.NewLoader(logger)
		policies, err := loader.LoadFromDir(ctx, hc.PolicyDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", hc.PolicyDir).Msg("failed to load policy directory")
		} else {
			if err := admission.ReplacePolicies(policies); err != nil {
				logger.Warn().Err(err).Msg("failed to apply loaded policies")
			}
			if err := loader.Watch(ctx, hc.PolicyDir, admission.ReplacePolicies); err != nil {
				logger.Warn().Err(err).Msg("failed to watch policy directory")
			}
		}
	}

	var status orchestrator.StatusStore
	if hc.StatusDBPath != "" {
		store, err := stores.NewStatusStore(stores.Config{Path: hc.StatusDBPath})
		if err != nil {
			return fmt.Errorf("failed to create status store: %w", err)
		}
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize status store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close status store")
			}
		}()
		status = store
	}

	idle := session.NewIdleWatcher(hc.IdleTimeout, func() {
		logger.Info().Dur("window", hc.IdleTimeout).Msg("session idle window elapsed")
	}, logger)
	defer idle.Stop()

	eng, err = orchestrator.New(orchestrator.Options{
		Transport:     client,
		Document:      doc,
		Evaluator:     evaluator,
		Relay:         eventRelay,
		Admission:     admission,
		Session:       idle,
		Status:        status,
		Metrics:       metrics,
		Logger:        logger,
		DetailWorkers: hc.DetailWorkers,
	})
	if err != nil {
		return err
	}

	if err := metrics.StartMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if err := eng.Bootstrap(ctx); err != nil {
		return err
	}

	mounted := len(eng.Registry().MountedElements())
	log.Info().
		Int("mounted", mounted).
		Str("metrics", hc.MetricsAddr).
		Msg("OpenMosaic host is up")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}
