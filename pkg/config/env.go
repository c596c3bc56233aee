package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// Environment variable keys resolved through the environment
// collaborator.
const (
	// EnvConfigBaseURL is the key for the configuration base URL.
	EnvConfigBaseURL = "MOSAIC_CONFIG_BASE_URL"
)

// hostEnvKeys lists every variable the host reads. ParseEnv resolves
// them through the environment collaborator so tests can inject values
// without touching the process environment.
var hostEnvKeys = []string{
	"MOSAIC_CONFIG_BASE_URL",
	"MOSAIC_HTTP_TIMEOUT",
	"MOSAIC_IDLE_TIMEOUT",
	"MOSAIC_LOG_LEVEL",
	"MOSAIC_METRICS_ADDR",
	"MOSAIC_STATUS_DB",
	"MOSAIC_POLICY_DIR",
	"MOSAIC_TRACE_EXPORTER",
	"MOSAIC_TRACE_ENDPOINT",
	"MOSAIC_TRACE_SAMPLE_RATE",
}

// HostEnv is the host process environment, parsed once at startup.
type HostEnv struct {
	// ConfigBaseURL is the base URL configuration and bundle locators
	// are resolved against.
	ConfigBaseURL string `env:"MOSAIC_CONFIG_BASE_URL"`

	// HTTPTimeout bounds every configuration and bundle fetch.
	HTTPTimeout time.Duration `env:"MOSAIC_HTTP_TIMEOUT" envDefault:"30s"`

	// IdleTimeout is the session inactivity window.
	IdleTimeout time.Duration `env:"MOSAIC_IDLE_TIMEOUT" envDefault:"20m"`

	// LogLevel sets the minimum log level.
	LogLevel string `env:"MOSAIC_LOG_LEVEL" envDefault:"info"`

	// MetricsAddr is the metrics endpoint listen address.
	MetricsAddr string `env:"MOSAIC_METRICS_ADDR" envDefault:":9090"`

	// StatusDBPath is the module status store path.
	StatusDBPath string `env:"MOSAIC_STATUS_DB" envDefault:"mosaic-status.db"`

	// PolicyDir is an optional directory of Rego admission policies.
	PolicyDir string `env:"MOSAIC_POLICY_DIR"`

	// TraceExporter selects the span exporter. Empty disables tracing.
	TraceExporter string `env:"MOSAIC_TRACE_EXPORTER"`

	// TraceEndpoint is the OTLP collector endpoint.
	TraceEndpoint string `env:"MOSAIC_TRACE_ENDPOINT"`

	// TraceSampleRate is the head sampling ratio.
	TraceSampleRate float64 `env:"MOSAIC_TRACE_SAMPLE_RATE" envDefault:"1.0"`
}

// ParseEnv parses the host environment through the given collaborator.
func ParseEnv(environment orchestrator.Environment) (*HostEnv, error) {
	vars := make(map[string]string, len(hostEnvKeys))
	for _, key := range hostEnvKeys {
		if v, ok := environment.Lookup(key); ok {
			vars[key] = v
		}
	}

	var he HostEnv
	if err := env.ParseWithOptions(&he, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &he, nil
}

// OSEnvironment resolves configuration values from process environment
// variables. It implements orchestrator.Environment.
type OSEnvironment struct{}

// Lookup returns the value of the environment variable key.
func (OSEnvironment) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}
