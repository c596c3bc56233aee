package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// HostConfig is the host application configuration file. Values from
// the environment take precedence over the file.
type HostConfig struct {
	// ConfigBaseURL is the base URL for configuration and bundles.
	ConfigBaseURL string `yaml:"configBaseUrl"`

	// HTTPTimeout bounds every fetch.
	HTTPTimeout time.Duration `yaml:"httpTimeout"`

	// IdleTimeout is the session inactivity window.
	IdleTimeout time.Duration `yaml:"idleTimeout"`

	// LogLevel sets the minimum log level.
	LogLevel string `yaml:"logLevel"`

	// LogFormat selects console or json output.
	LogFormat string `yaml:"logFormat"`

	// MetricsAddr is the metrics endpoint listen address.
	MetricsAddr string `yaml:"metricsAddr"`

	// StatusDBPath is the module status store path.
	StatusDBPath string `yaml:"statusDb"`

	// PolicyDir is an optional directory of Rego admission policies.
	PolicyDir string `yaml:"policyDir"`

	// DetailWorkers bounds the parallel detail-config fetch.
	DetailWorkers int `yaml:"detailWorkers"`

	// TraceExporter selects the span exporter, otlp or stdout. Empty
	// disables tracing.
	TraceExporter string `yaml:"traceExporter"`

	// TraceEndpoint is the OTLP collector endpoint.
	TraceEndpoint string `yaml:"traceEndpoint"`

	// TraceSampleRate is the head sampling ratio.
	TraceSampleRate float64 `yaml:"traceSampleRate"`
}

// LoadHostConfig reads a YAML host configuration file and overlays the
// environment on top of it. A missing file is not an error: the
// environment alone configures the host. A nil environment reads the
// process environment.
func LoadHostConfig(path string, environment orchestrator.Environment) (*HostConfig, error) {
	if environment == nil {
		environment = OSEnvironment{}
	}

	hc := &HostConfig{
		HTTPTimeout:     30 * time.Second,
		IdleTimeout:     20 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "console",
		MetricsAddr:     ":9090",
		TraceSampleRate: 1.0,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read host config: %w", err)
		}
		if err := yaml.Unmarshal(raw, hc); err != nil {
			return nil, fmt.Errorf("failed to parse host config: %w", err)
		}
	}

	he, err := ParseEnv(environment)
	if err != nil {
		return nil, err
	}
	hc.overlay(he, environment)

	if hc.ConfigBaseURL == "" {
		return nil, fmt.Errorf("configuration base URL is required (set %s or configBaseUrl)", EnvConfigBaseURL)
	}
	return hc, nil
}

// overlay applies environment values over the file values. Only keys
// actually set in the environment override.
func (hc *HostConfig) overlay(he *HostEnv, environment orchestrator.Environment) {
	envSet := func(key string) bool {
		_, ok := environment.Lookup(key)
		return ok
	}

	if he.ConfigBaseURL != "" {
		hc.ConfigBaseURL = he.ConfigBaseURL
	}
	if envSet("MOSAIC_HTTP_TIMEOUT") {
		hc.HTTPTimeout = he.HTTPTimeout
	}
	if envSet("MOSAIC_IDLE_TIMEOUT") {
		hc.IdleTimeout = he.IdleTimeout
	}
	if envSet("MOSAIC_LOG_LEVEL") {
		hc.LogLevel = he.LogLevel
	}
	if envSet("MOSAIC_METRICS_ADDR") {
		hc.MetricsAddr = he.MetricsAddr
	}
	if envSet("MOSAIC_STATUS_DB") {
		hc.StatusDBPath = he.StatusDBPath
	}
	if he.PolicyDir != "" {
		hc.PolicyDir = he.PolicyDir
	}
	if he.TraceExporter != "" {
		hc.TraceExporter = he.TraceExporter
	}
	if he.TraceEndpoint != "" {
		hc.TraceEndpoint = he.TraceEndpoint
	}
	if envSet("MOSAIC_TRACE_SAMPLE_RATE") {
		hc.TraceSampleRate = he.TraceSampleRate
	}
}
