// Package telemetry provides structured logging, Prometheus metrics,
// and distributed tracing for the OpenMosaic host.
//
// The package wraps three concerns behind small constructors:
//
//   - Logger: zerolog-based structured logging with per-component
//     child loggers and context propagation.
//   - Metrics: Prometheus counters and histograms for configuration
//     fetches, bundle loads, mounts, and relayed events, exposed over
//     an HTTP endpoint.
//   - Tracer: OpenTelemetry tracing with stdout and OTLP gRPC
//     exporters.
//
// All three are optional. The orchestrator accepts a no-op metrics
// sink and a disabled zerolog logger, so tests and embedded use do not
// pay for telemetry they do not want.
package telemetry
