// Package config decodes and validates the JSON configuration
// documents the orchestrator fetches at runtime: the root container
// tree and the per-module detail configurations.
//
// Validation is two-layered: incoming documents are first checked
// against CUE schemas (structure, tag naming, placement enums), then
// the decoded structs are validated with struct tags. Both layers
// reject a document as a whole; per-module containment of failures is
// the caller's concern.
package config
