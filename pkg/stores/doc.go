// Package stores persists module load-status history in SQLite for
// operator visibility. Every module state transition the orchestrator
// observes is appended here; the table is truncated once at process
// start through the status-reset collaborator.
package stores
