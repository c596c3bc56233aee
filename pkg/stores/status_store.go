package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// StatusStore records module state transitions in SQLite. It
// implements orchestrator.StatusStore.
type StatusStore struct {
	db   *sql.DB
	path string
}

// Config holds status store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStatusStore creates a status store instance. Call Init before use.
func NewStatusStore(cfg Config) (*StatusStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &StatusStore{path: cfg.Path}, nil
}

// Init opens the database, enables WAL mode and runs migrations.
func (s *StatusStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return s.migrate()
}

// migrate applies the embedded schema migrations.
func (s *StatusStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *StatusStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordStatus appends one module state transition.
func (s *StatusStore) RecordStatus(ctx context.Context, status orchestrator.ModuleStatus) error {
	if s.db == nil {
		return fmt.Errorf("status store not initialized")
	}

	query := `
		INSERT INTO module_statuses (id, module, state, detail, at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		status.ID,
		status.Module,
		string(status.State),
		status.Detail,
		status.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

// RemoveAllStatuses clears the status history. Invoked once at process
// start, before any configuration load.
func (s *StatusStore) RemoveAllStatuses(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("status store not initialized")
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM module_statuses"); err != nil {
		return fmt.Errorf("failed to remove statuses: %w", err)
	}
	return nil
}

// ListStatuses returns the recorded transitions for one module in
// chronological order, or for all modules when module is empty.
func (s *StatusStore) ListStatuses(ctx context.Context, module string) ([]orchestrator.ModuleStatus, error) {
	if s.db == nil {
		return nil, fmt.Errorf("status store not initialized")
	}

	query := `
		SELECT id, module, state, detail, at
		FROM module_statuses
	`
	args := []any{}
	if module != "" {
		query += " WHERE module = ?"
		args = append(args, module)
	}
	query += " ORDER BY at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []orchestrator.ModuleStatus
	for rows.Next() {
		var st orchestrator.ModuleStatus
		var state string
		if err := rows.Scan(&st.ID, &st.Module, &state, &st.Detail, &st.At); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		st.State = orchestrator.ModuleState(state)
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate statuses: %w", err)
	}

	return statuses, nil
}

// LatestStatuses returns the most recent transition per module.
func (s *StatusStore) LatestStatuses(ctx context.Context) ([]orchestrator.ModuleStatus, error) {
	if s.db == nil {
		return nil, fmt.Errorf("status store not initialized")
	}

	query := `
		SELECT s.id, s.module, s.state, s.detail, s.at
		FROM module_statuses s
		JOIN (
			SELECT module, MAX(at) AS max_at
			FROM module_statuses
			GROUP BY module
		) latest ON s.module = latest.module AND s.at = latest.max_at
		ORDER BY s.module ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest statuses: %w", err)
	}
	defer rows.Close()

	var statuses []orchestrator.ModuleStatus
	for rows.Next() {
		var st orchestrator.ModuleStatus
		var state string
		if err := rows.Scan(&st.ID, &st.Module, &state, &st.Detail, &st.At); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		st.State = orchestrator.ModuleState(state)
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate statuses: %w", err)
	}

	return statuses, nil
}
