package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/jfarrimo/frycook/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run ID is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore is the run journal. It implements engine.Journal.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Open creates, initializes and migrates the journal at path.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// StartRun records a new run.
func (s *SQLiteStore) StartRun(ctx context.Context, run *engine.Run) error {
	targets, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}

	query := `
		INSERT INTO runs (id, mode, targets, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.Mode,
		string(targets),
		string(run.Status),
		run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RecordItem records the outcome of one work item on one host.
func (s *SQLiteStore) RecordItem(ctx context.Context, runID, host string, item *engine.ItemResult) error {
	query := `
		INSERT INTO work_items (
			run_id, host, kind, name, status, error,
			files_written, files_unchanged, files_deleted, files_skipped,
			duration_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errText sql.NullString
	if item.Err != nil {
		errText = sql.NullString{String: item.ErrorText(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		runID,
		host,
		string(item.Item.Kind),
		item.Item.Name,
		string(item.Status),
		errText,
		item.Files.Written,
		item.Files.Unchanged,
		item.Files.Deleted,
		item.Files.Skipped,
		item.Duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record work item: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *engine.Run) error {
	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, hosts_total = ?, hosts_failed = ?
		WHERE id = ?
	`

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	result, err := s.db.ExecContext(ctx, query,
		string(run.Status),
		finished.UTC(),
		len(run.Hosts),
		len(run.Failed()),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

const runColumns = `id, mode, targets, status, started_at, finished_at, hosts_total, hosts_failed`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run      RunRecord
		targets  string
		status   string
		finished sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.Mode,
		&targets,
		&status,
		&run.StartedAt,
		&finished,
		&run.HostsTotal,
		&run.HostsFailed,
	)
	if err != nil {
		return nil, err
	}

	run.Status = engine.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(targets), &run.Targets); err != nil {
		return nil, fmt.Errorf("failed to decode targets of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// RunItems lists a run's work items in the order they were recorded.
func (s *SQLiteStore) RunItems(ctx context.Context, runID string) ([]*ItemRecord, error) {
	query := `
		SELECT id, run_id, host, kind, name, status, error,
			files_written, files_unchanged, files_deleted, files_skipped,
			duration_ms, recorded_at
		FROM work_items
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	items := []*ItemRecord{}
	for rows.Next() {
		var (
			item     ItemRecord
			status   string
			errText  sql.NullString
			duration int64
		)
		err := rows.Scan(
			&item.ID,
			&item.RunID,
			&item.Host,
			&item.Kind,
			&item.Name,
			&status,
			&errText,
			&item.FilesWritten,
			&item.FilesUnchanged,
			&item.FilesDeleted,
			&item.FilesSkipped,
			&duration,
			&item.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		item.Status = engine.ItemStatus(status)
		item.Error = errText.String
		item.Duration = time.Duration(duration) * time.Millisecond
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work items: %w", err)
	}
	return items, nil
}

// PruneRuns deletes runs started before cutoff along with their work items.
func (s *SQLiteStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
