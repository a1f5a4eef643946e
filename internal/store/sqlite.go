package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed run history
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Store initialized successfully", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// Run Operations
// ============================================================================

// CreateRun inserts a new Run and sets its ID
func (s *Store) CreateRun(run *Run) error {
	const query = `
		INSERT INTO runs (
			kind, profile, archive_path, files, bytes, skipped,
			status, error_message, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Kind, run.Profile, run.ArchivePath, run.Files, run.Bytes, run.Skipped,
		run.Status, run.ErrorMessage, run.StartTime, run.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateRun updates an existing Run by ID
func (s *Store) UpdateRun(run *Run) error {
	const query = `
		UPDATE runs SET
			kind = ?, profile = ?, archive_path = ?, files = ?, bytes = ?,
			skipped = ?, status = ?, error_message = ?, start_time = ?, end_time = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.Kind, run.Profile, run.ArchivePath, run.Files, run.Bytes,
		run.Skipped, run.Status, run.ErrorMessage, run.StartTime, run.EndTime, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("run %d: %w", run.ID, ErrNotFound)
	}

	return nil
}

// GetRun retrieves a Run by ID
func (s *Store) GetRun(id int64) (*Run, error) {
	const query = `
		SELECT id, kind, profile, archive_path, files, bytes, skipped,
		       status, error_message, start_time, end_time
		FROM runs WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.Kind, &run.Profile, &run.ArchivePath, &run.Files,
		&run.Bytes, &run.Skipped, &run.Status, &run.ErrorMessage,
		&run.StartTime, &run.EndTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	return run, nil
}

// ListRuns retrieves Runs newest first, optionally filtered by kind
func (s *Store) ListRuns(kind string, limit int) ([]Run, error) {
	query := `
		SELECT id, kind, profile, archive_path, files, bytes, skipped,
		       status, error_message, start_time, end_time
		FROM runs
	`
	var args []interface{}

	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY start_time DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run := Run{}
		err := rows.Scan(
			&run.ID, &run.Kind, &run.Profile, &run.ArchivePath, &run.Files,
			&run.Bytes, &run.Skipped, &run.Status, &run.ErrorMessage,
			&run.StartTime, &run.EndTime,
		)
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

// ============================================================================
// RunMapping Operations
// ============================================================================

// AddRunMappings records the manifest mappings of a run in one transaction
func (s *Store) AddRunMappings(runID int64, mappings []RunMapping) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO run_mappings (run_id, position, source_path, archive_name)
		VALUES (?, ?, ?, ?)
	`
	for i := range mappings {
		m := &mappings[i]
		result, err := tx.Exec(query, runID, m.Position, m.SourcePath, m.ArchiveName)
		if err != nil {
			return fmt.Errorf("failed to insert run mapping %s: %w", m.ArchiveName, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			m.ID = id
		}
		m.RunID = runID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run mappings: %w", err)
	}
	return nil
}

// ListRunMappings returns a run's mappings in manifest order
func (s *Store) ListRunMappings(runID int64) ([]RunMapping, error) {
	const query = `
		SELECT id, run_id, position, source_path, archive_name
		FROM run_mappings WHERE run_id = ?
		ORDER BY position
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run mappings: %w", err)
	}
	defer rows.Close()

	var mappings []RunMapping
	for rows.Next() {
		m := RunMapping{}
		if err := rows.Scan(&m.ID, &m.RunID, &m.Position, &m.SourcePath, &m.ArchiveName); err != nil {
			return nil, fmt.Errorf("failed to scan run mapping: %w", err)
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run mappings: %w", err)
	}

	return mappings, nil
}
