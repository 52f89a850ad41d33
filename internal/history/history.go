package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/yammerjp/gocovrun/internal/gocover"
)

const createRunsTable = `CREATE TABLE IF NOT EXISTS coverage_runs (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	suite VARCHAR(64) NOT NULL,
	started_at DATETIME NOT NULL,
	exit_code INT NOT NULL,
	statements INT NOT NULL,
	missed INT NOT NULL,
	INDEX idx_suite (suite, started_at)
)`

const createFilesTable = `CREATE TABLE IF NOT EXISTS coverage_files (
	run_id BIGINT NOT NULL,
	name VARCHAR(512) NOT NULL,
	statements INT NOT NULL,
	missed INT NOT NULL,
	missing TEXT NOT NULL,
	INDEX idx_run (run_id)
)`

// Run describes one measured test run.
type Run struct {
	Suite     string
	StartedAt time.Time
	ExitCode  int
}

// Store keeps coverage summaries of past runs in MySQL.
type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	return openStore("mysql", dsn)
}

func openStore(driverName, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("DSN is required")
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the history tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createRunsTable, createFilesTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create history tables: %w", err)
		}
	}
	return nil
}

// Record stores run and its per-file summaries in one transaction and
// returns the new run id.
func (s *Store) Record(ctx context.Context, run Run, files []gocover.FileSummary) (int64, error) {
	if err := ValidateSuite(run.Suite); err != nil {
		return 0, err
	}

	var total gocover.FileSummary
	for _, f := range files {
		total.Statements += f.Statements
		total.Missed += f.Missed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO coverage_runs (suite, started_at, exit_code, statements, missed) VALUES (?, ?, ?, ?, ?)",
		run.Suite, run.StartedAt.UTC(), run.ExitCode, total.Statements, total.Missed)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, f := range files {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO coverage_files (run_id, name, statements, missed, missing) VALUES (?, ?, ?, ?, ?)",
			runID, f.Name, f.Statements, f.Missed, gocover.FormatRanges(f.Missing))
		if err != nil {
			return 0, fmt.Errorf("failed to record %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// LastPercent returns the total coverage of the latest recorded run of
// suite. ok is false when the suite has no history.
func (s *Store) LastPercent(ctx context.Context, suite string) (percent float64, ok bool, err error) {
	if err := ValidateSuite(suite); err != nil {
		return 0, false, err
	}

	var statements, missed sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		"SELECT statements, missed FROM coverage_runs WHERE suite = ? ORDER BY started_at DESC, id DESC LIMIT 1",
		suite).Scan(&statements, &missed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read history: %w", err)
	}
	if !statements.Valid || !missed.Valid {
		return 0, false, nil
	}
	summary := gocover.FileSummary{Statements: int(statements.Int64), Missed: int(missed.Int64)}
	return summary.Percent(), true, nil
}
