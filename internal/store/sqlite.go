package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		// Connection pragmas must hold on every pooled connection.
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.OrDiscard(logger).With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Run CRUD ---

const runColumns = `id, state, scheduler, producer, consumer, display, cores, seed, config,
	job_count, finished_count, avg_wait, avg_turnaround, simulated, error,
	created_at, started_at, completed_at`

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	configJSON, err := marshalConfig(run.Config)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.State), string(run.Scheduler), string(run.Producer), string(run.Consumer),
		string(run.Display), run.Cores, int64(run.Seed), configJSON,
		run.JobCount, run.FinishedCount, run.AvgWait, run.AvgTurnaround, run.Simulated, run.Error,
		run.CreatedAt.UTC().Format(timeFormat), formatTime(run.StartedAt), formatTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereSQL := ""
	var countArgs []any
	if opts.State != "" {
		whereSQL = " WHERE state = ?"
		countArgs = append(countArgs, string(opts.State))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	listQuery := `SELECT ` + runColumns + ` FROM runs` + whereSQL +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// UpdateRun writes the mutable run fields. The state change must be a valid
// run transition.
func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID, "state", run.State)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT state FROM runs WHERE id = ?`, run.ID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NewNotFoundError("run", run.ID)
		}
		return err
	}
	from := model.RunState(current)
	if from != run.State && !from.CanTransitionTo(run.State) {
		return &model.InvalidTransitionError{Entity: "run", ID: run.ID, From: current, To: string(run.State)}
	}

	configJSON, err := marshalConfig(run.Config)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET state = ?, config = ?, job_count = ?, finished_count = ?, avg_wait = ?,
		 avg_turnaround = ?, simulated = ?, error = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.State), configJSON, run.JobCount, run.FinishedCount, run.AvgWait,
		run.AvgTurnaround, run.Simulated, run.Error, formatTime(run.StartedAt), formatTime(run.CompletedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	return tx.Commit()
}

// --- Job results ---

func (s *SQLiteStore) InsertJobRecords(ctx context.Context, runID string, records []*model.JobRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "job_records", "run_id", runID, "count", len(records))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO job_records (run_id, job_id, finish_order, execute_time, delay, wait_time, process_time, total_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, runID, int64(r.JobID), r.FinishOrder,
			r.ExecuteTime, r.Delay, r.WaitTime, r.ProcessTime, r.TotalTime); err != nil {
			return fmt.Errorf("insert job record %d: %w", r.JobID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListJobRecords(ctx context.Context, runID string) ([]*model.JobRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "job_records", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, job_id, finish_order, execute_time, delay, wait_time, process_time, total_time
		 FROM job_records WHERE run_id = ? ORDER BY finish_order`, runID)
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	defer rows.Close()

	var records []*model.JobRecord
	for rows.Next() {
		var r model.JobRecord
		var jobID int64
		if err := rows.Scan(&r.RunID, &jobID, &r.FinishOrder,
			&r.ExecuteTime, &r.Delay, &r.WaitTime, &r.ProcessTime, &r.TotalTime); err != nil {
			return nil, err
		}
		r.JobID = uint64(jobID)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// --- helpers ---

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*model.Run, error) {
	var run model.Run
	var state, scheduler, producer, consumer, display, configJSON, createdAt string
	var seed int64
	var startedAt, completedAt *string

	if err := sc.Scan(&run.ID, &state, &scheduler, &producer, &consumer, &display, &run.Cores, &seed, &configJSON,
		&run.JobCount, &run.FinishedCount, &run.AvgWait, &run.AvgTurnaround, &run.Simulated, &run.Error,
		&createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	run.State = model.RunState(state)
	run.Scheduler = model.SchedulerKind(scheduler)
	run.Producer = model.ProducerKind(producer)
	run.Consumer = model.ConsumerKind(consumer)
	run.Display = model.DisplayKind(display)
	run.Seed = uint64(seed)

	var cfg map[string]any
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg) > 0 {
		run.Config = cfg
	}

	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.StartedAt = parseTime(startedAt)
	run.CompletedAt = parseTime(completedAt)
	return &run, nil
}

func marshalConfig(cfg any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}
