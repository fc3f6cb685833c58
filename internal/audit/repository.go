// Package audit keeps a journal of device batch runs in SQLite: one row
// per run in connection_runs and one row per factory in connection_audit.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/beamline-core/internal/infrastructure/database"
	"github.com/nerrad567/beamline-core/internal/loader"
)

// ErrRunNotFound is returned when a run ID is not in the journal.
var ErrRunNotFound = errors.New("audit: run not found")

// RunRecord is one journalled batch run.
type RunRecord struct {
	ID          string    `json:"id"`
	Beamline    string    `json:"beamline"`
	Module      string    `json:"module"`
	Mock        bool      `json:"mock"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DeviceCount int       `json:"device_count"`
	ErrorCount  int       `json:"error_count"`
}

// Entry is one factory's outcome within a run.
type Entry struct {
	RunID     string        `json:"run_id"`
	Device    string        `json:"device"`
	State     string        `json:"state"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter controls which runs to return.
type Filter struct {
	Beamline   string // optional: filter by beamline
	Module     string // optional: filter by wiring module
	FailedOnly bool   // optional: only runs with at least one error
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains the paginated run results.
type ListResult struct {
	Runs   []RunRecord `json:"runs"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// Repository defines the interface for journal operations.
type Repository interface {
	RecordRun(ctx context.Context, run loader.Run) error
	ListRuns(ctx context.Context, filter Filter) (*ListResult, error)
	Entries(ctx context.Context, runID string) ([]Entry, error)
	DeviceHistory(ctx context.Context, device string, limit int) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores the journal in SQLite. It satisfies
// loader.Recorder, so it can be added straight to a Loader.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a journal on a migrated database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordRun journals a run and its outcomes in one transaction. A run
// without an ID is given one.
func (r *SQLiteRepository) RecordRun(ctx context.Context, run loader.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}

	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO connection_runs (id, beamline, module, mock, started_at, finished_at, device_count, error_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Beamline, run.Module, boolInt(run.Mock),
			formatTime(run.StartedAt), formatTime(run.FinishedAt),
			len(run.Outcomes), run.Errors(),
		)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO connection_audit (run_id, device, state, error_kind, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing audit insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range run.Outcomes {
			var kind, msg any
			if o.Err != nil {
				kind = o.ErrorKind()
				msg = o.Err.Error()
			}
			if _, err := stmt.ExecContext(ctx,
				run.ID, o.Device, o.State.String(), kind, msg, o.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("inserting audit entry for %s: %w", o.Device, err)
			}
		}
		return nil
	})
}

// ListRuns returns runs matching the filter, most recent first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // dynamic query builder: WHERE clause assembly from filter fields
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for journal queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Beamline != "" {
		conditions = append(conditions, "beamline = ?")
		args = append(args, filter.Beamline)
	}
	if filter.Module != "" {
		conditions = append(conditions, "module = ?")
		args = append(args, filter.Module)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "error_count > 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM connection_runs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, beamline, module, mock, started_at, finished_at, device_count, error_count
		 FROM connection_runs %s ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var run RunRecord
		var mock int
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Beamline, &run.Module, &mock,
			&started, &finished, &run.DeviceCount, &run.ErrorCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Mock = mock != 0
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return &ListResult{
		Runs:   runs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Entries returns a run's outcomes in device order.
func (r *SQLiteRepository) Entries(ctx context.Context, runID string) ([]Entry, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM connection_runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}

	return r.queryEntries(ctx,
		`SELECT run_id, device, state, error_kind, error, duration_ms
		 FROM connection_audit WHERE run_id = ? ORDER BY device`, runID)
}

// DeviceHistory returns a device's most recent outcomes across runs.
func (r *SQLiteRepository) DeviceHistory(ctx context.Context, device string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryEntries(ctx,
		`SELECT a.run_id, a.device, a.state, a.error_kind, a.error, a.duration_ms
		 FROM connection_audit a JOIN connection_runs r ON r.id = a.run_id
		 WHERE a.device = ? ORDER BY r.started_at DESC, a.id DESC LIMIT ?`, device, limit)
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var kind, msg sql.NullString
		var ms int64
		if err := rows.Scan(&e.RunID, &e.Device, &e.State, &kind, &msg, &ms); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.ErrorKind = kind.String
		e.Error = msg.String
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// Prune deletes runs started before the cutoff, with their entries.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM connection_runs WHERE started_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

// formatTime stores times as fixed-width UTC so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
