package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genbi/genbi/internal/audit"
	"github.com/genbi/genbi/internal/query"
)

type Repository struct {
	db *sql.DB
}

var _ audit.Repository = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit db: %w", err)
	}
	return nil
}

// RecordExecution stores a finished execution. Rejected submissions have no
// engine id and are stored with a NULL execution_id.
func (r *Repository) RecordExecution(ctx context.Context, record query.ExecutionRecord) error {
	stmt := `
INSERT INTO query_execution (execution_id, sql_text, outcome, reason, row_count, poll_count, trace_id, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, stmt,
		nullString(record.ExecutionID),
		record.SQL,
		record.Outcome,
		nullString(record.Reason),
		record.Rows,
		record.Polls,
		nullString(record.TraceID),
		record.StartedAt,
		record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record query execution: %w", err)
	}
	return nil
}

// DeleteExecutionsBefore removes records that finished before cutoff and
// reports how many were removed.
func (r *Repository) DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM query_execution WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete query executions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete query executions rows affected: %w", err)
	}
	return deleted, nil
}

func (r *Repository) ListExecutions(ctx context.Context, limit int) ([]audit.Execution, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, execution_id, sql_text, outcome, reason, row_count, poll_count, trace_id, started_at, finished_at
FROM query_execution
ORDER BY started_at DESC, id DESC
LIMIT $1`, audit.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	executions := make([]audit.Execution, 0)
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query execution row: %w", err)
		}
		executions = append(executions, execution)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query execution rows: %w", err)
	}
	return executions, nil
}

func (r *Repository) GetExecution(ctx context.Context, executionID string) (audit.Execution, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, execution_id, sql_text, outcome, reason, row_count, poll_count, trace_id, started_at, finished_at
FROM query_execution
WHERE execution_id = $1
ORDER BY id DESC
LIMIT 1`, executionID)
	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.Execution{}, audit.ErrNotFound
		}
		return audit.Execution{}, fmt.Errorf("get query execution: %w", err)
	}
	return execution, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (audit.Execution, error) {
	var (
		execution   audit.Execution
		executionID sql.NullString
		reason      sql.NullString
		traceID     sql.NullString
	)
	if err := row.Scan(
		&execution.ID,
		&executionID,
		&execution.SQL,
		&execution.Outcome,
		&reason,
		&execution.Rows,
		&execution.Polls,
		&traceID,
		&execution.StartedAt,
		&execution.FinishedAt,
	); err != nil {
		return audit.Execution{}, err
	}
	execution.ExecutionID = executionID.String
	execution.Reason = reason.String
	execution.TraceID = traceID.String
	return execution, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
