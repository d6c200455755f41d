package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/genbi/genbi/internal/observability"
	"github.com/genbi/genbi/internal/sqltext"
)

const DefaultPollInterval = time.Second

type Config struct {
	Database       string
	OutputLocation string
	Workgroup      string
	MaxRows        int
	PollInterval   time.Duration
	// PollTimeout bounds the wait for a terminal state. Zero waits forever.
	PollTimeout time.Duration
}

type Client struct {
	engine   Engine
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
}

func NewClient(engine Engine, cfg Config, logger *slog.Logger, recorder Recorder) (*Client, error) {
	if engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if cfg.MaxRows <= 0 {
		return nil, fmt.Errorf("max rows must be greater than zero")
	}
	if cfg.PollInterval < 0 {
		return nil, ErrInvalidPollInterval
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout < 0 {
		return nil, fmt.Errorf("poll timeout must not be negative")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{engine: engine, cfg: cfg, logger: logger, recorder: recorder}, nil
}

// Execute runs sql with the configured poll interval.
func (c *Client) Execute(ctx context.Context, sql string) ([]Row, error) {
	return c.ExecuteWithInterval(ctx, sql, c.cfg.PollInterval)
}

// ExecuteWithInterval submits sql, checks its status every interval until it
// reaches a terminal state, and maps the first result page to rows. At most
// MaxRows engine rows are fetched, header included; anything beyond that is
// dropped without notice.
func (c *Client) ExecuteWithInterval(ctx context.Context, sql string, interval time.Duration) ([]Row, error) {
	if interval <= 0 {
		return nil, ErrInvalidPollInterval
	}

	run := &execution{record: ExecutionRecord{
		SQL:       sqltext.MaskLiterals(sql),
		TraceID:   observability.TraceIDFromContext(ctx),
		StartedAt: time.Now().UTC(),
	}}
	rows, err := c.execute(ctx, sql, interval, run)
	run.finish(rows, err)
	c.report(ctx, run, err)
	return rows, err
}

func (c *Client) execute(ctx context.Context, sql string, interval time.Duration, run *execution) ([]Row, error) {
	executionID, err := c.engine.Submit(ctx, Request{
		SQL:            sql,
		Database:       c.cfg.Database,
		OutputLocation: c.cfg.OutputLocation,
		Workgroup:      c.cfg.Workgroup,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("submit query: %w", ctxErr)
		}
		return nil, &SubmissionError{Code: errorCode(err), Err: err}
	}
	run.record.ExecutionID = executionID
	c.logger.DebugContext(ctx, "query submitted",
		slog.String("execution_id", executionID),
		slog.String("trace_id", run.record.TraceID),
		slog.String("sql", observability.SQLPreview(sql)),
	)

	status, err := c.waitForTerminal(ctx, executionID, interval, run)
	if err != nil {
		return nil, err
	}
	if status.State != StateSucceeded {
		reason := strings.TrimSpace(status.Reason)
		if reason == "" {
			reason = "unknown"
		}
		return nil, &ExecutionError{ExecutionID: executionID, State: status.State, Reason: reason}
	}

	page, err := c.engine.ResultsPage(ctx, executionID, c.cfg.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("get results for query %s: %w", executionID, err)
	}
	if len(page.Rows) > c.cfg.MaxRows {
		page.Rows = page.Rows[:c.cfg.MaxRows]
	}
	return RowsFromPage(executionID, page)
}

func (c *Client) waitForTerminal(ctx context.Context, executionID string, interval time.Duration, run *execution) (Status, error) {
	if c.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PollTimeout)
		defer cancel()
	}

	for {
		run.record.Polls++
		status, err := c.engine.Status(ctx, executionID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Status{}, fmt.Errorf("wait for query %s: %w", executionID, ctxErr)
			}
			return Status{}, fmt.Errorf("get status for query %s: %w", executionID, err)
		}
		if status.State.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return Status{}, fmt.Errorf("wait for query %s: %w", executionID, ctx.Err())
		case <-time.After(interval):
		}
	}
}

func (c *Client) report(ctx context.Context, run *execution, err error) {
	record := run.record
	observability.ObserveQueryExecution(record.Outcome, record.Polls, record.Rows, record.FinishedAt.Sub(record.StartedAt))

	attrs := []any{
		slog.String("execution_id", record.ExecutionID),
		slog.String("trace_id", record.TraceID),
		slog.String("outcome", record.Outcome),
		slog.Int("polls", record.Polls),
		slog.Int("rows", record.Rows),
		slog.String("duration", record.FinishedAt.Sub(record.StartedAt).String()),
	}
	if err != nil {
		c.logger.WarnContext(ctx, "query did not succeed", append(attrs, slog.String("error", sqltext.MaskLiterals(err.Error())))...)
	} else {
		c.logger.InfoContext(ctx, "query completed", attrs...)
	}

	if c.recorder == nil {
		return
	}
	if recErr := c.recorder.RecordExecution(context.WithoutCancel(ctx), record); recErr != nil {
		c.logger.ErrorContext(ctx, "failed to record query execution",
			slog.String("execution_id", record.ExecutionID),
			slog.Any("error", recErr),
		)
	}
}

// Engine error text often quotes the failing SQL line, so reasons are masked
// the same way as the statement.
type execution struct {
	record ExecutionRecord
}

func (e *execution) finish(rows []Row, err error) {
	e.record.FinishedAt = time.Now().UTC()
	e.record.Rows = len(rows)

	var submissionErr *SubmissionError
	var executionErr *ExecutionError
	switch {
	case err == nil:
		e.record.Outcome = OutcomeSucceeded
	case errors.As(err, &submissionErr):
		e.record.Outcome = OutcomeRejected
		e.record.Reason = sqltext.MaskLiterals(submissionErr.Err.Error())
	case errors.As(err, &executionErr):
		e.record.Outcome = OutcomeFailed
		if executionErr.State == StateCancelled {
			e.record.Outcome = OutcomeCancelled
		}
		e.record.Reason = sqltext.MaskLiterals(executionErr.Reason)
	default:
		e.record.Outcome = OutcomeError
		e.record.Reason = sqltext.MaskLiterals(err.Error())
	}
}
