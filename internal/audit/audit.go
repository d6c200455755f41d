package audit

import (
	"context"
	"errors"
	"time"

	"github.com/genbi/genbi/internal/query"
)

var ErrNotFound = errors.New("audit: not found")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Repository persists one row per query execution. It satisfies
// query.Recorder so a repository can be handed to query.NewClient directly.
type Repository interface {
	query.Recorder
	HealthCheck(ctx context.Context) error
	ListExecutions(ctx context.Context, limit int) ([]Execution, error)
	GetExecution(ctx context.Context, executionID string) (Execution, error)
	DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Execution struct {
	ID          int64
	ExecutionID string
	SQL         string
	Outcome     string
	Reason      string
	Rows        int
	Polls       int
	TraceID     string
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (e Execution) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// ClampLimit maps a requested page size onto [1, MaxListLimit], using
// DefaultListLimit for zero or negative values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
