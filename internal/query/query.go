// Package query runs SQL against an asynchronous query engine and returns the
// first page of results as row mappings.
//
// Statement text is passed to the engine exactly as the caller built it. The
// client does not escape, sanitize, or parameterize anything, so callers that
// interpolate untrusted input into a statement are open to SQL injection.
package query

import (
	"context"
	"time"
)

type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further transition can follow s. Unknown states
// are treated as still running.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

type Request struct {
	SQL            string
	Database       string
	OutputLocation string
	Workgroup      string
}

type Status struct {
	State          State
	Reason         string
	OutputLocation string
}

// Page is one bounded batch of results as the engine returns it. The first
// row repeats the column labels; see HeaderRows.
type Page struct {
	Columns []string
	Rows    [][]*string
}

// Row maps a column label to its value. A nil value is SQL NULL.
type Row map[string]*string

type Engine interface {
	Submit(ctx context.Context, request Request) (string, error)
	Status(ctx context.Context, executionID string) (Status, error)
	ResultsPage(ctx context.Context, executionID string, maxRows int) (Page, error)
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// ExecutionRecord describes one finished execution. SQL and Reason have their
// string literals masked.
type ExecutionRecord struct {
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

type Recorder interface {
	RecordExecution(ctx context.Context, record ExecutionRecord) error
}
