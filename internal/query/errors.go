package query

import (
	"errors"
	"fmt"
)

var ErrInvalidPollInterval = errors.New("poll interval must be greater than zero")

// SubmissionError means the engine rejected the statement before running it.
type SubmissionError struct {
	Code string
	Err  error
}

func (e *SubmissionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query submission rejected (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("query submission rejected: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ExecutionError means the query ran and ended in FAILED or CANCELLED.
type ExecutionError struct {
	ExecutionID string
	State       State
	Reason      string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query %s ended in state %s: %s", e.ExecutionID, e.State, e.Reason)
}

// ResultShapeError means the engine returned a page the client cannot map to
// rows, such as one without column metadata.
type ResultShapeError struct {
	ExecutionID string
	Message     string
}

func (e *ResultShapeError) Error() string {
	return fmt.Sprintf("query %s returned malformed results: %s", e.ExecutionID, e.Message)
}

type codedError interface {
	ErrorCode() string
}

func errorCode(err error) string {
	var coded codedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}
