package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQueryExecutionCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(queryExecutionsTotal.WithLabelValues("failed"))
	beforePolls := testutil.ToFloat64(queryPollsTotal)

	ObserveQueryExecution("failed", 3, 0, 40*time.Millisecond)

	if got := testutil.ToFloat64(queryExecutionsTotal.WithLabelValues("failed")); got != before+1 {
		t.Fatalf("failed executions = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(queryPollsTotal); got != beforePolls+3 {
		t.Fatalf("polls = %v, want %v", got, beforePolls+3)
	}
}

func TestObserveBedrockCallLabelsErrors(t *testing.T) {
	before := testutil.ToFloat64(bedrockCallsTotal.WithLabelValues("converse", "error"))
	ObserveBedrockCall("converse", errors.New("throttled"), time.Second)
	if got := testutil.ToFloat64(bedrockCallsTotal.WithLabelValues("converse", "error")); got != before+1 {
		t.Fatalf("converse errors = %v, want %v", got, before+1)
	}
}
