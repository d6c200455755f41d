package audit

import (
	"testing"
	"time"
)

func TestClampLimit(t *testing.T) {
	cases := map[int]int{
		-1:   DefaultListLimit,
		0:    DefaultListLimit,
		10:   10,
		500:  500,
		5000: MaxListLimit,
	}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestExecutionDuration(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exec := Execution{StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}
	if got := exec.Duration(); got != 1500*time.Millisecond {
		t.Fatalf("Duration() = %v", got)
	}
}
