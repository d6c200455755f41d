package postgres

import (
	"context"
	"strings"
	"testing"
)

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), DBConfig{})
	if err == nil || !strings.Contains(err.Error(), "dsn is required") {
		t.Fatalf("Open() error = %v, want dsn error", err)
	}
}
