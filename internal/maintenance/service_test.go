package maintenance

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/genbi/genbi/internal/storage"
)

func TestRunRetentionOnceUsesCutoff(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	pruner := &fakePruner{deleted: 4}
	svc := &Service{
		Audit:  pruner,
		Config: Config{AuditRetention: 30 * 24 * time.Hour},
		Clock:  func() time.Time { return now },
	}
	before := testutil.ToFloat64(auditRecordsPrunedTotal)

	summary, err := svc.RunRetentionOnce(context.Background())
	if err != nil {
		t.Fatalf("RunRetentionOnce() error = %v", err)
	}
	if want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC); !pruner.cutoff.Equal(want) || !summary.Cutoff.Equal(want) {
		t.Fatalf("cutoff = %s, want %s", pruner.cutoff, want)
	}
	if summary.RecordsDeleted != 4 {
		t.Fatalf("RecordsDeleted = %d", summary.RecordsDeleted)
	}
	if got := testutil.ToFloat64(auditRecordsPrunedTotal); got != before+4 {
		t.Fatalf("pruned counter = %v, want %v", got, before+4)
	}
}

func TestRunRetentionOnceRequiresRetention(t *testing.T) {
	svc := &Service{Audit: &fakePruner{}}
	if _, err := svc.RunRetentionOnce(context.Background()); err == nil {
		t.Fatal("expected disabled retention error")
	}
	svc = &Service{Config: Config{AuditRetention: time.Hour}}
	if _, err := svc.RunRetentionOnce(context.Background()); err == nil {
		t.Fatal("expected missing repository error")
	}
}

func TestRunRetentionOnceWrapsFailure(t *testing.T) {
	svc := &Service{
		Audit:  &fakePruner{err: errors.New("db down")},
		Config: Config{AuditRetention: time.Hour},
	}
	before := testutil.ToFloat64(retentionRunsTotal.WithLabelValues("failed"))
	if _, err := svc.RunRetentionOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(retentionRunsTotal.WithLabelValues("failed")); got != before+1 {
		t.Fatalf("failed runs = %v, want %v", got, before+1)
	}
}

func TestRunIntegrityCheckOnceSuccess(t *testing.T) {
	svc := &Service{
		ObjectStore: &fakeObjectStore{objects: map[string]int64{
			"clients/part-00000.parquet":  120,
			"advisors/part-00000.parquet": 80,
			"advisors/part-00001.csv":     40,
			"advisors/_SUCCESS":           0,
		}},
		Config: Config{Tables: []string{"clients", "advisors"}},
	}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err != nil {
		t.Fatalf("RunIntegrityCheckOnce() error = %v", err)
	}
	if summary.TablesChecked != 2 || summary.FilesChecked != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.MissingTables != 0 || summary.SizeMismatchFiles != 0 || summary.OperationalFailures != 0 {
		t.Fatalf("unexpected summary values: %+v", summary)
	}
}

func TestRunIntegrityCheckOnceDetectsMissingTables(t *testing.T) {
	svc := &Service{
		ObjectStore: &fakeObjectStore{objects: map[string]int64{
			"clients/part-00000.parquet": 120,
		}},
		Config: Config{Tables: []string{"clients", "portfolios"}},
	}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "portfolios") {
		t.Fatalf("error = %v, want missing portfolios", err)
	}
	if summary.MissingTables != 1 {
		t.Fatalf("MissingTables = %d, want 1", summary.MissingTables)
	}
}

func TestRunIntegrityCheckOnceDetectsSizeMismatch(t *testing.T) {
	store := &fakeObjectStore{
		objects:   map[string]int64{"clients/part-00000.parquet": 120},
		statSizes: map[string]int64{"clients/part-00000.parquet": 60},
	}
	svc := &Service{ObjectStore: store, Config: Config{Tables: []string{"clients"}}}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if summary.SizeMismatchFiles != 1 {
		t.Fatalf("SizeMismatchFiles = %d, want 1", summary.SizeMismatchFiles)
	}
}

func TestRunIntegrityCheckOnceCountsListFailures(t *testing.T) {
	svc := &Service{
		ObjectStore: &fakeObjectStore{listErr: errors.New("access denied")},
		Config:      Config{Tables: []string{"clients", "bad/name"}},
	}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if summary.OperationalFailures != 2 {
		t.Fatalf("OperationalFailures = %d, want 2", summary.OperationalFailures)
	}
}

func TestRunReturnsWhenNothingIsEnabled(t *testing.T) {
	done := make(chan error, 1)
	go func() { done <- (&Service{}).Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestRunPrunesUntilCancelled(t *testing.T) {
	pruner := &fakePruner{calls: make(chan time.Time, 4)}
	svc := &Service{
		Audit:  pruner,
		Config: Config{AuditRetention: time.Hour, RetentionInterval: 5 * time.Millisecond},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-pruner.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("retention did not run")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

type fakePruner struct {
	deleted int64
	err     error
	cutoff  time.Time
	calls   chan time.Time
}

func (f *fakePruner) DeleteExecutionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	if f.calls != nil {
		select {
		case f.calls <- cutoff:
		default:
		}
	}
	return f.deleted, f.err
}

type fakeObjectStore struct {
	objects   map[string]int64
	statSizes map[string]int64
	listErr   error
}

func (f *fakeObjectStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, errors.New("not implemented")
}

func (f *fakeObjectStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeObjectStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	if size, ok := f.statSizes[key]; ok {
		return storage.ObjectInfo{Key: key, Size: size}, nil
	}
	size, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (f *fakeObjectStore) Delete(context.Context, string) error {
	return nil
}

func (f *fakeObjectStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]storage.ObjectInfo, 0)
	for key, size := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: size})
		}
	}
	return out, nil
}
