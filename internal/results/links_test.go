package results

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/genbi/genbi/internal/query"
)

type fakeStatus struct {
	status query.Status
	err    error
}

func (f fakeStatus) Status(context.Context, string) (query.Status, error) {
	return f.status, f.err
}

type fakePresigner struct {
	input   *s3.GetObjectInput
	options s3.PresignOptions
}

func (f *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.input = params
	for _, fn := range optFns {
		fn(&f.options)
	}
	return &v4.PresignedHTTPRequest{
		URL:          "https://" + aws.ToString(params.Bucket) + ".s3.amazonaws.com/" + aws.ToString(params.Key) + "?X-Amz-Signature=abc",
		Method:       http.MethodGet,
		SignedHeader: http.Header{},
	}, nil
}

func TestDownloadURLPresignsOutputObject(t *testing.T) {
	presigner := &fakePresigner{}
	linker, err := NewLinkerWithPresigner(presigner, fakeStatus{status: query.Status{
		State:          query.StateSucceeded,
		OutputLocation: "s3://athena-results/genbi/exec-1.csv",
	}}, 10*time.Minute)
	if err != nil {
		t.Fatalf("NewLinkerWithPresigner() error = %v", err)
	}
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	linker.now = func() time.Time { return now }

	link, err := linker.DownloadURL(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("DownloadURL() error = %v", err)
	}
	if aws.ToString(presigner.input.Bucket) != "athena-results" || aws.ToString(presigner.input.Key) != "genbi/exec-1.csv" {
		t.Fatalf("input = %+v", presigner.input)
	}
	if presigner.options.Expires != 10*time.Minute {
		t.Fatalf("Expires = %v", presigner.options.Expires)
	}
	if !link.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("ExpiresAt = %v", link.ExpiresAt)
	}
	if link.URL == "" || link.ExecutionID != "exec-1" {
		t.Fatalf("link = %+v", link)
	}
}

func TestDownloadURLRequiresSucceededExecution(t *testing.T) {
	linker, err := NewLinkerWithPresigner(&fakePresigner{}, fakeStatus{status: query.Status{State: query.StateRunning}}, 0)
	if err != nil {
		t.Fatalf("NewLinkerWithPresigner() error = %v", err)
	}
	if _, err := linker.DownloadURL(context.Background(), "exec-1"); !errors.Is(err, ErrNotFinished) {
		t.Fatalf("error = %v, want ErrNotFinished", err)
	}
}

func TestDownloadURLRequiresOutputLocation(t *testing.T) {
	linker, err := NewLinkerWithPresigner(&fakePresigner{}, fakeStatus{status: query.Status{State: query.StateSucceeded}}, 0)
	if err != nil {
		t.Fatalf("NewLinkerWithPresigner() error = %v", err)
	}
	if _, err := linker.DownloadURL(context.Background(), "exec-1"); !errors.Is(err, ErrNoOutput) {
		t.Fatalf("error = %v, want ErrNoOutput", err)
	}
}

func TestDownloadURLPropagatesStatusError(t *testing.T) {
	statusErr := errors.New("not found")
	linker, err := NewLinkerWithPresigner(&fakePresigner{}, fakeStatus{err: statusErr}, 0)
	if err != nil {
		t.Fatalf("NewLinkerWithPresigner() error = %v", err)
	}
	if _, err := linker.DownloadURL(context.Background(), "exec-1"); !errors.Is(err, statusErr) {
		t.Fatalf("error = %v, want %v", err, statusErr)
	}
}

func TestParseS3Path(t *testing.T) {
	bucket, key, err := ParseS3Path("s3://bucket/a/b/c.csv")
	if err != nil {
		t.Fatalf("ParseS3Path() error = %v", err)
	}
	if bucket != "bucket" || key != "a/b/c.csv" {
		t.Fatalf("ParseS3Path() = %q, %q", bucket, key)
	}
	for _, raw := range []string{"https://bucket/key", "s3://bucket", "s3:///key", ""} {
		if _, _, err := ParseS3Path(raw); err == nil {
			t.Fatalf("ParseS3Path(%q) expected error", raw)
		}
	}
}
