// Package results issues presigned download links for the CSV output an
// engine writes for each finished execution.
package results

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/genbi/genbi/internal/query"
)

const DefaultExpiry = 15 * time.Minute

var (
	ErrNotFinished = errors.New("execution has not succeeded")
	ErrNoOutput    = errors.New("execution has no output location")
)

type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type StatusReader interface {
	Status(ctx context.Context, executionID string) (query.Status, error)
}

type Link struct {
	ExecutionID string
	URL         string
	ExpiresAt   time.Time
}

type Linker struct {
	status    StatusReader
	presigner Presigner
	expiry    time.Duration
	now       func() time.Time
}

func NewLinker(cfg aws.Config, status StatusReader, expiry time.Duration) (*Linker, error) {
	return NewLinkerWithPresigner(s3.NewPresignClient(s3.NewFromConfig(cfg)), status, expiry)
}

func NewLinkerWithPresigner(presigner Presigner, status StatusReader, expiry time.Duration) (*Linker, error) {
	if presigner == nil || status == nil {
		return nil, fmt.Errorf("presigner and status reader are required")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Linker{status: status, presigner: presigner, expiry: expiry, now: time.Now}, nil
}

// DownloadURL presigns a GET for the output object of a succeeded execution.
func (l *Linker) DownloadURL(ctx context.Context, executionID string) (Link, error) {
	status, err := l.status.Status(ctx, executionID)
	if err != nil {
		return Link{}, fmt.Errorf("get status for query %s: %w", executionID, err)
	}
	if status.State != query.StateSucceeded {
		return Link{}, fmt.Errorf("%w: query %s is %s", ErrNotFinished, executionID, status.State)
	}
	if strings.TrimSpace(status.OutputLocation) == "" {
		return Link{}, fmt.Errorf("%w: query %s", ErrNoOutput, executionID)
	}
	bucket, key, err := ParseS3Path(status.OutputLocation)
	if err != nil {
		return Link{}, err
	}

	issuedAt := l.now().UTC()
	req, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(l.expiry))
	if err != nil {
		return Link{}, fmt.Errorf("presign %s: %w", status.OutputLocation, err)
	}
	return Link{ExecutionID: executionID, URL: req.URL, ExpiresAt: issuedAt.Add(l.expiry)}, nil
}

// ParseS3Path splits s3://bucket/key into its bucket and key.
func ParseS3Path(raw string) (string, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse s3 path %q: %w", raw, err)
	}
	if parsed.Scheme != "s3" {
		return "", "", fmt.Errorf("s3 path %q must use the s3 scheme", raw)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 path %q must name a bucket and key", raw)
	}
	return parsed.Host, key, nil
}
