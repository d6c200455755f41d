package awsconf

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/genbi/genbi/internal/config"
)

func TestLoadAppliesRegionAndStaticKeys(t *testing.T) {
	var got awsconfig.LoadOptions
	loader := func(_ context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			if err := fn(&got); err != nil {
				return aws.Config{}, err
			}
		}
		return aws.Config{Region: got.Region, Credentials: got.Credentials}, nil
	}

	cfg, err := load(context.Background(), config.AWSConfig{
		Region:          "eu-central-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}, loader)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Region != "eu-central-1" {
		t.Fatalf("Region = %q", cfg.Region)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" || creds.SecretAccessKey != "secret" || creds.SessionToken != "token" {
		t.Fatalf("credentials = %+v", creds)
	}
}

func TestLoadDefaultsRegionAndUsesSDKChain(t *testing.T) {
	var optCount int
	loader := func(_ context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		optCount = len(optFns)
		return aws.Config{}, nil
	}

	cfg, err := load(context.Background(), config.AWSConfig{}, loader)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if optCount != 0 {
		t.Fatalf("options = %d, want none", optCount)
	}
	if cfg.Region != defaultRegion {
		t.Fatalf("Region = %q", cfg.Region)
	}
}

func TestLoadWrapsLoaderError(t *testing.T) {
	boom := errors.New("no profile")
	loader := func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, boom
	}
	if _, err := load(context.Background(), config.AWSConfig{}, loader); !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
}
