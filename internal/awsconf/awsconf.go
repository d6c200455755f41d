// Package awsconf builds the shared aws.Config used by every AWS client.
package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/genbi/genbi/internal/config"
)

const defaultRegion = "us-east-1"

// Load resolves AWS settings. Static keys are used when configured; otherwise
// the SDK default chain applies (env, shared profile, instance role).
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	return load(ctx, cfg, awsconfig.LoadDefaultConfig)
}

type loaderFunc func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error)

func load(ctx context.Context, cfg config.AWSConfig, loader loaderFunc) (aws.Config, error) {
	opts := loadOptions(cfg)
	awsCfg, err := loader(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}
	return awsCfg, nil
}

func loadOptions(cfg config.AWSConfig) []func(*awsconfig.LoadOptions) error {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	return opts
}
