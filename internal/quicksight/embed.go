// Package quicksight issues embed URLs for registered QuickSight users.
package quicksight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/quicksight/types"
	"github.com/aws/smithy-go"

	"github.com/genbi/genbi/internal/observability"
)

const (
	MinSessionLifetime     = 15
	MaxSessionLifetime     = 600
	DefaultSessionLifetime = MaxSessionLifetime
)

var (
	ErrInvalidRequest = errors.New("invalid embed request")

	userARNPattern = regexp.MustCompile(`^arn:aws:quicksight:([a-z0-9-]+):(\d{12}):user/([^/]+)/(.+)$`)
)

type API interface {
	GenerateEmbedUrlForRegisteredUser(ctx context.Context, params *quicksight.GenerateEmbedUrlForRegisteredUserInput, optFns ...func(*quicksight.Options)) (*quicksight.GenerateEmbedUrlForRegisteredUserOutput, error)
}

type Config struct {
	// AccountID is used when the user ARN does not carry one.
	AccountID string
	// Namespace is the QuickSight namespace users are expected to live in.
	Namespace              string
	SessionLifetimeMinutes int
}

type Request struct {
	DashboardID string
	UserARN     string
}

type EmbedURL struct {
	URL       string
	ExpiresAt time.Time
}

// EmbedError wraps a failed GenerateEmbedUrlForRegisteredUser call.
type EmbedError struct {
	Message string
	Err     error
}

func (e *EmbedError) Error() string {
	return "quicksight embed error: " + e.Message
}

func (e *EmbedError) Unwrap() error {
	return e.Err
}

type Service struct {
	api    API
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg aws.Config, svcCfg Config, logger *slog.Logger) (*Service, error) {
	return NewWithAPI(quicksight.NewFromConfig(cfg), svcCfg, logger)
}

func NewWithAPI(api API, cfg Config, logger *slog.Logger) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("quicksight client is required")
	}
	if cfg.SessionLifetimeMinutes == 0 {
		cfg.SessionLifetimeMinutes = DefaultSessionLifetime
	}
	if cfg.SessionLifetimeMinutes < MinSessionLifetime || cfg.SessionLifetimeMinutes > MaxSessionLifetime {
		return nil, fmt.Errorf("session lifetime must be between %d and %d minutes", MinSessionLifetime, MaxSessionLifetime)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{api: api, cfg: cfg, logger: logger, now: time.Now}, nil
}

// GenerateEmbedURL returns a dashboard embed URL for the user. The account id
// comes from the user ARN, or from Config.AccountID when the ARN has none.
func (s *Service) GenerateEmbedURL(ctx context.Context, req Request) (embed EmbedURL, err error) {
	defer func() { observability.ObserveEmbedURL(err) }()

	dashboardID := strings.TrimSpace(req.DashboardID)
	userARN := strings.TrimSpace(req.UserARN)
	if dashboardID == "" {
		return EmbedURL{}, fmt.Errorf("%w: dashboard_id is required", ErrInvalidRequest)
	}
	if userARN == "" {
		return EmbedURL{}, fmt.Errorf("%w: user_arn is required", ErrInvalidRequest)
	}
	accountID := AccountIDFromUserARN(userARN)
	if accountID == "" {
		accountID = strings.TrimSpace(s.cfg.AccountID)
	}
	if accountID == "" {
		return EmbedURL{}, fmt.Errorf("%w: could not determine account id from user_arn; configure an account id or pass a valid QuickSight user ARN", ErrInvalidRequest)
	}

	if ns := NamespaceFromUserARN(userARN); ns != "" && s.cfg.Namespace != "" && ns != s.cfg.Namespace {
		s.logger.WarnContext(ctx, "user arn namespace differs from configured namespace",
			slog.String("arn_namespace", ns),
			slog.String("namespace", s.cfg.Namespace),
		)
	}
	s.logger.InfoContext(ctx, "generating dashboard embed url",
		slog.String("account_id", accountID),
		slog.String("namespace", s.cfg.Namespace),
		slog.String("dashboard_id", dashboardID),
		slog.String("user", userLabel(userARN)),
	)
	issuedAt := s.now().UTC()
	out, err := s.api.GenerateEmbedUrlForRegisteredUser(ctx, &quicksight.GenerateEmbedUrlForRegisteredUserInput{
		AwsAccountId: aws.String(accountID),
		UserArn:      aws.String(userARN),
		ExperienceConfiguration: &types.RegisteredUserEmbeddingExperienceConfiguration{
			Dashboard: &types.RegisteredUserDashboardEmbeddingConfiguration{
				InitialDashboardId: aws.String(dashboardID),
			},
		},
		SessionLifetimeInMinutes: aws.Int64(int64(s.cfg.SessionLifetimeMinutes)),
	})
	if err != nil {
		message := err.Error()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
			message = apiErr.ErrorMessage()
		}
		return EmbedURL{}, &EmbedError{Message: message, Err: err}
	}
	if out == nil || aws.ToString(out.EmbedUrl) == "" {
		return EmbedURL{}, &EmbedError{Message: "empty embed url in response"}
	}
	return EmbedURL{
		URL:       aws.ToString(out.EmbedUrl),
		ExpiresAt: issuedAt.Add(time.Duration(s.cfg.SessionLifetimeMinutes) * time.Minute),
	}, nil
}

// AccountIDFromUserARN extracts the 12 digit account id of a QuickSight user
// ARN, or returns "" when arn is not one.
func AccountIDFromUserARN(arn string) string {
	matches := userARNPattern.FindStringSubmatch(arn)
	if matches == nil {
		return ""
	}
	return matches[2]
}

// NamespaceFromUserARN returns the namespace segment of a QuickSight user ARN.
func NamespaceFromUserARN(arn string) string {
	matches := userARNPattern.FindStringSubmatch(arn)
	if matches == nil {
		return ""
	}
	return matches[3]
}

func userLabel(arn string) string {
	if strings.Contains(arn, "user/") {
		return arn[strings.LastIndex(arn, "/")+1:]
	}
	return arn
}
