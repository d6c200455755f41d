// Package bedrock answers questions from the Bedrock knowledge bases and
// turns structured-KB output into product recommendations.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/genbi/genbi/internal/observability"
)

type KnowledgeBase string

const (
	Structured   KnowledgeBase = "structured"
	Unstructured KnowledgeBase = "unstructured"
)

const (
	opStructured   = "kb_structured"
	opUnstructured = "kb_unstructured"
	opRecommend    = "kb_recommend"
	opSummarize    = "summarize"
)

type AgentAPI interface {
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

type RuntimeAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Config struct {
	StructuredKBID    string
	UnstructuredKBID  string
	KBModelARN        string
	RecommendModelARN string
	SummaryModelID    string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
}

// CallError is returned when a Bedrock call fails. Message carries the
// service's own error message when one is available.
type CallError struct {
	Operation string
	Message   string
	Err       error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("bedrock %s error: %s", e.Operation, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

type Service struct {
	agent   AgentAPI
	runtime RuntimeAPI
	cfg     Config
	logger  *slog.Logger
}

func New(cfg aws.Config, svcCfg Config, logger *slog.Logger) (*Service, error) {
	return NewWithAPI(bedrockagentruntime.NewFromConfig(cfg), bedrockruntime.NewFromConfig(cfg), svcCfg, logger)
}

func NewWithAPI(agent AgentAPI, runtime RuntimeAPI, cfg Config, logger *slog.Logger) (*Service, error) {
	if agent == nil || runtime == nil {
		return nil, fmt.Errorf("bedrock clients are required")
	}
	if strings.TrimSpace(cfg.StructuredKBID) == "" || strings.TrimSpace(cfg.UnstructuredKBID) == "" {
		return nil, fmt.Errorf("knowledge base ids are required")
	}
	if strings.TrimSpace(cfg.KBModelARN) == "" {
		return nil, fmt.Errorf("knowledge base model arn is required")
	}
	if strings.TrimSpace(cfg.SummaryModelID) == "" {
		return nil, fmt.Errorf("summary model id is required")
	}
	if cfg.RecommendModelARN == "" {
		cfg.RecommendModelARN = cfg.KBModelARN
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{agent: agent, runtime: runtime, cfg: cfg, logger: logger}, nil
}

// Answer asks one knowledge base and returns its generated text.
func (s *Service) Answer(ctx context.Context, kb KnowledgeBase, question string) (string, error) {
	switch kb {
	case Structured:
		return s.retrieveAndGenerate(ctx, opStructured, s.cfg.StructuredKBID, s.cfg.KBModelARN, question)
	case Unstructured:
		return s.retrieveAndGenerate(ctx, opUnstructured, s.cfg.UnstructuredKBID, s.cfg.KBModelARN, question)
	default:
		return "", fmt.Errorf("unknown knowledge base %q", kb)
	}
}

// CombinedAnswer asks both knowledge bases concurrently and summarizes the
// two answers into one.
func (s *Service) CombinedAnswer(ctx context.Context, question string) (string, error) {
	var structured, unstructured string
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		answer, err := s.Answer(groupCtx, Structured, question)
		structured = answer
		return err
	})
	group.Go(func() error {
		answer, err := s.Answer(groupCtx, Unstructured, question)
		unstructured = answer
		return err
	})
	if err := group.Wait(); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "combining knowledge base answers",
		slog.Int("structured_len", len(structured)),
		slog.Int("unstructured_len", len(unstructured)),
	)
	return s.converse(ctx, opSummarize, buildSummaryPrompt(question, structured, unstructured))
}

func (s *Service) retrieveAndGenerate(ctx context.Context, operation, kbID, modelARN, text string) (answer string, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	started := time.Now()
	defer func() { observability.ObserveBedrockCall(operation, err, time.Since(started)) }()

	out, err := s.agent.RetrieveAndGenerate(ctx, retrieveAndGenerateInput(kbID, modelARN, text))
	if err != nil {
		return "", callError(operation, err)
	}
	if out == nil || out.Output == nil {
		return "", nil
	}
	return aws.ToString(out.Output.Text), nil
}

func (s *Service) converse(ctx context.Context, operation, prompt string) (text string, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	started := time.Now()
	defer func() { observability.ObserveBedrockCall(operation, err, time.Since(started)) }()

	out, err := s.runtime.Converse(ctx, converseInput(s.cfg.SummaryModelID, prompt, s.cfg.MaxTokens, s.cfg.Temperature))
	if err != nil {
		return "", callError(operation, err)
	}
	return converseText(out), nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return ctx, func() {}
}

func callError(operation string, err error) error {
	message := err.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		message = apiErr.ErrorMessage()
	}
	return &CallError{Operation: operation, Message: message, Err: err}
}
