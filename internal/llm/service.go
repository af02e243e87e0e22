// Package llm exposes the two capabilities agents need from a language
// model: free-form generation and JSON extraction.
package llm

import (
	"context"
	"strings"
	"time"

	"strategist/internal/adapters/ai"
	"strategist/pkg/errors"
	"strategist/pkg/logger"
)

// Config selects the model and sampling settings used for every call.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Service implements Generate and ExtractJSON on top of a chat provider.
type Service struct {
	provider ai.ChatProvider
	cfg      Config
	observer Observer
	log      *logger.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithObserver attaches an observer that sees every call.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithLogger overrides the service logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// New creates a Service.
func New(provider ai.ChatProvider, cfg Config, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		cfg:      cfg,
		log:      logger.Get().WithComponent("llm"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate returns the model's reply to prompt.
func (s *Service) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	resp, err := s.chat(ctx, OpGenerate, prompt, systemPrompt, false)
	if err != nil {
		return "", err
	}
	s.observe(OpGenerate, resp, nil, false)
	return resp.content, nil
}

// ExtractJSON asks for a JSON object. A reply that cannot be parsed yields
// the {"error", "raw_response"} object and a nil error; only transport
// failures are returned as errors.
func (s *Service) ExtractJSON(ctx context.Context, prompt, systemPrompt string) (map[string]any, error) {
	resp, err := s.chat(ctx, OpExtractJSON, prompt, systemPrompt, true)
	if err != nil {
		return nil, err
	}

	obj, parseErr := ParseObject(resp.content)
	if parseErr != nil {
		s.log.Warnw("llm reply is not valid json",
			"model", s.cfg.Model,
			"error", parseErr,
			"raw_length", len(resp.content),
		)
		s.observe(OpExtractJSON, resp, nil, true)
		return ParseFailure(parseErr, resp.content), nil
	}

	s.observe(OpExtractJSON, resp, nil, false)
	return obj, nil
}

type chatResult struct {
	content string
	usage   ai.Usage
	latency time.Duration
}

func (s *Service) chat(ctx context.Context, op, prompt, systemPrompt string, jsonMode bool) (*chatResult, error) {
	if s.provider == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "no llm provider configured")
	}

	messages := make([]ai.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: prompt})

	start := time.Now()
	resp, err := s.provider.Chat(ctx, ai.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSONMode:    jsonMode,
	})
	latency := time.Since(start)

	if err != nil {
		s.observe(op, &chatResult{latency: latency}, err, false)
		s.log.Warnw("llm call failed", "op", op, "model", s.cfg.Model, "error", err)
		return nil, errors.Wrapf(err, "llm %s", op)
	}

	s.log.Debugw("llm call completed",
		"op", op,
		"model", s.cfg.Model,
		"latency_ms", latency.Milliseconds(),
		"tokens", resp.Usage.TotalTokens,
	)

	return &chatResult{content: resp.Content, usage: resp.Usage, latency: latency}, nil
}

func (s *Service) observe(op string, res *chatResult, err error, parseFailed bool) {
	if s.observer == nil {
		return
	}
	providerName := ""
	if s.provider != nil {
		providerName = s.provider.Name()
	}
	s.observer.ObserveCall(Call{
		Provider: providerName,
		Model:    s.cfg.Model,
		Op:       op,
		Status:   callStatus(err, parseFailed),
		Latency:  res.latency,
		Usage:    res.usage,
		Err:      err,
	})
}
