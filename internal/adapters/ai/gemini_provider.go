package ai

import (
	"context"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"strategist/pkg/errors"
)

var _ ChatProvider = (*GeminiProvider)(nil)

// GeminiProvider implements chat over the Google Gemini API.
type GeminiProvider struct {
	apiKey      string
	timeout     time.Duration
	models      []ModelInfo
	rateLimiter RateLimiter

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewGeminiProvider creates a new Gemini provider. The client is built on first use.
func NewGeminiProvider(apiKey string, timeout time.Duration, limiter RateLimiter) *GeminiProvider {
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	return &GeminiProvider{apiKey: apiKey, timeout: timeout, models: geminiModels(), rateLimiter: limiter}
}

func (p *GeminiProvider) Name() string { return ProviderNameGoogle.String() }

// GetModel returns model info by name.
func (p *GeminiProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	if m, ok := findModel(p.models, model); ok {
		return m, nil
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "gemini model %s not found", model)
}

func (p *GeminiProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.clientErr
}

// Chat sends a generate-content request. System messages become the system instruction.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Provider: ProviderNameGoogle, Limit: p.rateLimiter.Limit(), Err: err}
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "gemini client: %v", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cfg, contents := buildGeminiRequest(req)
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrExternal, "gemini generate: %v", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.Wrap(errors.ErrExternal, "gemini generate: no candidates")
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	out := &ChatResponse{
		Model:        req.Model,
		Content:      sb.String(),
		FinishReason: convertGeminiFinish(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func buildGeminiRequest(req ChatRequest) (*genai.GenerateContentConfig, []*genai.Content) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens),
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, genai.NewPartFromText(msg.Content))
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{genai.NewPartFromText(msg.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{genai.NewPartFromText(msg.Content)}})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}
	return cfg, contents
}

func convertGeminiFinish(reason genai.FinishReason) FinishReason {
	switch reason {
	case genai.FinishReasonStop, genai.FinishReasonUnspecified, "":
		return FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return FinishReasonLength
	default:
		return FinishReasonOther
	}
}

func geminiModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameGoogle,
			Name:            "gemini-2.0-flash",
			Family:          "gemini-2.0",
			MaxTokens:       1000000,
			InputCostPer1K:  0.0001,
			OutputCostPer1K: 0.0004,
			SupportsJSON:    true,
		},
		{
			Provider:        ProviderNameGoogle,
			Name:            "gemini-1.5-pro",
			Family:          "gemini-1.5",
			MaxTokens:       2000000,
			InputCostPer1K:  0.0035,
			OutputCostPer1K: 0.0105,
			SupportsJSON:    true,
		},
	}
}
