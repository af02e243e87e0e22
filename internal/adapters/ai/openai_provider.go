package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"strategist/pkg/errors"
)

var _ ChatProvider = (*OpenAIProvider)(nil)

// OpenAIProvider talks to the OpenAI chat completions API, or to any
// compatible endpoint (DeepSeek) through a base URL override.
type OpenAIProvider struct {
	name        ProviderName
	client      openai.Client
	timeout     time.Duration
	models      []ModelInfo
	rateLimiter RateLimiter
}

// NewOpenAIProvider creates a provider for api.openai.com.
func NewOpenAIProvider(apiKey string, timeout time.Duration, limiter RateLimiter) *OpenAIProvider {
	return newOpenAICompatible(ProviderNameOpenAI, apiKey, "", timeout, limiter, openAIModels())
}

// NewDeepSeekProvider creates a provider for the OpenAI-compatible DeepSeek API.
func NewDeepSeekProvider(apiKey string, timeout time.Duration, limiter RateLimiter) *OpenAIProvider {
	return newOpenAICompatible(ProviderNameDeepSeek, apiKey, deepSeekBaseURL, timeout, limiter, deepSeekModels())
}

func newOpenAICompatible(name ProviderName, apiKey, baseURL string, timeout time.Duration, limiter RateLimiter, models []ModelInfo) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClient(opts...),
		timeout:     timeout,
		models:      models,
		rateLimiter: limiter,
	}
}

func (p *OpenAIProvider) Name() string { return p.name.String() }

// GetModel returns model info by name.
func (p *OpenAIProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	if m, ok := findModel(p.models, model); ok {
		return m, nil
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "%s model %s not found", p.name, model)
}

func (p *OpenAIProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Provider: p.name, Limit: p.rateLimiter.Limit(), Err: err}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.Chat.Completions.New(ctx, buildOpenAIParams(req))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrExternal, "%s chat: %v", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrExternal, "%s chat: no choices returned", p.name)
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: convertOpenAIFinish(string(choice.FinishReason)),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func buildOpenAIParams(req ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            messages,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

func convertOpenAIFinish(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishReasonStop
	case "length":
		return FinishReasonLength
	default:
		return FinishReasonOther
	}
}

func openAIModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameOpenAI,
			Name:            "gpt-4o-mini",
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.00015,
			OutputCostPer1K: 0.0006,
			SupportsJSON:    true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            "gpt-4o",
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.0025,
			OutputCostPer1K: 0.01,
			SupportsJSON:    true,
		},
	}
}

func deepSeekModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameDeepSeek,
			Name:            "deepseek-chat",
			Family:          "deepseek-v3",
			MaxTokens:       64000,
			InputCostPer1K:  0.00027,
			OutputCostPer1K: 0.0011,
			SupportsJSON:    true,
		},
	}
}
