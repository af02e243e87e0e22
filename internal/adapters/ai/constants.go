package ai

import "strings"

// ProviderName represents an AI provider identifier
type ProviderName string

const (
	ProviderNameOpenAI   ProviderName = "openai"
	ProviderNameGoogle   ProviderName = "google"
	ProviderNameDeepSeek ProviderName = "deepseek"
)

func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameOpenAI, ProviderNameGoogle, ProviderNameDeepSeek:
		return true
	default:
		return false
	}
}

// NormalizeProviderName makes provider lookup more forgiving. "gemini" is accepted for google.
func NormalizeProviderName(name string) ProviderName {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "gemini" {
		return ProviderNameGoogle
	}
	return ProviderName(n)
}

const (
	deepSeekBaseURL = "https://api.deepseek.com/v1"

	defaultMaxTokens = 1024
)
