package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KNOWLEDGE_BACKEND", "memory")
	t.Setenv("MARKET_DATA_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "strategist", cfg.App.Name)
	assert.Equal(t, 1000, cfg.Session.MaxEntries)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.Session.HistoryWindow)
	assert.True(t, cfg.Validation.AutoValidate)
	assert.Equal(t, "strategist.envelopes", cfg.Kafka.EnvelopeTopic)
}

func TestValidateBackends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "memory backends",
			mutate: func(c *Config) {},
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Knowledge.Backend = "postgres" },
			wantErr: "POSTGRES_HOST",
		},
		{
			name:    "unknown knowledge backend",
			mutate:  func(c *Config) { c.Knowledge.Backend = "neo4j" },
			wantErr: "KNOWLEDGE_BACKEND",
		},
		{
			name:    "clickhouse without host",
			mutate:  func(c *Config) { c.MarketData.Backend = "clickhouse" },
			wantErr: "CLICKHOUSE_HOST",
		},
		{
			name:    "redis limiter without redis",
			mutate:  func(c *Config) { c.LLM.RateLimitRedis = true },
			wantErr: "REDIS_HOST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Knowledge:  KnowledgeConfig{Backend: "memory"},
				MarketData: MarketDataConfig{Backend: "memory"},
				Session:    SessionConfig{MaxEntries: 10, HistoryWindow: 5},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}

func TestChartURL(t *testing.T) {
	v := VisualizationConfig{BaseURL: "https://charts.example.com/"}
	assert.Equal(t, "https://charts.example.com/abc.png", v.ChartURL("abc"))
}

func TestLLMEnabled(t *testing.T) {
	assert.False(t, LLMConfig{}.Enabled())
	assert.True(t, LLMConfig{GeminiKey: "k"}.Enabled())
}
