package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/adapters/config"
	"strategist/internal/domain/message"
	"strategist/internal/events"
	"strategist/pkg/logger"
)

func TestNewKnowledgeRepository(t *testing.T) {
	ctx := context.Background()
	log := logger.Nop()

	t.Run("none disables the knowledge base", func(t *testing.T) {
		assert.Nil(t, newKnowledgeRepository(ctx, config.KnowledgeConfig{Backend: "none"}, nil, nil, log))
	})

	t.Run("memory serves the bundled graph", func(t *testing.T) {
		repo := newKnowledgeRepository(ctx, config.KnowledgeConfig{Backend: "memory"}, nil, nil, log)
		require.NotNil(t, repo)

		tmpl, err := repo.GetStrategyTemplate(ctx, "momentum")
		require.NoError(t, err)
		assert.Equal(t, "momentum", tmpl.StrategyType)
	})

	t.Run("missing seed file degrades to nil", func(t *testing.T) {
		cfg := config.KnowledgeConfig{Backend: "memory", SeedFile: filepath.Join(t.TempDir(), "missing.yaml")}
		assert.Nil(t, newKnowledgeRepository(ctx, cfg, nil, nil, log))
	})

	t.Run("malformed seed file degrades to nil", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("nodes: [:"), 0o600))
		assert.Nil(t, newKnowledgeRepository(ctx, config.KnowledgeConfig{Backend: "memory", SeedFile: path}, nil, nil, log))
	})

	t.Run("postgres without a connection degrades to nil", func(t *testing.T) {
		assert.Nil(t, newKnowledgeRepository(ctx, config.KnowledgeConfig{Backend: "postgres"}, nil, nil, log))
	})
}

func TestProvideLLMWithoutCredentials(t *testing.T) {
	assert.Nil(t, provideLLM(config.LLMConfig{Provider: "openai"}, nil, nil, logger.Nop()))
}

func testContainer(t *testing.T) *Container {
	t.Helper()

	c := NewContainer()
	t.Cleanup(c.Cancel)
	c.Log = logger.Nop()
	c.Config = &config.Config{
		Knowledge:  config.KnowledgeConfig{Backend: "memory"},
		MarketData: config.MarketDataConfig{Backend: "memory"},
		Session: config.SessionConfig{
			MaxEntries:    10,
			TTL:           0,
			HistoryWindow: 5,
		},
		Validation:    config.ValidationConfig{AutoValidate: true},
		Visualization: config.VisualizationConfig{BaseURL: "http://charts.local"},
	}

	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitAgents()
	return c
}

func TestContainerWiresAgents(t *testing.T) {
	c := testContainer(t)

	assert.Equal(t, []message.AgentName{
		message.AgentConversational,
		message.AgentDataFeature,
		message.AgentValidation,
	}, c.Agents.Registry.List())
	assert.Nil(t, c.Adapters.LLM)
	assert.Nil(t, c.Adapters.KafkaProducer)
	assert.IsType(t, events.NoopRecorder{}, c.Adapters.Recorder)
	assert.NotNil(t, c.Repos.Knowledge)
}

func TestContainerValidateWithoutStrategy(t *testing.T) {
	c := testContainer(t)

	out, err := c.Agents.Router.Handle(context.Background(), "s1", "validate my strategy", nil)
	require.NoError(t, err)

	assert.Equal(t, message.TypeError, out.MessageType)
	assert.Equal(t, false, out.Content[message.KeyIsValid])
	assert.Equal(t, 1, c.Agents.Sessions.Len())
}

func TestContainerDataFeatureOverBus(t *testing.T) {
	c := testContainer(t)

	out, err := c.Agents.Bus.Send(context.Background(), message.New(
		message.AgentConversational, message.AgentDataFeature, message.TypeRequest,
		map[string]any{message.KeyType: "data_availability", "symbol": "ETH/USDT"},
		map[string]any{message.CtxSessionID: "s2"},
	))
	require.NoError(t, err)

	assert.Equal(t, message.TypeResponse, out.MessageType)
	assert.Equal(t, "data_availability_result", out.Content[message.KeyType])
}
