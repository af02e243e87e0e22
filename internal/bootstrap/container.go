package bootstrap

import (
	"context"
	"net/http"
	"sync"

	chclient "strategist/internal/adapters/clickhouse"
	"strategist/internal/adapters/config"
	"strategist/internal/adapters/kafka"
	pgclient "strategist/internal/adapters/postgres"
	redisclient "strategist/internal/adapters/redis"
	"strategist/internal/agents"
	"strategist/internal/agents/state"
	kg "strategist/internal/domain/knowledge"
	"strategist/internal/domain/market_data"
	"strategist/internal/domain/strategy"
	"strategist/internal/events"
	"strategist/internal/llm"
	"strategist/pkg/errors"
	"strategist/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores). Each is nil when its backend is not configured.
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	// Domain Layer - Repositories
	Repos *Repositories

	// External Adapters
	Adapters *Adapters

	// Agents and routing
	Agents *Agents

	// Application Layer
	MetricsServer *http.Server

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Knowledge  kg.Repository // nil when the knowledge base is unavailable
	MarketData market_data.Repository
	Rules      *strategy.RuleTable
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer
	Recorder      events.Recorder

	LLM      *llm.Service // nil when no provider credentials are configured
	LLMStats *llm.StatsRecorder
}

// Agents groups the agent system
type Agents struct {
	Sessions       *state.Store
	Registry       *agents.Registry
	Bus            *agents.Bus
	Conversational *agents.ConversationalAgent
	Validation     *agents.ValidationAgent
	DataFeature    *agents.DataFeatureAgent
	Router         *agents.Router
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:     &Repositories{},
		Adapters:  &Adapters{},
		Agents:    &Agents{},
		Lifecycle: NewLifecycle(),
		WG:        &sync.WaitGroup{},
		Context:   ctx,
		Cancel:    cancel,
	}
}

// MustInit runs every initialization phase in order
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitAgents()
	c.MustInitApplication()
}

// Start launches background processing: the session janitor and the metrics endpoint
func (c *Container) Start() {
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		c.Agents.Sessions.RunJanitor(c.Context, c.Config.Session.SweepInterval)
	}()

	if c.MetricsServer != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			c.Log.Infow("Metrics endpoint listening", "addr", c.MetricsServer.Addr)
			if err := c.MetricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.Log.Errorf("metrics server failed: %v", err)
			}
		}()
	}
}

// Shutdown stops background work and releases every resource
func (c *Container) Shutdown() {
	c.Cancel()
	c.Lifecycle.Shutdown(
		c.WG,
		c.MetricsServer,
		c.Adapters.KafkaProducer,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
