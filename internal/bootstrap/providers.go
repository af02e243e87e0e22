package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"strategist/internal/adapters/ai"
	chclient "strategist/internal/adapters/clickhouse"
	"strategist/internal/adapters/config"
	errnoop "strategist/internal/adapters/errors/noop"
	"strategist/internal/adapters/errors/sentry"
	"strategist/internal/adapters/kafka"
	pgclient "strategist/internal/adapters/postgres"
	redisclient "strategist/internal/adapters/redis"
	"strategist/internal/agents"
	"strategist/internal/agents/state"
	kg "strategist/internal/domain/knowledge"
	"strategist/internal/domain/market_data"
	"strategist/internal/domain/strategy"
	"strategist/internal/events"
	"strategist/internal/knowledge"
	"strategist/internal/llm"
	"strategist/internal/metrics"
	chrepo "strategist/internal/repository/clickhouse"
	memrepo "strategist/internal/repository/memory"
	pgrepo "strategist/internal/repository/postgres"
	redisrepo "strategist/internal/repository/redis"
	"strategist/pkg/errors"
	"strategist/pkg/logger"
	"strategist/pkg/templates"
)

// syntheticHistory is how many candles the in-memory market keeps per series.
const syntheticHistory = 1000

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the data stores the configuration asks for.
// Postgres and Redis are optional: a failed connection is logged and the
// dependent feature degrades. ClickHouse is required once selected.
func (c *Container) MustInitInfrastructure() {
	var err error
	cfg := c.Config

	if cfg.Knowledge.Backend == "postgres" {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(c.Context, cfg.Postgres)
		if err != nil {
			c.Log.Warnw("PostgreSQL unavailable, knowledge base disabled", "error", err)
			c.PG = nil
		} else {
			c.Log.Info("✓ PostgreSQL connected")
		}
	}

	if cfg.MarketData.Backend == "clickhouse" {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(c.Context, cfg.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	}

	if cfg.Redis.Host != "" {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(c.Context, cfg.Redis)
		if err != nil {
			c.Log.Warnw("Redis unavailable, caching and shared rate limits disabled", "error", err)
			c.Redis = nil
		} else {
			c.Log.Info("✓ Redis connected")
		}
	}
}

// ========================================
// Phase 3: Domain Layer - Repositories
// ========================================

// MustInitRepositories builds the knowledge, market data and rule sources
func (c *Container) MustInitRepositories() {
	c.Repos.Knowledge = newKnowledgeRepository(c.Context, c.Config.Knowledge, c.PG, c.redisClient(), c.Log)
	c.Repos.MarketData = provideMarketData(c.Config.MarketData, c.CH)

	rules, err := strategy.LoadRules(c.Config.Validation.RulesFile)
	if err != nil {
		c.Log.Fatalf("failed to load validation rules: %v", err)
	}
	c.Repos.Rules = rules
	c.Log.Infow("✓ Repositories initialized",
		"knowledge", c.Repos.Knowledge != nil,
		"market_data", c.Config.MarketData.Backend,
		"strategy_types", rules.Types(),
	)
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters sets up the LLM service and the envelope audit trail
func (c *Container) MustInitAdapters() {
	c.Adapters.LLMStats = llm.NewStatsRecorder()

	var limiterRedis *redis.Client
	if c.Config.LLM.RateLimitRedis {
		limiterRedis = c.redisClient()
	}
	c.Adapters.LLM = provideLLM(c.Config.LLM, limiterRedis, c.Adapters.LLMStats, c.Log)

	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	if c.Adapters.KafkaProducer != nil {
		c.Adapters.Recorder = events.NewEnvelopePublisher(c.Adapters.KafkaProducer, c.Config.Kafka.EnvelopeTopic, c.Log)
	} else {
		c.Adapters.Recorder = events.NoopRecorder{}
	}
}

// ========================================
// Phase 5: Agents
// ========================================

// MustInitAgents registers the agents on a shared bus and builds the router
func (c *Container) MustInitAgents() {
	cfg := c.Config
	a := c.Agents

	if cfg.App.PromptsDir != "" {
		n, err := templates.Get().Overlay(cfg.App.PromptsDir)
		if err != nil {
			c.Log.Fatalf("failed to load prompt overrides: %v", err)
		}
		c.Log.Infow("✓ Prompt overrides loaded", "dir", cfg.App.PromptsDir, "count", n)
	}

	a.Sessions = state.NewStore(cfg.Session.MaxEntries, cfg.Session.TTL)
	a.Registry = agents.NewRegistry()
	a.Bus = agents.NewBus(a.Registry, a.Sessions, c.Adapters.Recorder)

	// A nil *llm.Service must not become a non-nil interface value.
	var model agents.LLM
	if c.Adapters.LLM != nil {
		model = c.Adapters.LLM
	}

	a.Validation = agents.NewValidationAgent(model, c.Repos.Knowledge, c.Repos.Rules)
	a.Conversational = agents.NewConversationalAgent(model, c.Repos.Knowledge, a.Bus, agents.ConversationalConfig{
		HistoryWindow: cfg.Session.HistoryWindow,
		ChartURL:      cfg.Visualization.ChartURL,
	})
	a.DataFeature = agents.NewDataFeatureAgent(c.Repos.MarketData)

	for _, ag := range []agents.Agent{a.Conversational, a.Validation, a.DataFeature} {
		if err := a.Registry.Register(ag); err != nil {
			c.Log.Fatalf("failed to register agent: %v", err)
		}
	}

	a.Router = agents.NewRouter(a.Bus, a.Validation, cfg.Validation.AutoValidate)
	c.Log.Infow("✓ Agents registered", "agents", a.Registry.List())
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication registers metrics and prepares the metrics endpoint
func (c *Container) MustInitApplication() {
	metrics.Init()

	backends := make(map[string]metrics.HealthChecker)
	if c.PG != nil {
		backends["postgres"] = c.PG
	}
	if c.CH != nil {
		backends["clickhouse"] = c.CH
	}
	if c.Redis != nil {
		backends["redis"] = c.Redis
	}
	collector := metrics.NewStateCollector(c.Log.WithComponent("metrics"), c.Agents.Sessions, backends)
	if err := metrics.RegisterStateCollector(collector); err != nil {
		c.Log.Warnw("State collector not registered", "error", err)
	}

	if c.Config.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	c.MetricsServer = &http.Server{
		Addr:              c.Config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (c *Container) redisClient() *redis.Client {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Client()
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// newKnowledgeRepository is the single place the knowledge base is acquired.
// Any failure is logged and yields nil: agents treat a nil repository as
// "no knowledge available" and keep working.
func newKnowledgeRepository(ctx context.Context, cfg config.KnowledgeConfig, pg *pgclient.Client, rdb *redis.Client, log *logger.Logger) kg.Repository {
	log = log.WithComponent("knowledge")

	var repo kg.Repository
	switch cfg.Backend {
	case "none":
		log.Info("Knowledge base disabled")
		return nil

	case "memory":
		g, err := loadGraph(cfg.SeedFile)
		if err != nil {
			log.Warnw("Knowledge graph not loaded, knowledge base disabled", "error", err)
			return nil
		}
		memRepo, err := memrepo.NewKnowledgeRepository(g)
		if err != nil {
			log.Warnw("Knowledge graph invalid, knowledge base disabled", "error", err)
			return nil
		}
		repo = memRepo

	case "postgres":
		if pg == nil {
			log.Warn("Knowledge base disabled: postgres not connected")
			return nil
		}
		pgRepo := pgrepo.NewKnowledgeRepository(pg.DB())
		if err := pgRepo.Migrate(ctx); err != nil {
			log.Warnw("Knowledge schema migration failed, knowledge base disabled", "error", err)
			return nil
		}
		if cfg.SeedFile != "" {
			g, err := memrepo.LoadGraph(cfg.SeedFile)
			if err == nil {
				err = pgRepo.Seed(ctx, g)
			}
			if err != nil {
				log.Warnw("Knowledge seed failed, serving existing graph", "file", cfg.SeedFile, "error", err)
			}
		}
		repo = pgRepo

	default:
		log.Warnw("Unknown knowledge backend", "backend", cfg.Backend)
		return nil
	}

	if rdb != nil {
		log.Infow("✓ Knowledge base ready", "backend", cfg.Backend, "cache_ttl", cfg.CacheTTL)
		return redisrepo.NewCachedKnowledgeRepository(knowledge.Instrument(repo, cfg.Backend), rdb, cfg.CacheTTL, cfg.Backend)
	}
	log.Infow("✓ Knowledge base ready", "backend", cfg.Backend)
	return knowledge.Instrument(repo, cfg.Backend)
}

func loadGraph(seedFile string) (*kg.Graph, error) {
	if seedFile == "" {
		return memrepo.DefaultGraph()
	}
	return memrepo.LoadGraph(seedFile)
}

func provideMarketData(cfg config.MarketDataConfig, ch *chclient.Client) market_data.Repository {
	if cfg.Backend == "clickhouse" && ch != nil {
		return chrepo.NewMarketDataRepository(ch.Conn(), "")
	}
	return memrepo.NewMarketDataRepository(nil, syntheticHistory, time.Now())
}

// provideLLM returns nil when no provider has credentials; agents then
// answer with their documented defaults.
func provideLLM(cfg config.LLMConfig, rdb *redis.Client, stats *llm.StatsRecorder, log *logger.Logger) *llm.Service {
	if !cfg.Enabled() {
		log.Warn("No LLM credentials configured, language model disabled")
		return nil
	}

	registry, err := ai.BuildRegistry(cfg, rdb)
	if err != nil {
		log.Warnw("LLM providers not initialized", "error", err)
		return nil
	}

	providerName := resolveProvider(registry, cfg.Provider)
	provider, err := registry.Get(providerName)
	if err != nil {
		log.Warnw("LLM provider not found", "provider", providerName, "error", err)
		return nil
	}

	log.Infow("✓ LLM ready", "provider", providerName, "model", cfg.Model, "shared_rate_limit", rdb != nil)
	return llm.New(provider, llm.Config{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}, llm.WithObserver(llm.Observers{llm.MetricsObserver{}, stats}))
}

// resolveProvider falls back to the first registered provider when the
// desired one has no credentials.
func resolveProvider(registry *ai.ProviderRegistry, desired string) string {
	if _, err := registry.Get(desired); err == nil {
		return desired
	}
	names := registry.Names()
	if len(names) == 0 {
		return desired
	}
	return names[0]
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("Kafka brokers not configured, envelope audit trail disabled")
		return nil
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   true,
	})
	log.Infow("✓ Kafka producer ready", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.EnvelopeTopic)
	return producer
}
