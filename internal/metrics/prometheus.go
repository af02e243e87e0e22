package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Agent metrics
	AgentMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategist_agent_messages_total",
			Help: "Envelopes processed per agent",
		},
		[]string{"agent", "message_type", "status"}, // status: success|error
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strategist_agent_latency_seconds",
			Help:    "Time spent handling one envelope",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	// LLM metrics
	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategist_llm_calls_total",
			Help: "LLM capability calls",
		},
		[]string{"provider", "model", "op", "status"}, // op: generate|extract_json; status: success|error|parse_error|rate_limited
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strategist_llm_latency_seconds",
			Help:    "LLM call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model", "op"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategist_llm_tokens_total",
			Help: "Tokens consumed by LLM calls",
		},
		[]string{"provider", "model", "type"}, // type: input|output
	)

	// Validation metrics
	ValidationVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategist_validation_verdicts_total",
			Help: "Validation verdicts by strategy type",
		},
		[]string{"strategy_type", "result"}, // result: valid|invalid
	)

	// Knowledge metrics
	KnowledgeQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategist_knowledge_queries_total",
			Help: "Knowledge repository queries",
		},
		[]string{"backend", "op", "status"}, // status: success|error|cache_hit
	)

	KnowledgeQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strategist_knowledge_query_duration_seconds",
			Help:    "Knowledge repository query duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend", "op"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(AgentMessages)
		prometheus.MustRegister(AgentLatency)

		prometheus.MustRegister(LLMCalls)
		prometheus.MustRegister(LLMLatency)
		prometheus.MustRegister(LLMTokens)

		prometheus.MustRegister(ValidationVerdicts)

		prometheus.MustRegister(KnowledgeQueries)
		prometheus.MustRegister(KnowledgeQueryDuration)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAgentMessage records one handled envelope
func RecordAgentMessage(agent, messageType string, latency time.Duration, err error) {
	AgentMessages.WithLabelValues(agent, messageType, status(err)).Inc()
	AgentLatency.WithLabelValues(agent).Observe(latency.Seconds())
}

// RecordLLMCall records an LLM call. Status overrides the err-derived label when set.
func RecordLLMCall(provider, model, op, callStatus string, latency time.Duration, inputTokens, outputTokens int) {
	LLMCalls.WithLabelValues(provider, model, op, callStatus).Inc()
	LLMLatency.WithLabelValues(provider, model, op).Observe(latency.Seconds())

	if inputTokens > 0 {
		LLMTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		LLMTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordVerdict records a validation outcome
func RecordVerdict(strategyType string, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	if strategyType == "" {
		strategyType = "unknown"
	}
	ValidationVerdicts.WithLabelValues(strategyType, result).Inc()
}

// RecordKnowledgeQuery records a repository query
func RecordKnowledgeQuery(backend, op string, duration time.Duration, err error) {
	KnowledgeQueries.WithLabelValues(backend, op, status(err)).Inc()
	KnowledgeQueryDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordKnowledgeCacheHit records a query answered from cache
func RecordKnowledgeCacheHit(backend, op string) {
	KnowledgeQueries.WithLabelValues(backend, op, "cache_hit").Inc()
}
