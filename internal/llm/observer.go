package llm

import (
	"sync"
	"time"

	"strategist/internal/adapters/ai"
	"strategist/internal/metrics"
	"strategist/pkg/errors"
)

// Operation names reported to observers.
const (
	OpGenerate    = "generate"
	OpExtractJSON = "extract_json"
)

// Call statuses.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusParseError  = "parse_error"
	StatusRateLimited = "rate_limited"
)

// Call describes one completed capability call.
type Call struct {
	Provider string
	Model    string
	Op       string
	Status   string
	Latency  time.Duration
	Usage    ai.Usage
	Err      error
}

// Observer receives every call made through a Service.
type Observer interface {
	ObserveCall(call Call)
}

func callStatus(err error, parseFailed bool) string {
	switch {
	case err != nil && errors.Is(err, errors.ErrRateLimitExceeded):
		return StatusRateLimited
	case err != nil:
		return StatusError
	case parseFailed:
		return StatusParseError
	default:
		return StatusSuccess
	}
}

// Stats is a point-in-time copy of StatsRecorder counters.
type Stats struct {
	Calls       int
	Failures    int
	LastLatency time.Duration
	LastOp      string
}

// StatsRecorder keeps call counters in memory.
type StatsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{}
}

func (r *StatsRecorder) ObserveCall(call Call) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Calls++
	if call.Status != StatusSuccess {
		r.stats.Failures++
	}
	r.stats.LastLatency = call.Latency
	r.stats.LastOp = call.Op
}

// Snapshot returns the current counters.
func (r *StatsRecorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// MetricsObserver forwards calls to Prometheus.
type MetricsObserver struct{}

func (MetricsObserver) ObserveCall(call Call) {
	metrics.RecordLLMCall(call.Provider, call.Model, call.Op, call.Status, call.Latency,
		call.Usage.PromptTokens, call.Usage.CompletionTokens)
}

// Observers fans one call out to several observers.
type Observers []Observer

func (o Observers) ObserveCall(call Call) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveCall(call)
		}
	}
}

var (
	_ Observer = (*StatsRecorder)(nil)
	_ Observer = MetricsObserver{}
	_ Observer = Observers(nil)
)
