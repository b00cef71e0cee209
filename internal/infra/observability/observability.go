// Package observability holds the protocol's Prometheus metrics and a
// lightweight span recorder for protocol operations.
//
// Every committed operation of the orchestrator ends a span and bumps the
// matching counter:
//
//	submit → verify → stream ─┐
//	claim accrued ─────────────┼─▶ spans + counters ─▶ /metrics
//	stake/endorse/vote ────────┤
//	survey/impeachment ────────┤
//	periodic issuance ─────────┘
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Operation Spans
// ═══════════════════════════════════════════════════════════════════════════

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

func (s SpanStatus) String() string {
	if s == SpanError {
		return "error"
	}
	return "ok"
}

// Span is one protocol operation. Spans sharing a TraceID belong to the
// same request, e.g. a vote and the contribution it auto-submits.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	Duration  time.Duration     `json:"duration"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`

	tracer *Tracer
}

// Set adds an attribute to the span.
func (s *Span) Set(key, value string) {
	if s.Attrs == nil {
		s.Attrs = make(map[string]string)
	}
	s.Attrs[key] = value
}

// Context returns ctx carrying this span as parent for child operations.
func (s *Span) Context(ctx context.Context) context.Context {
	return context.WithValue(context.WithValue(ctx, traceIDKey, s.TraceID), spanIDKey, s.SpanID)
}

// End completes the span, records its latency and stores it.
func (s *Span) End(err error) {
	if s == nil || s.tracer == nil {
		return
	}
	s.Duration = time.Since(s.StartTime)
	if err != nil {
		s.Status = SpanError
		s.Set("error", err.Error())
	}
	s.tracer.record(*s)
	s.tracer = nil
}

// ─── Tracer ─────────────────────────────────────────────────────────────────

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size
}

// DefaultTracerConfig keeps the last 1000 operations.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{Enabled: true, MaxSpans: 1000}
}

// Tracer keeps the most recent completed spans for the status endpoint.
type Tracer struct {
	mu      sync.Mutex
	ring    []Span
	next    int
	full    bool
	enabled bool
	errors  int
}

// NewTracer creates a tracer. A non-positive MaxSpans disables it.
func NewTracer(cfg TracerConfig) *Tracer {
	t := &Tracer{enabled: cfg.Enabled && cfg.MaxSpans > 0}
	if t.enabled {
		t.ring = make([]Span, cfg.MaxSpans)
	}
	return t
}

// Start begins a span for operation. The trace and parent come from ctx
// when it carries a span.
func (t *Tracer) Start(ctx context.Context, operation string, attrs map[string]string) *Span {
	s := &Span{
		SpanID:    uuid.NewString(),
		Operation: operation,
		StartTime: time.Now(),
		Attrs:     attrs,
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		s.TraceID = v
		s.ParentID, _ = ctx.Value(spanIDKey).(string)
	} else {
		s.TraceID = uuid.NewString()
	}
	if t != nil && t.enabled {
		s.tracer = t
	}
	return s
}

func (t *Tracer) record(s Span) {
	OperationDuration.WithLabelValues(s.Operation).Observe(s.Duration.Seconds())
	TracesRecorded.Inc()
	if s.Status == SpanError {
		TraceErrors.Inc()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ring[t.next] = s
	t.next = (t.next + 1) % len(t.ring)
	if t.next == 0 {
		t.full = true
	}
	if s.Status == SpanError {
		t.errors++
	}
}

// Recent returns up to limit spans, newest first. limit ≤ 0 returns all.
func (t *Tracer) Recent(limit int) []Span {
	if t == nil || !t.enabled {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.full {
		n = len(t.ring)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Span, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (t.next - i + len(t.ring)) % len(t.ring)
		out = append(out, t.ring[idx])
	}
	return out
}

// Stats returns the number of retained spans and the error spans seen.
func (t *Tracer) Stats() (retained, errors int) {
	if t == nil || !t.enabled {
		return 0, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		return len(t.ring), t.errors
	}
	return t.next, t.errors
}

// ─── Context Keys ───────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "baekya-trace-id"
	spanIDKey  contextKey = "baekya-span-id"
)

// ═══════════════════════════════════════════════════════════════════════════
// Protocol Metrics
// ═══════════════════════════════════════════════════════════════════════════

const namespace = "baekya"

// ─── Contribution Metrics ───────────────────────────────────────────────────

// ContributionsSubmitted counts submissions by DAO.
var ContributionsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "cvcm",
	Name:      "contributions_submitted_total",
	Help:      "Total contributions submitted, by DAO.",
}, []string{"dao"})

// ContributionsVerified counts verification decisions by outcome.
var ContributionsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "cvcm",
	Name:      "contributions_verified_total",
	Help:      "Total verification decisions, by outcome (approved, rejected).",
}, []string{"outcome"})

// EmissionStreams tracks the number of emission streams created.
var EmissionStreams = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "cvcm",
	Name:      "emission_streams_total",
	Help:      "Total emission streams created by approved contributions.",
})

// BTokensClaimed tracks B tokens credited through accrual claims.
var BTokensClaimed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "cvcm",
	Name:      "b_tokens_claimed_total",
	Help:      "Total B tokens credited by accrual claims.",
})

// ─── Governance Metrics ─────────────────────────────────────────────────────

// DAOs tracks the number of registered DAOs.
var DAOs = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "governance",
	Name:      "daos",
	Help:      "Number of registered DAOs.",
})

// ProposalTransitions counts proposal state changes by target status.
var ProposalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "governance",
	Name:      "proposal_transitions_total",
	Help:      "Total proposal state changes, by new status.",
}, []string{"status"})

// VotesCast counts ballots by choice.
var VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "governance",
	Name:      "votes_cast_total",
	Help:      "Total proposal ballots, by choice.",
}, []string{"choice"})

// SurveysConcluded counts operator surveys by whether they spawned an impeachment.
var SurveysConcluded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "governance",
	Name:      "surveys_concluded_total",
	Help:      "Total operator surveys concluded, by outcome (confidence, impeachment).",
}, []string{"outcome"})

// ImpeachmentsConcluded counts impeachments by outcome.
var ImpeachmentsConcluded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "governance",
	Name:      "impeachments_concluded_total",
	Help:      "Total impeachments concluded, by outcome (upheld, dismissed).",
}, []string{"outcome"})

// ─── P-Token Metrics ────────────────────────────────────────────────────────

// PTokensMinted tracks P tokens minted, by source.
var PTokensMinted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ptoken",
	Name:      "minted_total",
	Help:      "Total P tokens minted, by source (capm, grant).",
}, []string{"source"})

// PTokensBurned tracks P tokens burned.
var PTokensBurned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ptoken",
	Name:      "burned_total",
	Help:      "Total P tokens burned.",
})

// PTokenSupply tracks circulating P supply.
var PTokenSupply = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "ptoken",
	Name:      "circulating_supply",
	Help:      "Circulating P supply (total minus burned).",
})

// IssuanceRuns counts periodic issuance runs by result.
var IssuanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ptoken",
	Name:      "issuance_runs_total",
	Help:      "Total periodic issuance runs per DAO, by result (minted, empty, error).",
}, []string{"result"})

// ─── Plumbing Metrics ───────────────────────────────────────────────────────

// IntentsPublished counts intents handed to the sink, by kind and token.
var IntentsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "intents_published_total",
	Help:      "Total ledger intents published, by kind and token.",
}, []string{"kind", "token"})

// IntentPublishErrors counts intents the sink refused.
var IntentPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "intent_publish_errors_total",
	Help:      "Total ledger intents the sink failed to accept.",
})

// PersistErrors counts store writes that failed after a commit.
var PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "storage",
	Name:      "persist_errors_total",
	Help:      "Total failed store writes, by component.",
}, []string{"component"})

// OperationDuration tracks protocol operation latency.
var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "protocol",
	Name:      "operation_duration_seconds",
	Help:      "Protocol operation latency in seconds, by operation.",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
}, []string{"operation"})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// TracesRecorded tracks total spans recorded.
var TracesRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// TraceErrors tracks error spans.
var TraceErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})
