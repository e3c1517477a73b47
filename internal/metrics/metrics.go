// Package metrics exposes orchestration events as Prometheus metrics.
//
// A Metrics value subscribes to an event bus and turns agent, tool, plan,
// retry and debate events into counters, gauges and histograms. Serve
// exposes the registry over HTTP for scraping.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
)

// Namespace prefixes every metric name.
const Namespace = "quorum"

// Metrics holds the Prometheus collectors fed from the event bus.
type Metrics struct {
	// Agent processes
	AgentsStarted      *prometheus.CounterVec
	AgentsFinished     *prometheus.CounterVec
	AgentDuration      *prometheus.HistogramVec
	AgentsRunning      prometheus.Gauge
	AgentSpawnFailures *prometheus.CounterVec

	// Tool activity
	ToolsDetected  *prometheus.CounterVec
	ToolsCompleted *prometheus.CounterVec

	// Plan execution
	PlanSteps          *prometheus.CounterVec
	PlanStepsExhausted prometheus.Counter

	// Retries
	RetryAttempts  prometheus.Counter
	RetrySuccesses prometheus.Counter
	RetryExhausted prometheus.Counter
	RetryBackoff   prometheus.Histogram

	// Debates
	DebatesStarted  prometheus.Counter
	DebatesActive   prometheus.Gauge
	DebateRounds    *prometheus.CounterVec
	DebateCritiques *prometheus.CounterVec
	DebateVotes     prometheus.Counter
	DebateOutcomes  *prometheus.CounterVec
	ConsensusShare  prometheus.Histogram

	mu     sync.Mutex
	bus    *event.Bus
	subIDs []string
}

// New creates the collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		AgentsStarted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "agent",
				Name:      "started_total",
				Help:      "Total number of agent processes spawned",
			},
			[]string{"role"},
		),

		AgentsFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "agent",
				Name:      "finished_total",
				Help:      "Total number of agent invocations resolved",
			},
			[]string{"role", "result"}, // result: "success" or "failure"
		),

		AgentDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "agent",
				Name:      "duration_seconds",
				Help:      "Duration of agent invocations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
			},
			[]string{"role"},
		),

		AgentsRunning: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "agent",
				Name:      "running",
				Help:      "Number of agent processes currently running",
			},
		),

		AgentSpawnFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "agent",
				Name:      "spawn_failures_total",
				Help:      "Total number of agent processes that failed to start",
			},
			[]string{"role"},
		),

		ToolsDetected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "tool",
				Name:      "detected_total",
				Help:      "Total number of tool invocations announced by agents",
			},
			[]string{"tool"},
		),

		ToolsCompleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "tool",
				Name:      "completed_total",
				Help:      "Total number of tool invocations that produced a result",
			},
			[]string{"result"},
		),

		PlanSteps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "plan",
				Name:      "step_transitions_total",
				Help:      "Total number of plan step status changes",
			},
			[]string{"status"},
		),

		PlanStepsExhausted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "plan",
				Name:      "steps_exhausted_total",
				Help:      "Total number of plan steps that ran out of attempts",
			},
		),

		RetryAttempts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total number of failed attempts followed by a retry",
			},
		),

		RetrySuccesses: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "retry",
				Name:      "successes_total",
				Help:      "Total number of operations that succeeded after retrying",
			},
		),

		RetryExhausted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "retry",
				Name:      "exhausted_total",
				Help:      "Total number of operations that used every attempt",
			},
		),

		RetryBackoff: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "retry",
				Name:      "backoff_seconds",
				Help:      "Backoff delay before each retry in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			},
		),

		DebatesStarted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "debate",
				Name:      "started_total",
				Help:      "Total number of debates started",
			},
		),

		DebatesActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "debate",
				Name:      "active",
				Help:      "Number of debates that have not reached a terminal status",
			},
		),

		DebateRounds: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "debate",
				Name:      "rounds_completed_total",
				Help:      "Total number of debate rounds completed",
			},
			[]string{"round", "timed_out"},
		),

		DebateCritiques: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "debate",
				Name:      "critiques_total",
				Help:      "Total number of critiques submitted",
			},
			[]string{"severity"},
		),

		DebateVotes: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "debate",
				Name:      "votes_total",
				Help:      "Total number of votes cast",
			},
		),

		DebateOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "debate",
				Name:      "outcomes_total",
				Help:      "Total number of debates by terminal outcome",
			},
			[]string{"outcome"}, // "consensus", "escalated" or "cancelled"
		),

		ConsensusShare: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "debate",
				Name:      "consensus_share",
				Help:      "Weighted vote share of winning proposals",
				Buckets:   prometheus.LinearBuckets(0.5, 0.05, 11),
			},
		),
	}
}

// Attach subscribes the collectors to every event on bus. Attaching again
// replaces the previous subscription.
func (m *Metrics) Attach(bus *event.Bus) {
	if bus == nil {
		return
	}
	m.Detach()

	id := bus.SubscribeAll(m.Observe)

	m.mu.Lock()
	m.bus = bus
	m.subIDs = []string{id}
	m.mu.Unlock()
}

// Detach removes the bus subscription.
func (m *Metrics) Detach() {
	m.mu.Lock()
	bus, ids := m.bus, m.subIDs
	m.bus, m.subIDs = nil, nil
	m.mu.Unlock()

	for _, id := range ids {
		bus.Unsubscribe(id)
	}
}

// Observe records a single event. Unknown event types are ignored.
func (m *Metrics) Observe(e event.Event) {
	switch ev := e.(type) {
	case event.AgentStartedEvent:
		m.AgentsStarted.WithLabelValues(ev.Role).Inc()
		m.AgentsRunning.Inc()
	case event.AgentFinishedEvent:
		m.AgentsFinished.WithLabelValues(ev.Role, result(ev.Success)).Inc()
		if !ev.Started {
			m.AgentSpawnFailures.WithLabelValues(ev.Role).Inc()
			return
		}
		m.AgentDuration.WithLabelValues(ev.Role).Observe(ev.Duration.Seconds())
		m.AgentsRunning.Dec()

	case event.ToolDetectedEvent:
		m.ToolsDetected.WithLabelValues(ev.Name).Inc()
	case event.ToolCompletedEvent:
		m.ToolsCompleted.WithLabelValues(result(!ev.IsError)).Inc()

	case event.PlanStepEvent:
		m.PlanSteps.WithLabelValues(ev.Step.Status).Inc()
	case event.StepExhaustedEvent:
		m.PlanStepsExhausted.Inc()

	case event.RetryAttemptEvent:
		m.RetryAttempts.Inc()
		m.RetryBackoff.Observe(ev.Delay.Seconds())
	case event.RetrySuccessEvent:
		m.RetrySuccesses.Inc()
	case event.RetryExhaustedEvent:
		m.RetryExhausted.Inc()

	case event.DebateStartedEvent:
		m.DebatesStarted.Inc()
		m.DebatesActive.Inc()
	case event.RoundCompletedEvent:
		m.DebateRounds.WithLabelValues(ev.Round, strconv.FormatBool(ev.TimedOut)).Inc()
	case event.CritiqueSubmittedEvent:
		m.DebateCritiques.WithLabelValues(ev.Severity).Inc()
	case event.VoteCastEvent:
		m.DebateVotes.Inc()
	case event.ConsensusReachedEvent:
		m.DebateOutcomes.WithLabelValues("consensus").Inc()
		m.ConsensusShare.Observe(ev.Share)
		m.DebatesActive.Dec()
	case event.DebateEscalatedEvent:
		m.DebateOutcomes.WithLabelValues("escalated").Inc()
		m.DebatesActive.Dec()
	case event.DebateCancelledEvent:
		m.DebateOutcomes.WithLabelValues("cancelled").Inc()
		m.DebatesActive.Dec()
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
