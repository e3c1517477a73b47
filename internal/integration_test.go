// Package internal contains integration tests that verify the packages work
// together over a shared event bus: the activity tracker and the metrics
// collectors observing what the debate coordinator and agent runs publish.
package internal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/activity"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/debate"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/metrics"
)

// observers wires a tracker and a metrics collector to a fresh bus.
func observers(t *testing.T, ignore ...string) (*event.Bus, *activity.Tracker, *metrics.Metrics) {
	t.Helper()

	bus := event.NewBus()
	tracker, err := activity.NewTracker(activity.Config{Capacity: 10, IgnoreTools: ignore})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.Attach(bus)

	m := metrics.New(prometheus.NewRegistry())
	m.Attach(bus)

	t.Cleanup(func() {
		tracker.Detach()
		m.Detach()
	})
	return bus, tracker, m
}

// TestToolEventsReachTrackerAndMetrics publishes the tool events an agent run
// produces and checks both observers saw them.
func TestToolEventsReachTrackerAndMetrics(t *testing.T) {
	bus, tracker, m := observers(t, "TodoWrite")

	var received []string
	var mu sync.Mutex
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		received = append(received, e.EventType())
		mu.Unlock()
	})

	bus.Publish(event.NewAgentStartedEvent("task-1", "coder", 4242))
	bus.Publish(event.NewToolDetectedEvent("task-1", "toolu_1", "Read", `{"path":"main.go"}`))
	bus.Publish(event.NewToolStartedEvent("task-1", "toolu_1"))
	bus.Publish(event.NewToolDetectedEvent("task-1", "toolu_2", "TodoWrite", `{}`))
	bus.Publish(event.NewToolCompletedEvent("task-1", "toolu_1", "package main", false))
	bus.Publish(event.NewToolCompletedEvent("task-1", "toolu_2", "", false))
	bus.Publish(event.NewAgentFinishedEvent("task-1", "coder", true, 2*time.Second, ""))

	mu.Lock()
	count := len(received)
	mu.Unlock()
	if count != 7 {
		t.Errorf("Expected wildcard subscriber to receive 7 events, got %d", count)
	}

	stats := tracker.Stats()
	if stats.Succeeded != 1 {
		t.Errorf("Expected 1 tracked success, got %d", stats.Succeeded)
	}
	if stats.ByTool["TodoWrite"] != 0 {
		t.Errorf("Ignored tool was tracked: %v", stats.ByTool)
	}
	if len(tracker.Active()) != 0 {
		t.Errorf("Expected no active invocations, got %d", len(tracker.Active()))
	}

	// Metrics count every detection; ignoring is a display concern.
	if got := testutil.ToFloat64(m.ToolsDetected.WithLabelValues("Read")); got != 1 {
		t.Errorf("Read detections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToolsDetected.WithLabelValues("TodoWrite")); got != 1 {
		t.Errorf("TodoWrite detections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToolsCompleted.WithLabelValues("success")); got != 2 {
		t.Errorf("completed tools = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AgentsRunning); got != 0 {
		t.Errorf("running agents = %v, want 0", got)
	}
}

// TestAgentSpawnFailureKeepsRunningGauge runs an agent whose binary does not
// exist and checks the running gauge never goes negative.
func TestAgentSpawnFailureKeepsRunningGauge(t *testing.T) {
	bus, _, m := observers(t)

	mgr := agent.NewManager(agent.Config{Command: "/nonexistent/agent-binary"}, agent.WithBus(bus))
	for i := range 3 {
		resp := mgr.RunAgent(context.Background(), agent.Request{
			TaskID: fmt.Sprintf("task-%d", i),
			Role:   agent.RoleCoder,
			Prompt: "implement the cache",
		})
		if resp.Success {
			t.Fatalf("run %d succeeded with a missing binary", i)
		}
	}

	if got := testutil.ToFloat64(m.AgentsRunning); got != 0 {
		t.Errorf("running agents = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.AgentSpawnFailures.WithLabelValues("coder")); got != 3 {
		t.Errorf("spawn failures = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.AgentsFinished.WithLabelValues("coder", "failure")); got != 3 {
		t.Errorf("failed runs = %v, want 3", got)
	}
}

// TestDebateEventsReachMetrics runs a short debate on the shared bus.
func TestDebateEventsReachMetrics(t *testing.T) {
	bus, _, m := observers(t)

	var received []string
	var mu sync.Mutex
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		received = append(received, e.EventType())
		mu.Unlock()
	})

	cfg := debate.DefaultConfig()
	cfg.RoundTimeout = 0
	c := debate.NewCoordinator(cfg, debate.WithBus(bus))
	defer c.Close()

	d, err := c.StartDebate("retry policy", []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("StartDebate: %v", err)
	}
	p, err := c.SubmitProposal(d.ID, "alice", "exponential backoff", "bounded", 0.9)
	if err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}
	if err := c.AdvanceToNextRound(d.ID); err != nil {
		t.Fatalf("advance to critique: %v", err)
	}
	if _, err := c.SubmitCritique(d.ID, debate.CritiqueInput{
		FromAgent:  "bob",
		ToAgent:    "alice",
		ProposalID: p.ID,
		Text:       "add jitter",
		Severity:   debate.SeverityMinor,
	}); err != nil {
		t.Fatalf("SubmitCritique: %v", err)
	}
	for _, round := range []string{"defend", "vote"} {
		if err := c.AdvanceToNextRound(d.ID); err != nil {
			t.Fatalf("advance to %s: %v", round, err)
		}
	}
	for _, voter := range []string{"alice", "bob"} {
		if _, err := c.CastVote(d.ID, voter, p.ID, 1, ""); err != nil {
			t.Fatalf("CastVote(%s): %v", voter, err)
		}
	}
	res, err := c.ResolveDebate(d.ID)
	if err != nil {
		t.Fatalf("ResolveDebate: %v", err)
	}
	if res.Outcome != debate.OutcomeConsensus {
		t.Fatalf("Outcome = %v, want consensus", res.Outcome)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 {
		t.Fatal("no events received")
	}
	if received[0] != event.TypeDebateStarted {
		t.Errorf("first event = %q, want %q", received[0], event.TypeDebateStarted)
	}
	if last := received[len(received)-1]; last != event.TypeConsensusReached {
		t.Errorf("last event = %q, want %q", last, event.TypeConsensusReached)
	}

	if got := testutil.ToFloat64(m.DebatesStarted); got != 1 {
		t.Errorf("debates started = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DebatesActive); got != 0 {
		t.Errorf("active debates = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.DebateVotes); got != 2 {
		t.Errorf("votes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DebateCritiques.WithLabelValues("minor")); got != 1 {
		t.Errorf("minor critiques = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DebateRounds.WithLabelValues("vote", "false")); got != 1 {
		t.Errorf("completed vote rounds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DebateOutcomes.WithLabelValues("consensus")); got != 1 {
		t.Errorf("consensus outcomes = %v, want 1", got)
	}
}

// TestEventBusConcurrentPublish checks the observers under concurrent
// publishers, one goroutine per simulated agent.
func TestEventBusConcurrentPublish(t *testing.T) {
	bus, tracker, m := observers(t)

	const agents = 10
	const toolsPerAgent = 20

	var wg sync.WaitGroup
	for a := range agents {
		wg.Add(1)
		go func(a int) {
			defer wg.Done()
			for i := range toolsPerAgent {
				id := fmt.Sprintf("%d-%d", a, i)
				bus.Publish(event.NewToolDetectedEvent("task", id, "Bash", "ls"))
				bus.Publish(event.NewToolStartedEvent("task", id))
				bus.Publish(event.NewToolCompletedEvent("task", id, "ok", i%2 == 0))
			}
		}(a)
	}
	wg.Wait()

	stats := tracker.Stats()
	if got := stats.Completed(); got != agents*toolsPerAgent {
		t.Errorf("completed = %d, want %d", got, agents*toolsPerAgent)
	}
	if stats.Failed != agents*toolsPerAgent/2 {
		t.Errorf("failed = %d, want %d", stats.Failed, agents*toolsPerAgent/2)
	}
	if len(tracker.History()) != 10 {
		t.Errorf("history length = %d, want capacity 10", len(tracker.History()))
	}
	if got := testutil.ToFloat64(m.ToolsDetected.WithLabelValues("Bash")); got != agents*toolsPerAgent {
		t.Errorf("detections = %v, want %d", got, agents*toolsPerAgent)
	}
}

// TestDetachStopsObservation checks that detached observers see nothing and
// leave no subscriptions behind.
func TestDetachStopsObservation(t *testing.T) {
	bus, tracker, m := observers(t)

	if bus.SubscriptionCount() == 0 {
		t.Fatal("expected subscriptions after Attach")
	}
	tracker.Detach()
	m.Detach()
	if n := bus.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount after Detach = %d, want 0", n)
	}

	bus.Publish(event.NewToolDetectedEvent("task", "t1", "Read", ""))
	if got := tracker.Active(); len(got) != 0 {
		t.Errorf("detached tracker recorded %d invocations", len(got))
	}
	if got := testutil.ToFloat64(m.ToolsDetected.WithLabelValues("Read")); got != 0 {
		t.Errorf("detached metrics counted %v detections", got)
	}
}
