package event

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	called := false
	id := bus.Subscribe("test.event", func(e Event) {
		called = true
	})

	assert.NotEmpty(t, id)
	assert.Equal(t, 1, bus.SubscriptionCount())
	assert.False(t, called, "handler should not run before publish")
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(TypeAgentChunk, func(e Event) {
		received = e
	})

	bus.Publish(NewChunkEvent("task-1", "coder", "hello"))

	require.NotNil(t, received)
	chunk, ok := received.(ChunkEvent)
	require.True(t, ok)
	assert.Equal(t, "task-1", chunk.TaskID)
	assert.Equal(t, "coder", chunk.Role)
	assert.Equal(t, "hello", chunk.Content)
	assert.WithinDuration(t, time.Now(), chunk.Timestamp(), time.Second)
}

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "wildcard") })
	bus.Subscribe("x.y", func(e Event) { order = append(order, "first") })
	bus.Subscribe("x.y", func(e Event) { order = append(order, "second") })

	bus.Publish(newBaseEvent("x.y"))

	assert.Equal(t, []string{"first", "second", "wildcard"}, order)
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("other.event", func(e Event) {
		t.Error("handler should not be called for non-matching event type")
	})
	bus.Publish(newBaseEvent("test.event"))
}

func TestBus_SubscribeMany(t *testing.T) {
	bus := NewBus()

	var got []string
	ids := bus.SubscribeMany(func(e Event) {
		got = append(got, e.EventType())
	}, TypeToolDetected, TypeToolCompleted)

	require.Len(t, ids, 2)
	bus.Publish(NewToolDetectedEvent("t", "tool-1", "Bash", "{}"))
	bus.Publish(NewToolStartedEvent("t", "tool-1"))
	bus.Publish(NewToolCompletedEvent("t", "tool-1", "ok", false))

	assert.Equal(t, []string{TypeToolDetected, TypeToolCompleted}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	keep := bus.Subscribe("e", func(Event) { calls++ })
	drop := bus.Subscribe("e", func(Event) { calls += 100 })

	assert.True(t, bus.Unsubscribe(drop))
	assert.False(t, bus.Unsubscribe(drop))
	assert.Equal(t, 1, bus.SubscriptionCount())

	bus.Publish(newBaseEvent("e"))
	assert.Equal(t, 1, calls)

	assert.True(t, bus.Unsubscribe(keep))
	assert.Equal(t, 0, bus.SubscriptionCount())
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var id string
	calls := 0
	id = bus.Subscribe("e", func(Event) {
		calls++
		bus.Unsubscribe(id)
	})

	bus.Publish(newBaseEvent("e"))
	bus.Publish(newBaseEvent("e"))
	assert.Equal(t, 1, calls)
}

func TestBus_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(WithLogger(logging.NewWriterLogger(&buf, logging.LevelDebug)))

	reached := false
	bus.Subscribe("e", func(Event) { panic("boom") })
	bus.Subscribe("e", func(Event) { reached = true })

	assert.NotPanics(t, func() { bus.Publish(newBaseEvent("e")) })
	assert.True(t, reached, "handlers after a panicking one must still run")
	assert.True(t, strings.Contains(buf.String(), "event handler panicked"))
}

func TestBus_NilSafe(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(newBaseEvent("e")) })
	assert.NotPanics(t, func() { NewBus().Publish(nil) })
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("a", func(Event) {})
	bus.SubscribeAll(func(Event) {})
	bus.Clear()
	assert.Equal(t, 0, bus.SubscriptionCount())
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var count atomic.Int64
	bus.Subscribe(TypeVoteCast, func(Event) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(NewVoteCastEvent("d", "v", "p", "a", 1))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), count.Load())
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{NewChunkEvent("t", "r", "c"), TypeAgentChunk},
		{NewAgentStartedEvent("t", "r", 1), TypeAgentStarted},
		{NewAgentFinishedEvent("t", "r", true, time.Second, ""), TypeAgentFinished},
		{NewAgentSpawnFailedEvent("t", "r", "no such file"), TypeAgentFinished},
		{NewToolDetectedEvent("t", "i", "n", ""), TypeToolDetected},
		{NewToolStartedEvent("t", "i"), TypeToolStarted},
		{NewToolCompletedEvent("t", "i", "", false), TypeToolCompleted},
		{NewPlanStepEvent("t", StepSnapshot{ID: "s"}), TypePlanStep},
		{NewStepExhaustedEvent("t", "s", 3, "e"), TypePlanStepExhausted},
		{NewRetryAttemptEvent("o", 1, 3, time.Second, time.Now(), "e"), TypeRetryAttempt},
		{NewRetrySuccessEvent("o", 2, time.Second), TypeRetrySuccess},
		{NewRetryExhaustedEvent("o", 3, "e"), TypeRetryExhausted},
		{NewDebateStartedEvent("d", "topic", []string{"a"}), TypeDebateStarted},
		{NewRoundStartedEvent("d", "propose", 0, 0), TypeRoundStarted},
		{NewRoundCompletedEvent("d", "propose", 0, false), TypeRoundCompleted},
		{NewProposalSubmittedEvent("d", "p", "a", 0.5), TypeProposalSubmitted},
		{NewCritiqueSubmittedEvent("d", "c", "p", "a", "b", "minor"), TypeCritiqueSubmitted},
		{NewDefenseSubmittedEvent("d", "p", "a", nil, false, true), TypeDefenseSubmitted},
		{NewVoteCastEvent("d", "v", "p", "a", 1), TypeVoteCast},
		{NewConsensusReachedEvent("d", "p", "a", 0.7), TypeConsensusReached},
		{NewDebateEscalatedEvent("d", "r", 3), TypeDebateEscalated},
		{NewDebateCancelledEvent("d", "r"), TypeDebateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.EventType())
			assert.False(t, tt.event.Timestamp().IsZero())
		})
	}
}
