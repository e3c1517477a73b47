// Package event provides a pub-sub event bus for decoupled communication
// between the orchestration components and whatever consumes their progress.
//
// Components never share a global bus. Each one is constructed with the
// [Bus] it publishes to, and consumers (the activity tracker, the metrics
// sink, a CLI printer, an external UI) subscribe to the same instance.
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Agent process:
//   - [ChunkEvent]: a streamed text delta from an agent
//   - [AgentStartedEvent], [AgentFinishedEvent]: invocation lifecycle
//
// Tool activity:
//   - [ToolDetectedEvent], [ToolStartedEvent], [ToolCompletedEvent]
//
// Plan execution:
//   - [PlanStepEvent]: a step changed status
//   - [StepExhaustedEvent]: a step failed every retry attempt
//
// Retry:
//   - [RetryAttemptEvent], [RetrySuccessEvent], [RetryExhaustedEvent]
//
// Debate:
//   - [DebateStartedEvent], [RoundStartedEvent], [RoundCompletedEvent]
//   - [ProposalSubmittedEvent], [CritiqueSubmittedEvent], [DefenseSubmittedEvent], [VoteCastEvent]
//   - [ConsensusReachedEvent], [DebateEscalatedEvent], [DebateCancelledEvent]
//
// # Thread Safety
//
// Handlers are called synchronously on the publisher's goroutine. Publishers
// release their own locks before publishing, so a handler may call back into
// the component that emitted the event. A panicking handler is recovered and
// does not prevent delivery to the remaining handlers.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeAgentChunk, func(e event.Event) {
//	    chunk := e.(event.ChunkEvent)
//	    fmt.Print(chunk.Content)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s", e.EventType())
//	})
package event
