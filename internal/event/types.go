package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "agent.chunk", "debate.vote_cast")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeAgentChunk    = "agent.chunk"
	TypeAgentStarted  = "agent.started"
	TypeAgentFinished = "agent.finished"

	TypeToolDetected  = "tool.detected"
	TypeToolStarted   = "tool.started"
	TypeToolCompleted = "tool.completed"

	TypePlanStep          = "plan.step"
	TypePlanStepExhausted = "plan.step_exhausted"

	TypeRetryAttempt   = "retry.attempt"
	TypeRetrySuccess   = "retry.success"
	TypeRetryExhausted = "retry.exhausted"

	TypeDebateStarted     = "debate.started"
	TypeRoundStarted      = "debate.round_started"
	TypeRoundCompleted    = "debate.round_completed"
	TypeProposalSubmitted = "debate.proposal_submitted"
	TypeCritiqueSubmitted = "debate.critique_submitted"
	TypeDefenseSubmitted  = "debate.defense_submitted"
	TypeVoteCast          = "debate.vote_cast"
	TypeConsensusReached  = "debate.consensus_reached"
	TypeDebateEscalated   = "debate.escalated"
	TypeDebateCancelled   = "debate.cancelled"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Agent Events
// -----------------------------------------------------------------------------

// ChunkEvent carries one text delta streamed by an agent process.
type ChunkEvent struct {
	baseEvent
	TaskID  string
	Role    string
	Content string
}

// NewChunkEvent creates a ChunkEvent.
func NewChunkEvent(taskID, role, content string) ChunkEvent {
	return ChunkEvent{
		baseEvent: newBaseEvent(TypeAgentChunk),
		TaskID:    taskID,
		Role:      role,
		Content:   content,
	}
}

// AgentStartedEvent is emitted once an agent process has been spawned.
type AgentStartedEvent struct {
	baseEvent
	TaskID string
	Role   string
	PID    int
}

// NewAgentStartedEvent creates an AgentStartedEvent.
func NewAgentStartedEvent(taskID, role string, pid int) AgentStartedEvent {
	return AgentStartedEvent{
		baseEvent: newBaseEvent(TypeAgentStarted),
		TaskID:    taskID,
		Role:      role,
		PID:       pid,
	}
}

// AgentFinishedEvent is emitted when an agent invocation resolves.
type AgentFinishedEvent struct {
	baseEvent
	TaskID   string
	Role     string
	Success  bool
	Duration time.Duration
	Error    string
	// Started is false when the process never launched, so no
	// AgentStartedEvent preceded this one.
	Started bool
}

// NewAgentFinishedEvent creates an AgentFinishedEvent for a process that ran.
func NewAgentFinishedEvent(taskID, role string, success bool, duration time.Duration, errMsg string) AgentFinishedEvent {
	return AgentFinishedEvent{
		baseEvent: newBaseEvent(TypeAgentFinished),
		TaskID:    taskID,
		Role:      role,
		Success:   success,
		Duration:  duration,
		Error:     errMsg,
		Started:   true,
	}
}

// NewAgentSpawnFailedEvent creates the AgentFinishedEvent for a process that
// could not be started.
func NewAgentSpawnFailedEvent(taskID, role, errMsg string) AgentFinishedEvent {
	return AgentFinishedEvent{
		baseEvent: newBaseEvent(TypeAgentFinished),
		TaskID:    taskID,
		Role:      role,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Tool Events
// -----------------------------------------------------------------------------

// ToolDetectedEvent is emitted when an agent announces a tool invocation.
type ToolDetectedEvent struct {
	baseEvent
	TaskID string
	ToolID string
	Name   string
	Input  string
}

// NewToolDetectedEvent creates a ToolDetectedEvent.
func NewToolDetectedEvent(taskID, toolID, name, input string) ToolDetectedEvent {
	return ToolDetectedEvent{
		baseEvent: newBaseEvent(TypeToolDetected),
		TaskID:    taskID,
		ToolID:    toolID,
		Name:      name,
		Input:     input,
	}
}

// ToolStartedEvent is emitted when a detected tool invocation begins running.
type ToolStartedEvent struct {
	baseEvent
	TaskID string
	ToolID string
}

// NewToolStartedEvent creates a ToolStartedEvent.
func NewToolStartedEvent(taskID, toolID string) ToolStartedEvent {
	return ToolStartedEvent{
		baseEvent: newBaseEvent(TypeToolStarted),
		TaskID:    taskID,
		ToolID:    toolID,
	}
}

// ToolCompletedEvent is emitted when a tool invocation produces its result.
type ToolCompletedEvent struct {
	baseEvent
	TaskID  string
	ToolID  string
	Output  string
	IsError bool
}

// NewToolCompletedEvent creates a ToolCompletedEvent.
func NewToolCompletedEvent(taskID, toolID, output string, isError bool) ToolCompletedEvent {
	return ToolCompletedEvent{
		baseEvent: newBaseEvent(TypeToolCompleted),
		TaskID:    taskID,
		ToolID:    toolID,
		Output:    output,
		IsError:   isError,
	}
}

// -----------------------------------------------------------------------------
// Plan Events
// -----------------------------------------------------------------------------

// StepSnapshot is a copy of a plan step at the moment an event was emitted.
type StepSnapshot struct {
	ID          string
	Action      string
	Description string
	Files       []string
	Status      string
}

// PlanStepEvent is emitted when a plan step changes status.
type PlanStepEvent struct {
	baseEvent
	TaskID string
	Step   StepSnapshot
}

// NewPlanStepEvent creates a PlanStepEvent.
func NewPlanStepEvent(taskID string, step StepSnapshot) PlanStepEvent {
	return PlanStepEvent{
		baseEvent: newBaseEvent(TypePlanStep),
		TaskID:    taskID,
		Step:      step,
	}
}

// StepExhaustedEvent is emitted when a plan step runs out of retry attempts.
type StepExhaustedEvent struct {
	baseEvent
	TaskID    string
	StepID    string
	Attempts  int
	LastError string
}

// NewStepExhaustedEvent creates a StepExhaustedEvent.
func NewStepExhaustedEvent(taskID, stepID string, attempts int, lastError string) StepExhaustedEvent {
	return StepExhaustedEvent{
		baseEvent: newBaseEvent(TypePlanStepExhausted),
		TaskID:    taskID,
		StepID:    stepID,
		Attempts:  attempts,
		LastError: lastError,
	}
}

// -----------------------------------------------------------------------------
// Retry Events
// -----------------------------------------------------------------------------

// RetryAttemptEvent is emitted after a failed attempt, before the backoff wait.
type RetryAttemptEvent struct {
	baseEvent
	OperationID string
	Attempt     int // the attempt that just failed, 1-indexed
	MaxAttempts int
	Delay       time.Duration
	NextRetryAt time.Time
	Error       string
}

// NewRetryAttemptEvent creates a RetryAttemptEvent.
func NewRetryAttemptEvent(operationID string, attempt, maxAttempts int, delay time.Duration, nextRetryAt time.Time, errMsg string) RetryAttemptEvent {
	return RetryAttemptEvent{
		baseEvent:   newBaseEvent(TypeRetryAttempt),
		OperationID: operationID,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Delay:       delay,
		NextRetryAt: nextRetryAt,
		Error:       errMsg,
	}
}

// RetrySuccessEvent is emitted when an operation succeeds after at least one retry.
type RetrySuccessEvent struct {
	baseEvent
	OperationID  string
	Attempts     int
	TotalBackoff time.Duration
}

// NewRetrySuccessEvent creates a RetrySuccessEvent.
func NewRetrySuccessEvent(operationID string, attempts int, totalBackoff time.Duration) RetrySuccessEvent {
	return RetrySuccessEvent{
		baseEvent:    newBaseEvent(TypeRetrySuccess),
		OperationID:  operationID,
		Attempts:     attempts,
		TotalBackoff: totalBackoff,
	}
}

// RetryExhaustedEvent is emitted when the final attempt fails.
type RetryExhaustedEvent struct {
	baseEvent
	OperationID string
	Attempts    int
	Error       string
}

// NewRetryExhaustedEvent creates a RetryExhaustedEvent.
func NewRetryExhaustedEvent(operationID string, attempts int, errMsg string) RetryExhaustedEvent {
	return RetryExhaustedEvent{
		baseEvent:   newBaseEvent(TypeRetryExhausted),
		OperationID: operationID,
		Attempts:    attempts,
		Error:       errMsg,
	}
}

// -----------------------------------------------------------------------------
// Debate Events
// -----------------------------------------------------------------------------

// DebateStartedEvent is emitted when a debate is created.
type DebateStartedEvent struct {
	baseEvent
	DebateID     string
	Topic        string
	Participants []string
}

// NewDebateStartedEvent creates a DebateStartedEvent.
func NewDebateStartedEvent(debateID, topic string, participants []string) DebateStartedEvent {
	return DebateStartedEvent{
		baseEvent:    newBaseEvent(TypeDebateStarted),
		DebateID:     debateID,
		Topic:        topic,
		Participants: participants,
	}
}

// RoundStartedEvent is emitted when a new round opens.
type RoundStartedEvent struct {
	baseEvent
	DebateID string
	Round    string
	Index    int
	Cycle    int
}

// NewRoundStartedEvent creates a RoundStartedEvent.
func NewRoundStartedEvent(debateID, round string, index, cycle int) RoundStartedEvent {
	return RoundStartedEvent{
		baseEvent: newBaseEvent(TypeRoundStarted),
		DebateID:  debateID,
		Round:     round,
		Index:     index,
		Cycle:     cycle,
	}
}

// RoundCompletedEvent is emitted when a round closes.
type RoundCompletedEvent struct {
	baseEvent
	DebateID string
	Round    string
	Index    int
	TimedOut bool
}

// NewRoundCompletedEvent creates a RoundCompletedEvent.
func NewRoundCompletedEvent(debateID, round string, index int, timedOut bool) RoundCompletedEvent {
	return RoundCompletedEvent{
		baseEvent: newBaseEvent(TypeRoundCompleted),
		DebateID:  debateID,
		Round:     round,
		Index:     index,
		TimedOut:  timedOut,
	}
}

// ProposalSubmittedEvent is emitted when a participant submits a proposal.
type ProposalSubmittedEvent struct {
	baseEvent
	DebateID   string
	ProposalID string
	AuthorID   string
	Confidence float64
}

// NewProposalSubmittedEvent creates a ProposalSubmittedEvent.
func NewProposalSubmittedEvent(debateID, proposalID, authorID string, confidence float64) ProposalSubmittedEvent {
	return ProposalSubmittedEvent{
		baseEvent:  newBaseEvent(TypeProposalSubmitted),
		DebateID:   debateID,
		ProposalID: proposalID,
		AuthorID:   authorID,
		Confidence: confidence,
	}
}

// CritiqueSubmittedEvent is emitted when a participant critiques a proposal.
type CritiqueSubmittedEvent struct {
	baseEvent
	DebateID   string
	CritiqueID string
	ProposalID string
	FromAgent  string
	ToAgent    string
	Severity   string
}

// NewCritiqueSubmittedEvent creates a CritiqueSubmittedEvent.
func NewCritiqueSubmittedEvent(debateID, critiqueID, proposalID, from, to, severity string) CritiqueSubmittedEvent {
	return CritiqueSubmittedEvent{
		baseEvent:  newBaseEvent(TypeCritiqueSubmitted),
		DebateID:   debateID,
		CritiqueID: critiqueID,
		ProposalID: proposalID,
		FromAgent:  from,
		ToAgent:    to,
		Severity:   severity,
	}
}

// DefenseSubmittedEvent is emitted when an author answers critiques.
type DefenseSubmittedEvent struct {
	baseEvent
	DebateID         string
	ProposalID       string
	AgentID          string
	CritiqueIDs      []string
	ProposalModified bool
	Eligible         bool // proposal eligibility after the defense
}

// NewDefenseSubmittedEvent creates a DefenseSubmittedEvent.
func NewDefenseSubmittedEvent(debateID, proposalID, agentID string, critiqueIDs []string, modified, eligible bool) DefenseSubmittedEvent {
	return DefenseSubmittedEvent{
		baseEvent:        newBaseEvent(TypeDefenseSubmitted),
		DebateID:         debateID,
		ProposalID:       proposalID,
		AgentID:          agentID,
		CritiqueIDs:      critiqueIDs,
		ProposalModified: modified,
		Eligible:         eligible,
	}
}

// VoteCastEvent is emitted when a participant votes.
type VoteCastEvent struct {
	baseEvent
	DebateID   string
	VoteID     string
	ProposalID string
	AgentID    string
	Weight     float64
}

// NewVoteCastEvent creates a VoteCastEvent.
func NewVoteCastEvent(debateID, voteID, proposalID, agentID string, weight float64) VoteCastEvent {
	return VoteCastEvent{
		baseEvent:  newBaseEvent(TypeVoteCast),
		DebateID:   debateID,
		VoteID:     voteID,
		ProposalID: proposalID,
		AgentID:    agentID,
		Weight:     weight,
	}
}

// ConsensusReachedEvent is emitted when exactly one proposal clears the threshold.
type ConsensusReachedEvent struct {
	baseEvent
	DebateID   string
	ProposalID string
	AuthorID   string
	Share      float64
}

// NewConsensusReachedEvent creates a ConsensusReachedEvent.
func NewConsensusReachedEvent(debateID, proposalID, authorID string, share float64) ConsensusReachedEvent {
	return ConsensusReachedEvent{
		baseEvent:  newBaseEvent(TypeConsensusReached),
		DebateID:   debateID,
		ProposalID: proposalID,
		AuthorID:   authorID,
		Share:      share,
	}
}

// DebateEscalatedEvent is emitted once when a debate is handed to an
// external decision maker.
type DebateEscalatedEvent struct {
	baseEvent
	DebateID string
	Reason   string
	Cycles   int
}

// NewDebateEscalatedEvent creates a DebateEscalatedEvent.
func NewDebateEscalatedEvent(debateID, reason string, cycles int) DebateEscalatedEvent {
	return DebateEscalatedEvent{
		baseEvent: newBaseEvent(TypeDebateEscalated),
		DebateID:  debateID,
		Reason:    reason,
		Cycles:    cycles,
	}
}

// DebateCancelledEvent is emitted when a debate is cancelled before resolution.
type DebateCancelledEvent struct {
	baseEvent
	DebateID string
	Reason   string
}

// NewDebateCancelledEvent creates a DebateCancelledEvent.
func NewDebateCancelledEvent(debateID, reason string) DebateCancelledEvent {
	return DebateCancelledEvent{
		baseEvent: newBaseEvent(TypeDebateCancelled),
		DebateID:  debateID,
		Reason:    reason,
	}
}
