// Package errors provides centralized error definitions and error handling
// utilities for quorum. It defines the sentinel errors of the orchestration
// core, domain error types carrying task/step/debate context, semantic error
// types, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures inside one subsystem:
//   - AgentError: process spawn, timeout and exit failures of an agent run
//   - PlanError: step execution failures inside the plan executor
//   - DebateError: protocol violations raised by the debate coordinator
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewAgentError("agent exited without output", errors.ErrProcessExit).
//		WithTaskID("task-1").WithRole("coder")
//
//	if errors.Is(err, errors.ErrProcessExit) { ... }
//
//	var debateErr *errors.DebateError
//	if errors.As(err, &debateErr) { ... }
//
// # Propagation
//
// Process-level failures are converted into failed agent responses and
// never escape as raw errors. Debate protocol violations are returned
// synchronously and must not be retried: [IsProtocolViolation] reports them.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Agent process sentinel errors
var (
	// ErrProcessSpawn indicates the agent executable could not be started.
	ErrProcessSpawn = New("agent process failed to start")
	// ErrProcessTimeout indicates the agent did not finish within its timeout.
	ErrProcessTimeout = New("agent process timed out")
	// ErrProcessExit indicates a non-zero exit that produced no output.
	ErrProcessExit = New("agent process exited with error")
	// ErrProcessStopped indicates the process was terminated out of band.
	ErrProcessStopped = New("agent process stopped")
	// ErrTaskAlreadyRunning indicates a process is already active for the task.
	ErrTaskAlreadyRunning = New("task already has a running agent")
	// ErrTaskNotFound indicates no active process exists for the task.
	ErrTaskNotFound = New("task not found")
	// ErrInvalidRole indicates an agent role outside planner/coder/verifier.
	ErrInvalidRole = New("invalid agent role")
)

// Plan execution sentinel errors
var (
	// ErrPlanInvalid indicates a plan that cannot be executed.
	ErrPlanInvalid = New("plan is invalid")
	// ErrInvalidTransition indicates a step status change that is not monotone.
	ErrInvalidTransition = New("invalid step status transition")
	// ErrVerificationFailed indicates the verifier did not confirm the step.
	ErrVerificationFailed = New("verification failed")
	// ErrRetryExhausted indicates every retry attempt failed.
	ErrRetryExhausted = New("retry attempts exhausted")
)

// Debate protocol sentinel errors
var (
	// ErrDebateNotFound indicates an unknown debate id.
	ErrDebateNotFound = New("debate not found")
	// ErrDebateTerminal indicates the debate already reached a terminal status.
	ErrDebateTerminal = New("debate is no longer active")
	// ErrWrongRound indicates an operation submitted outside its round type.
	ErrWrongRound = New("operation not allowed in current round")
	// ErrRoundNotComplete indicates resolution was requested too early.
	ErrRoundNotComplete = New("vote round is not complete")
	// ErrNotParticipant indicates the agent is not part of the debate.
	ErrNotParticipant = New("agent is not a debate participant")
	// ErrProposalNotFound indicates an unknown proposal id.
	ErrProposalNotFound = New("proposal not found")
	// ErrCritiqueNotFound indicates an unknown critique id.
	ErrCritiqueNotFound = New("critique not found")
	// ErrSelfCritique indicates an author critiquing their own proposal.
	ErrSelfCritique = New("cannot critique own proposal")
	// ErrNotAuthor indicates an agent acting on a proposal it did not write.
	ErrNotAuthor = New("agent is not the proposal author")
	// ErrProposalIneligible indicates a vote on a proposal with unresolved blocking critiques.
	ErrProposalIneligible = New("proposal has unresolved blocking critiques")
	// ErrDuplicateVote indicates a second vote by the same agent in one round.
	ErrDuplicateVote = New("agent already voted in this round")
	// ErrDuplicateProposal indicates a second proposal by the same agent in one round.
	ErrDuplicateProposal = New("agent already proposed in this round")
	// ErrModificationNotAllowed indicates a defense that rewrites a proposal while disabled.
	ErrModificationNotAllowed = New("proposal modifications are not allowed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// QuorumError is the base interface for all errors defined in this package.
type QuorumError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// AgentError represents a failure of one agent process invocation.
//
// Example:
//
//	err := errors.NewAgentError("no output produced", errors.ErrProcessExit)
//	err = err.WithTaskID("task-1").WithRole("verifier").WithExitCode(2)
//	fmt.Println(err) // "agent error [task=task-1, role=verifier, exit=2]: no output produced: agent process exited with error"
type AgentError struct {
	baseError
	TaskID   string
	Role     string
	ExitCode int
}

// NewAgentError creates a new AgentError. Timeouts and exits are retryable
// by default since another attempt may behave differently.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: errors.Is(cause, ErrProcessTimeout) || errors.Is(cause, ErrProcessExit),
		},
		ExitCode: -1,
	}
}

// WithTaskID adds a task ID to the error context.
func (e *AgentError) WithTaskID(id string) *AgentError {
	e.TaskID = id
	return e
}

// WithRole adds the agent role to the error context.
func (e *AgentError) WithRole(role string) *AgentError {
	e.Role = role
	return e
}

// WithExitCode records the process exit code.
func (e *AgentError) WithExitCode(code int) *AgentError {
	e.ExitCode = code
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *AgentError) WithRetryable(r bool) *AgentError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Role != "" {
		parts = append(parts, fmt.Sprintf("role=%s", e.Role))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	return e.format("agent error", parts)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PlanError represents a failure while executing a plan step.
//
// Example:
//
//	err := errors.NewPlanError("step exhausted retries", errors.ErrRetryExhausted)
//	err = err.WithTaskID("task-1").WithStepID("step-2").WithAttempts(3)
type PlanError struct {
	baseError
	TaskID   string
	StepID   string
	Attempts int
}

// NewPlanError creates a new PlanError. Failed verifications and agent
// failures that are themselves retryable are retryable; invalid plans and
// transitions are not.
func NewPlanError(message string, cause error) *PlanError {
	return &PlanError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: Is(cause, ErrVerificationFailed) || IsRetryable(cause),
		},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *PlanError) WithTaskID(id string) *PlanError {
	e.TaskID = id
	return e
}

// WithStepID adds a step ID to the error context.
func (e *PlanError) WithStepID(id string) *PlanError {
	e.StepID = id
	return e
}

// WithAttempts records how many attempts were made.
func (e *PlanError) WithAttempts(n int) *PlanError {
	e.Attempts = n
	return e
}

// Error returns the formatted error message.
func (e *PlanError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.StepID != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.StepID))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	return e.format("plan error", parts)
}

// Is checks if this error matches the target.
func (e *PlanError) Is(target error) bool {
	if _, ok := target.(*PlanError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DebateError represents a debate protocol violation. These are caller
// misuse, never transient, and are never retryable.
//
// Example:
//
//	err := errors.NewDebateError("vote rejected", errors.ErrProposalIneligible)
//	err = err.WithDebateID("debate-1").WithRound("vote").WithAgentID("agent-b")
type DebateError struct {
	baseError
	DebateID string
	Round    string
	AgentID  string
}

// NewDebateError creates a new DebateError.
func NewDebateError(message string, cause error) *DebateError {
	return &DebateError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityWarning,
		},
	}
}

// WithDebateID adds a debate ID to the error context.
func (e *DebateError) WithDebateID(id string) *DebateError {
	e.DebateID = id
	return e
}

// WithRound adds the current round type to the error context.
func (e *DebateError) WithRound(round string) *DebateError {
	e.Round = round
	return e
}

// WithAgentID adds the offending agent to the error context.
func (e *DebateError) WithAgentID(id string) *DebateError {
	e.AgentID = id
	return e
}

// Error returns the formatted error message.
func (e *DebateError) Error() string {
	var parts []string
	if e.DebateID != "" {
		parts = append(parts, fmt.Sprintf("debate=%s", e.DebateID))
	}
	if e.Round != "" {
		parts = append(parts, fmt.Sprintf("round=%s", e.Round))
	}
	if e.AgentID != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.AgentID))
	}
	return e.format("debate error", parts)
}

// Is checks if this error matches the target.
func (e *DebateError) Is(target error) bool {
	if _, ok := target.(*DebateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("debate", "abc123")
//	fmt.Println(err) // "debate 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("confidence must be within [0,1]")
//	err = err.WithField("confidence").WithValue(1.4)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for coder", 300*time.Second)
//	fmt.Println(err) // "timeout error: waiting for coder (timeout: 5m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Debate protocol violations are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsProtocolViolation(err) {
		return false
	}

	var qErr QuorumError
	if As(err, &qErr) {
		return qErr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrProcessTimeout) || Is(err, ErrProcessExit)
}

// IsProtocolViolation reports whether err is a debate contract violation
// raised synchronously to the caller.
func IsProtocolViolation(err error) bool {
	if err == nil {
		return false
	}
	var debateErr *DebateError
	return As(err, &debateErr)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement QuorumError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var qErr QuorumError
	if As(err, &qErr) {
		return qErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
