// Package plan executes planner-produced plans step by step.
//
// Every step runs a coder agent followed by a verifier agent. The pair is
// retried as a unit under a retry policy, feeding the previous failure back to
// the coder. A step that exhausts its attempts is marked failed and execution
// moves on to the next step, so one bad step does not abort the whole plan.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/retry"
)

// DefaultSuccessMarker is the literal a verifier must include in its reply
// for a step to count as done.
const DefaultSuccessMarker = "VERIFICATION_PASSED"

// fixPrefix introduces the previous failure in a retried coder prompt.
const fixPrefix = "FIX THIS ERROR: "

// maxFeedbackBytes bounds how much verifier output is quoted back as feedback.
const maxFeedbackBytes = 4000

// AgentRunner runs one agent invocation. *agent.Manager implements it.
type AgentRunner interface {
	RunAgent(ctx context.Context, req agent.Request) *agent.Response
}

// Config controls plan execution.
type Config struct {
	SuccessMarker string
	Policy        retry.Policy
}

// DefaultConfig returns the default success marker and retry policy.
func DefaultConfig() Config {
	return Config{
		SuccessMarker: DefaultSuccessMarker,
		Policy:        retry.DefaultPolicy(),
	}
}

// Executor runs plans. A single Executor may run plans for different tasks
// concurrently; steps within one plan always run in order.
type Executor struct {
	runner  AgentRunner
	retrier *retry.Executor
	cfg     Config
	bus     *event.Bus
	logger  *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithBus sets the bus step events are published on.
func WithBus(bus *event.Bus) Option {
	return func(e *Executor) { e.bus = bus }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates an Executor that runs agents through runner and
// retries steps through retrier.
func NewExecutor(runner AgentRunner, retrier *retry.Executor, cfg Config, opts ...Option) *Executor {
	if cfg.SuccessMarker == "" {
		cfg.SuccessMarker = DefaultSuccessMarker
	}
	if cfg.Policy.MaxAttempts < 1 {
		cfg.Policy.MaxAttempts = 1
	}
	e := &Executor{
		runner:  runner,
		retrier: retrier,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NopLogger()
	}
	e.logger = e.logger.WithComponent("plan")
	if e.retrier == nil {
		e.retrier = retry.NewExecutor(retry.WithBus(e.bus), retry.WithLogger(e.logger))
	}
	return e
}

// ExecutePlan runs every step of p in order inside workingPath and returns
// the responses it collected: the coder and verifier responses of each
// successful step, and one synthetic failed response per exhausted step.
//
// Only pending steps run. Completed and failed steps are skipped, and a step
// still in progress from an interrupted run is marked failed; callers that
// want to run failed steps again reset them first (see Resume). When ctx is
// cancelled the step in progress is marked failed and the responses gathered
// so far are returned together with the context's error.
func (e *Executor) ExecutePlan(ctx context.Context, p *agent.Plan, workingPath string) ([]*agent.Response, error) {
	if p == nil || len(p.Steps) == 0 {
		return nil, errors.NewPlanError("plan has no steps", errors.ErrPlanInvalid)
	}

	logger := e.logger.WithTask(p.TaskID)
	logger.Info("executing plan", "steps", len(p.Steps), "working_path", workingPath)

	var responses []*agent.Response
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			logger.Info("plan execution cancelled", "next_step", step.ID)
			return responses, err
		}

		switch step.Status {
		case agent.StepCompleted, agent.StepFailed:
			logger.Debug("skipping finished step", "step_id", step.ID, "status", string(step.Status))
			continue
		case agent.StepInProgress:
			if err := step.Transition(agent.StepFailed); err != nil {
				return responses, err
			}
			logger.Warn("step was interrupted by an earlier run", "step_id", step.ID)
			e.bus.Publish(event.NewPlanStepEvent(p.TaskID, step.Snapshot()))
			continue
		}

		if err := step.Transition(agent.StepInProgress); err != nil {
			return responses, err
		}
		e.bus.Publish(event.NewPlanStepEvent(p.TaskID, step.Snapshot()))
		logger.Info("step started", "step_id", step.ID, "index", i+1, "action", step.Action)

		out, err := e.runStep(ctx, p.TaskID, step, workingPath)
		switch {
		case err == nil:
			_ = step.Transition(agent.StepCompleted)
			responses = append(responses, out.responses...)
			logger.Info("step completed", "step_id", step.ID, "attempts", out.attempts)

		case ctx.Err() != nil:
			_ = step.Transition(agent.StepFailed)
			e.bus.Publish(event.NewPlanStepEvent(p.TaskID, step.Snapshot()))
			logger.Info("plan execution cancelled", "step_id", step.ID)
			return responses, ctx.Err()

		default:
			_ = step.Transition(agent.StepFailed)
			responses = append(responses, exhaustedResponse(p.TaskID, step, out))
			logger.Warn("step failed", "step_id", step.ID, "attempts", out.attempts, "error", out.lastFailure)
			e.bus.Publish(event.NewStepExhaustedEvent(p.TaskID, step.ID, out.attempts, out.lastFailure))
		}
		e.bus.Publish(event.NewPlanStepEvent(p.TaskID, step.Snapshot()))
	}

	s := Summarize(p)
	logger.Info("plan finished", "completed", s.Completed, "failed", s.Failed)
	return responses, nil
}

// stepOutcome is what runStep learned across all of its attempts.
type stepOutcome struct {
	responses   []*agent.Response
	attempts    int
	lastFailure string
}

// runStep performs the coder/verifier pair under the retry policy.
func (e *Executor) runStep(ctx context.Context, taskID string, step *agent.Step, workingPath string) (*stepOutcome, error) {
	out := &stepOutcome{}
	opID := fmt.Sprintf("plan:%s:%s", taskID, step.ID)

	responses, err := retry.Do[[]*agent.Response](ctx, e.retrier, e.cfg.Policy, opID,
		func(ctx context.Context, attempt int) ([]*agent.Response, error) {
			out.attempts = attempt
			prompt := CoderPrompt(step)
			if attempt > 1 && out.lastFailure != "" {
				prompt = fixPrefix + out.lastFailure + "\n\n" + prompt
			}

			coder := e.runner.RunAgent(ctx, agent.Request{
				TaskID:  taskID,
				Role:    agent.RoleCoder,
				Prompt:  prompt,
				WorkDir: workingPath,
			})
			if !coder.Success {
				out.lastFailure = "coder failed: " + coder.Error
				return nil, e.stepError(taskID, step, attempt, "coder failed", agentFailure(coder))
			}

			verifier := e.runner.RunAgent(ctx, agent.Request{
				TaskID:  taskID,
				Role:    agent.RoleVerifier,
				Prompt:  VerifierPrompt(step, e.cfg.SuccessMarker),
				Context: coder.Content,
				WorkDir: workingPath,
			})
			if !verifier.Success {
				out.lastFailure = "verifier failed: " + verifier.Error
				return nil, e.stepError(taskID, step, attempt, "verifier failed", agentFailure(verifier))
			}
			if !strings.Contains(verifier.Content, e.cfg.SuccessMarker) {
				out.lastFailure = "verification did not pass: " + truncate(strings.TrimSpace(verifier.Content), maxFeedbackBytes)
				return nil, e.stepError(taskID, step, attempt, out.lastFailure, errors.ErrVerificationFailed)
			}
			return []*agent.Response{coder, verifier}, nil
		})
	out.responses = responses
	return out, err
}

func (e *Executor) stepError(taskID string, step *agent.Step, attempt int, msg string, cause error) error {
	return errors.NewPlanError(msg, cause).WithTaskID(taskID).WithStepID(step.ID).WithAttempts(attempt)
}

// agentFailure returns the typed error behind a failed response. Responses
// without one are treated as an ordinary process failure.
func agentFailure(resp *agent.Response) error {
	if resp.Err != nil {
		return resp.Err
	}
	return errors.Wrap(errors.ErrProcessExit, resp.Error)
}

// exhaustedResponse is the synthetic response recorded for a failed step.
func exhaustedResponse(taskID string, step *agent.Step, out *stepOutcome) *agent.Response {
	err := errors.NewPlanError(
		fmt.Sprintf("step %q failed after %d attempt(s): %s", step.ID, out.attempts, out.lastFailure),
		errors.ErrRetryExhausted,
	).WithTaskID(taskID).WithStepID(step.ID).WithAttempts(out.attempts)
	return &agent.Response{
		TaskID:  taskID,
		Role:    agent.RoleVerifier,
		Content: fmt.Sprintf("Step %s (%s) was not completed.", step.ID, step.Action),
		Success: false,
		Error:   err.Error(),
		Err:     err,
	}
}

// CoderPrompt renders the instructions given to the coder for a step.
func CoderPrompt(step *agent.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement step %s: %s\n", step.ID, step.Action)
	if d := strings.TrimSpace(step.Description); d != "" {
		b.WriteString("\n" + d + "\n")
	}
	if len(step.Files) > 0 {
		b.WriteString("\nFiles: " + strings.Join(step.Files, ", ") + "\n")
	}
	return b.String()
}

// VerifierPrompt renders the instructions given to the verifier for a step.
// The coder's reply is passed separately as request context.
func VerifierPrompt(step *agent.Step, marker string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Verify that step %s was implemented: %s\n", step.ID, step.Action)
	if d := strings.TrimSpace(step.Description); d != "" {
		b.WriteString("\n" + d + "\n")
	}
	if len(step.Files) > 0 {
		b.WriteString("\nFiles: " + strings.Join(step.Files, ", ") + "\n")
	}
	fmt.Fprintf(&b, "\nIf and only if the step is correctly implemented, include the exact text %s in your reply. Otherwise describe every problem you found.\n", marker)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
