package agent

import (
	"fmt"
	"time"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
)

// Role identifies what an agent invocation is asked to do.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleCoder    Role = "coder"
	RoleVerifier Role = "verifier"
)

// Roles returns every valid role.
func Roles() []Role {
	return []Role{RolePlanner, RoleCoder, RoleVerifier}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePlanner, RoleCoder, RoleVerifier:
		return true
	}
	return false
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errors.NewAgentError(fmt.Sprintf("unknown role %q", s), errors.ErrInvalidRole).WithRole(s)
	}
	return r, nil
}

// Request is one agent invocation. It is built by the caller and never
// modified by the manager.
type Request struct {
	TaskID  string
	Role    Role
	Prompt  string
	Context string // optional, placed between the system instructions and the prompt
	WorkDir string // optional, defaults to the manager's working directory
}

// Response is the terminal result of one agent invocation.
type Response struct {
	TaskID  string `json:"task_id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Plan    *Plan  `json:"plan,omitempty"` // set only for planner responses that embedded a plan

	// Err is the typed failure behind Error. It lets callers classify the
	// failure, e.g. with errors.IsRetryable.
	Err error `json:"-"`
}

func failedResponse(req Request, err error) *Response {
	return &Response{
		TaskID:  req.TaskID,
		Role:    req.Role,
		Success: false,
		Error:   err.Error(),
		Err:     err,
	}
}

// fail records err as the response's failure.
func (r *Response) fail(err error) *Response {
	r.Success = false
	r.Error = err.Error()
	r.Err = err
	return r
}

// StepStatus is the lifecycle state of a plan step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed without Reset.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Step is one unit of work in a plan.
type Step struct {
	ID          string     `json:"id" yaml:"id"`
	Action      string     `json:"action" yaml:"action"`
	Description string     `json:"description" yaml:"description"`
	Files       []string   `json:"files,omitempty" yaml:"files,omitempty"`
	Status      StepStatus `json:"status" yaml:"status"`
}

// validTransitions lists the only forward moves a step can make.
var validTransitions = map[StepStatus][]StepStatus{
	StepPending:    {StepInProgress},
	StepInProgress: {StepCompleted, StepFailed},
}

// Transition moves the step to the given status. Only
// pending→in_progress→{completed, failed} is allowed.
func (s *Step) Transition(to StepStatus) error {
	from := s.Status
	if from == "" {
		from = StepPending
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			s.Status = to
			return nil
		}
	}
	return errors.NewPlanError(
		fmt.Sprintf("cannot move step from %s to %s", from, to),
		errors.ErrInvalidTransition,
	).WithStepID(s.ID)
}

// Reset returns a failed step to pending so it can be executed again.
// It is the only way back from a terminal state and is meant for callers
// explicitly retrying a step.
func (s *Step) Reset() error {
	if s.Status != StepFailed {
		return errors.NewPlanError(
			fmt.Sprintf("only failed steps can be reset (status %s)", s.Status),
			errors.ErrInvalidTransition,
		).WithStepID(s.ID)
	}
	s.Status = StepPending
	return nil
}

// Snapshot copies the step for publishing.
func (s *Step) Snapshot() event.StepSnapshot {
	return event.StepSnapshot{
		ID:          s.ID,
		Action:      s.Action,
		Description: s.Description,
		Files:       append([]string(nil), s.Files...),
		Status:      string(s.Status),
	}
}

// Plan is the ordered list of steps produced by a planner. The plan executor
// mutates step statuses in place.
type Plan struct {
	TaskID    string    `json:"task_id" yaml:"task_id"`
	Steps     []*Step   `json:"steps" yaml:"steps"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Step returns the step with the given id, or nil.
func (p *Plan) Step(id string) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}
