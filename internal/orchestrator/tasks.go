package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/plan"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "created"
	TaskPlanned   TaskStatus = "planned"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskStopped   TaskStatus = "stopped"
)

// Task groups the agent invocations and the plan made for one objective.
type Task struct {
	ID        string      `json:"id"`
	Objective string      `json:"objective"`
	Status    TaskStatus  `json:"status"`
	Plan      *agent.Plan `json:"plan,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (t *Task) clone() *Task {
	c := *t
	return &c
}

// CreateTask registers a new task and returns a copy of it.
func (o *Orchestrator) CreateTask(objective string) (*Task, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	now := time.Now()
	t := &Task{
		ID:        uuid.NewString(),
		Objective: objective,
		Status:    TaskCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	o.tasks[t.ID] = t
	o.order = append(o.order, t.ID)
	o.mu.Unlock()

	o.logger.WithTask(t.ID).Info("task created")
	return t.clone(), nil
}

// Task returns a copy of the task with the given id.
func (o *Orchestrator) Task(taskID string) (*Task, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[taskID]
	if !ok {
		return nil, errors.NewNotFoundError("task", taskID).WithCause(errors.ErrTaskNotFound)
	}
	return t.clone(), nil
}

// Tasks returns copies of every task in creation order.
func (o *Orchestrator) Tasks() []*Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Task, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.tasks[id].clone())
	}
	return out
}

// setStatus updates a known task. Ad hoc task ids that were never created
// are left alone.
func (o *Orchestrator) setStatus(taskID string, status TaskStatus, p *agent.Plan) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[taskID]
	if !ok {
		return
	}
	t.Status = status
	if p != nil {
		t.Plan = p
	}
	t.UpdatedAt = time.Now()
}

// RunAgent runs a single agent invocation. Failures are reported in the
// response, never as a Go error.
func (o *Orchestrator) RunAgent(ctx context.Context, req agent.Request) *agent.Response {
	if err := o.checkOpen(); err != nil {
		return &agent.Response{TaskID: req.TaskID, Role: req.Role, Error: err.Error()}
	}
	return o.agents.RunAgent(ctx, req)
}

// Plan asks a planner agent to break objective into steps. The returned
// response is the planner's raw output; the plan is nil when the planner did
// not produce one, in which case the error wraps ErrPlanInvalid.
func (o *Orchestrator) Plan(ctx context.Context, taskID, objective, workDir string) (*agent.Plan, *agent.Response, error) {
	if err := o.checkOpen(); err != nil {
		return nil, nil, err
	}

	logger := o.logger.WithTask(taskID)
	resp := o.agents.RunAgent(ctx, agent.Request{
		TaskID:  taskID,
		Role:    agent.RolePlanner,
		Prompt:  objective,
		WorkDir: workDir,
	})
	if !resp.Success {
		logger.Warn("planner failed", "error", resp.Error)
		return nil, resp, errors.NewPlanError("planner failed: "+resp.Error, errors.ErrPlanInvalid).WithTaskID(taskID)
	}
	if resp.Plan == nil || len(resp.Plan.Steps) == 0 {
		logger.Warn("planner produced no plan")
		return nil, resp, errors.NewPlanError("planner produced no plan", errors.ErrPlanInvalid).WithTaskID(taskID)
	}

	o.setStatus(taskID, TaskPlanned, resp.Plan)
	logger.Info("plan created", "steps", len(resp.Plan.Steps))
	return resp.Plan, resp, nil
}

// ExecutePlan runs p inside workDir. Only one execution per task id may run
// at a time; StopTask cancels it.
func (o *Orchestrator) ExecutePlan(ctx context.Context, p *agent.Plan, workDir string) ([]*agent.Response, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.NewPlanError("plan is nil", errors.ErrPlanInvalid)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if _, busy := o.running[p.TaskID]; busy {
		o.mu.Unlock()
		return nil, errors.NewPlanError("plan already executing", errors.ErrTaskAlreadyRunning).WithTaskID(p.TaskID)
	}
	o.running[p.TaskID] = cancel
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.running, p.TaskID)
		o.mu.Unlock()
	}()

	o.setStatus(p.TaskID, TaskRunning, p)
	responses, err := o.plans.ExecutePlan(ctx, p, workDir)

	switch {
	case err != nil && ctx.Err() != nil:
		o.setStatus(p.TaskID, TaskStopped, nil)
	case err != nil || !plan.Summarize(p).Done():
		o.setStatus(p.TaskID, TaskFailed, nil)
	default:
		o.setStatus(p.TaskID, TaskCompleted, nil)
	}
	return responses, err
}

// StopTask cancels the plan executing for taskID and terminates its agent
// process. It returns a not-found error when neither exists.
func (o *Orchestrator) StopTask(taskID string) error {
	o.mu.Lock()
	cancel, planning := o.running[taskID]
	o.mu.Unlock()

	if planning {
		cancel()
	}
	err := o.agents.StopTask(taskID)
	if planning && errors.Is(err, errors.ErrTaskNotFound) {
		err = nil
	}
	if err != nil {
		return err
	}
	o.logger.WithTask(taskID).Info("task stopped")
	return nil
}
