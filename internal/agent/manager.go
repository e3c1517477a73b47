// Package agent runs external agent processes (planner, coder, verifier) and
// turns their streamed output into responses and events.
//
// Each RunAgent call spawns one process, writes the composed prompt to its
// stdin, and parses newline-delimited JSON records from stdout. Text deltas
// are published as chunk events as soon as they arrive; tool invocations are
// published as tool events. Process failures never surface as Go errors from
// RunAgent: they are folded into a failed Response.
package agent

import (
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
)

// Config controls how agent processes are launched.
type Config struct {
	Command        string
	Args           []string
	Timeout        time.Duration
	MaxStderrBytes int
	SystemPrompts  map[Role]string
	// KillGrace is how long a terminated process may keep its output open
	// before it is killed outright.
	KillGrace time.Duration
}

// DefaultConfig returns the configuration for the claude CLI in stream-json mode.
func DefaultConfig() Config {
	return Config{
		Command:        "claude",
		Args:           []string{"--print", "--output-format", "stream-json", "--verbose"},
		Timeout:        300 * time.Second,
		MaxStderrBytes: 64 * 1024,
		KillGrace:      5 * time.Second,
	}
}

// activeProcess is the registry entry for one running invocation.
type activeProcess struct {
	role    Role
	started time.Time
	cancel  context.CancelCauseFunc
	done    chan struct{}
}

// Manager spawns agent processes and owns the registry of running ones,
// keyed by task id. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	bus    *event.Bus
	logger *logging.Logger
	term   Terminator

	mu     sync.Mutex
	active map[string]*activeProcess
}

// Option configures a Manager.
type Option func(*Manager)

// WithBus sets the bus chunk, tool and lifecycle events are published on.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithTerminator replaces the platform process control.
func WithTerminator(t Terminator) Option {
	return func(m *Manager) { m.term = t }
}

// NewManager creates a Manager. Zero fields of cfg fall back to DefaultConfig.
func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Command == "" {
		cfg.Command = def.Command
		if cfg.Args == nil {
			cfg.Args = def.Args
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxStderrBytes <= 0 {
		cfg.MaxStderrBytes = def.MaxStderrBytes
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = def.KillGrace
	}

	m := &Manager{
		cfg:    cfg,
		active: make(map[string]*activeProcess),
		term:   DefaultTerminator(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	m.logger = m.logger.WithComponent("agent")
	return m
}

func (m *Manager) systemPrompt(role Role) string {
	if p, ok := m.cfg.SystemPrompts[role]; ok && p != "" {
		return p
	}
	return DefaultSystemPrompts[role]
}

// register reserves taskID for a new invocation.
func (m *Manager) register(taskID string, proc *activeProcess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[taskID]; exists {
		return errors.NewAgentError("another agent is already running for this task", errors.ErrTaskAlreadyRunning).
			WithTaskID(taskID)
	}
	m.active[taskID] = proc
	return nil
}

func (m *Manager) unregister(taskID string, proc *activeProcess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.active[taskID]; ok && cur == proc {
		delete(m.active, taskID)
	}
}

// runState accumulates what the stdout parser sees. It is written from the
// goroutine os/exec uses to copy stdout and read after Wait returns.
type runState struct {
	mu          sync.Mutex
	content     strings.Builder
	result      string
	resultError bool
	sawResult   bool
	malformed   int
}

// RunAgent spawns one agent process for req and blocks until it exits, times
// out, or is stopped. It always returns a Response; failures are reported in
// Response.Error with Success false.
func (m *Manager) RunAgent(ctx context.Context, req Request) *Response {
	logger := m.logger.WithTask(req.TaskID).WithRole(string(req.Role))

	if !req.Role.Valid() {
		err := errors.NewAgentError(fmt.Sprintf("unknown role %q", req.Role), errors.ErrInvalidRole).
			WithTaskID(req.TaskID)
		return failedResponse(req, err)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	proc := &activeProcess{role: req.Role, started: time.Now(), cancel: cancel, done: make(chan struct{})}
	if err := m.register(req.TaskID, proc); err != nil {
		logger.Warn("rejected duplicate agent run", "error", err)
		return failedResponse(req, err)
	}
	defer func() {
		m.unregister(req.TaskID, proc)
		close(proc.done)
	}()

	procCtx, stop := context.WithTimeoutCause(runCtx, m.cfg.Timeout, errors.ErrProcessTimeout)
	defer stop()

	state := &runState{}
	stdout := newLineWriter(maxLineBytes,
		func(line []byte) { m.handleLine(req, state, line, logger) },
		func() {
			state.mu.Lock()
			state.malformed++
			state.mu.Unlock()
			logger.Warn("dropped oversized output line")
		})
	stderr := &cappedBuffer{max: m.cfg.MaxStderrBytes}

	cmd := exec.CommandContext(procCtx, m.cfg.Command, m.cfg.Args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(ComposePrompt(m.systemPrompt(req.Role), req.Context, req.Prompt))
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Cancel = func() error { return m.term.Terminate(cmd.Process) }
	cmd.WaitDelay = m.cfg.KillGrace

	if err := cmd.Start(); err != nil {
		// A missing or unusable binary will not start on a second try either.
		permanent := errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
		aerr := errors.NewAgentError(fmt.Sprintf("failed to start %s: %v", m.cfg.Command, err), errors.ErrProcessSpawn).
			WithTaskID(req.TaskID).WithRole(string(req.Role)).WithRetryable(!permanent)
		logger.Error("agent spawn failed", "error", err)
		m.bus.Publish(event.NewAgentSpawnFailedEvent(req.TaskID, string(req.Role), aerr.Error()))
		return failedResponse(req, aerr)
	}

	logger.Info("agent started", "pid", cmd.Process.Pid, "command", m.cfg.Command)
	m.bus.Publish(event.NewAgentStartedEvent(req.TaskID, string(req.Role), cmd.Process.Pid))

	waitErr := cmd.Wait()
	stdout.Flush()

	resp := m.resolve(req, state, stderr, waitErr, procCtx, ctx)
	elapsed := time.Since(proc.started)

	if resp.Success && req.Role == RolePlanner {
		resp.Plan = ExtractPlan(req.TaskID, resp.Content)
		if resp.Plan == nil {
			logger.Info("planner output contained no plan")
		}
	}

	state.mu.Lock()
	malformed := state.malformed
	state.mu.Unlock()
	if malformed > 0 {
		logger.Debug("skipped malformed output lines", "count", malformed)
	}

	if resp.Success {
		logger.Info("agent finished", "duration", elapsed.String(), "content_bytes", len(resp.Content))
	} else {
		logger.Warn("agent failed", "duration", elapsed.String(), "error", resp.Error)
	}
	m.bus.Publish(event.NewAgentFinishedEvent(req.TaskID, string(req.Role), resp.Success, elapsed, resp.Error))
	return resp
}

// handleLine parses one stdout record and publishes what it contains.
func (m *Manager) handleLine(req Request, state *runState, line []byte, logger *logging.Logger) {
	parsed, err := parseLine(line)
	if err != nil {
		state.mu.Lock()
		state.malformed++
		state.mu.Unlock()
		return
	}

	if parsed.Text != "" {
		state.mu.Lock()
		state.content.WriteString(parsed.Text)
		state.mu.Unlock()
		m.bus.Publish(event.NewChunkEvent(req.TaskID, string(req.Role), parsed.Text))
	}
	for _, tu := range parsed.ToolUses {
		logger.Debug("tool invoked", "tool", tu.Name, "tool_id", tu.ID)
		m.bus.Publish(event.NewToolDetectedEvent(req.TaskID, tu.ID, tu.Name, tu.Input))
		m.bus.Publish(event.NewToolStartedEvent(req.TaskID, tu.ID))
	}
	for _, tr := range parsed.ToolResults {
		m.bus.Publish(event.NewToolCompletedEvent(req.TaskID, tr.ToolUseID, tr.Output, tr.IsError))
	}
	if parsed.IsResult {
		state.mu.Lock()
		state.sawResult = true
		state.result = parsed.Result
		state.resultError = parsed.ResultError
		state.mu.Unlock()
	}
}

// resolve turns the process outcome into a Response.
func (m *Manager) resolve(req Request, state *runState, stderr *cappedBuffer, waitErr error, procCtx, parent context.Context) *Response {
	state.mu.Lock()
	content := state.content.String()
	result, resultError, sawResult := state.result, state.resultError, state.sawResult
	state.mu.Unlock()

	resp := &Response{TaskID: req.TaskID, Role: req.Role, Content: content}
	role := string(req.Role)

	if procCtx.Err() != nil {
		cause := context.Cause(procCtx)
		switch {
		case errors.Is(cause, errors.ErrProcessTimeout):
			timeout := errors.NewTimeoutError("agent run", m.cfg.Timeout).WithCause(errors.ErrProcessTimeout)
			return resp.fail(errors.NewAgentError(
				fmt.Sprintf("agent did not finish within %s", m.cfg.Timeout), timeout,
			).WithTaskID(req.TaskID).WithRole(role))
		case errors.Is(cause, errors.ErrProcessStopped):
			return resp.fail(errors.NewAgentError("agent was stopped", errors.ErrProcessStopped).
				WithTaskID(req.TaskID).WithRole(role))
		default:
			return resp.fail(errors.NewAgentError("agent run cancelled", parent.Err()).
				WithTaskID(req.TaskID).WithRole(role))
		}
	}

	if content == "" && sawResult && !resultError {
		content = result
		resp.Content = result
	}

	if sawResult && resultError && content == "" {
		msg := result
		if msg == "" {
			msg = "agent reported an error result"
		}
		return resp.fail(errors.NewAgentError(msg, errors.ErrProcessExit).
			WithTaskID(req.TaskID).WithRole(role))
	}

	if waitErr == nil || content != "" {
		resp.Success = true
		return resp
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	diag := strings.TrimSpace(stderr.String())
	if diag == "" {
		diag = waitErr.Error()
	}
	return resp.fail(errors.NewAgentError(diag, errors.ErrProcessExit).
		WithTaskID(req.TaskID).WithRole(role).WithExitCode(exitCode))
}

// StopTask terminates the process running for taskID and removes it from the
// registry. It returns a not-found error when no process is registered.
func (m *Manager) StopTask(taskID string) error {
	m.mu.Lock()
	proc, ok := m.active[taskID]
	if ok {
		delete(m.active, taskID)
	}
	m.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("task", taskID).WithCause(errors.ErrTaskNotFound)
	}
	m.logger.WithTask(taskID).Info("stopping agent", "role", string(proc.role))
	proc.cancel(errors.ErrProcessStopped)
	return nil
}

// StopAll stops every running process and waits until each has exited or
// ctx is done.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	procs := make(map[string]*activeProcess, len(m.active))
	for id, p := range m.active {
		procs[id] = p
	}
	m.active = make(map[string]*activeProcess)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for id, proc := range procs {
		g.Go(func() error {
			m.logger.WithTask(id).Info("stopping agent", "role", string(proc.role))
			proc.cancel(errors.ErrProcessStopped)
			select {
			case <-proc.done:
				return nil
			case <-gctx.Done():
				return errors.Wrapf(gctx.Err(), "waiting for task %s to stop", id)
			}
		})
	}
	return g.Wait()
}

// Active returns the task ids with a running process, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsRunning reports whether a process is registered for taskID.
func (m *Manager) IsRunning(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[taskID]
	return ok
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}
