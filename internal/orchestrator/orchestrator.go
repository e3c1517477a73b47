// Package orchestrator is the single entry point the host drives. It owns one
// event bus and wires the agent process manager, the retry executor, the plan
// executor, the debate coordinator and the activity tracker onto it.
package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/activity"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/config"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/debate"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/metrics"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/plan"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/retry"
)

// Orchestrator coordinates agents, plans and debates for a host.
// It is safe for concurrent use.
type Orchestrator struct {
	cfg    *config.Config
	bus    *event.Bus
	logger *logging.Logger

	agents   *agent.Manager
	retrier  *retry.Executor
	plans    *plan.Executor
	debates  *debate.Coordinator
	activity *activity.Tracker
	metrics  *metrics.Metrics

	agentOpts  []agent.Option
	retryOpts  []retry.Option
	debateOpts []debate.Option

	mu       sync.Mutex
	tasks    map[string]*Task
	order    []string
	running  map[string]context.CancelFunc // plan executions by task id
	disposed bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBus uses bus instead of a private one.
func WithBus(bus *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics feeds every bus event into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAgentOptions passes extra options to the agent manager.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(o *Orchestrator) { o.agentOpts = append(o.agentOpts, opts...) }
}

// WithRetryOptions passes extra options to the retry executor.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(o *Orchestrator) { o.retryOpts = append(o.retryOpts, opts...) }
}

// WithDebateOptions passes extra options to the debate coordinator.
func WithDebateOptions(opts ...debate.Option) Option {
	return func(o *Orchestrator) { o.debateOpts = append(o.debateOpts, opts...) }
}

// New builds an orchestrator from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	o := &Orchestrator{
		cfg:     cfg,
		tasks:   make(map[string]*Task),
		running: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	if o.bus == nil {
		o.bus = event.NewBus(event.WithLogger(o.logger))
	}

	tracker, err := activity.NewTracker(activity.Config{
		Capacity:    cfg.Activity.Capacity,
		IgnoreTools: cfg.Activity.IgnoreTools,
	}, activity.WithLogger(o.logger))
	if err != nil {
		return nil, errors.NewValidationError("invalid activity configuration").WithField("activity.ignore_tools").WithCause(err)
	}
	o.activity = tracker

	o.agents = agent.NewManager(AgentConfig(cfg), append([]agent.Option{
		agent.WithBus(o.bus),
		agent.WithLogger(o.logger),
	}, o.agentOpts...)...)

	o.retrier = retry.NewExecutor(append([]retry.Option{
		retry.WithBus(o.bus),
		retry.WithLogger(o.logger),
	}, o.retryOpts...)...)

	o.plans = plan.NewExecutor(o.agents, o.retrier, PlanConfig(cfg),
		plan.WithBus(o.bus),
		plan.WithLogger(o.logger),
	)

	o.debates = debate.NewCoordinator(DebateConfig(cfg), append([]debate.Option{
		debate.WithBus(o.bus),
		debate.WithLogger(o.logger),
	}, o.debateOpts...)...)

	o.activity.Attach(o.bus)
	if o.metrics != nil {
		o.metrics.Attach(o.bus)
	}

	o.logger = o.logger.WithComponent("orchestrator")
	return o, nil
}

// Bus returns the bus every component publishes on.
func (o *Orchestrator) Bus() *event.Bus { return o.bus }

// Activity returns the tool activity tracker.
func (o *Orchestrator) Activity() *activity.Tracker { return o.activity }

// Config returns the configuration the orchestrator was built from.
func (o *Orchestrator) Config() *config.Config { return o.cfg }

// Retries returns the retry executor, e.g. to inspect in-flight retries.
func (o *Orchestrator) Retries() *retry.Executor { return o.retrier }

// StopAll cancels every running plan and stops every agent process, waiting
// until the processes have exited or ctx is done.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	o.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.running))
	for _, cancel := range o.running {
		cancels = append(cancels, cancel)
	}
	o.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return o.agents.StopAll(ctx)
}

// Dispose stops all work, cancels every open debate and detaches the
// observers from the bus. The orchestrator rejects new work afterwards.
// Calling Dispose more than once is a no-op.
func (o *Orchestrator) Dispose(ctx context.Context) error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return nil
	}
	o.disposed = true
	o.mu.Unlock()

	o.logger.Info("disposing orchestrator")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.StopAll(gctx)
	})
	g.Go(func() error {
		o.debates.Close()
		return nil
	})
	err := g.Wait()

	o.activity.Detach()
	if o.metrics != nil {
		o.metrics.Detach()
	}
	if err != nil {
		o.logger.Warn("dispose incomplete", "error", err)
	}
	return err
}

func (o *Orchestrator) checkOpen() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return errors.Wrap(errors.ErrCanceled, "orchestrator disposed")
	}
	return nil
}
