package retry

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
)

// State is the bookkeeping for one in-flight operation.
type State struct {
	OperationID  string
	Attempt      int // 1-indexed, the attempt currently running or last failed
	MaxAttempts  int
	LastError    string
	NextRetryAt  time.Time
	TotalBackoff time.Duration
	StartedAt    time.Time
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs operations under a retry policy and tracks them while they
// are in flight. It is safe for concurrent use.
type Executor struct {
	mu     sync.RWMutex
	states map[string]*State

	bus    *event.Bus
	logger *logging.Logger
	sleep  SleepFunc
	now    func() time.Time
	random func() float64
}

// Option configures an Executor.
type Option func(*Executor)

// WithBus sets the bus retry events are published on.
func WithBus(bus *event.Bus) Option {
	return func(e *Executor) { e.bus = bus }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithSleeper replaces the backoff wait. Tests use it to avoid real delays.
func WithSleeper(sleep SleepFunc) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithRandom replaces the jitter source. f must return values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(e *Executor) { e.random = f }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		states: make(map[string]*State),
		sleep:  sleepContext,
		now:    time.Now,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NopLogger()
	}
	e.logger = e.logger.WithComponent("retry")
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Operation is one attempt of a retried call. attempt is 1-indexed.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs op until it succeeds, fails with a non-retryable error, or
// policy.MaxAttempts attempts have failed. The final error is returned
// unchanged. A context cancelled during a backoff wait ends the loop with
// the context's error.
func Do[T any](ctx context.Context, e *Executor, policy Policy, operationID string, op Operation[T]) (T, error) {
	var zero T
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	st := e.track(operationID, maxAttempts)
	defer e.untrack(operationID, st)

	logger := e.logger.With("operation_id", operationID)

	for attempt := 1; ; attempt++ {
		e.update(st, func(s *State) { s.Attempt = attempt })

		result, err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				total := e.snapshot(st).TotalBackoff
				logger.Info("operation succeeded after retry", "attempts", attempt)
				e.bus.Publish(event.NewRetrySuccessEvent(operationID, attempt, total))
			}
			return result, nil
		}

		msg := err.Error()
		e.update(st, func(s *State) { s.LastError = msg })

		if attempt >= maxAttempts {
			logger.Warn("retry attempts exhausted", "attempts", attempt, "error", msg)
			e.bus.Publish(event.NewRetryExhaustedEvent(operationID, attempt, msg))
			return zero, err
		}

		if !retryable(err, policy) {
			logger.Debug("error is not retryable", "attempt", attempt, "error", msg)
			return zero, err
		}

		delay := policy.ComputeDelay(attempt)
		if policy.Jitter {
			delay = applyJitter(delay, e.random())
		}
		next := e.now().Add(delay)
		e.update(st, func(s *State) {
			s.NextRetryAt = next
			s.TotalBackoff += delay
		})

		logger.Info("retrying operation",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay.String(),
			"error", msg)
		e.bus.Publish(event.NewRetryAttemptEvent(operationID, attempt, maxAttempts, delay, next, msg))
		notify(policy.OnAttempt, attempt, err, delay)

		if err := e.sleep(ctx, delay); err != nil {
			logger.Debug("retry wait interrupted", "error", err)
			return zero, err
		}
	}
}

// retryable applies the error's own classification before the policy's
// message patterns. A typed error from the errors package that reports
// itself as not retryable ends the loop, whatever the patterns say.
func retryable(err error, policy Policy) bool {
	var qErr errors.QuorumError
	if errors.As(err, &qErr) && !errors.IsRetryable(err) {
		return false
	}
	return ShouldRetry(err.Error(), policy)
}

func notify(f AttemptFunc, attempt int, err error, delay time.Duration) {
	if f == nil {
		return
	}
	defer func() { _ = recover() }()
	f(attempt, err, delay)
}

func (e *Executor) track(operationID string, maxAttempts int) *State {
	st := &State{
		OperationID: operationID,
		MaxAttempts: maxAttempts,
		StartedAt:   e.now(),
	}
	e.mu.Lock()
	e.states[operationID] = st
	e.mu.Unlock()
	return st
}

// untrack removes st unless the entry was cancelled or replaced by a newer
// operation with the same id.
func (e *Executor) untrack(operationID string, st *State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.states[operationID]; ok && cur == st {
		delete(e.states, operationID)
	}
}

func (e *Executor) update(st *State, f func(*State)) {
	e.mu.Lock()
	f(st)
	e.mu.Unlock()
}

func (e *Executor) snapshot(st *State) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *st
}

// State returns a copy of the bookkeeping for an in-flight operation.
func (e *Executor) State(operationID string) (State, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.states[operationID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Active returns the ids of all tracked operations, sorted.
func (e *Executor) Active() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.states))
	for id := range e.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cancel drops the bookkeeping for operationID and reports whether it was
// tracked. It does not interrupt a backoff wait or the running operation;
// cancel the context passed to Do for that.
func (e *Executor) Cancel(operationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.states[operationID]; !ok {
		return false
	}
	delete(e.states, operationID)
	return true
}
