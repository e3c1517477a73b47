// Package activity tracks the tool invocations agents announce in their
// output streams.
//
// Invocations move through pending, running and a terminal status. Active
// invocations live in a registry keyed by tool id. Completed ones are pushed
// into a bounded history and folded into running statistics, so reading the
// stats never rescans the history.
package activity

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
)

// DefaultCapacity is the history size used when none is configured.
const DefaultCapacity = 100

// Status is the lifecycle state of a tool invocation.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Invocation is one tool call made by an agent.
type Invocation struct {
	ID          string        `json:"id"`
	TaskID      string        `json:"task_id,omitempty"`
	Tool        string        `json:"tool"`
	Input       string        `json:"input,omitempty"`
	Output      string        `json:"output,omitempty"`
	Status      Status        `json:"status"`
	DetectedAt  time.Time     `json:"detected_at"`
	StartedAt   time.Time     `json:"started_at,omitzero"`
	CompletedAt time.Time     `json:"completed_at,omitzero"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Stats summarizes tracked activity.
type Stats struct {
	Pending         int            `json:"pending"`
	Running         int            `json:"running"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	AverageDuration time.Duration  `json:"average_duration"`
	ByTool          map[string]int `json:"by_tool"`
}

// Completed returns the number of invocations that reached a terminal status.
func (s Stats) Completed() int {
	return s.Succeeded + s.Failed
}

// ToolCount is a tool name with its invocation count.
type ToolCount struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

// Config controls a Tracker.
type Config struct {
	// Capacity bounds the completed-invocation history.
	Capacity int
	// IgnoreTools are glob patterns of tool names that are never tracked.
	IgnoreTools []string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker records tool invocations. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	active  map[string]*Invocation
	history *RingBuffer[Invocation]
	ignore  []glob.Glob

	succeeded     int
	failed        int
	totalDuration time.Duration
	byTool        map[string]int

	bus    *event.Bus
	subIDs []string

	logger *logging.Logger
	now    func() time.Time
}

// NewTracker creates a tracker. It fails when an ignore pattern does not compile.
func NewTracker(cfg Config, opts ...Option) (*Tracker, error) {
	capacity := cfg.Capacity
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	t := &Tracker{
		active:  make(map[string]*Invocation),
		history: NewRingBuffer[Invocation](capacity),
		byTool:  make(map[string]int),
		now:     time.Now,
	}
	for _, pattern := range cfg.IgnoreTools {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		t.ignore = append(t.ignore, g)
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.NopLogger()
	}
	t.logger = t.logger.WithComponent("activity")
	return t, nil
}

// Ignored reports whether tool matches one of the ignore patterns.
func (t *Tracker) Ignored(tool string) bool {
	for _, g := range t.ignore {
		if g.Match(tool) {
			return true
		}
	}
	return false
}

// Detect registers a pending invocation. It returns false when the tool is
// ignored or the id is already being tracked.
func (t *Tracker) Detect(id, taskID, tool, input string) bool {
	if t.Ignored(tool) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.active[id]; exists {
		return false
	}
	t.active[id] = &Invocation{
		ID:         id,
		TaskID:     taskID,
		Tool:       tool,
		Input:      input,
		Status:     StatusPending,
		DetectedAt: t.now(),
	}
	return true
}

// Start promotes a pending invocation to running. Starting a running
// invocation again is a no-op. It returns false for unknown ids.
func (t *Tracker) Start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	inv, ok := t.active[id]
	if !ok {
		return false
	}
	if inv.Status == StatusPending {
		inv.Status = StatusRunning
		inv.StartedAt = t.now()
	}
	return true
}

// Complete finishes an invocation, moves it into history and updates the
// statistics. Unknown ids are ignored and return false.
func (t *Tracker) Complete(id, output string, isError bool) (Invocation, bool) {
	t.mu.Lock()
	inv, ok := t.active[id]
	if !ok {
		t.mu.Unlock()
		return Invocation{}, false
	}
	delete(t.active, id)

	inv.CompletedAt = t.now()
	inv.Output = output
	inv.Status = StatusSuccess
	if isError {
		inv.Status = StatusError
	}
	from := inv.StartedAt
	if from.IsZero() {
		from = inv.DetectedAt
	}
	inv.Duration = inv.CompletedAt.Sub(from)

	if isError {
		t.failed++
	} else {
		t.succeeded++
	}
	t.totalDuration += inv.Duration
	t.byTool[inv.Tool]++
	final := *inv
	// Pushed under t.mu so history order matches completion order.
	t.history.Push(final)
	t.mu.Unlock()

	t.logger.Debug("tool completed",
		"tool", final.Tool,
		"tool_id", final.ID,
		"status", string(final.Status),
		"duration_ms", final.Duration.Milliseconds(),
	)
	return final, true
}

// Active returns the invocations that have not completed, oldest first.
func (t *Tracker) Active() []Invocation {
	t.mu.Lock()
	out := make([]Invocation, 0, len(t.active))
	for _, inv := range t.active {
		out = append(out, *inv)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

// History returns the most recent completed invocations, oldest first.
func (t *Tracker) History() []Invocation {
	return t.history.Items()
}

// Recent returns up to n of the latest completed invocations, oldest first.
func (t *Tracker) Recent(n int) []Invocation {
	return t.history.Latest(n)
}

// Stats returns a snapshot of the running statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Succeeded: t.succeeded,
		Failed:    t.failed,
		ByTool:    make(map[string]int, len(t.byTool)),
	}
	for _, inv := range t.active {
		if inv.Status == StatusRunning {
			s.Running++
		} else {
			s.Pending++
		}
	}
	if done := t.succeeded + t.failed; done > 0 {
		s.AverageDuration = t.totalDuration / time.Duration(done)
	}
	for tool, n := range t.byTool {
		s.ByTool[tool] = n
	}
	return s
}

// TopTools returns the n most used tools, most used first. Ties are ordered
// by name. A non-positive n returns every tool.
func (t *Tracker) TopTools(n int) []ToolCount {
	t.mu.Lock()
	counts := make([]ToolCount, 0, len(t.byTool))
	for tool, c := range t.byTool {
		counts = append(counts, ToolCount{Tool: tool, Count: c})
	}
	t.mu.Unlock()

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tool < counts[j].Tool
	})
	if n > 0 && n < len(counts) {
		counts = counts[:n]
	}
	return counts
}

// Attach subscribes the tracker to tool events on bus. Attaching again
// replaces the previous subscription.
func (t *Tracker) Attach(bus *event.Bus) {
	if bus == nil {
		return
	}
	t.Detach()

	ids := bus.SubscribeMany(t.observe,
		event.TypeToolDetected,
		event.TypeToolStarted,
		event.TypeToolCompleted,
	)

	t.mu.Lock()
	t.bus = bus
	t.subIDs = ids
	t.mu.Unlock()
}

// observe applies one tool event.
func (t *Tracker) observe(e event.Event) {
	switch ev := e.(type) {
	case event.ToolDetectedEvent:
		t.Detect(ev.ToolID, ev.TaskID, ev.Name, ev.Input)
	case event.ToolStartedEvent:
		t.Start(ev.ToolID)
	case event.ToolCompletedEvent:
		t.Complete(ev.ToolID, ev.Output, ev.IsError)
	}
}

// Detach removes the tracker's bus subscriptions.
func (t *Tracker) Detach() {
	t.mu.Lock()
	bus, ids := t.bus, t.subIDs
	t.bus, t.subIDs = nil, nil
	t.mu.Unlock()

	for _, id := range ids {
		bus.Unsubscribe(id)
	}
}
