package activity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
)

// fakeClock advances by step on every call.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newTestTracker(t *testing.T, cfg Config) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
	tr, err := NewTracker(cfg, WithClock(clock.Now))
	require.NoError(t, err)
	return tr, clock
}

func TestTracker_Lifecycle(t *testing.T) {
	tr, _ := newTestTracker(t, Config{Capacity: 10})

	require.True(t, tr.Detect("t1", "task-1", "Read", `{"path":"a.go"}`))
	active := tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, StatusPending, active[0].Status)

	require.True(t, tr.Start("t1"))
	assert.Equal(t, StatusRunning, tr.Active()[0].Status)

	inv, ok := tr.Complete("t1", "package main", false)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, inv.Status)
	assert.Equal(t, "task-1", inv.TaskID)
	assert.Equal(t, "package main", inv.Output)
	assert.Equal(t, time.Second, inv.Duration)

	assert.Empty(t, tr.Active())
	history := tr.History()
	require.Len(t, history, 1)
	assert.Equal(t, "t1", history[0].ID)
}

func TestTracker_StartIsIdempotent(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})

	tr.Detect("t1", "", "Bash", "")
	require.True(t, tr.Start("t1"))
	started := tr.Active()[0].StartedAt

	require.True(t, tr.Start("t1"))
	assert.Equal(t, started, tr.Active()[0].StartedAt)
	assert.Equal(t, StatusRunning, tr.Active()[0].Status)
}

func TestTracker_CompleteWithoutStart(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})

	tr.Detect("t1", "", "Grep", "")
	inv, ok := tr.Complete("t1", "boom", true)
	require.True(t, ok)

	assert.Equal(t, StatusError, inv.Status)
	assert.Equal(t, time.Second, inv.Duration, "duration measured from detection")
}

func TestTracker_UnknownIDsIgnored(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})

	assert.False(t, tr.Start("missing"))
	_, ok := tr.Complete("missing", "", false)
	assert.False(t, ok)

	assert.Empty(t, tr.History())
	assert.Equal(t, 0, tr.Stats().Completed())
}

func TestTracker_DuplicateDetect(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})

	require.True(t, tr.Detect("t1", "", "Read", ""))
	assert.False(t, tr.Detect("t1", "", "Write", ""))
	assert.Equal(t, "Read", tr.Active()[0].Tool)
}

func TestTracker_CompletedTwice(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})

	tr.Detect("t1", "", "Read", "")
	_, ok := tr.Complete("t1", "", false)
	require.True(t, ok)
	_, ok = tr.Complete("t1", "", false)
	assert.False(t, ok)

	assert.Equal(t, 1, tr.Stats().Succeeded)
}

func TestTracker_Stats(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})

	// Each clock read advances one second, so detect+start+complete gives
	// one second of runtime and detect+complete gives one second too.
	tr.Detect("a", "", "Read", "")
	tr.Start("a")
	tr.Complete("a", "", false)

	tr.Detect("b", "", "Read", "")
	tr.Complete("b", "", true)

	tr.Detect("c", "", "Bash", "")
	tr.Start("c")
	tr.Complete("c", "", false)

	tr.Detect("d", "", "Edit", "")
	tr.Detect("e", "", "Edit", "")
	tr.Start("e")

	s := tr.Stats()
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.Completed())
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, time.Second, s.AverageDuration)
	assert.Equal(t, map[string]int{"Read": 2, "Bash": 1}, s.ByTool)
}

func TestTracker_AverageDuration(t *testing.T) {
	tr, clock := newTestTracker(t, Config{})

	tr.Detect("a", "", "Read", "")
	tr.Complete("a", "", false)

	clock.step = 3 * time.Second
	tr.Detect("b", "", "Read", "")
	tr.Complete("b", "", false)

	assert.Equal(t, 2*time.Second, tr.Stats().AverageDuration)
}

func TestTracker_StatsSurviveHistoryEviction(t *testing.T) {
	tr, _ := newTestTracker(t, Config{Capacity: 2})

	for _, id := range []string{"a", "b", "c", "d"} {
		tr.Detect(id, "", "Read", "")
		tr.Complete(id, "", false)
	}

	history := tr.History()
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].ID)
	assert.Equal(t, "d", history[1].ID)
	assert.Equal(t, 4, tr.Stats().ByTool["Read"])
}

func TestTracker_TopTools(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})

	calls := []string{"Read", "Bash", "Read", "Edit", "Bash", "Read", "Glob"}
	for i, tool := range calls {
		id := string(rune('a' + i))
		tr.Detect(id, "", tool, "")
		tr.Complete(id, "", false)
	}

	assert.Equal(t, []ToolCount{
		{Tool: "Read", Count: 3},
		{Tool: "Bash", Count: 2},
	}, tr.TopTools(2))

	all := tr.TopTools(0)
	require.Len(t, all, 4)
	assert.Equal(t, ToolCount{Tool: "Edit", Count: 1}, all[2])
	assert.Equal(t, ToolCount{Tool: "Glob", Count: 1}, all[3])
}

func TestTracker_IgnoreTools(t *testing.T) {
	tr, _ := newTestTracker(t, Config{IgnoreTools: []string{"Todo*", "mcp__*__ping"}})

	assert.True(t, tr.Ignored("TodoWrite"))
	assert.True(t, tr.Ignored("mcp__server__ping"))
	assert.False(t, tr.Ignored("Read"))

	assert.False(t, tr.Detect("t1", "", "TodoWrite", ""))
	assert.False(t, tr.Start("t1"))
	_, ok := tr.Complete("t1", "", false)
	assert.False(t, ok)
	assert.Empty(t, tr.Stats().ByTool)
}

func TestNewTracker_InvalidPattern(t *testing.T) {
	_, err := NewTracker(Config{IgnoreTools: []string{"[unterminated"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unterminated")
}

func TestNewTracker_DefaultCapacity(t *testing.T) {
	tr, err := NewTracker(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, tr.history.Cap())
}

func TestTracker_Attach(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})
	bus := event.NewBus()
	tr.Attach(bus)

	bus.Publish(event.NewToolDetectedEvent("task-1", "tool-1", "Read", `{"path":"x"}`))
	bus.Publish(event.NewToolStartedEvent("task-1", "tool-1"))
	require.Len(t, tr.Active(), 1)
	assert.Equal(t, StatusRunning, tr.Active()[0].Status)

	bus.Publish(event.NewToolCompletedEvent("task-1", "tool-1", "contents", false))
	assert.Empty(t, tr.Active())
	require.Len(t, tr.History(), 1)
	assert.Equal(t, "contents", tr.History()[0].Output)
}

func TestTracker_AttachTwiceReplacesSubscriptions(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})
	bus := event.NewBus()

	tr.Attach(bus)
	tr.Attach(bus)
	assert.Equal(t, 3, bus.SubscriptionCount())

	bus.Publish(event.NewToolDetectedEvent("", "tool-1", "Read", ""))
	bus.Publish(event.NewToolCompletedEvent("", "tool-1", "", false))
	assert.Equal(t, 1, tr.Stats().Succeeded)
}

func TestTracker_Detach(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})
	bus := event.NewBus()
	tr.Attach(bus)
	tr.Detach()

	assert.Equal(t, 0, bus.SubscriptionCount())
	bus.Publish(event.NewToolDetectedEvent("", "tool-1", "Read", ""))
	assert.Empty(t, tr.Active())

	tr.Detach()
}

func TestTracker_ConcurrentUse(t *testing.T) {
	tr, err := NewTracker(Config{Capacity: 20})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := string(rune('A'+g)) + string(rune('a'+i%26)) + string(rune('0'+i/26))
				tr.Detect(id, "", "Read", "")
				tr.Start(id)
				tr.Complete(id, "", i%2 == 0)
				_ = tr.Stats()
			}
		}(g)
	}
	wg.Wait()

	s := tr.Stats()
	assert.Equal(t, 400, s.Completed())
	assert.Equal(t, 200, s.Failed)
	assert.Equal(t, 20, len(tr.History()))
}

func TestTracker_HistoryFollowsCompletionOrder(t *testing.T) {
	const goroutines, perGoroutine = 8, 50
	tr, _ := newTestTracker(t, Config{Capacity: goroutines * perGoroutine})

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range perGoroutine {
				id := fmt.Sprintf("%d-%d", g, i)
				tr.Detect(id, "", "Bash", "")
				tr.Complete(id, "", false)
			}
		}(g)
	}
	wg.Wait()

	history := tr.History()
	require.Len(t, history, goroutines*perGoroutine)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].CompletedAt.Before(history[i].CompletedAt),
			"entry %d completed at %v, before entry %d at %v",
			i, history[i].CompletedAt, i-1, history[i-1].CompletedAt)
	}
}

func TestTracker_Recent(t *testing.T) {
	tr, _ := newTestTracker(t, Config{Capacity: 3})

	assert.Empty(t, tr.Recent(2))
	for _, id := range []string{"a", "b", "c", "d"} {
		tr.Detect(id, "", "Read", "")
		tr.Complete(id, "", false)
	}

	recent := tr.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "d", recent[1].ID)
	assert.Len(t, tr.Recent(10), 3)
}
