package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
)

func TestParse_YAML(t *testing.T) {
	doc := `
task_id: task-9
steps:
  - id: setup
    action: create module
    description: run go mod init
    files: [go.mod]
  - action: add handler
    status: completed
`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "task-9", p.TaskID)
	assert.False(t, p.CreatedAt.IsZero())
	require.Len(t, p.Steps, 2)

	assert.Equal(t, "setup", p.Steps[0].ID)
	assert.Equal(t, []string{"go.mod"}, p.Steps[0].Files)
	assert.Equal(t, agent.StepPending, p.Steps[0].Status)

	assert.Equal(t, "step-2", p.Steps[1].ID)
	assert.Equal(t, agent.StepCompleted, p.Steps[1].Status)
}

func TestParse_JSON(t *testing.T) {
	doc := `{"task_id": "t", "steps": [{"id": "a", "action": "one"}, {"id": "b", "action": "two", "files": ["x.go"]}]}`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "b", p.Steps[1].ID)
	assert.Equal(t, []string{"x.go"}, p.Steps[1].Files)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":       "steps: [",
		"no steps":       "task_id: t\n",
		"duplicate ids":  "steps:\n  - id: a\n  - id: a\n",
		"unknown status": "steps:\n  - id: a\n    status: done\n",
		"null step":      "steps:\n  - null\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrPlanInvalid)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "p.yaml")
	p := &agent.Plan{
		TaskID: "task-1",
		Steps: []*agent.Step{
			{ID: "a", Action: "first", Status: agent.StepCompleted},
			{ID: "b", Action: "second", Description: "multi\nline", Files: []string{"b.go"}, Status: agent.StepFailed},
		},
	}
	require.NoError(t, Save(path, p))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "task-1", loaded.TaskID)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, *p.Steps[0], *loaded.Steps[0])
	assert.Equal(t, *p.Steps[1], *loaded.Steps[1])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	p := &agent.Plan{Steps: []*agent.Step{
		{ID: "a", Status: agent.StepPending},
		{ID: "b", Status: agent.StepInProgress},
		{ID: "c", Status: agent.StepCompleted},
		{ID: "d", Status: agent.StepFailed},
		{ID: "e"},
	}}
	s := Summarize(p)
	assert.Equal(t, Summary{Total: 5, Pending: 2, InProgress: 1, Completed: 1, Failed: 1}, s)
	assert.False(t, s.Done())
}

func TestResume(t *testing.T) {
	p := &agent.Plan{TaskID: "t", Steps: []*agent.Step{
		{ID: "a", Status: agent.StepCompleted},
		{ID: "b", Status: agent.StepFailed},
		{ID: "c", Status: agent.StepInProgress},
		{ID: "d", Status: agent.StepPending},
	}}

	reset, err := Resume(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, reset)
	assert.Equal(t, agent.StepCompleted, p.Steps[0].Status)
	for _, s := range p.Steps[1:] {
		assert.Equal(t, agent.StepPending, s.Status, s.ID)
	}

	reset, err = Resume(p)
	require.NoError(t, err)
	assert.Empty(t, reset)

	reset, err = Resume(nil)
	require.NoError(t, err)
	assert.Nil(t, reset)
}
