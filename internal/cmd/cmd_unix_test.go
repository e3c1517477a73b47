//go:build unix

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/plan"
)

// fakeAgent answers verifier prompts with the success marker. Coders edit a
// file through one tool call first. Everything else gets a fixed line of text.
const fakeAgent = `input=$(cat)
case "$input" in
*ROLE:verifier*)
printf '%s\n' '{"type":"assistant","message":{"content":"VERIFICATION_PASSED"}}'
;;
*ROLE:coder*)
printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_1","name":"Edit","input":{"path":"main.go"}}]}}'
printf '%s\n' '{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"ok"}]}}'
printf '%s\n' '{"type":"assistant","message":{"content":"hello from agent"}}'
;;
*)
printf '%s\n' '{"type":"assistant","message":{"content":"hello from agent"}}'
;;
esac
`

// setupFakeAgent writes a config file that runs fakeAgent through sh.
func setupFakeAgent(t *testing.T) {
	t.Helper()
	dir := setupTestEnvironment(t)

	cfg := map[string]any{
		"agent": map[string]any{
			"command":         "sh",
			"args":            []string{"-c", fakeAgent},
			"timeout_seconds": 10,
			"system_prompts": map[string]string{
				"planner":  "ROLE:planner",
				"coder":    "ROLE:coder",
				"verifier": "ROLE:verifier",
			},
		},
		"retry": map[string]any{"max_attempts": 1},
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644))
}

func TestRunCommand_StreamsAgentText(t *testing.T) {
	setupFakeAgent(t)

	output, err := executeCommand(rootCmd, "run", "coder", "say", "hello")
	require.NoError(t, err)
	assert.Contains(t, output, "hello from agent")
	assert.Contains(t, output, "coder finished")
	assert.Contains(t, output, "1 tool calls (1 ok, 0 failed)")
	assert.Contains(t, output, "most used: Edit x1")
}

func TestRunCommand_JSON(t *testing.T) {
	setupFakeAgent(t)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"run", "--json", "--task-id", "task-7", "verifier", "check"})
	require.NoError(t, rootCmd.Execute())

	var resp agent.Response
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp), stdout.String())
	assert.Equal(t, "task-7", resp.TaskID)
	assert.Equal(t, agent.RoleVerifier, resp.Role)
	assert.True(t, resp.Success)
	assert.Equal(t, "VERIFICATION_PASSED", resp.Content)
}

func TestExecuteCommand_SavesProgress(t *testing.T) {
	setupFakeAgent(t)

	path := writeFile(t, "plan.yaml", `task_id: task-9
steps:
  - id: s1
    action: add the flag
  - action: document it
`)

	output, err := executeCommand(rootCmd, "execute", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Plan task-9 (2 steps)")
	assert.Contains(t, output, "2/2 steps completed, 0 failed")
	assert.Contains(t, output, "most used: Edit x2")

	p, err := plan.Load(path)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "step-2", p.Steps[1].ID)
	for _, s := range p.Steps {
		assert.Equal(t, agent.StepCompleted, s.Status, s.ID)
	}
}

func TestExecuteCommand_NoSave(t *testing.T) {
	setupFakeAgent(t)

	const doc = "task_id: task-10\nsteps:\n  - id: s1\n    action: only step\n"
	path := writeFile(t, "plan.yaml", doc)

	_, err := executeCommand(rootCmd, "execute", "--no-save", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
}

func TestExecuteCommand_RetriesFailedSteps(t *testing.T) {
	const doc = `task_id: task-11
steps:
  - id: s1
    action: add the flag
    status: completed
  - id: s2
    action: document it
    status: failed
  - id: s3
    action: wire it up
    status: in_progress
`

	t.Run("skip failed", func(t *testing.T) {
		setupFakeAgent(t)
		path := writeFile(t, "plan.yaml", doc)

		output, err := executeCommand(rootCmd, "execute", "--skip-failed", path)
		require.Error(t, err)
		assert.Contains(t, output, "1/3 steps completed, 2 failed")

		p, err := plan.Load(path)
		require.NoError(t, err)
		assert.Equal(t, agent.StepFailed, p.Steps[1].Status)
		assert.Equal(t, agent.StepFailed, p.Steps[2].Status)
	})

	t.Run("default retries", func(t *testing.T) {
		setupFakeAgent(t)
		path := writeFile(t, "plan.yaml", doc)

		output, err := executeCommand(rootCmd, "execute", path)
		require.NoError(t, err)
		assert.Contains(t, output, "Retrying steps: s2, s3")
		assert.Contains(t, output, "3/3 steps completed, 0 failed")
	})
}
