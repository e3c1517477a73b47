package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
)

var runCmd = &cobra.Command{
	Use:   "run <role> <prompt>",
	Short: "Run a single agent",
	Long: `Run one agent invocation and stream its text to stdout.

Role is one of: planner, coder, verifier. The prompt is every remaining
argument joined with spaces.

Examples:
  quorum run coder "add a --verbose flag to the CLI"
  quorum run verifier --context "$(git diff)" "check the change compiles"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

var (
	runTaskID  string // Task id for the invocation
	runWorkDir string // Working directory for the agent
	runContext string // Extra context placed before the prompt
	runJSON    bool   // Print the final response as JSON
)

func init() {
	runCmd.Flags().StringVar(&runTaskID, "task-id", "", "task id (default: a new random id)")
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "w", "", "working directory for the agent")
	runCmd.Flags().StringVar(&runContext, "context", "", "extra context placed between the instructions and the prompt")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the final response as JSON instead of streaming text")
	rootCmd.AddCommand(runCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	role, err := agent.ParseRole(args[0])
	if err != nil {
		return err
	}
	prompt := strings.Join(args[1:], " ")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := newPrinter(cmd.OutOrStdout())
	taskID := runTaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	if !runJSON {
		sub := a.orch.Bus().Subscribe(event.TypeAgentChunk, func(e event.Event) {
			if chunk, ok := e.(event.ChunkEvent); ok && chunk.TaskID == taskID {
				out.Raw(chunk.Content)
			}
		})
		defer a.orch.Bus().Unsubscribe(sub)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	resp := a.orch.RunAgent(ctx, agent.Request{
		TaskID:  taskID,
		Role:    role,
		Prompt:  prompt,
		Context: runContext,
		WorkDir: runWorkDir,
	})

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
	} else {
		out.Line("")
		if resp.Success {
			out.Status(true, "%s finished", role)
		}
		printActivity(out, a.orch.Activity())
	}

	if !resp.Success {
		return fmt.Errorf("%s failed: %s", role, resp.Error)
	}
	return nil
}
