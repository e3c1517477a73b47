package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan <objective>",
	Short: "Ask a planner agent to break an objective into steps",
	Long: `Run a planner agent and print the plan it produces.

With --output the plan is saved as YAML so it can be reviewed, edited and
run later with 'quorum execute'. With --execute the plan runs immediately.

Examples:
  quorum plan "add pagination to the users endpoint" -o plan.yaml
  quorum plan --execute "fix the flaky cache test"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

var (
	planOutput  string // Where to save the plan
	planWorkDir string // Working directory for the agents
	planExecute bool   // Execute the plan right away
)

func init() {
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "save the plan to this YAML file")
	planCmd.Flags().StringVarP(&planWorkDir, "workdir", "w", "", "working directory for the agents")
	planCmd.Flags().BoolVar(&planExecute, "execute", false, "execute the plan after creating it")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	objective := strings.Join(args, " ")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	task, err := a.orch.CreateTask(objective)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := newPrinter(cmd.OutOrStdout())
	p, resp, err := a.orch.Plan(ctx, task.ID, objective, planWorkDir)
	if err != nil {
		if resp != nil && resp.Content != "" {
			out.Muted("%s", strings.TrimSpace(resp.Content))
		}
		return err
	}

	printPlan(out, p)

	if planOutput != "" {
		if err := plan.Save(planOutput, p); err != nil {
			return err
		}
		out.Status(true, "Plan saved to %s", planOutput)
	}

	if !planExecute {
		return nil
	}
	out.Line("")
	return executeAndReport(cmd, a, p, planWorkDir, planOutput)
}

func printPlan(out *printer, p *agent.Plan) {
	out.Title("Plan %s (%d steps)", p.TaskID, len(p.Steps))
	for i, s := range p.Steps {
		out.Line("%2d. [%s] %s: %s", i+1, s.Status, s.ID, s.Action)
		if s.Description != "" {
			out.Muted("    %s", s.Description)
		}
		if len(s.Files) > 0 {
			out.Muted("    files: %s", strings.Join(s.Files, ", "))
		}
	}
}

// newTaskID is used when a loaded plan file carries no task id.
func newTaskID() string {
	return uuid.NewString()
}

// executeAndReport runs p and prints one line per step. When savePath is set
// the updated step statuses are written back so a rerun resumes.
func executeAndReport(cmd *cobra.Command, a *app, p *agent.Plan, workDir, savePath string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := newPrinter(cmd.OutOrStdout())
	responses, execErr := a.orch.ExecutePlan(ctx, p, workDir)

	if savePath != "" {
		if err := plan.Save(savePath, p); err != nil {
			out.Error("could not save plan progress", err)
		}
	}

	out.Heading("Results")
	for _, s := range p.Steps {
		out.Status(s.Status == agent.StepCompleted, "%s: %s (%s)", s.ID, s.Action, s.Status)
	}
	for _, r := range responses {
		if !r.Success {
			out.Error("  "+string(r.Role), r.Err)
		}
	}

	printActivity(out, a.orch.Activity())

	sum := plan.Summarize(p)
	out.Line("")
	out.Line("%d/%d steps completed, %d failed", sum.Completed, sum.Total, sum.Failed)

	if execErr != nil {
		return execErr
	}
	if sum.Completed < sum.Total {
		return fmt.Errorf("%d of %d steps did not complete", sum.Total-sum.Completed, sum.Total)
	}
	return nil
}
