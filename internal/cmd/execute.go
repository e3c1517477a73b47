package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/plan"
)

var executeCmd = &cobra.Command{
	Use:   "execute <plan-file>",
	Short: "Execute a saved plan",
	Long: `Execute a plan file step by step with coder/verifier pairs.

Completed steps are skipped. Failed steps, and steps an interrupted run
left in progress, are reset and run again, so running the same file again
resumes where the previous run stopped. With --skip-failed they are left
failed and only pending steps run. Step statuses are written back to the
file unless --no-save is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

var (
	executeWorkDir    string // Working directory for the agents
	executeNoSave     bool   // Leave the plan file untouched
	executeSkipFailed bool   // Do not retry failed steps
)

func init() {
	executeCmd.Flags().StringVarP(&executeWorkDir, "workdir", "w", "", "working directory for the agents")
	executeCmd.Flags().BoolVar(&executeNoSave, "no-save", false, "do not write step statuses back to the plan file")
	executeCmd.Flags().BoolVar(&executeSkipFailed, "skip-failed", false, "leave failed steps failed instead of running them again")
	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	path := args[0]
	p, err := plan.Load(path)
	if err != nil {
		return err
	}
	if p.TaskID == "" {
		p.TaskID = newTaskID()
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := newPrinter(cmd.OutOrStdout())
	if !executeSkipFailed {
		reset, err := plan.Resume(p)
		if err != nil {
			return err
		}
		if len(reset) > 0 {
			out.Muted("Retrying steps: %s", strings.Join(reset, ", "))
		}
	}
	printPlan(out, p)

	savePath := path
	if executeNoSave {
		savePath = ""
	}
	return executeAndReport(cmd, a, p, executeWorkDir, savePath)
}
