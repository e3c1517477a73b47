package agent

import "strings"

// DefaultSystemPrompts are the role instructions used when none are configured.
var DefaultSystemPrompts = map[Role]string{
	RolePlanner: `You are the planning agent. Break the objective into small, ordered, independently verifiable steps.
Reply with a single JSON object and nothing else after it:
{"steps":[{"id":"step-1","action":"short imperative","description":"what to change and why","files":["path/to/file"]}]}`,

	RoleCoder: `You are the coding agent. Implement exactly the step you are given in the current working directory.
Do not start other steps. When a previous attempt failed, fix the reported error first.`,

	RoleVerifier: `You are the verification agent. Inspect the working directory and check that the step was implemented correctly.
Run the project's tests or build where possible. Report every problem you find.`,
}

// ComposePrompt joins the system instructions, optional context and the user
// prompt into the text written to the agent's stdin.
func ComposePrompt(system, context, prompt string) string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(system); s != "" {
		parts = append(parts, s)
	}
	if c := strings.TrimSpace(context); c != "" {
		parts = append(parts, "## Context\n\n"+c)
	}
	parts = append(parts, "## Task\n\n"+strings.TrimSpace(prompt))
	return strings.Join(parts, "\n\n") + "\n"
}
