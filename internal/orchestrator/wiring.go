package orchestrator

import (
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/config"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/debate"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/plan"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/retry"
)

// AgentConfig translates the agent section of cfg. Unknown role keys in
// system_prompts are skipped; Validate reports them.
func AgentConfig(cfg *config.Config) agent.Config {
	out := agent.Config{
		Command:        cfg.Agent.Command,
		Args:           cfg.Agent.Args,
		Timeout:        cfg.Agent.Timeout(),
		MaxStderrBytes: cfg.Agent.MaxStderrBytes,
	}
	if len(cfg.Agent.SystemPrompts) > 0 {
		out.SystemPrompts = make(map[agent.Role]string, len(cfg.Agent.SystemPrompts))
		for name, prompt := range cfg.Agent.SystemPrompts {
			role, err := agent.ParseRole(name)
			if err != nil {
				continue
			}
			out.SystemPrompts[role] = prompt
		}
	}
	return out
}

// RetryPolicy translates the retry section of cfg.
func RetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		Backoff:           retry.BackoffType(cfg.Retry.Backoff),
		BaseDelay:         cfg.Retry.BaseDelay(),
		MaxDelay:          cfg.Retry.MaxDelay(),
		RetryablePatterns: cfg.Retry.RetryablePatterns,
		Jitter:            cfg.Retry.Jitter,
	}
}

// PlanConfig translates the plan and retry sections of cfg.
func PlanConfig(cfg *config.Config) plan.Config {
	return plan.Config{
		SuccessMarker: cfg.Plan.SuccessMarker,
		Policy:        RetryPolicy(cfg),
	}
}

// DebateConfig translates the debate section of cfg.
func DebateConfig(cfg *config.Config) debate.Config {
	return debate.Config{
		RoundTimeout:       cfg.Debate.RoundTimeout(),
		ConsensusThreshold: cfg.Debate.ConsensusThreshold,
		MaxCycles:          cfg.Debate.MaxCycles,
		AllowModifications: cfg.Debate.AllowModifications,
	}
}
