package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty command", func(c *Config) { c.Agent.Command = "  " }, "agent.command"},
		{"zero timeout", func(c *Config) { c.Agent.TimeoutSeconds = 0 }, "agent.timeout_seconds"},
		{"negative stderr", func(c *Config) { c.Agent.MaxStderrBytes = -1 }, "agent.max_stderr_bytes"},
		{"unknown role prompt", func(c *Config) { c.Agent.SystemPrompts = map[string]string{"reviewer": "x"} }, "agent.system_prompts"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"bad backoff", func(c *Config) { c.Retry.Backoff = "random" }, "retry.backoff"},
		{"negative base delay", func(c *Config) { c.Retry.BaseDelayMs = -5; c.Retry.MaxDelayMs = 10 }, "retry.base_delay_ms"},
		{"cap below base", func(c *Config) { c.Retry.MaxDelayMs = 10 }, "retry.max_delay_ms"},
		{"empty pattern", func(c *Config) { c.Retry.RetryablePatterns = []string{"ok", ""} }, "retry.retryable_patterns[1]"},
		{"empty marker", func(c *Config) { c.Plan.SuccessMarker = "" }, "plan.success_marker"},
		{"zero round timeout", func(c *Config) { c.Debate.RoundTimeoutSeconds = 0 }, "debate.round_timeout_seconds"},
		{"threshold above one", func(c *Config) { c.Debate.ConsensusThreshold = 1.01 }, "debate.consensus_threshold"},
		{"threshold zero", func(c *Config) { c.Debate.ConsensusThreshold = 0 }, "debate.consensus_threshold"},
		{"zero cycles", func(c *Config) { c.Debate.MaxCycles = 0 }, "debate.max_cycles"},
		{"zero capacity", func(c *Config) { c.Activity.Capacity = 0 }, "activity.capacity"},
		{"bad glob", func(c *Config) { c.Activity.IgnoreTools = []string{"[unterminated"} }, "activity.ignore_tools[0]"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if assert.Len(t, errs, 1, "errors: %v", errs) {
				assert.Equal(t, tt.field, errs[0].Field)
			}
		})
	}
}

func TestValidate_InvalidRegexpIsAccepted(t *testing.T) {
	cfg := Default()
	cfg.Retry.RetryablePatterns = []string{"rate limit (", "5\\d\\d"}
	assert.Empty(t, cfg.Validate())
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "", ValidationErrors(nil).Error())

	one := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	assert.Equal(t, "a: bad (got: 1)", one.Error())

	two := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}, {Field: "b", Value: "x", Message: "worse"}}
	assert.Equal(t, "2 validation errors:\n  1. a: bad (got: 1)\n  2. b: worse (got: x)\n", two.Error())
}
