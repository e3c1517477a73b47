package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "retry.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackoffTypes returns the list of valid retry backoff strategies
func ValidBackoffTypes() []string {
	return []string{"exponential", "linear", "fixed"}
}

// ValidRoles returns the agent roles that accept a system prompt override
func ValidRoles() []string {
	return []string{"planner", "coder", "verifier"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validatePlan()...)
	errors = append(errors, c.validateDebate()...)
	errors = append(errors, c.validateActivity()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Agent.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.command",
			Value:   c.Agent.Command,
			Message: "must not be empty",
		})
	}

	if c.Agent.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.timeout_seconds",
			Value:   c.Agent.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	if c.Agent.MaxStderrBytes < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.max_stderr_bytes",
			Value:   c.Agent.MaxStderrBytes,
			Message: "must be non-negative",
		})
	}

	for role := range c.Agent.SystemPrompts {
		if !slices.Contains(ValidRoles(), role) {
			errors = append(errors, ValidationError{
				Field:   "agent.system_prompts",
				Value:   role,
				Message: fmt.Sprintf("unknown role, must be one of: %s", strings.Join(ValidRoles(), ", ")),
			})
		}
	}

	return errors
}

func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: "must be at least 1",
		})
	}

	if !slices.Contains(ValidBackoffTypes(), c.Retry.Backoff) {
		errors = append(errors, ValidationError{
			Field:   "retry.backoff",
			Value:   c.Retry.Backoff,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackoffTypes(), ", ")),
		})
	}

	if c.Retry.BaseDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.base_delay_ms",
			Value:   c.Retry.BaseDelayMs,
			Message: "must be non-negative",
		})
	}

	if c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_ms",
			Value:   c.Retry.MaxDelayMs,
			Message: fmt.Sprintf("must be at least base_delay_ms (%d)", c.Retry.BaseDelayMs),
		})
	}

	// Patterns that do not compile are matched as plain substrings, so only
	// empty entries are rejected.
	for i, p := range c.Retry.RetryablePatterns {
		if strings.TrimSpace(p) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("retry.retryable_patterns[%d]", i),
				Value:   p,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validatePlan() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Plan.SuccessMarker) == "" {
		errors = append(errors, ValidationError{
			Field:   "plan.success_marker",
			Value:   c.Plan.SuccessMarker,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateDebate() []ValidationError {
	var errors []ValidationError

	if c.Debate.RoundTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "debate.round_timeout_seconds",
			Value:   c.Debate.RoundTimeoutSeconds,
			Message: "must be positive",
		})
	}

	if c.Debate.ConsensusThreshold <= 0 || c.Debate.ConsensusThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "debate.consensus_threshold",
			Value:   c.Debate.ConsensusThreshold,
			Message: "must be in (0, 1]",
		})
	}

	if c.Debate.MaxCycles < 1 {
		errors = append(errors, ValidationError{
			Field:   "debate.max_cycles",
			Value:   c.Debate.MaxCycles,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateActivity() []ValidationError {
	var errors []ValidationError

	if c.Activity.Capacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "activity.capacity",
			Value:   c.Activity.Capacity,
			Message: "must be at least 1",
		})
	}

	for i, pattern := range c.Activity.IgnoreTools {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("activity.ignore_tools[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		errors = append(errors, ValidationError{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be set when metrics are enabled",
		})
	}

	return errors
}
