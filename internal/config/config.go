package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppName is used for the config directory and the environment prefix.
const AppName = "quorum"

// EnvPrefix is the prefix for environment overrides, e.g. QUORUM_AGENT_COMMAND.
const EnvPrefix = "QUORUM"

// Config represents the complete quorum configuration
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Plan     PlanConfig     `mapstructure:"plan" yaml:"plan"`
	Debate   DebateConfig   `mapstructure:"debate" yaml:"debate"`
	Activity ActivityConfig `mapstructure:"activity" yaml:"activity"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// AgentConfig controls how agent processes are spawned
type AgentConfig struct {
	// Command is the agent executable (default: "claude")
	Command string `mapstructure:"command" yaml:"command"`
	// Args are passed to Command on every invocation. The prompt is written to stdin.
	Args []string `mapstructure:"args" yaml:"args"`
	// TimeoutSeconds forcibly terminates an agent that has not exited (default: 300)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// MaxStderrBytes bounds the diagnostic output kept for error reporting
	MaxStderrBytes int `mapstructure:"max_stderr_bytes" yaml:"max_stderr_bytes"`
	// SystemPrompts overrides the built-in instructions per role
	// Keys: "planner", "coder", "verifier"
	SystemPrompts map[string]string `mapstructure:"system_prompts" yaml:"system_prompts,omitempty"`
}

// RetryConfig is the default retry policy for plan steps
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// Backoff is one of: "exponential", "linear", "fixed"
	Backoff     string `mapstructure:"backoff" yaml:"backoff"`
	BaseDelayMs int    `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMs  int    `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	Jitter      bool   `mapstructure:"jitter" yaml:"jitter"`
	// RetryablePatterns restricts retries to errors matching one of the
	// patterns (regular expressions, or plain substrings). Empty retries all errors.
	RetryablePatterns []string `mapstructure:"retryable_patterns" yaml:"retryable_patterns"`
}

// PlanConfig controls plan execution
type PlanConfig struct {
	// SuccessMarker must appear in the verifier's output for a step to pass
	SuccessMarker string `mapstructure:"success_marker" yaml:"success_marker"`
}

// DebateConfig controls the debate protocol
type DebateConfig struct {
	// RoundTimeoutSeconds closes a round that is still open (default: 300)
	RoundTimeoutSeconds int `mapstructure:"round_timeout_seconds" yaml:"round_timeout_seconds"`
	// ConsensusThreshold is the weighted vote share a proposal needs to win (default: 2/3)
	ConsensusThreshold float64 `mapstructure:"consensus_threshold" yaml:"consensus_threshold"`
	// MaxCycles is the number of propose/critique/defend/vote cycles before escalation
	MaxCycles int `mapstructure:"max_cycles" yaml:"max_cycles"`
	// AllowModifications lets authors replace their proposal text while defending
	AllowModifications bool `mapstructure:"allow_modifications" yaml:"allow_modifications"`
}

// ActivityConfig controls tool activity tracking
type ActivityConfig struct {
	// Capacity is the number of completed invocations kept in history
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
	// IgnoreTools are glob patterns of tool names that are not tracked
	IgnoreTools []string `mapstructure:"ignore_tools" yaml:"ignore_tools"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where quorum.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the size at which the log file is rotated (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Addr is the listen address for /metrics (default: ":9464")
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Command:        "claude",
			Args:           []string{"--print", "--output-format", "stream-json", "--verbose"},
			TimeoutSeconds: 300,
			MaxStderrBytes: 64 * 1024,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			Backoff:           "exponential",
			BaseDelayMs:       1000,
			MaxDelayMs:        30000,
			Jitter:            true,
			RetryablePatterns: []string{},
		},
		Plan: PlanConfig{
			SuccessMarker: "VERIFICATION_PASSED",
		},
		Debate: DebateConfig{
			RoundTimeoutSeconds: 300,
			ConsensusThreshold:  2.0 / 3.0,
			MaxCycles:           3,
			AllowModifications:  true,
		},
		Activity: ActivityConfig{
			Capacity:    100,
			IgnoreTools: []string{},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// Timeout returns the agent timeout as a time.Duration
func (c *AgentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BaseDelay returns the base backoff delay as a time.Duration
func (c *RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff cap as a time.Duration
func (c *RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// RoundTimeout returns the debate round timeout as a time.Duration
func (c *DebateConfig) RoundTimeout() time.Duration {
	return time.Duration(c.RoundTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Agent defaults
	viper.SetDefault("agent.command", defaults.Agent.Command)
	viper.SetDefault("agent.args", defaults.Agent.Args)
	viper.SetDefault("agent.timeout_seconds", defaults.Agent.TimeoutSeconds)
	viper.SetDefault("agent.max_stderr_bytes", defaults.Agent.MaxStderrBytes)
	viper.SetDefault("agent.system_prompts", map[string]string{})

	// Retry defaults
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.backoff", defaults.Retry.Backoff)
	viper.SetDefault("retry.base_delay_ms", defaults.Retry.BaseDelayMs)
	viper.SetDefault("retry.max_delay_ms", defaults.Retry.MaxDelayMs)
	viper.SetDefault("retry.jitter", defaults.Retry.Jitter)
	viper.SetDefault("retry.retryable_patterns", defaults.Retry.RetryablePatterns)

	// Plan defaults
	viper.SetDefault("plan.success_marker", defaults.Plan.SuccessMarker)

	// Debate defaults
	viper.SetDefault("debate.round_timeout_seconds", defaults.Debate.RoundTimeoutSeconds)
	viper.SetDefault("debate.consensus_threshold", defaults.Debate.ConsensusThreshold)
	viper.SetDefault("debate.max_cycles", defaults.Debate.MaxCycles)
	viper.SetDefault("debate.allow_modifications", defaults.Debate.AllowModifications)

	// Activity defaults
	viper.SetDefault("activity.capacity", defaults.Activity.Capacity)
	viper.SetDefault("activity.ignore_tools", defaults.Activity.IgnoreTools)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

const fileHeader = `# quorum configuration
# Every key can also be set through the environment, e.g.
#   QUORUM_AGENT_COMMAND=claude
#   QUORUM_RETRY_MAX_ATTEMPTS=5
`

// Marshal renders cfg as a YAML config file.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
