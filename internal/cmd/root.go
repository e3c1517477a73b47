package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/config"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/metrics"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/orchestrator"
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Coordinate planner, coder and verifier agents",
	Long: `Quorum drives external coding agents as child processes.

It can run a single agent, ask a planner to break an objective into steps,
execute a plan with coder/verifier pairs and bounded retries, and replay
structured multi-agent debates that end in consensus or escalation.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/quorum/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-dir", "", "write logs to quorum.log in this directory instead of stderr")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	bindFlags()
}

// bindFlags ties the global flags to their config keys.
func bindFlags() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	_ = viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/quorum")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., QUORUM_RETRY_MAX_ATTEMPTS for retry.max_attempts
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// app is everything a command that drives agents needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	orch   *orchestrator.Orchestrator

	stopMetrics context.CancelFunc
	metricsDone chan error
}

// newApp loads the configuration and builds the orchestrator. The metrics
// endpoint is started when metrics are enabled or --metrics-addr is set.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewWriterLogger(cmd.ErrOrStderr(), cfg.Logging.Level)
	if cfg.Logging.Dir != "" {
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	a := &app{cfg: cfg, logger: logger}
	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}

	if cfg.Metrics.Enabled || cmd.Flags().Changed("metrics-addr") {
		reg := prometheus.NewRegistry()
		opts = append(opts, orchestrator.WithMetrics(metrics.New(reg)))

		srv, err := metrics.Listen(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() { a.metricsDone <- srv.Serve(ctx) }()
	}

	orch, err := orchestrator.New(cfg, opts...)
	if err != nil {
		a.shutdownMetrics()
		_ = logger.Close()
		return nil, err
	}
	a.orch = orch

	config.Watch(func(updated *config.Config) {
		logger.SetLevel(updated.Logging.Level)
		logger.Info("configuration reloaded", "log_level", updated.Logging.Level)
	}, func(err error) {
		logger.Warn("ignoring invalid configuration change", "error", err)
	})

	return a, nil
}

func (a *app) shutdownMetrics() {
	if a.stopMetrics == nil {
		return
	}
	a.stopMetrics()
	<-a.metricsDone
	a.stopMetrics = nil
}

// Close disposes the orchestrator, stops the metrics endpoint and flushes logs.
func (a *app) Close() {
	if a.orch != nil {
		if err := a.orch.Dispose(context.Background()); err != nil {
			a.logger.Warn("dispose failed", "error", err)
		}
	}
	a.shutdownMetrics()
	_ = a.logger.Close()
}
