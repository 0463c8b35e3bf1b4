package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchyard/internal/config"
	"github.com/ShayCichocki/switchyard/internal/logging"
)

var (
	configPath string
	verbose    bool
	quiet      bool

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "switchyard",
	Short: "Request orchestrator for multi-agent LLM flows",
	Long: `Switchyard classifies each request, answers it directly or plans it into
a dependency graph of tasks, runs ready tasks concurrently, and synthesizes
the results. Progress streams as step events; runs that need a human
decision suspend and resume later on the same thread.

Configuration is read from ~/.config/switchyard/config.yaml with
project overrides in .switchyard.yaml and SWITCHYARD_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFromPath(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging, logging.Options{
			Verbose: verbose,
			Quiet:   quiet,
		})
		if err != nil && logger == nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("log file disabled")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user and project config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
