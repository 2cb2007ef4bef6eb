package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/opd-ai/go-sonic/internal/subsonic"
	"github.com/opd-ai/go-sonic/pkg/config"
)

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	}))
}

var rootCmd = &cobra.Command{
	Use:           "go-sonic",
	Short:         "Subsonic client for now playing, downloads and segmented video",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every subcommand needs.
type app struct {
	config *config.Config
	logger *slog.Logger
	client *subsonic.Client
}

// setup loads configuration, builds the logger and opens a session.
func setup(cmd *cobra.Command) (*app, error) {
	path := lo.Must(cmd.Flags().GetString("config"))
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level := lo.Must(cmd.Flags().GetString("log-level")); level != "" {
		cfg.Logging.Level = level
	}

	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	client, err := subsonic.New(&cfg.Subsonic, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create subsonic client: %w", err)
	}

	return &app{config: cfg, logger: logger, client: client}, nil
}
