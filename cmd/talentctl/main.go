// Package main provides talentctl, a terminal client for the campus talent
// marketplace.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/app"
	"github.com/spec-kit/talent-client/internal/config"
	"github.com/spec-kit/talent-client/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "talentctl",
	Short: "Campus talent marketplace client",
	Long:  "talentctl browses jobs, students and services, applies to jobs and reads messages against the marketplace backend.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if rt != nil {
			rt.Close()
			_ = rt.Logger.Sync()
		}
	},
	SilenceUsage: true,
}

var (
	rt       *app.Runtime
	logLevel string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	} else if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logger.Level = "warn"
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	built, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	if _, err := built.Marketplace.Session.Restore(cmd.Context()); err != nil {
		logger.Warn("could not restore session", zap.Error(err))
	}
	rt = built
	return nil
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
