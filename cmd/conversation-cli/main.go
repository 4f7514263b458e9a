package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/infrastructure/logger"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "conversation-cli",
	Short: "Operator tool for the conversation API",
	Long: `conversation-cli runs maintenance tasks against the same configuration as the server.

Examples:
  # Check the environment before a deploy
  conversation-cli config validate
  conversation-cli config show --format yaml

  # Database maintenance
  conversation-cli migrate
  conversation-cli reconcile --batch 500`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)

	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env", "../.env"}, "Env files loaded before reading the environment")
}

// loadConfig loads the env files named by --env-file and parses the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	paths, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}
	return config.Load()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg).With().Str("component", "cli").Logger()
}
