// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the copilot CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/grounded-copilot/internal/config"
	"github.com/pdiddy/grounded-copilot/internal/secrets"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded before any subcommand runs.
var cfg *types.Config

// rootCmd is the base command for the copilot CLI.
var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Answer questions from indexed documents with verified citations",
	Long: `copilot answers questions from a fixed document corpus. Every answer is
drafted from retrieved evidence and checked so that each citation tag
matches a chunk that was actually retrieved. Answers that cannot be
grounded are replaced with a fallback after a bounded number of retries.

Build the evidence index with "copilot index ingest", then ask questions
with "copilot ask" or serve them over HTTP with "copilot serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := config.InitLogger(loaded.Log); err != nil {
			return err
		}

		secretsDir, _ := cmd.Flags().GetString("secrets")
		s, err := secrets.Load(secretsDir)
		if err != nil {
			return err
		}
		if used := secrets.Apply(loaded, s); len(used) > 0 {
			zap.L().Debug("loaded secrets", zap.Strings("keys", used))
		}

		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./copilot.yaml or ~/.config/copilot/copilot.yaml)")
	rootCmd.PersistentFlags().String("secrets", secrets.DefaultDir, "directory of secret files")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
