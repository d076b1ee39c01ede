// Package main provides the entry point for the hiring-bias audit runner.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/runner"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// exitInterrupted is the conventional status for a run stopped by SIGINT
const exitInterrupted = 130

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "audit_runner",
		Short: "Resumable batch runner for LLM hiring-bias audits",
		Long: `audit_runner sends every (candidate variant, prompt style) scenario of a role to a
Gemini model, rotating API keys in fixed blocks, and logs each answer to a durable run log.
Interrupted runs resume where the checkpoint left off.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	for _, role := range types.Roles {
		root.AddCommand(newRoleCommand(role))
	}
	root.AddCommand(newStatusCommand())
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, runner.ErrInterrupted) {
			fmt.Fprintf(os.Stderr, "Stopped: %v\nRe-run the same command to resume from the checkpoint.\n", err)
			os.Exit(exitInterrupted)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
