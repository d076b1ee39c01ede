package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/config"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/observability"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/pipeline"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

type statusFlags struct {
	role        string
	configPath  string
	runsDir     string
	store       string
	databaseURL string
}

func newStatusCommand() *cobra.Command {
	f := &statusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint and run log accounting for a role",
		Long:  `Reads the role's checkpoint and latest run log without modifying them and reports records, empty responses, gaps and duplicate indices.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, f, os.Getenv)
		},
	}

	cmd.Flags().StringVar(&f.role, "role", "", "Role to inspect: swe or hr (required)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to config.json file")
	cmd.Flags().StringVar(&f.runsDir, "runs-dir", "", "Directory for run logs and checkpoints")
	cmd.Flags().StringVar(&f.store, "store", "", "Storage backend: file or postgres")
	cmd.Flags().StringVar(&f.databaseURL, "db-url", "", "PostgreSQL connection URL (defaults to "+config.EnvDatabaseURL+")")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runStatus(cmd *cobra.Command, f *statusFlags, getenv func(string) string) error {
	role := types.Role(f.role)
	if !role.Valid() {
		return &config.ConfigError{Field: "role", Message: fmt.Sprintf("unknown role %q", f.role)}
	}

	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	if cmd.Flags().Changed("runs-dir") {
		cfg.RunsDir = f.runsDir
	}
	if cmd.Flags().Changed("store") {
		cfg.Store = f.store
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	cfg.ApplyEnv(getenv)
	cfg = cfg.MergeWithDefaults(config.Defaults())

	report, err := pipeline.Status(context.Background(), afero.NewOsFs(), cfg, role)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintStatus(pipeline.StatusView(report))
	return nil
}
