package main

import (
	"fmt"
	"os"

	"github.com/heimdex/heimdex-shorts/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configPath string
	cfg        *config.EnvConfig
}

// config loads configuration once per invocation. --config wins over
// SHORTS_CONFIG.
func (c *commandContext) config() (*config.EnvConfig, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := c.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "shorts",
		Short:         "Plan, cut and publish short clips from long videos",
		Version:       fmt.Sprintf("%s (%s, built %s)", config.Version, config.GitCommit, config.BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal.
			_ = godotenv.Load()
			_, err := ctx.config()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (TOML)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}
