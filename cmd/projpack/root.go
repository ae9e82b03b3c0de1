package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/projpack/internal/config"
)

// cliContext carries the flags shared by every subcommand.
type cliContext struct {
	configPath string
	verbose    bool
}

func (c *cliContext) config() (config.Config, error) {
	path := c.configPath
	if path == "" {
		path = os.Getenv("PROJPACK_CONFIG")
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *cliContext) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCommand() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "projpack",
		Short:         "Package a hosted interactive project into a zip archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Settings file path (TOML)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log every step to stderr")

	rootCmd.AddCommand(newPackCommand(ctx))
	return rootCmd
}
