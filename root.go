package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flipscout/config"
)

type options struct {
	configPath string
	regions    []string
	sink       string
	dryRun     bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "flipscout",
		Short:         "Screen fixer-upper listings against nearby sold comps",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "flipscout.toml", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))
	return rootCmd
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(opts.regions) > 0 {
		cfg.Run.RegionCodes = opts.regions
	}
	if opts.sink != "" {
		cfg.Sink.Kind = opts.sink
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newConfigCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Sink.PostgresPassword != "" {
				cfg.Sink.PostgresPassword = "********"
			}
			data, err := cfg.Marshal()
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
