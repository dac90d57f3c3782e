package main

import (
	"github.com/spf13/cobra"

	"github.com/llehouerou/lineup/internal/config"
	"github.com/llehouerou/lineup/internal/log"
)

type rootOptions struct {
	configFiles []string
	logLevel    string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lineup",
		Short:         "Queue reconciliation over a simulated playback engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var (
				cfg *config.Config
				err error
			)
			if len(opts.configFiles) > 0 {
				cfg, err = config.LoadFiles(opts.configFiles...)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if opts.logLevel != "" {
				level = opts.logLevel
			}
			log.Configure(log.Config{Level: level, Console: cfg.Log.Console})
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringSliceVarP(&opts.configFiles, "config", "c", nil, "config file (repeatable, last wins)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(newPlayCmd(opts), newLastfmCmd(opts))
	return cmd
}
