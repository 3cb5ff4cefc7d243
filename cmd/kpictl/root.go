package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/kpiboard/pkg/logger"
)

func newRootCommand() *cobra.Command {
	var (
		verbose bool
		format  string
	)

	root := &cobra.Command{
		Use:   "kpictl",
		Short: "Sprint KPI reports from the command line",
		Long: `kpictl aggregates tasks, users and sprints into KPI views.

Commands:
  report    Print KPI tables or a text digest, optionally export xlsx
  seed      Fill a sqlite database with a synthetic snapshot`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithFormat(format, cmd.ErrOrStderr()); err != nil {
				return err
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			return logger.SetLevelString(level)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&format, "log-format", logger.FormatText, "log format: text or json")

	root.AddCommand(newReportCommand())
	root.AddCommand(newSeedCommand())
	return root
}
