package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/kpiboard/internal/adapters/repository"
	"github.com/okian/kpiboard/internal/seed"
	"github.com/okian/kpiboard/pkg/logger"
)

func newSeedCommand() *cobra.Command {
	var path string
	cfg := seed.DefaultConfig(time.Now())

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill a sqlite database with a synthetic snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			snap, err := seed.Generate(ctx, cfg, seed.WithLogger(logger.Named("seed")))
			if err != nil {
				return err
			}

			db, err := repository.OpenDB(path)
			if err != nil {
				return err
			}
			defer db.Close()

			spinner := newSpinner(cmd.ErrOrStderr(), "Writing "+path)
			store := repository.NewSQLiteStore(db, repository.WithLogger(logger.Named("sqlite")))
			err = store.SaveSnapshot(ctx, snap)
			finishBar(spinner)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s: %d users, %d sprints, %d tasks\n",
				path, len(snap.Users), len(snap.Sprints), len(snap.Tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "sqlite", "kpiboard.db", "sqlite database path")
	cmd.Flags().IntVar(&cfg.Users, "users", cfg.Users, "number of users")
	cmd.Flags().IntVar(&cfg.Sprints, "sprints", cfg.Sprints, "number of sprints")
	cmd.Flags().IntVar(&cfg.Tasks, "tasks", cfg.Tasks, "number of tasks")
	cmd.Flags().IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "percentage of tasks left in the backlog")
	cmd.Flags().DurationVar(&cfg.Length, "sprint-length", cfg.Length, "length of each sprint")

	return cmd
}
