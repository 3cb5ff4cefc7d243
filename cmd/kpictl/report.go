package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	app "github.com/okian/kpiboard/internal/app"
	"github.com/okian/kpiboard/internal/config"
	"github.com/okian/kpiboard/internal/domain/kpi"
	"github.com/okian/kpiboard/internal/report"
	"github.com/okian/kpiboard/pkg/logger"
)

// Output formats accepted by --format.
const (
	formatTables = "tables"
	formatDigest = "digest"
	formatPrompt = "prompt"
)

const dateLayout = "2006-01-02"

type reportOptions struct {
	source     string
	trackerURL string
	sqlitePath string
	locale     string
	format     string
	xlsx       string
	at         string
	timeout    time.Duration
}

func newReportCommand() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print KPI views for the current data",
		Long: `Loads tasks, users and sprints from the tracker or a sqlite database,
aggregates them and prints the result. Settings default to the KPI_
environment and the file named by KPI_CONFIG; flags override both.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "data source: http or sqlite")
	cmd.Flags().StringVar(&opts.trackerURL, "tracker-url", "", "tracker base URL")
	cmd.Flags().StringVar(&opts.sqlitePath, "sqlite", "", "sqlite database path")
	cmd.Flags().StringVar(&opts.locale, "locale", "", "locale used to order sprint names")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTables, "output: tables, digest or prompt")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "also write an xlsx workbook to this path")
	cmd.Flags().StringVar(&opts.at, "at", "", "evaluate the current sprint at this date (YYYY-MM-DD)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall load timeout")

	return cmd
}

func runReport(cmd *cobra.Command, opts *reportOptions) error {
	switch opts.format {
	case formatTables, formatDigest, formatPrompt:
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	now := time.Now()
	if opts.at != "" {
		at, err := time.ParseInLocation(dateLayout, opts.at, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid --at date: %w", err)
		}
		now = at
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	cfg, err := loadConfig(ctx, cmd, opts)
	if err != nil {
		return err
	}
	tag, err := cfg.LocaleTag()
	if err != nil {
		return err
	}

	log := logger.Get()
	src, closer, err := app.OpenSource(cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	spinner := newSpinner(cmd.ErrOrStderr(), "Loading from "+cfg.Source)
	snap, err := app.LoadSnapshot(ctx, src)
	finishBar(spinner)
	if err != nil {
		return err
	}
	log.Debug(ctx, "snapshot loaded",
		logger.Int("tasks", len(snap.Tasks)),
		logger.Int("users", len(snap.Users)),
		logger.Int("sprints", len(snap.Sprints)),
	)

	engine := kpi.New(kpi.WithLocale(tag))
	bundle := engine.Aggregate(snap, now)
	r := report.New(report.WithEngine(engine))

	out := cmd.OutOrStdout()
	switch opts.format {
	case formatDigest:
		fmt.Fprintln(out, r.Digest(bundle))
	case formatPrompt:
		fmt.Fprint(out, r.Prompt(bundle))
	default:
		if err := r.RenderTables(out, bundle); err != nil {
			return err
		}
	}

	if opts.xlsx == "" {
		return nil
	}
	return writeWorkbook(opts.xlsx, r, bundle)
}

// loadConfig layers flags over the process configuration.
func loadConfig(ctx context.Context, cmd *cobra.Command, opts *reportOptions) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source = opts.source
	}
	if flags.Changed("tracker-url") {
		cfg.TrackerURL = opts.trackerURL
	}
	if flags.Changed("sqlite") {
		cfg.SQLitePath = opts.sqlitePath
		if !flags.Changed("source") {
			cfg.Source = config.SourceSQLite
		}
	}
	if flags.Changed("locale") {
		cfg.Locale = opts.locale
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeWorkbook(path string, r *report.Reporter, b kpi.Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := r.WriteXLSX(f, b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
