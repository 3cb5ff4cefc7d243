package service

import (
	"fmt"
	"io"

	"github.com/okian/kpiboard/internal/adapters/repository"
	"github.com/okian/kpiboard/internal/adapters/tracker"
	"github.com/okian/kpiboard/internal/config"
	"github.com/okian/kpiboard/pkg/logger"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenSource builds the configured data source. The returned closer
// releases it once the caller is done.
func OpenSource(cfg *config.Config, l logger.Logger) (Source, io.Closer, error) {
	switch cfg.Source {
	case config.SourceHTTP:
		c, err := tracker.New(cfg.TrackerURL,
			tracker.WithTimeout(cfg.TrackerTimeout()),
			tracker.WithRateLimit(cfg.TrackerRPS, cfg.TrackerBurst),
			tracker.WithLogger(l.Named("tracker")),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil
	case config.SourceSQLite:
		db, err := repository.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteStore(db, repository.WithLogger(l.Named("sqlite"))), db, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown source %q", config.ErrInvalidConfig, cfg.Source)
	}
}
