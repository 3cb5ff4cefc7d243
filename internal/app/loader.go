package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/pkg/metrics"
)

// Source provides the three collections a snapshot is built from.
type Source interface {
	FetchTasks(ctx context.Context) ([]model.Task, error)
	FetchUsers(ctx context.Context) ([]model.User, error)
	FetchSprints(ctx context.Context) ([]model.Sprint, error)
}

// LoadSnapshot fetches the three collections concurrently. Either all three
// succeed or the first error is returned and no snapshot is produced.
func LoadSnapshot(ctx context.Context, src Source) (model.Snapshot, error) {
	var snap model.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return fetch(gctx, "tasks", src.FetchTasks, &snap.Tasks)
	})
	g.Go(func() error {
		return fetch(gctx, "users", src.FetchUsers, &snap.Users)
	})
	g.Go(func() error {
		return fetch(gctx, "sprints", src.FetchSprints, &snap.Sprints)
	})

	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

func fetch[T any](ctx context.Context, name string, fn func(context.Context) ([]T, error), dst *[]T) error {
	start := time.Now()
	out, err := fn(ctx)
	metrics.RecordFetch(name, err == nil, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetch, name, err)
	}
	*dst = out
	return nil
}
