// Package service owns the published snapshot and serves KPI results from
// it. Snapshots are loaded synchronously on Start and afterwards refreshed
// off the request path by a single worker.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/okian/kpiboard/internal/adapters/mq/queue"
	"github.com/okian/kpiboard/internal/adapters/mq/worker"
	"github.com/okian/kpiboard/internal/domain/kpi"
	"github.com/okian/kpiboard/internal/domain/memo"
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
	"github.com/okian/kpiboard/pkg/logger"
	"github.com/okian/kpiboard/pkg/metrics"
)

const (
	defaultQueueSize = 8
	defaultMemoSize  = 16
	shutdownTimeout  = 10 * time.Second
	hoursPerDay      = 24
)

// Service implements the API dependencies for the KPI board.
type Service struct {
	mu sync.RWMutex

	// Core components
	source Source
	engine *kpi.Engine
	memo   memo.Memo
	queue  *queue.InMemoryQueue
	worker *worker.RefreshWorker

	// Configuration
	queueSize       int
	memoSize        int
	refreshInterval time.Duration
	locale          language.Tag
	clock           func() time.Time

	// Published snapshot
	snapMu    sync.RWMutex
	snap      model.Snapshot
	loaded    bool
	loadedAt  time.Time
	lastErr   error
	seq       uint64
	published uint64
	refreshes int64
	failures  int64

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets where snapshots are loaded from.
func WithSource(src Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithQueueSize sets how many refresh requests may be pending.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefreshInterval enables periodic refreshes. Zero disables them.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithMemoSize sets how many snapshots keep cached views. Zero or less
// means unbounded.
func WithMemoSize(size int) Option {
	return func(s *Service) {
		s.memoSize = size
	}
}

// WithLocale sets the locale used to order sprint names.
func WithLocale(tag language.Tag) Option {
	return func(s *Service) {
		s.locale = tag
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize: defaultQueueSize,
		memoSize:  defaultMemoSize,
		locale:    kpi.DefaultLocale,
		clock:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}

	s.engine = kpi.New(kpi.WithLocale(s.locale))
	s.memo = memo.NewInMemoryMemo(
		memo.WithMaxSize(s.memoSize),
		memo.WithEngine(s.engine),
	)
	return s
}

// Start loads the first snapshot and starts the refresh worker. A failed
// first load is logged and kept as the last error; the service still
// starts so later refreshes can recover.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.source == nil {
		return ErrNoSource
	}

	s.logger.Info(ctx, "starting kpi service...")

	if err := s.Refresh(ctx); err != nil {
		s.logger.Error(ctx, "initial snapshot load failed", logger.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.NewRefreshWorker(s.queue, s,
		worker.WithLogger(s.logger),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker.Run(runCtx)
	}()

	if s.refreshInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick(runCtx)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "kpi service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("memoSize", s.memoSize),
		logger.Duration("refreshInterval", s.refreshInterval),
		logger.String("locale", s.locale.String()),
	)
	return nil
}

func (s *Service) tick(ctx context.Context) {
	t := time.NewTicker(s.refreshInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RequestRefresh(ctx, "interval"); err != nil {
				s.logger.Debug(ctx, "periodic refresh skipped", logger.Error(err))
			}
		}
	}
}

// Stop shuts down the worker and the ticker.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	q, w, stop := s.queue, s.worker, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping kpi service...")

	_ = q.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "refresh worker did not stop in time", logger.Error(err))
	}
	stop()
	s.wg.Wait()

	s.logger.Info(ctx, "kpi service stopped")
}

// RequestRefresh queues an asynchronous reload. It returns ErrBackpressure
// when enough requests are already pending.
func (s *Service) RequestRefresh(ctx context.Context, reason string) (queue.RefreshRequest, error) {
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()

	if !started {
		return queue.RefreshRequest{}, ErrNotStarted
	}

	req := queue.NewRefreshRequest(reason, s.clock())
	switch err := q.Enqueue(ctx, req); {
	case err == nil:
		return req, nil
	case errors.Is(err, queue.ErrFull):
		return queue.RefreshRequest{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
	default:
		return queue.RefreshRequest{}, err
	}
}

// HandleRefresh reloads the snapshot for a queued request.
func (s *Service) HandleRefresh(ctx context.Context, req queue.RefreshRequest) error {
	s.logger.Debug(ctx, "refreshing snapshot",
		logger.String("request_id", req.ID),
		logger.String("reason", req.Reason),
	)
	return s.Refresh(ctx)
}

// Refresh loads a snapshot and publishes it. A load that finishes after a
// newer one has been published is discarded.
func (s *Service) Refresh(ctx context.Context) error {
	if s.source == nil {
		return ErrNoSource
	}

	s.snapMu.Lock()
	s.seq++
	seq := s.seq
	s.snapMu.Unlock()

	start := time.Now()
	snap, err := LoadSnapshot(ctx, s.source)
	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordRefresh(err == nil, ms)

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	if err != nil {
		s.failures++
		if seq > s.published {
			s.lastErr = err
		}
		metrics.RecordErrorByComponent("loader", "fetch")
		return err
	}
	if seq < s.published {
		return nil
	}

	s.snap = snap
	s.loaded = true
	s.loadedAt = s.clock()
	s.lastErr = nil
	s.published = seq
	s.refreshes++

	metrics.UpdateSnapshotSize(len(snap.Tasks), len(snap.Users), len(snap.Sprints))
	s.logger.Info(ctx, "snapshot published",
		logger.Int("tasks", len(snap.Tasks)),
		logger.Int("users", len(snap.Users)),
		logger.Int("sprints", len(snap.Sprints)),
		logger.Float64("took_ms", ms),
	)
	return nil
}

// Snapshot returns the published snapshot and when it was loaded.
func (s *Service) Snapshot() (model.Snapshot, time.Time, error) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	if !s.loaded {
		if s.lastErr != nil {
			return model.Snapshot{}, time.Time{}, fmt.Errorf("%w: %w", ErrNoSnapshot, s.lastErr)
		}
		return model.Snapshot{}, time.Time{}, ErrNoSnapshot
	}
	return s.snap, s.loadedAt, nil
}

// Engine returns the KPI engine used for ordering.
func (s *Service) Engine() *kpi.Engine {
	return s.engine
}

// Bundle aggregates the published snapshot at the current instant.
func (s *Service) Bundle(ctx context.Context) (kpi.Bundle, error) {
	snap, _, err := s.Snapshot()
	if err != nil {
		return kpi.Bundle{}, err
	}

	start := time.Now()
	now := s.clock()
	b := s.memo.Aggregate(ctx, snap, now)
	metrics.RecordAggregation(float64(time.Since(start).Microseconds()) / 1000)

	if b.CurrentSprint != nil {
		metrics.UpdateCurrentSprintDaysLeft(b.CurrentSprint.EndsAt.Sub(now).Hours() / hoursPerDay)
	}
	return b, nil
}

// CurrentSprint returns the sprint containing the current instant.
func (s *Service) CurrentSprint(ctx context.Context) (kpi.SprintInfo, error) {
	snap, _, err := s.Snapshot()
	if err != nil {
		return kpi.SprintInfo{}, err
	}

	now := s.clock()
	cur, ok := sprint.Current(snap.Sprints, now)
	if !ok {
		return kpi.SprintInfo{}, ErrNoCurrentSprint
	}
	return kpi.SprintInfo{
		ID:       cur.ID,
		Name:     cur.Name,
		StartsAt: cur.StartsAt,
		EndsAt:   cur.EndsAt,
		Expired:  sprint.IsExpired(cur, now),
	}, nil
}

// SprintExpired reports whether the sprint's end is not after now.
func (s *Service) SprintExpired(ctx context.Context, id int64) (bool, error) {
	snap, _, err := s.Snapshot()
	if err != nil {
		return false, err
	}

	sp, ok := sprint.Find(id, snap.Sprints)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrSprintNotFound, id)
	}
	return sprint.IsExpired(sp, s.clock()), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"queueSize":       s.queueSize,
		"memoSize":        s.memoSize,
		"memoEntries":     s.memo.Size(),
		"locale":          s.locale.String(),
		"refreshInterval": s.refreshInterval.String(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}

	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	stats["snapshotLoaded"] = s.loaded
	stats["refreshes"] = s.refreshes
	stats["refreshFailures"] = s.failures
	if s.loaded {
		stats["loadedAt"] = s.loadedAt
		stats["tasks"] = len(s.snap.Tasks)
		stats["users"] = len(s.snap.Users)
		stats["sprints"] = len(s.snap.Sprints)
	}
	if s.lastErr != nil {
		stats["lastError"] = s.lastErr.Error()
	}

	return stats
}
