// Package worker runs snapshot refreshes off the request path.
package worker

import (
	"context"
	"fmt"

	"github.com/okian/kpiboard/internal/adapters/mq/queue"
	"github.com/okian/kpiboard/pkg/logger"
	"github.com/okian/kpiboard/pkg/metrics"
)

// Queue defines how the worker receives refresh requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.RefreshRequest
}

// Refresher reloads the snapshot for a request.
type Refresher interface {
	HandleRefresh(ctx context.Context, req queue.RefreshRequest) error
}

// RefreshWorker takes requests off the queue one at a time. Requests that
// pile up while a refresh is running are coalesced into the next one.
type RefreshWorker struct {
	queue     Queue
	refresher Refresher
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewRefreshWorker creates a worker with configuration options.
func NewRefreshWorker(q Queue, r Refresher, opts ...Option) *RefreshWorker {
	w := &RefreshWorker{
		queue:     q,
		refresher: r,
		name:      "refresh-worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes requests until ctx is done, Shutdown is called or the queue
// is closed.
func (w *RefreshWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if n := drain(requests); n > 0 {
				w.logger.Debug(ctx, "coalesced refresh requests",
					logger.String("request_id", req.ID),
					logger.Int("coalesced", n),
				)
			}
			if err := w.refresher.HandleRefresh(ctx, req); err != nil {
				metrics.RecordErrorByComponent("worker", "refresh_failed")
				w.logger.Error(ctx, "refresh failed",
					logger.String("worker", w.name),
					logger.String("request_id", req.ID),
					logger.String("reason", req.Reason),
					logger.Error(err),
				)
			}
		}
	}
}

// drain discards requests that are immediately available.
func drain(requests <-chan queue.RefreshRequest) int {
	n := 0
	for {
		select {
		case _, ok := <-requests:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Shutdown stops the worker and waits for the running refresh to finish.
func (w *RefreshWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *RefreshWorker) Done() <-chan struct{} {
	return w.done
}
