package memo

import "github.com/okian/kpiboard/internal/domain/kpi"

// Option applies a configuration option to the in-memory memo.
type Option func(*inMemoryMemo)

// WithMaxSize sets how many snapshots are kept.
// If maxSize > 0: bounded, the oldest snapshot is evicted first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(m *inMemoryMemo) {
		m.maxSize = maxSize
	}
}

// WithEngine sets the engine used on a miss.
func WithEngine(e *kpi.Engine) Option {
	return func(m *inMemoryMemo) {
		m.engine = e
	}
}
