// Package memo caches KPI views per snapshot fingerprint.
package memo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/kpiboard/internal/domain/kpi"
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/pkg/metrics"
)

// Memo returns KPI results for snapshots, reusing the views of snapshots it
// has already seen. Cached views are shared and must be treated as
// read-only.
type Memo interface {
	// Views returns the now-independent views for s.
	Views(ctx context.Context, s model.Snapshot) kpi.Views

	// Aggregate returns the full bundle for s. The current-sprint part is
	// recomputed on every call since it depends on now.
	Aggregate(ctx context.Context, s model.Snapshot, now time.Time) kpi.Bundle

	// Size returns the number of cached snapshots.
	Size() int64
}

// entry is a list node; head is the most recently added entry.
type entry struct {
	key   uint64
	views kpi.Views
	next  *entry
}

func (e *entry) reset() {
	e.key = 0
	e.views = kpi.Views{}
	e.next = nil
}

// inMemoryMemo evicts the oldest entry once maxSize is reached. With
// maxSize <= 0 it never evicts.
type inMemoryMemo struct {
	mu        sync.Mutex
	engine    *kpi.Engine
	entries   map[uint64]*entry
	head      *entry
	maxSize   int
	size      atomic.Int64
	entryPool sync.Pool
}

// NewInMemoryMemo creates a memo with configuration options.
func NewInMemoryMemo(opts ...Option) Memo {
	m := &inMemoryMemo{
		maxSize: 16,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = kpi.New()
	}
	m.entries = make(map[uint64]*entry)
	m.entryPool = sync.Pool{
		New: func() interface{} {
			return &entry{}
		},
	}
	return m
}

func (m *inMemoryMemo) Views(ctx context.Context, s model.Snapshot) kpi.Views {
	key := Fingerprint(s)

	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		v := e.views
		m.mu.Unlock()
		metrics.RecordMemoLookup(true)
		return v
	}
	m.mu.Unlock()
	metrics.RecordMemoLookup(false)

	// Computed outside the lock; a concurrent miss on the same key computes
	// the same views and the second store is dropped.
	v := m.engine.Views(s)

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.views
	}
	if m.maxSize > 0 && len(m.entries) >= m.maxSize {
		m.evictOldest()
	}
	e := m.entryPool.Get().(*entry)
	e.key = key
	e.views = v
	e.next = m.head
	m.head = e
	m.entries[key] = e
	m.size.Add(1)
	metrics.UpdateMemoSize(int(m.size.Load()))
	return v
}

func (m *inMemoryMemo) Aggregate(ctx context.Context, s model.Snapshot, now time.Time) kpi.Bundle {
	return m.engine.Bundle(m.Views(ctx, s), s, now)
}

// evictOldest drops the tail of the list. Must be called with m.mu held.
func (m *inMemoryMemo) evictOldest() {
	if m.head == nil {
		return
	}
	var prev *entry
	cur := m.head
	for cur.next != nil {
		prev = cur
		cur = cur.next
	}
	if prev == nil {
		m.head = nil
	} else {
		prev.next = nil
	}
	delete(m.entries, cur.key)
	cur.reset()
	m.entryPool.Put(cur)
	m.size.Add(-1)
}

func (m *inMemoryMemo) Size() int64 {
	return m.size.Load()
}
