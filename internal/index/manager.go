// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/term-engine/internal/embed"
	"github.com/pdiddy/term-engine/internal/glossary"
)

// Manager owns the active index for a glossary store. It builds lazily on
// first use and rebuilds whenever the store's revision moves past the one
// the active index was built from.
type Manager struct {
	store    *glossary.Store
	embedder embed.Embedder
	opts     Options

	current atomic.Pointer[Index]
	builds  singleflight.Group
	count   atomic.Int64
}

// NewManager creates a manager. No index is built until Index or Rebuild
// is called.
func NewManager(store *glossary.Store, embedder embed.Embedder, opts Options) *Manager {
	if opts.Normalizer == nil {
		opts.Normalizer = store.Normalizer()
	}
	return &Manager{store: store, embedder: embedder, opts: opts.withDefaults()}
}

// Index returns the active index, rebuilding it first when it is missing
// or stale. Concurrent callers share one rebuild.
func (m *Manager) Index(ctx context.Context) (*Index, error) {
	if cur := m.current.Load(); cur != nil && cur.revision == m.store.Revision() {
		return cur, nil
	}
	return m.Rebuild(ctx)
}

// Current returns the active index without checking staleness, or nil
// before the first build.
func (m *Manager) Current() *Index { return m.current.Load() }

// Builds returns how many rebuilds have run.
func (m *Manager) Builds() int64 { return m.count.Load() }

// Rebuild builds a new index from the store and swaps it in. Requests that
// arrive while a rebuild is running wait for it and share its result.
//
// An embedding failure still installs the (empty) index so queries miss
// instead of failing; the error is returned and logged. The next revision
// change, or an explicit Rebuild, tries again.
func (m *Manager) Rebuild(ctx context.Context) (*Index, error) {
	v, err, _ := m.builds.Do("rebuild", func() (any, error) {
		rev := m.store.Revision()
		entries, err := m.store.Entries(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("loading glossary for index: %w", err)
		}

		idx, buildErr := Build(ctx, m.embedder, entries, m.opts)
		idx.revision = rev
		m.current.Store(idx)
		m.count.Add(1)

		if buildErr != nil {
			slog.Warn("index build failed; terms will not match until the next rebuild",
				"model", m.embedder.ModelName(), "entries", len(entries), "error", buildErr)
			return idx, buildErr
		}

		if computed := idx.Computed(); len(computed) > 0 {
			if err := m.store.PutEmbeddings(ctx, computed); err != nil {
				slog.Warn("caching embeddings failed", "count", len(computed), "error", err)
			}
		}
		slog.Debug("index built",
			"entries", idx.Len(), "embedded", len(idx.Computed()), "revision", rev, "model", m.embedder.ModelName())
		return idx, nil
	})
	if v == nil {
		return Empty(), err
	}
	return v.(*Index), err
}
