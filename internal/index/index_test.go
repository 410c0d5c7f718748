// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/term-engine/internal/glossary"
	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

// stubEmbedder returns fixed vectors per text and {0,0,0,1} for anything else.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	texts   atomic.Int32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.texts.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int   { return 4 }
func (s *stubEmbedder) ModelName() string { return "stub" }

func stored(domain, source, target string) glossary.Stored {
	return glossary.Stored{GlossaryEntry: types.GlossaryEntry{Domain: domain, SourceTerm: source, TargetTerm: target}}
}

func rankingIndex(t *testing.T) *Index {
	t.Helper()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"self attention": {1, 0, 0, 0},
		"attention head": {1, 0, 0, 0},
		"attention":      {1, 0, 0, 0},
		"kernel":         {0, 1, 0, 0},
	}}
	idx, err := Build(context.Background(), emb, []glossary.Stored{
		stored("ml", "self attention", "自注意力"),
		stored("ml", "kernel", "核"),
		stored("nlp", "attention", "注意力"),
		stored("ml", "attention head", "注意力頭"),
		stored("ml", "attention", "注意力機制"),
	}, Options{})
	require.NoError(t, err)
	return idx
}

func sources(hits []Hit) []string {
	var out []string
	for _, h := range hits {
		out = append(out, h.Entry.Domain+"/"+h.Entry.SourceTerm)
	}
	return out
}

func TestQueryVectorRanking(t *testing.T) {
	idx := rankingIndex(t)

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{
			name: "ties broken by length then text then domain",
			opts: QueryOptions{},
			want: []string{"ml/attention", "nlp/attention", "ml/attention head", "ml/self attention", "ml/kernel"},
		},
		{
			name: "threshold",
			opts: QueryOptions{MinSimilarity: 0.5},
			want: []string{"ml/attention", "nlp/attention", "ml/attention head", "ml/self attention"},
		},
		{
			name: "top k",
			opts: QueryOptions{K: 2},
			want: []string{"ml/attention", "nlp/attention"},
		},
		{
			name: "domain filter",
			opts: QueryOptions{Domains: []string{"nlp"}},
			want: []string{"nlp/attention"},
		},
		{
			name: "nothing qualifies",
			opts: QueryOptions{MinSimilarity: 1.5},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := idx.QueryVector([]float32{2, 0, 0, 0}, "", tt.opts)
			assert.Equal(t, tt.want, sources(hits))
		})
	}
}

func TestQueryExactMatchScoresOne(t *testing.T) {
	idx := rankingIndex(t)

	hits, err := idx.Query(context.Background(), "Attentions", QueryOptions{MinSimilarity: 0.85})
	require.NoError(t, err)
	assert.Equal(t, []string{"ml/attention", "nlp/attention", "ml/attention head", "ml/self attention"}, sources(hits))
	for i, h := range hits {
		assert.Equal(t, i < 2, h.Exact, h.Entry.SourceTerm)
	}
	assert.Equal(t, 1.0, hits[0].Similarity)

	// The kernel entry shares no direction with the query.
	hits, err = idx.Query(context.Background(), "kernel", QueryOptions{MinSimilarity: 0.85})
	require.NoError(t, err)
	assert.Equal(t, []string{"ml/kernel"}, sources(hits))

	exact := idx.Exact("ATTENTION", []string{"nlp"})
	require.Len(t, exact, 1)
	assert.Equal(t, "注意力", exact[0].TargetTerm)
}

func TestQueryEmptyInputs(t *testing.T) {
	emb := &stubEmbedder{}
	idx, err := Build(context.Background(), emb, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	hits, err := idx.Query(context.Background(), "anything", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, int32(0), emb.texts.Load())

	idx = rankingIndex(t)
	hits, err = idx.Query(context.Background(), " ... ", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildFailureYieldsEmptyIndex(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("model offline")}
	idx, err := Build(context.Background(), emb, []glossary.Stored{stored("ml", "kernel", "核")}, Options{})
	require.Error(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.Len())
	assert.ErrorIs(t, idx.Err(), err)

	hits, err := idx.Query(context.Background(), "kernel", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildReusesCachedEmbeddings(t *testing.T) {
	emb := &stubEmbedder{}
	entries := []glossary.Stored{stored("ml", "kernel", "核"), stored("ml", "dropout", "丟棄法")}

	first, err := Build(context.Background(), emb, entries, Options{BatchSize: 1})
	require.NoError(t, err)
	require.Len(t, first.Computed(), 2)
	assert.Equal(t, int32(2), emb.texts.Load())
	assert.Equal(t, CacheKey("stub", "kernel"), first.Computed()[0].EmbeddingKey)

	second, err := Build(context.Background(), emb, first.Computed(), Options{})
	require.NoError(t, err)
	assert.Empty(t, second.Computed())
	assert.Equal(t, int32(2), emb.texts.Load())
	assert.Equal(t, 2, second.Len())

	// Embedding definitions changes the text, so the cache no longer applies.
	third, err := Build(context.Background(), emb, []glossary.Stored{
		{GlossaryEntry: types.GlossaryEntry{Domain: "ml", SourceTerm: "kernel", TargetTerm: "核", Definition: "similarity function"},
			EmbeddingKey: first.Computed()[0].EmbeddingKey},
	}, Options{IncludeDefinition: true})
	require.NoError(t, err)
	require.Len(t, third.Computed(), 1)
	assert.Equal(t, CacheKey("stub", "kernel: similarity function"), third.Computed()[0].EmbeddingKey)
}

func TestMayContain(t *testing.T) {
	entries := []glossary.Stored{stored("ml", "neural network", "神經網路")}

	idx, err := Build(context.Background(), &stubEmbedder{}, entries, Options{Prefilter: true})
	require.NoError(t, err)
	assert.True(t, idx.MayContain([]string{"deep", "Networks"}))
	assert.False(t, idx.MayContain([]string{"protein", "folding"}))

	idx, err = Build(context.Background(), &stubEmbedder{}, entries, Options{})
	require.NoError(t, err)
	assert.True(t, idx.MayContain([]string{"protein"}))

	assert.False(t, Empty().MayContain([]string{"network"}))
}

func newStore(t *testing.T) *glossary.Store {
	t.Helper()
	s, err := glossary.NewStore(types.GlossaryConfig{DBPath: filepath.Join(t.TempDir(), "g.db")}, normalize.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestManagerRebuildsWhenStale(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Add(ctx, types.GlossaryEntry{Domain: "ml", SourceTerm: "kernel", TargetTerm: "核"}, false))

	emb := &stubEmbedder{}
	m := NewManager(store, emb, Options{})
	assert.Nil(t, m.Current())

	first, err := m.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, int64(1), m.Builds())

	again, err := m.Index(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again)

	cached, err := store.Entries(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, CacheKey("stub", "kernel"), cached[0].EmbeddingKey)

	require.NoError(t, store.Add(ctx, types.GlossaryEntry{Domain: "ml", SourceTerm: "dropout", TargetTerm: "丟棄法"}, false))
	second, err := m.Index(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, int32(2), emb.texts.Load())
}

func TestManagerConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Add(ctx, types.GlossaryEntry{Domain: "ml", SourceTerm: "kernel", TargetTerm: "核"}, false))
	m := NewManager(store, &stubEmbedder{}, Options{})

	var wg sync.WaitGroup
	results := make([]*Index, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := m.Index(ctx)
			assert.NoError(t, err)
			results[i] = idx
		}(i)
	}
	wg.Wait()

	for _, idx := range results {
		require.NotNil(t, idx)
		assert.Equal(t, 1, idx.Len())
		assert.Equal(t, store.Revision(), idx.Revision())
	}
}

func TestManagerKeepsFailedBuild(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Add(ctx, types.GlossaryEntry{Domain: "ml", SourceTerm: "kernel", TargetTerm: "核"}, false))

	emb := &stubEmbedder{err: errors.New("offline")}
	m := NewManager(store, emb, Options{})

	idx, err := m.Index(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, idx.Len())

	idx, err = m.Index(ctx)
	require.NoError(t, err)
	assert.Error(t, idx.Err())
	assert.Equal(t, int64(1), m.Builds())

	emb.err = nil
	idx, err = m.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}
