// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package glossary

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.GlossaryConfig{DBPath: filepath.Join(t.TempDir(), "glossary.db")}, normalize.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(domain, source, target string) types.GlossaryEntry {
	return types.GlossaryEntry{Domain: domain, SourceTerm: source, TargetTerm: target}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := []types.GlossaryEntry{
		{SourceTerm: "transformer", TargetTerm: "變換器", Definition: "attention-based model"},
		{SourceTerm: "attention", TargetTerm: "注意力"},
		{SourceTerm: "gradient descent", TargetTerm: "梯度下降", Definition: "first-order optimizer"},
	}
	require.NoError(t, s.Save(ctx, "ml", in))

	got, err := s.Load(ctx, "ml")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{
		{SourceTerm: "attention", TargetTerm: "注意力", Domain: "ml"},
		{SourceTerm: "gradient descent", TargetTerm: "梯度下降", Definition: "first-order optimizer", Domain: "ml"},
		{SourceTerm: "transformer", TargetTerm: "變換器", Definition: "attention-based model", Domain: "ml"},
	}, got)

	empty, err := s.Load(ctx, "physics")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveReplacesDomain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "ml", []types.GlossaryEntry{
		entry("", "attention", "注意力"),
		entry("", "dropout", "丟棄法"),
	}))
	require.NoError(t, s.Add(ctx, entry("physics", "entropy", "熵"), false))

	require.NoError(t, s.Save(ctx, "ml", []types.GlossaryEntry{
		entry("", "dropout", "隨機失活"),
		entry("", "embedding", "嵌入"),
	}))

	got, err := s.Load(ctx, "ml")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{
		entry("ml", "dropout", "隨機失活"),
		entry("ml", "embedding", "嵌入"),
	}, got)

	physics, err := s.Load(ctx, "physics")
	require.NoError(t, err)
	assert.Len(t, physics, 1)
}

func TestSaveRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "ml", []types.GlossaryEntry{entry("", "attention", "注意力")}))

	tests := []struct {
		name    string
		entries []types.GlossaryEntry
		want    error
	}{
		{"normalized duplicate", []types.GlossaryEntry{entry("", "neural network", "a"), entry("", "Neural Networks", "b")}, ErrDuplicateTerm},
		{"foreign domain", []types.GlossaryEntry{entry("physics", "entropy", "熵")}, ErrInvalidEntry},
		{"missing target", []types.GlossaryEntry{entry("", "entropy", " ")}, ErrInvalidEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Save(ctx, "ml", tt.entries)
			assert.ErrorIs(t, err, tt.want)

			got, err := s.Load(ctx, "ml")
			require.NoError(t, err)
			assert.Equal(t, []types.GlossaryEntry{entry("ml", "attention", "注意力")}, got)
		})
	}
}

func TestAddDuplicateLeavesStoreUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, entry("ml", "neural network", "神經網路"), false))
	rev := s.Revision("ml")

	err := s.Add(ctx, entry("ml", "Neural Networks", "類神經網路"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTerm))

	var dup *DuplicateTermError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "ml", dup.Domain)
	assert.Equal(t, "neural network", dup.Existing)

	got, err := s.Load(ctx, "ml")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{entry("ml", "neural network", "神經網路")}, got)
	assert.Equal(t, rev, s.Revision("ml"))

	require.NoError(t, s.Add(ctx, entry("ml", "Neural Networks", "類神經網路"), true))
	got, err = s.Load(ctx, "ml")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{entry("ml", "Neural Networks", "類神經網路")}, got)
	assert.Greater(t, s.Revision("ml"), rev)
}

func TestAddSameTermInOtherDomain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, entry("ml", "kernel", "核函數"), false))
	require.NoError(t, s.Add(ctx, entry("os", "kernel", "核心"), false))

	got, err := s.Lookup(ctx, nil, "Kernels")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{entry("ml", "kernel", "核函數"), entry("os", "kernel", "核心")}, got)

	got, err = s.Lookup(ctx, []string{"os"}, "kernel")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{entry("os", "kernel", "核心")}, got)

	got, err = s.Lookup(ctx, nil, "scheduler")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddAllIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, entry("ml", "dropout", "丟棄法"), false))

	err := s.AddAll(ctx, []types.GlossaryEntry{
		entry("ml", "attention", "注意力"),
		entry("ml", "Dropout", "隨機失活"),
	}, false)
	assert.ErrorIs(t, err, ErrDuplicateTerm)

	got, err := s.Load(ctx, "ml")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{entry("ml", "dropout", "丟棄法")}, got)
}

func TestAddRejectsInvalidEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		e    types.GlossaryEntry
	}{
		{"no domain", entry("", "attention", "注意力")},
		{"no source", entry("ml", "  ", "注意力")},
		{"no target", entry("ml", "attention", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Add(ctx, tt.e, false), ErrInvalidEntry)
		})
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, entry("ml", "neural network", "神經網路"), false))

	err := s.Remove(ctx, "ml", "attention")
	assert.ErrorIs(t, err, ErrTermNotFound)

	require.NoError(t, s.Remove(ctx, "ml", "Neural Networks"))
	got, err := s.Load(ctx, "ml")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListDomains(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	domains, err := s.ListDomains(ctx)
	require.NoError(t, err)
	assert.Empty(t, domains)

	require.NoError(t, s.Add(ctx, entry("physics", "entropy", "熵"), false))
	require.NoError(t, s.Add(ctx, entry("ml", "dropout", "丟棄法"), false))
	require.NoError(t, s.Add(ctx, entry("ml", "attention", "注意力"), false))

	domains, err = s.ListDomains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ml", "physics"}, domains)
}

func TestRevisionTracksDomains(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, uint64(0), s.Revision())
	require.NoError(t, s.Add(ctx, entry("ml", "dropout", "丟棄法"), false))
	require.NoError(t, s.Add(ctx, entry("physics", "entropy", "熵"), false))
	require.NoError(t, s.Add(ctx, entry("physics", "enthalpy", "焓"), false))

	assert.Equal(t, uint64(1), s.Revision("ml"))
	assert.Equal(t, uint64(2), s.Revision("physics"))
	assert.Equal(t, uint64(3), s.Revision("ml", "physics"))
	assert.Equal(t, uint64(3), s.Revision())
	assert.Equal(t, uint64(0), s.Revision("chemistry"))
}

func TestEmbeddingCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := types.GlossaryEntry{Domain: "ml", SourceTerm: "attention", TargetTerm: "注意力", Definition: "weighting"}
	require.NoError(t, s.Add(ctx, e, false))
	rev := s.Revision("ml")

	stored, err := s.Entries(ctx, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].Embedding)

	stored[0].Embedding = []float32{0.25, -1, 3.5}
	stored[0].EmbeddingKey = "hash:abc"
	require.NoError(t, s.PutEmbeddings(ctx, stored))
	assert.Equal(t, rev, s.Revision("ml"))

	stored, err = s.Entries(ctx, []string{"ml"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1, 3.5}, stored[0].Embedding)
	assert.Equal(t, "hash:abc", stored[0].EmbeddingKey)

	// A new target keeps the embedding; the embedded text is unchanged.
	e.TargetTerm = "注意力機制"
	require.NoError(t, s.Add(ctx, e, true))
	stored, err = s.Entries(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "hash:abc", stored[0].EmbeddingKey)

	// A new definition invalidates it.
	e.Definition = "soft lookup"
	require.NoError(t, s.Add(ctx, e, true))
	stored, err = s.Entries(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, stored[0].Embedding)
	assert.Empty(t, stored[0].EmbeddingKey)
}

func TestPutEmbeddingsIgnoresStaleEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, types.GlossaryEntry{Domain: "ml", SourceTerm: "attention", TargetTerm: "注意力", Definition: "v1"}, false))

	stored, err := s.Entries(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, types.GlossaryEntry{Domain: "ml", SourceTerm: "attention", TargetTerm: "注意力", Definition: "v2"}, true))

	stored[0].Embedding = []float32{1}
	stored[0].EmbeddingKey = "stale"
	require.NoError(t, s.PutEmbeddings(ctx, stored))

	fresh, err := s.Entries(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, fresh[0].EmbeddingKey)
}

func TestRekeyOnNormalizationChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.db")
	ctx := context.Background()

	s, err := NewStore(types.GlossaryConfig{DBPath: path}, normalize.Default())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, entry("ml", "Fine-Tuning", "微調"), false))
	require.NoError(t, s.Close())

	cfg := types.DefaultConfig().Normalize
	cfg.FoldHyphens = true
	s, err = NewStore(types.GlossaryConfig{DBPath: path}, normalize.New(cfg))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Lookup(ctx, nil, "fine tuning")
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{entry("ml", "Fine-Tuning", "微調")}, got)
}

func TestMemoryStore(t *testing.T) {
	s, err := NewStore(types.GlossaryConfig{DBPath: ":memory:"}, normalize.Default())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, entry("ml", "dropout", "丟棄法"), false))
	got, err := s.Load(ctx, "ml")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Empty(t, decodeVector(nil))
}
