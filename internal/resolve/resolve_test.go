// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/term-engine/internal/embed"
	"github.com/pdiddy/term-engine/internal/glossary"
	"github.com/pdiddy/term-engine/internal/index"
	"github.com/pdiddy/term-engine/internal/ledger"
	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

// stubEmbedder returns fixed vectors per text and {0,0,0,1} for anything else.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int   { return 4 }
func (s *stubEmbedder) ModelName() string { return "stub" }

func stored(domain, source, target string) glossary.Stored {
	return glossary.Stored{GlossaryEntry: types.GlossaryEntry{Domain: domain, SourceTerm: source, TargetTerm: target}}
}

func stubResolver(t *testing.T, emb *stubEmbedder, entries []glossary.Stored, opts ...Option) *Resolver {
	t.Helper()
	idx, err := index.Build(context.Background(), emb, entries, index.Options{})
	require.NoError(t, err)
	return New(Static(idx), types.ResolverConfig{}, opts...)
}

// hashResolver serves a real store through an index manager and the local
// hash embedder.
func hashResolver(t *testing.T, entries ...types.GlossaryEntry) *Resolver {
	t.Helper()
	ctx := context.Background()
	store, err := glossary.NewStore(types.GlossaryConfig{DBPath: filepath.Join(t.TempDir(), "g.db")}, normalize.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.AddAll(ctx, entries, false))

	m := index.NewManager(store, embed.NewHashEmbedder(0), index.Options{Prefilter: true})
	return New(m, types.ResolverConfig{})
}

func TestNeuralNetworkVariantsShareOneRecord(t *testing.T) {
	ctx := context.Background()
	r := hashResolver(t, types.GlossaryEntry{
		SourceTerm: "neural network", TargetTerm: "神經網絡", Definition: "layered function approximator", Domain: "ai",
	})
	l := ledger.New(nil)

	first, err := r.Annotate(ctx, l, "A neural network learns representations.", []string{"ai"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.TermConstraint{{SourceTerm: "neural network", TargetTerm: "神經網絡"}}, first.Constraints)

	second, err := r.Annotate(ctx, l, "Deep Neural Networks generalize.", []string{"ai"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []types.TermConstraint{{SourceTerm: "Neural Networks", TargetTerm: "神經網絡"}}, second.Constraints)
	require.Len(t, second.Matches, 1)
	assert.True(t, second.Matches[0].FromLedger)

	require.Equal(t, 1, l.Len())
	rec := l.Export()[0]
	assert.Equal(t, "neural network", rec.SourceTerm)
	assert.Equal(t, "神經網絡", rec.ChosenTarget)
	assert.Equal(t, 0, rec.FirstSeenPosition)
	assert.Equal(t, types.OriginGlossary, rec.Origin)
}

func TestSingleEntryExactMatch(t *testing.T) {
	r := hashResolver(t, types.GlossaryEntry{SourceTerm: "kernel", TargetTerm: "核", Domain: "ml"})
	l := ledger.New(nil)

	out, err := r.Resolve(context.Background(), "kernel", l, nil)
	require.NoError(t, err)
	m, ok := out.(Match)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "核", m.Target())
	assert.GreaterOrEqual(t, m.Similarity, r.Config().AcceptThreshold)
	assert.False(t, m.FromLedger)
	assert.Equal(t, 1, l.Len())
}

func TestBelowThresholdIsNoMatch(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"kernel":  {1, 0, 0, 0},
		"entropy": {0.4, 0.916515, 0, 0},
	}}
	r := stubResolver(t, emb, []glossary.Stored{stored("ml", "kernel", "核")})
	l := ledger.New(nil)

	out, err := r.Resolve(context.Background(), "entropy", l, nil)
	require.NoError(t, err)
	nm, ok := out.(NoMatch)
	require.True(t, ok, "got %T", out)
	assert.InDelta(t, 0.4, nm.BestSimilarity, 1e-3)
	assert.Equal(t, 0, l.Len())

	out, err = r.Resolve(context.Background(), " ;; ", l, nil)
	require.NoError(t, err)
	assert.Equal(t, NoMatch{Span: " ;; "}, out)
}

func TestLedgerShortCircuitsIndex(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"kernel": {1, 0, 0, 0}}}
	r := stubResolver(t, emb, []glossary.Stored{stored("ml", "kernel", "核")})
	l := ledger.New(nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "kernel", l, nil)
	require.NoError(t, err)
	calls := emb.calls.Load()

	for _, span := range []string{"Kernels", "KERNEL", " kernel. "} {
		out, err := r.ResolveAt(ctx, span, l, nil, 7)
		require.NoError(t, err)
		m, ok := out.(Match)
		require.True(t, ok, span)
		assert.True(t, m.FromLedger, span)
		assert.Equal(t, "核", m.Target(), span)
		assert.Equal(t, 0, m.Record.FirstSeenPosition)
	}
	assert.Equal(t, calls, emb.calls.Load())
	assert.Equal(t, 1, l.Len())
}

func attentionEntries() []glossary.Stored {
	return []glossary.Stored{
		stored("nlp", "attention", "注意力"),
		stored("ml", "attention", "注意力機制"),
	}
}

func TestTiedCandidates(t *testing.T) {
	vec := map[string][]float32{"attention": {1, 0, 0, 0}, "attention mechanism": {1, 0, 0, 0}}

	tests := []struct {
		name       string
		entries    []glossary.Stored
		opts       []Option
		wantTarget string
		wantAmbig  bool
	}{
		{
			name:      "conflicting exact entries stay ambiguous",
			entries:   attentionEntries(),
			wantAmbig: true,
		},
		{
			name: "exact entry preferred over paraphrase",
			entries: []glossary.Stored{
				stored("ml", "attention mechanism", "注意力機制"),
				stored("ml", "attention", "注意力"),
			},
			wantTarget: "注意力",
		},
		{
			name: "candidates agreeing on target",
			entries: []glossary.Stored{
				stored("nlp", "attention", "注意力"),
				stored("ml", "attention", "注意力"),
			},
			wantTarget: "注意力",
		},
		{
			name:    "disambiguator chooses",
			entries: attentionEntries(),
			opts: []Option{WithDisambiguator(DisambiguatorFunc(func(_ context.Context, _ string, c []index.Hit) (int, bool, error) {
				return len(c) - 1, true, nil
			}))},
			wantTarget: "注意力",
		},
		{
			name:    "disambiguator declines",
			entries: attentionEntries(),
			opts: []Option{WithDisambiguator(DisambiguatorFunc(func(context.Context, string, []index.Hit) (int, bool, error) {
				return 0, false, nil
			}))},
			wantAmbig: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := stubResolver(t, &stubEmbedder{vectors: vec}, tt.entries, tt.opts...)
			l := ledger.New(nil)

			out, err := r.Resolve(context.Background(), "attention", l, nil)
			require.NoError(t, err)
			if tt.wantAmbig {
				a, ok := out.(Ambiguous)
				require.True(t, ok, "got %T", out)
				assert.Len(t, a.Candidates, 2)
				assert.Equal(t, "ml", a.Default.Entry.Domain)
				assert.Equal(t, "注意力機制", a.Default.Entry.TargetTerm)
				assert.Equal(t, 0, l.Len())
				return
			}
			m, ok := out.(Match)
			require.True(t, ok, "got %T", out)
			assert.Equal(t, tt.wantTarget, m.Target())
			assert.Equal(t, 1, l.Len())
		})
	}
}

func TestAccept(t *testing.T) {
	r := stubResolver(t, &stubEmbedder{vectors: map[string][]float32{"attention": {1, 0, 0, 0}}}, attentionEntries())
	l := ledger.New(nil)
	ctx := context.Background()

	out, err := r.Resolve(ctx, "attention", l, nil)
	require.NoError(t, err)
	a := out.(Ambiguous)

	_, err = r.Accept(ctx, l, a, 5, 0)
	assert.ErrorIs(t, err, ErrInvalidChoice)

	m, err := r.Accept(ctx, l, a, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "注意力", m.Target())
	assert.Equal(t, "nlp", m.Record.Domain)

	out, err = r.Resolve(ctx, "Attention", l, nil)
	require.NoError(t, err)
	again := out.(Match)
	assert.True(t, again.FromLedger)
	assert.Equal(t, "注意力", again.Target())

	_, err = r.Accept(ctx, l, a, 0, 4)
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestAnnotateDefaultsAmbiguousSpans(t *testing.T) {
	r := stubResolver(t, &stubEmbedder{vectors: map[string][]float32{"attention": {1, 0, 0, 0}}}, attentionEntries())
	l := ledger.New(nil)

	ann, err := r.Annotate(context.Background(), l, "Attention is computed per head; attention weights sum to one.", nil, 2)
	require.NoError(t, err)
	require.Len(t, ann.Defaulted, 1)
	assert.Equal(t, []types.TermConstraint{{SourceTerm: "Attention", TargetTerm: "注意力機制"}}, ann.Constraints)
	assert.Len(t, ann.Matches, 2)

	rec, ok := l.Lookup("attention")
	require.True(t, ok)
	assert.Equal(t, 2, rec.FirstSeenPosition)
	assert.Equal(t, "ml", rec.Domain)
}

func TestAnnotateSkipsFunctionWordSpans(t *testing.T) {
	r := hashResolver(t,
		types.GlossaryEntry{SourceTerm: "gradient descent", TargetTerm: "梯度下降", Domain: "ml"},
		types.GlossaryEntry{SourceTerm: "learning rate", TargetTerm: "學習率", Domain: "ml"},
	)
	l := ledger.New(nil)

	ann, err := r.Annotate(context.Background(), l,
		"We tune the learning rate of gradient descent, then the learning rates again.", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.TermConstraint{
		{SourceTerm: "learning rate", TargetTerm: "學習率"},
		{SourceTerm: "gradient descent", TargetTerm: "梯度下降"},
	}, ann.Constraints)
	assert.Len(t, ann.Matches, 3)
	assert.Equal(t, 2, l.Len())
}

func TestAnnotateAllIsOrderedAndConsistent(t *testing.T) {
	r := hashResolver(t, types.GlossaryEntry{SourceTerm: "kernel", TargetTerm: "核", Domain: "ml"})
	l := ledger.New(nil)

	units := make([]string, 24)
	for i := range units {
		units[i] = "The kernel trick maps inputs."
	}
	units[5] = "No terminology here."

	anns, err := r.AnnotateAll(context.Background(), l, units, nil)
	require.NoError(t, err)
	require.Len(t, anns, len(units))
	for i, a := range anns {
		assert.Equal(t, i, a.Position)
		if i == 5 {
			assert.Empty(t, a.Constraints)
			continue
		}
		assert.Equal(t, []types.TermConstraint{{SourceTerm: "kernel", TargetTerm: "核"}}, a.Constraints)
	}

	require.Equal(t, 1, l.Len())
	assert.Equal(t, 0, l.Export()[0].FirstSeenPosition)
}

func TestAnnotateAllFollowsDocumentOrder(t *testing.T) {
	r := hashResolver(t,
		types.GlossaryEntry{SourceTerm: "support vector machine", TargetTerm: "支持向量機", Domain: "ml"},
		types.GlossaryEntry{SourceTerm: "vector", TargetTerm: "向量", Domain: "ml"},
		types.GlossaryEntry{SourceTerm: "kernel trick", TargetTerm: "核技巧", Domain: "ml"},
		types.GlossaryEntry{SourceTerm: "kernel", TargetTerm: "核", Domain: "ml"},
	)
	units := []string{
		"A support vector machines classifier uses the kernel trick.",
		"Each support vector lies near the margin.",
		"Kernel tricks lift a vector into feature space.",
		"The kernel of a support vector machine is fixed.",
	}
	for i := 0; i < 4; i++ {
		units = append(units, units...)
	}
	ctx := context.Background()

	seq := ledger.New(nil)
	var want []Annotation
	for i, u := range units {
		ann, err := r.Annotate(ctx, seq, u, nil, i)
		require.NoError(t, err)
		want = append(want, ann)
	}

	for run := 0; run < 5; run++ {
		l := ledger.New(nil)
		got, err := r.AnnotateAll(ctx, l, units, nil)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Constraints, got[i].Constraints, "unit %d", i)
		}
		assert.Equal(t, seq.Export(), l.Export())
	}
}

func TestFailedIndexMisses(t *testing.T) {
	src := IndexFunc(func(context.Context) (*index.Index, error) {
		return index.Empty(), errors.New("embedding backend offline")
	})
	r := New(src, types.ResolverConfig{})
	l := ledger.New(nil)

	out, err := r.Resolve(context.Background(), "kernel", l, nil)
	require.NoError(t, err)
	assert.IsType(t, NoMatch{}, out)

	ann, err := r.Annotate(context.Background(), l, "The kernel trick.", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, ann.Constraints)

	broken := New(IndexFunc(func(context.Context) (*index.Index, error) { return nil, nil }), types.ResolverConfig{})
	_, err = broken.Resolve(context.Background(), "kernel", l, nil)
	assert.Error(t, err)
}

type fakeTranslator struct {
	mu      sync.Mutex
	targets map[string]string
	calls   int
}

func (f *fakeTranslator) TranslateTerm(_ context.Context, term string, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.targets[term], nil
}

func TestSynthesize(t *testing.T) {
	tr := &fakeTranslator{targets: map[string]string{"mixture of experts": "混合專家模型"}}
	emb := &stubEmbedder{vectors: map[string][]float32{"kernel": {1, 0, 0, 0}}}
	r := stubResolver(t, emb, []glossary.Stored{stored("ml", "kernel", "核")}, WithTermTranslator(tr))
	l := ledger.New(nil)
	ctx := context.Background()

	out, err := r.Synthesize(ctx, l, "mixture of experts", nil, 1)
	require.NoError(t, err)
	m, ok := out.(Match)
	require.True(t, ok, "got %T", out)
	assert.False(t, m.FromLedger)
	assert.Equal(t, "混合專家模型", m.Target())
	assert.Equal(t, types.OriginSynthesized, m.Record.Origin)
	assert.Equal(t, 1.0, m.Record.Confidence)

	out, err = r.Synthesize(ctx, l, "Mixture of Experts", nil, 4)
	require.NoError(t, err)
	assert.True(t, out.(Match).FromLedger)
	assert.Equal(t, 1, tr.calls)

	out, err = r.Synthesize(ctx, l, "kernel", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, types.OriginGlossary, out.(Match).Record.Origin)
	assert.Equal(t, 1, tr.calls)

	out, err = r.Synthesize(ctx, l, "dropout", nil, 3)
	require.NoError(t, err)
	assert.IsType(t, NoMatch{}, out)
	assert.Equal(t, 2, l.Len())

	_, err = stubResolver(t, emb, nil).Synthesize(ctx, l, "dropout", nil, 0)
	assert.ErrorIs(t, err, ErrNoTranslator)
}
