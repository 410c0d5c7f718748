// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index holds an immutable in-memory vector index over glossary
// entries and the manager that rebuilds it when the glossary changes.
//
// An Index is never mutated after Build returns, so any number of
// goroutines may query it. Rebuilding produces a new Index that the Manager
// swaps in atomically; queries already running keep the old one.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/term-engine/internal/embed"
	"github.com/pdiddy/term-engine/internal/glossary"
	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

// Options controls how entries are embedded.
type Options struct {
	// Normalizer folds terms before embedding and comparison. Defaults to
	// normalize.Default().
	Normalizer *normalize.Normalizer

	// IncludeDefinition embeds "term: definition" instead of the term alone.
	IncludeDefinition bool

	// BatchSize caps texts per EmbedBatch call (default 64).
	BatchSize int

	// Concurrency caps parallel EmbedBatch calls (default 4).
	Concurrency int

	// Prefilter enables the word-vocabulary shortcut in MayContain. Leave it
	// off for embedders that match synonyms sharing no words.
	Prefilter bool
}

func (o Options) withDefaults() Options {
	if o.Normalizer == nil {
		o.Normalizer = normalize.Default()
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// OptionsFromConfig maps embedding settings onto index options. The word
// prefilter is enabled for the local hash embedder only.
func OptionsFromConfig(cfg types.EmbeddingConfig, n *normalize.Normalizer) Options {
	return Options{
		Normalizer:        n,
		IncludeDefinition: cfg.IncludeDefinition,
		BatchSize:         cfg.BatchSize,
		Concurrency:       cfg.Concurrency,
		Prefilter:         cfg.Provider == "" || cfg.Provider == types.ProviderHash,
	}
}

// QueryOptions filters and limits a query.
type QueryOptions struct {
	// K caps the number of hits; zero or less returns every qualifying hit.
	K int

	// Domains restricts hits to these domains; empty means all.
	Domains []string

	// MinSimilarity drops hits scoring below it.
	MinSimilarity float64
}

// Hit is one ranked query result.
type Hit struct {
	Entry      types.GlossaryEntry
	Similarity float64

	// Exact is set when the entry's normalized source term equals the
	// normalized query. Exact hits always score 1.0.
	Exact bool
}

// Index is an immutable set of embedded glossary entries.
type Index struct {
	embedder embed.Embedder
	opts     Options

	entries []types.GlossaryEntry
	keys    []string
	vectors [][]float32
	exact   map[string][]int
	vocab   map[string]bool

	// computed holds entries embedded during this build, for cache write-back.
	computed []glossary.Stored
	revision uint64
	err      error
}

// Empty returns an index with no entries. Every query misses.
func Empty() *Index {
	return &Index{exact: map[string][]int{}, vocab: map[string]bool{}, opts: Options{}.withDefaults()}
}

// CacheKey identifies the embedding of text under model. A cached vector is
// reused only when its key matches.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:12])
}

// Build embeds entries and returns the index. Entries whose cached
// embedding matches the current model and text are not re-embedded.
//
// Build always returns a usable index. When embedding fails the returned
// index is empty (every query misses) and the error explains why; Err on
// the index reports the same error.
func Build(ctx context.Context, embedder embed.Embedder, entries []glossary.Stored, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	idx := &Index{
		embedder: embedder,
		opts:     opts,
		exact:    make(map[string][]int),
		vocab:    make(map[string]bool),
	}
	if len(entries) == 0 {
		return idx, nil
	}

	model := embedder.ModelName()
	texts := make([]string, len(entries))
	cacheKeys := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	var pending []int

	for i, e := range entries {
		key := opts.Normalizer.Key(e.SourceTerm)
		texts[i] = key
		if opts.IncludeDefinition && strings.TrimSpace(e.Definition) != "" {
			texts[i] = key + ": " + e.Definition
		}
		cacheKeys[i] = CacheKey(model, texts[i])
		if e.EmbeddingKey == cacheKeys[i] && len(e.Embedding) > 0 {
			vectors[i] = e.Embedding
			continue
		}
		pending = append(pending, i)
	}

	if err := embedPending(ctx, embedder, opts, texts, pending, vectors); err != nil {
		empty := Empty()
		empty.embedder = embedder
		empty.opts = opts
		empty.err = err
		return empty, err
	}

	for _, i := range pending {
		st := entries[i]
		st.Embedding = vectors[i]
		st.EmbeddingKey = cacheKeys[i]
		idx.computed = append(idx.computed, st)
	}

	idx.entries = make([]types.GlossaryEntry, len(entries))
	idx.keys = make([]string, len(entries))
	idx.vectors = make([][]float32, len(entries))
	for i, e := range entries {
		entry := e.GlossaryEntry
		entry.Embedding = nil
		idx.entries[i] = entry
		key := opts.Normalizer.Key(e.SourceTerm)
		idx.keys[i] = key
		idx.vectors[i] = unit(vectors[i])
		idx.exact[key] = append(idx.exact[key], i)
		for _, tok := range strings.Fields(key) {
			idx.vocab[tok] = true
		}
	}
	return idx, nil
}

// embedPending fills vectors[i] for each pending i, in batches run
// concurrently.
func embedPending(ctx context.Context, embedder embed.Embedder, opts Options, texts []string, pending []int, vectors [][]float32) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for start := 0; start < len(pending); start += opts.BatchSize {
		batch := pending[start:min(start+opts.BatchSize, len(pending))]
		g.Go(func() error {
			in := make([]string, len(batch))
			for j, i := range batch {
				in[j] = texts[i]
			}
			out, err := embedder.EmbedBatch(gctx, in)
			if err != nil {
				return fmt.Errorf("embedding %d glossary terms: %w", len(in), err)
			}
			if len(out) != len(in) {
				return fmt.Errorf("embedder returned %d vectors for %d terms", len(out), len(in))
			}
			for j, i := range batch {
				vectors[i] = out[j]
			}
			return nil
		})
	}
	return g.Wait()
}

// Len returns the number of indexed entries.
func (x *Index) Len() int { return len(x.entries) }

// Err returns the build failure that left this index empty, if any.
func (x *Index) Err() error { return x.err }

// Revision returns the glossary revision the index was built from.
func (x *Index) Revision() uint64 { return x.revision }

// Computed returns the entries embedded during the build, with their new
// embeddings and cache keys.
func (x *Index) Computed() []glossary.Stored { return x.computed }

// Normalizer returns the normalizer the index was built with.
func (x *Index) Normalizer() *normalize.Normalizer { return x.opts.Normalizer }

// Query embeds text and returns the ranked hits. An empty query, or one
// against an empty index, returns no hits without calling the embedder.
func (x *Index) Query(ctx context.Context, text string, opts QueryOptions) ([]Hit, error) {
	key := x.opts.Normalizer.Key(text)
	if key == "" || len(x.entries) == 0 {
		return nil, nil
	}
	vec, err := x.embedder.Embed(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("embedding query %q: %w", text, err)
	}
	return x.QueryVector(vec, key, opts), nil
}

// QueryVector ranks entries against an embedded query. key is the
// normalized query text used for exact matching; it may be empty.
//
// Hits are ordered by similarity descending, then shorter source term,
// then source term, then domain, so equal inputs always rank identically.
func (x *Index) QueryVector(vec []float32, key string, opts QueryOptions) []Hit {
	if len(x.entries) == 0 {
		return nil
	}
	q := unit(vec)

	var allowed map[string]bool
	if len(opts.Domains) > 0 {
		allowed = make(map[string]bool, len(opts.Domains))
		for _, d := range opts.Domains {
			allowed[d] = true
		}
	}

	var hits []Hit
	for i, e := range x.entries {
		if allowed != nil && !allowed[e.Domain] {
			continue
		}
		h := Hit{Entry: e}
		if key != "" && x.keys[i] == key {
			h.Similarity = 1.0
			h.Exact = true
		} else {
			h.Similarity = dot(q, x.vectors[i])
		}
		if h.Similarity < opts.MinSimilarity {
			continue
		}
		hits = append(hits, h)
	}

	sort.Slice(hits, func(i, j int) bool { return less(hits[i], hits[j]) })
	if opts.K > 0 && len(hits) > opts.K {
		hits = hits[:opts.K]
	}
	return hits
}

func less(a, b Hit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	la, lb := utf8.RuneCountInString(a.Entry.SourceTerm), utf8.RuneCountInString(b.Entry.SourceTerm)
	if la != lb {
		return la < lb
	}
	if a.Entry.SourceTerm != b.Entry.SourceTerm {
		return a.Entry.SourceTerm < b.Entry.SourceTerm
	}
	return a.Entry.Domain < b.Entry.Domain
}

// Exact returns the entries whose normalized source term equals the
// normalized term, restricted to domains when non-empty.
func (x *Index) Exact(term string, domains []string) []types.GlossaryEntry {
	key := x.opts.Normalizer.Key(term)
	var out []types.GlossaryEntry
	for _, i := range x.exact[key] {
		e := x.entries[i]
		if len(domains) > 0 && !contains(domains, e.Domain) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// MayContain reports whether a span made of words could match an entry.
// With the prefilter enabled it requires at least one word shared with the
// glossary vocabulary; otherwise it only requires a non-empty index.
func (x *Index) MayContain(words []string) bool {
	if len(x.entries) == 0 {
		return false
	}
	if !x.opts.Prefilter {
		return true
	}
	for _, w := range words {
		for _, tok := range strings.Fields(x.opts.Normalizer.Key(w)) {
			if x.vocab[tok] {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// unit returns v scaled to length 1, or v itself when it is all zeros.
func unit(v []float32) []float32 {
	var n float64
	for _, f := range v {
		n += float64(f) * float64(f)
	}
	if n == 0 {
		return v
	}
	n = math.Sqrt(n)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
