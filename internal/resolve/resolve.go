// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve maps source-text spans to glossary entries and keeps
// every later occurrence of a resolved term consistent through the
// session ledger.
//
// Resolution has three outcomes and none of them is an error: Match (a
// glossary or ledger rendering applies), Ambiguous (several entries tie and
// the caller may choose), and NoMatch (nothing scores above the accept
// threshold). Callers switch on the concrete type.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdiddy/term-engine/internal/index"
	"github.com/pdiddy/term-engine/internal/ledger"
	"github.com/pdiddy/term-engine/pkg/types"
)

// ErrInvalidChoice is returned by Accept when the choice does not name a
// candidate.
var ErrInvalidChoice = errors.New("choice is not one of the candidates")

// Outcome is the result of resolving one span: a Match, an Ambiguous, or a
// NoMatch.
type Outcome interface {
	// Term returns the span as it appeared in the text.
	Term() string
	outcome()
}

// Match is a resolved span. Record is the ledger record the rendering
// comes from; every later occurrence of the same key reuses it.
type Match struct {
	Span       string
	Key        string
	Entry      types.GlossaryEntry
	Record     types.ResolutionRecord
	Similarity float64

	// FromLedger is set when the record already existed and the index was
	// not consulted.
	FromLedger bool
}

// Ambiguous holds the candidates that scored within the tie margin of the
// best hit and disagree on the target. Nothing has been committed;
// Default is the highest-ranked candidate.
type Ambiguous struct {
	Span       string
	Key        string
	Candidates []index.Hit
	Default    index.Hit
}

// NoMatch means no entry reached the accept threshold. BestSimilarity is
// the highest score seen, zero when the index had nothing to offer.
type NoMatch struct {
	Span           string
	Key            string
	BestSimilarity float64
}

func (m Match) Term() string     { return m.Span }
func (a Ambiguous) Term() string { return a.Span }
func (n NoMatch) Term() string   { return n.Span }

func (Match) outcome()     {}
func (Ambiguous) outcome() {}
func (NoMatch) outcome()   {}

// Target returns the rendering every occurrence of the span must use.
func (m Match) Target() string { return m.Record.ChosenTarget }

// IndexSource supplies the index to query. *index.Manager implements it.
// A source may return an index together with an error (a failed build);
// the index is still used.
type IndexSource interface {
	Index(ctx context.Context) (*index.Index, error)
}

// IndexFunc adapts a function to IndexSource.
type IndexFunc func(ctx context.Context) (*index.Index, error)

// Index calls f.
func (f IndexFunc) Index(ctx context.Context) (*index.Index, error) { return f(ctx) }

// Static returns a source that always serves idx.
func Static(idx *index.Index) IndexSource {
	return IndexFunc(func(context.Context) (*index.Index, error) { return idx, nil })
}

// Disambiguator chooses among tied candidates. It returns the index of
// the chosen candidate, or ok=false to leave the span ambiguous.
type Disambiguator interface {
	Choose(ctx context.Context, span string, candidates []index.Hit) (choice int, ok bool, err error)
}

// DisambiguatorFunc adapts a function to Disambiguator.
type DisambiguatorFunc func(ctx context.Context, span string, candidates []index.Hit) (int, bool, error)

// Choose calls f.
func (f DisambiguatorFunc) Choose(ctx context.Context, span string, candidates []index.Hit) (int, bool, error) {
	return f(ctx, span, candidates)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDisambiguator lets d pick among tied candidates before a span is
// reported as Ambiguous.
func WithDisambiguator(d Disambiguator) Option {
	return func(r *Resolver) { r.disambiguator = d }
}

// WithTermTranslator enables Synthesize.
func WithTermTranslator(t TermTranslator) Option {
	return func(r *Resolver) { r.translator = t }
}

// Resolver is safe for concurrent use. All per-document state lives in the
// ledger passed to each call.
type Resolver struct {
	src           IndexSource
	cfg           types.ResolverConfig
	disambiguator Disambiguator
	translator    TermTranslator
}

// New returns a resolver over src. Zero thresholds in cfg take their
// defaults.
func New(src IndexSource, cfg types.ResolverConfig, opts ...Option) *Resolver {
	r := &Resolver{src: src, cfg: cfg.WithDefaults()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the effective thresholds.
func (r *Resolver) Config() types.ResolverConfig { return r.cfg }

// Resolve resolves span at position 0. See ResolveAt.
func (r *Resolver) Resolve(ctx context.Context, span string, l *ledger.Ledger, domains []string) (Outcome, error) {
	return r.ResolveAt(ctx, span, l, domains, 0)
}

// ResolveAt resolves span for the text unit at position. A term already in
// the ledger short-circuits to its record. Otherwise the index is queried
// and a Match is committed to the ledger before it is returned, so the
// first resolution of a term is the one every later occurrence reuses.
// Ambiguous and NoMatch commit nothing.
func (r *Resolver) ResolveAt(ctx context.Context, span string, l *ledger.Ledger, domains []string, position int) (Outcome, error) {
	key := l.Key(span)
	if key == "" {
		return NoMatch{Span: span}, nil
	}
	if rec, ok := l.Lookup(span); ok {
		return fromRecord(span, key, rec), nil
	}
	idx, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, idx, span, key, l, domains, position, nil)
}

func (r *Resolver) index(ctx context.Context) (*index.Index, error) {
	idx, err := r.src.Index(ctx)
	if idx == nil {
		if err == nil {
			err = errors.New("no index available")
		}
		return nil, fmt.Errorf("loading index: %w", err)
	}
	if err != nil {
		slog.Debug("resolving against a failed index build", "error", err)
	}
	return idx, nil
}

// resolve claims key in the ledger and queries idx when no record exists.
// Concurrent claims for the same key share one query; the callers that
// waited receive the committed record.
func (r *Resolver) resolve(ctx context.Context, idx *index.Index, span, key string, l *ledger.Ledger, domains []string, position int, q *queryCache) (Outcome, error) {
	var out Outcome
	rec, found, err := l.Claim(ctx, span, func(ctx context.Context) (types.ResolutionRecord, bool, error) {
		o, err := q.query(ctx, r, idx, span, key, domains)
		if err != nil {
			return types.ResolutionRecord{}, false, err
		}
		out = o
		m, ok := o.(Match)
		if !ok {
			return types.ResolutionRecord{}, false, nil
		}
		return recordFor(m.Entry, m.Similarity, position), true, nil
	})
	if err != nil {
		return nil, err
	}

	if found {
		if m, ok := out.(Match); ok {
			m.Record = rec
			return m, nil
		}
		return fromRecord(span, key, rec), nil
	}
	if out != nil {
		return out, nil
	}
	// Another caller ran the query and declined to commit; its outcome is
	// not shared, so compute ours.
	return q.query(ctx, r, idx, span, key, domains)
}

// query ranks index hits for span without touching the ledger.
func (r *Resolver) query(ctx context.Context, idx *index.Index, span, key string, domains []string) (Outcome, error) {
	hits, err := idx.Query(ctx, span, index.QueryOptions{K: r.cfg.TopK, Domains: domains})
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 || hits[0].Similarity < r.cfg.AcceptThreshold {
		nm := NoMatch{Span: span, Key: key}
		if len(hits) > 0 {
			nm.BestSimilarity = hits[0].Similarity
		}
		return nm, nil
	}

	top := hits[0].Similarity
	var band []index.Hit
	for _, h := range hits {
		if h.Similarity < r.cfg.AcceptThreshold || top-h.Similarity >= r.cfg.TieMargin {
			break
		}
		band = append(band, h)
	}

	var exact []index.Hit
	for _, h := range band {
		if h.Exact {
			exact = append(exact, h)
		}
	}
	if len(exact) > 0 {
		band = exact
	}

	if agree(band) {
		return match(span, key, band[0]), nil
	}

	if r.disambiguator != nil {
		choice, ok, err := r.disambiguator.Choose(ctx, span, band)
		if err != nil {
			return nil, fmt.Errorf("disambiguating %q: %w", span, err)
		}
		if ok {
			if choice < 0 || choice >= len(band) {
				return nil, fmt.Errorf("disambiguating %q: %w", span, ErrInvalidChoice)
			}
			return match(span, key, band[choice]), nil
		}
	}
	return Ambiguous{Span: span, Key: key, Candidates: band, Default: band[0]}, nil
}

// Accept commits the caller's choice for an ambiguous span and returns the
// resulting match. choice indexes a.Candidates; 0 is the default.
func (r *Resolver) Accept(ctx context.Context, l *ledger.Ledger, a Ambiguous, choice, position int) (Match, error) {
	if choice < 0 || choice >= len(a.Candidates) {
		return Match{}, fmt.Errorf("accepting %q: %w", a.Span, ErrInvalidChoice)
	}
	h := a.Candidates[choice]
	rec, err := l.Commit(a.Span, recordFor(h.Entry, h.Similarity, position))
	if err != nil {
		return Match{}, fmt.Errorf("accepting %q: %w", a.Span, err)
	}
	m := match(a.Span, a.Key, h)
	m.Record = rec
	return m, nil
}

// agree reports whether every hit renders to the same target.
func agree(hits []index.Hit) bool {
	for _, h := range hits[1:] {
		if h.Entry.TargetTerm != hits[0].Entry.TargetTerm {
			return false
		}
	}
	return true
}

func match(span, key string, h index.Hit) Match {
	return Match{Span: span, Key: key, Entry: h.Entry, Similarity: h.Similarity}
}

func recordFor(e types.GlossaryEntry, similarity float64, position int) types.ResolutionRecord {
	return types.ResolutionRecord{
		ChosenTarget:      e.TargetTerm,
		FirstSeenPosition: position,
		Confidence:        similarity,
		Origin:            types.OriginGlossary,
		Domain:            e.Domain,
		GlossaryTerm:      e.SourceTerm,
	}
}

func fromRecord(span, key string, rec types.ResolutionRecord) Match {
	return Match{
		Span: span,
		Key:  key,
		Entry: types.GlossaryEntry{
			SourceTerm: rec.GlossaryTerm,
			TargetTerm: rec.ChosenTarget,
			Domain:     rec.Domain,
		},
		Record:     rec,
		Similarity: rec.Confidence,
		FromLedger: true,
	}
}
