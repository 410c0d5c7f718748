// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/term-engine/internal/index"
	"github.com/pdiddy/term-engine/internal/ledger"
	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

// Annotation is the terminology found in one text unit.
type Annotation struct {
	Position int

	// Constraints are the (surface span, required target) pairs for the
	// unit, one per term key, in order of first occurrence.
	Constraints []types.TermConstraint

	// Matches holds every resolved span in text order, repeats included.
	Matches []Match

	// Defaulted lists the ambiguous spans whose default candidate was
	// committed.
	Defaulted []Ambiguous
}

// found is a resolved span located by word offsets within its run.
type found struct {
	run, start int
	match      Match
}

// Annotate finds glossary terms in unit and commits them to the ledger.
//
// Each clause-bounded run of words is scanned twice, longest span first.
// The first pass takes spans whose key is already in the ledger or exactly
// equals a glossary key; the second pass resolves the words left over by
// similarity. Spans that begin or end with a function word are only taken
// on an exact key. Ambiguous spans commit their default candidate.
func (r *Resolver) Annotate(ctx context.Context, l *ledger.Ledger, unit string, domains []string, position int) (Annotation, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return Annotation{Position: position}, err
	}
	return r.annotate(ctx, idx, l, unit, domains, position, nil)
}

func (r *Resolver) annotate(ctx context.Context, idx *index.Index, l *ledger.Ledger, unit string, domains []string, position int, q *queryCache) (Annotation, error) {
	ann := Annotation{Position: position}
	runs := normalize.Runs(unit)
	var hits []found
	for ri, run := range runs {
		covered := make([]bool, len(run))

		for _, exactPass := range []bool{true, false} {
			for i := 0; i < len(run); {
				n, m, amb, err := r.longest(ctx, idx, l, unit, run, covered, i, domains, position, exactPass, q)
				if err != nil {
					return ann, err
				}
				if n == 0 {
					i++
					continue
				}
				for k := i; k < i+n; k++ {
					covered[k] = true
				}
				if amb != nil {
					ann.Defaulted = append(ann.Defaulted, *amb)
				}
				hits = append(hits, found{run: ri, start: i, match: m})
				i += n
			}
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].run != hits[b].run {
			return hits[a].run < hits[b].run
		}
		return hits[a].start < hits[b].start
	})

	seen := make(map[string]bool)
	for _, h := range hits {
		l.Observe(h.match.Span, position)
		ann.Matches = append(ann.Matches, h.match)
		if seen[h.match.Key] {
			continue
		}
		seen[h.match.Key] = true
		ann.Constraints = append(ann.Constraints, types.TermConstraint{
			SourceTerm: h.match.Span,
			TargetTerm: h.match.Target(),
		})
	}
	return ann, nil
}

// longest tries spans starting at run[i], longest first, and returns the
// number of words taken (0 for none) with the resulting match.
func (r *Resolver) longest(ctx context.Context, idx *index.Index, l *ledger.Ledger, unit string, run []normalize.Word,
	covered []bool, i int, domains []string, position int, exactPass bool, q *queryCache) (int, Match, *Ambiguous, error) {

	if covered[i] {
		return 0, Match{}, nil, nil
	}
	limit := r.cfg.MaxSpanWords
	for n := 1; n < limit && i+n < len(run); n++ {
		if covered[i+n] {
			limit = n
			break
		}
	}
	if i+limit > len(run) {
		limit = len(run) - i
	}

	for n := limit; n >= 1; n-- {
		span := normalize.Span(unit, run, i, i+n)
		key := l.Key(span)
		if key == "" {
			continue
		}

		_, inLedger := l.Lookup(span)
		exact := inLedger || len(idx.Exact(span, domains)) > 0
		if exactPass && !exact {
			continue
		}
		if !exact {
			if functionBoundary(run[i:i+n]) || !idx.MayContain(texts(run[i:i+n])) {
				continue
			}
		}

		out, err := r.resolve(ctx, idx, span, key, l, domains, position, q)
		if err != nil {
			return 0, Match{}, nil, fmt.Errorf("resolving %q: %w", span, err)
		}
		switch o := out.(type) {
		case Match:
			return n, o, nil, nil
		case Ambiguous:
			m, err := r.Accept(ctx, l, o, 0, position)
			if err != nil {
				return 0, Match{}, nil, err
			}
			slog.Debug("ambiguous term defaulted",
				"span", span, "candidates", len(o.Candidates), "target", m.Target())
			return n, m, &o, nil
		}
	}
	return 0, Match{}, nil, nil
}

// functionBoundary reports whether a span starts or ends with a word that
// never carries terminology on its own.
func functionBoundary(words []normalize.Word) bool {
	if len(words) == 1 {
		return normalize.IsCommonWord(words[0].Text)
	}
	return normalize.IsStopWord(words[0].Text) || normalize.IsStopWord(words[len(words)-1].Text)
}

func texts(words []normalize.Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}

// AnnotateAll annotates units and returns the annotations in unit order,
// using each unit's slice index as its position. All units share l, so a
// term resolved in one unit is reused by every other.
//
// Index queries for every candidate span run concurrently first. The units
// are then annotated one after another in order against those results, so
// span segmentation and the first resolution of each term follow document
// order and do not depend on worker scheduling.
func (r *Resolver) AnnotateAll(ctx context.Context, l *ledger.Ledger, units []string, domains []string) ([]Annotation, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	q := newQueryCache()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, u := range units {
		g.Go(func() error {
			if err := r.prefetch(gctx, idx, l, u, domains, q); err != nil {
				return fmt.Errorf("unit %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Annotation, len(units))
	for i, u := range units {
		ann, err := r.annotate(ctx, idx, l, u, domains, i, q)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		out[i] = ann
	}
	return out, nil
}

// prefetch queries idx for every span of unit that annotate may resolve by
// index, storing the outcomes in q.
func (r *Resolver) prefetch(ctx context.Context, idx *index.Index, l *ledger.Ledger, unit string, domains []string, q *queryCache) error {
	for _, run := range normalize.Runs(unit) {
		for i := range run {
			for n := 1; n <= r.cfg.MaxSpanWords && i+n <= len(run); n++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				span := normalize.Span(unit, run, i, i+n)
				key := l.Key(span)
				if key == "" {
					continue
				}
				if len(idx.Exact(span, domains)) == 0 &&
					(functionBoundary(run[i:i+n]) || !idx.MayContain(texts(run[i:i+n]))) {
					continue
				}
				if _, err := q.query(ctx, r, idx, span, key, domains); err != nil {
					return fmt.Errorf("resolving %q: %w", span, err)
				}
			}
		}
	}
	return nil
}

// queryCache memoizes index query outcomes by span for one AnnotateAll
// call. A nil cache queries directly.
type queryCache struct {
	mu sync.Mutex
	m  map[string]Outcome
}

func newQueryCache() *queryCache {
	return &queryCache{m: make(map[string]Outcome)}
}

func (q *queryCache) query(ctx context.Context, r *Resolver, idx *index.Index, span, key string, domains []string) (Outcome, error) {
	if q == nil {
		return r.query(ctx, idx, span, key, domains)
	}
	q.mu.Lock()
	out, ok := q.m[span]
	q.mu.Unlock()
	if ok {
		return out, nil
	}
	out, err := r.query(ctx, idx, span, key, domains)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	q.m[span] = out
	q.mu.Unlock()
	return out, nil
}
