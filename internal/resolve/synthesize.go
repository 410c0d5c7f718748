// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/term-engine/internal/ledger"
	"github.com/pdiddy/term-engine/pkg/types"
)

// ErrNoTranslator is returned by Synthesize on a resolver built without
// WithTermTranslator.
var ErrNoTranslator = errors.New("no term translator configured")

// TermTranslator renders a single term that the glossary does not cover.
type TermTranslator interface {
	TranslateTerm(ctx context.Context, term string, domains []string) (string, error)
}

// Synthesize resolves term and, when the glossary has no match, asks the
// term translator for a rendering and commits it with origin synthesized.
// Glossary and ledger matches are returned unchanged. An Ambiguous outcome
// is returned as is for the caller to settle. A blank translation leaves
// the term unresolved and yields NoMatch.
func (r *Resolver) Synthesize(ctx context.Context, l *ledger.Ledger, term string, domains []string, position int) (Outcome, error) {
	if r.translator == nil {
		return nil, ErrNoTranslator
	}
	out, err := r.ResolveAt(ctx, term, l, domains, position)
	if err != nil {
		return nil, err
	}
	nm, ok := out.(NoMatch)
	if !ok || nm.Key == "" {
		return out, nil
	}

	synthesized := false
	rec, found, err := l.Claim(ctx, term, func(ctx context.Context) (types.ResolutionRecord, bool, error) {
		target, err := r.translator.TranslateTerm(ctx, term, domains)
		if err != nil {
			return types.ResolutionRecord{}, false, fmt.Errorf("translating term %q: %w", term, err)
		}
		target = strings.TrimSpace(target)
		if target == "" {
			return types.ResolutionRecord{}, false, nil
		}
		synthesized = true
		return types.ResolutionRecord{
			ChosenTarget:      target,
			FirstSeenPosition: position,
			Confidence:        1,
			Origin:            types.OriginSynthesized,
			GlossaryTerm:      term,
		}, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nm, nil
	}
	m := fromRecord(term, nm.Key, rec)
	m.FromLedger = !synthesized
	return m, nil
}
