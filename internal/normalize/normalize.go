// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize folds terms into comparison keys. The glossary store,
// embedding index, ledger, and resolver share one Normalizer so that a span
// and a glossary term compare equal exactly when their keys are equal.
//
// Folding rules, applied in order:
//
//  1. Unicode NFKC composition (full-width and ligature forms collapse).
//  2. Hyphen folding, when enabled: hyphen and dash runes become spaces.
//  3. Unicode case folding, when enabled.
//  4. Whitespace collapse, when enabled: trim and reduce runs to one space.
//  5. Leading and trailing punctuation is removed.
//  6. Plural folding, when enabled: the final ASCII word is singularized.
//
// Near-paraphrases that fold to different keys ("neural net" vs "neural
// network") are distinct terms.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/term-engine/pkg/types"
)

// Normalizer produces comparison keys for terms. It is safe for concurrent use.
type Normalizer struct {
	cfg types.NormalizeConfig
}

// New returns a Normalizer applying the rules selected in cfg.
func New(cfg types.NormalizeConfig) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Default returns a Normalizer with the default folding rules.
func Default() *Normalizer {
	return New(types.DefaultConfig().Normalize)
}

// Config returns the rules this Normalizer applies.
func (n *Normalizer) Config() types.NormalizeConfig { return n.cfg }

// Key folds s into its comparison key. The empty string means s carries no
// term at all (blank or punctuation only).
func (n *Normalizer) Key(s string) string {
	s = norm.NFKC.String(s)

	if n.cfg.FoldHyphens {
		s = strings.Map(func(r rune) rune {
			if isHyphen(r) {
				return ' '
			}
			return r
		}, s)
	}

	if n.cfg.CaseFold {
		// Casers carry state and must not be shared between goroutines.
		s = cases.Fold().String(s)
	}

	if n.cfg.CollapseWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}

	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})

	if n.cfg.FoldPlural && s != "" {
		s = singularizeLast(s)
	}

	return s
}

// Tokens returns the words of s's key.
func (n *Normalizer) Tokens(s string) []string {
	return strings.Fields(n.Key(s))
}

// Equal reports whether a and b fold to the same non-empty key.
func (n *Normalizer) Equal(a, b string) bool {
	ka := n.Key(a)
	return ka != "" && ka == n.Key(b)
}

func isHyphen(r rune) bool {
	switch r {
	case '-', '‐', '‑', '‒', '–', '—', '−':
		return true
	}
	return false
}

// singularizeLast folds the final whitespace-separated word of s.
func singularizeLast(s string) string {
	i := strings.LastIndexAny(s, " \t")
	if i < 0 {
		return Singular(s)
	}
	return s[:i+1] + Singular(s[i+1:])
}
