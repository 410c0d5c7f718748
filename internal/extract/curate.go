// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/term-engine/pkg/types"
)

// TermTranslator proposes a target-language rendering for one term.
type TermTranslator interface {
	TranslateTerm(ctx context.Context, term string, domains []string) (string, error)
}

// Curate asks tr for a rendering of each candidate and returns proposed
// glossary entries. The store is not touched; callers add the entries they
// accept. domain overrides each candidate's suggested domain when set.
// Candidates the translator fails on, or answers blank, are reported on w
// and skipped. Each candidate is asked once; transport retries belong to tr.
func Curate(ctx context.Context, tr TermTranslator, candidates []types.CandidateTerm, domain string, w io.Writer) ([]types.GlossaryEntry, error) {
	var out []types.GlossaryEntry
	for _, c := range candidates {
		d := domain
		if d == "" {
			d = c.Domain()
		}
		target, err := tr.TranslateTerm(ctx, c.Text, []string{d})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			fmt.Fprintf(w, "failed  %s: %v\n", c.Text, err)
			continue
		}
		target = strings.TrimSpace(target)
		if target == "" {
			fmt.Fprintf(w, "skipped %s (no translation)\n", c.Text)
			continue
		}
		fmt.Fprintf(w, "proposed %s -> %s [%s]\n", c.Text, target, d)
		out = append(out, types.GlossaryEntry{SourceTerm: c.Text, TargetTerm: target, Domain: d})
	}
	return out, nil
}
