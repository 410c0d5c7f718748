// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/term-engine/internal/ledger"
	"github.com/pdiddy/term-engine/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <term>...",
	Short: "Resolve terms against the glossary",
	Long: `Resolve looks each term up in the embedding index of the active domains
and reports a match, the tied candidates when the match is ambiguous, or
no match with the best similarity seen. All terms share one session
ledger, so variants of a term resolve to the same rendering.

With --text the arguments are treated as running text: every glossary
term inside it is found and listed with its required rendering.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

// resolveResult is the JSON form of one outcome.
type resolveResult struct {
	Term       string   `json:"term"`
	Outcome    string   `json:"outcome"`
	Target     string   `json:"target,omitempty"`
	Domain     string   `json:"domain,omitempty"`
	Similarity float64  `json:"similarity"`
	Candidates []string `json:"candidates,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, cancel := signalContext()
	defer cancel()

	if err := a.syncGlossaryDir(ctx); err != nil {
		return err
	}
	r, err := a.resolver()
	if err != nil {
		return err
	}
	l := ledger.New(a.norm)
	domains := a.cfg.Translation.Domains

	asText, _ := cmd.Flags().GetBool("text")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if asText {
		ann, err := r.Annotate(ctx, l, strings.Join(args, " "), domains, 0)
		if err != nil {
			return err
		}
		if jsonOutput {
			return encodeJSON(ann.Constraints)
		}
		for _, c := range ann.Constraints {
			fmt.Printf("%s -> %s\n", c.SourceTerm, c.TargetTerm)
		}
		for _, d := range ann.Defaulted {
			fmt.Fprintf(os.Stderr, "ambiguous %q: chose %s of %d candidates\n", d.Span, d.Default.Entry.TargetTerm, len(d.Candidates))
		}
		return nil
	}

	var results []resolveResult
	for i, term := range args {
		out, err := r.ResolveAt(ctx, term, l, domains, i)
		if err != nil {
			return err
		}
		results = append(results, describe(out))
	}
	if jsonOutput {
		return encodeJSON(results)
	}
	for _, res := range results {
		switch res.Outcome {
		case "match":
			fmt.Printf("%-30s  %s [%s] (%.3f)\n", res.Term, res.Target, res.Domain, res.Similarity)
		case "ambiguous":
			fmt.Printf("%-30s  ambiguous: %s\n", res.Term, strings.Join(res.Candidates, " | "))
		default:
			fmt.Printf("%-30s  no match (best %.3f)\n", res.Term, res.Similarity)
		}
	}
	return nil
}

func describe(out resolve.Outcome) resolveResult {
	switch o := out.(type) {
	case resolve.Match:
		return resolveResult{Term: o.Span, Outcome: "match", Target: o.Target(), Domain: o.Record.Domain, Similarity: o.Record.Confidence}
	case resolve.Ambiguous:
		res := resolveResult{Term: o.Span, Outcome: "ambiguous", Similarity: o.Default.Similarity}
		for _, h := range o.Candidates {
			res.Candidates = append(res.Candidates, fmt.Sprintf("%s [%s] %.3f", h.Entry.TargetTerm, h.Entry.Domain, h.Similarity))
		}
		return res
	case resolve.NoMatch:
		return resolveResult{Term: o.Span, Outcome: "no-match", Similarity: o.BestSimilarity}
	}
	return resolveResult{Term: out.Term(), Outcome: "unknown"}
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	fs := resolveCmd.Flags()
	fs.Bool("text", false, "treat the arguments as running text and list the terms found")
	fs.Bool("json", false, "output results as JSON")
	fs.Float64("threshold", 0, "minimum similarity for a match (default 0.85)")
	fs.Float64("tie-margin", 0, "similarity band treated as a tie (default 0.02)")
	bindFlags(fs, map[string]string{
		"resolver.accept_threshold": "threshold",
		"resolver.tie_margin":       "tie-margin",
	})

	rootCmd.AddCommand(resolveCmd)
}
