// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/term-engine/internal/extract"
	"github.com/pdiddy/term-engine/internal/translate"
	"github.com/pdiddy/term-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [documents...]",
	Short: "Propose candidate glossary terms from documents",
	Long: `Extract scans Markdown, text or PDF documents for recurring technical
phrases and acronym definitions, ranks them by salience, and drops terms
the glossary already covers. With no arguments every document in the
documents directory is processed and <doc>-candidates.yaml files are
written to the output directory; unchanged documents are skipped.`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, cancel := signalContext()
	defer cancel()

	existing, err := knownEntries(ctx, a)
	if err != nil {
		return err
	}
	e := extract.New(a.norm, a.cfg.Extraction)

	if len(args) == 0 {
		summary, err := e.ExtractAll(ctx, existing, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Printf("\n%d extracted, %d skipped, %d failed\n", summary.Extracted, summary.Skipped, summary.Failed)
		if summary.HasFailures() {
			return fmt.Errorf("%d document(s) failed extraction", summary.Failed)
		}
		return nil
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	for _, path := range args {
		cands, err := e.ExtractFile(path, existing)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(extract.CandidateFile{Document: path, Candidates: cands}); err != nil {
				return err
			}
			continue
		}
		printCandidates(path, cands)
	}
	return nil
}

// knownEntries returns the glossary entries of the active domains, which
// extraction leaves out of its candidates.
func knownEntries(ctx context.Context, a *app) ([]types.GlossaryEntry, error) {
	stored, err := a.store.Entries(ctx, a.cfg.Translation.Domains)
	if err != nil {
		return nil, err
	}
	out := make([]types.GlossaryEntry, len(stored))
	for i, s := range stored {
		out[i] = s.GlossaryEntry
	}
	return out, nil
}

func printCandidates(doc string, cands []types.CandidateTerm) {
	fmt.Printf("%s\n\n", doc)
	if len(cands) == 0 {
		fmt.Println("No candidates found.")
		return
	}
	fmt.Fprintf(os.Stdout, "%-4s  %-40s  %-5s  %-8s  %s\n", "Rank", "Term", "Freq", "Salience", "Domain")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 76))
	for i, c := range cands {
		fmt.Fprintf(os.Stdout, "%-4d  %-40s  %-5d  %-8.3f  %s\n", i+1, truncate(c.Text, 40), c.Frequency, c.SalienceScore, c.Domain())
	}
	fmt.Fprintf(os.Stdout, "\n%d candidates\n\n", len(cands))
}

// --- curate subcommand ---

var extractCurateCmd = &cobra.Command{
	Use:   "curate <candidates.yaml>",
	Short: "Propose translations for extracted candidates",
	Long: `Curate asks the translation model for the standard rendering of each
candidate in a <doc>-candidates.yaml file and prints the proposals. With
--promote the proposals are added to the glossary.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtractCurate,
}

func runExtractCurate(cmd *cobra.Command, args []string) error {
	file, err := extract.ReadCandidates(args[0])
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	domain, _ := cmd.Flags().GetString("domain")
	promote, _ := cmd.Flags().GetBool("promote")
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	cands := file.Candidates
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, cancel := signalContext()
	defer cancel()

	tr, err := translate.NewClaudeTranslator(a.cfg.Translation)
	if err != nil {
		return fmt.Errorf("%w (set anthropic-api-key in .secrets/ or ANTHROPIC_API_KEY)", err)
	}
	entries, err := extract.Curate(ctx, tr, cands, domain, os.Stdout)
	if err != nil {
		return err
	}
	if !promote || len(entries) == 0 {
		fmt.Printf("\n%d proposals\n", len(entries))
		return nil
	}
	if err := a.store.AddAll(ctx, entries, overwrite); err != nil {
		return err
	}
	fmt.Printf("\nAdded %d entries to the glossary\n", len(entries))
	return nil
}

func init() {
	fs := extractCmd.Flags()
	fs.String("documents-dir", "", "directory of documents for batch extraction (default documents)")
	fs.String("output-dir", "", "directory for candidate files (default terms)")
	fs.Int("min-frequency", 0, "minimum occurrences of multi-word candidates (default 2)")
	fs.Int("max-candidates", 0, "keep only the top candidates (0 = all)")
	fs.Bool("json", false, "output candidates as JSON")
	bindFlags(fs, map[string]string{
		"extraction.documents_dir":  "documents-dir",
		"extraction.output_dir":     "output-dir",
		"extraction.min_frequency":  "min-frequency",
		"extraction.max_candidates": "max-candidates",
	})

	extractCurateCmd.Flags().Int("limit", 50, "curate only the top candidates (0 = all)")
	extractCurateCmd.Flags().String("domain", "", "domain for every proposal (default: suggested domain)")
	extractCurateCmd.Flags().Bool("promote", false, "add the proposals to the glossary")
	extractCurateCmd.Flags().Bool("overwrite", false, "replace existing entries when promoting")

	extractCmd.AddCommand(extractCurateCmd)
	rootCmd.AddCommand(extractCmd)
}
