// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/term-engine/internal/resolve"
	"github.com/pdiddy/term-engine/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate <document>...",
	Short: "Translate documents with consistent terminology",
	Long: `Translate runs one session per document. Every text block is annotated
with the glossary terms it contains; each term is resolved once and the
chosen rendering is passed to the translation model for every block that
uses it. Formulas, tables and images pass through unchanged.

The translated Markdown and a <doc>-session.yaml with the blocks and the
session ledger are written to the output directory. With --synthesize,
frequent terms the glossary lacks are translated once up front and reused
like glossary terms; promote them later with "ledger promote".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranslate,
}

func runTranslate(cmd *cobra.Command, args []string) error {
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
	tr, err := translate.NewClaudeTranslator(a.cfg.Translation)
	if err != nil {
		return fmt.Errorf("%w (set anthropic-api-key in .secrets/ or ANTHROPIC_API_KEY)", err)
	}
	r, err := a.resolver(resolve.WithTermTranslator(tr))
	if err != nil {
		return err
	}
	s := translate.NewSession(r, tr, a.cfg.Translation,
		translate.WithNormalizer(a.norm),
		translate.WithExtraction(a.cfg.Extraction),
		translate.WithLogger(slog.Default()),
	)

	failed := 0
	for _, path := range args {
		if _, err := s.TranslateFile(ctx, path, os.Stdout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(os.Stdout, "failed  %s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed translation", failed)
	}
	return nil
}

func init() {
	fs := translateCmd.Flags()
	fs.String("output-dir", "", "directory for translated documents (default translations)")
	fs.String("target-language", "", "target language (default Traditional Chinese)")
	fs.String("model", "", "translation model")
	fs.Duration("session-timeout", 0, "abandon untranslated blocks after this long (0 = no limit)")
	fs.Bool("synthesize", false, "translate uncovered candidate terms before the document")
	bindFlags(fs, map[string]string{
		"translation.output_dir":       "output-dir",
		"translation.target_language":  "target-language",
		"translation.model":            "model",
		"translation.session_timeout":  "session-timeout",
		"translation.synthesize_terms": "synthesize",
	})

	rootCmd.AddCommand(translateCmd)
}
