// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/term-engine/internal/ledger"
	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/internal/translate"
	"github.com/pdiddy/term-engine/pkg/types"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect session ledgers and promote synthesized terms",
	Long: `Ledger reads the <doc>-session.yaml (or .json) files written by translate
and works with the terminology decisions recorded in them.`,
}

// --- show subcommand ---

var ledgerShowCmd = &cobra.Command{
	Use:   "show <session-file>",
	Short: "Print the terms a session resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := translate.ReadResult(args[0])
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return encodeJSON(res.Records)
		}

		fmt.Printf("Session %s (%s)\n\n", res.SessionID, res.Document)
		if len(res.Records) == 0 {
			fmt.Println("No terms recorded.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%-5s  %-32s  %-20s  %-11s  %s\n", "Unit", "Term", "Target", "Origin", "Confidence")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 86))
		for _, r := range res.Records {
			fmt.Fprintf(os.Stdout, "%-5d  %-32s  %-20s  %-11s  %.3f\n",
				r.FirstSeenPosition, truncate(r.SourceTerm, 32), truncate(r.ChosenTarget, 20), r.Origin, r.Confidence)
		}
		fmt.Fprintf(os.Stdout, "\n%d terms, %d abandoned blocks\n", len(res.Records), res.Abandoned)
		return nil
	},
}

// --- promote subcommand ---

var ledgerPromoteCmd = &cobra.Command{
	Use:   "promote <session-file>",
	Short: "Add a session's synthesized terms to the glossary",
	Long: `Promote copies every synthesized record of a session into the glossary
under --domain. Glossary-origin records are already in the store and are
skipped. Duplicates fail the whole batch unless --overwrite is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		if domain == "" {
			return fmt.Errorf("--domain is required")
		}
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		res, err := translate.ReadResult(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := restoreLedger(a.norm, res.Records)
		if err != nil {
			return err
		}
		n, err := l.Promote(cmd.Context(), a.store, domain, overwrite)
		if err != nil {
			return err
		}
		fmt.Printf("Promoted %d synthesized terms to %s\n", n, domain)
		return nil
	},
}

// restoreLedger rebuilds a ledger from exported records.
func restoreLedger(n *normalize.Normalizer, records []types.ResolutionRecord) (*ledger.Ledger, error) {
	l := ledger.New(n)
	for _, r := range records {
		if _, err := l.Commit(r.SourceTerm, r); err != nil {
			return nil, fmt.Errorf("restoring %q: %w", r.SourceTerm, err)
		}
	}
	return l, nil
}

func init() {
	ledgerShowCmd.Flags().Bool("json", false, "output records as JSON")

	ledgerPromoteCmd.Flags().String("domain", "", "glossary domain for the promoted terms (required)")
	ledgerPromoteCmd.Flags().Bool("overwrite", false, "replace existing entries")

	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerPromoteCmd)

	rootCmd.AddCommand(ledgerCmd)
}
