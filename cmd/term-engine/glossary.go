// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/term-engine/internal/glossary"
	"github.com/pdiddy/term-engine/pkg/types"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage domain glossaries (import, export, add, remove, list)",
	Long: `Glossary manages the curated terminology store. Entries are grouped by
domain and persisted in a local SQLite database; glossary files (CSV, JSON,
YAML) in the glossary directory are imported with sync or watch.`,
}

// --- import subcommand ---

var glossaryImportCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import glossary files into the store",
	Long: `Import decodes each file (format from its extension) and adds its
entries in one transaction per file. A row without a domain takes the
--domain flag, else the file name. Duplicates fail the file unless
--overwrite is set. With no files, changed files in the glossary directory
are synced.`,
	RunE: runGlossaryImport,
}

func runGlossaryImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, cancel := signalContext()
	defer cancel()

	if len(args) == 0 {
		summary, err := a.store.SyncDir(ctx, a.cfg.Glossary.Dir, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Printf("\n%d imported, %d unchanged, %d failed (%d entries)\n",
			summary.Imported, summary.Unchanged, summary.Failed, summary.Entries)
		if summary.Failed > 0 {
			return fmt.Errorf("%d glossary file(s) failed to import", summary.Failed)
		}
		return nil
	}

	domain, _ := cmd.Flags().GetString("domain")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	failed := 0
	for _, path := range args {
		summary, err := a.store.Import(ctx, path, domain, overwrite)
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed  %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stdout, "imported %s (%d entries, domains: %s)\n",
			path, summary.Entries, strings.Join(summary.Domains, ", "))
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", failed)
	}
	return nil
}

// --- export subcommand ---

var glossaryExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export glossary entries to a CSV, JSON or YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.Export(cmd.Context(), a.cfg.Translation.Domains, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d entries to %s\n", n, args[0])
		return nil
	},
}

// --- add subcommand ---

var glossaryAddCmd = &cobra.Command{
	Use:   "add <source-term> <target-term>",
	Short: "Add one entry to a domain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		if domain == "" {
			return fmt.Errorf("--domain is required")
		}
		definition, _ := cmd.Flags().GetString("definition")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		e := types.GlossaryEntry{SourceTerm: args[0], TargetTerm: args[1], Definition: definition, Domain: domain}
		if err := a.store.Add(cmd.Context(), e, overwrite); err != nil {
			if errors.Is(err, glossary.ErrDuplicateTerm) {
				return fmt.Errorf("%w (use --overwrite to replace it)", err)
			}
			return err
		}
		fmt.Printf("Added %s -> %s [%s]\n", e.SourceTerm, e.TargetTerm, e.Domain)
		return nil
	},
}

// --- remove subcommand ---

var glossaryRemoveCmd = &cobra.Command{
	Use:   "remove <source-term>",
	Short: "Remove one entry from a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		if domain == "" {
			return fmt.Errorf("--domain is required")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Remove(cmd.Context(), domain, args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s [%s]\n", args[0], domain)
		return nil
	},
}

// --- list subcommand ---

var glossaryListCmd = &cobra.Command{
	Use:   "list [term]",
	Short: "List entries, or look up one term across domains",
	Long: `List prints the entries of the active domains. With a term argument it
prints only the entries whose source term normalizes to the same key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGlossaryList,
}

func runGlossaryList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	var entries []types.GlossaryEntry
	if len(args) == 1 {
		entries, err = a.store.Lookup(ctx, a.cfg.Translation.Domains, args[0])
		if err != nil {
			return err
		}
	} else {
		domains := a.cfg.Translation.Domains
		if len(domains) == 0 {
			if domains, err = a.store.ListDomains(ctx); err != nil {
				return err
			}
		}
		for _, d := range domains {
			part, err := a.store.Load(ctx, d)
			if err != nil {
				return err
			}
			entries = append(entries, part...)
		}
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No entries found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-36s  %s\n", "Domain", "Source", "Target")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 72))
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%-12s  %-36s  %s\n", truncate(e.Domain, 12), truncate(e.SourceTerm, 36), e.TargetTerm)
	}
	fmt.Fprintf(os.Stdout, "\n%d entries\n", len(entries))
	return nil
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// --- domains subcommand ---

var glossaryDomainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List the domains in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		domains, err := a.store.ListDomains(cmd.Context())
		if err != nil {
			return err
		}
		for _, d := range domains {
			fmt.Println(d)
		}
		return nil
	},
}

// --- template subcommand ---

var glossaryTemplateCmd = &cobra.Command{
	Use:   "template [file]",
	Short: "Write a starter glossary file with sample rows",
	Long: `Template writes sample entries in the format implied by the file
extension (default glossary/template.csv). Existing files are never
overwritten; files named template* are ignored by sync.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join("glossary", "template.csv")
		if len(args) == 1 {
			path = args[0]
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := glossary.WriteTemplateFile(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

// --- reindex subcommand ---

var glossaryReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the embedding index from the store",
	Long: `Reindex embeds every entry whose cached embedding is missing or was
computed by another model, and stores the new embeddings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx, cancel := signalContext()
		defer cancel()

		m, err := a.indexManager()
		if err != nil {
			return err
		}
		idx, err := m.Rebuild(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d entries (%d embedded)\n", idx.Len(), len(idx.Computed()))
		return nil
	},
}

// --- watch subcommand ---

var glossaryWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-import glossary files as they change",
	Long: `Watch syncs the glossary directory and then re-imports each file when it
is saved, rebuilding the embedding index after every change, until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx, cancel := signalContext()
		defer cancel()

		m, err := a.indexManager()
		if err != nil {
			return err
		}
		return a.store.Watch(ctx, a.cfg.Glossary.Dir, os.Stdout, func(path string, entries int) {
			idx, err := m.Index(ctx)
			if err != nil {
				fmt.Fprintf(os.Stdout, "failed  reindex after %s: %v\n", filepath.Base(path), err)
				return
			}
			fmt.Fprintf(os.Stdout, "reindexed %d entries\n", idx.Len())
		})
	},
}

func init() {
	glossaryImportCmd.Flags().String("domain", "", "domain for rows that carry none (default: file name)")
	glossaryImportCmd.Flags().Bool("overwrite", false, "replace existing entries instead of failing")

	glossaryAddCmd.Flags().String("domain", "", "domain of the entry (required)")
	glossaryAddCmd.Flags().String("definition", "", "optional definition")
	glossaryAddCmd.Flags().Bool("overwrite", false, "replace an existing entry")

	glossaryRemoveCmd.Flags().String("domain", "", "domain of the entry (required)")

	glossaryListCmd.Flags().Bool("json", false, "output entries as JSON")

	glossaryCmd.AddCommand(glossaryImportCmd)
	glossaryCmd.AddCommand(glossaryExportCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryRemoveCmd)
	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryDomainsCmd)
	glossaryCmd.AddCommand(glossaryTemplateCmd)
	glossaryCmd.AddCommand(glossaryReindexCmd)
	glossaryCmd.AddCommand(glossaryWatchCmd)

	rootCmd.AddCommand(glossaryCmd)
}
