// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/term-engine/internal/document"
)

var convertCmd = &cobra.Command{
	Use:   "convert <pdf>...",
	Short: "Convert PDF files to structured Markdown",
	Long: `Convert extracts the text of each PDF page, merges lines into
paragraphs, tags math-dense rows as formulas, and writes Markdown with page
markers to the output directory. Files already converted are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("output-dir")
		result := document.ConvertPaths(document.PDFReader{}, args, outDir, os.Stdout)
		if result.HasFailures() {
			return fmt.Errorf("%d file(s) failed conversion", result.Failed)
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().String("output-dir", "documents", "directory for converted Markdown")

	rootCmd.AddCommand(convertCmd)
}
