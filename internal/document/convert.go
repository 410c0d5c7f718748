// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/term-engine/pkg/types"
)

// Reader turns a source file into content blocks. PDFReader is the
// production implementation; tests substitute their own.
type Reader interface {
	Read(path string) ([]types.ContentBlock, error)
}

// PDFReader reads PDFs with ReadPDF.
type PDFReader struct{}

// Read implements Reader.
func (PDFReader) Read(path string) ([]types.ContentBlock, error) { return ReadPDF(path) }

// Load reads a document by extension: Markdown and plain text are parsed
// with ParseMarkdown, PDFs with r.
func Load(r Reader, path string) ([]types.ContentBlock, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		if r == nil {
			r = PDFReader{}
		}
		return r.Read(path)
	case ".md", ".markdown", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return ParseMarkdown(string(data)), nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any document failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertPaths converts each PDF to Markdown in outDir, named after the
// PDF. Existing Markdown is kept so hand edits survive; delete it to
// convert again. Progress goes to w.
func ConvertPaths(r Reader, pdfPaths []string, outDir string, w io.Writer) BatchResult {
	var result BatchResult
	for _, p := range pdfPaths {
		base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		mdPath := filepath.Join(outDir, base+".md")

		if _, err := os.Stat(mdPath); err == nil {
			fmt.Fprintf(w, "skipped %s (already converted)\n", base)
			result.Skipped++
			continue
		}
		if err := convertOne(r, p, mdPath); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", base, err)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "converted %s\n", base)
		result.Converted++
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

func convertOne(r Reader, pdfPath, mdPath string) error {
	blocks, err := r.Read(pdfPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(mdPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	content := addFrontMatter(pdfPath, ToMarkdown(blocks))
	return os.WriteFile(mdPath, []byte(content), 0o644)
}

// addFrontMatter prepends YAML front matter recording the source PDF.
func addFrontMatter(pdfPath, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "source_pdf: %q\n", pdfPath)
	fmt.Fprintf(&b, "converted_at: %q\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}
