// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/term-engine/internal/document"
	"github.com/pdiddy/term-engine/pkg/types"
)

// CandidateFile is the YAML written for each document.
type CandidateFile struct {
	Document   string                `yaml:"document"`
	Candidates []types.CandidateTerm `yaml:"candidates"`
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Extracted int
	Skipped   int
	Failed    int
}

// Total returns the number of documents processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Skipped + s.Failed
}

// HasFailures reports whether any document failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// isDocument reports whether name is a file ExtractAll reads.
func isDocument(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt", ".pdf":
		return true
	}
	return false
}

// ExtractAll extracts candidates from every document in cfg.DocumentsDir
// and writes <doc>-candidates.yaml files to cfg.OutputDir. Documents whose
// output is newer than the source are skipped. A document that cannot be
// read is reported on w and counted as failed; the run continues.
func (e *Extractor) ExtractAll(ctx context.Context, existing []types.GlossaryEntry, w io.Writer) (BatchSummary, error) {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return BatchSummary{}, fmt.Errorf("creating output directory: %w", err)
	}
	entries, err := os.ReadDir(e.cfg.DocumentsDir)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("reading documents directory %s: %w", e.cfg.DocumentsDir, err)
	}

	var summary BatchSummary
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if entry.IsDir() || !isDocument(entry.Name()) {
			continue
		}

		docID := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		docPath := filepath.Join(e.cfg.DocumentsDir, entry.Name())
		outPath := filepath.Join(e.cfg.OutputDir, docID+"-candidates.yaml")

		changed, err := hasChanged(docPath, outPath)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		if !changed {
			fmt.Fprintf(w, "skipped %s\n", docID)
			summary.Skipped++
			continue
		}

		candidates, err := e.ExtractFile(docPath, existing)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		if err := writeCandidates(outPath, CandidateFile{Document: entry.Name(), Candidates: candidates}); err != nil {
			fmt.Fprintf(w, "failed  %s: write error: %v\n", docID, err)
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "extracted %s (%d candidates)\n", docID, len(candidates))
		summary.Extracted++
	}
	return summary, nil
}

// ExtractFile loads a document and extracts candidates from its text
// blocks. The bibliography is left out.
func (e *Extractor) ExtractFile(path string, existing []types.GlossaryEntry) ([]types.CandidateTerm, error) {
	blocks, err := document.Load(nil, path)
	if err != nil {
		return nil, err
	}
	return e.Extract(ProseText(blocks), existing), nil
}

// ProseText joins the text blocks of a document, one paragraph each,
// stopping at the references section. Headings are kept since they often
// name the key terms.
func ProseText(blocks []types.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Kind != types.BlockText {
			continue
		}
		if isReferencesHeading(b.Section) {
			break
		}
		parts = append(parts, strings.TrimLeft(b.Text, "# "))
	}
	return strings.Join(parts, "\n\n")
}

// hasChanged reports whether the document is newer than its output file.
// Returns true if the output does not exist.
func hasChanged(docPath, outPath string) (bool, error) {
	docInfo, err := os.Stat(docPath)
	if err != nil {
		return false, fmt.Errorf("stat document %s: %w", docPath, err)
	}
	outInfo, err := os.Stat(outPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat output %s: %w", outPath, err)
	}
	return docInfo.ModTime().After(outInfo.ModTime()), nil
}

func writeCandidates(path string, f CandidateFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling candidates: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadCandidates loads a file written by ExtractAll.
func ReadCandidates(path string) (CandidateFile, error) {
	var f CandidateFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}
