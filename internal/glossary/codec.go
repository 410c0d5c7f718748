// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package glossary

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/term-engine/pkg/types"
)

// Format is a glossary file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Canonical field names. Columns and keys are matched case-insensitively.
const (
	fieldSource     = "source_term"
	fieldTarget     = "target_term"
	fieldDefinition = "definition"
	fieldDomain     = "domain"
)

// fieldAliases maps accepted column names to canonical fields. The english
// and chinese names are the legacy glossary layout. Values under a canonical
// name are kept verbatim; values under any other alias are hand-edited
// legacy data and have surrounding space trimmed.
var fieldAliases = map[string]string{
	"source_term":         fieldSource,
	"source":              fieldSource,
	"term":                fieldSource,
	"english":             fieldSource,
	"english term":        fieldSource,
	"target_term":         fieldTarget,
	"target":              fieldTarget,
	"translation":         fieldTarget,
	"chinese":             fieldTarget,
	"chinese translation": fieldTarget,
	"definition":          fieldDefinition,
	"notes":               fieldDefinition,
	"domain":              fieldDomain,
}

// domainTerms is one domain of the legacy {"<domain>": {"terms": [...]}} layout.
type domainTerms struct {
	Terms []map[string]any `json:"terms"`
}

var errEmptyField = errors.New("required field is empty")

// ParseFormat converts a format name ("csv", "json", "yaml" or "yml").
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported glossary format %q (want csv, json or yaml)", name)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Encode writes entries in the given format. Embeddings are never written.
func Encode(w io.Writer, f Format, entries []types.GlossaryEntry) error {
	switch f {
	case FormatCSV:
		return encodeCSV(w, entries)
	case FormatJSON:
		if entries == nil {
			entries = []types.GlossaryEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported glossary format %q", f)
}

func encodeCSV(w io.Writer, entries []types.GlossaryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{fieldSource, fieldTarget, fieldDefinition, fieldDomain}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.SourceTerm, e.TargetTerm, e.Definition, e.Domain}); err != nil {
			return fmt.Errorf("writing CSV row for %q: %w", e.SourceTerm, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads entries in the given format. It stops at the first malformed
// row or field and returns a *SerializationError; no partial result is
// returned. Rows with no domain keep an empty Domain for the caller to fill.
func Decode(r io.Reader, f Format) ([]types.GlossaryEntry, error) {
	switch f {
	case FormatCSV:
		return decodeCSV(r)
	case FormatJSON:
		return decodeJSON(r)
	case FormatYAML:
		return decodeYAML(r)
	}
	return nil, fmt.Errorf("unsupported glossary format %q", f)
}

func decodeCSV(r io.Reader) ([]types.GlossaryEntry, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &SerializationError{Format: FormatCSV, Row: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &SerializationError{Format: FormatCSV, Row: 1, Err: err}
	}
	cr.FieldsPerRecord = len(header)

	columns := make(map[string]int)
	trim := make(map[string]bool)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		field, ok := fieldAliases[name]
		if !ok {
			continue
		}
		if _, dup := columns[field]; dup {
			return nil, &SerializationError{Format: FormatCSV, Row: 1, Field: name, Err: errors.New("column given twice")}
		}
		columns[field] = i
		trim[field] = name != field
	}
	for _, required := range []string{fieldSource, fieldTarget} {
		if _, ok := columns[required]; !ok {
			return nil, &SerializationError{Format: FormatCSV, Row: 1, Field: required, Err: errors.New("missing column")}
		}
	}

	get := func(rec []string, field string) string {
		i, ok := columns[field]
		if !ok {
			return ""
		}
		if trim[field] {
			return strings.TrimSpace(rec[i])
		}
		return rec[i]
	}

	var entries []types.GlossaryEntry
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				err = pe.Err
			}
			return nil, &SerializationError{Format: FormatCSV, Row: row, Err: err}
		}
		e := types.GlossaryEntry{
			SourceTerm: get(rec, fieldSource),
			TargetTerm: get(rec, fieldTarget),
			Definition: get(rec, fieldDefinition),
			Domain:     get(rec, fieldDomain),
		}
		if err := checkRequired(FormatCSV, row, e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// decodeJSON accepts an array of records, or an object mapping domain names
// to {"terms": [...]} as written by the legacy terminology database.
func decodeJSON(r io.Reader) ([]types.GlossaryEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '{' {
		var byDomain map[string]domainTerms
		if err := dec.Decode(&byDomain); err != nil {
			return nil, &SerializationError{Format: FormatJSON, Err: err}
		}
		return recordsByDomain(FormatJSON, byDomain)
	}

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, &SerializationError{Format: FormatJSON, Err: err}
	}
	return fromRecords(FormatJSON, records, "")
}

func decodeYAML(r io.Reader) ([]types.GlossaryEntry, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, &SerializationError{Format: FormatYAML, Err: err}
	}

	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []any:
		records := make([]map[string]any, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &SerializationError{Format: FormatYAML, Row: i + 1, Err: fmt.Errorf("expected a mapping, got %T", item)}
			}
			records[i] = m
		}
		return fromRecords(FormatYAML, records, "")
	case map[string]any:
		byDomain := make(map[string]domainTerms, len(v))
		for domain, raw := range v {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, &SerializationError{Format: FormatYAML, Field: domain, Err: fmt.Errorf("expected a mapping, got %T", raw)}
			}
			list, _ := m["terms"].([]any)
			var terms []map[string]any
			for i, item := range list {
				t, ok := item.(map[string]any)
				if !ok {
					return nil, &SerializationError{Format: FormatYAML, Row: i + 1, Field: domain, Err: fmt.Errorf("expected a mapping, got %T", item)}
				}
				terms = append(terms, t)
			}
			byDomain[domain] = domainTerms{Terms: terms}
		}
		return recordsByDomain(FormatYAML, byDomain)
	}
	return nil, &SerializationError{Format: FormatYAML, Err: fmt.Errorf("expected a list of entries, got %T", doc)}
}

func recordsByDomain(f Format, byDomain map[string]domainTerms) ([]types.GlossaryEntry, error) {
	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	var entries []types.GlossaryEntry
	for _, d := range domains {
		part, err := fromRecords(f, byDomain[d].Terms, d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, part...)
	}
	return entries, nil
}

// fromRecords converts decoded records. Row numbers are 1-based positions in
// the record list. Unknown keys (such as a legacy "embedding") are ignored.
func fromRecords(f Format, records []map[string]any, domain string) ([]types.GlossaryEntry, error) {
	entries := make([]types.GlossaryEntry, 0, len(records))
	for i, rec := range records {
		row := i + 1
		e := types.GlossaryEntry{Domain: domain}
		for key, raw := range rec {
			name := strings.ToLower(strings.TrimSpace(key))
			field, ok := fieldAliases[name]
			if !ok {
				continue
			}
			if raw == nil {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				return nil, &SerializationError{Format: f, Row: row, Field: key, Err: fmt.Errorf("expected a string, got %T", raw)}
			}
			if name != field {
				s = strings.TrimSpace(s)
			}
			switch field {
			case fieldSource:
				e.SourceTerm = s
			case fieldTarget:
				e.TargetTerm = s
			case fieldDefinition:
				e.Definition = s
			case fieldDomain:
				if strings.TrimSpace(s) != "" {
					e.Domain = s
				}
			}
		}
		if err := checkRequired(f, row, e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func checkRequired(f Format, row int, e types.GlossaryEntry) error {
	if strings.TrimSpace(e.SourceTerm) == "" {
		return &SerializationError{Format: f, Row: row, Field: fieldSource, Err: errEmptyField}
	}
	if strings.TrimSpace(e.TargetTerm) == "" {
		return &SerializationError{Format: f, Row: row, Field: fieldTarget, Err: errEmptyField}
	}
	return nil
}

// templateEntries are the sample rows of a new glossary file.
var templateEntries = []types.GlossaryEntry{
	{SourceTerm: "artificial intelligence", TargetTerm: "人工智慧", Definition: "計算機系統模擬人類智能的能力"},
	{SourceTerm: "machine learning", TargetTerm: "機器學習"},
	{SourceTerm: "deep learning", TargetTerm: "深度學習"},
}

// WriteTemplate writes a starter glossary with a few sample rows.
func WriteTemplate(w io.Writer, f Format) error {
	return Encode(w, f, templateEntries)
}
