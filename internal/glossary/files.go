// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package glossary

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/term-engine/pkg/types"
)

// templatePrefix marks starter files that SyncDir leaves alone.
const templatePrefix = "template"

// ImportSummary reports the outcome of importing one glossary file.
type ImportSummary struct {
	Path    string
	Entries int
	Domains []string
}

// SyncSummary reports the outcome of syncing a glossary directory.
type SyncSummary struct {
	Imported  int
	Unchanged int
	Failed    int
	Entries   int
}

// Total returns the number of glossary files examined.
func (s SyncSummary) Total() int {
	return s.Imported + s.Unchanged + s.Failed
}

// Import decodes the glossary file at path and adds its entries in one
// transaction. The domain of each entry is domain when non-empty, else the
// row's own domain, else the file's base name. A malformed file or a
// duplicate (without overwrite) leaves the store unchanged.
func (s *Store) Import(ctx context.Context, path, domain string, overwrite bool) (ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return s.importData(ctx, path, data, domain, overwrite)
}

func (s *Store) importData(ctx context.Context, path string, data []byte, domain string, overwrite bool) (ImportSummary, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return ImportSummary{}, err
	}

	entries, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		var se *SerializationError
		if errors.As(err, &se) {
			se.Path = path
		}
		return ImportSummary{}, err
	}

	fallback := DomainFromPath(path)
	seen := make(map[string]bool)
	for i := range entries {
		switch {
		case domain != "":
			entries[i].Domain = domain
		case entries[i].Domain == "":
			entries[i].Domain = fallback
		}
		seen[entries[i].Domain] = true
	}

	if err := s.AddAll(ctx, entries, overwrite); err != nil {
		return ImportSummary{}, fmt.Errorf("importing %s: %w", path, err)
	}

	summary := ImportSummary{Path: path, Entries: len(entries)}
	for d := range seen {
		summary.Domains = append(summary.Domains, d)
	}
	sort.Strings(summary.Domains)
	return summary, nil
}

// Export writes the entries of the given domains (every domain when empty)
// to path, choosing the codec from the extension. The file is replaced
// atomically.
func (s *Store) Export(ctx context.Context, domains []string, path string) (int, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return 0, err
	}

	if len(domains) == 0 {
		domains, err = s.ListDomains(ctx)
		if err != nil {
			return 0, err
		}
	}

	var entries []types.GlossaryEntry
	for _, d := range domains {
		part, err := s.Load(ctx, d)
		if err != nil {
			return 0, fmt.Errorf("loading domain %q: %w", d, err)
		}
		entries = append(entries, part...)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, format, entries); err != nil {
		return 0, err
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// WriteTemplateFile writes a starter glossary to path in the format implied
// by its extension. An existing file is never overwritten.
func WriteTemplateFile(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	var buf bytes.Buffer
	if err := WriteTemplate(&buf, format); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// SyncDir imports every glossary file in dir whose content changed since
// the last sync, upserting its entries. Files named template* are skipped.
// Per-file failures are reported to w and counted; they do not stop the sync.
func (s *Store) SyncDir(ctx context.Context, dir string, w io.Writer) (SyncSummary, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return SyncSummary{}, fmt.Errorf("reading glossary directory %s: %w", dir, err)
	}

	var summary SyncSummary
	for _, de := range dirEntries {
		if de.IsDir() || !IsGlossaryFile(de.Name()) {
			continue
		}
		path := filepath.Join(dir, de.Name())

		n, changed, err := s.SyncFile(ctx, path)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed  %s: %v\n", de.Name(), err)
			summary.Failed++
		case !changed:
			fmt.Fprintf(w, "skipped %s\n", de.Name())
			summary.Unchanged++
		default:
			fmt.Fprintf(w, "imported %s (%d entries)\n", de.Name(), n)
			summary.Imported++
			summary.Entries += n
		}
	}
	return summary, nil
}

// SyncFile imports path with overwrite when its content digest differs from
// the one recorded at the last sync. It returns the number of entries
// imported and whether the file had changed.
func (s *Store) SyncFile(ctx context.Context, path string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("reading %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	prev, err := s.fileDigest(ctx, path)
	if err != nil {
		return 0, false, err
	}
	if prev == digest {
		return 0, false, nil
	}

	summary, err := s.importData(ctx, path, data, "", true)
	if err != nil {
		return 0, true, err
	}
	if err := s.setFileDigest(ctx, path, digest); err != nil {
		return summary.Entries, true, err
	}
	return summary.Entries, true, nil
}

// IsGlossaryFile reports whether name is a syncable glossary file: a known
// extension, not hidden, and not a template.
func IsGlossaryFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(strings.ToLower(base), templatePrefix) {
		return false
	}
	_, err := FormatFromPath(base)
	return err == nil
}

// DomainFromPath derives a domain name from a glossary file name:
// "glossary/physics.csv" becomes "physics".
func DomainFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *Store) fileDigest(ctx context.Context, path string) (string, error) {
	query, args, err := sq.Select("value").From("meta").Where(sq.Eq{"key": "file:" + path}).ToSql()
	if err != nil {
		return "", fmt.Errorf("building query: %w", err)
	}
	var digest string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading digest for %s: %w", path, err)
	}
	return digest, nil
}

func (s *Store) setFileDigest(ctx context.Context, path, digest string) error {
	query, args, err := sq.Insert("meta").
		Columns("key", "value").
		Values("file:"+path, digest).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording digest for %s: %w", path, err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
