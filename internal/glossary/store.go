// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package glossary persists per-domain terminology entries and reads and
// writes glossary files.
//
// The store is a SQLite database. Entries are keyed by (domain, normalized
// source term); two spellings that fold to the same key ("Neural Networks",
// "neural network") are the same term. Cached embeddings live next to the
// entries and are cleared whenever the source term or definition changes.
// Every mutation bumps the domain's revision so derived indexes can detect
// that they are stale.
package glossary

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

const memoryDB = ":memory:"

// upsertSuffix keeps the cached embedding only when the embedded text is unchanged.
const upsertSuffix = `ON CONFLICT(domain, term_key) DO UPDATE SET
	source_term = excluded.source_term,
	target_term = excluded.target_term,
	definition = excluded.definition,
	embedding = CASE WHEN entries.source_term = excluded.source_term AND entries.definition = excluded.definition
		THEN entries.embedding ELSE NULL END,
	embedding_key = CASE WHEN entries.source_term = excluded.source_term AND entries.definition = excluded.definition
		THEN entries.embedding_key ELSE NULL END`

// Stored is an entry together with its cached embedding metadata.
type Stored struct {
	types.GlossaryEntry

	// EmbeddingKey identifies the model and input text that produced
	// Embedding. Empty when no embedding is cached.
	EmbeddingKey string
}

// Store manages the glossary SQLite database.
type Store struct {
	db   *sql.DB
	norm *normalize.Normalizer

	mu        sync.Mutex
	revisions map[string]uint64
	revision  uint64
}

// NewStore opens or creates the glossary database at cfg.DBPath. It creates
// the schema if it does not exist and rekeys stored terms when the
// normalization rules changed since the database was last opened.
func NewStore(cfg types.GlossaryConfig, n *normalize.Normalizer) (*Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = types.DefaultConfig().Glossary.DBPath
	}

	dsn := memoryDB
	if dbPath != memoryDB {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == memoryDB {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:        db,
		norm:      n,
		revisions: make(map[string]uint64),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.syncNormalization(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Normalizer returns the normalizer used for term keys.
func (s *Store) Normalizer() *normalize.Normalizer { return s.norm }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			domain TEXT NOT NULL,
			term_key TEXT NOT NULL,
			source_term TEXT NOT NULL,
			target_term TEXT NOT NULL,
			definition TEXT NOT NULL DEFAULT '',
			embedding BLOB,
			embedding_key TEXT,
			PRIMARY KEY (domain, term_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_term_key ON entries(term_key)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// syncNormalization rewrites term keys when the folding rules differ from
// the ones recorded in the meta table.
func (s *Store) syncNormalization(ctx context.Context) error {
	want := fmt.Sprintf("%+v", s.norm.Config())

	var have string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'normalize'`).Scan(&have)
	if err == nil && have == want {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading normalization settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT domain, term_key, source_term FROM entries`)
	if err != nil {
		return fmt.Errorf("reading terms for rekey: %w", err)
	}
	type rekey struct{ domain, oldKey, newKey, source string }
	var updates []rekey
	seen := make(map[string]string)
	for rows.Next() {
		var r rekey
		if err := rows.Scan(&r.domain, &r.oldKey, &r.source); err != nil {
			rows.Close()
			return fmt.Errorf("scanning row: %w", err)
		}
		r.newKey = s.norm.Key(r.source)
		id := r.domain + "\x00" + r.newKey
		if prev, ok := seen[id]; ok {
			rows.Close()
			return fmt.Errorf("rekeying glossary: %w", &DuplicateTermError{Domain: r.domain, SourceTerm: r.source, Existing: prev})
		}
		seen[id] = r.source
		if r.newKey != r.oldKey {
			updates = append(updates, r)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading terms for rekey: %w", err)
	}

	// Move keys aside first so swapped keys never collide mid-update.
	for i, u := range updates {
		tmp := fmt.Sprintf("\x00rekey-%d", i)
		if _, err := tx.ExecContext(ctx, `UPDATE entries SET term_key = ? WHERE domain = ? AND term_key = ?`, tmp, u.domain, u.oldKey); err != nil {
			return fmt.Errorf("rekeying %q: %w", u.source, err)
		}
		updates[i].oldKey = tmp
	}
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `UPDATE entries SET term_key = ? WHERE domain = ? AND term_key = ?`, u.newKey, u.domain, u.oldKey); err != nil {
			return fmt.Errorf("rekeying %q: %w", u.source, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('normalize', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, want,
	); err != nil {
		return fmt.Errorf("recording normalization settings: %w", err)
	}
	return tx.Commit()
}

// validate checks required fields and returns the entry's term key.
func (s *Store) validate(e types.GlossaryEntry) (string, error) {
	if e.Domain == "" {
		return "", fmt.Errorf("%w: %q has no domain", ErrInvalidEntry, e.SourceTerm)
	}
	key := s.norm.Key(e.SourceTerm)
	if key == "" {
		return "", fmt.Errorf("%w: empty source term in domain %q", ErrInvalidEntry, e.Domain)
	}
	if s.norm.Key(e.TargetTerm) == "" {
		return "", fmt.Errorf("%w: %q in domain %q has no target term", ErrInvalidEntry, e.SourceTerm, e.Domain)
	}
	return key, nil
}

// Add inserts one entry. It fails with a DuplicateTermError when the
// normalized source term already exists in the domain and overwrite is
// false; the store is then unchanged.
func (s *Store) Add(ctx context.Context, e types.GlossaryEntry, overwrite bool) error {
	return s.AddAll(ctx, []types.GlossaryEntry{e}, overwrite)
}

// AddAll inserts entries in one transaction: either every entry is written
// or none is. Two entries of the batch that share a term key are always a
// duplicate, even with overwrite.
func (s *Store) AddAll(ctx context.Context, entries []types.GlossaryEntry, overwrite bool) error {
	if len(entries) == 0 {
		return nil
	}

	keys := make([]string, len(entries))
	batch := make(map[string]string, len(entries))
	for i, e := range entries {
		key, err := s.validate(e)
		if err != nil {
			return err
		}
		id := e.Domain + "\x00" + key
		if prev, ok := batch[id]; ok {
			return &DuplicateTermError{Domain: e.Domain, SourceTerm: e.SourceTerm, Existing: prev}
		}
		batch[id] = e.SourceTerm
		keys[i] = key
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if !overwrite {
		for i, e := range entries {
			existing, found, err := s.sourceFor(ctx, tx, e.Domain, keys[i])
			if err != nil {
				return err
			}
			if found {
				return &DuplicateTermError{Domain: e.Domain, SourceTerm: e.SourceTerm, Existing: existing}
			}
		}
	}

	touched := make(map[string]bool)
	for i, e := range entries {
		if err := upsert(ctx, tx, e, keys[i]); err != nil {
			return err
		}
		touched[e.Domain] = true
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entries: %w", err)
	}
	s.bump(touched)
	return nil
}

// Save replaces the contents of domain with entries. Entries with an empty
// domain are assigned to domain; a different domain is an error. Cached
// embeddings survive for entries whose source term and definition are unchanged.
func (s *Store) Save(ctx context.Context, domain string, entries []types.GlossaryEntry) error {
	if domain == "" {
		return fmt.Errorf("%w: save requires a domain", ErrInvalidEntry)
	}

	keys := make(map[string]types.GlossaryEntry, len(entries))
	for _, e := range entries {
		if e.Domain == "" {
			e.Domain = domain
		}
		if e.Domain != domain {
			return fmt.Errorf("%w: %q belongs to domain %q, not %q", ErrInvalidEntry, e.SourceTerm, e.Domain, domain)
		}
		key, err := s.validate(e)
		if err != nil {
			return err
		}
		if prev, ok := keys[key]; ok {
			return &DuplicateTermError{Domain: domain, SourceTerm: e.SourceTerm, Existing: prev.SourceTerm}
		}
		keys[key] = e
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Select("term_key").From("entries").Where(sq.Eq{"domain": domain}).ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("listing domain %q: %w", domain, err)
	}
	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return fmt.Errorf("scanning row: %w", err)
		}
		if _, keep := keys[key]; !keep {
			stale = append(stale, key)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing domain %q: %w", domain, err)
	}

	if len(stale) > 0 {
		query, args, err := sq.Delete("entries").Where(sq.Eq{"domain": domain, "term_key": stale}).ToSql()
		if err != nil {
			return fmt.Errorf("building delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("removing stale entries: %w", err)
		}
	}

	for key, e := range keys {
		if err := upsert(ctx, tx, e, key); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing domain %q: %w", domain, err)
	}
	s.bump(map[string]bool{domain: true})
	return nil
}

// Remove deletes the entry for sourceTerm from domain. It returns
// ErrTermNotFound when the domain has no such term.
func (s *Store) Remove(ctx context.Context, domain, sourceTerm string) error {
	key := s.norm.Key(sourceTerm)
	query, args, err := sq.Delete("entries").Where(sq.Eq{"domain": domain, "term_key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("removing %q: %w", sourceTerm, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("removing %q: %w", sourceTerm, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q in domain %q", ErrTermNotFound, sourceTerm, domain)
	}
	s.bump(map[string]bool{domain: true})
	return nil
}

// Load returns every entry of domain sorted by source term. Embeddings are
// not included; use Entries for index builds.
func (s *Store) Load(ctx context.Context, domain string) ([]types.GlossaryEntry, error) {
	query, args, err := sq.Select("source_term", "target_term", "definition", "domain").
		From("entries").
		Where(sq.Eq{"domain": domain}).
		OrderBy("source_term").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return s.queryEntries(ctx, query, args...)
}

// Lookup returns the entries whose source term folds to the same key as
// term, across domains (every domain when domains is empty), ordered by domain.
func (s *Store) Lookup(ctx context.Context, domains []string, term string) ([]types.GlossaryEntry, error) {
	key := s.norm.Key(term)
	if key == "" {
		return nil, nil
	}
	b := sq.Select("source_term", "target_term", "definition", "domain").
		From("entries").
		Where(sq.Eq{"term_key": key}).
		OrderBy("domain")
	if len(domains) > 0 {
		b = b.Where(sq.Eq{"domain": domains})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return s.queryEntries(ctx, query, args...)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]types.GlossaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying glossary: %w", err)
	}
	defer rows.Close()

	var entries []types.GlossaryEntry
	for rows.Next() {
		var e types.GlossaryEntry
		if err := rows.Scan(&e.SourceTerm, &e.TargetTerm, &e.Definition, &e.Domain); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Entries returns the entries of the given domains (all domains when empty)
// with their cached embeddings, ordered by domain and term key.
func (s *Store) Entries(ctx context.Context, domains []string) ([]Stored, error) {
	b := sq.Select("source_term", "target_term", "definition", "domain", "embedding", "embedding_key").
		From("entries").
		OrderBy("domain", "term_key")
	if len(domains) > 0 {
		b = b.Where(sq.Eq{"domain": domains})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying glossary: %w", err)
	}
	defer rows.Close()

	var out []Stored
	for rows.Next() {
		var (
			st     Stored
			blob   []byte
			embKey sql.NullString
		)
		if err := rows.Scan(&st.SourceTerm, &st.TargetTerm, &st.Definition, &st.Domain, &blob, &embKey); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if embKey.Valid && len(blob) > 0 {
			st.Embedding = decodeVector(blob)
			st.EmbeddingKey = embKey.String
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// PutEmbeddings caches computed embeddings. An embedding is only written when
// the entry's source term and definition still match, so a concurrent edit
// is never paired with a stale vector. Caching does not change revisions.
func (s *Store) PutEmbeddings(ctx context.Context, entries []Stored) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		query, args, err := sq.Update("entries").
			Set("embedding", encodeVector(e.Embedding)).
			Set("embedding_key", e.EmbeddingKey).
			Where(sq.Eq{
				"domain":      e.Domain,
				"term_key":    s.norm.Key(e.SourceTerm),
				"source_term": e.SourceTerm,
				"definition":  e.Definition,
			}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("caching embedding for %q: %w", e.SourceTerm, err)
		}
	}
	return tx.Commit()
}

// ListDomains returns the sorted names of every non-empty domain.
func (s *Store) ListDomains(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("DISTINCT domain").From("entries").OrderBy("domain").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// Revision returns a counter that increases whenever any of the given
// domains is mutated through this Store. With no domains it covers every
// domain. Derived indexes compare revisions to detect staleness.
func (s *Store) Revision(domains ...string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(domains) == 0 {
		return s.revision
	}
	var sum uint64
	for _, d := range domains {
		sum += s.revisions[d]
	}
	return sum
}

func (s *Store) bump(domains map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for d := range domains {
		s.revisions[d]++
		s.revision++
	}
}

// sourceFor returns the stored source term for (domain, key).
func (s *Store) sourceFor(ctx context.Context, tx *sql.Tx, domain, key string) (string, bool, error) {
	query, args, err := sq.Select("source_term").From("entries").
		Where(sq.Eq{"domain": domain, "term_key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building query: %w", err)
	}
	var source string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&source)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checking for %q: %w", key, err)
	}
	return source, true, nil
}

func upsert(ctx context.Context, tx *sql.Tx, e types.GlossaryEntry, key string) error {
	query, args, err := sq.Insert("entries").
		Columns("domain", "term_key", "source_term", "target_term", "definition").
		Values(e.Domain, key, e.SourceTerm, e.TargetTerm, e.Definition).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing %q: %w", e.SourceTerm, err)
	}
	return nil
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
