// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records, for one document-translation session, which
// translation was chosen for each distinct normalized source term.
//
// The first resolution of a term wins: later commits must agree with it.
// A ledger is in-memory only and is discarded with its session; Promote
// copies synthesized choices into the glossary when a caller asks for it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

var (
	// ErrConflict matches any ConflictError via errors.Is.
	ErrConflict = errors.New("ledger conflict")

	// ErrEmptyTerm is returned when a term normalizes to the empty key.
	ErrEmptyTerm = errors.New("term is empty after normalization")
)

// ConflictError reports a commit whose target disagrees with the record
// already held for the term. It signals a resolver defect and is never
// resolved silently.
type ConflictError struct {
	Term     string
	Existing string
	Proposed string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("term %q already resolved to %q, refusing %q", e.Term, e.Existing, e.Proposed)
}

// Is makes errors.Is(err, ErrConflict) succeed.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Ledger is safe for concurrent use. Reads share a read lock; commits are
// serialized.
type Ledger struct {
	id        string
	createdAt time.Time
	norm      *normalize.Normalizer

	mu      sync.RWMutex
	records map[string]types.ResolutionRecord

	claims singleflight.Group
}

// New opens an empty ledger that keys terms with n.
func New(n *normalize.Normalizer) *Ledger {
	if n == nil {
		n = normalize.Default()
	}
	return &Ledger{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		norm:      n,
		records:   make(map[string]types.ResolutionRecord),
	}
}

// ID returns the session identifier.
func (l *Ledger) ID() string { return l.id }

// Key returns the normalized form under which term is recorded.
func (l *Ledger) Key(term string) string { return l.norm.Key(term) }

// Lookup returns the record for term, normalizing it first.
func (l *Ledger) Lookup(term string) (types.ResolutionRecord, bool) {
	return l.lookupKey(l.norm.Key(term))
}

func (l *Ledger) lookupKey(key string) (types.ResolutionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[key]
	return rec, ok
}

// Commit records rec for term. Committing the same target again is a no-op
// that returns the original record; a different target fails with a
// *ConflictError and leaves the original in place.
func (l *Ledger) Commit(term string, rec types.ResolutionRecord) (types.ResolutionRecord, error) {
	key := l.norm.Key(term)
	if key == "" {
		return types.ResolutionRecord{}, ErrEmptyTerm
	}
	return l.commit(key, term, rec)
}

func (l *Ledger) commit(key, term string, rec types.ResolutionRecord) (types.ResolutionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[key]; ok {
		if existing.ChosenTarget == rec.ChosenTarget {
			return existing, nil
		}
		return existing, &ConflictError{Term: key, Existing: existing.ChosenTarget, Proposed: rec.ChosenTarget}
	}

	rec.SourceTerm = key
	if rec.GlossaryTerm == "" {
		rec.GlossaryTerm = term
	}
	l.records[key] = rec
	return rec, nil
}

// Observe notes that term occurred at position. When units are resolved
// concurrently a later unit may commit first; Observe moves the record's
// FirstSeenPosition back to the earliest unit that used it. The chosen
// target never changes.
func (l *Ledger) Observe(term string, position int) {
	key := l.norm.Key(term)
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[key]; ok && position < rec.FirstSeenPosition {
		rec.FirstSeenPosition = position
		l.records[key] = rec
	}
}

// ClaimFunc resolves a term that has no record yet. It returns commit=false
// when the resolution should not be recorded (no match, or a choice still
// pending).
type ClaimFunc func(ctx context.Context) (rec types.ResolutionRecord, commit bool, err error)

// Claim returns the record for term, calling resolve to produce one when
// none exists. Concurrent claims for the same key run resolve once; the
// others wait and receive its result. found is false when resolve declined
// to commit.
func (l *Ledger) Claim(ctx context.Context, term string, resolve ClaimFunc) (rec types.ResolutionRecord, found bool, err error) {
	key := l.norm.Key(term)
	if key == "" {
		return types.ResolutionRecord{}, false, ErrEmptyTerm
	}
	if rec, ok := l.lookupKey(key); ok {
		return rec, true, nil
	}

	type claimed struct {
		rec   types.ResolutionRecord
		found bool
	}
	v, err, _ := l.claims.Do(key, func() (any, error) {
		if rec, ok := l.lookupKey(key); ok {
			return claimed{rec, true}, nil
		}
		rec, commit, err := resolve(ctx)
		if err != nil || !commit {
			return claimed{}, err
		}
		rec, err = l.commit(key, term, rec)
		if err != nil {
			return claimed{}, err
		}
		return claimed{rec, true}, nil
	})
	if err != nil {
		return types.ResolutionRecord{}, false, err
	}
	c := v.(claimed)
	return c.rec, c.found, nil
}

// Len returns the number of recorded terms.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Export returns every record ordered by first-seen position, then key.
func (l *Ledger) Export() []types.ResolutionRecord {
	l.mu.RLock()
	out := make([]types.ResolutionRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeenPosition != out[j].FirstSeenPosition {
			return out[i].FirstSeenPosition < out[j].FirstSeenPosition
		}
		return out[i].SourceTerm < out[j].SourceTerm
	})
	return out
}

// Snapshot is an exported ledger with its session metadata.
type Snapshot struct {
	SessionID string                   `json:"session_id" yaml:"session_id"`
	CreatedAt time.Time                `json:"created_at" yaml:"created_at"`
	Records   []types.ResolutionRecord `json:"records" yaml:"records"`
}

// Snapshot exports the ledger with its session ID.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{SessionID: l.id, CreatedAt: l.createdAt, Records: l.Export()}
}

// EntryAdder is the part of the glossary store Promote needs.
type EntryAdder interface {
	AddAll(ctx context.Context, entries []types.GlossaryEntry, overwrite bool) error
}

// Promote adds every synthesized record to the glossary under domain, in
// one batch. It returns the number of entries added. Glossary-origin
// records are already in the store and are skipped.
func (l *Ledger) Promote(ctx context.Context, store EntryAdder, domain string, overwrite bool) (int, error) {
	var entries []types.GlossaryEntry
	for _, r := range l.Export() {
		if r.Origin != types.OriginSynthesized {
			continue
		}
		source := r.GlossaryTerm
		if source == "" {
			source = r.SourceTerm
		}
		entries = append(entries, types.GlossaryEntry{
			SourceTerm: source,
			TargetTerm: r.ChosenTarget,
			Domain:     domain,
		})
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := store.AddAll(ctx, entries, overwrite); err != nil {
		return 0, fmt.Errorf("promoting %d synthesized terms: %w", len(entries), err)
	}
	return len(entries), nil
}
