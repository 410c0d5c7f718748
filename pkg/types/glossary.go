// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// UnknownDomain is how an absent suggested domain is rendered.
const UnknownDomain = "unknown"

// GlossaryEntry is one curated terminology mapping within a domain.
type GlossaryEntry struct {
	// SourceTerm is the term in the source language. Unique within a domain
	// after normalization.
	SourceTerm string `json:"source_term" yaml:"source_term"`

	// TargetTerm is the required rendering in the target language.
	TargetTerm string `json:"target_term" yaml:"target_term"`

	// Definition is an optional gloss. When enabled it is embedded together
	// with the source term.
	Definition string `json:"definition" yaml:"definition"`

	// Domain is the partition this entry belongs to (e.g. "physics").
	Domain string `json:"domain" yaml:"domain"`

	// Embedding is derived data. It is never written to glossary files and
	// is recomputed whenever SourceTerm or Definition changes.
	Embedding []float32 `json:"-" yaml:"-"`
}

// Origin records where a resolved translation came from.
type Origin string

const (
	OriginGlossary    Origin = "glossary"
	OriginSynthesized Origin = "synthesized"
)

// ResolutionRecord is a Consistency Ledger entry: the translation chosen for
// one normalized source term during a document-translation session.
type ResolutionRecord struct {
	// SourceTerm is the normalized term key.
	SourceTerm string `json:"source_term" yaml:"source_term"`

	// ChosenTarget is the rendering every later occurrence must reuse.
	ChosenTarget string `json:"chosen_target" yaml:"chosen_target"`

	// FirstSeenPosition is the index of the text unit that committed the record.
	FirstSeenPosition int `json:"first_seen_position" yaml:"first_seen_position"`

	// Confidence is the similarity of the accepted match (1.0 for exact and
	// synthesized terms).
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Origin is glossary or synthesized.
	Origin Origin `json:"origin" yaml:"origin"`

	// Domain is the glossary domain of the accepted entry, empty when synthesized.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// GlossaryTerm is the source term of the accepted entry as written in the
	// glossary, or the surface form for synthesized records.
	GlossaryTerm string `json:"glossary_term,omitempty" yaml:"glossary_term,omitempty"`
}

// CandidateTerm is an Extraction Engine proposal awaiting curation.
type CandidateTerm struct {
	Text            string  `json:"text" yaml:"text"`
	Frequency       int     `json:"frequency" yaml:"frequency"`
	SalienceScore   float64 `json:"salience_score" yaml:"salience_score"`
	SuggestedDomain string  `json:"suggested_domain" yaml:"suggested_domain"`
}

// Domain returns the suggested domain, or UnknownDomain when none was inferred.
func (c CandidateTerm) Domain() string {
	if c.SuggestedDomain == "" {
		return UnknownDomain
	}
	return c.SuggestedDomain
}

// TermConstraint is a (source, required target) pair handed to the
// translation collaborator for one text unit.
type TermConstraint struct {
	SourceTerm string `json:"source_term" yaml:"source_term"`
	TargetTerm string `json:"target_term" yaml:"target_term"`
}
