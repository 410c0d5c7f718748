// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract proposes terminology candidates from source documents.
//
// Extraction is statistical and deterministic: the same text and glossary
// always yield the same ranked candidates. It never fails on odd input; a
// document with nothing term-like simply yields nothing.
package extract

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/pkg/types"
)

const (
	capitalBoost = 1.5
	hyphenBoost  = 1.3
	acronymBoost = 2.0
)

// connectives are the function words allowed inside a phrase, as in
// "mixture of experts" or "signal to noise".
var connectives = map[string]bool{
	"of": true, "and": true, "for": true, "to": true, "in": true, "on": true, "with": true, "over": true, "under": true,
}

// acronymRe matches a phrase followed by a parenthesized abbreviation,
// as in "Mixture of Experts (MoE)".
var acronymRe = regexp.MustCompile(`((?:[\p{L}][\p{L}\p{N}'-]*\s+){0,7}[\p{L}][\p{L}\p{N}'-]*)\s*\(([A-Z][A-Za-z]*[A-Z]s?)\)`)

// Extractor ranks candidate terms in text.
type Extractor struct {
	norm *normalize.Normalizer
	cfg  types.ExtractionConfig
}

// New returns an extractor. A nil normalizer uses normalize.Default().
func New(n *normalize.Normalizer, cfg types.ExtractionConfig) *Extractor {
	if n == nil {
		n = normalize.Default()
	}
	return &Extractor{norm: n, cfg: cfg.WithDefaults()}
}

// Extract ranks candidate terms in text with the default normalizer.
func Extract(text string, existing []types.GlossaryEntry, cfg types.ExtractionConfig) []types.CandidateTerm {
	return New(nil, cfg).Extract(text, existing)
}

// tally accumulates the occurrences of one normalized n-gram.
type tally struct {
	key      string
	words    int
	freq     int
	capitals int
	hyphen   bool
	acronym  bool
	surfaces map[string]int
	first    string
}

func (t *tally) surface() string {
	best, bestN := t.first, t.surfaces[t.first]
	for s, n := range t.surfaces {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return best
}

// Extract returns candidates ranked by salience, then frequency, then
// text. Terms already in existing (after normalization) are left out.
//
// Phrases of 1 to MaxNGram words are counted within clause-bounded runs;
// they may not begin or end with a function word, and single words must
// also clear the length and common-word filters. Salience is a C-value
// style score (frequency weighted by length, discounted by the longer
// candidates a phrase is nested in), boosted for capitalized phrases,
// hyphenated compounds and defined abbreviations. A phrase introduced
// with an abbreviation, "Long Form (LF)", is kept regardless of frequency.
func (e *Extractor) Extract(text string, existing []types.GlossaryEntry) []types.CandidateTerm {
	text = stripCitations(text)

	tallies := make(map[string]*tally)
	for _, run := range normalize.Runs(text) {
		for i := range run {
			for n := 1; n <= e.cfg.MaxNGram && i+n <= len(run); n++ {
				words := run[i : i+n]
				if !e.admissible(words) {
					continue
				}
				span := normalize.Span(text, run, i, i+n)
				key := e.norm.Key(span)
				if key == "" {
					continue
				}
				t := tallies[key]
				if t == nil {
					t = &tally{key: key, words: n, surfaces: make(map[string]int), first: span}
					tallies[key] = t
				}
				t.freq++
				t.surfaces[span]++
				if capitalized(words, i) {
					t.capitals++
				}
				if strings.ContainsRune(span, '-') {
					t.hyphen = true
				}
			}
		}
	}
	e.markAcronyms(text, tallies)

	known := make(map[string]bool, len(existing))
	for _, g := range existing {
		known[e.norm.Key(g.SourceTerm)] = true
	}

	kept := make(map[string]*tally)
	for key, t := range tallies {
		if known[key] || !e.frequent(t) {
			continue
		}
		kept[key] = t
	}

	nestedSum := make(map[string]int)
	nestedCount := make(map[string]int)
	for _, t := range kept {
		if t.words < 2 {
			continue
		}
		for _, sub := range e.subKeys(t.key) {
			nestedSum[sub] += t.freq
			nestedCount[sub]++
		}
	}

	domains := domainVocabulary(e.norm, existing)
	var out []types.CandidateTerm
	for key, t := range kept {
		f := float64(t.freq)
		if c := nestedCount[key]; c > 0 {
			f -= float64(nestedSum[key]) / float64(c)
		}
		score := math.Log2(float64(t.words)+1) * f
		if t.acronym {
			score = math.Max(score, 1) * acronymBoost
		} else if score <= 0 {
			continue
		}
		if t.capitals*2 >= t.freq && t.capitals > 0 {
			score *= capitalBoost
		}
		if t.hyphen {
			score *= hyphenBoost
		}
		out = append(out, types.CandidateTerm{
			Text:            t.surface(),
			Frequency:       t.freq,
			SalienceScore:   math.Round(score*1e4) / 1e4,
			SuggestedDomain: suggestDomain(domains, strings.Fields(key)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SalienceScore != b.SalienceScore {
			return a.SalienceScore > b.SalienceScore
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Text < b.Text
	})
	if e.cfg.MaxCandidates > 0 && len(out) > e.cfg.MaxCandidates {
		out = out[:e.cfg.MaxCandidates]
	}
	return out
}

// admissible applies the word-level filters to an n-gram.
func (e *Extractor) admissible(words []normalize.Word) bool {
	for _, w := range words {
		if !hasLetter(w.Text) {
			return false
		}
	}
	if len(words) == 1 {
		w := words[0].Text
		return utf8.RuneCountInString(w) >= e.cfg.MinUnigramLength && !normalize.IsCommonWord(w)
	}
	first, last := words[0].Text, words[len(words)-1].Text
	if normalize.IsCommonWord(first) || normalize.IsCommonWord(last) {
		return false
	}
	for _, w := range words[1 : len(words)-1] {
		lower := strings.ToLower(w.Text)
		if normalize.IsStopWord(lower) {
			if !connectives[lower] {
				return false
			}
			continue
		}
		if utf8.RuneCountInString(w.Text) < 2 {
			return false
		}
	}
	return true
}

func (e *Extractor) frequent(t *tally) bool {
	if t.acronym {
		return true
	}
	if t.words == 1 {
		return t.freq >= e.cfg.MinUnigramFrequency
	}
	return t.freq >= e.cfg.MinFrequency
}

// subKeys returns the distinct keys of the shorter phrases nested in key.
func (e *Extractor) subKeys(key string) []string {
	tokens := strings.Fields(key)
	seen := make(map[string]bool)
	var out []string
	for n := 1; n < len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			k := e.norm.Key(strings.Join(tokens[i:i+n], " "))
			if k != "" && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// markAcronyms finds "Long Form (LF)" definitions and flags the long form,
// adding it when the n-gram scan did not produce it.
func (e *Extractor) markAcronyms(text string, tallies map[string]*tally) {
	for _, m := range acronymRe.FindAllStringSubmatch(text, -1) {
		long := longForm(strings.Fields(m[1]), strings.TrimSuffix(m[2], "s"))
		if long == "" {
			continue
		}
		key := e.norm.Key(long)
		if key == "" {
			continue
		}
		t := tallies[key]
		if t == nil {
			t = &tally{key: key, words: len(strings.Fields(key)), freq: 1, surfaces: map[string]int{long: 1}, first: long}
			tallies[key] = t
		}
		t.acronym = true
		if strings.ContainsRune(long, '-') {
			t.hyphen = true
		}
	}
}

// longForm returns the trailing words of phrase whose initials spell
// abbr, allowing function words inside the phrase ("Mixture of Experts").
func longForm(phrase []string, abbr string) string {
	letters := []rune(strings.ToLower(abbr))
	for start := len(phrase) - 1; start >= 0; start-- {
		candidate := phrase[start:]
		if normalize.IsStopWord(candidate[0]) {
			continue
		}
		if initialsMatch(candidate, letters) {
			return strings.Join(candidate, " ")
		}
	}
	return ""
}

// initialsMatch reports whether the words of phrase, split on hyphens,
// spell letters by their initials. Function words may be skipped, and a
// word may contribute further letters from inside it ("MoE", "BERTs").
func initialsMatch(phrase []string, letters []rune) bool {
	var parts []string
	for _, w := range phrase {
		parts = append(parts, strings.Split(strings.ToLower(w), "-")...)
	}
	return len(parts) > 1 && spells(parts, letters)
}

func spells(parts []string, letters []rune) bool {
	if len(letters) == 0 {
		for _, p := range parts {
			if !normalize.IsStopWord(p) {
				return false
			}
		}
		return true
	}
	if len(parts) == 0 {
		return false
	}
	p := parts[0]
	r, size := utf8.DecodeRuneInString(p)
	if normalize.IsStopWord(p) && spells(parts[1:], letters) {
		return true
	}
	if p == "" || r != letters[0] {
		return false
	}
	rest := []rune(p[size:])
	for k := 1; k <= len(letters); k++ {
		if spells(parts[1:], letters[k:]) {
			return true
		}
		if k == len(letters) {
			break
		}
		i := indexRune(rest, letters[k])
		if i < 0 {
			break
		}
		rest = rest[i+1:]
	}
	return false
}

func indexRune(rs []rune, r rune) int {
	for i, c := range rs {
		if c == r {
			return i
		}
	}
	return -1
}

// capitalized reports whether every word starts with an upper-case letter.
// A lone capitalized word at the start of a run is ignored since it may
// only be sentence case.
func capitalized(words []normalize.Word, pos int) bool {
	if len(words) == 1 && pos == 0 {
		return false
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w.Text)
		if !unicode.IsUpper(r) && !normalize.IsStopWord(w.Text) {
			return false
		}
	}
	r, _ := utf8.DecodeRuneInString(words[0].Text)
	return unicode.IsUpper(r)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// domainVocabulary maps each domain to the content words of its entries.
func domainVocabulary(n *normalize.Normalizer, entries []types.GlossaryEntry) map[string]map[string]bool {
	vocab := make(map[string]map[string]bool)
	for _, g := range entries {
		if g.Domain == "" {
			continue
		}
		if vocab[g.Domain] == nil {
			vocab[g.Domain] = make(map[string]bool)
		}
		for _, tok := range n.Tokens(g.SourceTerm) {
			if !normalize.IsStopWord(tok) {
				vocab[g.Domain][normalize.Singular(tok)] = true
			}
		}
	}
	return vocab
}

// suggestDomain picks the domain sharing the most words with tokens. Ties
// go to the lexically smaller domain; no overlap yields "".
func suggestDomain(vocab map[string]map[string]bool, tokens []string) string {
	best, bestScore := "", 0
	for domain, words := range vocab {
		score := 0
		for _, tok := range tokens {
			if words[normalize.Singular(tok)] {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && domain < best) {
			best, bestScore = domain, score
		}
	}
	return best
}
