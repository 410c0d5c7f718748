// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// wordPattern matches a word: letters and digits, optionally joined by
// internal hyphens or apostrophes ("fine-tuning", "Bayes'").
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:[-'’][\p{L}\p{N}]+)*`)

// Word is a token with its byte offsets in the source text.
type Word struct {
	Text  string
	Start int
	End   int
}

// Words splits text into word tokens, keeping byte offsets so callers can
// recover the original surface span between two words.
func Words(text string) []Word {
	locs := wordPattern.FindAllStringIndex(text, -1)
	words := make([]Word, len(locs))
	for i, loc := range locs {
		words[i] = Word{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}
	}
	return words
}

// clauseBreak reports whether the text between two adjacent words ends a
// phrase. Sentence and clause punctuation, brackets, line breaks, and
// invalid or replacement characters all break; plain spaces do not.
func clauseBreak(gap string) bool {
	if !utf8.ValidString(gap) || strings.ContainsRune(gap, utf8.RuneError) {
		return true
	}
	return strings.ContainsAny(gap, ".,;:!?()[]{}\"“”\n\r\t|/")
}

// Runs splits text into maximal runs of words not separated by clause
// punctuation. N-grams never cross a run boundary.
func Runs(text string) [][]Word {
	words := Words(text)
	var runs [][]Word
	var cur []Word
	for i, w := range words {
		if i > 0 && clauseBreak(text[words[i-1].End:w.Start]) {
			runs = append(runs, cur)
			cur = nil
		}
		cur = append(cur, w)
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

// Span returns the original text covered by words[i:j].
func Span(text string, words []Word, i, j int) string {
	return text[words[i].Start:words[j-1].End]
}
