// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import "strings"

// irregularPlurals maps plural forms common in technical prose to their
// singulars. Keys are lowercase.
var irregularPlurals = map[string]string{
	"analyses":    "analysis",
	"criteria":    "criterion",
	"hypotheses":  "hypothesis",
	"indices":     "index",
	"matrices":    "matrix",
	"phenomena":   "phenomenon",
	"syntheses":   "synthesis",
	"theses":      "thesis",
	"vertices":    "vertex",
	"appendices":  "appendix",
	"diagnoses":   "diagnosis",
	"parentheses": "parenthesis",
	"children":    "child",
	"people":      "person",
	"mice":        "mouse",
	"feet":        "foot",
	"teeth":       "tooth",
}

// invariantWords end in "s" but are not plurals. Keys are lowercase.
var invariantWords = map[string]bool{
	"bias": true, "gas": true, "lens": true, "atlas": true, "chaos": true,
	"cosmos": true, "ethos": true, "news": true, "series": true, "species": true,
	"physics": true, "mathematics": true, "statistics": true, "economics": true,
	"linguistics": true, "genetics": true, "dynamics": true, "kinematics": true,
	"electronics": true, "optics": true, "mechanics": true, "robotics": true,
	"thermodynamics": true, "semantics": true, "analytics": true, "always": true,
	"canvas": true, "alias": true, "plus": true, "minus": true, "various": true,
	"previous": true, "thus": true, "whereas": true, "perhaps": true,
}

// chesWords end in "ches" but singularize by dropping only the "s".
var chesWords = map[string]bool{
	"caches": true, "niches": true, "headaches": true, "avalanches": true,
	"moustaches": true, "microniches": true,
}

// Singular returns the singular form of an ASCII English word, preserving the
// case of the retained prefix. Words that are not plain ASCII letters, that
// are shorter than four letters, or that are known invariants are returned
// unchanged.
func Singular(word string) string {
	if len(word) < 4 || !isASCIIWord(word) {
		return word
	}
	lower := strings.ToLower(word)

	if s, ok := irregularPlurals[lower]; ok {
		return matchCase(word, s)
	}
	if invariantWords[lower] {
		return word
	}

	switch {
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"), strings.HasSuffix(lower, "is"):
		return word
	case strings.HasSuffix(lower, "ies") && len(lower) > 4:
		return word[:len(word)-3] + matchCase(word[len(word)-3:], "y")
	case strings.HasSuffix(lower, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "xes"), strings.HasSuffix(lower, "zzes"), strings.HasSuffix(lower, "shes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ches"):
		if chesWords[lower] {
			return word[:len(word)-1]
		}
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "s"):
		return word[:len(word)-1]
	}
	return word
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// matchCase renders repl in upper case when model is entirely upper case.
func matchCase(model, repl string) string {
	if model == strings.ToUpper(model) && model != strings.ToLower(model) {
		return strings.ToUpper(repl)
	}
	return repl
}
