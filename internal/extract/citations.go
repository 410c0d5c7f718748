// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"
)

// Citation markers carry author names and years, never terminology, so
// they are removed before counting.
var (
	// numericCiteRe matches numeric citations like [1], [2, 5] or [3-7].
	numericCiteRe = regexp.MustCompile(`\[\d+(?:\s*[-–,]\s*\d+)*\]`)

	// authorYearCiteRe matches author-year citations like
	// [Smith et al., 2020], (Smith and Jones, 2019) or (Vaswani et al. 2017).
	authorYearCiteRe = regexp.MustCompile(`[\[(]\p{Lu}[\p{L}'-]+(?:\s+(?:et\s+al\.?|(?:and|&)\s+\p{Lu}[\p{L}'-]+))?,?\s*\d{4}[a-z]?(?:;\s*[^\])]+)?[\])]`)
)

// stripCitations replaces citation markers with a comma so phrases on
// either side are not joined into one n-gram.
func stripCitations(text string) string {
	text = numericCiteRe.ReplaceAllString(text, ",")
	return authorYearCiteRe.ReplaceAllString(text, ",")
}

// isReferencesHeading reports whether a section heading starts the
// bibliography, whose entries are skipped during extraction.
func isReferencesHeading(heading string) bool {
	h := strings.ToLower(strings.TrimSpace(heading))
	return strings.Contains(h, "references") || strings.Contains(h, "bibliography")
}
