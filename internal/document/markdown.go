// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document splits source documents into ordered content blocks.
// Text blocks carry prose to resolve and translate; formula, table and
// image blocks pass through translation untouched.
package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/term-engine/pkg/types"
)

var (
	imageRe     = regexp.MustCompile(`^!\[[^\]]*\]\([^)]*\)\s*$`)
	beginMathRe = regexp.MustCompile(`^\\begin\{(equation|align|gather|multline|eqnarray)\*?\}`)
)

// ParseMarkdown splits Markdown into blocks in document order.
//
// Paragraphs are separated by blank lines. Headings become their own text
// block and set the Section of the blocks under them. "$$" and
// \begin{equation} environments become formula blocks, runs of pipe-table
// lines become table blocks, and lines holding only an image link become
// image blocks. Page markers of the form <!-- page N --> set Page and
// produce no block. A leading YAML front matter block is dropped.
func ParseMarkdown(content string) []types.ContentBlock {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	lines = skipFrontMatter(lines)

	p := &parser{}
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			p.flush()

		case parsePage(trimmed, &p.page):
			p.flush()

		case isHeading(trimmed):
			p.flush()
			p.section = stripHeadingPrefix(trimmed)
			p.emit(types.BlockText, trimmed)

		case strings.HasPrefix(trimmed, "$$"):
			p.flush()
			end := closing(lines, i, func(s string, first bool) bool {
				if first {
					return len(s) > 2 && strings.HasSuffix(s, "$$")
				}
				return strings.HasSuffix(s, "$$")
			})
			p.emit(types.BlockFormula, strings.Join(lines[i:end+1], "\n"))
			i = end

		case beginMathRe.MatchString(trimmed):
			p.flush()
			env := beginMathRe.FindStringSubmatch(trimmed)[1]
			end := closing(lines, i, func(s string, _ bool) bool {
				return strings.Contains(s, `\end{`+env)
			})
			p.emit(types.BlockFormula, strings.Join(lines[i:end+1], "\n"))
			i = end

		case strings.HasPrefix(trimmed, "|"):
			p.flush()
			end := i
			for end+1 < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[end+1]), "|") {
				end++
			}
			p.emit(types.BlockTable, strings.Join(lines[i:end+1], "\n"))
			i = end

		case imageRe.MatchString(trimmed):
			p.flush()
			p.emit(types.BlockImage, trimmed)

		default:
			p.para = append(p.para, line)
		}
	}
	p.flush()
	return p.blocks
}

type parser struct {
	blocks  []types.ContentBlock
	para    []string
	page    int
	section string
}

func (p *parser) emit(kind types.BlockKind, text string) {
	p.blocks = append(p.blocks, types.ContentBlock{
		Kind:    kind,
		Text:    text,
		Page:    p.page,
		Section: p.section,
		Index:   len(p.blocks),
	})
}

func (p *parser) flush() {
	if len(p.para) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(p.para, "\n"))
	p.para = nil
	if text != "" {
		p.emit(types.BlockText, text)
	}
}

// closing returns the index of the line that ends the block opened at
// start, or the last line when the block never closes.
func closing(lines []string, start int, done func(line string, first bool) bool) int {
	for i := start; i < len(lines); i++ {
		if done(strings.TrimSpace(lines[i]), i == start) {
			return i
		}
	}
	return len(lines) - 1
}

func skipFrontMatter(lines []string) []string {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return lines
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return lines[i+1:]
		}
	}
	return lines
}

// isHeading reports whether line is an ATX heading (# through ######).
func isHeading(line string) bool {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n >= 1 && n <= 6 && n < len(line) && line[n] == ' '
}

// stripHeadingPrefix removes the leading # characters and whitespace.
func stripHeadingPrefix(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}

// parsePage reads a page marker like <!-- page 3 --> into page.
func parsePage(line string, page *int) bool {
	if !strings.HasPrefix(line, "<!-- page ") || !strings.HasSuffix(line, " -->") {
		return false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "<!-- page "), " -->")
	var n int
	if _, err := fmt.Sscanf(inner, "%d", &n); err != nil {
		return false
	}
	*page = n
	return true
}

// Texts returns the text blocks of blocks in order.
func Texts(blocks []types.ContentBlock) []types.ContentBlock {
	var out []types.ContentBlock
	for _, b := range blocks {
		if b.Kind == types.BlockText {
			out = append(out, b)
		}
	}
	return out
}

// RenderMarkdown writes blocks back out as Markdown, one block per
// paragraph, restoring page markers. Translated text replaces the source
// of translated blocks; other blocks are written verbatim.
func RenderMarkdown(blocks []types.TranslatedBlock) string {
	var b strings.Builder
	page := 0
	for i, blk := range blocks {
		if blk.Page != 0 && blk.Page != page {
			page = blk.Page
			fmt.Fprintf(&b, "<!-- page %d -->\n\n", page)
		}
		text := blk.Text
		if blk.Kind == types.BlockText && blk.Translation != "" {
			text = blk.Translation
		}
		b.WriteString(text)
		if i < len(blocks)-1 {
			b.WriteString("\n\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}
