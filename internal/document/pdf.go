// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/term-engine/pkg/types"
)

// paragraphGap is the vertical gap, in multiples of the font size, that
// separates two paragraphs.
const paragraphGap = 1.8

// mathDensity is the share of math symbols above which a row is a formula.
const mathDensity = 0.3

// line is one merged PDF text row.
type line struct {
	text     string
	y        float64
	fontSize float64
}

// ReadPDF extracts the text of a PDF as ordered blocks. Rows are merged
// into paragraphs by vertical spacing; rows dense with math symbols become
// formula blocks. Pages without extractable text are skipped.
func ReadPDF(path string) ([]types.ContentBlock, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	p := &parser{}
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("reading page %d of %s: %w", n, path, err)
		}
		p.flush()
		p.page = n
		p.pageLines(rowLines(rows))
	}
	p.flush()
	return p.blocks, nil
}

func rowLines(rows pdf.Rows) []line {
	var out []line
	for _, row := range rows {
		var b strings.Builder
		var size float64
		var y float64
		count := 0
		for _, t := range row.Content {
			if t.S == "" {
				continue
			}
			if count == 0 {
				y = t.Y
			}
			b.WriteString(t.S)
			size += t.FontSize
			count++
		}
		text := strings.TrimSpace(b.String())
		if text == "" || count == 0 {
			continue
		}
		fs := size / float64(count)
		if fs <= 0 {
			fs = 10
		}
		out = append(out, line{text: text, y: y, fontSize: fs})
	}
	return out
}

// pageLines groups one page's rows into blocks.
func (p *parser) pageLines(lines []line) {
	for i, l := range lines {
		if isFormula(l.text) {
			p.flush()
			p.emit(types.BlockFormula, l.text)
			continue
		}
		if i > 0 && math.Abs(lines[i-1].y-l.y) > paragraphGap*l.fontSize {
			p.flush()
		}
		p.joinLine(l.text)
	}
}

// joinLine appends a PDF row to the paragraph, undoing end-of-line
// hyphenation.
func (p *parser) joinLine(text string) {
	if n := len(p.para); n > 0 {
		prev := p.para[n-1]
		first := []rune(text)[0]
		if strings.HasSuffix(prev, "-") && unicode.IsLower(first) {
			p.para[n-1] = strings.TrimSuffix(prev, "-") + text
			return
		}
		p.para[n-1] = prev + " " + text
		return
	}
	p.para = append(p.para, text)
}

// isFormula reports whether a row is mostly math notation.
func isFormula(text string) bool {
	var symbols, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if strings.ContainsRune("=+−-×÷∑∏∫∂∇√∞≤≥≈≠∈∀∃^_{}()[]|/<>", r) || unicode.In(r, unicode.Greek, unicode.Sm) {
			symbols++
		}
	}
	return total >= 3 && float64(symbols)/float64(total) > mathDensity
}

// ToMarkdown renders PDF blocks as Markdown with page markers, so a
// converted document can be edited and parsed again with ParseMarkdown.
func ToMarkdown(blocks []types.ContentBlock) string {
	var b strings.Builder
	page := 0
	for _, blk := range blocks {
		if blk.Page != page {
			page = blk.Page
			fmt.Fprintf(&b, "<!-- page %d -->\n\n", page)
		}
		if blk.Kind == types.BlockFormula && !strings.HasPrefix(blk.Text, "$$") {
			fmt.Fprintf(&b, "$$ %s $$\n\n", blk.Text)
			continue
		}
		b.WriteString(blk.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
