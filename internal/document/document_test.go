// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/term-engine/pkg/types"
)

const paper = `---
source_pdf: "attention.pdf"
---

<!-- page 1 -->

# Attention Is All You Need

The dominant sequence transduction models are based on
recurrent neural networks.

$$
\mathrm{Attention}(Q, K, V) = \mathrm{softmax}(QK^T / \sqrt{d_k}) V
$$

<!-- page 2 -->

## Results

| Model | BLEU |
|-------|------|
| Transformer | 28.4 |

![Figure 1](figures/arch.png)

\begin{equation}
PE_{(pos, 2i)} = \sin(pos / 10000^{2i/d})
\end{equation}

The Transformer generalizes well. $$ x^2 $$ is inline.
`

func TestParseMarkdown(t *testing.T) {
	blocks := ParseMarkdown(paper)

	type want struct {
		kind    types.BlockKind
		page    int
		section string
		prefix  string
	}
	expected := []want{
		{types.BlockText, 1, "Attention Is All You Need", "# Attention Is All You Need"},
		{types.BlockText, 1, "Attention Is All You Need", "The dominant sequence"},
		{types.BlockFormula, 1, "Attention Is All You Need", "$$"},
		{types.BlockText, 2, "Results", "## Results"},
		{types.BlockTable, 2, "Results", "| Model | BLEU |"},
		{types.BlockImage, 2, "Results", "![Figure 1]"},
		{types.BlockFormula, 2, "Results", `\begin{equation}`},
		{types.BlockText, 2, "Results", "The Transformer generalizes well."},
	}
	require.Len(t, blocks, len(expected))
	for i, w := range expected {
		b := blocks[i]
		assert.Equal(t, i, b.Index)
		assert.Equal(t, w.kind, b.Kind, "block %d", i)
		assert.Equal(t, w.page, b.Page, "block %d", i)
		assert.Equal(t, w.section, b.Section, "block %d", i)
		assert.True(t, strings.HasPrefix(b.Text, w.prefix), "block %d: %q", i, b.Text)
	}
	assert.Contains(t, blocks[2].Text, `\sqrt{d_k}`)
	assert.True(t, strings.HasSuffix(blocks[2].Text, "$$"))
	assert.Equal(t, 3, strings.Count(blocks[4].Text, "\n")+1)
	assert.Contains(t, blocks[6].Text, `\end{equation}`)

	texts := Texts(blocks)
	assert.Len(t, texts, 4)
}

func TestParseMarkdownEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kinds   []types.BlockKind
	}{
		{name: "empty", content: "", kinds: nil},
		{name: "blank lines only", content: "\n\n  \n", kinds: nil},
		{name: "single line formula", content: "$$ E = mc^2 $$", kinds: []types.BlockKind{types.BlockFormula}},
		{name: "unclosed formula runs to end", content: "$$\na + b\n\nstill math", kinds: []types.BlockKind{types.BlockFormula}},
		{name: "hash without space is text", content: "#hashtag here", kinds: []types.BlockKind{types.BlockText}},
		{name: "bad page marker is text", content: "<!-- page x -->", kinds: []types.BlockKind{types.BlockText}},
		{name: "crlf", content: "one\r\ntwo\r\n\r\nthree", kinds: []types.BlockKind{types.BlockText, types.BlockText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kinds []types.BlockKind
			for _, b := range ParseMarkdown(tt.content) {
				kinds = append(kinds, b.Kind)
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	blocks := ParseMarkdown(paper)
	translated := make([]types.TranslatedBlock, len(blocks))
	for i, b := range blocks {
		translated[i] = types.TranslatedBlock{ContentBlock: b}
	}
	translated[1].Translation = "主流的序列轉換模型基於循環神經網路。"

	out := RenderMarkdown(translated)
	assert.Contains(t, out, "<!-- page 1 -->")
	assert.Contains(t, out, "<!-- page 2 -->")
	assert.Contains(t, out, "主流的序列轉換模型基於循環神經網路。")
	assert.NotContains(t, out, "The dominant sequence")
	assert.Contains(t, out, `\sqrt{d_k}`)

	again := ParseMarkdown(out)
	assert.Len(t, again, len(blocks))
}

func TestIsFormula(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"α + β = γ", true},
		{"f(x) = x^2 + 2x + 1", true},
		{"The model has 12 layers.", false},
		{"x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isFormula(tt.text), tt.text)
	}
}

func TestPageLinesMergesParagraphs(t *testing.T) {
	p := &parser{page: 3}
	p.pageLines([]line{
		{text: "Neural networks learn hier-", y: 700, fontSize: 10},
		{text: "archical features.", y: 688, fontSize: 10},
		{text: "A new paragraph starts here.", y: 650, fontSize: 10},
		{text: "∑ α_i = 1", y: 630, fontSize: 10},
	})
	p.flush()

	require.Len(t, p.blocks, 3)
	assert.Equal(t, "Neural networks learn hierarchical features.", p.blocks[0].Text)
	assert.Equal(t, types.BlockText, p.blocks[1].Kind)
	assert.Equal(t, types.BlockFormula, p.blocks[2].Kind)
	assert.Equal(t, 3, p.blocks[2].Page)
}

func TestToMarkdownRoundTrip(t *testing.T) {
	blocks := []types.ContentBlock{
		{Kind: types.BlockText, Text: "Gradient boosting is an ensemble method.", Page: 1},
		{Kind: types.BlockFormula, Text: "F(x) = ∑ γ h(x)", Page: 1},
		{Kind: types.BlockText, Text: "Trees are added greedily.", Page: 2},
	}
	parsed := ParseMarkdown(ToMarkdown(blocks))
	require.Len(t, parsed, 3)
	for i := range blocks {
		assert.Equal(t, blocks[i].Kind, parsed[i].Kind)
		assert.Equal(t, blocks[i].Page, parsed[i].Page)
	}
}

type fakeReader struct {
	blocks []types.ContentBlock
	err    error
}

func (f fakeReader) Read(string) ([]types.ContentBlock, error) { return f.blocks, f.err }

func TestConvertPaths(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "markdown")
	pdfs := []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.pdf")}

	r := fakeReader{blocks: []types.ContentBlock{{Kind: types.BlockText, Text: "Hello.", Page: 1}}}
	var buf bytes.Buffer
	res := ConvertPaths(r, pdfs, out, &buf)
	assert.Equal(t, BatchResult{Converted: 2}, res)

	data, err := os.ReadFile(filepath.Join(out, "a.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "source_pdf:")
	blocks := ParseMarkdown(string(data))
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hello.", blocks[0].Text)

	buf.Reset()
	res = ConvertPaths(fakeReader{err: errors.New("encrypted")}, append(pdfs, filepath.Join(dir, "c.pdf")), out, &buf)
	assert.Equal(t, BatchResult{Skipped: 2, Failed: 1}, res)
	assert.True(t, res.HasFailures())
	assert.Equal(t, 3, res.Total())
	assert.Contains(t, buf.String(), "failed  c: encrypted")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(md, []byte("# Title\n\nBody."), 0o644))

	blocks, err := Load(nil, md)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	blocks, err = Load(fakeReader{blocks: []types.ContentBlock{{Kind: types.BlockText, Text: "x"}}}, filepath.Join(dir, "x.PDF"))
	require.NoError(t, err)
	assert.Len(t, blocks, 1)

	_, err = Load(nil, filepath.Join(dir, "x.docx"))
	assert.Error(t, err)
}
