// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package glossary

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/term-engine/pkg/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entries := []types.GlossaryEntry{
		{SourceTerm: "attention", TargetTerm: "注意力", Definition: "weights, then sums", Domain: "ml"},
		{SourceTerm: `the "kernel" trick`, TargetTerm: "核技巧", Domain: "ml"},
		{SourceTerm: "entropy", TargetTerm: "熵", Definition: "line one\nline two", Domain: "physics"},
		{SourceTerm: "<b>bold</b> & co", TargetTerm: "粗體", Domain: "typography"},
		{SourceTerm: "enthalpy", TargetTerm: " 焓 ", Definition: "  indented gloss\n", Domain: "physics"},
	}

	for _, f := range []Format{FormatCSV, FormatJSON, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, f, entries))

			got, err := Decode(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, entries, got)
		})
	}
}

func TestEncodeOmitsEmbedding(t *testing.T) {
	e := []types.GlossaryEntry{{SourceTerm: "attention", TargetTerm: "注意力", Embedding: []float32{1, 2}}}
	for _, f := range []Format{FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, f, e))
		assert.NotContains(t, strings.ToLower(buf.String()), "embedding")
	}
}

func TestDecodeLegacyCSVHeader(t *testing.T) {
	in := "\ufeffEnglish,Chinese,Definition\nartificial intelligence,人工智慧,模擬人類智能\nmachine learning , 機器學習,\n"
	got, err := Decode(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{
		{SourceTerm: "artificial intelligence", TargetTerm: "人工智慧", Definition: "模擬人類智能"},
		{SourceTerm: "machine learning", TargetTerm: "機器學習"},
	}, got)
}

func TestDecodeKeepsCanonicalFieldsVerbatim(t *testing.T) {
	tests := []struct {
		format Format
		in     string
	}{
		{FormatCSV, "source_term,target_term,definition\nentropy, 熵,\"  indented gloss\"\n"},
		{FormatJSON, `[{"source_term": "entropy", "target_term": " 熵", "definition": "  indented gloss"}]`},
		{FormatYAML, "- source_term: entropy\n  target_term: \" 熵\"\n  definition: \"  indented gloss\"\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.in), tt.format)
			require.NoError(t, err)
			assert.Equal(t, []types.GlossaryEntry{
				{SourceTerm: "entropy", TargetTerm: " 熵", Definition: "  indented gloss"},
			}, got)
		})
	}
}

func TestDecodeLegacyJSONDatabase(t *testing.T) {
	in := `{
		"physics": {"terms": [{"english": "entropy", "chinese": "熵", "embedding": [0.1, 0.2]}]},
		"ml": {"terms": [{"english": "dropout", "chinese": "丟棄法", "definition": "regularizer"}]}
	}`
	got, err := Decode(strings.NewReader(in), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []types.GlossaryEntry{
		{SourceTerm: "dropout", TargetTerm: "丟棄法", Definition: "regularizer", Domain: "ml"},
		{SourceTerm: "entropy", TargetTerm: "熵", Domain: "physics"},
	}, got)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name      string
		format    Format
		in        string
		wantRow   int
		wantField string
	}{
		{
			name:    "csv wrong field count",
			format:  FormatCSV,
			in:      "source_term,target_term,definition\na,b,c\nd,e\n",
			wantRow: 3,
		},
		{
			name:      "csv empty target",
			format:    FormatCSV,
			in:        "source_term,target_term\nattention,\n",
			wantRow:   2,
			wantField: "target_term",
		},
		{
			name:      "csv blank source",
			format:    FormatCSV,
			in:        "source_term,target_term\n  ,熵\n",
			wantRow:   2,
			wantField: "source_term",
		},
		{
			name:      "csv missing column",
			format:    FormatCSV,
			in:        "source_term,definition\nattention,weights\n",
			wantRow:   1,
			wantField: "target_term",
		},
		{
			name:    "csv empty file",
			format:  FormatCSV,
			in:      "",
			wantRow: 1,
		},
		{
			name:      "json wrong field type",
			format:    FormatJSON,
			in:        `[{"source_term": "a", "target_term": "b"}, {"source_term": "c", "target_term": 5}]`,
			wantRow:   2,
			wantField: "target_term",
		},
		{
			name:      "json missing source",
			format:    FormatJSON,
			in:        `[{"target_term": "b"}]`,
			wantRow:   1,
			wantField: "source_term",
		},
		{
			name:   "json syntax",
			format: FormatJSON,
			in:     `[{"source_term": "a",`,
		},
		{
			name:      "yaml wrong field type",
			format:    FormatYAML,
			in:        "- source_term: a\n  target_term: b\n- source_term: [c]\n  target_term: d\n",
			wantRow:   2,
			wantField: "source_term",
		},
		{
			name:    "yaml scalar item",
			format:  FormatYAML,
			in:      "- source_term: a\n  target_term: b\n- just text\n",
			wantRow: 2,
		},
		{
			name:   "yaml syntax",
			format: FormatYAML,
			in:     "- source_term: [a\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.in), tt.format)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrSerialization))

			var se *SerializationError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.format, se.Format)
			assert.Equal(t, tt.wantRow, se.Row)
			assert.Equal(t, tt.wantField, se.Field)
		})
	}
}

func TestDecodeEmptyStructured(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML} {
		got, err := Decode(strings.NewReader(""), f)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"glossary/physics.csv": FormatCSV,
		"ml.JSON":              FormatJSON,
		"terms.yaml":           FormatYAML,
		"terms.yml":            FormatYAML,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("terms.xlsx")
	assert.Error(t, err)
}

func TestWriteTemplate(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatJSON, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteTemplate(&buf, f))
			got, err := Decode(&buf, f)
			require.NoError(t, err)
			assert.Len(t, got, 3)
			assert.Equal(t, "artificial intelligence", got[0].SourceTerm)
		})
	}
}
