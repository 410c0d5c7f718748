// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BlockKind tags a content block produced by the document parser.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockFormula BlockKind = "formula"
	BlockTable   BlockKind = "table"
	BlockImage   BlockKind = "image"
)

// ContentBlock is one ordered unit of a parsed document. Only text blocks are
// resolved and translated; the other kinds pass through untouched.
type ContentBlock struct {
	Kind BlockKind `json:"kind" yaml:"kind"`

	// Text is the raw block content (Markdown, LaTeX, or plain text).
	Text string `json:"text" yaml:"text"`

	// Page is the 1-based page the block starts on, 0 if unknown.
	Page int `json:"page" yaml:"page"`

	// Section is the heading the block appears under.
	Section string `json:"section,omitempty" yaml:"section,omitempty"`

	// Index is the block's position in document order.
	Index int `json:"index" yaml:"index"`
}

// TranslatedBlock pairs a content block with its translation and the
// terminology constraints that were applied to it.
type TranslatedBlock struct {
	ContentBlock `yaml:",inline"`

	Translation string           `json:"translation" yaml:"translation"`
	Constraints []TermConstraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	// Abandoned is set when the session deadline passed before this block
	// was translated. Translation is then empty.
	Abandoned bool `json:"abandoned,omitempty" yaml:"abandoned,omitempty"`
}
