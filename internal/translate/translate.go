// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package translate drives document-translation sessions: every text block
// is annotated with the glossary terms it contains and handed to a
// Translator together with the renderings the session has committed to.
package translate

import (
	"context"

	"github.com/pdiddy/term-engine/pkg/types"
)

// Request is one text unit to translate.
type Request struct {
	Text        string
	Constraints []types.TermConstraint

	// Section is the heading the unit appears under, passed as context.
	Section string
}

// Translator renders text units and single terms in the target language.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
	TranslateTerm(ctx context.Context, term string, domains []string) (string, error)
}
