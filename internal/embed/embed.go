// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns glossary terms and text spans into vectors.
//
// The default HashEmbedder runs locally with no model files and no network.
// OllamaEmbedder and OpenAIEmbedder call remote embedding APIs for
// multilingual or semantic matching.
package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/term-engine/pkg/types"
)

// Embedder generates vector embeddings from text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size.
	Dimensions() int

	// ModelName identifies the model. Cached embeddings are only reused
	// when the model name matches.
	ModelName() string
}

var (
	_ Embedder = (*HashEmbedder)(nil)
	_ Embedder = (*OllamaEmbedder)(nil)
	_ Embedder = (*OpenAIEmbedder)(nil)
)

// New builds the embedder selected by cfg.Provider.
func New(cfg types.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", types.ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case types.ProviderOllama:
		return NewOllamaEmbedder(cfg), nil
	case types.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	}
	return nil, fmt.Errorf("unknown embedding provider %q (want hash, ollama or openai)", cfg.Provider)
}

// embedAll embeds texts through a single-text function. Used by adapters
// whose API has no batch form.
func embedAll(ctx context.Context, texts []string, one func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := one(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func newHTTPClient(cfg types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
