// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/term-engine/internal/httputil"
	"github.com/pdiddy/term-engine/pkg/types"
)

// Ollama defaults.
const (
	OllamaBaseURL    = "http://localhost:11434"
	OllamaModel      = "nomic-embed-text"
	ollamaDimensions = 768
)

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	client     *http.Client
	baseURL    string
	model      string
	userAgent  string
	dimensions int
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewOllamaEmbedder creates an Ollama adapter, filling unset fields with defaults.
func NewOllamaEmbedder(cfg types.EmbeddingConfig) *OllamaEmbedder {
	e := &OllamaEmbedder{
		client:     newHTTPClient(cfg.HTTPConfig),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		userAgent:  cfg.UserAgent,
		dimensions: cfg.Dimensions,
	}
	if e.baseURL == "" {
		e.baseURL = OllamaBaseURL
	}
	if e.model == "" {
		e.model = OllamaModel
	}
	if e.dimensions <= 0 {
		e.dimensions = ollamaDimensions
	}
	return e
}

// Embed returns the embedding of one text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends every text in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, e.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(data))
	}

	var out ollamaResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", out.Error)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, v := range out.Embeddings {
		vecs[i] = toFloat32(v)
	}
	return vecs, nil
}

// Dimensions returns the configured vector size.
func (e *OllamaEmbedder) Dimensions() int { return e.dimensions }

// ModelName returns the Ollama model name.
func (e *OllamaEmbedder) ModelName() string { return "ollama:" + e.model }
