// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/term-engine/internal/httputil"
	"github.com/pdiddy/term-engine/pkg/types"
)

// OpenAI defaults.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "text-embedding-3-small"
)

var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// ErrMissingAPIKey is returned when a remote provider needs a key and none is configured.
var ErrMissingAPIKey = errors.New("API key is required")

// OpenAIEmbedder calls the OpenAI embeddings API or a compatible endpoint.
type OpenAIEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	userAgent  string
	dimensions int

	// shorten requests reduced dimensions, supported by text-embedding-3 models.
	shorten bool
}

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder creates an OpenAI adapter. cfg.APIKey is required.
func NewOpenAIEmbedder(cfg types.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embeddings: %w", ErrMissingAPIKey)
	}
	e := &OpenAIEmbedder{
		client:    newHTTPClient(cfg.HTTPConfig),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		userAgent: cfg.UserAgent,
	}
	if e.baseURL == "" {
		e.baseURL = OpenAIBaseURL
	}
	if e.model == "" {
		e.model = OpenAIModel
	}

	native, known := openAIDimensions[e.model]
	switch {
	case cfg.Dimensions > 0 && strings.HasPrefix(e.model, "text-embedding-3-"):
		e.dimensions = cfg.Dimensions
		e.shorten = cfg.Dimensions != native
	case known:
		e.dimensions = native
	case cfg.Dimensions > 0:
		e.dimensions = cfg.Dimensions
	default:
		e.dimensions = 1536
	}
	return e, nil
}

// Embed returns the embedding of one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends every text in one request and orders results by index.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := openAIRequest{Model: e.model, Input: texts}
	if e.shorten {
		reqBody.Dimensions = e.dimensions
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, e.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out openAIResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(data))
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("openai error: %s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai returned out-of-range index %d", d.Index)
		}
		vecs[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("openai returned no embedding for text %d", i)
		}
	}
	return vecs, nil
}

// Dimensions returns the vector size.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// ModelName returns the model name with its dimension count.
func (e *OpenAIEmbedder) ModelName() string {
	return fmt.Sprintf("openai:%s:%d", e.model, e.dimensions)
}
