// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/template"

	"github.com/pdiddy/term-engine/internal/httputil"
	"github.com/pdiddy/term-engine/pkg/types"
)

// maxPromptTerms caps the terminology list sent with one unit.
const maxPromptTerms = 40

// translationPromptTmpl is sent once per text unit. The terminology list
// carries the renderings the document has already committed to.
var translationPromptTmpl = template.Must(template.New("translation").Parse(`You are a professional translator of academic papers. Translate the following {{.Source}} text into {{.Target}}.

Rules:
- Output only the translation, with no commentary.
- Keep Markdown markup, citations, numbers, variable names and inline LaTeX ($...$) unchanged.
- Keep proper names of people, datasets and software in their original form.
{{- if .Terms}}
- Translate these terms exactly as given, every time they occur:
{{- range .Terms}}
  {{.SourceTerm}} -> {{.TargetTerm}}
{{- end}}
{{- end}}
{{- if .Section}}

The text comes from the section "{{.Section}}".
{{- end}}

Text:
{{.Text}}
`))

// termPromptTmpl asks for a single glossary rendering.
var termPromptTmpl = template.Must(template.New("term").Parse(`You are building a bilingual terminology glossary for academic papers{{if .Domains}} in the field of {{.Domains}}{{end}}.
Give the standard {{.Target}} translation of the {{.Source}} technical term below, as used in published literature.
Answer with the translated term only, no explanation, quotes or punctuation.

Term: {{.Term}}
`))

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ErrMissingAPIKey is returned by NewClaudeTranslator without a key.
var ErrMissingAPIKey = errors.New("anthropic API key is not set")

// ClaudeTranslator translates through the Claude Messages API.
type ClaudeTranslator struct {
	APIKey         string
	Model          string
	SourceLanguage string
	TargetLanguage string
	MaxRetries     int
	Client         *http.Client
}

var _ Translator = (*ClaudeTranslator)(nil)

// NewClaudeTranslator builds a translator from configuration.
func NewClaudeTranslator(cfg types.TranslationConfig) (*ClaudeTranslator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &ClaudeTranslator{
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: cfg.TargetLanguage,
		MaxRetries:     cfg.MaxRetries,
		Client:         &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Translate renders one text unit, instructing the model to honour the
// request's terminology constraints.
func (c *ClaudeTranslator) Translate(ctx context.Context, req Request) (string, error) {
	terms := req.Constraints
	if len(terms) > maxPromptTerms {
		slog.Warn("terminology list truncated",
			"section", req.Section, "terms", len(terms), "kept", maxPromptTerms,
			"dropped", len(terms)-maxPromptTerms, "first_dropped", terms[maxPromptTerms].SourceTerm)
		terms = terms[:maxPromptTerms]
	}
	prompt, err := render(translationPromptTmpl, struct {
		Source, Target, Section, Text string
		Terms                         []types.TermConstraint
	}{c.source(), c.target(), req.Section, req.Text, terms})
	if err != nil {
		return "", err
	}
	return c.complete(ctx, prompt, 4096)
}

// TranslateTerm renders a single term, for synthesis and curation.
func (c *ClaudeTranslator) TranslateTerm(ctx context.Context, term string, domains []string) (string, error) {
	prompt, err := render(termPromptTmpl, struct {
		Source, Target, Term, Domains string
	}{c.source(), c.target(), term, strings.Join(domains, ", ")})
	if err != nil {
		return "", err
	}
	out, err := c.complete(ctx, prompt, 64)
	if err != nil {
		return "", err
	}
	return cleanTerm(out), nil
}

func (c *ClaudeTranslator) source() string {
	if c.SourceLanguage == "" {
		return "English"
	}
	return c.SourceLanguage
}

func (c *ClaudeTranslator) target() string {
	if c.TargetLanguage == "" {
		return "Traditional Chinese"
	}
	return c.TargetLanguage
}

// complete sends prompt as a single user message and returns the text of
// the reply.
func (c *ClaudeTranslator) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var b strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return strings.TrimSpace(b.String()), nil
}

// cleanTerm strips the quoting and trailing punctuation models sometimes
// wrap a one-term answer in, keeping the first line only.
func cleanTerm(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, " \t\"'`“”「」。.")
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}
